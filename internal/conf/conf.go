package conf

import "time"

// Bootstrap 汇总全部启动配置（configs/config.yaml 经 kratos config Scan 填充）。
type Bootstrap struct {
	Server   *Server   `json:"server"`
	Data     *Data     `json:"data"`
	Upstream *Upstream `json:"upstream"`
	Import   *Import   `json:"import"`
	Geocode  *Geocode  `json:"geocode"`
}

// Server HTTP 服务配置。
type Server struct {
	Http *HTTP `json:"http"`
}

// HTTP 监听与限流参数。
type HTTP struct {
	Network string  `json:"network"`
	Addr    string  `json:"addr"`
	Timeout string  `json:"timeout"`  // 形如 "30s"，空则使用框架默认
	RateRPS float64 `json:"rate_rps"` // 令牌桶速率（rps），<=0 关闭限流
}

// Data 数据层配置。
type Data struct {
	Database *Database `json:"database"`
}

// Database 数据库连接配置（空间能力仅 postgres 生效）。
type Database struct {
	Driver string `json:"driver"` // postgres | mysql | sqlite3
	Source string `json:"source"`
	Debug  bool   `json:"debug"`
}

// Upstream 要素服务（ArcGIS 风格）配置。
// 字段名模板中的 {level} 会被替换为层级数字，如 "GID_{level}" → "GID_2"。
type Upstream struct {
	BaseURL       string `json:"base_url"`       // …/FeatureServer，层号按 level 追加
	Source        string `json:"source"`         // 写入行的 provenance 标识
	CodeField     string `json:"code_field"`     // 本级稳定编码，如 "GID_{level}"
	NameField     string `json:"name_field"`     // 本级名称，如 "NAME_{level}"
	ParentField   string `json:"parent_field"`   // 上级编码，如 "GID_{parent}"
	LabelField    string `json:"label_field"`    // 层级称谓，如 "ENGTYPE_{level}"
	CountryField  string `json:"country_field"`  // 国家过滤属性（各层恒定），如 "GID_0"
	Timeout       string `json:"timeout"`        // 单请求超时
	MaxAttempts   int    `json:"max_attempts"`   // 重试上限（含首次）
	BackoffBase   string `json:"backoff_base"`   // 退避基数，如 "500ms"
	BackoffJitter string `json:"backoff_jitter"` // 抖动上界，如 "250ms"
	Retry429      bool   `json:"retry_429"`      // 429 是否视为瞬时错误
}

// Import 导入管线参数。
type Import struct {
	MaxLevel           int `json:"max_level"`            // 默认导入深度
	BatchSize          int `json:"batch_size"`           // 常规批大小
	DeepBatchSize      int `json:"deep_batch_size"`      // level>=4 的批大小（多边形更重）
	BreakerMinLevel    int `json:"breaker_min_level"`    // 低于此层级的失败不触发熔断
	BreakerMaxFailures int `json:"breaker_max_failures"` // 同层连续失败达到该值则熔断
}

// Geocode 地址解析协作方配置。
type Geocode struct {
	BaseURL string `json:"base_url"`
	Timeout string `json:"timeout"`
}

// ParseDuration 解析时长字段，空串或非法时返回回退值。
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
