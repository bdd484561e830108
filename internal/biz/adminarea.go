package biz

import (
	"context"
)

// AdminArea 行政区划树的一个节点（country → province → district → …）。
// parent_id 指向同国家上一层级的行，level 0（国家）无上级也无几何。
type AdminArea struct {
	ID          int64  // 代理主键，首次入库时分配，之后不变
	CountryISO3 string // ISO3 国家码，树的根分区键
	Level       int    // 层级深度，0 = 国家
	ParentID    *int64 // 上级节点 id；仅 level 0 或上游缺少匹配上级编码时为空
	Code        string // 本级外部稳定编码
	Name        string // 展示名称
	LevelLabel  string // 层级称谓（如 "Province"），随国家不同
	GeomWKT     string // 几何的 WKT 镜像，仅作变更指纹与调试，空串表示无几何
	Source      string // 数据来源标识
	UpdatedAt   int64  // 最近写入时间（unix 秒）
}

// HasGeometry 是否携带多边形。
func (a *AdminArea) HasGeometry() bool { return a.GeomWKT != "" }

// GeometryFeatureRow 几何投影查询的原始结果。
// GeoJSON 为空串表示该行没有几何（返回空壳 feature）。
type GeometryFeatureRow struct {
	ID      int64
	Code    string
	Name    string
	Level   int
	GeoJSON string
}

// AdminAreaRepo 抽象存储层。空间谓词（点包含、递归上溯、拓扑保持简化）
// 由持久层作为原语提供，读写均按 (country, level[, code]) 维度进行。
type AdminAreaRepo interface {
	// ListByCountryLevel 返回 (country, level) 下的全部行，供 diff-upsert 构建查找表。
	ListByCountryLevel(ctx context.Context, iso3 string, level int) ([]*AdminArea, error)
	// ListCountries 返回全部 level 0 行（目标国家集合的来源）。
	ListCountries(ctx context.Context) ([]*AdminArea, error)
	// SaveBatch 在一个事务内落一层的全部插入与更新。
	SaveBatch(ctx context.Context, inserts, updates []*AdminArea) error
	// DeleteAll 整表清空（hard reset 专用）。
	DeleteAll(ctx context.Context) error
	// CountAll 当前总行数。
	CountAll(ctx context.Context) (int64, error)
	// FindDeepestContaining 返回该国家内包含该点的最深（level 最大）节点；无命中返回 nil。
	FindDeepestContaining(ctx context.Context, iso3 string, lat, lon float64) (*AdminArea, error)
	// GetByID 按代理主键取单行；不存在返回 nil。
	GetByID(ctx context.Context, id int64) (*AdminArea, error)
	// AncestorsOf 一次查询返回自 leaf 起沿 parent_id 上溯的全部节点（含 leaf 本身）。
	// 结果不保证顺序，调用方需按 level 升序排序。
	AncestorsOf(ctx context.Context, leafID int64) ([]*AdminArea, error)
	// GeometryGeoJSON 读取指定行的几何并按容差（度）做拓扑保持简化后序列化；
	// 行不存在返回 nil。
	GeometryGeoJSON(ctx context.Context, id int64, toleranceDeg float64) (*GeometryFeatureRow, error)
}

// Feature 上游要素服务返回的一条要素（已按配置的字段模板解析）。
type Feature struct {
	Code        string        // 本级编码
	Name        string        // 名称
	ParentCode  string        // 上级编码（level 0 为空）
	LevelLabel  string        // 层级称谓
	CountryISO3 string        // 所属国家（level 0 时等于 Code）
	Rings       [][][2]float64 // ESRI rings（经度在前），level 0 通常为空
}

// FeatureSource 上游要素服务契约：先发现对象 ID，再分批取要素。
// 实现内部自带瞬时错误重试；返回的错误已分类（HTTP / 错误信封 / 解析）。
type FeatureSource interface {
	ObjectIDs(ctx context.Context, level int, countryISO3 string) ([]int64, error)
	Features(ctx context.Context, level int, ids []int64, wantGeometry bool) ([]Feature, error)
}
