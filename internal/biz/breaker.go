package biz

// CountryBreaker 单个国家一次导入的熔断状态。它是显式
// 传入各导入步骤的值，而非共享的实例状态，以便将来并行多国导入时无共享隐患。
//
// 状态机：Closed（记失败但放行）→ Open（后续一律快速失败，终态不复位）。
// 失败连击按"当前正在处理的层级"统计：层级切换即清零，同层任一成功也清零。
// 低于 minLevel 的失败只记录、永不触发熔断（浅层允许吵闹）。
type CountryBreaker struct {
	iso3        string
	minLevel    int
	maxFailures int

	level   int  // 当前统计的层级
	streak  int  // 同层连续失败次数
	open    bool
	tripped *BreakerOpenError
}

// NewCountryBreaker 创建一国范围的熔断器。maxFailures<=0 时退化为 1。
func NewCountryBreaker(iso3 string, minLevel, maxFailures int) *CountryBreaker {
	if maxFailures <= 0 {
		maxFailures = 1
	}
	return &CountryBreaker{iso3: iso3, minLevel: minLevel, maxFailures: maxFailures}
}

// EnterLevel 声明接下来的请求属于哪个层级；层级变化会清零连击。
func (b *CountryBreaker) EnterLevel(level int) {
	if level != b.level {
		b.level = level
		b.streak = 0
	}
}

// Check 返回熔断信号（若已打开），否则 nil。
func (b *CountryBreaker) Check() error {
	if b.open {
		return b.tripped
	}
	return nil
}

// Success 当前层一次成功，清零连击。
func (b *CountryBreaker) Success() {
	b.streak = 0
}

// Failure 记录一次失败。达到阈值且层级不低于 minLevel 时熔断打开，
// 返回携带诊断信息的 BreakerOpenError；否则返回 nil。
func (b *CountryBreaker) Failure(err error, rawPayload string) error {
	if b.open {
		return b.tripped
	}
	b.streak++
	if b.level < b.minLevel {
		return nil
	}
	if b.streak < b.maxFailures {
		return nil
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	b.open = true
	b.tripped = &BreakerOpenError{
		Country:  b.iso3,
		Level:    b.level,
		Attempts: b.streak,
		LastErr:  msg,
		RawLast:  TruncateRaw(rawPayload),
	}
	return b.tripped
}

// Open 熔断是否已打开。
func (b *CountryBreaker) Open() bool { return b.open }

// OpenLevel 触发熔断的层级；未打开时返回 -1。
func (b *CountryBreaker) OpenLevel() int {
	if !b.open {
		return -1
	}
	return b.tripped.Level
}
