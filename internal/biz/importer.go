package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"geoadmin-go/internal/metrics"
)

// ImportConfig 导入管线参数（由 bootstrap 配置装配）。
type ImportConfig struct {
	MaxLevel           int    // 默认导入深度
	BatchSize          int    // 常规批大小
	DeepBatchSize      int    // level>=4 的批大小（多边形更重）
	BreakerMinLevel    int    // 低于此层级的失败不触发熔断
	BreakerMaxFailures int    // 同层连续失败阈值
	Source             string // 写入行的 provenance 标识
}

// deepLevelThreshold 自该层级起采用较小批量。
const deepLevelThreshold = 4

func (c ImportConfig) withDefaults() ImportConfig {
	if c.MaxLevel <= 0 {
		c.MaxLevel = 2
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.DeepBatchSize <= 0 {
		c.DeepBatchSize = 20
	}
	if c.BreakerMaxFailures <= 0 {
		c.BreakerMaxFailures = 3
	}
	return c
}

// ImportOptions 单次 ImportAll 的调用参数。
type ImportOptions struct {
	HardReset   bool   // 先整表清空
	CountryISO3 string // 仅导入该国家（level 0 始终全量）
	MaxLevel    int    // 0 表示取配置默认
}

// CountrySummary 单个国家的导入结果。
type CountrySummary struct {
	CountryISO3  string `json:"country_iso3"`
	Inserted     int    `json:"inserted"`
	Updated      int    `json:"updated"`
	LevelsDone   int    `json:"levels_done"`
	BreakerOpen  bool   `json:"breaker_open"`
	BreakerLevel int    `json:"breaker_level,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
}

// ImportSummary 整次导入的聚合结果。导入对行级/层级失败从不抛出，
// 全部失败按发生顺序收敛到 Errors；只有致命的启动错误会使调用整体失败。
type ImportSummary struct {
	Inserted   int              `json:"inserted"`
	Updated    int              `json:"updated"`
	TotalInDB  int64            `json:"total_in_db"`
	DurationMS int64            `json:"duration_ms"`
	Countries  []CountrySummary `json:"countries"`
	Errors     []*StepError     `json:"errors"`
}

// ImportUsecase 导入管线：两阶段拉取（ID 发现 + 批量要素）→ diff-upsert，
// 国家串行、层级严格升序（L 层的上级解析依赖 L-1 层已提交）。
type ImportUsecase struct {
	repo AdminAreaRepo
	src  FeatureSource
	conf ImportConfig
	log  *log.Helper
	now  func() time.Time
}

func NewImportUsecase(repo AdminAreaRepo, src FeatureSource, conf ImportConfig, logger log.Logger) *ImportUsecase {
	return &ImportUsecase{
		repo: repo,
		src:  src,
		conf: conf.withDefaults(),
		log:  log.NewHelper(logger),
		now:  time.Now,
	}
}

// ImportAll 执行一次全量/增量导入。level 0 无条件先导入（它是深层所需的根），
// 之后对每个目标国家按 1..maxLevel 逐层推进；熔断打开只中止该国家的剩余层级。
func (uc *ImportUsecase) ImportAll(ctx context.Context, opts ImportOptions) (*ImportSummary, error) {
	start := uc.now()
	sum := &ImportSummary{}

	if opts.HardReset {
		if err := uc.repo.DeleteAll(ctx); err != nil {
			return nil, fmt.Errorf("hard reset: %w", err)
		}
		uc.log.WithContext(ctx).Warn("admin_area table cleared (hard reset)")
	}

	// level 0：国家层，与 countryFilter 无关
	ins, upd, stepErrs, err := uc.importLevel(ctx, "", 0, nil)
	sum.Errors = append(sum.Errors, stepErrs...)
	if err != nil {
		return nil, fmt.Errorf("level 0 import: %w", err)
	}
	sum.Inserted += ins
	sum.Updated += upd

	roots, err := uc.repo.ListCountries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	maxLevel := opts.MaxLevel
	if maxLevel <= 0 {
		maxLevel = uc.conf.MaxLevel
	}

	for _, root := range roots {
		iso3 := root.CountryISO3
		if opts.CountryISO3 != "" && !strings.EqualFold(opts.CountryISO3, iso3) {
			continue
		}
		cs, countryErrs, err := uc.importCountry(ctx, iso3, maxLevel)
		sum.Errors = append(sum.Errors, countryErrs...)
		if err != nil {
			return nil, err // 仅取消/超时会走到这里
		}
		sum.Inserted += cs.Inserted
		sum.Updated += cs.Updated
		sum.Countries = append(sum.Countries, cs)
	}

	if total, err := uc.repo.CountAll(ctx); err == nil {
		sum.TotalInDB = total
	}
	sum.DurationMS = time.Since(start).Milliseconds()
	return sum, nil
}

// importCountry 推进单个国家 1..maxLevel。返回的 error 仅用于取消传播。
func (uc *ImportUsecase) importCountry(ctx context.Context, iso3 string, maxLevel int) (CountrySummary, []*StepError, error) {
	cs := CountrySummary{CountryISO3: iso3}
	var stepErrs []*StepError
	t0 := uc.now()
	br := NewCountryBreaker(iso3, uc.conf.BreakerMinLevel, uc.conf.BreakerMaxFailures)

	for level := 1; level <= maxLevel; level++ {
		if err := br.Check(); err != nil {
			stepErrs = append(stepErrs, breakerStep(err))
			cs.BreakerOpen = true
			cs.BreakerLevel = br.OpenLevel()
			break
		}
		ins, upd, levelErrs, err := uc.importLevel(ctx, iso3, level, br)
		cs.Inserted += ins
		cs.Updated += upd
		stepErrs = append(stepErrs, levelErrs...)
		if err == nil {
			if len(levelErrs) == 0 {
				cs.LevelsDone++
			}
			continue
		}
		if isCanceled(err) {
			cs.DurationMS = time.Since(t0).Milliseconds()
			return cs, stepErrs, err
		}
		var boe *BreakerOpenError
		if errors.As(err, &boe) {
			metrics.BreakerOpenTotal.Inc()
			stepErrs = append(stepErrs, breakerStep(boe))
			cs.BreakerOpen = true
			cs.BreakerLevel = boe.Level
			uc.log.Warnf("breaker open, aborting %s at level %d", iso3, boe.Level)
			break
		}
		stepErrs = append(stepErrs, NewStepError(iso3, level, StageUnknown, err))
		uc.log.Errorf("unexpected import failure for %s level %d: %v", iso3, level, err)
	}
	cs.DurationMS = time.Since(t0).Milliseconds()
	return cs, stepErrs, nil
}

// importLevel 导入 (country, level) 一层：ID 发现 → 批量要素 → diff-upsert。
// iso3 为空表示不按国家过滤（level 0 专用）。br 为 nil 时不做熔断记账。
// 批取失败不打断本层：记一条步骤失败、熔断记账后继续下一批；返回的 error
// 只会是取消或熔断打开。
func (uc *ImportUsecase) importLevel(ctx context.Context, iso3 string, level int, br *CountryBreaker) (int, int, []*StepError, error) {
	if br != nil {
		br.EnterLevel(level)
	}

	ids, err := uc.src.ObjectIDs(ctx, level, iso3)
	if err != nil {
		if isCanceled(err) {
			return 0, 0, nil, err
		}
		stepErrs := []*StepError{uc.stepError(iso3, level, StageIDs, err)}
		if br != nil {
			if boe := br.Failure(err, rawOf(err)); boe != nil {
				return 0, 0, stepErrs, boe
			}
		}
		return 0, 0, stepErrs, nil
	}
	if len(ids) == 0 {
		return 0, 0, nil, nil
	}

	batchSize := uc.conf.BatchSize
	if level >= deepLevelThreshold {
		batchSize = uc.conf.DeepBatchSize
	}

	var stepErrs []*StepError
	feats := make([]Feature, 0, len(ids))
	for off := 0; off < len(ids); off += batchSize {
		end := off + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk, err := uc.src.Features(ctx, level, ids[off:end], level > 0)
		if err != nil {
			if isCanceled(err) {
				return 0, 0, stepErrs, err
			}
			stepErrs = append(stepErrs, uc.stepError(iso3, level, fetchStage(err), err))
			if br != nil {
				if boe := br.Failure(err, rawOf(err)); boe != nil {
					return 0, 0, stepErrs, boe
				}
			}
			continue
		}
		if br != nil {
			br.Success()
		}
		feats = append(feats, chunk...)
	}

	inserts, updates, err := uc.diff(ctx, iso3, level, feats)
	if err != nil {
		stepErrs = append(stepErrs, uc.stepError(iso3, level, StageUnknown, err))
		return 0, 0, stepErrs, nil
	}
	if len(inserts)+len(updates) > 0 {
		if err := uc.repo.SaveBatch(ctx, inserts, updates); err != nil {
			stepErrs = append(stepErrs, uc.stepError(iso3, level, StageUnknown, err))
			return 0, 0, stepErrs, nil
		}
	}
	metrics.ImportRowsTotal.WithLabelValues("inserted").Add(float64(len(inserts)))
	metrics.ImportRowsTotal.WithLabelValues("updated").Add(float64(len(updates)))
	uc.log.WithContext(ctx).Infof("imported %s level %d: %d features, +%d ~%d",
		displayISO3(iso3), level, len(feats), len(inserts), len(updates))
	return len(inserts), len(updates), stepErrs, nil
}

// diff 将拉取的要素与库中现状对比，产出插入/更新集合。
// 比较基于 WKT 文本指纹与 {parent, name, levelLabel}，不做深层几何相等判断。
func (uc *ImportUsecase) diff(ctx context.Context, iso3 string, level int, feats []Feature) ([]*AdminArea, []*AdminArea, error) {
	existingRows, err := uc.repo.ListByCountryLevel(ctx, iso3, level)
	if err != nil {
		return nil, nil, err
	}
	existing := make(map[string]*AdminArea, len(existingRows))
	for _, row := range existingRows {
		existing[row.Code] = row
	}

	var parents map[string]*AdminArea
	if level > 0 {
		parentRows, err := uc.repo.ListByCountryLevel(ctx, iso3, level-1)
		if err != nil {
			return nil, nil, err
		}
		parents = make(map[string]*AdminArea, len(parentRows))
		for _, row := range parentRows {
			parents[row.Code] = row
		}
	}

	now := uc.now().Unix()
	var inserts, updates []*AdminArea
	for _, f := range feats {
		code := strings.TrimSpace(f.Code)
		name := strings.TrimSpace(f.Name)
		if code == "" || name == "" {
			continue // 无有效编码/名称的要素直接跳过
		}

		var wkt string
		if len(f.Rings) > 0 {
			wkt = FromESRIRings(f.Rings).Normalize().WKT()
		}

		// 上游缺失匹配的上级编码时 parent 置空：可恢复，不算失败
		var parentID *int64
		if level > 0 {
			if p, ok := parents[strings.TrimSpace(f.ParentCode)]; ok {
				id := p.ID
				parentID = &id
			}
		}

		country := strings.TrimSpace(f.CountryISO3)
		if level == 0 {
			country = code
		}

		if ex, ok := existing[code]; ok {
			if sameRow(ex, parentID, name, f.LevelLabel, wkt) {
				continue
			}
			ex.ParentID = parentID
			ex.Name = name
			ex.LevelLabel = f.LevelLabel
			ex.GeomWKT = wkt
			ex.Source = uc.conf.Source
			ex.UpdatedAt = now
			updates = append(updates, ex)
			continue
		}
		inserts = append(inserts, &AdminArea{
			CountryISO3: country,
			Level:       level,
			ParentID:    parentID,
			Code:        code,
			Name:        name,
			LevelLabel:  f.LevelLabel,
			GeomWKT:     wkt,
			Source:      uc.conf.Source,
			UpdatedAt:   now,
		})
	}
	return inserts, updates, nil
}

func sameRow(ex *AdminArea, parentID *int64, name, label, wkt string) bool {
	if !sameParent(ex.ParentID, parentID) {
		return false
	}
	return ex.Name == name && ex.LevelLabel == label && ex.GeomWKT == wkt
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// stepError 保留既有 StepError，否则按底层错误归类构造。
func (uc *ImportUsecase) stepError(iso3 string, level int, stage Stage, err error) *StepError {
	var se *StepError
	if errors.As(err, &se) {
		return se
	}
	return NewStepError(displayISO3(iso3), level, stage, err)
}

// fetchStage 要素批取失败的环节归类：载荷解析失败记 parse，其余记 features。
func fetchStage(err error) Stage {
	var pc ParseFailureCarrier
	if errors.As(err, &pc) && pc.ParseFailure() {
		return StageParse
	}
	return StageFeatures
}

func breakerStep(err error) *StepError {
	var boe *BreakerOpenError
	if !errors.As(err, &boe) {
		return &StepError{Stage: StageBreaker, Message: err.Error()}
	}
	return &StepError{
		Country:    boe.Country,
		Level:      boe.Level,
		Stage:      StageBreaker,
		RawSnippet: boe.RawLast,
		Message:    boe.Error(),
	}
}

func rawOf(err error) string {
	var rc RawPayloadCarrier
	if errors.As(err, &rc) {
		return rc.RawPayload()
	}
	return ""
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// displayISO3 level 0 的全局导入没有具体国家，汇总里以 "*" 呈现。
func displayISO3(iso3 string) string {
	if iso3 == "" {
		return "*"
	}
	return iso3
}
