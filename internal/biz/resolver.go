package biz

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/go-kratos/kratos/v2/log"
)

// Strategy 祖先链重建策略。两种策略对同一叶子必须给出完全一致的路径。
type Strategy string

const (
	// StrategyIterative 自叶子起逐跳回查 parent_id（每跳一次往返）。
	StrategyIterative Strategy = "iterative"
	// StrategyRecursive 一次递归查询取回全部祖先，由调用方按 level 升序排序。
	StrategyRecursive Strategy = "recursive"
)

// ParseStrategy 解析策略参数，未知值回落到 recursive。
func ParseStrategy(s string) Strategy {
	if Strategy(s) == StrategyIterative {
		return StrategyIterative
	}
	return StrategyRecursive
}

// metersPerDegreeLat 纬度一度的近似米数，用于把简化容差从米折算到度。
const metersPerDegreeLat = 111320.0

// ZoomToleranceMeters 缩放级别到简化容差（米）的固定阶梯：越粗的缩放容差越大。
func ZoomToleranceMeters(zoom int) float64 {
	switch {
	case zoom <= 3:
		return 20000
	case zoom <= 5:
		return 10000
	case zoom <= 7:
		return 5000
	case zoom <= 9:
		return 1000
	case zoom <= 11:
		return 300
	case zoom <= 13:
		return 80
	default:
		return 15
	}
}

// GeometryFeature 对外输出的 GeoJSON Feature；无几何时 Geometry 为 null。
type GeometryFeature struct {
	Type       string          `json:"type"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// Geocoder 地址→坐标协作方。无候选时返回单一明确错误，本核心不重试。
type Geocoder interface {
	Geocode(ctx context.Context, address, lang string) (lat, lon float64, err error)
}

// ResolverUsecase 层级解析：点 → 最深包含多边形 → 根到叶的祖先链。
type ResolverUsecase struct {
	repo AdminAreaRepo
	geo  Geocoder
	log  *log.Helper
}

func NewResolverUsecase(repo AdminAreaRepo, geo Geocoder, logger log.Logger) *ResolverUsecase {
	return &ResolverUsecase{repo: repo, geo: geo, log: log.NewHelper(logger)}
}

// ResolvePoint 返回包含该点的最深节点的根到叶路径（首元素恒为 level 0）。
// 无命中时返回仅含合成国家根 {level:0, code:iso3, name:iso3} 的单元素路径。
func (uc *ResolverUsecase) ResolvePoint(ctx context.Context, lat, lon float64, iso3 string, st Strategy) ([]*AdminArea, error) {
	leaf, err := uc.repo.FindDeepestContaining(ctx, iso3, lat, lon)
	if err != nil {
		return nil, err
	}
	if leaf == nil {
		return []*AdminArea{syntheticRoot(iso3)}, nil
	}

	var path []*AdminArea
	switch st {
	case StrategyIterative:
		path, err = uc.walkIterative(ctx, leaf)
	default:
		path, err = uc.walkRecursive(ctx, leaf)
	}
	if err != nil {
		return nil, err
	}
	// 叶子链断裂（没挂到真实国家行）时补上合成根，保证路径从 level 0 开始
	if len(path) == 0 || path[0].Level != 0 {
		path = append([]*AdminArea{syntheticRoot(iso3)}, path...)
	}
	return path, nil
}

// walkIterative 逐跳上溯：leaf → parent → … → 根，再反转为根前序。
func (uc *ResolverUsecase) walkIterative(ctx context.Context, leaf *AdminArea) ([]*AdminArea, error) {
	path := []*AdminArea{leaf}
	cur := leaf
	for cur.ParentID != nil {
		parent, err := uc.repo.GetByID(ctx, *cur.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			break // 悬空 parent_id，按链断裂处理
		}
		path = append(path, parent)
		cur = parent
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// walkRecursive 一次递归查询取回含叶子在内的祖先集合；批量结果无顺序保证，
// 这里按 level 升序排序得到根前序。
func (uc *ResolverUsecase) walkRecursive(ctx context.Context, leaf *AdminArea) ([]*AdminArea, error) {
	rows, err := uc.repo.AncestorsOf(ctx, leaf.ID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		rows = []*AdminArea{leaf}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Level < rows[j].Level })
	return rows, nil
}

// ResolveAddress 先经地址解析协作方取坐标，再走 ResolvePoint。
func (uc *ResolverUsecase) ResolveAddress(ctx context.Context, address, lang, iso3 string, st Strategy) ([]*AdminArea, error) {
	lat, lon, err := uc.geo.Geocode(ctx, address, lang)
	if err != nil {
		return nil, err
	}
	return uc.ResolvePoint(ctx, lat, lon, iso3, st)
}

// GeometryGeoJSON 投影单个节点的几何。容差选取：显式米值优先（下限 0），
// 否则按 zoom 阶梯取值，两者都缺省则不简化；正容差折算为度后交给存储层的
// 拓扑保持简化原语，输出前 SRID 重申为 4326（由存储层完成）。
func (uc *ResolverUsecase) GeometryGeoJSON(ctx context.Context, id int64, zoom *int, toleranceMeters *float64) (*GeometryFeature, error) {
	var meters float64
	switch {
	case toleranceMeters != nil:
		meters = *toleranceMeters
		if meters < 0 {
			meters = 0
		}
	case zoom != nil:
		meters = ZoomToleranceMeters(*zoom)
	}
	tolDeg := 0.0
	if meters > 0 {
		tolDeg = meters / metersPerDegreeLat
	}

	row, err := uc.repo.GeometryGeoJSON(ctx, id, tolDeg)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrAreaNotFound
	}
	f := &GeometryFeature{
		Type: "Feature",
		Properties: map[string]any{
			"id":    row.ID,
			"code":  row.Code,
			"name":  row.Name,
			"level": row.Level,
		},
		Geometry: json.RawMessage("null"),
	}
	if row.GeoJSON != "" {
		f.Geometry = json.RawMessage(row.GeoJSON)
	}
	return f, nil
}

// syntheticRoot 合成国家根：未命中任何多边形时的兜底节点，不落库。
func syntheticRoot(iso3 string) *AdminArea {
	return &AdminArea{
		Level:       0,
		CountryISO3: iso3,
		Code:        iso3,
		Name:        iso3,
	}
}
