package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"geoadmin-go/internal/biz"
	"geoadmin-go/internal/data"
	"geoadmin-go/internal/metrics"
)

// AdminAreaService HTTP 入口背后的服务层：参数校验 + usecase 调用 + DTO 映射。
type AdminAreaService struct {
	log      *log.Helper
	resolver *biz.ResolverUsecase
	importer *biz.ImportUsecase
	data     *data.Data
}

var serviceStartTime = time.Now()

func NewAdminAreaService(logger log.Logger, resolver *biz.ResolverUsecase, importer *biz.ImportUsecase, data *data.Data) *AdminAreaService {
	return &AdminAreaService{
		log:      log.NewHelper(logger),
		resolver: resolver,
		importer: importer,
		data:     data,
	}
}

// PathNode 解析路径中的一个节点（根前序）。合成根没有 id。
type PathNode struct {
	ID          int64  `json:"id,omitempty"`
	CountryISO3 string `json:"country_iso3"`
	Level       int    `json:"level"`
	ParentID    *int64 `json:"parent_id,omitempty"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	LevelLabel  string `json:"level_label,omitempty"`
	HasGeometry bool   `json:"has_geometry"`
}

// ResolveReply 点/地址解析响应。
type ResolveReply struct {
	CountryISO3 string      `json:"country_iso3"`
	Path        []*PathNode `json:"path"`
}

// ImportRequest 触发一次导入。
type ImportRequest struct {
	HardReset bool   `json:"hard_reset"`
	Country   string `json:"country"`
	MaxLevel  int    `json:"max_level"`
}

// StatusReply 运行状态探针。
type StatusReply struct {
	Version  string `json:"version"`
	DBStatus string `json:"db_status"`
	Uptime   string `json:"uptime"`
}

// ResolvePoint 点 → 根到叶路径。
func (s *AdminAreaService) ResolvePoint(ctx context.Context, lat, lon float64, iso3, strategy string) (*ResolveReply, error) {
	iso3, err := normalizeISO3(iso3)
	if err != nil {
		return nil, err
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, errors.New(400, biz.BadRequest, "coordinates out of range")
	}
	metrics.ResolveRequestsTotal.Inc()
	path, err := s.resolver.ResolvePoint(ctx, lat, lon, iso3, biz.ParseStrategy(strategy))
	if err != nil {
		return nil, err
	}
	return &ResolveReply{CountryISO3: iso3, Path: mapPath(path)}, nil
}

// ResolveAddress 地址 → 坐标（协作方）→ 根到叶路径。
func (s *AdminAreaService) ResolveAddress(ctx context.Context, address, lang, iso3, strategy string) (*ResolveReply, error) {
	iso3, err := normalizeISO3(iso3)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(address) == "" {
		return nil, errors.New(400, biz.BadRequest, "address is required")
	}
	metrics.ResolveRequestsTotal.Inc()
	path, err := s.resolver.ResolveAddress(ctx, address, lang, iso3, biz.ParseStrategy(strategy))
	if err != nil {
		return nil, err
	}
	return &ResolveReply{CountryISO3: iso3, Path: mapPath(path)}, nil
}

// Geometry 单节点几何投影（可选 zoom / 容差米）。
func (s *AdminAreaService) Geometry(ctx context.Context, id int64, zoom *int, toleranceMeters *float64) (*biz.GeometryFeature, error) {
	if id <= 0 {
		return nil, errors.New(400, biz.BadRequest, "id must be positive")
	}
	return s.resolver.GeometryGeoJSON(ctx, id, zoom, toleranceMeters)
}

// Import 同步执行一次导入并返回汇总。
func (s *AdminAreaService) Import(ctx context.Context, req *ImportRequest) (*biz.ImportSummary, error) {
	opts := biz.ImportOptions{HardReset: req.HardReset, MaxLevel: req.MaxLevel}
	if req.Country != "" {
		iso3, err := normalizeISO3(req.Country)
		if err != nil {
			return nil, err
		}
		opts.CountryISO3 = iso3
	}
	s.log.WithContext(ctx).Infof("import requested: hard_reset=%v country=%q max_level=%d",
		req.HardReset, opts.CountryISO3, req.MaxLevel)
	return s.importer.ImportAll(ctx, opts)
}

// Status 就绪探针。
func (s *AdminAreaService) Status(ctx context.Context) (*StatusReply, error) {
	uptime := time.Since(serviceStartTime).Round(time.Second).String()
	dbStatus := "unknown"
	if s.data != nil && s.data.SQLDB() != nil {
		if err := s.data.SQLDB().PingContext(ctx); err == nil {
			dbStatus = "ok"
		} else {
			dbStatus = "unavailable"
		}
	}
	return &StatusReply{Version: "dev", DBStatus: dbStatus, Uptime: uptime}, nil
}

func mapPath(path []*biz.AdminArea) []*PathNode {
	out := make([]*PathNode, 0, len(path))
	for _, a := range path {
		out = append(out, &PathNode{
			ID:          a.ID,
			CountryISO3: a.CountryISO3,
			Level:       a.Level,
			ParentID:    a.ParentID,
			Code:        a.Code,
			Name:        a.Name,
			LevelLabel:  a.LevelLabel,
			HasGeometry: a.HasGeometry(),
		})
	}
	return out
}

func normalizeISO3(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 3 {
		return "", errors.New(400, biz.BadRequest, "country must be a 3-letter ISO code")
	}
	return s, nil
}
