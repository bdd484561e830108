package biz

import (
	"context"
	"fmt"
)

// memRepo 内存版 AdminAreaRepo，导入/解析用例共用。
type memRepo struct {
	nextID  int64
	rows    map[int64]*AdminArea
	leaf    *AdminArea       // FindDeepestContaining 的固定返回
	geojson map[int64]string // GeometryGeoJSON 的几何文本
	lastTol float64          // 最近一次几何查询收到的容差（度）
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[int64]*AdminArea{}, geojson: map[int64]string{}}
}

func (m *memRepo) put(a AdminArea) *AdminArea {
	m.nextID++
	a.ID = m.nextID
	m.rows[a.ID] = &a
	return &a
}

func (m *memRepo) ListByCountryLevel(_ context.Context, iso3 string, level int) ([]*AdminArea, error) {
	var out []*AdminArea
	for id := int64(1); id <= m.nextID; id++ {
		row, ok := m.rows[id]
		if !ok || row.Level != level {
			continue
		}
		if iso3 != "" && row.CountryISO3 != iso3 {
			continue
		}
		c := *row
		out = append(out, &c)
	}
	return out, nil
}

func (m *memRepo) ListCountries(ctx context.Context) ([]*AdminArea, error) {
	return m.ListByCountryLevel(ctx, "", 0)
}

func (m *memRepo) SaveBatch(_ context.Context, inserts, updates []*AdminArea) error {
	for _, a := range inserts {
		c := *a
		m.nextID++
		c.ID = m.nextID
		m.rows[c.ID] = &c
	}
	for _, a := range updates {
		if _, ok := m.rows[a.ID]; !ok {
			return fmt.Errorf("update of unknown id %d", a.ID)
		}
		c := *a
		m.rows[c.ID] = &c
	}
	return nil
}

func (m *memRepo) DeleteAll(context.Context) error {
	m.rows = map[int64]*AdminArea{}
	m.nextID = 0
	return nil
}

func (m *memRepo) CountAll(context.Context) (int64, error) {
	return int64(len(m.rows)), nil
}

func (m *memRepo) FindDeepestContaining(context.Context, string, float64, float64) (*AdminArea, error) {
	if m.leaf == nil {
		return nil, nil
	}
	c := *m.leaf
	return &c, nil
}

func (m *memRepo) GetByID(_ context.Context, id int64) (*AdminArea, error) {
	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	c := *row
	return &c, nil
}

// AncestorsOf 刻意按叶→根顺序返回，验证调用方自行排序。
func (m *memRepo) AncestorsOf(_ context.Context, leafID int64) ([]*AdminArea, error) {
	var out []*AdminArea
	id := leafID
	for {
		row, ok := m.rows[id]
		if !ok {
			break
		}
		c := *row
		out = append(out, &c)
		if row.ParentID == nil {
			break
		}
		id = *row.ParentID
	}
	return out, nil
}

func (m *memRepo) GeometryGeoJSON(_ context.Context, id int64, toleranceDeg float64) (*GeometryFeatureRow, error) {
	m.lastTol = toleranceDeg
	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return &GeometryFeatureRow{
		ID:      row.ID,
		Code:    row.Code,
		Name:    row.Name,
		Level:   row.Level,
		GeoJSON: m.geojson[id],
	}, nil
}

// fakeSource 内存版 FeatureSource。对象 ID 即该层要素切片的下标。
type fakeSource struct {
	byLevel   map[int][]Feature
	idsErr    func(level int, iso3 string) error
	featErr   func(level, call int) error
	featCalls int
}

func (f *fakeSource) ObjectIDs(_ context.Context, level int, iso3 string) ([]int64, error) {
	if f.idsErr != nil {
		if err := f.idsErr(level, iso3); err != nil {
			return nil, err
		}
	}
	var ids []int64
	for i, ft := range f.byLevel[level] {
		if iso3 == "" || ft.CountryISO3 == iso3 {
			ids = append(ids, int64(i))
		}
	}
	return ids, nil
}

func (f *fakeSource) Features(_ context.Context, level int, ids []int64, _ bool) ([]Feature, error) {
	f.featCalls++
	if f.featErr != nil {
		if err := f.featErr(level, f.featCalls); err != nil {
			return nil, err
		}
	}
	out := make([]Feature, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.byLevel[level][id])
	}
	return out, nil
}

// fakeGeocoder 固定坐标/错误的地址解析协作方。
type fakeGeocoder struct {
	lat, lon float64
	err      error
	lastAddr string
}

func (g *fakeGeocoder) Geocode(_ context.Context, address, _ string) (float64, float64, error) {
	g.lastAddr = address
	if g.err != nil {
		return 0, 0, g.err
	}
	return g.lat, g.lon, nil
}

// 测试里充当上游传输失败的错误类型。
type fakeHTTPErr struct {
	status int
	raw    string
}

func (e *fakeHTTPErr) Error() string             { return fmt.Sprintf("http %d", e.status) }
func (e *fakeHTTPErr) HTTPStatus() (int, string) { return e.status, "Bad Gateway" }
func (e *fakeHTTPErr) RawPayload() string        { return e.raw }

type fakeParseErr struct{}

func (e *fakeParseErr) Error() string      { return "mangled payload" }
func (e *fakeParseErr) ParseFailure() bool { return true }
