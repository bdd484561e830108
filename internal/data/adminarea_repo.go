package data

import (
	"context"
	"database/sql"
	"fmt"

	"geoadmin-go/internal/biz"
)

// NewAdminAreaRepo 返回基于原生 SQL 的存储实现。
func NewAdminAreaRepo(d *Data) biz.AdminAreaRepo {
	return &adminAreaRepo{data: d}
}

type adminAreaRepo struct {
	data *Data
}

func (r *adminAreaRepo) sqlDB() *sql.DB {
	return r.data.SQLDB()
}

// spatialDB 空间查询仅在 postgres 下可用，否则返回 nil（调用方降级为空结果）。
func (r *adminAreaRepo) spatialDB() *sql.DB {
	if !r.data.SpatialCapable() {
		return nil
	}
	return r.sqlDB()
}

const areaColumns = `id, country_iso3, level, parent_id, code, name,
       COALESCE(level_label, '') AS level_label,
       COALESCE(geom_wkt, '')    AS geom_wkt,
       COALESCE(source, '')      AS source,
       updated_at`

func scanArea(row interface{ Scan(...any) error }) (*biz.AdminArea, error) {
	var a biz.AdminArea
	var parent sql.NullInt64
	if err := row.Scan(&a.ID, &a.CountryISO3, &a.Level, &parent, &a.Code, &a.Name,
		&a.LevelLabel, &a.GeomWKT, &a.Source, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if parent.Valid {
		id := parent.Int64
		a.ParentID = &id
	}
	return &a, nil
}

func (r *adminAreaRepo) queryAreas(ctx context.Context, q string, args ...any) ([]*biz.AdminArea, error) {
	db := r.spatialDB()
	if db == nil {
		return []*biz.AdminArea{}, nil
	}
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*biz.AdminArea
	for rows.Next() {
		a, err := scanArea(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByCountryLevel 空 iso3 表示不按国家过滤（level 0 全量导入用）。
func (r *adminAreaRepo) ListByCountryLevel(ctx context.Context, iso3 string, level int) ([]*biz.AdminArea, error) {
	if iso3 == "" {
		return r.queryAreas(ctx,
			"SELECT "+areaColumns+" FROM admin_area WHERE level = $1", level)
	}
	return r.queryAreas(ctx,
		"SELECT "+areaColumns+" FROM admin_area WHERE country_iso3 = $1 AND level = $2", iso3, level)
}

func (r *adminAreaRepo) ListCountries(ctx context.Context) ([]*biz.AdminArea, error) {
	return r.queryAreas(ctx,
		"SELECT "+areaColumns+" FROM admin_area WHERE level = 0 ORDER BY country_iso3")
}

// SaveBatch 一层的全部变更在同一事务内落库；几何由 WKT 经
// ST_GeomFromText(…, 4326) 写入 geom 列，WKT 本身同步存为指纹。
func (r *adminAreaRepo) SaveBatch(ctx context.Context, inserts, updates []*biz.AdminArea) error {
	db := r.spatialDB()
	if db == nil {
		return fmt.Errorf("admin area writes require a postgres datasource")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insertSQL = `
INSERT INTO admin_area
  (country_iso3, level, parent_id, code, name, level_label, geom, geom_wkt, source, created_at, updated_at)
VALUES
  ($1, $2, $3, $4, $5, $6,
   CASE WHEN $7 = '' THEN NULL ELSE ST_Multi(ST_GeomFromText($7, 4326)) END,
   $7, $8, $9, $9)`
	const updateSQL = `
UPDATE admin_area SET
  parent_id   = $1,
  name        = $2,
  level_label = $3,
  geom        = CASE WHEN $4 = '' THEN NULL ELSE ST_Multi(ST_GeomFromText($4, 4326)) END,
  geom_wkt    = $4,
  source      = $5,
  updated_at  = $6
WHERE id = $7`

	for _, a := range inserts {
		if _, err := tx.ExecContext(ctx, insertSQL,
			a.CountryISO3, a.Level, nullableID(a.ParentID), a.Code, a.Name, a.LevelLabel,
			a.GeomWKT, a.Source, a.UpdatedAt); err != nil {
			return fmt.Errorf("insert %s/%d/%s: %w", a.CountryISO3, a.Level, a.Code, err)
		}
	}
	for _, a := range updates {
		if _, err := tx.ExecContext(ctx, updateSQL,
			nullableID(a.ParentID), a.Name, a.LevelLabel, a.GeomWKT, a.Source, a.UpdatedAt,
			a.ID); err != nil {
			return fmt.Errorf("update id %d: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

func nullableID(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

// DeleteAll 整表清空（hard reset）。
func (r *adminAreaRepo) DeleteAll(ctx context.Context) error {
	db := r.spatialDB()
	if db == nil {
		return fmt.Errorf("admin area writes require a postgres datasource")
	}
	_, err := db.ExecContext(ctx, "TRUNCATE admin_area RESTART IDENTITY CASCADE")
	return err
}

func (r *adminAreaRepo) CountAll(ctx context.Context) (int64, error) {
	db := r.spatialDB()
	if db == nil {
		return 0, nil
	}
	var n int64
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM admin_area").Scan(&n)
	return n, err
}

// FindDeepestContaining 空间包含判定交给存储引擎：同国家内含该点的行按
// level 降序取最深一条。同层多行同时命中时以 id 升序裁决（上游未定义，
// 这里只求确定性，不承诺语义）。
func (r *adminAreaRepo) FindDeepestContaining(ctx context.Context, iso3 string, lat, lon float64) (*biz.AdminArea, error) {
	db := r.spatialDB()
	if db == nil {
		return nil, nil
	}
	q := "SELECT " + areaColumns + `
FROM admin_area
WHERE country_iso3 = $1
  AND geom IS NOT NULL
  AND ST_Contains(geom, ST_SetSRID(ST_Point($2, $3), 4326))
ORDER BY level DESC, id ASC
LIMIT 1`
	a, err := scanArea(db.QueryRowContext(ctx, q, iso3, lon, lat))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *adminAreaRepo) GetByID(ctx context.Context, id int64) (*biz.AdminArea, error) {
	db := r.spatialDB()
	if db == nil {
		return nil, nil
	}
	a, err := scanArea(db.QueryRowContext(ctx,
		"SELECT "+areaColumns+" FROM admin_area WHERE id = $1", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// AncestorsOf 单次递归查询沿 parent_id 上溯（含叶子自身）。结果无序，
// 由调用方按 level 排序。
func (r *adminAreaRepo) AncestorsOf(ctx context.Context, leafID int64) ([]*biz.AdminArea, error) {
	q := `
WITH RECURSIVE chain AS (
  SELECT id, country_iso3, level, parent_id, code, name, level_label, geom_wkt, source, updated_at
  FROM admin_area WHERE id = $1
  UNION ALL
  SELECT a.id, a.country_iso3, a.level, a.parent_id, a.code, a.name, a.level_label, a.geom_wkt, a.source, a.updated_at
  FROM admin_area a
  JOIN chain c ON a.id = c.parent_id
)
SELECT id, country_iso3, level, parent_id, code, name,
       COALESCE(level_label, '') AS level_label,
       COALESCE(geom_wkt, '')    AS geom_wkt,
       COALESCE(source, '')      AS source,
       updated_at
FROM chain`
	return r.queryAreas(ctx, q, leafID)
}

// GeometryGeoJSON 读取并按容差（度）做拓扑保持简化后的 GeoJSON 序列化；
// 简化结果的 SRID 重申为 4326。结果按 (id, 容差) 进缓存。
func (r *adminAreaRepo) GeometryGeoJSON(ctx context.Context, id int64, toleranceDeg float64) (*biz.GeometryFeatureRow, error) {
	db := r.spatialDB()
	if db == nil {
		return nil, nil
	}
	key := fmt.Sprintf("admin_area:geojson:%d:%g", id, toleranceDeg)
	if v, err := r.data.Cache().Get(ctx, key); err == nil {
		if row, ok := v.(*biz.GeometryFeatureRow); ok {
			return row, nil
		}
	}

	q := `
SELECT id, code, name, level,
  CASE
    WHEN geom IS NULL THEN ''
    WHEN $2 > 0 THEN COALESCE(ST_AsGeoJSON(ST_SetSRID(ST_SimplifyPreserveTopology(geom, $2), 4326), 6), '')
    ELSE COALESCE(ST_AsGeoJSON(geom, 6), '')
  END AS geojson
FROM admin_area WHERE id = $1`
	var row biz.GeometryFeatureRow
	err := db.QueryRowContext(ctx, q, id, toleranceDeg).
		Scan(&row.ID, &row.Code, &row.Name, &row.Level, &row.GeoJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	_ = r.data.Cache().Set(ctx, key, &row)
	return &row, nil
}
