package data

import (
	"context"
	"database/sql"
	"fmt"
)

// admin_area 表结构：
// (country_iso3, level, code) 唯一；parent_id 自引用同国家上一层级；
// geom 为 SRID 4326 的 MultiPolygon，geom_wkt 仅作变更指纹。

const ddlPostgres = `
CREATE TABLE IF NOT EXISTS admin_area (
  id           BIGSERIAL PRIMARY KEY,
  country_iso3 TEXT    NOT NULL,
  level        INT     NOT NULL,
  parent_id    BIGINT  REFERENCES admin_area(id),
  code         TEXT    NOT NULL,
  name         TEXT    NOT NULL,
  level_label  TEXT    NOT NULL DEFAULT '',
  geom         geometry(MultiPolygon, 4326),
  geom_wkt     TEXT    NOT NULL DEFAULT '',
  source       TEXT    NOT NULL DEFAULT '',
  created_at   BIGINT  NOT NULL DEFAULT 0,
  updated_at   BIGINT  NOT NULL DEFAULT 0,
  UNIQUE (country_iso3, level, code)
)`

const ddlMySQL = `
CREATE TABLE IF NOT EXISTS admin_area (
  id           BIGINT PRIMARY KEY AUTO_INCREMENT,
  country_iso3 VARCHAR(3)   NOT NULL,
  level        INT          NOT NULL,
  parent_id    BIGINT,
  code         VARCHAR(191) NOT NULL,
  name         VARCHAR(255) NOT NULL,
  level_label  VARCHAR(255) NOT NULL DEFAULT '',
  geom_wkt     LONGTEXT,
  source       VARCHAR(64)  NOT NULL DEFAULT '',
  created_at   BIGINT       NOT NULL DEFAULT 0,
  updated_at   BIGINT       NOT NULL DEFAULT 0,
  UNIQUE KEY uk_country_level_code (country_iso3, level, code)
)`

const ddlSqlite = `
CREATE TABLE IF NOT EXISTS admin_area (
  id           INTEGER PRIMARY KEY AUTOINCREMENT,
  country_iso3 TEXT    NOT NULL,
  level        INTEGER NOT NULL,
  parent_id    INTEGER REFERENCES admin_area(id),
  code         TEXT    NOT NULL,
  name         TEXT    NOT NULL,
  level_label  TEXT    NOT NULL DEFAULT '',
  geom_wkt     TEXT    NOT NULL DEFAULT '',
  source       TEXT    NOT NULL DEFAULT '',
  created_at   INTEGER NOT NULL DEFAULT 0,
  updated_at   INTEGER NOT NULL DEFAULT 0,
  UNIQUE (country_iso3, level, code)
)`

// Migrate 建表与索引，幂等。postgres 之外的驱动只建非空间表（调试/降级场景）。
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	switch driver {
	case "postgres", "postgresql", "pgx":
		// PostGIS 扩展可能已由 DBA 预装，失败不致命
		_, _ = db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS postgis")
		if _, err := db.ExecContext(ctx, ddlPostgres); err != nil {
			return fmt.Errorf("create admin_area: %w", err)
		}
		stmts := []string{
			"CREATE INDEX IF NOT EXISTS idx_admin_area_country_level ON admin_area (country_iso3, level)",
			"CREATE INDEX IF NOT EXISTS idx_admin_area_parent ON admin_area (parent_id)",
			"CREATE INDEX IF NOT EXISTS idx_admin_area_geom ON admin_area USING GIST (geom)",
		}
		for _, s := range stmts {
			if _, err := db.ExecContext(ctx, s); err != nil {
				return fmt.Errorf("create index: %w", err)
			}
		}
		return nil
	case "mysql":
		// mysql 不支持 CREATE INDEX IF NOT EXISTS，唯一键随建表语句创建
		_, err := db.ExecContext(ctx, ddlMySQL)
		if err != nil {
			return fmt.Errorf("create admin_area: %w", err)
		}
		return nil
	default:
		if _, err := db.ExecContext(ctx, ddlSqlite); err != nil {
			return fmt.Errorf("create admin_area: %w", err)
		}
		_, err := db.ExecContext(ctx,
			"CREATE INDEX IF NOT EXISTS idx_admin_area_country_level ON admin_area (country_iso3, level)")
		return err
	}
}
