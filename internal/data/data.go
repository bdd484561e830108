package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"geoadmin-go/internal/conf"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/store/go_cache/v4"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/google/wire"
	gocache "github.com/patrickmn/go-cache"
	"github.com/qustavo/sqlhooks/v2"

	"modernc.org/sqlite"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewSqlDriver,
	NewAdminAreaRepo,
)

// Data 数据层共享资源：连接池与进程内缓存。
type Data struct {
	cache  cache.CacheInterface[any]
	conf   *conf.Data
	sqlDrv *entsql.Driver
}

// SQLDB 返回共享的 *sql.DB（由 ent 方言驱动管理的连接池）。
func (d *Data) SQLDB() *sql.DB {
	if d.sqlDrv != nil {
		return d.sqlDrv.DB()
	}
	return nil
}

// Cache 返回缓存客户端。
func (d *Data) Cache() cache.CacheInterface[any] {
	return d.cache
}

// SpatialCapable 空间原语（点包含、递归上溯、拓扑保持简化）仅 postgres 可用。
func (d *Data) SpatialCapable() bool {
	drv := d.conf.Database.Driver
	return drv == "postgres" || drv == "postgresql" || drv == "pgx"
}

// NewData .
func NewData(
	c *conf.Data,
	drv *entsql.Driver,
	logger log.Logger) (*Data, func(), error) {
	goCache := gocache.New(5*time.Minute, 10*time.Minute)
	store := go_cache.NewGoCache(goCache)
	cacheManager := cache.New[any](store)
	data := &Data{
		conf:   c,
		cache:  cacheManager,
		sqlDrv: drv,
	}
	cleanup := func() {
		log.NewHelper(logger).Info("closing the data resources")
		_ = drv.Close()
	}
	// 启动即建表/建索引；admin_area 的几何列不在 ent 类型系统内，DDL 手写
	if err := Migrate(context.Background(), drv.DB(), c.Database.Driver); err != nil {
		return nil, nil, err
	}
	return data, cleanup, nil
}

func NewSqlDriver(conf *conf.Data) *entsql.Driver {
	switch conf.Database.Driver {
	case "mysql":
		return newMySqlDriver(conf)
	case "sqlite3":
		return newSqliteDriver(conf)
	case "postgres", "postgresql", "pgx":
		return newPostgresDriver(conf)
	default:
		panic(fmt.Sprintf("unsupported driver: %s", conf.Database.Driver))
	}
}

func newSqliteDriver(conf *conf.Data) *entsql.Driver {
	sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite.Driver{}, &Hooks{}))
	db, err := sql.Open("sqlite3WithHooks", conf.Database.Source)
	if err != nil {
		panic(err)
	}
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(time.Minute * 10)
	drv := entsql.OpenDB("sqlite3", db)
	return drv
}

func newMySqlDriver(conf *conf.Data) *entsql.Driver {
	sql.Register("mysqlWithHooks", sqlhooks.Wrap(&mysql.MySQLDriver{}, &Hooks{}))
	cfg, err := mysql.ParseDSN(conf.Database.Source)
	if err != nil {
		panic(err)
	}
	DBName := cfg.DBName
	// 去除数据库名字
	cfg.DBName = ""
	tsource := cfg.FormatDSN()
	tdb, err := sql.Open("mysqlWithHooks", tsource)
	if err != nil {
		panic(err)
	}
	defer tdb.Close()
	// 自动创建数据库
	_, err = tdb.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s CHARACTER SET utf8mb4", DBName))
	if err != nil {
		panic(err)
	}

	db, err := sql.Open("mysqlWithHooks", conf.Database.Source)
	if err != nil {
		panic(err)
	}
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(time.Minute * 10)
	drv := entsql.OpenDB("mysql", db)
	return drv
}

func newPostgresDriver(conf *conf.Data) *entsql.Driver {
	sql.Register("pgxWithHooks", sqlhooks.Wrap(&stdlib.Driver{}, &Hooks{}))
	db, err := sql.Open("pgxWithHooks", conf.Database.Source)
	if err != nil {
		panic(err)
	}
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(time.Minute * 10)
	drv := entsql.OpenDB("pgx", db)
	return drv
}
