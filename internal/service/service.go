package service

import (
	"geoadmin-go/internal/biz"
	"geoadmin-go/internal/conf"

	"github.com/google/wire"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(
	NewAdminAreaService,
	NewImportConfig,
	biz.NewImportUsecase,
	biz.NewResolverUsecase,
)

// NewImportConfig 由 bootstrap 配置装配导入管线参数。
func NewImportConfig(bc *conf.Bootstrap) biz.ImportConfig {
	c := biz.ImportConfig{}
	if bc.Import != nil {
		c.MaxLevel = bc.Import.MaxLevel
		c.BatchSize = bc.Import.BatchSize
		c.DeepBatchSize = bc.Import.DeepBatchSize
		c.BreakerMinLevel = bc.Import.BreakerMinLevel
		c.BreakerMaxFailures = bc.Import.BreakerMaxFailures
	}
	if bc.Upstream != nil {
		c.Source = bc.Upstream.Source
	}
	return c
}
