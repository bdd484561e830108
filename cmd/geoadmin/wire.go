//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"geoadmin-go/internal/arcgis"
	"geoadmin-go/internal/conf"
	"geoadmin-go/internal/data"
	"geoadmin-go/internal/geocode"
	"geoadmin-go/internal/server"
	"geoadmin-go/internal/service"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Bootstrap, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		wire.FieldsOf(new(*conf.Bootstrap), "Server", "Data", "Upstream", "Geocode"),
		server.ProviderSet,
		data.ProviderSet,
		arcgis.ProviderSet,
		geocode.ProviderSet,
		service.ProviderSet,
		newApp,
	))
}
