package server

import (
	"context"
	"strconv"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"

	"geoadmin-go/internal/biz"
	"geoadmin-go/internal/conf"
	"geoadmin-go/internal/metrics"
	"geoadmin-go/internal/service"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(NewHTTPServer)

// 编码相关逻辑已拆分到 encoders.go

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Server, svc *service.AdminAreaService, logger log.Logger) *http.Server {
	mws := []middleware.Middleware{
		recovery.Recovery(),
		logging.Server(logger),
	}
	if c.Http != nil && c.Http.RateRPS > 0 {
		mws = append(mws, limiterMiddleware(newTokenBucket(c.Http.RateRPS)))
	}
	var opts = []http.ServerOption{
		http.Middleware(mws...),
		http.ResponseEncoder(func(w http.ResponseWriter, r *http.Request, v any) error {
			if r != nil && r.URL.Query().Get("format") == "geojson" {
				return encodeGeoJSON(w, r, v)
			}
			return http.DefaultResponseEncoder(w, r, v)
		}),
		http.RequestDecoder(http.DefaultRequestDecoder),
	}
	if c.Http != nil {
		if c.Http.Network != "" {
			opts = append(opts, http.Network(c.Http.Network))
		}
		if c.Http.Addr != "" {
			opts = append(opts, http.Address(c.Http.Addr))
		}
		if d := conf.ParseDuration(c.Http.Timeout, 0); d > 0 {
			opts = append(opts, http.Timeout(d))
		}
	}
	srv := http.NewServer(opts...)
	registerRoutes(srv, svc)
	srv.Handle("/metrics", metrics.Handler())
	return srv
}

func registerRoutes(srv *http.Server, svc *service.AdminAreaService) {
	r := srv.Route("/")
	r.GET("/v1/resolve", resolvePointHandler(svc))
	r.GET("/v1/resolve/address", resolveAddressHandler(svc))
	r.GET("/v1/areas/{id}/geometry", geometryHandler(svc))
	r.POST("/v1/import", importHandler(svc))
	r.GET("/status", statusHandler(svc))
}

func resolvePointHandler(svc *service.AdminAreaService) http.HandlerFunc {
	return func(ctx http.Context) error {
		q := ctx.Query()
		lat, err := strconv.ParseFloat(q.Get("lat"), 64)
		if err != nil {
			return errors.New(400, biz.BadRequest, "lat must be a number")
		}
		lon, err := strconv.ParseFloat(q.Get("lon"), 64)
		if err != nil {
			return errors.New(400, biz.BadRequest, "lon must be a number")
		}
		iso3 := q.Get("country")
		strategy := q.Get("strategy")
		http.SetOperation(ctx, "/v1/resolve")
		h := ctx.Middleware(func(ctx context.Context, _ interface{}) (interface{}, error) {
			return svc.ResolvePoint(ctx, lat, lon, iso3, strategy)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func resolveAddressHandler(svc *service.AdminAreaService) http.HandlerFunc {
	return func(ctx http.Context) error {
		q := ctx.Query()
		address := q.Get("q")
		lang := q.Get("accept-language")
		iso3 := q.Get("country")
		strategy := q.Get("strategy")
		http.SetOperation(ctx, "/v1/resolve/address")
		h := ctx.Middleware(func(ctx context.Context, _ interface{}) (interface{}, error) {
			return svc.ResolveAddress(ctx, address, lang, iso3, strategy)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func geometryHandler(svc *service.AdminAreaService) http.HandlerFunc {
	return func(ctx http.Context) error {
		id, err := strconv.ParseInt(ctx.Vars().Get("id"), 10, 64)
		if err != nil {
			return errors.New(400, biz.BadRequest, "id must be an integer")
		}
		q := ctx.Query()
		var zoom *int
		if s := q.Get("zoom"); s != "" {
			z, err := strconv.Atoi(s)
			if err != nil {
				return errors.New(400, biz.BadRequest, "zoom must be an integer")
			}
			zoom = &z
		}
		var tol *float64
		if s := q.Get("tolerance_m"); s != "" {
			t, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return errors.New(400, biz.BadRequest, "tolerance_m must be a number")
			}
			tol = &t
		}
		http.SetOperation(ctx, "/v1/areas/geometry")
		h := ctx.Middleware(func(ctx context.Context, _ interface{}) (interface{}, error) {
			return svc.Geometry(ctx, id, zoom, tol)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func importHandler(svc *service.AdminAreaService) http.HandlerFunc {
	return func(ctx http.Context) error {
		var req service.ImportRequest
		if err := ctx.Bind(&req); err != nil {
			return errors.New(400, biz.BadRequest, "invalid request body")
		}
		http.SetOperation(ctx, "/v1/import")
		h := ctx.Middleware(func(ctx context.Context, _ interface{}) (interface{}, error) {
			return svc.Import(ctx, &req)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func statusHandler(svc *service.AdminAreaService) http.HandlerFunc {
	return func(ctx http.Context) error {
		http.SetOperation(ctx, "/status")
		h := ctx.Middleware(func(ctx context.Context, _ interface{}) (interface{}, error) {
			return svc.Status(ctx)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}
