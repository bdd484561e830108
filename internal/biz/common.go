package biz

import (
	"github.com/go-kratos/kratos/v2/errors"
)

var (
	BadRequest     = "BAD_REQUEST"
	Unauthorized   = "UNAUTHORIZED"
	InternalServer = "INTERNAL_SERVER"
	NotFound       = "NOT_FOUND"
	Conflict       = "CONFLICT"
)

var (
	ErrInternalServer = errors.New(500, "INTERNAL_SERVER", "internal server error")
	// ErrAreaNotFound 按 id 找不到行政区划节点。
	ErrAreaNotFound = errors.New(404, "AREA_NOT_FOUND", "admin area not found")
	// ErrGeocodeNotFound 地址解析无候选结果（单一明确错误，不重试）。
	ErrGeocodeNotFound = errors.New(404, "GEOCODE_NOT_FOUND", "no coordinates found for address")
)
