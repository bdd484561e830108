package arcgis

import (
	"errors"
	"fmt"
	"net/http"
)

// 错误分类学（对齐导入管线的处置策略）：
//   - HTTPError 502/503/504（可选 429）为瞬时信号，仅这些会被重试；
//   - 其余非 2xx、200 错误信封、载荷解析失败一律不重试；
//   - 取消既不重试也不计入失败。

// HTTPError 非 2xx 的传输层失败。
type HTTPError struct {
	Status int
	Reason string
	Raw    string // 响应体片段
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("feature service http %d %s", e.Status, e.Reason)
}

// HTTPStatus 实现 biz.HTTPStatusCarrier。
func (e *HTTPError) HTTPStatus() (int, string) { return e.Status, e.Reason }

// RawPayload 实现 biz.RawPayloadCarrier。
func (e *HTTPError) RawPayload() string { return e.Raw }

// UpstreamError 上游在 HTTP 200 内返回的结构化错误信封
// {"error":{"code":…,"message":…,"details":[…]}}。
type UpstreamError struct {
	Code    int
	Message string
	Details []string
	Raw     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("feature service error envelope %d: %s", e.Code, e.Message)
}

// UpstreamError 实现 biz.UpstreamEnvelopeCarrier。
func (e *UpstreamError) UpstreamError() (int, string, []string) {
	return e.Code, e.Message, e.Details
}

// RawPayload 实现 biz.RawPayloadCarrier。
func (e *UpstreamError) RawPayload() string { return e.Raw }

// ParseError 载荷存在但无法解析。
type ParseError struct {
	Err error
	Raw string
}

func (e *ParseError) Error() string { return fmt.Sprintf("feature payload parse: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// ParseFailure 实现 biz.ParseFailureCarrier。
func (e *ParseError) ParseFailure() bool { return true }

// RawPayload 实现 biz.RawPayloadCarrier。
func (e *ParseError) RawPayload() string { return e.Raw }

// isTransient 仅 502/503/504（以及配置放行时的 429）视为瞬时。
func isTransient(err error, retry429 bool) bool {
	var he *HTTPError
	if !errors.As(err, &he) {
		return false
	}
	switch he.Status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	case http.StatusTooManyRequests:
		return retry429
	}
	return false
}
