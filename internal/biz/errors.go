package biz

import (
	"errors"
	"fmt"
)

// Stage 标识导入步骤失败发生的环节。
type Stage string

const (
	StageIDs      Stage = "ids"             // 对象 ID 发现
	StageFeatures Stage = "features"        // 要素批量拉取
	StageParse    Stage = "parse"           // 要素/几何解析
	StageBreaker  Stage = "circuit_breaker" // 熔断拒绝
	StageUnknown  Stage = "unknown"         // 其余未归类失败
)

// rawPayloadLimit 汇总中保留的原始响应片段上限。
const rawPayloadLimit = 512

// HTTPStatusCarrier 由传输层错误实现，暴露 HTTP 状态与原因。
type HTTPStatusCarrier interface {
	HTTPStatus() (code int, reason string)
}

// UpstreamEnvelopeCarrier 由上游 200 错误信封实现。
type UpstreamEnvelopeCarrier interface {
	UpstreamError() (code int, message string, details []string)
}

// RawPayloadCarrier 携带原始响应体片段的错误。
type RawPayloadCarrier interface {
	RawPayload() string
}

// ParseFailureCarrier 标记解析类失败（上游载荷存在但不可理解）。
type ParseFailureCarrier interface {
	ParseFailure() bool
}

// StepError 一条带上下文的导入步骤失败。这类失败是数据而非
// 控制流：它们被收集进 ImportSummary.Errors，导入循环继续推进。
type StepError struct {
	Country         string   `json:"country"`
	Level           int      `json:"level"`
	Stage           Stage    `json:"stage"`
	HTTPStatus      int      `json:"http_status,omitempty"`
	HTTPReason      string   `json:"http_reason,omitempty"`
	UpstreamCode    int      `json:"upstream_code,omitempty"`
	UpstreamMessage string   `json:"upstream_message,omitempty"`
	UpstreamDetails []string `json:"upstream_details,omitempty"`
	RawSnippet      string   `json:"raw_snippet,omitempty"`
	Message         string   `json:"message"`
}

func (e *StepError) Error() string {
	return fmt.Sprintf("import %s level %d stage %s: %s", e.Country, e.Level, e.Stage, e.Message)
}

// NewStepError 从底层错误提炼出结构化的步骤失败，截断原始载荷。
func NewStepError(country string, level int, stage Stage, err error) *StepError {
	se := &StepError{Country: country, Level: level, Stage: stage, Message: err.Error()}
	var hc HTTPStatusCarrier
	if errors.As(err, &hc) {
		se.HTTPStatus, se.HTTPReason = hc.HTTPStatus()
	}
	var uc UpstreamEnvelopeCarrier
	if errors.As(err, &uc) {
		se.UpstreamCode, se.UpstreamMessage, se.UpstreamDetails = uc.UpstreamError()
	}
	var rc RawPayloadCarrier
	if errors.As(err, &rc) {
		se.RawSnippet = TruncateRaw(rc.RawPayload())
	}
	return se
}

// BreakerOpenError 熔断打开信号：携带触发层级、诊断信息与最后一次响应片段。
// 对该国家的本轮导入是终态，不会自动复位。
type BreakerOpenError struct {
	Country  string
	Level    int    // 触发熔断的层级
	Attempts int    // 该层累计的连续失败次数
	LastErr  string // 最后一次失败的描述
	RawLast  string // 最后一次原始响应片段（已截断）
}

func (e *BreakerOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for %s at level %d after %d consecutive failures: %s",
		e.Country, e.Level, e.Attempts, e.LastErr)
}

// TruncateRaw 将原始响应裁剪到汇总可承载的长度。
func TruncateRaw(s string) string {
	if len(s) <= rawPayloadLimit {
		return s
	}
	return s[:rawPayloadLimit] + "...(truncated)"
}
