package arcgis

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"encoding/json"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"

	"geoadmin-go/internal/biz"
	"geoadmin-go/internal/conf"
	"geoadmin-go/internal/metrics"
)

// ProviderSet is arcgis providers.
var ProviderSet = wire.NewSet(NewClient, wire.Bind(new(biz.FeatureSource), new(*Client)))

// maxBodyBytes 单次响应体读取上限（深层级多边形很重，但 64MB 足够一批）。
const maxBodyBytes = 64 << 20

// Client 要素服务（ArcGIS 风格）的薄封装：ID 发现 + 批量要素两类调用，
// 内部经 Executor 做瞬时错误重试，响应统一做 200 错误信封检测。
// 实现 biz.FeatureSource。
type Client struct {
	hc   *http.Client
	exec *Executor
	conf *conf.Upstream
	log  *log.Helper
}

var _ biz.FeatureSource = (*Client)(nil)

// NewClient 按 upstream 配置构建客户端（含重试执行器）。
func NewClient(c *conf.Upstream, logger log.Logger) *Client {
	timeout := conf.ParseDuration(c.Timeout, 30*time.Second)
	exec := NewExecutor(
		c.MaxAttempts,
		conf.ParseDuration(c.BackoffBase, 500*time.Millisecond),
		conf.ParseDuration(c.BackoffJitter, 250*time.Millisecond),
		c.Retry429,
	)
	return &Client{
		hc:   &http.Client{Timeout: timeout},
		exec: exec,
		conf: c,
		log:  log.NewHelper(logger),
	}
}

type idsResponse struct {
	ObjectIDs []int64 `json:"objectIds"`
}

type esriGeometry struct {
	Rings [][][2]float64 `json:"rings"`
}

type esriFeature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   *esriGeometry  `json:"geometry"`
}

type featuresResponse struct {
	Features []esriFeature `json:"features"`
}

type errorEnvelope struct {
	Error *struct {
		Code    int      `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details"`
	} `json:"error"`
}

// ObjectIDs 发现 (level, country) 下的全部上游对象 ID。廉价、不分页、仅 ID。
func (c *Client) ObjectIDs(ctx context.Context, level int, countryISO3 string) ([]int64, error) {
	where := "1=1"
	if countryISO3 != "" {
		where = fmt.Sprintf("%s = '%s'", c.fieldFor(c.conf.CountryField, level), countryISO3)
	}
	q := url.Values{}
	q.Set("where", where)
	q.Set("returnIdsOnly", "true")
	q.Set("f", "json")

	var out idsResponse
	if err := c.getJSON(ctx, "ids", level, q, &out); err != nil {
		return nil, err
	}
	return out.ObjectIDs, nil
}

// Features 按 ID 批取要素属性与几何（outSR 固定 4326）。
func (c *Client) Features(ctx context.Context, level int, ids []int64, wantGeometry bool) ([]biz.Feature, error) {
	idsCSV := make([]string, len(ids))
	for i, id := range ids {
		idsCSV[i] = strconv.FormatInt(id, 10)
	}
	q := url.Values{}
	q.Set("objectIds", strings.Join(idsCSV, ","))
	q.Set("outFields", strings.Join(c.outFields(level), ","))
	q.Set("returnGeometry", strconv.FormatBool(wantGeometry))
	q.Set("outSR", "4326")
	q.Set("f", "json")

	var out featuresResponse
	if err := c.getJSON(ctx, "features", level, q, &out); err != nil {
		return nil, err
	}

	feats := make([]biz.Feature, 0, len(out.Features))
	for _, ef := range out.Features {
		f := biz.Feature{
			Code:        attrString(ef.Attributes, c.fieldFor(c.conf.CodeField, level)),
			Name:        attrString(ef.Attributes, c.fieldFor(c.conf.NameField, level)),
			LevelLabel:  attrString(ef.Attributes, c.fieldFor(c.conf.LabelField, level)),
			CountryISO3: attrString(ef.Attributes, c.fieldFor(c.conf.CountryField, level)),
		}
		if level > 0 {
			f.ParentCode = attrString(ef.Attributes, c.fieldFor(c.conf.ParentField, level))
		}
		if ef.Geometry != nil {
			f.Rings = ef.Geometry.Rings
		}
		feats = append(feats, f)
	}
	return feats, nil
}

// getJSON 发起一次带重试的查询并解析响应：
// 非 2xx → HTTPError（502/503/504[/429] 由执行器重试）；
// 200 错误信封 → UpstreamError（不重试）；解析失败 → ParseError（不重试）。
func (c *Client) getJSON(ctx context.Context, call string, level int, q url.Values, out any) error {
	u := strings.TrimRight(c.conf.BaseURL, "/") + "/" + strconv.Itoa(level) + "/query?" + q.Encode()
	var body []byte
	err := c.exec.Do(ctx, func(ctx context.Context) error {
		b, err := c.roundTrip(ctx, call, u)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		metrics.UpstreamFailTotal.WithLabelValues(classOf(err)).Inc()
		return err
	}

	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil && env.Error != nil {
		metrics.UpstreamFailTotal.WithLabelValues("envelope").Inc()
		return &UpstreamError{
			Code:    env.Error.Code,
			Message: env.Error.Message,
			Details: env.Error.Details,
			Raw:     string(body),
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		metrics.UpstreamFailTotal.WithLabelValues("parse").Inc()
		return &ParseError{Err: err, Raw: string(body)}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, call, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(call).Inc()
	t0 := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, rerr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	metrics.UpstreamDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Status: resp.StatusCode, Reason: resp.Status, Raw: string(b)}
	}
	if rerr != nil {
		return nil, rerr
	}
	return b, nil
}

// outFields 组装该层级需要的属性字段集合（去重保序）。
func (c *Client) outFields(level int) []string {
	tmpls := []string{c.conf.CodeField, c.conf.NameField, c.conf.LabelField, c.conf.CountryField}
	if level > 0 {
		tmpls = append(tmpls, c.conf.ParentField)
	}
	seen := make(map[string]bool, len(tmpls))
	out := make([]string, 0, len(tmpls))
	for _, t := range tmpls {
		f := c.fieldFor(t, level)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// fieldFor 展开字段名模板：{level} → 层级，{parent} → 层级-1。
func (c *Client) fieldFor(tmpl string, level int) string {
	s := strings.ReplaceAll(tmpl, "{level}", strconv.Itoa(level))
	return strings.ReplaceAll(s, "{parent}", strconv.Itoa(level-1))
}

func attrString(attrs map[string]any, field string) string {
	if field == "" {
		return ""
	}
	switch v := attrs[field].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func classOf(err error) string {
	switch err.(type) {
	case *HTTPError:
		return "http"
	case *UpstreamError:
		return "envelope"
	case *ParseError:
		return "parse"
	default:
		return "other"
	}
}
