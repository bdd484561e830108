package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"

	"geoadmin-go/internal/biz"
	"geoadmin-go/internal/conf"
	"geoadmin-go/internal/metrics"
)

// ProviderSet is geocode providers.
var ProviderSet = wire.NewSet(NewClient, wire.Bind(new(biz.Geocoder), new(*Client)))

// Client 地址→坐标协作方（Nominatim 风格 /search 接口）。
// 只取第一个候选；无候选按单一明确错误上抛，本层不做重试。
type Client struct {
	hc   *http.Client
	base string
	log  *log.Helper
}

var _ biz.Geocoder = (*Client)(nil)

func NewClient(c *conf.Geocode, logger log.Logger) *Client {
	timeout := 10 * time.Second
	base := ""
	if c != nil {
		timeout = conf.ParseDuration(c.Timeout, timeout)
		base = c.BaseURL
	}
	return &Client{
		hc:   &http.Client{Timeout: timeout},
		base: base,
		log:  log.NewHelper(logger),
	}
}

type candidate struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode 解析自由文本地址，返回 (lat, lon)。
func (c *Client) Geocode(ctx context.Context, address, lang string) (float64, float64, error) {
	if c.base == "" {
		return 0, 0, fmt.Errorf("geocode collaborator not configured")
	}
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")
	if lang != "" {
		q.Set("accept-language", lang)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/search?"+q.Encode(), nil)
	if err != nil {
		return 0, 0, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		metrics.GeocodeFailTotal.Inc()
		return 0, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.GeocodeFailTotal.Inc()
		return 0, 0, fmt.Errorf("geocode http %d", resp.StatusCode)
	}
	var cands []candidate
	if err := json.NewDecoder(resp.Body).Decode(&cands); err != nil {
		metrics.GeocodeFailTotal.Inc()
		return 0, 0, err
	}
	if len(cands) == 0 {
		metrics.GeocodeFailTotal.Inc()
		return 0, 0, biz.ErrGeocodeNotFound
	}
	lat, err1 := strconv.ParseFloat(cands[0].Lat, 64)
	lon, err2 := strconv.ParseFloat(cands[0].Lon, 64)
	if err1 != nil || err2 != nil {
		metrics.GeocodeFailTotal.Inc()
		return 0, 0, fmt.Errorf("geocode candidate has malformed coordinates")
	}
	c.log.WithContext(ctx).Debugf("geocoded %q -> (%f,%f)", address, lat, lon)
	return lat, lon, nil
}
