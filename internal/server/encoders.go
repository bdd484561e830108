package server

import (
	"encoding/json"

	"github.com/go-kratos/kratos/v2/transport/http"

	"geoadmin-go/internal/biz"
	"geoadmin-go/internal/service"
)

// geoJSON structures
type geoJSONFeature struct {
	Type       string          `json:"type"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

type geoJSONFC struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

// encodeGeoJSON 将解析路径 / 单节点几何响应改写为 GeoJSON。
// 路径节点本身不携带几何（几何走 /v1/areas/{id}/geometry），因此
// FeatureCollection 里的 geometry 为 null，属性承载层级信息。
func encodeGeoJSON(w http.ResponseWriter, r *http.Request, v any) error {
	var out any
	switch t := v.(type) {
	case *service.ResolveReply:
		fc := geoJSONFC{Type: "FeatureCollection", Features: []geoJSONFeature{}}
		for _, n := range t.Path {
			if n == nil {
				continue
			}
			props := map[string]any{
				"country_iso3": n.CountryISO3,
				"level":        n.Level,
				"code":         n.Code,
				"name":         n.Name,
				"has_geometry": n.HasGeometry,
			}
			if n.ID != 0 {
				props["id"] = n.ID
			}
			if n.LevelLabel != "" {
				props["level_label"] = n.LevelLabel
			}
			fc.Features = append(fc.Features, geoJSONFeature{
				Type:       "Feature",
				Properties: props,
				Geometry:   json.RawMessage("null"),
			})
		}
		out = fc
	case *biz.GeometryFeature:
		// 已经是 Feature 形态，原样输出
		out = t
	default:
		return http.DefaultResponseEncoder(w, r, v)
	}
	if cb := r.URL.Query().Get("json_callback"); cb != "" {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		b, _ := json.Marshal(out)
		if _, err := w.Write([]byte(cb + "(")); err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
		_, err := w.Write([]byte(")"))
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	return json.NewEncoder(w).Encode(out)
}
