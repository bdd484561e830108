package biz

import (
	"strconv"
	"strings"
)

// 几何模型：上游 ESRI rings → 规范化 MultiPolygon → WKT 指纹。
// 约定：坐标为 [经度, 纬度]，SRID 恒为 4326；入库前外环逆时针、内环顺时针
// （空间谓词引擎按此方向假设求解）。这里只做纯变换，不做空间计算。

// Ring 一条线性环（首尾点可不闭合，序列化时补齐）。
type Ring [][2]float64

// Polygon 单个多边形：ring[0] 为外环，其余为洞。
type Polygon []Ring

// MultiPolygon 多个多边形的集合。
type MultiPolygon []Polygon

// signedArea 鞋带公式的二倍有向面积；>0 逆时针，<0 顺时针。
func signedArea(r Ring) float64 {
	if len(r) < 3 {
		return 0
	}
	var s float64
	for i := 0; i < len(r); i++ {
		j := (i + 1) % len(r)
		s += r[i][0]*r[j][1] - r[j][0]*r[i][1]
	}
	return s
}

// reversed 返回方向相反的副本。
func reversed(r Ring) Ring {
	out := make(Ring, len(r))
	for i, p := range r {
		out[len(r)-1-i] = p
	}
	return out
}

// pointInRing 射线法判断点是否落在环内（仅用于洞归属，不作空间真值）。
func pointInRing(pt [2]float64, r Ring) bool {
	inside := false
	for i, j := 0, len(r)-1; i < len(r); j, i = i, i+1 {
		xi, yi := r[i][0], r[i][1]
		xj, yj := r[j][0], r[j][1]
		if (yi > pt[1]) != (yj > pt[1]) &&
			pt[0] < (xj-xi)*(pt[1]-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// FromESRIRings 将 ESRI JSON 的 rings 组装为 MultiPolygon。
// ESRI 约定外环顺时针、洞逆时针；洞按首点落在哪个外环内归属，
// 归属不到任何外环的环按独立多边形处理（上游偶有方向错乱的数据）。
func FromESRIRings(rings [][][2]float64) MultiPolygon {
	var exteriors []Ring
	var holes []Ring
	for _, raw := range rings {
		r := Ring(raw)
		if len(r) < 3 {
			continue
		}
		if signedArea(r) < 0 { // ESRI 外环：顺时针
			exteriors = append(exteriors, r)
		} else {
			holes = append(holes, r)
		}
	}
	if len(exteriors) == 0 {
		// 全部环方向异常：逐环当作外环
		for _, h := range holes {
			exteriors = append(exteriors, h)
		}
		holes = nil
	}
	mp := make(MultiPolygon, 0, len(exteriors))
	for _, ext := range exteriors {
		mp = append(mp, Polygon{ext})
	}
	for _, h := range holes {
		placed := false
		for i, poly := range mp {
			if pointInRing(h[0], poly[0]) {
				mp[i] = append(mp[i], h)
				placed = true
				break
			}
		}
		if !placed {
			mp = append(mp, Polygon{h})
		}
	}
	return mp
}

// Normalize 统一环方向：外环逆时针、洞顺时针。纯函数，返回新值。
func (mp MultiPolygon) Normalize() MultiPolygon {
	out := make(MultiPolygon, len(mp))
	for i, poly := range mp {
		np := make(Polygon, len(poly))
		for j, r := range poly {
			a := signedArea(r)
			wantCCW := j == 0
			if (wantCCW && a < 0) || (!wantCCW && a > 0) {
				np[j] = reversed(r)
			} else {
				np[j] = r
			}
		}
		out[i] = np
	}
	return out
}

// IsEmpty 是否不含任何有效环。
func (mp MultiPolygon) IsEmpty() bool {
	for _, poly := range mp {
		for _, r := range poly {
			if len(r) >= 3 {
				return false
			}
		}
	}
	return true
}

// WKT 序列化为 MULTIPOLYGON 文本。序列化即变更指纹：同一几何点序不变则
// 文本不变，点序重排会产生不同文本（指纹不追求几何相等语义）。
func (mp MultiPolygon) WKT() string {
	if mp.IsEmpty() {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("MULTIPOLYGON (")
	firstPoly := true
	for _, poly := range mp {
		if len(poly) == 0 {
			continue
		}
		if !firstPoly {
			sb.WriteString(", ")
		}
		firstPoly = false
		sb.WriteString("(")
		for j, r := range poly {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(")
			writeRing(&sb, r)
			sb.WriteString(")")
		}
		sb.WriteString(")")
	}
	sb.WriteString(")")
	return sb.String()
}

func writeRing(sb *strings.Builder, r Ring) {
	for i, p := range r {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(formatCoord(p[0]))
		sb.WriteString(" ")
		sb.WriteString(formatCoord(p[1]))
	}
	// WKT 要求闭合环
	if len(r) > 0 && r[0] != r[len(r)-1] {
		sb.WriteString(", ")
		sb.WriteString(formatCoord(r[0][0]))
		sb.WriteString(" ")
		sb.WriteString(formatCoord(r[0][1]))
	}
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
