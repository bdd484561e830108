package schema

import (
	"geoadmin-go/pkg/ent/mixins"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AdminArea 行政区划节点（国家为 level 0，逐级往下）。
// geom 列是 PostGIS 几何类型，不在 ent 类型系统内，由 data.Migrate 的
// 手写 DDL 负责；这里声明的是其余属性列，作为表结构的权威描述。
type AdminArea struct {
	ent.Schema
}

// Mixin returns mixin definitions.
func (AdminArea) Mixin() []ent.Mixin {
	return []ent.Mixin{
		mixins.TimeMixin{},
	}
}

// Fields of the AdminArea.
func (AdminArea) Fields() []ent.Field {
	return []ent.Field{
		// 国家 ISO3（每行冗余存储，避免上溯才能知道国别）
		field.String("country_iso3").MaxLen(3),
		// 层级：0 国家，1 一级行政区，依此类推
		field.Int("level").NonNegative(),
		// 上级节点，国家层为空
		field.Int64("parent_id").Optional().Nillable(),
		// 上游稳定编码（同国同层唯一）
		field.String("code"),
		field.String("name"),
		// 层级称谓，如 Province / District
		field.String("level_label").Optional().Default(""),
		// 几何 WKT 指纹（变更检测用，几何本体在 geom 列）
		field.Text("geom_wkt").Optional().Default(""),
		// 数据来源标识
		field.String("source").Optional().Default(""),
	}
}

// Edges of the AdminArea.
func (AdminArea) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("children", AdminArea.Type).
			From("parent").
			Field("parent_id").
			Unique(),
	}
}

// Indexes of the AdminArea.
func (AdminArea) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("country_iso3", "level", "code").Unique(),
		index.Fields("country_iso3", "level"),
		index.Fields("parent_id"),
	}
}
