// Package mixin provides reusable attribute sets for entity definitions.
//
// To create a custom mixin, embed Schema and override Attributes:
//
//	type Audit struct {
//	    mixin.Schema
//	}
//
//	func (Audit) Attributes() []schema.AttributeSpec {
//	    return []schema.AttributeSpec{
//	        {Name: "created_by", Type: schema.TypeString, Options: []schema.AttrOption{schema.Optional()}},
//	    }
//	}
//
// Using mixins:
//
//	b.Entity("Company").Mixin(mixin.Time{}, Audit{}).String("name")
package mixin

import (
	"time"

	"github.com/syssam/objgraph"
	"github.com/syssam/objgraph/schema"
)

// Schema is the default implementation of schema.Mixin. It contributes no
// attributes and is meant to be embedded.
type Schema struct{}

// Attributes returns the attributes of the mixin.
func (Schema) Attributes() []schema.AttributeSpec { return nil }

var _ schema.Mixin = (*Schema)(nil)

func now() objgraph.Value { return objgraph.Time(time.Now().UTC()) }

// CreateTime adds an immutable created_at timestamp set on insert.
type CreateTime struct{ Schema }

// Attributes of the create time mixin.
func (CreateTime) Attributes() []schema.AttributeSpec {
	return []schema.AttributeSpec{
		{Name: "created_at", Type: schema.TypeTime, Options: []schema.AttrOption{schema.Default(now), schema.Immutable()}},
	}
}

// UpdateTime adds an updated_at timestamp refreshed on every update.
type UpdateTime struct{ Schema }

// Attributes of the update time mixin.
func (UpdateTime) Attributes() []schema.AttributeSpec {
	return []schema.AttributeSpec{
		{Name: "updated_at", Type: schema.TypeTime, Options: []schema.AttrOption{schema.Default(now), schema.UpdateDefault(now)}},
	}
}

// Time combines CreateTime and UpdateTime.
type Time struct{ Schema }

// Attributes of the time mixin.
func (Time) Attributes() []schema.AttributeSpec {
	return append(CreateTime{}.Attributes(), UpdateTime{}.Attributes()...)
}

var (
	_ schema.Mixin = (*CreateTime)(nil)
	_ schema.Mixin = (*UpdateTime)(nil)
	_ schema.Mixin = (*Time)(nil)
)
