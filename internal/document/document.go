// Package document holds schema-validated documents. A Document is an
// ordered multimap of field name to typed values; fields may repeat.
package document

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/facet"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/errors"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindText Kind = iota
	KindFacet
	KindI64
	KindU64
)

// Value is a tagged union over the supported field value types.
type Value struct {
	Kind  Kind        `json:"kind"`
	Text  string      `json:"text,omitempty"`
	Facet facet.Facet `json:"facet"`
	I64   int64       `json:"i64,omitempty"`
	U64   uint64      `json:"u64,omitempty"`
}

func TextValue(s string) Value { return Value{Kind: KindText, Text: s} }

func FacetValue(f facet.Facet) Value { return Value{Kind: KindFacet, Facet: f} }

func I64Value(n int64) Value { return Value{Kind: KindI64, I64: n} }

func U64Value(n uint64) Value { return Value{Kind: KindU64, U64: n} }

// Interface returns the plain Go form used for stored-field output. Facets
// render as their path string.
func (v Value) Interface() any {
	switch v.Kind {
	case KindFacet:
		return v.Facet.String()
	case KindI64:
		return v.I64
	case KindU64:
		return v.U64
	default:
		return v.Text
	}
}

func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindFacet:
		return v.Facet.Equal(o.Facet)
	case KindI64:
		return v.I64 == o.I64
	case KindU64:
		return v.U64 == o.U64
	default:
		return v.Text == o.Text
	}
}

func kindFor(t schema.FieldType) Kind {
	switch t {
	case schema.TypeFacet:
		return KindFacet
	case schema.TypeI64:
		return KindI64
	case schema.TypeU64:
		return KindU64
	default:
		return KindText
	}
}

// FieldValue is one (field, value) pair.
type FieldValue struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// NamedDoc is the stored form of a document keyed by field name.
type NamedDoc map[string][]any

// Document is bound to the schema it was created for.
type Document struct {
	schema *schema.Schema
	values []FieldValue
}

func New(s *schema.Schema) *Document {
	return &Document{schema: s}
}

func (d *Document) Schema() *schema.Schema {
	return d.schema
}

func (d *Document) AddText(field, value string) error {
	return d.add(field, TextValue(value))
}

func (d *Document) AddFacet(field string, f facet.Facet) error {
	return d.add(field, FacetValue(f))
}

func (d *Document) AddI64(field string, n int64) error {
	return d.add(field, I64Value(n))
}

func (d *Document) AddU64(field string, n uint64) error {
	return d.add(field, U64Value(n))
}

// Add appends an already typed value.
func (d *Document) Add(field string, v Value) error {
	return d.add(field, v)
}

func (d *Document) add(field string, v Value) error {
	entry, err := d.schema.Lookup(field)
	if err != nil {
		return err
	}
	if want := kindFor(entry.Type); v.Kind != want {
		return fmt.Errorf("%w: field %q is a %s field", apperrors.ErrTypeMismatch, field, entry.Type)
	}
	d.values = append(d.values, FieldValue{Field: field, Value: v})
	return nil
}

// Values returns the values of one field in insertion order.
func (d *Document) Values(field string) []Value {
	var out []Value
	for _, fv := range d.values {
		if fv.Field == field {
			out = append(out, fv.Value)
		}
	}
	return out
}

// Fields returns every pair in insertion order.
func (d *Document) Fields() []FieldValue {
	out := make([]FieldValue, len(d.values))
	copy(out, d.values)
	return out
}

func (d *Document) Len() int {
	return len(d.values)
}

// Named returns every field value keyed by field name.
func (d *Document) Named() NamedDoc {
	out := make(NamedDoc)
	for _, fv := range d.values {
		out[fv.Field] = append(out[fv.Field], fv.Value.Interface())
	}
	return out
}

// StoredValues returns the pairs whose field is marked stored.
func (d *Document) StoredValues() []FieldValue {
	var out []FieldValue
	for _, fv := range d.values {
		if f, ok := d.schema.Field(fv.Field); ok && f.Stored {
			out = append(out, fv)
		}
	}
	return out
}

// Stored returns the stored fields keyed by name.
func (d *Document) Stored() NamedDoc {
	out := make(NamedDoc)
	for _, fv := range d.StoredValues() {
		out[fv.Field] = append(out[fv.Field], fv.Value.Interface())
	}
	return out
}

// Clone returns an independent copy bound to the same schema.
func (d *Document) Clone() *Document {
	return &Document{schema: d.schema, values: d.Fields()}
}
