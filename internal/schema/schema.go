// Package schema describes the fields an index accepts. A Schema is built
// once with a Builder and is immutable afterwards; indexes, documents and
// query parsers all share the same *Schema pointer.
package schema

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	apperrors "github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FieldType is the value type a field accepts.
type FieldType int

const (
	TypeText FieldType = iota
	TypeFacet
	TypeI64
	TypeU64
)

func (t FieldType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeFacet:
		return "facet"
	case TypeI64:
		return "i64"
	case TypeU64:
		return "u64"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// ParseFieldType is the inverse of FieldType.String.
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(s) {
	case "text":
		return TypeText, nil
	case "facet":
		return TypeFacet, nil
	case "i64":
		return TypeI64, nil
	case "u64":
		return TypeU64, nil
	default:
		return 0, fmt.Errorf("%w: unknown field type %q", apperrors.ErrInvalidInput, s)
	}
}

// FieldEntry describes one field of a schema.
type FieldEntry struct {
	Name      string    `json:"name"`
	Type      FieldType `json:"-"`
	Stored    bool      `json:"stored"`
	Indexed   bool      `json:"indexed"`
	Tokenizer string    `json:"tokenizer,omitempty"`
}

func (f FieldEntry) MarshalJSON() ([]byte, error) {
	type alias FieldEntry
	return json.Marshal(struct {
		alias
		Type string `json:"type"`
	}{alias(f), f.Type.String()})
}

// Schema is an ordered, immutable catalog of fields.
type Schema struct {
	fields []FieldEntry
	byName map[string]int
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (FieldEntry, bool) {
	i, ok := s.byName[name]
	if !ok {
		return FieldEntry{}, false
	}
	return s.fields[i], true
}

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []FieldEntry {
	out := make([]FieldEntry, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s *Schema) NumFields() int {
	return len(s.fields)
}

// FieldNames returns the field names in declaration order.
func (s *Schema) FieldNames() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// FieldsOfType returns the names of every field with the given type.
func (s *Schema) FieldsOfType(t FieldType) []string {
	var out []string
	for _, f := range s.fields {
		if f.Type == t {
			out = append(out, f.Name)
		}
	}
	return out
}

// Lookup returns the field or an ErrUnknownField error.
func (s *Schema) Lookup(name string) (FieldEntry, error) {
	f, ok := s.Field(name)
	if !ok {
		return FieldEntry{}, fmt.Errorf("%w: %q is not defined in the schema", apperrors.ErrUnknownField, name)
	}
	return f, nil
}

func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.fields)
}

func (s *Schema) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = fmt.Sprintf("%s:%s", f.Name, f.Type)
	}
	return "Schema(" + strings.Join(parts, ", ") + ")"
}
