package schema

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/errors"
)

// DefaultTokenizer is the analyzer used for text fields that do not name one.
const DefaultTokenizer = "default"

// TextOption customises a text field.
type TextOption func(*FieldEntry)

// Stored keeps the original value so it can be returned with search hits.
func Stored() TextOption {
	return func(f *FieldEntry) { f.Stored = true }
}

// WithTokenizer selects the analyzer used at index and query time.
func WithTokenizer(name string) TextOption {
	return func(f *FieldEntry) { f.Tokenizer = name }
}

// NotIndexed makes a stored-only text field that is never searchable.
func NotIndexed() TextOption {
	return func(f *FieldEntry) { f.Indexed = false }
}

// Builder accumulates field definitions. Methods chain; the first error is
// remembered and reported by Build.
type Builder struct {
	fields []FieldEntry
	byName map[string]int
	err    error
}

func NewBuilder() *Builder {
	return &Builder{byName: make(map[string]int)}
}

// AddTextField registers a tokenized text field. Text fields are indexed and
// not stored unless options say otherwise.
func (b *Builder) AddTextField(name string, opts ...TextOption) *Builder {
	f := FieldEntry{Name: name, Type: TypeText, Indexed: true, Tokenizer: DefaultTokenizer}
	for _, opt := range opts {
		opt(&f)
	}
	return b.add(f)
}

// AddFacetField registers a hierarchical facet field. Facet fields are always
// indexed and stored.
func (b *Builder) AddFacetField(name string) *Builder {
	return b.add(FieldEntry{Name: name, Type: TypeFacet, Indexed: true, Stored: true})
}

func (b *Builder) AddI64Field(name string, stored, indexed bool) *Builder {
	return b.add(FieldEntry{Name: name, Type: TypeI64, Stored: stored, Indexed: indexed})
}

func (b *Builder) AddU64Field(name string, stored, indexed bool) *Builder {
	return b.add(FieldEntry{Name: name, Type: TypeU64, Stored: stored, Indexed: indexed})
}

// AddField registers a fully specified entry.
func (b *Builder) AddField(f FieldEntry) *Builder {
	if f.Type == TypeText && f.Tokenizer == "" {
		f.Tokenizer = DefaultTokenizer
	}
	if f.Type != TypeText {
		f.Tokenizer = ""
	}
	return b.add(f)
}

func (b *Builder) add(f FieldEntry) *Builder {
	if b.err != nil {
		return b
	}
	if strings.TrimSpace(f.Name) == "" {
		b.err = fmt.Errorf("%w: field names must not be empty", apperrors.ErrInvalidFieldName)
		return b
	}
	if _, exists := b.byName[f.Name]; exists {
		b.err = fmt.Errorf("%w: %q is already registered", apperrors.ErrDuplicateField, f.Name)
		return b
	}
	b.byName[f.Name] = len(b.fields)
	b.fields = append(b.fields, f)
	return b
}

// Build freezes the builder into a Schema. An empty schema is rejected.
func (b *Builder) Build() (*Schema, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.fields) == 0 {
		return nil, apperrors.ErrEmptySchema
	}
	s := &Schema{
		fields: make([]FieldEntry, len(b.fields)),
		byName: make(map[string]int, len(b.fields)),
	}
	copy(s.fields, b.fields)
	for name, i := range b.byName {
		s.byName[name] = i
	}
	return s, nil
}
