package document

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/facet"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/errors"
)

var jsonAPI = jsoniter.Config{
	UseNumber:              true,
	EscapeHTML:             false,
	ValidateJsonRawMessage: true,
}.Froze()

// DecodeJSON decodes a single JSON object whose keys are field names and
// whose values are scalars or arrays of scalars.
func DecodeJSON(s *schema.Schema, data []byte) (*Document, error) {
	var record map[string]any
	if err := jsonAPI.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: decoding json document: %v", apperrors.ErrInvalidInput, err)
	}
	return FromMap(s, record)
}

// FromMap builds a document from a decoded record. Every key must name a
// schema field; arrays become repeated values in their original order.
// Fields are appended in schema declaration order. Any invalid entry fails
// the whole document.
func FromMap(s *schema.Schema, record map[string]any) (*Document, error) {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := s.Lookup(k); err != nil {
			return nil, err
		}
	}

	doc := New(s)
	for _, entry := range s.Fields() {
		raw, ok := record[entry.Name]
		if !ok {
			continue
		}
		for _, item := range flatten(raw) {
			v, err := convert(entry, item)
			if err != nil {
				return nil, err
			}
			doc.values = append(doc.values, FieldValue{Field: entry.Name, Value: v})
		}
	}
	return doc, nil
}

func flatten(raw any) []any {
	switch vs := raw.(type) {
	case []any:
		return vs
	case []string:
		out := make([]any, len(vs))
		for i, v := range vs {
			out[i] = v
		}
		return out
	default:
		return []any{raw}
	}
}

func convert(entry schema.FieldEntry, item any) (Value, error) {
	mismatch := func() (Value, error) {
		return Value{}, fmt.Errorf("%w: field %q (%s) cannot hold %T value %v",
			apperrors.ErrTypeMismatch, entry.Name, entry.Type, item, item)
	}
	switch entry.Type {
	case schema.TypeText:
		str, ok := item.(string)
		if !ok {
			return mismatch()
		}
		return TextValue(str), nil
	case schema.TypeFacet:
		switch v := item.(type) {
		case facet.Facet:
			return FacetValue(v), nil
		case string:
			f, err := facet.FromString(v)
			if err != nil {
				return Value{}, fmt.Errorf("field %q: %w", entry.Name, err)
			}
			return FacetValue(f), nil
		default:
			return mismatch()
		}
	case schema.TypeI64:
		n, ok := toInt64(item)
		if !ok {
			return mismatch()
		}
		return I64Value(n), nil
	case schema.TypeU64:
		n, ok := toUint64(item)
		if !ok {
			return mismatch()
		}
		return U64Value(n), nil
	}
	return mismatch()
}

func toInt64(item any) (int64, bool) {
	switch v := item.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := strconv.ParseInt(string(v), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func toUint64(item any) (uint64, bool) {
	switch v := item.(type) {
	case int:
		return uint64(v), v >= 0
	case int64:
		return uint64(v), v >= 0
	case int32:
		return uint64(v), v >= 0
	case uint64:
		return v, true
	case float64:
		if v != math.Trunc(v) || v < 0 || v > math.MaxUint64 {
			return 0, false
		}
		return uint64(v), true
	case json.Number:
		n, err := strconv.ParseUint(string(v), 10, 64)
		return n, err == nil
	}
	return 0, false
}
