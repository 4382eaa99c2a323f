// Package validator checks raw ingest records before they reach the writer,
// reporting every offending key at once instead of the first one.
package validator

import (
	"fmt"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/errors"
)

// MaxRecordBytes bounds a single JSON record.
const MaxRecordBytes = 1 << 20

// RecordKey is the Fields key used for problems with the record as a whole.
const RecordKey = "_record"

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return apperrors.ErrInvalidInput }

// ValidateRecord checks that data is a non-empty JSON object within
// MaxRecordBytes whose keys all name schema fields and whose values are
// scalars or arrays of scalars. Value types are checked later by the
// document decoder.
func ValidateRecord(s *schema.Schema, data []byte) error {
	errs := make(map[string]string)
	switch {
	case len(data) == 0:
		errs[RecordKey] = "record is empty"
	case len(data) > MaxRecordBytes:
		errs[RecordKey] = fmt.Sprintf("record must be at most %d bytes", MaxRecordBytes)
	default:
		var record map[string]jsoniter.RawMessage
		if err := jsoniter.Unmarshal(data, &record); err != nil {
			errs[RecordKey] = "record must be a JSON object"
			break
		}
		if len(record) == 0 {
			errs[RecordKey] = "record has no fields"
		}
		for key, raw := range record {
			if _, ok := s.Field(key); !ok {
				errs[key] = "unknown field"
				continue
			}
			if nested(raw) {
				errs[key] = "values must be scalars or arrays of scalars"
			}
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// nested reports whether raw is an object or an array holding an object
// or another array.
func nested(raw jsoniter.RawMessage) bool {
	v := jsoniter.Get(raw)
	switch v.ValueType() {
	case jsoniter.ObjectValue:
		return true
	case jsoniter.ArrayValue:
		for i := 0; i < v.Size(); i++ {
			switch v.Get(i).ValueType() {
			case jsoniter.ObjectValue, jsoniter.ArrayValue:
				return true
			}
		}
	}
	return false
}
