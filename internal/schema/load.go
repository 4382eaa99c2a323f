package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FieldSpec is the YAML form of a field definition.
type FieldSpec struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Stored    bool   `yaml:"stored"`
	Indexed   *bool  `yaml:"indexed"`
	Tokenizer string `yaml:"tokenizer"`
}

// FromSpecs builds a schema from field specs. Indexed defaults to true.
func FromSpecs(specs []FieldSpec) (*Schema, error) {
	b := NewBuilder()
	for _, spec := range specs {
		t, err := ParseFieldType(spec.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", spec.Name, err)
		}
		indexed := true
		if spec.Indexed != nil {
			indexed = *spec.Indexed
		}
		f := FieldEntry{
			Name:      spec.Name,
			Type:      t,
			Stored:    spec.Stored,
			Indexed:   indexed,
			Tokenizer: spec.Tokenizer,
		}
		if t == TypeFacet {
			f.Stored, f.Indexed = true, true
		}
		b.AddField(f)
	}
	return b.Build()
}

// Load reads a YAML file holding a "fields" list.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file %s: %w", path, err)
	}
	var doc struct {
		Fields []FieldSpec `yaml:"fields"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing schema file %s: %w", path, err)
	}
	return FromSpecs(doc.Fields)
}
