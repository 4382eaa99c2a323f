package parser

import (
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/errors"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.NewBuilder().
		AddTextField("title", schema.Stored()).
		AddTextField("body").
		AddTextField("notes", schema.Stored(), schema.NotIndexed()).
		AddFacetField("facets").
		AddU64Field("year", true, true).
		AddI64Field("delta", true, false).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestParse(t *testing.T) {
	s := testSchema(t)
	tests := []struct {
		name    string
		text    string
		fields  []string
		filters map[string][]string
		want    string
	}{
		{
			name:   "tokens are or-ed across fields",
			text:   "sea whale",
			fields: []string{"title", "body"},
			want:   `(title:"sea" title:"whale" body:"sea" body:"whale")`,
		},
		{
			name:   "duplicate tokens collapse",
			text:   "Sea sea SEA",
			fields: []string{"title"},
			want:   `(title:"sea")`,
		},
		{
			name:   "integer fields keep numeric tokens",
			text:   "published 1952 or 1951.5",
			fields: []string{"year"},
			want:   `(year:"1952")`,
		},
		{
			name:   "field prefix is plain text",
			text:   "title: sea",
			fields: []string{"body"},
			want:   `(body:"title" body:"sea")`,
		},
		{
			name:    "filter is required",
			text:    "sea",
			fields:  []string{"title"},
			filters: map[string][]string{"facets": {"/category", "/author/hemingway"}},
			want:    `(+(title:"sea") +facets:facet[/category,/author/hemingway])`,
		},
		{
			name:    "empty text with filter matches all",
			text:    "  ",
			fields:  []string{"title"},
			filters: map[string][]string{"facets": {"/category"}},
			want:    `(+* +facets:facet[/category])`,
		},
		{
			name:   "empty text matches nothing",
			text:   "",
			fields: []string{"title"},
			want:   `()`,
		},
		{
			name:    "empty filter list is ignored",
			text:    "sea",
			fields:  []string{"title"},
			filters: map[string][]string{"facets": {}},
			want:    `(title:"sea")`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(s, tokenizer.NewRegistry(), tt.text, tt.fields, tt.filters)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if got := q.String(); got != tt.want {
				t.Errorf("Parse() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	s := testSchema(t)
	tests := []struct {
		name    string
		fields  []string
		filters map[string][]string
		want    error
	}{
		{"unknown field", []string{"author"}, nil, apperrors.ErrUnknownField},
		{"facet field searched", []string{"facets"}, nil, apperrors.ErrFieldType},
		{"not indexed", []string{"notes"}, nil, apperrors.ErrFieldType},
		{"unindexed integer", []string{"delta"}, nil, apperrors.ErrFieldType},
		{"unknown filter key", []string{"title"}, map[string][]string{"genre": {"/a"}}, apperrors.ErrUnknownField},
		{"filter on text field", []string{"title"}, map[string][]string{"body": {"/a"}}, apperrors.ErrFieldType},
		{"malformed path", []string{"title"}, map[string][]string{"facets": {"category"}}, apperrors.ErrInvalidFacetPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(s, tokenizer.NewRegistry(), "sea", tt.fields, tt.filters)
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTerms(t *testing.T) {
	q := BooleanQuery{Clauses: []Clause{
		{Occur: Must, Query: BooleanQuery{Clauses: []Clause{
			{Occur: Should, Query: TermQuery{Field: "title", Term: "sea"}},
		}}},
		{Occur: Must, Query: AllQuery{}},
		{Occur: Should, Query: TermQuery{Field: "body", Term: "whale"}},
	}}
	got := Terms(q)
	if len(got) != 2 || got[0].Term != "sea" || got[1].Field != "body" {
		t.Errorf("Terms() = %v", got)
	}
}
