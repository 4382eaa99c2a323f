// Package parser turns a free-text query, a list of target fields and
// optional facet filters into a Query tree. Every token is OR-ed across every
// field; there is no field:term or boolean operator syntax.
package parser

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/facet"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/errors"
)

// Parse builds the query for text over fields, AND-ed with one FacetQuery
// per filter key. Filter values are facet paths OR-ed together.
func Parse(s *schema.Schema, analyzers *tokenizer.Registry, text string, fields []string, filters map[string][]string) (Query, error) {
	textQuery, err := parseText(s, analyzers, text, fields)
	if err != nil {
		return nil, err
	}
	facetQueries, err := parseFilters(s, filters)
	if err != nil {
		return nil, err
	}
	if len(facetQueries) == 0 {
		return textQuery, nil
	}

	var base Query = textQuery
	if strings.TrimSpace(text) == "" {
		base = AllQuery{}
	}
	clauses := make([]Clause, 0, len(facetQueries)+1)
	clauses = append(clauses, Clause{Occur: Must, Query: base})
	for _, fq := range facetQueries {
		clauses = append(clauses, Clause{Occur: Must, Query: fq})
	}
	return BooleanQuery{Clauses: clauses}, nil
}

func parseText(s *schema.Schema, analyzers *tokenizer.Registry, text string, fields []string) (BooleanQuery, error) {
	type fieldAnalyzer struct {
		entry    schema.FieldEntry
		analyzer tokenizer.Analyzer
	}
	resolved := make([]fieldAnalyzer, 0, len(fields))
	for _, name := range fields {
		entry, err := s.Lookup(name)
		if err != nil {
			return BooleanQuery{}, err
		}
		if entry.Type == schema.TypeFacet {
			return BooleanQuery{}, fmt.Errorf("%w: %q is a facet field, use a filter", apperrors.ErrFieldType, name)
		}
		if !entry.Indexed {
			return BooleanQuery{}, fmt.Errorf("%w: %q is not indexed", apperrors.ErrFieldType, name)
		}
		fa := fieldAnalyzer{entry: entry}
		if entry.Type == schema.TypeText {
			a, ok := analyzers.Get(entry.Tokenizer)
			if !ok {
				return BooleanQuery{}, fmt.Errorf("%w: field %q uses %q", apperrors.ErrUnknownTokenizer, name, entry.Tokenizer)
			}
			fa.analyzer = a
		}
		resolved = append(resolved, fa)
	}

	var q BooleanQuery
	seen := make(map[TermQuery]struct{})
	add := func(tq TermQuery) {
		if _, dup := seen[tq]; dup {
			return
		}
		seen[tq] = struct{}{}
		q.Clauses = append(q.Clauses, Clause{Occur: Should, Query: tq})
	}
	for _, fa := range resolved {
		switch fa.entry.Type {
		case schema.TypeText:
			for _, tok := range fa.analyzer.Analyze(text) {
				add(TermQuery{Field: fa.entry.Name, Term: tok.Term})
			}
		case schema.TypeI64:
			for _, word := range strings.Fields(text) {
				if n, err := strconv.ParseInt(word, 10, 64); err == nil {
					add(TermQuery{Field: fa.entry.Name, Term: strconv.FormatInt(n, 10)})
				}
			}
		case schema.TypeU64:
			for _, word := range strings.Fields(text) {
				if n, err := strconv.ParseUint(word, 10, 64); err == nil {
					add(TermQuery{Field: fa.entry.Name, Term: strconv.FormatUint(n, 10)})
				}
			}
		}
	}
	return q, nil
}

// parseFilters validates filter keys in sorted order so the first error is
// deterministic. Keys with no paths are ignored.
func parseFilters(s *schema.Schema, filters map[string][]string) ([]FacetQuery, error) {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []FacetQuery
	for _, key := range keys {
		entry, err := s.Lookup(key)
		if err != nil {
			return nil, err
		}
		if entry.Type != schema.TypeFacet {
			return nil, fmt.Errorf("%w: filter key %q is a %s field", apperrors.ErrFieldType, key, entry.Type)
		}
		values := filters[key]
		if len(values) == 0 {
			continue
		}
		fq := FacetQuery{Field: key, Paths: make([]facet.Facet, 0, len(values))}
		for _, v := range values {
			f, err := facet.FromString(v)
			if err != nil {
				return nil, fmt.Errorf("filter %q: %w", key, err)
			}
			fq.Paths = append(fq.Paths, f)
		}
		out = append(out, fq)
	}
	return out, nil
}
