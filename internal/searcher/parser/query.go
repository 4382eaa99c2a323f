package parser

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/facet"
)

// Query is a node of the query tree evaluated by the searcher.
type Query interface {
	// String renders the node deterministically; it doubles as a cache key.
	String() string
	query()
}

// TermQuery matches documents holding Term in Field.
type TermQuery struct {
	Field string
	Term  string
}

type Occur int

const (
	// Should clauses are unioned when no Must clause is present and only
	// add to the score otherwise.
	Should Occur = iota
	// Must clauses are intersected.
	Must
)

type Clause struct {
	Occur Occur
	Query Query
}

// BooleanQuery combines clauses. With no clauses it matches nothing.
type BooleanQuery struct {
	Clauses []Clause
}

// FacetQuery matches documents tagged at or below any of Paths. It does not
// contribute to the score.
type FacetQuery struct {
	Field string
	Paths []facet.Facet
}

// AllQuery matches every document with score 0.
type AllQuery struct{}

func (TermQuery) query()    {}
func (BooleanQuery) query() {}
func (FacetQuery) query()   {}
func (AllQuery) query()     {}

func (q TermQuery) String() string {
	return fmt.Sprintf("%s:%q", q.Field, q.Term)
}

func (q BooleanQuery) String() string {
	parts := make([]string, len(q.Clauses))
	for i, c := range q.Clauses {
		prefix := ""
		if c.Occur == Must {
			prefix = "+"
		}
		parts[i] = prefix + c.Query.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (q FacetQuery) String() string {
	paths := make([]string, len(q.Paths))
	for i, p := range q.Paths {
		paths[i] = p.String()
	}
	return fmt.Sprintf("%s:facet[%s]", q.Field, strings.Join(paths, ","))
}

func (AllQuery) String() string { return "*" }

// Terms collects the (field, term) pairs of every TermQuery under q.
func Terms(q Query) []TermQuery {
	var out []TermQuery
	var walk func(Query)
	walk = func(q Query) {
		switch n := q.(type) {
		case TermQuery:
			out = append(out, n)
		case BooleanQuery:
			for _, c := range n.Clauses {
				walk(c.Query)
			}
		}
	}
	walk(q)
	return out
}
