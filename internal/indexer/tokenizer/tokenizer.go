// Package tokenizer turns field text into the terms stored in postings and
// looked up by queries. Analyzers are looked up by name from a Registry so a
// schema can pick one per text field; indexing and query parsing must use the
// same analyzer for a field or term lookups will miss.
package tokenizer

import (
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	"github.com/blevesearch/bleve/v2/analysis/token/stop"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"golang.org/x/text/unicode/norm"
)

// Token is one term and its position among the terms kept from a value.
type Token struct {
	Term     string
	Position int
}

// EnglishAnalyzer lower-cases, drops English stop words and applies the
// Porter stemmer. It backs the "en_stem" analyzer.
type EnglishAnalyzer struct {
	inner *analysis.DefaultAnalyzer
}

var englishStopWords = mustTokenMap(en.EnglishStopWords)

func mustTokenMap(words []byte) analysis.TokenMap {
	tm := analysis.NewTokenMap()
	if err := tm.LoadBytes(words); err != nil {
		panic("tokenizer: loading stop words: " + err.Error())
	}
	return tm
}

func NewEnglishAnalyzer() *EnglishAnalyzer {
	return &EnglishAnalyzer{
		inner: &analysis.DefaultAnalyzer{
			Tokenizer: unicode.NewUnicodeTokenizer(),
			TokenFilters: []analysis.TokenFilter{
				lowercase.NewLowerCaseFilter(),
				stop.NewStopTokensFilter(englishStopWords),
				porter.NewPorterStemmer(),
			},
		},
	}
}

func (a *EnglishAnalyzer) Analyze(text string) []Token {
	return collect(a.inner.Analyze([]byte(norm.NFKC.String(text))), 2)
}

var english = NewEnglishAnalyzer()

// collect keeps terms between minLen and MaxTokenLen bytes and numbers the
// survivors densely from zero.
func collect(stream analysis.TokenStream, minLen int) []Token {
	tokens := make([]Token, 0, len(stream))
	for _, tok := range stream {
		if len(tok.Term) < minLen || len(tok.Term) > MaxTokenLen {
			continue
		}
		tokens = append(tokens, Token{Term: string(tok.Term), Position: len(tokens)})
	}
	return tokens
}
