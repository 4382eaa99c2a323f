package tokenizer

import (
	"html"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

// Built-in analyzer names.
const (
	Default = "default"
	Raw     = "raw"
	EnStem  = "en_stem"
	HTML    = "html"
)

// MaxTokenLen is the longest term kept by the built-in analyzers. Longer
// words are dropped rather than truncated.
const MaxTokenLen = 40

// Analyzer converts a field value into positioned terms.
type Analyzer interface {
	Analyze(text string) []Token
}

// AnalyzerFunc adapts a plain function to the Analyzer interface.
type AnalyzerFunc func(text string) []Token

func (f AnalyzerFunc) Analyze(text string) []Token { return f(text) }

// Registry maps analyzer names to implementations. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	analyzers map[string]Analyzer
}

// NewRegistry returns a registry preloaded with the built-in analyzers.
func NewRegistry() *Registry {
	r := &Registry{analyzers: make(map[string]Analyzer)}
	std := NewStandardAnalyzer()
	r.analyzers[Default] = std
	r.analyzers[Raw] = AnalyzerFunc(rawAnalyze)
	r.analyzers[EnStem] = english
	r.analyzers[HTML] = NewHTMLAnalyzer(std)
	return r
}

// Register adds or replaces the analyzer stored under name.
func (r *Registry) Register(name string, a Analyzer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyzers[name] = a
}

func (r *Registry) Get(name string) (Analyzer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.analyzers[name]
	return a, ok
}

// Names lists the registered analyzers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.analyzers))
	for name := range r.analyzers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StandardAnalyzer applies NFKC normalisation, splits on Unicode word
// boundaries and lower-cases every term. No stemming, no stop-words.
type StandardAnalyzer struct {
	inner *analysis.DefaultAnalyzer
}

func NewStandardAnalyzer() *StandardAnalyzer {
	return &StandardAnalyzer{
		inner: &analysis.DefaultAnalyzer{
			Tokenizer: unicode.NewUnicodeTokenizer(),
			TokenFilters: []analysis.TokenFilter{
				lowercase.NewLowerCaseFilter(),
			},
		},
	}
}

func (a *StandardAnalyzer) Analyze(text string) []Token {
	return collect(a.inner.Analyze([]byte(norm.NFKC.String(text))), 1)
}

// HTMLAnalyzer strips markup before delegating to another analyzer.
type HTMLAnalyzer struct {
	policy *bluemonday.Policy
	next   Analyzer
}

func NewHTMLAnalyzer(next Analyzer) *HTMLAnalyzer {
	return &HTMLAnalyzer{policy: bluemonday.StrictPolicy(), next: next}
}

func (a *HTMLAnalyzer) Analyze(text string) []Token {
	// StrictPolicy escapes entities in the surviving text.
	plain := html.UnescapeString(a.policy.Sanitize(text))
	return a.next.Analyze(plain)
}

// rawAnalyze keeps the whole value as a single term, useful for ids and
// exact-match keywords.
func rawAnalyze(text string) []Token {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []Token{{Term: text, Position: 0}}
}
