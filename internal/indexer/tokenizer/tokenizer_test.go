package tokenizer

import (
	"strings"
	"testing"
)

func terms(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Term
	}
	return out
}

func equalTerms(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEnglishStemsAndDropsStopWords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"The Old Man and the Sea", []string{"old", "man", "sea"}},
		{"fishing boats", []string{"fish", "boat"}},
		{"ＦＩＳＨＩＮＧ", []string{"fish"}},
	}
	for _, tt := range tests {
		if got := terms(english.Analyze(tt.in)); !equalTerms(got, tt.want) {
			t.Errorf("Analyze(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEnglishStopWordsLoaded(t *testing.T) {
	for _, w := range []string{"the", "and", "of"} {
		if !englishStopWords[w] {
			t.Errorf("stop word %q missing", w)
		}
	}
	if englishStopWords["whale"] {
		t.Error("whale is not a stop word")
	}
}

func TestEnglishPositionsAreDense(t *testing.T) {
	toks := english.Analyze("searching distributed indexes quickly")
	for i, tok := range toks {
		if tok.Position != i {
			t.Fatalf("token %d (%q) has position %d", i, tok.Term, tok.Position)
		}
	}
}

func TestStandardAnalyzer(t *testing.T) {
	a := NewStandardAnalyzer()
	tests := []struct {
		in   string
		want []string
	}{
		{"The Old Man and the Sea", []string{"the", "old", "man", "and", "the", "sea"}},
		{"sea whale", []string{"sea", "whale"}},
		{"eighty-four days", []string{"eighty", "four", "days"}},
		{"ＦＵＬＬ width", []string{"full", "width"}},
		{"", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := terms(a.Analyze(tt.in))
			if !equalTerms(got, tt.want) {
				t.Errorf("Analyze(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestStandardAnalyzerDropsLongTokens(t *testing.T) {
	long := strings.Repeat("x", MaxTokenLen+1)
	got := terms(NewStandardAnalyzer().Analyze("short " + long + " end"))
	if !equalTerms(got, []string{"short", "end"}) {
		t.Errorf("got %v", got)
	}
}

func TestHTMLAnalyzer(t *testing.T) {
	a := NewHTMLAnalyzer(NewStandardAnalyzer())
	got := terms(a.Analyze(`<p>Fish &amp; <b>Chips</b><script>alert(1)</script></p>`))
	want := []string{"fish", "chips"}
	if !equalTerms(got, want) {
		t.Errorf("Analyze() = %v, want %v", got, want)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{Default, Raw, EnStem, HTML} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("builtin analyzer %q missing", name)
		}
	}
	if _, ok := r.Get("klingon"); ok {
		t.Error("unexpected analyzer")
	}
	r.Register("upper", AnalyzerFunc(func(s string) []Token {
		return []Token{{Term: strings.ToUpper(s)}}
	}))
	a, ok := r.Get("upper")
	if !ok || a.Analyze("x")[0].Term != "X" {
		t.Error("custom analyzer not registered")
	}
	raw, _ := r.Get(Raw)
	if got := terms(raw.Analyze("ISBN 978-3")); !equalTerms(got, []string{"ISBN 978-3"}) {
		t.Errorf("raw analyzer = %v", got)
	}
}

func BenchmarkStandardAnalyze(b *testing.B) {
	text := strings.Repeat("Information retrieval systems form the backbone of modern search infrastructure. ", 20)
	a := NewStandardAnalyzer()
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = a.Analyze(text)
	}
}

func BenchmarkEnglishAnalyze(b *testing.B) {
	text := strings.Repeat("Faceted search engines count matching documents per category. ", 20)
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = english.Analyze(text)
	}
}
