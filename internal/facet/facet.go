// Package facet implements hierarchical facet paths such as
// /category/fiction/classics. A Facet is an ordered sequence of non-empty
// segments; the root facet has no segments and renders as "/".
package facet

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/errors"
)

const separator = "/"

// Facet is an immutable hierarchical path. The zero value is the root facet.
type Facet struct {
	segments []string
}

// Root returns the root facet "/".
func Root() Facet {
	return Facet{}
}

// FromString parses a facet from its canonical form. The path must start
// with a slash and must not contain empty segments.
func FromString(path string) (Facet, error) {
	if !strings.HasPrefix(path, separator) {
		return Facet{}, fmt.Errorf("%w: %q must start with %q", apperrors.ErrInvalidFacetPath, path, separator)
	}
	if path == separator {
		return Root(), nil
	}
	parts := strings.Split(path[1:], separator)
	for i, p := range parts {
		if p == "" {
			return Facet{}, fmt.Errorf("%w: %q has an empty segment at position %d", apperrors.ErrInvalidFacetPath, path, i)
		}
	}
	return Facet{segments: parts}, nil
}

// MustFromString is like FromString but panics on malformed input. Intended
// for literals in tests and static configuration.
func MustFromString(path string) Facet {
	f, err := FromString(path)
	if err != nil {
		panic(err)
	}
	return f
}

// FromSegments builds a facet from already split segments.
func FromSegments(segments ...string) (Facet, error) {
	for i, s := range segments {
		if s == "" || strings.Contains(s, separator) {
			return Facet{}, fmt.Errorf("%w: segment %d (%q) is empty or contains %q", apperrors.ErrInvalidFacetPath, i, s, separator)
		}
	}
	out := make([]string, len(segments))
	copy(out, segments)
	return Facet{segments: out}, nil
}

func (f Facet) String() string {
	if len(f.segments) == 0 {
		return separator
	}
	return separator + strings.Join(f.segments, separator)
}

// Segments returns a copy of the path segments.
func (f Facet) Segments() []string {
	out := make([]string, len(f.segments))
	copy(out, f.segments)
	return out
}

func (f Facet) Depth() int {
	return len(f.segments)
}

func (f Facet) IsRoot() bool {
	return len(f.segments) == 0
}

// IsPrefixOf reports whether other lies at or below f in the hierarchy.
func (f Facet) IsPrefixOf(other Facet) bool {
	if len(f.segments) > len(other.segments) {
		return false
	}
	for i, s := range f.segments {
		if other.segments[i] != s {
			return false
		}
	}
	return true
}

// IsChildOf reports whether f sits exactly one level below parent.
func (f Facet) IsChildOf(parent Facet) bool {
	return f.Depth() == parent.Depth()+1 && parent.IsPrefixOf(f)
}

// Parent returns the facet one level up. The parent of the root is the root.
func (f Facet) Parent() Facet {
	if len(f.segments) == 0 {
		return f
	}
	return Facet{segments: f.segments[:len(f.segments)-1]}
}

// Ancestors returns every non-root prefix of f, shallowest first, ending
// with f itself.
func (f Facet) Ancestors() []Facet {
	out := make([]Facet, 0, len(f.segments))
	for i := 1; i <= len(f.segments); i++ {
		out = append(out, Facet{segments: f.segments[:i]})
	}
	return out
}

// Compare orders facets lexicographically by segment, so every descendant of
// a facet sorts after it and before the facet's next sibling.
func (f Facet) Compare(other Facet) int {
	n := min(len(f.segments), len(other.segments))
	for i := 0; i < n; i++ {
		if c := strings.Compare(f.segments[i], other.segments[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(f.segments) < len(other.segments):
		return -1
	case len(f.segments) > len(other.segments):
		return 1
	default:
		return 0
	}
}

func (f Facet) Equal(other Facet) bool {
	return f.Compare(other) == 0
}

func (f Facet) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Facet) UnmarshalText(text []byte) error {
	parsed, err := FromString(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
