package executor

import (
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/facet"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/errors"
)

type facetRequest struct {
	field    string
	prefixes []facet.Facet
}

// parseFacetRequests validates the requested fields in sorted order and
// drops duplicate prefixes so no child is counted twice.
func parseFacetRequests(s *schema.Schema, facets map[string][]string) ([]facetRequest, error) {
	fields := make([]string, 0, len(facets))
	for f := range facets {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	out := make([]facetRequest, 0, len(fields))
	for _, field := range fields {
		entry, err := s.Lookup(field)
		if err != nil {
			return nil, err
		}
		if entry.Type != schema.TypeFacet {
			return nil, fmt.Errorf("%w: cannot count facets of %s field %q", apperrors.ErrFieldType, entry.Type, field)
		}
		req := facetRequest{field: field}
		seen := make(map[string]struct{})
		for _, raw := range facets[field] {
			p, err := facet.FromString(raw)
			if err != nil {
				return nil, fmt.Errorf("facet request %q: %w", field, err)
			}
			if _, dup := seen[p.String()]; dup {
				continue
			}
			seen[p.String()] = struct{}{}
			req.prefixes = append(req.prefixes, p)
		}
		out = append(out, req)
	}
	return out, nil
}

// countFacets counts, per immediate child of each requested prefix, how
// many matched documents carry that child or one of its descendants.
func countFacets(seg *index.Segment, matched *roaring.Bitmap, requests []facetRequest) map[string]map[string]uint64 {
	if len(requests) == 0 || matched.IsEmpty() {
		return nil
	}
	out := make(map[string]map[string]uint64, len(requests))
	for _, req := range requests {
		counts := make(map[string]uint64)
		for _, prefix := range req.prefixes {
			for _, child := range seg.FacetChildren(req.field, prefix) {
				if n := child.Docs.AndCardinality(matched); n > 0 {
					counts[child.Path.String()] += n
				}
			}
		}
		out[req.field] = counts
	}
	return out
}

// mergeFacetCounts sums per-segment counts. Every requested field appears in
// the result, possibly with no children.
func mergeFacetCounts(requests []facetRequest, perSegment []map[string]map[string]uint64) map[string]map[string]uint64 {
	out := make(map[string]map[string]uint64, len(requests))
	for _, req := range requests {
		out[req.field] = make(map[string]uint64)
	}
	for _, seg := range perSegment {
		for field, counts := range seg {
			for path, n := range counts {
				out[field][path] += n
			}
		}
	}
	return out
}
