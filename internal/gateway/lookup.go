package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bdgould/shiny-sub001/internal/db"
	"github.com/bdgould/shiny-sub001/internal/ontology"
)

// ErrNoCache is returned by lookups against a backend with no stored cache.
var ErrNoCache = errors.New("no ontology cache stored")

// maxAmbiguous caps the matches listed in an ambiguity error.
const maxAmbiguous = 10

// LookupElement finds one cached element of backendID by full IRI, by
// prefixed name through the cache's namespace table, or by a search that
// has a single best match.
func (g *Gateway) LookupElement(ctx context.Context, backendID, reference string) (ontology.Element, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("empty element reference")
	}

	meta, err := g.store.GetMetadata(ctx, backendID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("backend %s: %w", backendID, ErrNoCache)
	}

	// 1. Full IRI
	if looksLikeIRI(reference) {
		e, err := g.store.GetByIRI(ctx, backendID, reference, "")
		if err != nil {
			return nil, err
		}
		if e != nil {
			return e, nil
		}
	}

	// 2. Prefixed name
	namespaces, err := g.store.GetNamespaces(ctx, backendID)
	if err != nil {
		return nil, err
	}
	if iri, ok := ontology.Expand(namespaces, reference); ok {
		e, err := g.store.GetByIRI(ctx, backendID, iri, "")
		if err != nil {
			return nil, err
		}
		if e != nil {
			return e, nil
		}
	}

	// 3. Search
	hits, err := g.store.SearchCache(ctx, backendID, db.SearchOptions{Query: reference})
	if err != nil {
		return nil, err
	}
	switch len(hits) {
	case 0:
		return nil, fmt.Errorf("element not found: %s", reference)
	case 1:
		return hits[0].Element, nil
	}

	var best []db.ScoredElement
	for _, h := range hits {
		if h.Score == hits[0].Score {
			best = append(best, h)
		}
	}
	if len(best) == 1 && hits[0].Score >= 1.0 {
		return best[0].Element, nil
	}

	limit := min(len(hits), maxAmbiguous)
	lines := make([]string, limit)
	for i := 0; i < limit; i++ {
		r := hits[i].Element.Base()
		lines[i] = fmt.Sprintf("  %-10s %s %s", hits[i].Type, ontology.Compact(namespaces, r.IRI), r.Label)
	}
	return nil, fmt.Errorf("ambiguous reference '%s'. %d matches:\n%s\nUse a full IRI or prefixed name instead",
		reference, len(hits), strings.Join(lines, "\n"))
}

func looksLikeIRI(s string) bool {
	return strings.Contains(s, "://") || strings.HasPrefix(s, "urn:")
}
