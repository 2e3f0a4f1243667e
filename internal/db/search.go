package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/bdgould/shiny-sub001/internal/ontology"
)

// Match scores, highest first.
const (
	scoreExactLabel     = 1.0
	scoreLabelPrefix    = 0.9
	scoreLocalPrefix    = 0.7
	scoreLabelSubstring = 0.6
	scoreIRISubstring   = 0.5
	scoreDescription    = 0.3
)

// matcher compares fields against the query under the search options.
type matcher struct {
	query      string
	fold       bool
	prefixOnly bool
}

func (m matcher) norm(s string) string {
	if m.fold {
		return strings.ToLower(s)
	}
	return s
}

// contains is a prefix test in prefix-only mode.
func (m matcher) contains(field string) bool {
	if field == "" {
		return false
	}
	if m.prefixOnly {
		return strings.HasPrefix(m.norm(field), m.query)
	}
	return strings.Contains(m.norm(field), m.query)
}

// score returns the best match score for r, or 0 when nothing matches.
func (m matcher) score(r *ontology.Resource) float64 {
	label := m.norm(r.Label)
	switch {
	case r.Label != "" && label == m.query:
		return scoreExactLabel
	case r.Label != "" && strings.HasPrefix(label, m.query):
		return scoreLabelPrefix
	case r.LocalName != "" && strings.HasPrefix(m.norm(r.LocalName), m.query):
		return scoreLocalPrefix
	case m.contains(r.Label):
		return scoreLabelSubstring
	case m.contains(r.IRI):
		return scoreIRISubstring
	case m.contains(r.Description):
		return scoreDescription
	}
	return 0
}

// likePattern escapes LIKE wildcards in q and wraps it for a substring
// match.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// SearchCache scores elements of backendID's cache against opts.Query and
// returns the best matches, highest score first. Ties keep discovery order.
func (d *DB) SearchCache(ctx context.Context, backendID string, opts SearchOptions) ([]ScoredElement, error) {
	query := strings.TrimSpace(opts.Query)
	if query == "" {
		return []ScoredElement{}, nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	types := opts.Types
	if len(types) == 0 {
		types = ontology.AllElementTypes()
	}

	m := matcher{fold: !opts.CaseSensitive, prefixOnly: opts.PrefixOnly}
	m.query = m.norm(query)

	// LIKE narrows the scan; ?1 is the backend id. LIKE folds ASCII case
	// only, so non-ASCII case-insensitive queries are scored without it.
	var filter string
	var args []any
	if opts.CaseSensitive || isASCII(query) {
		p := likePattern(query)
		filter = `iri LIKE ?2 ESCAPE '\' OR label LIKE ?2 ESCAPE '\' OR description LIKE ?2 ESCAPE '\' OR local_name LIKE ?2 ESCAPE '\'`
		args = []any{p}
	}

	var hits []ScoredElement
	for _, typ := range types {
		elements, err := loadElements(ctx, d.conn, backendID, typ, filter, args...)
		if err != nil {
			return nil, fmt.Errorf("searching %s in %s: %w", typ, backendID, err)
		}
		for _, e := range elements {
			if s := m.score(e.Base()); s > 0 {
				hits = append(hits, ScoredElement{Type: typ, Element: e, Score: s})
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	if hits == nil {
		hits = []ScoredElement{}
	}
	return hits, nil
}
