package db

import (
	"time"

	"github.com/bdgould/shiny-sub001/internal/ontology"
)

// CacheValidation reports the freshness of one backend's cache. Age, TTL
// and ExpiresAt are only set when the cache exists.
type CacheValidation struct {
	BackendID   string        `json:"backendId"`
	Exists      bool          `json:"exists"`
	Valid       bool          `json:"valid"`
	Stale       bool          `json:"stale"`
	LastUpdated time.Time     `json:"lastUpdated,omitzero"`
	Age         time.Duration `json:"age,omitempty"`
	TTL         time.Duration `json:"ttl,omitempty"`
	ExpiresAt   time.Time     `json:"expiresAt,omitzero"`
}

// DefaultSearchLimit caps search results when no limit is given.
const DefaultSearchLimit = 50

// SearchOptions narrows a cache search. No Types means all three kinds.
type SearchOptions struct {
	Query         string                 `json:"query"`
	Types         []ontology.ElementType `json:"types,omitempty"`
	Limit         int                    `json:"limit,omitempty"`
	CaseSensitive bool                   `json:"caseSensitive,omitempty"`
	PrefixOnly    bool                   `json:"prefixOnly,omitempty"`
}

// ScoredElement is one search hit.
type ScoredElement struct {
	Type    ontology.ElementType `json:"type"`
	Element ontology.Element     `json:"element"`
	Score   float64              `json:"score"`
}
