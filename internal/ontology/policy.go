package ontology

import "time"

const (
	// DefaultTTL is how long a cache stays fresh.
	DefaultTTL = 24 * time.Hour

	// DefaultMaxElements caps the total elements one cache may hold.
	DefaultMaxElements = 10_000
)

// Queries overrides the discovery queries. Empty fields use the defaults.
type Queries struct {
	Classes     string `json:"classes,omitempty" mapstructure:"classes"`
	Properties  string `json:"properties,omitempty" mapstructure:"properties"`
	Individuals string `json:"individuals,omitempty" mapstructure:"individuals"`
}

// For returns the query text for a discovery phase.
func (q Queries) For(phase Phase) string {
	switch phase {
	case PhaseClasses:
		return firstNonEmpty(q.Classes, DefaultClassesQuery)
	case PhaseProperties:
		return firstNonEmpty(q.Properties, DefaultPropertiesQuery)
	case PhaseIndividuals:
		return firstNonEmpty(q.Individuals, DefaultIndividualsQuery)
	}
	return ""
}

// CachePolicy controls caching for one backend.
type CachePolicy struct {
	Enabled     bool          `json:"enabled" mapstructure:"enabled"`
	TTL         time.Duration `json:"ttl" mapstructure:"ttl"`
	MaxElements int           `json:"maxElements" mapstructure:"max_elements"`
	Queries     Queries       `json:"queries" mapstructure:"queries"`
}

// DefaultCachePolicy enables caching with the default TTL and ceiling.
func DefaultCachePolicy() CachePolicy {
	return CachePolicy{Enabled: true, TTL: DefaultTTL, MaxElements: DefaultMaxElements}
}

// WithDefaults fills an unset TTL or ceiling. Enabled is left as given.
func (p CachePolicy) WithDefaults() CachePolicy {
	if p.TTL <= 0 {
		p.TTL = DefaultTTL
	}
	if p.MaxElements <= 0 {
		p.MaxElements = DefaultMaxElements
	}
	return p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
