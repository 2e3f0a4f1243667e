// Package factory maps backend kinds to their provider singletons.
package factory

import (
	"fmt"
	"strings"

	"github.com/bdgould/shiny-sub001/internal/backend"
	"github.com/bdgould/shiny-sub001/internal/backend/anzo"
	"github.com/bdgould/shiny-sub001/internal/backend/graphdb"
	"github.com/bdgould/shiny-sub001/internal/backend/mobi"
	"github.com/bdgould/shiny-sub001/internal/backend/placeholder"
	"github.com/bdgould/shiny-sub001/internal/backend/sparql11"
	"github.com/bdgould/shiny-sub001/internal/session"
)

// Sessions holds the authentication caches shared by stateful providers.
// The gateway owns one Sessions for its lifetime.
type Sessions struct {
	Tokens *session.Broker[string]
	Mobi   *session.Broker[*mobi.Session]
}

// NewSessions creates empty caches with the default TTLs.
func NewSessions(opts ...session.Option) *Sessions {
	return &Sessions{
		Tokens: session.NewBroker[string](session.TokenTTL, opts...),
		Mobi:   session.NewBroker[*mobi.Session](session.SessionTTL, opts...),
	}
}

// Forget drops every cached artifact for endpoint.
func (s *Sessions) Forget(endpoint string) int {
	endpoint = strings.TrimRight(endpoint, "/")
	return s.Tokens.InvalidateEndpoint(endpoint) + s.Mobi.InvalidateEndpoint(endpoint)
}

// Factory resolves a backend kind to its provider.
type Factory struct {
	providers map[backend.Kind]backend.Provider
}

// New builds one provider per kind. It fails if any kind in
// backend.AllKinds has no provider.
func New(deps backend.Deps, sessions *Sessions) (*Factory, error) {
	deps = deps.WithDefaults()
	if sessions == nil {
		sessions = NewSessions()
	}

	providers := map[backend.Kind]backend.Provider{}
	for _, kind := range backend.AllKinds() {
		var p backend.Provider
		switch kind {
		case backend.KindSPARQL11:
			p = sparql11.New(deps)
		case backend.KindGraphDB:
			p = graphdb.New(deps, sessions.Tokens)
		case backend.KindAnzo:
			p = anzo.New(deps)
		case backend.KindMobi:
			p = mobi.New(deps, sessions.Mobi)
		case backend.KindStardog, backend.KindNeptune:
			p = placeholder.New(kind)
		default:
			return nil, backend.NewConfigurationError("build factory", fmt.Errorf("no provider for backend kind %q", kind))
		}
		providers[kind] = p
	}
	return &Factory{providers: providers}, nil
}

// Provider returns the singleton provider for kind.
func (f *Factory) Provider(kind backend.Kind) (backend.Provider, error) {
	p, ok := f.providers[kind]
	if !ok {
		return nil, backend.NewConfigurationError("resolve provider", fmt.Errorf("unknown backend kind %q", kind))
	}
	return p, nil
}

// Kinds lists the kinds the factory serves.
func (f *Factory) Kinds() []backend.Kind {
	kinds := make([]backend.Kind, 0, len(f.providers))
	for _, k := range backend.AllKinds() {
		if _, ok := f.providers[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
