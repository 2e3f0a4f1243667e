// Package sparql11 adapts plain SPARQL 1.1 protocol endpoints.
package sparql11

import (
	"context"

	"github.com/bdgould/shiny-sub001/internal/backend"
)

// Provider talks to an endpoint used verbatim, with per-request auth.
type Provider struct {
	deps backend.Deps
}

// New creates the SPARQL 1.1 provider.
func New(deps backend.Deps) *Provider {
	return &Provider{deps: deps.WithDefaults()}
}

// Kind returns backend.KindSPARQL11.
func (p *Provider) Kind() backend.Kind { return backend.KindSPARQL11 }

// BuildEndpointURL returns the configured endpoint unchanged.
func (p *Provider) BuildEndpointURL(cfg *backend.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if _, err := backend.ProviderConfigAs[backend.SPARQL11Config](cfg); err != nil {
		return "", err
	}
	return cfg.Endpoint, nil
}

// Execute forwards query to the endpoint.
func (p *Provider) Execute(ctx context.Context, cfg *backend.Config, query string, creds *backend.Credentials) (*backend.QueryResult, error) {
	if err := backend.Prepare(cfg, query); err != nil {
		return nil, err
	}
	pc, err := backend.ProviderConfigAs[backend.SPARQL11Config](cfg)
	if err != nil {
		return nil, err
	}
	timeout := backend.TimeoutOr(pc.TimeoutSeconds, backend.DefaultExecuteTimeout)
	return backend.ExecuteStateless(ctx, p.deps, cfg, cfg.Endpoint, query, creds, timeout)
}

// Validate runs a validation ASK query.
func (p *Provider) Validate(ctx context.Context, cfg *backend.Config, creds *backend.Credentials) backend.ValidationResult {
	if err := backend.Prepare(cfg, backend.ValidationQuery); err != nil {
		return backend.ValidationFrom(err)
	}
	if _, err := backend.ProviderConfigAs[backend.SPARQL11Config](cfg); err != nil {
		return backend.ValidationFrom(err)
	}
	_, err := backend.ExecuteStateless(ctx, p.deps, cfg, cfg.Endpoint, backend.ValidationQuery, creds, backend.ValidateTimeout)
	return backend.ValidationFrom(err)
}

var _ backend.Provider = (*Provider)(nil)
