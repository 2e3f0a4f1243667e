// Package anzo adapts graphmart-addressed endpoints, where the graphmart IRI
// is embedded in the path and layers are selected with default-graph-uri.
package anzo

import (
	"context"
	"net/url"
	"strings"

	"github.com/bdgould/shiny-sub001/internal/backend"
)

// Provider uses per-request auth headers; it keeps no session.
type Provider struct {
	deps backend.Deps
}

// New creates the graphmart provider.
func New(deps backend.Deps) *Provider {
	return &Provider{deps: deps.WithDefaults()}
}

// Kind returns backend.KindAnzo.
func (p *Provider) Kind() backend.Kind { return backend.KindAnzo }

// EncodeGraphmart percent-encodes every reserved character of uri with
// uppercase hex digits, so the IRI survives as a single path segment.
func EncodeGraphmart(uri string) string {
	return strings.ReplaceAll(url.QueryEscape(uri), "+", "%20")
}

// BuildEndpointURL returns base/sparql/graphmart/{encoded uri}, adding one
// default-graph-uri parameter per selected layer unless all layers are used.
func (p *Provider) BuildEndpointURL(cfg *backend.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	pc, err := backend.ProviderConfigAs[backend.AnzoConfig](cfg)
	if err != nil {
		return "", err
	}
	return endpointURL(cfg.Endpoint, pc), nil
}

func endpointURL(base string, pc backend.AnzoConfig) string {
	u := backend.JoinURL(base, "sparql", "graphmart", EncodeGraphmart(pc.GraphmartURI))
	if pc.UseAllLayers() {
		return u
	}
	params := url.Values{}
	for _, layer := range pc.Layers {
		if layer = strings.TrimSpace(layer); layer != "" {
			params.Add("default-graph-uri", layer)
		}
	}
	return backend.WithQuery(u, params)
}

// Execute forwards query to the graphmart endpoint.
func (p *Provider) Execute(ctx context.Context, cfg *backend.Config, query string, creds *backend.Credentials) (*backend.QueryResult, error) {
	if err := backend.Prepare(cfg, query); err != nil {
		return nil, err
	}
	pc, err := backend.ProviderConfigAs[backend.AnzoConfig](cfg)
	if err != nil {
		return nil, err
	}
	timeout := backend.TimeoutOr(pc.TimeoutSeconds, backend.DefaultExecuteTimeout)
	return backend.ExecuteStateless(ctx, p.deps, cfg, endpointURL(cfg.Endpoint, pc), query, creds, timeout)
}

// Validate runs a validation ASK query against the graphmart.
func (p *Provider) Validate(ctx context.Context, cfg *backend.Config, creds *backend.Credentials) backend.ValidationResult {
	if err := backend.Prepare(cfg, backend.ValidationQuery); err != nil {
		return backend.ValidationFrom(err)
	}
	pc, err := backend.ProviderConfigAs[backend.AnzoConfig](cfg)
	if err != nil {
		return backend.ValidationFrom(err)
	}
	_, err = backend.ExecuteStateless(ctx, p.deps, cfg, endpointURL(cfg.Endpoint, pc), backend.ValidationQuery, creds, backend.ValidateTimeout)
	return backend.ValidationFrom(err)
}

var _ backend.Provider = (*Provider)(nil)
