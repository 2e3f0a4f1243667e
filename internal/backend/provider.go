// Package backend defines the uniform contract every graph-database adapter
// implements: endpoint addressing, query execution, and connectivity checks,
// plus the configuration, credential, transport and error types they share.
package backend

import (
	"context"

	"go.uber.org/zap"
)

// Provider is implemented once per backend Kind.
type Provider interface {
	// Kind returns the backend kind this provider serves.
	Kind() Kind

	// BuildEndpointURL returns the query endpoint for cfg.
	BuildEndpointURL(cfg *Config) (string, error)

	// Execute forwards query verbatim and returns the typed result.
	Execute(ctx context.Context, cfg *Config, query string, creds *Credentials) (*QueryResult, error)

	// Validate checks connectivity and credentials. It never returns an
	// error value; failures are reported in the result.
	Validate(ctx context.Context, cfg *Config, creds *Credentials) ValidationResult
}

// Deps are the collaborators handed to every provider constructor.
type Deps struct {
	Transport Transport
	Logger    *zap.Logger
}

// WithDefaults fills unset collaborators.
func (d Deps) WithDefaults() Deps {
	if d.Transport == nil {
		d.Transport = NewHTTPTransport()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

// Prepare runs the checks every provider performs before touching the
// network: the query size cap and the backend config.
func Prepare(cfg *Config, query string) error {
	if err := CheckQuery(query); err != nil {
		return err
	}
	return cfg.Validate()
}
