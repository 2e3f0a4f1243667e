// Package placeholder provides adapters for backend kinds that are known but
// not yet supported. They keep the kind enumeration closed.
package placeholder

import (
	"context"
	"fmt"

	"github.com/bdgould/shiny-sub001/internal/backend"
)

// Provider fails every execution.
type Provider struct {
	kind backend.Kind
}

// New creates a placeholder for kind.
func New(kind backend.Kind) *Provider {
	return &Provider{kind: kind}
}

func (p *Provider) Kind() backend.Kind { return p.kind }

func (p *Provider) BuildEndpointURL(cfg *backend.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	return cfg.Endpoint, nil
}

func (p *Provider) Execute(context.Context, *backend.Config, string, *backend.Credentials) (*backend.QueryResult, error) {
	return nil, p.unsupported()
}

func (p *Provider) Validate(context.Context, *backend.Config, *backend.Credentials) backend.ValidationResult {
	return backend.ValidationFrom(p.unsupported())
}

func (p *Provider) unsupported() error {
	return backend.NewConfigurationError("execute query", fmt.Errorf("backend kind %s is not supported yet", p.kind))
}

var _ backend.Provider = (*Provider)(nil)
