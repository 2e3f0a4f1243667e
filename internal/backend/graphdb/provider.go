// Package graphdb adapts repository-addressed GraphDB servers. Basic
// credentials are exchanged for a token at one of the two login endpoints
// GraphDB has shipped; the token is cached per (endpoint, username).
package graphdb

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/bdgould/shiny-sub001/internal/backend"
	"github.com/bdgould/shiny-sub001/internal/session"
	"github.com/bdgould/shiny-sub001/internal/sparql"
	"go.uber.org/zap"
)

// Provider executes queries against /repositories/{id}.
type Provider struct {
	deps   backend.Deps
	tokens *session.Broker[string]
}

// New creates the GraphDB provider. tokens holds issued tokens and is owned
// by the caller.
func New(deps backend.Deps, tokens *session.Broker[string]) *Provider {
	if tokens == nil {
		tokens = session.NewBroker[string](session.TokenTTL)
	}
	return &Provider{deps: deps.WithDefaults(), tokens: tokens}
}

// Kind returns backend.KindGraphDB.
func (p *Provider) Kind() backend.Kind { return backend.KindGraphDB }

// BuildEndpointURL returns base/repositories/{id} with inference, sameAs and
// timeout parameters.
func (p *Provider) BuildEndpointURL(cfg *backend.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	pc, err := backend.ProviderConfigAs[backend.GraphDBConfig](cfg)
	if err != nil {
		return "", err
	}
	return endpointURL(cfg.Endpoint, pc), nil
}

func endpointURL(base string, pc backend.GraphDBConfig) string {
	params := url.Values{}
	params.Set("infer", strconv.FormatBool(pc.InferenceEnabled()))
	params.Set("sameAs", strconv.FormatBool(pc.SameAsEnabled()))
	if pc.TimeoutSeconds > 0 {
		params.Set("timeout", strconv.Itoa(pc.TimeoutSeconds))
	}
	return backend.WithQuery(backend.JoinURL(base, "repositories", url.PathEscape(pc.RepositoryID)), params)
}

// Execute forwards query to the repository.
func (p *Provider) Execute(ctx context.Context, cfg *backend.Config, query string, creds *backend.Credentials) (*backend.QueryResult, error) {
	if err := backend.Prepare(cfg, query); err != nil {
		return nil, err
	}
	pc, err := backend.ProviderConfigAs[backend.GraphDBConfig](cfg)
	if err != nil {
		return nil, err
	}
	return p.run(ctx, cfg, pc, query, creds, backend.TimeoutOr(pc.TimeoutSeconds, backend.DefaultExecuteTimeout))
}

// Validate logs in if needed and runs a validation ASK query.
func (p *Provider) Validate(ctx context.Context, cfg *backend.Config, creds *backend.Credentials) backend.ValidationResult {
	if err := backend.Prepare(cfg, backend.ValidationQuery); err != nil {
		return backend.ValidationFrom(err)
	}
	pc, err := backend.ProviderConfigAs[backend.GraphDBConfig](cfg)
	if err != nil {
		return backend.ValidationFrom(err)
	}
	_, err = p.run(ctx, cfg, pc, backend.ValidationQuery, creds, backend.ValidateTimeout)
	return backend.ValidationFrom(err)
}

func (p *Provider) run(ctx context.Context, cfg *backend.Config, pc backend.GraphDBConfig, query string, creds *backend.Credentials, timeout time.Duration) (*backend.QueryResult, error) {
	const op = "execute query"

	qt := sparql.Classify(query)
	req := backend.QueryRequest(endpointURL(cfg.Endpoint, pc), query, qt)
	req.Timeout = timeout
	req.AllowInsecureTLS = cfg.AllowInsecureTLS

	auth, err := p.authorize(ctx, cfg, creds)
	if err != nil {
		return nil, err
	}
	auth.apply(req)

	resp, err := p.deps.Transport.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Unauthorized() {
		if auth.token != "" {
			p.tokens.Invalidate(auth.key)
			p.deps.Logger.Info("graphdb token rejected, evicted",
				zap.String("backend", cfg.ID),
				zap.Int("status", resp.Status))
			return nil, backend.NewAuthenticationError(op, backend.AuthExpiredSession, resp.Status, backend.ServerMessage(resp.Body))
		}
		return nil, backend.NewAuthenticationError(op, backend.AuthInvalidCredentials, resp.Status, backend.ServerMessage(resp.Body))
	}
	return backend.DecodeQueryResponse(op, resp, qt)
}
