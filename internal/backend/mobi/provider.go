// Package mobi adapts Mobi servers, which address either a whole repository
// or a versioned record and authenticate through a server-side cookie
// session.
package mobi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bdgould/shiny-sub001/internal/backend"
	"github.com/bdgould/shiny-sub001/internal/session"
	"github.com/bdgould/shiny-sub001/internal/sparql"
	"go.uber.org/zap"
)

// reauthBudget is how many times a query is retried after the server
// reports the session gone.
const reauthBudget = 1

// Provider executes queries over a cached cookie session.
type Provider struct {
	deps     backend.Deps
	sessions *session.Broker[*Session]
}

// New creates the Mobi provider. sessions is owned by the caller.
func New(deps backend.Deps, sessions *session.Broker[*Session]) *Provider {
	if sessions == nil {
		sessions = session.NewBroker[*Session](session.SessionTTL)
	}
	return &Provider{deps: deps.WithDefaults(), sessions: sessions}
}

// Kind returns backend.KindMobi.
func (p *Provider) Kind() backend.Kind { return backend.KindMobi }

// BuildEndpointURL returns the repository-wide or record-scoped endpoint.
func (p *Provider) BuildEndpointURL(cfg *backend.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	pc, err := backend.ProviderConfigAs[backend.MobiConfig](cfg)
	if err != nil {
		return "", err
	}
	return endpointURL(cfg.Endpoint, pc), nil
}

func endpointURL(base string, pc backend.MobiConfig) string {
	if pc.Mode() == backend.MobiRepositoryMode {
		return backend.JoinURL(base, "sparql", "repository", url.PathEscape(pc.RepositoryID))
	}

	u := backend.JoinURL(base, "sparql", url.PathEscape(pc.Store()), url.PathEscape(pc.RecordID))
	params := url.Values{}
	if pc.BranchID != "" {
		params.Set("branchId", pc.BranchID)
	}
	if pc.IncludeImports {
		params.Set("includeImports", "true")
	}
	return backend.WithQuery(u, params)
}

// Execute forwards query, re-authenticating once if the session expired.
func (p *Provider) Execute(ctx context.Context, cfg *backend.Config, query string, creds *backend.Credentials) (*backend.QueryResult, error) {
	if err := backend.Prepare(cfg, query); err != nil {
		return nil, err
	}
	pc, err := backend.ProviderConfigAs[backend.MobiConfig](cfg)
	if err != nil {
		return nil, err
	}
	return p.run(ctx, cfg, pc, query, creds, backend.TimeoutOr(pc.TimeoutSeconds, backend.DefaultExecuteTimeout))
}

// Validate logs in and runs a validation ASK query.
func (p *Provider) Validate(ctx context.Context, cfg *backend.Config, creds *backend.Credentials) backend.ValidationResult {
	if err := backend.Prepare(cfg, backend.ValidationQuery); err != nil {
		return backend.ValidationFrom(err)
	}
	pc, err := backend.ProviderConfigAs[backend.MobiConfig](cfg)
	if err != nil {
		return backend.ValidationFrom(err)
	}
	_, err = p.run(ctx, cfg, pc, backend.ValidationQuery, creds, backend.ValidateTimeout)
	return backend.ValidationFrom(err)
}

// run drives the session protocol: authenticated, and on a 401
// reauthenticating, until the retry budget is spent.
func (p *Provider) run(ctx context.Context, cfg *backend.Config, pc backend.MobiConfig, query string, creds *backend.Credentials, timeout time.Duration) (*backend.QueryResult, error) {
	const op = "execute query"

	endpoint := endpointURL(cfg.Endpoint, pc)
	target, err := url.Parse(endpoint)
	if err != nil {
		return nil, backend.NewConfigurationError(op, err)
	}
	qt := sparql.Classify(query)

	for attempt := 0; ; attempt++ {
		req := backend.FormQueryRequest(endpoint, query, qt)
		req.Timeout = timeout
		req.AllowInsecureTLS = cfg.AllowInsecureTLS

		key, sess, err := p.authorize(ctx, cfg, creds)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			sess.apply(req, target)
		} else if err := backend.ApplyAuth(req.Header, cfg.AuthType, creds); err != nil {
			return nil, err
		}

		resp, err := p.deps.Transport.Do(ctx, req)
		if err != nil {
			return nil, err
		}

		if resp.Unauthorized() && sess != nil {
			p.sessions.Invalidate(key)
			if resp.Status == http.StatusUnauthorized && attempt < reauthBudget {
				p.deps.Logger.Info("mobi session expired, re-authenticating",
					zap.String("backend", cfg.ID),
					zap.Int("attempt", attempt+1))
				continue
			}
			reason := backend.AuthExpiredSession
			if resp.Status == http.StatusForbidden {
				reason = backend.AuthInvalidCredentials
			}
			return nil, backend.NewAuthenticationError(op, reason, resp.Status, backend.ServerMessage(resp.Body))
		}
		return backend.DecodeQueryResponse(op, resp, qt)
	}
}

// authorize returns the cached or freshly established session. It returns
// a nil session when the backend uses a non-session auth type.
func (p *Provider) authorize(ctx context.Context, cfg *backend.Config, creds *backend.Credentials) (session.Key, *Session, error) {
	if cfg.AuthType != backend.AuthBasic {
		return session.Key{}, nil, nil
	}
	if !creds.HasBasic() {
		return session.Key{}, nil, backend.NewAuthenticationError("mobi login", backend.AuthMissingCredentials, 0,
			"session login requires a username and password")
	}

	key := session.Key{Endpoint: strings.TrimRight(cfg.Endpoint, "/"), Username: creds.Username}
	sess, reused, err := p.sessions.Acquire(ctx, key, func(ctx context.Context) (*Session, error) {
		return p.login(ctx, cfg, creds)
	})
	if err != nil {
		return key, nil, err
	}
	if !reused {
		p.deps.Logger.Debug("mobi session established", zap.String("backend", cfg.ID), zap.String("user", creds.User()))
	}
	return key, sess, nil
}
