package graphdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bdgould/shiny-sub001/internal/backend"
	"github.com/bdgould/shiny-sub001/internal/session"
	"go.uber.org/zap"
)

// authorization is the outcome of resolving credentials for one request.
type authorization struct {
	key    session.Key
	token  string
	header http.Header
}

func (a authorization) apply(req *backend.Request) {
	if a.token != "" {
		req.Header.Set("Authorization", a.token)
		return
	}
	for k, vs := range a.header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
}

var errNoToken = errors.New("login succeeded but no token was returned")

// authorize resolves the auth header for a request. Basic credentials are
// traded for a cached token; when no login endpoint yields one, the request
// falls back to Basic auth. Other auth types use the generic headers.
func (p *Provider) authorize(ctx context.Context, cfg *backend.Config, creds *backend.Credentials) (authorization, error) {
	if cfg.AuthType != backend.AuthBasic {
		h := http.Header{}
		if err := backend.ApplyAuth(h, cfg.AuthType, creds); err != nil {
			return authorization{}, err
		}
		return authorization{header: h}, nil
	}
	if !creds.HasBasic() {
		return authorization{}, backend.NewAuthenticationError("graphdb login", backend.AuthMissingCredentials, 0,
			"basic auth requires a username and password")
	}

	key := session.Key{Endpoint: strings.TrimRight(cfg.Endpoint, "/"), Username: creds.Username}
	token, reused, err := p.tokens.Acquire(ctx, key, func(ctx context.Context) (string, error) {
		return p.login(ctx, cfg, creds)
	})
	if err == nil {
		if !reused {
			p.deps.Logger.Debug("graphdb token issued", zap.String("backend", cfg.ID), zap.String("user", creds.User()))
		}
		return authorization{key: key, token: token}, nil
	}

	var te *backend.TransportError
	if errors.As(err, &te) && te.Status == 0 {
		return authorization{}, err
	}
	p.deps.Logger.Warn("graphdb login failed, falling back to basic auth",
		zap.String("backend", cfg.ID),
		zap.Error(err))
	h := http.Header{}
	h.Set("Authorization", backend.BasicAuth(creds.Username, creds.Password))
	return authorization{key: key, header: h}, nil
}

// login tries the JSON-body endpoint first and the path-based endpoint
// second. The first token returned wins.
func (p *Provider) login(ctx context.Context, cfg *backend.Config, creds *backend.Credentials) (string, error) {
	attempts := []func(context.Context, *backend.Config, *backend.Credentials) (*backend.Request, error){
		jsonLoginRequest,
		pathLoginRequest,
	}

	var errs []error
	for _, build := range attempts {
		req, err := build(ctx, cfg, creds)
		if err != nil {
			return "", err
		}
		req.Timeout = backend.ValidateTimeout
		req.AllowInsecureTLS = cfg.AllowInsecureTLS

		resp, err := p.deps.Transport.Do(ctx, req)
		if err != nil {
			var te *backend.TransportError
			if errors.As(err, &te) && te.Status == 0 {
				return "", err
			}
			errs = append(errs, err)
			continue
		}
		if !resp.OK() {
			errs = append(errs, backend.NewAuthenticationError("graphdb login "+redact(req.URL),
				backend.AuthInvalidCredentials, resp.Status, backend.ServerMessage(resp.Body)))
			continue
		}
		if token := resp.Header.Get("Authorization"); token != "" {
			return token, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", redact(req.URL), errNoToken))
	}
	return "", errors.Join(errs...)
}

func jsonLoginRequest(_ context.Context, cfg *backend.Config, creds *backend.Credentials) (*backend.Request, error) {
	body, err := json.Marshal(map[string]string{"username": creds.Username, "password": creds.Password})
	if err != nil {
		return nil, &backend.UnknownError{Op: "graphdb login", Err: err}
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	return &backend.Request{
		Method: http.MethodPost,
		URL:    backend.JoinURL(cfg.Endpoint, "rest", "login"),
		Header: h,
		Body:   body,
	}, nil
}

func pathLoginRequest(_ context.Context, cfg *backend.Config, creds *backend.Credentials) (*backend.Request, error) {
	h := http.Header{}
	h.Set("X-GraphDB-Password", creds.Password)
	return &backend.Request{
		Method: http.MethodPost,
		URL:    backend.JoinURL(cfg.Endpoint, "rest", "login", url.PathEscape(creds.Username)),
		Header: h,
	}, nil
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "login"
	}
	return u.Path
}
