package mobi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/bdgould/shiny-sub001/internal/backend"
	"golang.org/x/net/publicsuffix"
)

// Session is an authenticated server-side session, held as the cookies the
// login endpoint set.
type Session struct {
	jar http.CookieJar
}

func (s *Session) apply(req *backend.Request, target *url.URL) {
	cookies := s.jar.Cookies(target)
	if len(cookies) == 0 {
		return
	}
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	req.Header.Set("Cookie", strings.Join(parts, "; "))
}

// login posts to base/session with the credentials as query parameters and
// captures the cookies it sets.
func (p *Provider) login(ctx context.Context, cfg *backend.Config, creds *backend.Credentials) (*Session, error) {
	const op = "mobi login"

	loginURL := backend.JoinURL(cfg.Endpoint, "session")
	u, err := url.Parse(loginURL)
	if err != nil {
		return nil, backend.NewConfigurationError(op, err)
	}

	resp, err := p.deps.Transport.Do(ctx, &backend.Request{
		Method:           http.MethodPost,
		URL:              backend.WithQuery(loginURL, url.Values{"username": {creds.Username}, "password": {creds.Password}}),
		Header:           http.Header{},
		Timeout:          backend.ValidateTimeout,
		AllowInsecureTLS: cfg.AllowInsecureTLS,
	})
	if err != nil {
		return nil, err
	}
	if resp.Unauthorized() {
		return nil, backend.NewAuthenticationError(op, backend.AuthInvalidCredentials, resp.Status, backend.ServerMessage(resp.Body))
	}
	if !resp.OK() {
		return nil, &backend.TransportError{Op: op, Status: resp.Status, Message: backend.ServerMessage(resp.Body)}
	}

	cookies := (&http.Response{Header: resp.Header}).Cookies()
	if len(cookies) == 0 {
		return nil, backend.NewAuthenticationError(op, backend.AuthInvalidCredentials, resp.Status,
			fmt.Sprintf("login for %s set no session cookie", creds.Username))
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, &backend.UnknownError{Op: op, Err: err}
	}
	jar.SetCookies(u, cookies)
	return &Session{jar: jar}, nil
}
