package mobi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/bdgould/shiny-sub001/internal/backend"
	"github.com/bdgould/shiny-sub001/internal/backend/backendtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var user = &backend.Credentials{Username: "admin", Password: "admin"}

func repoConfig() *backend.Config {
	return &backend.Config{
		ID:       "mobi",
		Kind:     backend.KindMobi,
		Endpoint: "https://mobi.local/mobirest/",
		AuthType: backend.AuthBasic,
		Provider: backend.MobiConfig{RepositoryID: "system"},
	}
}

// mobiServer issues a fresh cookie per login. expired counts how many
// upcoming queries are answered with 401.
func mobiServer(expired *atomic.Int32) *backendtest.Transport {
	var logins atomic.Int32
	return backendtest.NewTransport(func(req *backend.Request) (*backend.Response, error) {
		u, err := url.Parse(req.URL)
		if err != nil {
			return nil, err
		}
		if strings.HasSuffix(u.Path, "/session") {
			if u.Query().Get("password") != "admin" || len(req.Body) != 0 {
				return backendtest.Text(401, "bad credentials"), nil
			}
			n := logins.Add(1)
			resp := backendtest.Text(200, "")
			resp.Header.Add("Set-Cookie", "mobi_web_token=tok"+string(rune('0'+n))+"; Path=/")
			return resp, nil
		}
		if expired != nil && expired.Load() > 0 {
			expired.Add(-1)
			return backendtest.Text(401, "session expired"), nil
		}
		if !strings.HasPrefix(req.Header.Get("Cookie"), "mobi_web_token=") {
			return backendtest.Text(401, "no session"), nil
		}
		return backendtest.JSON(200, `{"head":{},"boolean":true}`), nil
	})
}

func TestBuildEndpointURL(t *testing.T) {
	p := New(backend.Deps{}, nil)

	got, err := p.BuildEndpointURL(repoConfig())
	require.NoError(t, err)
	assert.Equal(t, "https://mobi.local/mobirest/sparql/repository/system", got)

	cfg := repoConfig()
	cfg.Provider = backend.MobiConfig{
		QueryMode:      backend.MobiRecordMode,
		RecordID:       "https://mobi.com/records#abc",
		BranchID:       "https://mobi.com/branches#main",
		IncludeImports: true,
	}
	got, err = p.BuildEndpointURL(cfg)
	require.NoError(t, err)
	assert.Equal(t, "https://mobi.local/mobirest/sparql/ontology-record/https:%2F%2Fmobi.com%2Frecords%23abc"+
		"?branchId=https%3A%2F%2Fmobi.com%2Fbranches%23main&includeImports=true", got)

	cfg.Provider = backend.MobiConfig{QueryMode: backend.MobiRecordMode}
	_, err = p.BuildEndpointURL(cfg)
	assert.True(t, backend.IsConfiguration(err))
}

func TestExecute_SessionReusedAndFormEncoded(t *testing.T) {
	tr := mobiServer(nil)
	p := New(backend.Deps{Transport: tr}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := p.Execute(ctx, repoConfig(), "ASK { ?s ?p ?o }", user)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, tr.CountPath("/session"))

	q := tr.Calls()[1]
	assert.Equal(t, "application/x-www-form-urlencoded", q.Header.Get("Content-Type"))
	assert.Equal(t, "mobi_web_token=tok1", q.Header.Get("Cookie"))
	form, err := url.ParseQuery(string(q.Body))
	require.NoError(t, err)
	assert.Equal(t, "ASK { ?s ?p ?o }", form.Get("query"))
}

func TestExecute_ReauthenticatesOnce(t *testing.T) {
	var expired atomic.Int32
	tr := mobiServer(&expired)
	p := New(backend.Deps{Transport: tr}, nil)
	ctx := context.Background()

	_, err := p.Execute(ctx, repoConfig(), "ASK {}", user)
	require.NoError(t, err)

	expired.Store(1)
	_, err = p.Execute(ctx, repoConfig(), "ASK {}", user)
	require.NoError(t, err)
	assert.Equal(t, 2, tr.CountPath("/session"))
	assert.Equal(t, "mobi_web_token=tok2", tr.Calls()[tr.Count()-1].Header.Get("Cookie"))
}

func TestExecute_SecondUnauthorizedFails(t *testing.T) {
	var expired atomic.Int32
	expired.Store(5)
	tr := mobiServer(&expired)
	p := New(backend.Deps{Transport: tr}, nil)

	_, err := p.Execute(context.Background(), repoConfig(), "ASK {}", user)
	var ae *backend.AuthenticationError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, backend.AuthExpiredSession, ae.Reason)
	assert.Equal(t, http.StatusUnauthorized, ae.Status)
	assert.Equal(t, 2, tr.CountPath("/session"))
	assert.Equal(t, 2, tr.CountPath("/sparql/"), "one retry, then give up")
}

func TestLogin_CredentialsInQuery(t *testing.T) {
	tr := mobiServer(nil)
	p := New(backend.Deps{Transport: tr}, nil)

	_, err := p.Execute(context.Background(), repoConfig(), "ASK {}", user)
	require.NoError(t, err)

	login := tr.Calls()[0]
	assert.Equal(t, http.MethodPost, login.Method)
	u, err := url.Parse(login.URL)
	require.NoError(t, err)
	assert.Equal(t, "/mobirest/session", u.Path)
	assert.Equal(t, "admin", u.Query().Get("username"))
	assert.Equal(t, "admin", u.Query().Get("password"))
	assert.Empty(t, login.Body)
}

func TestExecute_MissingPassword(t *testing.T) {
	tr := mobiServer(nil)
	p := New(backend.Deps{Transport: tr}, nil)

	_, err := p.Execute(context.Background(), repoConfig(), "ASK {}", &backend.Credentials{Username: "admin"})
	var ae *backend.AuthenticationError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, backend.AuthMissingCredentials, ae.Reason)
	assert.Zero(t, tr.Count())
}

func TestExecute_BadPassword(t *testing.T) {
	tr := mobiServer(nil)
	p := New(backend.Deps{Transport: tr}, nil)

	_, err := p.Execute(context.Background(), repoConfig(), "ASK {}", &backend.Credentials{Username: "admin", Password: "nope"})
	var ae *backend.AuthenticationError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, backend.AuthInvalidCredentials, ae.Reason)
	assert.Zero(t, tr.CountPath("/sparql/"))
}

func TestExecute_LoginWithoutCookie(t *testing.T) {
	tr := backendtest.NewTransport(func(req *backend.Request) (*backend.Response, error) {
		return backendtest.Text(200, "{}"), nil
	})
	p := New(backend.Deps{Transport: tr}, nil)

	_, err := p.Execute(context.Background(), repoConfig(), "ASK {}", user)
	assert.True(t, backend.IsAuthentication(err))
	assert.Equal(t, 1, tr.Count())
}

func TestExecute_BearerSkipsSession(t *testing.T) {
	tr := backendtest.NewTransport(nil)
	p := New(backend.Deps{Transport: tr}, nil)
	cfg := repoConfig()
	cfg.AuthType = backend.AuthBearer

	_, err := p.Execute(context.Background(), cfg, "ASK {}", &backend.Credentials{Token: "t"})
	require.NoError(t, err)
	assert.Zero(t, tr.CountPath("/session"))
	assert.Equal(t, "Bearer t", tr.Calls()[0].Header.Get("Authorization"))
}
