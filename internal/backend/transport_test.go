package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_StatusIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "ping", string(body))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	defer srv.Close()

	tr := NewHTTPTransport()
	resp, err := tr.Do(context.Background(), &Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Header: http.Header{"X-Test": {"yes"}},
		Body:   []byte("ping"),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.Status)
	assert.Equal(t, "short and stout", string(resp.Body))
	assert.False(t, resp.OK())
}

func TestHTTPTransport_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewHTTPTransport().Do(context.Background(), &Request{URL: srv.URL, Timeout: 50 * time.Millisecond})
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.True(t, te.Timeout)
	assert.Zero(t, te.Status)
}

func TestHTTPTransport_InsecureTLSIsOptIn(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tr := NewHTTPTransport()

	_, err := tr.Do(context.Background(), &Request{URL: srv.URL, Timeout: 5 * time.Second})
	assert.True(t, IsTransport(err), "self-signed certificate must be rejected by default")

	resp, err := tr.Do(context.Background(), &Request{URL: srv.URL, Timeout: 5 * time.Second, AllowInsecureTLS: true})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.Status)
}

func TestHTTPTransport_BodyOverLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 9)))
	}))
	defer srv.Close()

	tr := NewHTTPTransport()
	tr.maxBody = 8

	_, err := tr.Do(context.Background(), &Request{URL: srv.URL})
	require.Error(t, err)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "read response", te.Op)
	assert.Equal(t, http.StatusOK, te.Status)
	assert.Contains(t, err.Error(), "exceeds 8 bytes")

	tr.maxBody = 9
	resp, err := tr.Do(context.Background(), &Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Len(t, resp.Body, 9)
}

func TestHTTPTransport_ErrorOmitsQuery(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	_, err := NewHTTPTransport().Do(context.Background(), &Request{
		Method:  http.MethodPost,
		URL:     srv.URL + "/session?username=admin&password=hunter2",
		Timeout: 5 * time.Second,
	})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter2")
	assert.Contains(t, err.Error(), "/session")
}

func TestTransportError_Error(t *testing.T) {
	cause := errors.New("connection reset")
	tests := []struct {
		name string
		err  *TransportError
		want string
	}{
		{"timeout", &TransportError{Op: "query", Timeout: true, Err: cause}, "query: request timed out: connection reset"},
		{"no status", &TransportError{Op: "query", Err: cause}, "query: connection reset"},
		{"message", &TransportError{Op: "query", Status: 502, Message: "bad gateway", Err: cause}, "query: HTTP 502: bad gateway"},
		{"status with cause", &TransportError{Op: "read response", Status: 200, Err: cause}, "read response: HTTP 200: connection reset"},
		{"status only", &TransportError{Op: "query", Status: 500}, "query: HTTP 500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}
