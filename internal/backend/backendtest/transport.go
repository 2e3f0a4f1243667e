// Package backendtest provides a recording fake Transport and SPARQL JSON
// builders for provider tests.
package backendtest

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/bdgould/shiny-sub001/internal/backend"
)

// HandlerFunc answers one request.
type HandlerFunc func(req *backend.Request) (*backend.Response, error)

// Transport records every request and answers it with Handler.
type Transport struct {
	mu      sync.Mutex
	handler HandlerFunc
	calls   []*backend.Request
}

// NewTransport creates a recording transport.
func NewTransport(h HandlerFunc) *Transport {
	return &Transport{handler: h}
}

// Do records req and delegates to the handler.
func (t *Transport) Do(_ context.Context, req *backend.Request) (*backend.Response, error) {
	t.mu.Lock()
	clone := *req
	clone.Header = req.Header.Clone()
	t.calls = append(t.calls, &clone)
	h := t.handler
	t.mu.Unlock()

	if h == nil {
		return JSON(http.StatusOK, `{"head":{},"boolean":true}`), nil
	}
	return h(req)
}

// Calls returns the recorded requests in order.
func (t *Transport) Calls() []*backend.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*backend.Request, len(t.calls))
	copy(out, t.calls)
	return out
}

// Count returns the number of recorded requests.
func (t *Transport) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

// CountPath returns how many recorded requests had a URL containing fragment.
func (t *Transport) CountPath(fragment string) int {
	n := 0
	for _, c := range t.Calls() {
		if strings.Contains(c.URL, fragment) {
			n++
		}
	}
	return n
}

// JSON builds a SPARQL JSON results response.
func JSON(status int, body string) *backend.Response {
	return &backend.Response{
		Status: status,
		Header: http.Header{"Content-Type": {"application/sparql-results+json"}},
		Body:   []byte(body),
	}
}

// Text builds a plain response.
func Text(status int, body string) *backend.Response {
	return &backend.Response{Status: status, Header: http.Header{}, Body: []byte(body)}
}

// Row is one solution; values starting with "http" or "urn:" are IRIs.
type Row map[string]string

// Select renders rows as a SPARQL JSON results document.
func Select(vars []string, rows ...Row) string {
	type term struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	}
	doc := map[string]any{"head": map[string]any{"vars": vars}}
	bindings := make([]map[string]term, 0, len(rows))
	for _, r := range rows {
		b := map[string]term{}
		for k, v := range r {
			typ := "literal"
			if strings.HasPrefix(v, "http") || strings.HasPrefix(v, "urn:") {
				typ = "uri"
			}
			b[k] = term{Type: typ, Value: v}
		}
		bindings = append(bindings, b)
	}
	doc["results"] = map[string]any{"bindings": bindings}
	out, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return string(out)
}
