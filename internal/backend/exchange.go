package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bdgould/shiny-sub001/internal/sparql"
)

const (
	// MaxQueryLength is the largest query, in characters, sent to a backend.
	MaxQueryLength = 100_000

	// DefaultExecuteTimeout bounds a query when the backend sets no timeout.
	DefaultExecuteTimeout = 30 * time.Second

	// ValidateTimeout bounds a connectivity check.
	ValidateTimeout = 10 * time.Second

	// ValidationQuery is the cheap query used to validate connectivity.
	ValidationQuery = "ASK { ?s ?p ?o }"
)

var errGraphResult = errors.New("graph results carry no bindings")

// CheckQuery rejects queries longer than MaxQueryLength.
func CheckQuery(query string) error {
	if n := utf8.RuneCountInString(query); n > MaxQueryLength {
		return &SizeLimitError{Length: n, Limit: MaxQueryLength}
	}
	return nil
}

// JoinURL appends path segments to base with exactly one slash between each.
func JoinURL(base string, segments ...string) string {
	out := strings.TrimRight(base, "/")
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s == "" {
			continue
		}
		out += "/" + s
	}
	return out
}

// WithQuery appends encoded parameters to rawURL, keeping any existing ones.
func WithQuery(rawURL string, params url.Values) string {
	if len(params) == 0 {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + params.Encode()
}

// QueryRequest builds a SPARQL protocol POST carrying the query text as the
// literal request body.
func QueryRequest(endpoint, query string, qt sparql.QueryType) *Request {
	h := http.Header{}
	h.Set("Content-Type", "application/sparql-query")
	h.Set("Accept", sparql.AcceptHeader(qt))
	return &Request{Method: http.MethodPost, URL: endpoint, Header: h, Body: []byte(query)}
}

// FormQueryRequest builds a form-encoded SPARQL protocol POST.
func FormQueryRequest(endpoint, query string, qt sparql.QueryType) *Request {
	h := http.Header{}
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	h.Set("Accept", sparql.AcceptHeader(qt))
	body := url.Values{"query": {query}}.Encode()
	return &Request{Method: http.MethodPost, URL: endpoint, Header: h, Body: []byte(body)}
}

// DecodeQueryResponse maps an endpoint reply to a QueryResult. 401 and 403
// become AuthenticationError, other non-2xx statuses TransportError.
func DecodeQueryResponse(op string, resp *Response, qt sparql.QueryType) (*QueryResult, error) {
	if resp.Unauthorized() {
		return nil, NewAuthenticationError(op, AuthInvalidCredentials, resp.Status, ServerMessage(resp.Body))
	}
	if !resp.OK() {
		return nil, &TransportError{Op: op, Status: resp.Status, Message: ServerMessage(resp.Body)}
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = sparql.AcceptHeader(qt)
	}
	if sparql.IsGraphResult(qt) {
		return &QueryResult{QueryType: qt, ContentType: ct, Text: string(resp.Body)}, nil
	}
	if !json.Valid(resp.Body) {
		return nil, NewParseError(op, fmt.Errorf("%s response is not valid JSON (content type %q)", qt, ct))
	}
	data := make(json.RawMessage, len(resp.Body))
	copy(data, resp.Body)
	return &QueryResult{QueryType: qt, ContentType: ct, Data: data}, nil
}

// ServerMessage trims an error body down to something fit for one line.
func ServerMessage(body []byte) string {
	const limit = 300
	msg := strings.Join(strings.Fields(string(body)), " ")
	if utf8.RuneCountInString(msg) > limit {
		runes := []rune(msg)
		msg = string(runes[:limit]) + "..."
	}
	return msg
}
