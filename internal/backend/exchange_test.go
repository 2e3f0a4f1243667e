package backend

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/bdgould/shiny-sub001/internal/sparql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCheckQuery(t *testing.T) {
	assert.NoError(t, CheckQuery(strings.Repeat("a", MaxQueryLength)))

	err := CheckQuery(strings.Repeat("a", MaxQueryLength+1))
	require.Error(t, err)
	assert.True(t, IsSizeLimit(err))

	// Limit counts characters, not bytes.
	assert.NoError(t, CheckQuery(strings.Repeat("é", MaxQueryLength)))
}

func TestJoinURL_NoDoubleSlash(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		host := rapid.StringMatching(`[a-z]{1,10}`).Draw(t, "host")
		base := "http://" + host + strings.Repeat("/", rapid.IntRange(0, 3).Draw(t, "trailing"))
		seg := strings.Repeat("/", rapid.IntRange(0, 3).Draw(t, "leading")) + rapid.StringMatching(`[a-z]{1,8}`).Draw(t, "seg")

		got := JoinURL(base, seg)
		rest := strings.TrimPrefix(got, "http://")
		if strings.Contains(rest, "//") {
			t.Fatalf("JoinURL(%q, %q) = %q has a double slash", base, seg, got)
		}
	})
}

func TestWithQuery(t *testing.T) {
	assert.Equal(t, "http://x/a", WithQuery("http://x/a", nil))
	assert.Equal(t, "http://x/a?b=1", WithQuery("http://x/a", url.Values{"b": {"1"}}))
	assert.Equal(t, "http://x/a?z=0&b=1", WithQuery("http://x/a?z=0", url.Values{"b": {"1"}}))
}

func TestQueryRequest(t *testing.T) {
	req := QueryRequest("http://x/sparql", "ASK {}", sparql.Ask)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "application/sparql-query", req.Header.Get("Content-Type"))
	assert.Equal(t, "application/sparql-results+json", req.Header.Get("Accept"))
	assert.Equal(t, "ASK {}", string(req.Body))

	form := FormQueryRequest("http://x/sparql", "CONSTRUCT WHERE {?s ?p ?o}", sparql.Construct)
	assert.Equal(t, "text/turtle", form.Header.Get("Accept"))
	vals, err := url.ParseQuery(string(form.Body))
	require.NoError(t, err)
	assert.Equal(t, "CONSTRUCT WHERE {?s ?p ?o}", vals.Get("query"))
}

func TestDecodeQueryResponse(t *testing.T) {
	jsonHeader := http.Header{"Content-Type": {"application/sparql-results+json"}}

	t.Run("select", func(t *testing.T) {
		resp := &Response{Status: 200, Header: jsonHeader, Body: []byte(`{"head":{"vars":[]},"results":{"bindings":[]}}`)}
		res, err := DecodeQueryResponse("execute", resp, sparql.Select)
		require.NoError(t, err)
		assert.Equal(t, sparql.Select, res.QueryType)
		assert.JSONEq(t, string(resp.Body), string(res.Data))
		assert.Empty(t, res.Text)
	})

	t.Run("construct is text", func(t *testing.T) {
		resp := &Response{Status: 200, Body: []byte("<a> <b> <c> .")}
		res, err := DecodeQueryResponse("execute", resp, sparql.Construct)
		require.NoError(t, err)
		assert.Equal(t, "<a> <b> <c> .", res.Text)
		assert.Equal(t, "text/turtle", res.ContentType)
	})

	t.Run("invalid json", func(t *testing.T) {
		resp := &Response{Status: 200, Body: []byte("<html>")}
		_, err := DecodeQueryResponse("execute", resp, sparql.Select)
		assert.True(t, IsParse(err))
	})

	t.Run("forbidden", func(t *testing.T) {
		resp := &Response{Status: 403, Body: []byte("nope")}
		_, err := DecodeQueryResponse("execute", resp, sparql.Select)
		assert.True(t, IsAuthentication(err))
		assert.Equal(t, 403, StatusCode(err))
	})

	t.Run("server error", func(t *testing.T) {
		resp := &Response{Status: 500, Body: []byte("  MALFORMED\n query:   Lexical error  ")}
		_, err := DecodeQueryResponse("execute", resp, sparql.Select)
		require.Error(t, err)
		assert.Equal(t, "execute: HTTP 500: MALFORMED query: Lexical error", err.Error())
	})
}

func TestServerMessage_Truncates(t *testing.T) {
	msg := ServerMessage([]byte(strings.Repeat("x", 1000)))
	assert.True(t, strings.HasSuffix(msg, "..."))
	assert.Len(t, msg, 303)
}
