package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseSize caps the body read from an endpoint.
const maxResponseSize = 256 * 1024 * 1024 // 256MB

// Request is one HTTP exchange with a backend.
type Request struct {
	Method           string
	URL              string
	Header           http.Header
	Body             []byte
	Timeout          time.Duration
	AllowInsecureTLS bool
}

// Response is the buffered reply. Non-2xx statuses are responses, not errors.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// Unauthorized reports a 401 or 403 status.
func (r *Response) Unauthorized() bool {
	return r.Status == http.StatusUnauthorized || r.Status == http.StatusForbidden
}

// Transport performs HTTP exchanges. Implementations return a
// *TransportError for network failures and timeouts.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// HTTPTransport is the net/http backed Transport. It keeps two clients so
// that insecure TLS is opt-in per request.
type HTTPTransport struct {
	secure   *http.Client
	insecure *http.Client
	maxBody  int64
}

// NewHTTPTransport builds a transport with pooled connections.
func NewHTTPTransport() *HTTPTransport {
	base := http.DefaultTransport.(*http.Transport).Clone()
	lax := http.DefaultTransport.(*http.Transport).Clone()
	lax.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in per backend

	return &HTTPTransport{
		secure:   &http.Client{Transport: base},
		insecure: &http.Client{Transport: lax},
		maxBody:  maxResponseSize,
	}
}

// Do sends req and buffers the response body.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, &TransportError{Op: "build request", Err: err}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	client := t.secure
	if req.AllowInsecureTLS {
		client = t.insecure
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = redactURL(ue.URL)
		}
		return nil, &TransportError{Op: method + " " + redactURL(req.URL), Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody+1))
	if err != nil {
		return nil, &TransportError{Op: "read response", Status: resp.StatusCode, Timeout: isTimeout(err), Err: err}
	}
	if int64(len(data)) > t.maxBody {
		return nil, &TransportError{
			Op:     "read response",
			Status: resp.StatusCode,
			Err:    fmt.Errorf("body exceeds %d bytes", t.maxBody),
		}
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// redactURL drops the query string, which may carry credentials.
func redactURL(raw string) string {
	base, _, _ := strings.Cut(raw, "?")
	return base
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

// Do calls f.
func (f TransportFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

var _ Transport = (*HTTPTransport)(nil)
var _ Transport = TransportFunc(nil)
