package backend

import (
	"context"
	"time"

	"github.com/bdgould/shiny-sub001/internal/sparql"
	"go.uber.org/zap"
)

// ExecuteStateless sends query to endpoint with per-request auth headers
// and decodes the reply. It serves kinds that keep no server session.
func ExecuteStateless(ctx context.Context, deps Deps, cfg *Config, endpoint, query string, creds *Credentials, timeout time.Duration) (*QueryResult, error) {
	qt := sparql.Classify(query)
	req := QueryRequest(endpoint, query, qt)
	req.Timeout = timeout
	req.AllowInsecureTLS = cfg.AllowInsecureTLS
	if err := ApplyAuth(req.Header, cfg.AuthType, creds); err != nil {
		return nil, err
	}

	deps.Logger.Debug("sending query",
		zap.String("backend", cfg.ID),
		zap.String("kind", string(cfg.Kind)),
		zap.String("query_type", qt.String()),
		zap.Duration("timeout", timeout))

	resp, err := deps.Transport.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return DecodeQueryResponse("execute query", resp, qt)
}
