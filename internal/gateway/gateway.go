// Package gateway is the public surface of sparqlgw: it executes queries
// against configured backends and maintains their persisted ontology caches.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/bdgould/shiny-sub001/internal/backend"
	"github.com/bdgould/shiny-sub001/internal/backend/factory"
	"github.com/bdgould/shiny-sub001/internal/db"
	"github.com/bdgould/shiny-sub001/internal/metric"
	"github.com/bdgould/shiny-sub001/internal/ontology"
	"github.com/bdgould/shiny-sub001/internal/session"
	"github.com/bdgould/shiny-sub001/internal/sparql"
)

// Options are the collaborators of a Gateway. Registry, Credentials and
// Store are required.
type Options struct {
	Registry    ontology.Registry
	Credentials ontology.CredentialStore
	Store       *db.DB
	Transport   backend.Transport
	Logger      *zap.Logger
	Metrics     *metric.Metrics
	Now         func() time.Time
}

// credentialDeleter is implemented by credential stores that can drop a
// backend's credentials.
type credentialDeleter interface {
	DeleteCredentials(id string)
}

// Gateway owns the provider factory, the session caches and the background
// cache refreshes.
type Gateway struct {
	registry  ontology.Registry
	creds     ontology.CredentialStore
	store     *db.DB
	providers *factory.Factory
	sessions  *factory.Sessions
	builder   *ontology.Builder
	logger    *zap.Logger
	metrics   *metric.Metrics
	now       func() time.Time

	refreshes singleflight.Group
	wg        sync.WaitGroup
	bgCtx     context.Context
	cancel    context.CancelFunc
}

// New wires a Gateway from opts.
func New(opts Options) (*Gateway, error) {
	if opts.Registry == nil {
		return nil, errors.New("gateway: registry is required")
	}
	if opts.Credentials == nil {
		return nil, errors.New("gateway: credential store is required")
	}
	if opts.Store == nil {
		return nil, errors.New("gateway: cache store is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	sessions := factory.NewSessions(session.WithClock(opts.Now))
	providers, err := factory.New(backend.Deps{
		Transport: opts.Transport,
		Logger:    opts.Logger,
	}, sessions)
	if err != nil {
		return nil, err
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		registry:  opts.Registry,
		creds:     opts.Credentials,
		store:     opts.Store,
		providers: providers,
		sessions:  sessions,
		builder: ontology.NewBuilder(opts.Registry, opts.Credentials, providers,
			ontology.WithLogger(opts.Logger), ontology.WithClock(opts.Now)),
		logger:  opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
		bgCtx:   bgCtx,
		cancel:  cancel,
	}, nil
}

// target is a backend resolved for one call.
type target struct {
	cfg      *backend.Config
	provider backend.Provider
	creds    *backend.Credentials
}

func (g *Gateway) resolve(op, backendID string) (*target, error) {
	cfg, ok := g.registry.GetBackend(backendID)
	if !ok {
		return nil, backend.NewConfigurationError(op, fmt.Errorf("backend %q not found", backendID))
	}
	p, err := g.providers.Provider(cfg.Kind)
	if err != nil {
		return nil, err
	}
	creds, _ := g.creds.GetCredentials(backendID)
	return &target{cfg: cfg, provider: p, creds: creds}, nil
}

// ExecuteQuery runs query verbatim against backendID.
func (g *Gateway) ExecuteQuery(ctx context.Context, query, backendID string) (*backend.QueryResult, error) {
	log := g.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("backend", backendID))

	t, err := g.resolve("execute query", backendID)
	if err != nil {
		log.Warn("query rejected", zap.Error(err))
		return nil, err
	}

	qt := sparql.Classify(query)
	start := g.now()
	result, err := t.provider.Execute(ctx, t.cfg, query, t.creds)
	elapsed := g.now().Sub(start)
	status := backend.Classify(err)
	g.metrics.RecordQuery(string(t.cfg.Kind), string(qt), status, elapsed)

	if err != nil {
		log.Warn("query failed",
			zap.String("kind", string(t.cfg.Kind)),
			zap.String("query_type", string(qt)),
			zap.String("error_class", status),
			zap.Int("status", backend.StatusCode(err)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, err
	}
	log.Info("query executed",
		zap.String("kind", string(t.cfg.Kind)),
		zap.String("query_type", string(result.QueryType)),
		zap.Duration("elapsed", elapsed))
	return result, nil
}

// ValidateBackend checks connectivity and credentials for backendID.
func (g *Gateway) ValidateBackend(ctx context.Context, backendID string) backend.ValidationResult {
	t, err := g.resolve("validate backend", backendID)
	if err != nil {
		return backend.ValidationFrom(err)
	}
	res := t.provider.Validate(ctx, t.cfg, t.creds)
	g.logger.Info("backend validated",
		zap.String("backend", backendID),
		zap.Bool("valid", res.Valid),
		zap.String("error", res.Error))
	return res
}

// RefreshCache rebuilds backendID's cache from the network and persists it.
// On failure the previously stored cache is left in place.
func (g *Gateway) RefreshCache(ctx context.Context, backendID string, progress ontology.ProgressFunc) (*ontology.Cache, error) {
	cache, err := g.builder.FetchCache(ctx, backendID, progress)
	if err != nil {
		g.metrics.RecordCacheBuild(backendID, buildStatus(err), 0)
		return nil, err
	}
	if err := g.store.StoreCache(ctx, cache); err != nil {
		g.metrics.RecordCacheBuild(backendID, "store_failed", 0)
		return nil, fmt.Errorf("storing cache for %s: %w", backendID, err)
	}
	g.metrics.RecordCacheBuild(backendID, "ok", cache.Metadata.Stats.TotalCount)
	return cache, nil
}

// FetchOntologyCache builds and persists backendID's cache, reporting
// progress through the build phases.
func (g *Gateway) FetchOntologyCache(ctx context.Context, backendID string, progress ontology.ProgressFunc) (*ontology.Cache, error) {
	return g.RefreshCache(ctx, backendID, progress)
}

func buildStatus(err error) string {
	if ontology.IsLimit(err) {
		return "limit"
	}
	return backend.Classify(err)
}

// ReadCache returns the stored cache without touching the network. It
// returns nil when no cache exists.
func (g *Gateway) ReadCache(ctx context.Context, backendID string) (*ontology.Cache, error) {
	return g.store.GetCache(ctx, backendID)
}

// GetCache returns a usable cache for backendID. A fresh cache is returned
// as is. A stale cache is returned immediately while a refresh runs in the
// background. A missing cache is built before returning. progress only
// observes a foreground build.
func (g *Gateway) GetCache(ctx context.Context, backendID string, progress ontology.ProgressFunc) (*ontology.Cache, error) {
	v, err := g.store.ValidateCache(ctx, backendID)
	if err != nil {
		return nil, err
	}

	if v.Exists {
		cache, err := g.store.GetCache(ctx, backendID)
		if err != nil {
			return nil, err
		}
		if cache != nil {
			if v.Stale && g.registry.CachePolicy(backendID).Enabled {
				g.refreshInBackground(backendID)
			}
			return cache, nil
		}
	}

	res, err, _ := g.refreshes.Do(backendID, func() (any, error) {
		return g.RefreshCache(ctx, backendID, progress)
	})
	if err != nil {
		return nil, err
	}
	return res.(*ontology.Cache), nil
}

// refreshInBackground rebuilds backendID's cache on the gateway's own
// context. Concurrent refreshes of one backend share a single build.
func (g *Gateway) refreshInBackground(backendID string) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		_, err, shared := g.refreshes.Do(backendID, func() (any, error) {
			return g.RefreshCache(g.bgCtx, backendID, nil)
		})
		if err != nil {
			g.logger.Warn("background cache refresh failed",
				zap.String("backend", backendID),
				zap.Bool("shared", shared),
				zap.Error(err))
			return
		}
		g.logger.Debug("background cache refresh done",
			zap.String("backend", backendID),
			zap.Bool("shared", shared))
	}()
}

// Wait blocks until every background refresh has finished.
func (g *Gateway) Wait() {
	g.wg.Wait()
}

// Close cancels background refreshes and waits for them to return.
func (g *Gateway) Close() {
	g.cancel()
	g.wg.Wait()
}

// TestCacheQuery runs a candidate discovery query without storing anything.
func (g *Gateway) TestCacheQuery(ctx context.Context, backendID, query string) ontology.TestResult {
	return g.builder.TestQuery(ctx, backendID, query)
}

// SearchCachedElements searches the stored cache of backendID.
func (g *Gateway) SearchCachedElements(ctx context.Context, backendID string, opts db.SearchOptions) ([]db.ScoredElement, error) {
	return g.store.SearchCache(ctx, backendID, opts)
}

// ValidateCacheFreshness reports whether backendID's stored cache is fresh.
func (g *Gateway) ValidateCacheFreshness(ctx context.Context, backendID string) (*db.CacheValidation, error) {
	return g.store.ValidateCache(ctx, backendID)
}

// InvalidateCache deletes backendID's stored cache.
func (g *Gateway) InvalidateCache(ctx context.Context, backendID string) error {
	return g.store.ClearCache(ctx, backendID)
}

// ListCachedBackends returns the ids of every backend with a stored cache.
func (g *Gateway) ListCachedBackends(ctx context.Context) ([]string, error) {
	return g.store.ListCachedBackendIDs(ctx)
}

// ForgetBackend removes everything the gateway holds for a deleted backend:
// its stored cache, its cached sessions and, where the store supports it,
// its credentials.
func (g *Gateway) ForgetBackend(ctx context.Context, backendID string) error {
	if err := g.store.ClearCache(ctx, backendID); err != nil {
		return err
	}
	evicted := 0
	if cfg, ok := g.registry.GetBackend(backendID); ok {
		evicted = g.sessions.Forget(cfg.Endpoint)
	}
	if d, ok := g.creds.(credentialDeleter); ok {
		d.DeleteCredentials(backendID)
	}
	g.metrics.ForgetBackend(backendID, evicted)
	g.logger.Info("backend forgotten",
		zap.String("backend", backendID),
		zap.Int("sessions_evicted", evicted))
	return nil
}
