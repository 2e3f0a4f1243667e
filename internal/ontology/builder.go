package ontology

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bdgould/shiny-sub001/internal/backend"
	"github.com/bdgould/shiny-sub001/internal/sparql"
	"go.uber.org/zap"
)

// Phase names a step of a cache build, as reported to progress callbacks.
type Phase string

const (
	PhaseClasses     Phase = "classes"
	PhaseProperties  Phase = "properties"
	PhaseIndividuals Phase = "individuals"
	PhaseNamespaces  Phase = "namespaces"
	PhaseComplete    Phase = "complete"
	PhaseError       Phase = "error"
)

// discoveryPhases run in this order.
var discoveryPhases = []Phase{PhaseClasses, PhaseProperties, PhaseIndividuals}

// Progress is one build progress report. Count is the running element
// total.
type Progress struct {
	Phase   Phase  `json:"phase"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// ProgressFunc receives progress reports. It may be nil.
type ProgressFunc func(Progress)

// ErrCacheDisabled is returned when the backend's cache policy is off.
var ErrCacheDisabled = errors.New("ontology caching is disabled")

// LimitError reports a build that would exceed the element ceiling.
type LimitError struct {
	Phase Phase
	Count int
	Limit int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("too many elements: %d after %s exceeds the limit of %d", e.Count, e.Phase, e.Limit)
}

// IsLimit reports whether err is a LimitError.
func IsLimit(err error) bool {
	var e *LimitError
	return errors.As(err, &e)
}

// Registry resolves backend configs and their cache policies.
type Registry interface {
	GetBackend(id string) (*backend.Config, bool)
	CachePolicy(id string) CachePolicy
}

// CredentialStore hands out credentials for a backend.
type CredentialStore interface {
	GetCredentials(id string) (*backend.Credentials, bool)
}

// ProviderResolver maps a backend kind to its provider.
type ProviderResolver interface {
	Provider(kind backend.Kind) (backend.Provider, error)
}

// Builder runs the discovery queries against a backend and assembles a
// Cache. It never persists anything.
type Builder struct {
	registry  Registry
	creds     CredentialStore
	providers ProviderResolver
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the builder's logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// NewBuilder creates a Builder over its collaborators.
func NewBuilder(registry Registry, creds CredentialStore, providers ProviderResolver, opts ...Option) *Builder {
	b := &Builder{
		registry:  registry,
		creds:     creds,
		providers: providers,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// target is a fully resolved backend.
type target struct {
	cfg      *backend.Config
	policy   CachePolicy
	creds    *backend.Credentials
	provider backend.Provider
}

func (b *Builder) resolve(backendID string) (*target, error) {
	const op = "resolve backend"

	cfg, ok := b.registry.GetBackend(backendID)
	if !ok {
		return nil, backend.NewConfigurationError(op, fmt.Errorf("unknown backend %q", backendID))
	}
	provider, err := b.providers.Provider(cfg.Kind)
	if err != nil {
		return nil, err
	}
	var creds *backend.Credentials
	if b.creds != nil {
		creds, _ = b.creds.GetCredentials(backendID)
	}
	return &target{
		cfg:      cfg,
		policy:   b.registry.CachePolicy(backendID).WithDefaults(),
		creds:    creds,
		provider: provider,
	}, nil
}

// FetchCache builds a fresh cache for backendID. Any failure aborts the
// whole build; the failure is also reported through onProgress with
// PhaseError.
func (b *Builder) FetchCache(ctx context.Context, backendID string, onProgress ProgressFunc) (*Cache, error) {
	report := func(p Progress) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	start := b.now()
	cache, err := b.fetch(ctx, backendID, report)
	if err != nil {
		b.logger.Warn("ontology cache build failed",
			zap.String("backend", backendID),
			zap.String("error_class", backend.Classify(err)),
			zap.Error(err))
		report(Progress{Phase: PhaseError, Message: err.Error()})
		return nil, err
	}

	b.logger.Info("ontology cache built",
		zap.String("backend", backendID),
		zap.Int("classes", cache.Metadata.Stats.ClassCount),
		zap.Int("properties", cache.Metadata.Stats.PropertyCount),
		zap.Int("individuals", cache.Metadata.Stats.IndividualCount),
		zap.Int("namespaces", cache.Metadata.Stats.NamespaceCount),
		zap.Duration("elapsed", b.now().Sub(start)))
	report(Progress{
		Phase:   PhaseComplete,
		Message: fmt.Sprintf("cached %d elements", cache.Metadata.Stats.TotalCount),
		Count:   cache.Metadata.Stats.TotalCount,
	})
	return cache, nil
}

func (b *Builder) fetch(ctx context.Context, backendID string, report ProgressFunc) (*Cache, error) {
	t, err := b.resolve(backendID)
	if err != nil {
		return nil, err
	}
	if !t.policy.Enabled {
		return nil, backend.NewConfigurationError("fetch cache", fmt.Errorf("backend %s: %w", backendID, ErrCacheDisabled))
	}

	acc := newAccumulator()
	for _, phase := range discoveryPhases {
		report(Progress{Phase: phase, Message: "discovering " + string(phase), Count: acc.total()})

		rows, err := b.discover(ctx, t, t.policy.Queries.For(phase))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", phase, err)
		}
		if usable := acc.add(phase, rows); len(rows) > 0 && usable == 0 {
			return nil, fmt.Errorf("%s: %w", phase, backend.NewParseError("discover",
				fmt.Errorf("%d rows returned but none bound ?iri", len(rows))))
		}
		if total := acc.total(); total > t.policy.MaxElements {
			return nil, &LimitError{Phase: phase, Count: total, Limit: t.policy.MaxElements}
		}
		b.logger.Debug("discovery phase done",
			zap.String("backend", backendID),
			zap.String("phase", string(phase)),
			zap.Int("rows", len(rows)),
			zap.Int("total", acc.total()))
	}

	report(Progress{Phase: PhaseNamespaces, Message: "deriving namespaces", Count: acc.total()})
	cache := &Cache{}
	cache.Classes, cache.Properties, cache.Individuals = acc.build()

	namespaces := make([]string, 0, acc.total())
	for _, e := range cache.Elements() {
		namespaces = append(namespaces, e.Base().Namespace)
	}
	cache.Namespaces = BuildNamespaces(namespaces)

	cache.Metadata = Metadata{
		BackendID:     backendID,
		LastUpdated:   b.now(),
		TTL:           t.policy.TTL,
		SchemaVersion: SchemaVersion,
	}
	cache.Metadata.Stats = cache.ComputeStats()
	return cache, nil
}

// discover runs one discovery query and returns its solution rows.
func (b *Builder) discover(ctx context.Context, t *target, query string) ([]map[string]sparql.Term, error) {
	if qt := sparql.Classify(query); qt != sparql.Select {
		return nil, backend.NewConfigurationError("discover", fmt.Errorf("discovery query must be SELECT, got %s", qt))
	}
	result, err := t.provider.Execute(ctx, t.cfg, query, t.creds)
	if err != nil {
		return nil, err
	}
	res, err := result.Results()
	if err != nil {
		return nil, err
	}
	if res.Results == nil {
		return nil, backend.NewParseError("discover", errors.New("response has no bindings table"))
	}
	return res.Bindings(), nil
}

// TestResult is the outcome of a trial query. ResultCount is set for
// SELECT and ASK queries.
type TestResult struct {
	Valid       bool   `json:"valid"`
	Error       string `json:"error,omitempty"`
	ResultCount *int   `json:"resultCount,omitempty"`
}

// TestQuery executes query against backendID and reports whether it ran.
// It is used to check edited discovery queries before saving them.
func (b *Builder) TestQuery(ctx context.Context, backendID, query string) TestResult {
	t, err := b.resolve(backendID)
	if err != nil {
		return TestResult{Error: err.Error()}
	}
	result, err := t.provider.Execute(ctx, t.cfg, query, t.creds)
	if err != nil {
		return TestResult{Error: err.Error()}
	}
	if sparql.IsGraphResult(result.QueryType) {
		return TestResult{Valid: true}
	}
	res, err := result.Results()
	if err != nil {
		return TestResult{Error: err.Error()}
	}
	n := res.Len()
	return TestResult{Valid: true, ResultCount: &n}
}
