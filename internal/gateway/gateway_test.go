package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdgould/shiny-sub001/internal/backend"
	"github.com/bdgould/shiny-sub001/internal/backend/backendtest"
	"github.com/bdgould/shiny-sub001/internal/config"
	"github.com/bdgould/shiny-sub001/internal/db"
	"github.com/bdgould/shiny-sub001/internal/metric"
	"github.com/bdgould/shiny-sub001/internal/ontology"
	"github.com/bdgould/shiny-sub001/internal/sparql"
)

const ex = "http://example.org/ont#"

// clock is shared with background refreshes.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// ontologyServer answers the default discovery queries, graphdb logins and
// plain ASK queries. Setting fail makes discovery return HTTP 500; setting
// extra adds a fourth class.
type ontologyServer struct {
	*backendtest.Transport
	fail  atomic.Bool
	extra atomic.Bool
}

func newOntologyServer() *ontologyServer {
	s := &ontologyServer{}
	s.Transport = backendtest.NewTransport(func(req *backend.Request) (*backend.Response, error) {
		body := string(req.Body)
		switch {
		case strings.HasSuffix(req.URL, "/rest/login"):
			resp := backendtest.Text(200, "")
			resp.Header.Set("Authorization", "GDB tok-1")
			return resp, nil
		case strings.Contains(body, "ASK"):
			return backendtest.JSON(200, `{"head":{},"boolean":true}`), nil
		case s.fail.Load():
			return backendtest.Text(500, "repository unavailable"), nil
		case strings.Contains(body, "?domain"):
			return backendtest.JSON(200, backendtest.Select([]string{"iri", "label", "range"},
				backendtest.Row{"iri": ex + "knows", "label": "knows", "range": ex + "Person"},
			)), nil
		case strings.Contains(body, "?class"):
			return backendtest.JSON(200, backendtest.Select([]string{"iri", "label", "class"},
				backendtest.Row{"iri": "http://example.org/data/alice", "label": "Alice", "class": ex + "Person"},
			)), nil
		default:
			rows := []backendtest.Row{
				{"iri": ex + "Person", "label": "Person"},
				{"iri": ex + "Personnel", "label": "Personnel"},
				{"iri": ex + "Agent", "label": "Agent"},
			}
			if s.extra.Load() {
				rows = append(rows, backendtest.Row{"iri": ex + "Organization", "label": "Organization"})
			}
			return backendtest.JSON(200, backendtest.Select([]string{"iri", "label"}, rows...)), nil
		}
	})
	return s
}

type fixture struct {
	gw      *Gateway
	store   *db.DB
	server  *ontologyServer
	clock   *clock
	creds   *config.CredentialStore
	metrics *metric.Metrics
}

func setup(t *testing.T, policy *ontology.CachePolicy) *fixture {
	t.Helper()
	clk := &clock{t: time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)}

	store, err := db.OpenDB(":memory:", db.WithClock(clk.now))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := config.NewRegistry(ontology.DefaultCachePolicy())
	require.NoError(t, reg.Add(&backend.Config{
		ID: "local", Kind: backend.KindSPARQL11, Endpoint: "http://localhost:3030/ds/sparql",
	}, policy))
	require.NoError(t, reg.Add(&backend.Config{
		ID: "gdb", Kind: backend.KindGraphDB, Endpoint: "http://gdb:7200", AuthType: backend.AuthBasic,
		Provider: backend.GraphDBConfig{RepositoryID: "onto"},
	}, nil))

	creds := config.NewCredentialStore()
	creds.SetCredentials("gdb", backend.Credentials{Username: "admin", Password: "root"})

	m, err := metric.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	server := newOntologyServer()
	gw, err := New(Options{
		Registry:    reg,
		Credentials: creds,
		Store:       store,
		Transport:   server,
		Metrics:     m,
		Now:         clk.now,
	})
	require.NoError(t, err)
	t.Cleanup(gw.Close)

	return &fixture{gw: gw, store: store, server: server, clock: clk, creds: creds, metrics: m}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestExecuteQuery_RecordsOutcome(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	res, err := f.gw.ExecuteQuery(ctx, "ASK { ?s ?p ?o }", "local")
	require.NoError(t, err)
	assert.Equal(t, sparql.Ask, res.QueryType)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.QueriesTotal.WithLabelValues("sparql11", "ASK", "ok")))

	f.server.fail.Store(true)
	_, err = f.gw.ExecuteQuery(ctx, "SELECT * WHERE { ?s ?p ?o }", "local")
	require.Error(t, err)
	assert.Equal(t, 500, backend.StatusCode(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.QueriesTotal.WithLabelValues("sparql11", "SELECT", "transport")))
}

func TestExecuteQuery_UnknownBackend(t *testing.T) {
	f := setup(t, nil)

	_, err := f.gw.ExecuteQuery(context.Background(), "ASK {}", "missing")
	require.Error(t, err)
	assert.True(t, backend.IsConfiguration(err))
	assert.Equal(t, 0, f.server.Count())
}

func TestValidateBackend(t *testing.T) {
	f := setup(t, nil)

	assert.True(t, f.gw.ValidateBackend(context.Background(), "local").Valid)

	res := f.gw.ValidateBackend(context.Background(), "missing")
	assert.False(t, res.Valid)
	assert.Contains(t, res.Error, "missing")
}

func TestGetCache_AbsentBuildsInForeground(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	var phases []ontology.Phase
	cache, err := f.gw.GetCache(ctx, "local", func(p ontology.Progress) { phases = append(phases, p.Phase) })
	require.NoError(t, err)

	assert.Len(t, cache.Classes, 3)
	assert.Equal(t, ontology.PhaseComplete, phases[len(phases)-1])
	assert.Equal(t, 3, f.server.Count())

	stored, err := f.gw.ReadCache(ctx, "local")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, cache.Metadata.Stats, stored.Metadata.Stats)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheBuilds.WithLabelValues("ok")))
	assert.Equal(t, 5.0, testutil.ToFloat64(f.metrics.CacheElements.WithLabelValues("local")))
}

func TestGetCache_FreshSkipsNetwork(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	_, err := f.gw.GetCache(ctx, "local", nil)
	require.NoError(t, err)
	calls := f.server.Count()

	f.clock.advance(time.Hour)
	_, err = f.gw.GetCache(ctx, "local", nil)
	require.NoError(t, err)
	f.gw.Wait()
	assert.Equal(t, calls, f.server.Count())
}

func TestGetCache_StaleRefreshesInBackground(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	first, err := f.gw.GetCache(ctx, "local", nil)
	require.NoError(t, err)
	built := first.Metadata.LastUpdated

	f.clock.advance(25 * time.Hour)
	stale, err := f.gw.GetCache(ctx, "local", nil)
	require.NoError(t, err)
	assert.True(t, stale.Metadata.LastUpdated.Equal(built), "stale cache is returned as is")

	f.gw.Wait()
	refreshed, err := f.gw.ReadCache(ctx, "local")
	require.NoError(t, err)
	assert.True(t, refreshed.Metadata.LastUpdated.Equal(built.Add(25*time.Hour)))

	v, err := f.gw.ValidateCacheFreshness(ctx, "local")
	require.NoError(t, err)
	assert.True(t, v.Valid)
}

func TestGetCache_StaleFailureKeepsCache(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	first, err := f.gw.GetCache(ctx, "local", nil)
	require.NoError(t, err)

	f.server.fail.Store(true)
	f.clock.advance(48 * time.Hour)
	_, err = f.gw.GetCache(ctx, "local", nil)
	require.NoError(t, err)
	f.gw.Wait()

	kept, err := f.gw.ReadCache(ctx, "local")
	require.NoError(t, err)
	assert.True(t, kept.Metadata.LastUpdated.Equal(first.Metadata.LastUpdated))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheBuilds.WithLabelValues("transport")))
}

func TestRefreshCache_FailureReportsErrorPhase(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	_, err := f.gw.FetchOntologyCache(ctx, "local", nil)
	require.NoError(t, err)

	f.server.fail.Store(true)
	var last ontology.Progress
	_, err = f.gw.RefreshCache(ctx, "local", func(p ontology.Progress) { last = p })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classes")
	assert.Equal(t, ontology.PhaseError, last.Phase)

	kept, err := f.gw.ReadCache(ctx, "local")
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Len(t, kept.Classes, 3)
}

func TestRefreshCache_LimitKeepsPriorCache(t *testing.T) {
	policy := ontology.DefaultCachePolicy()
	policy.MaxElements = 5
	f := setup(t, &policy)
	ctx := context.Background()

	first, err := f.gw.RefreshCache(ctx, "local", nil)
	require.NoError(t, err)
	require.Equal(t, 5, first.Metadata.Stats.TotalCount)

	f.server.extra.Store(true)
	f.clock.advance(time.Hour)
	var last ontology.Progress
	_, err = f.gw.RefreshCache(ctx, "local", func(p ontology.Progress) { last = p })
	require.Error(t, err)
	assert.True(t, ontology.IsLimit(err), err.Error())
	assert.Equal(t, ontology.PhaseError, last.Phase)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheBuilds.WithLabelValues("limit")))

	kept, err := f.gw.ReadCache(ctx, "local")
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Len(t, kept.Classes, 3)
	assert.True(t, kept.Metadata.LastUpdated.Equal(first.Metadata.LastUpdated))
}

func TestGetCache_DisabledPolicy(t *testing.T) {
	policy := ontology.DefaultCachePolicy()
	policy.Enabled = false
	f := setup(t, &policy)

	_, err := f.gw.GetCache(context.Background(), "local", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ontology.ErrCacheDisabled))
	assert.Equal(t, 0, f.server.Count())
}

func TestTestCacheQuery(t *testing.T) {
	f := setup(t, nil)

	res := f.gw.TestCacheQuery(context.Background(), "local", "SELECT ?iri WHERE { ?iri a ?t }")
	require.True(t, res.Valid, res.Error)
	require.NotNil(t, res.ResultCount)
	assert.Equal(t, 3, *res.ResultCount)

	res = f.gw.TestCacheQuery(context.Background(), "missing", "SELECT * {}")
	assert.False(t, res.Valid)
}

func TestSearchAndInvalidate(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	_, err := f.gw.RefreshCache(ctx, "local", nil)
	require.NoError(t, err)

	hits, err := f.gw.SearchCachedElements(ctx, "local", db.SearchOptions{Query: "person"})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, ex+"Person", hits[0].Element.Base().IRI)

	ids, err := f.gw.ListCachedBackends(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"local"}, ids)

	require.NoError(t, f.gw.InvalidateCache(ctx, "local"))
	cache, err := f.gw.ReadCache(ctx, "local")
	require.NoError(t, err)
	assert.Nil(t, cache)
}

func TestLookupElement(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	_, err := f.gw.LookupElement(ctx, "local", "Person")
	assert.ErrorIs(t, err, ErrNoCache)

	_, err = f.gw.RefreshCache(ctx, "local", nil)
	require.NoError(t, err)

	tests := []struct {
		name      string
		reference string
		wantIRI   string
		wantErr   string
	}{
		{name: "full IRI", reference: ex + "Agent", wantIRI: ex + "Agent"},
		{name: "prefixed name", reference: "ns1:knows", wantIRI: ex + "knows"},
		{name: "unique search hit", reference: "Alice", wantIRI: "http://example.org/data/alice"},
		{name: "exact label beats prefix", reference: "person", wantIRI: ex + "Person"},
		{name: "ambiguous", reference: "e", wantErr: "ambiguous reference 'e'"},
		{name: "not found", reference: "Spaceship", wantErr: "element not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := f.gw.LookupElement(ctx, "local", tt.reference)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIRI, e.Base().IRI)
		})
	}
}

func TestForgetBackend(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	_, err := f.gw.ExecuteQuery(ctx, "ASK { ?s ?p ?o }", "gdb")
	require.NoError(t, err)
	_, err = f.gw.ExecuteQuery(ctx, "ASK { ?s ?p ?o }", "gdb")
	require.NoError(t, err)
	assert.Equal(t, 1, f.server.CountPath("/rest/login"), "token is reused")

	require.NoError(t, f.gw.ForgetBackend(ctx, "gdb"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SessionEvictions.WithLabelValues("gdb")))

	_, ok := f.creds.GetCredentials("gdb")
	assert.False(t, ok)
}
