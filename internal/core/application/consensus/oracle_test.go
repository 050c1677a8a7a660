package consensus_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"freight/internal/core/application/consensus"
	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/oracle"
	"freight/internal/core/ports"
	"freight/internal/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type clock struct {
	mu sync.Mutex
	at time.Time
}

func newClock() *clock { return &clock{at: time.Date(2026, 2, 10, 6, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.at = c.at.Add(d)
	c.mu.Unlock()
}

type stubProvider struct {
	name   string
	weight float64

	mu        sync.Mutex
	rate      float64
	err       error
	available bool
	calls     int
}

func (p *stubProvider) Name() string    { return p.name }
func (p *stubProvider) Weight() float64 { return p.weight }

func (p *stubProvider) IsAvailable(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

func (p *stubProvider) FetchCurrentRate(context.Context, string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.rate, p.err
}

func (p *stubProvider) set(rate float64, err error) {
	p.mu.Lock()
	p.rate, p.err = rate, err
	p.mu.Unlock()
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// catalog is both the provider store and the adapter factory.
type catalog struct {
	mu        sync.Mutex
	providers []*oracle.Provider
	stubs     map[string]*stubProvider
	listErr   error
}

func (c *catalog) add(t *testing.T, params oracle.ProviderParams, rate float64) *stubProvider {
	t.Helper()
	p, err := oracle.NewProvider(kernel.NewUUID(), params)
	require.NoError(t, err)
	stub := &stubProvider{name: params.Name, weight: params.Weight, rate: rate, available: true}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stubs == nil {
		c.stubs = make(map[string]*stubProvider)
	}
	c.providers = append(c.providers, p)
	c.stubs[params.Name] = stub
	return stub
}

func (c *catalog) List(context.Context) ([]*oracle.Provider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*oracle.Provider(nil), c.providers...), c.listErr
}

func (c *catalog) Build(p *oracle.Provider) (consensus.PriceProvider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stub, ok := c.stubs[p.Name()]
	if !ok {
		return nil, errors.New("no adapter")
	}
	return stub, nil
}

func (c *catalog) failList(err error) {
	c.mu.Lock()
	c.listErr = err
	c.mu.Unlock()
}

func voter(name string, weight float64, priority int) oracle.ProviderParams {
	return oracle.ProviderParams{
		Name: name, Type: oracle.TypeMock, Weight: weight,
		Enabled: true, Priority: priority, ConsensusEnabled: true,
	}
}

type fixture struct {
	catalog *catalog
	history *stubHistory
	clock   *clock
	metrics *metrics.Metrics
	oracle  *consensus.Oracle
}

func newFixture() *fixture {
	f := &fixture{catalog: &catalog{}, history: &stubHistory{}, clock: newClock(), metrics: metrics.NewUnregistered()}
	registry := consensus.NewRegistry(f.catalog, f.catalog, zap.NewNop())
	f.oracle = consensus.New(consensus.DefaultConfig(), registry, f.history, f.metrics, zap.NewNop(),
		consensus.WithClock(f.clock.Now))
	return f
}

func TestOracle_FuelSurcharge_WeightedConsensus(t *testing.T) {
	f := newFixture()
	f.catalog.add(t, voter("a", 0.2, 1), 1.00)
	f.catalog.add(t, voter("b", 0.3, 2), 1.10)
	heavy := f.catalog.add(t, voter("c", 0.5, 3), 1.20)

	s := f.oracle.FuelSurcharge(t.Context())

	assert.InDelta(t, 1.13, s.Rate, 1e-9)
	assert.Equal(t, oracle.SourceConsensus, s.Source)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, s.Providers)

	heavy.set(0, consensus.ErrProviderUnavailable)
	s = f.oracle.Refresh(t.Context())

	assert.InDelta(t, 1.06, s.Rate, 1e-9)
	assert.ElementsMatch(t, []string{"a", "b"}, s.Providers)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.ProviderFailures.WithLabelValues("c")), 0)
}

func TestOracle_FuelSurcharge_UnavailableProviderIsSkipped(t *testing.T) {
	f := newFixture()
	f.catalog.add(t, voter("a", 0.2, 1), 1.00)
	f.catalog.add(t, voter("b", 0.3, 2), 1.10)
	down := f.catalog.add(t, voter("c", 0.5, 3), 1.20)
	down.available = false

	s := f.oracle.FuelSurcharge(t.Context())

	assert.InDelta(t, 1.06, s.Rate, 1e-9)
	assert.Zero(t, down.callCount())
}

func TestOracle_FuelSurcharge_CachedUntilTTL(t *testing.T) {
	f := newFixture()
	a := f.catalog.add(t, voter("a", 0.5, 1), 1.00)
	f.catalog.add(t, voter("b", 0.5, 2), 1.10)

	first := f.oracle.FuelSurcharge(t.Context())
	a.set(1.20, nil)

	f.clock.Advance(5 * time.Hour)
	assert.Equal(t, first, f.oracle.FuelSurcharge(t.Context()))
	assert.Equal(t, 1, a.callCount())

	f.clock.Advance(time.Hour)
	assert.InDelta(t, 1.15, f.oracle.FuelSurcharge(t.Context()).Rate, 1e-9)
	assert.Equal(t, 2, a.callCount())
}

func TestOracle_FuelSurcharge_PrimaryByPriority(t *testing.T) {
	f := newFixture()
	solo := voter("consensus-only", 1, 5)
	f.catalog.add(t, solo, 1.30)
	secondary := voter("secondary", 1, 2)
	secondary.ConsensusEnabled = false
	f.catalog.add(t, secondary, 1.02)
	primary := voter("primary", 1, 1)
	primary.ConsensusEnabled = false
	p := f.catalog.add(t, primary, 1.07)
	disabled := voter("disabled", 1, 0)
	disabled.Enabled = false
	f.catalog.add(t, disabled, 1.50)

	s := f.oracle.FuelSurcharge(t.Context())

	assert.InDelta(t, 1.07, s.Rate, 1e-9)
	assert.Equal(t, oracle.SourcePrimary, s.Source)
	assert.Equal(t, []string{"primary"}, s.Providers)

	p.set(0, errors.New("timeout"))
	s = f.oracle.Refresh(t.Context())

	assert.Equal(t, oracle.SourceFallback, s.Source)
}

func TestOracle_FuelSurcharge_FallbackIsBoundedAndDeterministic(t *testing.T) {
	f := newFixture()
	f.catalog.add(t, voter("a", 0.5, 1), 0).set(0, errors.New("boom"))
	f.catalog.add(t, voter("b", 0.5, 2), 0).set(-1, nil)

	for range 48 {
		s := f.oracle.Refresh(t.Context())
		assert.Equal(t, oracle.SourceFallback, s.Source)
		assert.GreaterOrEqual(t, s.Rate, 0.95)
		assert.LessOrEqual(t, s.Rate, 1.15)
		assert.Equal(t, s.Rate, f.oracle.Refresh(t.Context()).Rate)
		f.clock.Advance(time.Hour)
	}
}

func TestOracle_FuelSurcharge_NoProviders(t *testing.T) {
	f := newFixture()

	s := f.oracle.FuelSurcharge(t.Context())

	assert.Equal(t, oracle.SourceFallback, s.Source)
	assert.Equal(t, "default", s.Region)
	assert.Equal(t, f.clock.Now(), s.ComputedAt)
}

func TestOracle_Reload_IsVisibleOnNextRequest(t *testing.T) {
	f := newFixture()
	f.catalog.add(t, voter("a", 0.5, 1), 1.00)
	f.catalog.add(t, voter("b", 0.5, 2), 1.10)
	assert.InDelta(t, 1.05, f.oracle.FuelSurcharge(t.Context()).Rate, 1e-9)

	f.catalog.add(t, voter("c", 1.0, 3), 1.25)
	require.NoError(t, f.oracle.Reload(t.Context()))

	assert.InDelta(t, 1.15, f.oracle.FuelSurcharge(t.Context()).Rate, 1e-9)
}

func TestOracle_Reload_FailureRetriesOnNextRead(t *testing.T) {
	f := newFixture()
	f.catalog.failList(errors.New("db down"))

	s := f.oracle.FuelSurcharge(t.Context())
	assert.Equal(t, oracle.SourceFallback, s.Source)

	f.catalog.failList(nil)
	f.catalog.add(t, voter("a", 0.5, 1), 1.00)
	f.catalog.add(t, voter("b", 0.5, 2), 1.20)
	f.catalog.failList(errors.New("db down"))
	require.Error(t, f.oracle.Reload(t.Context()))

	f.catalog.failList(nil)
	s = f.oracle.FuelSurcharge(t.Context())
	assert.Equal(t, oracle.SourceConsensus, s.Source)
	assert.InDelta(t, 1.10, s.Rate, 1e-9)
}

type stubHistory struct {
	mu     sync.Mutex
	rows   []ports.RoutePrice
	err    error
	scans  atomic.Int32
	gate   chan struct{}
	radius float64
}

func (h *stubHistory) AcceptedRoutePrices(_ context.Context, _ kernel.Route, radiusKm float64) ([]ports.RoutePrice, error) {
	h.scans.Add(1)
	if h.gate != nil {
		<-h.gate
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.radius = radiusKm
	return h.rows, h.err
}

func route(t *testing.T, pickupLat, pickupLon, deliveryLat, deliveryLon float64) kernel.Route {
	t.Helper()
	pickup, err := kernel.NewGeoPoint(pickupLat, pickupLon)
	require.NoError(t, err)
	delivery, err := kernel.NewGeoPoint(deliveryLat, deliveryLon)
	require.NoError(t, err)
	r, err := kernel.NewRoute(pickup, delivery, "from", "to")
	require.NoError(t, err)
	return r
}

func TestOracle_ValidateMarketPrice(t *testing.T) {
	f := newFixture()
	lyonParis := route(t, 45.76, 4.84, 48.86, 2.35)
	f.history.rows = []ports.RoutePrice{
		{Route: route(t, 45.70, 4.90, 48.80, 2.30), Amount: 90},
		{Route: lyonParis, Amount: 100},
		{Route: route(t, 45.80, 4.80, 48.90, 2.40), Amount: 105},
		{Route: route(t, 45.76, 4.84, 48.86, 2.35), Amount: 110},
		{Route: route(t, 43.30, 5.37, 48.86, 2.35), Amount: 400},
	}

	a := f.oracle.ValidateMarketPrice(t.Context(), 130, lyonParis)

	assert.InDelta(t, 102.5, a.MedianPrice, 1e-9)
	assert.InDelta(t, 26.83, a.DeviationPercent, 0.01)
	assert.True(t, a.HighRisk)

	a = f.oracle.ValidateMarketPrice(t.Context(), 105, lyonParis)
	assert.False(t, a.HighRisk)
	assert.Equal(t, int32(1), f.history.scans.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.RouteCacheMisses), 0)
}

func TestOracle_ValidateMarketPrice_SameBucketRoutesFilterIndependently(t *testing.T) {
	f := newFixture()
	a := route(t, 50.04, 10.04, 52.04, 12.04)
	b := route(t, 49.96, 9.96, 51.96, 11.96)
	require.Equal(t, a.Key(), b.Key())

	// 47.8 km from a's delivery point, 57 km from b's.
	nearA := route(t, 50.04, 10.04, 52.47, 12.04)
	f.history.rows = []ports.RoutePrice{
		{Route: nearA, Amount: 500},
		{Route: b, Amount: 100},
	}

	resA := f.oracle.ValidateMarketPrice(t.Context(), 300, a)
	assert.InDelta(t, 300, resA.MedianPrice, 1e-9)

	resB := f.oracle.ValidateMarketPrice(t.Context(), 100, b)
	assert.InDelta(t, 100, resB.MedianPrice, 1e-9)
	assert.False(t, resB.HighRisk)

	assert.Equal(t, int32(1), f.history.scans.Load())
	assert.InDelta(t, consensus.DefaultConfig().SimilarityRadiusKm+kernel.RouteKeySpanKm, f.history.radius, 1e-9)
}

func TestOracle_ValidateMarketPrice_HistoryFailureIsNotCached(t *testing.T) {
	f := newFixture()
	r := route(t, 52.52, 13.40, 50.11, 8.68)
	f.history.err = errors.New("connection reset")

	a := f.oracle.ValidateMarketPrice(t.Context(), 1000, r)
	assert.False(t, a.HighRisk)
	assert.NotEmpty(t, a.Reason)

	f.history.mu.Lock()
	f.history.err = nil
	f.history.rows = []ports.RoutePrice{{Route: r, Amount: 500}}
	f.history.mu.Unlock()

	a = f.oracle.ValidateMarketPrice(t.Context(), 1000, r)
	assert.True(t, a.HighRisk)
	assert.Equal(t, int32(2), f.history.scans.Load())
}

func TestOracle_ValidateMarketPrice_ConcurrentMissesScanOnce(t *testing.T) {
	f := newFixture()
	r := route(t, 40.42, -3.70, 41.39, 2.17)
	f.history.rows = []ports.RoutePrice{{Route: r, Amount: 800}}
	f.history.gate = make(chan struct{})

	const callers = 8
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a := f.oracle.ValidateMarketPrice(context.Background(), 800, r)
			assert.InDelta(t, 800, a.MedianPrice, 1e-9)
		}()
	}

	require.Eventually(t, func() bool { return f.history.scans.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(f.history.gate)
	wg.Wait()

	assert.Equal(t, int32(1), f.history.scans.Load())
}
