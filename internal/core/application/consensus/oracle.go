package consensus

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync/atomic"
	"time"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/oracle"
	"freight/internal/core/domain/model/order"
	"freight/internal/core/domain/services"
	"freight/internal/core/ports"
	"freight/internal/pkg/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Config tunes caching, the similarity radius and the synthetic fallback.
type Config struct {
	Region               string        `mapstructure:"region"`
	SurchargeTTL         time.Duration `mapstructure:"surcharge_ttl"`
	RouteCacheTTL        time.Duration `mapstructure:"route_cache_ttl"`
	RouteCacheSize       int           `mapstructure:"route_cache_size"`
	SimilarityRadiusKm   float64       `mapstructure:"similarity_radius_km"`
	RiskThresholdPercent float64       `mapstructure:"risk_threshold_percent"`
	FetchTimeout         time.Duration `mapstructure:"fetch_timeout"`
	BaseRate             float64       `mapstructure:"base_rate"`
	FallbackAmplitude    float64       `mapstructure:"fallback_amplitude"`
	FallbackMin          float64       `mapstructure:"fallback_min"`
	FallbackMax          float64       `mapstructure:"fallback_max"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Region:               "default",
		SurchargeTTL:         6 * time.Hour,
		RouteCacheTTL:        30 * time.Minute,
		RouteCacheSize:       4096,
		SimilarityRadiusKm:   50,
		RiskThresholdPercent: services.DefaultRiskThresholdPercent,
		FetchTimeout:         5 * time.Second,
		BaseRate:             1.05,
		FallbackAmplitude:    0.03,
		FallbackMin:          0.95,
		FallbackMax:          1.15,
	}
}

// Validate reports settings the oracle cannot run with.
func (c Config) Validate() error {
	switch {
	case c.SurchargeTTL <= 0 || c.RouteCacheTTL <= 0 || c.FetchTimeout <= 0:
		return fmt.Errorf("oracle durations must be positive")
	case c.RouteCacheSize <= 0:
		return fmt.Errorf("oracle route_cache_size must be positive, got %d", c.RouteCacheSize)
	case c.SimilarityRadiusKm <= 0:
		return fmt.Errorf("oracle similarity_radius_km must be positive, got %v", c.SimilarityRadiusKm)
	case c.FallbackMin <= 0 || c.FallbackMin > c.FallbackMax:
		return fmt.Errorf("oracle fallback range [%v, %v] is invalid", c.FallbackMin, c.FallbackMax)
	}
	return nil
}

// Oracle produces the fuel surcharge and validates bid prices against the
// market. It never returns an error to its callers.
type Oracle struct {
	cfg      Config
	registry *Registry
	history  ports.RoutePriceHistory
	analyzer services.MarketPriceAnalyzer
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	routes *expirable.LRU[string, []ports.RoutePrice]
	group  singleflight.Group

	cached     atomic.Pointer[oracle.Surcharge]
	generation atomic.Uint64
}

type Option func(*Oracle)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Oracle) { o.now = now }
}

func New(
	cfg Config,
	registry *Registry,
	history ports.RoutePriceHistory,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts ...Option,
) *Oracle {
	o := &Oracle{
		cfg:      cfg,
		registry: registry,
		history:  history,
		analyzer: services.NewMarketPriceAnalyzer(cfg.RiskThresholdPercent),
		metrics:  m,
		logger:   logger.Named("oracle"),
		now:      time.Now,
		routes:   expirable.NewLRU[string, []ports.RoutePrice](cfg.RouteCacheSize, nil, cfg.RouteCacheTTL),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// FuelSurcharge returns the cached surcharge while it is fresh and
// recomputes it otherwise.
func (o *Oracle) FuelSurcharge(ctx context.Context) oracle.Surcharge {
	if s := o.cached.Load(); s != nil && s.IsFresh(o.now(), o.cfg.SurchargeTTL) {
		return *s
	}
	return o.recompute(ctx)
}

// Refresh recomputes the surcharge regardless of its age.
func (o *Oracle) Refresh(ctx context.Context) oracle.Surcharge {
	return o.recompute(ctx)
}

// Reload rebuilds the provider registry and drops the cached surcharge so
// the next request sees the change. The cache is dropped even when the
// reload fails; the registry then retries on the next read.
func (o *Oracle) Reload(ctx context.Context) error {
	err := o.registry.Reload(ctx)
	o.invalidate()
	return err
}

func (o *Oracle) invalidate() {
	o.generation.Add(1)
	o.cached.Store(nil)
}

// recompute shares one computation between concurrent callers of the same
// registry generation. A result computed against an older generation is
// returned to its callers but not cached.
func (o *Oracle) recompute(ctx context.Context) oracle.Surcharge {
	gen := o.generation.Load()
	v, _, _ := o.group.Do("surcharge/"+strconv.FormatUint(gen, 10), func() (any, error) {
		s := o.compute(context.WithoutCancel(ctx))
		if o.generation.Load() == gen {
			o.cached.Store(&s)
		}
		return s, nil
	})
	return v.(oracle.Surcharge)
}

func (o *Oracle) compute(ctx context.Context) oracle.Surcharge {
	var enabled, voters []entry
	for _, e := range o.registry.entries(ctx) {
		if !e.enabled {
			continue
		}
		enabled = append(enabled, e)
		if e.consensus {
			voters = append(voters, e)
		}
	}

	var s oracle.Surcharge
	switch {
	case len(voters) > 1:
		s = o.consensus(ctx, voters)
	case len(enabled) > 0:
		s = o.primary(ctx, enabled[0])
	default:
		s = o.fallback()
	}

	o.metrics.SurchargeSource.WithLabelValues(string(s.Source)).Inc()
	o.metrics.SurchargeValue.Set(s.Rate)
	o.logger.Info("fuel surcharge computed",
		zap.Float64("rate", s.Rate),
		zap.String("source", string(s.Source)),
		zap.Strings("providers", s.Providers),
	)
	return s
}

func (o *Oracle) consensus(ctx context.Context, voters []entry) oracle.Surcharge {
	rates := make([]float64, len(voters))
	ok := make([]bool, len(voters))

	var g errgroup.Group
	for i, e := range voters {
		g.Go(func() error {
			rates[i], ok[i] = o.fetch(ctx, e)
			return nil
		})
	}
	_ = g.Wait()

	quotes := make([]services.Quote, 0, len(voters))
	names := make([]string, 0, len(voters))
	for i, e := range voters {
		if ok[i] {
			quotes = append(quotes, services.Quote{Rate: rates[i], Weight: e.source.Weight()})
			names = append(names, e.name)
		}
	}

	rate, found := services.WeightedAverage(quotes)
	if !found {
		return o.fallback()
	}
	return o.surcharge(rate, oracle.SourceConsensus, names)
}

func (o *Oracle) primary(ctx context.Context, e entry) oracle.Surcharge {
	rate, ok := o.fetch(ctx, e)
	if !ok {
		return o.fallback()
	}
	return o.surcharge(rate, oracle.SourcePrimary, []string{e.name})
}

// fallback is a bounded synthetic rate that depends only on the clock.
func (o *Oracle) fallback() oracle.Surcharge {
	return o.surcharge(fallbackRate(o.cfg, o.now()), oracle.SourceFallback, nil)
}

const fallbackPeriod = int64(24 * time.Hour / time.Second)

func fallbackRate(cfg Config, at time.Time) float64 {
	phase := float64(at.Unix()%fallbackPeriod) / float64(fallbackPeriod)
	rate := cfg.BaseRate + cfg.FallbackAmplitude*math.Sin(2*math.Pi*phase)
	return min(max(rate, cfg.FallbackMin), cfg.FallbackMax)
}

func (o *Oracle) surcharge(rate float64, source oracle.SurchargeSource, providers []string) oracle.Surcharge {
	return oracle.Surcharge{
		Rate:       rate,
		Source:     source,
		Providers:  providers,
		Region:     o.cfg.Region,
		ComputedAt: o.now(),
	}
}

// fetch asks one provider for a rate. Every failure, including a panic in
// the adapter, is logged and counted and reported as !ok.
func (o *Oracle) fetch(ctx context.Context, e entry) (rate float64, ok bool) {
	log := o.logger.With(zap.String("provider", e.name), zap.Stringer("providerId", e.id))
	defer func() {
		if r := recover(); r != nil {
			log.Error("provider panicked", zap.Any("panic", r))
			o.metrics.ProviderFailures.WithLabelValues(e.name).Inc()
			rate, ok = 0, false
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	defer cancel()

	if !e.source.IsAvailable(ctx) {
		log.Warn("provider unavailable")
		o.metrics.ProviderFailures.WithLabelValues(e.name).Inc()
		return 0, false
	}

	rate, err := e.source.FetchCurrentRate(ctx, o.cfg.Region)
	if err == nil && (rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0)) {
		err = fmt.Errorf("implausible rate %v", rate)
	}
	if err != nil {
		log.Warn("fetch rate", zap.Error(err))
		o.metrics.ProviderFailures.WithLabelValues(e.name).Inc()
		return 0, false
	}
	return rate, true
}

// ValidateMarketPrice compares price with the median of accepted prices on
// routes whose pickup and delivery both lie within the similarity radius.
func (o *Oracle) ValidateMarketPrice(ctx context.Context, price float64, route kernel.Route) order.PriceAssessment {
	return o.analyzer.Assess(price, o.routeHistory(ctx, route))
}

// routeHistory returns accepted prices on routes similar to route. The cache
// holds the raw scan of a whole route key bucket, widened so it covers the
// similarity radius of any route in the bucket; the distance filter runs
// against the caller's own route on every call. Concurrent misses for one
// bucket share a single scan; misses for different buckets never wait on
// each other.
func (o *Oracle) routeHistory(ctx context.Context, route kernel.Route) []float64 {
	rows, err := o.bucketScan(ctx, route)
	if err != nil {
		o.logger.Warn("load route price history", zap.String("route", route.Key()), zap.Error(err))
		return nil
	}

	prices := make([]float64, 0, len(rows))
	for _, row := range rows {
		similar, simErr := route.IsSimilar(row.Route, o.cfg.SimilarityRadiusKm)
		if simErr != nil || !similar {
			continue
		}
		prices = append(prices, row.Amount)
	}
	return prices
}

func (o *Oracle) bucketScan(ctx context.Context, route kernel.Route) ([]ports.RoutePrice, error) {
	key := route.Key()
	if rows, ok := o.routes.Get(key); ok {
		return rows, nil
	}

	v, err, _ := o.group.Do("route/"+key, func() (any, error) {
		if rows, ok := o.routes.Get(key); ok {
			return rows, nil
		}
		o.metrics.RouteCacheMisses.Inc()

		scanCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.FetchTimeout)
		defer cancel()

		rows, err := o.history.AcceptedRoutePrices(scanCtx, route, o.cfg.SimilarityRadiusKm+kernel.RouteKeySpanKm)
		if err != nil {
			return nil, err
		}
		o.routes.Add(key, rows)
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]ports.RoutePrice), nil
}
