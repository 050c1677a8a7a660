package consensus

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"freight/internal/core/domain/model/kernel"

	"go.uber.org/zap"
)

type entry struct {
	id        kernel.UUID
	name      string
	priority  int
	enabled   bool
	consensus bool
	source    PriceProvider
}

// Registry holds an immutable snapshot of the built providers. Readers
// never lock; Reload swaps the whole snapshot.
type Registry struct {
	lister  ProviderLister
	factory ProviderFactory
	logger  *zap.Logger

	mu      sync.Mutex
	current atomic.Pointer[[]entry]
	stale   atomic.Bool
}

// NewRegistry creates an empty registry that loads on first use.
func NewRegistry(lister ProviderLister, factory ProviderFactory, logger *zap.Logger) *Registry {
	r := &Registry{lister: lister, factory: factory, logger: logger.Named("provider-registry")}
	r.stale.Store(true)
	return r
}

// Reload rebuilds the snapshot from the provider store. When the store
// cannot be read the old snapshot stays in place and the registry retries
// on the next read.
func (r *Registry) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	providers, err := r.lister.List(ctx)
	if err != nil {
		r.stale.Store(true)
		return err
	}

	entries := make([]entry, 0, len(providers))
	for _, p := range providers {
		source, buildErr := r.factory.Build(p)
		if buildErr != nil {
			r.logger.Warn("skip provider", zap.String("provider", p.Name()), zap.Error(buildErr))
			continue
		}
		entries = append(entries, entry{
			id:        p.ID(),
			name:      p.Name(),
			priority:  p.Priority(),
			enabled:   p.Enabled(),
			consensus: p.ConsensusEnabled(),
			source:    source,
		})
	}
	slices.SortStableFunc(entries, func(a, b entry) int {
		return cmp.Or(cmp.Compare(a.priority, b.priority), cmp.Compare(a.name, b.name))
	})

	r.current.Store(&entries)
	r.stale.Store(false)
	r.logger.Debug("providers loaded", zap.Int("count", len(entries)))
	return nil
}

// MarkStale forces a reload on the next read.
func (r *Registry) MarkStale() {
	r.stale.Store(true)
}

// entries returns the current snapshot ordered by priority, reloading first
// when the snapshot is stale.
func (r *Registry) entries(ctx context.Context) []entry {
	if r.stale.Load() {
		if err := r.Reload(ctx); err != nil {
			r.logger.Warn("reload providers", zap.Error(err))
		}
	}
	if p := r.current.Load(); p != nil {
		return *p
	}
	return nil
}

// Len reports how many providers the current snapshot holds.
func (r *Registry) Len() int {
	if p := r.current.Load(); p != nil {
		return len(*p)
	}
	return 0
}
