package pricefeed_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"freight/internal/adapters/out/pricefeed"
	"freight/internal/core/application/consensus"
	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/oracle"
	"freight/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMockProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("derived rate is stable and bounded", func(t *testing.T) {
		a, err := pricefeed.NewMockProvider("alpha", "", 0.5)
		require.NoError(t, err)
		b, err := pricefeed.NewMockProvider("alpha", "", 0.5)
		require.NoError(t, err)

		rateA, err := a.FetchCurrentRate(ctx, "midwest")
		require.NoError(t, err)
		rateB, err := b.FetchCurrentRate(ctx, "west")
		require.NoError(t, err)

		assert.InDelta(t, rateA, rateB, 1e-12)
		assert.GreaterOrEqual(t, rateA, 1.0)
		assert.Less(t, rateA, 1.1)
		assert.True(t, a.IsAvailable(ctx))
	})

	t.Run("fixed rate", func(t *testing.T) {
		p, err := pricefeed.NewMockProvider("fixed", "1.12", 0.3)
		require.NoError(t, err)

		rate, err := p.FetchCurrentRate(ctx, "any")
		require.NoError(t, err)
		assert.InDelta(t, 1.12, rate, 1e-12)
		assert.InDelta(t, 0.3, p.Weight(), 1e-12)
		assert.Equal(t, "fixed", p.Name())
	})

	t.Run("failing", func(t *testing.T) {
		p, err := pricefeed.NewMockProvider("broken", "FAIL", 1)
		require.NoError(t, err)

		assert.False(t, p.IsAvailable(ctx))
		_, err = p.FetchCurrentRate(ctx, "any")
		assert.ErrorIs(t, err, consensus.ErrProviderUnavailable)
	})

	t.Run("bad endpoint", func(t *testing.T) {
		_, err := pricefeed.NewMockProvider("bad", "-2", 1)
		assert.ErrorIs(t, err, errs.ErrValueIsInvalid)
	})
}

func TestStaticTableProvider(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default: 1.05\nregions:\n  Midwest: 1.07\n"), 0o600))

	p, err := pricefeed.NewStaticTableProvider("table", path, 0.4)
	require.NoError(t, err)
	assert.True(t, p.IsAvailable(ctx))

	rate, err := p.FetchCurrentRate(ctx, "midwest")
	require.NoError(t, err)
	assert.InDelta(t, 1.07, rate, 1e-12)

	rate, err = p.FetchCurrentRate(ctx, "gulf")
	require.NoError(t, err)
	assert.InDelta(t, 1.05, rate, 1e-12)

	t.Run("edits are picked up", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("regions:\n  midwest: 1.09\n"), 0o600))

		rate, err := p.FetchCurrentRate(ctx, "midwest")
		require.NoError(t, err)
		assert.InDelta(t, 1.09, rate, 1e-12)

		_, err = p.FetchCurrentRate(ctx, "gulf")
		assert.ErrorIs(t, err, consensus.ErrProviderUnavailable)
	})

	t.Run("missing file", func(t *testing.T) {
		missing, err := pricefeed.NewStaticTableProvider("gone", filepath.Join(t.TempDir(), "none.yaml"), 1)
		require.NoError(t, err)

		assert.False(t, missing.IsAvailable(ctx))
		_, err = missing.FetchCurrentRate(ctx, "midwest")
		assert.ErrorIs(t, err, consensus.ErrProviderUnavailable)
	})

	t.Run("malformed file", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("regions: [1, 2"), 0o600))

		_, err := pricefeed.LoadRateTable(bad)
		assert.Error(t, err)
	})
}

func TestBulletinProvider(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	t.Run("fetches rate for region", func(t *testing.T) {
		var gotRegion string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotRegion = r.URL.Query().Get("region")
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(pricefeed.Bulletin{Region: gotRegion, Rate: 1.08, PublishedAt: time.Now()})
		}))
		defer srv.Close()

		p, err := pricefeed.NewBulletinProvider("doe", srv.URL+"/diesel", 0.6, srv.Client(), logger)
		require.NoError(t, err)

		rate, err := p.FetchCurrentRate(ctx, "midwest")
		require.NoError(t, err)
		assert.InDelta(t, 1.08, rate, 1e-12)
		assert.Equal(t, "midwest", gotRegion)
	})

	t.Run("non-200 is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		p, err := pricefeed.NewBulletinProvider("doe", srv.URL, 0.6, srv.Client(), logger)
		require.NoError(t, err)

		_, err = p.FetchCurrentRate(ctx, "midwest")
		assert.ErrorIs(t, err, consensus.ErrProviderUnavailable)
	})

	t.Run("non-positive rate is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"region":"midwest","rate":0}`))
		}))
		defer srv.Close()

		p, err := pricefeed.NewBulletinProvider("doe", srv.URL, 0.6, srv.Client(), logger)
		require.NoError(t, err)

		_, err = p.FetchCurrentRate(ctx, "midwest")
		assert.ErrorIs(t, err, consensus.ErrProviderUnavailable)
	})

	t.Run("slow endpoint times out", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		client := srv.Client()
		client.Timeout = 50 * time.Millisecond
		p, err := pricefeed.NewBulletinProvider("doe", srv.URL, 0.6, client, logger)
		require.NoError(t, err)

		_, err = p.FetchCurrentRate(ctx, "midwest")
		assert.ErrorIs(t, err, consensus.ErrProviderUnavailable)
	})

	t.Run("relative endpoint is rejected", func(t *testing.T) {
		_, err := pricefeed.NewBulletinProvider("doe", "rates/diesel", 0.6, http.DefaultClient, logger)
		assert.ErrorIs(t, err, errs.ErrValueIsInvalid)
	})
}

func TestFactory_Build(t *testing.T) {
	factory := pricefeed.NewFactory(nil, zap.NewNop())
	path := filepath.Join(t.TempDir(), "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default: 1.04\n"), 0o600))

	tests := []struct {
		name   string
		params oracle.ProviderParams
		want   any
	}{
		{
			name:   "mock",
			params: oracle.ProviderParams{Name: "m", Type: oracle.TypeMock, Weight: 1},
			want:   &pricefeed.MockProvider{},
		},
		{
			name:   "static table",
			params: oracle.ProviderParams{Name: "s", Type: oracle.TypeRegionalStaticTable, Endpoint: path, Weight: 1},
			want:   &pricefeed.StaticTableProvider{},
		},
		{
			name:   "bulletin",
			params: oracle.ProviderParams{Name: "b", Type: oracle.TypeExternalBulletin, Endpoint: "https://rates.example.com", Weight: 1},
			want:   &pricefeed.BulletinProvider{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := oracle.NewProvider(kernel.NewUUID(), tt.params)
			require.NoError(t, err)

			built, err := factory.Build(p)
			require.NoError(t, err)
			assert.IsType(t, tt.want, built)
			assert.Equal(t, tt.params.Name, built.Name())
		})
	}

	t.Run("unconstructed provider", func(t *testing.T) {
		_, err := factory.Build(&oracle.Provider{})
		assert.ErrorIs(t, err, oracle.ErrProviderIsNotConstructed)
	})
}
