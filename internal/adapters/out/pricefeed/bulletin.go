package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"freight/internal/core/application/consensus"
	"freight/internal/pkg/errs"

	"go.uber.org/zap"
)

const maxBulletinBytes = 64 << 10

// Bulletin is the JSON document an external bulletin endpoint serves.
type Bulletin struct {
	Region      string    `json:"region"`
	Rate        float64   `json:"rate"`
	PublishedAt time.Time `json:"publishedAt"`
}

// BulletinProvider fetches the current rate over HTTP:
//
//	GET <endpoint>?region=<region>
type BulletinProvider struct {
	name     string
	endpoint *url.URL
	weight   float64
	client   *http.Client
	logger   *zap.Logger
}

func NewBulletinProvider(
	name, endpoint string,
	weight float64,
	client *http.Client,
	logger *zap.Logger,
) (*BulletinProvider, error) {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errs.NewValueIsInvalidErrorWithCause("endpoint",
			fmt.Errorf("bulletin endpoint must be an absolute http(s) URL, got %q", endpoint))
	}
	return &BulletinProvider{
		name:     name,
		endpoint: u,
		weight:   weight,
		client:   client,
		logger:   logger.With(zap.String("provider", name)),
	}, nil
}

func (p *BulletinProvider) Name() string    { return p.name }
func (p *BulletinProvider) Weight() float64 { return p.weight }

// IsAvailable does not touch the network; reachability is decided by the fetch.
func (p *BulletinProvider) IsAvailable(context.Context) bool { return p.client != nil }

func (p *BulletinProvider) FetchCurrentRate(ctx context.Context, region string) (float64, error) {
	u := *p.endpoint
	q := u.Query()
	q.Set("region", region)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", consensus.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %s answered %d", consensus.ErrProviderUnavailable, p.name, resp.StatusCode)
	}

	var b Bulletin
	if err = json.NewDecoder(io.LimitReader(resp.Body, maxBulletinBytes)).Decode(&b); err != nil {
		return 0, fmt.Errorf("%w: decode bulletin: %w", consensus.ErrProviderUnavailable, err)
	}
	if b.Rate <= 0 || math.IsNaN(b.Rate) || math.IsInf(b.Rate, 0) {
		return 0, fmt.Errorf("%w: %s published rate %v", consensus.ErrProviderUnavailable, p.name, b.Rate)
	}

	p.logger.Debug("bulletin fetched",
		zap.String("region", region),
		zap.Float64("rate", b.Rate),
		zap.Time("publishedAt", b.PublishedAt),
	)
	return b.Rate, nil
}
