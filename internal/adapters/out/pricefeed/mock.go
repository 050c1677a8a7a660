package pricefeed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"freight/internal/core/application/consensus"
	"freight/internal/pkg/errs"
)

// MockEndpointFail makes a mock provider report unavailable on every call.
const MockEndpointFail = "fail"

// MockProvider quotes a fixed rate. The endpoint selects the behaviour:
// empty derives a rate in [1.00, 1.10) from the name, a number is quoted as
// is, and "fail" is always unavailable.
type MockProvider struct {
	name   string
	weight float64
	rate   float64
	fail   bool
}

func NewMockProvider(name, endpoint string, weight float64) (*MockProvider, error) {
	p := &MockProvider{name: name, weight: weight}

	switch endpoint = strings.TrimSpace(endpoint); {
	case endpoint == "":
		h := fnv.New32a()
		_, _ = h.Write([]byte(name))
		p.rate = 1 + float64(h.Sum32()%100)/1000
	case strings.EqualFold(endpoint, MockEndpointFail):
		p.fail = true
	default:
		rate, err := strconv.ParseFloat(endpoint, 64)
		if err != nil || rate <= 0 {
			return nil, errs.NewValueIsInvalidErrorWithCause("endpoint",
				fmt.Errorf("mock endpoint must be empty, %q or a positive rate, got %q", MockEndpointFail, endpoint))
		}
		p.rate = rate
	}

	return p, nil
}

func (p *MockProvider) Name() string    { return p.name }
func (p *MockProvider) Weight() float64 { return p.weight }

func (p *MockProvider) IsAvailable(context.Context) bool { return !p.fail }

func (p *MockProvider) FetchCurrentRate(ctx context.Context, _ string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if p.fail {
		return 0, fmt.Errorf("%w: %s is configured to fail", consensus.ErrProviderUnavailable, p.name)
	}
	return p.rate, nil
}
