// Package pricefeed holds the price provider adapters the consensus oracle
// quotes fuel surcharge rates from.
package pricefeed

import (
	"net/http"
	"time"

	"freight/internal/core/application/consensus"
	"freight/internal/core/domain/model/oracle"
	"freight/internal/pkg/errs"

	"go.uber.org/zap"
)

const defaultRequestTimeout = 5 * time.Second

// Factory builds a consensus.PriceProvider for each configured provider type.
type Factory struct {
	client *http.Client
	logger *zap.Logger
}

// NewFactory returns a factory whose bulletin providers share client.
// A nil client gets one with a 5s timeout.
func NewFactory(client *http.Client, logger *zap.Logger) *Factory {
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Factory{client: client, logger: logger.Named("pricefeed")}
}

func (f *Factory) Build(p *oracle.Provider) (consensus.PriceProvider, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	switch p.Type() {
	case oracle.TypeMock:
		return NewMockProvider(p.Name(), p.Endpoint(), p.Weight())
	case oracle.TypeRegionalStaticTable:
		return NewStaticTableProvider(p.Name(), p.Endpoint(), p.Weight())
	case oracle.TypeExternalBulletin:
		return NewBulletinProvider(p.Name(), p.Endpoint(), p.Weight(), f.client, f.logger)
	default:
		return nil, errs.NewValueIsInvalidError("providerType")
	}
}
