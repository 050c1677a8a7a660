package oracle_test

import (
	"testing"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/oracle"
	"freight/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams() oracle.ProviderParams {
	return oracle.ProviderParams{
		Name:             "DOE weekly diesel",
		Type:             oracle.TypeExternalBulletin,
		Endpoint:         "https://bulletin.example.com/diesel.json",
		Weight:           0.5,
		Enabled:          true,
		Priority:         1,
		ConsensusEnabled: true,
	}
}

func TestNewProvider(t *testing.T) {
	t.Run("valid provider", func(t *testing.T) {
		id := kernel.NewUUID()
		p, err := oracle.NewProvider(id, validParams())

		require.NoError(t, err)
		require.NoError(t, p.Validate())
		assert.True(t, p.ID().IsEqual(id))
		assert.Equal(t, oracle.TypeExternalBulletin, p.Type())
		assert.Equal(t, validParams(), p.Params())
	})

	t.Run("mock provider needs no endpoint", func(t *testing.T) {
		params := validParams()
		params.Type = oracle.TypeMock
		params.Endpoint = ""

		_, err := oracle.NewProvider(kernel.NewUUID(), params)
		require.NoError(t, err)
	})

	t.Run("reports every invalid field", func(t *testing.T) {
		_, err := oracle.NewProvider(kernel.NewUUID(), oracle.ProviderParams{
			Type:     "carrier_pigeon",
			Weight:   1.5,
			Priority: -1,
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, errs.ErrValueIsRequired)
		assert.ErrorIs(t, err, errs.ErrValueIsInvalid)
		assert.ErrorIs(t, err, errs.ErrValueIsOutOfRange)
		assert.Contains(t, err.Error(), "carrier_pigeon")
	})

	t.Run("zero value is not constructed", func(t *testing.T) {
		assert.ErrorIs(t, (&oracle.Provider{}).Validate(), oracle.ErrProviderIsNotConstructed)
	})
}

func TestProvider_Mutations(t *testing.T) {
	p, err := oracle.NewProvider(kernel.NewUUID(), validParams())
	require.NoError(t, err)

	p.Toggle()
	assert.False(t, p.Enabled())
	p.ToggleConsensus()
	assert.False(t, p.ConsensusEnabled())

	require.NoError(t, p.SetPriority(7))
	assert.Equal(t, 7, p.Priority())
	require.ErrorIs(t, p.SetPriority(-3), errs.ErrValueIsOutOfRange)
	assert.Equal(t, 7, p.Priority())

	bad := validParams()
	bad.Weight = -0.1
	require.Error(t, p.Update(bad))
	assert.InDelta(t, 0.5, p.Weight(), 1e-9)

	good := validParams()
	good.Name = "  regional table  "
	good.Type = oracle.TypeRegionalStaticTable
	good.Endpoint = "configs/rates.yaml"
	require.NoError(t, p.Update(good))
	assert.Equal(t, "regional table", p.Name())
	assert.Equal(t, oracle.TypeRegionalStaticTable, p.Type())
}
