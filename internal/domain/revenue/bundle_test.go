package revenue

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBundle(t *testing.T, weights ...string) *Bundle {
	bundle, err := NewBundle(uuid.New(), uuid.New(), "BNDL-SUITE", "Suite",
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	for _, w := range weights {
		require.NoError(t, bundle.AddComponent(uuid.New(), dec(w), true, nil, nil))
	}
	return bundle
}

func TestNewBundle(t *testing.T) {
	t.Run("creates active bundle", func(t *testing.T) {
		bundle := newTestBundle(t, "0.6", "0.4")
		assert.True(t, bundle.Active)
		assert.Len(t, bundle.Components, 2)
	})

	t.Run("requires sku", func(t *testing.T) {
		_, err := NewBundle(uuid.New(), uuid.New(), "", "No SKU", time.Now(), nil)
		assert.Error(t, err)
	})

	t.Run("component weight above 1 rejected", func(t *testing.T) {
		bundle := newTestBundle(t)
		assert.Error(t, bundle.AddComponent(uuid.New(), dec("1.5"), true, nil, nil))
	})
}

func TestValidateWeights(t *testing.T) {
	tests := []struct {
		name    string
		weights []string
		valid   bool
	}{
		{"exact sum", []string{"0.6", "0.4"}, true},
		{"within tolerance", []string{"0.33333", "0.33333", "0.33334"}, true},
		{"under by too much", []string{"0.5", "0.4"}, false},
		{"over by too much", []string{"0.7", "0.4"}, false},
		{"empty components", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundle := newTestBundle(t, tt.weights...)
			assert.Equal(t, tt.valid, ValidateWeights(bundle.Components))
		})
	}
}

func TestBundle_PreAllocate(t *testing.T) {
	bundle := newTestBundle(t, "0.6", "0.4")
	shares := bundle.PreAllocate(dec("1000"))

	require.Len(t, shares, 2)
	assert.Equal(t, "600", shares[0].Amount.String())
	assert.Equal(t, "400", shares[1].Amount.String())

	sum := decimal.Zero
	for _, s := range shares {
		sum = sum.Add(s.Amount)
	}
	assert.True(t, sum.Equal(dec("1000")), "pre-allocation is unrounded and conserves the line amount")
}

func TestBundle_EndDate(t *testing.T) {
	bundle := newTestBundle(t, "1")
	at := bundle.EffectiveFrom.AddDate(0, 6, 0)

	require.NoError(t, bundle.EndDate(at))
	assert.False(t, bundle.Active)
	assert.Equal(t, at, *bundle.EffectiveTo)
	assert.Error(t, bundle.EndDate(at.AddDate(0, 1, 0)), "already inactive")
}

func TestBundle_ContainsDate(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)
	bundle, err := NewBundle(uuid.New(), uuid.New(), "BNDL-YEAR", "Year", from, &to)
	require.NoError(t, err)

	assert.True(t, bundle.ContainsDate(from))
	assert.False(t, bundle.ContainsDate(to))
}
