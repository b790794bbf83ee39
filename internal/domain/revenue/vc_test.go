package revenue

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstrain(t *testing.T) {
	tests := []struct {
		name       string
		estimate   string
		confidence string
		threshold  string
		want       string
	}{
		{"confidence above threshold passes through", "1000", "0.8", "0.6", "1000"},
		{"confidence at threshold passes through", "1000", "0.6", "0.6", "1000"},
		{"confidence below threshold zeroes", "1000", "0.3", "0.6", "0"},
		{"zero estimate stays zero", "0", "0.9", "0.5", "0"},
		{"negative estimate passes when confident", "-200", "0.7", "0.5", "-200"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Constrain(dec(tt.estimate), dec(tt.confidence), dec(tt.threshold))
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestNewVCPolicy(t *testing.T) {
	t.Run("creates policy", func(t *testing.T) {
		policy, err := NewVCPolicy(uuid.New(), VCMethodExpectedValue, dec("0.6"), 12)
		require.NoError(t, err)
		assert.Equal(t, VCMethodExpectedValue, policy.DefaultMethod)
		assert.Equal(t, "0.6", policy.ConstraintProbabilityThreshold.String())
	})

	t.Run("rejects threshold above 1", func(t *testing.T) {
		_, err := NewVCPolicy(uuid.New(), VCMethodMostLikely, dec("1.1"), 12)
		assert.Error(t, err)
	})

	t.Run("rejects negative lookback", func(t *testing.T) {
		_, err := NewVCPolicy(uuid.New(), VCMethodMostLikely, dec("0.5"), -1)
		assert.Error(t, err)
	})

	t.Run("rejects unknown method", func(t *testing.T) {
		_, err := NewVCPolicy(uuid.New(), VCMethod("GUESS"), dec("0.5"), 6)
		assert.Error(t, err)
	})
}

func TestNewVCEstimate(t *testing.T) {
	tenantID := uuid.New()

	t.Run("low confidence estimate is constrained to zero and stays open", func(t *testing.T) {
		est, err := NewVCEstimate(tenantID, uuid.New(), uuid.New(), uuid.New(), 2025, 7,
			VCMethodExpectedValue, dec("1000"), dec("0.3"), dec("0.6"), false)
		require.NoError(t, err)
		assert.True(t, est.ConstrainedAmount.IsZero())
		assert.Equal(t, "1000", est.RawEstimate.String())
		assert.Equal(t, VCEstimateStatusOpen, est.Status)
	})

	t.Run("resolve flag marks estimate resolved", func(t *testing.T) {
		est, err := NewVCEstimate(tenantID, uuid.New(), uuid.New(), uuid.New(), 2025, 7,
			VCMethodMostLikely, dec("1000"), dec("0.9"), dec("0.6"), true)
		require.NoError(t, err)
		assert.Equal(t, VCEstimateStatusResolved, est.Status)
		assert.Equal(t, "1000", est.ConstrainedAmount.String())
	})
}

func TestVCEstimate_Revise(t *testing.T) {
	est, err := NewVCEstimate(uuid.New(), uuid.New(), uuid.New(), uuid.New(), 2025, 7,
		VCMethodExpectedValue, dec("1000"), dec("0.3"), dec("0.6"), false)
	require.NoError(t, err)
	require.True(t, est.ConstrainedAmount.IsZero())

	t.Run("revision overwrites and re-applies the constraint", func(t *testing.T) {
		require.NoError(t, est.Revise(VCMethodExpectedValue, dec("1500"), dec("0.8"), dec("0.6"), false))
		assert.Equal(t, "1500", est.RawEstimate.String())
		assert.Equal(t, "1500", est.ConstrainedAmount.String())
		assert.Equal(t, VCEstimateStatusOpen, est.Status)
	})

	t.Run("resolve on revision", func(t *testing.T) {
		require.NoError(t, est.Revise(VCMethodExpectedValue, dec("1500"), dec("0.4"), dec("0.6"), true))
		assert.True(t, est.ConstrainedAmount.IsZero(), "constraint rule applies on resolve too")
		assert.Equal(t, VCEstimateStatusResolved, est.Status)
	})

	t.Run("rejects unknown method", func(t *testing.T) {
		assert.Error(t, est.Revise(VCMethod("GUESS"), dec("1"), dec("1"), dec("0.5"), false))
	})
}

func TestDefaultConstraintThreshold(t *testing.T) {
	// unconfigured tenants constrain at 0.5, they do not skip constraining
	assert.Equal(t, "0.5", DefaultConstraintThreshold.String())
	assert.Equal(t, "0", Constrain(dec("100"), dec("0.49"), DefaultConstraintThreshold).String())
	assert.Equal(t, "100", Constrain(dec("100"), dec("0.5"), DefaultConstraintThreshold).String())
}
