package campaign

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onurcolak/messaging-dashboard/internal/domain"
)

func threeVariants() []domain.ABTestVariant {
	return []domain.ABTestVariant{
		{ID: "a", Name: "A", Template: "Hi {{ name }}", Weight: 50},
		{ID: "b", Name: "B", Template: "Hello {{ name }}", Weight: 30},
		{ID: "c", Name: "C", Template: "Hey {{ name }}", Weight: 20},
	}
}

func TestAssignVariant_Sequential(t *testing.T) {
	a := NewAssigner(rand.NewPCG(1, 2))
	cfg := domain.ABTestConfig{Enabled: true, SplitStrategy: domain.SplitSequential, Variants: threeVariants()}

	var got []string
	for i := 0; i < 6; i++ {
		v, ok := a.AssignVariant(i, cfg)
		require.True(t, ok)
		got = append(got, v.ID)
	}

	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, got)
}

func TestAssignVariant_DisabledOrEmpty(t *testing.T) {
	a := NewAssigner(nil)

	v, ok := a.AssignVariant(7, domain.ABTestConfig{Enabled: false, Variants: threeVariants()})
	require.True(t, ok)
	assert.Equal(t, "a", v.ID)

	_, ok = a.AssignVariant(0, domain.ABTestConfig{Enabled: true, SplitStrategy: domain.SplitRandom})
	assert.False(t, ok)
}

func TestAssignVariant_RandomFollowsWeights(t *testing.T) {
	a := NewAssigner(rand.NewPCG(42, 7))
	cfg := domain.ABTestConfig{Enabled: true, SplitStrategy: domain.SplitRandom, Variants: threeVariants()}

	counts := map[string]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		v, _ := a.AssignVariant(i, cfg)
		counts[v.ID]++
	}

	assert.InDelta(t, 0.5, float64(counts["a"])/n, 0.03)
	assert.InDelta(t, 0.3, float64(counts["b"])/n, 0.03)
	assert.InDelta(t, 0.2, float64(counts["c"])/n, 0.03)
}

func TestAssignVariant_WeightedNormalizesTotal(t *testing.T) {
	a := NewAssigner(rand.NewPCG(3, 4))
	variants := []domain.ABTestVariant{
		{ID: "a", Weight: 3},
		{ID: "b", Weight: 1},
	}
	cfg := domain.ABTestConfig{Enabled: true, SplitStrategy: domain.SplitWeighted, Variants: variants}

	counts := map[string]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		v, _ := a.AssignVariant(i, cfg)
		counts[v.ID]++
	}

	assert.InDelta(t, 0.75, float64(counts["a"])/n, 0.03)

	// The same weights under "random" overflow into the last variant.
	cfg.SplitStrategy = domain.SplitRandom
	counts = map[string]int{}
	for i := 0; i < n; i++ {
		v, _ := a.AssignVariant(i, cfg)
		counts[v.ID]++
	}
	assert.Greater(t, counts["b"], counts["a"])
}

func TestAssignVariant_WeightedZeroTotal(t *testing.T) {
	a := NewAssigner(nil)
	cfg := domain.ABTestConfig{
		Enabled:       true,
		SplitStrategy: domain.SplitWeighted,
		Variants:      []domain.ABTestVariant{{ID: "x"}, {ID: "y"}},
	}
	v, ok := a.AssignVariant(1, cfg)
	require.True(t, ok)
	assert.Equal(t, "x", v.ID)
}

func TestValidateWeights(t *testing.T) {
	cfg := domain.ABTestConfig{Enabled: true, SplitStrategy: domain.SplitRandom, Variants: threeVariants()}
	assert.NoError(t, ValidateWeights(cfg))

	cfg.Variants[0].Weight = 40
	assert.ErrorIs(t, ValidateWeights(cfg), domain.ErrInvalidInput)

	cfg.SplitStrategy = domain.SplitWeighted
	assert.NoError(t, ValidateWeights(cfg))

	cfg.SplitStrategy = domain.SplitSequential
	assert.NoError(t, ValidateWeights(cfg))

	assert.ErrorIs(t, ValidateWeights(domain.ABTestConfig{Enabled: true}), ErrNoVariants)
	assert.NoError(t, ValidateWeights(domain.ABTestConfig{}))
}

func TestCalculateABTestWinner_ClearReadRateGap(t *testing.T) {
	variants := []domain.ABTestVariant{
		{ID: "b", Name: "B", Metrics: domain.VariantMetrics{Sent: 100, Delivered: 100, Read: 84}},
		{ID: "a", Name: "A", Metrics: domain.VariantMetrics{Sent: 100, Delivered: 100, Read: 90}},
	}

	result, err := CalculateABTestWinner(variants)
	require.NoError(t, err)

	assert.Equal(t, "a", result.Winner.ID)
	assert.Equal(t, 90.0, result.ReadRate)
	assert.Equal(t, 6.0, result.Confidence)
	assert.Contains(t, result.Reason, "A has a 90.0% read rate")
}

func TestCalculateABTestWinner_TieFallsBackToDeliveryRate(t *testing.T) {
	variants := []domain.ABTestVariant{
		// 90% read, 90% delivery
		{ID: "a", Name: "A", Metrics: domain.VariantMetrics{Sent: 100, Delivered: 90, Read: 81}},
		// 87% read, 100% delivery
		{ID: "b", Name: "B", Metrics: domain.VariantMetrics{Sent: 100, Delivered: 100, Read: 87}},
	}

	result, err := CalculateABTestWinner(variants)
	require.NoError(t, err)

	assert.Equal(t, "b", result.Winner.ID)
	assert.Equal(t, 100.0, result.DeliveryRate)
	assert.InDelta(t, -3.0, result.Confidence, 1e-9)
}

func TestCalculateABTestWinner_SingleAndEmpty(t *testing.T) {
	result, err := CalculateABTestWinner([]domain.ABTestVariant{
		{ID: "solo", Name: "Solo", Metrics: domain.VariantMetrics{Sent: 10, Delivered: 10, Read: 10}},
	})
	require.NoError(t, err)
	assert.Equal(t, "solo", result.Winner.ID)
	assert.Equal(t, 100.0, result.Confidence)

	_, err = CalculateABTestWinner(nil)
	assert.ErrorIs(t, err, ErrNoVariants)
}

func TestAttachMetrics(t *testing.T) {
	out := AttachMetrics(threeVariants(), map[string]domain.VariantMetrics{"b": {Sent: 4}})
	assert.Equal(t, 4, out[1].Metrics.Sent)
	assert.Zero(t, out[0].Metrics.Sent)
}
