package campaign

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/onurcolak/messaging-dashboard/internal/domain"
)

// ReadRateTieThreshold is the read-rate gap, in percentage points, at or
// below which two variants are ranked by delivery rate instead.
const ReadRateTieThreshold = 5.0

const weightTolerance = 0.01

var ErrNoVariants = fmt.Errorf("%w: A/B test has no variants", domain.ErrInvalidInput)

// Assigner picks a variant per recipient index.
type Assigner struct {
	rng *rand.Rand
}

// NewAssigner returns an Assigner drawing from src. A nil src uses a
// randomly seeded PCG source.
func NewAssigner(src rand.Source) *Assigner {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Assigner{rng: rand.New(src)}
}

// AssignVariant returns the variant for the recipient at index. When A/B
// testing is disabled the first variant is returned; ok is false only when
// there are no variants at all.
func (a *Assigner) AssignVariant(index int, cfg domain.ABTestConfig) (variant domain.ABTestVariant, ok bool) {
	variants := cfg.Variants
	if len(variants) == 0 {
		return domain.ABTestVariant{}, false
	}
	if !cfg.Enabled {
		return variants[0], true
	}

	switch cfg.SplitStrategy {
	case domain.SplitSequential:
		i := index % len(variants)
		if i < 0 {
			i += len(variants)
		}
		return variants[i], true

	case domain.SplitWeighted:
		total := 0.0
		for _, v := range variants {
			total += v.Weight
		}
		if total <= 0 {
			return variants[0], true
		}
		return pickCumulative(variants, a.rng.Float64()*total), true

	default:
		// Random assumes the weights sum to 100.
		return pickCumulative(variants, a.rng.Float64()*100), true
	}
}

// pickCumulative walks the variants accumulating weight and returns the
// first whose cumulative weight meets the draw. The last variant catches
// draws left unmatched by rounding or short weight totals.
func pickCumulative(variants []domain.ABTestVariant, draw float64) domain.ABTestVariant {
	cumulative := 0.0
	for _, v := range variants {
		cumulative += v.Weight
		if draw <= cumulative {
			return v
		}
	}
	return variants[len(variants)-1]
}

// ValidateWeights checks the declared weights against the split strategy:
// random requires a total of 100, weighted requires a positive total, and
// sequential ignores weights.
func ValidateWeights(cfg domain.ABTestConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if len(cfg.Variants) == 0 {
		return ErrNoVariants
	}

	total := 0.0
	for _, v := range cfg.Variants {
		if v.Weight < 0 {
			return fmt.Errorf("%w: variant %q has negative weight", domain.ErrInvalidInput, v.Name)
		}
		total += v.Weight
	}

	switch cfg.SplitStrategy {
	case domain.SplitSequential:
		return nil
	case domain.SplitWeighted:
		if total <= 0 {
			return fmt.Errorf("%w: weighted split needs a positive weight total", domain.ErrInvalidInput)
		}
		return nil
	default:
		if math.Abs(total-100) > weightTolerance {
			return fmt.Errorf("%w: variant weights must sum to 100, got %.2f", domain.ErrInvalidInput, total)
		}
		return nil
	}
}

type rankedVariant struct {
	variant      domain.ABTestVariant
	deliveryRate float64
	readRate     float64
}

// CalculateABTestWinner ranks variants by read rate, falling back to delivery
// rate when two read rates are within ReadRateTieThreshold points. Confidence
// is the read-rate gap to the runner-up, capped at 100. It goes negative when
// the delivery-rate tie-break picks the variant with the lower read rate.
func CalculateABTestWinner(variants []domain.ABTestVariant) (domain.ABTestWinner, error) {
	if len(variants) == 0 {
		return domain.ABTestWinner{}, ErrNoVariants
	}

	ranked := make([]rankedVariant, len(variants))
	for i, v := range variants {
		ranked[i] = rankedVariant{
			variant:      v,
			deliveryRate: percentage(v.Metrics.Delivered, v.Metrics.Sent),
			readRate:     percentage(v.Metrics.Read, v.Metrics.Delivered),
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if math.Abs(a.readRate-b.readRate) <= ReadRateTieThreshold {
			return a.deliveryRate > b.deliveryRate
		}
		return a.readRate > b.readRate
	})

	winner := ranked[0]
	var runnerUp rankedVariant
	if len(ranked) > 1 {
		runnerUp = ranked[1]
	}

	confidence := math.Min(winner.readRate-runnerUp.readRate, 100)

	return domain.ABTestWinner{
		Winner:       winner.variant,
		DeliveryRate: winner.deliveryRate,
		ReadRate:     winner.readRate,
		Confidence:   confidence,
		Reason: fmt.Sprintf(
			"%s has a %.1f%% read rate and a %.1f%% delivery rate (runner-up: %.1f%% read, %.1f%% delivery)",
			winner.variant.Name, winner.readRate, winner.deliveryRate, runnerUp.readRate, runnerUp.deliveryRate,
		),
	}, nil
}
