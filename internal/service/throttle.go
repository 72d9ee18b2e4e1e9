package service

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/onurcolak/messaging-dashboard/internal/campaign"
	"github.com/onurcolak/messaging-dashboard/internal/domain"
)

type campaignLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)
}

// Throttle paces campaign sends with one token bucket per campaign, sized
// from the campaign's rate limit.
type Throttle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lookup   campaignLookup
}

func NewThrottle(lookup campaignLookup) *Throttle {
	return &Throttle{
		limiters: make(map[string]*rate.Limiter),
		lookup:   lookup,
	}
}

// NewLimiter builds a limiter that refills at the effective rate of cfg with
// BurstSize tokens (at least one).
func NewLimiter(cfg domain.RateLimitConfig) (*rate.Limiter, error) {
	r, err := campaign.EffectiveRate(cfg)
	if err != nil {
		return nil, err
	}

	return rate.NewLimiter(rate.Limit(r), max(cfg.BurstSize, 1)), nil
}

// Wait blocks until campaignID may send one more message or ctx ends.
func (t *Throttle) Wait(ctx context.Context, campaignID string) error {
	lim, err := t.limiter(ctx, campaignID)
	if err != nil {
		return err
	}

	return lim.Wait(ctx)
}

func (t *Throttle) limiter(ctx context.Context, campaignID string) (*rate.Limiter, error) {
	t.mu.Lock()
	lim, ok := t.limiters[campaignID]
	t.mu.Unlock()
	if ok {
		return lim, nil
	}

	c, err := t.lookup.GetByID(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rate limit: %w", err)
	}

	lim, err = NewLimiter(c.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// another caller may have won the race while the campaign was loading
	if existing, ok := t.limiters[campaignID]; ok {
		return existing, nil
	}
	t.limiters[campaignID] = lim
	return lim, nil
}

// Forget drops the limiter of a finished campaign.
func (t *Throttle) Forget(campaignID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.limiters, campaignID)
}
