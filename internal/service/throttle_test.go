package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/onurcolak/messaging-dashboard/internal/domain"
)

type countingLookup struct {
	campaigns map[string]*domain.Campaign
	calls     int
}

func (l *countingLookup) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	l.calls++
	c, ok := l.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %s: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

func TestNewLimiter(t *testing.T) {
	lim, err := NewLimiter(domain.RateLimitConfig{MessagesPerSecond: 5, MessagesPerMinute: 120, BurstSize: 3})
	require.NoError(t, err)
	assert.Equal(t, rate.Limit(2), lim.Limit())
	assert.Equal(t, 3, lim.Burst())

	lim, err = NewLimiter(domain.RateLimitConfig{MessagesPerSecond: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, lim.Burst())

	_, err = NewLimiter(domain.RateLimitConfig{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestThrottle_CachesLimiterPerCampaign(t *testing.T) {
	lookup := &countingLookup{campaigns: map[string]*domain.Campaign{
		"c-1": {ID: "c-1", RateLimit: domain.RateLimitConfig{MessagesPerSecond: 1000, BurstSize: 10}},
	}}
	th := NewThrottle(lookup)
	ctx := context.Background()

	for range 5 {
		require.NoError(t, th.Wait(ctx, "c-1"))
	}
	assert.Equal(t, 1, lookup.calls)

	th.Forget("c-1")
	require.NoError(t, th.Wait(ctx, "c-1"))
	assert.Equal(t, 2, lookup.calls)

	assert.ErrorIs(t, th.Wait(ctx, "missing"), domain.ErrNotFound)
}

// gatedLookup holds GetByID for "slow" until release is closed.
type gatedLookup struct {
	entered chan struct{}
	release chan struct{}
}

func (l *gatedLookup) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	if id == "slow" {
		l.entered <- struct{}{}
		<-l.release
	}
	return &domain.Campaign{ID: id, RateLimit: domain.RateLimitConfig{MessagesPerSecond: 1000, BurstSize: 10}}, nil
}

func TestThrottle_LookupDoesNotBlockOtherCampaigns(t *testing.T) {
	lookup := &gatedLookup{entered: make(chan struct{}, 1), release: make(chan struct{})}
	th := NewThrottle(lookup)
	ctx := context.Background()

	slowDone := make(chan error, 1)
	go func() { slowDone <- th.Wait(ctx, "slow") }()
	<-lookup.entered

	fastDone := make(chan error, 1)
	go func() { fastDone <- th.Wait(ctx, "fast") }()

	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait on another campaign was blocked by a pending lookup")
	}

	close(lookup.release)
	require.NoError(t, <-slowDone)

	first, err := th.limiter(ctx, "fast")
	require.NoError(t, err)
	second, err := th.limiter(ctx, "fast")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestThrottle_WaitHonoursContext(t *testing.T) {
	lookup := &countingLookup{campaigns: map[string]*domain.Campaign{
		"slow": {ID: "slow", RateLimit: domain.RateLimitConfig{MessagesPerHour: 1}},
	}}
	th := NewThrottle(lookup)

	require.NoError(t, th.Wait(context.Background(), "slow"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, th.Wait(ctx, "slow"))
}
