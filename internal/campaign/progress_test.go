package campaign

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onurcolak/messaging-dashboard/internal/domain"
)

func repeat(status domain.MessageStatus, n int) []domain.MessageStatus {
	out := make([]domain.MessageStatus, n)
	for i := range out {
		out[i] = status
	}
	return out
}

func TestAggregateProgress_DeliveryRate(t *testing.T) {
	var statuses []domain.MessageStatus
	statuses = append(statuses, repeat(domain.StatusDelivered, 150)...)
	statuses = append(statuses, repeat(domain.StatusRead, 30)...)
	statuses = append(statuses, repeat(domain.StatusFailed, 20)...)
	statuses = append(statuses, repeat(domain.StatusPending, 50)...)

	p := AggregateProgress(statuses)

	assert.Equal(t, 250, p.Total)
	assert.Equal(t, 200, p.Sent)
	assert.Equal(t, 180, p.Delivered)
	assert.Equal(t, 30, p.Read)
	assert.Equal(t, 20, p.Failed)
	assert.Equal(t, 50, p.Pending)
	assert.Equal(t, 90.0, p.DeliveryRate)
	assert.InDelta(t, 16.666, p.ReadRate, 0.001)
	require.NoError(t, p.Validate())
}

func TestAggregateProgress_NothingSent(t *testing.T) {
	p := AggregateProgress(repeat(domain.StatusPending, 3))
	assert.Equal(t, 0, p.Sent)
	assert.Zero(t, p.DeliveryRate)
	assert.Zero(t, p.ReadRate)

	empty := AggregateProgress(nil)
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.DeliveryRate)
}

func TestCampaignProgressValidate_RejectsInconsistentCounters(t *testing.T) {
	bad := []domain.CampaignProgress{
		{Total: 10, Sent: 5, Pending: 4},
		{Total: 10, Sent: 5, Pending: 5, Delivered: 6},
		{Total: 10, Sent: 5, Pending: 5, Delivered: 2, Read: 3},
		{Total: 10, Sent: 5, Pending: 5, Failed: 6},
	}
	for _, p := range bad {
		assert.ErrorIs(t, p.Validate(), domain.ErrInvalidInput)
	}
}

func TestCalculateAnalytics(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(sec int) *time.Time {
		ts := base.Add(time.Duration(sec) * time.Second)
		return &ts
	}
	a, b := "variant-a", "variant-b"

	records := []domain.RecipientAnalytics{
		{VariantID: &a, Status: domain.StatusRead, SentAt: at(0), DeliveredAt: at(10), ReadAt: at(70)},
		{VariantID: &a, Status: domain.StatusDelivered, SentAt: at(0), DeliveredAt: at(30)},
		{VariantID: &b, Status: domain.StatusFailed, SentAt: at(0)},
		{VariantID: &b, Status: domain.StatusPending},
		{Status: domain.StatusSent, SentAt: at(0)},
	}

	got := CalculateAnalytics(records)

	assert.Equal(t, 5, got.Progress.Total)
	assert.Equal(t, 4, got.Progress.Sent)
	assert.Equal(t, 2, got.Progress.Delivered)
	assert.Equal(t, 25.0, got.FailureRate)
	assert.Equal(t, 20.0, got.AvgDeliverySeconds)
	assert.Equal(t, 60.0, got.AvgReadSeconds)

	require.Len(t, got.ByVariant, 2)
	assert.Equal(t, domain.VariantMetrics{Sent: 2, Delivered: 2, Read: 1}, got.ByVariant[a])
	assert.Equal(t, domain.VariantMetrics{Sent: 1, Failed: 1}, got.ByVariant[b])
}

func TestProgressFromCounts_MatchesAggregate(t *testing.T) {
	counts := map[domain.MessageStatus]int{
		domain.StatusSent:      4,
		domain.StatusDelivered: 3,
		domain.StatusRead:      2,
		domain.StatusFailed:    1,
		domain.StatusPending:   5,
	}

	var statuses []domain.MessageStatus
	for s, n := range counts {
		statuses = append(statuses, repeat(s, n)...)
	}

	assert.Equal(t, AggregateProgress(statuses), ProgressFromCounts(counts))
	require.NoError(t, ProgressFromCounts(counts).Validate())
}
