package campaign

import (
	"github.com/onurcolak/messaging-dashboard/internal/domain"
)

// CalculateAnalytics recomputes campaign analytics from per-recipient
// records. Records without a variant are excluded from ByVariant.
func CalculateAnalytics(records []domain.RecipientAnalytics) domain.CampaignAnalytics {
	statuses := make([]domain.MessageStatus, len(records))
	byVariant := make(map[string]domain.VariantMetrics)

	var (
		deliverySum, readSum     float64
		deliveryCount, readCount int
	)

	for i, r := range records {
		statuses[i] = r.Status

		if r.SentAt != nil && r.DeliveredAt != nil && !r.DeliveredAt.Before(*r.SentAt) {
			deliverySum += r.DeliveredAt.Sub(*r.SentAt).Seconds()
			deliveryCount++
		}
		if r.DeliveredAt != nil && r.ReadAt != nil && !r.ReadAt.Before(*r.DeliveredAt) {
			readSum += r.ReadAt.Sub(*r.DeliveredAt).Seconds()
			readCount++
		}

		if r.VariantID == nil {
			continue
		}
		m := byVariant[*r.VariantID]
		addStatus(&m, r.Status)
		byVariant[*r.VariantID] = m
	}

	progress := AggregateProgress(statuses)

	a := domain.CampaignAnalytics{
		Progress:    progress,
		FailureRate: percentage(progress.Failed, progress.Sent),
	}
	if deliveryCount > 0 {
		a.AvgDeliverySeconds = deliverySum / float64(deliveryCount)
	}
	if readCount > 0 {
		a.AvgReadSeconds = readSum / float64(readCount)
	}
	if len(byVariant) > 0 {
		a.ByVariant = byVariant
	}

	return a
}

func addStatus(m *domain.VariantMetrics, s domain.MessageStatus) {
	switch s {
	case domain.StatusSent:
		m.Sent++
	case domain.StatusDelivered:
		m.Sent++
		m.Delivered++
	case domain.StatusRead:
		m.Sent++
		m.Delivered++
		m.Read++
	case domain.StatusFailed:
		m.Sent++
		m.Failed++
	}
}

// AttachMetrics copies the per-variant metrics from analytics onto variants.
func AttachMetrics(variants []domain.ABTestVariant, byVariant map[string]domain.VariantMetrics) []domain.ABTestVariant {
	out := make([]domain.ABTestVariant, len(variants))
	for i, v := range variants {
		v.Metrics = byVariant[v.ID]
		out[i] = v
	}
	return out
}
