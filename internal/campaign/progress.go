package campaign

import (
	"github.com/onurcolak/messaging-dashboard/internal/domain"
)

// AggregateProgress counts statuses into a CampaignProgress. Any status other
// than pending counts as sent, so delivered, read and failed recipients are
// all included in Sent. Unknown statuses are treated as pending.
func AggregateProgress(statuses []domain.MessageStatus) domain.CampaignProgress {
	counts := make(map[domain.MessageStatus]int, len(domain.AllMessageStatuses))
	for _, s := range statuses {
		counts[s]++
	}
	return ProgressFromCounts(counts)
}

// ProgressFromCounts is AggregateProgress over pre-grouped status counts, as
// returned by a GROUP BY query.
func ProgressFromCounts(counts map[domain.MessageStatus]int) domain.CampaignProgress {
	var p domain.CampaignProgress

	for s, n := range counts {
		p.Total += n

		switch s {
		case domain.StatusSent:
			p.Sent += n
		case domain.StatusDelivered:
			p.Sent += n
			p.Delivered += n
		case domain.StatusRead:
			// A read receipt implies delivery.
			p.Sent += n
			p.Delivered += n
			p.Read += n
		case domain.StatusFailed:
			p.Sent += n
			p.Failed += n
		default:
			p.Pending += n
		}
	}

	p.DeliveryRate = percentage(p.Delivered, p.Sent)
	p.ReadRate = percentage(p.Read, p.Delivered)

	return p
}

// percentage returns part/whole*100, or 0 when whole is zero.
func percentage(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}
