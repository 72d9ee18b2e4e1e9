package domain

import (
	"fmt"
	"time"
)

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignRunning   CampaignStatus = "running"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignCancelled CampaignStatus = "cancelled"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignDraft, CampaignRunning, CampaignPaused, CampaignCompleted, CampaignCancelled:
		return true
	}
	return false
}

func (s CampaignStatus) Terminal() bool {
	return s == CampaignCompleted || s == CampaignCancelled
}

// CanTransitionTo enforces the campaign lifecycle.
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	switch next {
	case CampaignRunning:
		return s == CampaignDraft || s == CampaignPaused
	case CampaignPaused:
		return s == CampaignRunning
	case CampaignCompleted:
		return s == CampaignRunning
	case CampaignCancelled:
		return !s.Terminal()
	}
	return false
}

// Recipient is one destination of a campaign.
type Recipient struct {
	PhoneNumber string            `json:"phoneNumber" validate:"required,phone"`
	Name        string            `json:"name,omitempty"`
	Variables   map[string]string `json:"variables"`
}

// CampaignRecipient is a recipient bound to a campaign, with the variant it
// was assigned and the content rendered for it.
type CampaignRecipient struct {
	CampaignID string `json:"campaignId"`
	Recipient
	VariantID *string `json:"variantId,omitempty"`
	Content   string  `json:"content"`
}

// RateLimitConfig bounds sending throughput. A non-positive window means no
// ceiling is declared for it.
type RateLimitConfig struct {
	MessagesPerSecond int `json:"messagesPerSecond" yaml:"messages_per_second" validate:"min=0"`
	MessagesPerMinute int `json:"messagesPerMinute" yaml:"messages_per_minute" validate:"min=0"`
	MessagesPerHour   int `json:"messagesPerHour" yaml:"messages_per_hour" validate:"min=0"`
	MessagesPerDay    int `json:"messagesPerDay" yaml:"messages_per_day" validate:"min=0"`
	BurstSize         int `json:"burstSize" yaml:"burst_size" validate:"min=0"`
}

type RateLimitPreset struct {
	Name            string `json:"name" yaml:"name"`
	Description     string `json:"description" yaml:"description"`
	RateLimitConfig `json:"config" yaml:",inline"`
}

// ETA is the projected completion of a bulk send.
type ETA struct {
	Recipients      int       `json:"recipients"`
	EffectiveRate   float64   `json:"effectiveRate"`
	DurationSeconds float64   `json:"durationSeconds"`
	Formatted       string    `json:"formatted"`
	CompletionTime  time.Time `json:"completionTime"`
}

// CampaignProgress counts recipients by status. Sent counts every recipient
// that left pending, so Sent+Pending == Total.
type CampaignProgress struct {
	Total        int     `json:"total"`
	Sent         int     `json:"sent"`
	Delivered    int     `json:"delivered"`
	Read         int     `json:"read"`
	Failed       int     `json:"failed"`
	Pending      int     `json:"pending"`
	DeliveryRate float64 `json:"deliveryRate"`
	ReadRate     float64 `json:"readRate"`
}

// Validate checks the counter invariants. Progress built by the aggregator
// always passes; externally supplied snapshots may not.
func (p CampaignProgress) Validate() error {
	switch {
	case p.Sent+p.Pending != p.Total:
		return fmt.Errorf("%w: sent (%d) + pending (%d) != total (%d)", ErrInvalidInput, p.Sent, p.Pending, p.Total)
	case p.Delivered > p.Sent:
		return fmt.Errorf("%w: delivered (%d) > sent (%d)", ErrInvalidInput, p.Delivered, p.Sent)
	case p.Read > p.Delivered:
		return fmt.Errorf("%w: read (%d) > delivered (%d)", ErrInvalidInput, p.Read, p.Delivered)
	case p.Failed > p.Sent:
		return fmt.Errorf("%w: failed (%d) > sent (%d)", ErrInvalidInput, p.Failed, p.Sent)
	}
	return nil
}

type Campaign struct {
	ID              string          `json:"id"`
	ClientID        *int64          `json:"clientId,omitempty"`
	Name            string          `json:"name"`
	Template        string          `json:"template"`
	Status          CampaignStatus  `json:"status"`
	RateLimit       RateLimitConfig `json:"rateLimit"`
	ABTest          ABTestConfig    `json:"abTest"`
	TotalRecipients int             `json:"totalRecipients"`
	StartedAt       *time.Time      `json:"startedAt,omitempty"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type CSVRowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type CSVParseResult struct {
	Recipients []Recipient   `json:"recipients"`
	Errors     []CSVRowError `json:"errors"`
	TotalRows  int           `json:"totalRows"`
	ValidRows  int           `json:"validRows"`
}

// RecipientAnalytics is the per-recipient source record for analytics.
type RecipientAnalytics struct {
	PhoneNumber string        `db:"phone_number" json:"phoneNumber"`
	VariantID   *string       `db:"variant_id" json:"variantId,omitempty"`
	Status      MessageStatus `db:"status" json:"status"`
	SentAt      *time.Time    `db:"sent_at" json:"sentAt,omitempty"`
	DeliveredAt *time.Time    `db:"delivered_at" json:"deliveredAt,omitempty"`
	ReadAt      *time.Time    `db:"read_at" json:"readAt,omitempty"`
}

// CampaignAnalytics is recomputed from RecipientAnalytics on every request.
type CampaignAnalytics struct {
	Progress           CampaignProgress          `json:"progress"`
	FailureRate        float64                   `json:"failureRate"`
	AvgDeliverySeconds float64                   `json:"avgDeliverySeconds"`
	AvgReadSeconds     float64                   `json:"avgReadSeconds"`
	ByVariant          map[string]VariantMetrics `json:"byVariant,omitempty"`
}
