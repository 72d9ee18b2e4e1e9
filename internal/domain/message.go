package domain

import "time"

type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// AllMessageStatuses lists statuses in lifecycle order.
var AllMessageStatuses = []MessageStatus{
	StatusPending,
	StatusSent,
	StatusDelivered,
	StatusRead,
	StatusFailed,
}

func (s MessageStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusDelivered, StatusRead, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether a provider-driven status change is allowed.
// Statuses only move forward; read and failed are terminal. Replaying a
// failed message back to pending goes through the repository, not here.
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusSent || next == StatusFailed
	case StatusSent:
		return next == StatusDelivered || next == StatusRead || next == StatusFailed
	case StatusDelivered:
		return next == StatusRead || next == StatusFailed
	}
	return false
}

type Message struct {
	ID          int64         `db:"id" json:"id"`
	ClientID    *int64        `db:"client_id" json:"clientId,omitempty"`
	CampaignID  *string       `db:"campaign_id" json:"campaignId,omitempty"`
	VariantID   *string       `db:"variant_id" json:"variantId,omitempty"`
	Content     string        `db:"content" json:"content"`
	PhoneNumber string        `db:"phone_number" json:"phoneNumber"`
	Status      MessageStatus `db:"status" json:"status"`
	MessageID   *string       `db:"message_id" json:"messageId,omitempty"`
	SentAt      *time.Time    `db:"sent_at" json:"sentAt,omitempty"`
	DeliveredAt *time.Time    `db:"delivered_at" json:"deliveredAt,omitempty"`
	ReadAt      *time.Time    `db:"read_at" json:"readAt,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updatedAt"`
}

// NewMessage is a standalone message queued through the API.
type NewMessage struct {
	ClientID    *int64
	Content     string
	PhoneNumber string
}

// MessageFilter narrows message listings. Nil fields are ignored.
type MessageFilter struct {
	Status     *MessageStatus
	ClientID   *int64
	CampaignID *string
}

// MessageStats counts messages per status.
type MessageStats struct {
	Pending   int64 `db:"pending" json:"pending"`
	Sent      int64 `db:"sent" json:"sent"`
	Delivered int64 `db:"delivered" json:"delivered"`
	Read      int64 `db:"read_count" json:"read"`
	Failed    int64 `db:"failed" json:"failed"`
}

func (s MessageStats) Total() int64 {
	return s.Pending + s.Sent + s.Delivered + s.Read + s.Failed
}

type SentMessageCache struct {
	MessageID string    `json:"messageId"`
	SentAt    time.Time `json:"sentAt"`
}

type WebhookRequest struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Content string `json:"content"`
}

type WebhookResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

// StatusUpdate is a delivery receipt reported by the provider.
type StatusUpdate struct {
	MessageID string        `json:"messageId" validate:"required"`
	Status    MessageStatus `json:"status" validate:"required,oneof=sent delivered read failed"`
	Timestamp *time.Time    `json:"timestamp,omitempty"`
}

type SendResult struct {
	MessageDBID int64
	CampaignID  *string
	MessageID   string
	Success     bool
	Error       error
	SentAt      time.Time
}
