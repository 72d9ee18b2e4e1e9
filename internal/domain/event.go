package domain

import "time"

type EventType string

const (
	EventMessageStatus    EventType = "message.status"
	EventCampaignProgress EventType = "campaign.progress"
	EventCampaignStatus   EventType = "campaign.status"
)

// Event is published whenever a message or campaign changes state.
type Event struct {
	Type       EventType         `json:"type"`
	CampaignID string            `json:"campaignId,omitempty"`
	MessageID  int64             `json:"messageId,omitempty"`
	Status     string            `json:"status,omitempty"`
	Progress   *CampaignProgress `json:"progress,omitempty"`
	At         time.Time         `json:"at"`
}
