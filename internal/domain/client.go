package domain

import "time"

type ClientStatus string

const (
	ClientActive       ClientStatus = "active"
	ClientPaused       ClientStatus = "paused"
	ClientDisconnected ClientStatus = "disconnected"
)

func (s ClientStatus) Valid() bool {
	return s == ClientActive || s == ClientPaused || s == ClientDisconnected
}

// Client is a sending account. Messages attached to a client go out from
// its phone number and only while the client is active.
type Client struct {
	ID          int64        `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	PhoneNumber string       `db:"phone_number" json:"phoneNumber"`
	Status      ClientStatus `db:"status" json:"status"`
	CreatedAt   time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updatedAt"`
}
