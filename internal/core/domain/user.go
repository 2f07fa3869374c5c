package domain

import "time"

// UserProfile holds the attribution fields copied into payout events.
type UserProfile struct {
	ID           string    `json:"id"`
	Referrer     *string   `json:"referrer,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}
