package domain

import "time"

// Event is a scheduled happening announced to every user.
type Event struct {
	ID          int64
	Title       string
	Description string
	MediaRef    string    // Telegram photo file id
	At          time.Time // UTC
	CreatedBy   int64
	CreatedAt   time.Time // UTC
}

// NewEvent holds the fields required to create an event.
type NewEvent struct {
	Title       string
	Description string
	MediaRef    string
	At          time.Time
	CreatedBy   int64
}

// Validate reports a ValidationError when the title is missing or too long,
// or the start time is missing.
func (n NewEvent) Validate() error {
	if _, err := ValidateTitle(n.Title); err != nil {
		return err
	}
	if n.At.IsZero() {
		return &ValidationError{Field: "datetime", Reason: "required"}
	}
	return nil
}
