package domain

import "time"

// User is a registered bot user. ID is the Telegram user id and doubles as the
// private chat id used for delivery.
type User struct {
	ID           int64
	Phone        string
	FirstName    string
	LastName     string
	RegisteredAt time.Time // UTC
}

// FullName joins first and last name, skipping empty parts.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
