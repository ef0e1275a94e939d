package domain

import (
	"fmt"
	"time"
)

// Kind identifies one notification about an event. The string value is what
// the ledger stores in notifications.notification_type.
type Kind string

const (
	KindDayBefore      Kind = "minus_1_day"
	KindSixHoursBefore Kind = "minus_6_hours"
	KindHourBefore     Kind = "minus_1_hour"
	KindQuarterBefore  Kind = "minus_15_minutes"
	KindStarted        Kind = "plus_15_minutes_started"
	KindInitial        Kind = "initial_announcement"
)

// Reminder ties a kind to its offset before the event start. A negative
// offset fires after the start.
type Reminder struct {
	Kind   Kind
	Offset time.Duration
	Label  string
}

// Reminders is the fixed offset table, earliest first.
var Reminders = []Reminder{
	{Kind: KindDayBefore, Offset: 24 * time.Hour, Label: "Event starts in 1 day"},
	{Kind: KindSixHoursBefore, Offset: 6 * time.Hour, Label: "Event starts in 6 hours"},
	{Kind: KindHourBefore, Offset: time.Hour, Label: "Event starts in 1 hour"},
	{Kind: KindQuarterBefore, Offset: 15 * time.Minute, Label: "Event starts in 15 minutes"},
	{Kind: KindStarted, Offset: -15 * time.Minute, Label: "Event started 15 minutes ago"},
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	if k == KindInitial {
		return true
	}
	_, ok := ReminderFor(k)
	return ok
}

// Label returns the human text for k.
func (k Kind) Label() string {
	if r, ok := ReminderFor(k); ok {
		return r.Label
	}
	if k == KindInitial {
		return "New event"
	}
	return string(k)
}

// ReminderFor looks up the reminder entry for k.
func ReminderFor(k Kind) (Reminder, bool) {
	for _, r := range Reminders {
		if r.Kind == k {
			return r, true
		}
	}
	return Reminder{}, false
}

// DueAt is the instant the reminder fires for an event starting at eventAt.
func (r Reminder) DueAt(eventAt time.Time) time.Time {
	return eventAt.Add(-r.Offset)
}

// DueReminder is a reminder with its concrete fire time.
type DueReminder struct {
	Reminder
	At time.Time
}

// FutureReminders returns the reminders of an event starting at eventAt whose
// due time is strictly after now. Missed offsets are dropped, not back-filled.
func FutureReminders(eventAt, now time.Time) []DueReminder {
	var out []DueReminder
	for _, r := range Reminders {
		at := r.DueAt(eventAt)
		if at.After(now) {
			out = append(out, DueReminder{Reminder: r, At: at})
		}
	}
	return out
}

// BroadcastJobID is the job id of a reminder addressed to all users.
func BroadcastJobID(eventID int64, k Kind) string {
	return fmt.Sprintf("event_%d_notification_%s", eventID, k)
}

// UserJobID is the job id of a reminder scheduled during a user's reconciliation.
func UserJobID(eventID, userID int64, k Kind) string {
	return fmt.Sprintf("event_%d_user_%d_notification_%s", eventID, userID, k)
}
