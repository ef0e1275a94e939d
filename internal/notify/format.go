package notify

import (
	"fmt"
	"html"
	"time"

	"github.com/Nozer-Taz/isco-bot/internal/domain"
)

// Texts sent outside of an event caption.
const (
	NoEventsText = "👋 Welcome! There are no upcoming events at the moment.\n" +
		"You'll receive notifications when new events are created!"
	ReconcileFailedText = "❌ Sorry, there was an error processing events. " +
		"Please contact the administrator."
)

// Captions are sent with HTML parse mode; user text is escaped.

// ReminderCaption is the body of a timed reminder.
func ReminderCaption(title, description, label string) string {
	return fmt.Sprintf("🔔 Event Reminder 🔔\n\n📌 <b>%s</b>\n📝 %s\n\n⏰ %s",
		html.EscapeString(title),
		html.EscapeString(description),
		html.EscapeString(label),
	)
}

// AnnouncementCaption is the broadcast sent when an event is created.
func AnnouncementCaption(e domain.Event, loc *time.Location) string {
	return fmt.Sprintf("🎉 New Event Created! 🎉\n\n"+
		"📌 Title: <b>%s</b>\n"+
		"📅 Date: %s\n"+
		"⏰ Time: %s\n\n"+
		"📝 Description:\n%s\n\n"+
		"See you there! 🤝",
		html.EscapeString(e.Title),
		domain.FormatDate(e.At, loc),
		domain.FormatClock(e.At, loc),
		html.EscapeString(e.Description),
	)
}

// UpcomingCaption is the event detail a new user receives on registration.
func UpcomingCaption(e domain.Event, loc *time.Location) string {
	return fmt.Sprintf("📅 Upcoming Event:\n\n"+
		"📌 Title: <b>%s</b>\n"+
		"⏰ Date: %s\n"+
		"🕒 Time: %s\n\n"+
		"📝 Description:\n%s",
		html.EscapeString(e.Title),
		domain.FormatDate(e.At, loc),
		domain.FormatClock(e.At, loc),
		html.EscapeString(e.Description),
	)
}

// WelcomeCount introduces the events about to be sent to a new user.
func WelcomeCount(n int) string {
	word := "events"
	if n == 1 {
		word = "event"
	}
	return fmt.Sprintf("🎉 Welcome! There are %d upcoming %s.\nI'll send you the details now...", n, word)
}
