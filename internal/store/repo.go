package store

import (
	"context"
	"time"

	"github.com/Nozer-Taz/isco-bot/internal/domain"
)

// Repo defines storage operations for users, events and the notification ledger.
type Repo interface {
	AddUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	ListUserIDs(ctx context.Context) ([]int64, error)

	CreateEvent(ctx context.Context, e domain.NewEvent) (int64, error)
	// UpcomingEvents returns events starting at or after now, ascending.
	// A zero horizon means no upper bound.
	UpcomingEvents(ctx context.Context, now time.Time, horizon time.Duration) ([]domain.Event, error)
	// EventsUnseenByUser returns events without an initial announcement
	// record for the user, whether or not they already started.
	EventsUnseenByUser(ctx context.Context, userID int64) ([]domain.Event, error)

	// RecordNotification inserts a ledger row; an existing row is not an error.
	RecordNotification(ctx context.Context, eventID, userID int64, kind domain.Kind) error
	HasNotification(ctx context.Context, eventID, userID int64, kind domain.Kind) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}
