package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Nozer-Taz/isco-bot/internal/domain"
	"github.com/Nozer-Taz/isco-bot/internal/lock"
	"github.com/Nozer-Taz/isco-bot/internal/metrics"
	"github.com/Nozer-Taz/isco-bot/internal/notify"
	"github.com/Nozer-Taz/isco-bot/internal/scheduler"
)

// Events is the part of the store the engine reads.
type Events interface {
	UpcomingEvents(ctx context.Context, now time.Time, horizon time.Duration) ([]domain.Event, error)
	EventsUnseenByUser(ctx context.Context, userID int64) ([]domain.Event, error)
}

// Notifier delivers notifications and records them.
type Notifier interface {
	NotifyAll(ctx context.Context, n notify.Notification) (notify.Result, error)
	NotifyUsers(ctx context.Context, n notify.Notification, ids []int64) notify.Result
	SendText(ctx context.Context, userID int64, text string) error
}

// Scheduler accepts timed jobs.
type Scheduler interface {
	Schedule(job scheduler.Job) (bool, error)
}

// Options tunes the engine.
type Options struct {
	// Location renders event times in captions.
	Location *time.Location
	// StaleAfter is how long after its start an event is still announced to
	// a new user.
	StaleAfter time.Duration
	// LockTTL bounds a per-user reconciliation when the lock is remote.
	LockTTL time.Duration
	// Now replaces time.Now, for tests.
	Now func() time.Time
}

// Engine derives reminder jobs from stored events and announces events to
// users who have not seen them.
type Engine struct {
	events Events
	notify Notifier
	sched  Scheduler
	locker lock.Locker
	log    *zap.Logger

	loc        *time.Location
	staleAfter time.Duration
	lockTTL    time.Duration
	now        func() time.Time
}

// New creates an Engine.
func New(events Events, n Notifier, sched Scheduler, locker lock.Locker, log *zap.Logger, opts Options) *Engine {
	e := &Engine{
		events:     events,
		notify:     n,
		sched:      sched,
		locker:     locker,
		log:        log,
		loc:        opts.Location,
		staleAfter: opts.StaleAfter,
		lockTTL:    opts.LockTTL,
		now:        opts.Now,
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.lockTTL <= 0 {
		e.lockTTL = 2 * time.Minute
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.locker == nil {
		e.locker = lock.NewLocal()
	}
	return e
}

// ScheduleForEvent schedules the broadcast reminders of ev that are still
// ahead and returns how many were accepted.
func (e *Engine) ScheduleForEvent(ctx context.Context, ev domain.Event) int {
	return e.scheduleReminders(ctx, ev, 0)
}

func (e *Engine) scheduleReminders(_ context.Context, ev domain.Event, userID int64) int {
	now := e.now()
	scheduled := 0
	for _, r := range domain.FutureReminders(ev.At, now) {
		id := domain.BroadcastJobID(ev.ID, r.Kind)
		if userID != 0 {
			id = domain.UserJobID(ev.ID, userID, r.Kind)
		}
		job := scheduler.Job{
			ID:    id,
			DueAt: r.At,
			Payload: scheduler.Payload{
				EventID:     ev.ID,
				Title:       ev.Title,
				Description: ev.Description,
				MediaRef:    ev.MediaRef,
				Kind:        r.Kind,
				Label:       r.Label,
				UserID:      userID,
			},
		}

		ok, err := e.sched.Schedule(job)
		if err != nil {
			e.log.Error("schedule reminder failed",
				zap.String("job_id", id),
				zap.Int64("event_id", ev.ID),
				zap.Error(err),
			)
			continue
		}
		if ok {
			scheduled++
		}
	}

	e.log.Debug("reminders scheduled",
		zap.Int64("event_id", ev.ID),
		zap.Int64("user_id", userID),
		zap.Int("count", scheduled),
	)
	return scheduled
}

// ReconcileAll schedules reminders for every event that still has one
// ahead. It runs at startup; a store error is returned to the caller.
func (e *Engine) ReconcileAll(ctx context.Context) error {
	return e.reconcileAll(ctx, "startup")
}

// Resync is ReconcileAll run periodically.
func (e *Engine) Resync(ctx context.Context) error {
	return e.reconcileAll(ctx, "resync")
}

func (e *Engine) reconcileAll(ctx context.Context, path string) error {
	// Events that started recently still have the "started" reminder ahead.
	since := e.now().Add(-afterStartWindow())
	events, err := e.events.UpcomingEvents(ctx, since, 0)
	if err != nil {
		return fmt.Errorf("reconcile all: %w", err)
	}

	total := 0
	for _, ev := range events {
		total += e.ScheduleForEvent(ctx, ev)
	}
	metrics.RecordReconciliation(path)
	e.log.Info("reconciled events",
		zap.String("path", path),
		zap.Int("events", len(events)),
		zap.Int("jobs", total),
	)
	return nil
}

// AnnounceEvent broadcasts the creation of ev to every user, recording the
// initial announcement for each, then schedules its reminders. Reminders
// are scheduled even when the audience could not be listed.
func (e *Engine) AnnounceEvent(ctx context.Context, ev domain.Event) (notify.Result, error) {
	res, err := e.notify.NotifyAll(ctx, notify.Notification{
		EventID:  ev.ID,
		Kind:     domain.KindInitial,
		MediaRef: ev.MediaRef,
		Text:     notify.AnnouncementCaption(ev, e.loc),
	})
	if err != nil {
		e.log.Error("announce event failed", zap.Int64("event_id", ev.ID), zap.Error(err))
	}

	e.ScheduleForEvent(ctx, ev)
	metrics.RecordReconciliation("event")
	return res, err
}

// ReconcileForNewUser sends a newly registered user every event they have
// not seen and schedules their personal reminders. Only one reconciliation
// per user runs at a time; a concurrent call returns nil without effect.
func (e *Engine) ReconcileForNewUser(ctx context.Context, userID int64) error {
	log := e.log.With(zap.Int64("user_id", userID))

	release, ok, err := e.locker.Acquire(ctx, fmt.Sprintf("reconcile:user:%d", userID), e.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire reconcile lock: %w", err)
	}
	if !ok {
		log.Info("reconciliation already running for user")
		return nil
	}
	defer release()

	unseen, err := e.events.EventsUnseenByUser(ctx, userID)
	if err != nil {
		if sendErr := e.notify.SendText(ctx, userID, notify.ReconcileFailedText); sendErr != nil {
			log.Warn("send failure notice failed", zap.Error(sendErr))
		}
		return fmt.Errorf("reconcile user %d: %w", userID, err)
	}

	events := e.dropStale(unseen)
	metrics.RecordReconciliation("new_user")
	log.Info("reconciling new user", zap.Int("unseen", len(unseen)), zap.Int("announce", len(events)))

	if len(events) == 0 {
		return e.notify.SendText(ctx, userID, notify.NoEventsText)
	}
	if err := e.notify.SendText(ctx, userID, notify.WelcomeCount(len(events))); err != nil {
		log.Warn("send welcome failed", zap.Error(err))
	}

	for _, ev := range events {
		res := e.notify.NotifyUsers(ctx, notify.Notification{
			EventID:  ev.ID,
			Kind:     domain.KindInitial,
			MediaRef: ev.MediaRef,
			Text:     notify.UpcomingCaption(ev, e.loc),
		}, []int64{userID})
		if res.Failed > 0 {
			log.Error("send event details failed", zap.Int64("event_id", ev.ID), zap.String("batch_id", res.BatchID))
			continue
		}
		e.scheduleReminders(ctx, ev, userID)
	}
	return nil
}

// Fire is the scheduler handler. Broadcast jobs reach every user; per-user
// jobs reach only their user.
func (e *Engine) Fire(ctx context.Context, job scheduler.Job) error {
	p := job.Payload
	n := notify.Notification{
		EventID:  p.EventID,
		Kind:     p.Kind,
		MediaRef: p.MediaRef,
		Text:     notify.ReminderCaption(p.Title, p.Description, p.Label),
	}

	if p.Broadcast() {
		_, err := e.notify.NotifyAll(ctx, n)
		return err
	}
	res := e.notify.NotifyUsers(ctx, n, []int64{p.UserID})
	if res.Failed > 0 {
		return &domain.DeliveryError{UserID: p.UserID, Err: fmt.Errorf("job %s", job.ID)}
	}
	return nil
}

// dropStale keeps events that have not started or started within staleAfter.
func (e *Engine) dropStale(events []domain.Event) []domain.Event {
	cutoff := e.now().Add(-e.staleAfter)
	out := events[:0:0]
	for _, ev := range events {
		if ev.At.Before(cutoff) {
			e.log.Debug("skipping stale event", zap.Int64("event_id", ev.ID))
			continue
		}
		out = append(out, ev)
	}
	return out
}

// afterStartWindow is how long after an event starts its last reminder fires.
func afterStartWindow() time.Duration {
	var w time.Duration
	for _, r := range domain.Reminders {
		if -r.Offset > w {
			w = -r.Offset
		}
	}
	return w
}
