package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Nozer-Taz/isco-bot/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu   sync.Mutex
	jobs []Job
}

func (r *recorder) handle(_ context.Context, j Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, j)
	return nil
}

func (r *recorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, j := range r.jobs {
		out = append(out, j.ID)
	}
	return out
}

func newTestScheduler(cfg Config) (*Scheduler, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)}
	return New(cfg, zap.NewNop(), WithClock(clock.Now)), clock
}

func reminderJob(id string, due time.Time, eventID, userID int64, kind domain.Kind) Job {
	return Job{ID: id, DueAt: due, Payload: Payload{EventID: eventID, UserID: userID, Kind: kind, Title: "t"}}
}

func TestSchedule_ReplacesSameID(t *testing.T) {
	s, clock := newTestScheduler(Config{})
	now := clock.Now()

	ok, err := s.Schedule(Job{ID: "a", DueAt: now.Add(time.Hour), Payload: Payload{Title: "old"}})
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.Schedule(Job{ID: "a", DueAt: now.Add(2 * time.Hour), Payload: Payload{Title: "new"}})
	require.NoError(t, err)
	require.True(t, ok)

	pending := s.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, "new", pending[0].Payload.Title)
	require.True(t, pending[0].DueAt.Equal(now.Add(2*time.Hour)))
}

func TestSchedule_ReplacementReordersHeap(t *testing.T) {
	s, clock := newTestScheduler(Config{})
	now := clock.Now()

	_, _ = s.Schedule(Job{ID: "a", DueAt: now.Add(time.Hour)})
	_, _ = s.Schedule(Job{ID: "b", DueAt: now.Add(2 * time.Hour)})
	_, _ = s.Schedule(Job{ID: "a", DueAt: now.Add(3 * time.Hour)})

	rec := &recorder{}
	s.handler = rec.handle
	clock.Advance(150 * time.Minute)
	s.fireDue(context.Background(), clock.Now())
	s.inflight.Wait()

	require.Equal(t, []string{"b"}, rec.ids())
	require.Equal(t, 1, s.Len())
}

func TestSchedule_PastOrNowIsNoop(t *testing.T) {
	s, clock := newTestScheduler(Config{})

	ok, err := s.Schedule(Job{ID: "past", DueAt: clock.Now().Add(-time.Minute)})
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = s.Schedule(Job{ID: "now", DueAt: clock.Now()})
	require.NoError(t, err)
	require.False(t, ok)

	require.Zero(t, s.Len())
}

func TestSchedule_EmptyID(t *testing.T) {
	s, clock := newTestScheduler(Config{})
	_, err := s.Schedule(Job{DueAt: clock.Now().Add(time.Hour)})
	require.ErrorIs(t, err, domain.ErrScheduling)
}

func TestFireDue_FiresOnceAndDiscards(t *testing.T) {
	s, clock := newTestScheduler(Config{MisfireGrace: 5 * time.Minute})
	rec := &recorder{}
	s.handler = rec.handle

	_, _ = s.Schedule(Job{ID: "a", DueAt: clock.Now().Add(time.Minute)})
	_, _ = s.Schedule(Job{ID: "b", DueAt: clock.Now().Add(time.Hour)})

	clock.Advance(time.Minute)
	s.fireDue(context.Background(), clock.Now())
	s.fireDue(context.Background(), clock.Now())
	s.inflight.Wait()

	require.Equal(t, []string{"a"}, rec.ids())
	require.Equal(t, []string{"b"}, []string{s.Pending()[0].ID})
}

func TestFireDue_WithinGraceStillFires(t *testing.T) {
	s, clock := newTestScheduler(Config{MisfireGrace: 5 * time.Minute})
	rec := &recorder{}
	s.handler = rec.handle

	_, _ = s.Schedule(Job{ID: "late", DueAt: clock.Now().Add(time.Minute)})
	clock.Advance(5 * time.Minute)
	s.fireDue(context.Background(), clock.Now())
	s.inflight.Wait()

	require.Equal(t, []string{"late"}, rec.ids())
}

func TestFireDue_BeyondGraceIsMisfire(t *testing.T) {
	s, clock := newTestScheduler(Config{MisfireGrace: 5 * time.Minute})
	rec := &recorder{}
	s.handler = rec.handle

	_, _ = s.Schedule(Job{ID: "stale", DueAt: clock.Now().Add(time.Minute)})
	clock.Advance(7 * time.Minute)
	s.fireDue(context.Background(), clock.Now())
	s.inflight.Wait()

	require.Empty(t, rec.ids())
	require.Zero(t, s.Len())
}

func TestFireDue_CoalescesPerUserIntoBroadcast(t *testing.T) {
	s, clock := newTestScheduler(Config{Coalesce: true})
	rec := &recorder{}
	s.handler = rec.handle
	due := clock.Now().Add(time.Minute)

	_, _ = s.Schedule(reminderJob(domain.BroadcastJobID(1, domain.KindHourBefore), due, 1, 0, domain.KindHourBefore))
	_, _ = s.Schedule(reminderJob(domain.UserJobID(1, 42, domain.KindHourBefore), due, 1, 42, domain.KindHourBefore))
	_, _ = s.Schedule(reminderJob(domain.UserJobID(2, 42, domain.KindHourBefore), due, 2, 42, domain.KindHourBefore))

	clock.Advance(time.Minute)
	s.fireDue(context.Background(), clock.Now())
	s.inflight.Wait()

	require.ElementsMatch(t, []string{
		domain.BroadcastJobID(1, domain.KindHourBefore),
		domain.UserJobID(2, 42, domain.KindHourBefore),
	}, rec.ids())
}

func TestFireDue_NoCoalesceFiresAll(t *testing.T) {
	s, clock := newTestScheduler(Config{Coalesce: false})
	rec := &recorder{}
	s.handler = rec.handle
	due := clock.Now().Add(time.Minute)

	_, _ = s.Schedule(reminderJob("b", due, 1, 0, domain.KindHourBefore))
	_, _ = s.Schedule(reminderJob("u", due, 1, 42, domain.KindHourBefore))

	clock.Advance(time.Minute)
	s.fireDue(context.Background(), clock.Now())
	s.inflight.Wait()

	require.ElementsMatch(t, []string{"b", "u"}, rec.ids())
}

func TestFireDue_HandlerFailureIsolated(t *testing.T) {
	s, clock := newTestScheduler(Config{})
	rec := &recorder{}
	s.handler = func(ctx context.Context, j Job) error {
		switch j.ID {
		case "panic":
			panic("boom")
		case "error":
			return errors.New("send failed")
		}
		return rec.handle(ctx, j)
	}

	_, _ = s.Schedule(Job{ID: "panic", DueAt: clock.Now().Add(time.Minute)})
	_, _ = s.Schedule(Job{ID: "error", DueAt: clock.Now().Add(time.Minute)})
	_, _ = s.Schedule(Job{ID: "ok", DueAt: clock.Now().Add(time.Minute)})

	clock.Advance(time.Minute)
	require.NotPanics(t, func() {
		s.fireDue(context.Background(), clock.Now())
		s.inflight.Wait()
	})
	require.Equal(t, []string{"ok"}, rec.ids())
}

func TestShutdown_DropsPendingAndRejects(t *testing.T) {
	s, clock := newTestScheduler(Config{})
	_, _ = s.Schedule(Job{ID: "a", DueAt: clock.Now().Add(time.Hour)})

	require.NoError(t, s.Start(context.Background(), (&recorder{}).handle))
	require.NoError(t, s.Shutdown(context.Background()))
	require.Zero(t, s.Len())

	_, err := s.Schedule(Job{ID: "b", DueAt: clock.Now().Add(time.Hour)})
	require.ErrorIs(t, err, ErrStopped)
	require.ErrorIs(t, err, domain.ErrScheduling)

	// Second shutdown is a no-op.
	require.NoError(t, s.Shutdown(context.Background()))
}

func TestStart_FiresOnRealClock(t *testing.T) {
	s := New(Config{MisfireGrace: time.Minute, Coalesce: true}, zap.NewNop())
	fired := make(chan string, 4)
	handler := func(_ context.Context, j Job) error {
		fired <- j.ID
		return nil
	}
	require.NoError(t, s.Start(context.Background(), handler))
	defer func() { _ = s.Shutdown(context.Background()) }()

	// A far job first, then a near one that must wake the loop.
	_, err := s.Schedule(Job{ID: "far", DueAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	_, err = s.Schedule(Job{ID: "near", DueAt: time.Now().Add(30 * time.Millisecond)})
	require.NoError(t, err)

	select {
	case id := <-fired:
		require.Equal(t, "near", id)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not fire")
	}

	select {
	case id := <-fired:
		t.Fatalf("unexpected second firing: %s", id)
	case <-time.After(100 * time.Millisecond):
	}
	require.Equal(t, 1, s.Len())
}

func TestStart_Twice(t *testing.T) {
	s := New(Config{}, zap.NewNop())
	require.NoError(t, s.Start(context.Background(), nil))
	require.Error(t, s.Start(context.Background(), nil))
	require.NoError(t, s.Shutdown(context.Background()))
}
