package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Nozer-Taz/isco-bot/internal/domain"
	"github.com/Nozer-Taz/isco-bot/internal/metrics"
)

// ErrStopped is returned by Schedule after Shutdown.
var ErrStopped = fmt.Errorf("%w: scheduler stopped", domain.ErrScheduling)

// idleWait bounds how long the loop sleeps with nothing queued.
const idleWait = time.Hour

// Handler runs a fired job.
type Handler func(ctx context.Context, job Job) error

// Config controls firing behaviour.
type Config struct {
	// MisfireGrace is how late a job may still fire. Zero disables the check.
	MisfireGrace time.Duration
	// Coalesce collapses per-user jobs into a broadcast job for the same
	// event and kind when both are due in the same wake-up.
	Coalesce bool
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler keeps pending jobs in memory, keyed by id, and fires each one
// once at its due time from a single timer loop.
type Scheduler struct {
	cfg Config
	log *zap.Logger
	now func() time.Time

	mu      sync.Mutex
	queue   jobQueue
	index   map[string]*entry
	handler Handler
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}

	wake     chan struct{}
	inflight sync.WaitGroup
}

// New creates a Scheduler. Jobs may be scheduled before Start.
func New(cfg Config, log *zap.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:   cfg,
		log:   log,
		now:   time.Now,
		index: make(map[string]*entry),
		wake:  make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start launches the timer loop; handler runs every fired job.
func (s *Scheduler) Start(ctx context.Context, handler Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.done != nil {
		return errors.New("scheduler already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.handler = handler
	s.done = make(chan struct{})
	go s.run(ctx)

	s.log.Info("scheduler started",
		zap.Duration("misfire_grace", s.cfg.MisfireGrace),
		zap.Bool("coalesce", s.cfg.Coalesce),
		zap.Int("pending", len(s.queue)),
	)
	return nil
}

// Schedule adds job or replaces the pending job with the same id. It returns
// false without error when the due time is not strictly in the future.
func (s *Scheduler) Schedule(job Job) (bool, error) {
	if job.ID == "" {
		return false, fmt.Errorf("%w: empty job id", domain.ErrScheduling)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false, ErrStopped
	}
	if !job.DueAt.After(s.now()) {
		s.mu.Unlock()
		return false, nil
	}
	if e, ok := s.index[job.ID]; ok {
		e.job = job
		heap.Fix(&s.queue, e.index)
	} else {
		e := &entry{job: job}
		heap.Push(&s.queue, e)
		s.index[job.ID] = e
	}
	pending := len(s.queue)
	s.mu.Unlock()

	metrics.SetPending(pending)
	metrics.RecordScheduled(string(job.Payload.Kind))
	s.log.Debug("job scheduled", zap.String("job_id", job.ID), zap.Time("due_at", job.DueAt))

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true, nil
}

// Pending returns a snapshot of queued jobs ordered by due time.
func (s *Scheduler) Pending() []Job {
	s.mu.Lock()
	out := make([]Job, 0, len(s.queue))
	for _, e := range s.queue {
		out = append(out, e.job)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].DueAt.Equal(out[j].DueAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].DueAt.Before(out[j].DueAt)
	})
	return out
}

// Len returns the number of queued jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Shutdown stops firing and drops queued jobs, then waits for running
// handlers until ctx expires.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	dropped := len(s.queue)
	s.queue = nil
	s.index = make(map[string]*entry)
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	metrics.SetPending(0)
	if cancel != nil {
		cancel()
		<-done
	}

	waited := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		s.log.Warn("scheduler shutdown timed out waiting for running jobs")
		return ctx.Err()
	}

	s.log.Info("scheduler stopped", zap.Int("dropped", dropped))
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	for {
		wait := idleWait
		s.mu.Lock()
		if len(s.queue) > 0 {
			wait = s.queue[0].job.DueAt.Sub(s.now())
		}
		s.mu.Unlock()

		if wait <= 0 {
			s.fireDue(ctx, s.now())
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// fireDue pops every job due at now and hands it to the handler. Jobs later
// than the misfire grace are dropped.
func (s *Scheduler) fireDue(ctx context.Context, now time.Time) {
	s.mu.Lock()
	var due []Job
	for len(s.queue) > 0 && !s.queue[0].job.DueAt.After(now) {
		e := heap.Pop(&s.queue).(*entry)
		delete(s.index, e.job.ID)
		due = append(due, e.job)
	}
	pending := len(s.queue)
	handler := s.handler
	s.mu.Unlock()
	metrics.SetPending(pending)

	batch := due[:0]
	for _, j := range due {
		if late := now.Sub(j.DueAt); s.cfg.MisfireGrace > 0 && late > s.cfg.MisfireGrace {
			metrics.RecordJob(metrics.JobMisfired)
			s.log.Warn("job misfired, skipping",
				zap.String("job_id", j.ID),
				zap.Time("due_at", j.DueAt),
				zap.Duration("late", late),
			)
			continue
		}
		batch = append(batch, j)
	}

	if s.cfg.Coalesce {
		var dropped int
		batch, dropped = coalesce(batch)
		for i := 0; i < dropped; i++ {
			metrics.RecordJob(metrics.JobCoalesced)
		}
		if dropped > 0 {
			s.log.Info("coalesced overdue jobs", zap.Int("dropped", dropped))
		}
	}

	for _, j := range batch {
		s.dispatch(ctx, handler, j)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, handler Handler, job Job) {
	if handler == nil {
		return
	}
	// Running handlers finish even when the loop is cancelled.
	runCtx := context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.RecordJob(metrics.JobFailed)
				s.log.Error("job panicked", zap.String("job_id", job.ID), zap.Any("panic", r))
			}
		}()

		if err := handler(runCtx, job); err != nil {
			metrics.RecordJob(metrics.JobFailed)
			s.log.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			return
		}
		metrics.RecordJob(metrics.JobFired)
		s.log.Info("job fired", zap.String("job_id", job.ID), zap.Int64("event_id", job.Payload.EventID))
	}()
}
