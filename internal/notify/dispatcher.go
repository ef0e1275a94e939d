package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Nozer-Taz/isco-bot/internal/domain"
	"github.com/Nozer-Taz/isco-bot/internal/lock"
	"github.com/Nozer-Taz/isco-bot/internal/metrics"
)

// Transport sends messages to a chat.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, mediaRef, caption string) error
}

// Ledger is the part of the store the dispatcher needs.
type Ledger interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
	HasNotification(ctx context.Context, eventID, userID int64, kind domain.Kind) (bool, error)
	RecordNotification(ctx context.Context, eventID, userID int64, kind domain.Kind) error
}

// Notification is one message about an event. Text is sent as the photo
// caption, or as a plain message when MediaRef is empty.
type Notification struct {
	EventID  int64
	Kind     domain.Kind
	MediaRef string
	Text     string
}

// Result summarises a batch.
type Result struct {
	BatchID string
	Sent    int
	Skipped int
	Failed  int
}

// Options tunes outbound sends.
type Options struct {
	// Rate is the number of sends per second. Zero or less disables throttling.
	Rate float64
	// SendTimeout bounds a single send. Zero disables the bound.
	SendTimeout time.Duration
	// Locker serialises deliveries of one (event, kind) to one user. Nil
	// means an in-process lock.
	Locker lock.Locker
	// LockTTL bounds a held delivery lock. Defaults to one minute.
	LockTTL time.Duration
}

// Dispatcher delivers notifications and records them in the ledger.
type Dispatcher struct {
	tr      Transport
	ledger  Ledger
	log     *zap.Logger
	limiter *rate.Limiter
	timeout time.Duration
	locker  lock.Locker
	lockTTL time.Duration
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(tr Transport, ledger Ledger, log *zap.Logger, opts Options) *Dispatcher {
	limit, burst := rate.Inf, 1
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
		burst = int(opts.Rate)
		if burst < 1 {
			burst = 1
		}
	}
	d := &Dispatcher{
		tr:      tr,
		ledger:  ledger,
		log:     log,
		limiter: rate.NewLimiter(limit, burst),
		timeout: opts.SendTimeout,
		locker:  opts.Locker,
		lockTTL: opts.LockTTL,
	}
	if d.locker == nil {
		d.locker = lock.NewLocal()
	}
	if d.lockTTL <= 0 {
		d.lockTTL = time.Minute
	}
	return d
}

// NotifyAll delivers n to every registered user. The error is non-nil only
// when the audience cannot be listed.
func (d *Dispatcher) NotifyAll(ctx context.Context, n Notification) (Result, error) {
	ids, err := d.ledger.ListUserIDs(ctx)
	if err != nil {
		return Result{}, err
	}
	return d.NotifyUsers(ctx, n, ids), nil
}

// NotifyUsers delivers n to each of ids. Users that already received
// (event, kind), or are being sent it concurrently, are skipped; failures
// are logged and counted.
func (d *Dispatcher) NotifyUsers(ctx context.Context, n Notification, ids []int64) Result {
	res := Result{BatchID: uuid.NewString()}
	log := d.log.With(
		zap.String("batch_id", res.BatchID),
		zap.Int64("event_id", n.EventID),
		zap.String("kind", string(n.Kind)),
	)

	for _, uid := range ids {
		if ctx.Err() != nil {
			res.Failed += len(ids) - (res.Sent + res.Skipped + res.Failed)
			log.Warn("batch interrupted", zap.Error(ctx.Err()))
			break
		}

		switch d.deliverOnce(ctx, log, uid, n) {
		case metrics.OutcomeSent:
			res.Sent++
		case metrics.OutcomeSkipped:
			res.Skipped++
		default:
			res.Failed++
		}
	}

	log.Info("batch delivered",
		zap.Int("sent", res.Sent),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res
}

// deliverOnce holds the (event, kind, user) lock across the ledger check,
// the send and the record. A delivery already in flight elsewhere counts as
// skipped.
func (d *Dispatcher) deliverOnce(ctx context.Context, log *zap.Logger, uid int64, n Notification) (out string) {
	defer func() { metrics.RecordDelivery(string(n.Kind), out) }()

	release, ok, err := d.locker.Acquire(ctx, fmt.Sprintf("notify:%d:%s:%d", n.EventID, n.Kind, uid), d.lockTTL)
	if err != nil {
		log.Error("delivery lock failed", zap.Int64("user_id", uid), zap.Error(err))
		return metrics.OutcomeFailed
	}
	if !ok {
		log.Debug("delivery in flight elsewhere", zap.Int64("user_id", uid))
		return metrics.OutcomeSkipped
	}
	defer release()

	seen, err := d.ledger.HasNotification(ctx, n.EventID, uid, n.Kind)
	if err != nil {
		log.Error("ledger check failed", zap.Int64("user_id", uid), zap.Error(err))
		return metrics.OutcomeFailed
	}
	if seen {
		return metrics.OutcomeSkipped
	}

	err = d.Deliver(ctx, uid, n)
	switch {
	case errors.Is(err, domain.ErrDelivery):
		log.Warn("delivery failed", zap.Int64("user_id", uid), zap.Error(err))
		return metrics.OutcomeFailed
	case err != nil:
		// Sent but not recorded.
		log.Error("record notification failed", zap.Int64("user_id", uid), zap.Error(err))
	}
	return metrics.OutcomeSent
}

// Deliver sends n to one user and records it. It does not consult the
// ledger first; NotifyUsers does. A transport failure is a
// *domain.DeliveryError and leaves the ledger untouched.
func (d *Dispatcher) Deliver(ctx context.Context, userID int64, n Notification) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return &domain.DeliveryError{UserID: userID, Err: err}
	}

	sendCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	var err error
	if n.MediaRef == "" {
		err = d.tr.SendText(sendCtx, userID, n.Text)
	} else {
		err = d.tr.SendPhoto(sendCtx, userID, n.MediaRef, n.Text)
	}
	if err != nil {
		return &domain.DeliveryError{UserID: userID, Err: err}
	}

	return d.ledger.RecordNotification(ctx, n.EventID, userID, n.Kind)
}

// SendText sends a text message outside any ledger bookkeeping.
func (d *Dispatcher) SendText(ctx context.Context, userID int64, text string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return &domain.DeliveryError{UserID: userID, Err: err}
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := d.tr.SendText(ctx, userID, text); err != nil {
		return &domain.DeliveryError{UserID: userID, Err: err}
	}
	return nil
}
