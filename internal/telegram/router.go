package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Nozer-Taz/isco-bot/internal/domain"
	"github.com/Nozer-Taz/isco-bot/internal/flow"
	"github.com/Nozer-Taz/isco-bot/internal/notify"
	"github.com/Nozer-Taz/isco-bot/internal/store"
)

// Bot is the part of tgbotapi.BotAPI the router and sender use.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Reconciler runs the follow-ups of a registration or an event creation.
type Reconciler interface {
	ReconcileForNewUser(ctx context.Context, userID int64) error
	AnnounceEvent(ctx context.Context, ev domain.Event) (notify.Result, error)
}

// Options configures a Router.
type Options struct {
	AdminID  int64
	Location *time.Location
	// Now replaces time.Now, for tests.
	Now func() time.Time
}

// Router wires Telegram updates to handlers and holds the in-memory
// conversation state.
type Router struct {
	bot      Bot
	log      *zap.Logger
	repo     store.Repo
	engine   Reconciler
	sessions *flow.Table

	adminID int64
	loc     *time.Location
	now     func() time.Time

	// Follow-ups run outside the update loop.
	bg sync.WaitGroup
}

// NewRouter creates a new Telegram router.
func NewRouter(bot Bot, log *zap.Logger, repo store.Repo, engine Reconciler, opts Options) *Router {
	r := &Router{
		bot:      bot,
		log:      log,
		repo:     repo,
		engine:   engine,
		sessions: flow.NewTable(),
		adminID:  opts.AdminID,
		loc:      opts.Location,
		now:      opts.Now,
	}
	if r.loc == nil {
		r.loc = time.UTC
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	key := flow.Key{ChatID: msg.Chat.ID, UserID: msg.From.ID}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			r.handleStart(ctx, key)
		case "help":
			r.handleHelp(key)
		case "cancel":
			r.handleCancel(key)
		case "create_event":
			r.handleCreateEvent(key)
		case "list_events":
			r.handleListEvents(ctx, key)
		default:
			r.sendText(key.ChatID, unknownCommandText)
		}
		return
	}

	s, ok := r.sessions.Get(key)
	if !ok {
		r.sendText(key.ChatID, noSessionText)
		return
	}

	switch {
	case s.Step.Registering():
		r.handleRegistration(ctx, key, s, msg)
	case s.Step.CreatingEvent():
		r.handleEventCreation(ctx, key, s, msg)
	default:
		r.sessions.Clear(key)
		r.sendText(key.ChatID, noSessionText)
	}
}

// Wait blocks until background follow-ups finish.
func (r *Router) Wait() {
	r.bg.Wait()
}

// background runs fn detached from the update loop's cancellation.
func (r *Router) background(ctx context.Context, name string, fn func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		if err := fn(ctx); err != nil {
			r.log.Error(name+" failed", zap.Error(err))
		}
	}()
}

func (r *Router) isAdmin(userID int64) bool {
	return r.adminID != 0 && userID == r.adminID
}

func messageText(msg *tgbotapi.Message) string {
	return strings.TrimSpace(msg.Text)
}
