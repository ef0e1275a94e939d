package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Nozer-Taz/isco-bot/internal/domain"
	"github.com/Nozer-Taz/isco-bot/internal/flow"
)

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	r.send(tgbotapi.NewMessage(chatID, text))
}

func (r *Router) sendWithKeyboard(chatID int64, text string, kb any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	r.send(msg)
}

func (r *Router) send(c tgbotapi.Chattable) {
	if _, err := r.bot.Send(c); err != nil {
		r.log.Warn("telegram send failed", zap.Error(err))
	}
}

// --- Core commands ---

func (r *Router) handleStart(ctx context.Context, key flow.Key) {
	_, err := r.repo.GetUser(ctx, key.UserID)
	switch {
	case err == nil:
		r.sessions.Clear(key)
		r.sendText(key.ChatID, welcomeBackText)
		return
	case !errors.Is(err, domain.ErrNotFound):
		r.log.Error("get user failed", zap.Int64("user_id", key.UserID), zap.Error(err))
		r.sendText(key.ChatID, genericErrorText)
		return
	}

	r.sessions.Begin(key, flow.StepPhone)
	r.sendWithKeyboard(key.ChatID, askPhoneText, phoneKeyboard())
}

func (r *Router) handleHelp(key flow.Key) {
	text := helpText
	if r.isAdmin(key.UserID) {
		text += adminHelpText
	}
	r.sendText(key.ChatID, text)
}

func (r *Router) handleCancel(key flow.Key) {
	if !r.sessions.Clear(key) {
		r.sendWithKeyboard(key.ChatID, nothingToCancelText, removeKeyboard())
		return
	}
	r.sendWithKeyboard(key.ChatID, cancelledText, removeKeyboard())
}

// --- Registration flow ---

func (r *Router) handleRegistration(ctx context.Context, key flow.Key, s *flow.Session, msg *tgbotapi.Message) {
	switch s.Step {
	case flow.StepPhone:
		raw := messageText(msg)
		if msg.Contact != nil {
			raw = msg.Contact.PhoneNumber
		}
		if err := s.AcceptPhone(raw); err != nil {
			r.sendWithKeyboard(key.ChatID, invalidPhoneText, phoneKeyboard())
			return
		}
		r.sendWithKeyboard(key.ChatID, askFirstNameText, removeKeyboard())

	case flow.StepFirstName:
		if err := s.AcceptFirstName(messageText(msg)); err != nil {
			r.sendText(key.ChatID, invalidFirstNameText)
			return
		}
		r.sendText(key.ChatID, askLastNameText)

	case flow.StepLastName:
		u, err := s.AcceptLastName(key.UserID, messageText(msg))
		if err != nil {
			r.sendText(key.ChatID, invalidLastNameText)
			return
		}
		r.completeRegistration(ctx, key, u)
	}
}

func (r *Router) completeRegistration(ctx context.Context, key flow.Key, u domain.User) {
	err := r.register(ctx, u)
	switch {
	case errors.Is(err, domain.ErrDuplicateRegistration):
		r.log.Warn("duplicate registration attempt", zap.Int64("user_id", u.ID))
		r.sessions.Clear(key)
		r.sendText(key.ChatID, alreadyRegisteredText)
		return
	case err != nil:
		r.log.Error("register user failed", zap.Int64("user_id", u.ID), zap.Error(err))
		r.sessions.Clear(key)
		r.sendWithKeyboard(key.ChatID, genericErrorText, removeKeyboard())
		return
	}

	r.sessions.Clear(key)
	r.log.Info("user registered", zap.Int64("user_id", u.ID))
	r.sendWithKeyboard(key.ChatID, fmt.Sprintf(registeredFmt, u.Phone, u.FullName()), removeKeyboard())

	r.background(ctx, "reconcile new user", func(ctx context.Context) error {
		return r.engine.ReconcileForNewUser(ctx, u.ID)
	})
}

// register stores u. It returns ErrDuplicateRegistration when the user was
// already registered, after refreshing the stored details.
func (r *Router) register(ctx context.Context, u domain.User) error {
	_, err := r.repo.GetUser(ctx, u.ID)
	existed := err == nil
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err := r.repo.AddUser(ctx, u); err != nil {
		return err
	}
	if existed {
		return domain.ErrDuplicateRegistration
	}
	return nil
}

// --- Event creation flow ---

func (r *Router) handleCreateEvent(key flow.Key) {
	if !r.isAdmin(key.UserID) {
		r.sendText(key.ChatID, adminOnlyText)
		return
	}
	r.sessions.Begin(key, flow.StepTitle)
	r.sendWithKeyboard(key.ChatID, askTitleText, removeKeyboard())
}

func (r *Router) handleEventCreation(ctx context.Context, key flow.Key, s *flow.Session, msg *tgbotapi.Message) {
	if !r.isAdmin(key.UserID) {
		r.sessions.Clear(key)
		r.sendText(key.ChatID, adminOnlyText)
		return
	}

	switch s.Step {
	case flow.StepTitle:
		if err := s.AcceptTitle(messageText(msg)); err != nil {
			r.sendText(key.ChatID, invalidTitleText)
			return
		}
		r.sendText(key.ChatID, askDescriptionText)

	case flow.StepDescription:
		if err := s.AcceptDescription(messageText(msg)); err != nil {
			r.sendText(key.ChatID, askDescriptionText)
			return
		}
		r.sendText(key.ChatID, askPhotoText)

	case flow.StepPhoto:
		if err := s.AcceptPhoto(largestPhoto(msg.Photo)); err != nil {
			r.sendText(key.ChatID, askPhotoText)
			return
		}
		r.sendWithKeyboard(key.ChatID, askDateText, r.dateKeyboard())

	case flow.StepDate:
		if err := s.AcceptDate(messageText(msg), r.now(), r.loc); err != nil {
			r.sendWithKeyboard(key.ChatID, invalidDateText, r.dateKeyboard())
			return
		}
		r.sendWithKeyboard(key.ChatID, askTimeText, timeKeyboard())

	case flow.StepTime:
		ne, err := s.AcceptTime(messageText(msg), r.now(), r.loc, key.UserID)
		if err != nil {
			r.rejectTime(key, err)
			return
		}
		r.completeEvent(ctx, key, ne)
	}
}

func (r *Router) rejectTime(key flow.Key, err error) {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		r.sendWithKeyboard(key.ChatID, invalidTimeText, timeKeyboard())
		return
	}
	switch {
	case ve.Field == "date":
		r.sendWithKeyboard(key.ChatID, pastDateText, r.dateKeyboard())
	case ve.Field == "time" && strings.Contains(ve.Reason, "passed"):
		r.sendWithKeyboard(key.ChatID, pastTimeText, timeKeyboard())
	default:
		r.sendWithKeyboard(key.ChatID, invalidTimeText, timeKeyboard())
	}
}

func (r *Router) completeEvent(ctx context.Context, key flow.Key, ne domain.NewEvent) {
	// The creator column references users; an unregistered admin is stored as unknown.
	if _, err := r.repo.GetUser(ctx, ne.CreatedBy); err != nil {
		ne.CreatedBy = 0
	}

	id, err := r.repo.CreateEvent(ctx, ne)
	r.sessions.Clear(key)
	if err != nil {
		r.log.Error("create event failed", zap.Error(err))
		r.sendWithKeyboard(key.ChatID, genericErrorText, removeKeyboard())
		return
	}

	ev := domain.Event{
		ID:          id,
		Title:       ne.Title,
		Description: ne.Description,
		MediaRef:    ne.MediaRef,
		At:          ne.At,
		CreatedBy:   ne.CreatedBy,
		CreatedAt:   r.now().UTC(),
	}
	r.log.Info("event created", zap.Int64("event_id", id), zap.Time("at", ev.At))

	body := fmt.Sprintf(eventCreatedFmt,
		ev.Title,
		domain.FormatDate(ev.At, r.loc),
		domain.FormatClock(ev.At, r.loc),
		ev.Description,
	)
	r.sendWithKeyboard(key.ChatID, body, removeKeyboard())

	r.background(ctx, "announce event", func(ctx context.Context) error {
		_, err := r.engine.AnnounceEvent(ctx, ev)
		return err
	})
}

// --- Admin listing ---

func (r *Router) handleListEvents(ctx context.Context, key flow.Key) {
	if !r.isAdmin(key.UserID) {
		r.sendText(key.ChatID, adminOnlyText)
		return
	}

	now := r.now()
	events, err := r.repo.UpcomingEvents(ctx, now, 0)
	if err != nil {
		r.log.Error("list events failed", zap.Error(err))
		r.sendText(key.ChatID, listErrorText)
		return
	}
	if len(events) == 0 {
		r.sendText(key.ChatID, noUpcomingText)
		return
	}

	var b strings.Builder
	b.WriteString(upcomingTitle)
	for i, ev := range events {
		fmt.Fprintf(&b, upcomingItemFmt,
			i+1,
			ev.Title,
			domain.FormatDate(ev.At, r.loc),
			domain.FormatClock(ev.At, r.loc),
			domain.FormatTimeUntil(ev.At.Sub(now)),
			ev.Description,
		)
	}
	for _, part := range domain.SplitMessage(b.String(), domain.MaxMessageLen) {
		r.sendText(key.ChatID, part)
	}
}

func largestPhoto(sizes []tgbotapi.PhotoSize) string {
	if len(sizes) == 0 {
		return ""
	}
	return sizes[len(sizes)-1].FileID
}
