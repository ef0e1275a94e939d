package telegram

import (
	"context"
	"net/http"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// maxCaptionLen is Telegram's limit for a photo caption.
const maxCaptionLen = 1024

// NewBot creates a Bot API client whose every call is bounded by timeout.
func NewBot(token string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	return bot, nil
}

// Sender delivers notifications through the Bot API with HTML formatting.
type Sender struct {
	bot Bot
	log *zap.Logger
}

// NewSender creates a Sender.
func NewSender(bot Bot, log *zap.Logger) *Sender {
	return &Sender{bot: bot, log: log}
}

func (s *Sender) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := s.bot.Send(msg)
	return err
}

// SendPhoto sends mediaRef with caption. A caption over Telegram's limit
// follows the photo as a separate message; once the photo is out the send
// counts as delivered even if that message fails.
func (s *Sender) SendPhoto(ctx context.Context, chatID int64, mediaRef, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(mediaRef))
	long := utf8.RuneCountInString(caption) > maxCaptionLen
	if !long {
		photo.Caption = caption
		photo.ParseMode = tgbotapi.ModeHTML
	}
	if _, err := s.bot.Send(photo); err != nil {
		return err
	}
	if long {
		if err := s.SendText(ctx, chatID, caption); err != nil {
			s.log.Warn("send long caption failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
	return nil
}
