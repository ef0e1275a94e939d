package flow

import (
	"strings"
	"time"

	"github.com/Nozer-Taz/isco-bot/internal/domain"
)

// EventDraft collects the fields of an event being created.
type EventDraft struct {
	Title       string
	Description string
	MediaRef    string
	Date        time.Time // local midnight
}

func (s *Session) AcceptTitle(text string) error {
	title, err := domain.ValidateTitle(text)
	if err != nil {
		return err
	}
	s.Draft.Title = title
	s.Step = StepDescription
	return nil
}

func (s *Session) AcceptDescription(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return &domain.ValidationError{Field: "description", Reason: "required"}
	}
	s.Draft.Description = text
	s.Step = StepPhoto
	return nil
}

// AcceptPhoto takes the file id of the largest photo size.
func (s *Session) AcceptPhoto(fileID string) error {
	if fileID == "" {
		return &domain.ValidationError{Field: "photo", Reason: "send a photo"}
	}
	s.Draft.MediaRef = fileID
	s.Step = StepDate
	return nil
}

func (s *Session) AcceptDate(text string, now time.Time, loc *time.Location) error {
	d, err := domain.ParseEventDate(text, now, loc)
	if err != nil {
		return err
	}
	s.Draft.Date = d
	s.Step = StepTime
	return nil
}

// AcceptTime completes the flow. A start in the past is rejected: the
// session stays at StepTime when the date is today, otherwise it goes back
// to StepDate.
func (s *Session) AcceptTime(text string, now time.Time, loc *time.Location, createdBy int64) (domain.NewEvent, error) {
	hour, minute, err := domain.ParseClock(text)
	if err != nil {
		return domain.NewEvent{}, err
	}
	at := domain.CombineLocal(s.Draft.Date, hour, minute, loc)
	if at.Before(now) {
		if domain.SameDay(at, now, loc) {
			return domain.NewEvent{}, &domain.ValidationError{Field: "time", Reason: "already passed today"}
		}
		s.Step = StepDate
		return domain.NewEvent{}, &domain.ValidationError{Field: "date", Reason: "in the past"}
	}

	s.Step = StepNone
	return domain.NewEvent{
		Title:       s.Draft.Title,
		Description: s.Draft.Description,
		MediaRef:    s.Draft.MediaRef,
		At:          at.UTC(),
		CreatedBy:   createdBy,
	}, nil
}
