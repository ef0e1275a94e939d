package flow

import (
	"github.com/Nozer-Taz/isco-bot/internal/domain"
)

// Registration collects a user's contact details.
type Registration struct {
	Phone     string
	FirstName string
	LastName  string
}

// AcceptPhone takes a shared contact number or typed digits.
func (s *Session) AcceptPhone(raw string) error {
	phone, err := domain.NormalizePhone(raw)
	if err != nil {
		return err
	}
	s.Registration.Phone = phone
	s.Step = StepFirstName
	return nil
}

func (s *Session) AcceptFirstName(text string) error {
	name, err := domain.ValidateName("first name", text)
	if err != nil {
		return err
	}
	s.Registration.FirstName = name
	s.Step = StepLastName
	return nil
}

// AcceptLastName completes the flow and returns the user to store.
func (s *Session) AcceptLastName(userID int64, text string) (domain.User, error) {
	name, err := domain.ValidateName("last name", text)
	if err != nil {
		return domain.User{}, err
	}
	s.Registration.LastName = name
	s.Step = StepNone
	return domain.User{
		ID:        userID,
		Phone:     s.Registration.Phone,
		FirstName: s.Registration.FirstName,
		LastName:  s.Registration.LastName,
	}, nil
}
