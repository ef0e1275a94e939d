package flow

import (
	"sync"
	"time"
)

// Step is the input a session waits for next.
type Step int

const (
	StepNone Step = iota

	StepPhone
	StepFirstName
	StepLastName

	StepTitle
	StepDescription
	StepPhoto
	StepDate
	StepTime
)

// Registering reports whether s belongs to the registration flow.
func (s Step) Registering() bool { return s >= StepPhone && s <= StepLastName }

// CreatingEvent reports whether s belongs to the event creation flow.
func (s Step) CreatingEvent() bool { return s >= StepTitle && s <= StepTime }

// Key identifies a conversation: the same user may talk in several chats.
type Key struct {
	ChatID int64
	UserID int64
}

// Session holds the answers collected so far.
type Session struct {
	Step      Step
	StartedAt time.Time

	Registration Registration
	Draft        EventDraft
}

// Table keeps in-memory sessions. Sessions do not survive a restart.
type Table struct {
	mu       sync.Mutex
	sessions map[Key]*Session
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{sessions: make(map[Key]*Session)}
}

// Begin replaces any session for k with a new one at step.
func (t *Table) Begin(k Key, step Step) *Session {
	s := &Session{Step: step, StartedAt: time.Now()}
	t.mu.Lock()
	t.sessions[k] = s
	t.mu.Unlock()
	return s
}

// Get returns the session for k, if any.
func (t *Table) Get(k Key) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[k]
	return s, ok
}

// Clear drops the session for k and reports whether one existed.
func (t *Table) Clear(k Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.sessions[k]
	delete(t.sessions, k)
	return ok
}

// Len returns the number of open sessions.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
