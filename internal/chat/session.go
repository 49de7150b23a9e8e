package chat

import (
	"time"

	"github.com/google/uuid"
)

// DefaultMaxHistory is the history cap applied when none is configured.
const DefaultMaxHistory = 10

// DefaultUserID is used when no user identifier is supplied.
const DefaultUserID = "anonymous"

// Session is one continuous conversation. It exclusively owns its message
// history; messages are never shared across sessions.
//
// A Session is not safe for concurrent use on its own. The conversation
// engine serializes all access through its single-turn-in-flight guard.
type Session struct {
	// ID is the unique session identifier, generated at start.
	ID string `json:"sessionId"`

	// UserID is an opaque user identifier.
	UserID string `json:"userId"`

	// StartTime is when the session was created.
	StartTime time.Time `json:"startTime"`

	active     bool
	history    []Message
	maxHistory int
}

// NewSession creates an active session. An empty userID defaults to
// DefaultUserID; a non-positive maxHistory defaults to DefaultMaxHistory.
func NewSession(userID string, maxHistory int) *Session {
	if userID == "" {
		userID = DefaultUserID
	}
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Session{
		ID:         uuid.New().String(),
		UserID:     userID,
		StartTime:  time.Now().UTC(),
		active:     true,
		history:    make([]Message, 0, maxHistory),
		maxHistory: maxHistory,
	}
}

// Active reports whether the session still accepts messages.
func (s *Session) Active() bool { return s.active }

// End marks the session inactive. Ending is final for this instance:
// there is no way to reactivate, and End is idempotent.
func (s *Session) End() { s.active = false }

// AddMessage appends a message to the history. It returns false, leaving
// the history untouched, when the message is nil or invalid or when the
// session has ended. When the history exceeds the cap the oldest entries
// are silently dropped.
func (s *Session) AddMessage(msg *Message) bool {
	if !s.active || msg == nil {
		return false
	}
	if err := msg.Validate(); err != nil {
		return false
	}

	s.history = append(s.history, *msg)
	if len(s.history) > s.maxHistory {
		s.history = s.history[len(s.history)-s.maxHistory:]
	}
	return true
}

// ContextWindow returns a copy of the last limit messages in original
// order, or fewer if the history is shorter. A non-positive limit yields
// an empty slice. The result is independent of later appends.
func (s *Session) ContextWindow(limit int) []Message {
	if limit <= 0 {
		return []Message{}
	}
	start := len(s.history) - limit
	if start < 0 {
		start = 0
	}
	window := make([]Message, len(s.history)-start)
	copy(window, s.history[start:])
	return window
}

// Messages returns a copy of the full stored history.
func (s *Session) Messages() []Message {
	return s.ContextWindow(len(s.history))
}

// Len returns the number of stored messages.
func (s *Session) Len() int { return len(s.history) }

// Last returns the most recent message, or nil for an empty history.
func (s *Session) Last() *Message {
	if len(s.history) == 0 {
		return nil
	}
	last := s.history[len(s.history)-1].Clone()
	return last
}
