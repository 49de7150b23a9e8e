// Package chat defines the conversation data model: messages, sessions,
// and the bounded context window sent to the LLM provider.
package chat

import (
	"fmt"

	"github.com/google/uuid"
)

// Sender identifies who produced a message.
type Sender string

const (
	// SenderUser marks messages typed or spoken by the end user.
	SenderUser Sender = "user"
	// SenderPuppet marks messages produced by the companion.
	SenderPuppet Sender = "puppet"
)

// Kind distinguishes typed text from transcribed voice input.
type Kind string

const (
	KindText  Kind = "text"
	KindVoice Kind = "voice"
)

// MetaAnimationHint is the metadata key the puppet-rendering layer reads
// to pick a playback clip for a puppet message.
const MetaAnimationHint = "animationHint"

// Message is a single conversational turn. Messages are append-only:
// once added to a session they are never mutated.
type Message struct {
	// ID is a unique identifier, generated at creation.
	ID string `json:"id"`

	// Sender is who produced the message.
	Sender Sender `json:"sender"`

	// Text is the message content. Always non-empty for a valid message.
	Text string `json:"text"`

	// Timestamp is a monotonically non-decreasing logical creation time
	// in milliseconds, issued by a Clock.
	Timestamp int64 `json:"timestamp"`

	// Kind indicates how the message entered the system.
	Kind Kind `json:"kind"`

	// Metadata holds optional key-value pairs (animation hint,
	// confidence score, token usage).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ValidationError reports a malformed message or session field.
// It is rejected locally and never sent over the wire.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// Retryable reports false: retrying a malformed value cannot help.
func (e *ValidationError) Retryable() bool { return false }

// NewMessage creates a validated message with a generated ID.
// It returns a *ValidationError if sender or kind are outside their
// enums, text is empty, or the timestamp is negative.
func NewMessage(sender Sender, kind Kind, text string, timestamp int64) (*Message, error) {
	msg := &Message{
		ID:        uuid.New().String(),
		Sender:    sender,
		Text:      text,
		Timestamp: timestamp,
		Kind:      kind,
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// WithMetadata sets a metadata key and returns the message for chaining:
//
//	msg.WithMetadata(chat.MetaAnimationHint, "happy")
func (m *Message) WithMetadata(key string, value any) *Message {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
	return m
}

// MetadataString retrieves a metadata value as a string, returning
// defaultValue when the key is absent or not a string.
func (m *Message) MetadataString(key, defaultValue string) string {
	if m.Metadata == nil {
		return defaultValue
	}
	if s, ok := m.Metadata[key].(string); ok {
		return s
	}
	return defaultValue
}

// Validate checks the message invariants.
func (m *Message) Validate() error {
	switch m.Sender {
	case SenderUser, SenderPuppet:
	default:
		return &ValidationError{Field: "sender", Reason: fmt.Sprintf("unknown value %q", m.Sender)}
	}
	switch m.Kind {
	case KindText, KindVoice:
	default:
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown value %q", m.Kind)}
	}
	if m.Text == "" {
		return &ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if m.Timestamp < 0 {
		return &ValidationError{Field: "timestamp", Reason: "must not be negative"}
	}
	return nil
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	clone := *m
	if m.Metadata != nil {
		clone.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// String returns a short representation for debugging.
func (m *Message) String() string {
	return fmt.Sprintf("Message{ID:%s, Sender:%s, Kind:%s, Timestamp:%d}", m.ID, m.Sender, m.Kind, m.Timestamp)
}
