// Package engine owns the conversation: it records messages, invokes
// the LLM provider through the retry policy, derives animation hints,
// and emits events for the UI and puppet layers.
package engine

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/shutinglu0913/arbot-puppet/internal/chat"
	"github.com/shutinglu0913/arbot-puppet/internal/config"
	"github.com/shutinglu0913/arbot-puppet/internal/event"
	"github.com/shutinglu0913/arbot-puppet/internal/llm/provider"
	"github.com/shutinglu0913/arbot-puppet/internal/observability"
	"github.com/shutinglu0913/arbot-puppet/internal/retry"
)

// FallbackText is the reply shown when the provider fails past the
// retry budget. The end user always sees a reply, never an error.
const FallbackText = "Hmm, I lost my train of thought... could you say that again?"

// Engine states. An engine moves Uninitialized -> Ready, bounces
// Ready <-> Processing once per turn, and ends in Ended for good.
const (
	stateUninitialized int32 = iota
	stateReady
	stateProcessing
	stateEnded
)

// ErrAlreadyInitialized is returned by a second Initialize call.
// A new conversation needs a new Engine.
var ErrAlreadyInitialized = errors.New("engine already initialized")

// Engine drives one conversation with one active session. At most one
// turn is in flight at a time; a call arriving while a turn is being
// processed is dropped (nil result) rather than queued.
type Engine struct {
	cfg    *config.Config
	prov   provider.Provider
	policy retry.Policy
	bus    *event.Bus
	clock  *chat.Clock

	mu      sync.Mutex
	state   atomic.Int32
	session *chat.Session
}

// New creates an engine in the Uninitialized state. A nil bus gets a
// fresh one; collaborators subscribe via Bus().
func New(cfg *config.Config, prov provider.Provider, bus *event.Bus) *Engine {
	if bus == nil {
		bus = event.NewBus()
	}
	return &Engine{
		cfg:    cfg,
		prov:   prov,
		policy: retry.New(cfg.Retries, cfg.RetryBaseDelay.Std()),
		bus:    bus,
		clock:  chat.NewClock(),
	}
}

// Bus returns the engine's event bus.
func (e *Engine) Bus() *event.Bus { return e.bus }

// Session returns the current session, nil before Initialize.
func (e *Engine) Session() *chat.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Initialize creates the session, appends the greeting as the first
// puppet message, and emits initialized. An empty userID defaults to
// "anonymous".
func (e *Engine) Initialize(userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.CompareAndSwap(stateUninitialized, stateReady) {
		return ErrAlreadyInitialized
	}

	e.session = chat.NewSession(userID, e.cfg.MaxHistory)
	observability.SessionStarted()

	greeting, err := chat.NewMessage(chat.SenderPuppet, chat.KindText, e.cfg.Greeting, e.clock.Now())
	if err != nil {
		return err
	}
	greeting.WithMetadata(chat.MetaAnimationHint, DeriveHint(greeting.Text))
	e.session.AddMessage(greeting)

	log.Printf("[engine] session %s started for user %s", e.session.ID, e.session.UserID)
	e.bus.Emit(event.Event{Topic: event.TopicInitialized, SessionID: e.session.ID})
	e.bus.Emit(event.Event{Topic: event.TopicMessageReceived, SessionID: e.session.ID, Message: greeting})
	return nil
}

// ProcessUserMessage runs one turn: it records the user message, calls
// the provider over the bounded context window, records the puppet
// reply with its animation hint, and returns that reply.
//
// The call is a guarded no-op returning nil when a turn is already in
// flight, when text trims to empty, or when the engine is not Ready
// (including after EndSession: an ended conversation stays ended).
// Provider failure never surfaces to the caller; the turn completes
// with a fallback reply and an error event.
func (e *Engine) ProcessUserMessage(ctx context.Context, text string) *chat.Message {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if !e.state.CompareAndSwap(stateReady, stateProcessing) {
		return nil
	}
	defer e.state.CompareAndSwap(stateProcessing, stateReady)

	userMsg, err := chat.NewMessage(chat.SenderUser, chat.KindText, text, e.clock.Now())
	if err != nil {
		return nil
	}
	e.session.AddMessage(userMsg)
	e.bus.Emit(event.Event{Topic: event.TopicProcessing, SessionID: e.session.ID, Message: userMsg})
	e.bus.Emit(event.Event{Topic: event.TopicMessageReceived, SessionID: e.session.ID, Message: userMsg})

	req := provider.ChatRequest{
		System:      e.cfg.SystemPrompt,
		Messages:    toChatMessages(e.session.ContextWindow(e.cfg.MaxHistory)),
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
	}

	attempt := 0
	resp, err := retry.DoValue(ctx, e.policy, func(ctx context.Context) (*provider.Response, error) {
		attempt++
		if attempt > 1 {
			observability.RecordRetryAttempt(e.prov.Name())
		}
		return e.prov.Send(ctx, req)
	})

	if err != nil || resp.Content == "" {
		return e.fallback(err)
	}

	reply, err := chat.NewMessage(chat.SenderPuppet, chat.KindText, resp.Content, e.clock.Now())
	if err != nil {
		return e.fallback(err)
	}
	reply.WithMetadata(chat.MetaAnimationHint, DeriveHint(resp.Content))
	if resp.Usage.TotalTokens > 0 {
		reply.WithMetadata("totalTokens", resp.Usage.TotalTokens)
	}

	e.session.AddMessage(reply)
	e.bus.Emit(event.Event{Topic: event.TopicMessageReceived, SessionID: e.session.ID, Message: reply})
	observability.RecordTurn(observability.TurnOK)
	return reply
}

// fallback completes a failed turn with a fixed reply and a confused
// hint, emitting an error event for observability.
func (e *Engine) fallback(cause error) *chat.Message {
	if cause == nil {
		cause = errors.New("provider returned empty reply")
	}
	log.Printf("[engine] turn failed, replying with fallback: %v", cause)
	e.bus.Emit(event.Event{Topic: event.TopicError, SessionID: e.session.ID, Err: cause})

	reply, err := chat.NewMessage(chat.SenderPuppet, chat.KindText, FallbackText, e.clock.Now())
	if err != nil {
		return nil
	}
	reply.WithMetadata(chat.MetaAnimationHint, HintConfused)

	e.session.AddMessage(reply)
	e.bus.Emit(event.Event{Topic: event.TopicMessageReceived, SessionID: e.session.ID, Message: reply})
	observability.RecordTurn(observability.TurnFallback)
	return reply
}

// EndSession marks the session inactive and emits sessionEnded once.
// Ending is terminal: further ProcessUserMessage calls are rejected and
// the engine cannot be re-initialized.
func (e *Engine) EndSession() {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.state.Load()
	if prev == stateUninitialized || prev == stateEnded {
		return
	}
	e.state.Store(stateEnded)
	e.session.End()
	observability.SessionEnded()

	log.Printf("[engine] session %s ended", e.session.ID)
	e.bus.Emit(event.Event{Topic: event.TopicSessionEnded, SessionID: e.session.ID})
}

// toChatMessages maps session history to provider roles: the puppet
// speaks as "assistant", the user as "user".
func toChatMessages(window []chat.Message) []provider.ChatMessage {
	out := make([]provider.ChatMessage, 0, len(window))
	for _, m := range window {
		role := "user"
		if m.Sender == chat.SenderPuppet {
			role = "assistant"
		}
		out = append(out, provider.ChatMessage{Role: role, Content: m.Text})
	}
	return out
}
