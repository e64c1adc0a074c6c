// Package chat implements the café chat widget's single-exchange session.
//
// A Session holds at most one ChatTurn. Submit moves it idle → pending,
// performs exactly one call to the generation service with the fixed
// persona instruction, reduces the result to one displayed message and
// moves it back to idle. There is no conversation memory and no retry.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jxucoder/tomoru/llm"
	"github.com/jxucoder/tomoru/model"
)

// DefaultMaxRunes bounds the length of a single submission.
const DefaultMaxRunes = 1000

var (
	ErrEmptyInput = errors.New("chat: empty input")
	ErrPending    = errors.New("chat: a reply is still pending")
	ErrTooLong    = errors.New("chat: input too long")
)

// Result describes one finished exchange. It is handed to the session's
// observer after the turn has returned to idle. Text is what the visitor
// sees: the reply or one of the fallbacks. Err is set on the failure path.
type Result struct {
	Outcome  model.Outcome
	UserText string
	Text     string
	Err      error
	Duration time.Duration
}

// Option configures a Session.
type Option func(*Session)

// WithMaxRunes overrides DefaultMaxRunes. Non-positive values disable the limit.
func WithMaxRunes(n int) Option {
	return func(s *Session) { s.maxRunes = n }
}

// WithObserver registers a callback invoked once per finished exchange.
func WithObserver(fn func(Result)) Option {
	return func(s *Session) { s.observe = fn }
}

// Session is one visitor's chat widget state.
type Session struct {
	client   llm.Client
	maxRunes int
	observe  func(Result)

	mu    sync.Mutex
	state model.ChatState
	turn  model.ChatTurn
}

// NewSession creates an idle session backed by the given client.
func NewSession(client llm.Client, opts ...Option) *Session {
	s := &Session{
		client:   client,
		maxRunes: DefaultMaxRunes,
		state:    model.ChatIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Turn returns a snapshot of the current ChatTurn.
func (s *Session) Turn() model.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// Outcome reports how the last exchange resolved. It is OutcomeNone before
// the first exchange and while one is pending.
func (s *Session) Outcome() model.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn.Outcome
}

// State reports whether the session is idle or pending.
func (s *Session) State() model.ChatState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submit runs one exchange and returns the resulting turn.
//
// Empty (after trimming), over-long, and while-pending submissions are
// rejected with ErrEmptyInput, ErrTooLong and ErrPending respectively and
// leave the turn untouched. Otherwise the call always ends idle with exactly
// one of the reply, FallbackEmpty or FallbackFailure in AssistantText; the
// returned error is nil in all three cases.
//
// The outbound call is not canceled when ctx is: it runs to completion or
// until the client's own timeout.
func (s *Session) Submit(ctx context.Context, text string) (model.ChatTurn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return s.Turn(), ErrEmptyInput
	}
	if s.maxRunes > 0 && len([]rune(text)) > s.maxRunes {
		return s.Turn(), ErrTooLong
	}

	if !s.begin(text) {
		return s.Turn(), ErrPending
	}
	return s.finish(s.exchange(ctx, text)), nil
}

// exchange performs the single outbound call. A panicking client counts as a
// failure so the session always returns to idle.
func (s *Session) exchange(ctx context.Context, text string) (res Result) {
	res.UserText = text
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Text, res.Err = "", fmt.Errorf("chat: client panic: %v", r)
		}
		res.Outcome, res.Text = classify(res.Text, res.Err)
		res.Duration = time.Since(start)
	}()

	res.Text, res.Err = s.client.Complete(context.WithoutCancel(ctx), PersonaPrompt, text)
	return res
}

func (s *Session) begin(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == model.ChatPending {
		return false
	}
	s.state = model.ChatPending
	s.turn = model.ChatTurn{UserText: text, Pending: true}
	return true
}

func (s *Session) finish(res Result) model.ChatTurn {
	s.mu.Lock()
	s.turn.AssistantText = res.Text
	s.turn.Outcome = res.Outcome
	s.turn.Pending = false
	s.state = model.ChatIdle
	turn := s.turn
	s.mu.Unlock()

	if s.observe != nil {
		s.observe(res)
	}
	return turn
}

// classify reduces a generator result to an outcome and the text to show.
func classify(reply string, err error) (model.Outcome, string) {
	switch {
	case err != nil:
		return model.OutcomeFailure, FallbackFailure
	case strings.TrimSpace(reply) == "":
		return model.OutcomeEmpty, FallbackEmpty
	default:
		return model.OutcomeReply, reply
	}
}
