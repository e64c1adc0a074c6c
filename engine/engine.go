// Package engine manages visits: one chat session and one reveal board per
// rendered page, plus the diagnostic trail they leave behind.
// It depends only on interfaces (store, llm) and optional observers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jxucoder/tomoru/chat"
	"github.com/jxucoder/tomoru/internal/alert"
	"github.com/jxucoder/tomoru/internal/metrics"
	"github.com/jxucoder/tomoru/llm"
	"github.com/jxucoder/tomoru/model"
	"github.com/jxucoder/tomoru/reveal"
	"github.com/jxucoder/tomoru/store"
)

var (
	// ErrVisitNotFound is returned for unknown or already closed visits.
	ErrVisitNotFound = errors.New("visit not found")

	// ErrTooManyVisits is returned by OpenVisit when MaxOpenVisits are held.
	ErrTooManyVisits = errors.New("too many open visits")

	// ErrStopping is returned once Stop has begun.
	ErrStopping = errors.New("engine is stopping")
)

// Close reasons recorded on visit.close events.
const (
	CloseClient   = "client"
	CloseIdle     = "idle"
	CloseShutdown = "shutdown"
)

const alertTimeout = 10 * time.Second

// Config holds engine-specific configuration.
type Config struct {
	// Blocks are the content blocks each visit tracks.
	Blocks []string

	// RevealThreshold is the visible fraction that reveals a block.
	RevealThreshold float64

	VisitIdleTimeout time.Duration
	ChatMaxRunes     int

	// MaxOpenVisits caps visits held in memory. Zero means no cap.
	MaxOpenVisits int
}

// Alerter is notified of chat exchanges that ended on the failure fallback.
type Alerter interface {
	ChatFailure(ctx context.Context, f alert.Failure) (bool, error)
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithMetrics records outcomes and visit counts in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithAlerter posts chat failures through a.
func WithAlerter(a Alerter) Option {
	return func(e *Engine) { e.alerter = a }
}

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Visit is one rendered page: its chat widget and its content triggers.
type Visit struct {
	ID        string
	Chat      *chat.Session
	Board     *reveal.Board
	CreatedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

// LastSeen returns the time of the visit's latest activity.
func (v *Visit) LastSeen() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSeen
}

func (v *Visit) touch(t time.Time) {
	v.mu.Lock()
	if t.After(v.lastSeen) {
		v.lastSeen = t
	}
	v.mu.Unlock()
}

// Engine orchestrates visit lifecycle.
type Engine struct {
	config  Config
	store   store.EventStore
	llm     llm.Client
	metrics *metrics.Metrics
	alerter Alerter
	logger  *slog.Logger

	mu       sync.Mutex
	visits   map[string]*Visit
	stopping bool

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inflight sync.WaitGroup
}

// New creates a new Engine.
func New(cfg Config, st store.EventStore, client llm.Client, opts ...Option) *Engine {
	if cfg.VisitIdleTimeout <= 0 {
		cfg.VisitIdleTimeout = 30 * time.Minute
	}
	if cfg.RevealThreshold <= 0 {
		cfg.RevealThreshold = reveal.DefaultThreshold
	}
	if cfg.ChatMaxRunes == 0 {
		cfg.ChatMaxRunes = chat.DefaultMaxRunes
	}
	e := &Engine{
		config: cfg,
		store:  st,
		llm:    client,
		logger: slog.Default(),
		visits: make(map[string]*Visit),
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start starts background goroutines (idle reaper). Call Stop to shut down.
func (e *Engine) Start(ctx context.Context) {
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.reapIdleVisits(e.ctx)
	}()
}

// Stop refuses new submissions, waits for chat calls already running (their
// outcomes are still recorded), cancels background work, then closes
// remaining visits. The store must stay open until Stop returns.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopping = true
	e.mu.Unlock()

	e.inflight.Wait()
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()

	e.mu.Lock()
	ids := make([]string, 0, len(e.visits))
	for id := range e.visits {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	for _, id := range ids {
		e.closeVisit(id, CloseShutdown)
	}
}

// Store returns the event store.
func (e *Engine) Store() store.EventStore { return e.store }

// OpenVisits returns the number of visits held in memory.
func (e *Engine) OpenVisits() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.visits)
}

// OpenVisit creates a visit with an idle chat session and hidden blocks.
func (e *Engine) OpenVisit() (*Visit, error) {
	id := uuid.New().String()[:8]
	now := time.Now().UTC()

	v := &Visit{
		ID:        id,
		CreatedAt: now,
		lastSeen:  now,
	}
	v.Chat = chat.NewSession(e.llm,
		chat.WithMaxRunes(e.config.ChatMaxRunes),
		chat.WithObserver(func(res chat.Result) { e.recordChat(id, res) }),
	)
	v.Board = reveal.NewBoard(e.config.Blocks, e.config.RevealThreshold, e.metrics.ObserveReveal)

	e.mu.Lock()
	if e.stopping {
		e.mu.Unlock()
		v.Board.Close()
		return nil, ErrStopping
	}
	if e.config.MaxOpenVisits > 0 && len(e.visits) >= e.config.MaxOpenVisits {
		e.mu.Unlock()
		v.Board.Close()
		return nil, fmt.Errorf("%w: %d", ErrTooManyVisits, e.config.MaxOpenVisits)
	}
	if _, dup := e.visits[id]; dup {
		e.mu.Unlock()
		v.Board.Close()
		return nil, fmt.Errorf("visit id collision: %s", id)
	}
	e.visits[id] = v
	n := len(e.visits)
	e.mu.Unlock()

	e.metrics.SetVisitsOpen(n)
	e.emitEvent(id, model.EventVisitOpen, "")
	return v, nil
}

// Visit looks up an open visit and marks it active.
func (e *Engine) Visit(id string) (*Visit, error) {
	e.mu.Lock()
	v, ok := e.visits[id]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVisitNotFound, id)
	}
	v.touch(time.Now().UTC())
	return v, nil
}

// Submit sends text through the visit's chat session. See chat.Session.Submit
// for the returned errors. After Stop has begun it returns ErrStopping.
func (e *Engine) Submit(ctx context.Context, id, text string) (model.ChatTurn, error) {
	e.mu.Lock()
	if e.stopping {
		e.mu.Unlock()
		return model.ChatTurn{}, ErrStopping
	}
	e.inflight.Add(1)
	e.mu.Unlock()
	defer e.inflight.Done()

	v, err := e.Visit(id)
	if err != nil {
		return model.ChatTurn{}, err
	}
	turn, err := v.Chat.Submit(ctx, text)
	v.touch(time.Now().UTC())
	return turn, err
}

// Reveal reports a block's visible fraction and returns whether it is now
// visible.
func (e *Engine) Reveal(id, block string, fraction float64) (bool, error) {
	v, err := e.Visit(id)
	if err != nil {
		return false, err
	}
	return v.Board.Report(block, fraction)
}

// CloseVisit discards a visit. Any pending chat call still completes.
func (e *Engine) CloseVisit(id string) error {
	if !e.closeVisit(id, CloseClient) {
		return fmt.Errorf("%w: %s", ErrVisitNotFound, id)
	}
	return nil
}

func (e *Engine) closeVisit(id, reason string) bool {
	e.mu.Lock()
	v, ok := e.visits[id]
	if ok {
		delete(e.visits, id)
	}
	n := len(e.visits)
	e.mu.Unlock()
	if !ok {
		return false
	}

	v.Board.Close()
	e.metrics.SetVisitsOpen(n)
	e.emitEvent(id, model.EventVisitClose, "reason="+reason)
	return true
}

func (e *Engine) reapIdleVisits(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.reapIdle(time.Now().UTC())
		}
	}
}

// reapIdle closes visits whose last activity is older than the idle timeout.
// Visits with a pending chat call are kept.
func (e *Engine) reapIdle(now time.Time) int {
	e.mu.Lock()
	var idle []string
	for id, v := range e.visits {
		if v.Chat.State() == model.ChatPending {
			continue
		}
		if now.Sub(v.LastSeen()) > e.config.VisitIdleTimeout {
			idle = append(idle, id)
		}
	}
	e.mu.Unlock()

	reaped := 0
	for _, id := range idle {
		if e.closeVisit(id, CloseIdle) {
			e.logger.Info("reaped idle visit", "visit_id", id)
			reaped++
		}
	}
	return reaped
}

// recordChat is the chat observer. It never sees or stores the visitor's
// text, only its length.
func (e *Engine) recordChat(visitID string, res chat.Result) {
	e.metrics.ObserveChat(res.Outcome, res.Duration)

	inputLen := utf8.RuneCountInString(res.UserText)
	data := fmt.Sprintf("duration_ms=%d input_runes=%d", res.Duration.Milliseconds(), inputLen)
	if res.Err != nil {
		data += fmt.Sprintf(" error=%q", res.Err.Error())
	}
	e.emitEvent(visitID, model.EventKind(res.Outcome), data)

	if res.Outcome != model.OutcomeFailure {
		return
	}
	e.logger.Warn("chat fell back to failure reply",
		"visit_id", visitID,
		"error", res.Err,
		"duration", res.Duration,
	)
	if e.alerter == nil {
		return
	}

	f := alert.Failure{
		VisitID:  visitID,
		Err:      res.Err,
		InputLen: inputLen,
		Duration: res.Duration,
		Occurred: time.Now().UTC(),
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(e.ctx), alertTimeout)
		defer cancel()
		if _, err := e.alerter.ChatFailure(ctx, f); err != nil {
			e.logger.Error("slack alert failed", "visit_id", visitID, "error", err)
		}
	}()
}

// --- Helpers ---

func (e *Engine) emitEvent(visitID, kind, data string) {
	event := &model.Event{
		VisitID:   visitID,
		Kind:      kind,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.AddEvent(event); err != nil {
		e.logger.Error("storing event", "visit_id", visitID, "kind", kind, "error", err)
	}
}
