// Package httpapi provides the HTTP handler for the café site.
// It delegates all business logic to the engine.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jxucoder/tomoru/chat"
	"github.com/jxucoder/tomoru/engine"
	"github.com/jxucoder/tomoru/internal/logging"
	"github.com/jxucoder/tomoru/internal/metrics"
	"github.com/jxucoder/tomoru/reveal"
	"github.com/jxucoder/tomoru/web"
)

const maxBodyBytes = 64 << 10

// Handler provides the HTTP surface for the café site.
type Handler struct {
	engine   *engine.Engine
	renderer *web.Renderer
	limiter  *RateLimiter
	visits   *RateLimiter
	proxy    bool
	metrics  *metrics.Metrics
	logger   *slog.Logger
	router   chi.Router
}

// Option configures optional Handler collaborators.
type Option func(*Handler)

// WithRateLimiter limits chat submissions per client IP.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(h *Handler) { h.limiter = rl }
}

// WithVisitLimiter limits page loads and visit creation per client IP.
func WithVisitLimiter(rl *RateLimiter) Option {
	return func(h *Handler) { h.visits = rl }
}

// WithTrustedProxy takes the client IP from X-Forwarded-For / X-Real-IP.
// Without it the limiters key on the TCP peer address, since those headers
// are set by the client unless a proxy in front overwrites them.
func WithTrustedProxy(trust bool) Option {
	return func(h *Handler) { h.proxy = trust }
}

// WithMetrics serves m on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// New creates a new HTTP handler.
func New(eng *engine.Engine, renderer *web.Renderer, opts ...Option) *Handler {
	h := &Handler{engine: eng, renderer: renderer, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	h.router = h.buildRouter()
	return h
}

// Router returns the HTTP router.
func (h *Handler) Router() chi.Router {
	return h.router
}

func (h *Handler) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if h.proxy {
		r.Use(middleware.RealIP)
	}
	r.Use(logging.RequestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.With(limit(h.visits)).Get("/", h.handlePage)
	r.Handle("/static/*", http.StripPrefix("/static/", web.Static()))

	r.Route("/api", func(r chi.Router) {
		r.Get("/menu", h.handleMenu)
		r.With(limit(h.visits)).Post("/visits", h.handleOpenVisit)
		r.Route("/visits/{id}", func(r chi.Router) {
			r.Delete("/", h.handleCloseVisit)
			r.Get("/chat", h.handleGetChat)
			r.With(limit(h.limiter)).Post("/chat", h.handleSubmitChat)
			r.Post("/reveal", h.handleReveal)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler())
	}

	return r
}

func limit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rl == nil {
			return next
		}
		return rl.Middleware(next)
	}
}

// --- Request/Response types ---

type chatRequest struct {
	Text string `json:"text"`
}

type revealRequest struct {
	Block    string  `json:"block"`
	Fraction float64 `json:"fraction"`
}

type revealResponse struct {
	Block   string `json:"block"`
	Visible bool   `json:"visible"`
}

type openVisitResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// --- Handlers ---

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	v, err := h.engine.OpenVisit()
	if err != nil {
		if unavailable(err) {
			w.Header().Set("Retry-After", "30")
			http.Error(w, "busy, please try again shortly", http.StatusServiceUnavailable)
			return
		}
		h.logger.Error("opening visit", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.renderer.Render(w, v.ID, v.Board.Snapshot(), v.Chat.Turn()); err != nil {
		h.logger.Error("rendering page", "visit_id", v.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// handleOpenVisit opens a visit without rendering the page, for non-browser
// clients.
func (h *Handler) handleOpenVisit(w http.ResponseWriter, r *http.Request) {
	v, err := h.engine.OpenVisit()
	if err != nil {
		if unavailable(err) {
			h.writeEngineError(w, err)
			return
		}
		h.logger.Error("opening visit", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to open visit")
		return
	}
	writeJSON(w, http.StatusCreated, openVisitResponse{ID: v.ID})
}

func (h *Handler) handleMenu(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.renderer.Site().Menu)
}

func (h *Handler) handleGetChat(w http.ResponseWriter, r *http.Request) {
	v, err := h.engine.Visit(chi.URLParam(r, "id"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v.Chat.Turn())
}

func (h *Handler) handleSubmitChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turn, err := h.engine.Submit(r.Context(), id, req.Text)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

func (h *Handler) handleReveal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req revealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	visible, err := h.engine.Reveal(id, req.Block, req.Fraction)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, revealResponse{Block: req.Block, Visible: visible})
}

func (h *Handler) handleCloseVisit(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.CloseVisit(chi.URLParam(r, "id")); err != nil {
		h.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

// writeEngineError maps engine, chat and reveal errors to status codes.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrVisitNotFound):
		writeError(w, http.StatusNotFound, "visit not found")
	case errors.Is(err, chat.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "text is required")
	case errors.Is(err, chat.ErrTooLong):
		writeError(w, http.StatusBadRequest, "text is too long")
	case errors.Is(err, chat.ErrPending):
		writeError(w, http.StatusConflict, "a reply is still pending")
	case errors.Is(err, reveal.ErrUnknownBlock):
		writeError(w, http.StatusBadRequest, "unknown block")
	case unavailable(err):
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		h.logger.Error("unexpected engine error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// unavailable reports errors that mean "try again later".
func unavailable(err error) bool {
	return errors.Is(err, engine.ErrTooManyVisits) || errors.Is(err, engine.ErrStopping)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON encode error", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
