package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/renovate-initializr/internal/feedback"
	"github.com/eugenenazirov/renovate-initializr/internal/siteconfig"
	"github.com/eugenenazirov/renovate-initializr/internal/validation"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// maxFeedbackBody caps the POST /api/feedback payload.
const maxFeedbackBody = 1 << 20

// ConfigValidator checks a renovate.json document.
type ConfigValidator interface {
	Validate(raw string) validation.Result
}

// FeedbackProvider produces model feedback for a valid renovate.json document.
type FeedbackProvider interface {
	GetFeedback(ctx context.Context, renovateJSON string) feedback.Response
}

// Handler wires the site configuration, validator and feedback service into HTTP handlers.
type Handler struct {
	site      siteconfig.EffectiveConfig
	validator ConfigValidator
	feedback  FeedbackProvider
	logger    *zap.Logger

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithFeedback enables POST /api/feedback. Without it the endpoint answers 503.
func WithFeedback(provider FeedbackProvider) HandlerOption {
	return func(h *Handler) {
		h.feedback = provider
	}
}

// WithHandlerLogger sets the logger used for request-level diagnostics.
func WithHandlerLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(site siteconfig.EffectiveConfig, validator ConfigValidator, opts ...HandlerOption) *Handler {
	h := &Handler{
		site:      site,
		validator: validator,
		logger:    zap.NewNop(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSiteConfig(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, h.site.Document())
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	body := http.MaxBytesReader(w, r.Body, maxFeedbackBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Invalid request", "request body exceeds 1 MiB")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	if strings.TrimSpace(req.RenovateJSON) == "" {
		writeError(w, http.StatusBadRequest, "Invalid request", "renovateJson must not be empty")
		return
	}

	result := h.validator.Validate(req.RenovateJSON)
	if !result.Valid {
		writeError(w, http.StatusBadRequest, "Invalid Renovate configuration", result.ErrorMessage,
			"Fix the listed problems and request feedback again")
		return
	}

	if h.feedback == nil {
		writeError(w, http.StatusServiceUnavailable, "Feedback unavailable", "no model provider is configured",
			"Set OPENAI_API_KEY to enable feedback")
		return
	}

	resp := h.feedback.GetFeedback(r.Context(), req.RenovateJSON)
	h.logger.Debug("feedback generated",
		zap.Int("issues", len(resp.Issues)),
		zap.String("request_id", requestIDFromContext(r.Context())),
	)
	writeJSON(w, http.StatusOK, resp)
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type feedbackRequest struct {
	RenovateJSON string `json:"renovateJson"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}
