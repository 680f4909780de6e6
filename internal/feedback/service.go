package feedback

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/eugenenazirov/renovate-initializr/internal/openai"
	"github.com/eugenenazirov/renovate-initializr/internal/storage"
)

const (
	minInitialTokens = 1200
	minRetryTokens   = 4096
	maxRetryTokens   = 8192
	maxIssues        = 8
)

const (
	summaryFailed  = "Failed to generate feedback: "
	summaryError   = "OpenAI returned an error: "
	summaryRefused = "Model refused to generate structured output due to safety policy."
	summaryEmpty   = "No structured output returned by the model."
)

// Generator produces model responses.
type Generator interface {
	CreateResponse(ctx context.Context, req openai.ResponseRequest) (*openai.Response, error)
}

// Cache stores serialized responses.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Config tunes the requests sent to the model.
type Config struct {
	Model           string
	MaxOutputTokens int64
	ReasoningEffort string
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables response caching.
func WithCache(cache Cache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// Service asks the model for feedback on Renovate configurations.
type Service struct {
	generator Generator
	cache     Cache
	cfg       Config
	logger    *zap.Logger
	group     singleflight.Group
}

// NewService constructs a Service.
func NewService(generator Generator, cfg Config, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		generator: generator,
		cfg:       cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetFeedback never fails: problems talking to the model are reported in the
// summary of a response that echoes the original configuration.
func (s *Service) GetFeedback(ctx context.Context, renovateJSON string) Response {
	key := s.cacheKey(renovateJSON)
	if cached, ok := s.lookup(ctx, key); ok {
		requestsTotal.WithLabelValues(outcomeCached).Inc()
		return cached
	}

	v, _, _ := s.group.Do(key, func() (any, error) {
		resp, outcome := s.generate(context.WithoutCancel(ctx), renovateJSON)
		requestsTotal.WithLabelValues(outcome).Inc()
		if outcome == outcomeSuccess {
			s.store(context.WithoutCancel(ctx), key, resp)
		}
		return resp, nil
	})
	return v.(Response)
}

func (s *Service) generate(ctx context.Context, original string) (Response, string) {
	prompt := buildPrompt(original)
	initial := max(int64(minInitialTokens), s.cfg.MaxOutputTokens)

	res, err := s.request(ctx, prompt, initial)
	if err == nil && res.Status == openai.StatusIncomplete {
		if reason := res.IncompleteReason(); reason != openai.ReasonContentFilter {
			retry := min(max(initial*2, minRetryTokens), maxRetryTokens)
			s.logger.Warn("retrying due to incomplete response",
				zap.String("reason", reason),
				zap.Int64("prev_tokens", initial),
				zap.Int64("retry_tokens", retry),
			)
			retriesTotal.Inc()
			res, err = s.request(ctx, prompt, retry)
		}
	}
	if err != nil {
		s.logger.Error("failed to get feedback from model", zap.Error(err))
		return fallback(summaryFailed+err.Error(), original), outcomeUpstreamError
	}

	return s.toResponse(res, original)
}

func (s *Service) request(ctx context.Context, prompt string, maxTokens int64) (*openai.Response, error) {
	req := openai.ResponseRequest{
		Model:           s.cfg.Model,
		Input:           prompt,
		Instructions:    instructions,
		MaxOutputTokens: maxTokens,
		Text:            openai.JSONSchemaFormat(schemaName, outputSchema()),
	}
	if s.cfg.ReasoningEffort != "" {
		req.Reasoning = &openai.Reasoning{Effort: s.cfg.ReasoningEffort}
	}

	start := time.Now()
	res, err := s.generator.CreateResponse(ctx, req)
	upstreamDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.New("empty response from model provider")
	}
	return res, nil
}

func (s *Service) toResponse(res *openai.Response, original string) (Response, string) {
	fields := []zap.Field{
		zap.String("id", res.ID),
		zap.String("model", res.Model),
		zap.String("status", res.Status),
	}

	if res.Error != nil {
		s.logger.Error("model response error", append(fields,
			zap.String("code", res.Error.Code),
			zap.String("message", res.Error.Message),
		)...)
		return fallback(summaryError+res.Error.Message, original), outcomeModelError
	}

	if text, ok := res.OutputText(); ok {
		var out Response
		if err := json.Unmarshal([]byte(text), &out); err != nil {
			s.logger.Error("failed to decode structured output", append(fields, zap.Error(err))...)
			return fallback(summaryFailed+"decode structured output: "+err.Error(), original), outcomeUpstreamError
		}
		return normalize(out), outcomeSuccess
	}

	if res.Refused() {
		s.logger.Warn("model refused to provide structured output", fields...)
		return fallback(summaryRefused, original), outcomeRefused
	}

	s.logger.Warn("no structured output returned by model", append(fields,
		zap.String("reason", res.IncompleteReason()),
		zap.Int("outputs", len(res.Output)),
	)...)
	return fallback(summaryEmpty, original), outcomeEmpty
}

// normalize caps the issue list at maxIssues even when the model ignores the
// limit stated in its instructions.
func normalize(resp Response) Response {
	if resp.Issues == nil {
		resp.Issues = []Issue{}
	}
	if len(resp.Issues) > maxIssues {
		resp.Issues = resp.Issues[:maxIssues]
	}
	return resp
}

func (s *Service) cacheKey(renovateJSON string) string {
	var compact bytes.Buffer
	payload := []byte(renovateJSON)
	if err := json.Compact(&compact, payload); err == nil {
		payload = compact.Bytes()
	}

	h := sha256.New()
	h.Write([]byte(s.cfg.Model))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Service) lookup(ctx context.Context, key string) (Response, bool) {
	if s.cache == nil {
		return Response{}, false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("feedback cache lookup failed", zap.Error(err))
		}
		return Response{}, false
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		s.logger.Warn("discarding undecodable cached feedback", zap.Error(err))
		return Response{}, false
	}
	return normalize(resp), true
}

func (s *Service) store(ctx context.Context, key string, resp Response) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warn("failed to encode feedback for cache", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, raw); err != nil {
		s.logger.Warn("feedback cache write failed", zap.Error(err))
	}
}
