package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/renovate-initializr/internal/openai"
	"github.com/eugenenazirov/renovate-initializr/internal/storage"
)

const sampleConfig = `{"extends": ["config:recommended"]}`

type scriptedGenerator struct {
	mu        sync.Mutex
	responses []*openai.Response
	errs      []error
	requests  []openai.ResponseRequest
}

func (g *scriptedGenerator) CreateResponse(_ context.Context, req openai.ResponseRequest) (*openai.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := len(g.requests)
	g.requests = append(g.requests, req)

	var err error
	if idx < len(g.errs) {
		err = g.errs[idx]
	}
	if err != nil {
		return nil, err
	}
	if idx < len(g.responses) {
		return g.responses[idx], nil
	}
	return g.responses[len(g.responses)-1], nil
}

func (g *scriptedGenerator) calls() []openai.ResponseRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]openai.ResponseRequest(nil), g.requests...)
}

func textResponse(t *testing.T, resp Response) *openai.Response {
	t.Helper()

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("failed to marshal response: %v", err)
	}
	return &openai.Response{
		ID:     "resp_test",
		Status: openai.StatusCompleted,
		Output: []openai.OutputItem{
			{Type: "message", Role: "assistant", Content: []openai.ContentPart{{Type: "output_text", Text: string(raw)}}},
		},
	}
}

func incomplete(reason string) *openai.Response {
	return &openai.Response{
		Status:            openai.StatusIncomplete,
		IncompleteDetails: &openai.IncompleteDetails{Reason: reason},
	}
}

func newTestService(t *testing.T, gen Generator, cfg Config, opts ...Option) *Service {
	t.Helper()
	return NewService(gen, cfg, zaptest.NewLogger(t), opts...)
}

func TestGetFeedbackSuccess(t *testing.T) {
	want := Response{
		Summary: "Solid baseline config.",
		Issues: []Issue{
			{Severity: SeverityInfo, JSONPath: "$.schedule", Message: "No schedule", Suggestion: "Add one"},
		},
		ImprovedRenovateJSON: `{"extends":["config:recommended"],"schedule":["weekly"]}`,
	}
	gen := &scriptedGenerator{responses: []*openai.Response{textResponse(t, want)}}
	svc := newTestService(t, gen, Config{Model: "gpt-test", MaxOutputTokens: 800, ReasoningEffort: "minimal"})

	got := svc.GetFeedback(context.Background(), sampleConfig)
	if got.Summary != want.Summary || len(got.Issues) != 1 || got.ImprovedRenovateJSON != want.ImprovedRenovateJSON {
		t.Fatalf("unexpected feedback %+v", got)
	}

	calls := gen.calls()
	if len(calls) != 1 {
		t.Fatalf("expected one upstream call, got %d", len(calls))
	}
	req := calls[0]
	if req.MaxOutputTokens != minInitialTokens {
		t.Fatalf("expected initial budget %d, got %d", minInitialTokens, req.MaxOutputTokens)
	}
	if req.Model != "gpt-test" || req.Instructions != instructions {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.Reasoning == nil || req.Reasoning.Effort != "minimal" {
		t.Fatalf("expected minimal reasoning effort, got %+v", req.Reasoning)
	}
	if !strings.HasSuffix(req.Input, "Renovate JSON:\n"+sampleConfig) {
		t.Fatalf("expected prompt to end with the config, got %q", req.Input)
	}
	if req.Text == nil || req.Text.Format.Type != "json_schema" || !req.Text.Format.Strict {
		t.Fatalf("expected strict json_schema format, got %+v", req.Text)
	}
}

func TestGetFeedbackOmitsReasoningWhenDisabled(t *testing.T) {
	gen := &scriptedGenerator{responses: []*openai.Response{textResponse(t, Response{Summary: "ok"})}}
	svc := newTestService(t, gen, Config{})

	got := svc.GetFeedback(context.Background(), sampleConfig)
	if got.Issues == nil {
		t.Fatalf("expected issues to be an empty list, got nil")
	}
	if gen.calls()[0].Reasoning != nil {
		t.Fatalf("expected reasoning to be omitted")
	}
}

func TestGetFeedbackTruncatesIssues(t *testing.T) {
	issues := make([]Issue, 12)
	for i := range issues {
		issues[i] = Issue{Severity: SeverityWarning, Message: "m"}
	}
	gen := &scriptedGenerator{responses: []*openai.Response{textResponse(t, Response{Summary: "many", Issues: issues})}}
	svc := newTestService(t, gen, Config{})

	if got := svc.GetFeedback(context.Background(), sampleConfig); len(got.Issues) != maxIssues {
		t.Fatalf("expected %d issues, got %d", maxIssues, len(got.Issues))
	}
}

func TestGetFeedbackRetryBudget(t *testing.T) {
	tests := []struct {
		name        string
		maxTokens   int64
		wantInitial int64
		wantRetry   int64
	}{
		{name: "default budget", maxTokens: 800, wantInitial: 1200, wantRetry: 4096},
		{name: "doubled budget", maxTokens: 3000, wantInitial: 3000, wantRetry: 6000},
		{name: "capped budget", maxTokens: 5000, wantInitial: 5000, wantRetry: 8192},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gen := &scriptedGenerator{responses: []*openai.Response{
				incomplete("max_output_tokens"),
				textResponse(t, Response{Summary: "after retry"}),
			}}
			svc := newTestService(t, gen, Config{MaxOutputTokens: tc.maxTokens})

			before := testutil.ToFloat64(retriesTotal)
			got := svc.GetFeedback(context.Background(), sampleConfig)
			if got.Summary != "after retry" {
				t.Fatalf("expected retried response, got %+v", got)
			}
			if delta := testutil.ToFloat64(retriesTotal) - before; delta != 1 {
				t.Fatalf("expected retry counter to grow by 1, grew by %v", delta)
			}

			calls := gen.calls()
			if len(calls) != 2 {
				t.Fatalf("expected two upstream calls, got %d", len(calls))
			}
			if calls[0].MaxOutputTokens != tc.wantInitial || calls[1].MaxOutputTokens != tc.wantRetry {
				t.Fatalf("unexpected budgets %d then %d", calls[0].MaxOutputTokens, calls[1].MaxOutputTokens)
			}
		})
	}
}

func TestGetFeedbackRetriesUnknownIncompleteReason(t *testing.T) {
	gen := &scriptedGenerator{responses: []*openai.Response{
		{Status: openai.StatusIncomplete},
		textResponse(t, Response{Summary: "second"}),
	}}
	svc := newTestService(t, gen, Config{})

	if got := svc.GetFeedback(context.Background(), sampleConfig); got.Summary != "second" {
		t.Fatalf("expected retry for unknown reason, got %+v", got)
	}
}

func TestGetFeedbackDoesNotRetryContentFilter(t *testing.T) {
	gen := &scriptedGenerator{responses: []*openai.Response{incomplete("CONTENT_FILTER")}}
	svc := newTestService(t, gen, Config{})

	got := svc.GetFeedback(context.Background(), sampleConfig)
	if len(gen.calls()) != 1 {
		t.Fatalf("expected no retry for content filter, got %d calls", len(gen.calls()))
	}
	if got.Summary != summaryEmpty {
		t.Fatalf("expected empty-output summary, got %q", got.Summary)
	}
}

func TestGetFeedbackFallbacks(t *testing.T) {
	tests := []struct {
		name        string
		gen         *scriptedGenerator
		wantSummary string
	}{
		{
			name:        "transport error",
			gen:         &scriptedGenerator{errs: []error{errors.New("connection refused")}},
			wantSummary: "Failed to generate feedback: connection refused",
		},
		{
			name: "model error",
			gen: &scriptedGenerator{responses: []*openai.Response{{
				Status: openai.StatusFailed,
				Error:  &openai.ResponseError{Code: "server_error", Message: "overloaded"},
			}}},
			wantSummary: "OpenAI returned an error: overloaded",
		},
		{
			name: "refusal",
			gen: &scriptedGenerator{responses: []*openai.Response{{
				Status: openai.StatusCompleted,
				Output: []openai.OutputItem{{Type: "message", Content: []openai.ContentPart{{Type: "refusal", Refusal: "cannot help"}}}},
			}}},
			wantSummary: summaryRefused,
		},
		{
			name:        "no output",
			gen:         &scriptedGenerator{responses: []*openai.Response{{Status: openai.StatusCompleted}}},
			wantSummary: summaryEmpty,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(t, tc.gen, Config{})

			got := svc.GetFeedback(context.Background(), sampleConfig)
			if got.Summary != tc.wantSummary {
				t.Fatalf("expected summary %q, got %q", tc.wantSummary, got.Summary)
			}
			if got.Issues == nil || len(got.Issues) != 0 {
				t.Fatalf("expected empty issue list, got %v", got.Issues)
			}
			if got.ImprovedRenovateJSON != sampleConfig {
				t.Fatalf("expected original config to be echoed, got %q", got.ImprovedRenovateJSON)
			}
		})
	}
}

func TestGetFeedbackUndecodableOutput(t *testing.T) {
	gen := &scriptedGenerator{responses: []*openai.Response{{
		Status: openai.StatusCompleted,
		Output: []openai.OutputItem{{Type: "message", Content: []openai.ContentPart{{Type: "output_text", Text: "{truncated"}}}},
	}}}
	svc := newTestService(t, gen, Config{})

	got := svc.GetFeedback(context.Background(), sampleConfig)
	if !strings.HasPrefix(got.Summary, "Failed to generate feedback: decode structured output") {
		t.Fatalf("unexpected summary %q", got.Summary)
	}
}

func TestGetFeedbackUsesCache(t *testing.T) {
	gen := &scriptedGenerator{responses: []*openai.Response{textResponse(t, Response{Summary: "cached"})}}
	cache := storage.NewMemoryStore(8, time.Minute)
	svc := newTestService(t, gen, Config{Model: "m"}, WithCache(cache))

	first := svc.GetFeedback(context.Background(), sampleConfig)
	// Whitespace differences hit the same entry.
	second := svc.GetFeedback(context.Background(), "{\n  \"extends\": [\"config:recommended\"]\n}")

	if first.Summary != "cached" || second.Summary != "cached" {
		t.Fatalf("unexpected summaries %q / %q", first.Summary, second.Summary)
	}
	if len(gen.calls()) != 1 {
		t.Fatalf("expected a single upstream call, got %d", len(gen.calls()))
	}
	if stats := cache.Stats(); stats.Hits != 1 {
		t.Fatalf("expected one cache hit, got %+v", stats)
	}
}

func TestGetFeedbackDoesNotCacheFallbacks(t *testing.T) {
	gen := &scriptedGenerator{
		errs:      []error{errors.New("timeout")},
		responses: []*openai.Response{nil, textResponse(t, Response{Summary: "recovered"})},
	}
	cache := storage.NewMemoryStore(8, time.Minute)
	svc := newTestService(t, gen, Config{}, WithCache(cache))

	if got := svc.GetFeedback(context.Background(), sampleConfig); !strings.HasPrefix(got.Summary, summaryFailed) {
		t.Fatalf("expected failure summary, got %q", got.Summary)
	}
	if got := svc.GetFeedback(context.Background(), sampleConfig); got.Summary != "recovered" {
		t.Fatalf("expected fresh upstream call after fallback, got %q", got.Summary)
	}
}

type blockingGenerator struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	resp    *openai.Response
}

func (g *blockingGenerator) CreateResponse(_ context.Context, _ openai.ResponseRequest) (*openai.Response, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
	}
	<-g.release
	return g.resp, nil
}

func TestGetFeedbackCoalescesConcurrentRequests(t *testing.T) {
	want := Response{Summary: "shared", Issues: []Issue{{Severity: SeverityInfo, JSONPath: "$", Message: "m", Suggestion: "s"}}}
	gen := &blockingGenerator{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		resp:    textResponse(t, want),
	}
	svc := newTestService(t, gen, Config{Model: "gpt-test", MaxOutputTokens: 800})

	const callers = 5
	var started sync.WaitGroup
	started.Add(callers)
	results := make(chan Response, callers)
	for i := 0; i < callers; i++ {
		go func() {
			started.Done()
			results <- svc.GetFeedback(context.Background(), sampleConfig)
		}()
	}

	started.Wait()
	select {
	case <-gen.entered:
	case <-time.After(time.Second):
		t.Fatalf("expected the model to be called")
	}
	// Give the remaining callers time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(gen.release)

	for i := 0; i < callers; i++ {
		select {
		case got := <-results:
			if got.Summary != want.Summary || len(got.Issues) != 1 || got.Issues[0] != want.Issues[0] {
				t.Fatalf("caller %d got %+v, want %+v", i, got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("caller %d did not receive feedback", i)
		}
	}

	if got := gen.calls.Load(); got != 1 {
		t.Fatalf("expected one upstream call for identical concurrent requests, got %d", got)
	}
}

func TestCacheKeyDependsOnModel(t *testing.T) {
	a := NewService(nil, Config{Model: "a"}, nil)
	b := NewService(nil, Config{Model: "b"}, nil)

	if a.cacheKey(sampleConfig) == b.cacheKey(sampleConfig) {
		t.Fatalf("expected cache key to include the model")
	}
	if a.cacheKey(sampleConfig) != a.cacheKey(" "+sampleConfig+"\n") {
		t.Fatalf("expected cache key to ignore insignificant whitespace")
	}
}

func TestOutputSchemaIsStrict(t *testing.T) {
	schema := outputSchema()
	if schema["additionalProperties"] != false {
		t.Fatalf("expected additionalProperties=false at the root")
	}
	required, _ := schema["required"].([]string)
	if len(required) != 3 {
		t.Fatalf("expected all top-level fields to be required, got %v", required)
	}
}
