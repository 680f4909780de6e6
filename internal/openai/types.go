package openai

import "strings"

// Response statuses reported by the Responses API.
const (
	StatusCompleted  = "completed"
	StatusIncomplete = "incomplete"
	StatusFailed     = "failed"
	StatusInProgress = "in_progress"
)

// ReasonContentFilter marks a response cut short by the content filter.
const ReasonContentFilter = "content_filter"

// ResponseRequest is the body of POST /responses.
type ResponseRequest struct {
	Model           string      `json:"model"`
	Input           string      `json:"input"`
	Instructions    string      `json:"instructions,omitempty"`
	MaxOutputTokens int64       `json:"max_output_tokens,omitempty"`
	Reasoning       *Reasoning  `json:"reasoning,omitempty"`
	Text            *TextConfig `json:"text,omitempty"`
}

// Reasoning controls the reasoning budget of reasoning models.
type Reasoning struct {
	Effort string `json:"effort"`
}

// TextConfig configures the text output format.
type TextConfig struct {
	Format TextFormat `json:"format"`
}

// TextFormat requests structured output matching Schema.
type TextFormat struct {
	Type   string         `json:"type"`
	Name   string         `json:"name,omitempty"`
	Schema map[string]any `json:"schema,omitempty"`
	Strict bool           `json:"strict,omitempty"`
}

// JSONSchemaFormat builds a strict json_schema TextConfig.
func JSONSchemaFormat(name string, schema map[string]any) *TextConfig {
	return &TextConfig{Format: TextFormat{
		Type:   "json_schema",
		Name:   name,
		Schema: schema,
		Strict: true,
	}}
}

// Response is the subset of the Responses API object the service relies on.
type Response struct {
	ID                string             `json:"id"`
	Model             string             `json:"model"`
	Status            string             `json:"status"`
	Error             *ResponseError     `json:"error,omitempty"`
	IncompleteDetails *IncompleteDetails `json:"incomplete_details,omitempty"`
	Output            []OutputItem       `json:"output"`
}

// ResponseError describes a model-side failure.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// IncompleteDetails explains why a response stopped early.
type IncompleteDetails struct {
	Reason string `json:"reason"`
}

// OutputItem is one entry of the response output list.
type OutputItem struct {
	ID      string        `json:"id,omitempty"`
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
}

// ContentPart is either an output_text or a refusal part of a message.
type ContentPart struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Refusal string `json:"refusal,omitempty"`
}

// OutputText returns the first output_text part across message items.
func (r *Response) OutputText() (string, bool) {
	for _, item := range r.messages() {
		for _, part := range item.Content {
			if part.Type == "output_text" {
				return part.Text, true
			}
		}
	}
	return "", false
}

// Refused reports whether any message part is a refusal.
func (r *Response) Refused() bool {
	for _, item := range r.messages() {
		for _, part := range item.Content {
			if part.Type == "refusal" || part.Refusal != "" {
				return true
			}
		}
	}
	return false
}

// IncompleteReason returns the lower-cased incomplete reason, or "unknown".
func (r *Response) IncompleteReason() string {
	if r.IncompleteDetails == nil || strings.TrimSpace(r.IncompleteDetails.Reason) == "" {
		return "unknown"
	}
	return strings.ToLower(r.IncompleteDetails.Reason)
}

func (r *Response) messages() []OutputItem {
	if r == nil {
		return nil
	}
	out := make([]OutputItem, 0, len(r.Output))
	for _, item := range r.Output {
		if item.Type == "message" {
			out = append(out, item)
		}
	}
	return out
}
