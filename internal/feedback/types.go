package feedback

// Issue severities accepted from the model.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Response is the feedback returned to the client.
type Response struct {
	Summary              string  `json:"summary"`
	Issues               []Issue `json:"issues"`
	ImprovedRenovateJSON string  `json:"improvedRenovateJson"`
}

// Issue is a single finding about the submitted configuration.
type Issue struct {
	Severity   string `json:"severity"`
	JSONPath   string `json:"jsonPath"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

func fallback(summary, original string) Response {
	return Response{
		Summary:              summary,
		Issues:               []Issue{},
		ImprovedRenovateJSON: original,
	}
}
