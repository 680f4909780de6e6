package feedback

import "strings"

const instructions = "Return a JSON object with fields: summary (string), issues (array of " +
	"{severity: info|warning|error, jsonPath: string, message: string, suggestion: string}), " +
	"improvedRenovateJson (string). No extra commentary. Limit issues to at most 8 items. " +
	"Keep summary to 1-2 sentences."

const schemaName = "renovate_feedback"

func buildPrompt(renovateJSON string) string {
	return strings.Join([]string{
		"You are an expert on Renovate configuration and best practices.",
		"Analyze the provided Renovate JSON config and produce:",
		"- A short summary of the configuration and its quality.",
		"- A list of concrete issues with fields: severity (info|warning|error), jsonPath, message, suggestion.",
		"- An improvedRenovateJson containing a corrected/optimized config (valid JSON).",
		"Respond strictly as a JSON object matching the specified fields. Do not include any extra text.",
		"",
		"Renovate JSON:",
		renovateJSON,
	}, "\n")
}

// outputSchema is the strict json_schema sent as the structured output format.
func outputSchema() map[string]any {
	str := map[string]any{"type": "string"}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"summary", "issues", "improvedRenovateJson"},
		"properties": map[string]any{
			"summary": str,
			"issues": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"severity", "jsonPath", "message", "suggestion"},
					"properties": map[string]any{
						"severity": map[string]any{
							"type": "string",
							"enum": []string{SeverityInfo, SeverityWarning, SeverityError},
						},
						"jsonPath":   str,
						"message":    str,
						"suggestion": str,
					},
				},
			},
			"improvedRenovateJson": str,
		},
	}
}
