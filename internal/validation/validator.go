package validation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"
)

//go:embed renovate-schema.json
var renovateSchema []byte

// Validator checks Renovate configuration documents against the bundled schema.
type Validator struct {
	schema *openapi3.Schema
	logger *zap.Logger
}

// NewValidator loads the bundled Renovate schema.
func NewValidator(logger *zap.Logger) (*Validator, error) {
	return NewValidatorFromSchema(renovateSchema, logger)
}

// NewValidatorFromSchema builds a Validator from a raw JSON schema document.
func NewValidatorFromSchema(raw []byte, logger *zap.Logger) (*Validator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var schema openapi3.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		logger.Error("failed to load Renovate JSON schema", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrSchemaUnavailable, err)
	}

	logger.Info("renovate JSON schema loaded")
	return &Validator{schema: &schema, logger: logger}, nil
}

// Validate parses raw as JSON and checks it against the schema.
func (v *Validator) Validate(raw string) Result {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		v.logger.Debug("renovate config is not valid JSON", zap.Error(err))
		return Failure("Invalid JSON: " + err.Error())
	}

	if err := v.schema.VisitJSON(doc, openapi3.MultiErrors()); err != nil {
		return Failure(formatViolations(violations(err)))
	}
	return Success()
}

func violations(err error) []string {
	switch e := err.(type) {
	case openapi3.MultiError:
		var out []string
		for _, inner := range e {
			out = append(out, violations(inner)...)
		}
		return out
	case *openapi3.SchemaError:
		return []string{pointer(e.JSONPointer()) + ": " + e.Reason}
	default:
		return []string{err.Error()}
	}
}

func pointer(path []string) string {
	if len(path) == 0 {
		return "(root)"
	}
	return "/" + strings.Join(path, "/")
}

func formatViolations(lines []string) string {
	sort.Strings(lines)

	var sb strings.Builder
	sb.WriteString("JSON validation failed:\n")
	for _, line := range lines {
		sb.WriteString("- ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}
