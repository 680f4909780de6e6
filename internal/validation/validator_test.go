package validation

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()

	v, err := NewValidator(zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewValidator returned error: %v", err)
	}
	return v
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	v := newTestValidator(t)

	cfg := `{
		"$schema": "https://docs.renovatebot.com/renovate-schema.json",
		"extends": ["config:recommended"],
		"schedule": ["before 6am on monday"],
		"timezone": "Europe/Berlin",
		"prConcurrentLimit": 5,
		"automerge": true,
		"automergeType": "branch",
		"packageRules": [
			{"matchUpdateTypes": ["minor", "patch"], "groupName": "non-major", "automerge": true}
		],
		"customManagers": []
	}`

	res := v.Validate(cfg)
	if !res.Valid {
		t.Fatalf("expected config to be valid, got %q", res.ErrorMessage)
	}
	if res.ErrorMessage != "" {
		t.Fatalf("expected empty error message, got %q", res.ErrorMessage)
	}
}

func TestValidateAcceptsStringSchedule(t *testing.T) {
	v := newTestValidator(t)

	if res := v.Validate(`{"schedule": "at any time"}`); !res.Valid {
		t.Fatalf("expected string schedule to be valid, got %q", res.ErrorMessage)
	}
}

func TestValidateRejectsInvalidJSON(t *testing.T) {
	v := newTestValidator(t)

	res := v.Validate(`{"extends": [`)
	if res.Valid {
		t.Fatalf("expected invalid JSON to be rejected")
	}
	if !strings.HasPrefix(res.ErrorMessage, "Invalid JSON: ") {
		t.Fatalf("unexpected error message %q", res.ErrorMessage)
	}
}

func TestValidateReportsEveryViolation(t *testing.T) {
	v := newTestValidator(t)

	res := v.Validate(`{"prConcurrentLimit": "ten", "automergeType": "sometimes", "labels": "deps"}`)
	if res.Valid {
		t.Fatalf("expected schema violations")
	}
	if !strings.HasPrefix(res.ErrorMessage, "JSON validation failed:\n- ") {
		t.Fatalf("unexpected error message %q", res.ErrorMessage)
	}
	for _, field := range []string{"/prConcurrentLimit", "/automergeType", "/labels"} {
		if !strings.Contains(res.ErrorMessage, field) {
			t.Fatalf("expected violation for %s in %q", field, res.ErrorMessage)
		}
	}
	if strings.HasSuffix(res.ErrorMessage, "\n") {
		t.Fatalf("expected trailing newline to be trimmed")
	}
}

func TestValidateRejectsNestedViolation(t *testing.T) {
	v := newTestValidator(t)

	res := v.Validate(`{"packageRules": [{"matchUpdateTypes": ["huge"]}]}`)
	if res.Valid {
		t.Fatalf("expected nested violation to be rejected")
	}
	if !strings.Contains(res.ErrorMessage, "/packageRules/0/matchUpdateTypes/0") {
		t.Fatalf("expected nested pointer in %q", res.ErrorMessage)
	}
}

func TestValidateRejectsNonObjectRoot(t *testing.T) {
	v := newTestValidator(t)

	res := v.Validate(`["config:recommended"]`)
	if res.Valid {
		t.Fatalf("expected array root to be rejected")
	}
	if !strings.Contains(res.ErrorMessage, "(root)") {
		t.Fatalf("expected root pointer in %q", res.ErrorMessage)
	}
}

func TestNewValidatorFromSchemaRejectsBrokenSchema(t *testing.T) {
	_, err := NewValidatorFromSchema([]byte("{not json"), zaptest.NewLogger(t))
	if !errors.Is(err, ErrSchemaUnavailable) {
		t.Fatalf("expected ErrSchemaUnavailable, got %v", err)
	}
}
