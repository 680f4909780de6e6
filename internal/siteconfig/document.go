package siteconfig

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the encoding used by Encode.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a user supplied name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Document renders the configuration in the framework's shape.
func (c EffectiveConfig) Document() Document {
	modules := make([]string, len(c.ModulesEnabled))
	copy(modules, c.ModulesEnabled)

	return Document{
		CompatibilityDate: c.CompatibilityDate,
		Devtools:          DevtoolsOptions{Enabled: c.DevtoolsEnabled},
		Modules:           modules,
		Nitro:             NitroOptions{Preset: c.DeploymentPreset},
		App: AppOptions{
			BaseURL: c.BaseURL,
			Head: HeadOptions{
				Title: c.Title,
				Meta: []MetaTag{
					{Name: "description", Content: c.MetaDescription},
				},
			},
		},
	}
}

// Encode writes the framework document to w.
func (c EffectiveConfig) Encode(w io.Writer, format Format) error {
	doc := c.Document()

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode JSON: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("flush YAML: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return nil
}
