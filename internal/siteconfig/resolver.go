package siteconfig

import (
	"net/url"
	"strings"
)

// BaseURLEnv is the environment variable that overrides the site base URL.
const BaseURLEnv = "BASE_URL"

const (
	defaultBaseURL    = "/"
	compatibilityDate = "2025-07-15"
	siteTitle         = "Renovate Initializr"
	metaDescription   = "Generate and customize a renovate.json configuration quickly."
	deploymentPreset  = "github-pages"
	devtoolsEnabled   = true
)

var enabledModules = []string{"@nuxtjs/tailwindcss"}

// Resolve builds the effective site configuration from env.
// BASE_URL is used verbatim when set and non-empty, otherwise the base URL is "/".
// Every other field is fixed. A nil env is treated as empty.
func Resolve(env map[string]string) EffectiveConfig {
	baseURL := defaultBaseURL
	if v, ok := env[BaseURLEnv]; ok && v != "" {
		baseURL = v
	}

	modules := make([]string, len(enabledModules))
	copy(modules, enabledModules)

	return EffectiveConfig{
		CompatibilityDate: compatibilityDate,
		BaseURL:           baseURL,
		Title:             siteTitle,
		MetaDescription:   metaDescription,
		ModulesEnabled:    modules,
		DeploymentPreset:  deploymentPreset,
		DevtoolsEnabled:   devtoolsEnabled,
	}
}

// EnvFromList converts KEY=VALUE entries, as returned by os.Environ, into a map.
// Entries without '=' are skipped; later duplicates win.
func EnvFromList(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	return env
}

// MountPath returns the URL path prefix the site is served under.
// The result always starts and ends with '/'.
func (c EffectiveConfig) MountPath() (string, error) {
	raw := strings.TrimSpace(c.BaseURL)
	if raw == "" {
		return defaultBaseURL, nil
	}

	path := raw
	if !strings.HasPrefix(raw, "/") {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return "", ErrInvalidBaseURL
		}
		path = u.Path
	} else if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path, nil
}
