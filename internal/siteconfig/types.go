package siteconfig

// EffectiveConfig is the resolved set of startup parameters for the site.
// It is built once per process by Resolve and passed around by value.
type EffectiveConfig struct {
	CompatibilityDate string
	BaseURL           string
	Title             string
	MetaDescription   string
	ModulesEnabled    []string
	DeploymentPreset  string
	DevtoolsEnabled   bool
}

// Document mirrors the configuration object recognised by the hosting framework.
type Document struct {
	CompatibilityDate string          `json:"compatibilityDate" yaml:"compatibilityDate"`
	Devtools          DevtoolsOptions `json:"devtools" yaml:"devtools"`
	Modules           []string        `json:"modules" yaml:"modules"`
	Nitro             NitroOptions    `json:"nitro" yaml:"nitro"`
	App               AppOptions      `json:"app" yaml:"app"`
}

// DevtoolsOptions toggles the framework devtools.
type DevtoolsOptions struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// NitroOptions selects the hosting adapter.
type NitroOptions struct {
	Preset string `json:"preset" yaml:"preset"`
}

// AppOptions carries the base URL and page head metadata.
type AppOptions struct {
	BaseURL string      `json:"baseURL" yaml:"baseURL"`
	Head    HeadOptions `json:"head" yaml:"head"`
}

// HeadOptions is the default document head.
type HeadOptions struct {
	Title string    `json:"title" yaml:"title"`
	Meta  []MetaTag `json:"meta" yaml:"meta"`
}

// MetaTag is a name/content pair rendered as a <meta> element.
type MetaTag struct {
	Name    string `json:"name" yaml:"name"`
	Content string `json:"content" yaml:"content"`
}
