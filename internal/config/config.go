package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/renovate-initializr/internal/siteconfig"
)

const (
	defaultPort            = "8080"
	defaultRateLimitRPS    = 5.0
	defaultRateLimitBurst  = 10
	defaultLogLevel        = "info"
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultOpenAIModel     = "gpt-5-mini"
	defaultMaxOutputTokens = 800
	defaultReasoningEffort = "minimal"
	defaultCacheSize       = 256
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > Environment variables > YAML config > Defaults
type Config struct {
	Port                 string        `yaml:"port"`
	ShutdownGracePeriod  time.Duration `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    time.Duration `yaml:"read_header_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	IdleTimeout          time.Duration `yaml:"idle_timeout"`
	EnableRequestLogging bool          `yaml:"enable_request_logging"`
	RateLimitRPS         float64       `yaml:"-"`
	RateLimitBurst       int           `yaml:"-"`
	LogLevel             string        `yaml:"log_level"`
	StaticDir            string        `yaml:"static_dir"`

	Site   siteconfig.EffectiveConfig `yaml:"-"`
	OpenAI OpenAIConfig               `yaml:"-"`
	Cache  CacheConfig                `yaml:"-"`
}

// OpenAIConfig configures the feedback model provider.
type OpenAIConfig struct {
	APIKey          string        `split_words:"true"`
	BaseURL         string        `split_words:"true"`
	Model           string        `split_words:"true"`
	MaxOutputTokens int64         `split_words:"true"`
	Timeout         time.Duration `split_words:"true"`
	ReasoningEffort string        `split_words:"true"`
}

// CacheConfig configures the feedback cache. A Redis address takes precedence
// over the in-memory store; size 0 without Redis disables caching.
type CacheConfig struct {
	Size          int           `split_words:"true"`
	TTL           time.Duration `split_words:"true"`
	RedisAddr     string        `split_words:"true"`
	RedisPassword string        `split_words:"true"`
	RedisDB       int           `split_words:"true"`
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
	LogLevel             string        `yaml:"log_level"`
	StaticDir            string        `yaml:"static_dir"`
	OpenAI               yamlOpenAI    `yaml:"openai"`
	Cache                yamlCache     `yaml:"cache"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

type yamlOpenAI struct {
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url"`
	Model           string  `yaml:"model"`
	MaxOutputTokens int64   `yaml:"max_output_tokens"`
	Timeout         string  `yaml:"timeout"`
	ReasoningEffort *string `yaml:"reasoning_effort"`
}

type yamlCache struct {
	Size          *int   `yaml:"size"`
	TTL           string `yaml:"ttl"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	BaseURL        *string
	StaticDir      *string
	LogLevel       *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > Environment variables > YAML config > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Load from YAML file if specified
	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		applyYAMLConfig(&cfg, yamlCfg)
	}

	// Apply environment variables (override YAML)
	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	// Apply CLI overrides (highest precedence)
	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	cfg.Site = ResolveSite(os.Environ(), overrides)

	// Validate final configuration
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ResolveSite resolves the site configuration from environ, letting a
// --base-url override stand in for BASE_URL.
func ResolveSite(environ []string, overrides *CLIOverrides) siteconfig.EffectiveConfig {
	env := siteconfig.EnvFromList(environ)
	if overrides != nil && overrides.BaseURL != nil && *overrides.BaseURL != "" {
		env[siteconfig.BaseURLEnv] = *overrides.BaseURL
	}
	return siteconfig.Resolve(env)
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         90 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		LogLevel:             defaultLogLevel,
		Site:                 siteconfig.Resolve(nil),
		OpenAI: OpenAIConfig{
			BaseURL:         defaultOpenAIBaseURL,
			Model:           defaultOpenAIModel,
			MaxOutputTokens: defaultMaxOutputTokens,
			Timeout:         60 * time.Second,
			ReasoningEffort: defaultReasoningEffort,
		},
		Cache: CacheConfig{
			Size: defaultCacheSize,
			TTL:  time.Hour,
		},
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}

	applyDuration(&cfg.ShutdownGracePeriod, yamlCfg.ShutdownGracePeriod)
	applyDuration(&cfg.ReadHeaderTimeout, yamlCfg.ReadHeaderTimeout)
	applyDuration(&cfg.WriteTimeout, yamlCfg.WriteTimeout)
	applyDuration(&cfg.IdleTimeout, yamlCfg.IdleTimeout)

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}

	if yamlCfg.RateLimit.RPS != nil && *yamlCfg.RateLimit.RPS >= 0 {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}

	if yamlCfg.RateLimit.Burst != nil && *yamlCfg.RateLimit.Burst >= 0 {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}

	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}

	if yamlCfg.StaticDir != "" {
		cfg.StaticDir = yamlCfg.StaticDir
	}

	ai := yamlCfg.OpenAI
	if ai.APIKey != "" {
		cfg.OpenAI.APIKey = ai.APIKey
	}
	if ai.BaseURL != "" {
		cfg.OpenAI.BaseURL = ai.BaseURL
	}
	if ai.Model != "" {
		cfg.OpenAI.Model = ai.Model
	}
	if ai.MaxOutputTokens > 0 {
		cfg.OpenAI.MaxOutputTokens = ai.MaxOutputTokens
	}
	applyDuration(&cfg.OpenAI.Timeout, ai.Timeout)
	if ai.ReasoningEffort != nil {
		cfg.OpenAI.ReasoningEffort = *ai.ReasoningEffort
	}

	cache := yamlCfg.Cache
	if cache.Size != nil {
		cfg.Cache.Size = *cache.Size
	}
	applyDuration(&cfg.Cache.TTL, cache.TTL)
	if cache.RedisAddr != "" {
		cfg.Cache.RedisAddr = cache.RedisAddr
	}
	if cache.RedisPassword != "" {
		cfg.Cache.RedisPassword = cache.RedisPassword
	}
	if cache.RedisDB != 0 {
		cfg.Cache.RedisDB = cache.RedisDB
	}
}

func applyDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
	}
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if rps := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	if dir := strings.TrimSpace(os.Getenv("STATIC_DIR")); dir != "" {
		cfg.StaticDir = dir
	}

	if err := envconfig.Process("openai", &cfg.OpenAI); err != nil {
		return fmt.Errorf("read OPENAI_* environment: %w", err)
	}
	if err := envconfig.Process("feedback_cache", &cfg.Cache); err != nil {
		return fmt.Errorf("read FEEDBACK_CACHE_* environment: %w", err)
	}
	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.StaticDir != nil && *overrides.StaticDir != "" {
		cfg.StaticDir = *overrides.StaticDir
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.OpenAI.MaxOutputTokens <= 0 {
		return fmt.Errorf("OPENAI_MAX_OUTPUT_TOKENS must be > 0")
	}
	if cfg.Cache.Size < 0 {
		return fmt.Errorf("FEEDBACK_CACHE_SIZE must be >= 0")
	}
	if _, err := cfg.Site.MountPath(); err != nil {
		return fmt.Errorf("invalid BASE_URL %q: %w", cfg.Site.BaseURL, err)
	}
	return nil
}
