// Package config loads runtime configuration from multiple sources (YAML files,
// environment variables, CLI flags) with precedence: CLI flags > Environment
// variables > YAML config > Defaults. The site configuration itself is
// resolved by package siteconfig from the process environment.
package config
