// Package config loads, validates, and normalizes mangawatch configuration
// from TOML files with environment variable overrides.
package config
