package testsupport

import (
	"path/filepath"
	"testing"

	"mangawatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Source.BaseURL = "https://source.test"
	// Keep scheduled politeness delays out of unit tests.
	cfg.Scraper.TitleDelayMinSeconds = 0
	cfg.Scraper.TitleDelayMaxSeconds = 0

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithSourceURL overrides the upstream base URL on the test config.
func WithSourceURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Source.BaseURL = url
	}
}

// WithNtfyTopic enables push delivery against the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Notifications.NtfyTopic = topic
	}
}
