package config

import (
	"os"
	"strings"
)

// normalize expands path fields and applies environment overrides.
func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	if token := strings.TrimSpace(os.Getenv("MANGAWATCH_API_TOKEN")); token != "" {
		c.Paths.APIToken = token
	}
	if topic := strings.TrimSpace(os.Getenv("MANGAWATCH_NTFY_TOPIC")); topic != "" {
		c.Notifications.NtfyTopic = topic
	}
	if base := strings.TrimSpace(os.Getenv("MANGAWATCH_SOURCE_URL")); base != "" {
		c.Source.BaseURL = base
	}

	c.Source.BaseURL = strings.TrimRight(strings.TrimSpace(c.Source.BaseURL), "/")
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)

	if c.Scraper.TitleDelayMaxSeconds < c.Scraper.TitleDelayMinSeconds {
		c.Scraper.TitleDelayMaxSeconds = c.Scraper.TitleDelayMinSeconds
	}
	return nil
}
