package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateScraper(); err != nil {
		return err
	}
	if err := c.validateScheduling(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateRelay(); err != nil {
		return err
	}
	if err := c.validateHealth(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSource() error {
	if c.Source.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/mangawatch/config.toml"
		}
		return fmt.Errorf("source.base_url is required. Set MANGAWATCH_SOURCE_URL env var or edit %s (create with 'mangawatch config init')", defaultPath)
	}
	if c.Source.RequestTimeout <= 0 {
		return errors.New("source.request_timeout must be positive")
	}
	if c.Source.MaxChapterList <= 0 {
		return errors.New("source.max_chapter_list must be positive")
	}
	if c.Source.RequestsPerMin <= 0 {
		return errors.New("source.requests_per_minute must be positive")
	}
	return nil
}

func (c *Config) validateScraper() error {
	if c.Scraper.CycleInterval <= 0 {
		return errors.New("scraper.cycle_interval must be positive")
	}
	if c.Scraper.TitleDelayMinSeconds < 0 {
		return errors.New("scraper.title_delay_min_seconds must not be negative")
	}
	if c.Scraper.RetryMaxAttempts < 1 {
		return errors.New("scraper.retry_max_attempts must be at least 1")
	}
	if c.Scraper.CooldownSeconds < 0 {
		return errors.New("scraper.cooldown_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateScheduling() error {
	if c.Scheduling.MinIntervalHours <= 0 {
		return errors.New("scheduling.min_interval_hours must be positive")
	}
	if c.Scheduling.MaxIntervalDays*24 <= c.Scheduling.MinIntervalHours {
		return errors.New("scheduling.max_interval_days must exceed the minimum interval")
	}
	if c.Scheduling.ConfidenceThreshold < 0 || c.Scheduling.ConfidenceThreshold > 1 {
		return errors.New("scheduling.confidence_threshold must be between 0 and 1")
	}
	if c.Scheduling.AheadFactor <= 0 || c.Scheduling.AheadFactor > 1 {
		return errors.New("scheduling.ahead_factor must be in (0, 1]")
	}
	if c.Scheduling.MissWidenFactor < 1 {
		return errors.New("scheduling.miss_widen_factor must be at least 1")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.BatchThreshold < 1 {
		return errors.New("notifications.batch_threshold must be at least 1")
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateRelay() error {
	if c.Relay.PollInterval <= 0 {
		return errors.New("relay.poll_interval must be positive")
	}
	return nil
}

func (c *Config) validateHealth() error {
	if c.Health.ErrorRateThreshold < 0 || c.Health.ErrorRateThreshold > 1 {
		return errors.New("health.error_rate_threshold must be between 0 and 1")
	}
	if c.Health.WindowHours <= 0 {
		return errors.New("health.window_hours must be positive")
	}
	return nil
}
