package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Source contains configuration for the upstream chapter source.
type Source struct {
	BaseURL         string `toml:"base_url"`
	UserAgent       string `toml:"user_agent"`
	RequestTimeout  int    `toml:"request_timeout"`
	MaxChapterList  int    `toml:"max_chapter_list"`
	RequestsPerMin  int    `toml:"requests_per_minute"`
	RequestBurst    int    `toml:"request_burst"`
}

// Scraper contains timing and retry configuration for the orchestrator loop.
type Scraper struct {
	CycleInterval        int `toml:"cycle_interval"`
	TitleDelayMinSeconds int `toml:"title_delay_min_seconds"`
	TitleDelayMaxSeconds int `toml:"title_delay_max_seconds"`
	RetryMaxAttempts     int `toml:"retry_max_attempts"`
	RetryBaseDelayMS     int `toml:"retry_base_delay_ms"`
	RetryMaxDelayMS      int `toml:"retry_max_delay_ms"`
	CooldownSeconds      int `toml:"cooldown_seconds"`
	ShutdownGraceSeconds int `toml:"shutdown_grace_seconds"`
}

// Scheduling contains the cadence-inference thresholds. The confidence
// threshold, ahead factor, and batch threshold were tuned by observation in
// production, not derived, so they stay configurable.
type Scheduling struct {
	MinIntervalHours    int     `toml:"min_interval_hours"`
	MaxIntervalDays     int     `toml:"max_interval_days"`
	DefaultHours        int     `toml:"default_hours"`
	DormantDays         int     `toml:"dormant_days"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	AheadFactor         float64 `toml:"ahead_factor"`
	MissWidenFactor     float64 `toml:"miss_widen_factor"`
}

// Notifications contains notification creation and push delivery settings.
type Notifications struct {
	BatchThreshold int    `toml:"batch_threshold"`
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Relay contains configuration for the notification delivery loop.
type Relay struct {
	PollInterval int `toml:"poll_interval"`
}

// Health contains thresholds for the degraded-state signal computed from the
// scrape log.
type Health struct {
	ErrorRateThreshold float64 `toml:"error_rate_threshold"`
	WindowHours        int     `toml:"window_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for mangawatch.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and admin API bind address
//   - Source: upstream site client settings and politeness limits
//   - Scraper: orchestrator cycle timing, retries, and cooldown
//   - Scheduling: cadence inference thresholds and interval bounds
//   - Notifications: batching threshold and ntfy push delivery
//   - Relay: delivery loop poll interval
//   - Health: error-rate threshold for the degraded signal
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Source        Source        `toml:"source"`
	Scraper       Scraper       `toml:"scraper"`
	Scheduling    Scheduling    `toml:"scheduling"`
	Notifications Notifications `toml:"notifications"`
	Relay         Relay         `toml:"relay"`
	Health        Health        `toml:"health"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mangawatch/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// ExpandPath resolves ~ and relative segments to an absolute path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the embedded sample configuration to the given path.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. The second return value is the
// resolved path and the third reports whether a file existed there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	if env := strings.TrimSpace(os.Getenv("MANGAWATCH_CONFIG")); env != "" {
		return resolveConfigPath(env)
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mangawatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the SQLite database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "mangawatch.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
