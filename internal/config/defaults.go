package config

const (
	defaultDataDir         = "~/.local/share/mangawatch"
	defaultLogDir          = "~/.local/share/mangawatch/logs"
	defaultAPIBind         = "127.0.0.1:7512"
	defaultSourceUserAgent = "mangawatch/0.1"

	defaultRequestTimeout = 30
	defaultMaxChapterList = 1000
	defaultRequestsPerMin = 10
	defaultRequestBurst   = 2

	defaultCycleInterval        = 300
	defaultTitleDelayMinSeconds = 4
	defaultTitleDelayMaxSeconds = 7
	defaultRetryMaxAttempts     = 4
	defaultRetryBaseDelayMS     = 2000
	defaultRetryMaxDelayMS      = 60000
	defaultCooldownSeconds      = 300
	defaultShutdownGraceSeconds = 30

	defaultMinIntervalHours    = 6
	defaultMaxIntervalDays     = 14
	defaultSchedulingHours     = 24
	defaultDormantDays         = 30
	defaultConfidenceThreshold = 0.6
	defaultAheadFactor         = 0.8
	defaultMissWidenFactor     = 1.5

	defaultBatchThreshold     = 3
	defaultNtfyRequestTimeout = 10
	defaultRelayPollInterval  = 60
	defaultErrorRateThreshold = 0.10
	defaultHealthWindowHours  = 24

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Source: Source{
			UserAgent:      defaultSourceUserAgent,
			RequestTimeout: defaultRequestTimeout,
			MaxChapterList: defaultMaxChapterList,
			RequestsPerMin: defaultRequestsPerMin,
			RequestBurst:   defaultRequestBurst,
		},
		Scraper: Scraper{
			CycleInterval:        defaultCycleInterval,
			TitleDelayMinSeconds: defaultTitleDelayMinSeconds,
			TitleDelayMaxSeconds: defaultTitleDelayMaxSeconds,
			RetryMaxAttempts:     defaultRetryMaxAttempts,
			RetryBaseDelayMS:     defaultRetryBaseDelayMS,
			RetryMaxDelayMS:      defaultRetryMaxDelayMS,
			CooldownSeconds:      defaultCooldownSeconds,
			ShutdownGraceSeconds: defaultShutdownGraceSeconds,
		},
		Scheduling: Scheduling{
			MinIntervalHours:    defaultMinIntervalHours,
			MaxIntervalDays:     defaultMaxIntervalDays,
			DefaultHours:        defaultSchedulingHours,
			DormantDays:         defaultDormantDays,
			ConfidenceThreshold: defaultConfidenceThreshold,
			AheadFactor:         defaultAheadFactor,
			MissWidenFactor:     defaultMissWidenFactor,
		},
		Notifications: Notifications{
			BatchThreshold: defaultBatchThreshold,
			RequestTimeout: defaultNtfyRequestTimeout,
		},
		Relay: Relay{
			PollInterval: defaultRelayPollInterval,
		},
		Health: Health{
			ErrorRateThreshold: defaultErrorRateThreshold,
			WindowHours:        defaultHealthWindowHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
