package domain

import "time"

// Config holds the complete Argus configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	AlertStore AlertStoreConfig `json:"alertStore"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Engine policy
	Timeline TimelineConfig `json:"timeline"`
	Alerting AlertConfig    `json:"alerting"`
	Forecast ForecastConfig `json:"forecast"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// TimelineConfig holds the dashboard liveness thresholds.
// Status is active below ActiveWithin, recent below RecentWithin, else inactive.
type TimelineConfig struct {
	ActiveWithin time.Duration `json:"activeWithin"`
	RecentWithin time.Duration `json:"recentWithin"`
}

// AlertConfig holds the inactivity alerting policy.
// These tiers are independent of TimelineConfig.
type AlertConfig struct {
	WarningAfter  time.Duration `json:"warningAfter"`
	CriticalAfter time.Duration `json:"criticalAfter"`
	Window        time.Duration `json:"window"`
	SampleSize    int           `json:"sampleSize"`
	DefaultLimit  int           `json:"defaultLimit"`
}

// ForecastConfig selects the occupancy forecaster.
type ForecastConfig struct {
	// Remote enables request-reply to an ensemble listening on the event bus.
	Remote  bool          `json:"remote"`
	Timeout time.Duration `json:"timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite, an in-memory alert store and channels
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL, Redis and NATS
	TierPro Tier = "pro"
)

// Default policy constants.
const (
	DefaultActiveWithin  = time.Hour
	DefaultRecentWithin  = 24 * time.Hour
	DefaultWarningAfter  = 6 * time.Hour
	DefaultCriticalAfter = 12 * time.Hour
	DefaultAlertWindow   = 24 * time.Hour
	DefaultAlertSample   = 100
	DefaultAlertLimit    = 50
)

// DefaultTimelineConfig returns the standard liveness thresholds.
func DefaultTimelineConfig() TimelineConfig {
	return TimelineConfig{
		ActiveWithin: DefaultActiveWithin,
		RecentWithin: DefaultRecentWithin,
	}
}

// DefaultAlertConfig returns the standard alerting policy.
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		WarningAfter:  DefaultWarningAfter,
		CriticalAfter: DefaultCriticalAfter,
		Window:        DefaultAlertWindow,
		SampleSize:    DefaultAlertSample,
		DefaultLimit:  DefaultAlertLimit,
	}
}

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:       "sqlite",
			SQLitePath:   "./argus.db",
			QueryTimeout: 5 * time.Second,
		},
		AlertStore: AlertStoreConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Timeline: DefaultTimelineConfig(),
		Alerting: DefaultAlertConfig(),
		Forecast: ForecastConfig{
			Remote:  false,
			Timeout: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "argus",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "argus",
		QueryTimeout: 5 * time.Second,
	}
	cfg.AlertStore = AlertStoreConfig{
		Type:      "redis",
		RedisAddr: "localhost:6379",
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Forecast.Remote = true
	cfg.Tracing.Enabled = true
	return cfg
}
