package domain

import "time"

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines which backends are wired in
	Tier Tier `json:"tier"`

	// Engine holds the regulatory constants for classification
	Engine EngineConfig `json:"engine"`

	// Agents holds the compliance action agent cutoffs
	Agents AgentConfig `json:"agents"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// EngineConfig carries the regulatory constants the classification engine
// runs with. They are configuration with documented defaults, never
// literals inside the engine.
type EngineConfig struct {
	// WindowYears is the default dormancy lookback window.
	WindowYears float64 `json:"windowYears"`

	// Thresholds are the default notify/freeze/escalate boundaries.
	Thresholds Thresholds `json:"thresholds"`

	// MaxWorkers bounds per-record classification concurrency.
	MaxWorkers int `json:"maxWorkers"`

	// Balance bands for risk categorization, in account currency units.
	// Strictly above HighRiskBalance is HIGH, strictly above
	// MediumRiskBalance is MEDIUM, everything else LOW.
	HighRiskBalance   int64 `json:"highRiskBalance"`
	MediumRiskBalance int64 `json:"mediumRiskBalance"`
}

// AgentConfig carries the cutoff dates used by the freeze and central-bank
// transfer agents.
type AgentConfig struct {
	// FreezeCutoff: dormant accounts with expired KYC and no transaction
	// since this date are frozen.
	FreezeCutoff time.Time `json:"freezeCutoff"`

	// TransferCutoff: accounts with no transaction on or after this date
	// are eligible for central-bank transfer.
	TransferCutoff time.Time `json:"transferCutoff"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
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
	Endpoint    string `json:"endpoint"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite, in-process cache and channel bus
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL, Redis and NATS
	TierPro Tier = "pro"
)

// DefaultConfig returns the default Community tier configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Engine: EngineConfig{
			WindowYears:       3,
			Thresholds:        DefaultThresholds(),
			MaxWorkers:        32,
			HighRiskBalance:   300000,
			MediumRiskBalance: 100000,
		},
		Agents: AgentConfig{
			FreezeCutoff:   time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC),
			TransferCutoff: time.Date(2020, time.April, 24, 0, 0, 0, 0, time.UTC),
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300 * time.Second,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// ProConfig returns a configuration for the Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
