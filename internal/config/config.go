// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger       LoggerConfig       `mapstructure:"logger" yaml:"logger"`
	Database     DatabaseConfig     `mapstructure:"database" yaml:"database"`
	Broker       BrokerConfig       `mapstructure:"broker" yaml:"broker"`
	Agents       AgentsConfig       `mapstructure:"agents" yaml:"agents"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	Watch        WatchConfig        `mapstructure:"watch" yaml:"watch"`
}

// LoggerConfig configures the zap logger bootstrap.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"` // "console" or "json"
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal colors for the console encoder.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig selects and configures the telemetry store backend.
type DatabaseConfig struct {
	// Type is "postgres" or "memory". The memory store is intended for tests
	// and local development.
	Type string `mapstructure:"type" yaml:"type"`
	URL  string `mapstructure:"url" yaml:"url"`
}

// BrokerConfig configures the Kafka producer and consumer.
type BrokerConfig struct {
	Brokers       []string      `mapstructure:"brokers" yaml:"brokers"`
	GroupID       string        `mapstructure:"group_id" yaml:"group_id"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	PollTimeout   time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`
	CommitTimeout time.Duration `mapstructure:"commit_timeout" yaml:"commit_timeout"`
}

// BreakerConfig configures one agent's circuit breaker.
type BreakerConfig struct {
	FailureThreshold uint32        `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout" yaml:"recovery_timeout"`
}

// AgentsConfig carries the per-agent detection thresholds and breaker
// settings. Thresholds default to the values the detectors were tuned with.
type AgentsConfig struct {
	Breaker     BreakerConfig     `mapstructure:"breaker" yaml:"breaker"`
	DataQuality DataQualityConfig `mapstructure:"data_quality" yaml:"data_quality"`
	Calibration CalibrationConfig `mapstructure:"calibration" yaml:"calibration"`
	SyncMonitor SyncMonitorConfig `mapstructure:"sync_monitor" yaml:"sync_monitor"`
	Anomaly     AnomalyConfig     `mapstructure:"anomaly" yaml:"anomaly"`
}

// DataQualityConfig tunes the missing-data, outlier and completeness checks.
type DataQualityConfig struct {
	MissingThreshold float64 `mapstructure:"missing_threshold" yaml:"missing_threshold"`
	OutlierThreshold float64 `mapstructure:"outlier_threshold" yaml:"outlier_threshold"`
	PoorQualityRatio float64 `mapstructure:"poor_quality_ratio" yaml:"poor_quality_ratio"`
}

// CalibrationConfig tunes the drift, consistency and accuracy checks.
type CalibrationConfig struct {
	DriftThreshold       float64 `mapstructure:"drift_threshold" yaml:"drift_threshold"`
	ConsistencyThreshold float64 `mapstructure:"consistency_threshold" yaml:"consistency_threshold"`
	AccuracyThreshold    float64 `mapstructure:"accuracy_threshold" yaml:"accuracy_threshold"`
}

// SyncMonitorConfig tunes the sync freshness and reliability checks.
type SyncMonitorConfig struct {
	PoorQualityRatio float64 `mapstructure:"poor_quality_ratio" yaml:"poor_quality_ratio"`
	// CadenceHours overrides the built-in expected sync cadence per device
	// type, keyed by device type name.
	CadenceHours map[string]float64 `mapstructure:"cadence_hours" yaml:"cadence_hours"`
}

// AnomalyConfig tunes the device anomaly checks.
type AnomalyConfig struct {
	LowBatteryLevel   int     `mapstructure:"low_battery_level" yaml:"low_battery_level"`
	VolumeChangeRatio float64 `mapstructure:"volume_change_ratio" yaml:"volume_change_ratio"`
}

// OrchestratorConfig tunes the fan-out run.
type OrchestratorConfig struct {
	RunTimeout time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
}

// WatchConfig drives the periodic analysis scheduler.
type WatchConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	// Users is the set of user IDs to analyze each cycle.
	Users []string `mapstructure:"users" yaml:"users"`
}

// SetDefaults initializes default values for every configuration parameter.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "sentinel")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Database --
	v.SetDefault("database.type", "memory")
	v.SetDefault("database.url", "")

	// -- Broker --
	v.SetDefault("broker.brokers", []string{"localhost:9092"})
	v.SetDefault("broker.group_id", "sentinel-pipeline")
	v.SetDefault("broker.write_timeout", "10s")
	v.SetDefault("broker.poll_timeout", "1s")
	v.SetDefault("broker.commit_timeout", "5s")

	// -- Agents --
	v.SetDefault("agents.breaker.failure_threshold", 3)
	v.SetDefault("agents.breaker.recovery_timeout", "30s")
	v.SetDefault("agents.data_quality.missing_threshold", 0.10)
	v.SetDefault("agents.data_quality.outlier_threshold", 3.0)
	v.SetDefault("agents.data_quality.poor_quality_ratio", 0.20)
	v.SetDefault("agents.calibration.drift_threshold", 0.05)
	v.SetDefault("agents.calibration.consistency_threshold", 0.10)
	v.SetDefault("agents.calibration.accuracy_threshold", 0.95)
	v.SetDefault("agents.sync_monitor.poor_quality_ratio", 0.20)
	v.SetDefault("agents.anomaly.low_battery_level", 10)
	v.SetDefault("agents.anomaly.volume_change_ratio", 0.50)

	// -- Orchestrator --
	v.SetDefault("orchestrator.run_timeout", "2m")

	// -- Watch --
	v.SetDefault("watch.interval", "15m")
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only, but fail loudly if it does.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required when database.type is postgres")
		}
	default:
		return fmt.Errorf("unknown database.type %q (expected memory or postgres)", c.Database.Type)
	}
	if len(c.Broker.Brokers) == 0 {
		return fmt.Errorf("broker.brokers must not be empty")
	}
	if c.Agents.Breaker.FailureThreshold == 0 {
		return fmt.Errorf("agents.breaker.failure_threshold must be a positive integer")
	}
	if c.Agents.Breaker.RecoveryTimeout <= 0 {
		return fmt.Errorf("agents.breaker.recovery_timeout must be a positive duration")
	}
	if t := c.Agents.Calibration.DriftThreshold; t <= 0 || t >= 1 {
		return fmt.Errorf("agents.calibration.drift_threshold must be in (0, 1)")
	}
	if t := c.Agents.Calibration.AccuracyThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("agents.calibration.accuracy_threshold must be in (0, 1]")
	}
	if c.Agents.DataQuality.OutlierThreshold <= 0 {
		return fmt.Errorf("agents.data_quality.outlier_threshold must be positive")
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be a positive duration")
	}
	return nil
}
