package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/shopfloor/floorstate/internal/engine"
)

// Config holds typed configuration for the monitor service.
type Config struct {
	LogLevel     string
	HTTPPort     string
	MetricsAddr  string
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers string
	OTelEndpoint string

	// ShiftStartCron marks the start of the production day; "today" in every
	// derived number means "since the last boundary of this schedule".
	ShiftStartCron string
	BatchWindow    time.Duration
	FetchAttempts  int

	StagesInterval      time.Duration
	MachinesInterval    time.Duration
	BottlenecksInterval time.Duration

	CacheEnabled  bool
	AlertsEnabled bool

	CapacityWaitHours float64
	OnCycleRatio      float64
	AtRiskRatio       float64
	SignificanceScore float64
	BatchCountWeight  float64
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:     v.GetString("log_level"),
		HTTPPort:     v.GetString("http_port"),
		MetricsAddr:  v.GetString("metrics_addr"),
		PostgresDSN:  v.GetString("postgres_dsn"),
		RedisAddr:    v.GetString("redis_addr"),
		KafkaBrokers: v.GetString("kafka_brokers"),
		OTelEndpoint: v.GetString("otel_endpoint"),

		ShiftStartCron: v.GetString("shift_start_cron"),
		BatchWindow:    v.GetDuration("batch_window"),
		FetchAttempts:  v.GetInt("fetch_attempts"),

		StagesInterval:      v.GetDuration("stages_interval"),
		MachinesInterval:    v.GetDuration("machines_interval"),
		BottlenecksInterval: v.GetDuration("bottlenecks_interval"),

		CacheEnabled:  v.GetBool("cache_enabled"),
		AlertsEnabled: v.GetBool("alerts_enabled"),

		CapacityWaitHours: v.GetFloat64("capacity_wait_hours"),
		OnCycleRatio:      v.GetFloat64("on_cycle_ratio"),
		AtRiskRatio:       v.GetFloat64("at_risk_ratio"),
		SignificanceScore: v.GetFloat64("significance_score"),
		BatchCountWeight:  v.GetFloat64("batch_count_weight"),
	}
}

// Engine maps the threshold overrides onto the engine config, falling back to
// the stock defaults for anything left unset.
func (c Config) Engine() engine.Config {
	cfg := engine.DefaultConfig()
	if c.CapacityWaitHours > 0 {
		cfg.CapacityWaitHours = c.CapacityWaitHours
	}
	if c.OnCycleRatio > 0 {
		cfg.OnCycleRatio = c.OnCycleRatio
	}
	if c.AtRiskRatio > 0 {
		cfg.AtRiskRatio = c.AtRiskRatio
	}
	if c.SignificanceScore > 0 {
		cfg.SignificanceScore = c.SignificanceScore
	}
	if c.BatchCountWeight > 0 {
		cfg.BatchCountWeight = c.BatchCountWeight
	}
	return cfg
}
