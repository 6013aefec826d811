package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

type Config struct {
	Region    string          `mapstructure:"region"`
	LogDir    string          `mapstructure:"log_dir"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	AutoHeal  AutoHealConfig  `mapstructure:"auto_heal"`
	Watchdog  WatchdogConfig  `mapstructure:"watchdog"`
	Aggregate AggregateConfig `mapstructure:"aggregate"`
	API       APIConfig       `mapstructure:"api"`
	Alert     AlertConfig     `mapstructure:"alert"`
}

type DatabaseConfig struct {
	// URL is a postgres DSN. Empty means in-memory stores (local runs only).
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type QueueConfig struct {
	Stream     string        `mapstructure:"stream"`
	ClaimBatch int           `mapstructure:"claim_batch"`
	ClaimBlock time.Duration `mapstructure:"claim_block"`
}

type PublisherConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type ProbeConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
}

type AutoHealConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	MinIdle  time.Duration `mapstructure:"min_idle"`
	MaxBatch int           `mapstructure:"max_batch"`
	MaxTotal int           `mapstructure:"max_total"`
}

type WatchdogConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	CriticalIdle time.Duration `mapstructure:"critical_idle"`
	WriteStall   time.Duration `mapstructure:"write_stall"`
	LogCooldown  time.Duration `mapstructure:"log_cooldown"`
}

type AggregateConfig struct {
	SlotCount    int           `mapstructure:"slot_count"`
	SlotInterval time.Duration `mapstructure:"slot_interval"`
	DayWindow    int           `mapstructure:"day_window"`
	Timezone     string        `mapstructure:"timezone"`
}

type APIConfig struct {
	Addr string `mapstructure:"addr"`
}

type AlertConfig struct {
	SlackWebhook    string        `mapstructure:"slack_webhook"`
	Cooldown        time.Duration `mapstructure:"cooldown"`
	AlertOnRecovery bool          `mapstructure:"alert_on_recovery"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	v.AddConfigPath(".")
	v.SetEnvPrefix("STATUSPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// env + defaults only
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("region", "")
	v.SetDefault("log_dir", "logs")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("queue.stream", "statuspulse:checks")
	v.SetDefault("queue.claim_batch", 50)
	v.SetDefault("queue.claim_block", "5s")

	v.SetDefault("publisher.interval", "1m")

	v.SetDefault("probe.timeout", "10s")
	v.SetDefault("probe.concurrency", 10)

	// Operationally chosen thresholds; tune via config, no SLA is implied.
	v.SetDefault("auto_heal.interval", "45s")
	v.SetDefault("auto_heal.min_idle", "120s")
	v.SetDefault("auto_heal.max_batch", 25)
	v.SetDefault("auto_heal.max_total", 100)

	v.SetDefault("watchdog.interval", "30s")
	v.SetDefault("watchdog.critical_idle", "10m")
	v.SetDefault("watchdog.write_stall", "5m")
	v.SetDefault("watchdog.log_cooldown", "5m")

	v.SetDefault("aggregate.slot_count", 30)
	v.SetDefault("aggregate.slot_interval", "3m")
	v.SetDefault("aggregate.day_window", 30)
	v.SetDefault("aggregate.timezone", "Europe/Berlin")

	v.SetDefault("api.addr", ":8080")

	v.SetDefault("alert.slack_webhook", "")
	v.SetDefault("alert.cooldown", "15m")
	v.SetDefault("alert.alert_on_recovery", true)
	v.SetDefault("alert.poll_interval", "1m")
}

// Validate is fatal-at-startup territory: a process must not run
// half-configured with a missing region or an unresolvable timezone.
func (c *Config) Validate() error {
	if c.Region == "" {
		return errors.New("region is required (consumer group identity)")
	}
	if c.Redis.Addr == "" {
		return errors.New("redis address is required")
	}
	if c.Queue.Stream == "" {
		return errors.New("queue stream name is required")
	}
	if c.Queue.ClaimBatch < 1 {
		return fmt.Errorf("queue claim_batch must be >= 1, got %d", c.Queue.ClaimBatch)
	}
	if c.Probe.Concurrency < 1 {
		return fmt.Errorf("probe concurrency must be >= 1, got %d", c.Probe.Concurrency)
	}
	if c.Publisher.Interval <= 0 {
		return fmt.Errorf("publisher interval must be positive, got %v", c.Publisher.Interval)
	}
	if c.AutoHeal.MinIdle <= 0 {
		return fmt.Errorf("auto_heal min_idle must be positive, got %v", c.AutoHeal.MinIdle)
	}
	if c.Aggregate.SlotCount < 1 || c.Aggregate.DayWindow < 1 {
		return errors.New("aggregate slot_count and day_window must be >= 1")
	}
	if _, err := time.LoadLocation(c.Aggregate.Timezone); err != nil {
		return fmt.Errorf("aggregate timezone %q: %w", c.Aggregate.Timezone, err)
	}
	return nil
}

// GetRedisOptions returns client options for the configured Redis instance.
func (r *RedisConfig) GetRedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
	}
}

// Location resolves the reporting timezone. Validate has already checked it.
func (a *AggregateConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
