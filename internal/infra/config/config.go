package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Slack     SlackSettings     `mapstructure:"slack"`
	Scheduler SchedulerSettings `mapstructure:"scheduler"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the Redis connection and key prefixes.
type RedisSettings struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	DB             int    `mapstructure:"db"`
	Password       string `mapstructure:"password"`
	TLSEnabled     bool   `mapstructure:"tls_enabled"`
	SchedulePrefix string `mapstructure:"schedule_prefix"`
	GuardPrefix    string `mapstructure:"guard_prefix"`
}

// KafkaSettings configures the Kafka producer.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// SlackSettings configures the chat transport.
type SlackSettings struct {
	BotToken string `mapstructure:"bot_token"`
}

// SchedulerSettings configures timer policies: the daily health check anchor,
// escalation delivery hour, lock TTLs, and the dedup cool-down window.
type SchedulerSettings struct {
	HealthCheckHour     int           `mapstructure:"health_check_hour"`
	ReferenceUTCOffset  int           `mapstructure:"reference_utc_offset"`
	MissedDayHour       int           `mapstructure:"missed_day_hour"`
	NotificationLockTTL time.Duration `mapstructure:"notification_lock_ttl"`
	DedupWindow         time.Duration `mapstructure:"dedup_window"`
	SweepLockTTL        time.Duration `mapstructure:"sweep_lock_ttl"`
	FireTimeout         time.Duration `mapstructure:"fire_timeout"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("BOT")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.schedule_prefix",
		"redis.guard_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"slack.bot_token",
		"scheduler.health_check_hour",
		"scheduler.reference_utc_offset",
		"scheduler.missed_day_hour",
		"scheduler.notification_lock_ttl",
		"scheduler.dedup_window",
		"scheduler.sweep_lock_ttl",
		"scheduler.fire_timeout",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "motivation-bot")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "bot")
	v.SetDefault("postgres.password", "bot_password")
	v.SetDefault("postgres.database", "bot")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.schedule_prefix", "bot:schedule")
	v.SetDefault("redis.guard_prefix", "bot")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "bot")
	v.SetDefault("kafka.async", true)

	v.SetDefault("slack.bot_token", "")

	// The sweep runs at 04:00 in the operator reference timezone (UTC+3),
	// before any user's morning reminder slot.
	v.SetDefault("scheduler.health_check_hour", 4)
	v.SetDefault("scheduler.reference_utc_offset", 3)
	v.SetDefault("scheduler.missed_day_hour", 20)
	v.SetDefault("scheduler.notification_lock_ttl", "5m")
	v.SetDefault("scheduler.dedup_window", "1h")
	v.SetDefault("scheduler.sweep_lock_ttl", "1h")
	v.SetDefault("scheduler.fire_timeout", "30s")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "BOT_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
