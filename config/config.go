package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/d60-Lab/engagement-service/internal/model"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Trending  TrendingConfig  `mapstructure:"trending"`
	Signup    SignupConfig    `mapstructure:"signup"`
}

type ServerConfig struct {
	Port           int     `mapstructure:"port" validate:"required,min=1,max=65535"`
	Mode           string  `mapstructure:"mode" validate:"oneof=debug release test"`
	JWTSecret      string  `mapstructure:"jwt_secret" validate:"required"`
	ServiceKeyHash string  `mapstructure:"service_key_hash" validate:"required"`
	IPRate         float64 `mapstructure:"ip_rate" validate:"gt=0"`
	IPBurst        int     `mapstructure:"ip_burst" validate:"min=1"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	DSN             string        `mapstructure:"dsn" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level" validate:"oneof=silent error warn info"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type SentryConfig struct {
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name" validate:"required"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"min=0,max=1"`
}

// PolicyConfig 单个行为的配额：window 秒内最多 limit 次
type PolicyConfig struct {
	Limit  int `mapstructure:"limit" validate:"min=1"`
	Window int `mapstructure:"window" validate:"min=1"`
}

// BypassConfig 某角色对某行为免除配额
type BypassConfig struct {
	Role   string `mapstructure:"role" validate:"oneof=normal admin"`
	Action string `mapstructure:"action" validate:"required"`
}

type RateLimitConfig struct {
	Store         string                  `mapstructure:"store" validate:"oneof=database redis"`
	Strict        bool                    `mapstructure:"strict"`
	Policies      map[string]PolicyConfig `mapstructure:"policies" validate:"required,min=1,dive"`
	Bypass        []BypassConfig          `mapstructure:"bypass" validate:"dive"`
	RoleCacheTTL  time.Duration           `mapstructure:"role_cache_ttl"`
	RoleCacheSize int                     `mapstructure:"role_cache_size" validate:"min=1"`
	Retention     time.Duration           `mapstructure:"retention" validate:"gt=0"`
	PurgeInterval time.Duration           `mapstructure:"purge_interval" validate:"gt=0"`
	PurgeMinGap   time.Duration           `mapstructure:"purge_min_gap"`
}

type TrendingConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Interval      time.Duration `mapstructure:"interval" validate:"gt=0"`
	RunTimeout    time.Duration `mapstructure:"run_timeout" validate:"gt=0"`
	Lookback      time.Duration `mapstructure:"lookback" validate:"gt=0"`
	TopN          int           `mapstructure:"top_n" validate:"min=1"`
	LikeWeight    float64       `mapstructure:"like_weight"`
	CommentWeight float64       `mapstructure:"comment_weight"`
	ShareWeight   float64       `mapstructure:"share_weight"`
	ViewWeight    float64       `mapstructure:"view_weight"`
	DecayExponent float64       `mapstructure:"decay_exponent"`
	DecayOffset   float64       `mapstructure:"decay_offset" validate:"gt=0"`
	Concurrency   int           `mapstructure:"concurrency" validate:"min=1"`
	FeedCacheTTL  time.Duration `mapstructure:"feed_cache_ttl"`
}

type SignupConfig struct {
	AllowedDomains    []string      `mapstructure:"allowed_domains" validate:"required,min=1"`
	DisposableDomains []string      `mapstructure:"disposable_domains"`
	MaxAttempts       int           `mapstructure:"max_attempts" validate:"min=1"`
	AttemptWindow     time.Duration `mapstructure:"attempt_window" validate:"gt=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.service_key_hash", "")
	v.SetDefault("server.ip_rate", 20.0)
	v.SetDefault("server.ip_burst", 40)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=engagement port=5432 sslmode=disable")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.service_name", "engagement-service")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("rate_limit.store", "database")
	v.SetDefault("rate_limit.strict", false)
	v.SetDefault("rate_limit.policies", map[string]any{
		"comment": map[string]any{"limit": 10, "window": 60},
		"like":    map[string]any{"limit": 30, "window": 60},
		"post":    map[string]any{"limit": 5, "window": 3600},
		"search":  map[string]any{"limit": 60, "window": 60},
		"report":  map[string]any{"limit": 5, "window": 3600},
		"pin":     map[string]any{"limit": 3, "window": 2592000},
	})
	v.SetDefault("rate_limit.bypass", []map[string]any{
		{"role": "admin", "action": "post"},
	})
	v.SetDefault("rate_limit.role_cache_ttl", 30*time.Second)
	v.SetDefault("rate_limit.role_cache_size", 10000)
	v.SetDefault("rate_limit.retention", 24*time.Hour)
	v.SetDefault("rate_limit.purge_interval", 10*time.Minute)
	v.SetDefault("rate_limit.purge_min_gap", time.Minute)

	v.SetDefault("trending.enabled", true)
	v.SetDefault("trending.interval", 5*time.Minute)
	v.SetDefault("trending.run_timeout", 2*time.Minute)
	v.SetDefault("trending.lookback", 7*24*time.Hour)
	v.SetDefault("trending.top_n", 10)
	v.SetDefault("trending.like_weight", 1.0)
	v.SetDefault("trending.comment_weight", 2.0)
	v.SetDefault("trending.share_weight", 3.0)
	v.SetDefault("trending.view_weight", 0.1)
	v.SetDefault("trending.decay_exponent", -1.5)
	v.SetDefault("trending.decay_offset", 2.0)
	v.SetDefault("trending.concurrency", 8)
	v.SetDefault("trending.feed_cache_ttl", time.Minute)

	v.SetDefault("signup.allowed_domains", []string{"gmail.com"})
	v.SetDefault("signup.disposable_domains", []string{"tempmail.com", "guerrillamail.com", "10minutemail.com", "throwaway.email"})
	v.SetDefault("signup.max_attempts", 5)
	v.SetDefault("signup.attempt_window", time.Hour)
}

// Load 从默认位置加载配置（./config.yaml 或 ./config/config.yaml），环境变量 APP_* 覆盖
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom 从指定文件加载配置；path 为空时按默认位置查找，找不到文件时只使用默认值与环境变量
func LoadFrom(path string) (*Config, error) {
	// .env 可选
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验字段约束，以及策略表必须覆盖全部内置行为
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, kind := range model.ActionKinds() {
		if _, ok := c.RateLimit.Policies[string(kind)]; !ok {
			return fmt.Errorf("invalid config: rate_limit.policies missing %q", kind)
		}
	}
	for _, b := range c.RateLimit.Bypass {
		if _, ok := c.RateLimit.Policies[b.Action]; !ok {
			return fmt.Errorf("invalid config: bypass references unknown action %q", b.Action)
		}
	}
	if c.RateLimit.Store == "redis" && !c.Redis.Enabled {
		return errors.New("invalid config: rate_limit.store=redis requires redis.enabled")
	}
	if c.RateLimit.Strict && c.RateLimit.Store != "redis" {
		return errors.New("invalid config: rate_limit.strict requires rate_limit.store=redis")
	}
	return nil
}
