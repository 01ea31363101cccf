// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token       string        `yaml:"token" env:"BOT_TOKEN"`
	Username    string        `yaml:"username" env:"BOT_USERNAME"`
	Workers     int           `yaml:"workers"` // polling workers
	AdminIDs    []int64       `yaml:"admin_ids" env:"BOT_ADMIN_IDS" envSeparator:","`
	CallTimeout time.Duration `yaml:"call_timeout"`
	RatePerSec  float64       `yaml:"rate_per_sec"` // outbound Telegram API budget
	Lang        string        `yaml:"lang"`
}

// CommunityConfig names the gated Telegram chats and the mini-app links.
type CommunityConfig struct {
	ChannelID    int64         `yaml:"channel_id" env:"COMMUNITY_CHANNEL_ID"`
	ChatID       int64         `yaml:"chat_id" env:"COMMUNITY_CHAT_ID"` // tier 2 auxiliary chat
	GroupID      int64         `yaml:"group_id" env:"COMMUNITY_GROUP_ID"`
	InviteTTL    time.Duration `yaml:"invite_ttl"`
	AboutURL     string        `yaml:"about_url"`
	MiniAppURL   string        `yaml:"mini_app_url"`
	AdminAppURL  string        `yaml:"admin_app_url"`
	CustomerMail string        `yaml:"customer_email"` // fallback receipt e-mail
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"` // trace|debug|info|warn|error
	Format   string `yaml:"format"`                // json|console
	Sampling bool   `yaml:"sampling"`              // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port" env:"PORT"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	JWTSecret      string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url" env:"DATABASE_URL"`
	MaxConns     int32  `yaml:"max_conns"`
	MigrateOnRun bool   `yaml:"migrate_on_run"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" env:"REDIS_URL"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type PaymentConfig struct {
	Default       string `yaml:"default"` // provider used by the bot checkout
	CloudPayments struct {
		PublicID  string `yaml:"public_id" env:"CLOUDPAYMENTS_PUBLIC_ID"`
		APISecret string `yaml:"api_secret" env:"CLOUDPAYMENTS_SECRET_KEY"`
		BaseURL   string `yaml:"base_url"`
	} `yaml:"cloudpayments"`
	Redirect struct {
		MerchantID string `yaml:"merchant_id" env:"PAYFORM_MERCHANT_ID"`
		Secret     string `yaml:"secret" env:"PAYFORM_SECRET"`
		PayURL     string `yaml:"pay_url"`
		ResultURL  string `yaml:"result_url"`
	} `yaml:"redirect"`
	HookWorkers int `yaml:"hook_workers"`
}

type SchedulerConfig struct {
	Timezone           string        `yaml:"timezone"`
	ExpiryCheckCron    string        `yaml:"expiry_check_cron"`
	ExpiryWindow       time.Duration `yaml:"expiry_window"`
	MembershipInterval time.Duration `yaml:"membership_interval"`
	RunTimeout         time.Duration `yaml:"run_timeout"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Community CommunityConfig `yaml:"community"`
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, overlays environment variables
// (a .env file next to the binary is loaded first when present), applies
// defaults and validates the result.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !(errors.Is(err, os.ErrNotExist) && dev) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	_ = godotenv.Load()
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Bot.Token == "" && !dev {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.HTTP.JWTSecret == "" && !dev {
		return nil, errors.New("http.jwt_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.CallTimeout <= 0 {
		cfg.Bot.CallTimeout = 10 * time.Second
	}
	if cfg.Bot.RatePerSec <= 0 {
		cfg.Bot.RatePerSec = 25
	}
	if cfg.Bot.Lang == "" {
		cfg.Bot.Lang = "ru"
	}
	if cfg.Community.ChatID == 0 {
		cfg.Community.ChatID = cfg.Community.ChannelID
	}
	if cfg.Community.GroupID == 0 {
		cfg.Community.GroupID = cfg.Community.ChannelID
	}
	if cfg.Community.InviteTTL <= 0 {
		cfg.Community.InviteTTL = time.Hour
	}
	if cfg.Community.CustomerMail == "" {
		cfg.Community.CustomerMail = "customer@example.com"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 3001
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 15 * time.Second
	}
	if cfg.HTTP.SessionTTL <= 0 {
		cfg.HTTP.SessionTTL = 12 * time.Hour
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Payment.Default == "" {
		cfg.Payment.Default = "cloudpayments"
	}
	if cfg.Payment.CloudPayments.BaseURL == "" {
		cfg.Payment.CloudPayments.BaseURL = "https://api.cloudpayments.ru"
	}
	if cfg.Payment.HookWorkers <= 0 {
		cfg.Payment.HookWorkers = 4
	}
	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "Europe/Moscow"
	}
	if cfg.Scheduler.ExpiryCheckCron == "" {
		cfg.Scheduler.ExpiryCheckCron = "0 0 * * *"
	}
	if cfg.Scheduler.ExpiryWindow <= 0 {
		cfg.Scheduler.ExpiryWindow = 72 * time.Hour
	}
	if cfg.Scheduler.MembershipInterval <= 0 {
		cfg.Scheduler.MembershipInterval = time.Hour
	}
	if cfg.Scheduler.MembershipInterval < time.Minute {
		cfg.Scheduler.MembershipInterval = time.Minute
	}
	if cfg.Scheduler.RunTimeout <= 0 {
		cfg.Scheduler.RunTimeout = 10 * time.Minute
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
