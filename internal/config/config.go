package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	BotToken       string `validate:"required"`
	BotUsername    string
	AdminIDs       []int64
	SupportContact string `validate:"required"`

	DBDriver   string `validate:"oneof=sqlite postgres"`
	DBPath     string `validate:"required_if=DBDriver sqlite"`
	DBHost     string `validate:"required_if=DBDriver postgres"`
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	Port              int `validate:"min=1,max=65535"`
	KeepAliveURL      string
	KeepAliveInterval time.Duration `validate:"min=1s"`
	StatsCacheTTL     time.Duration `validate:"min=0"`
	ReportSchedule    string

	StartingShares     int64 `validate:"min=0"`
	DailyBonus         int64 `validate:"min=1"`
	BonusCooldownHours int   `validate:"min=1"`
	ReferralBonus      int64 `validate:"min=0"`

	LogLevel string `validate:"oneof=trace debug info warn warning error"`
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, using environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	adminIDs, err := parseIDs(v.GetString("ADMIN_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_IDS: %w", err)
	}

	cfg := &Config{
		BotToken:       v.GetString("BOT_TOKEN"),
		BotUsername:    v.GetString("BOT_USERNAME"),
		AdminIDs:       adminIDs,
		SupportContact: v.GetString("SUPPORT_CONTACT"),

		DBDriver:   v.GetString("DB_DRIVER"),
		DBPath:     v.GetString("DB_PATH"),
		DBHost:     v.GetString("DB_HOST"),
		DBPort:     v.GetString("DB_PORT"),
		DBUser:     v.GetString("DB_USER"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBName:     v.GetString("DB_NAME"),

		RedisHost:     v.GetString("REDIS_HOST"),
		RedisPort:     v.GetString("REDIS_PORT"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),

		Port:              v.GetInt("PORT"),
		KeepAliveURL:      v.GetString("KEEPALIVE_URL"),
		KeepAliveInterval: v.GetDuration("KEEPALIVE_INTERVAL"),
		StatsCacheTTL:     v.GetDuration("STATS_CACHE_TTL"),
		ReportSchedule:    v.GetString("REPORT_SCHEDULE"),

		StartingShares:     v.GetInt64("STARTING_SHARES"),
		DailyBonus:         v.GetInt64("DAILY_BONUS"),
		BonusCooldownHours: v.GetInt("BONUS_COOLDOWN_HOURS"),
		ReferralBonus:      v.GetInt64("REFERRAL_BONUS"),

		LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),
	}

	if cfg.KeepAliveURL == "" {
		cfg.KeepAliveURL = fmt.Sprintf("http://localhost:%d/health", cfg.Port)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SUPPORT_CONTACT", "@ViralMusicSupport")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_PATH", "data/bot.db")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "viral_music_bot")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("PORT", 10000)
	v.SetDefault("KEEPALIVE_INTERVAL", "5m")
	v.SetDefault("STATS_CACHE_TTL", "30s")
	v.SetDefault("REPORT_SCHEDULE", "@daily")
	v.SetDefault("STARTING_SHARES", 20)
	v.SetDefault("DAILY_BONUS", 10)
	v.SetDefault("BONUS_COOLDOWN_HOURS", 24)
	v.SetDefault("REFERRAL_BONUS", 20)
	v.SetDefault("LOG_LEVEL", "info")
}

// RedisEnabled reports whether a Redis host was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
