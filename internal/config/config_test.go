package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("PORT", "8080")
	t.Setenv("ADMIN_IDS", " 1, 2 ,,3")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DBDriver != "sqlite" || cfg.DBPath != "data/bot.db" {
		t.Errorf("database = %s %s, want sqlite data/bot.db", cfg.DBDriver, cfg.DBPath)
	}
	if cfg.StartingShares != 20 || cfg.DailyBonus != 10 || cfg.ReferralBonus != 20 {
		t.Errorf("economy = %d/%d/%d, want 20/10/20", cfg.StartingShares, cfg.DailyBonus, cfg.ReferralBonus)
	}
	if cfg.BonusCooldownHours != 24 {
		t.Errorf("BonusCooldownHours = %d, want 24", cfg.BonusCooldownHours)
	}
	if cfg.KeepAliveInterval != 5*time.Minute {
		t.Errorf("KeepAliveInterval = %v, want 5m", cfg.KeepAliveInterval)
	}
	if cfg.KeepAliveURL != "http://localhost:8080/health" {
		t.Errorf("KeepAliveURL = %q", cfg.KeepAliveURL)
	}
	if diff := cmp.Diff(cfg.AdminIDs, []int64{1, 2, 3}); diff != "" {
		t.Errorf("AdminIDs (-got +want):\n%s", diff)
	}
	if cfg.RedisEnabled() {
		t.Error("RedisEnabled() = true without REDIS_HOST")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("STARTING_SHARES", "0")
	t.Setenv("BONUS_COOLDOWN_HOURS", "12")
	t.Setenv("KEEPALIVE_URL", "https://example.onrender.com/health")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StartingShares != 0 {
		t.Errorf("StartingShares = %d, want 0", cfg.StartingShares)
	}
	if cfg.BonusCooldownHours != 12 {
		t.Errorf("BonusCooldownHours = %d, want 12", cfg.BonusCooldownHours)
	}
	if cfg.KeepAliveURL != "https://example.onrender.com/health" {
		t.Errorf("KeepAliveURL = %q", cfg.KeepAliveURL)
	}
	if !cfg.RedisEnabled() {
		t.Error("RedisEnabled() = false with REDIS_HOST set")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := map[string]map[string]string{
		"missing token":  {"BOT_TOKEN": ""},
		"bad driver":     {"BOT_TOKEN": "x", "DB_DRIVER": "mysql"},
		"bad admin ids":  {"BOT_TOKEN": "x", "ADMIN_IDS": "1,two"},
		"zero cooldown":  {"BOT_TOKEN": "x", "BONUS_COOLDOWN_HOURS": "0"},
		"negative start": {"BOT_TOKEN": "x", "STARTING_SHARES": "-5"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatal("LoadConfig() succeeded, want error")
			}
		})
	}
}
