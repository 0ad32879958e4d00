package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the sync agent.
type Config struct {
	AppName               string
	AppEnv                string
	AppPort               string
	StorePath             string
	ServerBaseURL         string
	UserEmail             string
	RequestTimeout        time.Duration
	ClockForwardTolerance time.Duration
	IntegrityCheckEvery   time.Duration
	AnswerDebounce        time.Duration
	SyncCooldown          time.Duration
	FreshnessCourses      time.Duration
	FreshnessDetail       time.Duration
	FreshnessQuestions    time.Duration
}

// HTTPAddress returns the loopback address the agent API listens on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("POCKET")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Pocket Sync Agent")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "7340")
	v.SetDefault("store.path", "pocketsync.db")
	v.SetDefault("request.timeout", "15s")
	v.SetDefault("clock.forward_tolerance", "5m")
	v.SetDefault("clock.recheck_interval", "15s")
	v.SetDefault("answer.debounce", "750ms")
	v.SetDefault("sync.cooldown", "30s")
	v.SetDefault("freshness.courses", "10m")
	v.SetDefault("freshness.detail", "5m")
	v.SetDefault("freshness.questions", "10m")

	cfg := Config{
		AppName:       v.GetString("app.name"),
		AppEnv:        v.GetString("app.env"),
		AppPort:       v.GetString("app.port"),
		StorePath:     v.GetString("store.path"),
		ServerBaseURL: v.GetString("server.base_url"),
		UserEmail:     v.GetString("user.email"),
	}

	durations := []struct {
		key  string
		dest *time.Duration
	}{
		{"request.timeout", &cfg.RequestTimeout},
		{"clock.forward_tolerance", &cfg.ClockForwardTolerance},
		{"clock.recheck_interval", &cfg.IntegrityCheckEvery},
		{"answer.debounce", &cfg.AnswerDebounce},
		{"sync.cooldown", &cfg.SyncCooldown},
		{"freshness.courses", &cfg.FreshnessCourses},
		{"freshness.detail", &cfg.FreshnessDetail},
		{"freshness.questions", &cfg.FreshnessQuestions},
	}

	for _, d := range durations {
		parsed, err := time.ParseDuration(v.GetString(d.key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("%s must be positive", d.key)
		}
		*d.dest = parsed
	}

	if cfg.ServerBaseURL == "" {
		return Config{}, fmt.Errorf("server base url must be provided")
	}

	return cfg, nil
}
