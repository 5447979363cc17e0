// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/logger"
	"github.com/joho/godotenv"
)

// R2 holds the object storage settings for certificate manifests.
type R2 struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

// Enabled reports whether enough is configured to talk to the bucket.
func (r R2) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.AccessKeySecret != "" && r.Bucket != ""
}

type Config struct {
	Port           string
	DatabaseURL    string
	GatewayToken   string
	AllowedOrigins []string
	RedisAddr      string
	PublicBaseURL  string
	ProfileSyncURL string
	R2             R2

	VerifyRPS            float64
	VerifyBurst          int
	AdvanceSweepInterval time.Duration
	ProfileSyncInterval  time.Duration
	OutboxPollInterval   time.Duration
	LogVerbose           bool
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, reading environment variables directly")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. Missing optional values fall back to logged defaults.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:           withDefault(getenv, "PORT", "5200"),
		DatabaseURL:    getenv("DATABASE_URL"),
		GatewayToken:   getenv("GATEWAY_TOKEN"),
		RedisAddr:      getenv("REDIS_ADDR"),
		PublicBaseURL:  strings.TrimRight(withDefault(getenv, "PUBLIC_BASE_URL", "http://localhost:5200"), "/"),
		ProfileSyncURL: getenv("PROFILE_SYNC_URL"),
		R2: R2{
			AccountID:       getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          getenv("R2_BUCKET_NAME"),
			CDNBaseURL:      getenv("CDN_BASE_URL"),
		},
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	for _, origin := range strings.Split(withDefault(getenv, "ALLOWED_ORIGINS", "http://localhost:3000"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	var err error
	if cfg.VerifyRPS, err = strconv.ParseFloat(withDefault(getenv, "VERIFY_RPS", "5"), 64); err != nil || cfg.VerifyRPS <= 0 {
		return Config{}, fmt.Errorf("VERIFY_RPS must be a positive number")
	}
	if cfg.VerifyBurst, err = strconv.Atoi(withDefault(getenv, "VERIFY_BURST", "10")); err != nil || cfg.VerifyBurst < 1 {
		return Config{}, fmt.Errorf("VERIFY_BURST must be a positive integer")
	}
	if cfg.AdvanceSweepInterval, err = duration(getenv, "ADVANCE_SWEEP_INTERVAL", "1m"); err != nil {
		return Config{}, err
	}
	if cfg.ProfileSyncInterval, err = duration(getenv, "PROFILE_SYNC_INTERVAL", "1m"); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = duration(getenv, "OUTBOX_POLL_INTERVAL", "2s"); err != nil {
		return Config{}, err
	}
	cfg.LogVerbose, _ = strconv.ParseBool(getenv("LOG_VERBOSE"))
	return cfg, nil
}

func withDefault(getenv func(string) string, key, def string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	logger.Infof("%s not set, using default: %s", key, def)
	return def
}

func duration(getenv func(string) string, key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(withDefault(getenv, key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration", key)
	}
	return d, nil
}
