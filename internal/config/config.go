package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	GinMode     string
	DatabaseURL string
	EnableDB    bool

	ModelPath      string
	ModelURL       string
	ModelTimeout   time.Duration
	ModelRateLimit float64

	LogLevel  string
	LogFormat string

	MaxUploadBytes int64
	CORSOrigins    []string
	StaticRoot     string
}

// environment variable behind every key
var envKeys = map[string]string{
	"server.port":             "PORT",
	"server.gin_mode":         "GIN_MODE",
	"server.max_upload_bytes": "MAX_UPLOAD_BYTES",
	"server.cors_origins":     "CORS_ORIGINS",
	"server.static_root":      "STATIC_ROOT",
	"database.url":            "DATABASE_URL",
	"database.enabled":        "ENABLE_DB",
	"model.path":              "MODEL_PATH",
	"model.url":               "MODEL_URL",
	"model.timeout":           "MODEL_TIMEOUT",
	"model.rate_limit":        "MODEL_RATE_LIMIT",
	"logging.level":           "LOG_LEVEL",
	"logging.format":          "LOG_FORMAT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.gin_mode", "release")
	v.SetDefault("server.max_upload_bytes", 5<<20)
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("server.static_root", "")

	v.SetDefault("database.url", "")
	v.SetDefault("database.enabled", false)

	v.SetDefault("model.path", "models/model.yaml")
	v.SetDefault("model.url", "")
	v.SetDefault("model.timeout", "10s")
	v.SetDefault("model.rate_limit", 20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load reads .env, an optional config.yaml and the environment, in increasing priority.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	setDefaults(v)
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Port:           v.GetString("server.port"),
		GinMode:        v.GetString("server.gin_mode"),
		DatabaseURL:    v.GetString("database.url"),
		EnableDB:       v.GetBool("database.enabled"),
		ModelPath:      v.GetString("model.path"),
		ModelURL:       v.GetString("model.url"),
		ModelTimeout:   v.GetDuration("model.timeout"),
		ModelRateLimit: v.GetFloat64("model.rate_limit"),
		LogLevel:       v.GetString("logging.level"),
		LogFormat:      v.GetString("logging.format"),
		MaxUploadBytes: v.GetInt64("server.max_upload_bytes"),
		CORSOrigins:    splitList(v.GetString("server.cors_origins")),
		StaticRoot:     v.GetString("server.static_root"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.EnableDB && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true")
	}
	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("invalid PORT %q", c.Port)
	}
	if c.ModelPath == "" && c.ModelURL == "" {
		return fmt.Errorf("one of MODEL_PATH or MODEL_URL is required")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("invalid GIN_MODE %q", c.GinMode)
	}
	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must list at least one origin")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
