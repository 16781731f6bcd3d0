package config

import (
	"log/slog"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port           int    `envconfig:"PORT" default:"8080"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	AreaSchema     string `envconfig:"AREA_SCHEMA" default:"mapdata"`
	AreaDir        string `envconfig:"AREA_DIR" default:"./data/areas"`
	AreaPrewarm    string `envconfig:"AREA_PREWARM"`
	SymbolDir      string `envconfig:"SYMBOL_DIR" default:"./data/symbols"`
	PaletteFile    string `envconfig:"PALETTE_FILE"`
	JWTSecret      string `envconfig:"JWT_SECRET" default:"dev-secret-change-in-production"`
	OperatorHash   string `envconfig:"OPERATOR_PASSWORD_HASH"`
	KafkaBrokers   string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic     string `envconfig:"KAFKA_TOPIC" default:"spatial-display"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"localhost:5173,localhost:3000"`

	SelectionDistancePx float64 `envconfig:"SELECTION_DISTANCE_PX" default:"10"`
	SlopPx              float64 `envconfig:"SLOP_PX" default:"5"`
	HandleBarRadiusPx   float64 `envconfig:"HANDLEBAR_RADIUS_PX" default:"6"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Level maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Brokers splits KAFKA_BROKERS on commas; empty when unset.
func (c *Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

// PrewarmAreas splits AREA_PREWARM, a comma list of table/name overlay keys.
func (c *Config) PrewarmAreas() []string {
	return splitList(c.AreaPrewarm)
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c *Config) Origins() []string {
	return splitList(c.AllowedOrigins)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
