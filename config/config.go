// Package config loads server settings from the environment.
//
// A .env file in the working directory is read first (if present); real
// environment variables win over it. Every key is prefixed with POS_.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DBPath      string
	Port        string
	Location    *time.Location
	MarginRatio decimal.Decimal
	LogLevel    logrus.Level
	CORSOrigins []string
}

// Load reads configuration from environment variables and .env files.
// Missing files are ignored; invalid values are errors.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	v.SetEnvPrefix("POS")
	v.AutomaticEnv()

	v.SetDefault("DB_PATH", "negocio.db")
	v.SetDefault("PORT", "8080")
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("MARGIN_RATIO", "0.25")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:8080")

	cfg := &Config{
		DBPath:      v.GetString("DB_PATH"),
		Port:        v.GetString("PORT"),
		CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
	}

	loc, err := time.LoadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("invalid POS_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	ratio, err := decimal.NewFromString(v.GetString("MARGIN_RATIO"))
	if err != nil {
		return nil, fmt.Errorf("invalid POS_MARGIN_RATIO: %w", err)
	}
	if ratio.IsNegative() || ratio.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("invalid POS_MARGIN_RATIO: %s is outside [0, 1]", ratio)
	}
	cfg.MarginRatio = ratio

	level, err := logrus.ParseLevel(v.GetString("LOG_LEVEL"))
	if err != nil {
		return nil, fmt.Errorf("invalid POS_LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	return cfg, nil
}

// NewLogger returns the JSON logger used by the server.
func NewLogger(level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(level)
	logger.SetOutput(os.Stdout)
	return logger
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
