// Package config содержит логику чтения конфигурации программы лояльности.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress      = "localhost:8080"
	defaultThreshold       = 100
	defaultCodeLength      = 5
	defaultCodeMaxAttempts = 20

	// EnvDevelopment задаёт окружение, в котором при старте создаются тестовые сотрудники.
	EnvDevelopment = "development"
)

// Config содержит параметры конфигурации программы лояльности.
type Config struct {
	RunAddress                 string `env:"RUN_ADDRESS"`
	DatabaseURI                string `env:"DATABASE_URI"`
	NotificationServiceAddress string `env:"NOTIFICATION_SERVICE_ADDRESS"`
	AuthSecret                 string `env:"AUTH_SECRET"`
	WinnerThresholdPoints      int64  `env:"WINNER_THRESHOLD_POINTS"`
	WinnerCodeLength           int    `env:"WINNER_CODE_LENGTH"`
	WinnerCodeMaxAttempts      int    `env:"WINNER_CODE_MAX_ATTEMPTS"`
	QRBaseURL                  string `env:"QR_BASE_URL"`
	AppEnv                     string `env:"APP_ENV"`
}

// Development сообщает, запущен ли сервис в окружении разработки.
func (c *Config) Development() bool {
	return c.AppEnv == EnvDevelopment
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := *cfg

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, in-memory storage when empty")
	flag.StringVar(&cfg.NotificationServiceAddress, "n", "", "winner notification service address")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for staff tokens")
	flag.Int64Var(&cfg.WinnerThresholdPoints, "t", defaultThreshold, "points required to win")
	flag.IntVar(&cfg.WinnerCodeLength, "l", defaultCodeLength, "winner code length")

	flag.Parse()

	if fromEnv.RunAddress != "" {
		cfg.RunAddress = fromEnv.RunAddress
	}
	if fromEnv.DatabaseURI != "" {
		cfg.DatabaseURI = fromEnv.DatabaseURI
	}
	if fromEnv.NotificationServiceAddress != "" {
		cfg.NotificationServiceAddress = fromEnv.NotificationServiceAddress
	}
	if fromEnv.AuthSecret != "" {
		cfg.AuthSecret = fromEnv.AuthSecret
	}
	if fromEnv.WinnerThresholdPoints != 0 {
		cfg.WinnerThresholdPoints = fromEnv.WinnerThresholdPoints
	}
	if fromEnv.WinnerCodeLength != 0 {
		cfg.WinnerCodeLength = fromEnv.WinnerCodeLength
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.WinnerThresholdPoints <= 0 {
		cfg.WinnerThresholdPoints = defaultThreshold
	}
	if cfg.WinnerCodeLength <= 0 {
		cfg.WinnerCodeLength = defaultCodeLength
	}
	if cfg.WinnerCodeMaxAttempts <= 0 {
		cfg.WinnerCodeMaxAttempts = defaultCodeMaxAttempts
	}

	return cfg, nil
}
