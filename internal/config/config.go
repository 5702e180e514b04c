// Package config loads mathscan settings from the environment.
//
// main calls godotenv.Load first, so a .env file in the working directory
// behaves like exported variables. Command-line flags override what Load
// returns.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mathscan/mathscan/internal/logger"
	"github.com/mathscan/mathscan/internal/ocr"
)

type Config struct {
	// OCR defaults applied to every new session
	OCR ocr.Config

	// TessdataPath is an explicit language data directory, searched before
	// the built-in locations.
	TessdataPath string

	// Background job runner
	Workers   int
	QueueSize int

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	config := &Config{
		TessdataPath:  getEnv("TESSDATA_PREFIX", ""),
		LogLevel:      getEnv("MATHSCAN_LOG_LEVEL", "info"),
		LogFormat:     getEnv("MATHSCAN_LOG_FORMAT", "console"),
		LogTimeFormat: getEnv("MATHSCAN_LOG_TIME_FORMAT", time.RFC3339),
		LogOutput:     getEnv("MATHSCAN_LOG_OUTPUT", "stderr"),
	}

	defaults := ocr.DefaultConfig()
	var err error
	if config.OCR.Mode, err = ocr.ParseMode(getEnv("MATHSCAN_OCR_MODE", defaults.Mode.String())); err != nil {
		return nil, fmt.Errorf("MATHSCAN_OCR_MODE: %w", err)
	}
	config.OCR.Language = getEnv("MATHSCAN_OCR_LANGUAGE", defaults.Language)
	if config.OCR.DPI, err = getEnvInt("MATHSCAN_OCR_DPI", defaults.DPI); err != nil {
		return nil, err
	}
	if config.OCR.PreprocessImage, err = getEnvBool("MATHSCAN_OCR_PREPROCESS", defaults.PreprocessImage); err != nil {
		return nil, err
	}
	if config.OCR.EnableConfidenceScoring, err = getEnvBool("MATHSCAN_OCR_CONFIDENCE_SCORING", defaults.EnableConfidenceScoring); err != nil {
		return nil, err
	}
	if config.OCR.MinimumConfidence, err = getEnvInt("MATHSCAN_OCR_MIN_CONFIDENCE", defaults.MinimumConfidence); err != nil {
		return nil, err
	}
	if config.OCR.AutoInvert, err = getEnvBool("MATHSCAN_OCR_AUTO_INVERT", defaults.AutoInvert); err != nil {
		return nil, err
	}
	if config.Workers, err = getEnvInt("MATHSCAN_WORKERS", 1); err != nil {
		return nil, err
	}
	if config.QueueSize, err = getEnvInt("MATHSCAN_QUEUE_SIZE", 16); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if err := c.OCR.Validate(); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("MATHSCAN_WORKERS must be at least 1, got %d", c.Workers)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("MATHSCAN_QUEUE_SIZE must be at least 1, got %d", c.QueueSize)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("MATHSCAN_LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, value)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, value)
	}
	return b, nil
}
