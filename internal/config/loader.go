package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Set defaults
	cfg := DefaultConfig()

	// Set up viper
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Read config file (optional - if file doesn't exist, continue with defaults)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Warning: Could not read config file %s: %v. Using defaults and environment variables.\n", configPath, err)
	} else {
		if err := viper.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	// Override with environment variables (these take precedence)
	applyEnvironmentOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvironmentOverrides applies environment variable overrides to config
func applyEnvironmentOverrides(cfg *Config) {
	// Primary configuration
	if host := os.Getenv("PRIMARY_HOST"); host != "" {
		cfg.Primary.Host = host
	}
	if port := os.Getenv("PRIMARY_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Primary.Port = p
		}
	}
	if name := os.Getenv("PRIMARY_DATABASE"); name != "" {
		cfg.Primary.Database = name
	}
	if user := os.Getenv("PRIMARY_USER"); user != "" {
		cfg.Primary.User = user
	}
	if password := os.Getenv("PRIMARY_PASSWORD"); password != "" {
		cfg.Primary.Password = password
	}

	// Analytics configuration
	if host := os.Getenv("ANALYTICS_HOST"); host != "" {
		cfg.Analytics.Host = host
	}
	if port := os.Getenv("ANALYTICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Analytics.Port = p
		}
	}
	if password := os.Getenv("ANALYTICS_PASSWORD"); password != "" {
		cfg.Analytics.Password = password
	}

	// Cache configuration
	if host := os.Getenv("CACHE_HOST"); host != "" {
		cfg.Cache.Host = host
	}
	if port := os.Getenv("CACHE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Cache.Port = p
		}
	}
	if password := os.Getenv("CACHE_PASSWORD"); password != "" {
		cfg.Cache.Password = password
	}

	// Logging configuration
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}
}
