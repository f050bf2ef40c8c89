// This file defines the configuration structure for the application.
package config

import (
	// use Viper for loading the config.yml file.
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration settings for the client.
// It maps directly to the structure of config.yml.
type Config struct {
	Server struct {
		URL            string `mapstructure:"url"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	} `mapstructure:"server"`
	Channel struct {
		ConnectTimeoutSeconds int `mapstructure:"connect_timeout_seconds"`
		QuietPeriodSeconds    int `mapstructure:"quiet_period_seconds"`
		RetryAttempts         int `mapstructure:"retry_attempts"`
		RetryBackoffSeconds   int `mapstructure:"retry_backoff_seconds"`
	} `mapstructure:"channel"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	// Default domain tags attached to every submission.
	Domains []string `mapstructure:"domains"`
}

// RequestTimeout returns the HTTP submission timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

// ConnectTimeout returns the bounded wait for channel establishment.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Channel.ConnectTimeoutSeconds) * time.Second
}

// QuietPeriod returns the window after which a silent channel gets one
// latest-progress nudge.
func (c *Config) QuietPeriod() time.Duration {
	return time.Duration(c.Channel.QuietPeriodSeconds) * time.Second
}

// RetryBackoff returns the fixed delay between channel connect attempts.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Channel.RetryBackoffSeconds) * time.Second
}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or "yaml"
	viper.AddConfigPath(".")      // looking for config in the current directory

	// --- Environment Variable Overrides ---
	// This tells Viper to look for environment variables with a "TUBEINDEX_"
	// prefix. e.g., TUBEINDEX_SERVER_URL overrides the `server.url` key.
	viper.SetEnvPrefix("TUBEINDEX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("server.url", "http://localhost:8807")
	viper.SetDefault("server.timeout_seconds", 30)
	viper.SetDefault("channel.connect_timeout_seconds", 5)
	viper.SetDefault("channel.quiet_period_seconds", 5)
	viper.SetDefault("channel.retry_attempts", 5)
	viper.SetDefault("channel.retry_backoff_seconds", 1)
	viper.SetDefault("database.path", "./tubeindex.db")
	viper.SetDefault("domains", []string{"general"})

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error and use defaults
		} else {
			// Config file was found but another error was produced
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
