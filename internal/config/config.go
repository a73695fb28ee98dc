// Package config provides Viper-based configuration loading for the game server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable override, e.g. TICTACTOE_LISTENER_PORT.
const EnvPrefix = "TICTACTOE"

// ListenerConfig holds TCP acceptor and per-connection settings.
type ListenerConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host"`
	// Port is the TCP port. Zero picks a free port.
	Port int `mapstructure:"port"`
	// HandshakeTimeout bounds the wait for a new connection's first complete frame.
	// Zero disables it.
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	// WriteTimeout bounds every frame write. Zero disables it.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" listen address.
func (l ListenerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", l.Host, l.Port)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// Service is attached to every entry as the "service" field.
	Service string `mapstructure:"service"`
}

// StatsConfig controls the periodic registry statistics log line.
type StatsConfig struct {
	// Interval between stats log lines. Zero disables reporting.
	Interval time.Duration `mapstructure:"interval"`
}

// Config is the top-level application configuration.
type Config struct {
	Listener ListenerConfig `mapstructure:"listener"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Stats    StatsConfig    `mapstructure:"stats"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateListener(c.Listener); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Stats.Interval < 0 {
		errs = append(errs, "stats.interval must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateListener(l ListenerConfig) error {
	var errs []string
	if l.Port < 0 || l.Port > 65535 {
		errs = append(errs, fmt.Sprintf("listener.port must be 0-65535, got %d", l.Port))
	}
	if l.HandshakeTimeout < 0 {
		errs = append(errs, "listener.handshake_timeout must not be negative")
	}
	if l.WriteTimeout < 0 {
		errs = append(errs, "listener.write_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	if strings.TrimSpace(l.Service) == "" {
		return fmt.Errorf("logging.service must not be empty")
	}
	return nil
}

// Load builds the configuration from defaults, the optional YAML file at path and
// TICTACTOE_* environment overrides, then validates it. An empty path skips the
// file.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := LoadFromViper(v)
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listener.host", "0.0.0.0")
	v.SetDefault("listener.port", 5555)
	v.SetDefault("listener.handshake_timeout", "30s")
	v.SetDefault("listener.write_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.service", "tictactoe")

	v.SetDefault("stats.interval", "1m")
}
