// Package config provides configuration management for the pvbus gateway.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	// Serial bus settings
	Serial struct {
		Port      string `mapstructure:"port"`
		BaudRate  int    `mapstructure:"baud_rate"`
		TimeoutMs int    `mapstructure:"timeout_ms"`
	} `mapstructure:"serial"`

	// Poll cycle settings
	Poll struct {
		IntervalSeconds int `mapstructure:"interval_seconds"`
		SettleDelayMs   int `mapstructure:"settle_delay_ms"`
	} `mapstructure:"poll"`

	// Device collection settings
	Devices struct {
		Aurora struct {
			Addresses []int `mapstructure:"addresses"`
		} `mapstructure:"aurora"`
		Solax struct {
			Enabled bool `mapstructure:"enabled"`
			Address int  `mapstructure:"address"`
		} `mapstructure:"solax"`
	} `mapstructure:"devices"`

	// MQTT settings
	MQTT struct {
		Enabled     bool   `mapstructure:"enabled"`
		Host        string `mapstructure:"host"`
		Port        int    `mapstructure:"port"`
		Username    string `mapstructure:"username"`
		Password    string `mapstructure:"password"`
		TopicPrefix string `mapstructure:"topic_prefix"`
		Retain      bool   `mapstructure:"retain"`
	} `mapstructure:"mqtt"`

	// HTTP API settings
	API struct {
		Enabled     bool   `mapstructure:"enabled"`
		Host        string `mapstructure:"host"`
		Port        int    `mapstructure:"port"`
		FirmwareDir string `mapstructure:"firmware_dir"`
	} `mapstructure:"api"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{
		LogLevel: "info",
	}

	cfg.Serial.Port = "/dev/ttyUSB0"
	cfg.Serial.BaudRate = 19200
	cfg.Serial.TimeoutMs = 250

	cfg.Poll.IntervalSeconds = 10
	cfg.Poll.SettleDelayMs = 300

	cfg.Devices.Aurora.Addresses = []int{2, 3}
	cfg.Devices.Solax.Enabled = false
	cfg.Devices.Solax.Address = 0x0A

	cfg.MQTT.Enabled = true
	cfg.MQTT.Host = "localhost"
	cfg.MQTT.Port = 1883
	cfg.MQTT.TopicPrefix = "energy/pv"
	cfg.MQTT.Retain = false

	cfg.API.Enabled = true
	cfg.API.Host = "0.0.0.0"
	cfg.API.Port = 8080
	cfg.API.FirmwareDir = "/var/lib/pvbus/firmware"

	return cfg
}

// Load reads the configuration from a file and environment variables.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		// missing file is fine, defaults apply; anything else is fatal
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	v.SetEnvPrefix("PVBUS")
	v.AutomaticEnv()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot produce a working gateway.
func (c *Config) Validate() error {
	if c.Serial.Port == "" {
		return fmt.Errorf("serial.port must be set")
	}
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate must be positive, got %d", c.Serial.BaudRate)
	}
	if c.Serial.TimeoutMs <= 0 {
		return fmt.Errorf("serial.timeout_ms must be positive, got %d", c.Serial.TimeoutMs)
	}
	if c.Poll.IntervalSeconds <= 0 {
		return fmt.Errorf("poll.interval_seconds must be positive, got %d", c.Poll.IntervalSeconds)
	}
	for _, addr := range c.Devices.Aurora.Addresses {
		if addr < 0 || addr > 255 {
			return fmt.Errorf("devices.aurora.addresses entry %d out of byte range", addr)
		}
	}
	if a := c.Devices.Solax.Address; a < 0 || a > 255 {
		return fmt.Errorf("devices.solax.address %d out of byte range", a)
	}
	if len(c.Devices.Aurora.Addresses) == 0 && !c.Devices.Solax.Enabled {
		return fmt.Errorf("no devices configured")
	}
	return nil
}

// SerialTimeout returns the per-exchange read timeout.
func (c *Config) SerialTimeout() time.Duration {
	return time.Duration(c.Serial.TimeoutMs) * time.Millisecond
}

// PollInterval returns the tick period of the poll loop.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalSeconds) * time.Second
}

// SettleDelay returns the pause between consecutive Solax handshake queries.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Poll.SettleDelayMs) * time.Millisecond
}

// Print displays the current configuration.
func (c *Config) Print() {
	logger := log.With().Str("component", "config").Logger()
	logger.Info().Msg("pvbus Gateway Configuration:")
	logger.Info().Msg("-----------------------------")
	logger.Info().Str("log_level", c.LogLevel).Msg("Log Level")

	logger.Info().
		Str("port", c.Serial.Port).
		Int("baud_rate", c.Serial.BaudRate).
		Int("timeout_ms", c.Serial.TimeoutMs).
		Msg("Serial Bus")

	logger.Info().
		Int("interval_seconds", c.Poll.IntervalSeconds).
		Int("settle_delay_ms", c.Poll.SettleDelayMs).
		Msg("Poll Cycle")

	logger.Info().
		Ints("aurora_addresses", c.Devices.Aurora.Addresses).
		Bool("solax_enabled", c.Devices.Solax.Enabled).
		Int("solax_address", c.Devices.Solax.Address).
		Msg("Devices")

	logger.Info().Bool("enabled", c.MQTT.Enabled).Msg("MQTT Enabled")
	if c.MQTT.Enabled {
		logger.Info().
			Str("host", c.MQTT.Host).
			Int("port", c.MQTT.Port).
			Str("topic_prefix", c.MQTT.TopicPrefix).
			Bool("retain", c.MQTT.Retain).
			Msg("MQTT Configuration")
	}

	logger.Info().Bool("enabled", c.API.Enabled).Msg("API Enabled")
	if c.API.Enabled {
		logger.Info().
			Str("host", c.API.Host).
			Int("port", c.API.Port).
			Str("firmware_dir", c.API.FirmwareDir).
			Msg("API Server")
	}

	logger.Info().Msg("-----------------------------")
}
