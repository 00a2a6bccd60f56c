package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Display  DisplayConfig  `json:"display"`
	MQTT     MQTTConfig     `json:"mqtt"`
	Cache    CacheConfig    `json:"cache"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Port string `json:"port"`
	Host string `json:"host"`
}

// DatabaseConfig represents backing store configuration
type DatabaseConfig struct {
	Path string `json:"path"`
}

// DisplayConfig controls human-facing timestamp formatting.
// Stored values stay UTC regardless of this setting.
type DisplayConfig struct {
	Timezone string `json:"timezone"`
}

// MQTTConfig configures the optional MQTT ingestion bridge.
// An empty broker URL disables the bridge.
type MQTTConfig struct {
	BrokerURL string `json:"broker_url"`
	ClientID  string `json:"client_id"`
	Topic     string `json:"topic"`
}

// CacheConfig configures the optional redis live-value cache.
// An empty address disables caching.
type CacheConfig struct {
	RedisAddr string `json:"redis_addr"`
}

// LoadConfig loads configuration from a JSON file
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.json"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	config.applyEnv()

	return &config, nil
}

// LoadConfigWithDefaults loads config with fallback to defaults if file doesn't exist
func LoadConfigWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.json"
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			config = &Config{}
			config.applyDefaults()
			config.applyEnv()
			return config, nil
		}
		return nil, err
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "3000"
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Database.Path == "" {
		c.Database.Path = "telemetry.db"
	}
	if c.Display.Timezone == "" {
		c.Display.Timezone = "America/Mexico_City"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "telemetryd-ingest"
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "telemetry/ingest/#"
	}
}

// applyEnv lets deployment environments override the file without editing it.
// PORT and TELEMETRY_DB are the two values most deployments set.
func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Database.Path = getEnv("TELEMETRY_DB", c.Database.Path)
	c.Display.Timezone = getEnv("DISPLAY_TZ", c.Display.Timezone)
	c.MQTT.BrokerURL = getEnv("MQTT_BROKER", c.MQTT.BrokerURL)
	c.Cache.RedisAddr = getEnv("REDIS_ADDR", c.Cache.RedisAddr)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
