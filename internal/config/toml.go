// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file. Pointer fields stay nil
// when a value is not set, so later layers only override what is present.
// The env tags map the same fields to KICKTRAIN_* variables.
type FileConfig struct {
	LogLevel *string       `toml:"log-level" env:"LOG_LEVEL"`
	Play     PlayConfig    `toml:"play" envPrefix:"PLAY_"`
	Storage  StorageConfig `toml:"storage" envPrefix:"STORAGE_"`
	Sensor   SensorConfig  `toml:"sensor" envPrefix:"SENSOR_"`
	Metrics  MetricsConfig `toml:"metrics" envPrefix:"METRICS_"`
}

// PlayConfig maps session settings.
type PlayConfig struct {
	Mode            *string `toml:"mode" env:"MODE"`
	Goal            *int    `toml:"goal" env:"GOAL"`
	Perfection      *int    `toml:"perfection" env:"PERFECTION"`
	Rounds          *int    `toml:"rounds" env:"ROUNDS"`
	DisplayHoldMs   *int    `toml:"display-hold-ms" env:"DISPLAY_HOLD_MS"`
	AutosaveSeconds *int    `toml:"autosave-seconds" env:"AUTOSAVE_SECONDS"`
}

// StorageConfig selects the key-value backend.
type StorageConfig struct {
	Backend       *string `toml:"backend" env:"BACKEND"`
	Path          *string `toml:"path" env:"PATH"`
	RedisAddr     *string `toml:"redis-addr" env:"REDIS_ADDR"`
	RedisPassword *string `toml:"redis-password" env:"REDIS_PASSWORD"`
	RedisDB       *int    `toml:"redis-db" env:"REDIS_DB"`
}

// SensorConfig maps the MQTT sensor bridge.
type SensorConfig struct {
	Broker   *string `toml:"broker" env:"BROKER"`
	Topic    *string `toml:"topic" env:"TOPIC"`
	ClientID *string `toml:"client-id" env:"CLIENT_ID"`
}

// MetricsConfig maps the Prometheus endpoint.
type MetricsConfig struct {
	Addr *string `toml:"addr" env:"ADDR"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Overlay returns c with every field set in o replacing the value in c.
func (c FileConfig) Overlay(o FileConfig) FileConfig {
	pick(&c.LogLevel, o.LogLevel)
	pick(&c.Play.Mode, o.Play.Mode)
	pick(&c.Play.Goal, o.Play.Goal)
	pick(&c.Play.Perfection, o.Play.Perfection)
	pick(&c.Play.Rounds, o.Play.Rounds)
	pick(&c.Play.DisplayHoldMs, o.Play.DisplayHoldMs)
	pick(&c.Play.AutosaveSeconds, o.Play.AutosaveSeconds)
	pick(&c.Storage.Backend, o.Storage.Backend)
	pick(&c.Storage.Path, o.Storage.Path)
	pick(&c.Storage.RedisAddr, o.Storage.RedisAddr)
	pick(&c.Storage.RedisPassword, o.Storage.RedisPassword)
	pick(&c.Storage.RedisDB, o.Storage.RedisDB)
	pick(&c.Sensor.Broker, o.Sensor.Broker)
	pick(&c.Sensor.Topic, o.Sensor.Topic)
	pick(&c.Sensor.ClientID, o.Sensor.ClientID)
	pick(&c.Metrics.Addr, o.Metrics.Addr)
	return c
}

func pick[T any](dst **T, v *T) {
	if v != nil {
		*dst = v
	}
}
