package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// EnvPrefix prefixes every environment variable the trainer reads.
const EnvPrefix = "KICKTRAIN_"

// LoadEnv reads KICKTRAIN_* variables. Files in dotenv are loaded first when
// they exist; variables already set in the environment win.
func LoadEnv(dotenv ...string) (FileConfig, error) {
	for _, path := range dotenv {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			logrus.Warnf("failed to load %s: %v", path, err)
			continue
		}
		logrus.Debugf("loaded environment variables from %s", path)
	}
	var cfg FileConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return FileConfig{}, fmt.Errorf("failed to parse config from environment: %w", err)
	}
	return cfg, nil
}

// Load merges the TOML file at path with the environment.
func Load(path string, dotenv ...string) (FileConfig, error) {
	fileCfg, err := LoadConfig(path)
	if err != nil {
		return FileConfig{}, err
	}
	envCfg, err := LoadEnv(dotenv...)
	if err != nil {
		return FileConfig{}, err
	}
	return fileCfg.Overlay(envCfg), nil
}
