// Package config merges the board's configuration from a YAML file,
// VOICEBOARD_* environment variables, and command-line flags. Flags win
// over env, env wins over file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Storage struct {
		// DBPath is the Pebble database directory.
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Recording struct {
		// CountdownSeconds is the fixed recording length.
		CountdownSeconds int `yaml:"countdown_seconds"`
		// PlatformFamily overrides platform detection for the recording
		// container choice (e.g. "apple" forces audio/mp4).
		PlatformFamily string `yaml:"platform_family"`
	} `yaml:"recording"`
	Maintenance struct {
		// Schedule is a cron expression for the periodic capacity
		// recompute; empty disables the loop.
		Schedule string `yaml:"schedule"`
	} `yaml:"maintenance"`
}

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	c.Storage.DBPath = "./.voiceboard"
	c.Log.Level = "info"
	c.Recording.CountdownSeconds = 5
	return c
}

// Load reads the YAML file at path into the defaults and applies
// environment overrides. A missing file is not an error; a malformed one
// is.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(b, &c); err != nil {
				return c, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return c, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	c.applyEnv()
	if c.Recording.CountdownSeconds <= 0 {
		c.Recording.CountdownSeconds = 5
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("VOICEBOARD_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("VOICEBOARD_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("VOICEBOARD_COUNTDOWN_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Recording.CountdownSeconds = n
		}
	}
	if v := os.Getenv("VOICEBOARD_PLATFORM_FAMILY"); v != "" {
		c.Recording.PlatformFamily = v
	}
	if v := os.Getenv("VOICEBOARD_MAINTENANCE_SCHEDULE"); v != "" {
		c.Maintenance.Schedule = v
	}
}

// ResolveConfigPath picks the config file path: an explicitly set flag
// wins, then the env var, then the flag default.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet {
		return flagVal
	}
	if v := os.Getenv("VOICEBOARD_CONFIG"); v != "" {
		return v
	}
	return flagVal
}
