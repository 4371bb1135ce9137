// Package config provides configuration helpers for go-candles commands.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default configuration locations.
const (
	DefaultConfigPath = "candles.yaml"
	DefaultEnvFile    = ".env"
	EnvConfigPath     = "CANDLES_CONFIG"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{DefaultEnvFile}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ConfigPath returns the config file path from CANDLES_CONFIG,
// falling back to the provided default.
func ConfigPath(defaultPath string) string {
	return String(EnvConfigPath, defaultPath)
}

// LoadFile decodes a YAML or JSON file into v. The format is chosen by
// extension; unknown extensions are parsed as YAML.
// A missing file returns fs.ErrNotExist so callers can fall back to defaults.
func LoadFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse json config: %w", err)
		}
		return nil
	}

	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse yaml config: %w", err)
	}
	return nil
}

// String returns the env var value or the default if unset or empty.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Int returns the env var parsed as int, or the default.
func Int(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Float returns the env var parsed as float64, or the default.
func Float(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// Bool returns the env var parsed as bool, or the default.
func Bool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
