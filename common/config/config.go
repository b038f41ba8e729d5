// Package config loads service configuration from environment variables,
// with an optional YAML file read first to seed defaults an operator wants
// to check into a deploy repo rather than template into env.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// GetEnv retrieves an environment variable or returns a default value.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// MustGetEnv retrieves an environment variable or panics if not set.
func MustGetEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic("required environment variable not set: " + key)
	}
	return value
}

// Overlay is an optional file-based set of defaults, loaded before env
// vars are applied. Env vars always win over values present here.
type Overlay map[string]string

// LoadOverlay reads a YAML file of string key/value pairs. A missing file
// is not an error — it simply yields an empty overlay.
func LoadOverlay(path string) (Overlay, error) {
	if path == "" {
		return Overlay{}, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Overlay{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config overlay %s: %w", path, err)
	}
	var overlay Overlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse config overlay %s: %w", path, err)
	}
	if overlay == nil {
		overlay = Overlay{}
	}
	return overlay, nil
}

// Get returns key from the environment, falling back to the overlay, then
// to defaultValue.
func (o Overlay) Get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := o[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

// GetInt is Get for integer values. Unparseable values fall back to
// defaultValue rather than failing startup.
func (o Overlay) GetInt(key string, defaultValue int) int {
	value := o.Get(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
