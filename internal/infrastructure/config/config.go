package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr            string `yaml:"addr"`
	LogLevel        string `yaml:"logLevel"`
	CORSAllowOrigin string `yaml:"corsAllowOrigin"`

	// ProfilerEnabled is the initial capture state; it can be flipped at
	// runtime through the config file watcher.
	ProfilerEnabled bool `yaml:"profilerEnabled"`

	// Storage backend selection: "memory" (default), "file" or "duckdb".
	Storage           string        `yaml:"storage"`
	StorageDir        string        `yaml:"storageDir"`
	MaxMemoryProfiles int `yaml:"maxMemoryProfiles"`
	// TTL is env-only (MEMORY_PROFILE_TTL_MINUTES); yaml durations are not
	// worth the custom unmarshalling here.
	MemoryProfileTTL time.Duration `yaml:"-"`

	// Optional YAML file layered over the environment; watched for changes
	// when set.
	ConfigFile string `yaml:"-"`
}

func FromEnv() Config {
	cfg := Config{
		Addr:            getEnv("ADDR", ":9180"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CORSAllowOrigin: getEnv("CORS_ALLOW_ORIGIN", "*"),
		Storage:         getEnv("STORAGE", "memory"),
		StorageDir:      getEnv("STORAGE_DIR", "./profiles"),
		ProfilerEnabled: true,
	}
	if v := os.Getenv("PROFILER_ENABLED"); v == "0" || v == "false" {
		cfg.ProfilerEnabled = false
	}
	cfg.MaxMemoryProfiles = getEnvInt("MAX_MEMORY_PROFILES", 1000)
	cfg.MemoryProfileTTL = time.Duration(getEnvInt("MEMORY_PROFILE_TTL_MINUTES", 120)) * time.Minute
	cfg.ConfigFile = getEnv("CONFIG_FILE", "")
	if cfg.ConfigFile != "" {
		if err := cfg.applyFile(cfg.ConfigFile); err != nil {
			// A broken config file must not prevent startup; env values win.
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
		}
	}
	return cfg
}

// applyFile overlays the YAML file onto the current values.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Reload re-reads the config file and returns the merged result. The
// receiver is not mutated.
func (c Config) Reload() (Config, error) {
	if c.ConfigFile == "" {
		return c, nil
	}
	next := c
	if err := next.applyFile(c.ConfigFile); err != nil {
		return c, err
	}
	return next, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
