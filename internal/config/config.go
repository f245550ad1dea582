package config

import (
	"os"
	"time"

	"dental-quest-service/internal/domain"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
		// CORSOrigins lists allowed browser origins; empty allows any.
		CORSOrigins []string `yaml:"corsOrigins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"maxSizeMB"`
		MaxBackups int    `yaml:"maxBackups"`
		MaxAgeDays int    `yaml:"maxAgeDays"`
	} `yaml:"log"`
	Assessment struct {
		// DefinitionTTL bounds how long loaded definitions are cached.
		DefinitionTTL string `yaml:"definitionTTL"`
		// Retention keeps finished attempts readable before the janitor drops them.
		Retention     string `yaml:"retention"`
		SweepInterval string `yaml:"sweepInterval"`
		PersistRetry  struct {
			InitialInterval string `yaml:"initialInterval"`
			MaxInterval     string `yaml:"maxInterval"`
			MaxElapsed      string `yaml:"maxElapsed"`
		} `yaml:"persistRetry"`
		PersistTimeout string `yaml:"persistTimeout"`
	} `yaml:"assessment"`
	Achievements []domain.AchievementRule `yaml:"achievements"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
