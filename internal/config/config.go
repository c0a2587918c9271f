package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/n1-ro/recoverpro/internal/infra/storage"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Storage storage.Config `yaml:"storage"`
	Auth    struct {
		// Secret signs bearer tokens; set it in every deployment.
		Secret   string `yaml:"secret"`
		TokenTTL string `yaml:"token_ttl"`
		ResetTTL string `yaml:"reset_ttl"`
	} `yaml:"auth"`
	Assessment struct {
		ScenarioTTL string `yaml:"scenario_ttl"`
	} `yaml:"assessment"`
}

// Load reads YAML config from path. Environment variables override the
// secrets so config files never have to carry them.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("STORAGE_ACCESS_KEY"); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv("STORAGE_SECRET_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}
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
