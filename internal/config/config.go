package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		AnswerSecret     string `yaml:"answer_secret"`
		LeaderboardLimit int    `yaml:"leaderboard_limit"`
	} `yaml:"quiz"`
	Cache struct {
		UserStateTTL    string `yaml:"user_state_ttl"`
		QuestionPoolTTL string `yaml:"question_pool_ttl"`
		LeaderboardTTL  string `yaml:"leaderboard_ttl"`
		MetricsTTL      string `yaml:"metrics_ttl"`
		IdempotencyTTL  string `yaml:"idempotency_ttl"`
	} `yaml:"cache"`
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

// TTLDuration parses a duration string or returns the fallback if empty or
// malformed.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
