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
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		QuestionTime       string `yaml:"question_time"`
		MaxPoints          int    `yaml:"max_points"`
		OptionsPerQuestion int    `yaml:"options_per_question"`
		MinQuestions       int    `yaml:"min_questions"`
		MaxQuestions       int    `yaml:"max_questions"`
		CodeDigits         int    `yaml:"code_digits"`
		RoomTTL            string `yaml:"room_ttl"`
		FinishGrace        string `yaml:"finish_grace"`
		SweepInterval      string `yaml:"sweep_interval"`
		ContentTTL         string `yaml:"content_ttl"`
	} `yaml:"quiz"`
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
