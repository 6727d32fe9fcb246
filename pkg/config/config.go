package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ModelSettings struct {
		Model                 string  `yaml:"model" validate:"required"`
		Temperature           float64 `yaml:"temperature" validate:"gte=0,lte=2"`
		BaseURL               string  `yaml:"base_url" validate:"omitempty,url"`
		RequestTimeoutSeconds float64 `yaml:"request_timeout_seconds" validate:"gte=0"`
	} `yaml:"model_settings"`
	Reflection struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"reflection"`
	Readings struct {
		Path string `yaml:"path"`
	} `yaml:"readings"`
	Discord struct {
		MaxMessageLength int `yaml:"max_message_length" validate:"gte=100,lte=2000"`
	} `yaml:"discord"`
	Sessions struct {
		RecentReplies int     `yaml:"recent_replies" validate:"gte=1"`
		PreferenceTTL float64 `yaml:"preference_ttl_hours" validate:"gte=0"`
	} `yaml:"sessions"`
}

func defaults() *Config {
	config := &Config{}
	config.ModelSettings.Model = "o3-mini"
	config.ModelSettings.Temperature = 1
	config.Reflection.Enabled = true
	config.Readings.Path = "readings.txt"
	config.Discord.MaxMessageLength = 2000
	config.Sessions.RecentReplies = 256
	config.Sessions.PreferenceTTL = 24 * 7
	return config
}

// LoadConfig reads path over the built-in defaults. A missing file is not an
// error; the defaults are returned as-is.
func LoadConfig(path string) (*Config, error) {
	config := defaults()

	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return config, nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(file, config)
	if err != nil {
		return nil, err
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return config, nil
}

// LoadReadings returns the daily context payload. The payload is opaque; a
// missing file yields an empty payload and ok=false.
func LoadReadings(path string) (payload string, ok bool, err error) {
	if path == "" {
		return "", false, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read readings %s: %w", path, err)
	}
	return string(data), true, nil
}
