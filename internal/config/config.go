package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DailyCap             int64  `yaml:"daily_cap"`
	FreeTierThreshold    int64  `yaml:"free_tier_threshold"`
	ReferralCredit       int64  `yaml:"referral_credit"`
	RotationThreshold    int    `yaml:"rotation_threshold"`
	RotationWindowHours  int    `yaml:"rotation_window_hours"`
	VerificationTTLHours int    `yaml:"verification_ttl_hours"`
	SweepIntervalMinutes int    `yaml:"sweep_interval_minutes"`
	ReportIntervalHours  int    `yaml:"report_interval_hours"`
	WordTarget           int    `yaml:"word_target"`
	ModelId              string `yaml:"model_id"`
}

func (c *Config) RotationWindow() time.Duration {
	return time.Duration(c.RotationWindowHours) * time.Hour
}

func (c *Config) VerificationTTL() time.Duration {
	return time.Duration(c.VerificationTTLHours) * time.Hour
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

func (c *Config) ReportInterval() time.Duration {
	return time.Duration(c.ReportIntervalHours) * time.Hour
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		DailyCap:             20,
		FreeTierThreshold:    10,
		ReferralCredit:       20,
		RotationThreshold:    1300,
		RotationWindowHours:  24,
		VerificationTTLHours: 24,
		SweepIntervalMinutes: 10,
		ReportIntervalHours:  24,
		WordTarget:           150,
		ModelId:              "gemini-2.0-flash-lite",
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// Credentials reads the ordered upstream API key list from the environment.
// Keys are comma-separated; the order determines rotation order.
func Credentials() []string {
	raw := os.Getenv("GEMINI_API_KEYS")
	if raw == "" {
		return nil
	}
	keys := make([]string, 0)
	for _, key := range strings.Split(raw, ",") {
		key = strings.TrimSpace(key)
		if key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}
