// Package config loads application configuration from the environment, an
// optional .env file, and an optional YAML file.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	// SupabaseURL is the backend project base URL.
	SupabaseURL string `yaml:"supabase_url"`
	// SupabaseAnonKey is the anonymous API key.
	SupabaseAnonKey string `yaml:"supabase_anon_key"`
	// SupabaseServiceKey authorizes admin auth operations (invites).
	SupabaseServiceKey string `yaml:"supabase_service_key"`
	// AppDomainURL builds redirect targets for email-based auth flows.
	AppDomainURL string `yaml:"app_domain_url"`

	// ListenAddr is the HTTP gateway bind address.
	ListenAddr string `yaml:"listen_addr"`
	// StatePath is the JSON file for the persisted store slices.
	StatePath string `yaml:"state_path"`
	// Realtime enables the table-change websocket subscription.
	Realtime bool `yaml:"realtime"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey:    os.Getenv("SUPABASE_ANON_KEY"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		AppDomainURL:       os.Getenv("APP_DOMAIN_URL"),
		ListenAddr:         os.Getenv("LISTEN_ADDR"),
		StatePath:          os.Getenv("STATE_PATH"),
		Realtime:           os.Getenv("REALTIME") == "true",
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads configuration from a YAML file, with environment
// variables overriding file values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if v := os.Getenv("SUPABASE_URL"); v != "" {
		cfg.SupabaseURL = v
	}
	if v := os.Getenv("SUPABASE_ANON_KEY"); v != "" {
		cfg.SupabaseAnonKey = v
	}
	if v := os.Getenv("SUPABASE_SERVICE_KEY"); v != "" {
		cfg.SupabaseServiceKey = v
	}
	if v := os.Getenv("APP_DOMAIN_URL"); v != "" {
		cfg.AppDomainURL = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("STATE_PATH"); v != "" {
		cfg.StatePath = v
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.StatePath == "" {
		c.StatePath = "crowdcredit-state.json"
	}
}

// Validate checks the required fields.
func (c *Config) Validate() error {
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseAnonKey == "" {
		return fmt.Errorf("SUPABASE_ANON_KEY is required")
	}
	if c.AppDomainURL == "" {
		return fmt.Errorf("APP_DOMAIN_URL is required")
	}
	return nil
}
