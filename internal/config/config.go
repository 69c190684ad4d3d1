package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	DefaultEndpoint = "https://visual.volcengineapi.com"
	DefaultHost     = "visual.volcengineapi.com"
	DefaultRegion   = "cn-north-1"
	DefaultService  = "cv"
	DefaultReqKey   = "jimeng_high_aes_general_v21_L"
)

// ErrMissingCredentials reports that no Volcengine access key pair is
// configured. It is distinct from any signing or transport failure.
var ErrMissingCredentials = errors.New("access key and secret key are not configured")

type Config struct {
	Jimeng JimengConfig `json:"jimeng"`
}

type JimengConfig struct {
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey"`
	Endpoint  string `json:"endpoint,omitempty"`
	Host      string `json:"host,omitempty"`
	Region    string `json:"region,omitempty"`
	Service   string `json:"service,omitempty"`
	ReqKey    string `json:"reqKey,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Jimeng: JimengConfig{
			Endpoint: DefaultEndpoint,
			Host:     DefaultHost,
			Region:   DefaultRegion,
			Service:  DefaultService,
			ReqKey:   DefaultReqKey,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".jimengpic")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	// A .env in the working directory is convenient for MCP hosts that
	// launch the server without a login shell. Absence is not an error.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("JIMENG_ACCESS_KEY"); key != "" {
		cfg.Jimeng.AccessKey = key
	}
	if key := os.Getenv("VOLC_ACCESSKEY"); key != "" && cfg.Jimeng.AccessKey == "" {
		cfg.Jimeng.AccessKey = key
	}
	if key := os.Getenv("JIMENG_SECRET_KEY"); key != "" {
		cfg.Jimeng.SecretKey = key
	}
	if key := os.Getenv("VOLC_SECRETKEY"); key != "" && cfg.Jimeng.SecretKey == "" {
		cfg.Jimeng.SecretKey = key
	}
	if endpoint := os.Getenv("JIMENG_ENDPOINT"); endpoint != "" {
		cfg.Jimeng.Endpoint = endpoint
	}
	if host := os.Getenv("JIMENG_HOST"); host != "" {
		cfg.Jimeng.Host = host
	}
	if region := os.Getenv("JIMENG_REGION"); region != "" {
		cfg.Jimeng.Region = region
	}
	if service := os.Getenv("JIMENG_SERVICE"); service != "" {
		cfg.Jimeng.Service = service
	}
	if reqKey := os.Getenv("JIMENG_REQ_KEY"); reqKey != "" {
		cfg.Jimeng.ReqKey = reqKey
	}

	if cfg.Jimeng.Endpoint == "" {
		cfg.Jimeng.Endpoint = DefaultEndpoint
	}
	if cfg.Jimeng.Host == "" {
		cfg.Jimeng.Host = DefaultHost
	}
	if cfg.Jimeng.Region == "" {
		cfg.Jimeng.Region = DefaultRegion
	}
	if cfg.Jimeng.Service == "" {
		cfg.Jimeng.Service = DefaultService
	}
	if cfg.Jimeng.ReqKey == "" {
		cfg.Jimeng.ReqKey = DefaultReqKey
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0600)
}

// HasCredentials reports whether both halves of the key pair are set.
func (c *Config) HasCredentials() bool {
	return c.Jimeng.AccessKey != "" && c.Jimeng.SecretKey != ""
}

// ValidateCredentials returns ErrMissingCredentials when either key is
// absent, so callers can surface the configuration problem before any
// signing attempt.
func (c *Config) ValidateCredentials() error {
	if !c.HasCredentials() {
		return ErrMissingCredentials
	}
	return nil
}
