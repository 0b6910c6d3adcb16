package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalConfig holds configuration for local CLI mode
type LocalConfig struct {
	Live    LiveConfig    `yaml:"live"`
	Camera  CameraConfig  `yaml:"camera"`
	Storage StorageConfig `yaml:"storage"`
	Queue   QueueConfig   `yaml:"queue"`
	Inspect InspectConfig `yaml:"inspect"`
}

// LiveConfig holds settings for the streaming analysis service
type LiveConfig struct {
	Endpoint          string  `yaml:"endpoint"`
	Model             string  `yaml:"model"`
	Temperature       float64 `yaml:"temperature"`
	MaxReconnects     int     `yaml:"max_reconnects"`
	ReconnectInterval int     `yaml:"reconnect_interval_seconds"`
	APIKey            string  `yaml:"-"` // Loaded from secrets.yaml
}

// CameraConfig holds frame capture settings
type CameraConfig struct {
	Device string  `yaml:"device"`
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	FPS    float64 `yaml:"fps"`
}

// StorageConfig holds report persistence settings
type StorageConfig struct {
	Backend     string `yaml:"backend"` // sqlite, postgres
	SQLitePath  string `yaml:"sqlite_path,omitempty"`
	DatabaseURL string `yaml:"database_url,omitempty"`
}

// QueueConfig holds report publishing settings
type QueueConfig struct {
	Enabled     bool   `yaml:"enabled"`
	RabbitMQURL string `yaml:"rabbitmq_url,omitempty"`
}

// InspectConfig holds inspection run settings
type InspectConfig struct {
	Prompt               string `yaml:"prompt,omitempty"`
	ReportTimeoutSeconds int    `yaml:"report_timeout_seconds"`
}

// SecretsConfig holds API keys loaded from secrets.yaml
type SecretsConfig struct {
	Live struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"live"`
}

// DevQADir returns the path to ~/.devqa
func DevQADir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".devqa"), nil
}

// EnsureDevQADir creates ~/.devqa and subdirectories if they don't exist
func EnsureDevQADir() (string, error) {
	dir, err := DevQADir()
	if err != nil {
		return "", err
	}

	subdirs := []string{
		"",
		"logs",
		"reports",
		"exports",
	}

	for _, subdir := range subdirs {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Live: LiveConfig{
			Endpoint:          "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent",
			Model:             "models/gemini-2.0-flash-exp",
			Temperature:       0.4,
			MaxReconnects:     3,
			ReconnectInterval: 2,
		},
		Camera: CameraConfig{
			Device: "/dev/video0",
			Width:  1280,
			Height: 720,
			FPS:    2.0,
		},
		Storage: StorageConfig{
			Backend: "sqlite",
		},
		Queue: QueueConfig{
			Enabled: false,
		},
		Inspect: InspectConfig{
			ReportTimeoutSeconds: 30,
		},
	}
}

// LoadLocalConfig loads configuration from ~/.devqa/config.yaml
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := DevQADir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(dir, "config.yaml")
	cfg := DefaultLocalConfig()

	// A missing config file just means defaults; secrets are still loaded
	// below, since set-key writes only secrets.yaml.
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Load secrets (API keys)
	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	return cfg, nil
}

// loadSecrets loads API keys from secrets.yaml
func loadSecrets(dir string, cfg *LocalConfig) error {
	secretsPath := filepath.Join(dir, "secrets.yaml")

	// If secrets file doesn't exist, skip
	if _, err := os.Stat(secretsPath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(secretsPath)
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	if secrets.Live.APIKey != "" {
		cfg.Live.APIKey = secrets.Live.APIKey
	}

	return nil
}

// SaveLocalConfig saves configuration to ~/.devqa/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureDevQADir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(dir, "config.yaml")

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// SaveSecrets saves the analysis service API key to ~/.devqa/secrets.yaml
func SaveSecrets(apiKey string) error {
	dir, err := EnsureDevQADir()
	if err != nil {
		return err
	}

	secretsPath := filepath.Join(dir, "secrets.yaml")

	var secrets SecretsConfig
	secrets.Live.APIKey = apiKey

	data, err := yaml.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	// Write with restricted permissions (owner read/write only)
	if err := os.WriteFile(secretsPath, data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}

	return nil
}
