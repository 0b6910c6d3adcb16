package config

import (
	"fmt"
	"os"
	"strconv"
)

// DefaultPrompt is sent alongside every captured frame.
const DefaultPrompt = "Inspect the device shown in this frame. Report its type, " +
	"overall condition, a 1-10 condition score, every visible defect with " +
	"location and severity, and repair or resale recommendations. Respond with " +
	"a single JSON object."

// ApplyEnv overlays environment variable overrides onto a loaded local
// config, so a shared deployment (fleet database, central queue) can be
// configured without editing per-machine YAML. Unset variables leave the
// file-based values untouched.
func ApplyEnv(cfg *LocalConfig) error {
	cfg.Live.Endpoint = getEnv("LIVE_ENDPOINT", cfg.Live.Endpoint)
	cfg.Live.Model = getEnv("LIVE_MODEL", cfg.Live.Model)
	cfg.Live.APIKey = getEnv("LIVE_API_KEY", cfg.Live.APIKey)
	cfg.Live.MaxReconnects = getEnvInt("LIVE_MAX_RECONNECTS", cfg.Live.MaxReconnects)
	cfg.Live.ReconnectInterval = getEnvInt("LIVE_RECONNECT_INTERVAL", cfg.Live.ReconnectInterval)

	cfg.Camera.Device = getEnv("CAMERA_DEVICE", cfg.Camera.Device)
	cfg.Camera.Width = getEnvInt("CAMERA_WIDTH", cfg.Camera.Width)
	cfg.Camera.Height = getEnvInt("CAMERA_HEIGHT", cfg.Camera.Height)
	cfg.Camera.FPS = getEnvFloat("CAMERA_FPS", cfg.Camera.FPS)

	cfg.Storage.Backend = getEnv("STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.SQLitePath = getEnv("SQLITE_PATH", cfg.Storage.SQLitePath)
	cfg.Storage.DatabaseURL = getEnv("DATABASE_URL", cfg.Storage.DatabaseURL)

	cfg.Queue.Enabled = getEnvBool("QUEUE_ENABLED", cfg.Queue.Enabled)
	// A queue URL in the environment implies publishing is wanted.
	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		cfg.Queue.Enabled = true
		cfg.Queue.RabbitMQURL = url
	}

	cfg.Inspect.Prompt = getEnv("INSPECT_PROMPT", cfg.Inspect.Prompt)
	cfg.Inspect.ReportTimeoutSeconds = getEnvInt("REPORT_TIMEOUT", cfg.Inspect.ReportTimeoutSeconds)

	switch cfg.Storage.Backend {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage backend %q (want sqlite or postgres)", cfg.Storage.Backend)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
