package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"time"

	"github.com/pmanickam80/device-qa-inspection/internal/camera"
	"github.com/pmanickam80/device-qa-inspection/internal/config"
	"github.com/pmanickam80/device-qa-inspection/internal/device"
	"github.com/pmanickam80/device-qa-inspection/internal/inspect"
	"github.com/pmanickam80/device-qa-inspection/internal/live"
	"github.com/pmanickam80/device-qa-inspection/internal/queue"
	"github.com/pmanickam80/device-qa-inspection/internal/storage/postgres"
	"github.com/pmanickam80/device-qa-inspection/internal/storage/sqlite"
)

// app bundles the wired-up services behind every subcommand.
type app struct {
	cfg       *config.LocalConfig
	devqaDir  string
	inspector *inspect.Service
	bridge    *device.Bridge

	source   *camera.FFmpegSource
	sqliteDB *sqlite.DB
	pgStore  *postgres.ReportStore
	queue    *queue.Connection
}

// newApp loads configuration and wires the full inspection pipeline:
// camera source, live session, report store, optional queue publisher.
func newApp(ctx context.Context) (*app, error) {
	devqaDir, err := config.EnsureDevQADir()
	if err != nil {
		return nil, fmt.Errorf("ensure devqa dir: %w", err)
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if cfg.Live.APIKey == "" {
		return nil, fmt.Errorf("no API key configured (run 'devqa config set-key' or set LIVE_API_KEY)")
	}

	logger := slog.Default()
	a := &app{cfg: cfg, devqaDir: devqaDir}

	endpoint, err := liveEndpoint(cfg.Live)
	if err != nil {
		return nil, err
	}
	session := live.NewSession(live.SessionConfig{
		Endpoint:          endpoint,
		Model:             cfg.Live.Model,
		Instruction:       "You are a device quality inspector. Examine each frame for a physical device and describe its condition as JSON.",
		Temperature:       cfg.Live.Temperature,
		MaxReconnects:     cfg.Live.MaxReconnects,
		ReconnectInterval: time.Duration(cfg.Live.ReconnectInterval) * time.Second,
	}, logger)

	fps := int(cfg.Camera.FPS)
	if fps < 1 {
		fps = 1
	}
	a.source = camera.NewFFmpegSource(camera.FFmpegConfig{
		Devices:      map[camera.Facing]string{camera.FacingEnvironment: cfg.Camera.Device},
		Width:        cfg.Camera.Width,
		Height:       cfg.Camera.Height,
		FramesPerSec: fps,
	}, logger)

	var store inspect.ReportStore
	switch cfg.Storage.Backend {
	case "postgres":
		pg, err := postgres.NewReportStore(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		a.pgStore = pg
		store = pg
	default:
		path := cfg.Storage.SQLitePath
		if path == "" {
			path = filepath.Join(devqaDir, "reports", "reports.db")
		}
		db, err := sqlite.Open(path)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			a.close()
			return nil, fmt.Errorf("migrate sqlite store: %w", err)
		}
		a.sqliteDB = db
		store = sqlite.NewReportStore(db)
	}

	var publisher inspect.Publisher
	if cfg.Queue.Enabled && cfg.Queue.RabbitMQURL != "" {
		conn, err := queue.NewConnection(cfg.Queue.RabbitMQURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		a.queue = conn
		publisher = queue.NewPublisher(conn)
	}

	prompt := cfg.Inspect.Prompt
	if prompt == "" {
		prompt = config.DefaultPrompt
	}
	a.inspector = inspect.NewService(session, a.source, store, publisher, inspect.Config{
		Prompt:        prompt,
		ReportTimeout: time.Duration(cfg.Inspect.ReportTimeoutSeconds) * time.Second,
	}, logger)

	a.bridge = device.NewBridge(device.Config{}, logger)

	return a, nil
}

// liveEndpoint appends the API key to the service URL as a query parameter.
func liveEndpoint(cfg config.LiveConfig) (string, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse live endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", cfg.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (a *app) close() {
	if a.inspector != nil {
		a.inspector.Close()
	}
	if a.source != nil {
		a.source.Close()
	}
	if a.sqliteDB != nil {
		a.sqliteDB.Close()
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.queue != nil {
		a.queue.Close()
	}
}

// exportDir is where timestamped workbook exports land.
func (a *app) exportDir() string {
	return filepath.Join(a.devqaDir, "exports")
}
