package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pmanickam80/device-qa-inspection/internal/config"
	"github.com/pmanickam80/device-qa-inspection/internal/export"
	"github.com/pmanickam80/device-qa-inspection/internal/inspect"
	"github.com/pmanickam80/device-qa-inspection/internal/storage/postgres"
	"github.com/pmanickam80/device-qa-inspection/internal/storage/sqlite"
)

// openStore wires only the report store, so history and export work without
// an API key or camera.
func openStore(ctx context.Context) (inspect.ReportStore, func(), error) {
	devqaDir, err := config.EnsureDevQADir()
	if err != nil {
		return nil, nil, fmt.Errorf("ensure devqa dir: %w", err)
	}
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, nil, err
	}

	if cfg.Storage.Backend == "postgres" {
		pg, err := postgres.NewReportStore(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return pg, pg.Close, nil
	}

	path := cfg.Storage.SQLitePath
	if path == "" {
		path = filepath.Join(devqaDir, "reports", "reports.db")
	}
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate sqlite store: %w", err)
	}
	return sqlite.NewReportStore(db), func() { db.Close() }, nil
}

// cmdHistory lists stored reports, newest first
func cmdHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("n", 20, "maximum number of reports to show")
	asJSON := fs.Bool("json", false, "print reports as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	reports, err := store.List(ctx, *limit)
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}

	if *asJSON {
		return json.NewEncoder(os.Stdout).Encode(reports)
	}

	if len(reports) == 0 {
		fmt.Println("No reports stored yet. Run 'devqa inspect' first.")
		return nil
	}

	for _, r := range reports {
		score := "-"
		if !r.Undetermined() {
			score = fmt.Sprintf("%d/10", r.ConditionScore)
		}
		fmt.Printf("%s  %-20s %-10s %s  defects: %d\n",
			r.Timestamp.Format("2006-01-02 15:04"),
			r.DeviceType, r.OverallCondition, score, len(r.Defects))
	}
	return nil
}

// cmdExport writes stored reports to an XLSX workbook
func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "", "output path (default: ~/.devqa/exports/reports-<timestamp>.xlsx)")
	limit := fs.Int("n", 0, "maximum number of reports to export (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	reports, err := store.List(ctx, *limit)
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}
	if len(reports) == 0 {
		return fmt.Errorf("no reports to export")
	}

	path := *out
	if path == "" {
		devqaDir, err := config.DevQADir()
		if err != nil {
			return err
		}
		name := fmt.Sprintf("reports-%s.xlsx", time.Now().Format("20060102-150405"))
		path = filepath.Join(devqaDir, "exports", name)
	}

	if err := export.WriteXLSX(path, reports); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	fmt.Printf("Exported %d reports to %s\n", len(reports), path)
	return nil
}
