package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pmanickam80/device-qa-inspection/internal/domain"
	"github.com/pmanickam80/device-qa-inspection/internal/inspect"
)

const schema = `
CREATE TABLE IF NOT EXISTS reports (
    id                UUID PRIMARY KEY,
    device_type       TEXT NOT NULL,
    condition_score   INTEGER NOT NULL,
    overall_condition TEXT NOT NULL,
    defects           JSONB NOT NULL,
    recommendations   JSONB NOT NULL,
    created_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports (created_at DESC);
`

// ReportStore implements report history persistence backed by Postgres, for
// deployments where several inspection stations share one history.
type ReportStore struct {
	pool *pgxpool.Pool
}

// NewReportStore connects to the database and ensures the schema exists.
func NewReportStore(ctx context.Context, databaseURL string) (*ReportStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &ReportStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *ReportStore) Close() {
	s.pool.Close()
}

// Save persists a report (insert or update).
func (s *ReportStore) Save(ctx context.Context, report *domain.Report) error {
	defects, err := json.Marshal(report.Defects)
	if err != nil {
		return fmt.Errorf("marshal defects: %w", err)
	}
	recommendations, err := json.Marshal(report.Recommendations)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO reports (id, device_type, condition_score, overall_condition,
			defects, recommendations, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			device_type=EXCLUDED.device_type, condition_score=EXCLUDED.condition_score,
			overall_condition=EXCLUDED.overall_condition, defects=EXCLUDED.defects,
			recommendations=EXCLUDED.recommendations, created_at=EXCLUDED.created_at`,
		report.ID, report.DeviceType, report.ConditionScore,
		string(report.OverallCondition), defects, recommendations, report.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

// Get retrieves a report by ID.
func (s *ReportStore) Get(ctx context.Context, id string) (*domain.Report, error) {
	reportID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse report id: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		SELECT id, device_type, condition_score, overall_condition,
			defects, recommendations, created_at
		FROM reports WHERE id = $1`, reportID)
	return scanReport(row)
}

// List returns up to limit reports, newest first. A non-positive limit
// returns everything.
func (s *ReportStore) List(ctx context.Context, limit int) ([]*domain.Report, error) {
	query := `
		SELECT id, device_type, condition_score, overall_condition,
			defects, recommendations, created_at
		FROM reports ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []*domain.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// Delete removes a report from history.
func (s *ReportStore) Delete(ctx context.Context, id string) error {
	reportID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("parse report id: %w", err)
	}

	tag, err := s.pool.Exec(ctx, "DELETE FROM reports WHERE id = $1", reportID)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return inspect.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*domain.Report, error) {
	var report domain.Report
	var condition string
	var defects, recommendations []byte

	err := row.Scan(&report.ID, &report.DeviceType, &report.ConditionScore,
		&condition, &defects, &recommendations, &report.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, inspect.ErrNotFound
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}

	report.OverallCondition = domain.Condition(condition)
	if err := json.Unmarshal(defects, &report.Defects); err != nil {
		return nil, fmt.Errorf("unmarshal defects: %w", err)
	}
	if err := json.Unmarshal(recommendations, &report.Recommendations); err != nil {
		return nil, fmt.Errorf("unmarshal recommendations: %w", err)
	}
	return &report, nil
}

// Ensure the Postgres store implements the storage interface.
var _ inspect.ReportStore = (*ReportStore)(nil)
