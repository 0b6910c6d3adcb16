package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pmanickam80/device-qa-inspection/internal/domain"
	"github.com/pmanickam80/device-qa-inspection/internal/inspect"
)

// ReportStore implements report history persistence backed by SQLite.
type ReportStore struct {
	db *DB
}

// NewReportStore creates a new SQLite-backed report store.
func NewReportStore(db *DB) *ReportStore {
	return &ReportStore{db: db}
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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (id, device_type, condition_score, overall_condition,
			defects, recommendations, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			device_type=excluded.device_type, condition_score=excluded.condition_score,
			overall_condition=excluded.overall_condition, defects=excluded.defects,
			recommendations=excluded.recommendations, created_at=excluded.created_at`,
		report.ID.String(), report.DeviceType, report.ConditionScore,
		string(report.OverallCondition), string(defects), string(recommendations),
		report.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

// Get retrieves a report by ID.
func (s *ReportStore) Get(ctx context.Context, id string) (*domain.Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, device_type, condition_score, overall_condition,
			defects, recommendations, created_at
		FROM reports WHERE id = ?`, id)
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
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	result, err := s.db.ExecContext(ctx, "DELETE FROM reports WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return inspect.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (*domain.Report, error) {
	var (
		id              string
		deviceType      string
		score           int
		condition       string
		defectsJSON     string
		recsJSON        string
		createdAt       time.Time
	)
	if err := row.Scan(&id, &deviceType, &score, &condition, &defectsJSON, &recsJSON, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inspect.ErrNotFound
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}

	reportID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse report id: %w", err)
	}

	var defects []domain.Defect
	if err := json.Unmarshal([]byte(defectsJSON), &defects); err != nil {
		return nil, fmt.Errorf("unmarshal defects: %w", err)
	}
	var recommendations []string
	if err := json.Unmarshal([]byte(recsJSON), &recommendations); err != nil {
		return nil, fmt.Errorf("unmarshal recommendations: %w", err)
	}

	return &domain.Report{
		ID:               reportID,
		DeviceType:       deviceType,
		ConditionScore:   score,
		OverallCondition: domain.Condition(condition),
		Defects:          defects,
		Recommendations:  recommendations,
		Timestamp:        createdAt,
	}, nil
}
