package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/pmanickam80/device-qa-inspection/internal/domain"
)

func sampleReports(t *testing.T) []*domain.Report {
	t.Helper()
	ts := time.Date(2026, 8, 12, 14, 30, 0, 0, time.UTC)
	r1 := domain.NewReport("iPhone 12", 8, domain.ConditionGood,
		[]domain.Defect{
			{Type: "scratch", Location: "screen", Severity: domain.SeverityMinor, Description: "faint scratch", Size: "2mm"},
			{Type: "dent", Location: "back panel", Severity: domain.SeverityModerate, Description: "small dent near camera"},
		},
		[]string{"apply screen protector", "consider a case"},
		ts,
	)
	r1.ID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	r2 := domain.NewFallbackReport()
	return []*domain.Report{r1, r2}
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.xlsx")
	if err := WriteXLSX(path, sampleReports(t)); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer f.Close()

	for _, sheet := range []string{"Summary", "Defects", "Recommendations"} {
		if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
			t.Errorf("missing sheet %q", sheet)
		}
	}

	got, err := f.GetCellValue("Summary", "B2")
	if err != nil {
		t.Fatalf("reading summary cell: %v", err)
	}
	if got != "iPhone 12" {
		t.Errorf("Summary B2 = %q; want %q", got, "iPhone 12")
	}

	got, _ = f.GetCellValue("Summary", "E2")
	if got != "2" {
		t.Errorf("Summary E2 (defect count) = %q; want %q", got, "2")
	}

	// Fallback report is skipped, so there is exactly one data row.
	rows, err := f.GetRows("Summary")
	if err != nil {
		t.Fatalf("reading summary rows: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("summary rows = %d; want 2 (header + one report)", len(rows))
	}

	got, _ = f.GetCellValue("Defects", "E3")
	if got != string(domain.SeverityModerate) {
		t.Errorf("Defects E3 = %q; want %q", got, domain.SeverityModerate)
	}

	got, _ = f.GetCellValue("Recommendations", "C3")
	if got != "consider a case" {
		t.Errorf("Recommendations C3 = %q; want %q", got, "consider a case")
	}
}

func TestWriteXLSX_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	if err := WriteXLSX(path, nil); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Summary")
	if err != nil {
		t.Fatalf("reading summary rows: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("summary rows = %d; want 1 (header only)", len(rows))
	}
}
