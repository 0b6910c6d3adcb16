// Package export writes inspection reports to spreadsheet files.
package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/pmanickam80/device-qa-inspection/internal/domain"
)

const (
	summarySheet         = "Summary"
	defectsSheet         = "Defects"
	recommendationsSheet = "Recommendations"
)

var summaryHeader = []string{"Report ID", "Device Type", "Condition Score", "Overall Condition", "Defect Count", "Timestamp"}
var defectsHeader = []string{"Report ID", "Device Type", "Defect Type", "Location", "Severity", "Description", "Size"}
var recommendationsHeader = []string{"Report ID", "Device Type", "Recommendation"}

// WriteXLSX writes the given reports to path as a multi-sheet workbook.
// Reports that carry the device-not-detected sentinel are skipped.
func WriteXLSX(path string, reports []*domain.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("renaming summary sheet: %w", err)
	}
	if _, err := f.NewSheet(defectsSheet); err != nil {
		return fmt.Errorf("creating defects sheet: %w", err)
	}
	if _, err := f.NewSheet(recommendationsSheet); err != nil {
		return fmt.Errorf("creating recommendations sheet: %w", err)
	}

	if err := writeRow(f, summarySheet, 1, toAny(summaryHeader)); err != nil {
		return err
	}
	if err := writeRow(f, defectsSheet, 1, toAny(defectsHeader)); err != nil {
		return err
	}
	if err := writeRow(f, recommendationsSheet, 1, toAny(recommendationsHeader)); err != nil {
		return err
	}

	summaryRow, defectRow, recRow := 2, 2, 2
	for _, r := range reports {
		if !r.DeviceDetected() {
			continue
		}
		id := r.ID.String()
		ts := r.Timestamp.Format("2006-01-02 15:04:05")
		if err := writeRow(f, summarySheet, summaryRow, []any{
			id, r.DeviceType, r.ConditionScore, string(r.OverallCondition), len(r.Defects), ts,
		}); err != nil {
			return err
		}
		summaryRow++

		for _, d := range r.Defects {
			if err := writeRow(f, defectsSheet, defectRow, []any{
				id, r.DeviceType, d.Type, d.Location, string(d.Severity), d.Description, d.Size,
			}); err != nil {
				return err
			}
			defectRow++
		}

		for _, rec := range r.Recommendations {
			if err := writeRow(f, recommendationsSheet, recRow, []any{id, r.DeviceType, rec}); err != nil {
				return err
			}
			recRow++
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook to %s: %w", path, err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing %s row %d: %w", strings.ToLower(sheet), row, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
