package sqlite

import "github.com/pmanickam80/device-qa-inspection/internal/inspect"

// Ensure the SQLite store implements the storage interface.
var _ inspect.ReportStore = (*ReportStore)(nil)
