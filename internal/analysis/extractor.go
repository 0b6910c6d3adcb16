package analysis

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/pmanickam80/device-qa-inspection/internal/domain"
)

// Extractor pulls a structured defect report out of free-form model output.
// The text may be prose, may wrap JSON in a fenced code block, and may carry
// leading or trailing commentary. Extraction is best-effort: anything that
// does not decode is declined silently, because upstream output quality is
// not guaranteed and a missed turn must not break the session.
type Extractor struct {
	fenceRegex *regexp.Regexp
	logger     *slog.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		// Matches a fenced code block with an optional language hint
		fenceRegex: regexp.MustCompile("(?s)```(?:\\w+)?\\s*\\n?(.+?)```"),
		logger:     logger,
	}
}

// reportPayload is the wire shape the analyzer is instructed to produce.
type reportPayload struct {
	DeviceType       string           `json:"device_type"`
	ConditionScore   int              `json:"condition_score"`
	OverallCondition string           `json:"overall_condition"`
	Defects          []defectPayload  `json:"defects"`
	Recommendations  []string         `json:"recommendations"`
	Timestamp        string           `json:"timestamp"`
}

type defectPayload struct {
	Type        string `json:"type"`
	Location    string `json:"location"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Size        string `json:"size,omitempty"`
}

// Extract attempts to decode a defect report from one completed turn of model
// output. The second return value is false when extraction was declined.
func (e *Extractor) Extract(text string) (*domain.Report, bool) {
	if m := e.fenceRegex.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var payload reportPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		e.logger.Debug("declined unparsable analyzer output", "error", err)
		return nil, false
	}
	if payload.DeviceType == "" {
		e.logger.Debug("declined analyzer output without device type")
		return nil, false
	}

	defects := make([]domain.Defect, 0, len(payload.Defects))
	for _, d := range payload.Defects {
		defects = append(defects, domain.Defect{
			Type:        d.Type,
			Location:    d.Location,
			Severity:    domain.ParseSeverity(d.Severity),
			Description: d.Description,
			Size:        d.Size,
		})
	}

	ts, err := time.Parse(time.RFC3339, payload.Timestamp)
	if err != nil {
		// Absent or unparsable timestamp: fill with the current time.
		ts = time.Now()
	}

	report := domain.NewReport(
		payload.DeviceType,
		payload.ConditionScore,
		domain.ParseCondition(payload.OverallCondition),
		defects,
		payload.Recommendations,
		ts,
	)
	return report, true
}
