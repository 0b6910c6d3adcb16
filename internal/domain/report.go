package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeviceNotDetected is the device type the analyzer reports when no device is
// visible in the frame. Such reports are still valid results and are delivered
// to subscribers, but they are excluded from persisted history.
const DeviceNotDetected = "No Device Detected"

// Condition is the overall condition category assigned to a device.
type Condition string

const (
	ConditionDamaged   Condition = "Damaged"
	ConditionPoor      Condition = "Poor"
	ConditionFair      Condition = "Fair"
	ConditionGood      Condition = "Good"
	ConditionExcellent Condition = "Excellent"
	ConditionUnknown   Condition = "Unknown"
)

// ParseCondition maps a free-form condition label to a known category.
// Anything unrecognized becomes ConditionUnknown rather than an error, since
// the label originates from model output.
func ParseCondition(s string) Condition {
	switch Condition(s) {
	case ConditionDamaged, ConditionPoor, ConditionFair, ConditionGood, ConditionExcellent:
		return Condition(s)
	default:
		return ConditionUnknown
	}
}

// Severity classifies how serious an individual defect is.
type Severity string

const (
	SeverityMinor    Severity = "Minor"
	SeverityModerate Severity = "Moderate"
	SeveritySevere   Severity = "Severe"
)

// ParseSeverity maps a free-form severity label to a known level, defaulting
// to SeverityMinor for unrecognized input.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityMinor, SeverityModerate, SeveritySevere:
		return Severity(s)
	default:
		return SeverityMinor
	}
}

// Defect is a single observed flaw on an inspected device.
type Defect struct {
	Type        string   `json:"type"`
	Location    string   `json:"location"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Size        string   `json:"size,omitempty"`
}

// Report is the structured outcome of analyzing one captured frame.
// Reports are immutable after creation.
type Report struct {
	ID               uuid.UUID `json:"id"`
	DeviceType       string    `json:"device_type"`
	ConditionScore   int       `json:"condition_score"` // 1-10, 0 means undetermined
	OverallCondition Condition `json:"overall_condition"`
	Defects          []Defect  `json:"defects"`
	Recommendations  []string  `json:"recommendations"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewReport creates a report with a fresh ID and the given timestamp.
// A zero timestamp is filled with the current time.
func NewReport(deviceType string, score int, condition Condition, defects []Defect, recommendations []string, ts time.Time) *Report {
	if ts.IsZero() {
		ts = time.Now()
	}
	if score < 0 || score > 10 {
		score = 0
	}
	return &Report{
		ID:               uuid.New(),
		DeviceType:       deviceType,
		ConditionScore:   score,
		OverallCondition: condition,
		Defects:          defects,
		Recommendations:  recommendations,
		Timestamp:        ts,
	}
}

// NewFallbackReport builds the undetermined report a caller synthesizes when
// no analysis arrives within its deadline.
func NewFallbackReport() *Report {
	return NewReport(
		"Unknown",
		0,
		ConditionUnknown,
		nil,
		[]string{"Analysis did not complete; retry with better lighting and a steady frame."},
		time.Now(),
	)
}

// Undetermined reports carry no usable condition score.
func (r *Report) Undetermined() bool {
	return r.ConditionScore == 0
}

// DeviceDetected reports whether the analyzer saw a device at all.
func (r *Report) DeviceDetected() bool {
	return r.DeviceType != DeviceNotDetected
}
