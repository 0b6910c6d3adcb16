package domain

import (
	"testing"
	"time"
)

func TestParseCondition(t *testing.T) {
	tests := []struct {
		input string
		want  Condition
	}{
		{"Damaged", ConditionDamaged},
		{"Poor", ConditionPoor},
		{"Fair", ConditionFair},
		{"Good", ConditionGood},
		{"Excellent", ConditionExcellent},
		{"", ConditionUnknown},
		{"pristine", ConditionUnknown},
	}

	for _, tt := range tests {
		if got := ParseCondition(tt.input); got != tt.want {
			t.Errorf("ParseCondition(%q) = %q; want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input string
		want  Severity
	}{
		{"Minor", SeverityMinor},
		{"Moderate", SeverityModerate},
		{"Severe", SeveritySevere},
		{"catastrophic", SeverityMinor},
		{"", SeverityMinor},
	}

	for _, tt := range tests {
		if got := ParseSeverity(tt.input); got != tt.want {
			t.Errorf("ParseSeverity(%q) = %q; want %q", tt.input, got, tt.want)
		}
	}
}

func TestNewReport_FillsZeroTimestamp(t *testing.T) {
	before := time.Now()
	r := NewReport("iPhone 12", 8, ConditionGood, nil, nil, time.Time{})

	if r.Timestamp.Before(before) {
		t.Errorf("Timestamp = %v; want >= %v", r.Timestamp, before)
	}
	if r.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("ID should not be the zero UUID")
	}
}

func TestNewReport_ClampsInvalidScore(t *testing.T) {
	for _, score := range []int{-1, 11, 42} {
		r := NewReport("iPhone 12", score, ConditionGood, nil, nil, time.Now())
		if r.ConditionScore != 0 {
			t.Errorf("ConditionScore = %d for input %d; want 0", r.ConditionScore, score)
		}
	}
}

func TestReport_Undetermined(t *testing.T) {
	if !NewFallbackReport().Undetermined() {
		t.Error("fallback report should be undetermined")
	}
	r := NewReport("iPad Air", 6, ConditionFair, nil, nil, time.Now())
	if r.Undetermined() {
		t.Error("scored report should not be undetermined")
	}
}

func TestReport_DeviceDetected(t *testing.T) {
	r := NewReport(DeviceNotDetected, 0, ConditionUnknown, nil, nil, time.Now())
	if r.DeviceDetected() {
		t.Error("sentinel device type should report no device detected")
	}
	if !NewReport("iPhone 12", 8, ConditionGood, nil, nil, time.Now()).DeviceDetected() {
		t.Error("real device type should report detected")
	}
}
