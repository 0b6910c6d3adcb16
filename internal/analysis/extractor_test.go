package analysis

import (
	"testing"
	"time"

	"github.com/pmanickam80/device-qa-inspection/internal/domain"
)

func TestExtract_FencedJSON(t *testing.T) {
	e := NewExtractor(nil)

	input := "```json\n{\"device_type\":\"iPhone 12\",\"condition_score\":8,\"overall_condition\":\"Good\",\"defects\":[],\"recommendations\":[],\"timestamp\":\"\"}\n```"

	report, ok := e.Extract(input)
	if !ok {
		t.Fatal("Extract() declined; want a report")
	}

	if report.DeviceType != "iPhone 12" {
		t.Errorf("DeviceType = %q; want %q", report.DeviceType, "iPhone 12")
	}
	if report.ConditionScore != 8 {
		t.Errorf("ConditionScore = %d; want 8", report.ConditionScore)
	}
	if report.OverallCondition != domain.ConditionGood {
		t.Errorf("OverallCondition = %q; want %q", report.OverallCondition, domain.ConditionGood)
	}
	if len(report.Defects) != 0 {
		t.Errorf("Defects = %v; want empty", report.Defects)
	}
	if len(report.Recommendations) != 0 {
		t.Errorf("Recommendations = %v; want empty", report.Recommendations)
	}
	if report.Timestamp.IsZero() {
		t.Error("Timestamp should be filled when the payload omits it")
	}
}

func TestExtract_BareJSONWithCommentary(t *testing.T) {
	e := NewExtractor(nil)

	input := `Here is my assessment of the device:
{"device_type":"iPad Air","condition_score":5,"overall_condition":"Fair","defects":[{"type":"scratch","location":"back panel","severity":"Moderate","description":"long scratch across the logo","size":"3cm"}],"recommendations":["replace back panel"],"timestamp":"2026-08-26T10:30:00Z"}
Let me know if you need more detail.`

	report, ok := e.Extract(input)
	if !ok {
		t.Fatal("Extract() declined; want a report")
	}

	if len(report.Defects) != 1 {
		t.Fatalf("len(Defects) = %d; want 1", len(report.Defects))
	}
	d := report.Defects[0]
	if d.Severity != domain.SeverityModerate {
		t.Errorf("Severity = %q; want %q", d.Severity, domain.SeverityModerate)
	}
	if d.Size != "3cm" {
		t.Errorf("Size = %q; want %q", d.Size, "3cm")
	}

	want := time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC)
	if !report.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v; want %v", report.Timestamp, want)
	}
}

func TestExtract_NoBraces(t *testing.T) {
	e := NewExtractor(nil)

	if _, ok := e.Extract("Sorry, I can't see a device."); ok {
		t.Error("Extract() should decline text with no JSON object")
	}
}

func TestExtract_MalformedJSON(t *testing.T) {
	e := NewExtractor(nil)

	input := "```json\n{\"device_type\":\"iPhone 12\",\"condition_score\":8,}\n```"
	if _, ok := e.Extract(input); ok {
		t.Error("Extract() should decline malformed JSON")
	}
}

func TestExtract_MissingDeviceType(t *testing.T) {
	e := NewExtractor(nil)

	if _, ok := e.Extract(`{"condition_score":8}`); ok {
		t.Error("Extract() should decline payloads without a device type")
	}
}

func TestExtract_UnknownLabelsFallBack(t *testing.T) {
	e := NewExtractor(nil)

	input := `{"device_type":"Pixel 9","condition_score":3,"overall_condition":"mediocre","defects":[{"type":"crack","location":"screen","severity":"catastrophic","description":"spiderweb crack"}]}`

	report, ok := e.Extract(input)
	if !ok {
		t.Fatal("Extract() declined; want a report")
	}
	if report.OverallCondition != domain.ConditionUnknown {
		t.Errorf("OverallCondition = %q; want %q", report.OverallCondition, domain.ConditionUnknown)
	}
	if report.Defects[0].Severity != domain.SeverityMinor {
		t.Errorf("Severity = %q; want fallback %q", report.Defects[0].Severity, domain.SeverityMinor)
	}
}

func TestExtract_SentinelDeviceTypeStillEmitted(t *testing.T) {
	e := NewExtractor(nil)

	input := `{"device_type":"No Device Detected","condition_score":0,"overall_condition":"Unknown","defects":[],"recommendations":[]}`

	report, ok := e.Extract(input)
	if !ok {
		t.Fatal("Extract() declined; sentinel reports are valid results")
	}
	if report.DeviceDetected() {
		t.Error("sentinel report should not count as a detected device")
	}
}
