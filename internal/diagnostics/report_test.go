package diagnostics

import (
	"encoding/json"
	"testing"

	"github.com/griff-web/medai-client/internal/envelope"
)

func TestParseReportAcceptsValidBody(t *testing.T) {
	raw := json.RawMessage(`{
		"diagnosis": "Pneumonia suspected",
		"confidence": 87.5,
		"description": "Opacity in the lower right lobe.",
		"findings": ["lower lobe opacity", "mild effusion"],
		"model_version": "ignored-extra-field"
	}`)

	report, err := ParseReport(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Diagnosis != "Pneumonia suspected" {
		t.Fatalf("diagnosis = %q", report.Diagnosis)
	}
	if report.Confidence != 87.5 {
		t.Fatalf("confidence = %v", report.Confidence)
	}
	if len(report.Findings) != 2 || report.Findings[1] != "mild effusion" {
		t.Fatalf("findings = %v", report.Findings)
	}
}

func TestParseReportAllowsEmptyFindings(t *testing.T) {
	report, err := ParseReport(json.RawMessage(`{"diagnosis":"Normal","confidence":99,"findings":[]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Findings == nil || len(report.Findings) != 0 {
		t.Fatalf("findings = %#v, want empty non-nil slice", report.Findings)
	}
	if report.Description != "" {
		t.Fatalf("description = %q, want empty", report.Description)
	}
}

func TestParseReportRejectsMissingOrMistypedFields(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing diagnosis", `{"confidence":50,"findings":[]}`},
		{"missing confidence", `{"diagnosis":"x","findings":[]}`},
		{"missing findings", `{"diagnosis":"x","confidence":50}`},
		{"diagnosis not a string", `{"diagnosis":5,"confidence":50,"findings":[]}`},
		{"confidence not a number", `{"diagnosis":"x","confidence":"high","findings":[]}`},
		{"findings not an array", `{"diagnosis":"x","confidence":50,"findings":"none"}`},
		{"findings null", `{"diagnosis":"x","confidence":50,"findings":null}`},
		{"body not an object", `[1,2,3]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseReport(json.RawMessage(tc.body))
			if envelope.KindOf(err) != envelope.KindInvalidSchema {
				t.Fatalf("kind = %q, want %q (err: %v)", envelope.KindOf(err), envelope.KindInvalidSchema, err)
			}
		})
	}
}

func TestParseReportClampsConfidence(t *testing.T) {
	report, err := ParseReport(json.RawMessage(`{"diagnosis":"x","confidence":140,"findings":[]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Confidence != 100 {
		t.Fatalf("confidence = %v, want 100", report.Confidence)
	}

	report, err = ParseReport(json.RawMessage(`{"diagnosis":"x","confidence":-5,"findings":[]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Confidence != 0 {
		t.Fatalf("confidence = %v, want 0", report.Confidence)
	}
}

func TestClampConfidence(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{-5, 0},
		{0, 0},
		{42.5, 42.5},
		{100, 100},
		{140, 100},
	}
	for _, tc := range cases {
		if got := ClampConfidence(tc.in); got != tc.want {
			t.Fatalf("ClampConfidence(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
