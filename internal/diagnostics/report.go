package diagnostics

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/griff-web/medai-client/internal/envelope"
)

// Report is a validated analysis result. Only reports that passed schema
// validation reach presentation code.
type Report struct {
	Diagnosis   string   `json:"diagnosis"`
	Confidence  float64  `json:"confidence"`
	Description string   `json:"description"`
	Findings    []string `json:"findings"`
}

func schemaError(format string, args ...any) error {
	return envelope.NewError(envelope.KindInvalidSchema, fmt.Errorf(format, args...))
}

// ParseReport validates a decoded response body against the required shape:
// a string diagnosis, a numeric confidence, and an array of findings.
// Description is optional and unknown fields are ignored. Confidence is
// clamped into [0,100] so out-of-range values are never displayed.
func ParseReport(raw json.RawMessage) (Report, error) {
	var body struct {
		Diagnosis   json.RawMessage `json:"diagnosis"`
		Confidence  json.RawMessage `json:"confidence"`
		Description string          `json:"description"`
		Findings    json.RawMessage `json:"findings"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return Report{}, schemaError("response is not a JSON object: %v", err)
	}

	report := Report{Description: body.Description}

	if body.Diagnosis == nil {
		return Report{}, schemaError("missing diagnosis")
	}
	if err := json.Unmarshal(body.Diagnosis, &report.Diagnosis); err != nil {
		return Report{}, schemaError("diagnosis is not a string")
	}

	if body.Confidence == nil {
		return Report{}, schemaError("missing confidence")
	}
	if err := json.Unmarshal(body.Confidence, &report.Confidence); err != nil {
		return Report{}, schemaError("confidence is not a number")
	}
	report.Confidence = ClampConfidence(report.Confidence)

	if body.Findings == nil {
		return Report{}, schemaError("missing findings")
	}
	if !bytes.HasPrefix(bytes.TrimSpace(body.Findings), []byte("[")) {
		return Report{}, schemaError("findings is not an array")
	}
	if err := json.Unmarshal(body.Findings, &report.Findings); err != nil {
		return Report{}, schemaError("findings is not an array of strings")
	}
	if report.Findings == nil {
		report.Findings = []string{}
	}

	return report, nil
}

// ClampConfidence bounds a confidence value into the displayable [0,100] range.
func ClampConfidence(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
