// Package present renders validated analysis reports and failure
// notifications for the terminal.
package present

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/griff-web/medai-client/internal/diagnostics"
	"github.com/griff-web/medai-client/internal/envelope"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	findingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

const meterWidth = 20

// RenderReport formats a validated report as a bordered dashboard panel.
// It must only ever receive reports that passed schema validation.
func RenderReport(report diagnostics.Report, mode diagnostics.Mode) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(report.Diagnosis))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("Mode       "))
	b.WriteString(ModeLabel(mode))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Confidence "))
	b.WriteString(ConfidenceMeter(report.Confidence, meterWidth))

	if report.Description != "" {
		b.WriteString("\n\n")
		b.WriteString(report.Description)
	}

	if len(report.Findings) > 0 {
		b.WriteString("\n\n")
		b.WriteString(labelStyle.Render("Findings"))
		for _, finding := range report.Findings {
			b.WriteString("\n")
			b.WriteString(findingStyle.Render("  • " + finding))
		}
	}

	return panelStyle.Render(b.String())
}

// ConfidenceMeter renders a fixed-width bar for a confidence value. The value
// is clamped into [0,100] before any math so out-of-range input can never
// overflow the bar.
func ConfidenceMeter(value float64, width int) string {
	if width <= 0 {
		width = meterWidth
	}
	clamped := diagnostics.ClampConfidence(value)
	filled := int(clamped / 100 * float64(width))
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %.1f%%", bar, clamped)
}

// ModeLabel returns the display name for a scan modality.
func ModeLabel(mode diagnostics.Mode) string {
	switch mode {
	case diagnostics.ModeXRay:
		return "X-Ray"
	case diagnostics.ModeCT:
		return "CT Scan"
	case diagnostics.ModeMRI:
		return "MRI"
	case diagnostics.ModeUltrasound:
		return "Ultrasound"
	default:
		return string(mode)
	}
}

// Notification maps a failure kind to the single user-facing line shown for
// a failed action. Retries never produce extra notifications; only the final
// outcome is shown.
func Notification(err error) string {
	switch envelope.KindOf(err) {
	case envelope.KindTimeout:
		return "The analysis timed out. Check your connection and try again."
	case envelope.KindNetworkError:
		return "Could not reach the analysis service. Check your connection."
	case envelope.KindServerError:
		return "The analysis service had a problem. Please try again shortly."
	case envelope.KindAuthRejected:
		return "Your session has expired. Please log in again."
	case envelope.KindInvalidSchema:
		return "The analysis service returned an unreadable result."
	case envelope.KindCaptureError:
		return "Could not read the image. Use a valid JPEG or PNG scan."
	case envelope.KindRateLimited:
		return "Hold on a moment before starting another analysis."
	default:
		return "Something went wrong. Please try again."
	}
}
