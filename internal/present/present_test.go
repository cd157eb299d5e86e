package present

import (
	"errors"
	"strings"
	"testing"

	"github.com/griff-web/medai-client/internal/diagnostics"
	"github.com/griff-web/medai-client/internal/envelope"
)

func TestConfidenceMeterClampsOutOfRangeValues(t *testing.T) {
	cases := []struct {
		name  string
		value float64
		want  string
	}{
		{"below range", -5, "0.0%"},
		{"zero", 0, "0.0%"},
		{"mid", 50, "50.0%"},
		{"full", 100, "100.0%"},
		{"above range", 140, "100.0%"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ConfidenceMeter(tc.value, 10)
			if !strings.HasSuffix(got, tc.want) {
				t.Fatalf("ConfidenceMeter(%v) = %q, want suffix %q", tc.value, got, tc.want)
			}
		})
	}
}

func TestConfidenceMeterBarWidth(t *testing.T) {
	got := ConfidenceMeter(140, 10)
	if strings.Count(got, "█") != 10 {
		t.Fatalf("clamped full meter = %q, want 10 filled cells", got)
	}
	got = ConfidenceMeter(-5, 10)
	if strings.Count(got, "░") != 10 {
		t.Fatalf("clamped empty meter = %q, want 10 empty cells", got)
	}
}

func TestModeLabel(t *testing.T) {
	if got := ModeLabel(diagnostics.ModeUltrasound); got != "Ultrasound" {
		t.Fatalf("ModeLabel = %q", got)
	}
	if got := ModeLabel(diagnostics.Mode("custom")); got != "custom" {
		t.Fatalf("unknown mode label = %q", got)
	}
}

func TestRenderReportIncludesAllFields(t *testing.T) {
	report := diagnostics.Report{
		Diagnosis:   "Pneumonia suspected",
		Confidence:  87.5,
		Description: "Opacity in the lower right lobe.",
		Findings:    []string{"lower lobe opacity", "mild effusion"},
	}

	out := RenderReport(report, diagnostics.ModeXRay)
	for _, want := range []string{"Pneumonia suspected", "X-Ray", "87.5%", "lower lobe opacity", "mild effusion", "Opacity in the lower right lobe."} {
		if !strings.Contains(out, want) {
			t.Fatalf("rendered report missing %q:\n%s", want, out)
		}
	}
}

func TestNotificationPerKind(t *testing.T) {
	kinds := []envelope.Kind{
		envelope.KindTimeout,
		envelope.KindNetworkError,
		envelope.KindServerError,
		envelope.KindAuthRejected,
		envelope.KindInvalidSchema,
		envelope.KindCaptureError,
		envelope.KindRateLimited,
	}

	seen := map[string]envelope.Kind{}
	for _, kind := range kinds {
		msg := Notification(envelope.NewError(kind, nil))
		if msg == "" {
			t.Fatalf("kind %q has no notification", kind)
		}
		if prior, dup := seen[msg]; dup {
			t.Fatalf("kinds %q and %q share a notification", prior, kind)
		}
		seen[msg] = kind
	}

	if Notification(errors.New("anything")) == "" {
		t.Fatal("unclassified errors still need a notification")
	}
}
