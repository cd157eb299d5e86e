package envelope

import (
	"context"
	"testing"
)

func TestGateCancelsPriorCallBeforeNextStarts(t *testing.T) {
	gate := &Gate{}

	first, releaseFirst := gate.Start(context.Background())
	defer releaseFirst()
	if first.Err() != nil {
		t.Fatalf("first context cancelled prematurely: %v", first.Err())
	}

	second, releaseSecond := gate.Start(context.Background())
	defer releaseSecond()

	// The prior in-flight call must already be cancelled by the time Start
	// returns for the new one.
	if first.Err() != context.Canceled {
		t.Fatalf("first context err = %v, want canceled", first.Err())
	}
	if second.Err() != nil {
		t.Fatalf("second context cancelled prematurely: %v", second.Err())
	}
}

func TestGateReleaseCancelsOwnContextOnly(t *testing.T) {
	gate := &Gate{}

	first, releaseFirst := gate.Start(context.Background())
	releaseFirst()
	if first.Err() != context.Canceled {
		t.Fatalf("release did not cancel first context: %v", first.Err())
	}

	second, releaseSecond := gate.Start(context.Background())
	// A stale release must not disturb the newer call.
	releaseFirst()
	if second.Err() != nil {
		t.Fatalf("stale release cancelled the active call: %v", second.Err())
	}
	releaseSecond()
	if second.Err() != context.Canceled {
		t.Fatalf("release did not cancel second context: %v", second.Err())
	}
}
