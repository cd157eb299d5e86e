package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestProvider(t *testing.T, maxEntries int) (*FileProvider, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.json")
	provider, err := NewFileProvider(path, maxEntries)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return provider, path
}

func TestFileProviderAppendAndRecent(t *testing.T) {
	provider, _ := newTestProvider(t, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry := Entry{
			ID:         fmt.Sprintf("scan-%d", i),
			Mode:       "xray",
			Diagnosis:  "Clear",
			Confidence: float64(90 + i),
			CreatedAt:  time.Unix(int64(1_700_000_000+i), 0),
		}
		if err := provider.Append(ctx, entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	entries, err := provider.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].ID != "scan-2" || entries[1].ID != "scan-1" {
		t.Fatalf("entries not newest-first: %v", entries)
	}
}

func TestFileProviderBoundsEntries(t *testing.T) {
	provider, _ := newTestProvider(t, 2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := provider.Append(ctx, Entry{ID: fmt.Sprintf("scan-%d", i)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	entries, err := provider.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].ID != "scan-4" {
		t.Fatalf("newest entry = %q", entries[0].ID)
	}
}

func TestFileProviderEmptyAndCorrupt(t *testing.T) {
	provider, path := newTestProvider(t, 0)
	ctx := context.Background()

	if _, err := provider.Recent(ctx, 10); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}

	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	if _, err := provider.Recent(ctx, 10); !errors.Is(err, ErrEmpty) {
		t.Fatalf("corrupt file should read as empty, got %v", err)
	}

	// Appending over a corrupt file starts fresh rather than failing.
	if err := provider.Append(ctx, Entry{ID: "scan-1"}); err != nil {
		t.Fatalf("append over corrupt file: %v", err)
	}
	entries, err := provider.Recent(ctx, 10)
	if err != nil || len(entries) != 1 {
		t.Fatalf("recent after recovery: %v %v", entries, err)
	}
}

func TestNoopProvider(t *testing.T) {
	provider := NoopProvider{}
	if err := provider.Append(context.Background(), Entry{ID: "x"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := provider.Recent(context.Background(), 1); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}
