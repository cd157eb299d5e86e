// Package history keeps a bounded local record of validated analyses so the
// dashboard can show recent results without the network.
package history

import (
	"context"
	"errors"
	"time"
)

// Entry is one completed analysis as stored locally.
type Entry struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	Diagnosis  string    `json:"diagnosis"`
	Confidence float64   `json:"confidence"`
	Findings   []string  `json:"findings"`
	CreatedAt  time.Time `json:"created_at"`
}

// Provider defines the minimal history operations needed by the service.
type Provider interface {
	Append(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// ErrEmpty signals that no history has been recorded yet.
var ErrEmpty = errors.New("history is empty")

// NoopProvider implements Provider but never stores data.
type NoopProvider struct{}

// Append discards the entry and returns nil.
func (NoopProvider) Append(context.Context, Entry) error { return nil }

// Recent always returns ErrEmpty.
func (NoopProvider) Recent(context.Context, int) ([]Entry, error) {
	return nil, ErrEmpty
}

// Close is a no-op.
func (NoopProvider) Close() error { return nil }
