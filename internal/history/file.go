package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const defaultMaxEntries = 50

// FileProvider persists history as a single JSON document, newest entry
// first, trimmed to a fixed bound.
type FileProvider struct {
	mu         sync.Mutex
	path       string
	maxEntries int
}

// NewFileProvider creates a file-backed history at path. maxEntries <= 0
// selects the default bound.
func NewFileProvider(path string, maxEntries int) (*FileProvider, error) {
	if path == "" {
		return nil, errors.New("history path is required")
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &FileProvider{path: path, maxEntries: maxEntries}, nil
}

// Append records a new entry at the front, dropping the oldest past the bound.
func (p *FileProvider) Append(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	entries, err := p.read()
	if err != nil && !errors.Is(err, ErrEmpty) {
		return err
	}

	entries = append([]Entry{entry}, entries...)
	if len(entries) > p.maxEntries {
		entries = entries[:p.maxEntries]
	}
	return p.write(entries)
}

// Recent returns up to limit entries, newest first.
func (p *FileProvider) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	entries, err := p.read()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Close releases nothing for the file provider.
func (p *FileProvider) Close() error { return nil }

func (p *FileProvider) read() ([]Entry, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("read history: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupt file should not brick the client; start over.
		return nil, ErrEmpty
	}
	if len(entries) == 0 {
		return nil, ErrEmpty
	}
	return entries, nil
}

func (p *FileProvider) write(entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0o600); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}
