package capture

import (
	"bytes"
	"image"
	"sync"
)

// FrameSource yields raster frames from some underlying stream, typically a
// camera device. Implementations own the hardware handle and must release it
// in Close.
type FrameSource interface {
	Frame() (image.Image, error)
	Close() error
}

// Grabber owns at most one open FrameSource at a time, mirroring the
// one-consumer rule for the underlying hardware stream.
type Grabber struct {
	mu  sync.Mutex
	src FrameSource
}

// Acquire opens a new source, releasing any previously held one first so the
// hardware handle is never double-held.
func (g *Grabber) Acquire(open func() (FrameSource, error)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.src != nil {
		if err := g.src.Close(); err != nil {
			return captureError("release previous source: %v", err)
		}
		g.src = nil
	}

	src, err := open()
	if err != nil {
		return captureError("open source: %v", err)
	}
	g.src = src
	return nil
}

// Capture grabs one frame from the held source and encodes it. Each call
// produces an independent payload.
func (g *Grabber) Capture() (Payload, error) {
	g.mu.Lock()
	src := g.src
	g.mu.Unlock()

	if src == nil {
		return Payload{}, captureError("no source acquired")
	}
	frame, err := src.Frame()
	if err != nil {
		return Payload{}, captureError("grab frame: %v", err)
	}
	return FromFrame(frame)
}

// Release closes the held source, if any. Safe to call repeatedly.
func (g *Grabber) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.src == nil {
		return nil
	}
	err := g.src.Close()
	g.src = nil
	if err != nil {
		return captureError("release source: %v", err)
	}
	return nil
}

// FileSource is a FrameSource backed by a decoded image file. It stands in
// for camera hardware in local development and tests.
type FileSource struct {
	img image.Image
}

// NewFileSource decodes the file once and serves it as every frame.
func NewFileSource(path string) (*FileSource, error) {
	payload, err := FromFile(path, 0)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(payload.Data))
	if err != nil {
		return nil, captureError("decode %s: %v", path, err)
	}
	return &FileSource{img: img}, nil
}

// Frame returns the decoded image.
func (s *FileSource) Frame() (image.Image, error) {
	if s == nil || s.img == nil {
		return nil, captureError("file source not initialised")
	}
	return s.img, nil
}

// Close releases nothing for a file-backed source.
func (s *FileSource) Close() error { return nil }
