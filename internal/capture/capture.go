// Package capture produces single still-image payloads for analysis, either
// from a live frame source or from a file on disk.
package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/png"

	"github.com/griff-web/medai-client/internal/envelope"
)

// DefaultMaxBytes bounds uploaded file size when no limit is configured.
const DefaultMaxBytes = 8 << 20

const jpegQuality = 90

// Payload is one encoded image ready for upload. Payloads are independent
// value objects; repeated captures share no state.
type Payload struct {
	Data        []byte
	Filename    string
	ContentType string
	Width       int
	Height      int
}

type signature struct {
	prefix      []byte
	contentType string
}

// Leading-byte signatures for the formats the backend accepts.
var knownSignatures = []signature{
	{[]byte{0xFF, 0xD8, 0xFF}, "image/jpeg"},
	{[]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
	{[]byte("GIF87a"), "image/gif"},
	{[]byte("GIF89a"), "image/gif"},
}

func sniffContentType(data []byte) (string, bool) {
	for _, sig := range knownSignatures {
		if bytes.HasPrefix(data, sig.prefix) {
			return sig.contentType, true
		}
	}
	return "", false
}

func captureError(format string, args ...any) error {
	return envelope.NewError(envelope.KindCaptureError, fmt.Errorf(format, args...))
}

// FromFile reads an image file, enforcing the size limit and a leading-byte
// signature check before trusting it. maxBytes <= 0 selects DefaultMaxBytes.
func FromFile(path string, maxBytes int64) (Payload, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	info, err := os.Stat(path)
	if err != nil {
		return Payload{}, captureError("open image %s: %v", path, err)
	}
	if info.Size() > maxBytes {
		return Payload{}, captureError("image %s is %d bytes, exceeds limit of %d", path, info.Size(), maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Payload{}, captureError("read image %s: %v", path, err)
	}

	contentType, ok := sniffContentType(data)
	if !ok {
		return Payload{}, captureError("file %s does not look like a supported image format", path)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Payload{}, captureError("decode image %s: %v", path, err)
	}

	return Payload{
		Data:        data,
		Filename:    filepath.Base(path),
		ContentType: contentType,
		Width:       cfg.Width,
		Height:      cfg.Height,
	}, nil
}

// FromFrame encodes a raster frame to JPEG. A frame with zero width or height
// means the source produced no usable picture and is rejected.
func FromFrame(frame image.Image) (Payload, error) {
	if frame == nil {
		return Payload{}, captureError("no frame available")
	}
	bounds := frame.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return Payload{}, captureError("frame has zero dimensions (%dx%d)", bounds.Dx(), bounds.Dy())
	}

	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, frame, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Payload{}, captureError("encode frame: %v", err)
	}

	return Payload{
		Data:        buf.Bytes(),
		Filename:    "frame.jpg",
		ContentType: "image/jpeg",
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}
