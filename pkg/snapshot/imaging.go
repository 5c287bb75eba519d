package snapshot

import (
	"bytes"
	"image"

	// Decoders registered with image.DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeDimensions returns the pixel size of an image file. Only the header
// is parsed. ok is false for non-image files and formats without a decoder
// (SVG among them).
func DecodeDimensions(filename string, data []byte) (width, height int, ok bool) {
	if CategoryOf(filename) != CategoryImage {
		return 0, 0, false
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

// dimensionHeaderLimit bounds how much of a streamed file is kept for
// DecodeDimensions. JPEG frame headers can follow large EXIF segments.
const dimensionHeaderLimit = 256 << 10

// headerSink counts every byte written to it and keeps the first limit bytes.
type headerSink struct {
	buf   []byte
	limit int
	total int64
}

func newHeaderSink(limit int) *headerSink {
	return &headerSink{limit: limit}
}

func (h *headerSink) Write(p []byte) (int, error) {
	h.total += int64(len(p))
	if room := h.limit - len(h.buf); room > 0 {
		if room > len(p) {
			room = len(p)
		}
		h.buf = append(h.buf, p[:room]...)
	}
	return len(p), nil
}

// Bytes returns the retained prefix.
func (h *headerSink) Bytes() []byte {
	return h.buf
}
