package imagecache

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// StdPNGEncoder encodes an RGBA pixel buffer with the standard library's
// image/png codec, the same package the teacher uses for its own
// screenshot pipeline (cmd/screenshot-server). mode is accepted to match
// the Encoder signature; tilekit does not vary PNG encoding by edit mode.
func StdPNGEncoder(pixels []byte, width, height, _ int) ([]byte, error) {
	if len(pixels) != width*height*4 {
		return nil, fmt.Errorf("imagecache: pixel buffer is %d bytes, want %d for %dx%d RGBA", len(pixels), width*height*4, width, height)
	}
	img := &image.RGBA{
		Pix:    pixels,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("imagecache: png encode: %w", err)
	}
	return buf.Bytes(), nil
}
