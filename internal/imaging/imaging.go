// Package imaging normalizes uploaded product photos. Large images are
// downscaled to a bounded width and re-encoded as JPEG so product documents
// stay small enough to replicate whole; everything else passes through
// untouched. Output is always a data URL, which is what product records
// store in their image field.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	// Decoders for the upload formats Process accepts.
	_ "image/gif"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

const (
	// maxWidth bounds the stored image width in pixels.
	maxWidth = 800
	// jpegQuality matches the original export quality of 0.7.
	jpegQuality = 70
)

// Process converts an uploaded file into a data URL, downscaling and
// re-encoding images when that makes them smaller. Content that is not a
// decodable image is passed through with its declared content type.
func Process(data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("imaging: empty upload")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return dataURL(contentType, data), nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// Declared an image but undecodable; keep the bytes as-is.
		return dataURL(contentType, data), nil
	}

	encoded, err := encodeJPEG(scale(src))
	if err != nil {
		return "", fmt.Errorf("imaging: encode: %w", err)
	}
	if len(encoded) >= len(data) {
		// Re-encoding did not help (tiny or already well-compressed input).
		return dataURL(contentType, data), nil
	}
	return dataURL("image/jpeg", encoded), nil
}

// scale returns src downscaled to maxWidth, preserving aspect ratio. Images
// already within bounds are returned unchanged.
func scale(src image.Image) image.Image {
	bounds := src.Bounds()
	width := bounds.Dx()
	if width <= maxWidth {
		return src
	}
	height := bounds.Dy() * maxWidth / width
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func dataURL(contentType string, data []byte) string {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
