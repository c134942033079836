package render

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"birthday-templates/core"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ContentTypes maps decodable image formats to their MIME types.
var ContentTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
}

// Sniff checks that data is an image in a supported format without decoding
// the pixels. It returns the MIME type and the image dimensions.
func Sniff(data []byte) (contentType string, width, height int, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", 0, 0, fmt.Errorf("not a supported image: %w", core.ErrInvalidInput)
	}
	return ContentTypes[format], cfg.Width, cfg.Height, nil
}

// Decode decodes a template image.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %v: %w", err, core.ErrLoadFailure)
	}
	return img, nil
}
