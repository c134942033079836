package render

import (
	"fmt"
	"math"

	"birthday-templates/core"
)

const (
	// MaxCanvasWidth caps the display width of the canvas.
	MaxCanvasWidth = 800

	// ViewportMargin is subtracted from the viewport width.
	ViewportMargin = 40

	// DefaultViewportWidth is used when the client does not report one.
	DefaultViewportWidth = MaxCanvasWidth + ViewportMargin
)

// Size is the canvas size and the factor the template image was scaled by.
type Size struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"scale"`
}

// CanvasSize fits an image of imgW x imgH pixels into a viewport. The image
// is scaled to min(800, viewport-40) pixels wide, up or down, keeping its
// aspect ratio. A zero viewport means DefaultViewportWidth.
func CanvasSize(imgW, imgH int, viewportWidth float64) (Size, error) {
	if imgW <= 0 || imgH <= 0 {
		return Size{}, fmt.Errorf("image size %dx%d: %w", imgW, imgH, core.ErrInvalidInput)
	}
	if viewportWidth == 0 {
		viewportWidth = DefaultViewportWidth
	}
	if viewportWidth <= ViewportMargin {
		return Size{}, fmt.Errorf("viewport width %g too small: %w", viewportWidth, core.ErrInvalidInput)
	}

	return fit(imgW, imgH, math.Min(MaxCanvasWidth, viewportWidth-ViewportMargin)/float64(imgW))
}

// FitWidth scales an image of imgW x imgH pixels to exactly width pixels
// wide, keeping its aspect ratio.
func FitWidth(imgW, imgH, width int) (Size, error) {
	if imgW <= 0 || imgH <= 0 {
		return Size{}, fmt.Errorf("image size %dx%d: %w", imgW, imgH, core.ErrInvalidInput)
	}
	if width <= 0 {
		return Size{}, fmt.Errorf("canvas width %d: %w", width, core.ErrInvalidInput)
	}
	size, err := fit(imgW, imgH, float64(width)/float64(imgW))
	if err != nil {
		return Size{}, err
	}
	size.Width = width
	return size, nil
}

func fit(imgW, imgH int, scale float64) (Size, error) {
	size := Size{
		Width:  int(math.Floor(float64(imgW) * scale)),
		Height: int(math.Floor(float64(imgH) * scale)),
		Scale:  scale,
	}
	if size.Width < 1 || size.Height < 1 {
		return Size{}, fmt.Errorf("canvas %dx%d is empty: %w", size.Width, size.Height, core.ErrInvalidInput)
	}
	return size, nil
}
