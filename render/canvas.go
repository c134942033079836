// Package render draws the editor canvas: the scaled template image with
// every text element on top and an outline around the selected element.
package render

import (
	"image"
	"image/color"
	"io"

	"birthday-templates/editor"

	"github.com/gogpu/gg"
	"github.com/lucasb-eyer/go-colorful"
	xdraw "golang.org/x/image/draw"
)

const (
	// OutlineColor strokes the selected element's box.
	OutlineColor = "#3b82f6"

	// OutlineWidth is the selection stroke width in pixels.
	OutlineWidth = 2.0
)

// Renderer draws editor states onto template images. The same Fonts value
// must be used as the hit-testing measurer so outlines match what is drawn.
type Renderer struct {
	fonts *Fonts
}

func NewRenderer(fonts *Fonts) *Renderer {
	return &Renderer{fonts: fonts}
}

// Fonts returns the registry the renderer measures and draws with.
func (r *Renderer) Fonts() *Fonts {
	return r.fonts
}

// Render draws s on top of bg scaled to size.
func (r *Renderer) Render(bg image.Image, s editor.State, size Size) (image.Image, error) {
	dc, err := r.draw(bg, s, size)
	if err != nil {
		return nil, err
	}
	defer dc.Close()
	return dc.Image(), nil
}

// RenderPNG draws s on top of bg and writes the canvas as PNG.
func (r *Renderer) RenderPNG(w io.Writer, bg image.Image, s editor.State, size Size) error {
	dc, err := r.draw(bg, s, size)
	if err != nil {
		return err
	}
	defer dc.Close()
	return dc.EncodePNG(w)
}

func (r *Renderer) draw(bg image.Image, s editor.State, size Size) (*gg.Context, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	xdraw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), bg, bg.Bounds(), xdraw.Src, nil)

	dc := gg.NewContextForImage(canvas)
	for _, el := range s.Elements {
		dc.SetColor(parseColor(el.Color))
		dc.SetFont(r.fonts.Face(el.FontFamily, el.FontSize))
		for _, line := range s.Lines(el) {
			dc.DrawString(line.Text, line.X, line.Y)
		}

		if el.ID != s.Selected {
			continue
		}
		box := editor.ElementBox(s, el, r.fonts, 0)
		dc.SetHexColor(OutlineColor)
		dc.SetLineWidth(OutlineWidth)
		dc.DrawRectangle(box.X, box.Y, box.W, box.H)
		if err := dc.Stroke(); err != nil {
			dc.Close()
			return nil, err
		}
	}
	if err := dc.FlushGPU(); err != nil {
		dc.Close()
		return nil, err
	}
	return dc, nil
}

func parseColor(hex string) color.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.Black
	}
	return c
}
