package editor

const (
	// SelectionMargin is the horizontal slack around text in a selection box.
	SelectionMargin = 5.0

	// TouchPadding grows hit boxes on every side for touch input.
	TouchPadding = 20.0
)

// Measurer reports the advance width of text set in a font family at a
// pixel size. Rendering and hit-testing must share one Measurer.
type Measurer interface {
	MeasureText(family string, size float64, text string) float64
}

// MeasureFunc adapts a function to Measurer.
type MeasureFunc func(family string, size float64, text string) float64

func (f MeasureFunc) MeasureText(family string, size float64, text string) float64 {
	return f(family, size, text)
}

// Box is an axis-aligned rectangle in canvas pixels.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Contains reports whether the point lies inside b, edges included.
func (b Box) Contains(x, y float64) bool {
	return x >= b.X && x <= b.X+b.W && y >= b.Y && y <= b.Y+b.H
}

// Expand grows b by p on every side.
func (b Box) Expand(p float64) Box {
	return Box{X: b.X - p, Y: b.Y - p, W: b.W + 2*p, H: b.H + 2*p}
}

// ElementBox returns the selection box of el, grown by padding on every
// side. The renderer strokes the box with zero padding; the hit-tester uses
// the pointer's padding.
//
// The person list height counts every entry, including skipped placeholder
// lines, so the box can be taller than the drawn text.
func ElementBox(s State, el TextElement, m Measurer, padding float64) Box {
	var box Box
	switch el.Kind {
	case KindPersonList:
		maxWidth := 0.0
		for _, p := range s.People {
			if w := m.MeasureText(el.FontFamily, el.FontSize, outlineText(p)); w > maxWidth {
				maxWidth = w
			}
		}
		box = Box{
			X: el.X - SelectionMargin,
			Y: el.Y - el.FontSize,
			W: maxWidth + 2*SelectionMargin,
			H: float64(len(s.People)) * (el.FontSize + el.Spacing()),
		}
	case KindQuote:
		width := m.MeasureText(el.FontFamily, el.FontSize, QuoteText(el, s.Quote))
		box = Box{
			X: el.X - SelectionMargin,
			Y: el.Y - el.FontSize,
			W: width + 2*SelectionMargin,
			H: el.FontSize + 10,
		}
	}
	if padding != 0 {
		box = box.Expand(padding)
	}
	return box
}
