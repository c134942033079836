package editor

import (
	"encoding/json"
	"fmt"

	"birthday-templates/core"
)

// Bundle is the serialized editor content stored with a saved template.
// CanvasWidth is the width of the canvas the element coordinates were laid
// out on; zero means the default canvas for the template image.
type Bundle struct {
	Elements    []TextElement `json:"elements"`
	People      []PersonEntry `json:"personEntries"`
	Quote       string        `json:"quote"`
	CanvasWidth int           `json:"canvasWidth,omitempty"`
}

// Bundle captures the persistent part of s. Drag flags are not saved.
func (s State) Bundle() Bundle {
	c := s.clone()
	for i := range c.Elements {
		c.Elements[i].Dragging = false
	}
	return Bundle{Elements: c.Elements, People: c.People, Quote: c.Quote}
}

// State restores a bundle into an unselected editor state.
func (b Bundle) State() State {
	s := State{
		Elements: b.Elements,
		People:   b.People,
		Quote:    b.Quote,
		Style:    DefaultStyle(),
		Panel:    PanelContent,
	}.clone()
	for i := range s.Elements {
		s.Elements[i].Dragging = false
	}
	return s
}

// Scaled returns s with every element's position, font size and line
// spacing multiplied by f.
func (s State) Scaled(f float64) State {
	s = s.clone()
	for i := range s.Elements {
		el := &s.Elements[i]
		spacing := el.Spacing() * f
		el.X *= f
		el.Y *= f
		el.FontSize *= f
		el.LineSpacing = &spacing
	}
	return s
}

// DecodeBundle parses a stored bundle and checks it still holds both
// elements and at least one person entry.
func DecodeBundle(data []byte) (Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return Bundle{}, fmt.Errorf("decode bundle: %w", core.ErrInvalidInput)
	}
	if b.CanvasWidth < 0 {
		return Bundle{}, fmt.Errorf("canvas width %d: %w", b.CanvasWidth, core.ErrInvalidInput)
	}
	if len(b.People) == 0 {
		return Bundle{}, fmt.Errorf("bundle has no person entries: %w", core.ErrInvalidInput)
	}
	var list, quote int
	for _, el := range b.Elements {
		switch el.Kind {
		case KindPersonList:
			list++
		case KindQuote:
			quote++
		}
	}
	if list != 1 || quote != 1 || len(b.Elements) != 2 {
		return Bundle{}, fmt.Errorf("bundle must hold one person list and one quote: %w", core.ErrInvalidInput)
	}
	return b, nil
}
