package editor

import (
	"fmt"
	"slices"

	"birthday-templates/core"

	"github.com/lucasb-eyer/go-colorful"
)

// FontOptions are the font families the style panel offers.
var FontOptions = []string{
	"Arial",
	"Verdana",
	"Helvetica",
	"Times New Roman",
	"Courier New",
	"Georgia",
	"Palatino",
	"Garamond",
	"Bookman",
	"Comic Sans MS",
	"Trebuchet MS",
	"Impact",
}

// PresetColors are the swatches shown next to the color picker.
var PresetColors = []string{
	"#000000", "#ffffff", "#ff0000", "#00ff00", "#0000ff",
	"#ffff00", "#00ffff", "#ff00ff", "#ff9900", "#9900ff",
}

const (
	MinFontSize    = 12.0
	MaxFontSize    = 72.0
	MinLineSpacing = 0.0
	MaxLineSpacing = 40.0
)

// StyleChange is a partial style update. Nil fields are left alone.
type StyleChange struct {
	FontFamily  *string  `json:"fontFamily,omitempty"`
	FontSize    *float64 `json:"fontSize,omitempty"`
	Color       *string  `json:"color,omitempty"`
	LineSpacing *float64 `json:"lineSpacing,omitempty"`
}

// Validate checks every set field against the style panel's ranges.
func (c StyleChange) Validate() error {
	if c.FontFamily != nil && !slices.Contains(FontOptions, *c.FontFamily) {
		return fmt.Errorf("unknown font family %q: %w", *c.FontFamily, core.ErrInvalidInput)
	}
	if c.FontSize != nil && (*c.FontSize < MinFontSize || *c.FontSize > MaxFontSize) {
		return fmt.Errorf("font size %g outside %g-%g: %w", *c.FontSize, MinFontSize, MaxFontSize, core.ErrInvalidInput)
	}
	if c.LineSpacing != nil && (*c.LineSpacing < MinLineSpacing || *c.LineSpacing > MaxLineSpacing) {
		return fmt.Errorf("line spacing %g outside %g-%g: %w", *c.LineSpacing, MinLineSpacing, MaxLineSpacing, core.ErrInvalidInput)
	}
	if c.Color != nil {
		if _, err := colorful.Hex(*c.Color); err != nil {
			return fmt.Errorf("color %q: %w", *c.Color, core.ErrInvalidInput)
		}
	}
	return nil
}

// ApplyStyle updates the style panel defaults and, when an element is
// selected, that element. Line spacing only applies to the person list.
func ApplyStyle(s State, c StyleChange) (State, error) {
	if err := c.Validate(); err != nil {
		return s, err
	}
	s = s.clone()
	if c.FontFamily != nil {
		s.Style.FontFamily = *c.FontFamily
	}
	if c.FontSize != nil {
		s.Style.FontSize = *c.FontSize
	}
	if c.Color != nil {
		s.Style.Color = *c.Color
	}
	if c.LineSpacing != nil {
		s.Style.LineSpacing = *c.LineSpacing
	}

	for i := range s.Elements {
		el := &s.Elements[i]
		if el.ID != s.Selected {
			continue
		}
		if c.FontFamily != nil {
			el.FontFamily = *c.FontFamily
		}
		if c.FontSize != nil {
			el.FontSize = *c.FontSize
		}
		if c.Color != nil {
			el.Color = *c.Color
		}
		if c.LineSpacing != nil && el.Kind == KindPersonList {
			spacing := *c.LineSpacing
			el.LineSpacing = &spacing
		}
	}
	return s, nil
}

// SetQuote replaces the quote text.
func SetQuote(s State, quote string) State {
	s = s.clone()
	s.Quote = quote
	return s
}
