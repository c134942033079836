// Package editor holds the template editor's element store and the pure
// functions that operate on it: line formatting, selection geometry,
// hit-testing and the pointer interaction state machine.
//
// State is an immutable value. Every update function returns a new State
// and leaves its argument untouched.
package editor

import (
	"encoding/json"
	"fmt"
	"time"

	"birthday-templates/core"

	"github.com/oklog/ulid/v2"
)

// Kind identifies one of the two fixed text element kinds.
type Kind string

const (
	KindPersonList Kind = "personList"
	KindQuote      Kind = "quote"
)

// Panel is the side panel the editor shows.
type Panel string

const (
	PanelContent Panel = "content"
	PanelStyle   Panel = "style"
)

const (
	DefaultFontFamily  = "Arial"
	DefaultFontSize    = 24.0
	DefaultColor       = "#000000"
	DefaultLineSpacing = 10.0

	quoteFontSize = 18.0
)

// Date is a calendar date without a time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const (
	isoDateLayout     = "2006-01-02"
	displayDateLayout = "January 2, 2006"
)

func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(isoDateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("birthdate %q: %w", s, core.ErrInvalidInput)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (d Date) time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// String returns the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.time().Format(isoDateLayout)
}

// Display returns the date as shown on the canvas, e.g. "January 1, 2000".
func (d Date) Display() string {
	return d.time().Format(displayDateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// PersonEntry is one name/birthdate pair of the person list.
type PersonEntry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Birthdate *Date  `json:"birthdate,omitempty"`
}

// TextElement is a positioned, styled text overlay. X and Y anchor the
// baseline of the first line, in scaled canvas pixels.
type TextElement struct {
	ID          string   `json:"id"`
	Kind        Kind     `json:"type"`
	Text        string   `json:"text"`
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	FontSize    float64  `json:"fontSize"`
	Color       string   `json:"color"`
	FontFamily  string   `json:"fontFamily"`
	Dragging    bool     `json:"dragging"`
	LineSpacing *float64 `json:"lineSpacing,omitempty"`
}

// Spacing returns the element's line spacing. Unset or zero spacing falls
// back to DefaultLineSpacing.
func (e TextElement) Spacing() float64 {
	if e.LineSpacing == nil || *e.LineSpacing <= 0 {
		return DefaultLineSpacing
	}
	return *e.LineSpacing
}

// Font returns the CSS-style font shorthand, e.g. "24px Arial".
func (e TextElement) Font() string {
	return fmt.Sprintf("%gpx %s", e.FontSize, e.FontFamily)
}

// Style holds the current defaults shown by the style panel.
type Style struct {
	FontFamily  string  `json:"fontFamily"`
	FontSize    float64 `json:"fontSize"`
	Color       string  `json:"color"`
	LineSpacing float64 `json:"lineSpacing"`
}

// DefaultStyle returns the style panel defaults of a fresh editor.
func DefaultStyle() Style {
	return Style{
		FontFamily:  DefaultFontFamily,
		FontSize:    DefaultFontSize,
		Color:       DefaultColor,
		LineSpacing: DefaultLineSpacing,
	}
}

// State is the editor's single source of truth.
type State struct {
	Elements []TextElement `json:"elements"`
	People   []PersonEntry `json:"personEntries"`
	Quote    string        `json:"quote"`
	Selected string        `json:"selectedElement,omitempty"`
	Style    Style         `json:"style"`
	Panel    Panel         `json:"panel"`
}

// DefaultElements returns the person list and quote elements every loaded
// template starts with.
func DefaultElements() []TextElement {
	spacing := DefaultLineSpacing
	return []TextElement{
		{
			ID:          string(KindPersonList),
			Kind:        KindPersonList,
			Text:        "Person List",
			X:           100,
			Y:           100,
			FontSize:    DefaultFontSize,
			Color:       DefaultColor,
			FontFamily:  DefaultFontFamily,
			LineSpacing: &spacing,
		},
		{
			ID:         string(KindQuote),
			Kind:       KindQuote,
			Text:       "Your quote here",
			X:          100,
			Y:          200,
			FontSize:   quoteFontSize,
			Color:      DefaultColor,
			FontFamily: DefaultFontFamily,
		},
	}
}

// NewState returns the state of a freshly loaded template: default
// elements, one blank person entry, no quote and nothing selected.
func NewState() State {
	return State{
		Elements: DefaultElements(),
		People:   []PersonEntry{newPerson()},
		Style:    DefaultStyle(),
		Panel:    PanelContent,
	}
}

func newPerson() PersonEntry {
	return PersonEntry{ID: "person-" + ulid.Make().String()}
}

// Element returns the element with the given id.
func (s State) Element(id string) (TextElement, bool) {
	for _, el := range s.Elements {
		if el.ID == id {
			return el, true
		}
	}
	return TextElement{}, false
}

// Mode is the interaction controller state.
type Mode string

const (
	ModeIdle     Mode = "idle"
	ModeSelected Mode = "selected"
	ModeDragging Mode = "dragging"
)

// Mode derives the controller state and the element it refers to.
func (s State) Mode() (Mode, string) {
	for _, el := range s.Elements {
		if el.Dragging {
			return ModeDragging, el.ID
		}
	}
	if s.Selected != "" {
		return ModeSelected, s.Selected
	}
	return ModeIdle, ""
}

func (s State) clone() State {
	out := s
	out.Elements = make([]TextElement, len(s.Elements))
	for i, el := range s.Elements {
		if el.LineSpacing != nil {
			spacing := *el.LineSpacing
			el.LineSpacing = &spacing
		}
		out.Elements[i] = el
	}
	out.People = make([]PersonEntry, len(s.People))
	for i, p := range s.People {
		if p.Birthdate != nil {
			d := *p.Birthdate
			p.Birthdate = &d
		}
		out.People[i] = p
	}
	return out
}
