package editor

import "strings"

// placeholderLine is what an entry renders as before it has any content.
// A person literally named "Name" without a birthdate matches it too and is
// skipped the same way.
const placeholderLine = "Name - Birthdate"

// DisplayLine formats a person entry as drawn on the canvas.
func DisplayLine(p PersonEntry) string {
	text := p.Name
	if text == "" {
		text = "Name"
	}
	switch {
	case p.Birthdate != nil:
		text += " - " + p.Birthdate.Display()
	case p.Name != "":
		text += " - Birthdate"
	}
	return text
}

// outlineText is the text measured for the person list's selection box. It
// leaves out the "Name" and "Birthdate" placeholders.
func outlineText(p PersonEntry) string {
	text := p.Name
	if p.Birthdate != nil {
		text += " - " + p.Birthdate.Display()
	}
	return text
}

func skipLine(text string) bool {
	trimmed := strings.TrimSpace(text)
	return trimmed == "" || trimmed == placeholderLine
}

// Line is one text line placed at its baseline origin.
type Line struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// PersonLines lays out the person list element. Placeholder entries are
// skipped and do not advance the baseline.
func PersonLines(el TextElement, people []PersonEntry) []Line {
	lines := make([]Line, 0, len(people))
	offset := 0.0
	for _, p := range people {
		text := DisplayLine(p)
		if skipLine(text) {
			continue
		}
		lines = append(lines, Line{Text: text, X: el.X, Y: el.Y + offset})
		offset += el.FontSize + el.Spacing()
	}
	return lines
}

// QuoteText returns the live quote, or the element's label when the quote is empty.
func QuoteText(el TextElement, quote string) string {
	if quote != "" {
		return quote
	}
	return el.Text
}

// Lines lays out any element against the given state.
func (s State) Lines(el TextElement) []Line {
	switch el.Kind {
	case KindPersonList:
		return PersonLines(el, s.People)
	case KindQuote:
		return []Line{{Text: QuoteText(el, s.Quote), X: el.X, Y: el.Y}}
	}
	return nil
}
