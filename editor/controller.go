package editor

// EventType is the phase of a pointer event.
type EventType string

const (
	EventDown  EventType = "down"
	EventMove  EventType = "move"
	EventUp    EventType = "up"
	EventLeave EventType = "leave"
)

// PointerEvent is a canvas pointer event in scaled canvas coordinates.
// Touches is the number of active touch points; zero is treated as a
// single touch for down and move.
type PointerEvent struct {
	Type    EventType `json:"type"`
	Pointer Pointer   `json:"pointer"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	Touches int       `json:"touches,omitempty"`
}

// Outcome describes what Dispatch did with an event.
type Outcome struct {
	// PreventDefault is set for every touch event so the page does not
	// scroll or zoom while the canvas is being edited.
	PreventDefault bool `json:"preventDefault"`
	Changed        bool `json:"changed"`
}

// Dispatch runs one pointer event through the interaction state machine.
//
//	idle/selected + down on element  -> dragging that element
//	idle/selected + down on nothing  -> idle
//	dragging + move                  -> element follows the pointer
//	dragging + up/leave              -> selected
//
// A touch event with more than one active touch point changes nothing.
func Dispatch(s State, ev PointerEvent, m Measurer) (State, Outcome) {
	out := Outcome{PreventDefault: ev.Pointer == PointerTouch}
	if ev.Pointer == PointerTouch && ev.Touches > 1 && (ev.Type == EventDown || ev.Type == EventMove) {
		return s, out
	}

	switch ev.Type {
	case EventDown:
		if id, ok := HitTest(s, ev.X, ev.Y, ev.Pointer, m); ok {
			s = Select(s, id)
		} else {
			s = Deselect(s)
		}
		out.Changed = true
	case EventMove:
		_, id := s.Mode()
		var changed bool
		s, changed = moveDragging(s, id, ev.X, ev.Y)
		out.Changed = changed
	case EventUp, EventLeave:
		var changed bool
		s, changed = release(s)
		out.Changed = changed
	}
	return s, out
}

// Select makes id the selected element, starts dragging it and loads its
// style into the style panel.
func Select(s State, id string) State {
	el, ok := s.Element(id)
	if !ok {
		return s
	}
	s = s.clone()
	for i := range s.Elements {
		s.Elements[i].Dragging = s.Elements[i].ID == id
	}
	s.Selected = id
	s.Panel = PanelStyle
	s.Style.FontFamily = el.FontFamily
	s.Style.FontSize = el.FontSize
	s.Style.Color = el.Color
	if el.Kind == KindPersonList {
		s.Style.LineSpacing = el.Spacing()
	}
	return s
}

// Deselect clears the selection and returns to the content panel.
func Deselect(s State) State {
	s = s.clone()
	for i := range s.Elements {
		s.Elements[i].Dragging = false
	}
	s.Selected = ""
	s.Panel = PanelContent
	return s
}

func moveDragging(s State, id string, x, y float64) (State, bool) {
	if mode, _ := s.Mode(); mode != ModeDragging {
		return s, false
	}
	s = s.clone()
	for i := range s.Elements {
		if s.Elements[i].ID == id {
			s.Elements[i].X = x
			s.Elements[i].Y = y
		}
	}
	return s, true
}

func release(s State) (State, bool) {
	if mode, _ := s.Mode(); mode != ModeDragging {
		return s, false
	}
	s = s.clone()
	for i := range s.Elements {
		s.Elements[i].Dragging = false
	}
	return s, true
}
