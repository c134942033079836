package editor

// Pointer is the input device behind a pointer event.
type Pointer string

const (
	PointerMouse Pointer = "mouse"
	PointerTouch Pointer = "touch"
)

// Padding returns how far hit boxes grow for this pointer.
func (p Pointer) Padding() float64 {
	if p == PointerTouch {
		return TouchPadding
	}
	return 0
}

// HitTest returns the id of the topmost element whose padded box contains
// (x, y). Elements later in the list are on top.
func HitTest(s State, x, y float64, p Pointer, m Measurer) (string, bool) {
	padding := p.Padding()
	for i := len(s.Elements) - 1; i >= 0; i-- {
		el := s.Elements[i]
		if ElementBox(s, el, m, padding).Contains(x, y) {
			return el.ID, true
		}
	}
	return "", false
}
