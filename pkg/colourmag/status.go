package colourmag

import (
	"image/color"
	"strings"
)

// StarStatus is the selection state of one detected source.
type StarStatus uint8

const (
	Selected StarStatus = 1 << iota
	Labeled

	// Deselected is the zero value; it reads better at call sites.
	Deselected StarStatus = 0
)

func (s StarStatus) Has(flag StarStatus) bool { return s&flag != 0 }

// ToggleSelected flips the Selected bit.
func (s StarStatus) ToggleSelected() StarStatus { return s ^ Selected }

func (s StarStatus) String() string {
	parts := make([]string, 0, 2)
	if s.Has(Selected) {
		parts = append(parts, "selected")
	} else {
		parts = append(parts, "deselected")
	}
	if s.Has(Labeled) {
		parts = append(parts, "labeled")
	}
	return strings.Join(parts, "|")
}

// Style is how a source is drawn on the overlay.
type Style struct {
	Colour color.RGBA
	Name   string
}

var (
	styleSelected          = Style{Colour: color.RGBA{R: 0, G: 200, B: 0, A: 255}, Name: "green"}
	styleDeselected        = Style{Colour: color.RGBA{R: 220, G: 0, B: 0, A: 255}, Name: "red"}
	styleSelectedLabeled   = Style{Colour: color.RGBA{R: 30, G: 90, B: 255, A: 255}, Name: "blue"}
	styleDeselectedLabeled = Style{Colour: color.RGBA{R: 255, G: 150, B: 0, A: 255}, Name: "orange"}
)

// StyleFor maps a status to its overlay style.
func StyleFor(s StarStatus) Style {
	switch {
	case s.Has(Selected) && s.Has(Labeled):
		return styleSelectedLabeled
	case s.Has(Labeled):
		return styleDeselectedLabeled
	case s.Has(Selected):
		return styleSelected
	default:
		return styleDeselected
	}
}

// NewStatuses returns n statuses, all Selected.
func NewStatuses(n int) []StarStatus {
	out := make([]StarStatus, n)
	for i := range out {
		out[i] = Selected
	}
	return out
}
