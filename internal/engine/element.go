package engine

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
)

var ErrInvalidGeometry = errors.New("element geometry is empty or not finite")

// ShapeKind is the closed set of drawable shapes. Styling and hit testing
// switch on it exhaustively.
type ShapeKind int

const (
	KindPoint ShapeKind = iota
	KindLine
	KindPolygon
	KindCircle
	KindStar
	KindDot
	KindSelectionRect
	KindText
)

var kindNames = [...]string{
	KindPoint:         "point",
	KindLine:          "line",
	KindPolygon:       "polygon",
	KindCircle:        "circle",
	KindStar:          "star",
	KindDot:           "dot",
	KindSelectionRect: "selectionRectangle",
	KindText:          "text",
}

func (k ShapeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ParseShapeKind maps a name from String back to its kind.
func ParseShapeKind(s string) (ShapeKind, bool) {
	for k, name := range kindNames {
		if name == s {
			return ShapeKind(k), true
		}
	}
	return 0, false
}

// IsArea reports kinds hit-tested by exact polygon containment.
func (k ShapeKind) IsArea() bool {
	return k == KindPolygon || k == KindSelectionRect
}

// IsSymbol reports point-like marker kinds. They lose ties against
// non-symbol features in containment queries.
func (k ShapeKind) IsSymbol() bool {
	switch k {
	case KindPoint, KindCircle, KindStar, KindDot:
		return true
	default:
		return false
	}
}

type LineStyle string

const (
	LineSolid       LineStyle = "SOLID"
	LineDashed      LineStyle = "DASHED"
	LineDotted      LineStyle = "DOTTED"
	LineDashDotted  LineStyle = "DASH_DOTTED"
	LineDoubleSolid LineStyle = "DOUBLE_SOLID"
)

type FillPattern string

const (
	FillNone    FillPattern = "NONE"
	FillSolid   FillPattern = "SOLID"
	FillHatched FillPattern = "HATCHED"
)

// Style is resolved rendering state. Elements carry it but do not own the
// policy that produced it.
type Style struct {
	Color     string      `json:"color" yaml:"color"`
	FillColor string      `json:"fillColor,omitempty" yaml:"fillColor"`
	LineWidth float64     `json:"lineWidth" yaml:"lineWidth"`
	LineStyle LineStyle   `json:"lineStyle" yaml:"lineStyle"`
	Fill      FillPattern `json:"fill" yaml:"fill"`
	SizeScale float64     `json:"sizeScale" yaml:"sizeScale"`
}

// Handle addresses an element's slot in the render-resource arena.
type Handle uint32

const noHandle Handle = 0

// Element is one drawable. Once added to a Store it is treated as immutable;
// edits go through Store.Replace with a new Element.
type Element struct {
	ID       string
	EventID  string
	Part     int
	Kind     ShapeKind
	Geometry []orb.Point
	Style    Style
	Label    string

	Editable   bool
	Persistent bool
	Selected   bool
	Ghost      bool
	Hatch      bool

	handle Handle
}

// withGeometry copies e with new points and no arena slot.
func (e *Element) withGeometry(pts []orb.Point) *Element {
	c := *e
	c.Geometry = pts
	c.handle = noHandle
	return &c
}

func (e *Element) valid() bool {
	if e == nil || len(e.Geometry) == 0 {
		return false
	}
	for _, p := range e.Geometry {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			return false
		}
	}
	return true
}

// sameShape is the structural match used by Replace.
func sameShape(a, b *Element) bool {
	if a == b {
		return true
	}
	if a.ID != b.ID || a.Kind != b.Kind || len(a.Geometry) != len(b.Geometry) {
		return false
	}
	for i := range a.Geometry {
		if a.Geometry[i] != b.Geometry[i] {
			return false
		}
	}
	return true
}

// Vertices drops the closing point of a ring so each corner appears once.
func (e *Element) Vertices() []orb.Point {
	pts := e.Geometry
	if (e.Kind == KindPolygon || e.Kind == KindSelectionRect) && len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		return pts[:len(pts)-1]
	}
	return pts
}

// Ring returns the element's outline as a closed ring.
func (e *Element) Ring() orb.Ring {
	r := make(orb.Ring, len(e.Geometry), len(e.Geometry)+1)
	copy(r, e.Geometry)
	if len(r) > 0 && r[0] != r[len(r)-1] {
		r = append(r, r[0])
	}
	return r
}

func (e *Element) Bound() orb.Bound {
	return orb.MultiPoint(e.Geometry).Bound()
}
