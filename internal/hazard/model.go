package hazard

import (
	"maps"
	"reflect"
	"time"

	"github.com/paulmach/orb"
)

type Status string

const (
	StatusPotential Status = "POTENTIAL"
	StatusPending   Status = "PENDING"
	StatusProposed  Status = "PROPOSED"
	StatusIssued    Status = "ISSUED"
	StatusEnding    Status = "ENDING"
	StatusEnded     Status = "ENDED"
	StatusElapsed   Status = "ELAPSED"
)

// Issued reports whether the event has gone out as a product at least once.
func (s Status) Issued() bool {
	switch s {
	case StatusIssued, StatusEnding, StatusEnded, StatusElapsed:
		return true
	default:
		return false
	}
}

// Attribute keys the spatial display reads from Event.Attributes.
const (
	AttrAddRemoveShapes = "addRemoveShapes"
	AttrHatchedArea     = "hatchedArea"
	AttrTrackPoints     = "trackPoints"
	AttrBorderStyle     = "borderStyle"
	AttrLabel           = "label"
	AttrColor           = "color"
	AttrMarker          = "marker"
)

type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether both ends are set and Start is not after End.
func (r TimeRange) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && !r.Start.After(r.End)
}

// Contains reports whether t lies in [Start, End].
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Equal compares instants, ignoring the zone each bound was parsed in.
func (r TimeRange) Equal(o TimeRange) bool {
	return r.Start.Equal(o.Start) && r.End.Equal(o.End)
}

// Intersects reports whether the closed ranges share at least one instant.
func (r TimeRange) Intersects(o TimeRange) bool {
	return !r.Start.After(o.End) && !o.Start.After(r.End)
}

// Event is a hazard event as the spatial display sees it. Geometry may be
// a single shape or a collection; each part becomes its own drawable.
type Event struct {
	ID           string         `json:"id"`
	Geometry     orb.Geometry   `json:"-"`
	Time         TimeRange      `json:"time"`
	Phenomenon   string         `json:"phen"`
	Significance string         `json:"sig"`
	Subtype      string         `json:"subtype,omitempty"`
	Status       Status         `json:"status"`
	Selected     bool           `json:"selected"`
	Persistent   bool           `json:"persistent"`
	Attributes   map[string]any `json:"attributes,omitempty"`
}

// HazardType is the PHEN.SIG[.SUBTYPE] key used for styling.
func (e *Event) HazardType() string {
	if e.Phenomenon == "" {
		return ""
	}
	key := e.Phenomenon
	if e.Significance != "" {
		key += "." + e.Significance
	}
	if e.Subtype != "" {
		key += "." + e.Subtype
	}
	return key
}

func (e *Event) BoolAttr(key string) bool {
	v, _ := e.Attributes[key].(bool)
	return v
}

func (e *Event) StringAttr(key string) string {
	v, _ := e.Attributes[key].(string)
	return v
}

// CanAddRemoveShapes reports whether the event lets the user add or remove
// individual polygons or vertices.
func (e *Event) CanAddRemoveShapes() bool {
	return e.BoolAttr(AttrAddRemoveShapes)
}

// ShowsHatchedArea reports whether the event wants hatch drawables in addition
// to its outline.
func (e *Event) ShowsHatchedArea() bool {
	return e.BoolAttr(AttrHatchedArea)
}

// IsUnissuedTrack reports whether the event is a storm-track edit that has
// not been issued yet. Such events bypass time filtering.
func (e *Event) IsUnissuedTrack() bool {
	_, hasTrack := e.Attributes[AttrTrackPoints]
	return hasTrack && !e.Status.Issued()
}

// Parts splits the geometry into the single-part shapes that become
// drawables, in order.
func (e *Event) Parts() []orb.Geometry {
	return Parts(e.Geometry)
}

// Parts flattens multi-part geometries and collections.
func Parts(g orb.Geometry) []orb.Geometry {
	switch g := g.(type) {
	case nil:
		return nil
	case orb.MultiPolygon:
		out := make([]orb.Geometry, 0, len(g))
		for _, p := range g {
			out = append(out, p)
		}
		return out
	case orb.MultiLineString:
		out := make([]orb.Geometry, 0, len(g))
		for _, ls := range g {
			out = append(out, ls)
		}
		return out
	case orb.MultiPoint:
		out := make([]orb.Geometry, 0, len(g))
		for _, p := range g {
			out = append(out, p)
		}
		return out
	case orb.Collection:
		var out []orb.Geometry
		for _, part := range g {
			out = append(out, Parts(part)...)
		}
		return out
	default:
		return []orb.Geometry{g}
	}
}

// ReplacePart returns a copy of g with the i-th part (in Parts order)
// swapped for part. ok is false when i is out of range.
func ReplacePart(g orb.Geometry, i int, part orb.Geometry) (orb.Geometry, bool) {
	return rewriteParts(g, i, func(orb.Geometry) (orb.Geometry, bool) { return part, true })
}

// RemovePart returns a copy of g without its i-th part. Removing the last
// remaining part is refused.
func RemovePart(g orb.Geometry, i int) (orb.Geometry, bool) {
	if len(Parts(g)) < 2 {
		return g, false
	}
	return rewriteParts(g, i, func(orb.Geometry) (orb.Geometry, bool) { return nil, false })
}

// rewriteParts walks g in Parts order and hands the target part to fn; fn
// returns the replacement and whether to keep it.
func rewriteParts(g orb.Geometry, target int, fn func(orb.Geometry) (orb.Geometry, bool)) (orb.Geometry, bool) {
	if target < 0 || target >= len(Parts(g)) {
		return g, false
	}
	idx := 0
	var rebuild func(g orb.Geometry) (orb.Geometry, bool)
	rebuild = func(g orb.Geometry) (orb.Geometry, bool) {
		switch g := g.(type) {
		case orb.MultiPolygon, orb.MultiLineString, orb.MultiPoint:
			var kept []orb.Geometry
			for _, p := range Parts(g) {
				if r, ok := rebuild(p); ok {
					kept = append(kept, r)
				}
			}
			if len(kept) == 0 {
				return nil, false
			}
			return regroup(kept), true
		case orb.Collection:
			var kept orb.Collection
			for _, p := range g {
				if r, ok := rebuild(p); ok {
					kept = append(kept, r)
				}
			}
			if len(kept) == 0 {
				return nil, false
			}
			return kept, true
		default:
			i := idx
			idx++
			if i == target {
				repl, keep := fn(g)
				if !keep {
					return nil, false
				}
				return orb.Clone(repl), true
			}
			return orb.Clone(g), true
		}
	}

	out, ok := rebuild(g)
	return out, ok
}

// regroup rebuilds a homogeneous multi geometry, falling back to a collection
// when a replacement changed the part type.
func regroup(parts []orb.Geometry) orb.Geometry {
	var (
		polys  orb.MultiPolygon
		lines  orb.MultiLineString
		points orb.MultiPoint
	)
	for _, p := range parts {
		switch p := p.(type) {
		case orb.Polygon:
			polys = append(polys, p)
		case orb.LineString:
			lines = append(lines, p)
		case orb.Point:
			points = append(points, p)
		}
	}
	switch len(parts) {
	case len(polys):
		return polys
	case len(lines):
		return lines
	case len(points):
		return points
	default:
		return orb.Collection(parts)
	}
}

// Equal compares the content the display cares about. It is the per-identifier
// check behind the render dirty test.
func (e *Event) Equal(o *Event) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.ID != o.ID ||
		!e.Time.Equal(o.Time) ||
		e.Phenomenon != o.Phenomenon ||
		e.Significance != o.Significance ||
		e.Subtype != o.Subtype ||
		e.Status != o.Status ||
		e.Selected != o.Selected ||
		e.Persistent != o.Persistent {
		return false
	}
	if (e.Geometry == nil) != (o.Geometry == nil) {
		return false
	}
	if e.Geometry != nil && !orb.Equal(e.Geometry, o.Geometry) {
		return false
	}
	return reflect.DeepEqual(e.Attributes, o.Attributes)
}

// Clone returns a copy that shares nothing mutable with e.
func (e *Event) Clone() *Event {
	c := *e
	if e.Geometry != nil {
		c.Geometry = orb.Clone(e.Geometry)
	}
	if e.Attributes != nil {
		c.Attributes = maps.Clone(e.Attributes)
	}
	return &c
}
