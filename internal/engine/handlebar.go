package engine

import (
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/Unidata/awips2-hazards-sub017/internal/display"
)

// HandleBars caches the pixel positions of the selected editable element's
// vertices. Only the engine writes to it, on selection or view changes.
type HandleBars struct {
	eventID string
	part    int
	kind    ShapeKind
	world   []orb.Point
	pixels  []orb.Point

	generation int
}

// Sync points the cache at el. It recomputes only when el is a different
// shape from the one cached, and reports whether it did. A nil el clears.
func (hb *HandleBars) Sync(el *Element, d display.Display) bool {
	if el == nil {
		if hb.eventID == "" {
			return false
		}
		*hb = HandleBars{generation: hb.generation + 1}
		return true
	}
	verts := el.Vertices()
	if el.EventID == hb.eventID && el.Part == hb.part && slices.Equal(verts, hb.world) {
		return false
	}
	hb.eventID, hb.part, hb.kind = el.EventID, el.Part, el.Kind
	hb.world = slices.Clone(verts)
	hb.project(d)
	return true
}

// Refresh reprojects the cached vertices after the view moved.
func (hb *HandleBars) Refresh(d display.Display) {
	if hb.eventID == "" {
		return
	}
	hb.project(d)
}

func (hb *HandleBars) project(d display.Display) {
	hb.generation++
	hb.pixels = hb.pixels[:0]
	if d == nil {
		return
	}
	for _, w := range hb.world {
		p, err := d.WorldToPixel(w)
		if err != nil {
			hb.pixels = hb.pixels[:0]
			return
		}
		hb.pixels = append(hb.pixels, p)
	}
}

// Hit returns the index of the vertex within radius pixels of p.
func (hb *HandleBars) Hit(p orb.Point, radius float64) (int, bool) {
	best, idx := radius, -1
	for i, h := range hb.pixels {
		if d := planar.Distance(p, h); d <= best {
			best, idx = d, i
		}
	}
	return idx, idx >= 0
}

// Target identifies the event part the handles belong to.
func (hb *HandleBars) Target() (eventID string, part int, ok bool) {
	return hb.eventID, hb.part, hb.eventID != ""
}

func (hb *HandleBars) Points() []orb.Point { return hb.pixels }

func (hb *HandleBars) World() []orb.Point { return hb.world }

// Generation increases on every recomputation.
func (hb *HandleBars) Generation() int { return hb.generation }
