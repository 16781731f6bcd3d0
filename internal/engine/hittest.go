package engine

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/Unidata/awips2-hazards-sub017/internal/display"
)

// HitTester answers "what is under the cursor" against the store, projecting
// through the active display on every query.
type HitTester struct {
	store *Store
	tr    *display.Transformer

	// SelectionDistance is the nearest-query cutoff in pixels.
	SelectionDistance float64
	// Slop is the pixel tolerance for line and point containment.
	Slop float64
}

func NewHitTester(store *Store, tr *display.Transformer, selectionPx, slopPx float64) *HitTester {
	return &HitTester{store: store, tr: tr, SelectionDistance: selectionPx, Slop: slopPx}
}

// Nearest returns the element whose projected outline is closest to pixel,
// provided it lies within SelectionDistance. Text and line elements are not
// candidates.
func (h *HitTester) Nearest(pixel orb.Point) (*Element, bool) {
	d, ok := h.tr.Active()
	if !ok {
		return nil, false
	}

	var best *Element
	bestDist := math.Inf(1)
	for el := range h.store.All() {
		if el.Ghost || el.Kind == KindText || el.Kind == KindLine || !el.valid() {
			continue
		}
		ring, err := projectRing(d, el.Geometry)
		if err != nil {
			continue
		}
		// Later elements paint on top and win ties.
		if dist := ringDistance(pixel, ring); dist <= bestDist {
			best, bestDist = el, dist
		}
	}
	if best == nil || bestDist > h.SelectionDistance {
		return nil, false
	}
	return best, true
}

// AllContaining returns every element containing world, topmost first.
func (h *HitTester) AllContaining(world, pixel orb.Point) []*Element {
	slop := h.SlopDistance(world, pixel)
	var out []*Element
	for el := range h.store.Backward() {
		if contains(el, world, slop) {
			out = append(out, el)
		}
	}
	return out
}

// Containing returns the topmost element containing world, preferring any
// non-symbol feature over a symbol drawn above it.
func (h *HitTester) Containing(world, pixel orb.Point) (*Element, bool) {
	slop := h.SlopDistance(world, pixel)
	var symbol *Element
	for el := range h.store.Backward() {
		if !contains(el, world, slop) {
			continue
		}
		if el.Kind.IsSymbol() {
			if symbol == nil {
				symbol = el
			}
			continue
		}
		return el, true
	}
	return symbol, symbol != nil
}

// SlopDistance converts the pixel Slop into world units at pixel. Offsets
// are tried right, left, down and up; the first that converts wins. When none
// converts the tolerance is zero.
func (h *HitTester) SlopDistance(world, pixel orb.Point) float64 {
	d, ok := h.tr.Active()
	if !ok {
		return 0
	}
	return offsetDistance(d, world, pixel, h.Slop)
}

func offsetDistance(d display.Display, world, pixel orb.Point, px float64) float64 {
	offsets := [4]orb.Point{{px, 0}, {-px, 0}, {0, px}, {0, -px}}
	for _, off := range offsets {
		w, err := d.PixelToWorld(orb.Point{pixel[0] + off[0], pixel[1] + off[1]})
		if err != nil {
			continue
		}
		return planar.Distance(world, w)
	}
	return 0
}

func contains(el *Element, w orb.Point, slop float64) bool {
	if el.Ghost || !el.valid() {
		return false
	}
	switch el.Kind {
	case KindPolygon, KindSelectionRect:
		if len(el.Geometry) < 3 {
			return false
		}
		return planar.PolygonContains(orb.Polygon{el.Ring()}, w)
	case KindLine:
		return pathDistance(w, el.Geometry) <= slop
	case KindPoint, KindCircle, KindStar, KindDot:
		return planar.Distance(w, el.Geometry[0]) <= slop
	case KindText:
		return false
	}
	return false
}

func projectRing(d display.Display, pts []orb.Point) ([]orb.Point, error) {
	ring := make([]orb.Point, 0, len(pts)+1)
	for _, w := range pts {
		p, err := d.WorldToPixel(w)
		if err != nil {
			return nil, err
		}
		ring = append(ring, p)
	}
	if len(ring) > 1 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring, nil
}

// ringDistance is the distance from p to the outline of ring; a one-point
// ring degenerates to point distance.
func ringDistance(p orb.Point, ring []orb.Point) float64 {
	if len(ring) == 1 {
		return planar.Distance(p, ring[0])
	}
	return pathDistance(p, ring)
}

func pathDistance(p orb.Point, path []orb.Point) float64 {
	if len(path) == 1 {
		return planar.Distance(p, path[0])
	}
	best := math.Inf(1)
	for i := 1; i < len(path); i++ {
		best = math.Min(best, planar.DistanceFromSegment(path[i-1], path[i], p))
	}
	return best
}

// nearestSegment returns the index i of the segment (i, i+1) of the closed
// outline of pts closest to p, and the distance to it.
func nearestSegment(p orb.Point, pts []orb.Point, closed bool) (int, float64) {
	n := len(pts)
	if n < 2 {
		return -1, math.Inf(1)
	}
	last := n - 1
	if closed {
		last = n
	}
	idx, best := -1, math.Inf(1)
	for i := 0; i < last; i++ {
		a, b := pts[i], pts[(i+1)%n]
		if d := planar.DistanceFromSegment(a, b, p); d < best {
			idx, best = i, d
		}
	}
	return idx, best
}
