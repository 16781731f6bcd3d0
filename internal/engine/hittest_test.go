package engine

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Unidata/awips2-hazards-sub017/internal/display"
)

func newHitRig(d display.Display) (*Store, *HitTester) {
	s := NewStore(nil)
	tr := display.NewTransformer(&fakeProvider{d: d})
	return s, NewHitTester(s, tr, 2, 3)
}

func polygonElement(id string, ring orb.Ring) *Element {
	return &Element{ID: id, EventID: id, Kind: KindPolygon, Geometry: []orb.Point(ring)}
}

func TestNearestScenario(t *testing.T) {
	s, h := newHitRig(&fakeDisplay{id: "px"})
	sq := polygonElement("sq", orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}})
	require.NoError(t, s.Add(sq))

	got, ok := h.Nearest(orb.Point{11, 5})
	require.True(t, ok)
	assert.Same(t, sq, got)

	_, ok = h.Nearest(orb.Point{20, 5})
	assert.False(t, ok)
}

func TestNearestSkipsLinesAndText(t *testing.T) {
	s, h := newHitRig(&fakeDisplay{id: "px"})
	require.NoError(t, s.Add(&Element{ID: "l", Kind: KindLine, Geometry: []orb.Point{{0, 0}, {10, 0}}}))
	require.NoError(t, s.Add(&Element{ID: "t", Kind: KindText, Geometry: []orb.Point{{5, 0}}}))

	_, ok := h.Nearest(orb.Point{5, 0})
	assert.False(t, ok)

	dot := &Element{ID: "d", Kind: KindDot, Geometry: []orb.Point{{5, 1}}}
	require.NoError(t, s.Add(dot))
	got, ok := h.Nearest(orb.Point{5, 0})
	require.True(t, ok)
	assert.Same(t, dot, got)
}

func TestNearestWithoutDisplay(t *testing.T) {
	s, h := newHitRig(nil)
	require.NoError(t, s.Add(polygonElement("sq", orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}})))
	_, ok := h.Nearest(orb.Point{0, 0})
	assert.False(t, ok)
}

func TestAllContainingTopmostFirst(t *testing.T) {
	s, h := newHitRig(&fakeDisplay{id: "px"})
	a := polygonElement("a", orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}})
	b := polygonElement("b", orb.Ring{{5, 5}, {15, 5}, {15, 15}, {5, 15}, {5, 5}})
	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))

	p := orb.Point{7, 7}
	got := h.AllContaining(p, p)
	require.Len(t, got, 2)
	assert.Same(t, b, got[0])
	assert.Same(t, a, got[1])
}

func TestContainingPrefersFeatureOverSymbol(t *testing.T) {
	s, h := newHitRig(&fakeDisplay{id: "px"})
	area := polygonElement("area", orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}})
	marker := &Element{ID: "m", Kind: KindStar, Geometry: []orb.Point{{7, 7}}}
	require.NoError(t, s.Add(area))
	require.NoError(t, s.Add(marker))

	p := orb.Point{7, 7}
	got, ok := h.Containing(p, p)
	require.True(t, ok)
	assert.Same(t, area, got)

	// Outside the polygon the symbol is all there is.
	require.True(t, s.Remove(area))
	got, ok = h.Containing(p, p)
	require.True(t, ok)
	assert.Same(t, marker, got)
}

func TestContainingLineUsesSlop(t *testing.T) {
	s, h := newHitRig(&fakeDisplay{id: "px"})
	line := &Element{ID: "l", Kind: KindLine, Geometry: []orb.Point{{0, 0}, {10, 0}}}
	require.NoError(t, s.Add(line))

	near := orb.Point{5, 2}
	got, ok := h.Containing(near, near)
	require.True(t, ok)
	assert.Same(t, line, got)

	far := orb.Point{5, 4}
	_, ok = h.Containing(far, far)
	assert.False(t, ok)
}

func TestSlopDistance(t *testing.T) {
	_, h := newHitRig(&fakeDisplay{id: "px"})
	assert.InDelta(t, 3, h.SlopDistance(orb.Point{1, 1}, orb.Point{1, 1}), 1e-12)

	_, h = newHitRig(&fakeDisplay{id: "broken", failPixel: true})
	assert.Equal(t, 0.0, h.SlopDistance(orb.Point{1, 1}, orb.Point{1, 1}))

	_, h = newHitRig(nil)
	assert.Equal(t, 0.0, h.SlopDistance(orb.Point{1, 1}, orb.Point{1, 1}))
}

// edgeDisplay fails conversions to the right of x=100, like a pane edge.
type edgeDisplay struct{ fakeDisplay }

func (d *edgeDisplay) PixelToWorld(p orb.Point) (orb.Point, error) {
	if p[0] > 100 {
		return orb.Point{}, display.ErrOffMap
	}
	return orb.Point{p[0] * 2, p[1] * 2}, nil
}

func TestSlopDistanceFallsBackToNextOffset(t *testing.T) {
	_, h := newHitRig(&edgeDisplay{fakeDisplay{id: "edge"}})
	// +x fails at the edge, so -x is used: 3 pixels at 2 world units each.
	assert.InDelta(t, 6, h.SlopDistance(orb.Point{200, 0}, orb.Point{100, 0}), 1e-12)
}

func TestSlopFailureDegradesToExactContainment(t *testing.T) {
	s, h := newHitRig(&fakeDisplay{id: "broken", failPixel: true})
	line := &Element{ID: "l", Kind: KindLine, Geometry: []orb.Point{{0, 0}, {10, 0}}}
	require.NoError(t, s.Add(line))

	_, ok := h.Containing(orb.Point{5, 1}, orb.Point{5, 1})
	assert.False(t, ok)
	got, ok := h.Containing(orb.Point{5, 0}, orb.Point{5, 0})
	require.True(t, ok)
	assert.Same(t, line, got)
}
