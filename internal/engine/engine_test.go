package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Unidata/awips2-hazards-sub017/internal/areasource"
	"github.com/Unidata/awips2-hazards-sub017/internal/display"
	"github.com/Unidata/awips2-hazards-sub017/internal/hazard"
	"github.com/Unidata/awips2-hazards-sub017/internal/notify"
)

// fakeDisplay maps world to pixel one to one.
type fakeDisplay struct {
	id        string
	failPixel bool
	zoom      float64
	time      display.TimeContext
	centered  []orb.Point
}

func (d *fakeDisplay) ID() string { return d.id }

func (d *fakeDisplay) WorldToPixel(w orb.Point) (orb.Point, error) { return w, nil }

func (d *fakeDisplay) PixelToWorld(p orb.Point) (orb.Point, error) {
	if d.failPixel {
		return orb.Point{}, display.ErrOffMap
	}
	return p, nil
}

func (d *fakeDisplay) ZoomLevel() float64 { return d.zoom }

func (d *fakeDisplay) Time() display.TimeContext { return d.time }

func (d *fakeDisplay) CenterOn(w orb.Point) error {
	d.centered = append(d.centered, w)
	return nil
}

type fakeProvider struct {
	d display.Display
}

func (p *fakeProvider) ActiveDisplay() (display.Display, bool) {
	return p.d, p.d != nil
}

type recorder struct {
	got []notify.Notification
}

func (r *recorder) Publish(n notify.Notification) { r.got = append(r.got, n) }

func (r *recorder) count(k notify.Kind) int {
	n := 0
	for _, x := range r.got {
		if x.Kind == k {
			n++
		}
	}
	return n
}

func (r *recorder) last(k notify.Kind) (notify.Notification, bool) {
	for i := len(r.got) - 1; i >= 0; i-- {
		if r.got[i].Kind == k {
			return r.got[i], true
		}
	}
	return notify.Notification{}, false
}

type fakeInput struct {
	calls []string
}

func (f *fakeInput) RegisterHandler(h Handler) {
	f.calls = append(f.calls, "register "+h.Mode().String())
}
func (f *fakeInput) UnregisterHandler(h Handler) {
	f.calls = append(f.calls, "unregister "+h.Mode().String())
}

type fakeCursor struct {
	last Cursor
}

func (c *fakeCursor) SetCursor(x Cursor) { c.last = x }

type areaFunc func(ctx context.Context, key areasource.Key) (*areasource.Overlay, error)

func (f areaFunc) Load(ctx context.Context, key areasource.Key) (*areasource.Overlay, error) {
	return f(ctx, key)
}

type testRig struct {
	e       *Engine
	sink    *recorder
	disp    *fakeDisplay
	prov    *fakeProvider
	input   *fakeInput
	cursor  *fakeCursor
	redraws int
}

func newRig(t *testing.T, opts ...func(*Options)) *testRig {
	t.Helper()
	r := &testRig{
		sink:   &recorder{},
		disp:   &fakeDisplay{id: "main", zoom: 1},
		input:  &fakeInput{},
		cursor: &fakeCursor{},
	}
	r.prov = &fakeProvider{d: r.disp}
	o := Options{
		Displays:            r.prov,
		Sink:                r.sink,
		Input:               r.input,
		Cursor:              r.cursor,
		Target:              TargetFunc(func() { r.redraws++ }),
		SelectionDistancePx: 2,
		SlopPx:              1,
	}
	for _, fn := range opts {
		fn(&o)
	}
	r.e = New(o)
	return r
}

func squareEvent(id string, x, y, size float64) *hazard.Event {
	return &hazard.Event{
		ID:           id,
		Phenomenon:   "TO",
		Significance: "W",
		Status:       hazard.StatusPending,
		Geometry:     orb.Polygon{squareRing(x, y, size)},
	}
}

func squareRing(x, y, size float64) orb.Ring {
	return orb.Ring{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}
}

func outline(t *testing.T, e *Engine, eventID string, part int) *Element {
	t.Helper()
	for _, el := range e.Store().ForEvent(eventID) {
		if el.Kind == KindPolygon && !el.Hatch && el.Part == part {
			return el
		}
	}
	t.Fatalf("no outline for %s part %d", eventID, part)
	return nil
}

func TestNewInstallsSingleSelection(t *testing.T) {
	r := newRig(t)
	mode, ok := r.e.Mode()
	require.True(t, ok)
	assert.Equal(t, ModeSingleSelection, mode)
	assert.Equal(t, []string{"register singleSelection"}, r.input.calls)
	assert.Equal(t, CursorArrow, r.cursor.last)
}

func TestDrawEventsSkipsUnchangedSet(t *testing.T) {
	r := newRig(t)
	events := []*hazard.Event{squareEvent("a", 0, 0, 10), squareEvent("b", 20, 0, 10)}

	assert.True(t, r.e.DrawEvents(events))
	assert.False(t, r.e.DrawEvents(events))
	assert.Equal(t, 1, r.e.Renderer().Rebuilds())
	assert.Equal(t, 1, r.redraws)

	// A dropped event changes the set size.
	assert.True(t, r.e.DrawEvents(events[:1]))
	assert.Empty(t, r.e.Store().ForEvent("b"))

	moved := squareEvent("a", 1, 0, 10)
	assert.True(t, r.e.DrawEvents([]*hazard.Event{moved}))
	assert.Equal(t, 3, r.e.Renderer().Rebuilds())

	// Same size, different identifier.
	assert.True(t, r.e.DrawEvents([]*hazard.Event{squareEvent("c", 1, 0, 10)}))
	assert.Empty(t, r.e.Store().ForEvent("a"))
	assert.Equal(t, 4, r.e.Renderer().Rebuilds())
}

func TestDrawEventsIgnoresTimeZone(t *testing.T) {
	r := newRig(t)
	start := time.Date(2026, 5, 20, 18, 0, 0, 0, time.UTC)
	ist := time.FixedZone("", 5*3600+1800)

	a := squareEvent("a", 0, 0, 10)
	a.Time = hazard.TimeRange{Start: start, End: start.Add(time.Hour)}
	b := squareEvent("a", 0, 0, 10)
	b.Time = hazard.TimeRange{Start: start.In(ist), End: start.Add(time.Hour).In(ist)}

	assert.True(t, r.e.DrawEvents([]*hazard.Event{a}))
	assert.False(t, r.e.DrawEvents([]*hazard.Event{b}))
	assert.Equal(t, 1, r.e.Renderer().Rebuilds())
}

func TestDrawEventsWithoutDisplay(t *testing.T) {
	r := newRig(t)
	r.prov.d = nil
	events := []*hazard.Event{squareEvent("a", 0, 0, 10)}

	assert.False(t, r.e.DrawEvents(events))
	assert.Zero(t, r.e.Store().Len())

	r.prov.d = r.disp
	assert.True(t, r.e.DrawEvents(events))
	assert.NotZero(t, r.e.Store().Len())
}

func TestDrawEventsTimeFilter(t *testing.T) {
	r := newRig(t)
	now := time.Date(2026, 5, 3, 21, 0, 0, 0, time.UTC)
	r.disp.time = display.TimeContext{Selected: now}

	current := squareEvent("current", 0, 0, 10)
	current.Time = hazard.TimeRange{Start: now.Add(-time.Hour), End: now.Add(time.Hour)}
	later := squareEvent("later", 20, 0, 10)
	later.Time = hazard.TimeRange{Start: now.Add(2 * time.Hour), End: now.Add(3 * time.Hour)}
	track := &hazard.Event{
		ID:         "track",
		Geometry:   orb.LineString{{0, 20}, {10, 25}},
		Time:       later.Time,
		Status:     hazard.StatusPotential,
		Attributes: map[string]any{hazard.AttrTrackPoints: []any{}},
	}
	untimed := squareEvent("untimed", 40, 0, 10)

	r.e.DrawEvents([]*hazard.Event{current, later, track, untimed})

	assert.NotEmpty(t, r.e.Store().ForEvent("current"))
	assert.Empty(t, r.e.Store().ForEvent("later"))
	assert.NotEmpty(t, r.e.Store().ForEvent("track"))
	assert.NotEmpty(t, r.e.Store().ForEvent("untimed"))

	r.disp.time = display.TimeContext{
		Range:       hazard.TimeRange{Start: now.Add(90 * time.Minute), End: now.Add(4 * time.Hour)},
		RangeActive: true,
	}
	r.e.FrameChanged()
	assert.Empty(t, r.e.Store().ForEvent("current"))
	assert.NotEmpty(t, r.e.Store().ForEvent("later"))
	assert.Equal(t, 1, r.sink.count(notify.FrameChanged))
}

func TestDrawEventsInvalidRangeWithoutInstant(t *testing.T) {
	r := newRig(t)
	now := time.Date(2026, 5, 3, 21, 0, 0, 0, time.UTC)
	r.disp.time = display.TimeContext{
		Range:       hazard.TimeRange{Start: now, End: now.Add(-time.Hour)},
		RangeActive: true,
	}
	timed := squareEvent("timed", 0, 0, 10)
	timed.Time = hazard.TimeRange{Start: now.Add(-time.Hour), End: now.Add(time.Hour)}

	r.e.DrawEvents([]*hazard.Event{timed})
	assert.NotEmpty(t, r.e.Store().ForEvent("timed"))
}

func TestPersistentEventLeavesFrame(t *testing.T) {
	r := newRig(t)
	now := time.Date(2026, 5, 3, 21, 0, 0, 0, time.UTC)
	r.disp.time = display.TimeContext{Selected: now}

	ev := squareEvent("p", 0, 0, 10)
	ev.Persistent = true
	ev.Time = hazard.TimeRange{Start: now.Add(-time.Hour), End: now.Add(time.Hour)}
	r.e.DrawEvents([]*hazard.Event{ev})
	require.True(t, r.e.Persistent().Has("p"))

	r.disp.time = display.TimeContext{Selected: now.Add(3 * time.Hour)}
	r.e.FrameChanged()
	assert.False(t, r.e.Persistent().Has("p"))
	assert.Empty(t, r.e.Store().ForEvent("p"))

	r.disp.time = display.TimeContext{Selected: now}
	r.e.FrameChanged()
	assert.True(t, r.e.Persistent().Has("p"))
	assert.NotEmpty(t, r.e.Store().ForEvent("p"))
}

func TestDrawEventsSeedsSelection(t *testing.T) {
	r := newRig(t)
	a := squareEvent("a", 0, 0, 10)
	a.Selected = true
	b := squareEvent("b", 20, 0, 10)

	r.e.DrawEvents([]*hazard.Event{a, b})
	assert.Equal(t, []string{"a"}, r.e.Selection().IDs())
	assert.True(t, outline(t, r.e, "a", 0).Selected)
	assert.False(t, outline(t, r.e, "b", 0).Selected)

	r.e.DrawEvents([]*hazard.Event{b})
	assert.Empty(t, r.e.Selection().IDs())
	n, ok := r.sink.last(notify.SelectedEventsChanged)
	require.True(t, ok)
	assert.Empty(t, n.EventIDs)
}

func TestSelectionDeduplicatesEvent(t *testing.T) {
	r := newRig(t)
	ev := &hazard.Event{
		ID: "multi",
		Geometry: orb.MultiPolygon{
			{squareRing(0, 0, 10)},
			{squareRing(20, 0, 10)},
		},
	}
	r.e.DrawEvents([]*hazard.Event{ev})
	first := outline(t, r.e, "multi", 0)
	second := outline(t, r.e, "multi", 1)

	id, ok := r.e.ElementClicked(first, false, true)
	require.True(t, ok)
	assert.Equal(t, "multi", id)
	r.e.Selection().Add(second.EventID)

	assert.Equal(t, 1, r.e.Selection().Len())
	n, ok := r.sink.last(notify.SelectedEventsChanged)
	require.True(t, ok)
	assert.Equal(t, []string{"multi"}, n.EventIDs)
}

func TestElementClickedToggle(t *testing.T) {
	r := newRig(t)
	r.e.DrawEvents([]*hazard.Event{squareEvent("a", 0, 0, 10), squareEvent("b", 20, 0, 10)})

	r.e.ElementClicked(outline(t, r.e, "a", 0), false, true)
	r.e.ElementClicked(outline(t, r.e, "b", 0), true, true)
	assert.Equal(t, []string{"a", "b"}, r.e.Selection().IDs())

	r.e.ElementClicked(outline(t, r.e, "a", 0), true, false)
	assert.Equal(t, []string{"b"}, r.e.Selection().IDs())
	n, _ := r.sink.last(notify.SelectedEventsChanged)
	assert.Equal(t, []string{"a", "b"}, n.EventIDs, "silent click publishes nothing")

	_, ok := r.e.ElementClicked(&Element{Ghost: true, EventID: "a"}, false, true)
	assert.False(t, ok)
}

func TestPersistentShapeSurvivesClear(t *testing.T) {
	r := newRig(t)
	r.e.DrawEvents([]*hazard.Event{squareEvent("a", 0, 0, 10)})

	dot := &Element{ID: "dot", Kind: KindDot, Geometry: []orb.Point{{5, 5}}}
	require.NoError(t, r.e.Persist("track-1", dot))
	assert.True(t, dot.Persistent)

	r.e.ClearEvents()
	assert.True(t, r.e.Store().Contains(dot))
	assert.Empty(t, r.e.Store().ForEvent("a"))

	r.e.RemoveEvent("track-1")
	assert.False(t, r.e.Store().Contains(dot))
	assert.False(t, r.e.Persistent().Has("track-1"))
}

func TestPersistentEventLifecycle(t *testing.T) {
	r := newRig(t)
	ev := squareEvent("p", 0, 0, 10)
	ev.Persistent = true
	r.e.DrawEvents([]*hazard.Event{ev})
	els := r.e.Persistent().Get("p")
	require.NotEmpty(t, els)

	r.e.ClearEvents()
	for _, el := range els {
		assert.True(t, r.e.Store().Contains(el))
	}

	// Redrawing re-registers under the same identifier without duplicates.
	r.e.DrawEvents([]*hazard.Event{ev})
	assert.Len(t, r.e.Store().ForEvent("p"), len(els))

	ev.Persistent = false
	r.e.DrawEvents([]*hazard.Event{ev})
	assert.False(t, r.e.Persistent().Has("p"))
	assert.Len(t, r.e.Store().ForEvent("p"), len(els))
}

func TestPersistRejectsEmptyGeometry(t *testing.T) {
	r := newRig(t)
	err := r.e.Persist("x", &Element{Kind: KindDot})
	assert.ErrorIs(t, err, ErrInvalidGeometry)
	assert.Zero(t, r.e.Store().Len())
}

func TestCommitEditRejectsInvalidGeometry(t *testing.T) {
	r := newRig(t)
	r.e.DrawEvents([]*hazard.Event{squareEvent("a", 0, 0, 10)})
	el := outline(t, r.e, "a", 0)
	before := r.e.Store().Len()
	ev, _ := r.e.Event("a")
	orig := orb.Clone(ev.Geometry)

	bowtie := []orb.Point{{0, 0}, {10, 10}, {10, 0}, {0, 10}, {0, 0}}
	err := r.e.commitEdit(el, bowtie)

	assert.ErrorIs(t, err, ErrEditRejected)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, ReasonSelfIntersection, ve.Reason)

	ev, _ = r.e.Event("a")
	assert.True(t, orb.Equal(orig, ev.Geometry))
	assert.True(t, r.e.Store().Contains(el))
	assert.Equal(t, before, r.e.Store().Len())
	assert.Zero(t, r.sink.count(notify.GeometryModified))
}

func TestCommitEditRejectsOverlappingParts(t *testing.T) {
	r := newRig(t)
	r.e.DrawEvents([]*hazard.Event{{
		ID: "multi",
		Geometry: orb.MultiPolygon{
			{squareRing(0, 0, 10)},
			{squareRing(20, 0, 10)},
		},
	}})
	el := outline(t, r.e, "multi", 1)
	ev, _ := r.e.Event("multi")
	orig := orb.Clone(ev.Geometry)

	err := r.e.commitEdit(el, []orb.Point(squareRing(5, 0, 10)))
	assert.ErrorIs(t, err, ErrEditRejected)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, ReasonSelfIntersection, ve.Reason)

	ev, _ = r.e.Event("multi")
	assert.True(t, orb.Equal(orig, ev.Geometry))
	assert.NoError(t, ValidateGeometry(ev.Geometry))
	assert.True(t, r.e.Store().Contains(el))
	assert.Zero(t, r.sink.count(notify.GeometryModified))

	// Moving the part clear of the other one is accepted.
	require.NoError(t, r.e.commitEdit(el, []orb.Point(squareRing(40, 0, 10))))
	ev, _ = r.e.Event("multi")
	assert.NoError(t, ValidateGeometry(ev.Geometry))
}

func TestCommitEditReplacesInPlace(t *testing.T) {
	r := newRig(t)
	ev := squareEvent("a", 0, 0, 10)
	ev.Attributes = map[string]any{hazard.AttrHatchedArea: true}
	r.e.DrawEvents([]*hazard.Event{ev})
	el := outline(t, r.e, "a", 0)
	rebuilds := r.e.Renderer().Rebuilds()

	pts := []orb.Point{{0, 0}, {12, 0}, {10, 10}, {0, 10}, {0, 0}}
	require.NoError(t, r.e.commitEdit(el, pts))

	assert.False(t, r.e.Store().Contains(el))
	repl := outline(t, r.e, "a", 0)
	assert.Equal(t, el.ID, repl.ID)
	assert.Equal(t, pts, repl.Geometry)
	for _, x := range r.e.Store().ForEvent("a") {
		if x.Hatch {
			assert.Equal(t, pts, x.Geometry)
		}
	}

	got, _ := r.e.Event("a")
	assert.True(t, orb.Equal(orb.Polygon{orb.Ring(pts)}, got.Geometry))
	n, ok := r.sink.last(notify.GeometryModified)
	require.True(t, ok)
	assert.Equal(t, "a", n.EventID)

	// The committed geometry is remembered, so the owner echoing it back
	// does not rebuild.
	r.e.DrawEvents([]*hazard.Event{got})
	assert.Equal(t, rebuilds, r.e.Renderer().Rebuilds())
}

func TestCommitEditKeepsHoles(t *testing.T) {
	r := newRig(t)
	ev := &hazard.Event{
		ID:       "holed",
		Geometry: orb.Polygon{squareRing(0, 0, 20), {{5, 5}, {5, 10}, {10, 10}, {10, 5}, {5, 5}}},
	}
	r.e.DrawEvents([]*hazard.Event{ev})
	el := outline(t, r.e, "holed", 0)

	require.NoError(t, r.e.commitEdit(el, []orb.Point{{0, 0}, {25, 0}, {20, 20}, {0, 20}, {0, 0}}))
	got, _ := r.e.Event("holed")
	poly := got.Geometry.(orb.Polygon)
	require.Len(t, poly, 2)
	assert.Equal(t, orb.Point{5, 5}, poly[1][0])
}

func TestDragHandleBarCommitsEdit(t *testing.T) {
	r := newRig(t)
	r.e.DrawEvents([]*hazard.Event{squareEvent("a", 0, 0, 10)})

	r.e.HandleMouse(MouseEvent{Action: MouseDown, Button: ButtonLeft, Pixel: orb.Point{5, 5}})
	r.e.HandleMouse(MouseEvent{Action: MouseUp, Button: ButtonLeft, Pixel: orb.Point{5, 5}})
	require.Equal(t, []string{"a"}, r.e.Selection().IDs())
	require.Len(t, r.e.HandleBars().Points(), 4)

	r.e.HandleMouse(MouseEvent{Action: MouseDown, Button: ButtonLeft, Pixel: orb.Point{10, 10}})
	r.e.HandleMouse(MouseEvent{Action: MouseMove, Pixel: orb.Point{14, 12}})

	ghosts := 0
	for el := range r.e.Store().All() {
		if el.Ghost {
			ghosts++
		}
	}
	assert.Equal(t, 1, ghosts)

	r.e.HandleMouse(MouseEvent{Action: MouseUp, Button: ButtonLeft, Pixel: orb.Point{14, 12}})

	got, _ := r.e.Event("a")
	ring := got.Geometry.(orb.Polygon)[0]
	assert.Equal(t, orb.Point{14, 12}, ring[2])
	assert.Equal(t, orb.Point{14, 12}, r.e.HandleBars().World()[2])
	for el := range r.e.Store().All() {
		assert.False(t, el.Ghost)
	}
}

func TestMoveSelectedShape(t *testing.T) {
	r := newRig(t)
	r.e.DrawEvents([]*hazard.Event{squareEvent("a", 0, 0, 10)})
	r.e.ElementClicked(outline(t, r.e, "a", 0), false, true)

	r.e.HandleMouse(MouseEvent{Action: MouseDown, Button: ButtonLeft, Pixel: orb.Point{5, 5}})
	r.e.HandleMouse(MouseEvent{Action: MouseMove, Pixel: orb.Point{8, 7}})
	r.e.HandleMouse(MouseEvent{Action: MouseUp, Button: ButtonLeft, Pixel: orb.Point{8, 7}})

	got, _ := r.e.Event("a")
	assert.Equal(t, orb.Point{3, 2}, got.Geometry.(orb.Polygon)[0][0])
}

func TestRebuildCancelsDrag(t *testing.T) {
	r := newRig(t)
	r.e.DrawEvents([]*hazard.Event{squareEvent("a", 0, 0, 10)})
	r.e.ElementClicked(outline(t, r.e, "a", 0), false, true)

	r.e.HandleMouse(MouseEvent{Action: MouseDown, Button: ButtonLeft, Pixel: orb.Point{5, 5}})
	r.e.HandleMouse(MouseEvent{Action: MouseMove, Pixel: orb.Point{8, 7}})
	r.e.IssueRefresh()
	r.e.HandleMouse(MouseEvent{Action: MouseUp, Button: ButtonLeft, Pixel: orb.Point{8, 7}})

	got, _ := r.e.Event("a")
	assert.Equal(t, orb.Point{0, 0}, got.Geometry.(orb.Polygon)[0][0])
	assert.Zero(t, r.sink.count(notify.GeometryModified))
	for el := range r.e.Store().All() {
		assert.False(t, el.Ghost)
	}
}

func TestDragOfVanishedEventIsLogged(t *testing.T) {
	var logs bytes.Buffer
	r := newRig(t, func(o *Options) {
		o.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	})
	r.e.DrawEvents([]*hazard.Event{squareEvent("a", 0, 0, 10)})
	r.e.ElementClicked(outline(t, r.e, "a", 0), false, true)

	r.e.HandleMouse(MouseEvent{Action: MouseDown, Button: ButtonLeft, Pixel: orb.Point{5, 5}})
	r.e.HandleMouse(MouseEvent{Action: MouseMove, Pixel: orb.Point{8, 7}})
	// The event goes away without its drawables being disposed.
	delete(r.e.events, "a")
	r.e.HandleMouse(MouseEvent{Action: MouseUp, Button: ButtonLeft, Pixel: orb.Point{8, 7}})

	assert.Contains(t, logs.String(), "dropping edit")
	assert.Contains(t, logs.String(), ErrUnknownEvent.Error())
	assert.Zero(t, r.sink.count(notify.GeometryModified))
}

func TestClickEmptySpaceDeselects(t *testing.T) {
	r := newRig(t)
	r.e.DrawEvents([]*hazard.Event{squareEvent("a", 0, 0, 10)})
	r.e.ElementClicked(outline(t, r.e, "a", 0), false, true)

	r.e.HandleMouse(MouseEvent{Action: MouseDown, Button: ButtonLeft, Pixel: orb.Point{50, 50}, Shift: true})
	r.e.HandleMouse(MouseEvent{Action: MouseUp, Button: ButtonLeft, Pixel: orb.Point{50, 50}, Shift: true})
	assert.Equal(t, 1, r.e.Selection().Len())

	r.e.HandleMouse(MouseEvent{Action: MouseDown, Button: ButtonLeft, Pixel: orb.Point{50, 50}})
	r.e.HandleMouse(MouseEvent{Action: MouseUp, Button: ButtonLeft, Pixel: orb.Point{50, 50}})
	assert.Zero(t, r.e.Selection().Len())
	assert.Empty(t, r.e.HandleBars().Points())
}

func TestCenterOnSelected(t *testing.T) {
	r := newRig(t)
	assert.ErrorIs(t, r.e.CenterOnSelected(), ErrNothingSelected)

	r.e.DrawEvents([]*hazard.Event{squareEvent("a", 0, 0, 10), squareEvent("b", 20, 0, 10)})
	r.e.ElementClicked(outline(t, r.e, "a", 0), false, true)
	r.e.ElementClicked(outline(t, r.e, "b", 0), true, true)

	require.NoError(t, r.e.CenterOnSelected())
	assert.Equal(t, []orb.Point{{25, 5}}, r.disp.centered)
}

func TestRemoveEventDropsSelection(t *testing.T) {
	r := newRig(t)
	r.e.DrawEvents([]*hazard.Event{squareEvent("a", 0, 0, 10), squareEvent("b", 20, 0, 10)})
	r.e.SelectAll()
	assert.Equal(t, []string{"a", "b"}, r.e.Selection().IDs())

	r.e.RemoveEvent("a")
	assert.Empty(t, r.e.Store().ForEvent("a"))
	assert.Equal(t, []string{"b"}, r.e.Selection().IDs())
	assert.Len(t, r.e.Events(), 1)

	r.e.DeselectAll()
	assert.Zero(t, r.e.Selection().Len())
}

func TestViewChangedInvalidatesArena(t *testing.T) {
	r := newRig(t)
	r.e.DrawEvents([]*hazard.Event{squareEvent("a", 0, 0, 10)})
	el := outline(t, r.e, "a", 0)

	r.e.DrawCommands()
	_, cached := r.e.arena.Get(el.handle)
	require.True(t, cached)

	r.disp.zoom = 2
	r.e.ViewChanged()
	_, cached = r.e.arena.Get(el.handle)
	assert.False(t, cached)
}

func TestAreaLoaderErrorsAreContained(t *testing.T) {
	failing := areaFunc(func(context.Context, areasource.Key) (*areasource.Overlay, error) {
		return nil, errors.New("connection refused")
	})
	r := newRig(t, func(o *Options) { o.Areas = failing })

	r.e.SetMouseHandler(context.Background(), ModeDrawByArea, HandlerArgs{Area: areasource.Key{Table: "county", Name: "countyname"}})

	mode, ok := r.e.Mode()
	require.True(t, ok)
	assert.Equal(t, ModeSingleSelection, mode)
	assert.Equal(t, 1, r.sink.count(notify.DrawingActionComplete))
}
