package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/Unidata/awips2-hazards-sub017/internal/display"
	"github.com/Unidata/awips2-hazards-sub017/internal/hazard"
	"github.com/Unidata/awips2-hazards-sub017/internal/notify"
)

var (
	ErrUnknownEvent    = errors.New("event is not drawn")
	ErrEditRejected    = errors.New("edit rejected")
	ErrNothingSelected = errors.New("nothing selected")
	ErrCannotCenter    = errors.New("active display cannot be recentered")
)

const (
	DefaultSelectionDistancePx = 10
	DefaultSlopPx              = 5
	DefaultHandleBarRadiusPx   = 6
)

// Patterns supplies dash arrays for line styles.
type Patterns interface {
	Dash(style string) []float64
}

// Centerer is implemented by displays that can move their view.
type Centerer interface {
	CenterOn(world orb.Point) error
}

type Options struct {
	Displays display.Provider
	Sink     notify.Sink
	Logger   *slog.Logger
	Resolver *Resolver
	Areas    AreaLoader
	Input    InputRegistrar
	Cursor   CursorSetter
	Target   Target
	Patterns Patterns

	SelectionDistancePx float64
	SlopPx              float64
	HandleBarRadiusPx   float64
}

// Engine is the spatial drawing and selection core. It is not safe for
// concurrent use; callers on other goroutines go through a Queue.
type Engine struct {
	log      *slog.Logger
	sink     notify.Sink
	target   Target
	tr       *display.Transformer
	resolver *Resolver
	areas    AreaLoader
	patterns Patterns

	arena      *Arena
	store      *Store
	persistent *PersistentShapes
	selection  *Selection
	renderer   *Renderer
	hits       *HitTester
	handles    HandleBars
	dispatch   *Dispatcher

	handleRadius float64

	events    map[string]*hazard.Event
	order     []string
	focusPart int

	cursor      orb.Point
	cursorKnown bool
}

// New builds an engine with single selection installed.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	sink := opts.Sink
	if sink == nil {
		sink = notify.Discard
	}
	target := opts.Target
	if target == nil {
		target = TargetFunc(func() {})
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = MustDefaultResolver()
	}

	e := &Engine{
		log:          log,
		sink:         sink,
		target:       target,
		tr:           display.NewTransformer(opts.Displays),
		resolver:     resolver,
		areas:        opts.Areas,
		patterns:     opts.Patterns,
		arena:        NewArena(),
		persistent:   NewPersistentShapes(),
		selection:    NewSelection(sink),
		handleRadius: orDefault(opts.HandleBarRadiusPx, DefaultHandleBarRadiusPx),
		events:       make(map[string]*hazard.Event),
	}
	e.store = NewStore(e.arena)
	e.renderer = NewRenderer(e.store, e.persistent, resolver, e.tr, target, log)
	e.hits = NewHitTester(e.store, e.tr,
		orDefault(opts.SelectionDistancePx, DefaultSelectionDistancePx),
		orDefault(opts.SlopPx, DefaultSlopPx))
	e.dispatch = newDispatcher(e, opts.Input, opts.Cursor, log)
	e.store.OnDispose(e.elementDisposed)
	e.dispatch.Set(context.Background(), ModeSingleSelection, HandlerArgs{})
	return e
}

func orDefault(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

// DrawEvents takes the current event set and rebuilds drawables if it
// differs from what was last drawn. Selected flags on events the engine has
// not seen, or whose flag changed, update the selection.
func (e *Engine) DrawEvents(events []*hazard.Event) bool {
	next := make(map[string]*hazard.Event, len(events))
	order := make([]string, 0, len(events))
	selChanged := false
	for _, ev := range events {
		if ev == nil || ev.ID == "" {
			continue
		}
		c := ev.Clone()
		if _, dup := next[c.ID]; !dup {
			order = append(order, c.ID)
		}
		next[c.ID] = c

		prev, known := e.events[c.ID]
		if (!known && c.Selected) || (known && prev.Selected != c.Selected) {
			if c.Selected {
				e.selection.add(c.ID)
			} else {
				e.selection.remove(c.ID)
			}
			selChanged = true
		}
	}
	for _, id := range e.selection.IDs() {
		if _, ok := next[id]; !ok && !e.persistent.Has(id) {
			e.selection.remove(id)
			selChanged = true
		}
	}
	e.events, e.order = next, order

	if selChanged {
		e.selection.publish()
		e.renderer.Invalidate()
	}
	drawn := e.draw()
	if drawn || selChanged {
		e.syncHandleBars()
	}
	return drawn
}

// ClearEvents drops every drawable except persistent shapes and ghosts.
func (e *Engine) ClearEvents() {
	removed := e.store.RemoveIf(func(el *Element) bool {
		return !el.Ghost && !e.persistent.Owns(el)
	})
	clear(e.events)
	e.order = nil
	e.renderer.Reset()
	e.syncHandleBars()
	e.log.Debug("cleared events", "removed", len(removed), "persistent", e.persistent.Len())
	e.target.RequestRedraw()
}

// IssueRefresh rebuilds drawables even if the event set is unchanged.
func (e *Engine) IssueRefresh() bool {
	e.renderer.Invalidate()
	drawn := e.draw()
	e.syncHandleBars()
	return drawn
}

// RemoveEvent takes id off the display, including any persistent shapes it
// registered.
func (e *Engine) RemoveEvent(id string) {
	for _, el := range e.persistent.Release(id) {
		e.store.Remove(el)
	}
	e.store.RemoveIf(func(el *Element) bool {
		return el.EventID == id && !el.Ghost
	})
	if _, ok := e.events[id]; ok {
		delete(e.events, id)
		e.order = slices.DeleteFunc(e.order, func(x string) bool { return x == id })
	}
	e.renderer.Forget(id)
	if e.selection.remove(id) {
		e.selection.publish()
	}
	e.syncHandleBars()
	e.target.RequestRedraw()
}

// Persist adds drawables owned by id that survive ClearEvents. Whatever id
// owned before is removed.
func (e *Engine) Persist(id string, els ...*Element) error {
	for _, el := range els {
		if !el.valid() {
			return ErrInvalidGeometry
		}
		if el.EventID == "" {
			el.EventID = id
		}
	}
	for _, old := range e.persistent.Register(id, els) {
		e.store.Remove(old)
	}
	for _, el := range els {
		if err := e.store.Add(el); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) SetMouseHandler(ctx context.Context, mode Mode, args HandlerArgs) {
	e.dispatch.Set(ctx, mode, args)
}

func (e *Engine) UnregisterCurrentMouseHandler() {
	e.dispatch.Unregister()
}

// Mode is the installed handler's mode.
func (e *Engine) Mode() (Mode, bool) {
	h, ok := e.dispatch.Current()
	if !ok {
		return 0, false
	}
	return h.Mode(), true
}

// HandleMouse delivers pointer input to the installed handler.
func (e *Engine) HandleMouse(ev MouseEvent) bool {
	e.cursor, e.cursorKnown = ev.Pixel, true
	h, ok := e.dispatch.Current()
	if !ok {
		return false
	}
	return h.Handle(ev)
}

// ElementClicked turns a hit into a selection change and returns the event
// identifier it applied to. Ghosts and unowned drawables select nothing.
func (e *Engine) ElementClicked(el *Element, multi, publish bool) (string, bool) {
	if el == nil || el.Ghost || el.EventID == "" {
		return "", false
	}
	id := el.EventID
	if multi {
		e.selection.toggle(id)
	} else {
		e.selection.selectExclusive(id)
	}
	e.focusPart = el.Part
	if publish {
		e.selection.publish()
	}
	e.selectionChanged()
	return id, true
}

func (e *Engine) SelectAll() {
	if len(e.order) == 0 {
		return
	}
	e.selection.replace(e.order)
	e.selection.publish()
	e.selectionChanged()
}

func (e *Engine) DeselectAll() {
	if e.selection.Len() == 0 {
		return
	}
	e.selection.Clear()
	e.selectionChanged()
}

// CenterOnSelected moves the active display to the most recently selected
// event.
func (e *Engine) CenterOnSelected() error {
	id, ok := e.selection.MostRecent()
	if !ok {
		return ErrNothingSelected
	}
	ev, ok := e.events[id]
	if !ok || ev.Geometry == nil {
		return fmt.Errorf("center on %s: %w", id, ErrUnknownEvent)
	}
	d, ok := e.tr.Active()
	if !ok {
		return display.ErrNoDisplay
	}
	c, ok := d.(Centerer)
	if !ok {
		return ErrCannotCenter
	}
	if err := c.CenterOn(ev.Geometry.Bound().Center()); err != nil {
		return fmt.Errorf("center on %s: %w", id, err)
	}
	e.ViewChanged()
	return nil
}

// elementDisposed cancels a drag whose target left the store. It runs
// inside store mutations, so it must not touch the store itself; the ghost
// goes away on release.
func (e *Engine) elementDisposed(el *Element) {
	h, ok := e.dispatch.current.(*selectHandler)
	if !ok || h.target != el {
		return
	}
	h.drag, h.target, h.pts = dragNone, nil, nil
}

// ViewChanged must be called after the active display pans or zooms.
func (e *Engine) ViewChanged() {
	d, ok := e.tr.Active()
	if !ok {
		return
	}
	if e.arena.SetZoom(d.ZoomLevel()) {
		e.log.Debug("zoom changed, render resources invalidated", "zoom", d.ZoomLevel())
	}
	e.handles.Refresh(d)
	e.target.RequestRedraw()
}

// FrameChanged re-applies time filtering after the display's frame time
// moved.
func (e *Engine) FrameChanged() {
	d, ok := e.tr.Active()
	if !ok {
		return
	}
	e.sink.Publish(notify.Notification{
		Kind:      notify.FrameChanged,
		FrameTime: d.Time().Selected,
	})
	e.renderer.Invalidate()
	e.draw()
	e.syncHandleBars()
}

func (e *Engine) Store() *Store { return e.store }

func (e *Engine) Selection() *Selection { return e.selection }

func (e *Engine) Persistent() *PersistentShapes { return e.persistent }

func (e *Engine) Renderer() *Renderer { return e.renderer }

func (e *Engine) HitTester() *HitTester { return e.hits }

func (e *Engine) HandleBars() *HandleBars { return &e.handles }

func (e *Engine) Transformer() *display.Transformer { return e.tr }

func (e *Engine) Event(id string) (*hazard.Event, bool) {
	ev, ok := e.events[id]
	return ev, ok
}

// Events returns the drawn event set in the order it was given.
func (e *Engine) Events() []*hazard.Event {
	return e.list()
}

func (e *Engine) list() []*hazard.Event {
	out := make([]*hazard.Event, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.events[id])
	}
	return out
}

func (e *Engine) draw() bool {
	return e.renderer.Draw(e.list(), e.selection.Contains)
}

func (e *Engine) selectionChanged() {
	e.renderer.Invalidate()
	e.draw()
	e.syncHandleBars()
}

// focus is the editable drawable handle bars attach to: a part of the only
// selected event, preferring the part last clicked.
func (e *Engine) focus() (*Element, bool) {
	if e.selection.Len() != 1 {
		return nil, false
	}
	id := e.selection.IDs()[0]
	var first *Element
	for _, el := range e.store.ForEvent(id) {
		if !el.Editable || el.Hatch || el.Kind == KindText {
			continue
		}
		if el.Part == e.focusPart {
			return el, true
		}
		if first == nil {
			first = el
		}
	}
	return first, first != nil
}

func (e *Engine) syncHandleBars() {
	el, ok := e.focus()
	if !ok {
		e.handles.Sync(nil, nil)
		return
	}
	d, _ := e.tr.Active()
	e.handles.Sync(el, d)
}

// clickAt selects what lies under a pixel. Nothing under the pointer clears
// the selection unless the click was additive.
func (e *Engine) clickAt(px orb.Point, multi bool) {
	w, err := e.tr.PixelToWorld(px)
	if err != nil {
		return
	}
	el, ok := e.hits.Containing(w, px)
	if !ok {
		el, ok = e.hits.Nearest(px)
	}
	if ok {
		e.ElementClicked(el, multi, true)
		return
	}
	if !multi {
		e.DeselectAll()
	}
}

// selectInRect selects events with an element intersecting the pixel
// rectangle.
func (e *Engine) selectInRect(rect orb.Bound, additive bool) {
	d, ok := e.tr.Active()
	if !ok {
		return
	}
	center, cerr := d.PixelToWorld(rect.Center())

	var ids []string
	for el := range e.store.All() {
		if el.Ghost || el.Kind == KindText || el.EventID == "" || slices.Contains(ids, el.EventID) {
			continue
		}
		if elementInRect(d, el, rect) || (cerr == nil && el.Kind == KindPolygon && contains(el, center, 0)) {
			ids = append(ids, el.EventID)
		}
	}

	if additive {
		for _, id := range ids {
			if !e.selection.Contains(id) {
				e.selection.add(id)
			}
		}
	} else {
		e.selection.replace(ids)
	}
	e.selection.publish()
	e.selectionChanged()
}

// elementInRect reports a projected vertex inside rect or an outline edge
// crossing one of its sides.
func elementInRect(d display.Display, el *Element, rect orb.Bound) bool {
	pts := el.Geometry
	outline := el.Kind == KindPolygon || el.Kind == KindLine
	if el.Kind == KindPolygon {
		pts = el.Ring()
	}
	sides := segments(rect.ToRing())

	var prev orb.Point
	havePrev := false
	for _, w := range pts {
		p, err := d.WorldToPixel(w)
		if err != nil {
			havePrev = false
			continue
		}
		if rect.Contains(p) {
			return true
		}
		if outline && havePrev {
			for _, side := range sides {
				if _, ok := segmentsIntersect(prev, p, side[0], side[1]); ok {
					return true
				}
			}
		}
		prev, havePrev = p, true
	}
	return false
}

// commitEdit applies an interactive edit of el's part. The event geometry
// with the part replaced is validated first; an invalid result leaves the
// event and its drawables as they were.
func (e *Engine) commitEdit(el *Element, pts []orb.Point) error {
	ev, ok := e.events[el.EventID]
	if !ok {
		if e.persistent.Owns(el) && len(pts) > 0 {
			// Persistent shapes without an event just move.
			repl := el.withGeometry(pts)
			if e.store.Replace(el, repl) {
				e.persistent.Swap(el, repl)
				e.publishGeometry(el.EventID, orb.Point(pts[0]))
				e.syncHandleBars()
				e.target.RequestRedraw()
			}
			return nil
		}
		return fmt.Errorf("edit %s: %w", el.EventID, ErrUnknownEvent)
	}
	parts := ev.Parts()
	if el.Part < 0 || el.Part >= len(parts) {
		return fmt.Errorf("edit %s part %d: %w", ev.ID, el.Part, ErrUnknownEvent)
	}

	part, drawn := partGeometry(el.Kind, parts[el.Part], pts)
	if part == nil {
		err := &ValidationError{Reason: ReasonEmpty}
		e.logRejected(ev.ID, err)
		return fmt.Errorf("%w: %w", ErrEditRejected, err)
	}
	g, ok := hazard.ReplacePart(ev.Geometry, el.Part, part)
	if !ok {
		return fmt.Errorf("edit %s part %d: %w", ev.ID, el.Part, ErrUnknownEvent)
	}
	// The whole event is checked so an edited part cannot overlap another.
	if err := ValidateGeometry(g); err != nil {
		e.logRejected(ev.ID, err)
		return fmt.Errorf("%w: %w", ErrEditRejected, err)
	}

	ev.Geometry = g
	e.renderer.Remember(ev)
	e.replaceDrawables(ev.ID, el, drawn)
	e.publishGeometry(ev.ID, g)
	e.syncHandleBars()
	e.target.RequestRedraw()
	return nil
}

// partGeometry turns edited element points back into the event part they
// came from. Polygon holes are kept.
func partGeometry(kind ShapeKind, orig orb.Geometry, pts []orb.Point) (orb.Geometry, []orb.Point) {
	switch kind {
	case KindPolygon:
		ring := (&Element{Kind: KindPolygon, Geometry: pts}).Ring()
		poly := orb.Polygon{ring}
		if op, ok := orig.(orb.Polygon); ok && len(op) > 1 {
			poly = append(poly, orb.Clone(op).(orb.Polygon)[1:]...)
		}
		return poly, []orb.Point(ring)
	case KindLine:
		return orb.LineString(slices.Clone(pts)), pts
	case KindPoint, KindCircle, KindStar, KindDot:
		if len(pts) == 0 {
			return nil, nil
		}
		return pts[0], pts[:1]
	}
	return nil, nil
}

// replaceDrawables swaps el and the drawables derived from the same part
// in place so paint order and selection survive the edit.
func (e *Engine) replaceDrawables(eventID string, el *Element, pts []orb.Point) {
	e.swap(el, el.withGeometry(pts))

	var circles []*Element
	for _, other := range e.store.ForEvent(eventID) {
		switch {
		case other.Hatch && other.Part == el.Part && el.Kind == KindPolygon:
			e.swap(other, other.withGeometry(slices.Clone(pts)))
		case other.Kind == KindCircle && !other.Editable && other.Part == el.Part && el.Kind == KindLine:
			circles = append(circles, other)
		}
	}
	if len(circles) == len(pts) {
		for i, c := range circles {
			e.swap(c, c.withGeometry([]orb.Point{pts[i]}))
		}
	}

	els := e.store.ForEvent(eventID)
	if at, ok := labelAnchor(els); ok {
		for _, other := range els {
			if other.Kind == KindText {
				e.swap(other, other.withGeometry([]orb.Point{at}))
			}
		}
	}
}

func (e *Engine) swap(old, repl *Element) {
	if e.store.Replace(old, repl) {
		e.persistent.Swap(old, repl)
	}
}

// checkDrawn validates a freshly drawn geometry, logging why it failed.
func (e *Engine) checkDrawn(g orb.Geometry) error {
	if err := ValidateGeometry(g); err != nil {
		e.logRejected("", err)
		return err
	}
	return nil
}

func (e *Engine) logRejected(eventID string, err error) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		e.log.Warn("rejecting invalid geometry",
			"event", eventID,
			"reason", ve.Reason,
			"x", ve.Location[0],
			"y", ve.Location[1],
		)
		return
	}
	e.log.Warn("rejecting invalid geometry", "event", eventID, "error", err)
}

func (e *Engine) publishGeometry(eventID string, g orb.Geometry) {
	e.sink.Publish(notify.Notification{
		Kind:     notify.GeometryModified,
		EventID:  eventID,
		Geometry: geojson.NewGeometry(g),
	})
}
