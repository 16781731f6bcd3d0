package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"github.com/Unidata/awips2-hazards-sub017/internal/areasource"
	"github.com/Unidata/awips2-hazards-sub017/internal/typeid"
)

var ErrUnsupportedShape = errors.New("shape cannot be drawn in this mode")

// nodeDrawHandler collects vertices one click at a time. A double click or
// the secondary button finishes the shape.
type nodeDrawHandler struct {
	base
	shape   ShapeKind
	eventID string
	pts     []orb.Point
}

func newNodeDrawHandler(e *Engine, mode Mode) Handler {
	return &nodeDrawHandler{base: base{e: e, mode: mode}}
}

func (h *nodeDrawHandler) Cursor() Cursor { return CursorDraw }

func (h *nodeDrawHandler) install(_ context.Context, args HandlerArgs) error {
	switch args.Shape {
	case KindPolygon, KindLine, KindPoint, KindStar, KindDot, KindCircle:
	default:
		return fmt.Errorf("node drawing %s: %w", args.Shape, ErrUnsupportedShape)
	}
	h.shape, h.eventID, h.pts = args.Shape, args.EventID, nil
	return nil
}

func (h *nodeDrawHandler) uninstall() {
	h.pts = nil
	h.clearGhosts()
}

func (h *nodeDrawHandler) Handle(ev MouseEvent) bool {
	switch ev.Action {
	case MouseDown:
		if ev.Button == ButtonRight {
			if len(h.pts) == 0 {
				return false
			}
			h.finish()
			return true
		}
		if ev.Button != ButtonLeft {
			return false
		}
		w, ok := h.world(ev.Pixel)
		if !ok {
			return true
		}
		if h.shape.IsSymbol() {
			h.pts = []orb.Point{w}
			h.finish()
			return true
		}
		if n := len(h.pts); n == 0 || h.pts[n-1] != w {
			h.pts = append(h.pts, w)
		}
		h.preview(nil)
		return true
	case MouseMove:
		if len(h.pts) == 0 {
			return false
		}
		if w, ok := h.world(ev.Pixel); ok {
			h.preview(&w)
		}
		return true
	case MouseUp:
		return len(h.pts) > 0
	case MouseDoubleClick:
		if len(h.pts) == 0 {
			return false
		}
		h.finish()
		return true
	}
	return false
}

// preview shows the vertices so far plus a rubber band to the cursor.
func (h *nodeDrawHandler) preview(cursor *orb.Point) {
	pts := slices.Clone(h.pts)
	if cursor != nil {
		pts = append(pts, *cursor)
	}
	kind := KindLine
	if h.shape == KindPolygon && len(pts) >= 3 {
		kind = KindPolygon
		pts = append(pts, pts[0])
	}
	h.setGhosts(&Element{
		Kind:     kind,
		Geometry: pts,
		Style:    h.e.resolver.Resolve(kind, h.e.events[h.eventID], false),
	})
}

func (h *nodeDrawHandler) finish() {
	var g orb.Geometry
	switch {
	case h.shape.IsSymbol():
		g = h.pts[0]
	case h.shape == KindLine:
		if len(h.pts) < 2 {
			h.e.log.Info("line needs at least two vertices", "vertices", len(h.pts))
			return
		}
		g = orb.LineString(slices.Clone(h.pts))
	default:
		if len(h.pts) < 3 {
			h.e.log.Info("polygon needs at least three vertices", "vertices", len(h.pts))
			return
		}
		ring := append(orb.Ring(slices.Clone(h.pts)), h.pts[0])
		g = orb.Polygon{ring}
	}

	if err := h.e.checkDrawn(g); err != nil {
		h.pts = nil
		h.clearGhosts()
		return
	}
	h.e.publishGeometry(h.eventID, g)
	h.e.dispatch.complete()
}

// freehandHandler records a dragged stroke and thins it on release.
type freehandHandler struct {
	base
	shape   ShapeKind
	eventID string
	drawing bool
	last    orb.Point
	pts     []orb.Point
}

func newFreehandHandler(e *Engine, mode Mode) Handler {
	return &freehandHandler{base: base{e: e, mode: mode}}
}

func (h *freehandHandler) Cursor() Cursor { return CursorDraw }

func (h *freehandHandler) install(_ context.Context, args HandlerArgs) error {
	h.shape = KindPolygon
	if args.Shape == KindLine {
		h.shape = KindLine
	}
	h.eventID = args.EventID
	h.drawing, h.pts = false, nil
	return nil
}

func (h *freehandHandler) uninstall() {
	h.drawing, h.pts = false, nil
	h.clearGhosts()
}

func (h *freehandHandler) Handle(ev MouseEvent) bool {
	switch ev.Action {
	case MouseDown:
		if ev.Button != ButtonLeft {
			return false
		}
		w, ok := h.world(ev.Pixel)
		if !ok {
			return true
		}
		h.drawing, h.last, h.pts = true, ev.Pixel, []orb.Point{w}
		return true
	case MouseMove:
		if !h.drawing {
			return false
		}
		if planar.Distance(ev.Pixel, h.last) < 1 {
			return true
		}
		if w, ok := h.world(ev.Pixel); ok {
			h.last = ev.Pixel
			h.pts = append(h.pts, w)
			h.setGhosts(&Element{
				Kind:     KindLine,
				Geometry: slices.Clone(h.pts),
				Style:    h.e.resolver.Resolve(KindLine, h.e.events[h.eventID], false),
			})
		}
		return true
	case MouseUp:
		if !h.drawing || ev.Button != ButtonLeft {
			return false
		}
		h.drawing = false
		h.finish(ev.Pixel)
		return true
	}
	return false
}

func (h *freehandHandler) finish(px orb.Point) {
	defer func() { h.pts = nil }()

	tolerance := 0.0
	if d, ok := h.e.tr.Active(); ok && len(h.pts) > 0 {
		tolerance = offsetDistance(d, h.pts[len(h.pts)-1], px, 1)
	}
	thin := simplify.DouglasPeucker(tolerance)

	var g orb.Geometry
	if h.shape == KindLine {
		ls := thin.Simplify(orb.LineString(h.pts)).(orb.LineString)
		if len(ls) < 2 {
			h.clearGhosts()
			return
		}
		g = ls
	} else {
		ring := append(orb.Ring(slices.Clone(h.pts)), h.pts[0])
		ring = thin.Simplify(ring).(orb.Ring)
		if len(ring) < 4 {
			h.e.log.Info("freehand stroke too small for a polygon", "vertices", len(ring))
			h.clearGhosts()
			return
		}
		g = orb.Polygon{ring}
	}

	if err := h.e.checkDrawn(g); err != nil {
		h.clearGhosts()
		return
	}
	h.e.publishGeometry(h.eventID, g)
	h.e.dispatch.complete()
}

// dragDropHandler places a single dot, such as a storm-track start point,
// and lets the user drag it. The dot is persistent under its owner.
type dragDropHandler struct {
	base
	owner    string
	dot      *Element
	dragging bool
}

func newDragDropHandler(e *Engine, mode Mode) Handler {
	return &dragDropHandler{base: base{e: e, mode: mode}}
}

func (h *dragDropHandler) Cursor() Cursor { return CursorMove }

func (h *dragDropHandler) install(_ context.Context, args HandlerArgs) error {
	h.owner = args.EventID
	if h.owner == "" {
		h.owner = typeid.NewHandlerID()
	}
	h.dot, h.dragging = nil, false
	if args.Start != nil {
		return h.place(*args.Start)
	}
	return nil
}

func (h *dragDropHandler) uninstall() {
	h.dragging = false
	h.dot = nil
}

func (h *dragDropHandler) place(w orb.Point) error {
	el := &Element{
		ID:       typeid.NewElementID(),
		EventID:  h.owner,
		Kind:     KindDot,
		Geometry: []orb.Point{w},
		Style:    h.e.resolver.Resolve(KindDot, nil, h.dragging),
		Editable: true,
	}
	if err := h.e.Persist(h.owner, el); err != nil {
		return err
	}
	h.dot = el
	h.e.target.RequestRedraw()
	return nil
}

func (h *dragDropHandler) Handle(ev MouseEvent) bool {
	switch ev.Action {
	case MouseDown:
		if ev.Button != ButtonLeft {
			return false
		}
		w, ok := h.world(ev.Pixel)
		if !ok {
			return true
		}
		h.dragging = true
		if err := h.place(w); err != nil {
			h.e.log.Warn("cannot place dot", "owner", h.owner, "error", err)
		}
		return true
	case MouseMove:
		if !h.dragging {
			return false
		}
		if w, ok := h.world(ev.Pixel); ok {
			if err := h.place(w); err != nil {
				h.e.log.Warn("cannot move dot", "owner", h.owner, "error", err)
			}
		}
		return true
	case MouseUp:
		if !h.dragging || ev.Button != ButtonLeft {
			return false
		}
		h.dragging = false
		if h.dot == nil {
			return true
		}
		at := h.dot.Geometry[0]
		h.e.publishGeometry(h.owner, at)
		h.e.dispatch.complete()
		return true
	}
	return false
}

// drawByAreaHandler builds a geometry from polygons of a selectable overlay,
// such as counties or zones.
type drawByAreaHandler struct {
	base
	eventID string
	overlay *areasource.Overlay
	chosen  []*areasource.Area
	hover   *areasource.Area
}

func newDrawByAreaHandler(e *Engine, mode Mode) Handler {
	return &drawByAreaHandler{base: base{e: e, mode: mode}}
}

func (h *drawByAreaHandler) Cursor() Cursor { return CursorHand }

func (h *drawByAreaHandler) install(ctx context.Context, args HandlerArgs) error {
	if h.e.areas == nil {
		return ErrNoAreaSource
	}
	o, err := h.e.areas.Load(ctx, args.Area)
	if err != nil {
		return fmt.Errorf("load overlay %s: %w", args.Area, err)
	}
	if o == nil || o.Len() == 0 {
		return fmt.Errorf("overlay %s: %w", args.Area, areasource.ErrEmptyOverlay)
	}
	h.e.dispatch.overlay = o
	h.overlay, h.eventID = o, args.EventID
	h.chosen, h.hover = nil, nil
	return nil
}

func (h *drawByAreaHandler) uninstall() {
	h.overlay, h.chosen, h.hover = nil, nil, nil
	h.clearGhosts()
}

func (h *drawByAreaHandler) Handle(ev MouseEvent) bool {
	if h.overlay == nil {
		return false
	}
	switch ev.Action {
	case MouseMove:
		w, ok := h.world(ev.Pixel)
		if !ok {
			return false
		}
		a, _ := h.overlay.At(w)
		if a != h.hover {
			h.hover = a
			h.preview()
		}
		return true
	case MouseDown:
		switch ev.Button {
		case ButtonLeft:
			w, ok := h.world(ev.Pixel)
			if !ok {
				return true
			}
			if a, ok := h.overlay.At(w); ok {
				h.toggle(a)
				h.preview()
			}
			return true
		case ButtonRight:
			h.finish()
			return true
		}
	case MouseDoubleClick:
		h.finish()
		return true
	}
	return false
}

func (h *drawByAreaHandler) toggle(a *areasource.Area) {
	if i := slices.Index(h.chosen, a); i >= 0 {
		h.chosen = slices.Delete(h.chosen, i, i+1)
		return
	}
	h.chosen = append(h.chosen, a)
}

func (h *drawByAreaHandler) preview() {
	style := h.e.resolver.Resolve(KindPolygon, h.e.events[h.eventID], true)
	var els []*Element
	add := func(a *areasource.Area, s Style) {
		for _, poly := range a.Geometry {
			if len(poly) == 0 {
				continue
			}
			els = append(els, &Element{Kind: KindPolygon, Geometry: slices.Clone([]orb.Point(poly[0])), Style: s})
		}
	}
	for _, a := range h.chosen {
		s := style
		s.Fill = FillSolid
		s.FillColor = s.Color
		add(a, s)
	}
	if h.hover != nil && !slices.Contains(h.chosen, h.hover) {
		add(h.hover, style)
	}
	h.setGhosts(els...)
}

// finish emits the union of the chosen areas as a multipolygon. Overlay
// polygons come from a curated source and are not validated again.
func (h *drawByAreaHandler) finish() {
	if len(h.chosen) > 0 {
		var mp orb.MultiPolygon
		for _, a := range h.chosen {
			for _, poly := range a.Geometry {
				mp = append(mp, orb.Clone(poly).(orb.Polygon))
			}
		}
		h.e.publishGeometry(h.eventID, mp)
	}
	h.e.dispatch.complete()
}

// selectionRectHandler selects every event with a drawable inside a dragged
// rectangle. It stays installed after each selection.
type selectionRectHandler struct {
	base
	additive bool
	active   bool
	start    orb.Point
}

func newSelectionRectHandler(e *Engine, mode Mode) Handler {
	return &selectionRectHandler{base: base{e: e, mode: mode}}
}

func (h *selectionRectHandler) Cursor() Cursor { return CursorCrosshair }

func (h *selectionRectHandler) install(_ context.Context, args HandlerArgs) error {
	h.additive, h.active = args.Additive, false
	return nil
}

func (h *selectionRectHandler) uninstall() {
	h.active = false
	h.clearGhosts()
}

func (h *selectionRectHandler) Handle(ev MouseEvent) bool {
	switch ev.Action {
	case MouseDown:
		if ev.Button != ButtonLeft {
			return false
		}
		h.active, h.start = true, ev.Pixel
		return true
	case MouseMove:
		if !h.active {
			return false
		}
		h.preview(ev.Pixel)
		return true
	case MouseUp:
		if !h.active || ev.Button != ButtonLeft {
			return false
		}
		h.active = false
		h.clearGhosts()
		additive := h.additive || ev.Ctrl || ev.Shift
		rect := orb.MultiPoint{h.start, ev.Pixel}.Bound()
		if rect.Max[0]-rect.Min[0] < 1 && rect.Max[1]-rect.Min[1] < 1 {
			h.e.clickAt(ev.Pixel, additive)
			return true
		}
		h.e.selectInRect(rect, additive)
		return true
	}
	return false
}

func (h *selectionRectHandler) preview(px orb.Point) {
	corners := [4]orb.Point{h.start, {px[0], h.start[1]}, px, {h.start[0], px[1]}}
	ring := make([]orb.Point, 0, 5)
	for _, c := range corners {
		w, ok := h.world(c)
		if !ok {
			return
		}
		ring = append(ring, w)
	}
	ring = append(ring, ring[0])
	h.setGhosts(&Element{
		Kind:     KindSelectionRect,
		Geometry: ring,
		Style:    h.e.resolver.Resolve(KindSelectionRect, nil, false),
	})
}
