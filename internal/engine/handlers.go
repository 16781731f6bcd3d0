package engine

import (
	"context"
	"errors"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/Unidata/awips2-hazards-sub017/internal/typeid"
)

// base carries what every handler shares: the engine and the ghosts the
// handler currently shows.
type base struct {
	e      *Engine
	mode   Mode
	ghosts []*Element
}

func (b *base) Mode() Mode { return b.mode }

func (b *base) world(px orb.Point) (orb.Point, bool) {
	w, err := b.e.tr.PixelToWorld(px)
	return w, err == nil
}

// setGhosts replaces the handler's ghosts with els, restyled as previews.
func (b *base) setGhosts(els ...*Element) {
	b.dropGhosts()
	for _, el := range els {
		if el.ID == "" {
			el.ID = typeid.NewGhostID()
		}
		el.Ghost = true
		el.Style = b.e.resolver.Ghost(el.Style)
		if err := b.e.store.Add(el); err != nil {
			continue
		}
		b.ghosts = append(b.ghosts, el)
	}
	b.e.target.RequestRedraw()
}

func (b *base) clearGhosts() {
	if len(b.ghosts) == 0 {
		return
	}
	b.dropGhosts()
	b.e.target.RequestRedraw()
}

func (b *base) dropGhosts() {
	for _, el := range b.ghosts {
		b.e.store.Remove(el)
	}
	b.ghosts = b.ghosts[:0]
}

type dragKind int

const (
	dragNone dragKind = iota
	dragVertex
	dragMove
)

// selectHandler serves single and multi selection. Besides clicking it drags
// handle bars and moves selected editable shapes.
type selectHandler struct {
	base
	additive bool

	down    bool
	drag    dragKind
	moved   bool
	target  *Element
	vertex  int
	pressPx orb.Point
	pressW  orb.Point
	pts     []orb.Point
}

func newSelectHandler(e *Engine, mode Mode) Handler {
	return &selectHandler{base: base{e: e, mode: mode}}
}

func (h *selectHandler) Cursor() Cursor { return CursorArrow }

func (h *selectHandler) install(_ context.Context, args HandlerArgs) error {
	h.additive = args.Additive || h.mode == ModeMultiSelection
	h.reset()
	return nil
}

func (h *selectHandler) uninstall() {
	h.reset()
	h.clearGhosts()
}

func (h *selectHandler) reset() {
	h.down, h.drag, h.moved = false, dragNone, false
	h.target, h.vertex, h.pts = nil, -1, nil
}

func (h *selectHandler) Handle(ev MouseEvent) bool {
	switch ev.Action {
	case MouseDown:
		if ev.Button != ButtonLeft {
			return false
		}
		return h.press(ev)
	case MouseMove:
		return h.dragTo(ev)
	case MouseUp:
		if ev.Button != ButtonLeft {
			return false
		}
		return h.release(ev)
	}
	return false
}

func (h *selectHandler) press(ev MouseEvent) bool {
	w, ok := h.world(ev.Pixel)
	if !ok {
		return false
	}
	h.reset()
	h.down, h.pressPx, h.pressW = true, ev.Pixel, w

	if el, ok := h.e.focus(); ok {
		if idx, hit := h.e.handles.Hit(ev.Pixel, h.e.handleRadius); hit {
			h.drag, h.target, h.vertex = dragVertex, el, idx
			return true
		}
	}
	if el, ok := h.e.hits.Containing(w, ev.Pixel); ok && h.movable(el) {
		h.drag, h.target = dragMove, el
	}
	return true
}

func (h *selectHandler) movable(el *Element) bool {
	return el.Editable && !el.Hatch && el.Kind != KindText && h.e.selection.Contains(el.EventID)
}

func (h *selectHandler) dragTo(ev MouseEvent) bool {
	if !h.down {
		return false
	}
	if h.drag == dragNone {
		return true
	}
	w, ok := h.world(ev.Pixel)
	if !ok {
		return true
	}
	if !h.moved && planar.Distance(ev.Pixel, h.pressPx) < 1 {
		return true
	}
	h.moved = true

	switch h.drag {
	case dragVertex:
		verts := slices.Clone(h.target.Vertices())
		if h.vertex >= len(verts) {
			return true
		}
		verts[h.vertex] = w
		if h.target.Kind == KindPolygon {
			verts = append(verts, verts[0])
		}
		h.pts = verts
	case dragMove:
		dx, dy := w[0]-h.pressW[0], w[1]-h.pressW[1]
		h.pts = make([]orb.Point, len(h.target.Geometry))
		for i, p := range h.target.Geometry {
			h.pts[i] = orb.Point{p[0] + dx, p[1] + dy}
		}
	}
	h.setGhosts(&Element{
		EventID:  h.target.EventID,
		Part:     h.target.Part,
		Kind:     h.target.Kind,
		Geometry: h.pts,
		Style:    h.target.Style,
	})
	return true
}

func (h *selectHandler) release(ev MouseEvent) bool {
	if !h.down {
		return false
	}
	defer h.reset()

	if h.drag != dragNone && h.moved {
		h.clearGhosts()
		// Rejected edits are logged by commitEdit and leave the event as it was.
		if err := h.e.commitEdit(h.target, h.pts); err != nil && !errors.Is(err, ErrEditRejected) {
			h.e.log.Warn("dropping edit", "event", h.target.EventID, "error", err)
		}
		return true
	}
	h.clearGhosts()
	h.e.clickAt(ev.Pixel, h.additive || ev.Ctrl || ev.Shift)
	return true
}
