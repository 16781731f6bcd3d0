package engine

import (
	"errors"
	"fmt"
	"slices"

	"github.com/paulmach/orb"

	"github.com/Unidata/awips2-hazards-sub017/internal/hazard"
)

var ErrUnknownAction = errors.New("unknown context menu action")

type MenuAction string

const (
	ActionDeleteVertex     MenuAction = "Delete Vertex"
	ActionAddVertex        MenuAction = "Add Vertex"
	ActionRemoveShape      MenuAction = "Remove Shape"
	ActionSelectAll        MenuAction = "Select All Hazards"
	ActionDeselectAll      MenuAction = "Deselect All"
	ActionCenterOnSelected MenuAction = "Center On Selected"
)

// MenuEntry is one applicable context action. The target fields are set
// only for the actions that need them.
type MenuEntry struct {
	Action  MenuAction `json:"action"`
	EventID string     `json:"eventId,omitempty"`
	Part    int        `json:"part,omitempty"`
	Index   int        `json:"index,omitempty"`
	At      orb.Point  `json:"at,omitzero"`
}

// ContextMenuEntries lists the actions that apply at the last pointer
// position, in a fixed order.
func (e *Engine) ContextMenuEntries() []MenuEntry {
	var out []MenuEntry

	if el, ok := e.focus(); ok && e.cursorKnown {
		if ev, ok := e.events[el.EventID]; ok && ev.CanAddRemoveShapes() {
			out = append(out, e.vertexEntries(el)...)
		}
	}
	if under, ok := e.underCursor(); ok && e.selection.Contains(under.EventID) {
		if ev, ok := e.events[under.EventID]; ok && ev.CanAddRemoveShapes() && len(ev.Parts()) > 1 {
			out = append(out, MenuEntry{Action: ActionRemoveShape, EventID: ev.ID, Part: under.Part})
		}
	}
	if len(e.order) > 0 {
		out = append(out, MenuEntry{Action: ActionSelectAll})
	}
	if e.selection.Len() > 0 {
		out = append(out,
			MenuEntry{Action: ActionDeselectAll},
			MenuEntry{Action: ActionCenterOnSelected},
		)
	}
	return out
}

func (e *Engine) vertexEntries(el *Element) []MenuEntry {
	if el.Kind != KindPolygon && el.Kind != KindLine {
		return nil
	}
	verts := el.Vertices()
	if idx, ok := e.handles.Hit(e.cursor, e.handleRadius); ok {
		if len(verts) <= minVertices(el.Kind) {
			return nil
		}
		return []MenuEntry{{Action: ActionDeleteVertex, EventID: el.EventID, Part: el.Part, Index: idx}}
	}
	pixels := e.handles.Points()
	if len(pixels) != len(verts) {
		return nil
	}
	seg, dist := nearestSegment(e.cursor, pixels, el.Kind == KindPolygon)
	if seg < 0 || dist > e.hits.SelectionDistance {
		return nil
	}
	at, err := e.tr.PixelToWorld(e.cursor)
	if err != nil {
		return nil
	}
	return []MenuEntry{{Action: ActionAddVertex, EventID: el.EventID, Part: el.Part, Index: seg, At: at}}
}

func minVertices(k ShapeKind) int {
	if k == KindPolygon {
		return 3
	}
	return 2
}

func (e *Engine) underCursor() (*Element, bool) {
	if !e.cursorKnown {
		return nil, false
	}
	w, err := e.tr.PixelToWorld(e.cursor)
	if err != nil {
		return nil, false
	}
	if el, ok := e.hits.Containing(w, e.cursor); ok {
		return el, true
	}
	return e.hits.Nearest(e.cursor)
}

// RunMenuEntry performs an entry returned by ContextMenuEntries.
func (e *Engine) RunMenuEntry(entry MenuEntry) error {
	switch entry.Action {
	case ActionDeleteVertex, ActionAddVertex:
		return e.editVertex(entry)
	case ActionRemoveShape:
		return e.removeShape(entry.EventID, entry.Part)
	case ActionSelectAll:
		e.SelectAll()
		return nil
	case ActionDeselectAll:
		e.DeselectAll()
		return nil
	case ActionCenterOnSelected:
		return e.CenterOnSelected()
	}
	return fmt.Errorf("%q: %w", entry.Action, ErrUnknownAction)
}

func (e *Engine) editVertex(entry MenuEntry) error {
	var target *Element
	for _, el := range e.store.ForEvent(entry.EventID) {
		if el.Part == entry.Part && el.Editable && !el.Hatch && (el.Kind == KindPolygon || el.Kind == KindLine) {
			target = el
			break
		}
	}
	if target == nil {
		return fmt.Errorf("edit %s part %d: %w", entry.EventID, entry.Part, ErrUnknownEvent)
	}

	verts := slices.Clone(target.Vertices())
	if entry.Index < 0 || entry.Index >= len(verts) {
		return fmt.Errorf("vertex %d out of range", entry.Index)
	}
	if entry.Action == ActionDeleteVertex {
		verts = slices.Delete(verts, entry.Index, entry.Index+1)
	} else {
		verts = slices.Insert(verts, entry.Index+1, entry.At)
	}
	if target.Kind == KindPolygon && len(verts) > 0 {
		verts = append(verts, verts[0])
	}
	return e.commitEdit(target, verts)
}

// removeShape drops one part of a multi-part event.
func (e *Engine) removeShape(eventID string, part int) error {
	ev, ok := e.events[eventID]
	if !ok {
		return fmt.Errorf("remove shape %s: %w", eventID, ErrUnknownEvent)
	}
	g, ok := hazard.RemovePart(ev.Geometry, part)
	if !ok {
		return fmt.Errorf("remove shape %d of %s: %w", part, eventID, ErrEditRejected)
	}
	ev.Geometry = g
	e.focusPart = 0
	e.renderer.Invalidate()
	e.draw()
	e.syncHandleBars()
	e.publishGeometry(eventID, g)
	return nil
}
