package engine

import (
	"log/slog"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/Unidata/awips2-hazards-sub017/internal/display"
	"github.com/Unidata/awips2-hazards-sub017/internal/hazard"
	"github.com/Unidata/awips2-hazards-sub017/internal/typeid"
)

// Target receives redraw requests from the core.
type Target interface {
	RequestRedraw()
}

type TargetFunc func()

func (f TargetFunc) RequestRedraw() { f() }

// Renderer decides whether the event set needs new drawables and, when it
// does, rebuilds them and asks for exactly one redraw.
type Renderer struct {
	store      *Store
	persistent *PersistentShapes
	resolver   *Resolver
	tr         *display.Transformer
	target     Target
	log        *slog.Logger

	previous map[string]*hazard.Event
	forced   bool
	rebuilds int
}

func NewRenderer(store *Store, persistent *PersistentShapes, resolver *Resolver, tr *display.Transformer, target Target, log *slog.Logger) *Renderer {
	if target == nil {
		target = TargetFunc(func() {})
	}
	if log == nil {
		log = slog.Default()
	}
	return &Renderer{
		store:      store,
		persistent: persistent,
		resolver:   resolver,
		tr:         tr,
		target:     target,
		log:        log,
		previous:   make(map[string]*hazard.Event),
	}
}

// Changed compares events against the last drawn set. A different size, an
// unknown identifier or a structural difference on a shared identifier all
// count as a change.
func (r *Renderer) Changed(events []*hazard.Event) bool {
	if r.forced || len(events) != len(r.previous) {
		return true
	}
	for _, ev := range events {
		prev, ok := r.previous[ev.ID]
		if !ok || !prev.Equal(ev) {
			return true
		}
	}
	return false
}

// Invalidate makes the next Draw rebuild regardless of the event set.
func (r *Renderer) Invalidate() { r.forced = true }

// Remember records ev as drawn so an identical redraw is skipped.
func (r *Renderer) Remember(ev *hazard.Event) {
	r.previous[ev.ID] = ev.Clone()
}

func (r *Renderer) Forget(id string) {
	delete(r.previous, id)
}

func (r *Renderer) Reset() {
	clear(r.previous)
}

// Rebuilds counts completed rebuilds.
func (r *Renderer) Rebuilds() int { return r.rebuilds }

// Draw rebuilds drawables for events if they changed. selected reports the
// selection state used for styling. Without an active display nothing
// happens and the set is not recorded.
func (r *Renderer) Draw(events []*hazard.Event, selected func(string) bool) bool {
	if !r.Changed(events) {
		return false
	}
	d, ok := r.tr.Active()
	if !ok {
		r.log.Debug("no active display, skipping draw")
		return false
	}

	clear(r.previous)
	for _, ev := range events {
		r.previous[ev.ID] = ev.Clone()
	}
	r.forced = false

	r.rebuild(events, d.Time(), selected)
	r.rebuilds++
	r.target.RequestRedraw()
	return true
}

func (r *Renderer) rebuild(events []*hazard.Event, tc display.TimeContext, selected func(string) bool) {
	r.store.RemoveIf(func(el *Element) bool {
		return !el.Ghost && !r.persistent.Owns(el)
	})

	for _, ev := range events {
		if !ev.Persistent && r.persistent.Has(ev.ID) {
			for _, el := range r.persistent.Release(ev.ID) {
				r.store.Remove(el)
			}
		}
		if !visibleAt(ev, tc) {
			// Persistent drawables follow their event out of the frame.
			for _, el := range r.persistent.Release(ev.ID) {
				r.store.Remove(el)
			}
			continue
		}

		els := r.Build(ev, selected(ev.ID))
		if ev.Persistent {
			for _, old := range r.persistent.Register(ev.ID, els) {
				r.store.Remove(old)
			}
		}
		for _, el := range els {
			if err := r.store.Add(el); err != nil {
				r.log.Warn("dropping drawable", "event", ev.ID, "kind", el.Kind, "error", err)
			}
		}
	}
}

// visibleAt applies the frame-time filter. Unissued track edits are never
// filtered, and neither is anything when the display has no usable frame
// time or the event has no time range.
func visibleAt(ev *hazard.Event, tc display.TimeContext) bool {
	if ev.IsUnissuedTrack() {
		return true
	}
	if tc.Unset() {
		return true
	}
	if ev.Time.Start.IsZero() && ev.Time.End.IsZero() {
		return true
	}
	return tc.Overlaps(ev.Time)
}

// Build translates one event into drawables in paint order: hatch fills
// under outlines, then markers, then the label.
func (r *Renderer) Build(ev *hazard.Event, selected bool) []*Element {
	editable := ev.Status != hazard.StatusEnded && ev.Status != hazard.StatusElapsed
	_, tracked := ev.Attributes[hazard.AttrTrackPoints]

	var out []*Element
	add := func(kind ShapeKind, part int, pts []orb.Point, edit bool) *Element {
		el := &Element{
			ID:       typeid.NewElementID(),
			EventID:  ev.ID,
			Part:     part,
			Kind:     kind,
			Geometry: pts,
			Style:    r.resolver.Resolve(kind, ev, selected),
			Editable: edit,
			Selected: selected,
		}
		out = append(out, el)
		return el
	}
	polygon := func(part int, ring orb.Ring) {
		if ev.ShowsHatchedArea() {
			out = append(out, &Element{
				ID:       typeid.NewHatchID(),
				EventID:  ev.ID,
				Part:     part,
				Kind:     KindPolygon,
				Geometry: slices.Clone([]orb.Point(ring)),
				Style:    r.resolver.Hatch(ev),
				Selected: selected,
				Hatch:    true,
			})
		}
		add(KindPolygon, part, slices.Clone([]orb.Point(ring)), editable)
	}

	for i, part := range ev.Parts() {
		switch g := part.(type) {
		case orb.Polygon:
			if len(g) == 0 {
				continue
			}
			polygon(i, g[0])
		case orb.Ring:
			polygon(i, g)
		case orb.Bound:
			polygon(i, g.ToRing())
		case orb.LineString:
			add(KindLine, i, slices.Clone([]orb.Point(g)), editable)
			if tracked {
				for _, p := range g {
					add(KindCircle, i, []orb.Point{p}, false)
				}
			}
		case orb.Point:
			add(markerKind(ev), i, []orb.Point{g}, editable)
		default:
			r.log.Warn("unsupported geometry part", "event", ev.ID, "type", part.GeoJSONType())
		}
	}

	if text := labelText(ev); text != "" && len(out) > 0 {
		if at, ok := labelAnchor(out); ok {
			lbl := add(KindText, 0, []orb.Point{at}, false)
			lbl.Label = text
		}
	}
	return out
}

func markerKind(ev *hazard.Event) ShapeKind {
	if k, ok := ParseShapeKind(ev.StringAttr(hazard.AttrMarker)); ok && k.IsSymbol() {
		return k
	}
	return KindPoint
}

func labelText(ev *hazard.Event) string {
	if s := ev.StringAttr(hazard.AttrLabel); s != "" {
		return s
	}
	return ev.HazardType()
}

// labelAnchor places a label at the centroid of the first outline, or on the
// first vertex of anything else.
func labelAnchor(els []*Element) (orb.Point, bool) {
	for _, el := range els {
		if el.Hatch {
			continue
		}
		if el.Kind == KindPolygon && len(el.Geometry) >= 3 {
			c, area := planar.CentroidArea(orb.Polygon{el.Ring()})
			if area != 0 {
				return c, true
			}
		}
		if el.Kind == KindLine {
			return el.Geometry[len(el.Geometry)/2], true
		}
		return el.Geometry[0], true
	}
	return orb.Point{}, false
}
