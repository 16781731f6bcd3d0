package display

import (
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/Unidata/awips2-hazards-sub017/internal/hazard"
)

var ErrUnknownDisplay = errors.New("display not registered")

// TimeContext is the frame time a pane is showing: either a single selected
// instant or, when RangeActive, a selected time range.
type TimeContext struct {
	Selected    time.Time        `json:"selected"`
	Range       hazard.TimeRange `json:"range"`
	RangeActive bool             `json:"rangeActive"`
}

// Unset reports whether tc constrains nothing: no selected instant and no
// usable range.
func (tc TimeContext) Unset() bool {
	return tc.Selected.IsZero() && !(tc.RangeActive && tc.Range.Valid())
}

// Overlaps reports whether an event spanning r is visible at this time. An
// inactive or invalid range falls back to the selected instant.
func (tc TimeContext) Overlaps(r hazard.TimeRange) bool {
	if !tc.RangeActive || !tc.Range.Valid() {
		return r.Contains(tc.Selected)
	}
	return r.Intersects(tc.Range)
}

// Display is a pane that can convert between pixel and world coordinates.
// Implementations must reflect the current view on every call.
type Display interface {
	ID() string
	WorldToPixel(orb.Point) (orb.Point, error)
	PixelToWorld(orb.Point) (orb.Point, error)
	ZoomLevel() float64
	Time() TimeContext
}

// Provider resolves the display the user is currently interacting with.
type Provider interface {
	ActiveDisplay() (Display, bool)
}

// Pane is a Display backed by a Mercator viewport.
type Pane struct {
	id string

	mu   sync.RWMutex
	view Viewport
	time TimeContext
}

func NewPane(id string, view Viewport) *Pane {
	return &Pane{id: id, view: view}
}

func (p *Pane) ID() string { return p.id }

func (p *Pane) Viewport() Viewport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.view
}

func (p *Pane) SetViewport(v Viewport) error {
	if err := v.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	p.view = v
	p.mu.Unlock()
	return nil
}

// CenterOn moves the view so world sits at the middle of the pane.
func (p *Pane) CenterOn(world orb.Point) error {
	if !validLonLat(world) {
		return ErrOffMap
	}
	p.mu.Lock()
	p.view.Center = world
	p.mu.Unlock()
	return nil
}

func (p *Pane) Time() TimeContext {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.time
}

func (p *Pane) SetTime(tc TimeContext) {
	p.mu.Lock()
	p.time = tc
	p.mu.Unlock()
}

func (p *Pane) ZoomLevel() float64 {
	return p.Viewport().Zoom
}

func (p *Pane) WorldToPixel(w orb.Point) (orb.Point, error) {
	return p.Viewport().WorldToPixel(w)
}

func (p *Pane) PixelToWorld(px orb.Point) (orb.Point, error) {
	return p.Viewport().PixelToWorld(px)
}

// Registry tracks the panes display shells have opened and which one is
// active.
type Registry struct {
	mu       sync.RWMutex
	displays map[string]Display
	active   string
}

func NewRegistry() *Registry {
	return &Registry{displays: make(map[string]Display)}
}

// Register adds or replaces d. The first registered display becomes active.
func (r *Registry) Register(d Display) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.displays[d.ID()] = d
	if r.active == "" {
		r.active = d.ID()
	}
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.displays, id)
	if r.active == id {
		r.active = ""
	}
}

func (r *Registry) SetActive(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.displays[id]; !ok {
		return ErrUnknownDisplay
	}
	r.active = id
	return nil
}

func (r *Registry) Get(id string) (Display, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.displays[id]
	return d, ok
}

// IDs lists the registered displays in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.displays))
}

func (r *Registry) ActiveDisplay() (Display, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == "" {
		return nil, false
	}
	d, ok := r.displays[r.active]
	return d, ok
}

// Transformer converts coordinates through whatever display is active at the
// moment of the call. It never caches.
type Transformer struct {
	provider Provider
}

func NewTransformer(p Provider) *Transformer {
	return &Transformer{provider: p}
}

func (t *Transformer) Active() (Display, bool) {
	if t == nil || t.provider == nil {
		return nil, false
	}
	return t.provider.ActiveDisplay()
}

func (t *Transformer) WorldToPixel(w orb.Point) (orb.Point, error) {
	d, ok := t.Active()
	if !ok {
		return orb.Point{}, ErrNoDisplay
	}
	return d.WorldToPixel(w)
}

func (t *Transformer) PixelToWorld(p orb.Point) (orb.Point, error) {
	d, ok := t.Active()
	if !ok {
		return orb.Point{}, ErrNoDisplay
	}
	return d.PixelToWorld(p)
}

// WorldToPixels projects a ring or path, failing on the first point that
// cannot be projected.
func (t *Transformer) WorldToPixels(pts []orb.Point) ([]orb.Point, error) {
	d, ok := t.Active()
	if !ok {
		return nil, ErrNoDisplay
	}
	out := make([]orb.Point, len(pts))
	for i, w := range pts {
		p, err := d.WorldToPixel(w)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}
