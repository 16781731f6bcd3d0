package engine

import (
	"github.com/paulmach/orb"
)

// resource is the render-ready form of an element for one zoom level: its
// outline thinned to what is visible at that scale.
type resource struct {
	live  bool
	valid bool
	zoom  float64
	pts   []orb.Point
}

// Arena holds render resources addressed by element handle. Slot 0 is never
// handed out.
type Arena struct {
	slots []resource
	free  []Handle
	zoom  float64
}

func NewArena() *Arena {
	return &Arena{slots: make([]resource, 1)}
}

func (a *Arena) Alloc() Handle {
	if n := len(a.free); n > 0 {
		h := a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[h] = resource{live: true}
		return h
	}
	a.slots = append(a.slots, resource{live: true})
	return Handle(len(a.slots) - 1)
}

func (a *Arena) Release(h Handle) {
	if h == noHandle || int(h) >= len(a.slots) || !a.slots[h].live {
		return
	}
	a.slots[h] = resource{}
	a.free = append(a.free, h)
}

// Get returns the cached points for h if they were built at the arena's
// current zoom.
func (a *Arena) Get(h Handle) ([]orb.Point, bool) {
	if h == noHandle || int(h) >= len(a.slots) {
		return nil, false
	}
	r := a.slots[h]
	if !r.live || !r.valid || r.zoom != a.zoom {
		return nil, false
	}
	return r.pts, true
}

func (a *Arena) Put(h Handle, pts []orb.Point) {
	if h == noHandle || int(h) >= len(a.slots) || !a.slots[h].live {
		return
	}
	a.slots[h] = resource{live: true, valid: true, zoom: a.zoom, pts: pts}
}

// SetZoom invalidates every cached resource when the zoom level changes. It
// reports whether anything was invalidated.
func (a *Arena) SetZoom(z float64) bool {
	if z == a.zoom {
		return false
	}
	a.zoom = z
	for i := range a.slots {
		if a.slots[i].live {
			a.slots[i].valid = false
			a.slots[i].pts = nil
		}
	}
	return true
}

// Live counts allocated slots.
func (a *Arena) Live() int {
	n := 0
	for _, r := range a.slots {
		if r.live {
			n++
		}
	}
	return n
}
