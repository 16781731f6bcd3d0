package engine

import (
	"iter"
	"slices"
)

// Layer is an ordered set of elements; later elements paint on top.
type Layer struct {
	elements []*Element
}

// Store owns the active layer. Exactly one layer exists from construction
// on; operating on a store without one is a programming error.
type Store struct {
	layer   *Layer
	arena   *Arena
	onClose func(*Element)
}

func NewStore(arena *Arena) *Store {
	if arena == nil {
		arena = NewArena()
	}
	return &Store{layer: &Layer{}, arena: arena}
}

func (s *Store) active() *Layer {
	if s == nil || s.layer == nil {
		panic("engine: store has no active layer")
	}
	return s.layer
}

// OnDispose registers a hook that runs for every element leaving the store.
func (s *Store) OnDispose(fn func(*Element)) {
	s.onClose = fn
}

// Add appends el to the active layer. Duplicates are not detected.
func (s *Store) Add(el *Element) error {
	layer := s.active()
	if !el.valid() {
		return ErrInvalidGeometry
	}
	el.handle = s.arena.Alloc()
	layer.elements = append(layer.elements, el)
	return nil
}

// Remove drops el by identity and releases its render resource.
func (s *Store) Remove(el *Element) bool {
	layer := s.active()
	i := slices.Index(layer.elements, el)
	if i < 0 {
		return false
	}
	layer.elements = slices.Delete(layer.elements, i, i+1)
	s.dispose(el)
	return true
}

// RemoveIf drops every element matching pred and returns them in paint order.
func (s *Store) RemoveIf(pred func(*Element) bool) []*Element {
	layer := s.active()
	var removed []*Element
	kept := layer.elements[:0]
	for _, el := range layer.elements {
		if pred(el) {
			removed = append(removed, el)
			continue
		}
		kept = append(kept, el)
	}
	clear(layer.elements[len(kept):])
	layer.elements = kept
	for _, el := range removed {
		s.dispose(el)
	}
	return removed
}

// Replace swaps the first element structurally matching old for repl, in
// place, keeping paint order. It reports whether a swap happened.
func (s *Store) Replace(old, repl *Element) bool {
	layer := s.active()
	if !repl.valid() {
		return false
	}
	for i, el := range layer.elements {
		if !sameShape(el, old) {
			continue
		}
		repl.handle = s.arena.Alloc()
		layer.elements[i] = repl
		s.dispose(el)
		return true
	}
	return false
}

// All yields the active layer in paint order. The sequence reads the layer
// afresh each time it is ranged over.
func (s *Store) All() iter.Seq[*Element] {
	return func(yield func(*Element) bool) {
		for _, el := range s.active().elements {
			if !yield(el) {
				return
			}
		}
	}
}

// Backward yields the active layer topmost first.
func (s *Store) Backward() iter.Seq[*Element] {
	return func(yield func(*Element) bool) {
		els := s.active().elements
		for i := len(els) - 1; i >= 0; i-- {
			if !yield(els[i]) {
				return
			}
		}
	}
}

func (s *Store) Len() int {
	return len(s.active().elements)
}

func (s *Store) Contains(el *Element) bool {
	return slices.Contains(s.active().elements, el)
}

func (s *Store) ByID(id string) (*Element, bool) {
	for el := range s.All() {
		if el.ID == id {
			return el, true
		}
	}
	return nil, false
}

// ForEvent returns the non-ghost elements drawn for eventID in paint order.
func (s *Store) ForEvent(eventID string) []*Element {
	var out []*Element
	for el := range s.All() {
		if el.EventID == eventID && !el.Ghost {
			out = append(out, el)
		}
	}
	return out
}

func (s *Store) dispose(el *Element) {
	s.arena.Release(el.handle)
	el.handle = noHandle
	if s.onClose != nil {
		s.onClose(el)
	}
}
