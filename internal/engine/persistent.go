package engine

import "slices"

// PersistentShapes maps an owner identifier to drawables that survive
// ClearEvents until the owner releases them.
type PersistentShapes struct {
	entries map[string][]*Element
}

func NewPersistentShapes() *PersistentShapes {
	return &PersistentShapes{entries: make(map[string][]*Element)}
}

// Register replaces whatever id owned and returns the previous drawables so
// the caller can take them off the store. An empty list purges the entry.
func (p *PersistentShapes) Register(id string, els []*Element) []*Element {
	prev := p.entries[id]
	if len(els) == 0 {
		delete(p.entries, id)
		return prev
	}
	for _, el := range els {
		el.Persistent = true
	}
	p.entries[id] = slices.Clone(els)
	return prev
}

// Release drops id and returns its drawables.
func (p *PersistentShapes) Release(id string) []*Element {
	els := p.entries[id]
	delete(p.entries, id)
	return els
}

func (p *PersistentShapes) Get(id string) []*Element {
	return p.entries[id]
}

func (p *PersistentShapes) Has(id string) bool {
	_, ok := p.entries[id]
	return ok
}

// Owns reports whether el is registered under any identifier.
func (p *PersistentShapes) Owns(el *Element) bool {
	for _, els := range p.entries {
		if slices.Contains(els, el) {
			return true
		}
	}
	return false
}

// Swap updates the registration holding old to hold repl instead.
func (p *PersistentShapes) Swap(old, repl *Element) {
	for _, els := range p.entries {
		if i := slices.Index(els, old); i >= 0 {
			repl.Persistent = true
			els[i] = repl
			return
		}
	}
}

func (p *PersistentShapes) Len() int { return len(p.entries) }
