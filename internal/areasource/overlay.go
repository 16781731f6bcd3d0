package areasource

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

var (
	ErrEmptyOverlay = errors.New("overlay has no selectable areas")
	ErrBadKey       = errors.New("overlay key needs a table and a name")
)

// Key identifies a select-by-area overlay: the source table and the
// attribute used as the area's display name.
type Key struct {
	Table string `json:"table"`
	Name  string `json:"name"`
}

func (k Key) String() string { return k.Table + "/" + k.Name }

// ParseKey reads the "table/name" form produced by String.
func ParseKey(s string) (Key, error) {
	table, name, _ := strings.Cut(s, "/")
	k := Key{Table: strings.TrimSpace(table), Name: strings.TrimSpace(name)}
	if err := k.Validate(); err != nil {
		return Key{}, fmt.Errorf("%q: %w", s, err)
	}
	return k, nil
}

func (k Key) Validate() error {
	if k.Table == "" || k.Name == "" {
		return ErrBadKey
	}
	return nil
}

// Area is one selectable polygon set, such as a county.
type Area struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Geometry orb.MultiPolygon `json:"-"`

	rect rtreego.Rect
}

func (a *Area) Bounds() rtreego.Rect { return a.rect }

// Overlay is a loaded, spatially indexed set of areas.
type Overlay struct {
	Key   Key
	areas []*Area
	byID  map[string]*Area
	tree  *rtreego.Rtree
}

// NewOverlay indexes areas. Areas with empty or degenerate geometry are
// skipped.
func NewOverlay(key Key, areas []*Area) (*Overlay, error) {
	o := &Overlay{
		Key:  key,
		byID: make(map[string]*Area, len(areas)),
		tree: rtreego.NewTree(2, 25, 50),
	}
	for _, a := range areas {
		if len(a.Geometry) == 0 {
			continue
		}
		rect, err := boundRect(a.Geometry.Bound())
		if err != nil {
			continue
		}
		if _, dup := o.byID[a.ID]; dup {
			return nil, fmt.Errorf("overlay %s: duplicate area %q", key, a.ID)
		}
		a.rect = rect
		o.areas = append(o.areas, a)
		o.byID[a.ID] = a
		o.tree.Insert(a)
	}
	if len(o.areas) == 0 {
		return nil, fmt.Errorf("overlay %s: %w", key, ErrEmptyOverlay)
	}
	return o, nil
}

func (o *Overlay) Len() int { return len(o.areas) }

func (o *Overlay) Areas() []*Area { return o.areas }

func (o *Overlay) Get(id string) (*Area, bool) {
	a, ok := o.byID[id]
	return a, ok
}

// At returns the area containing p. When areas overlap the first loaded wins.
func (o *Overlay) At(p orb.Point) (*Area, bool) {
	var best *Area
	for _, s := range o.tree.SearchIntersect(rtreego.Point{p[0], p[1]}.ToRect(1e-9)) {
		a := s.(*Area)
		if !planar.MultiPolygonContains(a.Geometry, p) {
			continue
		}
		if best == nil || o.index(a) < o.index(best) {
			best = a
		}
	}
	return best, best != nil
}

func (o *Overlay) index(a *Area) int {
	for i, x := range o.areas {
		if x == a {
			return i
		}
	}
	return -1
}

func boundRect(b orb.Bound) (rtreego.Rect, error) {
	const pad = 1e-9
	return rtreego.NewRect(
		rtreego.Point{b.Min[0] - pad, b.Min[1] - pad},
		[]float64{b.Max[0] - b.Min[0] + 2*pad, b.Max[1] - b.Min[1] + 2*pad},
	)
}
