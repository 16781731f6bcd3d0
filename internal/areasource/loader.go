package areasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/singleflight"
)

var ErrNotFound = errors.New("overlay source not found")

// Loader builds the overlay for a key.
type Loader interface {
	Load(ctx context.Context, key Key) (*Overlay, error)
}

// FileLoader reads <Dir>/<table>.geojson and names each area from the
// feature property given by the key.
type FileLoader struct {
	Dir string
}

func (l FileLoader) Load(ctx context.Context, key Key) (*Overlay, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if strings.ContainsAny(key.Table, `/\`) || strings.Contains(key.Table, "..") {
		return nil, fmt.Errorf("overlay table %q: %w", key.Table, ErrBadKey)
	}
	data, err := os.ReadFile(filepath.Join(l.Dir, key.Table+".geojson"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("overlay %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read overlay %s: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode overlay %s: %w", key, err)
	}
	areas := make([]*Area, 0, len(fc.Features))
	for i, f := range fc.Features {
		mp, ok := asMultiPolygon(f.Geometry)
		if !ok {
			continue
		}
		id := fmt.Sprint(f.ID)
		if f.ID == nil {
			id = fmt.Sprintf("%s-%d", key.Table, i)
		}
		areas = append(areas, &Area{
			ID:       id,
			Name:     f.Properties.MustString(key.Name, id),
			Geometry: mp,
		})
	}
	return NewOverlay(key, areas)
}

// Fallback tries each loader in turn, moving on only when a source does not
// have the overlay.
type Fallback []Loader

func (f Fallback) Load(ctx context.Context, key Key) (*Overlay, error) {
	err := fmt.Errorf("overlay %s: %w", key, ErrNotFound)
	for _, l := range f {
		var o *Overlay
		o, err = l.Load(ctx, key)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, err
}

// Cache keeps loaded overlays and collapses concurrent loads of one key.
type Cache struct {
	loader Loader
	group  singleflight.Group

	mu       sync.RWMutex
	overlays map[Key]*Overlay
}

func NewCache(loader Loader) *Cache {
	return &Cache{loader: loader, overlays: make(map[Key]*Overlay)}
}

func (c *Cache) Load(ctx context.Context, key Key) (*Overlay, error) {
	c.mu.RLock()
	o, ok := c.overlays[key]
	c.mu.RUnlock()
	if ok {
		return o, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		o, err := c.loader.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.overlays[key] = o
		c.mu.Unlock()
		return o, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Overlay), nil
}

// Prewarm loads keys in the background, logging failures.
func (c *Cache) Prewarm(ctx context.Context, keys ...Key) {
	for _, k := range keys {
		go func() {
			if _, err := c.Load(ctx, k); err != nil {
				slog.Warn("overlay prewarm failed", "overlay", k.String(), "error", err)
			}
		}()
	}
}

func (c *Cache) Evict(key Key) {
	c.mu.Lock()
	delete(c.overlays, key)
	c.mu.Unlock()
}

func asMultiPolygon(g orb.Geometry) (orb.MultiPolygon, bool) {
	switch g := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{g}, true
	case orb.MultiPolygon:
		return g, len(g) > 0
	default:
		return nil, false
	}
}
