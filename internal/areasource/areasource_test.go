package areasource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x, y, size float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{
		{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y},
	}}}
}

func TestOverlayAt(t *testing.T) {
	key := Key{Table: "county", Name: "countyname"}
	o, err := NewOverlay(key, []*Area{
		{ID: "a", Name: "Alpha", Geometry: square(0, 0, 1)},
		{ID: "b", Name: "Bravo", Geometry: square(1, 0, 1)},
		{ID: "empty", Name: "Nothing"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, o.Len())

	a, ok := o.At(orb.Point{0.5, 0.5})
	require.True(t, ok)
	assert.Equal(t, "Alpha", a.Name)

	b, ok := o.At(orb.Point{1.5, 0.2})
	require.True(t, ok)
	assert.Equal(t, "b", b.ID)

	_, ok = o.At(orb.Point{5, 5})
	assert.False(t, ok)

	got, ok := o.Get("b")
	require.True(t, ok)
	assert.Same(t, b, got)
}

func TestNewOverlayEmpty(t *testing.T) {
	_, err := NewOverlay(Key{Table: "t", Name: "n"}, nil)
	assert.ErrorIs(t, err, ErrEmptyOverlay)
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	data := `{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"OKC109","properties":{"countyname":"Oklahoma"},
		 "geometry":{"type":"Polygon","coordinates":[[[-97.7,35.4],[-97.1,35.4],[-97.1,35.7],[-97.7,35.7],[-97.7,35.4]]]}},
		{"type":"Feature","properties":{"countyname":"Point"},
		 "geometry":{"type":"Point","coordinates":[-97,35]}}
	]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "county.geojson"), []byte(data), 0o644))

	l := FileLoader{Dir: dir}
	o, err := l.Load(context.Background(), Key{Table: "county", Name: "countyname"})
	require.NoError(t, err)
	require.Equal(t, 1, o.Len())

	a, ok := o.At(orb.Point{-97.5, 35.5})
	require.True(t, ok)
	assert.Equal(t, "OKC109", a.ID)
	assert.Equal(t, "Oklahoma", a.Name)

	_, err = l.Load(context.Background(), Key{Table: "zone", Name: "name"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Load(context.Background(), Key{Table: "../etc", Name: "name"})
	assert.ErrorIs(t, err, ErrBadKey)

	_, err = l.Load(context.Background(), Key{Table: "county"})
	assert.ErrorIs(t, err, ErrBadKey)
}

type countingLoader struct {
	calls atomic.Int32
	err   error
}

func (c *countingLoader) Load(_ context.Context, key Key) (*Overlay, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return NewOverlay(key, []*Area{{ID: "x", Geometry: square(0, 0, 1)}})
}

func TestCacheLoadsOnce(t *testing.T) {
	src := &countingLoader{}
	c := NewCache(src)
	key := Key{Table: "t", Name: "n"}

	first, err := c.Load(context.Background(), key)
	require.NoError(t, err)
	second, err := c.Load(context.Background(), key)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, src.calls.Load())

	c.Evict(key)
	_, err = c.Load(context.Background(), key)
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestFallback(t *testing.T) {
	missing := &countingLoader{err: ErrNotFound}
	found := &countingLoader{}
	o, err := Fallback{missing, found}.Load(context.Background(), Key{Table: "t", Name: "n"})
	require.NoError(t, err)
	assert.Equal(t, 1, o.Len())

	broken := &countingLoader{err: errors.New("connection refused")}
	_, err = Fallback{broken, found}.Load(context.Background(), Key{Table: "t", Name: "n"})
	assert.EqualError(t, err, "connection refused")
	assert.EqualValues(t, 1, found.calls.Load())

	_, err = Fallback{}.Load(context.Background(), Key{Table: "t", Name: "n"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey(" county / countyname ")
	require.NoError(t, err)
	assert.Equal(t, Key{Table: "county", Name: "countyname"}, k)
	assert.Equal(t, "county/countyname", k.String())

	_, err = ParseKey("county")
	assert.ErrorIs(t, err, ErrBadKey)
}
