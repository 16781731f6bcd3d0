package display

import (
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Unidata/awips2-hazards-sub017/internal/hazard"
)

func testView() Viewport {
	return Viewport{Center: orb.Point{-97.5, 35.5}, Zoom: 7, Width: 800, Height: 600}
}

func TestMatrixInvert(t *testing.T) {
	m := Translate(10, -4).Multiply(Scale(2, -3))
	inv, ok := m.Invert()
	require.True(t, ok)

	p := orb.Point{3.5, 7.25}
	back := inv.Apply(m.Apply(p))
	assert.InDelta(t, p[0], back[0], 1e-12)
	assert.InDelta(t, p[1], back[1], 1e-12)

	_, ok = Scale(0, 1).Invert()
	assert.False(t, ok)
}

func TestViewportCenterMapsToMiddle(t *testing.T) {
	v := testView()
	p, err := v.WorldToPixel(v.Center)
	require.NoError(t, err)
	assert.InDelta(t, 400, p[0], 1e-6)
	assert.InDelta(t, 300, p[1], 1e-6)

	// North is up.
	north, err := v.WorldToPixel(orb.Point{-97.5, 36})
	require.NoError(t, err)
	assert.Less(t, north[1], p[1])
}

func TestWorldPixelRoundTrip(t *testing.T) {
	v := testView()
	b := v.Bound()
	require.False(t, b.IsEmpty())

	for i := 0; i <= 10; i++ {
		for j := 0; j <= 10; j++ {
			w := orb.Point{
				b.Min[0] + (b.Max[0]-b.Min[0])*float64(i)/10,
				b.Min[1] + (b.Max[1]-b.Min[1])*float64(j)/10,
			}
			p, err := v.WorldToPixel(w)
			require.NoError(t, err)
			back, err := v.PixelToWorld(p)
			require.NoError(t, err)
			assert.InDelta(t, w[0], back[0], 1e-7)
			assert.InDelta(t, w[1], back[1], 1e-7)
		}
	}
}

func TestPixelToWorldOffMap(t *testing.T) {
	v := Viewport{Center: orb.Point{0, 0}, Zoom: 0, Width: 2000, Height: 2000}

	_, err := v.PixelToWorld(orb.Point{0, 0})
	assert.ErrorIs(t, err, ErrOffMap)

	_, err = v.PixelToWorld(orb.Point{math.NaN(), 5})
	assert.ErrorIs(t, err, ErrOffMap)

	_, err = v.WorldToPixel(orb.Point{0, 89})
	assert.ErrorIs(t, err, ErrOffMap)

	_, err = v.PixelToWorld(orb.Point{1000, 1000})
	assert.NoError(t, err)
}

func TestPan(t *testing.T) {
	v := testView()
	moved := v.Pan(100, 0)
	p, err := moved.WorldToPixel(v.Center)
	require.NoError(t, err)
	assert.InDelta(t, 500, p[0], 1e-6)
	assert.InDelta(t, 300, p[1], 1e-6)
}

func TestRegistryActive(t *testing.T) {
	r := NewRegistry()
	_, ok := r.ActiveDisplay()
	assert.False(t, ok)

	a := NewPane("a", testView())
	b := NewPane("b", testView())
	r.Register(a)
	r.Register(b)

	d, ok := r.ActiveDisplay()
	require.True(t, ok)
	assert.Equal(t, "a", d.ID())
	assert.Equal(t, []string{"a", "b"}, r.IDs())

	require.NoError(t, r.SetActive("b"))
	d, _ = r.ActiveDisplay()
	assert.Equal(t, "b", d.ID())

	assert.ErrorIs(t, r.SetActive("zzz"), ErrUnknownDisplay)

	r.Remove("b")
	_, ok = r.ActiveDisplay()
	assert.False(t, ok)
}

func TestTransformerFollowsActiveView(t *testing.T) {
	r := NewRegistry()
	tr := NewTransformer(r)

	_, err := tr.WorldToPixel(orb.Point{0, 0})
	assert.ErrorIs(t, err, ErrNoDisplay)

	pane := NewPane("a", testView())
	r.Register(pane)
	w := orb.Point{-97, 35}
	before, err := tr.WorldToPixel(w)
	require.NoError(t, err)

	v := pane.Viewport()
	v.Zoom = 8
	require.NoError(t, pane.SetViewport(v))
	after, err := tr.WorldToPixel(w)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	assert.ErrorIs(t, pane.SetViewport(Viewport{Width: 0, Height: 10}), ErrBadViewDim)
}

func TestTimeContextOverlaps(t *testing.T) {
	t0 := time.Date(2026, 5, 20, 18, 0, 0, 0, time.UTC)
	ev := hazard.TimeRange{Start: t0, End: t0.Add(time.Hour)}

	instant := TimeContext{Selected: t0.Add(30 * time.Minute)}
	assert.True(t, instant.Overlaps(ev))

	instant.Selected = t0.Add(2 * time.Hour)
	assert.False(t, instant.Overlaps(ev))

	ranged := TimeContext{
		Selected:    t0.Add(2 * time.Hour),
		Range:       hazard.TimeRange{Start: t0.Add(50 * time.Minute), End: t0.Add(3 * time.Hour)},
		RangeActive: true,
	}
	assert.True(t, ranged.Overlaps(ev))

	// An invalid range falls back to the instant.
	ranged.Range = hazard.TimeRange{Start: t0.Add(3 * time.Hour), End: t0}
	assert.False(t, ranged.Overlaps(ev))
	assert.False(t, ranged.Unset())

	ranged.Selected = time.Time{}
	assert.True(t, ranged.Unset())
	assert.True(t, TimeContext{}.Unset())
}

func TestPaneCenterOn(t *testing.T) {
	p := NewPane("main", testView())
	target := orb.Point{-95, 30}
	require.NoError(t, p.CenterOn(target))

	px, err := p.WorldToPixel(target)
	require.NoError(t, err)
	assert.InDelta(t, 400, px[0], 1e-6)
	assert.InDelta(t, 300, px[1], 1e-6)

	assert.ErrorIs(t, p.CenterOn(orb.Point{0, 89}), ErrOffMap)
}
