package display

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

var (
	ErrOffMap     = errors.New("point outside the projection domain")
	ErrNoDisplay  = errors.New("no active display")
	ErrBadViewDim = errors.New("viewport must have a positive size")
)

const (
	tileSize = 256.0
	// Web-Mercator half extent in meters.
	mercatorMax = 20037508.342789244
	// MaxLatitude is where Web-Mercator squares off.
	MaxLatitude = 85.05112878
)

// Viewport is a Web-Mercator view of the map: a geographic center, a slippy
// map zoom level and a pixel size. Pixel origin is the top left corner.
type Viewport struct {
	Center orb.Point `json:"center"`
	Zoom   float64   `json:"zoom"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
}

func (v Viewport) Validate() error {
	if v.Width <= 0 || v.Height <= 0 {
		return ErrBadViewDim
	}
	if !validLonLat(v.Center) {
		return ErrOffMap
	}
	return nil
}

// PixelsPerMeter is the scale at the current zoom.
func (v Viewport) PixelsPerMeter() float64 {
	return tileSize * math.Exp2(v.Zoom) / (2 * mercatorMax)
}

// Matrix maps Mercator meters to pixels.
func (v Viewport) Matrix() Matrix2D {
	c := project.WGS84.ToMercator(v.Center)
	s := v.PixelsPerMeter()
	return Translate(float64(v.Width)/2, float64(v.Height)/2).
		Multiply(Scale(s, -s)).
		Multiply(Translate(-c[0], -c[1]))
}

func (v Viewport) WorldToPixel(w orb.Point) (orb.Point, error) {
	if !validLonLat(w) {
		return orb.Point{}, ErrOffMap
	}
	return v.Matrix().Apply(project.WGS84.ToMercator(w)), nil
}

func (v Viewport) PixelToWorld(p orb.Point) (orb.Point, error) {
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) {
		return orb.Point{}, ErrOffMap
	}
	inv, ok := v.Matrix().Invert()
	if !ok {
		return orb.Point{}, ErrOffMap
	}
	m := inv.Apply(p)
	if math.Abs(m[0]) > mercatorMax || math.Abs(m[1]) > mercatorMax {
		return orb.Point{}, ErrOffMap
	}
	return project.Mercator.ToWGS84(m), nil
}

// Bound is the geographic extent visible in the viewport, clipped to the
// projection domain.
func (v Viewport) Bound() orb.Bound {
	inv, ok := v.Matrix().Invert()
	if !ok {
		return orb.Bound{}
	}
	clamp := func(p orb.Point) orb.Point {
		return orb.Point{
			math.Max(-mercatorMax, math.Min(mercatorMax, p[0])),
			math.Max(-mercatorMax, math.Min(mercatorMax, p[1])),
		}
	}
	tl := project.Mercator.ToWGS84(clamp(inv.Apply(orb.Point{0, 0})))
	br := project.Mercator.ToWGS84(clamp(inv.Apply(orb.Point{float64(v.Width), float64(v.Height)})))
	return orb.Bound{Min: orb.Point{tl[0], br[1]}, Max: orb.Point{br[0], tl[1]}}
}

// Pan shifts the view by a pixel delta; positive dx moves the map content
// right.
func (v Viewport) Pan(dx, dy float64) Viewport {
	inv, ok := v.Matrix().Invert()
	if !ok {
		return v
	}
	m := inv.Apply(orb.Point{float64(v.Width)/2 - dx, float64(v.Height)/2 - dy})
	m[0] = math.Max(-mercatorMax, math.Min(mercatorMax, m[0]))
	m[1] = math.Max(-mercatorMax, math.Min(mercatorMax, m[1]))
	v.Center = project.Mercator.ToWGS84(m)
	return v
}

func validLonLat(p orb.Point) bool {
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) {
		return false
	}
	return math.Abs(p[0]) <= 180 && math.Abs(p[1]) <= MaxLatitude
}
