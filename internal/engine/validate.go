package engine

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/peterstace/simplefeatures/geom"
)

// Validity failure reasons, named after the usual topology checks.
const (
	ReasonInvalidCoordinate = "Invalid Coordinate"
	ReasonTooFewPoints      = "Too few distinct points in geometry component"
	ReasonRingNotClosed     = "Ring is not closed"
	ReasonSelfIntersection  = "Self-intersection"
	ReasonRingSelfIntersect = "Ring Self-intersection"
	ReasonHoleOutsideShell  = "Hole lies outside shell"
	ReasonNestedShells      = "Nested shells"
	ReasonEmpty             = "Empty geometry"
)

// ValidationError describes why an edited geometry was rejected and where.
type ValidationError struct {
	Reason   string
	Location orb.Point
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s at or near point (%g, %g)", e.Reason, e.Location[0], e.Location[1])
}

// ValidateGeometry applies the OGC validity rules to g. Structural problems
// are reported directly; topology is decided by simplefeatures and then
// located for the diagnostic.
func ValidateGeometry(g orb.Geometry) error {
	switch v := g.(type) {
	case orb.Ring:
		g = orb.Polygon{v}
	case orb.Bound:
		g = v.ToPolygon()
	}
	if err := checkStructure(g); err != nil {
		return err
	}
	data, err := json.Marshal(geojson.NewGeometry(g))
	if err != nil {
		return &ValidationError{Reason: ReasonInvalidCoordinate, Location: anyVertex(g)}
	}
	if _, err := geom.UnmarshalGeoJSON(data); err != nil {
		return locate(g, err)
	}
	return nil
}

func checkStructure(g orb.Geometry) error {
	switch g := g.(type) {
	case nil:
		return &ValidationError{Reason: ReasonEmpty}
	case orb.Point:
		return checkCoords(g)
	case orb.MultiPoint:
		if len(g) == 0 {
			return &ValidationError{Reason: ReasonEmpty}
		}
		return checkCoords(g...)
	case orb.LineString:
		return validateLine(g)
	case orb.MultiLineString:
		if len(g) == 0 {
			return &ValidationError{Reason: ReasonEmpty}
		}
		for _, ls := range g {
			if err := validateLine(ls); err != nil {
				return err
			}
		}
		return nil
	case orb.Polygon:
		return checkRings(g)
	case orb.MultiPolygon:
		if len(g) == 0 {
			return &ValidationError{Reason: ReasonEmpty}
		}
		for _, p := range g {
			if err := checkRings(p); err != nil {
				return err
			}
		}
		return nil
	case orb.Collection:
		if len(g) == 0 {
			return &ValidationError{Reason: ReasonEmpty}
		}
		for _, part := range g {
			if err := ValidateGeometry(part); err != nil {
				return err
			}
		}
		return nil
	}
	return &ValidationError{Reason: ReasonEmpty}
}

func checkCoords(pts ...orb.Point) error {
	for _, p := range pts {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			return &ValidationError{Reason: ReasonInvalidCoordinate, Location: p}
		}
	}
	return nil
}

func validateLine(ls orb.LineString) error {
	if err := checkCoords(ls...); err != nil {
		return err
	}
	if distinct(ls) < 2 {
		return &ValidationError{Reason: ReasonTooFewPoints, Location: first(ls)}
	}
	return nil
}

func checkRings(p orb.Polygon) error {
	if len(p) == 0 {
		return &ValidationError{Reason: ReasonEmpty}
	}
	for _, r := range p {
		if err := checkCoords(r...); err != nil {
			return err
		}
		if len(r) == 0 {
			return &ValidationError{Reason: ReasonEmpty}
		}
		if !r.Closed() {
			return &ValidationError{Reason: ReasonRingNotClosed, Location: r[0]}
		}
		// A closed ring needs three distinct corners plus the closing point.
		if distinct(r[:len(r)-1]) < 3 {
			return &ValidationError{Reason: ReasonTooFewPoints, Location: r[0]}
		}
	}
	return nil
}

// locate names the defect behind a topology failure and where it is. When
// none of the known defects is found the library's reason is kept.
func locate(g orb.Geometry, cause error) error {
	switch g := g.(type) {
	case orb.Polygon:
		if ve := polygonDefect(g); ve != nil {
			return ve
		}
	case orb.MultiPolygon:
		for _, p := range g {
			if ve := polygonDefect(p); ve != nil {
				return ve
			}
		}
		if ve := shellsDefect(g); ve != nil {
			return ve
		}
	}
	return &ValidationError{Reason: cause.Error(), Location: anyVertex(g)}
}

func polygonDefect(p orb.Polygon) *ValidationError {
	for _, r := range p {
		if at, ok := ringSelfIntersection(r); ok {
			return &ValidationError{Reason: ReasonSelfIntersection, Location: at}
		}
	}
	shell := p[0]
	for _, hole := range p[1:] {
		for _, v := range hole {
			if !planar.RingContains(shell, v) {
				return &ValidationError{Reason: ReasonHoleOutsideShell, Location: v}
			}
		}
		if at, ok := ringsCross(shell, hole); ok {
			return &ValidationError{Reason: ReasonSelfIntersection, Location: at}
		}
	}
	return nil
}

func shellsDefect(mp orb.MultiPolygon) *ValidationError {
	for i := range mp {
		for j := i + 1; j < len(mp); j++ {
			if at, ok := ringsCross(mp[i][0], mp[j][0]); ok {
				return &ValidationError{Reason: ReasonSelfIntersection, Location: at}
			}
			if planar.RingContains(mp[j][0], mp[i][0][0]) {
				return &ValidationError{Reason: ReasonNestedShells, Location: mp[i][0][0]}
			}
			if planar.RingContains(mp[i][0], mp[j][0][0]) {
				return &ValidationError{Reason: ReasonNestedShells, Location: mp[j][0][0]}
			}
		}
	}
	return nil
}

// ringSelfIntersection looks for two non-adjacent edges that touch, or two
// adjacent edges that fold back over each other.
func ringSelfIntersection(r orb.Ring) (orb.Point, bool) {
	segs := segments(r)
	n := len(segs)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			adjacent := j == i+1 || (i == 0 && j == n-1)
			a, b := segs[i], segs[j]
			if adjacent {
				if at, ok := foldBack(a, b, i == 0 && j == n-1); ok {
					return at, true
				}
				continue
			}
			if at, ok := segmentsIntersect(a[0], a[1], b[0], b[1]); ok {
				return at, true
			}
		}
	}
	return orb.Point{}, false
}

// ringsCross reports any contact between the edges of two rings.
func ringsCross(r1, r2 orb.Ring) (orb.Point, bool) {
	for _, a := range segments(r1) {
		for _, b := range segments(r2) {
			if at, ok := segmentsIntersect(a[0], a[1], b[0], b[1]); ok {
				return at, true
			}
		}
	}
	return orb.Point{}, false
}

// segments lists the non-degenerate edges of a ring.
func segments(r orb.Ring) [][2]orb.Point {
	out := make([][2]orb.Point, 0, len(r))
	for i := 1; i < len(r); i++ {
		if r[i-1] != r[i] {
			out = append(out, [2]orb.Point{r[i-1], r[i]})
		}
	}
	return out
}

// foldBack detects adjacent edges that are collinear and overlap, forming a
// zero-width spike. wrapped means b precedes a around the ring.
func foldBack(a, b [2]orb.Point, wrapped bool) (orb.Point, bool) {
	if wrapped {
		a, b = b, a
	}
	// a ends where b starts.
	shared := a[1]
	if cross(a[0], shared, b[1]) != 0 {
		return orb.Point{}, false
	}
	d1 := orb.Point{a[0][0] - shared[0], a[0][1] - shared[1]}
	d2 := orb.Point{b[1][0] - shared[0], b[1][1] - shared[1]}
	if d1[0]*d2[0]+d1[1]*d2[1] > 0 {
		return shared, true
	}
	return orb.Point{}, false
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func onSegment(p, q, r orb.Point) bool {
	return math.Min(p[0], r[0]) <= q[0] && q[0] <= math.Max(p[0], r[0]) &&
		math.Min(p[1], r[1]) <= q[1] && q[1] <= math.Max(p[1], r[1])
}

// segmentsIntersect reports whether p1p2 and p3p4 share any point, returning
// one such point.
func segmentsIntersect(p1, p2, p3, p4 orb.Point) (orb.Point, bool) {
	d1 := sign(cross(p3, p4, p1))
	d2 := sign(cross(p3, p4, p2))
	d3 := sign(cross(p1, p2, p3))
	d4 := sign(cross(p1, p2, p4))

	if d1*d2 < 0 && d3*d4 < 0 {
		t := cross(p3, p4, p1) / (cross(p3, p4, p1) - cross(p3, p4, p2))
		return orb.Point{p1[0] + t*(p2[0]-p1[0]), p1[1] + t*(p2[1]-p1[1])}, true
	}
	switch {
	case d1 == 0 && onSegment(p3, p1, p4):
		return p1, true
	case d2 == 0 && onSegment(p3, p2, p4):
		return p2, true
	case d3 == 0 && onSegment(p1, p3, p2):
		return p3, true
	case d4 == 0 && onSegment(p1, p4, p2):
		return p4, true
	}
	return orb.Point{}, false
}

func distinct(pts []orb.Point) int {
	seen := make(map[orb.Point]struct{}, len(pts))
	for _, p := range pts {
		seen[p] = struct{}{}
	}
	return len(seen)
}

func first(pts []orb.Point) orb.Point {
	if len(pts) == 0 {
		return orb.Point{}
	}
	return pts[0]
}

func anyVertex(g orb.Geometry) orb.Point {
	switch g := g.(type) {
	case orb.Point:
		return g
	case orb.MultiPoint:
		return first(g)
	case orb.LineString:
		return first(g)
	case orb.MultiLineString:
		if len(g) > 0 {
			return first(g[0])
		}
	case orb.Polygon:
		if len(g) > 0 {
			return first(g[0])
		}
	case orb.MultiPolygon:
		if len(g) > 0 && len(g[0]) > 0 {
			return first(g[0][0])
		}
	case orb.Collection:
		if len(g) > 0 {
			return anyVertex(g[0])
		}
	}
	return orb.Point{}
}
