package engine

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Unidata/awips2-hazards-sub017/internal/hazard"
)

//go:embed palette.yaml
var defaultPalette []byte

// Palette is the style policy loaded from YAML.
type Palette struct {
	Default           string            `yaml:"default"`
	Ended             string            `yaml:"ended"`
	Ghost             string            `yaml:"ghost"`
	LineWidth         float64           `yaml:"lineWidth"`
	SelectedLineWidth float64           `yaml:"selectedLineWidth"`
	Hazards           map[string]string `yaml:"hazards"`
	Kinds             map[string]Style  `yaml:"kinds"`
}

// Resolver maps an event's state to rendering attributes, one function per
// shape kind.
type Resolver struct {
	p Palette
}

// NewResolver parses a palette. Empty data selects the built-in one.
func NewResolver(data []byte) (*Resolver, error) {
	if len(data) == 0 {
		data = defaultPalette
	}
	var p Palette
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse palette: %w", err)
	}
	if p.Default == "" {
		p.Default = "#FFFFFF"
	}
	if p.Ghost == "" {
		p.Ghost = p.Default
	}
	if p.LineWidth <= 0 {
		p.LineWidth = 2
	}
	if p.SelectedLineWidth <= 0 {
		p.SelectedLineWidth = p.LineWidth * 2
	}
	return &Resolver{p: p}, nil
}

// LoadResolver reads a palette file; an empty path selects the built-in one.
func LoadResolver(path string) (*Resolver, error) {
	if path == "" {
		return NewResolver(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read palette: %w", err)
	}
	return NewResolver(data)
}

func MustDefaultResolver() *Resolver {
	r, err := NewResolver(nil)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the style for one drawable of ev. ev may be nil for
// drawables that belong to no event, such as the selection rectangle.
func (r *Resolver) Resolve(kind ShapeKind, ev *hazard.Event, selected bool) Style {
	base := r.base(kind)
	switch kind {
	case KindPolygon:
		return r.polygon(base, ev, selected)
	case KindLine:
		return r.line(base, ev, selected)
	case KindPoint, KindStar:
		return r.marker(base, ev, selected)
	case KindCircle:
		return r.circle(base, ev, selected)
	case KindDot:
		return r.dot(base, selected)
	case KindSelectionRect:
		return base
	case KindText:
		return r.text(base, ev)
	}
	panic(fmt.Sprintf("engine: unhandled shape kind %d", kind))
}

// Hatch is the fill drawable layered under a hatched event's outline.
func (r *Resolver) Hatch(ev *hazard.Event) Style {
	color := r.color(ev)
	return Style{
		Color:     color,
		FillColor: color,
		LineWidth: 0,
		LineStyle: LineSolid,
		Fill:      FillHatched,
		SizeScale: 1,
	}
}

// Ghost restyles s for an in-progress edit preview.
func (r *Resolver) Ghost(s Style) Style {
	s.Color = r.p.Ghost
	s.LineStyle = LineDashed
	return s
}

func (r *Resolver) base(kind ShapeKind) Style {
	s := r.p.Kinds[kind.String()]
	if s.LineWidth == 0 {
		s.LineWidth = r.p.LineWidth
	}
	if s.LineStyle == "" {
		s.LineStyle = LineSolid
	}
	if s.Fill == "" {
		s.Fill = FillNone
	}
	if s.SizeScale == 0 {
		s.SizeScale = 1
	}
	return s
}

func (r *Resolver) polygon(s Style, ev *hazard.Event, selected bool) Style {
	s.Color = r.color(ev)
	s.LineWidth = r.width(selected)
	s.LineStyle = borderStyle(ev, s.LineStyle)
	return s
}

func (r *Resolver) line(s Style, ev *hazard.Event, selected bool) Style {
	s.Color = r.color(ev)
	s.LineWidth = r.width(selected)
	s.LineStyle = borderStyle(ev, s.LineStyle)
	return s
}

func (r *Resolver) marker(s Style, ev *hazard.Event, selected bool) Style {
	s.Color = r.color(ev)
	s.FillColor = s.Color
	if selected {
		s.SizeScale *= 1.5
	}
	return s
}

func (r *Resolver) circle(s Style, ev *hazard.Event, selected bool) Style {
	s.Color = r.color(ev)
	if selected {
		s.LineWidth = r.p.SelectedLineWidth / 2
	}
	return s
}

func (r *Resolver) dot(s Style, selected bool) Style {
	if s.Color == "" {
		s.Color = r.p.Default
	}
	s.FillColor = s.Color
	if selected {
		s.SizeScale *= 1.25
	}
	return s
}

func (r *Resolver) text(s Style, ev *hazard.Event) Style {
	s.Color = r.color(ev)
	return s
}

func (r *Resolver) width(selected bool) float64 {
	if selected {
		return r.p.SelectedLineWidth
	}
	return r.p.LineWidth
}

func (r *Resolver) color(ev *hazard.Event) string {
	if ev == nil {
		return r.p.Default
	}
	if c := ev.StringAttr(hazard.AttrColor); c != "" {
		return c
	}
	if ev.Status == hazard.StatusEnded || ev.Status == hazard.StatusElapsed {
		if r.p.Ended != "" {
			return r.p.Ended
		}
	}
	key := ev.HazardType()
	for key != "" {
		if c, ok := r.p.Hazards[key]; ok {
			return c
		}
		i := strings.LastIndexByte(key, '.')
		if i < 0 {
			break
		}
		key = key[:i]
	}
	return r.p.Default
}

func borderStyle(ev *hazard.Event, fallback LineStyle) LineStyle {
	if ev == nil {
		return fallback
	}
	switch s := LineStyle(strings.ToUpper(ev.StringAttr(hazard.AttrBorderStyle))); s {
	case LineSolid, LineDashed, LineDotted, LineDashDotted, LineDoubleSolid:
		return s
	default:
		return fallback
	}
}
