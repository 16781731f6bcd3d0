package engine

import (
	"encoding/json"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"

	"github.com/Unidata/awips2-hazards-sub017/internal/display"
)

// DrawCommand is one drawing operation for a display shell, in pixel
// coordinates of the active pane.
type DrawCommand struct {
	Op          string       `json:"op"` // "polygon", "line", "points", "text"
	ElementID   string       `json:"elementId,omitempty"`
	EventID     string       `json:"eventId,omitempty"`
	Points      [][2]float64 `json:"points"`
	Stroke      string       `json:"stroke,omitempty"`
	Fill        string       `json:"fill,omitempty"`
	FillPattern FillPattern  `json:"fillPattern,omitempty"`
	LineWidth   float64      `json:"lineWidth,omitempty"`
	Dash        []float64    `json:"dash,omitempty"`
	Symbol      string       `json:"symbol,omitempty"`
	Size        float64      `json:"size,omitempty"`
	Text        string       `json:"text,omitempty"`
	Ghost       bool         `json:"ghost,omitempty"`
	Selected    bool         `json:"selected,omitempty"`
}

// thinPx is how far, in pixels, simplified outlines may stray from the
// original.
const thinPx = 0.5

// DrawCommands compiles the active layer in painter's order, followed by
// the handle bars. Without an active display there is nothing to draw.
func (e *Engine) DrawCommands() []DrawCommand {
	d, ok := e.tr.Active()
	if !ok {
		return nil
	}
	e.arena.SetZoom(d.ZoomLevel())

	var cmds []DrawCommand
	for el := range e.store.All() {
		cmd, ok := e.compile(d, el)
		if !ok {
			continue
		}
		cmds = append(cmds, cmd)
	}
	if pts := e.handles.Points(); len(pts) > 0 {
		cmds = append(cmds, DrawCommand{
			Op:     "points",
			Points: toPairs(pts),
			Symbol: "handle",
			Size:   e.handleRadius,
		})
	}
	return cmds
}

func (e *Engine) compile(d display.Display, el *Element) (DrawCommand, bool) {
	world := e.renderPoints(d, el)
	px := make([]orb.Point, 0, len(world))
	for _, w := range world {
		p, err := d.WorldToPixel(w)
		if err != nil {
			return DrawCommand{}, false
		}
		px = append(px, p)
	}

	cmd := DrawCommand{
		ElementID: el.ID,
		EventID:   el.EventID,
		Points:    toPairs(px),
		Stroke:    el.Style.Color,
		LineWidth: el.Style.LineWidth,
		Ghost:     el.Ghost,
		Selected:  el.Selected,
	}
	if e.patterns != nil {
		cmd.Dash = e.patterns.Dash(string(el.Style.LineStyle))
	}

	switch el.Kind {
	case KindPolygon, KindSelectionRect:
		cmd.Op = "polygon"
		if el.Style.Fill != FillNone {
			cmd.Fill = el.Style.FillColor
			cmd.FillPattern = el.Style.Fill
		}
	case KindLine:
		cmd.Op = "line"
	case KindPoint, KindCircle, KindStar, KindDot:
		cmd.Op = "points"
		cmd.Symbol = el.Kind.String()
		cmd.Size = el.Style.SizeScale
		cmd.Fill = el.Style.FillColor
	case KindText:
		cmd.Op = "text"
		cmd.Text = el.Label
		cmd.Size = el.Style.SizeScale
	}
	return cmd, true
}

// renderPoints returns el's outline thinned for the current zoom, cached in
// the arena under el's handle.
func (e *Engine) renderPoints(d display.Display, el *Element) []orb.Point {
	if pts, ok := e.arena.Get(el.handle); ok {
		return pts
	}
	pts := el.Geometry
	if len(pts) > 4 && (el.Kind == KindLine || el.Kind == KindPolygon) {
		if p0, err := d.WorldToPixel(pts[0]); err == nil {
			tol := offsetDistance(d, pts[0], p0, thinPx)
			pts = thin(el.Kind, pts, tol)
		}
	}
	e.arena.Put(el.handle, pts)
	return pts
}

func thin(kind ShapeKind, pts []orb.Point, tol float64) []orb.Point {
	dp := simplify.DouglasPeucker(tol)
	if kind == KindLine {
		ls := dp.Simplify(orb.LineString(slices.Clone(pts))).(orb.LineString)
		if len(ls) < 2 {
			return pts
		}
		return ls
	}
	ring := dp.Simplify(orb.Ring(slices.Clone(pts))).(orb.Ring)
	if len(ring) < 4 {
		return pts
	}
	return ring
}

func toPairs(pts []orb.Point) [][2]float64 {
	out := make([][2]float64, len(pts))
	for i, p := range pts {
		out[i] = [2]float64(p)
	}
	return out
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}
