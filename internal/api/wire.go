package api

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/Unidata/awips2-hazards-sub017/internal/areasource"
	"github.com/Unidata/awips2-hazards-sub017/internal/display"
	"github.com/Unidata/awips2-hazards-sub017/internal/engine"
)

var (
	ErrBadMode    = errors.New("unknown interaction mode")
	ErrBadShape   = errors.New("unknown shape")
	ErrBadMessage = errors.New("malformed message")
)

// ModeRequest selects an interaction mode by name.
type ModeRequest struct {
	Mode     string     `json:"mode"`
	Shape    string     `json:"shape,omitempty"`
	EventID  string     `json:"eventId,omitempty"`
	Area     string     `json:"area,omitempty"` // table/name
	Additive bool       `json:"additive,omitempty"`
	Start    *orb.Point `json:"start,omitempty"`
}

// Args resolves the request into an engine mode and its install arguments.
func (r ModeRequest) Args() (engine.Mode, engine.HandlerArgs, error) {
	mode := engine.ParseMode(r.Mode)
	if mode.String() == "unknown" {
		return 0, engine.HandlerArgs{}, fmt.Errorf("%q: %w", r.Mode, ErrBadMode)
	}
	args := engine.HandlerArgs{
		EventID:  r.EventID,
		Additive: r.Additive,
		Start:    r.Start,
	}
	if r.Shape != "" {
		k, ok := engine.ParseShapeKind(r.Shape)
		if !ok {
			return 0, engine.HandlerArgs{}, fmt.Errorf("%q: %w", r.Shape, ErrBadShape)
		}
		args.Shape = k
	} else if mode == engine.ModeNodeDrawing || mode == engine.ModeFreehandDrawing {
		args.Shape = engine.KindPolygon
	}
	if mode == engine.ModeDrawByArea {
		key, err := areasource.ParseKey(r.Area)
		if err != nil {
			return 0, engine.HandlerArgs{}, err
		}
		args.Area = key
	}
	return mode, args, nil
}

// ModeResponse reports the installed mode; empty when none is.
type ModeResponse struct {
	Mode string `json:"mode"`
}

var mouseActions = map[string]engine.MouseAction{
	"down":        engine.MouseDown,
	"move":        engine.MouseMove,
	"up":          engine.MouseUp,
	"doubleClick": engine.MouseDoubleClick,
}

var mouseButtons = map[string]engine.Button{
	"":       engine.ButtonNone,
	"left":   engine.ButtonLeft,
	"middle": engine.ButtonMiddle,
	"right":  engine.ButtonRight,
}

// MouseMessage is pointer input from a shell, in pane pixels.
type MouseMessage struct {
	Action string  `json:"action"`
	Button string  `json:"button,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Shift  bool    `json:"shift,omitempty"`
	Ctrl   bool    `json:"ctrl,omitempty"`
}

// Event converts the message into engine input.
func (m MouseMessage) Event() (engine.MouseEvent, error) {
	action, ok := mouseActions[m.Action]
	if !ok {
		return engine.MouseEvent{}, fmt.Errorf("mouse action %q: %w", m.Action, ErrBadMessage)
	}
	button, ok := mouseButtons[m.Button]
	if !ok {
		return engine.MouseEvent{}, fmt.Errorf("mouse button %q: %w", m.Button, ErrBadMessage)
	}
	return engine.MouseEvent{
		Action: action,
		Button: button,
		Pixel:  orb.Point{m.X, m.Y},
		Shift:  m.Shift,
		Ctrl:   m.Ctrl,
	}, nil
}

// ViewportMessage updates a pane. Any combination of fields may be set;
// Pan is applied after Viewport.
type ViewportMessage struct {
	Viewport *display.Viewport    `json:"viewport,omitempty"`
	Pan      *[2]float64          `json:"pan,omitempty"`
	Time     *display.TimeContext `json:"time,omitempty"`
}

// DisplayInfo describes a registered pane.
type DisplayInfo struct {
	ID       string              `json:"id"`
	Active   bool                `json:"active"`
	Viewport display.Viewport    `json:"viewport"`
	Bound    orb.Bound           `json:"bound"`
	Time     display.TimeContext `json:"time"`
}
