package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/Unidata/awips2-hazards-sub017/internal/areasource"
	"github.com/Unidata/awips2-hazards-sub017/internal/notify"
)

var ErrNoAreaSource = errors.New("no select-by-area source configured")

// Mode is an interaction mode the dispatcher can install a handler for.
type Mode int

const (
	ModeSingleSelection Mode = iota
	ModeMultiSelection
	ModeNodeDrawing
	ModeFreehandDrawing
	ModeDragDropDrawing
	ModeDrawByArea
	ModeSelectionRectangle
)

var modeNames = map[Mode]string{
	ModeSingleSelection:    "singleSelection",
	ModeMultiSelection:     "multiSelection",
	ModeNodeDrawing:        "nodeDrawing",
	ModeFreehandDrawing:    "freehandDrawing",
	ModeDragDropDrawing:    "dragDropDrawing",
	ModeDrawByArea:         "drawByArea",
	ModeSelectionRectangle: "selectionRectangle",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "unknown"
}

// ParseMode maps a mode name back to its Mode. Unknown names yield an
// out-of-range Mode, which the dispatcher refuses.
func ParseMode(s string) Mode {
	for m, name := range modeNames {
		if name == s {
			return m
		}
	}
	return Mode(-1)
}

type Cursor string

const (
	CursorArrow     Cursor = "arrow"
	CursorCrosshair Cursor = "crosshair"
	CursorDraw      Cursor = "draw"
	CursorHand      Cursor = "hand"
	CursorMove      Cursor = "move"
)

// HandlerArgs are the per-install parameters of a mode.
type HandlerArgs struct {
	// Shape is the geometry node and freehand drawing produce.
	Shape ShapeKind `json:"shape"`
	// EventID names the event a drawing adds to, or the owner of a dragged dot.
	EventID string `json:"eventId,omitempty"`
	// Area is the overlay for draw-by-area.
	Area areasource.Key `json:"area"`
	// Additive makes selection handlers toggle instead of replace.
	Additive bool `json:"additive,omitempty"`
	// Start places the drag-drop dot before the first click.
	Start *orb.Point `json:"start,omitempty"`
}

type MouseAction int

const (
	MouseDown MouseAction = iota
	MouseMove
	MouseUp
	MouseDoubleClick
)

type Button int

const (
	ButtonNone Button = iota
	ButtonLeft
	ButtonMiddle
	ButtonRight
)

type MouseEvent struct {
	Action MouseAction `json:"action"`
	Button Button      `json:"button"`
	Pixel  orb.Point   `json:"pixel"`
	Shift  bool        `json:"shift,omitempty"`
	Ctrl   bool        `json:"ctrl,omitempty"`
}

// Handler interprets pointer input for one mode. Handlers are created by the
// engine and live in the dispatcher's arena.
type Handler interface {
	Mode() Mode
	Cursor() Cursor
	Handle(ev MouseEvent) bool

	install(ctx context.Context, args HandlerArgs) error
	uninstall()
}

// InputRegistrar is the display shell's input delivery. The dispatcher
// unregisters the old handler before registering a new one.
type InputRegistrar interface {
	RegisterHandler(h Handler)
	UnregisterHandler(h Handler)
}

// CursorSetter is owned by the display shell.
type CursorSetter interface {
	SetCursor(c Cursor)
}

// AreaLoader provides select-by-area overlays.
type AreaLoader interface {
	Load(ctx context.Context, key areasource.Key) (*areasource.Overlay, error)
}

type handlerFactory func(e *Engine, mode Mode) Handler

var handlerFactories = map[Mode]handlerFactory{
	ModeSingleSelection:    newSelectHandler,
	ModeMultiSelection:     newSelectHandler,
	ModeNodeDrawing:        newNodeDrawHandler,
	ModeFreehandDrawing:    newFreehandHandler,
	ModeDragDropDrawing:    newDragDropHandler,
	ModeDrawByArea:         newDrawByAreaHandler,
	ModeSelectionRectangle: newSelectionRectHandler,
}

// Dispatcher installs at most one handler at a time.
type Dispatcher struct {
	e      *Engine
	input  InputRegistrar
	cursor CursorSetter
	log    *slog.Logger

	arena   map[Mode]Handler
	current Handler
	overlay *areasource.Overlay
}

func newDispatcher(e *Engine, input InputRegistrar, cursor CursorSetter, log *slog.Logger) *Dispatcher {
	if input == nil {
		input = nopInput{}
	}
	if cursor == nil {
		cursor = nopCursor{}
	}
	return &Dispatcher{
		e:      e,
		input:  input,
		cursor: cursor,
		log:    log,
		arena:  make(map[Mode]Handler),
	}
}

// Set tears down the current handler and installs the one for mode. An
// unknown mode is logged and leaves the current handler in place. A handler
// that fails to install ends the drawing action.
func (d *Dispatcher) Set(ctx context.Context, mode Mode, args HandlerArgs) {
	factory, ok := handlerFactories[mode]
	if !ok {
		d.log.Error("unrecognized mouse handler mode", "mode", int(mode))
		return
	}

	d.teardown()

	h, ok := d.arena[mode]
	if !ok {
		h = factory(d.e, mode)
		d.arena[mode] = h
	}
	if err := h.install(ctx, args); err != nil {
		d.log.Warn("mouse handler not installed", "mode", mode.String(), "error", err)
		h.uninstall()
		d.complete()
		return
	}

	d.current = h
	d.input.RegisterHandler(h)
	d.cursor.SetCursor(h.Cursor())
}

// Unregister removes the current handler without installing another.
func (d *Dispatcher) Unregister() {
	d.teardown()
	d.releaseOverlay()
}

func (d *Dispatcher) Current() (Handler, bool) {
	return d.current, d.current != nil
}

func (d *Dispatcher) teardown() {
	if d.current == nil {
		return
	}
	h := d.current
	d.current = nil
	d.input.UnregisterHandler(h)
	h.uninstall()
}

// complete ends a drawing action: it releases any overlay, tells the owner,
// and falls back to single selection.
func (d *Dispatcher) complete() {
	d.releaseOverlay()
	d.e.sink.Publish(notify.Notification{
		Kind: notify.DrawingActionComplete,
		Mode: ModeSingleSelection.String(),
	})
	d.Set(context.Background(), ModeSingleSelection, HandlerArgs{})
}

func (d *Dispatcher) releaseOverlay() {
	if d.overlay != nil {
		d.log.Debug("releasing select-by-area overlay", "overlay", d.overlay.Key.String())
		d.overlay = nil
	}
}

type nopInput struct{}

func (nopInput) RegisterHandler(Handler)   {}
func (nopInput) UnregisterHandler(Handler) {}

type nopCursor struct{}

func (nopCursor) SetCursor(Cursor) {}
