package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Unidata/awips2-hazards-sub017/internal/areasource"
	"github.com/Unidata/awips2-hazards-sub017/internal/display"
	"github.com/Unidata/awips2-hazards-sub017/internal/engine"
	"github.com/Unidata/awips2-hazards-sub017/internal/hazard"
	"github.com/Unidata/awips2-hazards-sub017/internal/notify"
)

// Shells is the connection to display shells: frames go to the shells of
// one display, cursor changes to all of them.
type Shells interface {
	SendFrame(displayID string, frame any)
	Broadcast(msgType string, v any)
}

type shellCursor struct{ shells Shells }

func (c shellCursor) SetCursor(cur engine.Cursor) {
	c.shells.Broadcast(notify.TypeCursor, notify.CursorPayload{Cursor: string(cur)})
}

// Overlays is the draw-by-area source; entries can be dropped so the next
// use reloads them.
type Overlays interface {
	engine.AreaLoader
	Evict(key areasource.Key)
}

type Options struct {
	Queue    *engine.Queue
	Displays *display.Registry
	Shells   Shells
	Sink     notify.Sink
	Resolver *engine.Resolver
	Areas    Overlays
	Patterns engine.Patterns
	Logger   *slog.Logger

	SelectionDistancePx float64
	SlopPx              float64
	HandleBarRadiusPx   float64
}

// Service runs every engine call on the queue's owner goroutine and pushes
// a fresh frame to the shells after any call that asked for a redraw.
type Service struct {
	eng      *engine.Engine
	queue    *engine.Queue
	displays *display.Registry
	shells   Shells
	areas    Overlays
	log      *slog.Logger

	// dirty is only touched on the owner goroutine.
	dirty bool
}

func NewService(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		queue:    opts.Queue,
		displays: opts.Displays,
		shells:   opts.Shells,
		areas:    opts.Areas,
		log:      log,
	}
	var areas engine.AreaLoader
	if opts.Areas != nil {
		areas = opts.Areas
	}
	var cursor engine.CursorSetter
	if opts.Shells != nil {
		cursor = shellCursor{opts.Shells}
	}
	s.eng = engine.New(engine.Options{
		Displays:            opts.Displays,
		Sink:                opts.Sink,
		Logger:              log,
		Resolver:            opts.Resolver,
		Areas:               areas,
		Cursor:              cursor,
		Target:              engine.TargetFunc(func() { s.dirty = true }),
		Patterns:            opts.Patterns,
		SelectionDistancePx: opts.SelectionDistancePx,
		SlopPx:              opts.SlopPx,
		HandleBarRadiusPx:   opts.HandleBarRadiusPx,
	})
	return s
}

// exec runs fn on the owner and flushes a frame if fn requested a redraw.
func (s *Service) exec(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	if qerr := s.queue.Exec(ctx, func(owner context.Context) {
		err = fn(owner)
		s.flush()
	}); qerr != nil {
		return qerr
	}
	return err
}

func (s *Service) flush() {
	if !s.dirty {
		return
	}
	s.dirty = false
	if s.shells == nil {
		return
	}
	d, ok := s.displays.ActiveDisplay()
	if !ok {
		return
	}
	s.shells.SendFrame(d.ID(), s.eng.DrawCommands())
}

func (s *Service) DrawEvents(ctx context.Context, events []*hazard.Event) (bool, error) {
	var redrawn bool
	err := s.exec(ctx, func(context.Context) error {
		redrawn = s.eng.DrawEvents(events)
		return nil
	})
	return redrawn, err
}

func (s *Service) ClearEvents(ctx context.Context) error {
	return s.exec(ctx, func(context.Context) error {
		s.eng.ClearEvents()
		return nil
	})
}

func (s *Service) RemoveEvent(ctx context.Context, id string) error {
	return s.exec(ctx, func(context.Context) error {
		if _, ok := s.eng.Event(id); !ok {
			return fmt.Errorf("remove %s: %w", id, engine.ErrUnknownEvent)
		}
		s.eng.RemoveEvent(id)
		return nil
	})
}

func (s *Service) Refresh(ctx context.Context) (bool, error) {
	var redrawn bool
	err := s.exec(ctx, func(context.Context) error {
		redrawn = s.eng.IssueRefresh()
		return nil
	})
	return redrawn, err
}

func (s *Service) Events(ctx context.Context) ([]*hazard.Event, error) {
	var out []*hazard.Event
	err := s.exec(ctx, func(context.Context) error {
		for _, ev := range s.eng.Events() {
			out = append(out, ev.Clone())
		}
		return nil
	})
	return out, err
}

func (s *Service) Selection(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.exec(ctx, func(context.Context) error {
		ids = s.eng.Selection().IDs()
		return nil
	})
	return ids, err
}

func (s *Service) SelectAll(ctx context.Context) error {
	return s.exec(ctx, func(context.Context) error {
		s.eng.SelectAll()
		return nil
	})
}

func (s *Service) DeselectAll(ctx context.Context) error {
	return s.exec(ctx, func(context.Context) error {
		s.eng.DeselectAll()
		return nil
	})
}

func (s *Service) SetMode(ctx context.Context, req ModeRequest) error {
	mode, args, err := req.Args()
	if err != nil {
		return err
	}
	return s.exec(ctx, func(owner context.Context) error {
		s.eng.SetMouseHandler(owner, mode, args)
		return nil
	})
}

func (s *Service) ClearMode(ctx context.Context) error {
	return s.exec(ctx, func(context.Context) error {
		s.eng.UnregisterCurrentMouseHandler()
		return nil
	})
}

func (s *Service) Mode(ctx context.Context) (ModeResponse, error) {
	var resp ModeResponse
	err := s.exec(ctx, func(context.Context) error {
		if m, ok := s.eng.Mode(); ok {
			resp.Mode = m.String()
		}
		return nil
	})
	return resp, err
}

func (s *Service) Menu(ctx context.Context) ([]engine.MenuEntry, error) {
	var entries []engine.MenuEntry
	err := s.exec(ctx, func(context.Context) error {
		entries = s.eng.ContextMenuEntries()
		return nil
	})
	return entries, err
}

func (s *Service) RunMenu(ctx context.Context, entry engine.MenuEntry) error {
	return s.exec(ctx, func(context.Context) error {
		return s.eng.RunMenuEntry(entry)
	})
}

// Frame compiles the active display's draw commands.
func (s *Service) Frame(ctx context.Context) ([]engine.DrawCommand, error) {
	var cmds []engine.DrawCommand
	err := s.exec(ctx, func(context.Context) error {
		if _, ok := s.displays.ActiveDisplay(); !ok {
			return display.ErrNoDisplay
		}
		cmds = s.eng.DrawCommands()
		return nil
	})
	return cmds, err
}

// OpenDisplay registers a pane or updates its viewport. The first pane
// opened becomes active.
func (s *Service) OpenDisplay(ctx context.Context, id string, view display.Viewport) error {
	if err := view.Validate(); err != nil {
		return err
	}
	return s.exec(ctx, func(context.Context) error {
		if p, ok := s.pane(id); ok {
			if err := p.SetViewport(view); err != nil {
				return err
			}
		} else {
			s.displays.Register(display.NewPane(id, view))
			s.log.Info("display opened", "display", id)
		}
		s.viewChanged(id)
		return nil
	})
}

func (s *Service) CloseDisplay(ctx context.Context, id string) error {
	return s.exec(ctx, func(context.Context) error {
		if _, ok := s.displays.Get(id); !ok {
			return fmt.Errorf("%s: %w", id, display.ErrUnknownDisplay)
		}
		s.displays.Remove(id)
		s.log.Info("display closed", "display", id)
		return nil
	})
}

func (s *Service) Activate(ctx context.Context, id string) error {
	return s.exec(ctx, func(context.Context) error {
		return s.activate(id)
	})
}

func (s *Service) activate(id string) error {
	if d, ok := s.displays.ActiveDisplay(); ok && d.ID() == id {
		return nil
	}
	if err := s.displays.SetActive(id); err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	// The new pane may show another time, so filtering is redone too.
	s.eng.FrameChanged()
	s.eng.ViewChanged()
	return nil
}

// UpdateDisplay applies a viewport message to a registered pane.
func (s *Service) UpdateDisplay(ctx context.Context, id string, msg ViewportMessage) error {
	return s.exec(ctx, func(context.Context) error {
		p, ok := s.pane(id)
		if !ok {
			return fmt.Errorf("%s: %w", id, display.ErrUnknownDisplay)
		}
		view := p.Viewport()
		if msg.Viewport != nil {
			view = *msg.Viewport
		}
		if msg.Pan != nil {
			view = view.Pan(msg.Pan[0], msg.Pan[1])
		}
		if msg.Viewport != nil || msg.Pan != nil {
			if err := p.SetViewport(view); err != nil {
				return err
			}
			s.viewChanged(id)
		}
		if msg.Time != nil {
			p.SetTime(*msg.Time)
			if s.isActive(id) {
				s.eng.FrameChanged()
			}
		}
		return nil
	})
}

func (s *Service) Displays(ctx context.Context) ([]DisplayInfo, error) {
	var out []DisplayInfo
	err := s.exec(ctx, func(context.Context) error {
		for _, id := range s.displays.IDs() {
			p, ok := s.pane(id)
			if !ok {
				continue
			}
			view := p.Viewport()
			out = append(out, DisplayInfo{
				ID:       id,
				Active:   s.isActive(id),
				Viewport: view,
				Bound:    view.Bound(),
				Time:     p.Time(),
			})
		}
		return nil
	})
	return out, err
}

// Mouse delivers pointer input. Input from a pane other than the active one
// makes it active first.
func (s *Service) Mouse(ctx context.Context, displayID string, msg MouseMessage) error {
	ev, err := msg.Event()
	if err != nil {
		return err
	}
	return s.exec(ctx, func(context.Context) error {
		if displayID != "" {
			if err := s.activate(displayID); err != nil {
				return err
			}
		}
		s.eng.HandleMouse(ev)
		return nil
	})
}

// HandleMessage serves a websocket message from a shell on displayID.
func (s *Service) HandleMessage(ctx context.Context, displayID string, msg *notify.Message) error {
	switch msg.Type {
	case notify.TypeMouse:
		var m MouseMessage
		if err := json.Unmarshal(msg.Payload, &m); err != nil {
			return fmt.Errorf("mouse: %w", ErrBadMessage)
		}
		return s.Mouse(ctx, displayID, m)
	case notify.TypeViewport:
		var m ViewportMessage
		if err := json.Unmarshal(msg.Payload, &m); err != nil {
			return fmt.Errorf("viewport: %w", ErrBadMessage)
		}
		return s.UpdateDisplay(ctx, displayID, m)
	case notify.TypeActivate:
		return s.Activate(ctx, displayID)
	case notify.TypeMenu:
		var entry engine.MenuEntry
		if err := json.Unmarshal(msg.Payload, &entry); err != nil {
			return fmt.Errorf("menu: %w", ErrBadMessage)
		}
		return s.RunMenu(ctx, entry)
	}
	return fmt.Errorf("message type %q: %w", msg.Type, ErrBadMessage)
}

// EvictOverlay forgets a cached overlay so its source is read again.
func (s *Service) EvictOverlay(raw string) error {
	key, err := areasource.ParseKey(raw)
	if err != nil {
		return err
	}
	if s.areas != nil {
		s.areas.Evict(key)
		s.log.Info("overlay evicted", "overlay", key.String())
	}
	return nil
}

func (s *Service) pane(id string) (*display.Pane, bool) {
	d, ok := s.displays.Get(id)
	if !ok {
		return nil, false
	}
	p, ok := d.(*display.Pane)
	return p, ok
}

func (s *Service) isActive(id string) bool {
	d, ok := s.displays.ActiveDisplay()
	return ok && d.ID() == id
}

func (s *Service) viewChanged(id string) {
	if s.isActive(id) {
		s.eng.ViewChanged()
	}
}
