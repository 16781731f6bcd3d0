//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"
	"time"

	"github.com/Unidata/awips2-hazards-sub017/internal/api"
	"github.com/Unidata/awips2-hazards-sub017/internal/display"
	"github.com/Unidata/awips2-hazards-sub017/internal/engine"
	"github.com/Unidata/awips2-hazards-sub017/internal/hazard"
	"github.com/Unidata/awips2-hazards-sub017/internal/notify"
)

var (
	eng      *engine.Engine
	displays = display.NewRegistry()
	bridge   js.Value
)

func main() {
	bridge = js.Global().Get("Object").New()

	eng = engine.New(engine.Options{
		Displays: displays,
		Sink:     notify.SinkFunc(publish),
		Cursor:   jsCursor{},
		Target:   engine.TargetFunc(func() { callback("onRedraw") }),
	})

	// --- Commands (page → engine) ---
	bridge.Set("drawEvents", js.FuncOf(drawEvents))
	bridge.Set("loadSampleEvents", js.FuncOf(loadSampleEvents))
	bridge.Set("clearEvents", js.FuncOf(clearEvents))
	bridge.Set("removeEvent", js.FuncOf(removeEvent))
	bridge.Set("refresh", js.FuncOf(refresh))
	bridge.Set("openDisplay", js.FuncOf(openDisplay))
	bridge.Set("activateDisplay", js.FuncOf(activateDisplay))
	bridge.Set("setTime", js.FuncOf(setTime))
	bridge.Set("mouse", js.FuncOf(mouse))
	bridge.Set("setMode", js.FuncOf(setMode))
	bridge.Set("selectAll", js.FuncOf(selectAll))
	bridge.Set("deselectAll", js.FuncOf(deselectAll))
	bridge.Set("runMenuEntry", js.FuncOf(runMenuEntry))

	// --- Queries (page ← engine) ---
	bridge.Set("drawCommands", js.FuncOf(drawCommands))
	bridge.Set("contextMenu", js.FuncOf(contextMenu))
	bridge.Set("getSelection", js.FuncOf(getSelection))
	bridge.Set("getMode", js.FuncOf(getMode))

	js.Global().Set("hazardDisplay", bridge)
	js.Global().Set("hazardDisplayReady", js.ValueOf(true))

	select {}
}

// callback invokes bridge[name] if the page installed it.
func callback(name string, args ...any) {
	fn := bridge.Get(name)
	if fn.Type() == js.TypeFunction {
		fn.Invoke(args...)
	}
}

func publish(n notify.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	callback("onNotification", string(data))
}

type jsCursor struct{}

func (jsCursor) SetCursor(c engine.Cursor) { callback("onCursor", string(c)) }

func ok() any { return js.ValueOf(map[string]any{"ok": true}) }

func fail(err error) any { return js.ValueOf(map[string]any{"error": err.Error()}) }

func missing(what string) any { return js.ValueOf(map[string]any{"error": "missing " + what}) }

// --- Command Handlers ---

func drawEvents(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return missing("events GeoJSON")
	}
	events, err := hazard.DecodeEvents([]byte(args[0].String()))
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(map[string]any{"redrawn": eng.DrawEvents(events)})
}

func loadSampleEvents(this js.Value, args []js.Value) any {
	return js.ValueOf(map[string]any{"redrawn": eng.DrawEvents(hazard.SampleEvents(time.Now()))})
}

func clearEvents(this js.Value, args []js.Value) any {
	eng.ClearEvents()
	return ok()
}

func removeEvent(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return missing("event id")
	}
	eng.RemoveEvent(args[0].String())
	return ok()
}

func refresh(this js.Value, args []js.Value) any {
	return js.ValueOf(map[string]any{"redrawn": eng.IssueRefresh()})
}

func openDisplay(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return missing("display id and viewport")
	}
	id := args[0].String()
	var view display.Viewport
	if err := json.Unmarshal([]byte(args[1].String()), &view); err != nil {
		return fail(err)
	}
	if err := view.Validate(); err != nil {
		return fail(err)
	}
	if d, found := displays.Get(id); found {
		if err := d.(*display.Pane).SetViewport(view); err != nil {
			return fail(err)
		}
	} else {
		displays.Register(display.NewPane(id, view))
	}
	if active, found := displays.ActiveDisplay(); found && active.ID() == id {
		eng.ViewChanged()
	}
	return ok()
}

func activateDisplay(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return missing("display id")
	}
	if err := displays.SetActive(args[0].String()); err != nil {
		return fail(err)
	}
	eng.FrameChanged()
	eng.ViewChanged()
	return ok()
}

func setTime(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return missing("display id and time")
	}
	id := args[0].String()
	d, found := displays.Get(id)
	if !found {
		return fail(display.ErrUnknownDisplay)
	}
	var tc display.TimeContext
	if err := json.Unmarshal([]byte(args[1].String()), &tc); err != nil {
		return fail(err)
	}
	d.(*display.Pane).SetTime(tc)
	if active, found := displays.ActiveDisplay(); found && active.ID() == id {
		eng.FrameChanged()
	}
	return ok()
}

func mouse(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return missing("mouse event")
	}
	var msg api.MouseMessage
	if err := json.Unmarshal([]byte(args[0].String()), &msg); err != nil {
		return fail(err)
	}
	ev, err := msg.Event()
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(eng.HandleMouse(ev))
}

func setMode(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		eng.UnregisterCurrentMouseHandler()
		return ok()
	}
	var req api.ModeRequest
	if err := json.Unmarshal([]byte(args[0].String()), &req); err != nil {
		return fail(err)
	}
	mode, margs, err := req.Args()
	if err != nil {
		return fail(err)
	}
	eng.SetMouseHandler(context.Background(), mode, margs)
	return ok()
}

func selectAll(this js.Value, args []js.Value) any {
	eng.SelectAll()
	return ok()
}

func deselectAll(this js.Value, args []js.Value) any {
	eng.DeselectAll()
	return ok()
}

func runMenuEntry(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return missing("menu entry")
	}
	var entry engine.MenuEntry
	if err := json.Unmarshal([]byte(args[0].String()), &entry); err != nil {
		return fail(err)
	}
	if err := eng.RunMenuEntry(entry); err != nil {
		return fail(err)
	}
	return ok()
}

// --- Query Handlers ---

func drawCommands(this js.Value, args []js.Value) any {
	out, err := engine.DrawCommandsToJSON(eng.DrawCommands())
	if err != nil {
		return js.ValueOf("[]")
	}
	return js.ValueOf(out)
}

func contextMenu(this js.Value, args []js.Value) any {
	data, err := json.Marshal(eng.ContextMenuEntries())
	if err != nil {
		return js.ValueOf("[]")
	}
	return js.ValueOf(string(data))
}

func getSelection(this js.Value, args []js.Value) any {
	data, err := json.Marshal(eng.Selection().IDs())
	if err != nil {
		return js.ValueOf("[]")
	}
	return js.ValueOf(string(data))
}

func getMode(this js.Value, args []js.Value) any {
	if m, found := eng.Mode(); found {
		return js.ValueOf(m.String())
	}
	return js.ValueOf("")
}
