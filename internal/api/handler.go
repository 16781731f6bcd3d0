//go:build !js

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gorilla/mux"

	"github.com/Unidata/awips2-hazards-sub017/internal/areasource"
	"github.com/Unidata/awips2-hazards-sub017/internal/auth"
	"github.com/Unidata/awips2-hazards-sub017/internal/display"
	"github.com/Unidata/awips2-hazards-sub017/internal/engine"
	"github.com/Unidata/awips2-hazards-sub017/internal/hazard"
	"github.com/Unidata/awips2-hazards-sub017/internal/notify"
)

const (
	maxEventsBody = 8 << 20
	inboundWait   = 5 * time.Second
)

type Handler struct {
	service *Service
	hub     *notify.Hub
	origins []string
}

func NewHandler(service *Service, hub *notify.Hub, origins []string) *Handler {
	return &Handler{service: service, hub: hub, origins: origins}
}

// Routes mounts the display API on r. The caller applies authentication.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/events", h.PutEvents).Methods("PUT")
	r.HandleFunc("/events", h.GetEvents).Methods("GET")
	r.HandleFunc("/events", h.ClearEvents).Methods("DELETE")
	r.HandleFunc("/events/{eventId}", h.RemoveEvent).Methods("DELETE")
	r.HandleFunc("/refresh", h.Refresh).Methods("POST")

	r.HandleFunc("/selection", h.GetSelection).Methods("GET")
	r.HandleFunc("/selection/all", h.SelectAll).Methods("POST")
	r.HandleFunc("/selection", h.DeselectAll).Methods("DELETE")

	r.HandleFunc("/mode", h.SetMode).Methods("PUT")
	r.HandleFunc("/mode", h.GetMode).Methods("GET")
	r.HandleFunc("/mode", h.ClearMode).Methods("DELETE")

	r.HandleFunc("/menu", h.GetMenu).Methods("GET")
	r.HandleFunc("/menu", h.RunMenu).Methods("POST")
	r.HandleFunc("/frame", h.GetFrame).Methods("GET")

	r.HandleFunc("/overlays/{table}/{name}", h.EvictOverlay).Methods("DELETE")

	r.HandleFunc("/displays", h.ListDisplays).Methods("GET")
	r.HandleFunc("/displays/{displayId}", h.OpenDisplay).Methods("PUT")
	r.HandleFunc("/displays/{displayId}", h.CloseDisplay).Methods("DELETE")
	r.HandleFunc("/displays/{displayId}", h.UpdateDisplay).Methods("PATCH")
	r.HandleFunc("/displays/{displayId}/activate", h.Activate).Methods("POST")
	r.HandleFunc("/displays/{displayId}/mouse", h.Mouse).Methods("POST")
}

// PutEvents replaces the drawn event set with a GeoJSON FeatureCollection.
func (h *Handler) PutEvents(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxEventsBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	events, err := hazard.DecodeEvents(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	redrawn, err := h.service.DrawEvents(r.Context(), events)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": len(events), "redrawn": redrawn})
}

func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.Events(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	data, err := hazard.EncodeEvents(events)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) ClearEvents(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearEvents(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemoveEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveEvent(r.Context(), mux.Vars(r)["eventId"]); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	redrawn, err := h.service.Refresh(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"redrawn": redrawn})
}

func (h *Handler) GetSelection(w http.ResponseWriter, r *http.Request) {
	ids, err := h.service.Selection(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"selected": ids})
}

func (h *Handler) SelectAll(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SelectAll(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	h.GetSelection(w, r)
}

func (h *Handler) DeselectAll(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeselectAll(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.service.SetMode(r.Context(), req); err != nil {
		handleServiceError(w, err)
		return
	}
	h.GetMode(w, r)
}

func (h *Handler) GetMode(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Mode(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ClearMode(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearMode(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Menu(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []engine.MenuEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) RunMenu(w http.ResponseWriter, r *http.Request) {
	var entry engine.MenuEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.service.RunMenu(r.Context(), entry); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetFrame(w http.ResponseWriter, r *http.Request) {
	cmds, err := h.service.Frame(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if cmds == nil {
		cmds = []engine.DrawCommand{}
	}
	writeJSON(w, http.StatusOK, cmds)
}

func (h *Handler) ListDisplays(w http.ResponseWriter, r *http.Request) {
	displays, err := h.service.Displays(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if displays == nil {
		displays = []DisplayInfo{}
	}
	writeJSON(w, http.StatusOK, displays)
}

func (h *Handler) OpenDisplay(w http.ResponseWriter, r *http.Request) {
	var view display.Viewport
	if err := json.NewDecoder(r.Body).Decode(&view); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.service.OpenDisplay(r.Context(), mux.Vars(r)["displayId"], view); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CloseDisplay(w http.ResponseWriter, r *http.Request) {
	if err := h.service.CloseDisplay(r.Context(), mux.Vars(r)["displayId"]); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UpdateDisplay(w http.ResponseWriter, r *http.Request) {
	var msg ViewportMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.service.UpdateDisplay(r.Context(), mux.Vars(r)["displayId"], msg); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Activate(r.Context(), mux.Vars(r)["displayId"]); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Mouse(w http.ResponseWriter, r *http.Request) {
	var msg MouseMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.service.Mouse(r.Context(), mux.Vars(r)["displayId"], msg); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) EvictOverlay(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.service.EvictOverlay(vars["table"] + "/" + vars["name"]); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WebSocket attaches a display shell. Authentication has already run, so
// the operator is on the request context.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	displayID := mux.Vars(r)["displayId"]
	operator := auth.OperatorFromContext(r.Context())

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	client := notify.NewClient(h.hub, conn, operator, displayID)
	h.hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

// Inbound serves messages read from shells. Failures go back to the sender.
func (h *Handler) Inbound(c *notify.Client, msg *notify.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), inboundWait)
	defer cancel()

	if err := h.service.HandleMessage(ctx, msg.DisplayID, msg); err != nil {
		slog.Debug("shell message failed", "type", msg.Type, "client", c.ClientID, "error", err)
		h.hub.SendError(c, err)
	}
}

func handleServiceError(w http.ResponseWriter, err error) {
	var verr *engine.ValidationError
	switch {
	case errors.Is(err, ErrBadMode), errors.Is(err, ErrBadShape), errors.Is(err, ErrBadMessage),
		errors.Is(err, engine.ErrUnknownAction), errors.Is(err, areasource.ErrBadKey):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, engine.ErrUnknownEvent), errors.Is(err, display.ErrUnknownDisplay):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &verr), errors.Is(err, engine.ErrEditRejected),
		errors.Is(err, display.ErrBadViewDim), errors.Is(err, display.ErrOffMap):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, engine.ErrNothingSelected), errors.Is(err, display.ErrNoDisplay),
		errors.Is(err, engine.ErrCannotCenter):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, engine.ErrQueueClosed), errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "engine unavailable"})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
