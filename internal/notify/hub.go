//go:build !js

package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// InboundFunc receives pointer, viewport and menu messages from shells.
type InboundFunc func(c *Client, msg *Message)

// Hub tracks display-shell connections grouped by display. It is a Sink:
// notifications go to every connected shell, frames only to the shells
// showing that display.
type Hub struct {
	mu         sync.RWMutex
	displays   map[string]map[string]*Client // displayID -> clientID -> client
	frames     map[string][]byte             // displayID -> last frame sent
	register   chan *Client
	unregister chan *Client
	inbound    InboundFunc
	log        *slog.Logger
}

func NewHub(inbound InboundFunc, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		displays:   make(map[string]map[string]*Client),
		frames:     make(map[string][]byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    inbound,
		log:        log,
	}
}

// Run processes joins and leaves until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Clients counts the shells connected to a display.
func (h *Hub) Clients(displayID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.displays[displayID])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	clients, ok := h.displays[client.DisplayID]
	if !ok {
		clients = make(map[string]*Client)
		h.displays[client.DisplayID] = clients
	}
	clients[client.ClientID] = client
	frame := h.frames[client.DisplayID]
	h.mu.Unlock()

	welcome, _ := json.Marshal(WelcomePayload{ClientID: client.ClientID, DisplayID: client.DisplayID})
	client.Send(&Message{Type: TypeWelcome, DisplayID: client.DisplayID, Payload: welcome})

	// A late joiner gets the current picture without waiting for a redraw.
	if frame != nil {
		client.sendRaw(frame)
	}

	h.log.Info("shell joined", "client", client.ClientID, "display", client.DisplayID, "user", client.UserID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	clients, ok := h.displays[client.DisplayID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := clients[client.ClientID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(clients, client.ClientID)
	close(client.send)
	if len(clients) == 0 {
		delete(h.displays, client.DisplayID)
	}
	h.mu.Unlock()

	h.log.Info("shell left", "client", client.ClientID, "display", client.DisplayID)
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	if !inbound[msg.Type] {
		h.log.Warn("unknown message type", "type", msg.Type, "client", sender.ClientID)
		return
	}
	if h.inbound != nil {
		h.inbound(sender, msg)
	}
}

// Publish implements Sink.
func (h *Hub) Publish(n Notification) {
	h.Broadcast(TypeNotification, n)
}

// Broadcast sends a message of the given type to every connected shell.
func (h *Hub) Broadcast(msgType string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.Error("marshal broadcast", "error", err, "type", msgType)
		return
	}
	data, err := json.Marshal(&Message{Type: msgType, Payload: payload})
	if err != nil {
		h.log.Error("marshal broadcast", "error", err, "type", msgType)
		return
	}
	h.each("", func(c *Client) { c.sendRaw(data) })
}

// SendFrame delivers a display's draw commands to the shells showing it and
// keeps them for shells that join later.
func (h *Hub) SendFrame(displayID string, frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		h.log.Error("marshal frame", "error", err, "display", displayID)
		return
	}
	data, err := json.Marshal(&Message{Type: TypeFrame, DisplayID: displayID, Payload: payload})
	if err != nil {
		h.log.Error("marshal frame", "error", err, "display", displayID)
		return
	}

	h.mu.Lock()
	h.frames[displayID] = data
	h.mu.Unlock()

	h.each(displayID, func(c *Client) { c.sendRaw(data) })
}

// SendError reports a failed request back to the shell that made it.
func (h *Hub) SendError(c *Client, err error) {
	payload, _ := json.Marshal(ErrorPayload{Message: err.Error()})

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.displays[c.DisplayID][c.ClientID]; ok {
		c.Send(&Message{Type: TypeError, DisplayID: c.DisplayID, Payload: payload})
	}
}

// each visits the clients of one display, or of all displays when displayID
// is empty. The read lock keeps send channels open while fn runs, so fn must
// not block.
func (h *Hub) each(displayID string, fn func(*Client)) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, clients := range h.displays {
		if displayID != "" && id != displayID {
			continue
		}
		for _, c := range clients {
			fn(c)
		}
	}
}
