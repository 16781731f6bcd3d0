package notify

import "encoding/json"

// Message is the envelope exchanged with display shells over a websocket.
type Message struct {
	Type      string          `json:"type"`
	DisplayID string          `json:"displayId,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

const (
	// Server to shell.
	TypeWelcome      = "welcome"
	TypeNotification = "notification"
	TypeFrame        = "frame"
	TypeCursor       = "cursor"
	TypeError        = "error"

	// Shell to server.
	TypeMouse    = "mouse"
	TypeViewport = "viewport"
	TypeActivate = "activate"
	TypeMenu     = "menu"
)

type WelcomePayload struct {
	ClientID  string `json:"clientId"`
	DisplayID string `json:"displayId"`
}

type CursorPayload struct {
	Cursor string `json:"cursor"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// inbound lists the message types handed to the hub's inbound callback.
var inbound = map[string]bool{
	TypeMouse:    true,
	TypeViewport: true,
	TypeActivate: true,
	TypeMenu:     true,
}
