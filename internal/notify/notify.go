package notify

import (
	"time"

	"github.com/paulmach/orb/geojson"
)

type Kind string

const (
	SelectedEventsChanged Kind = "selectedEventsChanged"
	GeometryModified      Kind = "geometryModified"
	DrawingActionComplete Kind = "drawingActionComplete"
	FrameChanged          Kind = "frameChanged"
)

// Notification is what the spatial core tells the rest of the application.
// Only the fields relevant to Kind are set.
type Notification struct {
	Kind      Kind              `json:"kind"`
	EventIDs  []string          `json:"eventIds,omitempty"`
	EventID   string            `json:"eventId,omitempty"`
	Geometry  *geojson.Geometry `json:"geometry,omitempty"`
	Mode      string            `json:"mode,omitempty"`
	FrameTime time.Time         `json:"frameTime,omitzero"`
}

// Sink receives notifications. Publish must not block the caller for long;
// transports that do I/O queue internally.
type Sink interface {
	Publish(n Notification)
}

type SinkFunc func(Notification)

func (f SinkFunc) Publish(n Notification) { f(n) }

// Discard drops everything.
var Discard Sink = SinkFunc(func(Notification) {})

// Multi fans a notification out to every sink in order.
type Multi []Sink

func (m Multi) Publish(n Notification) {
	for _, s := range m {
		if s != nil {
			s.Publish(n)
		}
	}
}
