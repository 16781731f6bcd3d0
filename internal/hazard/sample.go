package hazard

import (
	"time"

	"github.com/paulmach/orb"

	"github.com/Unidata/awips2-hazards-sub017/internal/typeid"
)

// SampleEvents returns a small event set around central Oklahoma, anchored at
// now. It backs the demo endpoints and the browser build.
func SampleEvents(now time.Time) []*Event {
	now = now.UTC().Truncate(time.Minute)
	window := TimeRange{Start: now.Add(-30 * time.Minute), End: now.Add(45 * time.Minute)}

	warning := &Event{
		ID: typeid.NewEventID(),
		Geometry: orb.Polygon{{
			{-97.9, 35.2}, {-97.2, 35.2}, {-97.2, 35.7}, {-97.9, 35.7}, {-97.9, 35.2},
		}},
		Time:         window,
		Phenomenon:   "TO",
		Significance: "W",
		Status:       StatusPending,
		Attributes: map[string]any{
			AttrAddRemoveShapes: true,
		},
	}

	watch := &Event{
		ID: typeid.NewEventID(),
		Geometry: orb.MultiPolygon{
			{{{-99.0, 34.5}, {-97.5, 34.5}, {-97.5, 35.5}, {-99.0, 35.5}, {-99.0, 34.5}}},
			{{{-96.8, 35.0}, {-96.2, 35.0}, {-96.2, 35.6}, {-96.8, 35.6}, {-96.8, 35.0}}},
		},
		Time:         TimeRange{Start: now.Add(-2 * time.Hour), End: now.Add(4 * time.Hour)},
		Phenomenon:   "SV",
		Significance: "A",
		Status:       StatusIssued,
		Attributes: map[string]any{
			AttrHatchedArea:     true,
			AttrAddRemoveShapes: true,
		},
	}

	track := &Event{
		ID:           typeid.NewEventID(),
		Geometry:     orb.LineString{{-98.4, 35.0}, {-98.0, 35.15}, {-97.6, 35.3}},
		Time:         window,
		Phenomenon:   "TO",
		Significance: "W",
		Status:       StatusPending,
		Attributes: map[string]any{
			AttrTrackPoints: []any{
				[]any{-98.4, 35.0}, []any{-98.0, 35.15}, []any{-97.6, 35.3},
			},
		},
	}

	report := &Event{
		ID:           typeid.NewEventID(),
		Geometry:     orb.Point{-97.52, 35.47},
		Time:         window,
		Phenomenon:   "FA",
		Significance: "Y",
		Status:       StatusProposed,
		Attributes: map[string]any{
			AttrLabel: "Flooding reported",
		},
	}

	return []*Event{watch, warning, track, report}
}
