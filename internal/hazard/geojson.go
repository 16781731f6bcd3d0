package hazard

import (
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"
)

var (
	ErrMissingID   = errors.New("feature has no id")
	ErrBadTimeSpan = errors.New("invalid event time range")
)

// Properties that map onto Event fields instead of Attributes.
const (
	propPhen       = "phen"
	propSig        = "sig"
	propSubtype    = "subtype"
	propStatus     = "status"
	propSelected   = "selected"
	propPersistent = "persistent"
	propStart      = "startTime"
	propEnd        = "endTime"
)

var reserved = map[string]bool{
	propPhen: true, propSig: true, propSubtype: true, propStatus: true,
	propSelected: true, propPersistent: true, propStart: true, propEnd: true,
}

// DecodeEvents parses a GeoJSON FeatureCollection where each feature is one
// hazard event. Unknown properties are kept as attributes.
func DecodeEvents(data []byte) ([]*Event, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	events := make([]*Event, 0, len(fc.Features))
	for i, f := range fc.Features {
		ev, err := FromFeature(f)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func FromFeature(f *geojson.Feature) (*Event, error) {
	id := featureID(f)
	if id == "" {
		return nil, ErrMissingID
	}

	ev := &Event{
		ID:           id,
		Geometry:     f.Geometry,
		Phenomenon:   f.Properties.MustString(propPhen, ""),
		Significance: f.Properties.MustString(propSig, ""),
		Subtype:      f.Properties.MustString(propSubtype, ""),
		Status:       Status(f.Properties.MustString(propStatus, string(StatusPending))),
		Selected:     f.Properties.MustBool(propSelected, false),
		Persistent:   f.Properties.MustBool(propPersistent, false),
	}

	start, err := parseTime(f.Properties[propStart])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", propStart, err)
	}
	end, err := parseTime(f.Properties[propEnd])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", propEnd, err)
	}
	ev.Time = TimeRange{Start: start, End: end}
	if !start.IsZero() && !end.IsZero() && !ev.Time.Valid() {
		return nil, ErrBadTimeSpan
	}

	for k, v := range f.Properties {
		if reserved[k] {
			continue
		}
		if ev.Attributes == nil {
			ev.Attributes = make(map[string]any)
		}
		ev.Attributes[k] = v
	}
	return ev, nil
}

// EncodeEvents renders events back into a FeatureCollection.
func EncodeEvents(events []*Event) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, ev := range events {
		fc.Append(ToFeature(ev))
	}
	return fc.MarshalJSON()
}

func ToFeature(ev *Event) *geojson.Feature {
	f := geojson.NewFeature(ev.Geometry)
	f.ID = ev.ID
	for k, v := range ev.Attributes {
		f.Properties[k] = v
	}
	f.Properties[propPhen] = ev.Phenomenon
	f.Properties[propSig] = ev.Significance
	if ev.Subtype != "" {
		f.Properties[propSubtype] = ev.Subtype
	}
	f.Properties[propStatus] = string(ev.Status)
	f.Properties[propSelected] = ev.Selected
	f.Properties[propPersistent] = ev.Persistent
	if !ev.Time.Start.IsZero() {
		f.Properties[propStart] = ev.Time.Start.UTC().Format(time.RFC3339)
	}
	if !ev.Time.End.IsZero() {
		f.Properties[propEnd] = ev.Time.End.UTC().Format(time.RFC3339)
	}
	return f
}

func featureID(f *geojson.Feature) string {
	switch id := f.ID.(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	case nil:
		return f.Properties.MustString("id", "")
	default:
		return fmt.Sprint(id)
	}
}

// parseTime accepts RFC 3339 strings or epoch milliseconds.
func parseTime(v any) (time.Time, error) {
	switch v := v.(type) {
	case nil:
		return time.Time{}, nil
	case string:
		return time.Parse(time.RFC3339, v)
	case float64:
		return time.UnixMilli(int64(v)).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported time value %T", v)
	}
}
