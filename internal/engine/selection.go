package engine

import (
	"slices"

	"github.com/Unidata/awips2-hazards-sub017/internal/notify"
)

// Selection is the ordered set of selected event identifiers. Each event
// appears once no matter how many elements it draws. Every public mutation
// publishes the full set.
type Selection struct {
	ids  []string
	sink notify.Sink
}

func NewSelection(sink notify.Sink) *Selection {
	if sink == nil {
		sink = notify.Discard
	}
	return &Selection{sink: sink}
}

func (s *Selection) SelectExclusive(id string) {
	s.selectExclusive(id)
	s.publish()
}

// Toggle adds id if absent and removes it otherwise.
func (s *Selection) Toggle(id string) {
	s.toggle(id)
	s.publish()
}

// Add selects id in addition to the current set.
func (s *Selection) Add(id string) {
	s.add(id)
	s.publish()
}

// Replace sets the selection to ids, dropping duplicates.
func (s *Selection) Replace(ids []string) {
	s.replace(ids)
	s.publish()
}

func (s *Selection) Clear() {
	s.ids = nil
	s.publish()
}

func (s *Selection) Contains(id string) bool {
	return slices.Contains(s.ids, id)
}

// IDs returns a copy in selection order.
func (s *Selection) IDs() []string {
	return slices.Clone(s.ids)
}

func (s *Selection) Len() int { return len(s.ids) }

// MostRecent is the last identifier added.
func (s *Selection) MostRecent() (string, bool) {
	if len(s.ids) == 0 {
		return "", false
	}
	return s.ids[len(s.ids)-1], true
}

func (s *Selection) selectExclusive(id string) {
	s.ids = append(s.ids[:0], id)
}

func (s *Selection) toggle(id string) {
	if i := slices.Index(s.ids, id); i >= 0 {
		s.ids = slices.Delete(s.ids, i, i+1)
		return
	}
	s.ids = append(s.ids, id)
}

func (s *Selection) add(id string) {
	if i := slices.Index(s.ids, id); i >= 0 {
		// Re-adding moves it to most recent.
		s.ids = slices.Delete(s.ids, i, i+1)
	}
	s.ids = append(s.ids, id)
}

func (s *Selection) replace(ids []string) {
	s.ids = s.ids[:0]
	for _, id := range ids {
		if !slices.Contains(s.ids, id) {
			s.ids = append(s.ids, id)
		}
	}
}

// remove drops id without publishing.
func (s *Selection) remove(id string) bool {
	i := slices.Index(s.ids, id)
	if i < 0 {
		return false
	}
	s.ids = slices.Delete(s.ids, i, i+1)
	return true
}

func (s *Selection) publish() {
	s.sink.Publish(notify.Notification{
		Kind:     notify.SelectedEventsChanged,
		EventIDs: s.IDs(),
	})
}
