package service

import "orderbridge/internal/model"

// StatusMap is the bidirectional status lookup built once per sweep from the
// mapping table. The table is not guaranteed one-to-one; on collision the
// last-read entry wins (entries arrive in id order, so the outcome is
// deterministic).
type StatusMap struct {
	toDestination   map[string]string
	toSource        map[string]string
	destinationRefs map[string]string
}

func BuildStatusMap(entries []model.StatusMapping) *StatusMap {
	m := &StatusMap{
		toDestination:   make(map[string]string, len(entries)),
		toSource:        make(map[string]string, len(entries)),
		destinationRefs: make(map[string]string),
	}
	for _, e := range entries {
		if e.SourceStatus != "" && e.DestinationStatus != "" {
			m.toDestination[e.SourceStatus] = e.DestinationStatus
			m.toSource[e.DestinationStatus] = e.SourceStatus
		}
		if e.DestinationStatus != "" && e.DestinationStatusRef != "" {
			m.destinationRefs[e.DestinationStatus] = e.DestinationStatusRef
		}
	}
	return m
}

// ToDestination maps a source status name to its destination counterpart.
func (m *StatusMap) ToDestination(sourceStatus string) (string, bool) {
	s, ok := m.toDestination[sourceStatus]
	return s, ok
}

// ToSource maps a destination status name to its source counterpart.
func (m *StatusMap) ToSource(destinationStatus string) (string, bool) {
	s, ok := m.toSource[destinationStatus]
	return s, ok
}

// DestinationRef returns the pinned status reference for a destination
// status, when the mapping table carries one.
func (m *StatusMap) DestinationRef(destinationStatus string) (string, bool) {
	ref, ok := m.destinationRefs[destinationStatus]
	return ref, ok
}

func (m *StatusMap) Empty() bool {
	return len(m.toDestination) == 0
}
