package domain

import "time"

// EventType names a collaborator-facing event.
type EventType string

const (
	EventIncidentsLoaded     EventType = "incidents_loaded"
	EventIncidentsLoadFailed EventType = "incidents_load_failed"
	EventHotspotsLoaded      EventType = "hotspots_loaded"
	EventEntitySelected      EventType = "entity_selected"
)

// Event is emitted to collaborators when feeds load or the user selects an
// entity on the map.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	CycleID   string         `json:"cycle_id,omitempty"`
	Provider  Provider       `json:"provider,omitempty"`
	Incidents []FireIncident `json:"incidents,omitempty"`
	Hotspots  []Hotspot      `json:"hotspots,omitempty"`
	EntityID  string         `json:"entity_id,omitempty"`
	Error     string         `json:"error,omitempty"`
	EmittedAt time.Time      `json:"emitted_at"`
}
