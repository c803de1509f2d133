// Package events carries grading activity to whoever is watching: the
// HTTP event stream, the WebSocket feed and tests.
package events

import "time"

// EventType identifies the kind of grading event.
type EventType string

const (
	EventCatalogLoaded   EventType = "catalog.loaded"
	EventValidateStart   EventType = "validate.start"
	EventValidateResult  EventType = "validate.result"
	EventValidateError   EventType = "validate.error"
	EventAttemptCached   EventType = "attempt.cached"
	EventAttemptSaved    EventType = "attempt.saved"
	EventMissionUnlocked EventType = "mission.unlocked"
)

// Event is a single grading event. MissionID and Learner are set when the
// event concerns a submission.
type Event struct {
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	MissionID string        `json:"mission_id,omitempty"`
	Learner   string        `json:"learner,omitempty"`
	Data      any           `json:"data,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// NewEvent creates an Event stamped with the current time.
func NewEvent(typ EventType, data any) Event {
	return Event{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// ForSubmission returns a copy of e tagged with a mission and learner.
func (e Event) ForSubmission(missionID, learner string) Event {
	e.MissionID = missionID
	e.Learner = learner
	return e
}
