package timer

import "time"

// EventType names the state-changing transitions that are broadcast to
// sibling instances. Completion is not broadcast: every replica of a
// Running timer recomputes from the same anchor and completes on its own.
type EventType string

const (
	EventStart      EventType = "start"
	EventPause      EventType = "pause"
	EventStop       EventType = "stop"
	EventModeChange EventType = "mode_change"
)

// Event is the wire message published on the sync bus after a local
// transition. All time fields are primitive numbers: Unix milliseconds
// for instants, whole seconds for the countdown value.
type Event struct {
	Type EventType `json:"type"`
	Mode Mode      `json:"mode"`

	// TimeLeft is the remaining whole seconds at the moment of the
	// transition. Set for pause events.
	TimeLeft int64 `json:"time_left,omitempty"`

	// StartTime is the anchor instant of the run segment. Set for start
	// events.
	StartTime int64 `json:"start_time,omitempty"`

	// PauseTime is the instant the timer was paused. Set for pause events.
	PauseTime int64 `json:"pause_time,omitempty"`

	// Timestamp is the sender's LastMutation, used for last-writer-wins
	// ordering on receipt.
	Timestamp int64 `json:"timestamp"`
}

// When returns the causality timestamp as a time.Time.
func (e Event) When() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// StartedAt returns the anchor instant carried by a start event.
func (e Event) StartedAt() time.Time {
	return time.UnixMilli(e.StartTime)
}
