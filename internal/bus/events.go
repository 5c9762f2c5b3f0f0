// Package bus provides the event distribution system for the ReaVoice
// context pipeline. The poller, tracker, and learner publish here; the
// command-dispatch layer and the WebSocket observer subscribe.
package bus

import (
	"time"

	"github.com/google/uuid"

	"github.com/normanking/reavoice/pkg/types"
)

// EventType represents the type of event flowing through the bus.
type EventType string

// Event types emitted by the context pipeline.
const (
	// Poller events
	EventControlTouched EventType = "control_touched"
	EventControlClicked EventType = "control_clicked"
	EventHeartbeat      EventType = "heartbeat"

	// Tracker events
	EventContextChanged EventType = "context_changed"
	EventContextCleared EventType = "context_cleared"

	// Learner events
	EventPatternLearned EventType = "pattern_learned"

	// Matcher events
	EventMatchResolved EventType = "match_resolved"

	// Diagnostics
	EventPipelineError EventType = "pipeline_error"
)

// Event is a single notification in the context pipeline. Only the fields
// relevant to the event type are populated.
type Event struct {
	// Core identification
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	// Control context
	Control *types.ControlDescriptor `json:"control,omitempty"`
	Sample  *types.PollSample        `json:"sample,omitempty"`
	Track   int                      `json:"track,omitempty"`

	// Change detection
	ControlChanged bool `json:"control_changed,omitempty"`
	ValueChanged   bool `json:"value_changed,omitempty"`

	// Learning context
	PatternKey string  `json:"pattern_key,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`

	// Matching context
	Utterance string `json:"utterance,omitempty"`

	// Free-form detail for diagnostics
	Details string `json:"details,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewEvent creates a new event with the current timestamp and a unique ID.
func NewEvent(eventType EventType) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
	}
}
