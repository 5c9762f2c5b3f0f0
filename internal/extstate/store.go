// Package extstate provides access to the host DAW's exported key/value
// state. REAPER-side ReaScript code writes control snapshots into a
// namespaced section; the poller reads them back here. The bridge script
// itself is an external collaborator; this package only speaks its
// file format.
package extstate

import "context"

// Namespace is the fixed ExtState section the ReaScript bridge exports to.
const Namespace = "ReaVoice"

// Keys written by the bridge on every control touch.
const (
	KeyControlDetected = "control_detected" // "true"/"false"
	KeyValue           = "value"            // numeric string
	KeyControlContext  = "control_context"  // "mcp" or "tcp"
	KeyControlType     = "control_type"
	KeyTrackNumber     = "track_number"
	KeyTrackName       = "track_name"
	KeyTrackGUID       = "track_guid"
	KeyParameter       = "parameter"
	KeyValueFormatted  = "value_formatted"
	KeyTimestamp       = "timestamp"
)

// Keys written by the bridge when the user clicks a control. The consumer
// must write KeyControlClicked back to "false" after reading it, or the
// same click is re-observed on the next poll.
const (
	KeyControlClicked = "control_clicked"
	KeyClickedType    = "clicked_type"
	KeyClickedTrack   = "clicked_track"
	KeyClickedGUID    = "clicked_guid"
	KeyClickTimestamp = "click_timestamp"
)

// Store is a key/value state source addressable by (section, key).
//
// Implementations must treat a missing backing source as empty, not as an
// error: the bridge may simply not have run yet.
type Store interface {
	// Get returns the value for a single key, or "" when absent.
	Get(ctx context.Context, section, key string) (string, error)

	// Section returns all keys in a section in one read. Poll ticks use
	// this so a tick costs one read, not one per key.
	Section(ctx context.Context, section string) (map[string]string, error)

	// Set writes a single key. Used for click-flag write-back.
	Set(ctx context.Context, section, key, value string) error
}
