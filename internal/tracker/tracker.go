// Package tracker owns "what the user is currently interacting with" and
// answers queries about it: the active control, a bounded interaction
// history, deictic references ("this", "that"), and current values read
// from a locally mirrored copy of DAW state.
package tracker

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/reavoice/internal/bus"
	"github.com/normanking/reavoice/pkg/types"
)

// HistoryCapacity bounds the interaction history. The 11th archived
// control evicts the oldest.
const HistoryCapacity = 10

// trackPattern finds an explicit "track N" reference in control text.
var trackPattern = regexp.MustCompile(`(?i)track\s+(\d+)`)

// barePattern finds the first bare integer, the fallback for channel-strip
// controls whose text omits the word "track".
var barePattern = regexp.MustCompile(`\d+`)

// channelStripTypes are control types that imply a channel strip, where a
// bare number in the text is a track number.
var channelStripTypes = []string{"volume", "pan", "mute", "solo", "arm"}

// HistoryEntry is an archived control observation.
type HistoryEntry struct {
	Control      types.ControlDescriptor `json:"control"`
	EndTimestamp int64                   `json:"end_timestamp"`
}

// TrackState is the mirrored per-track DAW state used to answer value
// queries. Volume is linear (1.0 = unity gain).
type TrackState struct {
	Name      string  `json:"name"`
	Volume    float64 `json:"volume"`
	Pan       float64 `json:"pan"`
	Mute      bool    `json:"mute"`
	Solo      bool    `json:"solo"`
	RecordArm bool    `json:"record_arm"`
}

// Tracker maintains the current interaction context.
//
// All mutating entry points are serialized by an internal lock, so the
// tracker is safe to drive from bus handler goroutines even though the
// reference design was single-threaded.
type Tracker struct {
	eventBus *bus.Bus

	mu          sync.RWMutex
	active      *types.ControlDescriptor
	activeTrack int
	history     []HistoryEntry

	stateMu     sync.RWMutex
	reaperState map[int]TrackState
}

// New creates a Tracker publishing context events to eventBus.
func New(eventBus *bus.Bus) *Tracker {
	return &Tracker{
		eventBus:    eventBus,
		reaperState: make(map[int]TrackState),
	}
}

// SetActiveControl replaces the active control, archiving the previous one
// to history, and derives the active track from the control's text.
func (t *Tracker) SetActiveControl(descriptor types.ControlDescriptor) {
	t.mu.Lock()

	if t.active != nil {
		t.archiveLocked(*t.active)
	}

	t.active = &descriptor
	t.activeTrack = ExtractTrack(descriptor)
	active := descriptor
	track := t.activeTrack
	t.mu.Unlock()

	log.Debug().
		Str("type", descriptor.Type).
		Int("track", track).
		Msg("tracker: active control changed")

	event := bus.NewEvent(bus.EventContextChanged)
	event.Control = &active
	event.Track = track
	t.eventBus.Publish(event)
}

// ClearActiveControl archives the current control (if any) and nullifies
// the active state.
func (t *Tracker) ClearActiveControl() {
	t.mu.Lock()
	if t.active != nil {
		t.archiveLocked(*t.active)
	}
	t.active = nil
	t.activeTrack = types.NoTrack
	t.mu.Unlock()

	t.eventBus.Publish(bus.NewEvent(bus.EventContextCleared))
}

// archiveLocked pushes a control onto the history front. Caller holds t.mu.
func (t *Tracker) archiveLocked(control types.ControlDescriptor) {
	entry := HistoryEntry{Control: control, EndTimestamp: time.Now().UnixMilli()}
	t.history = append([]HistoryEntry{entry}, t.history...)
	if len(t.history) > HistoryCapacity {
		t.history = t.history[:HistoryCapacity]
	}
}

// ActiveControl returns the current active control, or nil.
func (t *Tracker) ActiveControl() *types.ControlDescriptor {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.active == nil {
		return nil
	}
	c := *t.active
	return &c
}

// ActiveTrack returns the active track number, or types.NoTrack.
func (t *Tracker) ActiveTrack() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeTrack
}

// History returns a copy of the interaction history, most recent first.
func (t *Tracker) History() []HistoryEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]HistoryEntry, len(t.history))
	copy(out, t.history)
	return out
}

// ResolveContextKeyword resolves a deictic keyword to a control.
// "this"/"here"/"current" mean the active control; "that"/"previous"/
// "last" mean the most recent history entry. Anything else, or an empty
// context, resolves to nil: the dispatch layer asks a clarifying
// question, we never guess.
func (t *Tracker) ResolveContextKeyword(keyword string) *types.ControlDescriptor {
	t.mu.RLock()
	defer t.mu.RUnlock()

	switch strings.ToLower(strings.TrimSpace(keyword)) {
	case "this", "here", "current":
		if t.active == nil {
			return nil
		}
		c := *t.active
		return &c
	case "that", "previous", "last":
		if len(t.history) == 0 {
			return nil
		}
		c := t.history[0].Control
		return &c
	default:
		return nil
	}
}

// UpdateReaperState replaces the mirrored DAW track state. This is the
// only writer; value queries read the mirror.
func (t *Tracker) UpdateReaperState(tracks map[int]TrackState) {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()

	t.reaperState = make(map[int]TrackState, len(tracks))
	for n, s := range tracks {
		t.reaperState[n] = s
	}
}

// CurrentValue answers "what is it set to?" for the active control.
// When both a control and a track are known, the mirrored track state is
// consulted by control type; volume is reported in dB. Otherwise the
// control's own reported value is used, and nil means no answer.
func (t *Tracker) CurrentValue() any {
	t.mu.RLock()
	active := t.active
	track := t.activeTrack
	t.mu.RUnlock()

	if active == nil {
		return nil
	}

	if track != types.NoTrack {
		t.stateMu.RLock()
		state, ok := t.reaperState[track]
		t.stateMu.RUnlock()

		if ok {
			controlType := strings.ToLower(active.Type)
			switch {
			case strings.Contains(controlType, "volume"):
				return VolumeToDB(state.Volume)
			case strings.Contains(controlType, "pan"):
				return state.Pan
			case strings.Contains(controlType, "mute"):
				return state.Mute
			case strings.Contains(controlType, "solo"):
				return state.Solo
			case strings.Contains(controlType, "arm"):
				return state.RecordArm
			}
		}
	}

	if active.Value != "" {
		return active.Value
	}
	return nil
}

// ActiveControlDescription builds a speakable phrase for the active
// control: optional track prefix, a type-specific noun phrase, and the
// reported value when present.
func (t *Tracker) ActiveControlDescription() string {
	t.mu.RLock()
	active := t.active
	track := t.activeTrack
	t.mu.RUnlock()

	if active == nil {
		return ""
	}

	var sb strings.Builder
	if track != types.NoTrack {
		fmt.Fprintf(&sb, "Track %d ", track)
	}
	sb.WriteString(controlNoun(*active))
	if active.Value != "" {
		sb.WriteString(", ")
		sb.WriteString(active.Value)
	}
	return sb.String()
}

// controlNoun maps a control type to its spoken noun phrase.
func controlNoun(c types.ControlDescriptor) string {
	controlType := strings.ToLower(c.Type)
	switch {
	case strings.Contains(controlType, "volume"):
		return "fader"
	case strings.Contains(controlType, "pan"):
		return "pan"
	case strings.Contains(controlType, "mute"):
		return "mute button"
	case strings.Contains(controlType, "solo"):
		return "solo button"
	case strings.Contains(controlType, "arm"):
		return "record arm button"
	case strings.Contains(controlType, "fx"):
		return "FX button"
	}
	if c.Role != "" {
		return c.Role
	}
	return c.Type
}

// ExtractTrack derives a track number from a control's text. An explicit
// "track N" wins; for channel-strip control types the first bare integer
// is accepted as a fallback. No match yields types.NoTrack.
func ExtractTrack(c types.ControlDescriptor) int {
	text := c.Text()

	if m := trackPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}

	controlType := strings.ToLower(c.Type)
	for _, strip := range channelStripTypes {
		if strings.Contains(controlType, strip) {
			if m := barePattern.FindString(text); m != "" {
				if n, err := strconv.Atoi(m); err == nil {
					return n
				}
			}
			break
		}
	}

	return types.NoTrack
}
