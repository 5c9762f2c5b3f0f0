// Package types defines shared types used across all ReaVoice modules.
package types

import (
	"fmt"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CONTROL OBSERVATION TYPES
// ═══════════════════════════════════════════════════════════════════════════════

// Position is a screen coordinate attached to a control observation.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ControlDescriptor represents one observed UI element in the host DAW.
// Descriptors are immutable once created; a new observation replaces the
// tracker's active pointer rather than mutating the old one.
type ControlDescriptor struct {
	Type        string    `json:"type"`
	Role        string    `json:"role"`
	Title       string    `json:"title,omitempty"`
	Value       string    `json:"value,omitempty"`
	Description string    `json:"description,omitempty"`
	Position    *Position `json:"position,omitempty"`
	Timestamp   int64     `json:"timestamp"`
}

// Text returns the combined title and description, the haystack used for
// track-number extraction.
func (c ControlDescriptor) Text() string {
	if c.Title == "" {
		return c.Description
	}
	if c.Description == "" {
		return c.Title
	}
	return c.Title + " " + c.Description
}

// NoTrack marks a descriptor or sample with no resolvable track number.
// REAPER track numbers are 1-based, so zero is free to act as the sentinel.
const NoTrack = 0

// PollSample is the parsed external-state record produced on every poll
// tick. Samples are ephemeral; they are never persisted.
type PollSample struct {
	ControlType    string  `json:"control_type"`
	Context        string  `json:"context"` // "mcp" (mixer) or "tcp" (track panel)
	TrackNumber    int     `json:"track_number"`
	TrackName      string  `json:"track_name,omitempty"`
	TrackGUID      string  `json:"track_guid,omitempty"`
	Parameter      string  `json:"parameter,omitempty"`
	Value          float64 `json:"value"`
	ValueFormatted string  `json:"value_formatted,omitempty"`
	Timestamp      int64   `json:"timestamp"`
}

// ControlID is the identity used for change detection: a sample with a
// different ControlID than its predecessor means the user moved to a
// different control.
func (s PollSample) ControlID() string {
	return fmt.Sprintf("%d-%s", s.TrackNumber, s.ControlType)
}

// Descriptor converts the sample into a ControlDescriptor for consumers
// that track context rather than raw state.
func (s PollSample) Descriptor() ControlDescriptor {
	title := s.ControlType
	if s.TrackNumber != NoTrack {
		title = fmt.Sprintf("track %d %s", s.TrackNumber, s.ControlType)
	}
	return ControlDescriptor{
		Type:        s.ControlType,
		Role:        s.Context,
		Title:       title,
		Value:       s.ValueFormatted,
		Description: s.Parameter,
		Timestamp:   s.Timestamp,
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// LEARNING TYPES
// ═══════════════════════════════════════════════════════════════════════════════

// FeatureVector is a flat snapshot of the signals present when the user
// confirmed a control by clicking it. It is carried for analysis; it is
// not itself a pattern key.
type FeatureVector struct {
	Position       *Position `json:"position,omitempty"`
	Context        string    `json:"context"`
	TrackNumber    int       `json:"track_number"`
	ReascriptGuess string    `json:"reascript_guess"`
	HasParameter   bool      `json:"has_parameter"`
	ParameterType  string    `json:"parameter_type,omitempty"`
}

// TrainingInteraction is one confirmed hover-then-click observation.
type TrainingInteraction struct {
	Timestamp       int64             `json:"timestamp"`
	HoverDurationMs int64             `json:"hover_duration_ms"`
	Control         ControlDescriptor `json:"control_data"`
	Action          string            `json:"action"` // always "click"
	Features        FeatureVector     `json:"features"`
}

// LearnedPattern is the accumulated evidence for one (track, context,
// control type) combination. Confidence ramps with occurrences and is
// capped below 1.0: the classifier is advisory, never authoritative.
type LearnedPattern struct {
	Key         string        `json:"key"`
	ControlType string        `json:"control_type"`
	Occurrences int           `json:"occurrences"`
	Confidence  float64       `json:"confidence"`
	Features    FeatureVector `json:"features"`
	LastSeen    int64         `json:"last_seen"`
}

// Provenance identifies the source of a control-type prediction.
type Provenance string

const (
	// ProvenanceLearned means the prediction came from local training data.
	ProvenanceLearned Provenance = "learned"
	// ProvenanceReascript means the prediction fell back to the weak
	// upstream guess exported by the ReaScript bridge.
	ProvenanceReascript Provenance = "reascript"
)

// Prediction is a confidence-weighted control-type identification.
type Prediction struct {
	ControlType string     `json:"control_type"`
	Confidence  float64    `json:"confidence"`
	Source      Provenance `json:"source"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// VOCABULARY TYPES
// ═══════════════════════════════════════════════════════════════════════════════

// IntentType categorizes what a vocabulary phrase expresses.
type IntentType string

const (
	IntentAction IntentType = "action" // direct command ("solo track two")
	IntentVibe   IntentType = "vibe"   // mood/intent ("make it dreamy")
	IntentQuery  IntentType = "query"  // question about state
)

// Action is a single dispatchable step attached to a vocabulary entry.
type Action struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// ActionMapping binds a vocabulary entry to concrete actions.
type ActionMapping struct {
	Enabled bool     `json:"enabled"`
	Actions []Action `json:"actions,omitempty"`
}

// VocabularyItem is one phrase the matcher can resolve against. Items are
// owned and mutated by the vocabulary store; the matcher only reads them.
type VocabularyItem struct {
	ID                string         `json:"id"`
	Phrase            string         `json:"phrase"`
	Tags              []string       `json:"tags,omitempty"`
	IntentType        IntentType     `json:"intent_type"`
	Sentiment         string         `json:"sentiment,omitempty"`
	Category          string         `json:"category,omitempty"`
	ActionMapping     *ActionMapping `json:"action_mapping,omitempty"`
	ClarificationRule string         `json:"clarification_rule,omitempty"`
	CreatedAt         time.Time      `json:"created_at,omitempty"`
	UpdatedAt         time.Time      `json:"updated_at,omitempty"`
}

// MatchType identifies which scoring tier produced a match.
type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchFuzzy   MatchType = "fuzzy"
	MatchPartial MatchType = "partial"
	MatchTag     MatchType = "tag"
)

// MatchCandidate is one scored vocabulary match.
type MatchCandidate struct {
	Item          VocabularyItem `json:"item"`
	Score         float64        `json:"score"`
	MatchType     MatchType      `json:"match_type"`
	MatchedPhrase string         `json:"matched_phrase"`
}

// VocabContext is the full resolution handed to the command-dispatch
// layer: the match plus everything dispatch needs to act on it.
type VocabContext struct {
	Match             *MatchCandidate `json:"vocab_match"`
	Item              VocabularyItem  `json:"full_match"`
	HasActionMapping  bool            `json:"has_action_mapping"`
	ClarificationRule string          `json:"clarification_rule,omitempty"`
}
