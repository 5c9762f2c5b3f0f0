// Package learner improves control-type identification beyond the noisy
// ReaScript guess using only local interaction history. Hover-then-click
// pairs are the training signal: a click after an intentional dwell
// confirms what the user thought the control was.
package learner

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/reavoice/internal/bus"
	"github.com/normanking/reavoice/internal/tracker"
	"github.com/normanking/reavoice/pkg/types"
)

const (
	// DefaultMinHoverMs is the minimum intentional-dwell time. A click
	// after a shorter hover is an accidental mouse transit and is not
	// trained on.
	DefaultMinHoverMs = 500

	// DefaultConfidenceThreshold is the pattern confidence at which the
	// learned type overrides the upstream guess.
	DefaultConfidenceThreshold = 0.70

	// ReascriptConfidence is the fixed confidence assigned to the weak
	// upstream guess when no learned pattern qualifies.
	ReascriptConfidence = 0.50

	// MaxConfidence caps learned confidence. The classifier is advisory
	// and must always defer final authority, so it never reaches 1.0.
	MaxConfidence = 0.99

	// OccurrencesToCap is the number of confirmations at which confidence
	// reaches its cap: confidence ramps linearly as occurrences/10.
	OccurrencesToCap = 10

	// DefaultSaveEveryN bounds persistence I/O to every Nth interaction.
	DefaultSaveEveryN = 10

	// DefaultMaxInteractions caps the persisted interaction log.
	DefaultMaxInteractions = 1000
)

// Config configures a Learner.
type Config struct {
	DataFile            string
	MinHoverMs          int64
	ConfidenceThreshold float64
	SaveEveryN          int
	MaxInteractions     int
}

// Learner observes hover+click pairs and builds a persistent statistical
// mapping from (track, context, control type) to a confirmed control type.
type Learner struct {
	cfg      Config
	eventBus *bus.Bus

	mu           sync.Mutex
	hover        *types.ControlDescriptor
	hoverStart   time.Time
	lastClick    *types.ControlDescriptor
	interactions []types.TrainingInteraction
	patterns     map[string]*types.LearnedPattern
	recorded     int

	now func() time.Time // injectable clock for tests
}

// New creates a Learner. Persisted state is loaded best-effort: a missing
// or corrupt data file yields an empty learner and a log line, never an
// error.
func New(cfg Config, eventBus *bus.Bus) *Learner {
	if cfg.MinHoverMs == 0 {
		cfg.MinHoverMs = DefaultMinHoverMs
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.SaveEveryN == 0 {
		cfg.SaveEveryN = DefaultSaveEveryN
	}
	if cfg.MaxInteractions == 0 {
		cfg.MaxInteractions = DefaultMaxInteractions
	}

	l := &Learner{
		cfg:      cfg,
		eventBus: eventBus,
		patterns: make(map[string]*types.LearnedPattern),
		now:      time.Now,
	}
	l.load()
	return l
}

// OnHover records a hover start. Hovering alone teaches nothing; it only
// arms the dwell timer for a possible click. A new hover replaces any
// outstanding one (last hover wins).
func (l *Learner) OnHover(descriptor types.ControlDescriptor) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.hover = &descriptor
	l.hoverStart = l.now()
}

// OnClick records a click. When an intentional dwell preceded it, the
// interaction is recorded and the learned pattern for this descriptor is
// reinforced; sub-threshold hovers are ignored as accidental. The click is
// always remembered as the last click either way.
func (l *Learner) OnClick(descriptor types.ControlDescriptor) {
	l.mu.Lock()

	l.lastClick = &descriptor

	if l.hover == nil {
		l.mu.Unlock()
		return
	}

	hoverDuration := l.now().Sub(l.hoverStart).Milliseconds()
	l.hover = nil

	if hoverDuration < l.cfg.MinHoverMs {
		l.mu.Unlock()
		log.Debug().Int64("hover_ms", hoverDuration).Msg("learner: hover below dwell threshold, ignored")
		return
	}

	interaction := types.TrainingInteraction{
		Timestamp:       l.now().UnixMilli(),
		HoverDurationMs: hoverDuration,
		Control:         descriptor,
		Action:          "click",
		Features:        featuresFor(descriptor),
	}
	l.interactions = append(l.interactions, interaction)
	if len(l.interactions) > l.cfg.MaxInteractions {
		l.interactions = l.interactions[len(l.interactions)-l.cfg.MaxInteractions:]
	}
	l.recorded++

	pattern := l.updatePatternLocked(descriptor)
	needSave := l.recorded%l.cfg.SaveEveryN == 0
	l.mu.Unlock()

	event := bus.NewEvent(bus.EventPatternLearned)
	event.Control = &descriptor
	event.PatternKey = pattern.Key
	event.Confidence = pattern.Confidence
	l.eventBus.Publish(event)

	if needSave {
		go l.persist()
	}
}

// LastClick returns the most recently clicked control, trained on or not.
func (l *Learner) LastClick() *types.ControlDescriptor {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lastClick == nil {
		return nil
	}
	c := *l.lastClick
	return &c
}

// updatePatternLocked fetches or creates the pattern for a descriptor and
// reinforces it. Caller holds l.mu.
func (l *Learner) updatePatternLocked(descriptor types.ControlDescriptor) *types.LearnedPattern {
	key := PatternKey(descriptor)

	pattern, ok := l.patterns[key]
	if !ok {
		pattern = &types.LearnedPattern{
			Key:         key,
			ControlType: descriptor.Type,
			Features:    featuresFor(descriptor),
		}
		l.patterns[key] = pattern
	}

	pattern.Occurrences++
	pattern.Confidence = Confidence(pattern.Occurrences)
	pattern.LastSeen = l.now().UnixMilli()

	log.Debug().
		Str("key", key).
		Int("occurrences", pattern.Occurrences).
		Float64("confidence", pattern.Confidence).
		Msg("learner: pattern reinforced")

	return pattern
}

// PredictControlType returns the best available identification for a
// descriptor: the learned type once its pattern clears the confidence
// threshold, otherwise the upstream ReaScript guess at fixed confidence.
// The threshold keeps early, unconfirmed patterns from overriding the
// upstream source.
func (l *Learner) PredictControlType(descriptor types.ControlDescriptor) types.Prediction {
	l.mu.Lock()
	pattern, ok := l.patterns[PatternKey(descriptor)]
	l.mu.Unlock()

	if ok && pattern.Confidence >= l.cfg.ConfidenceThreshold {
		return types.Prediction{
			ControlType: pattern.ControlType,
			Confidence:  pattern.Confidence,
			Source:      types.ProvenanceLearned,
		}
	}

	return types.Prediction{
		ControlType: descriptor.Type,
		Confidence:  ReascriptConfidence,
		Source:      types.ProvenanceReascript,
	}
}

// Pattern returns the learned pattern for a key, or nil.
func (l *Learner) Pattern(key string) *types.LearnedPattern {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.patterns[key]; ok {
		copy := *p
		return &copy
	}
	return nil
}

// Stats summarizes learner state for the CLI.
type Stats struct {
	Interactions int                    `json:"interactions"`
	Patterns     int                    `json:"patterns"`
	TopPatterns  []types.LearnedPattern `json:"top_patterns"`
}

// GetStats returns interaction and pattern counts plus the most confident
// patterns, best first.
func (l *Learner) GetStats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{
		Interactions: len(l.interactions),
		Patterns:     len(l.patterns),
	}
	for _, p := range l.patterns {
		stats.TopPatterns = append(stats.TopPatterns, *p)
	}
	// Highest confidence first; ties broken by recency.
	sort.Slice(stats.TopPatterns, func(i, j int) bool {
		a, b := stats.TopPatterns[i], stats.TopPatterns[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.LastSeen > b.LastSeen
	})
	if len(stats.TopPatterns) > 10 {
		stats.TopPatterns = stats.TopPatterns[:10]
	}
	return stats
}

// Reset clears all learned state and immediately persists the empty state.
func (l *Learner) Reset() error {
	l.mu.Lock()
	l.interactions = nil
	l.patterns = make(map[string]*types.LearnedPattern)
	l.hover = nil
	l.lastClick = nil
	l.recorded = 0
	l.mu.Unlock()

	log.Info().Msg("learner: reset")
	return l.save()
}

// PatternKey builds the composite identity for a learned pattern:
// "track{N}-{context}-{controlType}". Interactions sharing all three
// merge into one pattern.
func PatternKey(descriptor types.ControlDescriptor) string {
	return fmt.Sprintf("track%d-%s-%s",
		tracker.ExtractTrack(descriptor), descriptor.Role, descriptor.Type)
}

// Confidence maps an occurrence count to pattern confidence: a linear
// ramp reaching the cap after OccurrencesToCap confirmations, never 1.0.
func Confidence(occurrences int) float64 {
	return math.Min(MaxConfidence, float64(occurrences)/float64(OccurrencesToCap))
}

// featuresFor snapshots the learning signal present in a descriptor.
func featuresFor(descriptor types.ControlDescriptor) types.FeatureVector {
	return types.FeatureVector{
		Position:       descriptor.Position,
		Context:        descriptor.Role,
		TrackNumber:    tracker.ExtractTrack(descriptor),
		ReascriptGuess: descriptor.Type,
		HasParameter:   descriptor.Description != "",
		ParameterType:  descriptor.Description,
	}
}
