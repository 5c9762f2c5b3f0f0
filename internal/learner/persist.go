package learner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/reavoice/pkg/types"
)

// persistedState is the on-disk training-data document. The patterns
// field serializes as [key, pattern] pairs, the shape the rest of the
// tooling around the data file already expects.
type persistedState struct {
	Interactions []types.TrainingInteraction `json:"interactions"`
	Patterns     []patternEntry              `json:"patterns"`
	LastUpdated  string                      `json:"lastUpdated"`
}

// patternEntry serializes as a two-element array: ["key", {pattern}].
type patternEntry struct {
	Key     string
	Pattern types.LearnedPattern
}

func (e patternEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Key, e.Pattern})
}

func (e *patternEntry) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &e.Key); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &e.Pattern)
}

// load reads persisted state into memory. Best-effort: a missing or
// corrupt file yields an empty learner and a log line, never a failure.
func (l *Learner) load() {
	if l.cfg.DataFile == "" {
		return
	}

	data, err := os.ReadFile(l.cfg.DataFile)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", l.cfg.DataFile).Msg("learner: could not read training data, starting empty")
		}
		return
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		log.Warn().Err(err).Str("path", l.cfg.DataFile).Msg("learner: corrupt training data, starting empty")
		return
	}

	l.mu.Lock()
	l.interactions = state.Interactions
	l.patterns = make(map[string]*types.LearnedPattern, len(state.Patterns))
	for _, entry := range state.Patterns {
		p := entry.Pattern
		l.patterns[entry.Key] = &p
	}
	l.mu.Unlock()

	log.Info().
		Int("interactions", len(state.Interactions)).
		Int("patterns", len(state.Patterns)).
		Msg("learner: training data loaded")
}

// persist is the auto-save path: best-effort, errors logged and dropped.
func (l *Learner) persist() {
	if err := l.save(); err != nil {
		log.Warn().Err(err).Msg("learner: training data save failed")
	}
}

// save writes the current state to the data file, capping the interaction
// log to the newest MaxInteractions entries. The write is atomic
// (temp + rename) and the directory is created if missing.
func (l *Learner) save() error {
	if l.cfg.DataFile == "" {
		return nil
	}

	l.mu.Lock()
	interactions := l.interactions
	if len(interactions) > l.cfg.MaxInteractions {
		interactions = interactions[len(interactions)-l.cfg.MaxInteractions:]
	}
	state := persistedState{
		Interactions: append([]types.TrainingInteraction(nil), interactions...),
		Patterns:     make([]patternEntry, 0, len(l.patterns)),
		LastUpdated:  time.Now().UTC().Format(time.RFC3339),
	}
	for key, pattern := range l.patterns {
		state.Patterns = append(state.Patterns, patternEntry{Key: key, Pattern: *pattern})
	}
	l.mu.Unlock()

	if state.Interactions == nil {
		state.Interactions = []types.TrainingInteraction{}
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal training data: %w", err)
	}

	dir := filepath.Dir(l.cfg.DataFile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp := l.cfg.DataFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write training data: %w", err)
	}
	if err := os.Rename(tmp, l.cfg.DataFile); err != nil {
		return fmt.Errorf("replace training data: %w", err)
	}

	return nil
}
