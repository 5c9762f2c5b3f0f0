// Package service wires the context pipeline together: ExtState store,
// event bus, poller, tracker, learner, and vocabulary matcher, explicitly
// constructed and passed by reference. It exposes the narrow boundary the
// command-dispatch layer calls.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/reavoice/internal/bus"
	"github.com/normanking/reavoice/internal/config"
	"github.com/normanking/reavoice/internal/extstate"
	"github.com/normanking/reavoice/internal/learner"
	"github.com/normanking/reavoice/internal/metrics"
	"github.com/normanking/reavoice/internal/poller"
	"github.com/normanking/reavoice/internal/tracker"
	"github.com/normanking/reavoice/internal/vocab"
	"github.com/normanking/reavoice/pkg/types"
)

// Service owns the assembled context pipeline.
type Service struct {
	cfg *config.Config

	eventBus  *bus.Bus
	observer  *bus.Observer
	state     extstate.Store
	poller    *poller.Poller
	tracker   *tracker.Tracker
	learner   *learner.Learner
	matcher   *vocab.Matcher
	vocab     *vocab.SQLiteStore
	collector *metrics.Collector
}

// New constructs the pipeline from configuration.
func New(cfg *config.Config) (*Service, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare data directories: %w", err)
	}

	eventBus := bus.New()
	state := extstate.NewFileStore(cfg.Poller.StateFile)

	vocabStore, err := vocab.OpenSQLiteStore(cfg.Vocabulary.DBPath, cfg.Vocabulary.SeedOnCreate)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary store: %w", err)
	}

	s := &Service{
		cfg:      cfg,
		eventBus: eventBus,
		state:    state,
		tracker:  tracker.New(eventBus),
		learner: learner.New(learner.Config{
			DataFile:            cfg.Learner.DataFile,
			MinHoverMs:          cfg.Learner.MinHoverMs,
			ConfidenceThreshold: cfg.Learner.ConfidenceThreshold,
			SaveEveryN:          cfg.Learner.SaveEveryN,
			MaxInteractions:     cfg.Learner.MaxInteractions,
		}, eventBus),
		vocab: vocabStore,
		poller: poller.New(state, eventBus, poller.Config{
			Interval: time.Duration(cfg.Poller.IntervalMs) * time.Millisecond,
			DeadBand: cfg.Poller.ValueDeadBand,
		}),
	}
	s.matcher = vocab.NewMatcher(vocabStore, vocab.Config{
		FuzzyThreshold:      cfg.Matcher.FuzzyThreshold,
		PartialThreshold:    cfg.Matcher.PartialThreshold,
		TokenFuzzyThreshold: cfg.Matcher.TokenFuzzyThreshold,
		TagThreshold:        cfg.Matcher.TagThreshold,
		MinTagMatches:       cfg.Matcher.MinTagMatches,
	})

	s.collector = metrics.NewCollector(eventBus)

	if cfg.Observer.Enabled {
		s.observer = bus.NewObserver(eventBus, bus.ObserverConfig{
			Port:          cfg.Observer.Port,
			ReplayHistory: cfg.Observer.ReplayHistory,
			HistoryCount:  cfg.Observer.HistoryCount,
		})
	}

	s.subscribe()
	return s, nil
}

// subscribe routes poller events into the tracker and learner. A touched
// control is both the new context and the learner's hover signal; a click
// is the learner's confirmation signal.
func (s *Service) subscribe() {
	s.eventBus.Subscribe(bus.EventControlTouched, func(event bus.Event) {
		if event.Control == nil {
			return
		}
		s.tracker.SetActiveControl(*event.Control)
		s.learner.OnHover(*event.Control)
	})

	s.eventBus.Subscribe(bus.EventControlClicked, func(event bus.Event) {
		if event.Control == nil {
			return
		}
		s.learner.OnClick(*event.Control)
	})
}

// Start begins polling and, when enabled, the WebSocket observer.
func (s *Service) Start() error {
	s.collector.Start()
	if s.observer != nil {
		if err := s.observer.Start(); err != nil {
			return fmt.Errorf("start observer: %w", err)
		}
	}
	s.poller.Start()
	log.Info().Msg("service: pipeline started")
	return nil
}

// Stop halts the pipeline. Safe to call more than once.
func (s *Service) Stop() {
	s.poller.Stop()
	s.collector.Stop()
	if s.observer != nil {
		if err := s.observer.Stop(); err != nil {
			log.Warn().Err(err).Msg("service: observer stop failed")
		}
	}
	s.eventBus.Close()
	if err := s.vocab.Close(); err != nil {
		log.Warn().Err(err).Msg("service: vocabulary close failed")
	}
	log.Info().Msg("service: pipeline stopped")
}

// ═══════════════════════════════════════════════════════════════════════════════
// COMMAND DISPATCH BOUNDARY
// ═══════════════════════════════════════════════════════════════════════════════

// ResolveContextKeyword resolves a deictic keyword ("this", "that") to a
// control, or nil when the reference cannot be resolved.
func (s *Service) ResolveContextKeyword(keyword string) *types.ControlDescriptor {
	return s.tracker.ResolveContextKeyword(keyword)
}

// CurrentValue returns the active control's current value, or nil.
func (s *Service) CurrentValue() any {
	return s.tracker.CurrentValue()
}

// ActiveControlDescription returns a speakable phrase for the active
// control, or "" when nothing is active.
func (s *Service) ActiveControlDescription() string {
	return s.tracker.ActiveControlDescription()
}

// Match resolves a free-form utterance against the vocabulary.
func (s *Service) Match(ctx context.Context, utterance string) *types.MatchCandidate {
	match := s.matcher.Match(ctx, utterance)
	if match != nil {
		event := bus.NewEvent(bus.EventMatchResolved)
		event.Utterance = utterance
		event.Confidence = match.Score
		event.Details = match.Item.Phrase
		s.eventBus.Publish(event)
	}
	return match
}

// GetVocabContext resolves an utterance with full dispatch hints.
func (s *Service) GetVocabContext(ctx context.Context, utterance string) *types.VocabContext {
	return s.matcher.GetVocabContext(ctx, utterance)
}

// PredictControlType returns the learner's best identification for a
// descriptor.
func (s *Service) PredictControlType(descriptor types.ControlDescriptor) types.Prediction {
	return s.learner.PredictControlType(descriptor)
}

// GetControlIdentification produces the speakable announcement for a
// polled sample.
func (s *Service) GetControlIdentification(sample types.PollSample) string {
	return s.learner.GetControlIdentification(sample)
}

// OnHover feeds a raw UI hover sample to the learner, for hosts with
// direct accessibility events in addition to the polled feed.
func (s *Service) OnHover(descriptor types.ControlDescriptor) {
	s.learner.OnHover(descriptor)
}

// OnClick feeds a raw UI click sample to the learner.
func (s *Service) OnClick(descriptor types.ControlDescriptor) {
	s.learner.OnClick(descriptor)
}

// UpdateReaperState replaces the tracker's mirrored DAW state.
func (s *Service) UpdateReaperState(tracks map[int]tracker.TrackState) {
	s.tracker.UpdateReaperState(tracks)
}

// SetPollRate adjusts the poll cadence at runtime.
func (s *Service) SetPollRate(ms int) {
	s.poller.SetPollRate(ms)
}

// Tracker exposes the tracker for the CLI.
func (s *Service) Tracker() *tracker.Tracker { return s.tracker }

// Learner exposes the learner for the CLI.
func (s *Service) Learner() *learner.Learner { return s.learner }

// Matcher exposes the matcher for the CLI.
func (s *Service) Matcher() *vocab.Matcher { return s.matcher }

// Vocabulary exposes the vocabulary store for the CLI.
func (s *Service) Vocabulary() *vocab.SQLiteStore { return s.vocab }

// Bus exposes the event bus for embedding hosts.
func (s *Service) Bus() *bus.Bus { return s.eventBus }

// SessionStats returns the aggregated activity counters for this session.
func (s *Service) SessionStats() metrics.SessionStats {
	return s.collector.Session()
}
