// Package metrics aggregates pipeline activity from the event bus into
// session statistics for the CLI and the observer health endpoint.
package metrics

import (
	"sync"
	"time"

	"github.com/normanking/reavoice/internal/bus"
)

// maxRecentEvents bounds the rolling window of recent events kept for
// diagnostics.
const maxRecentEvents = 50

// SessionStats holds counters for the current session.
type SessionStats struct {
	StartTime       time.Time `json:"start_time"`
	ControlsTouched int       `json:"controls_touched"`
	ControlsClicked int       `json:"controls_clicked"`
	ContextChanges  int       `json:"context_changes"`
	PatternsLearned int       `json:"patterns_learned"`
	MatchesResolved int       `json:"matches_resolved"`
	Heartbeats      int       `json:"heartbeats"`
	Errors          int       `json:"errors"`
	LastError       string    `json:"last_error,omitempty"`
	LastEvent       string    `json:"last_event,omitempty"`
	LastEventTime   time.Time `json:"last_event_time,omitempty"`
}

// Uptime returns the elapsed session time.
func (s SessionStats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// Collector subscribes to the event bus and aggregates session metrics.
type Collector struct {
	bus *bus.Bus

	mu           sync.RWMutex
	session      SessionStats
	recentEvents []bus.Event
	subID        bus.SubscriptionID
	stopped      bool
}

// NewCollector creates a metrics collector over eventBus.
func NewCollector(eventBus *bus.Bus) *Collector {
	return &Collector{
		bus:     eventBus,
		session: SessionStats{StartTime: time.Now()},
	}
}

// Start subscribes to all bus events. Starting twice is a no-op.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subID != "" || c.stopped {
		return
	}
	c.subID = c.bus.Subscribe(bus.EventType(""), c.handleEvent)
}

// Stop unsubscribes from the bus.
func (c *Collector) Stop() {
	c.mu.Lock()
	id := c.subID
	c.subID = ""
	c.stopped = true
	c.mu.Unlock()

	if id != "" {
		c.bus.Unsubscribe(id)
	}
}

// handleEvent updates counters for one bus event.
func (c *Collector) handleEvent(event bus.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch event.Type {
	case bus.EventControlTouched:
		c.session.ControlsTouched++
	case bus.EventControlClicked:
		c.session.ControlsClicked++
	case bus.EventContextChanged, bus.EventContextCleared:
		c.session.ContextChanges++
	case bus.EventPatternLearned:
		c.session.PatternsLearned++
	case bus.EventMatchResolved:
		c.session.MatchesResolved++
	case bus.EventHeartbeat:
		c.session.Heartbeats++
	case bus.EventPipelineError:
		c.session.Errors++
		c.session.LastError = event.Error
	}

	c.session.LastEvent = string(event.Type)
	c.session.LastEventTime = event.Timestamp

	c.recentEvents = append(c.recentEvents, event)
	if len(c.recentEvents) > maxRecentEvents {
		c.recentEvents = c.recentEvents[len(c.recentEvents)-maxRecentEvents:]
	}
}

// Session returns a snapshot of the current session statistics.
func (c *Collector) Session() SessionStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// RecentEvents returns a copy of the rolling event window, oldest first.
func (c *Collector) RecentEvents() []bus.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]bus.Event, len(c.recentEvents))
	copy(out, c.recentEvents)
	return out
}
