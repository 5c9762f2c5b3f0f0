package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/reavoice/internal/bus"
)

func newTestCollector(t *testing.T) (*Collector, *bus.Bus) {
	t.Helper()

	b := bus.New()
	t.Cleanup(func() { b.Close() })

	c := NewCollector(b)
	c.Start()
	t.Cleanup(c.Stop)
	return c, b
}

func TestCollectorCounts(t *testing.T) {
	c, b := newTestCollector(t)

	b.Publish(bus.NewEvent(bus.EventControlTouched))
	b.Publish(bus.NewEvent(bus.EventControlTouched))
	b.Publish(bus.NewEvent(bus.EventControlClicked))
	b.Publish(bus.NewEvent(bus.EventPatternLearned))
	b.Publish(bus.NewEvent(bus.EventMatchResolved))
	b.Publish(bus.NewEvent(bus.EventHeartbeat))

	require.Eventually(t, func() bool {
		return c.Session().Heartbeats == 1
	}, time.Second, 10*time.Millisecond)

	stats := c.Session()
	assert.Equal(t, 2, stats.ControlsTouched)
	assert.Equal(t, 1, stats.ControlsClicked)
	assert.Equal(t, 1, stats.PatternsLearned)
	assert.Equal(t, 1, stats.MatchesResolved)
	assert.Equal(t, "heartbeat", stats.LastEvent)
	assert.Len(t, c.RecentEvents(), 6)
}

func TestCollectorCountsErrors(t *testing.T) {
	c, b := newTestCollector(t)

	event := bus.NewEvent(bus.EventPipelineError)
	event.Error = "state file too large: 2097152 bytes"
	b.Publish(event)

	require.Eventually(t, func() bool {
		return c.Session().Errors == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, "state file too large: 2097152 bytes", c.Session().LastError)
}

func TestCollectorRecentEventsBounded(t *testing.T) {
	c, b := newTestCollector(t)

	for i := 0; i < maxRecentEvents+20; i++ {
		b.Publish(bus.NewEvent(bus.EventHeartbeat))
	}

	require.Eventually(t, func() bool {
		return c.Session().Heartbeats == maxRecentEvents+20
	}, time.Second, 10*time.Millisecond)

	assert.Len(t, c.RecentEvents(), maxRecentEvents)
}

func TestCollectorStopStopsCounting(t *testing.T) {
	c, b := newTestCollector(t)

	b.Publish(bus.NewEvent(bus.EventControlTouched))
	require.Eventually(t, func() bool {
		return c.Session().ControlsTouched == 1
	}, time.Second, 10*time.Millisecond)

	c.Stop()
	b.Publish(bus.NewEvent(bus.EventControlTouched))
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, c.Session().ControlsTouched)

	// Restarting after Stop is rejected.
	c.Start()
	b.Publish(bus.NewEvent(bus.EventControlTouched))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, c.Session().ControlsTouched)
}
