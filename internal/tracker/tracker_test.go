package tracker

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/reavoice/internal/bus"
	"github.com/normanking/reavoice/pkg/types"
)

func newTestTracker(t *testing.T) (*Tracker, *bus.Bus) {
	t.Helper()
	b := bus.New()
	t.Cleanup(func() { b.Close() })
	return New(b), b
}

func fader(track int) types.ControlDescriptor {
	return types.ControlDescriptor{
		Type:  "volume_fader",
		Role:  "mcp",
		Title: fmt.Sprintf("track %d volume", track),
	}
}

func TestSetActiveControl(t *testing.T) {
	tr, _ := newTestTracker(t)

	tr.SetActiveControl(fader(3))

	active := tr.ActiveControl()
	require.NotNil(t, active)
	assert.Equal(t, "volume_fader", active.Type)
	assert.Equal(t, 3, tr.ActiveTrack())
	assert.Empty(t, tr.History(), "first control has no predecessor to archive")
}

func TestActiveControlArchivesPrevious(t *testing.T) {
	tr, _ := newTestTracker(t)

	tr.SetActiveControl(fader(1))
	tr.SetActiveControl(fader(2))

	history := tr.History()
	require.Len(t, history, 1)
	assert.Equal(t, "track 1 volume", history[0].Control.Title)
	assert.Equal(t, 2, tr.ActiveTrack())
}

func TestHistoryCapacity(t *testing.T) {
	tr, _ := newTestTracker(t)

	for i := 1; i <= 12; i++ {
		tr.SetActiveControl(fader(i))
	}

	history := tr.History()
	require.Len(t, history, HistoryCapacity)
	// Most recent first; the oldest archived controls were evicted.
	assert.Equal(t, "track 11 volume", history[0].Control.Title)
	assert.Equal(t, "track 2 volume", history[HistoryCapacity-1].Control.Title)
}

func TestClearActiveControl(t *testing.T) {
	tr, _ := newTestTracker(t)

	tr.SetActiveControl(fader(1))
	tr.ClearActiveControl()

	assert.Nil(t, tr.ActiveControl())
	assert.Equal(t, types.NoTrack, tr.ActiveTrack())
	assert.Len(t, tr.History(), 1, "cleared control is archived")

	// Clearing with nothing active archives nothing.
	tr.ClearActiveControl()
	assert.Len(t, tr.History(), 1)
}

func TestContextEvents(t *testing.T) {
	tr, b := newTestTracker(t)

	changed := make(chan bus.Event, 1)
	cleared := make(chan bus.Event, 1)
	b.Subscribe(bus.EventContextChanged, func(e bus.Event) { changed <- e })
	b.Subscribe(bus.EventContextCleared, func(e bus.Event) { cleared <- e })

	tr.SetActiveControl(fader(4))
	select {
	case e := <-changed:
		assert.Equal(t, 4, e.Track)
		require.NotNil(t, e.Control)
		assert.Equal(t, "volume_fader", e.Control.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for context change event")
	}

	tr.ClearActiveControl()
	select {
	case <-cleared:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for context cleared event")
	}
}

func TestResolveContextKeyword(t *testing.T) {
	tr, _ := newTestTracker(t)

	// Nothing active, nothing in history.
	assert.Nil(t, tr.ResolveContextKeyword("this"))
	assert.Nil(t, tr.ResolveContextKeyword("that"))

	tr.SetActiveControl(fader(1))
	tr.SetActiveControl(fader(2))

	for _, kw := range []string{"this", "here", "current", " THIS "} {
		c := tr.ResolveContextKeyword(kw)
		require.NotNil(t, c, "keyword %q", kw)
		assert.Equal(t, "track 2 volume", c.Title, "keyword %q", kw)
	}

	for _, kw := range []string{"that", "previous", "last"} {
		c := tr.ResolveContextKeyword(kw)
		require.NotNil(t, c, "keyword %q", kw)
		assert.Equal(t, "track 1 volume", c.Title, "keyword %q", kw)
	}

	// Unknown keywords never guess.
	assert.Nil(t, tr.ResolveContextKeyword("it"))
	assert.Nil(t, tr.ResolveContextKeyword(""))
}

func TestExtractTrack(t *testing.T) {
	tests := []struct {
		name     string
		control  types.ControlDescriptor
		expected int
	}{
		{
			"explicit track reference",
			types.ControlDescriptor{Type: "fx_button", Title: "Track 7 FX"},
			7,
		},
		{
			"case insensitive",
			types.ControlDescriptor{Type: "fx_button", Title: "TRACK 12"},
			12,
		},
		{
			"bare number on channel strip control",
			types.ControlDescriptor{Type: "volume_fader", Title: "Vol 3"},
			3,
		},
		{
			"bare number on non-strip control ignored",
			types.ControlDescriptor{Type: "fx_button", Title: "FX 3"},
			types.NoTrack,
		},
		{
			"description searched too",
			types.ControlDescriptor{Type: "pan", Description: "pan for track 5"},
			5,
		},
		{
			"no number",
			types.ControlDescriptor{Type: "volume_fader", Title: "Master"},
			types.NoTrack,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractTrack(tt.control))
		})
	}
}

func TestVolumeToDB(t *testing.T) {
	assert.InDelta(t, -6.02, VolumeToDB(0.5), 0.01)
	assert.InDelta(t, 0.0, VolumeToDB(1.0), 1e-9)
	assert.True(t, math.IsInf(VolumeToDB(0), -1))
	assert.True(t, math.IsInf(VolumeToDB(-0.1), -1))
}

func TestVolumeRoundTrip(t *testing.T) {
	for _, v := range []float64{0.25, 0.5, 1.0, 1.5, 2.0} {
		assert.InDelta(t, v, DBToVolume(VolumeToDB(v)), 1e-9)
	}
	assert.Equal(t, 0.0, DBToVolume(math.Inf(-1)))
}

func TestCurrentValueFromMirror(t *testing.T) {
	tr, _ := newTestTracker(t)

	tr.UpdateReaperState(map[int]TrackState{
		3: {Name: "Drums", Volume: 0.5, Pan: -0.25, Mute: true, Solo: false, RecordArm: true},
	})

	tr.SetActiveControl(fader(3))
	v, ok := tr.CurrentValue().(float64)
	require.True(t, ok)
	assert.InDelta(t, -6.02, v, 0.01)

	tr.SetActiveControl(types.ControlDescriptor{Type: "pan_knob", Title: "track 3 pan"})
	assert.Equal(t, -0.25, tr.CurrentValue())

	tr.SetActiveControl(types.ControlDescriptor{Type: "mute_button", Title: "track 3 mute"})
	assert.Equal(t, true, tr.CurrentValue())

	tr.SetActiveControl(types.ControlDescriptor{Type: "solo_button", Title: "track 3 solo"})
	assert.Equal(t, false, tr.CurrentValue())

	tr.SetActiveControl(types.ControlDescriptor{Type: "record_arm", Title: "track 3 arm"})
	assert.Equal(t, true, tr.CurrentValue())
}

func TestCurrentValueFallbacks(t *testing.T) {
	tr, _ := newTestTracker(t)

	// No active control.
	assert.Nil(t, tr.CurrentValue())

	// Track not in the mirror: fall back to the reported value.
	tr.SetActiveControl(types.ControlDescriptor{
		Type: "volume_fader", Title: "track 9 volume", Value: "-3.5dB",
	})
	assert.Equal(t, "-3.5dB", tr.CurrentValue())

	// No mirror entry and no reported value.
	tr.SetActiveControl(types.ControlDescriptor{Type: "fx_button", Title: "Track 9 FX"})
	assert.Nil(t, tr.CurrentValue())
}

func TestActiveControlDescription(t *testing.T) {
	tr, _ := newTestTracker(t)

	assert.Empty(t, tr.ActiveControlDescription())

	tr.SetActiveControl(types.ControlDescriptor{
		Type: "volume_fader", Title: "track 2 volume", Value: "-6.0dB",
	})
	assert.Equal(t, "Track 2 fader, -6.0dB", tr.ActiveControlDescription())

	tr.SetActiveControl(types.ControlDescriptor{Type: "mute_button", Title: "track 4 mute"})
	assert.Equal(t, "Track 4 mute button", tr.ActiveControlDescription())

	tr.SetActiveControl(types.ControlDescriptor{Type: "knob", Role: "rotary"})
	assert.Equal(t, "rotary", tr.ActiveControlDescription())
}
