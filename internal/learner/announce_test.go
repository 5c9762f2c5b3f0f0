package learner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/normanking/reavoice/pkg/types"
)

func TestFormatControlName(t *testing.T) {
	assert.Equal(t, "mute button", FormatControlName("mute_button"))
	assert.Equal(t, "effects button", FormatControlName("fx_button"))
	assert.Equal(t, "volume fader", FormatControlName("volume_fader"))
	assert.Equal(t, "widget_x", FormatControlName("widget_x"), "unmapped tokens pass through")
}

func TestGetControlIdentificationMixer(t *testing.T) {
	l, _, _ := newTestLearner(t, Config{})

	got := l.GetControlIdentification(types.PollSample{
		ControlType: "mute_button",
		Context:     "mcp",
		TrackNumber: 3,
	})
	assert.Equal(t, "Channel 3, mute button (learning)", got)
}

func TestGetControlIdentificationTrackPanel(t *testing.T) {
	l, _, _ := newTestLearner(t, Config{})

	got := l.GetControlIdentification(types.PollSample{
		ControlType: "fader",
		Context:     "tcp",
		TrackNumber: 2,
	})
	assert.Equal(t, "Track 2, fader (learning)", got)
}

func TestGetControlIdentificationValue(t *testing.T) {
	l, _, _ := newTestLearner(t, Config{})

	got := l.GetControlIdentification(types.PollSample{
		ControlType:    "volume_fader",
		Context:        "mcp",
		TrackNumber:    1,
		ValueFormatted: "-6.0dB",
	})
	assert.Equal(t, "Channel 1, volume fader, -6.0dB (learning)", got)
}

func TestGetControlIdentificationTrackName(t *testing.T) {
	l, _, _ := newTestLearner(t, Config{})

	// Mixer context rewrites "Track" names as channels.
	got := l.GetControlIdentification(types.PollSample{
		ControlType: "pan",
		Context:     "mcp",
		TrackName:   "Track5",
	})
	assert.Equal(t, "Channel 5, pan (learning)", got)

	// Track panel keeps the name as-is.
	got = l.GetControlIdentification(types.PollSample{
		ControlType: "pan",
		Context:     "tcp",
		TrackName:   "Drums",
	})
	assert.Equal(t, "Drums, pan (learning)", got)

	// Only a leading "Track" is rewritten; a name that merely contains
	// the word stays untouched even in mixer context.
	got = l.GetControlIdentification(types.PollSample{
		ControlType: "pan",
		Context:     "mcp",
		TrackName:   "Guitar Track",
	})
	assert.Equal(t, "Guitar Track, pan (learning)", got)
}

func TestGetControlIdentificationBareControl(t *testing.T) {
	l, _, _ := newTestLearner(t, Config{})

	got := l.GetControlIdentification(types.PollSample{
		ControlType: "envelope",
		Context:     "tcp",
	})
	assert.Equal(t, "envelope (learning)", got)
}

func TestGetControlIdentificationConfident(t *testing.T) {
	l, clock, _ := newTestLearner(t, Config{})

	sample := types.PollSample{
		ControlType: "mute_button",
		Context:     "mcp",
		TrackNumber: 3,
	}
	confirm(l, clock, sample.Descriptor(), 7)

	got := l.GetControlIdentification(sample)
	assert.Equal(t, "Channel 3, mute button", got,
		"a confident identification drops the learning qualifier")
}
