package learner

import (
	"fmt"
	"strings"

	"github.com/normanking/reavoice/pkg/types"
)

// controlNames maps canonical control-type tokens to their spoken form.
// Unmapped tokens fall back to the raw token.
var controlNames = map[string]string{
	"volume_fader":    "volume fader",
	"fader":           "fader",
	"pan":             "pan",
	"pan_knob":        "pan knob",
	"mute_button":     "mute button",
	"solo_button":     "solo button",
	"record_arm":      "record arm",
	"automation_mode": "automation mode",
	"fx_button":       "effects button",
	"send_knob":       "send knob",
	"fx_param":        "effect parameter",
	"envelope":        "envelope",
}

// FormatControlName returns the spoken form of a control-type token.
func FormatControlName(controlType string) string {
	if name, ok := controlNames[controlType]; ok {
		return name
	}
	return controlType
}

// GetControlIdentification produces a speakable announcement for a polled
// sample. Mixer-panel ("mcp") and unknown contexts use "Channel"; track
// panel contexts use "Track". A "(learning)" qualifier signals that the
// identification is still below the confidence threshold.
func (l *Learner) GetControlIdentification(sample types.PollSample) string {
	prediction := l.PredictControlType(sample.Descriptor())
	name := FormatControlName(prediction.ControlType)

	term := "Track"
	mixer := sample.Context == "mcp" || sample.Context == ""
	if mixer {
		term = "Channel"
	}

	var sb strings.Builder
	switch {
	case sample.TrackNumber != types.NoTrack:
		fmt.Fprintf(&sb, "%s %d, %s", term, sample.TrackNumber, name)
	case sample.TrackName != "":
		trackName := sample.TrackName
		if mixer && strings.HasPrefix(trackName, "Track") {
			trackName = "Channel " + trackName[len("Track"):]
			trackName = strings.Join(strings.Fields(trackName), " ")
		}
		fmt.Fprintf(&sb, "%s, %s", trackName, name)
	default:
		sb.WriteString(name)
	}

	if sample.ValueFormatted != "" {
		fmt.Fprintf(&sb, ", %s", sample.ValueFormatted)
	}

	if prediction.Confidence < l.cfg.ConfidenceThreshold {
		sb.WriteString(" (learning)")
	}

	return sb.String()
}
