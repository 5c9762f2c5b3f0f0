package vocab

import "github.com/normanking/reavoice/pkg/types"

// seedVocabulary is the starter set inserted into a fresh database. It
// covers the common channel-strip commands plus a few vibe phrases so tag
// matching has something to work with out of the box.
func seedVocabulary() []types.VocabularyItem {
	action := func(phrase string, tags ...string) types.VocabularyItem {
		return types.VocabularyItem{
			Phrase:     phrase,
			Tags:       tags,
			IntentType: types.IntentAction,
			Category:   "mixing",
			ActionMapping: &types.ActionMapping{
				Enabled: true,
				Actions: []types.Action{{Type: "daw_command"}},
			},
		}
	}
	vibe := func(phrase, sentiment string, tags ...string) types.VocabularyItem {
		return types.VocabularyItem{
			Phrase:     phrase,
			Tags:       tags,
			IntentType: types.IntentVibe,
			Sentiment:  sentiment,
			Category:   "vibe",
		}
	}

	return []types.VocabularyItem{
		action("solo this track", "solo", "track"),
		action("unsolo this track", "unsolo", "solo", "track"),
		action("mute this track", "mute", "track"),
		action("unmute this track", "unmute", "mute", "track"),
		action("arm this track", "arm", "record", "track"),
		action("turn it up", "volume", "up", "louder"),
		action("turn it down", "volume", "down", "quieter"),
		action("pan it left", "pan", "left"),
		action("pan it right", "pan", "right"),
		action("set the volume to unity", "volume", "unity", "zero"),

		vibe("make it dreamy", "positive", "dreamy", "spacey", "reverb", "wash"),
		vibe("make it punchy", "positive", "punchy", "tight", "compression"),
		vibe("warm it up", "positive", "warm", "analog", "saturation"),
		vibe("make it darker", "neutral", "dark", "moody", "filtered"),
	}
}
