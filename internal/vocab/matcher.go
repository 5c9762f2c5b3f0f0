package vocab

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/normanking/reavoice/pkg/types"
)

const (
	// DefaultFuzzyThreshold is the minimum similarity for a fuzzy match.
	DefaultFuzzyThreshold = 0.82

	// DefaultPartialThreshold is the minimum token coverage for a partial match.
	DefaultPartialThreshold = 0.75

	// DefaultTokenFuzzyThreshold is the per-token similarity that earns
	// partial credit during token matching.
	DefaultTokenFuzzyThreshold = 0.85

	// DefaultTagThreshold is the minimum tag coverage for a tag match.
	DefaultTagThreshold = 0.6

	// DefaultMinTagMatches is the minimum number of matched tags. Together
	// with the vibe-only restriction it keeps short generic tags from
	// falsely triggering action commands.
	DefaultMinTagMatches = 2

	// partialPenalty discounts partial matches below whole-phrase matches.
	partialPenalty = 0.95

	// tagPenalty discounts tag matches below every phrase-based tier.
	tagPenalty = 0.6

	// diagnosticCandidates is how many runner-up candidates are retained
	// for debug inspection.
	diagnosticCandidates = 5

	// lengthDisparityLimit short-circuits fuzzy scoring for pairs whose
	// lengths differ by more than this share of the longer string.
	lengthDisparityLimit = 0.5
)

// Config holds the matcher thresholds. Zero values take the defaults.
type Config struct {
	FuzzyThreshold      float64
	PartialThreshold    float64
	TokenFuzzyThreshold float64
	TagThreshold        float64
	MinTagMatches       int
}

// Matcher resolves utterances against a vocabulary store. The store owns
// the items; the matcher only reads them, so live edits surface on the
// next Match call without restart.
type Matcher struct {
	store Store
	cfg   Config

	mu             sync.Mutex
	lastCandidates []types.MatchCandidate
}

// NewMatcher creates a Matcher over the given store.
func NewMatcher(store Store, cfg Config) *Matcher {
	if cfg.FuzzyThreshold == 0 {
		cfg.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if cfg.PartialThreshold == 0 {
		cfg.PartialThreshold = DefaultPartialThreshold
	}
	if cfg.TokenFuzzyThreshold == 0 {
		cfg.TokenFuzzyThreshold = DefaultTokenFuzzyThreshold
	}
	if cfg.TagThreshold == 0 {
		cfg.TagThreshold = DefaultTagThreshold
	}
	if cfg.MinTagMatches == 0 {
		cfg.MinTagMatches = DefaultMinTagMatches
	}

	return &Matcher{store: store, cfg: cfg}
}

// Match returns the best-scoring vocabulary match for an utterance, or
// nil when nothing qualifies. A store read failure is logged and treated
// as an empty vocabulary, never an error.
func (m *Matcher) Match(ctx context.Context, utterance string) *types.MatchCandidate {
	normalized := Normalize(utterance)
	if normalized == "" {
		return nil
	}

	items, err := m.store.GetAll(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("vocab: store read failed, no match")
		return nil
	}

	// Phrase tiers first. For each item the first tier that qualifies
	// wins; tiers never double-count.
	var candidates []types.MatchCandidate
	for _, item := range items {
		if c := m.scorePhrase(normalized, item); c != nil {
			candidates = append(candidates, *c)
		}
	}

	// Tag matching is a last resort: only attempted when no phrase tier
	// produced a candidate for this utterance.
	if len(candidates) == 0 {
		for _, item := range items {
			if c := m.scoreTags(normalized, item); c != nil {
				candidates = append(candidates, *c)
			}
		}
	}

	if len(candidates) == 0 {
		m.setLastCandidates(nil)
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	top := candidates
	if len(top) > diagnosticCandidates {
		top = top[:diagnosticCandidates]
	}
	m.setLastCandidates(top)

	best := candidates[0]
	log.Debug().
		Str("utterance", normalized).
		Str("phrase", best.Item.Phrase).
		Str("match_type", string(best.MatchType)).
		Float64("score", best.Score).
		Msg("vocab: matched")
	return &best
}

// GetVocabContext resolves an utterance into everything the command
// dispatch layer needs: the match, the full item, and its dispatch hints.
func (m *Matcher) GetVocabContext(ctx context.Context, utterance string) *types.VocabContext {
	match := m.Match(ctx, utterance)
	if match == nil {
		return nil
	}

	item := match.Item
	hasMapping := item.ActionMapping != nil &&
		item.ActionMapping.Enabled &&
		len(item.ActionMapping.Actions) > 0

	return &types.VocabContext{
		Match:             match,
		Item:              item,
		HasActionMapping:  hasMapping,
		ClarificationRule: item.ClarificationRule,
	}
}

// LastCandidates returns the diagnostic top candidates from the most
// recent Match call.
func (m *Matcher) LastCandidates() []types.MatchCandidate {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.MatchCandidate, len(m.lastCandidates))
	copy(out, m.lastCandidates)
	return out
}

func (m *Matcher) setLastCandidates(candidates []types.MatchCandidate) {
	m.mu.Lock()
	m.lastCandidates = candidates
	m.mu.Unlock()
}

// scorePhrase evaluates the exact, fuzzy, and partial tiers for one item.
func (m *Matcher) scorePhrase(utterance string, item types.VocabularyItem) *types.MatchCandidate {
	phrase := Normalize(item.Phrase)
	if phrase == "" {
		return nil
	}

	// Tier 1: exact. Equality or the phrase contained in the utterance.
	if utterance == phrase || strings.Contains(utterance, phrase) {
		return &types.MatchCandidate{
			Item:          item,
			Score:         1.0,
			MatchType:     types.MatchExact,
			MatchedPhrase: phrase,
		}
	}

	// Tier 2: fuzzy. The length-disparity short-circuit skips edit
	// distance work on obviously mismatched pairs.
	if !lengthDisparate(utterance, phrase) {
		if score := similarity(utterance, phrase); score >= m.cfg.FuzzyThreshold {
			return &types.MatchCandidate{
				Item:          item,
				Score:         score,
				MatchType:     types.MatchFuzzy,
				MatchedPhrase: phrase,
			}
		}
	}

	// Tier 3: partial/token, only meaningful for multi-word phrases.
	phraseTokens := strings.Fields(phrase)
	if len(phraseTokens) >= 2 {
		if score := m.tokenCoverage(utterance, phraseTokens); score >= m.cfg.PartialThreshold {
			return &types.MatchCandidate{
				Item:          item,
				Score:         score * partialPenalty,
				MatchType:     types.MatchPartial,
				MatchedPhrase: phrase,
			}
		}
	}

	return nil
}

// tokenCoverage scores how well the utterance covers the phrase tokens:
// full credit for verbatim presence, partial credit for a close fuzzy
// token, nothing otherwise.
func (m *Matcher) tokenCoverage(utterance string, phraseTokens []string) float64 {
	utteranceTokens := strings.Fields(utterance)
	tokenSet := make(map[string]bool, len(utteranceTokens))
	for _, t := range utteranceTokens {
		tokenSet[t] = true
	}

	total := 0.0
	for _, pt := range phraseTokens {
		if tokenSet[pt] {
			total += 1.0
			continue
		}
		for _, ut := range utteranceTokens {
			if similarity(pt, ut) >= m.cfg.TokenFuzzyThreshold {
				total += 0.8
				break
			}
		}
	}

	return total / float64(len(phraseTokens))
}

// scoreTags evaluates the tag tier for one item. Restricted to vibe
// phrases with enough matched tags so that short generic tags cannot
// falsely trigger action commands.
func (m *Matcher) scoreTags(utterance string, item types.VocabularyItem) *types.MatchCandidate {
	if item.IntentType != types.IntentVibe || len(item.Tags) == 0 {
		return nil
	}

	matched := 0
	for _, tag := range item.Tags {
		if tag = Normalize(tag); tag != "" && strings.Contains(utterance, tag) {
			matched++
		}
	}
	if matched < m.cfg.MinTagMatches {
		return nil
	}

	score := float64(matched) / float64(len(item.Tags))
	if score < m.cfg.TagThreshold {
		return nil
	}

	return &types.MatchCandidate{
		Item:          item,
		Score:         score * tagPenalty,
		MatchType:     types.MatchTag,
		MatchedPhrase: strings.Join(item.Tags, " "),
	}
}

// lengthDisparate reports whether two strings differ in length by more
// than half the longer one.
func lengthDisparate(a, b string) bool {
	la, lb := len([]rune(a)), len([]rune(b))
	longer := la
	if lb > longer {
		longer = lb
	}
	if longer == 0 {
		return false
	}
	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) > lengthDisparityLimit*float64(longer)
}
