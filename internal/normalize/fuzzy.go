package normalize

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"intentcore/internal/catalog"
	"intentcore/internal/logging"
)

const (
	// FuzzyLowBound: below this semantic score the message is too dissimilar
	// for a fuzzy rescue to be trustworthy.
	FuzzyLowBound = 0.60

	// FuzzyHighBound mirrors the semantic match threshold: at or above it
	// semantic matching already succeeded and no rescue is needed.
	FuzzyHighBound = 0.78

	// FuzzyScoreThreshold is the minimum fuzzy score for an intent to
	// qualify as a rescue match.
	FuzzyScoreThreshold = 0.75

	// candidateTTL bounds staleness of the cached intent candidates. An
	// intent edited inside the window is not visible to fuzzy matching
	// until the TTL expires; that staleness/cost trade-off is deliberate.
	candidateTTL = 120 * time.Second
)

// tokenRe matches message tokens: alphanumeric plus the domain diacritics.
var tokenRe = regexp.MustCompile(`[a-z0-9áéíóúñü]+`)

// FuzzyMatch is a successful fuzzy rescue.
type FuzzyMatch struct {
	IntentID    string
	Score       float64
	Explanation string
}

// fuzzyCandidate is an approved intent reduced to the token sets fuzzy
// matching compares against.
type fuzzyCandidate struct {
	id            string
	labelTokens   []string
	keywordTokens []string
}

// FuzzyMatcher rescues borderline semantic matches using edit distance and
// token overlap against the approved intent catalog. Candidates are cached
// with a TTL and refreshed lazily on access.
type FuzzyMatcher struct {
	source catalog.IntentSource

	mu         sync.Mutex
	candidates []fuzzyCandidate
	fetchedAt  time.Time
	now        func() time.Time
}

// NewFuzzyMatcher creates a matcher over the given intent source.
func NewFuzzyMatcher(source catalog.IntentSource) *FuzzyMatcher {
	return &FuzzyMatcher{
		source: source,
		now:    time.Now,
	}
}

// FuzzyLabelFallback attempts a fuzzy rescue for a message whose semantic
// score fell in the ambiguous band (strictly between FuzzyLowBound and
// FuzzyHighBound). Outside that band it returns nil without consulting the
// catalog. A nil result with nil error is the first-class "no rescue"
// outcome.
func (m *FuzzyMatcher) FuzzyLabelFallback(ctx context.Context, text string, semanticScore float64) (*FuzzyMatch, error) {
	if semanticScore <= FuzzyLowBound || semanticScore >= FuzzyHighBound {
		return nil, nil
	}

	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	candidates, err := m.loadCandidates(ctx)
	if err != nil {
		return nil, err
	}

	var best *FuzzyMatch
	for _, cand := range candidates {
		score, explanation := scoreCandidate(tokens, cand)
		if score < FuzzyScoreThreshold {
			continue
		}
		if best == nil || score > best.Score {
			best = &FuzzyMatch{
				IntentID:    cand.id,
				Score:       score,
				Explanation: explanation,
			}
		}
	}

	if best != nil {
		logging.Normalize("Fuzzy rescue: %s (%.3f) for semantic score %.3f: %s",
			best.IntentID, best.Score, semanticScore, best.Explanation)
	}
	return best, nil
}

// loadCandidates returns the cached candidates, refetching when the cache
// is stale. A stale-but-nonempty cache is served when the refetch fails;
// an empty, unfetchable cache is an error.
func (m *FuzzyMatcher) loadCandidates(ctx context.Context) ([]fuzzyCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fresh := m.now().Sub(m.fetchedAt) < candidateTTL
	if fresh && len(m.candidates) > 0 {
		return m.candidates, nil
	}

	intents, err := m.source.ListApprovedIntents(ctx)
	if err != nil {
		if len(m.candidates) > 0 {
			logging.Get(logging.CategoryNormalize).Warn("Serving stale fuzzy candidates: refetch failed: %v", err)
			return m.candidates, nil
		}
		return nil, fmt.Errorf("failed to load fuzzy candidates: %w", err)
	}

	candidates := make([]fuzzyCandidate, 0, len(intents))
	for _, intent := range intents {
		candidates = append(candidates, fuzzyCandidate{
			id:            intent.ID,
			labelTokens:   labelTokens(intent.ID),
			keywordTokens: keywordTokens(intent.KeywordList()),
		})
	}

	m.candidates = candidates
	m.fetchedAt = m.now()
	logging.NormalizeDebug("Fuzzy candidate cache refreshed: %d intents", len(candidates))
	return m.candidates, nil
}

// scoreCandidate computes the maximum score for one intent across the three
// comparison rules, returning it with a human-readable explanation of the
// winning rule.
func scoreCandidate(msgTokens []string, cand fuzzyCandidate) (float64, string) {
	best := 0.0
	explanation := ""

	record := func(score float64, format string, args ...interface{}) {
		if score > best {
			best = score
			explanation = fmt.Sprintf(format, args...)
		}
	}

	// (a) Edit distance between message tokens and label tokens.
	for _, mt := range msgTokens {
		for _, lt := range cand.labelTokens {
			if sim, ok := boundedEditSimilarity(mt, lt); ok {
				record(sim, "token %q matches label token %q (similarity %.2f)", mt, lt, sim)
			}
		}
	}

	// (b) Token-set Jaccard against the keyword set, boosted.
	if len(cand.keywordTokens) > 0 {
		jaccard := jaccardSimilarity(msgTokens, cand.keywordTokens)
		record(jaccard*1.2, "keyword overlap jaccard %.2f (boosted x1.2)", jaccard)
	}

	// (c) Edit distance against individual keywords, boosted.
	for _, mt := range msgTokens {
		for _, kw := range cand.keywordTokens {
			if sim, ok := boundedEditSimilarity(mt, kw); ok {
				record(sim*1.1, "token %q matches keyword %q (similarity %.2f, boosted x1.1)", mt, kw, sim)
			}
		}
	}

	return best, explanation
}

// boundedEditSimilarity converts a bounded edit distance into a similarity
// score: distance <= 1 for short tokens (<= 5 runes), <= 2 for longer ones.
// Lengths and distances count runes, not bytes, so the diacritics the
// correction tables restore ("envío", "baño") cost one edit, not two.
// Reports false when the pair is outside the bound.
func boundedEditSimilarity(a, b string) (float64, bool) {
	lenA := len([]rune(a))
	lenB := len([]rune(b))
	maxLen := lenA
	if lenB > maxLen {
		maxLen = lenB
	}
	if maxLen == 0 {
		return 0, false
	}

	allowed := 2
	if maxLen <= 5 {
		allowed = 1
	}

	dist := levenshtein(a, b)
	if dist > allowed {
		return 0, false
	}
	return 1 - float64(dist)/float64(maxLen), true
}

// Tokenize splits normalized text into matching tokens: alphanumeric runs
// (including domain diacritics) longer than one character.
func Tokenize(text string) []string {
	raw := tokenRe.FindAllString(strings.ToLower(text), -1)
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		if len([]rune(tok)) > 1 {
			out = append(out, tok)
		}
	}
	return out
}

func labelTokens(intentID string) []string {
	parts := strings.FieldsFunc(strings.ToLower(intentID), func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) > 1 {
			out = append(out, p)
		}
	}
	return out
}

func keywordTokens(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if len(kw) > 1 {
			out = append(out, kw)
		}
	}
	return out
}

// jaccardSimilarity computes set overlap between two token slices.
func jaccardSimilarity(a, b []string) float64 {
	setA := make(map[string]bool, len(a))
	for _, t := range a {
		setA[t] = true
	}
	setB := make(map[string]bool, len(b))
	for _, t := range b {
		setB[t] = true
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// levenshtein computes the rune-level edit distance between two strings
// using two-row dynamic programming.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}

	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for i := range prev {
		prev[i] = i
	}

	for j := 1; j <= len(rb); j++ {
		curr[0] = j
		for i := 1; i <= len(ra); i++ {
			if ra[i-1] == rb[j-1] {
				curr[i] = prev[i-1]
			} else {
				curr[i] = 1 + min3(prev[i-1], prev[i], curr[i-1])
			}
		}
		prev, curr = curr, prev
	}

	return prev[len(ra)]
}

func min3(a, b, c int) int {
	if a <= b && a <= c {
		return a
	}
	if b <= c {
		return b
	}
	return c
}
