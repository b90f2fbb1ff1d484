// Package semindex implements the in-memory semantic index over approved
// canonical intents. The index owns no persistent state: Refresh rebuilds a
// snapshot from the intent source and swaps it atomically, so concurrent
// readers are never blocked and never see a half-built snapshot.
package semindex

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"intentcore/internal/catalog"
	"intentcore/internal/embedding"
	"intentcore/internal/logging"
	"intentcore/internal/vectormath"
)

// DefaultMatchThreshold is the minimum cosine similarity for a confident
// semantic match.
const DefaultMatchThreshold = 0.78

// DefaultTopN is the number of candidates returned for diagnostics.
const DefaultTopN = 3

// ErrMissingEmbeddings is returned by Refresh in pilot mode when any
// approved intent lacks an embedding. Serving confident-looking matches
// without complete data in a high-stakes mode is worse than refusing to
// serve.
var ErrMissingEmbeddings = errors.New("approved intents missing embeddings")

// Record is one snapshot entry, reduced to what matching needs.
type Record struct {
	IntentID    string
	Category    string
	Subcategory string
	Actionable  bool
	Embedding   []float32
}

// Match is the outcome of a best-match query. When Matched is false the
// Best fields still carry the highest-scoring candidate for diagnostics;
// the normalization pipeline uses them to decide on a fuzzy rescue.
type Match struct {
	Matched      bool
	IntentID     string
	Score        float64
	BestIntentID string
	BestScore    float64
}

// ScoredIntent is one entry of a top-N query.
type ScoredIntent struct {
	IntentID   string
	Category   string
	Similarity float64
}

type snapshot struct {
	records []Record
}

// Index is the process-wide semantic index. Construct isolated instances
// with New; there is no hidden module state.
type Index struct {
	source catalog.IntentSource
	engine embedding.Engine
	pilot  bool

	snap  atomic.Pointer[snapshot]
	ready atomic.Bool
}

// New creates an index. pilot tightens Refresh to fail fast when approved
// intents are missing embeddings.
func New(source catalog.IntentSource, engine embedding.Engine, pilot bool) *Index {
	ix := &Index{
		source: source,
		engine: engine,
		pilot:  pilot,
	}
	ix.snap.Store(&snapshot{})
	return ix
}

// Refresh rebuilds the snapshot from the current approved intents and
// returns the number of intents loaded.
//
// An intent counts as missing when it has no embedding or when the embedding
// does not match the engine's dimension; a wrong-dimension vector would make
// every later query fail instead of this refresh. In pilot mode any missing
// embedding is fatal: the previous snapshot stays in place, ready flips to
// false and the error enumerates the missing ids. Outside pilot mode missing
// embeddings are logged and the partial set is served with ready=true.
func (ix *Index) Refresh(ctx context.Context) (int, error) {
	timer := logging.StartTimer(logging.CategoryIndex, "Refresh")
	defer timer.StopWithInfo()

	intents, err := ix.source.ListApprovedIntents(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list approved intents: %w", err)
	}

	wantDim := ix.engine.Dimensions()
	records := make([]Record, 0, len(intents))
	var missing []string
	for _, intent := range intents {
		if len(intent.Embedding) == 0 || (wantDim > 0 && len(intent.Embedding) != wantDim) {
			missing = append(missing, intent.ID)
			continue
		}
		records = append(records, Record{
			IntentID:    intent.ID,
			Category:    intent.Category,
			Subcategory: intent.Subcategory,
			Actionable:  intent.Actionable,
			Embedding:   intent.Embedding,
		})
	}

	if len(missing) > 0 && ix.pilot {
		ix.ready.Store(false)
		logging.Get(logging.CategoryIndex).Error("Pilot refresh aborted: %d intents missing embeddings: %s",
			len(missing), strings.Join(missing, ", "))
		return 0, fmt.Errorf("%w (pilot mode): %s", ErrMissingEmbeddings, strings.Join(missing, ", "))
	}

	if len(missing) > 0 {
		logging.Get(logging.CategoryIndex).Warn("Refresh proceeding with %d intents missing embeddings: %s",
			len(missing), strings.Join(missing, ", "))
	}

	ix.snap.Store(&snapshot{records: records})
	ix.ready.Store(len(records) > 0)
	logging.Index("Refresh loaded %d intents (%d missing embeddings, ready=%v)",
		len(records), len(missing), ix.ready.Load())
	return len(records), nil
}

// IsReady reports whether the index can serve matches.
func (ix *Index) IsReady() bool {
	return ix.ready.Load()
}

// Size returns the number of intents in the current snapshot.
func (ix *Index) Size() int {
	return len(ix.snap.Load().records)
}

// ApprovedIntentIDs returns the intent ids in the current snapshot.
func (ix *Index) ApprovedIntentIDs() []string {
	records := ix.snap.Load().records
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.IntentID
	}
	return ids
}

// FindSemanticMatch embeds the text and scans the snapshot for the best
// cosine match. The match is returned only when its score meets the
// threshold; otherwise the best candidate is reported for diagnostics.
// Strictly-greater comparison means the first-seen intent wins ties. An
// empty snapshot short-circuits without calling the embedding provider.
func (ix *Index) FindSemanticMatch(ctx context.Context, text string, threshold float64) (Match, error) {
	records := ix.snap.Load().records
	if len(records) == 0 {
		return Match{}, nil
	}

	vec, err := ix.engine.Embed(ctx, text)
	if err != nil {
		return Match{}, fmt.Errorf("failed to embed query: %w", err)
	}

	bestScore := -1.0
	bestID := ""
	for _, r := range records {
		sim, err := vectormath.CosineSimilarity(vec, r.Embedding)
		if err != nil {
			return Match{}, fmt.Errorf("intent %s: %w", r.IntentID, err)
		}
		if sim > bestScore {
			bestScore = sim
			bestID = r.IntentID
		}
	}

	m := Match{
		BestIntentID: bestID,
		BestScore:    bestScore,
	}
	if bestScore >= threshold {
		m.Matched = true
		m.IntentID = bestID
		m.Score = bestScore
		logging.IndexDebug("Semantic match: %s (%.4f >= %.2f)", bestID, bestScore, threshold)
	} else {
		logging.IndexDebug("No semantic match: best %s at %.4f < %.2f", bestID, bestScore, threshold)
	}
	return m, nil
}

// FindTopNSemanticMatches embeds once, scores every snapshot entry and
// returns the n highest by similarity. Used for diagnostics and human
// review, not runtime gating.
func (ix *Index) FindTopNSemanticMatches(ctx context.Context, text string, n int) ([]ScoredIntent, error) {
	if n <= 0 {
		n = DefaultTopN
	}

	records := ix.snap.Load().records
	if len(records) == 0 {
		return nil, nil
	}

	vec, err := ix.engine.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scored := make([]ScoredIntent, 0, len(records))
	for _, r := range records {
		sim, err := vectormath.CosineSimilarity(vec, r.Embedding)
		if err != nil {
			return nil, fmt.Errorf("intent %s: %w", r.IntentID, err)
		}
		scored = append(scored, ScoredIntent{
			IntentID:   r.IntentID,
			Category:   r.Category,
			Similarity: sim,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if len(scored) > n {
		scored = scored[:n]
	}
	return scored, nil
}
