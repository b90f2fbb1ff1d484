package semindex

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intentcore/internal/catalog"
	"intentcore/internal/vectormath"
)

// fakeEngine returns canned vectors and counts calls so tests can verify the
// empty-index short circuit.
type fakeEngine struct {
	vectors map[string][]float32
	calls   int
}

func (e *fakeEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	vec, ok := e.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no canned vector for %q", text)
	}
	return vec, nil
}

func (e *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *fakeEngine) Dimensions() int { return 3 }
func (e *fakeEngine) Name() string    { return "fake" }

type fakeSource struct {
	intents []catalog.CanonicalIntent
	err     error
}

func (s *fakeSource) ListApprovedIntents(ctx context.Context) ([]catalog.CanonicalIntent, error) {
	return s.intents, s.err
}

func approvedIntent(id string, embedding []float32) catalog.CanonicalIntent {
	return catalog.CanonicalIntent{
		ID:        id,
		Category:  "billing",
		Approved:  true,
		Embedding: embedding,
	}
}

func TestRefreshEmptyCatalog(t *testing.T) {
	ix := New(&fakeSource{}, &fakeEngine{}, false)

	count, err := ix.Refresh(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.False(t, ix.IsReady())
	assert.Zero(t, ix.Size())
}

func TestFindSemanticMatchEmptyIndexSkipsEmbedding(t *testing.T) {
	engine := &fakeEngine{}
	ix := New(&fakeSource{}, engine, false)

	m, err := ix.FindSemanticMatch(context.Background(), "anything at all", DefaultMatchThreshold)
	require.NoError(t, err)
	assert.False(t, m.Matched)
	assert.Zero(t, m.Score)
	assert.Empty(t, m.BestIntentID)
	assert.Zero(t, engine.calls, "embedding provider must not be called on an empty index")
}

func TestRefreshPilotFailFastKeepsPreviousSnapshot(t *testing.T) {
	source := &fakeSource{intents: []catalog.CanonicalIntent{
		approvedIntent("billing_invoice_copy", []float32{1, 0, 0}),
	}}
	engine := &fakeEngine{vectors: map[string][]float32{
		"send me my invoice": {1, 0, 0},
	}}
	ix := New(source, engine, true)

	count, err := ix.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.True(t, ix.IsReady())

	// Catalog gains an intent without an embedding: pilot refresh must fail
	// loudly and leave the old snapshot serving.
	source.intents = append(source.intents, approvedIntent("billing_refund_status", nil))

	_, err = ix.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingEmbeddings)
	assert.Contains(t, err.Error(), "billing_refund_status")
	assert.False(t, ix.IsReady())

	// Old snapshot still answers queries.
	m, err := ix.FindSemanticMatch(context.Background(), "send me my invoice", DefaultMatchThreshold)
	require.NoError(t, err)
	assert.True(t, m.Matched)
	assert.Equal(t, "billing_invoice_copy", m.IntentID)
}

func TestRefreshPilotRejectsWrongDimensionEmbedding(t *testing.T) {
	// A 2-dim embedding against a 3-dim engine would make every later query
	// error; pilot refresh must refuse it up front like a missing embedding.
	source := &fakeSource{intents: []catalog.CanonicalIntent{
		approvedIntent("billing_invoice_copy", []float32{1, 0, 0}),
		approvedIntent("billing_refund_status", []float32{1, 0}),
	}}
	ix := New(source, &fakeEngine{}, true)

	_, err := ix.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingEmbeddings)
	assert.Contains(t, err.Error(), "billing_refund_status")
	assert.False(t, ix.IsReady())
}

func TestRefreshNonPilotExcludesWrongDimensionEmbedding(t *testing.T) {
	source := &fakeSource{intents: []catalog.CanonicalIntent{
		approvedIntent("billing_invoice_copy", []float32{1, 0, 0}),
		approvedIntent("billing_refund_status", []float32{1, 0}),
	}}
	engine := &fakeEngine{vectors: map[string][]float32{
		"send me my invoice": {1, 0, 0},
	}}
	ix := New(source, engine, false)

	count, err := ix.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"billing_invoice_copy"}, ix.ApprovedIntentIDs())

	// The surviving snapshot answers valid queries without errors.
	m, err := ix.FindSemanticMatch(context.Background(), "send me my invoice", DefaultMatchThreshold)
	require.NoError(t, err)
	assert.True(t, m.Matched)
}

func TestRefreshNonPilotDegradesGracefully(t *testing.T) {
	source := &fakeSource{intents: []catalog.CanonicalIntent{
		approvedIntent("billing_invoice_copy", []float32{1, 0, 0}),
		approvedIntent("billing_refund_status", nil),
	}}
	ix := New(source, &fakeEngine{}, false)

	count, err := ix.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.True(t, ix.IsReady())
	assert.Equal(t, []string{"billing_invoice_copy"}, ix.ApprovedIntentIDs())
}

func TestFindSemanticMatchThresholdBoundary(t *testing.T) {
	target := []float32{1, 0, 0}
	query := []float32{0.78, 0.6258, 0}

	source := &fakeSource{intents: []catalog.CanonicalIntent{
		approvedIntent("billing_invoice_copy", target),
	}}
	engine := &fakeEngine{vectors: map[string][]float32{"q": query}}
	ix := New(source, engine, false)
	_, err := ix.Refresh(context.Background())
	require.NoError(t, err)

	score, err := vectormath.CosineSimilarity(query, target)
	require.NoError(t, err)

	// At exactly the score: matched.
	m, err := ix.FindSemanticMatch(context.Background(), "q", score)
	require.NoError(t, err)
	assert.True(t, m.Matched)
	assert.Equal(t, "billing_invoice_copy", m.IntentID)
	assert.InDelta(t, score, m.Score, 1e-12)

	// Just above the score: no match, diagnostics preserved.
	m, err = ix.FindSemanticMatch(context.Background(), "q", score+1e-9)
	require.NoError(t, err)
	assert.False(t, m.Matched)
	assert.Empty(t, m.IntentID)
	assert.Equal(t, "billing_invoice_copy", m.BestIntentID)
	assert.InDelta(t, score, m.BestScore, 1e-12)
}

func TestFindSemanticMatchFirstSeenWinsTies(t *testing.T) {
	vec := []float32{0, 1, 0}
	source := &fakeSource{intents: []catalog.CanonicalIntent{
		approvedIntent("account_password_reset", vec),
		approvedIntent("account_password_forgot", vec),
	}}
	engine := &fakeEngine{vectors: map[string][]float32{"q": vec}}
	ix := New(source, engine, false)
	_, err := ix.Refresh(context.Background())
	require.NoError(t, err)

	m, err := ix.FindSemanticMatch(context.Background(), "q", DefaultMatchThreshold)
	require.NoError(t, err)
	assert.True(t, m.Matched)
	assert.Equal(t, "account_password_reset", m.IntentID)
}

func TestFindSemanticMatchIdenticalTextScoresNearOne(t *testing.T) {
	vec := []float32{0.3, 0.9, 0.1}
	source := &fakeSource{intents: []catalog.CanonicalIntent{
		approvedIntent("billing_invoice_copy", vec),
	}}
	engine := &fakeEngine{vectors: map[string][]float32{
		"billing_invoice_copy billing": vec,
	}}
	ix := New(source, engine, false)
	_, err := ix.Refresh(context.Background())
	require.NoError(t, err)

	m, err := ix.FindSemanticMatch(context.Background(), "billing_invoice_copy billing", DefaultMatchThreshold)
	require.NoError(t, err)
	assert.True(t, m.Matched)
	assert.InDelta(t, 1.0, m.Score, 1e-6)
}

func TestFindTopNSemanticMatches(t *testing.T) {
	source := &fakeSource{intents: []catalog.CanonicalIntent{
		approvedIntent("a", []float32{1, 0, 0}),
		approvedIntent("b", []float32{0.9, 0.1, 0}),
		approvedIntent("c", []float32{0, 1, 0}),
		approvedIntent("d", []float32{-1, 0, 0}),
	}}
	engine := &fakeEngine{vectors: map[string][]float32{"q": {1, 0, 0}}}
	ix := New(source, engine, false)
	_, err := ix.Refresh(context.Background())
	require.NoError(t, err)

	top, err := ix.FindTopNSemanticMatches(context.Background(), "q", 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "a", top[0].IntentID)
	assert.Equal(t, "b", top[1].IntentID)
	assert.Equal(t, "c", top[2].IntentID)
	assert.True(t, top[0].Similarity >= top[1].Similarity)
	assert.True(t, top[1].Similarity >= top[2].Similarity)
}

func TestRefreshSourceErrorPropagates(t *testing.T) {
	source := &fakeSource{err: fmt.Errorf("catalog unavailable")}
	ix := New(source, &fakeEngine{}, false)

	_, err := ix.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog unavailable")
}
