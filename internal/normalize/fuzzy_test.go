package normalize

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intentcore/internal/catalog"
)

type countingSource struct {
	intents []catalog.CanonicalIntent
	err     error
	calls   int
}

func (s *countingSource) ListApprovedIntents(ctx context.Context) ([]catalog.CanonicalIntent, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.intents, nil
}

func billingIntents() []catalog.CanonicalIntent {
	return []catalog.CanonicalIntent{
		{
			ID:       "billing_invoice_copy",
			Category: "billing",
			Keywords: "factura, invoice, copia",
			Approved: true,
		},
		{
			ID:       "account_password_reset",
			Category: "account",
			Keywords: "contraseña, password, acceso",
			Approved: true,
		},
	}
}

func TestFuzzyLabelFallbackBandExclusivity(t *testing.T) {
	source := &countingSource{intents: billingIntents()}
	m := NewFuzzyMatcher(source)
	ctx := context.Background()

	// The rescue band is strictly (0.60, 0.78): both bounds excluded.
	for _, score := range []float64{0.0, 0.59, 0.60, 0.78, 0.79, 1.0} {
		match, err := m.FuzzyLabelFallback(ctx, "mi factira por favor", score)
		require.NoError(t, err)
		assert.Nil(t, match, "score %.2f must not trigger fuzzy rescue", score)
	}
	assert.Zero(t, source.calls, "out-of-band scores must not consult the catalog")
}

func TestFuzzyLabelFallbackRescuesTypo(t *testing.T) {
	source := &countingSource{intents: billingIntents()}
	m := NewFuzzyMatcher(source)

	// "factira" is one edit from the keyword/label token "factura"
	// (length 7): similarity 1 - 1/7 ≈ 0.857, above the 0.75 threshold.
	match, err := m.FuzzyLabelFallback(context.Background(), "necesito mi factira", 0.70)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "billing_invoice_copy", match.IntentID)
	assert.GreaterOrEqual(t, match.Score, 0.75)
	assert.NotEmpty(t, match.Explanation)
}

func TestFuzzyLabelFallbackRescuesDroppedDiacritic(t *testing.T) {
	// "envio" is one rune edit from the keyword "envío" (5 runes):
	// similarity 0.80, boosted x1.1 as a keyword match.
	source := &countingSource{intents: []catalog.CanonicalIntent{
		{
			ID:       "shipping_tracking",
			Category: "shipping",
			Keywords: "envío, paquete, seguimiento",
			Approved: true,
		},
	}}
	m := NewFuzzyMatcher(source)

	match, err := m.FuzzyLabelFallback(context.Background(), "cuando llega mi envio", 0.70)
	require.NoError(t, err)
	require.NotNil(t, match, "one-rune diacritic typo of a short keyword must be rescued")
	assert.Equal(t, "shipping_tracking", match.IntentID)
	assert.InDelta(t, 0.80*1.1, match.Score, 1e-9)
}

func TestFuzzyLabelFallbackNoQualifier(t *testing.T) {
	source := &countingSource{intents: billingIntents()}
	m := NewFuzzyMatcher(source)

	match, err := m.FuzzyLabelFallback(context.Background(), "zzz qqq xxx", 0.70)
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestFuzzyLabelFallbackExactKeywordWins(t *testing.T) {
	source := &countingSource{intents: billingIntents()}
	m := NewFuzzyMatcher(source)

	match, err := m.FuzzyLabelFallback(context.Background(), "olvidé mi contraseña del portal", 0.70)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "account_password_reset", match.IntentID)
}

func TestCandidateCacheTTL(t *testing.T) {
	source := &countingSource{intents: billingIntents()}
	m := NewFuzzyMatcher(source)

	clock := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	ctx := context.Background()

	_, err := m.FuzzyLabelFallback(ctx, "mi factira", 0.70)
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)

	// Within the TTL: cache is served, no refetch.
	clock = clock.Add(60 * time.Second)
	_, err = m.FuzzyLabelFallback(ctx, "mi factira", 0.70)
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)

	// Past the TTL: refetched.
	clock = clock.Add(90 * time.Second)
	_, err = m.FuzzyLabelFallback(ctx, "mi factira", 0.70)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestStaleNonEmptyCacheServedOnRefetchFailure(t *testing.T) {
	source := &countingSource{intents: billingIntents()}
	m := NewFuzzyMatcher(source)

	clock := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	ctx := context.Background()

	match, err := m.FuzzyLabelFallback(ctx, "mi factira", 0.70)
	require.NoError(t, err)
	require.NotNil(t, match)

	// Source starts failing; the stale cache still answers.
	source.err = fmt.Errorf("catalog unavailable")
	clock = clock.Add(5 * time.Minute)

	match, err = m.FuzzyLabelFallback(ctx, "mi factira", 0.70)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "billing_invoice_copy", match.IntentID)
}

func TestEmptyUnfetchableCacheFails(t *testing.T) {
	source := &countingSource{err: fmt.Errorf("catalog unavailable")}
	m := NewFuzzyMatcher(source)

	_, err := m.FuzzyLabelFallback(context.Background(), "mi factira", 0.70)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog unavailable")
}

func TestBoundedEditSimilarity(t *testing.T) {
	tests := []struct {
		a, b    string
		wantOK  bool
		wantSim float64
	}{
		{"factura", "factira", true, 1 - 1.0/7},
		{"plan", "plano", true, 1 - 1.0/5},
		{"pago", "banco", false, 0}, // distance 3 over bound
		{"casa", "cosas", false, 0}, // short token, distance 2 > 1
		// Diacritics are one edit, not two: lengths and distances count
		// runes, not bytes.
		{"suscripcion", "suscripción", true, 1 - 1.0/11},
		{"envio", "envío", true, 1 - 1.0/5},
		{"bano", "baño", true, 1 - 1.0/4},
	}

	for _, tt := range tests {
		sim, ok := boundedEditSimilarity(tt.a, tt.b)
		assert.Equal(t, tt.wantOK, ok, "%s vs %s", tt.a, tt.b)
		if tt.wantOK {
			assert.InDelta(t, tt.wantSim, sim, 1e-9, "%s vs %s", tt.a, tt.b)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("factura", "factura"))
	assert.Equal(t, 1, levenshtein("factura", "factira"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
	assert.Equal(t, 3, levenshtein("", "abc"))
	assert.Equal(t, 1, levenshtein("envio", "envío"))
	assert.Equal(t, 1, levenshtein("baño", "bano"))
}
