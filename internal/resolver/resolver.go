// Package resolver wires the runtime resolution flow: normalize the raw
// message, query the semantic index, and consult the fuzzy fallback when
// the semantic score lands in the ambiguous band. The resolver never
// invents an intent; uncertainty comes back as MethodNone with diagnostic
// scores for the caller to handle explicitly.
package resolver

import (
	"context"
	"fmt"

	"intentcore/internal/logging"
	"intentcore/internal/normalize"
	"intentcore/internal/semindex"
)

// Method records which stage produced the decision.
type Method string

const (
	MethodSemantic Method = "semantic"
	MethodFuzzy    Method = "fuzzy"
	MethodNone     Method = "none"
)

// Decision is the final outcome of resolving one message.
type Decision struct {
	IntentID string
	Score    float64
	Method   Method

	// Diagnostics: the best semantic candidate even when unmatched.
	BestIntentID string
	BestScore    float64

	Normalization    normalize.Result
	FuzzyExplanation string
}

// Resolver resolves free-text messages against the canonical catalog.
type Resolver struct {
	index     *semindex.Index
	fuzzy     *normalize.FuzzyMatcher
	threshold float64
}

// New creates a resolver using the default semantic match threshold.
func New(index *semindex.Index, fuzzy *normalize.FuzzyMatcher) *Resolver {
	return NewWithThreshold(index, fuzzy, semindex.DefaultMatchThreshold)
}

// NewWithThreshold creates a resolver with an explicit match threshold.
// Non-positive thresholds fall back to the default.
func NewWithThreshold(index *semindex.Index, fuzzy *normalize.FuzzyMatcher, threshold float64) *Resolver {
	if threshold <= 0 {
		threshold = semindex.DefaultMatchThreshold
	}
	return &Resolver{
		index:     index,
		fuzzy:     fuzzy,
		threshold: threshold,
	}
}

// Resolve normalizes the message, attempts a semantic match, and falls back
// to fuzzy rescue inside the ambiguous band.
func (r *Resolver) Resolve(ctx context.Context, text string) (Decision, error) {
	norm := normalize.NormalizeInput(text)

	match, err := r.index.FindSemanticMatch(ctx, norm.Normalized, r.threshold)
	if err != nil {
		return Decision{}, fmt.Errorf("semantic match failed: %w", err)
	}

	decision := Decision{
		Method:        MethodNone,
		BestIntentID:  match.BestIntentID,
		BestScore:     match.BestScore,
		Normalization: norm,
	}

	if match.Matched {
		decision.IntentID = match.IntentID
		decision.Score = match.Score
		decision.Method = MethodSemantic
		return decision, nil
	}

	// FuzzyLabelFallback enforces the ambiguous band itself: outside
	// (0.60, 0.78) it declines without consulting the catalog.
	rescue, err := r.fuzzy.FuzzyLabelFallback(ctx, norm.Normalized, match.BestScore)
	if err != nil {
		return Decision{}, fmt.Errorf("fuzzy fallback failed: %w", err)
	}
	if rescue != nil {
		decision.IntentID = rescue.IntentID
		decision.Score = rescue.Score
		decision.Method = MethodFuzzy
		decision.FuzzyExplanation = rescue.Explanation
		return decision, nil
	}

	logging.Normalize("No confident match for message (best %s at %.3f)",
		match.BestIntentID, match.BestScore)
	return decision, nil
}
