// Package catalog defines the canonical intent data model and the sources
// the resolution core reads from: the approved intent catalog and the
// staging corpus of historical tickets.
package catalog

import (
	"context"
	"strings"
)

// CanonicalIntent is the unit of resolution: a human-approved meaning a user
// message can express.
type CanonicalIntent struct {
	ID          string
	Category    string
	Subcategory string
	Description string
	Keywords    string // comma-delimited
	Actionable  bool
	Approved    bool

	// Embedding is nil until computed. An intent is eligible for semantic
	// matching only when Approved is true and Embedding is present.
	Embedding []float32
}

// KeywordList splits the comma-delimited keyword field into trimmed,
// lowercased entries. Empty entries are dropped.
func (ci CanonicalIntent) KeywordList() []string {
	if ci.Keywords == "" {
		return nil
	}
	parts := strings.Split(ci.Keywords, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IdentityText concatenates the identity-relevant fields. This is the text
// that gets embedded, both when the catalog is curated and when discovery
// measures overlap against it.
func (ci CanonicalIntent) IdentityText() string {
	parts := []string{ci.ID, ci.Category}
	if ci.Subcategory != "" {
		parts = append(parts, ci.Subcategory)
	}
	if ci.Description != "" {
		parts = append(parts, ci.Description)
	}
	if ci.Keywords != "" {
		parts = append(parts, ci.Keywords)
	}
	return strings.Join(parts, " ")
}

// StagingDocument is one historical ticket from the discovery corpus.
type StagingDocument struct {
	ID          string
	Subject     string
	Description string
	Resolution  string
}

// IntentSource lists the approved canonical intents. Implemented by the
// SQLite catalog in production and by fixtures in tests.
type IntentSource interface {
	ListApprovedIntents(ctx context.Context) ([]CanonicalIntent, error)
}

// DocumentSource lists the staging corpus for discovery.
type DocumentSource interface {
	ListStagingDocuments(ctx context.Context) ([]StagingDocument, error)
}
