// Package labeling turns discovery clusters into short human-readable
// labels using a text-generation model. The generator is optional wherever
// it is consumed, and response parsing is deliberately lenient: model output
// drifts, and a half-parsed label list is still better than none.
package labeling

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"intentcore/internal/logging"
)

// ClusterSummary is the slice of a cluster the label prompt needs.
type ClusterSummary struct {
	Ordinal  int // 1-based position in the prompt
	Keywords []string
	Samples  []string
	IntentID string // matched canonical intent, empty for new themes
}

// Generator produces free-form text from a prompt.
type Generator interface {
	GenerateLabels(ctx context.Context, prompt string) (string, error)
}

// labelLineRe matches "3: some label", "3. some label", "- 3) some label".
var labelLineRe = regexp.MustCompile(`^\s*(?:[-*]\s*)?(\d+)\s*[:.)]\s*(.+?)\s*$`)

// BuildPrompt renders the cluster summaries into a single labeling request.
// The expected response format is one "N: label" line per cluster.
func BuildPrompt(summaries []ClusterSummary) string {
	var b strings.Builder
	b.WriteString("You are labeling clusters of customer support tickets from a SaaS billing product.\n")
	b.WriteString("For each cluster below, write ONE short label (3-6 words, Spanish or English matching the samples).\n")
	b.WriteString("Answer with exactly one line per cluster, formatted as 'N: label'. No other text.\n\n")

	for _, s := range summaries {
		fmt.Fprintf(&b, "Cluster %d\n", s.Ordinal)
		if len(s.Keywords) > 0 {
			fmt.Fprintf(&b, "  keywords: %s\n", strings.Join(s.Keywords, ", "))
		}
		if s.IntentID != "" {
			fmt.Fprintf(&b, "  closest known intent: %s\n", s.IntentID)
		}
		for i, sample := range s.Samples {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "  sample: %s\n", sample)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ParseLabels extracts "N: label" lines from a model response. Ordinals
// outside [1, max] and lines that do not parse are skipped silently.
func ParseLabels(response string, max int) map[int]string {
	labels := make(map[int]string)
	for _, line := range strings.Split(response, "\n") {
		m := labelLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		var ordinal int
		if _, err := fmt.Sscanf(m[1], "%d", &ordinal); err != nil {
			continue
		}
		if ordinal < 1 || ordinal > max {
			continue
		}
		label := strings.Trim(m[2], `"'`)
		if label == "" {
			continue
		}
		labels[ordinal] = label
	}
	return labels
}

// LabelClusters runs one generation call for the given summaries and returns
// the parsed labels keyed by ordinal. Callers decide what a missing label
// falls back to.
func LabelClusters(ctx context.Context, gen Generator, summaries []ClusterSummary) (map[int]string, error) {
	if gen == nil || len(summaries) == 0 {
		return nil, nil
	}

	prompt := BuildPrompt(summaries)
	response, err := gen.GenerateLabels(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("label generation failed: %w", err)
	}

	labels := ParseLabels(response, len(summaries))
	logging.Labeling("Parsed %d/%d cluster labels", len(labels), len(summaries))
	return labels, nil
}
