// Package discovery implements the offline clustering pipeline that surfaces
// intents missing from the canonical catalog. One run embeds a staging corpus
// of historical tickets, clusters it with cosine k-means, measures overlap
// against the approved catalog, and reports uncovered clusters as candidates
// for human promotion. The pipeline only reads; nothing is written back.
package discovery

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"intentcore/internal/catalog"
	"intentcore/internal/embedding"
	"intentcore/internal/labeling"
	"intentcore/internal/logging"
	"intentcore/internal/vectormath"
)

// Config holds the clustering knobs. Zero values fall back to defaults.
type Config struct {
	K                 int     // number of k-means clusters
	MaxIterations     int     // k-means iteration budget
	MinClusterSize    int     // smaller clusters fold into the noise bucket
	BatchSize         int     // embedding chunk size
	Parallelism       int     // concurrent embedding chunks; <=1 is sequential
	TopClusters       int     // clusters that get top-3 matches and labels
	NewCandidateLimit int     // max uncovered clusters reported
	SampleLimit       int     // member samples per reported cluster
	KeywordLimit      int     // keywords per cluster
	CoverageThreshold float64 // centroid similarity for catalog coverage
	MaxDocTextLen     int     // description truncation for embedding text
}

// DefaultConfig returns the production clustering parameters.
func DefaultConfig() Config {
	return Config{
		K:                 80,
		MaxIterations:     30,
		MinClusterSize:    3,
		BatchSize:         100,
		Parallelism:       1,
		TopClusters:       15,
		NewCandidateLimit: 10,
		SampleLimit:       10,
		KeywordLimit:      8,
		CoverageThreshold: 0.65,
		MaxDocTextLen:     240,
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.K <= 0 {
		c.K = def.K
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = def.MaxIterations
	}
	if c.MinClusterSize <= 0 {
		c.MinClusterSize = def.MinClusterSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.Parallelism <= 0 {
		c.Parallelism = def.Parallelism
	}
	if c.TopClusters <= 0 {
		c.TopClusters = def.TopClusters
	}
	if c.NewCandidateLimit <= 0 {
		c.NewCandidateLimit = def.NewCandidateLimit
	}
	if c.SampleLimit <= 0 {
		c.SampleLimit = def.SampleLimit
	}
	if c.KeywordLimit <= 0 {
		c.KeywordLimit = def.KeywordLimit
	}
	if c.CoverageThreshold <= 0 {
		c.CoverageThreshold = def.CoverageThreshold
	}
	if c.MaxDocTextLen <= 0 {
		c.MaxDocTextLen = def.MaxDocTextLen
	}
	return c
}

const (
	emptyDocPlaceholder = "(empty ticket)"
	sampleTextLen       = 160
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Pipeline runs discovery clustering over a staging corpus.
type Pipeline struct {
	docs    catalog.DocumentSource
	intents catalog.IntentSource
	engine  embedding.Engine
	cfg     Config

	labeler  labeling.Generator
	progress ProgressFunc
}

// NewPipeline creates a discovery pipeline. The labeler and progress callback
// are optional; set them with SetLabeler and SetProgress.
func NewPipeline(docs catalog.DocumentSource, intents catalog.IntentSource, engine embedding.Engine, cfg Config) *Pipeline {
	return &Pipeline{
		docs:    docs,
		intents: intents,
		engine:  engine,
		cfg:     cfg.withDefaults(),
	}
}

// SetLabeler enables the optional LLM labeling step. Labeling failures are
// logged and skipped, never fatal to a run.
func (p *Pipeline) SetLabeler(gen labeling.Generator) {
	p.labeler = gen
}

// SetProgress installs a progress callback. The callback must return
// promptly; the pipeline calls it inline and does not buffer.
func (p *Pipeline) SetProgress(fn ProgressFunc) {
	p.progress = fn
}

// Run executes one full discovery pass and returns the report.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: start,
	}

	timer := logging.StartTimer(logging.CategoryDiscovery, "Run")
	defer timer.StopWithInfo()
	logging.Discovery("Discovery run %s starting", report.RunID)

	p.report("Loading staging corpus", 2)
	docs, err := p.docs.ListStagingDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load staging corpus: %w", err)
	}
	report.TotalDocuments = len(docs)
	if len(docs) == 0 {
		report.Duration = time.Since(start)
		p.report("Staging corpus is empty", 100)
		return report, nil
	}

	// Empty documents get a placeholder instead of being dropped so that
	// vector, assignment, and corpus indexes stay aligned.
	p.report("Building document texts", 5)
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = buildDocText(doc, p.cfg.MaxDocTextLen)
	}

	p.report(fmt.Sprintf("Embedding %d documents", len(texts)), 10)
	vectors, err := embedding.EmbedChunked(ctx, p.engine, texts, p.cfg.BatchSize, p.cfg.Parallelism)
	if err != nil {
		return nil, fmt.Errorf("document embedding failed: %w", err)
	}
	report.TotalEmbedded = len(vectors)

	p.report("Clustering", 45)
	assignments, centroids, iterations, err := kMeans(vectors, p.cfg.K, p.cfg.MaxIterations)
	if err != nil {
		return nil, fmt.Errorf("clustering failed: %w", err)
	}
	logging.Discovery("k-means finished after %d iterations", iterations)

	p.report("Post-processing clusters", 60)
	clusters, noise := collectClusters(assignments, centroids, p.cfg.MinClusterSize)
	report.TotalClusters = len(clusters)
	report.NoiseSize = noise

	p.report("Extracting keywords", 70)
	for i := range clusters {
		memberTexts := make([]string, len(clusters[i].Members))
		for j, m := range clusters[i].Members {
			memberTexts[j] = texts[m]
		}
		clusters[i].Keywords = extractKeywords(memberTexts, p.cfg.KeywordLimit)
	}

	p.report("Measuring canonical overlap", 80)
	if err := p.measureOverlap(ctx, clusters); err != nil {
		return nil, err
	}
	covered := 0
	for _, c := range clusters {
		if c.Covered {
			covered++
		}
	}
	if len(clusters) > 0 {
		report.CoveragePercent = float64(covered) / float64(len(clusters)) * 100
	}

	// Every survivor gets a fallback label; the top clusters may have theirs
	// replaced by the LLM pass. Candidates are collected only after labeling
	// so the candidate copies carry the final labels.
	for i := range clusters {
		clusters[i].SuggestedLabel = fallbackLabel(clusters[i])
	}
	top := p.cfg.TopClusters
	if top > len(clusters) {
		top = len(clusters)
	}
	for i := 0; i < top; i++ {
		clusters[i].Samples = memberSamples(clusters[i].Members, texts, p.cfg.SampleLimit)
	}

	p.report("Labeling clusters", 88)
	report.LabelsGenerated = p.applyLabels(ctx, clusters[:top])

	p.report("Collecting new candidates", 95)
	report.NewCandidates = newCandidates(clusters, texts, p.cfg)

	report.Clusters = clusters
	report.Duration = time.Since(start)
	p.report("Discovery complete", 100)
	logging.Discovery("Run %s: %d docs, %d clusters, %d noise, %.1f%% coverage, %d new candidates",
		report.RunID, report.TotalDocuments, report.TotalClusters, report.NoiseSize,
		report.CoveragePercent, len(report.NewCandidates))
	return report, nil
}

func (p *Pipeline) report(message string, percent int) {
	logging.DiscoveryDebug("Progress %d%%: %s", percent, message)
	if p.progress != nil {
		p.progress(message, percent)
	}
}

// buildDocText builds one embeddable string per document: the subject plus a
// truncated, tag-stripped description.
func buildDocText(doc catalog.StagingDocument, maxLen int) string {
	subject := strings.TrimSpace(doc.Subject)

	desc := htmlTagRe.ReplaceAllString(doc.Description, " ")
	desc = strings.TrimSpace(whitespaceRe.ReplaceAllString(desc, " "))
	desc = truncate(desc, maxLen)

	switch {
	case subject != "" && desc != "":
		return subject + ". " + desc
	case subject != "":
		return subject
	case desc != "":
		return desc
	default:
		return emptyDocPlaceholder
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// collectClusters groups assignments into Cluster values, folding clusters
// below minSize into the noise count. Survivors come back sorted by
// descending size, ties broken by cluster id.
func collectClusters(assignments []int, centroids [][]float32, minSize int) ([]Cluster, int) {
	members := make(map[int][]int)
	for docIdx, c := range assignments {
		members[c] = append(members[c], docIdx)
	}

	clusters := make([]Cluster, 0, len(members))
	noise := 0
	for c, docIdxs := range members {
		if len(docIdxs) < minSize {
			noise += len(docIdxs)
			continue
		}
		clusters = append(clusters, Cluster{
			ID:       c,
			Size:     len(docIdxs),
			Members:  docIdxs,
			Centroid: centroids[c],
		})
	}

	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Size != clusters[j].Size {
			return clusters[i].Size > clusters[j].Size
		}
		return clusters[i].ID < clusters[j].ID
	})
	return clusters, noise
}

// measureOverlap embeds every canonical intent's identity text once and
// scores each cluster centroid against the catalog. All survivors get a
// best-match verdict; the top clusters additionally keep their top 3
// matches for review.
func (p *Pipeline) measureOverlap(ctx context.Context, clusters []Cluster) error {
	if len(clusters) == 0 {
		return nil
	}

	intents, err := p.intents.ListApprovedIntents(ctx)
	if err != nil {
		return fmt.Errorf("failed to load canonical intents for overlap: %w", err)
	}
	if len(intents) == 0 {
		logging.Discovery("No canonical intents; every cluster is a new candidate")
		return nil
	}

	identities := make([]string, len(intents))
	for i, intent := range intents {
		identities[i] = intent.IdentityText()
	}
	intentVecs, err := embedding.EmbedChunked(ctx, p.engine, identities, p.cfg.BatchSize, p.cfg.Parallelism)
	if err != nil {
		return fmt.Errorf("intent identity embedding failed: %w", err)
	}

	for ci := range clusters {
		matches := make([]ClusterMatch, len(intents))
		for ii, vec := range intentVecs {
			sim, err := vectormath.CosineSimilarity(clusters[ci].Centroid, vec)
			if err != nil {
				return fmt.Errorf("overlap similarity failed: %w", err)
			}
			matches[ii] = ClusterMatch{IntentID: intents[ii].ID, Similarity: sim}
		}
		sort.Slice(matches, func(i, j int) bool {
			return matches[i].Similarity > matches[j].Similarity
		})

		clusters[ci].BestIntentID = matches[0].IntentID
		clusters[ci].BestSimilarity = matches[0].Similarity
		clusters[ci].Covered = matches[0].Similarity >= p.cfg.CoverageThreshold

		if ci < p.cfg.TopClusters {
			keep := 3
			if keep > len(matches) {
				keep = len(matches)
			}
			clusters[ci].Matches = matches[:keep]
		}
	}
	return nil
}

func memberSamples(members []int, texts []string, limit int) []string {
	if limit > len(members) {
		limit = len(members)
	}
	samples := make([]string, 0, limit)
	for _, m := range members[:limit] {
		samples = append(samples, truncate(texts[m], sampleTextLen))
	}
	return samples
}

// newCandidates returns the largest uncovered clusters expanded with member
// samples for human review.
func newCandidates(clusters []Cluster, texts []string, cfg Config) []Cluster {
	out := make([]Cluster, 0, cfg.NewCandidateLimit)
	for _, c := range clusters {
		if c.Covered {
			continue
		}
		c.Samples = memberSamples(c.Members, texts, cfg.SampleLimit)
		out = append(out, c)
		if len(out) == cfg.NewCandidateLimit {
			break
		}
	}
	return out
}

func fallbackLabel(c Cluster) string {
	if c.Covered {
		return "→ " + c.BestIntentID
	}
	keywords := c.Keywords
	if len(keywords) > 3 {
		keywords = keywords[:3]
	}
	return "NEW: " + strings.Join(keywords, " ")
}

// applyLabels runs the optional LLM labeling pass over the top clusters.
// Any failure leaves the fallback labels in place; the run itself never
// fails because of labeling.
func (p *Pipeline) applyLabels(ctx context.Context, top []Cluster) bool {
	if p.labeler == nil || len(top) == 0 {
		return false
	}

	summaries := make([]labeling.ClusterSummary, len(top))
	for i, c := range top {
		intentID := ""
		if c.Covered {
			intentID = c.BestIntentID
		}
		summaries[i] = labeling.ClusterSummary{
			Ordinal:  i + 1,
			Keywords: c.Keywords,
			Samples:  c.Samples,
			IntentID: intentID,
		}
	}

	labels, err := labeling.LabelClusters(ctx, p.labeler, summaries)
	if err != nil {
		logging.LabelingWarn("Cluster labeling skipped: %v", err)
		return false
	}

	applied := false
	for i := range top {
		if label, ok := labels[i+1]; ok && label != "" {
			top[i].SuggestedLabel = label
			applied = true
		}
	}
	return applied
}
