package discovery

import "time"

// ProgressFunc receives phase updates during a discovery run. Calls are
// fire-and-forget: the pipeline never waits on the consumer, and a nil
// function is always safe.
type ProgressFunc func(message string, percent int)

// ClusterMatch is one canonical intent scored against a cluster centroid.
type ClusterMatch struct {
	IntentID   string
	Similarity float64
}

// Cluster is one surviving discovery cluster.
type Cluster struct {
	ID       int
	Size     int
	Members  []int // indexes into the staging corpus
	Centroid []float32
	Keywords []string
	Samples  []string // truncated member texts, populated for new candidates

	// Overlap against the canonical catalog. Matches carries the top
	// candidates for the largest clusters only; BestIntentID/BestSimilarity
	// are filled for every surviving cluster.
	Matches        []ClusterMatch
	BestIntentID   string
	BestSimilarity float64
	Covered        bool

	SuggestedLabel string
}

// Report is the read-only outcome of one discovery run. Nothing in it is
// written back to the catalog; promotion of new candidates is a human step.
type Report struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	TotalDocuments int
	TotalEmbedded  int
	TotalClusters  int // surviving clusters, noise excluded
	NoiseSize      int // documents folded into sub-minimum clusters

	Clusters        []Cluster // survivors, descending by size
	CoveragePercent float64   // share of survivors covered by the catalog
	NewCandidates   []Cluster
	LabelsGenerated bool
}
