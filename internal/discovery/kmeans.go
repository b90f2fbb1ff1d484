package discovery

import (
	"fmt"

	"intentcore/internal/logging"
	"intentcore/internal/vectormath"
)

// kMeans clusters the vectors into at most k groups using cosine distance.
// Returns per-vector cluster assignments, the final centroids, and the number
// of iterations actually run.
//
// Centroids are seeded farthest-point style: the first vector, then
// repeatedly the vector with the maximum minimum distance to every centroid
// chosen so far. That spreads seeds across distinct regions of the corpus
// instead of risking redundant nearby seeds.
func kMeans(vectors [][]float32, k, maxIterations int) ([]int, [][]float32, int, error) {
	if len(vectors) == 0 {
		return nil, nil, 0, nil
	}
	if k > len(vectors) {
		k = len(vectors)
	}
	if k < 1 {
		k = 1
	}

	centroids, err := seedCentroids(vectors, k)
	if err != nil {
		return nil, nil, 0, err
	}

	assignments := make([]int, len(vectors))
	for i := range assignments {
		assignments[i] = -1
	}

	iterations := 0
	for iterations < maxIterations {
		iterations++

		changed := false
		for i, vec := range vectors {
			nearest, err := nearestCentroid(vec, centroids)
			if err != nil {
				return nil, nil, iterations, err
			}
			if nearest != assignments[i] {
				assignments[i] = nearest
				changed = true
			}
		}

		if !changed {
			logging.DiscoveryDebug("k-means converged after %d iterations", iterations)
			break
		}

		if err := recomputeCentroids(vectors, assignments, centroids); err != nil {
			return nil, nil, iterations, err
		}
	}

	return assignments, centroids, iterations, nil
}

// seedCentroids picks k seed vectors: the first vector, then k-1 rounds of
// the point farthest (by minimum cosine distance) from all chosen seeds.
func seedCentroids(vectors [][]float32, k int) ([][]float32, error) {
	centroids := make([][]float32, 0, k)
	centroids = append(centroids, cloneVector(vectors[0]))

	// minDist[i] tracks the distance from vectors[i] to its nearest chosen
	// centroid; each new centroid only tightens it.
	minDist := make([]float64, len(vectors))
	for i, vec := range vectors {
		d, err := vectormath.CosineDistance(vec, centroids[0])
		if err != nil {
			return nil, fmt.Errorf("seeding failed: %w", err)
		}
		minDist[i] = d
	}

	for len(centroids) < k {
		farthest := -1
		farthestDist := -1.0
		for i, d := range minDist {
			if d > farthestDist {
				farthestDist = d
				farthest = i
			}
		}
		if farthest < 0 {
			break
		}

		next := cloneVector(vectors[farthest])
		centroids = append(centroids, next)
		for i, vec := range vectors {
			d, err := vectormath.CosineDistance(vec, next)
			if err != nil {
				return nil, fmt.Errorf("seeding failed: %w", err)
			}
			if d < minDist[i] {
				minDist[i] = d
			}
		}
	}

	return centroids, nil
}

// nearestCentroid returns the index of the centroid with the highest cosine
// similarity to vec. Ties keep the first-seen centroid.
func nearestCentroid(vec []float32, centroids [][]float32) (int, error) {
	best := 0
	bestSim := -2.0
	for i, c := range centroids {
		sim, err := vectormath.CosineSimilarity(vec, c)
		if err != nil {
			return 0, err
		}
		if sim > bestSim {
			bestSim = sim
			best = i
		}
	}
	return best, nil
}

// recomputeCentroids replaces each centroid with the mean of its members.
// Empty clusters keep their previous centroid rather than being reseeded.
func recomputeCentroids(vectors [][]float32, assignments []int, centroids [][]float32) error {
	members := make([][][]float32, len(centroids))
	for i, a := range assignments {
		members[a] = append(members[a], vectors[i])
	}

	for c, vecs := range members {
		if len(vecs) == 0 {
			continue
		}
		mean, err := vectormath.Mean(vecs)
		if err != nil {
			return fmt.Errorf("centroid recompute failed: %w", err)
		}
		centroids[c] = mean
	}
	return nil
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
