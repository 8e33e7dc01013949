// Package regime discovers market regimes by clustering daily z-score
// vectors. Clustering is deterministic: a fixed seed makes reruns over the
// same window reproducible.
package regime

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// kmeansResult holds cluster assignments and final centroids.
type kmeansResult struct {
	Assignments []int
	Centroids   [][]float64
}

// kmeans runs Lloyd's algorithm with seeded random initialization. Points and
// k must be non-empty with len(points) >= k; every point is a vector of equal
// dimension.
func kmeans(points [][]float64, k int, seed int64, maxIter int) kmeansResult {
	rng := rand.New(rand.NewSource(seed))
	dim := len(points[0])

	// Initial centroids are k distinct points chosen by seeded permutation.
	centroids := make([][]float64, k)
	for i, idx := range rng.Perm(len(points))[:k] {
		centroids[i] = append([]float64(nil), points[idx]...)
	}

	assignments := make([]int, len(points))
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, p := range points {
			best := nearestCentroid(p, centroids)
			if best != assignments[i] {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, p := range points {
			floats.Add(sums[assignments[i]], p)
			counts[assignments[i]]++
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Empty cluster keeps its previous centroid.
				continue
			}
			for d := 0; d < dim; d++ {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}

	return kmeansResult{Assignments: assignments, Centroids: centroids}
}

func nearestCentroid(p []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for c, centroid := range centroids {
		d := floats.Distance(p, centroid, 2)
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

// membershipProbabilities converts distances to soft cluster memberships via
// normalized inverse distance. A point sitting on a centroid gets probability
// 1 for that cluster.
func membershipProbabilities(p []float64, centroids [][]float64) []float64 {
	const epsilon = 1e-12

	probs := make([]float64, len(centroids))
	var total float64
	for c, centroid := range centroids {
		d := floats.Distance(p, centroid, 2)
		if d < epsilon {
			for i := range probs {
				probs[i] = 0
			}
			probs[c] = 1
			return probs
		}
		probs[c] = 1 / d
		total += probs[c]
	}
	for c := range probs {
		probs[c] /= total
	}
	return probs
}
