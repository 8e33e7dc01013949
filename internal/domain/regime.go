package domain

// DiscoveredRegime is the k-means cluster label, ordered by centroid stress.
type DiscoveredRegime string

const (
	DiscoveredCalm   DiscoveredRegime = "Calm"
	DiscoveredNormal DiscoveredRegime = "Normal"
	DiscoveredStress DiscoveredRegime = "Stress"
)

// RegimeRow is one discovered regime label, one per UTC calendar day.
// Probabilities holds the distance to every centroid, usable as a
// soft-membership vector.
type RegimeRow struct {
	Date          string // YYYY-MM-DD (UTC)
	Regime        DiscoveredRegime
	ClusterID     int
	Features      []float64
	Centroid      []float64
	Probabilities []float64
}
