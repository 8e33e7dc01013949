package regime

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/domain"
	"github.com/aristath/pxi/internal/store"
	"github.com/aristath/pxi/pkg/formulas"
)

const (
	// clusterCount and clusterSeed pin the clustering: identical inputs
	// yield identical rows across reruns and hosts.
	clusterCount = 3
	clusterSeed  = 42
	maxIter      = 100

	// lookbackDays bounds the feature window; minFeatureDays gates the run.
	lookbackDays   = 90
	minFeatureDays = 15
	volatilityTail = 30
)

// featureIndicators is the subset whose daily z-scores feed the clustering.
// Order is fixed; it defines the feature vector layout.
var featureIndicators = []string{
	domain.IndicatorHYOAS,
	domain.IndicatorNFCI,
	domain.IndicatorVIX,
}

// Stress-score components within featureIndicators (credit spreads and
// equity volatility carry the regime signal).
var stressComponents = map[string]bool{
	domain.IndicatorHYOAS: true,
	domain.IndicatorVIX:   true,
}

// Service runs the daily regime detection.
type Service struct {
	store *store.Store
	log   zerolog.Logger
}

// NewService creates the regime detector.
func NewService(st *store.Store, log zerolog.Logger) *Service {
	return &Service{
		store: st,
		log:   log.With().Str("component", "regime").Logger(),
	}
}

// Detect clusters the recent daily z-score vectors, labels today's cluster and
// persists the row. Returns ErrInsufficientHistory while the panel is too
// young.
func (s *Service) Detect(ctx context.Context, asOf time.Time) (*domain.RegimeRow, error) {
	dates, vectors, err := s.featureMatrix(ctx)
	if err != nil {
		return nil, err
	}
	if len(vectors) < minFeatureDays {
		return nil, fmt.Errorf("%d complete feature days, need %d: %w",
			len(vectors), minFeatureDays, domain.ErrInsufficientHistory)
	}

	result := kmeans(vectors, clusterCount, clusterSeed, maxIter)
	ranks := stressRanks(result.Centroids)

	latest := len(vectors) - 1
	cluster := result.Assignments[latest]
	rank := ranks[cluster]

	// Probabilities are reported in stress order (calm first) so consumers
	// never see raw cluster indices.
	rawProbs := membershipProbabilities(vectors[latest], result.Centroids)
	probs := make([]float64, clusterCount)
	for c, p := range rawProbs {
		probs[ranks[c]] = p
	}

	row := domain.RegimeRow{
		Date:          dates[latest],
		Regime:        labelForRank(rank),
		ClusterID:     rank,
		Features:      vectors[latest],
		Centroid:      result.Centroids[cluster],
		Probabilities: probs,
	}

	if err := s.store.Regimes.UpsertRegime(ctx, row); err != nil {
		return nil, fmt.Errorf("store regime: %w", err)
	}

	s.log.Info().
		Str("date", row.Date).
		Str("regime", string(row.Regime)).
		Int("days", len(vectors)).
		Msg("Regime detected")
	return &row, nil
}

// featureMatrix builds one vector per date holding each feature indicator's
// daily z plus its rolling z volatility. Dates where any feature lacks a
// usable z are dropped.
func (s *Service) featureMatrix(ctx context.Context) ([]string, [][]float64, error) {
	series := make(map[string]map[string]float64, len(featureIndicators))
	for _, id := range featureIndicators {
		rows, err := s.store.ZScores.LatestPerDay(ctx, id, lookbackDays)
		if err != nil {
			return nil, nil, fmt.Errorf("daily z-scores for %s: %w", id, err)
		}
		byDate := make(map[string]float64, len(rows))
		for _, row := range rows {
			if row.Z != nil {
				byDate[row.Timestamp.UTC().Format("2006-01-02")] = *row.Z
			}
		}
		series[id] = byDate
	}

	var dates []string
	for date := range series[featureIndicators[0]] {
		complete := true
		for _, id := range featureIndicators[1:] {
			if _, ok := series[id][date]; !ok {
				complete = false
				break
			}
		}
		if complete {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)

	// Trailing z history per indicator, for the volatility half of the
	// vector.
	trailing := make(map[string][]float64, len(featureIndicators))
	vectors := make([][]float64, 0, len(dates))
	for _, date := range dates {
		vec := make([]float64, 0, 2*len(featureIndicators))
		for _, id := range featureIndicators {
			z := series[id][date]
			trailing[id] = append(trailing[id], z)
			vec = append(vec, z)
		}
		for _, id := range featureIndicators {
			vec = append(vec, trailingVolatility(trailing[id]))
		}
		vectors = append(vectors, vec)
	}
	return dates, vectors, nil
}

// trailingVolatility is the stddev of the last 30 z values, 0 while fewer
// than 2 exist.
func trailingVolatility(zs []float64) float64 {
	if len(zs) > volatilityTail {
		zs = zs[len(zs)-volatilityTail:]
	}
	if len(zs) < 2 {
		return 0
	}
	return formulas.StdDev(zs)
}

// stressRanks orders clusters by the stress components of their centroids:
// rank 0 is calmest, rank k-1 most stressed.
func stressRanks(centroids [][]float64) []int {
	type scored struct {
		cluster int
		score   float64
	}

	scores := make([]scored, len(centroids))
	for c, centroid := range centroids {
		var score float64
		for i, id := range featureIndicators {
			if stressComponents[id] {
				score += centroid[i]
			}
		}
		scores[c] = scored{cluster: c, score: score}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score < scores[j].score })

	ranks := make([]int, len(centroids))
	for rank, sc := range scores {
		ranks[sc.cluster] = rank
	}
	return ranks
}

func labelForRank(rank int) domain.DiscoveredRegime {
	switch rank {
	case 0:
		return domain.DiscoveredCalm
	case 1:
		return domain.DiscoveredNormal
	default:
		return domain.DiscoveredStress
	}
}
