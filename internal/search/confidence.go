package search

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/qubitlab/subisom/internal/amplify"
)

// roundRecord captures what one completed round contributes to the
// negative-result bound: its iteration count and how many shots
// actually completed.
type roundRecord struct {
	iterations int
	shots      int
}

// confidence bounds the probability that the search missed an existing
// embedding, assuming the weakest detectable instance: exactly one
// embedding in the full candidate space. Each shot of a round with k
// iterations would then have hit with probability sin^2((2k+1)*asin(1/sqrt(N)));
// the false-negative probability multiplies the per-shot miss
// probabilities across every completed shot. More embeddings only
// raise the hit probability, so the bound is conservative.
func confidence(records []roundRecord, space uint64) float64 {
	falseNegative := 1.0
	for _, r := range records {
		p := amplify.HitProbability(r.iterations, space, 1)
		falseNegative *= math.Pow(1-p, float64(r.shots))
	}
	return 1 - falseNegative
}

// meanHitBound is the average per-shot hit bound across completed
// rounds; a diagnostic logged with the final outcome.
func meanHitBound(records []roundRecord, space uint64) float64 {
	if len(records) == 0 {
		return 0
	}
	ps := make([]float64, len(records))
	for i, r := range records {
		ps[i] = amplify.HitProbability(r.iterations, space, 1)
	}
	return stat.Mean(ps, nil)
}
