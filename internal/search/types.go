// Package search drives the end-to-end subgraph embedding search:
// repeated circuit execution, bit-string decoding, classical
// verification and the escalation/termination policy, with confidence
// accounting for negative results.
package search

import (
	"errors"

	"github.com/qubitlab/subisom/internal/backend"
)

// ErrAborted is returned when the execution backend keeps failing
// after the configured retry budget. It is a hard failure, distinct
// from a NotFound outcome: nothing statistical can be said when the
// backend never produced measurements.
var ErrAborted = errors.New("search: aborted by backend failure")

// Status classifies a determinate search outcome.
type Status int

const (
	// StatusNotFound means the search exhausted its budget without a
	// verified embedding. It is a confidence-bounded negative, never a
	// proof of absence.
	StatusNotFound Status = iota
	// StatusFound means a classically verified embedding was measured.
	StatusFound
)

func (s Status) String() string {
	if s == StatusFound {
		return "found"
	}
	return "not_found"
}

// Outcome is the result of one search invocation.
type Outcome struct {
	Status Status
	// Mapping holds, for each pattern vertex, the target vertex it is
	// embedded onto. Nil unless Status is StatusFound.
	Mapping []int
	// Confidence bounds the probability that a NotFound outcome is a
	// false negative, computed against a hypothetical single embedding.
	// 1 for Found outcomes.
	Confidence float64
	// Rounds and Shots count the completed amplification rounds and the
	// total measurement draws they consumed.
	Rounds int
	Shots  int
	// RunID identifies this invocation in logs and progress events.
	RunID string
}

// Progress is delivered to the optional progress sink after each
// completed round and once with the final outcome.
type Progress struct {
	RunID      string  `json:"run_id"`
	Round      int     `json:"round"`
	Iterations int     `json:"iterations"`
	Shots      int     `json:"shots"`
	TotalShots int     `json:"total_shots"`
	Confidence float64 `json:"confidence"`
	State      string  `json:"state"`
}

// Cache is the optional byte-level store for compiled oracle
// reflections, keyed by the fingerprints of the graph pair. The
// controller works identically without one.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, payload []byte)
}

// Options configures one search invocation.
type Options struct {
	// ShotsPerRound is the number of measurement draws per round.
	ShotsPerRound int
	// InitialIterations is the Grover iteration count of the first
	// round.
	InitialIterations int
	// EscalationCeiling caps the iteration count.
	EscalationCeiling int
	// MaxRounds bounds the total number of rounds across escalation and
	// confidence top-up.
	MaxRounds int
	// MaxStalls is the number of failed rounds tolerated at the ceiling
	// before the schedule reports exhaustion.
	MaxStalls int
	// MaxPatternVertices caps the pattern size before oracle synthesis
	// is refused; the distinctness network grows quadratically in it.
	MaxPatternVertices int
	// ConfidenceTarget is the NotFound confidence the controller keeps
	// sampling toward (within MaxRounds) after the schedule exhausts.
	ConfidenceTarget float64
	// Concurrency is the number of parallel execution requests a
	// round's shots are split into.
	Concurrency int
	// Seed feeds the schedule's randomized escalation draws.
	Seed int64
	// Retry bounds per-request retries of transient backend failures.
	Retry backend.RetryPolicy
	// Cache, when set, is consulted for the compiled oracle reflection.
	Cache Cache
	// OnProgress, when set, receives per-round progress updates. Called
	// from the search goroutine; must not block.
	OnProgress func(Progress)
}

// DefaultOptions returns the controller defaults.
func DefaultOptions() Options {
	return Options{
		ShotsPerRound:      64,
		InitialIterations:  1,
		EscalationCeiling:  64,
		MaxRounds:          24,
		MaxStalls:          3,
		MaxPatternVertices: 8,
		ConfidenceTarget:   0.99,
		Concurrency:        2,
		Retry:              backend.DefaultRetryPolicy(),
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ShotsPerRound < 1 {
		o.ShotsPerRound = def.ShotsPerRound
	}
	if o.InitialIterations < 1 {
		o.InitialIterations = def.InitialIterations
	}
	if o.EscalationCeiling < 1 {
		o.EscalationCeiling = def.EscalationCeiling
	}
	if o.MaxRounds < 1 {
		o.MaxRounds = def.MaxRounds
	}
	if o.MaxStalls < 1 {
		o.MaxStalls = def.MaxStalls
	}
	if o.MaxPatternVertices < 1 {
		o.MaxPatternVertices = def.MaxPatternVertices
	}
	if o.ConfidenceTarget <= 0 || o.ConfidenceTarget >= 1 {
		o.ConfidenceTarget = def.ConfidenceTarget
	}
	if o.Concurrency < 1 {
		o.Concurrency = def.Concurrency
	}
	if o.Retry.Attempts < 1 {
		o.Retry = def.Retry
	}
	return o
}
