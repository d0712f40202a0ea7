// Package subisom finds embeddings of a pattern graph inside a target
// graph with Grover-style amplitude amplification over permutation
// assignments. The library compiles the graph pair into a phase oracle,
// runs adaptive amplification rounds on a quantum execution backend
// (an in-process statevector simulator by default) and classically
// verifies every candidate before reporting it.
//
// A Found outcome carries a verified vertex mapping. A NotFound outcome
// is a confidence-bounded negative, never a proof of absence.
package subisom

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/qubitlab/subisom/internal/backend"
	"github.com/qubitlab/subisom/internal/backend/simulator"
	"github.com/qubitlab/subisom/internal/search"
	"github.com/qubitlab/subisom/pkg/graph"
)

// ErrAborted is returned when the execution backend keeps failing after
// the retry budget. Distinct from a NotFound outcome.
var ErrAborted = search.ErrAborted

// OutcomeStatus classifies a determinate search outcome.
type OutcomeStatus = search.Status

const (
	// NotFound means the budget was exhausted without a verified
	// embedding.
	NotFound = search.StatusNotFound
	// Found means a classically verified embedding was measured.
	Found = search.StatusFound
)

// Outcome is the result of one search.
type Outcome = search.Outcome

// Options configures a search. The zero value selects the defaults;
// see DefaultOptions.
type Options struct {
	// ShotsPerRound is the number of measurement draws per round.
	ShotsPerRound int
	// InitialIterations is the Grover iteration count of the first
	// round.
	InitialIterations int
	// EscalationCeiling caps the iteration count.
	EscalationCeiling int
	// MaxRounds bounds the total number of rounds.
	MaxRounds int
	// MaxPatternVertices caps the pattern size before oracle synthesis
	// is refused.
	MaxPatternVertices int
	// ConfidenceTarget is the NotFound confidence sampled toward after
	// the iteration schedule exhausts.
	ConfidenceTarget float64
	// Backend executes circuits. Nil selects the in-process statevector
	// simulator seeded with Seed.
	Backend backend.Backend
	// Seed makes escalation draws (and the default simulator)
	// deterministic. Zero seeds from the clock.
	Seed int64
	// Logger receives structured search logs. Nil disables logging.
	Logger *zerolog.Logger
}

// DefaultOptions returns the library defaults.
func DefaultOptions() Options {
	def := search.DefaultOptions()
	return Options{
		ShotsPerRound:      def.ShotsPerRound,
		InitialIterations:  def.InitialIterations,
		EscalationCeiling:  def.EscalationCeiling,
		MaxRounds:          def.MaxRounds,
		MaxPatternVertices: def.MaxPatternVertices,
		ConfidenceTarget:   def.ConfidenceTarget,
	}
}

// FindSubgraphEmbedding searches for an embedding of pattern inside
// target. Structural input errors (invalid graphs, a pattern larger
// than the target or over the vertex cap) and exhausted backend
// retries surface as errors; running out of amplification budget is a
// NotFound outcome with its confidence bound, not an error.
func FindSubgraphEmbedding(ctx context.Context, target, pattern *graph.Graph, opts Options) (Outcome, error) {
	be := opts.Backend
	if be == nil {
		be = simulator.New(opts.Seed)
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	inner := search.Options{
		ShotsPerRound:      opts.ShotsPerRound,
		InitialIterations:  opts.InitialIterations,
		EscalationCeiling:  opts.EscalationCeiling,
		MaxRounds:          opts.MaxRounds,
		MaxPatternVertices: opts.MaxPatternVertices,
		ConfidenceTarget:   opts.ConfidenceTarget,
		Seed:               opts.Seed,
	}

	return search.New(target, pattern, be, inner, log).Search(ctx)
}
