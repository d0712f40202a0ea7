package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/qubitlab/subisom/internal/amplify"
	"github.com/qubitlab/subisom/internal/backend"
	"github.com/qubitlab/subisom/internal/circuit"
	"github.com/qubitlab/subisom/internal/encode"
	"github.com/qubitlab/subisom/internal/oracle"
	"github.com/qubitlab/subisom/pkg/graph"
)

// Controller owns the retry/iteration state of one search invocation.
// The graphs and the backend are shared references; everything mutable
// lives on the controller and dies with it.
type Controller struct {
	target  *graph.Graph
	pattern *graph.Graph
	backend backend.Backend
	opts    Options
	log     zerolog.Logger
	runID   string
}

// New creates a controller for one (target, pattern) search.
func New(target, pattern *graph.Graph, be backend.Backend, opts Options, log zerolog.Logger) *Controller {
	runID := uuid.NewString()
	return &Controller{
		target:  target,
		pattern: pattern,
		backend: be,
		opts:    opts.withDefaults(),
		log:     log.With().Str("component", "search").Str("run_id", runID).Logger(),
		runID:   runID,
	}
}

// RunID returns the invocation identifier.
func (c *Controller) RunID() string { return c.runID }

// Search runs the amplification rounds to a determinate outcome.
// Structural input errors and exhausted backend retries surface as
// errors; algorithmic non-discovery is a NotFound outcome, never an
// error.
func (c *Controller) Search(ctx context.Context) (Outcome, error) {
	encA, err := encode.Encode(c.target)
	if err != nil {
		return Outcome{}, err
	}
	encB, err := encode.Encode(c.pattern)
	if err != nil {
		return Outcome{}, err
	}
	orc, err := oracle.Build(encA, encB, c.opts.MaxPatternVertices)
	if err != nil {
		return Outcome{}, err
	}

	engine := c.buildEngine(orc)

	space := uint64(1) << uint(orc.MapWidth())
	sched := amplify.NewSchedule(c.opts.InitialIterations, c.opts.EscalationCeiling, c.opts.MaxStalls, c.opts.Seed)
	k := sched.Begin()

	c.log.Info().
		Int("target_vertices", c.target.VertexCount()).
		Int("pattern_vertices", c.pattern.VertexCount()).
		Int("register_width", orc.MapWidth()).
		Str("backend", c.backend.Name()).
		Msg("Search started")

	var records []roundRecord
	totalShots := 0
	exhausted := false
	cancelled := false

	for len(records) < c.opts.MaxRounds {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		circ := engine.Amplified(k)
		sched.AwaitMeasurement()
		shots, execErr := c.executeRound(ctx, circ)

		if len(shots) > 0 {
			totalShots += len(shots)
			records = append(records, roundRecord{iterations: k, shots: len(shots)})

			if mapping, ok := c.findVerified(orc, shots); ok {
				c.log.Info().
					Ints("mapping", mapping).
					Int("rounds", len(records)).
					Int("shots", totalShots).
					Msg("Verified embedding found")
				out := Outcome{
					Status:     StatusFound,
					Mapping:    mapping,
					Confidence: 1,
					Rounds:     len(records),
					Shots:      totalShots,
					RunID:      c.runID,
				}
				c.emitProgress(len(records), k, len(shots), totalShots, 1, "found")
				return out, nil
			}
		}

		if execErr != nil {
			if errors.Is(execErr, context.Canceled) || errors.Is(execErr, context.DeadlineExceeded) {
				cancelled = true
				break
			}
			c.log.Error().Err(execErr).Msg("Backend retries exhausted, aborting search")
			return Outcome{}, fmt.Errorf("%w: %w", ErrAborted, execErr)
		}

		conf := confidence(records, space)
		if !exhausted {
			if sched.Fail() == amplify.StateExhausted {
				exhausted = true
				c.log.Debug().Int("ceiling", k).Msg("Escalation ceiling exhausted")
			} else {
				k = sched.K()
			}
		}

		state := "escalating"
		if exhausted {
			state = "exhausted"
		}
		c.emitProgress(len(records), k, c.opts.ShotsPerRound, totalShots, conf, state)
		c.log.Debug().
			Int("round", len(records)).
			Int("iterations", k).
			Float64("confidence", conf).
			Msg("Round completed without a verified mapping")

		if exhausted && conf >= c.opts.ConfidenceTarget {
			break
		}
	}

	conf := confidence(records, space)
	out := Outcome{
		Status:     StatusNotFound,
		Confidence: conf,
		Rounds:     len(records),
		Shots:      totalShots,
		RunID:      c.runID,
	}

	if cancelled {
		c.log.Info().
			Int("rounds", len(records)).
			Int("shots", totalShots).
			Msg("Search cancelled")
		// The partial outcome still carries the completed accounting.
		return out, ctx.Err()
	}

	c.log.Info().
		Int("rounds", len(records)).
		Int("shots", totalShots).
		Float64("confidence", conf).
		Float64("mean_hit_bound", meanHitBound(records, space)).
		Msg("Search exhausted without a verified embedding")
	c.emitProgress(len(records), k, 0, totalShots, conf, "not_found")
	return out, nil
}

// buildEngine synthesizes the oracle reflection, consulting the
// optional cache keyed by the graph-pair fingerprints.
func (c *Controller) buildEngine(orc *oracle.Oracle) *amplify.Engine {
	if c.opts.Cache != nil {
		if payload, ok := c.opts.Cache.Get(orc.CacheKey()); ok {
			phase, err := circuit.Unmarshal(payload)
			if err == nil {
				c.log.Debug().Msg("Oracle reflection loaded from cache")
				return amplify.NewEngineWithPhase(orc, phase)
			}
			c.log.Warn().Err(err).Msg("Discarding corrupt cached oracle circuit")
		}
	}

	engine := amplify.NewEngine(orc)

	if c.opts.Cache != nil {
		if payload, err := engine.Phase().Marshal(); err == nil {
			c.opts.Cache.Put(orc.CacheKey(), payload)
		}
	}
	return engine
}

// executeRound fans the round's shots out over the configured number
// of concurrent execution requests and returns every bit-string that
// completed. The per-request retry policy absorbs transient backend
// failures; a returned error means either cancellation or an exhausted
// retry budget, and the completed shots are still returned so the
// caller can account for them.
func (c *Controller) executeRound(ctx context.Context, circ *circuit.Circuit) ([]backend.Bitstring, error) {
	batches := c.opts.Concurrency
	if batches > c.opts.ShotsPerRound {
		batches = c.opts.ShotsPerRound
	}

	sizes := make([]int, batches)
	for i := range sizes {
		sizes[i] = c.opts.ShotsPerRound / batches
	}
	for i := 0; i < c.opts.ShotsPerRound%batches; i++ {
		sizes[i]++
	}

	results := make([][]backend.Bitstring, batches)
	errs := make([]error, batches)

	var wg sync.WaitGroup
	for i, n := range sizes {
		wg.Add(1)
		go func(i, n int) {
			defer wg.Done()
			errs[i] = backend.Retry(ctx, c.opts.Retry, func() error {
				out, err := c.backend.Execute(ctx, circ, n)
				if err != nil {
					return err
				}
				results[i] = out
				return nil
			})
		}(i, n)
	}
	wg.Wait()

	var all []backend.Bitstring
	for _, r := range results {
		all = append(all, r...)
	}

	var ctxErr error
	for _, e := range errs {
		if e == nil {
			continue
		}
		if errors.Is(e, context.Canceled) || errors.Is(e, context.DeadlineExceeded) {
			ctxErr = e
			continue
		}
		return all, e
	}
	return all, ctxErr
}

// findVerified decodes and classically verifies shots until the first
// valid embedding; remaining shots in the round are skipped.
func (c *Controller) findVerified(orc *oracle.Oracle, shots []backend.Bitstring) ([]int, bool) {
	for _, bits := range shots {
		assignment, err := orc.DecodeAssignment(bits)
		if err != nil {
			c.log.Warn().Err(err).Msg("Dropping malformed measurement")
			continue
		}
		if verifyEmbedding(c.target, c.pattern, assignment) {
			return assignment, true
		}
	}
	return nil, false
}

func (c *Controller) emitProgress(round, iterations, shots, totalShots int, conf float64, state string) {
	if c.opts.OnProgress == nil {
		return
	}
	c.opts.OnProgress(Progress{
		RunID:      c.runID,
		Round:      round,
		Iterations: iterations,
		Shots:      shots,
		TotalShots: totalShots,
		Confidence: conf,
		State:      state,
	})
}
