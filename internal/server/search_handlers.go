package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/qubitlab/subisom/internal/backend"
	"github.com/qubitlab/subisom/internal/cache"
	"github.com/qubitlab/subisom/internal/config"
	"github.com/qubitlab/subisom/internal/events"
	"github.com/qubitlab/subisom/internal/oracle"
	"github.com/qubitlab/subisom/internal/search"
	"github.com/qubitlab/subisom/pkg/graph"
)

// SearchHandlers serves the search API.
type SearchHandlers struct {
	backend backend.Backend
	store   *cache.Store
	bus     *events.Bus
	cfg     *config.Config
	log     zerolog.Logger
}

// NewSearchHandlers creates the search API handlers.
func NewSearchHandlers(be backend.Backend, store *cache.Store, bus *events.Bus, cfg *config.Config, log zerolog.Logger) *SearchHandlers {
	return &SearchHandlers{
		backend: be,
		store:   store,
		bus:     bus,
		cfg:     cfg,
		log:     log.With().Str("component", "search_api").Logger(),
	}
}

type graphPayload struct {
	Vertices int      `json:"vertices"`
	Edges    [][2]int `json:"edges"`
}

type searchOptionsPayload struct {
	ShotsPerRound      *int     `json:"shots_per_round,omitempty"`
	InitialIterations  *int     `json:"initial_iterations,omitempty"`
	EscalationCeiling  *int     `json:"escalation_ceiling,omitempty"`
	MaxRounds          *int     `json:"max_rounds,omitempty"`
	MaxPatternVertices *int     `json:"max_pattern_vertices,omitempty"`
	ConfidenceTarget   *float64 `json:"confidence_target,omitempty"`
	Seed               *int64   `json:"seed,omitempty"`
	TimeoutSeconds     *int     `json:"timeout_seconds,omitempty"`
}

type searchRequest struct {
	Target  graphPayload          `json:"target"`
	Pattern graphPayload          `json:"pattern"`
	Options *searchOptionsPayload `json:"options,omitempty"`
}

type searchResponse struct {
	RunID      string  `json:"run_id"`
	Status     string  `json:"status"`
	Mapping    []int   `json:"mapping,omitempty"`
	Confidence float64 `json:"confidence"`
	Rounds     int     `json:"rounds"`
	Shots      int     `json:"shots"`
	DurationMS float64 `json:"duration_ms"`
}

func buildGraph(p graphPayload) (*graph.Graph, error) {
	edges := make([]graph.Edge, len(p.Edges))
	for i, e := range p.Edges {
		edges[i] = graph.Edge{U: e[0], V: e[1]}
	}
	return graph.New(p.Vertices, edges)
}

// options merges request overrides over the configured defaults.
func (h *SearchHandlers) options(payload *searchOptionsPayload) search.Options {
	opts := search.DefaultOptions()
	opts.ShotsPerRound = h.cfg.Search.ShotsPerRound
	opts.EscalationCeiling = h.cfg.Search.EscalationCeiling
	opts.MaxRounds = h.cfg.Search.MaxRounds
	opts.MaxPatternVertices = h.cfg.Search.MaxPatternVertices
	opts.Concurrency = h.cfg.Search.Concurrency
	opts.Seed = h.cfg.Seed
	if h.store != nil {
		opts.Cache = h.store
	}

	if payload == nil {
		return opts
	}
	if payload.ShotsPerRound != nil {
		opts.ShotsPerRound = *payload.ShotsPerRound
	}
	if payload.InitialIterations != nil {
		opts.InitialIterations = *payload.InitialIterations
	}
	if payload.EscalationCeiling != nil {
		opts.EscalationCeiling = *payload.EscalationCeiling
	}
	if payload.MaxRounds != nil {
		opts.MaxRounds = *payload.MaxRounds
	}
	if payload.MaxPatternVertices != nil {
		opts.MaxPatternVertices = *payload.MaxPatternVertices
	}
	if payload.ConfidenceTarget != nil {
		opts.ConfidenceTarget = *payload.ConfidenceTarget
	}
	if payload.Seed != nil {
		opts.Seed = *payload.Seed
	}
	return opts
}

// HandleSearch runs a search to completion and returns the outcome.
// A not-found outcome is a successful response; only structural
// errors and backend failures produce error statuses.
func (h *SearchHandlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.log, w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	target, err := buildGraph(req.Target)
	if err != nil {
		writeError(h.log, w, http.StatusBadRequest, "target: "+err.Error())
		return
	}
	pattern, err := buildGraph(req.Pattern)
	if err != nil {
		writeError(h.log, w, http.StatusBadRequest, "pattern: "+err.Error())
		return
	}

	opts := h.options(req.Options)
	opts.OnProgress = func(p search.Progress) {
		h.bus.Publish("search", &events.SearchProgressData{
			RunID:      p.RunID,
			Round:      p.Round,
			Iterations: p.Iterations,
			Shots:      p.Shots,
			TotalShots: p.TotalShots,
			Confidence: p.Confidence,
			State:      p.State,
		})
	}

	ctx := r.Context()
	if req.Options != nil && req.Options.TimeoutSeconds != nil && *req.Options.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(*req.Options.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	ctrl := search.New(target, pattern, h.backend, opts, h.log)
	h.bus.Publish("search", &events.SearchStartedData{
		RunID:           ctrl.RunID(),
		TargetVertices:  target.VertexCount(),
		PatternVertices: pattern.VertexCount(),
		Backend:         h.backend.Name(),
	})

	start := time.Now()
	outcome, err := ctrl.Search(ctx)
	if err != nil {
		h.bus.Publish("search", &events.SearchFailedData{RunID: ctrl.RunID(), Error: err.Error()})
		switch {
		case errors.Is(err, oracle.ErrIncompatibleSize), errors.Is(err, oracle.ErrPatternTooLarge):
			writeError(h.log, w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			writeError(h.log, w, http.StatusGatewayTimeout, "search timed out")
		case errors.Is(err, context.Canceled):
			// Client went away; the status is never seen but close the
			// exchange cleanly.
			writeError(h.log, w, http.StatusServiceUnavailable, "search cancelled")
		case errors.Is(err, search.ErrAborted):
			writeError(h.log, w, http.StatusBadGateway, err.Error())
		default:
			writeError(h.log, w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	duration := time.Since(start)
	h.bus.Publish("search", &events.SearchCompletedData{
		RunID:      outcome.RunID,
		Status:     outcome.Status.String(),
		Mapping:    outcome.Mapping,
		Confidence: outcome.Confidence,
		Rounds:     outcome.Rounds,
		Shots:      outcome.Shots,
		DurationMS: float64(duration.Milliseconds()),
	})

	writeJSON(h.log, w, http.StatusOK, searchResponse{
		RunID:      outcome.RunID,
		Status:     outcome.Status.String(),
		Mapping:    outcome.Mapping,
		Confidence: outcome.Confidence,
		Rounds:     outcome.Rounds,
		Shots:      outcome.Shots,
		DurationMS: float64(duration.Milliseconds()),
	})
}
