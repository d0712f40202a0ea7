package amplify

import (
	"fmt"
	"math/rand"
	"time"
)

// State enumerates the schedule's lifecycle.
type State int

const (
	// StateInitializing is the state before Begin.
	StateInitializing State = iota
	// StateAmplifying means an iteration count is chosen and a circuit
	// may be built for it.
	StateAmplifying
	// StateAwaitingMeasurement means shots for the current round were
	// requested and their outcome decides the next transition.
	StateAwaitingMeasurement
	// StateEscalating is the transient state while the next iteration
	// count is drawn; observable only through Fail's return value.
	StateEscalating
	// StateExhausted is terminal: the ceiling held for the configured
	// number of rounds without a verified mapping.
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAmplifying:
		return "amplifying"
	case StateAwaitingMeasurement:
		return "awaiting_measurement"
	case StateEscalating:
		return "escalating"
	case StateExhausted:
		return "exhausted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Schedule drives the unknown-solution-count iteration strategy: start
// small and escalate geometrically, drawing each next count uniformly
// from [k, 2k] so a wrong guess of the marked fraction cannot lock the
// search onto a consistently bad rotation angle. After MaxStalls
// rounds at the ceiling the schedule reports exhaustion.
type Schedule struct {
	initial   int
	ceiling   int
	maxStalls int

	rng    *rand.Rand
	state  State
	k      int
	stalls int
	rounds int
}

// NewSchedule creates a schedule. initial and ceiling are clamped to
// at least 1; maxStalls to at least 1. A zero seed draws one from the
// wall clock.
func NewSchedule(initial, ceiling, maxStalls int, seed int64) *Schedule {
	if initial < 1 {
		initial = 1
	}
	if ceiling < initial {
		ceiling = initial
	}
	if maxStalls < 1 {
		maxStalls = 1
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Schedule{
		initial:   initial,
		ceiling:   ceiling,
		maxStalls: maxStalls,
		rng:       rand.New(rand.NewSource(seed)),
		state:     StateInitializing,
	}
}

// State returns the current state.
func (s *Schedule) State() State { return s.state }

// K returns the current iteration count; zero before Begin.
func (s *Schedule) K() int { return s.k }

// Rounds returns the number of completed (failed) rounds so far.
func (s *Schedule) Rounds() int { return s.rounds }

// Begin transitions Initializing -> Amplifying with the initial
// iteration count and returns it.
func (s *Schedule) Begin() int {
	if s.state != StateInitializing {
		return s.k
	}
	s.k = s.initial
	s.state = StateAmplifying
	return s.k
}

// AwaitMeasurement transitions Amplifying -> AwaitingMeasurement.
func (s *Schedule) AwaitMeasurement() {
	if s.state == StateAmplifying {
		s.state = StateAwaitingMeasurement
	}
}

// Fail records a round in which no shot verified. It escalates the
// iteration count (or counts a stall at the ceiling) and returns the
// resulting state: Amplifying with a fresh k, or Exhausted.
func (s *Schedule) Fail() State {
	if s.state != StateAwaitingMeasurement {
		return s.state
	}
	s.rounds++
	s.state = StateEscalating

	if s.k >= s.ceiling {
		s.stalls++
		if s.stalls >= s.maxStalls {
			s.state = StateExhausted
			return s.state
		}
		s.state = StateAmplifying
		return s.state
	}

	// Uniform draw from [k, 2k], clamped to the ceiling.
	next := s.k + s.rng.Intn(s.k+1)
	if next > s.ceiling {
		next = s.ceiling
	}
	if next == s.k {
		next++ // always make progress toward the ceiling
		if next > s.ceiling {
			next = s.ceiling
		}
	}
	s.k = next
	s.state = StateAmplifying
	return s.state
}
