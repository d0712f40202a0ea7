// Package amplify composes the oracle reflection with the diffusion
// reflection into a Grover-type iterate and manages the adaptive
// iteration-count schedule used when the number of valid embeddings is
// unknown.
package amplify

import (
	"math"

	"github.com/qubitlab/subisom/internal/circuit"
	"github.com/qubitlab/subisom/internal/oracle"
)

// Engine builds amplified-state circuits for a fixed oracle. The
// oracle's phase reflection is synthesized once and reused across
// every iteration count the schedule asks for.
type Engine struct {
	orc   *oracle.Oracle
	phase *circuit.Circuit
}

// NewEngine prepares the engine for the given oracle.
func NewEngine(orc *oracle.Oracle) *Engine {
	return &Engine{orc: orc, phase: orc.PhaseCircuit()}
}

// NewEngineWithPhase reuses a previously synthesized phase reflection,
// typically one recovered from the oracle-circuit cache, skipping the
// comparator-network synthesis.
func NewEngineWithPhase(orc *oracle.Oracle, phase *circuit.Circuit) *Engine {
	return &Engine{orc: orc, phase: phase}
}

// Oracle returns the engine's oracle.
func (e *Engine) Oracle() *oracle.Oracle { return e.orc }

// Phase returns the compiled oracle reflection.
func (e *Engine) Phase() *circuit.Circuit { return e.phase }

// Amplified returns the circuit preparing the state after k Grover
// iterates: uniform superposition over the candidate register, then k
// times the oracle reflection followed by the diffusion reflection.
// The circuit carries the oracle's full register layout (candidate
// register plus comparator ancillas); the phase reflection restores
// every ancilla to |0> per iterate, and only the candidate register is
// measured.
func (e *Engine) Amplified(k int) *circuit.Circuit {
	if k < 1 {
		k = 1
	}
	c := circuit.New(e.phase.Registers...)
	mapQubits := c.RegisterQubits("map")

	for _, q := range mapQubits {
		c.H(q)
	}
	for i := 0; i < k; i++ {
		c.Gates = append(c.Gates, e.phase.Gates...)
		diffusion(c, mapQubits)
	}

	c.Measure = mapQubits
	return c
}

// diffusion appends the reflection about the uniform superposition:
// conjugate a phase flip on |0...0> by the Hadamard basis change.
func diffusion(c *circuit.Circuit, qubits []int) {
	for _, q := range qubits {
		c.H(q)
	}
	for _, q := range qubits {
		c.X(q)
	}
	c.MCPhase(math.Pi, qubits)
	for _, q := range qubits {
		c.X(q)
	}
	for _, q := range qubits {
		c.H(q)
	}
}

// OptimalIterations returns floor(pi/4 * sqrt(space/marked)), the
// iteration count that maximizes the hit probability when the marked
// count is known. Never less than 1.
func OptimalIterations(space, marked uint64) int {
	if marked == 0 || space == 0 {
		return 1
	}
	k := int(math.Floor(math.Pi / 4 * math.Sqrt(float64(space)/float64(marked))))
	if k < 1 {
		k = 1
	}
	return k
}

// HitProbability returns the per-shot probability of measuring a
// marked state after k iterates, assuming exactly `marked` marked
// states in a space of `space`. The controller uses it with marked=1
// for its conservative confidence accounting.
func HitProbability(k int, space, marked uint64) float64 {
	if space == 0 || marked == 0 || marked > space {
		return 0
	}
	theta := math.Asin(math.Sqrt(float64(marked) / float64(space)))
	s := math.Sin(float64(2*k+1) * theta)
	return s * s
}
