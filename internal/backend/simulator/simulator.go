// Package simulator implements the circuit execution backend as a
// dense statevector simulation. It is the default backend for tests
// and for deployments without an external execution service.
package simulator

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/qubitlab/subisom/internal/backend"
	"github.com/qubitlab/subisom/internal/circuit"
)

// MaxQubits is the default width ceiling; a 2^26 statevector is the
// largest this backend will allocate (1 GiB of complex128).
const MaxQubits = 26

const invSqrt2 = 1.0 / math.Sqrt2

// Simulator is a seeded dense statevector backend. Measurement draws
// come from a single RNG stream, so runs with the same seed and the
// same request sequence reproduce the same outcomes while shots remain
// i.i.d. draws from the amplified distribution.
type Simulator struct {
	maxQubits int

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a simulator seeded with seed. A zero seed draws one from
// the wall clock instead, so unseeded runs differ between processes.
func New(seed int64) *Simulator {
	return &Simulator{
		maxQubits: MaxQubits,
		rng:       rand.New(rand.NewSource(seedOrClock(seed))),
	}
}

func seedOrClock(seed int64) int64 {
	if seed == 0 {
		return time.Now().UnixNano()
	}
	return seed
}

// Name implements backend.Backend.
func (s *Simulator) Name() string { return "statevector-simulator" }

// Execute implements backend.Backend. It simulates the circuit once
// from |0...0> and samples the requested number of measurement
// outcomes over the circuit's Measure qubits.
func (s *Simulator) Execute(ctx context.Context, c *circuit.Circuit, shots int) ([]backend.Bitstring, error) {
	if shots < 1 {
		return nil, fmt.Errorf("%w: shot count %d", backend.ErrExecution, shots)
	}
	if c.Width() > s.maxQubits {
		return nil, fmt.Errorf("%w: circuit needs %d qubits, simulator ceiling is %d",
			backend.ErrExecution, c.Width(), s.maxQubits)
	}

	state, err := RunFrom(ctx, c, 0)
	if err != nil {
		return nil, err
	}

	probs := make([]float64, len(state))
	for i, a := range state {
		probs[i] = real(a)*real(a) + imag(a)*imag(a)
	}
	cum := make([]float64, len(probs))
	floats.CumSum(cum, probs)
	total := cum[len(cum)-1]
	if total <= 0 || math.IsNaN(total) {
		return nil, fmt.Errorf("%w: statevector norm collapsed", backend.ErrExecution)
	}

	measure := c.Measure
	if len(measure) == 0 {
		measure = make([]int, c.Width())
		for q := range measure {
			measure[q] = q
		}
	}

	out := make([]backend.Bitstring, shots)
	s.mu.Lock()
	draws := make([]float64, shots)
	for i := range draws {
		draws[i] = s.rng.Float64() * total
	}
	s.mu.Unlock()

	for i, r := range draws {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idx := searchCum(cum, r)
		bits := make(backend.Bitstring, len(measure))
		for b, q := range measure {
			bits[b] = byte(idx >> uint(q) & 1)
		}
		out[i] = bits
	}
	return out, nil
}

func searchCum(cum []float64, r float64) int {
	lo, hi := 0, len(cum)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if cum[mid] <= r {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// RunFrom applies the circuit's gates to the basis state |initial> and
// returns the final statevector. Exported so white-box tests can check
// gate-level semantics (the oracle equivalence tests drive every basis
// state through the comparator network).
func RunFrom(ctx context.Context, c *circuit.Circuit, initial uint64) ([]complex128, error) {
	width := c.Width()
	dim := uint64(1) << uint(width)
	if initial >= dim {
		return nil, fmt.Errorf("%w: initial state %d outside %d-qubit space", backend.ErrExecution, initial, width)
	}

	state := make([]complex128, dim)
	state[initial] = 1

	for gi, g := range c.Gates {
		if gi%8 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := applyGate(state, g); err != nil {
			return nil, err
		}
	}
	return state, nil
}

func applyGate(state []complex128, g circuit.Gate) error {
	switch g.Kind {
	case circuit.GateH:
		applyH(state, g.Target)
	case circuit.GateX:
		applyX(state, g.Target)
	case circuit.GateZ:
		applyPhaseOnBit(state, g.Target, math.Pi)
	case circuit.GateCP:
		applyControlledPhase(state, append([]int{g.Target}, g.Controls...), g.Theta)
	case circuit.GateMCX:
		applyMCX(state, g.Controls, g.Target)
	case circuit.GateMCPhase:
		applyControlledPhase(state, g.Controls, g.Theta)
	case circuit.GateDiagonal:
		applyDiagonal(state, g.Qubits, g.Phases)
	default:
		return fmt.Errorf("%w: unknown gate kind %d", backend.ErrExecution, g.Kind)
	}
	return nil
}

func applyH(state []complex128, q int) {
	bit := uint64(1) << uint(q)
	for i := uint64(0); i < uint64(len(state)); i++ {
		if i&bit != 0 {
			continue
		}
		j := i | bit
		a, b := state[i], state[j]
		state[i] = complex(invSqrt2, 0) * (a + b)
		state[j] = complex(invSqrt2, 0) * (a - b)
	}
}

func applyX(state []complex128, q int) {
	bit := uint64(1) << uint(q)
	for i := uint64(0); i < uint64(len(state)); i++ {
		if i&bit == 0 {
			state[i], state[i|bit] = state[i|bit], state[i]
		}
	}
}

func applyPhaseOnBit(state []complex128, q int, theta float64) {
	bit := uint64(1) << uint(q)
	phase := cmplx.Exp(complex(0, theta))
	for i := uint64(0); i < uint64(len(state)); i++ {
		if i&bit != 0 {
			state[i] *= phase
		}
	}
}

// applyControlledPhase applies phase theta to every basis state where
// all listed qubits are 1. With an empty qubit list it is a global
// phase.
func applyControlledPhase(state []complex128, qubits []int, theta float64) {
	var mask uint64
	for _, q := range qubits {
		mask |= uint64(1) << uint(q)
	}
	phase := cmplx.Exp(complex(0, theta))
	for i := uint64(0); i < uint64(len(state)); i++ {
		if i&mask == mask {
			state[i] *= phase
		}
	}
}

func applyMCX(state []complex128, controls []int, target int) {
	var mask uint64
	for _, q := range controls {
		mask |= uint64(1) << uint(q)
	}
	bit := uint64(1) << uint(target)
	for i := uint64(0); i < uint64(len(state)); i++ {
		if i&mask == mask && i&bit == 0 {
			state[i], state[i|bit] = state[i|bit], state[i]
		}
	}
}

func applyDiagonal(state []complex128, qubits []int, phases []float64) {
	for i := uint64(0); i < uint64(len(state)); i++ {
		addr := 0
		for b, q := range qubits {
			addr |= int(i>>uint(q)&1) << uint(b)
		}
		p := phases[addr]
		if p != 0 {
			state[i] *= cmplx.Exp(complex(0, p))
		}
	}
}
