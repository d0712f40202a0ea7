// Package encode builds the logarithmic-width adjacency encoding of a
// graph: every unordered vertex pair is addressed by the concatenation
// of two index registers, and the adjacency bit at that address is
// represented as a diagonal phase pattern selected by one ancilla.
package encode

import (
	"errors"
	"math"
	"math/bits"

	"github.com/qubitlab/subisom/internal/circuit"
	"github.com/qubitlab/subisom/pkg/graph"
)

// ErrNilGraph is returned when Encode is handed a nil graph.
var ErrNilGraph = errors.New("encode: nil graph")

// Encoding is the adjacency encoding of one graph. It is a pure
// function of the graph: re-encoding the same graph produces a
// structurally identical encoding, including the state-preparation
// circuit. Immutable after construction.
type Encoding struct {
	fingerprint string
	n           int
	indexWidth  int
	padded      int
	bits        []bool
	prep        *circuit.Circuit
}

// Encode builds the encoding of g. The index width is
// max(1, ceil(log2(n))); a single-vertex graph gets the trivial
// constant-zero encoding rather than an error.
func Encode(g *graph.Graph) (*Encoding, error) {
	if g == nil {
		return nil, ErrNilGraph
	}

	n := g.VertexCount()
	m := indexWidth(n)
	padded := 1 << uint(m)

	adj, err := g.PaddedAdjacency(padded)
	if err != nil {
		return nil, err
	}

	enc := &Encoding{
		fingerprint: g.Fingerprint(),
		n:           n,
		indexWidth:  m,
		padded:      padded,
		bits:        make([]bool, padded*padded),
	}
	for u := 0; u < padded; u++ {
		for v := 0; v < padded; v++ {
			enc.bits[u<<uint(m)|v] = adj.At(u, v) != 0
		}
	}

	enc.prep = enc.buildStatePrep()
	return enc, nil
}

func indexWidth(n int) int {
	if n <= 2 {
		return 1
	}
	return bits.Len(uint(n - 1))
}

// buildStatePrep produces the diagonal-phase fragment over registers
// j (index width, least significant), i (index width) and a (one
// ancilla, most significant). The ancilla selects the adjacency block:
// phase pi*adj[i<<m|j] when a=1, phase 0 when a=0, mirroring the
// flattened [zeros, adj] diagonal layout.
func (e *Encoding) buildStatePrep() *circuit.Circuit {
	m := e.indexWidth
	c := circuit.New(
		circuit.Register{Name: "j", Size: m},
		circuit.Register{Name: "i", Size: m},
		circuit.Register{Name: "a", Size: 1},
	)

	width := 2*m + 1
	phases := make([]float64, 1<<uint(width))
	block := 1 << uint(2*m)
	for addr := 0; addr < block; addr++ {
		if e.bits[addr] {
			phases[block|addr] = math.Pi
		}
	}

	qubits := make([]int, width)
	for q := range qubits {
		qubits[q] = q
	}
	// Phase count matches 1<<width by construction.
	_ = c.Diagonal(phases, qubits)
	return c
}

// VertexCount returns the logical vertex count of the source graph.
func (e *Encoding) VertexCount() int { return e.n }

// IndexWidth returns the number of qubits per vertex-index axis.
func (e *Encoding) IndexWidth() int { return e.indexWidth }

// PaddedSize returns the power-of-two dimension the adjacency table
// was zero-extended to.
func (e *Encoding) PaddedSize() int { return e.padded }

// Fingerprint returns the fingerprint of the source graph.
func (e *Encoding) Fingerprint() string { return e.fingerprint }

// Bit reports the adjacency bit at the padded address (u, v). Padded
// (out-of-range) addresses are always false.
func (e *Encoding) Bit(u, v int) bool {
	if u < 0 || v < 0 || u >= e.padded || v >= e.padded {
		return false
	}
	return e.bits[u<<uint(e.indexWidth)|v]
}

// StatePrep returns the diagonal state-preparation fragment. Callers
// must treat the returned circuit as read-only.
func (e *Encoding) StatePrep() *circuit.Circuit { return e.prep }
