// Package oracle builds the reversible comparator circuit that marks
// candidate vertex mappings which embed the pattern graph into the
// target graph.
package oracle

import (
	"errors"
	"fmt"

	"github.com/qubitlab/subisom/internal/encode"
	"github.com/qubitlab/subisom/pkg/graph"
)

// ErrIncompatibleSize is returned when the pattern graph has more
// vertices than the target graph.
var ErrIncompatibleSize = errors.New("oracle: pattern larger than target")

// ErrPatternTooLarge is returned when the pattern exceeds the
// configured vertex cap. Pairwise-distinctness checking grows
// quadratically in the pattern size, so the cap is a construction
// parameter rather than a hard-coded constant.
var ErrPatternTooLarge = errors.New("oracle: pattern exceeds size cap")

// Oracle holds the comparator construction for one (target, pattern)
// encoding pair. It owns its encodings once built, is side-effect free
// and is safe to share across concurrently dispatched shots.
type Oracle struct {
	encA *encode.Encoding
	encB *encode.Encoding

	nA, nB       int
	indexWidth   int // target index width; one candidate slot is this wide
	patternEdges []graph.Edge
}

// Build constructs the oracle for the given encodings. maxPattern caps
// the pattern vertex count (see ErrPatternTooLarge).
func Build(encA, encB *encode.Encoding, maxPattern int) (*Oracle, error) {
	if encB.VertexCount() > encA.VertexCount() {
		return nil, fmt.Errorf("%w: pattern has %d vertices, target %d",
			ErrIncompatibleSize, encB.VertexCount(), encA.VertexCount())
	}
	if maxPattern > 0 && encB.VertexCount() > maxPattern {
		return nil, fmt.Errorf("%w: pattern has %d vertices, cap is %d",
			ErrPatternTooLarge, encB.VertexCount(), maxPattern)
	}

	o := &Oracle{
		encA:       encA,
		encB:       encB,
		nA:         encA.VertexCount(),
		nB:         encB.VertexCount(),
		indexWidth: encA.IndexWidth(),
	}
	for u := 0; u < o.nB; u++ {
		for v := u + 1; v < o.nB; v++ {
			if encB.Bit(u, v) {
				o.patternEdges = append(o.patternEdges, graph.Edge{U: u, V: v})
			}
		}
	}
	return o, nil
}

// PatternVertices returns the number of pattern vertices (candidate
// register slots).
func (o *Oracle) PatternVertices() int { return o.nB }

// TargetVertices returns the number of target vertices.
func (o *Oracle) TargetVertices() int { return o.nA }

// IndexWidth returns the qubit width of one candidate slot.
func (o *Oracle) IndexWidth() int { return o.indexWidth }

// MapWidth returns the total candidate register width.
func (o *Oracle) MapWidth() int { return o.nB * o.indexWidth }

// CacheKey identifies this oracle by the fingerprints of the two
// source graphs.
func (o *Oracle) CacheKey() string {
	return o.encA.Fingerprint() + ":" + o.encB.Fingerprint()
}

// Predicate is the classical ground truth the circuits implement: the
// assignment maps every pattern vertex to a distinct in-range target
// vertex and every pattern edge to a target edge.
func (o *Oracle) Predicate(assignment []int) bool {
	if len(assignment) != o.nB {
		return false
	}
	for i, v := range assignment {
		if v < 0 || v >= o.nA {
			return false
		}
		for j := 0; j < i; j++ {
			if assignment[j] == v {
				return false
			}
		}
	}
	for _, e := range o.patternEdges {
		if !o.encA.Bit(assignment[e.U], assignment[e.V]) {
			return false
		}
	}
	return true
}

// AssignmentFromIndex decodes a candidate-register basis index into
// per-slot target vertex values (slot 0 occupies the least significant
// bits).
func (o *Oracle) AssignmentFromIndex(x uint64) []int {
	m := uint(o.indexWidth)
	mask := uint64(1)<<m - 1
	out := make([]int, o.nB)
	for i := range out {
		out[i] = int(x >> (uint(i) * m) & mask)
	}
	return out
}

// DecodeAssignment decodes a measured bit-string (one byte per
// candidate-register qubit, index order) into per-slot values.
func (o *Oracle) DecodeAssignment(bits []byte) ([]int, error) {
	if len(bits) != o.MapWidth() {
		return nil, fmt.Errorf("oracle: bit-string has %d bits, candidate register has %d", len(bits), o.MapWidth())
	}
	out := make([]int, o.nB)
	for i := range out {
		v := 0
		for b := 0; b < o.indexWidth; b++ {
			if bits[i*o.indexWidth+b] != 0 {
				v |= 1 << uint(b)
			}
		}
		out[i] = v
	}
	return out, nil
}

