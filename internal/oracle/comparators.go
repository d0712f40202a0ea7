package oracle

import (
	"github.com/qubitlab/subisom/internal/circuit"
)

// registers returns the oracle's full register layout: candidate
// register, one "edge ok" ancilla per pattern edge, one "distinct"
// ancilla per unordered pattern-vertex pair, and a marking qubit.
// eflag/dflag are omitted when empty.
func (o *Oracle) registers() []circuit.Register {
	edgeCount := len(o.patternEdges)
	pairCount := o.nB * (o.nB - 1) / 2

	regs := []circuit.Register{{Name: "map", Size: o.MapWidth()}}
	if edgeCount > 0 {
		regs = append(regs, circuit.Register{Name: "eflag", Size: edgeCount})
	}
	if pairCount > 0 {
		regs = append(regs, circuit.Register{Name: "dflag", Size: pairCount})
	}
	regs = append(regs, circuit.Register{Name: "mark", Size: 1})
	return regs
}

// network synthesizes the flag computation once and returns it with
// the flag qubit indices, shared by the bit and phase forms of the
// oracle.
func (o *Oracle) network() (compute *circuit.Circuit, flags []int) {
	compute = circuit.New(o.registers()...)
	o.computeFlags(compute)

	flags = append(flags, compute.RegisterQubits("eflag")...)
	flags = append(flags, compute.RegisterQubits("dflag")...)
	return compute, flags
}

// MarkCircuit synthesizes the explicit reversible comparator network
// in its bit-oracle form. The marking qubit ends in 1 iff every edge
// ancilla and every distinct ancilla is set, i.e. iff the full
// conjunction holds; it is never left in a partial state. All working
// ancillas are uncomputed back to zero, so the circuit is reusable and
// calling it twice on the same register state is the identity on
// everything but the marking qubit.
func (o *Oracle) MarkCircuit() *circuit.Circuit {
	compute, flags := o.network()

	c := circuit.New(o.registers()...)
	c.Gates = append(c.Gates, compute.Gates...)
	c.MCX(flags, c.Qubit("mark", 0))
	c.Gates = append(c.Gates, compute.Inverse().Gates...)

	c.Measure = c.RegisterQubits("map")
	return c
}

// PhaseCircuit is the reflection form iterated by the amplification
// engine: the comparator network's conjunction flip, conjugated by a
// |-> preparation of the marking qubit so the flip kicks back as a
// phase of pi on exactly the marked candidate-register states. Every
// ancilla, the marking qubit included, returns to |0>, so the circuit
// composes freely with itself across iterations. Note the marking
// semantics are the comparator network's: a padded out-of-range slot
// value passes the distinctness checks, which is why measured
// candidates are always re-verified classically.
func (o *Oracle) PhaseCircuit() *circuit.Circuit {
	compute, flags := o.network()

	c := circuit.New(o.registers()...)
	mark := c.Qubit("mark", 0)

	c.X(mark)
	c.H(mark)
	c.Gates = append(c.Gates, compute.Gates...)
	c.MCX(flags, mark)
	c.Gates = append(c.Gates, compute.Inverse().Gates...)
	c.H(mark)
	c.X(mark)

	c.Measure = c.RegisterQubits("map")
	return c
}

// computeFlags appends the flag computation: after it runs on a basis
// state with zeroed ancillas, eflag[e] holds "pattern edge e maps onto
// a target edge" and dflag[p] holds "the pair's two slots differ".
func (o *Oracle) computeFlags(c *circuit.Circuit) {
	m := o.indexWidth

	slot := func(i int) []int {
		qs := make([]int, m)
		for b := range qs {
			qs[b] = c.Qubit("map", i*m+b)
		}
		return qs
	}

	// Edge flags. For a fixed register basis state at most one (u, v)
	// value pair matches, so XOR accumulation over mutually exclusive
	// terms is OR.
	for e, pe := range o.patternEdges {
		target := c.Qubit("eflag", e)
		for u := 0; u < o.nA; u++ {
			for v := 0; v < o.nA; v++ {
				if u == v || !o.encA.Bit(u, v) {
					continue
				}
				o.valueControlledMCX(c, [][]int{slot(pe.U), slot(pe.V)}, []int{u, v}, target)
			}
		}
	}

	// Distinct flags: accumulate "both slots equal v" over every padded
	// value, then invert.
	padded := 1 << uint(m)
	pidx := 0
	for p := 0; p < o.nB; p++ {
		for q := p + 1; q < o.nB; q++ {
			target := c.Qubit("dflag", pidx)
			for v := 0; v < padded; v++ {
				o.valueControlledMCX(c, [][]int{slot(p), slot(q)}, []int{v, v}, target)
			}
			c.X(target)
			pidx++
		}
	}
}

// valueControlledMCX flips target when each qubit group holds its
// required value. Zero bits are X-conjugated around the MCX so the
// plain all-ones control condition tests the requested values.
func (o *Oracle) valueControlledMCX(c *circuit.Circuit, groups [][]int, values []int, target int) {
	var controls, zeros []int
	for gi, qs := range groups {
		for b, q := range qs {
			controls = append(controls, q)
			if values[gi]>>uint(b)&1 == 0 {
				zeros = append(zeros, q)
			}
		}
	}
	for _, q := range zeros {
		c.X(q)
	}
	c.MCX(controls, target)
	for _, q := range zeros {
		c.X(q)
	}
}
