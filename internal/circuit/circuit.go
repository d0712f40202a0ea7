// Package circuit defines the gate-level intermediate representation
// shared by the encoder, the oracle builder, the amplification engine
// and the execution backends. Circuits are plain data: an ordered list
// of named registers and an ordered list of gates over absolute qubit
// indices (qubit 0 is the least significant bit of a basis-state
// index).
package circuit

import (
	"fmt"
	"strings"
)

// GateKind enumerates the gate set of the IR.
type GateKind uint8

const (
	// GateH is a Hadamard on Target.
	GateH GateKind = iota
	// GateX is a Pauli-X on Target.
	GateX
	// GateZ is a Pauli-Z on Target.
	GateZ
	// GateCP applies phase Theta to Target when the single control is set.
	GateCP
	// GateMCX flips Target when every control is set. With no controls it
	// degenerates to a plain X.
	GateMCX
	// GateMCPhase applies phase Theta when every listed control is set.
	// There is no target distinction; the gate is symmetric in its
	// controls. With no controls it is a global phase.
	GateMCPhase
	// GateDiagonal applies Phases[addr] to each basis state, where addr
	// is read from Qubits (Qubits[0] = least significant address bit).
	GateDiagonal
)

// Gate is one operation in a circuit. Which fields are meaningful
// depends on Kind.
type Gate struct {
	Kind     GateKind  `msgpack:"k"`
	Target   int       `msgpack:"t"`
	Controls []int     `msgpack:"c,omitempty"`
	Theta    float64   `msgpack:"th,omitempty"`
	Phases   []float64 `msgpack:"p,omitempty"`
	Qubits   []int     `msgpack:"q,omitempty"`
}

// Register is a named contiguous block of qubits.
type Register struct {
	Name string `msgpack:"n"`
	Size int    `msgpack:"s"`
}

// Circuit is an ordered gate list over a fixed register layout.
// Measure lists the qubits whose values a backend reports per shot, in
// bit-string order (index 0 first).
type Circuit struct {
	Registers []Register `msgpack:"regs"`
	Gates     []Gate     `msgpack:"gates"`
	Measure   []int      `msgpack:"measure,omitempty"`
}

// New creates an empty circuit over the given registers.
func New(regs ...Register) *Circuit {
	return &Circuit{Registers: regs}
}

// Width returns the total number of qubits.
func (c *Circuit) Width() int {
	w := 0
	for _, r := range c.Registers {
		w += r.Size
	}
	return w
}

// RegisterQubits returns the absolute qubit indices of the named
// register, or nil when no such register exists.
func (c *Circuit) RegisterQubits(name string) []int {
	offset := 0
	for _, r := range c.Registers {
		if r.Name == name {
			qs := make([]int, r.Size)
			for i := range qs {
				qs[i] = offset + i
			}
			return qs
		}
		offset += r.Size
	}
	return nil
}

// Qubit resolves a (register, offset) pair to an absolute index. It
// panics on an unknown register or out-of-range offset; register
// layouts are fixed at construction time, so a miss is a programmer
// error.
func (c *Circuit) Qubit(reg string, i int) int {
	qs := c.RegisterQubits(reg)
	if qs == nil || i < 0 || i >= len(qs) {
		panic(fmt.Sprintf("circuit: no qubit %d in register %q", i, reg))
	}
	return qs[i]
}

// H appends a Hadamard.
func (c *Circuit) H(q int) { c.Gates = append(c.Gates, Gate{Kind: GateH, Target: q}) }

// X appends a Pauli-X.
func (c *Circuit) X(q int) { c.Gates = append(c.Gates, Gate{Kind: GateX, Target: q}) }

// Z appends a Pauli-Z.
func (c *Circuit) Z(q int) { c.Gates = append(c.Gates, Gate{Kind: GateZ, Target: q}) }

// CP appends a controlled phase.
func (c *Circuit) CP(theta float64, control, target int) {
	c.Gates = append(c.Gates, Gate{Kind: GateCP, Target: target, Controls: []int{control}, Theta: theta})
}

// MCX appends a multi-controlled X. The control slice is copied.
func (c *Circuit) MCX(controls []int, target int) {
	cs := make([]int, len(controls))
	copy(cs, controls)
	c.Gates = append(c.Gates, Gate{Kind: GateMCX, Target: target, Controls: cs})
}

// MCPhase appends a multi-controlled phase.
func (c *Circuit) MCPhase(theta float64, controls []int) {
	cs := make([]int, len(controls))
	copy(cs, controls)
	c.Gates = append(c.Gates, Gate{Kind: GateMCPhase, Controls: cs, Theta: theta})
}

// Diagonal appends a diagonal phase gate over the given address
// qubits. len(phases) must equal 1<<len(qubits).
func (c *Circuit) Diagonal(phases []float64, qubits []int) error {
	if len(phases) != 1<<uint(len(qubits)) {
		return fmt.Errorf("circuit: diagonal over %d qubits needs %d phases, got %d",
			len(qubits), 1<<uint(len(qubits)), len(phases))
	}
	ps := make([]float64, len(phases))
	copy(ps, phases)
	qs := make([]int, len(qubits))
	copy(qs, qubits)
	c.Gates = append(c.Gates, Gate{Kind: GateDiagonal, Phases: ps, Qubits: qs})
	return nil
}

// Compose appends sub's gates, remapping sub's qubit i to at[i]. The
// register layouts are not merged; at must cover sub's full width.
func (c *Circuit) Compose(sub *Circuit, at []int) error {
	if len(at) != sub.Width() {
		return fmt.Errorf("circuit: compose mapping covers %d qubits, sub-circuit has %d", len(at), sub.Width())
	}
	for _, g := range sub.Gates {
		c.Gates = append(c.Gates, remapGate(g, at))
	}
	return nil
}

func remapGate(g Gate, at []int) Gate {
	out := Gate{Kind: g.Kind, Theta: g.Theta}
	switch g.Kind {
	case GateH, GateX, GateZ, GateCP, GateMCX:
		out.Target = at[g.Target]
	}
	if len(g.Controls) > 0 {
		out.Controls = make([]int, len(g.Controls))
		for i, q := range g.Controls {
			out.Controls[i] = at[q]
		}
	}
	if len(g.Qubits) > 0 {
		out.Qubits = make([]int, len(g.Qubits))
		for i, q := range g.Qubits {
			out.Qubits[i] = at[q]
		}
	}
	if len(g.Phases) > 0 {
		out.Phases = make([]float64, len(g.Phases))
		copy(out.Phases, g.Phases)
	}
	return out
}

// Inverse returns the adjoint circuit: gates in reverse order with
// phases negated. Every gate kind in the IR is either self-inverse or
// phase-parameterized, so no decomposition is needed.
func (c *Circuit) Inverse() *Circuit {
	inv := &Circuit{
		Registers: append([]Register(nil), c.Registers...),
		Measure:   append([]int(nil), c.Measure...),
		Gates:     make([]Gate, 0, len(c.Gates)),
	}
	for i := len(c.Gates) - 1; i >= 0; i-- {
		g := c.Gates[i]
		ng := remapIdentity(g)
		switch g.Kind {
		case GateCP, GateMCPhase:
			ng.Theta = -g.Theta
		case GateDiagonal:
			ng.Phases = make([]float64, len(g.Phases))
			for j, p := range g.Phases {
				ng.Phases[j] = -p
			}
		}
		inv.Gates = append(inv.Gates, ng)
	}
	return inv
}

func remapIdentity(g Gate) Gate {
	out := g
	if len(g.Controls) > 0 {
		out.Controls = append([]int(nil), g.Controls...)
	}
	if len(g.Qubits) > 0 {
		out.Qubits = append([]int(nil), g.Qubits...)
	}
	if len(g.Phases) > 0 {
		out.Phases = append([]float64(nil), g.Phases...)
	}
	return out
}

// Text renders the circuit one gate per line in a deterministic form.
// Two circuits with identical structure render identically, which is
// what the encoder determinism tests compare.
func (c *Circuit) Text() string {
	var b strings.Builder
	for _, r := range c.Registers {
		fmt.Fprintf(&b, "reg %s[%d]\n", r.Name, r.Size)
	}
	for _, g := range c.Gates {
		switch g.Kind {
		case GateH:
			fmt.Fprintf(&b, "h %d\n", g.Target)
		case GateX:
			fmt.Fprintf(&b, "x %d\n", g.Target)
		case GateZ:
			fmt.Fprintf(&b, "z %d\n", g.Target)
		case GateCP:
			fmt.Fprintf(&b, "cp(%.9g) %d %d\n", g.Theta, g.Controls[0], g.Target)
		case GateMCX:
			fmt.Fprintf(&b, "mcx %v %d\n", g.Controls, g.Target)
		case GateMCPhase:
			fmt.Fprintf(&b, "mcp(%.9g) %v\n", g.Theta, g.Controls)
		case GateDiagonal:
			fmt.Fprintf(&b, "diag %v [", g.Qubits)
			for i, p := range g.Phases {
				if i > 0 {
					b.WriteByte(' ')
				}
				fmt.Fprintf(&b, "%.9g", p)
			}
			b.WriteString("]\n")
		}
	}
	if len(c.Measure) > 0 {
		fmt.Fprintf(&b, "measure %v\n", c.Measure)
	}
	return b.String()
}
