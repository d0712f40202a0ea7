package circuit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSample() *Circuit {
	c := New(Register{Name: "map", Size: 2}, Register{Name: "anc", Size: 1})
	c.H(0)
	c.X(1)
	c.CP(math.Pi/2, 0, 1)
	c.MCX([]int{0, 1}, 2)
	c.MCPhase(math.Pi, []int{0, 1})
	_ = c.Diagonal([]float64{0, math.Pi}, []int{2})
	c.Measure = []int{0, 1}
	return c
}

func TestWidthAndRegisters(t *testing.T) {
	c := buildSample()

	assert.Equal(t, 3, c.Width())
	assert.Equal(t, []int{0, 1}, c.RegisterQubits("map"))
	assert.Equal(t, []int{2}, c.RegisterQubits("anc"))
	assert.Nil(t, c.RegisterQubits("missing"))
	assert.Equal(t, 2, c.Qubit("anc", 0))
}

func TestDiagonal_PhaseCountMismatch(t *testing.T) {
	c := New(Register{Name: "q", Size: 2})
	err := c.Diagonal([]float64{0, 1, 2}, []int{0, 1})
	assert.Error(t, err)
}

func TestCompose_Remaps(t *testing.T) {
	sub := New(Register{Name: "q", Size: 2})
	sub.H(0)
	sub.MCX([]int{0}, 1)

	c := New(Register{Name: "big", Size: 4})
	require.NoError(t, c.Compose(sub, []int{2, 3}))

	require.Len(t, c.Gates, 2)
	assert.Equal(t, 2, c.Gates[0].Target)
	assert.Equal(t, []int{2}, c.Gates[1].Controls)
	assert.Equal(t, 3, c.Gates[1].Target)
}

func TestCompose_BadMapping(t *testing.T) {
	sub := New(Register{Name: "q", Size: 2})
	c := New(Register{Name: "big", Size: 4})
	assert.Error(t, c.Compose(sub, []int{0}))
}

func TestInverse(t *testing.T) {
	c := buildSample()
	inv := c.Inverse()

	require.Len(t, inv.Gates, len(c.Gates))
	// Order reversed.
	assert.Equal(t, GateDiagonal, inv.Gates[0].Kind)
	assert.Equal(t, GateH, inv.Gates[len(inv.Gates)-1].Kind)
	// Phases negated.
	assert.Equal(t, -math.Pi, inv.Gates[0].Phases[1])
	assert.Equal(t, -math.Pi, inv.Gates[1].Theta)
	// Original untouched.
	assert.Equal(t, math.Pi, c.Gates[4].Theta)
}

func TestText_Deterministic(t *testing.T) {
	a := buildSample()
	b := buildSample()

	assert.Equal(t, a.Text(), b.Text())
	assert.Contains(t, a.Text(), "reg map[2]")
	assert.Contains(t, a.Text(), "measure [0 1]")

	b.H(2)
	assert.NotEqual(t, a.Text(), b.Text())
}

func TestMarshalRoundTrip(t *testing.T) {
	c := buildSample()

	data, err := c.Marshal()
	require.NoError(t, err)

	back, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, c.Text(), back.Text())

	data2, err := back.Marshal()
	require.NoError(t, err)
	assert.Equal(t, data, data2)
}

func TestUnmarshal_Garbage(t *testing.T) {
	_, err := Unmarshal([]byte{0xc1, 0xff})
	assert.Error(t, err)
}
