package graph

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Valid(t *testing.T) {
	g, err := New(4, []Edge{{0, 1}, {1, 2}, {2, 3}, {3, 0}})
	require.NoError(t, err)

	assert.Equal(t, 4, g.VertexCount())
	assert.Equal(t, 4, g.EdgeCount())
	assert.True(t, g.IsAdjacent(0, 1))
	assert.True(t, g.IsAdjacent(1, 0))
	assert.True(t, g.IsAdjacent(3, 0))
	assert.False(t, g.IsAdjacent(0, 2))
	assert.Equal(t, 2, g.Degree(0))
}

func TestNew_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		n     int
		edges []Edge
	}{
		{"zero vertices", 0, nil},
		{"negative vertex count", -1, nil},
		{"endpoint out of range", 3, []Edge{{0, 3}}},
		{"negative endpoint", 3, []Edge{{-1, 2}}},
		{"self loop", 3, []Edge{{1, 1}}},
		{"duplicate edge", 3, []Edge{{0, 1}, {0, 1}}},
		{"duplicate reversed", 3, []Edge{{0, 1}, {1, 0}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.n, tc.edges)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidGraph))
		})
	}
}

func TestNew_EdgesNormalized(t *testing.T) {
	g, err := New(3, []Edge{{2, 0}, {1, 0}})
	require.NoError(t, err)

	assert.Equal(t, []Edge{{0, 1}, {0, 2}}, g.Edges())
}

// Adjacency must be symmetric and irreflexive for any valid graph.
func TestIsAdjacent_SymmetricIrreflexive(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for trial := 0; trial < 20; trial++ {
		n := 2 + rng.Intn(10)
		var edges []Edge
		for u := 0; u < n; u++ {
			for v := u + 1; v < n; v++ {
				if rng.Float64() < 0.4 {
					edges = append(edges, Edge{u, v})
				}
			}
		}
		g, err := New(n, edges)
		require.NoError(t, err)

		for u := 0; u < n; u++ {
			assert.False(t, g.IsAdjacent(u, u))
			for v := 0; v < n; v++ {
				assert.Equal(t, g.IsAdjacent(u, v), g.IsAdjacent(v, u))
			}
		}
	}
}

func TestIsAdjacent_OutOfRange(t *testing.T) {
	g := MustNew(2, []Edge{{0, 1}})

	assert.False(t, g.IsAdjacent(-1, 0))
	assert.False(t, g.IsAdjacent(0, 2))
	assert.False(t, g.IsAdjacent(7, 9))
}

func TestAdjacencyMatrix(t *testing.T) {
	g := MustNew(3, []Edge{{0, 2}})
	m := g.AdjacencyMatrix()

	assert.Equal(t, 1.0, m.At(0, 2))
	assert.Equal(t, 1.0, m.At(2, 0))
	assert.Equal(t, 0.0, m.At(0, 1))
	assert.Equal(t, 0.0, m.At(1, 1))
}

func TestPaddedAdjacency(t *testing.T) {
	g := MustNew(3, []Edge{{0, 2}, {1, 2}})

	m, err := g.PaddedAdjacency(4)
	require.NoError(t, err)

	r, c := m.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 4, c)
	assert.Equal(t, 1.0, m.At(0, 2))
	assert.Equal(t, 1.0, m.At(2, 1))
	// Padded rows and columns stay zero.
	for i := 0; i < 4; i++ {
		assert.Equal(t, 0.0, m.At(3, i))
		assert.Equal(t, 0.0, m.At(i, 3))
	}

	_, err = g.PaddedAdjacency(2)
	assert.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	a := MustNew(4, []Edge{{0, 1}, {2, 3}})
	b := MustNew(4, []Edge{{2, 3}, {1, 0}}) // same graph, different input order
	c := MustNew(4, []Edge{{0, 1}, {1, 3}})

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)
}

func TestSingleVertex(t *testing.T) {
	g, err := New(1, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, g.VertexCount())
	assert.Equal(t, 0, g.EdgeCount())
	assert.False(t, g.IsAdjacent(0, 0))
}
