// Package graph provides the immutable undirected graph model shared by
// the encoder, the oracle builder and the search controller.
package graph

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidGraph is returned when a graph is constructed from malformed
// input: a non-positive vertex count, an edge endpoint outside
// [0, vertexCount), a self-loop, or a duplicate edge. Matched with
// errors.Is; the wrapped message carries the offending detail.
var ErrInvalidGraph = errors.New("graph: invalid graph")

// Edge is an unordered vertex pair. Construction normalizes it so that
// U < V.
type Edge struct {
	U int `json:"u"`
	V int `json:"v"`
}

// Graph is a simple undirected graph over vertices 0..n-1. It is
// immutable after construction, so it can be shared freely between the
// encoder, the oracle and any number of concurrently dispatched shots.
type Graph struct {
	n     int
	edges []Edge
	// adjacency bitset, row-major: bit v of adj[u] set iff u~v
	adj []uint64
}

// New constructs a graph with vertexCount vertices and the given edge
// set. Edges may be supplied in either orientation; they are stored
// normalized and sorted.
func New(vertexCount int, edges []Edge) (*Graph, error) {
	if vertexCount < 1 {
		return nil, fmt.Errorf("%w: vertex count %d must be at least 1", ErrInvalidGraph, vertexCount)
	}

	words := (vertexCount + 63) / 64
	g := &Graph{
		n:     vertexCount,
		edges: make([]Edge, 0, len(edges)),
		adj:   make([]uint64, vertexCount*words),
	}

	seen := make(map[Edge]bool, len(edges))
	for _, e := range edges {
		u, v := e.U, e.V
		if u > v {
			u, v = v, u
		}
		if u < 0 || v >= vertexCount {
			return nil, fmt.Errorf("%w: edge (%d,%d) references vertex outside [0,%d)", ErrInvalidGraph, e.U, e.V, vertexCount)
		}
		if u == v {
			return nil, fmt.Errorf("%w: self-loop on vertex %d", ErrInvalidGraph, u)
		}
		norm := Edge{U: u, V: v}
		if seen[norm] {
			return nil, fmt.Errorf("%w: duplicate edge (%d,%d)", ErrInvalidGraph, u, v)
		}
		seen[norm] = true
		g.edges = append(g.edges, norm)
		g.setAdjacent(u, v)
		g.setAdjacent(v, u)
	}

	sort.Slice(g.edges, func(i, j int) bool {
		if g.edges[i].U != g.edges[j].U {
			return g.edges[i].U < g.edges[j].U
		}
		return g.edges[i].V < g.edges[j].V
	})

	return g, nil
}

// MustNew is New but panics on error. Intended for tests and fixtures.
func MustNew(vertexCount int, edges []Edge) *Graph {
	g, err := New(vertexCount, edges)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Graph) setAdjacent(u, v int) {
	words := (g.n + 63) / 64
	g.adj[u*words+v/64] |= 1 << uint(v%64)
}

// IsAdjacent reports whether u and v share an edge. It is symmetric,
// false for self-pairs and false for out-of-range indices.
func (g *Graph) IsAdjacent(u, v int) bool {
	if u < 0 || v < 0 || u >= g.n || v >= g.n || u == v {
		return false
	}
	words := (g.n + 63) / 64
	return g.adj[u*words+v/64]&(1<<uint(v%64)) != 0
}

// VertexCount returns the number of vertices.
func (g *Graph) VertexCount() int { return g.n }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Edges returns a copy of the normalized, sorted edge list.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Degree returns the number of neighbours of v, or 0 when v is out of
// range.
func (g *Graph) Degree(v int) int {
	if v < 0 || v >= g.n {
		return 0
	}
	words := (g.n + 63) / 64
	d := 0
	for w := 0; w < words; w++ {
		d += bits.OnesCount64(g.adj[v*words+w])
	}
	return d
}

// AdjacencyMatrix returns the n×n symmetric 0/1 adjacency matrix.
func (g *Graph) AdjacencyMatrix() *mat.SymDense {
	m := mat.NewSymDense(g.n, nil)
	for _, e := range g.edges {
		m.SetSym(e.U, e.V, 1)
	}
	return m
}

// PaddedAdjacency returns the adjacency matrix zero-extended to
// size×size. size must be at least VertexCount; the index registers of
// the encoding address a power-of-two space, so callers pass the padded
// dimension from the encoder.
func (g *Graph) PaddedAdjacency(size int) (*mat.Dense, error) {
	if size < g.n {
		return nil, fmt.Errorf("%w: padded size %d smaller than vertex count %d", ErrInvalidGraph, size, g.n)
	}
	m := mat.NewDense(size, size, nil)
	for _, e := range g.edges {
		m.Set(e.U, e.V, 1)
		m.Set(e.V, e.U, 1)
	}
	return m, nil
}

// Fingerprint returns a stable content hash of the graph: SHA-256 over
// the vertex count and the canonical edge list. Two graphs with the
// same vertices and edges always produce the same fingerprint, which
// makes it usable as a cache key component.
func (g *Graph) Fingerprint() string {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(g.n))
	h.Write(buf[:])
	for _, e := range g.edges {
		binary.BigEndian.PutUint64(buf[:], uint64(e.U))
		h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], uint64(e.V))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
