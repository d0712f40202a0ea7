package search

import "github.com/qubitlab/subisom/pkg/graph"

// verifyEmbedding is the classical ground-truth check applied to every
// decoded assignment: all values in range and pairwise distinct, and
// every pattern edge mapped onto an adjacent target pair. It checks
// against the graphs themselves, not the circuit, so a circuit-level
// defect can never certify a wrong mapping.
func verifyEmbedding(target, pattern *graph.Graph, assignment []int) bool {
	if len(assignment) != pattern.VertexCount() {
		return false
	}
	n := target.VertexCount()
	for i, v := range assignment {
		if v < 0 || v >= n {
			return false
		}
		for j := 0; j < i; j++ {
			if assignment[j] == v {
				return false
			}
		}
	}
	for _, e := range pattern.Edges() {
		if !target.IsAdjacent(assignment[e.U], assignment[e.V]) {
			return false
		}
	}
	return true
}
