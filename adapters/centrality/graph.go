// Package centrality reduces a binary vegetation mask to scalar network
// connectivity metrics. Vegetated cells become graph nodes addressed by
// their flat row-major index; edges connect 8-adjacent vegetated cells,
// the adjacency rule used for subgraph-centrality work on patterned
// vegetation.
package centrality

import (
	"gonum.org/v1/gonum/graph/simple"

	"goveg/domain/raster"
)

// forward-scan neighbor offsets; each undirected edge is visited once
var forwardNeighbors = [4][2]int{
	{0, 1},  // east
	{1, -1}, // south-west
	{1, 0},  // south
	{1, 1},  // south-east
}

// MaskGraph is the adjacency graph over a mask's vegetated cells.
type MaskGraph struct {
	G         *simple.UndirectedGraph
	Nodes     []int64 // flat indices of vegetated cells, row-major order
	EdgeCount int
	rows      int
	cols      int
}

// BuildGraph constructs the 8-connectivity graph of a mask. Node IDs are
// flat row-major cell indices, so the graph needs no per-node allocation
// beyond gonum's own bookkeeping and tiles can be processed in parallel
// without sharing state.
func BuildGraph(mask raster.BinaryMask) *MaskGraph {
	g := simple.NewUndirectedGraph()
	mg := &MaskGraph{G: g, rows: mask.Rows(), cols: mask.Cols()}

	for r := 0; r < mask.Rows(); r++ {
		for c := 0; c < mask.Cols(); c++ {
			if !mask.Vegetated(r, c) {
				continue
			}
			id := int64(mask.FlatIndex(r, c))
			g.AddNode(simple.Node(id))
			mg.Nodes = append(mg.Nodes, id)
		}
	}

	for r := 0; r < mask.Rows(); r++ {
		for c := 0; c < mask.Cols(); c++ {
			if !mask.Vegetated(r, c) {
				continue
			}
			for _, d := range forwardNeighbors {
				nr, nc := r+d[0], c+d[1]
				if nr < 0 || nr >= mask.Rows() || nc < 0 || nc >= mask.Cols() {
					continue
				}
				if !mask.Vegetated(nr, nc) {
					continue
				}
				g.SetEdge(simple.Edge{
					F: simple.Node(int64(mask.FlatIndex(r, c))),
					T: simple.Node(int64(mask.FlatIndex(nr, nc))),
				})
				mg.EdgeCount++
			}
		}
	}

	return mg
}

// maxGridEdges is the 8-connectivity edge count of a fully vegetated
// rows x cols grid: horizontal + vertical + both diagonal directions.
func maxGridEdges(rows, cols int) int {
	if rows <= 0 || cols <= 0 {
		return 0
	}
	return rows*(cols-1) + (rows-1)*cols + 2*(rows-1)*(cols-1)
}
