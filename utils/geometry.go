package utils

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Corner numbering of a hexahedron: 0-3 counterclockwise on the inner face
// seen from outside, 4-7 directly above them.
var hexCornerEdges = [8][3][2]int{
	{{0, 1}, {0, 3}, {0, 4}},
	{{0, 1}, {1, 2}, {1, 5}},
	{{3, 2}, {1, 2}, {2, 6}},
	{{3, 2}, {0, 3}, {3, 7}},
	{{4, 5}, {4, 7}, {0, 4}},
	{{4, 5}, {5, 6}, {1, 5}},
	{{7, 6}, {5, 6}, {2, 6}},
	{{7, 6}, {4, 7}, {3, 7}},
}

// HexCornerJacobians returns the determinant of the trilinear map at each
// corner of a hexahedron. A valid element has all eight positive.
func HexCornerJacobians(p [8]r3.Vec) (dets [8]float64) {
	for c, edges := range hexCornerEdges {
		var e [3]r3.Vec
		for i, ft := range edges {
			e[i] = r3.Sub(p[ft[1]], p[ft[0]])
		}
		dets[c] = r3.Dot(e[0], r3.Cross(e[1], e[2]))
	}
	return
}

// HexFaces lists the six faces of a hexahedron as corner indices, inner face
// first, each wound outward.
var HexFaces = [6][4]int{
	{0, 3, 2, 1},
	{4, 5, 6, 7},
	{0, 1, 5, 4},
	{1, 2, 6, 5},
	{2, 3, 7, 6},
	{3, 0, 4, 7},
}

// HexEdges lists the twelve edges of a hexahedron as corner index pairs.
var HexEdges = [12][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// HexEdgeRatio is the longest edge of a hexahedron over its shortest.
func HexEdgeRatio(p [8]r3.Vec) float64 {
	lo, hi := math.Inf(1), 0.
	for _, e := range HexEdges {
		l := r3.Norm(r3.Sub(p[e[1]], p[e[0]]))
		lo, hi = math.Min(lo, l), math.Max(hi, l)
	}
	return hi / lo
}
