package superbrick

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/globemesh/types"
	"github.com/notargets/globemesh/utils"
)

/*
The superbrick joins a 4x4 grid of fine cells on its outer face to a 2x2 grid of
coarse cells on its inner face inside a single radial cell, without hanging
nodes. It is built in two sub-layers:

	upper: the fine cells are halved in xi by a six quad pattern in the (x,z)
	       plane, extruded across the four fine slabs in y
	lower: the result is halved in eta by a four quad pattern in the (y,z)
	       plane, extruded across the two coarse slabs in x

The four lateral faces of the brick are the same set of quads, so bricks on
neighboring chunks meet across a chunk edge whatever the relative orientation of
the two chunk frames. Node heights sit at a quarter, half and three quarters of
the brick cell. The outer rows of the upper sub-layer are pulled down to half
height where the lower sub-layer rises, which keeps every element at least a
quarter of the cell tall.
*/

const (
	Version     = "superbrick-v2"
	NumElements = 32
	NumNodes    = 67

	FineCells   = 4  // fine cells across the outer face
	CoarseCells = 2  // coarse cells across the inner face
	CodeTop     = 40 // height code of the outer face
	CodeBottom  = 0

	// MaxEdgeRatio bounds the longest over the shortest edge of every element
	// in reference coordinates.
	MaxEdgeRatio = 4.
)

// Node is a reference node position: X and Y in fine cell units (0..4), Z a
// height code (0..40) measured from the inner face of the radial cell.
type Node struct {
	X, Y, Z int
}

type Template struct {
	Version  string
	Nodes    []Node
	Elements [][8]int // corner order as utils.HexFaces
}

var reference = newTemplate()

// Reference returns the shared, read-only template.
func Reference() *Template { return reference }

// Codes of the node heights strictly between the outer and inner face of the brick
// cell, outermost first.
func IntermediateCodes() []int {
	return []int{codeUpper, codeMiddle, codeLower}
}

const (
	codeUpper  = 30
	codeMiddle = 20
	codeLower  = 10
)

// boundaryHeight is the height of the surface between the two sub-layers along
// eta. It repeats the upper plane heights of the eta-min side so the xi sides
// see the same quads as the eta sides.
var boundaryHeight = [FineCells + 1]int{codeLower, codeMiddle, codeMiddle, codeMiddle, codeLower}

func upperHeights(j int) (a, c int) {
	if j == 0 || j == FineCells {
		return codeMiddle, codeMiddle
	}
	return codeUpper, codeUpper
}

type builder struct {
	t     *Template
	index map[Node]int
}

func (b *builder) node(x, y, z int) int {
	n := Node{x, y, z}
	if id, ok := b.index[n]; ok {
		return id
	}
	id := len(b.t.Nodes)
	b.index[n] = id
	b.t.Nodes = append(b.t.Nodes, n)
	return id
}

// Each quad is wound counterclockwise in its plane, outer face up.
type quad [4]int

func (b *builder) upperPlane(j int) (qs [6]quad) {
	a, c := upperHeights(j)
	bh := boundaryHeight[j]
	var T [FineCells + 1]int
	for i := range T {
		T[i] = b.node(i, j, CodeTop)
	}
	B0, B1, B2 := b.node(0, j, bh), b.node(2, j, bh), b.node(4, j, bh)
	A, C, D := b.node(1, j, a), b.node(2, j, c), b.node(3, j, a)
	return [6]quad{
		{B0, A, T[1], T[0]},
		{A, C, T[2], T[1]},
		{C, D, T[3], T[2]},
		{D, B2, T[4], T[3]},
		{B0, B1, C, A},
		{B1, B2, D, C},
	}
}

func (b *builder) lowerPlane(i int) (qs [4]quad) {
	x := 2 * i
	var T [FineCells + 1]int
	for j := range T {
		T[j] = b.node(x, j, boundaryHeight[j])
	}
	Bot0, Bot1, Bot2 := b.node(x, 0, CodeBottom), b.node(x, 2, CodeBottom), b.node(x, 4, CodeBottom)
	Cm := b.node(x, 2, boundaryHeight[0])
	return [4]quad{
		{Bot0, Bot1, Cm, T[0]},
		{T[0], Cm, T[2], T[1]},
		{Cm, T[4], T[3], T[2]},
		{Bot1, Bot2, T[4], Cm},
	}
}

func newTemplate() *Template {
	b := &builder{
		t:     &Template{Version: Version},
		index: make(map[Node]int),
	}
	var upper [FineCells + 1][6]quad
	for j := range upper {
		upper[j] = b.upperPlane(j)
	}
	for j := 0; j < FineCells; j++ {
		for q := range upper[j] {
			p0, p1 := upper[j][q], upper[j+1][q]
			b.t.Elements = append(b.t.Elements,
				[8]int{p0[0], p0[1], p1[1], p1[0], p0[3], p0[2], p1[2], p1[3]})
		}
	}
	var lower [CoarseCells + 1][4]quad
	for i := range lower {
		lower[i] = b.lowerPlane(i)
	}
	for i := 0; i < CoarseCells; i++ {
		for q := range lower[i] {
			p0, p1 := lower[i][q], lower[i+1][q]
			b.t.Elements = append(b.t.Elements,
				[8]int{p0[0], p1[0], p1[1], p0[1], p0[3], p1[3], p1[2], p0[2]})
		}
	}
	return b.t
}

// Point returns the reference coordinates of node n with the radial cell scaled
// to the same height as the brick is wide.
func (t *Template) Point(n int) r3.Vec {
	nd := t.Nodes[n]
	return r3.Vec{X: float64(nd.X), Y: float64(nd.Y), Z: float64(nd.Z) * FineCells / CodeTop}
}

func (t *Template) Codes() (codes []int) {
	seen := make(map[int]bool)
	for _, n := range t.Nodes {
		if !seen[n.Z] {
			seen[n.Z] = true
			codes = append(codes, n.Z)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(codes)))
	return
}

type faceInfo struct {
	nodes [4]int
	count int
}

func (t *Template) faces() map[[4]int]*faceInfo {
	faces := make(map[[4]int]*faceInfo)
	for _, el := range t.Elements {
		for _, f := range utils.HexFaces {
			var fn [4]int
			for i, c := range f {
				fn[i] = el[c]
			}
			key := fn
			sort.Ints(key[:])
			if fi, ok := faces[key]; ok {
				fi.count++
			} else {
				faces[key] = &faceInfo{nodes: fn, count: 1}
			}
		}
	}
	return faces
}

// BoundaryFaces returns the faces used by a single element, grouped by the
// brick side they lie on: the outer face, the inner face and the four lateral
// sides.
func (t *Template) BoundaryFaces() (outer, inner [][4]int, lateral [types.NumFacesShared][][4]int, err error) {
	onSide := func(fn [4]int, pred func(Node) bool) bool {
		for _, n := range fn {
			if !pred(t.Nodes[n]) {
				return false
			}
		}
		return true
	}
	sidePred := [types.NumFacesShared]func(Node) bool{
		func(n Node) bool { return n.X == 0 },
		func(n Node) bool { return n.X == FineCells },
		func(n Node) bool { return n.Y == 0 },
		func(n Node) bool { return n.Y == FineCells },
	}
	for key, fi := range t.faces() {
		switch {
		case fi.count > 2:
			return nil, nil, lateral, fmt.Errorf("face %v is shared by %d elements", key, fi.count)
		case fi.count == 2:
			continue
		}
		switch {
		case onSide(fi.nodes, func(n Node) bool { return n.Z == CodeTop }):
			outer = append(outer, fi.nodes)
		case onSide(fi.nodes, func(n Node) bool { return n.Z == CodeBottom }):
			inner = append(inner, fi.nodes)
		default:
			found := false
			for s, pred := range sidePred {
				if onSide(fi.nodes, pred) {
					lateral[s] = append(lateral[s], fi.nodes)
					found = true
					break
				}
			}
			if !found {
				return nil, nil, lateral, fmt.Errorf("face %v is exposed inside the brick", key)
			}
		}
	}
	return
}

// Validate checks the table: corner Jacobians, edge ratios, outer and inner face
// grids, interior faces shared by exactly two elements and identical lateral
// sides.
func (t *Template) Validate() error {
	if len(t.Elements) != NumElements || len(t.Nodes) != NumNodes {
		return fmt.Errorf("superbrick %s has %d elements and %d nodes, want %d and %d",
			t.Version, len(t.Elements), len(t.Nodes), NumElements, NumNodes)
	}
	for k, el := range t.Elements {
		var p [8]r3.Vec
		for i, n := range el {
			p[i] = t.Point(n)
		}
		for c, det := range utils.HexCornerJacobians(p) {
			if det <= 0 {
				return fmt.Errorf("superbrick element %d corner %d has Jacobian %g", k, c, det)
			}
		}
		if ratio := utils.HexEdgeRatio(p); ratio > MaxEdgeRatio {
			return fmt.Errorf("superbrick element %d has edge ratio %.2f, limit %.2f", k, ratio, MaxEdgeRatio)
		}
	}
	outer, inner, lateral, err := t.BoundaryFaces()
	if err != nil {
		return err
	}
	if err = t.checkGrid(outer, FineCells, CodeTop); err != nil {
		return err
	}
	if err = t.checkGrid(inner, CoarseCells, CodeBottom); err != nil {
		return err
	}
	ref := t.sideProfile(types.XiMin, lateral[types.XiMin])
	for s := types.XiMax; s <= types.EtaMax; s++ {
		if p := t.sideProfile(s, lateral[s]); p != ref {
			return fmt.Errorf("superbrick side %s does not match side %s", s, types.XiMin)
		}
	}
	return nil
}

// The outer or inner face must tile the square with n x n axis aligned cells.
func (t *Template) checkGrid(faces [][4]int, n, code int) error {
	if len(faces) != n*n {
		return fmt.Errorf("superbrick face at code %d has %d quads, want %d", code, len(faces), n*n)
	}
	step := FineCells / n
	cells := make(map[[2]int]bool)
	for _, f := range faces {
		minX, minY := FineCells, FineCells
		for _, id := range f {
			nd := t.Nodes[id]
			minX, minY = min(minX, nd.X), min(minY, nd.Y)
		}
		for _, id := range f {
			nd := t.Nodes[id]
			if (nd.X-minX) != 0 && (nd.X-minX) != step || (nd.Y-minY) != 0 && (nd.Y-minY) != step {
				return fmt.Errorf("superbrick face at code %d has a distorted cell at (%d,%d)", code, minX, minY)
			}
		}
		cells[[2]int{minX / step, minY / step}] = true
	}
	if len(cells) != n*n {
		return fmt.Errorf("superbrick face at code %d does not cover the square", code)
	}
	return nil
}

// sideProfile renders the quads of one lateral side in the side's own (s, z)
// coordinates as a sorted string so sides can be compared directly.
func (t *Template) sideProfile(s types.Side, faces [][4]int) string {
	along := func(n Node) int {
		if s == types.XiMin || s == types.XiMax {
			return n.Y
		}
		return n.X
	}
	var quads []string
	for _, f := range faces {
		var pts []string
		for _, id := range f {
			nd := t.Nodes[id]
			pts = append(pts, fmt.Sprintf("(%d,%d)", along(nd), nd.Z))
		}
		sort.Strings(pts)
		quads = append(quads, fmt.Sprint(pts))
	}
	sort.Strings(quads)
	return fmt.Sprint(quads)
}

// Anchor places a brick inside a chunk. I0, J0 locate the brick's low corner in
// surface element units, FineWidth is the width of a fine cell in the same
// units and Level maps a height code to a radial level id.
type Anchor struct {
	Chunk     types.ChunkID
	I0, J0    int
	FineWidth int
	Level     func(code int) int
}

// Instantiate emits the 32 elements of a brick as chunk-local node keys. Bricks
// at adjacent anchors produce identical keys on their shared side.
func (t *Template) Instantiate(a Anchor) (elements [][8]types.NodeKey) {
	keys := make([]types.NodeKey, len(t.Nodes))
	for i, nd := range t.Nodes {
		keys[i] = types.NodeKey{
			Chunk: a.Chunk,
			I:     a.I0 + nd.X*a.FineWidth,
			J:     a.J0 + nd.Y*a.FineWidth,
			L:     a.Level(nd.Z),
		}
	}
	elements = make([][8]types.NodeKey, len(t.Elements))
	for k, el := range t.Elements {
		for c, n := range el {
			elements[k][c] = keys[n]
		}
	}
	return
}
