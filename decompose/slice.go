package decompose

import (
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/globemesh/mesh"
	"github.com/notargets/globemesh/topology"
	"github.com/notargets/globemesh/types"
)

// LocalElement is an element of a slice with its corners as local node
// indices. Control indexes the slice's control nodes for 27-node elements and
// is nil for 8-node ones.
type LocalElement struct {
	Corners [8]int
	Control []int
	Layer   int // -1 in the central cube
	Tag     types.ElementTag
	Key     types.ElementKey
}

func (e LocalElement) IsCube() bool { return e.Layer < 0 }

// SharedFace is one lateral side of a slice. Neighbor is -1 where the side lies
// on the edge of the meshed region.
type SharedFace struct {
	Side         types.Side
	Neighbor     int
	NeighborSide types.Side
	Nodes        []int // local node indices in canonical key order
}

// SharedCorner lists every slice touching the surface node at a slice corner,
// this slice included, in ascending order.
type SharedCorner struct {
	Corner types.Corner
	Key    types.NodeKey
	Ring   []int
}

// SharedBoundary is every node a slice has in common with one neighbor.
// NeighborNodes is filled in by Reconcile: NeighborNodes[n] is the neighbor's
// local index of Nodes[n].
type SharedBoundary struct {
	Neighbor      int
	Nodes         []int
	NeighborNodes []int
}

// BoundaryFace is an element face lying on a fluid-solid discontinuity.
// Condition is free on both sides when the coupling is disabled.
type BoundaryFace struct {
	Element   int
	Face      int // 0..5 in the hexahedron face order
	Key       types.FaceKey
	Condition types.CouplingCondition
}

// FacePair matches the solid and fluid faces of one coupling face.
type FacePair struct {
	Key                            types.FaceKey
	Solid, Fluid                   BoundaryFace
	SolidCondition, FluidCondition types.CouplingCondition
}

// CouplingInterface collects the local faces on the CMB or the ICB. When
// coupling is disabled the faces are still listed, but no pairs are made.
type CouplingInterface struct {
	Boundary   types.FluidBoundary
	Enabled    bool
	SolidFaces []BoundaryFace
	FluidFaces []BoundaryFace
	Pairs      []FacePair
}

// Slice is the part of the global mesh assigned to one process.
type Slice struct {
	ID              int
	Chunk           types.ChunkID
	ProcXi, ProcEta int
	Range           topology.Range
	BuildID         uuid.UUID
	Elements        []LocalElement
	Keys            []types.NodeKey // canonical key of each local node
	Coords          []r3.Vec
	Owner           []int           // slice responsible for each node in global numbering
	ControlKeys     []types.GeomKey // control nodes of the 27-node elements
	ControlCoords   []r3.Vec
	NGLL            int
	GLL             [][]r3.Vec // NGLL^3 points of each element, xi fastest
	Faces           [types.NumFacesShared]SharedFace
	Corners         [types.NumCornersShared]SharedCorner
	Neighbors       map[int]*SharedBoundary
	Coupling        [2]CouplingInterface
	Finalized       bool
	index           map[types.NodeKey]int
	controlIndex    map[types.GeomKey]int
}

func newSlice(id int, c types.ChunkID, px, py int, rg topology.Range, buildID uuid.UUID) *Slice {
	return &Slice{
		ID:           id,
		Chunk:        c,
		ProcXi:       px,
		ProcEta:      py,
		Range:        rg,
		BuildID:      buildID,
		Neighbors:    make(map[int]*SharedBoundary),
		index:        make(map[types.NodeKey]int),
		controlIndex: make(map[types.GeomKey]int),
	}
}

func (s *Slice) addNode(k types.NodeKey) (n int) {
	var ok bool
	if n, ok = s.index[k]; ok {
		return
	}
	n = len(s.Keys)
	s.Keys = append(s.Keys, k)
	s.index[k] = n
	return
}

func (s *Slice) addControl(k types.GeomKey) (n int) {
	var ok bool
	if n, ok = s.controlIndex[k]; ok {
		return
	}
	n = len(s.ControlKeys)
	s.ControlKeys = append(s.ControlKeys, k)
	s.controlIndex[k] = n
	return
}

// Node returns the local index of a canonical key.
func (s *Slice) Node(k types.NodeKey) (n int, ok bool) {
	n, ok = s.index[k]
	return
}

func (s *Slice) NumNodes() int { return len(s.Keys) }

// NeighborIDs returns the slices sharing at least one node, ascending.
func (s *Slice) NeighborIDs() (ids []int) {
	for id := range s.Neighbors {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return
}

// Mesh returns the hexahedral mesh of the slice for connectivity checks.
func (s *Slice) Mesh() *mesh.Mesh {
	elements := make([][8]int, len(s.Elements))
	tags := make([]types.ElementTag, len(s.Elements))
	for k, e := range s.Elements {
		elements[k], tags[k] = e.Corners, e.Tag
	}
	return mesh.NewMesh(s.Coords, elements, tags)
}

func (s *Slice) sortByKey(nodes []int) {
	sort.Slice(nodes, func(i, j int) bool { return s.Keys[nodes[i]].Less(s.Keys[nodes[j]]) })
}

func (s *Slice) Print(w io.Writer) {
	fmt.Fprintf(w, "slice %d: chunk %s proc (%d,%d) range %v\n", s.ID, s.Chunk, s.ProcXi, s.ProcEta, s.Range)
	fmt.Fprintf(w, "  elements %d nodes %d control nodes %d GLL %d finalized %v\n",
		len(s.Elements), len(s.Keys), len(s.ControlKeys), s.NGLL, s.Finalized)
	for _, f := range s.Faces {
		fmt.Fprintf(w, "  %-8s neighbor %3d (%s) nodes %d\n", f.Side, f.Neighbor, f.NeighborSide, len(f.Nodes))
	}
	for _, c := range s.Corners {
		fmt.Fprintf(w, "  %-12s ring %v\n", c.Corner, c.Ring)
	}
	for _, id := range s.NeighborIDs() {
		fmt.Fprintf(w, "  shares %d nodes with %d\n", len(s.Neighbors[id].Nodes), id)
	}
	for _, ci := range s.Coupling {
		fmt.Fprintf(w, "  %s coupling %v: solid %d fluid %d pairs %d\n",
			ci.Boundary, ci.Enabled, len(ci.SolidFaces), len(ci.FluidFaces), len(ci.Pairs))
	}
}
