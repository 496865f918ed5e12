package decompose

import (
	"fmt"
	"io"

	"github.com/notargets/globemesh/mesh"
	"github.com/notargets/globemesh/types"
	"github.com/notargets/globemesh/utils"
)

// CheckCovering verifies that the slices hold every element of the global
// mesh exactly once.
func (d *Decomposer) CheckCovering(all []*Slice) error {
	var (
		topo  = d.topo
		seen  = make(map[types.ElementKey]int)
		shell = make(map[types.ChunkID]int)
		cube  int
	)
	for _, s := range all {
		for k, e := range s.Elements {
			if other, dup := seen[e.Key]; dup {
				return types.NewTopologyError(s.ID, other, "elements", "element %d is generated twice", k)
			}
			seen[e.Key] = s.ID
			if e.IsCube() {
				cube++
			} else {
				shell[s.Chunk]++
			}
		}
	}
	for _, c := range topo.Chunks() {
		if shell[c] != topo.ChunkElementCount() {
			return fmt.Errorf("chunk %s holds %d shell elements, expected %d",
				c, shell[c], topo.ChunkElementCount())
		}
	}
	if cube != topo.CubeElementCount() {
		return fmt.Errorf("central cube holds %d elements, expected %d", cube, topo.CubeElementCount())
	}
	return nil
}

// CheckConforming verifies the connectivity of one slice. Every face must be
// shared by two elements unless it lies on the free surface, on the edge of
// the meshed region, on the surface of an ungenerated central cube, on a
// central cube interface with another slice, or on the side of the slice
// facing the neighbor that holds the other element.
func (d *Decomposer) CheckConforming(s *Slice) (m *mesh.Mesh, err error) {
	m = s.Mesh()
	err = m.CheckConforming(func(f mesh.Face) error {
		var keys [4]types.NodeKey
		for i, v := range f.Vertices {
			keys[i] = s.Keys[v]
		}
		if d.allowedBoundary(s, keys) {
			return nil
		}
		return types.NewTopologyError(s.ID, -1, "faces",
			"face %v of element %d is on no boundary", keys, f.Element)
	})
	if err != nil {
		return
	}
	if minDet, e := m.MinJacobian(); e >= 0 && minDet <= 0 {
		return m, types.NewTopologyError(s.ID, -1, "elements",
			"element %d is inverted, corner Jacobian %g", e, minDet)
	}
	return
}

func (d *Decomposer) allowedBoundary(s *Slice, keys [4]types.NodeKey) bool {
	surface, cube := true, true
	for _, k := range keys {
		surface = surface && !k.IsCube() && k.L == 0
		cube = cube && k.IsCube()
	}
	switch {
	case surface:
		return true
	case cube && !d.topo.BuildsCube():
		return true
	}
	// Shared with another slice on all four nodes, across a central cube
	// interface or across the side of this slice facing that slice
	common := d.Touching(keys[0])
	for _, k := range keys[1:] {
		t := d.Touching(k)
		var next []int
		for _, id := range common {
			if contains(t, id) {
				next = append(next, id)
			}
		}
		common = next
	}
	if contains(common, s.ID) {
		for _, id := range common {
			if id == s.ID {
				continue
			}
			if cube {
				return true
			}
			for _, f := range s.Faces {
				if f.Neighbor == id && d.onSideAll(s, f.Side, keys) {
					return true
				}
			}
		}
	}
	// On a side of the slice that has no neighbor
	for _, f := range s.Faces {
		if f.Neighbor < 0 && d.onSideAll(s, f.Side, keys) {
			return true
		}
	}
	return false
}

func (d *Decomposer) onSideAll(s *Slice, side types.Side, keys [4]types.NodeKey) bool {
	for _, k := range keys {
		if !d.onSide(s.Chunk, s.Range, side, k) {
			return false
		}
	}
	return true
}

// CommunicationMatrix is the number of nodes each pair of slices shares,
// row i holding the neighbors of slice i.
func CommunicationMatrix(all []*Slice) utils.CSR {
	n := len(all)
	dok := utils.NewDOK(n, n)
	for _, s := range all {
		for id, b := range s.Neighbors {
			dok.Set(s.ID, id, float64(len(b.Nodes)))
		}
	}
	dok.SetReadOnly("CommunicationMatrix")
	return dok.ToCSR()
}

// PrintCommunication summarizes a communication matrix.
func PrintCommunication(w io.Writer, cm utils.CSR) {
	n, _ := cm.Dims()
	var (
		total, most float64
		busiest     = -1
	)
	for i := 0; i < n; i++ {
		_, vals := cm.Row(i)
		var row float64
		for _, v := range vals {
			row += v
		}
		total += row
		if row > most {
			most, busiest = row, i
		}
	}
	fmt.Fprintf(w, "communication: %d slices, %d neighbor pairs, %.0f shared node entries\n",
		n, cm.NNZ()/2, total)
	if busiest >= 0 {
		fmt.Fprintf(w, "  busiest slice %d shares %.0f nodes\n", busiest, most)
	}
	fmt.Fprintf(w, "  symmetric %v\n", cm.IsSymmetric())
}
