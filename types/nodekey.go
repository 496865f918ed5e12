package types

import (
	"fmt"
	"sort"
)

/*
NodeKey is the global identity of a mesh node. For a shell node I and J are the
chunk-local xi/eta lattice indices in surface element units and L is the global
radial level id. For a central cube node (Chunk == CubeChunk) I, J, L are the
x, y, z lattice indices of the cube.

Two keys compare equal only when they are in the same representation, callers
must canonicalize before comparing nodes that may sit on a chunk edge.
*/
type NodeKey struct {
	Chunk   ChunkID
	I, J, L int
}

const (
	nodeKeyBits  = 20
	nodeKeyLimit = 1<<nodeKeyBits - 1
)

func (k NodeKey) IsCube() bool { return k.Chunk == CubeChunk }

// Pack stores the key in a uint64 that sorts in (Chunk, I, J, L) order.
func (k NodeKey) Pack() (packed uint64) {
	for _, v := range [3]int{k.I, k.J, k.L} {
		if v < 0 || v > nodeKeyLimit {
			panic(fmt.Errorf("unable to pack node key %v, index %d out of range", k, v))
		}
	}
	packed = uint64(k.Chunk)<<(3*nodeKeyBits) |
		uint64(k.I)<<(2*nodeKeyBits) |
		uint64(k.J)<<nodeKeyBits |
		uint64(k.L)
	return
}

func UnpackNodeKey(packed uint64) (k NodeKey) {
	k.L = int(packed & nodeKeyLimit)
	k.J = int((packed >> nodeKeyBits) & nodeKeyLimit)
	k.I = int((packed >> (2 * nodeKeyBits)) & nodeKeyLimit)
	k.Chunk = ChunkID(packed >> (3 * nodeKeyBits))
	return
}

func (k NodeKey) Less(o NodeKey) bool { return k.Pack() < o.Pack() }

func (k NodeKey) String() string {
	return fmt.Sprintf("%s(%d,%d,%d)", k.Chunk, k.I, k.J, k.L)
}

func SortNodeKeys(keys []NodeKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

/*
FaceKey identifies a quadrilateral face by its four node keys regardless of the
order in which an element lists them, the same way an EdgeKey stores its two
vertices in ascending order.
*/
type FaceKey [4]uint64

func NewFaceKey(nodes [4]NodeKey) (fk FaceKey) {
	for i, n := range nodes {
		fk[i] = n.Pack()
	}
	sort.Slice(fk[:], func(i, j int) bool { return fk[i] < fk[j] })
	return
}

// ElementKey identifies a hexahedron by its eight corner keys.
type ElementKey [8]uint64

func NewElementKey(corners [8]NodeKey) (ek ElementKey) {
	for i, n := range corners {
		ek[i] = n.Pack()
	}
	sort.Slice(ek[:], func(i, j int) bool { return ek[i] < ek[j] })
	return
}

/*
GeomKey identifies a geometry control node of a 27-node shell element. I and J
count half surface elements, so a chunk side has 2*NEX of them, and the node
sits midway between radial levels Lo and Hi, Lo == Hi for a node on a level.
*/
type GeomKey struct {
	Chunk  ChunkID
	I, J   int
	Lo, Hi int
}

func (k GeomKey) String() string {
	return fmt.Sprintf("%s(%d/2,%d/2,%d:%d)", k.Chunk, k.I, k.J, k.Lo, k.Hi)
}
