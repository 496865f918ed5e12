package topology

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/globemesh/InputParameters"
	"github.com/notargets/globemesh/types"
)

// ivec is an integer direction on the cube, one of the six unit axes or a
// lattice point.
type ivec [3]int

func (a ivec) dot(b ivec) int   { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
func (a ivec) scale(s int) ivec { return ivec{s * a[0], s * a[1], s * a[2]} }
func (a ivec) add(b ivec) ivec  { return ivec{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func (a ivec) vec() r3.Vec      { return r3.Vec{X: float64(a[0]), Y: float64(a[1]), Z: float64(a[2])} }

var (
	ex = ivec{1, 0, 0}
	ey = ivec{0, 1, 0}
	ez = ivec{0, 0, 1}
)

// Frame orients a chunk on the cube: Xi and Eta span the chunk face and N is
// the outward normal, Xi x Eta = N.
type Frame struct {
	Xi, Eta, N ivec
}

var frames = [types.NChunksMax]Frame{
	types.ChunkAB:         {Xi: ex, Eta: ey, N: ez},
	types.ChunkAC:         {Xi: ey, Eta: ez, N: ex},
	types.ChunkBC:         {Xi: ez, Eta: ex, N: ey},
	types.ChunkACAntipode: {Xi: ey.scale(-1), Eta: ez, N: ex.scale(-1)},
	types.ChunkBCAntipode: {Xi: ez.scale(-1), Eta: ex, N: ey.scale(-1)},
	types.ChunkABAntipode: {Xi: ex.scale(-1), Eta: ey, N: ez.scale(-1)},
}

func FrameOf(c types.ChunkID) Frame { return frames[c] }

// point returns the lattice point of chunk-local indices (i, j) on a cube of
// half width n, in units where the chunk spans 2n.
func (f Frame) point(i, j, n int) ivec {
	return f.Xi.scale(2*i - n).add(f.Eta.scale(2*j - n)).add(f.N.scale(n))
}

// local inverts point for a lattice point on this chunk's face.
func (f Frame) local(p ivec, n int) (i, j int, onFace bool) {
	if f.N.dot(p) != n {
		return
	}
	return (f.Xi.dot(p) + n) / 2, (f.Eta.dot(p) + n) / 2, true
}

// sideDir is the outward direction of a chunk side
func (f Frame) sideDir(s types.Side) ivec {
	switch s {
	case types.XiMin:
		return f.Xi.scale(-1)
	case types.XiMax:
		return f.Xi
	case types.EtaMin:
		return f.Eta.scale(-1)
	case types.EtaMax:
		return f.Eta
	}
	panic(fmt.Errorf("side %s has no lateral direction", s))
}

// along is the direction in which a side is traversed with increasing index
func (f Frame) along(s types.Side) ivec {
	if s == types.XiMin || s == types.XiMax {
		return f.Eta
	}
	return f.Xi
}

// Edge describes the chunk across one side of another.
type Edge struct {
	Chunk    types.ChunkID
	Side     types.Side
	Reversed bool // the side index runs the opposite way on the neighbor
}

var adjacency = buildAdjacency()

func buildAdjacency() (adj [types.NChunksMax][types.NumFacesShared]Edge) {
	for c := types.ChunkAB; c < types.CubeChunk; c++ {
		f := frames[c]
		for s := types.XiMin; s <= types.EtaMax; s++ {
			d := f.sideDir(s)
			nb := -1
			for o := types.ChunkAB; o < types.CubeChunk; o++ {
				if frames[o].N == d {
					nb = int(o)
				}
			}
			if nb < 0 {
				panic(fmt.Errorf("chunk %s side %s has no neighbor", c, s))
			}
			g := frames[nb]
			var side types.Side
			switch f.N {
			case g.Xi.scale(-1):
				side = types.XiMin
			case g.Xi:
				side = types.XiMax
			case g.Eta.scale(-1):
				side = types.EtaMin
			case g.Eta:
				side = types.EtaMax
			default:
				panic(fmt.Errorf("chunks %s and %s do not share an edge", c, types.ChunkID(nb)))
			}
			adj[c][s] = Edge{
				Chunk:    types.ChunkID(nb),
				Side:     side,
				Reversed: f.along(s).dot(g.along(side)) < 0,
			}
		}
	}
	return
}

// Across returns the chunk, side and orientation on the other side of a chunk edge.
func Across(c types.ChunkID, s types.Side) Edge { return adjacency[c][s] }

// Projection maps the fraction s in [0, 1] of a chunk side to the face
// coordinate in [-1, 1].
type Projection func(s float64) float64

func EqualAngle(s float64) float64 {
	return math.Tan(-math.Pi/4 + math.Pi/2*s)
}

func Gnomonic(s float64) float64 {
	return -1 + 2*s
}

func projectionByName(name string) (Projection, error) {
	switch name {
	case InputParameters.ProjectionEqualAngle:
		return EqualAngle, nil
	case InputParameters.ProjectionGnomonic:
		return Gnomonic, nil
	}
	return nil, types.NewConfigurationError("Projection", "unknown projection %q", name)
}
