package topology

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/globemesh/InputParameters"
	"github.com/notargets/globemesh/gll"
	"github.com/notargets/globemesh/radial"
	"github.com/notargets/globemesh/superbrick"
	"github.com/notargets/globemesh/types"
)

/*
Topology assembles the chunks of the cubed sphere and the central cube into a
single lattice of nodes. Every node has one canonical NodeKey:

	shell nodes inside a chunk       the chunk-local key
	shell nodes on a chunk edge      the key in the lowest numbered meshed chunk
	nodes on the central cube surface and inside the cube
	                                 the cube lattice key (Chunk == CubeChunk)

Node coordinates are a function of the canonical key alone, so every element
and every slice that references a node computes the same bits for it.
*/
type Topology struct {
	Params   *InputParameters.MeshParameters
	Plan     *radial.Plan
	Template *superbrick.Template

	nex        int
	nChunks    int
	cw         int // element width at the central cube surface
	nc         int // central cube elements per side
	project    Projection
	cubeHalf   float64
	bottom     int
	buildsCube bool
	logger     *zap.Logger
}

// Element is one hexahedron of the global lattice. Corners are canonical keys,
// Local holds the same corners in the generating chunk's own frame.
//
// Regular shell elements carry 27 canonical control nodes, xi fastest, then
// eta, then from the bottom face up. Superbrick and central cube elements are
// 8-node and leave Control nil.
type Element struct {
	Chunk   types.ChunkID
	Layer   int // -1 in the central cube
	Corners [8]types.NodeKey
	Local   [8]types.NodeKey
	Control []types.GeomKey
	Cube    [3]int // cube lattice index, central cube elements only
	Tag     types.ElementTag
}

func (e *Element) IsCube() bool { return e.Layer < 0 }

func NewTopology(mp *InputParameters.MeshParameters, plan *radial.Plan, sb *superbrick.Template,
	logger *zap.Logger) (t *Topology, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err = mp.Validate(); err != nil {
		return
	}
	if err = sb.Validate(); err != nil {
		return nil, fmt.Errorf("superbrick template %s: %w", sb.Version, err)
	}
	t = &Topology{
		Params:     mp,
		Plan:       plan,
		Template:   sb,
		nex:        mp.NEX,
		nChunks:    mp.NChunks,
		cw:         plan.CoarsestWidth(),
		cubeHalf:   mp.Radii.CentralCube / math.Sqrt(3),
		bottom:     plan.BottomLevel(),
		buildsCube: mp.NChunks == types.NChunksMax,
		logger:     logger,
	}
	if t.project, err = projectionByName(mp.Projection); err != nil {
		return nil, err
	}
	for _, li := range plan.Doublings() {
		if footprint := superbrick.FineCells * plan.FineWidth(li); t.nex%footprint != 0 {
			return nil, types.NewConfigurationError("NEX",
				"%d is not divisible by the superbrick footprint %d of layer %s",
				t.nex, footprint, plan.Layers[li].Name)
		}
	}
	if t.nex%(2*t.cw) != 0 {
		return nil, types.NewConfigurationError("NEX",
			"%d leaves an odd number of central cube elements at width %d", t.nex, t.cw)
	}
	t.nc = t.nex / t.cw
	logger.Debug("topology ready",
		zap.Int("nex", t.nex), zap.Int("chunks", t.nChunks),
		zap.Int("layers", len(plan.Layers)), zap.Int("levels", len(plan.Levels)),
		zap.Int("cube", t.nc), zap.String("superbrick", sb.Version))
	return
}

func (t *Topology) NEX() int { return t.nex }

// CubeSide is the number of central cube elements along each axis.
func (t *Topology) CubeSide() int { return t.nc }

// CubeWidth is the surface element width of one central cube element.
func (t *Topology) CubeWidth() int { return t.cw }

// BuildsCube is true when all six chunks are meshed and the central cube is
// generated, as real or fictitious elements.
func (t *Topology) BuildsCube() bool { return t.buildsCube }

func (t *Topology) ChunkExists(c types.ChunkID) bool { return int(c) < t.nChunks }

func (t *Topology) Chunks() (chunks []types.ChunkID) {
	for c := 0; c < t.nChunks; c++ {
		chunks = append(chunks, types.ChunkID(c))
	}
	return
}

// Representations lists every existing chunk-local key of a shell node, the
// node's own chunk included. Nodes on the central cube surface are returned
// at the bottom level.
func (t *Topology) Representations(k types.NodeKey) (reps []types.NodeKey) {
	if k.IsCube() {
		idx := ivec{k.I, k.J, k.L}
		p := idx.scale(2).add(ivec{-t.nc, -t.nc, -t.nc})
		for _, c := range t.Chunks() {
			if i, j, ok := frames[c].local(p, t.nc); ok {
				reps = append(reps, types.NodeKey{Chunk: c, I: i * t.cw, J: j * t.cw, L: t.bottom})
			}
		}
		return
	}
	p := frames[k.Chunk].point(k.I, k.J, t.nex)
	for _, c := range t.Chunks() {
		if i, j, ok := frames[c].local(p, t.nex); ok {
			reps = append(reps, types.NodeKey{Chunk: c, I: i, J: j, L: k.L})
		}
	}
	return
}

// Canonical returns the single key shared by every element touching a node.
func (t *Topology) Canonical(k types.NodeKey) types.NodeKey {
	switch {
	case k.IsCube():
		return k
	case k.L == t.bottom:
		if k.I%t.cw != 0 || k.J%t.cw != 0 {
			panic(fmt.Errorf("node %v is off the central cube lattice", k))
		}
		p := frames[k.Chunk].point(k.I/t.cw, k.J/t.cw, t.nc)
		return types.NodeKey{Chunk: types.CubeChunk,
			I: (p[0] + t.nc) / 2, J: (p[1] + t.nc) / 2, L: (p[2] + t.nc) / 2}
	}
	best := k
	for _, r := range t.Representations(k) {
		if r.Chunk < best.Chunk {
			best = r
		}
	}
	return best
}

// Position returns the coordinates of a node in meters.
func (t *Topology) Position(k types.NodeKey) r3.Vec {
	k = t.Canonical(k)
	if k.IsCube() {
		scale := func(i int) float64 { return t.cubeHalf * float64(2*i-t.nc) / float64(t.nc) }
		return r3.Vec{X: scale(k.I), Y: scale(k.J), Z: scale(k.L)}
	}
	b, r := t.radial(k.L)
	return t.shellPoint(k.Chunk, float64(k.I)/float64(t.nex), float64(k.J)/float64(t.nex), b, r)
}

// radial describes a level as a blend b between the flat central cube surface
// (b = 0) and the sphere of radius r (b = 1).
func (t *Topology) radial(level int) (b, r float64) {
	lev := t.Plan.Levels[level]
	if lev.Blend < 0 {
		return 1, lev.Radius
	}
	return lev.Blend, t.Params.Radii.ICB
}

// shellPoint maps the chunk side fractions (s, u) and a radial blend to
// coordinates. Points on a sphere level lie exactly on the sphere.
func (t *Topology) shellPoint(c types.ChunkID, s, u, b, r float64) r3.Vec {
	f := frames[c]
	x, y := t.project(s), t.project(u)
	dir := r3.Unit(r3.Add(r3.Add(r3.Scale(x, f.Xi.vec()), r3.Scale(y, f.Eta.vec())), f.N.vec()))
	if b == 1 {
		return r3.Scale(r, dir)
	}
	xl, yl := 2*s-1, 2*u-1
	flat := r3.Scale(t.cubeHalf, r3.Add(r3.Add(r3.Scale(xl, f.Xi.vec()), r3.Scale(yl, f.Eta.vec())), f.N.vec()))
	return r3.Add(r3.Scale(1-b, flat), r3.Scale(b*r, dir))
}

// CanonicalGeom returns the control node key in the lowest numbered meshed
// chunk holding it.
func (t *Topology) CanonicalGeom(k types.GeomKey) types.GeomKey {
	if k.Lo > k.Hi {
		k.Lo, k.Hi = k.Hi, k.Lo
	}
	n := 2 * t.nex
	p := frames[k.Chunk].point(k.I, k.J, n)
	best := k
	for _, c := range t.Chunks() {
		if c >= best.Chunk {
			break
		}
		if i, j, ok := frames[c].local(p, n); ok {
			best.Chunk, best.I, best.J = c, i, j
		}
	}
	return best
}

// PositionGeom returns the coordinates of a control node in meters.
func (t *Topology) PositionGeom(k types.GeomKey) r3.Vec {
	k = t.CanonicalGeom(k)
	b, r := t.radial(k.Lo)
	if k.Hi != k.Lo {
		bh, rh := t.radial(k.Hi)
		b, r = .5*(b+bh), .5*(r+rh)
	}
	n := float64(2 * t.nex)
	return t.shellPoint(k.Chunk, float64(k.I)/n, float64(k.J)/n, b, r)
}

// controlKeys lists the 27 control nodes of the regular element spanning
// [i, i+w] x [j, j+w] between levels lb (bottom) and lt (top).
func (t *Topology) controlKeys(c types.ChunkID, i, j, w, lb, lt int) (keys []types.GeomKey) {
	keys = make([]types.GeomKey, 0, 27)
	radial := [3][2]int{{lb, lb}, {lb, lt}, {lt, lt}}
	for _, rl := range radial {
		for b := 0; b < 3; b++ {
			for a := 0; a < 3; a++ {
				keys = append(keys, t.CanonicalGeom(types.GeomKey{
					Chunk: c, I: 2*i + a*w, J: 2*j + b*w, Lo: rl[0], Hi: rl[1]}))
			}
		}
	}
	return
}

// Lateral returns the chunk-local (i, j) of a node seen from chunk c, for
// nodes of the central cube the position of the column above them.
func (t *Topology) Lateral(c types.ChunkID, k types.NodeKey) (i, j int) {
	f := frames[c]
	if k.IsCube() {
		p := ivec{k.I, k.J, k.L}.scale(2).add(ivec{-t.nc, -t.nc, -t.nc})
		return (f.Xi.dot(p) + t.nc) / 2 * t.cw, (f.Eta.dot(p) + t.nc) / 2 * t.cw
	}
	if k.Chunk == c {
		return k.I, k.J
	}
	for _, r := range t.Representations(k) {
		if r.Chunk == c {
			return r.I, r.J
		}
	}
	panic(fmt.Errorf("node %v is not on chunk %s", k, c))
}

// Range is a closed block of chunk-local surface indices, [I0,I1] x [J0,J1].
type Range struct {
	I0, I1, J0, J1 int
}

func (r Range) contains(i0, i1, j0, j1 int) bool {
	return i0 >= r.I0 && i1 <= r.I1 && j0 >= r.J0 && j1 <= r.J1
}

// BuildColumns generates every element of a chunk whose lateral extent lies
// inside the range, outermost layer first, followed by the central cube
// elements owned by the chunk under the range.
func (t *Topology) BuildColumns(c types.ChunkID, rg Range, emit func(e *Element)) {
	if !t.ChunkExists(c) {
		panic(fmt.Errorf("chunk %s is not meshed", c))
	}
	plan := t.Plan
	for li, l := range plan.Layers {
		w := l.Width
		first := 0
		if l.IsDoublingLayer {
			t.buildBricks(c, li, rg, emit)
			first = 1
		}
		for m := first; m < l.AverageElementCount; m++ {
			lt, lb := plan.LevelAt(li, m), plan.LevelAt(li, m+1)
			for i := rg.I0 - rg.I0%w; i+w <= rg.I1; i += w {
				if i < rg.I0 {
					continue
				}
				for j := rg.J0 - rg.J0%w; j+w <= rg.J1; j += w {
					if j < rg.J0 {
						continue
					}
					var local [8]types.NodeKey
					for q, ij := range [4][2]int{{i, j}, {i + w, j}, {i + w, j + w}, {i, j + w}} {
						local[q] = types.NodeKey{Chunk: c, I: ij[0], J: ij[1], L: lb}
						local[q+4] = types.NodeKey{Chunk: c, I: ij[0], J: ij[1], L: lt}
					}
					e := t.newShellElement(c, li, local)
					e.Control = t.controlKeys(c, i, j, w, lb, lt)
					emit(e)
				}
			}
		}
	}
	if t.buildsCube && (c == types.ChunkAB || c == types.ChunkABAntipode) {
		t.buildCube(c, rg, emit)
	}
}

func (t *Topology) buildBricks(c types.ChunkID, li int, rg Range, emit func(e *Element)) {
	fine := t.Plan.FineWidth(li)
	footprint := superbrick.FineCells * fine
	level := func(code int) int { return t.Plan.BrickLevel(li, code) }
	for i0 := rg.I0 - rg.I0%footprint; i0 < rg.I1; i0 += footprint {
		for j0 := rg.J0 - rg.J0%footprint; j0 < rg.J1; j0 += footprint {
			for _, local := range t.Template.Instantiate(superbrick.Anchor{
				Chunk: c, I0: i0, J0: j0, FineWidth: fine, Level: level}) {
				lo, hi := local[0], local[0]
				for _, k := range local {
					lo.I, lo.J = min(lo.I, k.I), min(lo.J, k.J)
					hi.I, hi.J = max(hi.I, k.I), max(hi.J, k.J)
				}
				if rg.contains(lo.I, hi.I, lo.J, hi.J) {
					emit(t.newShellElement(c, li, local))
				}
			}
		}
	}
}

func (t *Topology) newShellElement(c types.ChunkID, li int, local [8]types.NodeKey) (e *Element) {
	e = &Element{Chunk: c, Layer: li, Local: local}
	for q, k := range local {
		e.Corners[q] = t.Canonical(k)
	}
	e.Tag = t.Assign(li, t.midRadius(local))
	return
}

func (t *Topology) midRadius(local [8]types.NodeKey) (r float64) {
	for _, k := range local {
		r += t.Plan.Radius(k.L)
	}
	return r / 8
}

// CubeOwner returns the chunk generating a central cube element and the
// column of that chunk it lies under.
func (t *Topology) CubeOwner(e [3]int) (c types.ChunkID, i, j int) {
	c = types.ChunkAB
	if e[2] < t.nc/2 {
		c = types.ChunkABAntipode
	}
	f := frames[c]
	cc := ivec{2*e[0] + 1 - t.nc, 2*e[1] + 1 - t.nc, 2*e[2] + 1 - t.nc}
	return c, (f.Xi.dot(cc) + t.nc - 1) / 2, (f.Eta.dot(cc) + t.nc - 1) / 2
}

func (t *Topology) buildCube(c types.ChunkID, rg Range, emit func(e *Element)) {
	for iz := 0; iz < t.nc; iz++ {
		for iy := 0; iy < t.nc; iy++ {
			for ix := 0; ix < t.nc; ix++ {
				e := [3]int{ix, iy, iz}
				owner, i, j := t.CubeOwner(e)
				if owner != c || !rg.contains(i*t.cw, (i+1)*t.cw, j*t.cw, (j+1)*t.cw) {
					continue
				}
				el := &Element{Chunk: c, Layer: -1, Cube: e}
				for q, d := range [8][3]int{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
					{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}} {
					k := types.NodeKey{Chunk: types.CubeChunk, I: ix + d[0], J: iy + d[1], L: iz + d[2]}
					el.Corners[q], el.Local[q] = k, k
				}
				el.Tag = t.AssignCube(c, iz)
				emit(el)
			}
		}
	}
}

// ChunkElementCount is the number of shell elements in one chunk.
func (t *Topology) ChunkElementCount() int { return t.Plan.ChunkElementCount(t.nex) }

// CubeElementCount is the number of central cube elements, zero when the cube
// is not generated.
func (t *Topology) CubeElementCount() int {
	if !t.buildsCube {
		return 0
	}
	return t.nc * t.nc * t.nc
}

// GLLPoints places the n x n x n GLL points of an element, xi fastest. Shell
// elements are interpolated in their chunk's lateral fractions and radial
// blend and then mapped by the projection, so points on a sphere level stay
// on the sphere. The flat central cube is interpolated directly.
func (t *Topology) GLLPoints(e *Element, n int) (pts []r3.Vec) {
	f := gll.Fractions(n)
	pts = make([]r3.Vec, 0, n*n*n)
	var (
		corner [8][4]float64 // s, u, b, r
		cube   [8]r3.Vec
	)
	for q := range e.Local {
		if e.IsCube() {
			cube[q] = t.Position(e.Corners[q])
			continue
		}
		k := e.Local[q]
		b, r := t.radial(k.L)
		corner[q] = [4]float64{float64(k.I) / float64(t.nex), float64(k.J) / float64(t.nex), b, r}
	}
	for _, w := range f {
		for _, v := range f {
			for _, u := range f {
				weights := [8]float64{
					(1 - u) * (1 - v) * (1 - w), u * (1 - v) * (1 - w), u * v * (1 - w), (1 - u) * v * (1 - w),
					(1 - u) * (1 - v) * w, u * (1 - v) * w, u * v * w, (1 - u) * v * w,
				}
				if e.IsCube() {
					var p r3.Vec
					for q, wq := range weights {
						p = r3.Add(p, r3.Scale(wq, cube[q]))
					}
					pts = append(pts, p)
					continue
				}
				var x [4]float64
				for q, wq := range weights {
					for d := range x {
						x[d] += wq * corner[q][d]
					}
				}
				pts = append(pts, t.shellPoint(e.Chunk, x[0], x[1], x[2], x[3]))
			}
		}
	}
	return
}
