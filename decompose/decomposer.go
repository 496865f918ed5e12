package decompose

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/globemesh/topology"
	"github.com/notargets/globemesh/types"
	"github.com/notargets/globemesh/utils"
)

/*
Decomposer cuts every chunk into an NProcXi x NProcEta grid of slices.
Slice ids run chunk major, then eta, then xi:

	id = chunk*NProcXi*NProcEta + procEta*NProcXi + procXi

A slice gets the columns of its lateral block, from the surface down through
the central cube elements its chunk generates under the block.
*/
type Decomposer struct {
	topo              *topology.Topology
	nProcXi, nProcEta int
	sx, sy            int // surface elements per slice along xi and eta
	perChunk          int
	buildID           uuid.UUID
	tolerance         float64
	logger            *zap.Logger
}

func NewDecomposer(topo *topology.Topology, logger *zap.Logger) (d *Decomposer, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mp := topo.Params
	d = &Decomposer{
		topo:      topo,
		nProcXi:   mp.NProcXi,
		nProcEta:  mp.NProcEta,
		perChunk:  mp.NProcXi * mp.NProcEta,
		buildID:   uuid.New(),
		tolerance: mp.Tolerance,
		logger:    logger,
	}
	nex, cw := topo.NEX(), topo.CubeWidth()
	for _, p := range []struct {
		name  string
		nproc int
		size  *int
	}{{"NProcXi", d.nProcXi, &d.sx}, {"NProcEta", d.nProcEta, &d.sy}} {
		if p.nproc < 1 || nex%p.nproc != 0 {
			return nil, types.NewConfigurationError(p.name, "NEX %d is not divisible by %d", nex, p.nproc)
		}
		*p.size = nex / p.nproc
		if *p.size%cw != 0 {
			return nil, types.NewConfigurationError(p.name,
				"slice width %d is not a multiple of the coarsest element width %d", *p.size, cw)
		}
	}
	logger.Debug("decomposer ready", zap.Int("slices", d.NumSlices()),
		zap.Int("sliceXi", d.sx), zap.Int("sliceEta", d.sy), zap.Stringer("build", d.buildID))
	return
}

func (d *Decomposer) NumSlices() int { return d.perChunk * len(d.topo.Chunks()) }

func (d *Decomposer) BuildID() uuid.UUID { return d.buildID }

func (d *Decomposer) Topology() *topology.Topology { return d.topo }

func (d *Decomposer) SliceID(c types.ChunkID, px, py int) int {
	return int(c)*d.perChunk + py*d.nProcXi + px
}

func (d *Decomposer) SliceCoords(id int) (c types.ChunkID, px, py int) {
	c = types.ChunkID(id / d.perChunk)
	r := id % d.perChunk
	return c, r % d.nProcXi, r / d.nProcXi
}

func (d *Decomposer) SliceRange(px, py int) topology.Range {
	return topology.Range{I0: px * d.sx, I1: (px + 1) * d.sx, J0: py * d.sy, J1: (py + 1) * d.sy}
}

// procRange returns the slices along one axis whose closed range holds index i.
func procRange(i, size, nproc int) (lo, hi int) {
	q := i / size
	lo, hi = q, q
	if i%size == 0 {
		lo = q - 1
	}
	return max(lo, 0), min(hi, nproc-1)
}

// Touching returns every slice holding the node, ascending.
func (d *Decomposer) Touching(k types.NodeKey) (ids []int) {
	seen := make(map[int]bool)
	add := func(c types.ChunkID, i, j int) {
		xl, xh := procRange(i, d.sx, d.nProcXi)
		yl, yh := procRange(j, d.sy, d.nProcEta)
		for py := yl; py <= yh; py++ {
			for px := xl; px <= xh; px++ {
				seen[d.SliceID(c, px, py)] = true
			}
		}
	}
	for _, r := range d.topo.Representations(k) {
		add(r.Chunk, r.I, r.J)
	}
	if k.IsCube() && d.topo.BuildsCube() {
		nc, cw := d.topo.CubeSide(), d.topo.CubeWidth()
		for ez := k.L - 1; ez <= k.L; ez++ {
			for ey := k.J - 1; ey <= k.J; ey++ {
				for ex := k.I - 1; ex <= k.I; ex++ {
					if ex < 0 || ey < 0 || ez < 0 || ex >= nc || ey >= nc || ez >= nc {
						continue
					}
					c, i, j := d.topo.CubeOwner([3]int{ex, ey, ez})
					seen[d.SliceID(c, i*cw/d.sx, j*cw/d.sy)] = true
				}
			}
		}
	}
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return
}

// faceNeighbor returns the slice across one side of a slice and the side it
// sees this slice through, or -1 on the edge of the meshed region.
func (d *Decomposer) faceNeighbor(c types.ChunkID, px, py int, s types.Side) (id int, side types.Side) {
	dx, dy := 0, 0
	switch s {
	case types.XiMin:
		dx = -1
	case types.XiMax:
		dx = 1
	case types.EtaMin:
		dy = -1
	case types.EtaMax:
		dy = 1
	}
	nx, ny := px+dx, py+dy
	if nx >= 0 && nx < d.nProcXi && ny >= 0 && ny < d.nProcEta {
		return d.SliceID(c, nx, ny), s ^ 1
	}
	e := topology.Across(c, s)
	if !d.topo.ChunkExists(e.Chunk) {
		return -1, s
	}
	pos, nAlong := py, d.nProcEta
	if s == types.EtaMin || s == types.EtaMax {
		pos, nAlong = px, d.nProcXi
	}
	if e.Reversed {
		pos = nAlong - 1 - pos
	}
	switch e.Side {
	case types.XiMin:
		return d.SliceID(e.Chunk, 0, pos), e.Side
	case types.XiMax:
		return d.SliceID(e.Chunk, d.nProcXi-1, pos), e.Side
	case types.EtaMin:
		return d.SliceID(e.Chunk, pos, 0), e.Side
	default:
		return d.SliceID(e.Chunk, pos, d.nProcEta-1), e.Side
	}
}

// onSide reports whether a node lies on one side plane of a slice range as
// seen from chunk c. Shell nodes off the chunk are never on it.
func (d *Decomposer) onSide(c types.ChunkID, rg topology.Range, s types.Side, k types.NodeKey) bool {
	var i, j int
	if k.IsCube() {
		i, j = d.topo.Lateral(c, k)
	} else {
		found := false
		for _, r := range d.topo.Representations(k) {
			if r.Chunk == c {
				i, j, found = r.I, r.J, true
			}
		}
		if !found {
			return false
		}
	}
	switch s {
	case types.XiMin:
		return i == rg.I0
	case types.XiMax:
		return i == rg.I1
	case types.EtaMin:
		return j == rg.J0
	default:
		return j == rg.J1
	}
}

// cornerKey is the canonical surface node at a corner of a slice.
func (d *Decomposer) cornerKey(c types.ChunkID, rg topology.Range, corner types.Corner) types.NodeKey {
	xs, es := corner.Sides()
	k := types.NodeKey{Chunk: c, I: rg.I0, J: rg.J0}
	if xs == types.XiMax {
		k.I = rg.I1
	}
	if es == types.EtaMax {
		k.J = rg.J1
	}
	return d.topo.Canonical(k)
}

// BuildSlice generates the elements, nodes and shared boundaries of one slice.
// It depends only on the parameters and the slice id.
func (d *Decomposer) BuildSlice(ctx context.Context, id int) (s *Slice, err error) {
	if id < 0 || id >= d.NumSlices() {
		return nil, fmt.Errorf("slice %d out of range [0,%d)", id, d.NumSlices())
	}
	var (
		topo      = d.topo
		c, px, py = d.SliceCoords(id)
		rg        = d.SliceRange(px, py)
	)
	s = newSlice(id, c, px, py, rg, d.buildID)
	s.NGLL = topo.Params.NGLL
	topo.BuildColumns(c, rg, func(e *topology.Element) {
		var le LocalElement
		for q, k := range e.Corners {
			le.Corners[q] = s.addNode(k)
		}
		if e.Control != nil {
			le.Control = make([]int, len(e.Control))
			for q, k := range e.Control {
				le.Control[q] = s.addControl(k)
			}
		}
		le.Layer, le.Tag, le.Key = e.Layer, e.Tag, types.NewElementKey(e.Corners)
		s.Elements = append(s.Elements, le)
		s.GLL = append(s.GLL, topo.GLLPoints(e, s.NGLL))
	})
	if err = ctx.Err(); err != nil {
		return nil, err
	}
	s.ControlCoords = make([]r3.Vec, len(s.ControlKeys))
	for n, k := range s.ControlKeys {
		s.ControlCoords[n] = topo.PositionGeom(k)
	}

	touch := make([][]int, len(s.Keys))
	s.Coords = make([]r3.Vec, len(s.Keys))
	s.Owner = make([]int, len(s.Keys))
	for n, k := range s.Keys {
		s.Coords[n] = topo.Position(k)
		touch[n] = d.Touching(k)
		if len(touch[n]) == 0 || !contains(touch[n], id) {
			return nil, types.NewTopologyError(id, -1, "nodes", "node %v is not attributed to its own slice", k)
		}
		s.Owner[n] = touch[n][0]
		for _, o := range touch[n] {
			if o == id {
				continue
			}
			b, ok := s.Neighbors[o]
			if !ok {
				b = &SharedBoundary{Neighbor: o}
				s.Neighbors[o] = b
			}
			b.Nodes = append(b.Nodes, n)
		}
	}
	for _, b := range s.Neighbors {
		s.sortByKey(b.Nodes)
	}

	for side := types.XiMin; side <= types.EtaMax; side++ {
		f := SharedFace{Side: side}
		f.Neighbor, f.NeighborSide = d.faceNeighbor(c, px, py, side)
		if f.Neighbor >= 0 {
			nc, npx, npy := d.SliceCoords(f.Neighbor)
			nrg := d.SliceRange(npx, npy)
			for n, k := range s.Keys {
				if d.onSide(c, rg, side, k) && d.onSide(nc, nrg, f.NeighborSide, k) &&
					contains(touch[n], f.Neighbor) {
					f.Nodes = append(f.Nodes, n)
				}
			}
			s.sortByKey(f.Nodes)
		}
		s.Faces[side] = f
	}
	for corner := types.LowerLower; corner <= types.UpperUpper; corner++ {
		k := d.cornerKey(c, rg, corner)
		s.Corners[corner] = SharedCorner{Corner: corner, Key: k, Ring: d.Touching(k)}
	}
	if err = d.buildCoupling(s); err != nil {
		return nil, err
	}
	d.logger.Debug("slice built", zap.Int("slice", id), zap.Stringer("chunk", c),
		zap.Int("elements", len(s.Elements)), zap.Int("nodes", len(s.Keys)),
		zap.Int("neighbors", len(s.Neighbors)))
	return
}

func maxWorkers() int { return runtime.NumCPU() }

func contains(sorted []int, v int) bool {
	i := sort.SearchInts(sorted, v)
	return i < len(sorted) && sorted[i] == v
}

// Decompose builds every slice concurrently, then reconciles their shared
// boundaries. The slices are returned finalized or not at all.
func (d *Decomposer) Decompose(ctx context.Context) (slices []*Slice, err error) {
	n := d.NumSlices()
	slices = make([]*Slice, n)
	pm := utils.NewPartitionMap(min(maxWorkers(), n), n)
	g, gctx := errgroup.WithContext(ctx)
	for bn := 0; bn < pm.ParallelDegree; bn++ {
		kMin, kMax := pm.GetBucketRange(bn)
		g.Go(func() error {
			for id := kMin; id < kMax; id++ {
				s, err := d.BuildSlice(gctx, id)
				if err != nil {
					return err
				}
				slices[id] = s
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}
	if err = d.Reconcile(ctx, slices); err != nil {
		return nil, err
	}
	d.logger.Info("decomposition complete", zap.Int("slices", n), zap.String("memory", utils.GetMemUsage()))
	return
}
