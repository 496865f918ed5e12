package decompose

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/globemesh/InputParameters"
	"github.com/notargets/globemesh/radial"
	"github.com/notargets/globemesh/superbrick"
	"github.com/notargets/globemesh/topology"
	"github.com/notargets/globemesh/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestDecomposer(t *testing.T, modify func(mp *InputParameters.MeshParameters)) *Decomposer {
	mp := InputParameters.NewDefaultParameters()
	if modify != nil {
		modify(mp)
	}
	plan, err := radial.NewPlan(mp)
	require.NoError(t, err)
	topo, err := topology.NewTopology(mp, plan, superbrick.Reference(), nil)
	require.NoError(t, err)
	d, err := NewDecomposer(topo, nil)
	require.NoError(t, err)
	return d
}

func TestSliceNumbering(t *testing.T) {
	d := newTestDecomposer(t, func(mp *InputParameters.MeshParameters) {
		mp.NProcXi, mp.NProcEta = 2, 2
	})
	assert.Equal(t, 24, d.NumSlices())
	for id := 0; id < d.NumSlices(); id++ {
		c, px, py := d.SliceCoords(id)
		assert.Equal(t, id, d.SliceID(c, px, py))
	}
	assert.Equal(t, 7, d.SliceID(types.ChunkAC, 1, 1))
	assert.Equal(t, topology.Range{I0: 8, I1: 16, J0: 0, J1: 8}, d.SliceRange(1, 0))

	for _, tc := range []struct{ i, lo, hi int }{
		{0, 0, 0}, {3, 0, 0}, {8, 0, 1}, {12, 1, 1}, {16, 1, 1},
	} {
		lo, hi := procRange(tc.i, 8, 2)
		assert.Equal(t, [2]int{tc.lo, tc.hi}, [2]int{lo, hi}, "index %d", tc.i)
	}

	// The node at the center of a chunk is held by its four slices
	assert.Equal(t, []int{0, 1, 2, 3}, d.Touching(types.NodeKey{Chunk: types.ChunkAB, I: 8, J: 8, L: 0}))
	// A chunk corner by one slice of each of three chunks
	k := d.topo.Canonical(types.NodeKey{Chunk: types.ChunkAB, I: 0, J: 0, L: 3})
	assert.Equal(t, 3, len(d.Touching(k)))
	// A cube node at the center of the cube by the slices owning its eight elements
	nc := d.topo.CubeSide()
	center := d.Touching(types.NodeKey{Chunk: types.CubeChunk, I: nc / 2, J: nc / 2, L: nc / 2})
	assert.Equal(t, []int{0, 1, 2, 3, 20, 21, 22, 23}, center)
}

func TestDecompose(t *testing.T) {
	d := newTestDecomposer(t, func(mp *InputParameters.MeshParameters) {
		mp.NProcXi, mp.NProcEta = 2, 2
	})
	slices, err := d.Decompose(context.Background())
	require.NoError(t, err)
	require.Equal(t, 24, len(slices))
	require.NoError(t, d.CheckCovering(slices))

	owned := make(map[types.NodeKey]int)
	for _, s := range slices {
		assert.True(t, s.Finalized)
		assert.Equal(t, d.BuildID(), s.BuildID)
		_, err = d.CheckConforming(s)
		require.NoError(t, err, "slice %d", s.ID)

		for _, f := range s.Faces {
			require.GreaterOrEqual(t, f.Neighbor, 0, "slice %d side %s", s.ID, f.Side)
			assert.NotEmpty(t, f.Nodes)
			assert.Contains(t, s.Neighbors, f.Neighbor)
		}
		rings := map[types.Corner]int{}
		for _, c := range s.Corners {
			assert.Contains(t, c.Ring, s.ID)
			rings[c.Corner] = len(c.Ring)
		}
		// Quadrant slices have one corner on a chunk corner, one at the chunk
		// center and two at chunk edge midpoints
		counts := map[int]int{}
		for _, n := range rings {
			counts[n]++
		}
		assert.Equal(t, map[int]int{3: 1, 4: 3}, counts, "slice %d", s.ID)

		for id, b := range s.Neighbors {
			other := slices[id]
			require.Equal(t, len(b.Nodes), len(b.NeighborNodes))
			for i, n := range b.Nodes {
				assert.Equal(t, s.Keys[n], other.Keys[b.NeighborNodes[i]])
			}
		}
		for n, k := range s.Keys {
			if s.Owner[n] == s.ID {
				owned[k]++
			}
		}

		cmb, icb := s.Coupling[types.CMB], s.Coupling[types.ICB]
		assert.True(t, cmb.Enabled)
		assert.Equal(t, 16, len(cmb.Pairs))
		assert.Equal(t, 4, len(icb.Pairs))
		for _, p := range append(cmb.Pairs, icb.Pairs...) {
			assert.Equal(t, types.CC_TractionContinuity, p.SolidCondition)
			assert.Equal(t, types.CC_AssembleOnly, p.FluidCondition)
			assert.True(t, s.Elements[p.Fluid.Element].Tag.Region().IsFluid())
			assert.False(t, s.Elements[p.Solid.Element].Tag.Region().IsFluid())
		}
	}
	// Every node is owned by exactly one slice
	distinct := make(map[types.NodeKey]bool)
	for _, s := range slices {
		for _, k := range s.Keys {
			distinct[k] = true
		}
	}
	assert.Equal(t, len(distinct), len(owned))
	for k, n := range owned {
		require.Equal(t, 1, n, "node %v", k)
	}

	cm := CommunicationMatrix(slices)
	assert.True(t, cm.IsSymmetric())
	assert.Equal(t, 0., cm.At(0, 0))
	assert.Equal(t, float64(len(slices[0].Neighbors[1].Nodes)), cm.At(0, 1))
}

func TestSingleChunk(t *testing.T) {
	d := newTestDecomposer(t, func(mp *InputParameters.MeshParameters) {
		mp.NChunks = 1
	})
	require.Equal(t, 1, d.NumSlices())
	slices, err := d.Decompose(context.Background())
	require.NoError(t, err)
	s := slices[0]
	assert.True(t, s.Finalized)
	assert.Empty(t, s.Neighbors)
	for _, f := range s.Faces {
		assert.Equal(t, -1, f.Neighbor)
		assert.Empty(t, f.Nodes)
	}
	for _, c := range s.Corners {
		assert.Equal(t, []int{0}, c.Ring)
	}
	require.NoError(t, d.CheckCovering(slices))
	m, err := d.CheckConforming(s)
	require.NoError(t, err)
	assert.Equal(t, d.topo.ChunkElementCount(), m.NumElements)
	for _, e := range s.Elements {
		assert.False(t, e.IsCube())
	}
}

func TestCouplingDisabled(t *testing.T) {
	d := newTestDecomposer(t, func(mp *InputParameters.MeshParameters) {
		mp.NChunks = 1
		mp.CoupleFluidCMB = false
	})
	s, err := d.BuildSlice(context.Background(), 0)
	require.NoError(t, err)
	cmb, icb := s.Coupling[types.CMB], s.Coupling[types.ICB]
	assert.False(t, cmb.Enabled)
	assert.Empty(t, cmb.Pairs)
	assert.Equal(t, 64, len(cmb.SolidFaces))
	assert.Equal(t, 64, len(cmb.FluidFaces))
	// The exposed faces of a disabled coupling are free boundaries
	for _, f := range append(cmb.SolidFaces, cmb.FluidFaces...) {
		assert.Equal(t, types.CC_FreeBoundary, f.Condition)
	}
	assert.Equal(t, "free", types.CC_FreeBoundary.String())
	assert.True(t, icb.Enabled)
	assert.Equal(t, 16, len(icb.Pairs))
	for _, p := range icb.Pairs {
		assert.Equal(t, p.Solid.Key, p.Fluid.Key)
		assert.Equal(t, types.CC_TractionContinuity, p.Solid.Condition)
		assert.Equal(t, types.CC_AssembleOnly, p.Fluid.Condition)
	}
}

func TestReconcileMismatch(t *testing.T) {
	d := newTestDecomposer(t, nil)
	build := func() (slices []*Slice) {
		for id := 0; id < d.NumSlices(); id++ {
			s, err := d.BuildSlice(context.Background(), id)
			require.NoError(t, err)
			slices = append(slices, s)
		}
		return
	}
	{ // A shared node moved on one side
		slices := build()
		b := slices[1].Neighbors[0]
		n := b.Nodes[len(b.Nodes)/2]
		slices[1].Coords[n] = r3.Add(slices[1].Coords[n], r3.Vec{X: 1})
		err := d.Reconcile(context.Background(), slices)
		require.Error(t, err)
		list := TopologyErrors(err)
		require.NotEmpty(t, list)
		var pairs [][2]int
		for _, te := range list {
			pairs = append(pairs, [2]int{te.SliceA, te.SliceB})
			assert.Equal(t, "nodes", te.Boundary)
		}
		assert.Contains(t, pairs, [2]int{1, 0})
		assert.Contains(t, pairs, [2]int{0, 1})
		for _, s := range slices {
			assert.False(t, s.Finalized)
		}
	}
	{ // A slice from another build
		slices := build()
		slices[2].BuildID = uuid.New()
		err := d.Reconcile(context.Background(), slices)
		var te *types.TopologyConsistencyError
		require.True(t, errors.As(err, &te))
		for _, e := range TopologyErrors(err) {
			assert.True(t, e.SliceA == 2 || e.SliceB == 2)
		}
	}
	{ // A corner ring that disagrees
		slices := build()
		slices[0].Corners[types.LowerLower].Ring = []int{0}
		err := d.Reconcile(context.Background(), slices)
		require.Error(t, err)
		corners := map[string]bool{}
		for c := types.LowerLower; c <= types.UpperUpper; c++ {
			corners[c.String()] = true
		}
		found := false
		for _, e := range TopologyErrors(err) {
			found = found || (corners[e.Boundary] && e.SliceB == 0)
		}
		assert.True(t, found)
	}
	{ // A face node list that disagrees
		slices := build()
		f := &slices[3].Faces[types.XiMax]
		f.Nodes = f.Nodes[1:]
		require.Error(t, d.Reconcile(context.Background(), slices))
	}
	{ // Missing slices are refused before any message is sent
		slices := build()
		slices[4] = nil
		assert.Error(t, d.Reconcile(context.Background(), slices))
	}
}

func TestBuildSlice(t *testing.T) {
	d := newTestDecomposer(t, func(mp *InputParameters.MeshParameters) {
		mp.NProcXi, mp.NProcEta = 2, 2
		mp.Projection = InputParameters.ProjectionGnomonic
	})
	a, err := d.BuildSlice(context.Background(), 5)
	require.NoError(t, err)
	b, err := d.BuildSlice(context.Background(), 5)
	require.NoError(t, err)
	// Slice generation depends on the id alone
	assert.Empty(t, cmp.Diff(a.Keys, b.Keys))
	assert.Empty(t, cmp.Diff(a.Coords, b.Coords))
	assert.Empty(t, cmp.Diff(a.Elements, b.Elements, cmp.AllowUnexported(types.ElementTag{})))
	assert.Empty(t, cmp.Diff(a.ControlCoords, b.ControlCoords))

	for n, k := range a.Keys {
		m, ok := a.Node(k)
		require.True(t, ok)
		require.Equal(t, n, m)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.BuildSlice(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = d.BuildSlice(context.Background(), d.NumSlices())
	assert.Error(t, err)
	_, err = d.Decompose(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSliceGeometry(t *testing.T) {
	d := newTestDecomposer(t, func(mp *InputParameters.MeshParameters) { mp.NGLL = 4 })
	s, err := d.BuildSlice(context.Background(), 0)
	require.NoError(t, err)
	earth := d.Topology().Params.Radii.Earth
	require.Equal(t, 4, s.NGLL)
	require.Equal(t, len(s.Elements), len(s.GLL))

	var regular int
	for k, e := range s.Elements {
		pts := s.GLL[k]
		require.Equal(t, 64, len(pts))
		for q, c := range [8]int{0, 3, 15, 12, 48, 51, 63, 60} {
			require.InDelta(t, 0., r3.Norm(r3.Sub(s.Coords[e.Corners[q]], pts[c])), 1.e-6)
		}
		surface := !e.IsCube() && s.Keys[e.Corners[4]].L == 0
		if surface {
			for _, p := range pts[48:] {
				require.InDelta(t, earth, r3.Norm(p), 1.e-6)
			}
		}
		if e.Control == nil {
			continue
		}
		regular++
		require.Equal(t, 27, len(e.Control))
		for q, c := range [8]int{0, 2, 8, 6, 18, 20, 26, 24} {
			require.InDelta(t, 0., r3.Norm(r3.Sub(s.Coords[e.Corners[q]], s.ControlCoords[e.Control[c]])), 1.e-6)
		}
		if surface {
			assert.InDelta(t, earth, r3.Norm(s.ControlCoords[e.Control[22]]), 1.e-6)
		}
	}
	assert.Greater(t, regular, 0)
	assert.Less(t, regular, len(s.Elements))
	// Control nodes are shared between elements, never duplicated
	seen := make(map[types.GeomKey]bool)
	for _, k := range s.ControlKeys {
		require.False(t, seen[k], "control node %v", k)
		seen[k] = true
	}
	assert.Less(t, len(s.ControlKeys), 27*regular)
}

func TestAllowedBoundary(t *testing.T) {
	d := newTestDecomposer(t, func(mp *InputParameters.MeshParameters) {
		mp.NProcXi, mp.NProcEta = 2, 2
	})
	s, err := d.BuildSlice(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 1, s.Faces[types.XiMax].Neighbor)
	face := func(i0, j0, i1, j1, l int) [4]types.NodeKey {
		ab := types.ChunkAB
		return [4]types.NodeKey{
			{Chunk: ab, I: i0, J: j0, L: l}, {Chunk: ab, I: i1, J: j1, L: l},
			{Chunk: ab, I: i1, J: j1, L: l + 1}, {Chunk: ab, I: i0, J: j0, L: l + 1},
		}
	}
	for _, tc := range []struct {
		name string
		keys [4]types.NodeKey
		want bool
	}{
		{"free surface", [4]types.NodeKey{{I: 2, J: 2}, {I: 3, J: 2}, {I: 3, J: 3}, {I: 2, J: 3}}, true},
		{"side facing slice 1", face(8, 2, 8, 3, 1), true},
		{"side facing slice 2", face(4, 8, 5, 8, 1), true},
		{"chunk edge", face(0, 2, 0, 3, 1), true},
		{"interior", face(4, 2, 4, 3, 1), false},
		// Touched only by slices 2 and 3, outside this slice altogether
		{"beyond the slice", face(8, 10, 8, 11, 1), false},
	} {
		assert.Equal(t, tc.want, d.allowedBoundary(s, tc.keys), tc.name)
	}
}

func TestDecomposerErrors(t *testing.T) {
	mp := InputParameters.NewDefaultParameters()
	plan, err := radial.NewPlan(mp)
	require.NoError(t, err)
	topo, err := topology.NewTopology(mp, plan, superbrick.Reference(), nil)
	require.NoError(t, err)
	topo.Params.NProcXi = 8
	_, err = NewDecomposer(topo, nil)
	var cfgErr *types.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "NProcXi", cfgErr.Parameter)
	topo.Params.NProcXi, topo.Params.NProcEta = 1, 3
	_, err = NewDecomposer(topo, nil)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "NProcEta", cfgErr.Parameter)
}
