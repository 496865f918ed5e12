package radial

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/globemesh/InputParameters"
	"github.com/notargets/globemesh/superbrick"
	"github.com/notargets/globemesh/types"
)

func TestPlanDefaults(t *testing.T) {
	mp := InputParameters.NewDefaultParameters()
	p, err := NewPlan(mp)
	require.NoError(t, err)
	// Eleven base layers, two of them split by a doubling
	require.Equal(t, 13, len(p.Layers))
	assert.Equal(t, []int{8, 11}, p.Doublings())
	assert.Equal(t, 4, p.CoarsestWidth())

	d2 := p.Layers[8]
	assert.True(t, d2.IsDoublingLayer)
	assert.Equal(t, 7, d2.BaseLayer)
	// 1650 km depth snaps to the fourth of eight cells below 771 km
	assert.InDelta(t, 5600000.-4*1970000./8, d2.OuterRadius, 1.e-6)
	assert.Equal(t, 4, d2.AverageElementCount)
	assert.Equal(t, 4, p.Layers[7].AverageElementCount)
	assert.Equal(t, 2, d2.Width)
	assert.Equal(t, 1, p.FineWidth(8))

	d3 := p.Layers[11]
	assert.Equal(t, 9, d3.BaseLayer)
	assert.InDelta(t, 3480000.-4*(3480000.-1221000.)/10, d3.OuterRadius, 1.e-6)
	assert.Equal(t, 4, d3.Width)
	assert.Equal(t, 4, p.Layers[12].Width)

	// Layers tile the radius without gaps
	assert.Equal(t, mp.Radii.Earth, p.Layers[0].OuterRadius)
	assert.Equal(t, mp.Radii.CentralCube, p.Layers[len(p.Layers)-1].InnerRadius)
	for i := 1; i < len(p.Layers); i++ {
		assert.Equal(t, p.Layers[i-1].InnerRadius, p.Layers[i].OuterRadius)
	}

	// Levels: every cell boundary plus five intermediate brick heights per doubling
	cells := 0
	for _, l := range p.Layers {
		cells += l.AverageElementCount
	}
	assert.Equal(t, cells+1+2*len(superbrick.IntermediateCodes()), len(p.Levels))
	for i := 1; i < len(p.Levels); i++ {
		assert.Less(t, p.Levels[i].Radius, p.Levels[i-1].Radius)
		assert.Equal(t, i, p.Levels[i].ID)
	}
	assert.Equal(t, mp.Radii.CentralCube, p.Radius(p.BottomLevel()))
	assert.Equal(t, mp.Radii.CMB, p.Radius(p.TopLevelOfBase(OuterCoreBase)))
	assert.Equal(t, mp.Radii.ICB, p.Radius(p.TopLevelOfBase(InnerCoreBase)))
	assert.Equal(t, -1., p.Levels[p.TopLevelOfBase(InnerCoreBase)].Blend)
	assert.Equal(t, 0., p.Levels[p.BottomLevel()].Blend)

	// Brick heights sit between the brick cell boundaries in code order
	prev := p.Radius(p.BrickLevel(8, superbrick.CodeTop))
	for _, code := range append(superbrick.IntermediateCodes(), superbrick.CodeBottom) {
		r := p.Radius(p.BrickLevel(8, code))
		assert.Less(t, r, prev)
		prev = r
	}
	assert.Equal(t, p.LevelAt(8, 1), p.BrickLevel(8, superbrick.CodeBottom))
	// The brick cell is twice as tall as the regular cells under it
	for _, li := range p.Doublings() {
		brick := p.Radius(p.LevelAt(li, 0)) - p.Radius(p.LevelAt(li, 1))
		assert.InDelta(t, 2*(p.Radius(p.LevelAt(li, 1))-p.Radius(p.LevelAt(li, 2))), brick, 1.e-6)
		assert.InDelta(t, brick/2, p.Radius(p.LevelAt(li, 0))-p.Radius(p.BrickLevel(li, 20)), 1.e-6)
	}
	assert.Equal(t, 30, p.Levels[p.BrickLevel(11, 30)].Code)
	assert.Panics(t, func() { p.BrickLevel(0, 30) })

	// Element counts per chunk for NEX 16
	assert.Equal(t, 16*16, p.LayerElements(0, 16))
	assert.Equal(t, 3*8*8+4*4*32, p.LayerElements(8, 16))
	assert.Equal(t, 5*4*4+2*2*32, p.LayerElements(11, 16))

	var buf bytes.Buffer
	p.Print(&buf)
	assert.Contains(t, buf.String(), "771_d2_doubling2")
	assert.Contains(t, buf.String(), "13 layers, 2 doublings")
}

func TestPlanFourthDoubling(t *testing.T) {
	mp := InputParameters.NewDefaultParameters()
	mp.Doublings.EnableFourth = true
	// The reference depth falls in the outer core next to the third doubling
	_, err := NewPlan(mp)
	var cfgErr *types.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "Doublings", cfgErr.Parameter)
	assert.Contains(t, cfgErr.Reason, "outer_core")

	mp.Doublings.Fourth = 700000
	p, err := NewPlan(mp)
	require.NoError(t, err)
	require.Equal(t, 14, len(p.Layers))
	assert.Equal(t, []int{7, 9, 12}, p.Doublings())
	assert.Equal(t, 8, p.CoarsestWidth())
	assert.Equal(t, 6, p.Layers[6].BaseLayer)
	// 700 km lands inside the 670-771 layer, snapped to its only interior boundary
	assert.Equal(t, 1, p.Layers[6].AverageElementCount)
	assert.Equal(t, 1, p.Layers[7].AverageElementCount)
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1, 1, 2, 2, 4, 4, 4, 8, 8}, widths(p))

	// Disabling it again renumbers everything downstream
	mp.Doublings.EnableFourth = false
	p2, err := NewPlan(mp)
	require.NoError(t, err)
	assert.Equal(t, 13, len(p2.Layers))
	assert.Equal(t, len(p.Levels)-len(superbrick.IntermediateCodes()), len(p2.Levels))
}

func widths(p *Plan) (w []int) {
	for li := range p.Layers {
		w = append(w, p.Width(li))
	}
	return
}

func TestPlanSnap(t *testing.T) {
	mp := InputParameters.NewDefaultParameters()
	top, bot := mp.Radii.R771, mp.Radii.TopDDoublePrime
	cell := (top - bot) / 8
	snapped := func(r float64) int {
		mp.Doublings.Second = mp.Radii.Earth - r
		p, err := NewPlan(mp)
		require.NoError(t, err)
		return p.Layers[7].AverageElementCount
	}
	// Exactly half way between boundaries 2 and 3 rounds toward the surface
	assert.Equal(t, 2, snapped(top-2.5*cell))
	assert.Equal(t, 3, snapped(top-2.51*cell))
	assert.Equal(t, 2, snapped(top-2.49*cell))
	// Near the layer top and bottom the split keeps at least one cell on each side
	assert.Equal(t, 1, snapped(top-0.01*cell))
	assert.Equal(t, 7, snapped(bot+0.01*cell))

	mp = InputParameters.NewDefaultParameters()
	mp.LayerElements[7] = 1
	_, err := NewPlan(mp)
	var cfgErr *types.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "LayerElements", cfgErr.Parameter)
}
