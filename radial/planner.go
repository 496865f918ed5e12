package radial

import (
	"fmt"
	"io"
	"math"

	"github.com/notargets/globemesh/InputParameters"
	"github.com/notargets/globemesh/superbrick"
	"github.com/notargets/globemesh/types"
)

const (
	InnerCoreBase = InputParameters.NBLayersSamplingStudy - 1
	OuterCoreBase = InputParameters.NBLayersSamplingStudy - 2
)

var baseNames = [InputParameters.NBLayersSamplingStudy]string{
	"crust", "moho_80", "80_220", "220_400", "400_600", "600_670",
	"670_771", "771_d2", "d2_cmb", "outer_core", "inner_core",
}

// RadialLayer is a spherical shell meshed with a uniform lateral element width.
// A doubling layer hosts a row of superbricks in its outermost cell, the
// remaining cells are regular at twice the width of the layer above. The brick
// cell is twice as tall as the regular cells below it.
type RadialLayer struct {
	Name                     string
	BaseLayer                int
	OuterRadius, InnerRadius float64
	AverageElementCount      int // radial cells, the brick cell counts as one
	IsDoublingLayer          bool
	Width                    int // lateral element width in surface element units
}

type Level struct {
	ID     int
	Radius float64
	Layer  int     // the layer above a layer boundary, or the layer holding the level
	Code   int     // superbrick height code, -1 when not inside a brick cell
	Blend  float64 // weight of the spherical shape in the inner core, -1 elsewhere
}

// Plan is the radial layering of the sphere, surface first. It is computed once
// and shared read-only by everything downstream.
type Plan struct {
	Layers []RadialLayer
	Levels []Level

	cells       [][]int       // level ids of cell boundaries per layer
	brickLevels []map[int]int // code -> level id per doubling layer
	doublings   []int
}

type doublingSplit struct {
	number int // 2, 3 or 4
	j      int // cell boundary counted from the base layer top
}

// NewPlan splits the base layers at the doubling radii and numbers the radial
// levels. The doubling radius is snapped to the nearest cell boundary of its
// base layer, ties rounding toward the surface, and never onto the layer's own
// top or bottom.
func NewPlan(mp *InputParameters.MeshParameters) (p *Plan, err error) {
	cfg := types.NewConfigurationError
	bounds := mp.BaseBoundaries()
	if len(mp.LayerElements) != InputParameters.NBLayersSamplingStudy {
		return nil, cfg("LayerElements", "need %d entries, have %d",
			InputParameters.NBLayersSamplingStudy, len(mp.LayerElements))
	}
	splits := make(map[int]doublingSplit)
	for i, depth := range mp.DoublingDepths() {
		number := i + 2
		rD := bounds[0] - depth
		base := -1
		for b := 0; b < InputParameters.NBLayersSamplingStudy; b++ {
			if rD <= bounds[b] && rD > bounds[b+1] {
				base = b
				break
			}
		}
		if base < 0 {
			return nil, cfg("Doublings", "doubling %d at radius %.1f is outside the meshed shell", number, rD)
		}
		if other, found := splits[base]; found {
			return nil, cfg("Doublings", "doublings %d and %d both fall in base layer %s",
				other.number, number, baseNames[base])
		}
		ner := mp.LayerElements[base]
		if ner < 2 {
			return nil, cfg("LayerElements", "base layer %s has %d radial element, a doubling needs at least 2",
				baseNames[base], ner)
		}
		cell := (bounds[base] - bounds[base+1]) / float64(ner)
		j := int(math.Ceil((bounds[base]-rD)/cell - 0.5))
		j = max(1, min(ner-1, j))
		splits[base] = doublingSplit{number: number, j: j}
	}

	p = &Plan{}
	width := 1
	for b := 0; b < InputParameters.NBLayersSamplingStudy; b++ {
		top, bot := bounds[b], bounds[b+1]
		ner := mp.LayerElements[b]
		if ner < 1 {
			return nil, cfg("LayerElements", "base layer %s has %d elements", baseNames[b], ner)
		}
		s, split := splits[b]
		if !split {
			p.Layers = append(p.Layers, RadialLayer{Name: baseNames[b], BaseLayer: b,
				OuterRadius: top, InnerRadius: bot, AverageElementCount: ner, Width: width})
			continue
		}
		rD := top - float64(s.j)*(top-bot)/float64(ner)
		p.Layers = append(p.Layers, RadialLayer{Name: baseNames[b], BaseLayer: b,
			OuterRadius: top, InnerRadius: rD, AverageElementCount: s.j, Width: width})
		width *= 2
		p.doublings = append(p.doublings, len(p.Layers))
		p.Layers = append(p.Layers, RadialLayer{Name: fmt.Sprintf("%s_doubling%d", baseNames[b], s.number),
			BaseLayer: b, OuterRadius: rD, InnerRadius: bot, AverageElementCount: ner - s.j,
			IsDoublingLayer: true, Width: width})
	}
	p.numberLevels(mp.Radii.ICB, mp.Radii.CentralCube)
	return
}

func (p *Plan) addLevel(r float64, layer, code int, blend float64) int {
	id := len(p.Levels)
	p.Levels = append(p.Levels, Level{ID: id, Radius: r, Layer: layer, Code: code, Blend: blend})
	return id
}

func (p *Plan) numberLevels(rICB, rCube float64) {
	p.cells = make([][]int, len(p.Layers))
	p.brickLevels = make([]map[int]int, len(p.Layers))
	// The ICB level is numbered by the outer core, so it keeps the exact sphere
	blend := func(l RadialLayer, r float64) float64 {
		if l.BaseLayer != InnerCoreBase {
			return -1
		}
		return (r - rCube) / (rICB - rCube)
	}
	for li, l := range p.Layers {
		ner := l.AverageElementCount
		cell := (l.OuterRadius - l.InnerRadius) / float64(ner)
		if l.IsDoublingLayer {
			cell = (l.OuterRadius - l.InnerRadius) / float64(ner+1)
		}
		ids := make([]int, ner+1)
		for m := 0; m <= ner; m++ {
			r := l.OuterRadius - float64(m)*cell
			if l.IsDoublingLayer && m > 0 {
				r -= cell
			}
			if m == ner {
				r = l.InnerRadius
			}
			switch {
			case m == 0 && li > 0:
				ids[0] = p.cells[li-1][len(p.cells[li-1])-1]
				continue
			case m == 0:
				ids[0] = p.addLevel(r, li, -1, -1)
				continue
			case m == 1 && l.IsDoublingLayer:
				rt := p.Levels[ids[0]].Radius
				p.brickLevels[li] = make(map[int]int)
				for _, code := range superbrick.IntermediateCodes() {
					rb := rt + (r-rt)*float64(superbrick.CodeTop-code)/superbrick.CodeTop
					p.brickLevels[li][code] = p.addLevel(rb, li, code, blend(l, rb))
				}
			}
			ids[m] = p.addLevel(r, li, -1, blend(l, r))
		}
		p.cells[li] = ids
	}
}

// LevelAt returns the level id of cell boundary m of a layer, m = 0 at its top.
func (p *Plan) LevelAt(layer, m int) int {
	return p.cells[layer][m]
}

// BrickLevel maps a superbrick height code in a doubling layer to a level id.
func (p *Plan) BrickLevel(layer, code int) int {
	switch code {
	case superbrick.CodeTop:
		return p.cells[layer][0]
	case superbrick.CodeBottom:
		return p.cells[layer][1]
	}
	id, ok := p.brickLevels[layer][code]
	if !ok {
		panic(fmt.Errorf("layer %d has no superbrick level at code %d", layer, code))
	}
	return id
}

func (p *Plan) Width(layer int) int { return p.Layers[layer].Width }

// FineWidth is the width of the cells on the outer face of a doubling layer's bricks
func (p *Plan) FineWidth(layer int) int { return p.Layers[layer].Width / 2 }

// Doublings returns the indices of the doubling layers, outermost first.
func (p *Plan) Doublings() []int { return p.doublings }

func (p *Plan) NumDoublings() int { return len(p.doublings) }

// CoarsestWidth is the element width of the innermost layer.
func (p *Plan) CoarsestWidth() int { return 1 << len(p.doublings) }

// TopLevelOfBase returns the level id at the top of a base layer.
func (p *Plan) TopLevelOfBase(base int) int {
	for li, l := range p.Layers {
		if l.BaseLayer == base {
			return p.cells[li][0]
		}
	}
	panic(fmt.Errorf("no layer for base layer %d", base))
}

// BottomLevel is the innermost level, the surface of the central cube.
func (p *Plan) BottomLevel() int { return len(p.Levels) - 1 }

// Radius of a level in meters
func (p *Plan) Radius(level int) float64 { return p.Levels[level].Radius }

// LayerElements counts the elements of one layer in one chunk of nex x nex
// surface elements.
func (p *Plan) LayerElements(layer, nex int) int {
	l := p.Layers[layer]
	n := nex / l.Width
	if !l.IsDoublingLayer {
		return l.AverageElementCount * n * n
	}
	bricks := nex / (superbrick.FineCells * p.FineWidth(layer))
	return (l.AverageElementCount-1)*n*n + bricks*bricks*superbrick.NumElements
}

// ChunkElementCount counts the shell elements of one chunk.
func (p *Plan) ChunkElementCount(nex int) (count int) {
	for li := range p.Layers {
		count += p.LayerElements(li, nex)
	}
	return
}

func (p *Plan) Print(w io.Writer) {
	fmt.Fprintf(w, "%-22s %5s %12s %12s %5s %6s %s\n", "Layer", "Base", "Outer(m)", "Inner(m)", "NER", "Width", "Levels")
	for li, l := range p.Layers {
		tag := ""
		if l.IsDoublingLayer {
			tag = " doubling"
		}
		fmt.Fprintf(w, "%-22s %5d %12.1f %12.1f %5d %6d [%d..%d]%s\n", l.Name, l.BaseLayer,
			l.OuterRadius, l.InnerRadius, l.AverageElementCount, l.Width,
			p.cells[li][0], p.cells[li][len(p.cells[li])-1], tag)
	}
	fmt.Fprintf(w, "%d layers, %d doublings, %d radial levels\n", len(p.Layers), len(p.doublings), len(p.Levels))
}
