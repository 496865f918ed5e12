package topology

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/notargets/globemesh/radial"
	"github.com/notargets/globemesh/types"
)

// Assign tags a shell element. The region follows the base layer of the
// element, the flag follows its mean corner radius.
func (t *Topology) Assign(layer int, radius float64) types.ElementTag {
	r := t.Params.Radii
	var region types.Region
	switch base := t.Plan.Layers[layer].BaseLayer; base {
	case radial.OuterCoreBase:
		region = types.OuterCore
	case radial.InnerCoreBase:
		region = types.InnerCore
	default:
		region = types.CrustMantle
	}
	var flag types.Flag
	switch region {
	case types.OuterCore:
		flag = types.FlagOuterCoreNormal
	case types.InnerCore:
		flag = types.FlagInnerCoreNormal
	default:
		switch {
		case radius > r.MohoFictitious:
			flag = types.FlagCrust
		case radius > r.R220:
			flag = types.Flag220Moho
		case radius > r.R670:
			flag = types.Flag670_220
		default:
			flag = types.FlagMantleNormal
		}
	}
	tag, err := types.NewElementTag(region, flag)
	if err != nil {
		panic(err)
	}
	return tag
}

// AssignCube tags a central cube element from its layer k in the cube lattice.
// The half of the cube generated by chunk c is numbered from the cube center
// outward, so the bottom flag marks the center plane and the top flag the
// layer touching the inner core shell. On a cube only one element thick per
// half the bottom flag wins.
func (t *Topology) AssignCube(c types.ChunkID, k int) types.ElementTag {
	if !t.Params.IncludeCentralCube {
		return types.TagOf(types.FlagInFictitiousCube)
	}
	half := t.nc / 2
	kl := k - half
	if c == types.ChunkABAntipode {
		kl = half - 1 - k
	}
	switch kl {
	case 0:
		return types.TagOf(types.FlagBottomCentralCube)
	case half - 1:
		return types.TagOf(types.FlagTopCentralCube)
	}
	return types.TagOf(types.FlagInCentralCube)
}

// Retag recomputes the tag of an element from its geometry alone.
func (t *Topology) Retag(e *Element) types.ElementTag {
	if e.IsCube() {
		return t.AssignCube(e.Chunk, e.Cube[2])
	}
	return t.Assign(e.Layer, t.midRadius(e.Local))
}

// Reassign retags every element and reports those whose stored tag differs.
func (t *Topology) Reassign(elements []*Element) (err error) {
	for n, e := range elements {
		if tag := t.Retag(e); tag != e.Tag {
			err = multierr.Append(err, fmt.Errorf("element %d in chunk %s layer %d: tag %s, recomputed %s",
				n, e.Chunk, e.Layer, e.Tag, tag))
		}
	}
	return
}

// AttenuationRegionAt selects the attenuation band for a radius in meters.
func (t *Topology) AttenuationRegionAt(radius float64) types.AttenuationRegion {
	return t.Params.Radii.AttenuationRegion(radius)
}
