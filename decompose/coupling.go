package decompose

import (
	"sort"

	"github.com/notargets/globemesh/radial"
	"github.com/notargets/globemesh/types"
	"github.com/notargets/globemesh/utils"
)

// buildCoupling finds the element faces of a slice on the CMB and the ICB.
// Both elements of a radial face belong to the same column, so every face on
// a discontinuity is paired inside the slice.
func (d *Decomposer) buildCoupling(s *Slice) error {
	var (
		plan = d.topo.Plan
		mp   = d.topo.Params
	)
	for b, bd := range []struct {
		boundary types.FluidBoundary
		level    int
		enabled  bool
		solid    types.Region
	}{
		{types.CMB, plan.TopLevelOfBase(radial.OuterCoreBase), mp.CoupleFluidCMB, types.CrustMantle},
		{types.ICB, plan.TopLevelOfBase(radial.InnerCoreBase), mp.CoupleFluidICB, types.InnerCore},
	} {
		ci := CouplingInterface{Boundary: bd.boundary, Enabled: bd.enabled}
		for k, e := range s.Elements {
			if e.IsCube() {
				continue
			}
			for f, fv := range utils.HexFaces {
				var (
					nodes [4]types.NodeKey
					on    = true
				)
				for i, c := range fv {
					nodes[i] = s.Keys[e.Corners[c]]
					if nodes[i].IsCube() || nodes[i].L != bd.level {
						on = false
						break
					}
				}
				if !on {
					continue
				}
				bf := BoundaryFace{Element: k, Face: f, Key: types.NewFaceKey(nodes)}
				switch e.Tag.Region() {
				case bd.solid:
					ci.SolidFaces = append(ci.SolidFaces, bf)
				case types.OuterCore:
					ci.FluidFaces = append(ci.FluidFaces, bf)
				default:
					return types.NewTopologyError(s.ID, -1, bd.boundary.String(),
						"element %d of region %s has a face on the %s", k, e.Tag.Region(), bd.boundary)
				}
			}
		}
		byKey := func(faces []BoundaryFace) {
			sort.Slice(faces, func(i, j int) bool { return lessFaceKey(faces[i].Key, faces[j].Key) })
		}
		byKey(ci.SolidFaces)
		byKey(ci.FluidFaces)
		if len(ci.SolidFaces) != len(ci.FluidFaces) {
			return types.NewTopologyError(s.ID, -1, bd.boundary.String(),
				"%d solid faces against %d fluid faces", len(ci.SolidFaces), len(ci.FluidFaces))
		}
		solidCC, fluidCC := types.CC_TractionContinuity, types.CC_AssembleOnly
		if !ci.Enabled {
			solidCC, fluidCC = types.CC_FreeBoundary, types.CC_FreeBoundary
		}
		for n := range ci.SolidFaces {
			if ci.SolidFaces[n].Key != ci.FluidFaces[n].Key {
				return types.NewTopologyError(s.ID, -1, bd.boundary.String(),
					"solid face %v has no fluid counterpart", ci.SolidFaces[n].Key)
			}
			ci.SolidFaces[n].Condition = solidCC
			ci.FluidFaces[n].Condition = fluidCC
			if ci.Enabled {
				ci.Pairs = append(ci.Pairs, FacePair{
					Key:            ci.SolidFaces[n].Key,
					Solid:          ci.SolidFaces[n],
					Fluid:          ci.FluidFaces[n],
					SolidCondition: solidCC,
					FluidCondition: fluidCC,
				})
			}
		}
		s.Coupling[b] = ci
	}
	return nil
}

func lessFaceKey(a, b types.FaceKey) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
