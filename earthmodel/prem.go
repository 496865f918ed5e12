package earthmodel

import (
	"fmt"
	"math"

	"github.com/notargets/globemesh/InputParameters"
)

// Properties of the Earth at one radius, SI units. Qmu is +Inf in fluids.
type Properties struct {
	Density float64 // kg/m^3
	Vp, Vs  float64 // m/s
	Qmu     float64
}

// Model evaluates an Earth model at a radius in meters.
type Model interface {
	PropertiesAt(radius float64) (Properties, error)
}

// shell holds cubic polynomials in normalized radius x = r/R_EARTH, in the
// customary units of g/cm^3 and km/s.
type shell struct {
	top         float64
	rho, vp, vs [4]float64
	qmu         float64
}

func poly(c [4]float64, x float64) float64 {
	return c[0] + x*(c[1]+x*(c[2]+x*c[3]))
}

// PREM is the isotropic Preliminary Reference Earth Model without the ocean,
// the upper crust extends to the surface. Shell boundaries follow the mesh
// radii so element regions and material regions agree.
type PREM struct {
	earth  float64
	shells []shell
}

func NewPREM() *PREM {
	return NewPREMWithRadii(InputParameters.NewDefaultParameters().Radii)
}

func NewPREMWithRadii(r InputParameters.Radii) *PREM {
	lowerMantleRho := [4]float64{7.9565, -6.4761, 5.5283, -3.0807}
	lvzRho := [4]float64{2.6910, 0.6924}
	return &PREM{
		earth: r.Earth,
		shells: []shell{
			{top: r.ICB, qmu: 84.6,
				rho: [4]float64{13.0885, 0, -8.8381},
				vp:  [4]float64{11.2622, 0, -6.3640},
				vs:  [4]float64{3.6678, 0, -4.4475}},
			{top: r.CMB, qmu: math.Inf(1),
				rho: [4]float64{12.5815, -1.2638, -3.6426, -5.5281},
				vp:  [4]float64{11.0487, -4.0362, 4.8023, -13.5732}},
			{top: r.TopDDoublePrime, qmu: 312, rho: lowerMantleRho,
				vp: [4]float64{15.3891, -5.3181, 5.5242, -2.5514},
				vs: [4]float64{6.9254, 1.4672, -2.0834, 0.9783}},
			{top: r.R771, qmu: 312, rho: lowerMantleRho,
				vp: [4]float64{24.9520, -40.4673, 51.4832, -26.6419},
				vs: [4]float64{11.1671, -13.7818, 17.4575, -9.2777}},
			{top: r.R670, qmu: 312, rho: lowerMantleRho,
				vp: [4]float64{29.2766, -23.6027, 5.5242, -2.5514},
				vs: [4]float64{22.3459, -17.2473, -2.0834, 0.9783}},
			{top: r.R600, qmu: 143,
				rho: [4]float64{5.3197, -1.4836},
				vp:  [4]float64{19.0957, -9.8672},
				vs:  [4]float64{9.9839, -4.9324}},
			{top: r.R400, qmu: 143,
				rho: [4]float64{11.2494, -8.0298},
				vp:  [4]float64{39.7027, -32.6166},
				vs:  [4]float64{22.3512, -18.5856}},
			{top: r.R220, qmu: 143,
				rho: [4]float64{7.1089, -3.8045},
				vp:  [4]float64{20.3926, -12.2569},
				vs:  [4]float64{8.9496, -4.4597}},
			{top: r.R80, qmu: 80, rho: lvzRho,
				vp: [4]float64{4.1875, 3.9382},
				vs: [4]float64{2.1519, 2.3481}},
			{top: r.Moho, qmu: 600, rho: lvzRho,
				vp: [4]float64{4.1875, 3.9382},
				vs: [4]float64{2.1519, 2.3481}},
			{top: r.MiddleCrust, qmu: 600,
				rho: [4]float64{2.900}, vp: [4]float64{6.800}, vs: [4]float64{3.900}},
			{top: r.Earth, qmu: 600,
				rho: [4]float64{2.600}, vp: [4]float64{5.800}, vs: [4]float64{3.200}},
		},
	}
}

// PropertiesAt returns the model at radius r. A radius on a discontinuity
// takes the values below it.
func (m *PREM) PropertiesAt(r float64) (p Properties, err error) {
	if math.IsNaN(r) || r < 0 || r > m.earth {
		return p, fmt.Errorf("radius %g outside [0,%g]", r, m.earth)
	}
	x := r / m.earth
	for _, s := range m.shells {
		if r <= s.top {
			p = Properties{
				Density: 1000 * poly(s.rho, x),
				Vp:      1000 * poly(s.vp, x),
				Vs:      1000 * poly(s.vs, x),
				Qmu:     s.qmu,
			}
			return
		}
	}
	return p, fmt.Errorf("radius %g above the model", r)
}
