package tables

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/integrate/quad"

	"github.com/notargets/globemesh/InputParameters"
	"github.com/notargets/globemesh/earthmodel"
	"github.com/notargets/globemesh/types"
)

// GravityEntry holds density, gravity and its radial derivative at a radius.
type GravityEntry struct {
	Radius  float64 // meters
	Density float64 // kg/m^3
	G       float64 // m/s^2
	DG      float64 // dg/dr, 1/s^2
}

// GravityTable is immutable once built.
type GravityTable struct {
	Entries []GravityEntry
	Mass    float64 // total enclosed mass, kg
	step    float64
}

const massQuadraturePoints = 5

// BuildGravity integrates the density of the model outward from the center.
// The mass enclosed by each sampled radius is accumulated one radial step at
// a time with Gauss-Legendre quadrature.
func BuildGravity(mp *InputParameters.MeshParameters, model earthmodel.Model,
	logger *zap.Logger) (t *GravityTable, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		n       = mp.Gravity.Entries
		bigG    = mp.Gravity.G
		earth   = mp.Radii.Earth
		evalErr error
	)
	density := func(r float64) float64 {
		p, err := model.PropertiesAt(r)
		switch {
		case err != nil:
			evalErr = types.NewModelError("gravity", r, "%v", err)
		case math.IsNaN(p.Density) || p.Density < 0:
			evalErr = types.NewModelError("gravity", r, "invalid density %g", p.Density)
		}
		return p.Density
	}
	shellMass := func(r float64) float64 { return 4 * math.Pi * r * r * density(r) }

	t = &GravityTable{
		Entries: make([]GravityEntry, n),
		step:    sampleRadius(1, n, earth),
	}
	var mass float64
	for i := range t.Entries {
		r := sampleRadius(i, n, earth)
		rho := density(r)
		if i > 0 {
			dm := quad.Fixed(shellMass, t.Entries[i-1].Radius, r, massQuadraturePoints, quad.Legendre{}, 0)
			if evalErr == nil && !(dm >= 0) {
				evalErr = types.NewModelError("gravity", r, "enclosed mass decreases by %g", dm)
			}
			mass += dm
		}
		if evalErr != nil {
			return nil, evalErr
		}
		e := GravityEntry{Radius: r, Density: rho}
		if r > 0 {
			e.G = bigG * mass / (r * r)
			e.DG = 4*math.Pi*bigG*rho - 2*e.G/r
		} else {
			e.DG = 4 * math.Pi * bigG * rho / 3
		}
		t.Entries[i] = e
	}
	t.Mass = mass
	logger.Info("gravity table built", zap.Int("entries", n), zap.Float64("mass", mass),
		zap.Float64("surfaceGravity", t.Entries[n-1].G))
	return
}

// Lookup returns the entry nearest to radius r in meters.
func (t *GravityTable) Lookup(r float64) GravityEntry {
	i := int(math.Round(r / t.step))
	return t.Entries[max(0, min(i, len(t.Entries)-1))]
}

// Interpolate linearly interpolates every field of the table at radius r.
func (t *GravityTable) Interpolate(r float64) GravityEntry {
	i, f := bracket(r, t.step, len(t.Entries))
	a, b := t.Entries[i], t.Entries[i+1]
	lerp := func(x, y float64) float64 { return x + f*(y-x) }
	return GravityEntry{
		Radius:  lerp(a.Radius, b.Radius),
		Density: lerp(a.Density, b.Density),
		G:       lerp(a.G, b.G),
		DG:      lerp(a.DG, b.DG),
	}
}
