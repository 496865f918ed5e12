package tables

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/notargets/globemesh/InputParameters"
	"github.com/notargets/globemesh/earthmodel"
	"github.com/notargets/globemesh/types"
)

// AttenuationEntry is the attenuation at one sampled radius. TauEpsilon is
// shared between entries with the same Qmu and must not be modified.
type AttenuationEntry struct {
	Radius     float64 // meters
	Qmu        float64
	Region     types.AttenuationRegion
	TauEpsilon []float64
}

// SLSFit is a set of standard linear solids approximating a constant Q over
// the period band.
type SLSFit struct {
	Q          float64
	TauSigma   []float64
	TauEpsilon []float64
	Misfit     float64 // sum of squared relative Q^-1 errors over the band
}

// AttenuationTable is immutable once built.
type AttenuationTable struct {
	Entries  []AttenuationEntry
	TauSigma []float64
	Fits     map[float64]*SLSFit
	step     float64
}

const fitFrequencies = 100

func maxWorkers() int { return runtime.NumCPU() }

// RadiusUnits is the sampling unit of the radius tables, 100 m.
const RadiusUnits = 100.

// sampleRadius returns the i-th of n radii spanning the Earth, in meters. The
// index arithmetic is done in units of 100 m.
func sampleRadius(i, n int, earth float64) float64 {
	span := math.Round(earth / RadiusUnits)
	return float64(i) * span / float64(n-1) * RadiusUnits
}

// roundQ applies the table resolution and cap. Fluids carry an infinite or
// zero Q and map to the maximum.
func roundQ(q float64, ap InputParameters.AttenuationParameters, radius float64) (float64, error) {
	switch {
	case math.IsNaN(q) || q < 0:
		return 0, types.NewModelError("attenuation", radius, "invalid Qmu %g", q)
	case q == 0 || math.IsInf(q, 1):
		return ap.MaximumQ, nil
	}
	scale := math.Pow(10, float64(ap.Resolution))
	return math.Min(math.Round(q*scale)/scale, ap.MaximumQ), nil
}

// TauSigma returns the stress relaxation times, log spaced over the band.
func TauSigma(ap InputParameters.AttenuationParameters) []float64 {
	tau := make([]float64, ap.NSLS)
	if ap.NSLS == 1 {
		tau[0] = math.Sqrt(ap.MinPeriod*ap.MaxPeriod) / (2 * math.Pi)
		return tau
	}
	return floats.LogSpan(tau, ap.MinPeriod/(2*math.Pi), ap.MaxPeriod/(2*math.Pi))
}

// QInverse is the attenuation of the solids at angular frequency w, with
// TauEpsilon = TauSigma (1 + y).
func QInverse(tauSigma, y []float64, w float64) float64 {
	re, im := 1., 0.
	for l, ts := range tauSigma {
		wt := w * ts
		d := 1 + wt*wt
		re += y[l] * wt * wt / d
		im += y[l] * wt / d
	}
	return im / re
}

// FitSLS finds the relaxation strengths that hold Q constant across the band.
// The simplex works on y*Q, which is of order one for every Q.
func FitSLS(q float64, ap InputParameters.AttenuationParameters) (fit *SLSFit, err error) {
	tauSigma := TauSigma(ap)
	w := floats.LogSpan(make([]float64, fitFrequencies), 2*math.Pi/ap.MaxPeriod, 2*math.Pi/ap.MinPeriod)
	y := make([]float64, ap.NSLS)
	misfit := func(z []float64) (f float64) {
		for l := range z {
			y[l] = z[l] / q
		}
		for _, wi := range w {
			r := q*QInverse(tauSigma, y, wi) - 1
			f += r * r
		}
		return
	}
	z0 := make([]float64, ap.NSLS)
	for l := range z0 {
		z0[l] = 1
	}
	result, err := optimize.Minimize(optimize.Problem{Func: misfit}, z0,
		&optimize.Settings{
			Converger:       &optimize.FunctionConverge{Absolute: 1.e-12, Iterations: 200},
			MajorIterations: 10000,
		},
		&optimize.NelderMead{SimplexSize: 0.5})
	if err != nil {
		return nil, fmt.Errorf("fitting Q %g: %w", q, err)
	}
	fit = &SLSFit{
		Q:          q,
		TauSigma:   tauSigma,
		TauEpsilon: make([]float64, ap.NSLS),
		Misfit:     result.F,
	}
	for l, z := range result.X {
		fit.TauEpsilon[l] = tauSigma[l] * (1 + z/q)
	}
	return
}

// BuildAttenuation samples Qmu of the model at every table radius and fits one
// set of solids per distinct rounded Q.
func BuildAttenuation(ctx context.Context, mp *InputParameters.MeshParameters, model earthmodel.Model,
	logger *zap.Logger) (t *AttenuationTable, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		ap = mp.Attenuation
		n  = ap.Entries
	)
	t = &AttenuationTable{
		Entries:  make([]AttenuationEntry, n),
		TauSigma: TauSigma(ap),
		Fits:     make(map[float64]*SLSFit),
		step:     sampleRadius(1, n, mp.Radii.Earth),
	}
	first := make(map[float64]float64) // lowest radius carrying each Q
	for i := range t.Entries {
		r := sampleRadius(i, n, mp.Radii.Earth)
		p, err := model.PropertiesAt(r)
		if err != nil {
			return nil, types.NewModelError("attenuation", r, "%v", err)
		}
		q, err := roundQ(p.Qmu, ap, r)
		if err != nil {
			return nil, err
		}
		t.Entries[i] = AttenuationEntry{Radius: r, Qmu: q, Region: mp.Radii.AttenuationRegion(r)}
		if _, seen := t.Fits[q]; !seen {
			t.Fits[q] = nil
			first[q] = r
		}
	}

	qs := t.DistinctQ()
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers())
	for _, q := range qs {
		q := q
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fit, err := FitSLS(q, ap)
			if err != nil {
				return types.NewModelError("attenuation", first[q], "%v", err)
			}
			mu.Lock()
			t.Fits[q] = fit
			mu.Unlock()
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}
	for i := range t.Entries {
		t.Entries[i].TauEpsilon = t.Fits[t.Entries[i].Qmu].TauEpsilon
	}
	logger.Info("attenuation table built", zap.Int("entries", n), zap.Int("fits", len(qs)),
		zap.Float64s("tauSigma", t.TauSigma))
	return
}

// DistinctQ returns the rounded Q values of the table in increasing order.
func (t *AttenuationTable) DistinctQ() (qs []float64) {
	qs = make([]float64, 0, len(t.Fits))
	for q := range t.Fits {
		qs = append(qs, q)
	}
	sort.Float64s(qs)
	return
}

func (t *AttenuationTable) index(r float64) int {
	i := int(math.Round(r / t.step))
	return max(0, min(i, len(t.Entries)-1))
}

// Lookup returns the entry nearest to radius r in meters.
func (t *AttenuationTable) Lookup(r float64) AttenuationEntry {
	return t.Entries[t.index(r)]
}

// Interpolate returns Qmu and the strain relaxation times at radius r,
// linearly interpolated between the bracketing entries.
func (t *AttenuationTable) Interpolate(r float64) (qmu float64, tauEpsilon []float64) {
	i, f := bracket(r, t.step, len(t.Entries))
	a, b := t.Entries[i], t.Entries[i+1]
	qmu = a.Qmu + f*(b.Qmu-a.Qmu)
	tauEpsilon = make([]float64, len(a.TauEpsilon))
	for l := range tauEpsilon {
		tauEpsilon[l] = a.TauEpsilon[l] + f*(b.TauEpsilon[l]-a.TauEpsilon[l])
	}
	return
}

// bracket returns the lower entry index and the fraction toward the next one.
func bracket(r, step float64, n int) (i int, f float64) {
	x := math.Max(0, math.Min(r/step, float64(n-1)))
	i = min(int(x), n-2)
	return i, x - float64(i)
}
