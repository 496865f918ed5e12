package tables

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/globemesh/InputParameters"
	"github.com/notargets/globemesh/earthmodel"
	"github.com/notargets/globemesh/types"
)

// brokenModel returns bad properties above a radius
type brokenModel struct {
	above float64
	bad   earthmodel.Properties
}

func (m brokenModel) PropertiesAt(r float64) (earthmodel.Properties, error) {
	if r > m.above {
		return m.bad, nil
	}
	return earthmodel.NewPREM().PropertiesAt(r)
}

func TestPREM(t *testing.T) {
	m := earthmodel.NewPREM()
	r := InputParameters.NewDefaultParameters().Radii
	p, err := m.PropertiesAt(0)
	require.NoError(t, err)
	assert.InDelta(t, 13088.5, p.Density, 1.e-9)
	assert.Equal(t, 84.6, p.Qmu)

	p, err = m.PropertiesAt(r.CMB)
	require.NoError(t, err)
	assert.Equal(t, 0., p.Vs)
	assert.True(t, math.IsInf(p.Qmu, 1))
	p, err = m.PropertiesAt(r.CMB + 1)
	require.NoError(t, err)
	assert.Greater(t, p.Vs, 7000.)
	assert.Equal(t, 312., p.Qmu)

	p, err = m.PropertiesAt(r.Earth)
	require.NoError(t, err)
	assert.Equal(t, earthmodel.Properties{Density: 2600, Vp: 5800, Vs: 3200, Qmu: 600}, p)

	_, err = m.PropertiesAt(r.Earth + 1)
	assert.Error(t, err)
	_, err = m.PropertiesAt(math.NaN())
	assert.Error(t, err)
}

func TestRoundQ(t *testing.T) {
	ap := InputParameters.NewDefaultParameters().Attenuation
	for _, tc := range []struct{ in, out float64 }{
		{84.64, 84.6}, {84.66, 84.7}, {312, 312}, {6000, 5000}, {math.Inf(1), 5000}, {0, 5000},
	} {
		q, err := roundQ(tc.in, ap, 1)
		require.NoError(t, err)
		assert.InDelta(t, tc.out, q, 1.e-12, "Q %g", tc.in)
	}
	for _, q := range []float64{math.NaN(), -1} {
		_, err := roundQ(q, ap, 1)
		var me *types.ModelEvaluationError
		require.True(t, errors.As(err, &me))
		assert.Equal(t, 1., me.Radius)
	}
}

func TestFitSLS(t *testing.T) {
	ap := InputParameters.NewDefaultParameters().Attenuation
	tau := TauSigma(ap)
	require.Equal(t, 3, len(tau))
	assert.InDelta(t, 20/(2*math.Pi), tau[0], 1.e-12)
	assert.InDelta(t, 1000/(2*math.Pi), tau[2], 1.e-9)
	for _, q := range []float64{80, 312, 5000} {
		fit, err := FitSLS(q, ap)
		require.NoError(t, err)
		y := make([]float64, len(tau))
		for l := range tau {
			require.Greater(t, fit.TauEpsilon[l], fit.TauSigma[l])
			y[l] = fit.TauEpsilon[l]/fit.TauSigma[l] - 1
		}
		for _, period := range []float64{20, 50, 100, 300, 1000} {
			qFit := 1 / QInverse(tau, y, 2*math.Pi/period)
			assert.InEpsilon(t, q, qFit, 0.05, "Q %g period %g", q, period)
		}
	}
}

func TestAttenuationTable(t *testing.T) {
	mp := InputParameters.NewDefaultParameters()
	table, err := BuildAttenuation(context.Background(), mp, earthmodel.NewPREM(), nil)
	require.NoError(t, err)
	n := mp.Attenuation.Entries
	require.Equal(t, n, len(table.Entries))
	assert.Equal(t, 0., table.Entries[0].Radius)
	assert.Equal(t, 63710., table.Entries[n-1].Radius/RadiusUnits)
	for i := 1; i < n; i++ {
		require.Greater(t, table.Entries[i].Radius, table.Entries[i-1].Radius)
	}
	// One fit per distinct Q
	assert.Equal(t, []float64{80, 84.6, 143, 312, 600, 5000}, table.DistinctQ())
	for q, fit := range table.Fits {
		require.NotNil(t, fit, "Q %g", q)
	}

	r := mp.Radii
	for _, tc := range []struct {
		radius float64
		q      float64
		region types.AttenuationRegion
	}{
		{1000, 84.6, types.AttenuationInnerCore},
		{2000000, 5000, types.AttenuationCMB670},
		{r.CMB + 50000, 312, types.AttenuationCMB670},
		{r.R400, 143, types.Attenuation670_220},
		{r.R220 + 10000, 80, types.Attenuation220_80},
		{r.Earth, 600, types.Attenuation80Surface},
	} {
		e := table.Lookup(tc.radius)
		assert.Equal(t, tc.q, e.Qmu, "radius %g", tc.radius)
		assert.Equal(t, tc.region, e.Region, "radius %g", tc.radius)
		assert.Equal(t, table.Fits[tc.q].TauEpsilon, e.TauEpsilon)
	}
	e := table.Entries[1234]
	q, tauEps := table.Interpolate(e.Radius)
	assert.InDelta(t, e.Qmu, q, 1.e-9)
	assert.InDeltaSlice(t, e.TauEpsilon, tauEps, 1.e-9)

	_, err = BuildAttenuation(context.Background(), mp,
		brokenModel{above: r.R670, bad: earthmodel.Properties{Density: 4000, Qmu: math.NaN()}}, nil)
	var me *types.ModelEvaluationError
	require.True(t, errors.As(err, &me))
	assert.Greater(t, me.Radius, r.R670)
	assert.Equal(t, "attenuation", me.Table)

	// A fit failure names the first radius carrying the offending Q: an
	// unbounded maximum leaves the outer core with an infinite Q
	mp.Attenuation.MaximumQ = math.Inf(1)
	_, err = BuildAttenuation(context.Background(), mp, earthmodel.NewPREM(), nil)
	require.True(t, errors.As(err, &me))
	assert.False(t, math.IsNaN(me.Radius))
	assert.Greater(t, me.Radius, r.ICB)
	assert.Less(t, me.Radius, r.ICB+2*table.step)
	assert.Contains(t, me.Reason, "fitting Q +Inf")
}

func TestGravityTable(t *testing.T) {
	mp := InputParameters.NewDefaultParameters()
	table, err := BuildGravity(mp, earthmodel.NewPREM(), nil)
	require.NoError(t, err)
	n := len(table.Entries)
	require.Equal(t, mp.Gravity.Entries, n)
	assert.Equal(t, 0., table.Entries[0].G)
	assert.InDelta(t, 9.82, table.Entries[n-1].G, 0.01)
	assert.InEpsilon(t, 5.9756e24, table.Mass, 1.e-3)

	// Gravity peaks near the core-mantle boundary
	peak := 0
	for i, e := range table.Entries {
		if e.G > table.Entries[peak].G {
			peak = i
		}
	}
	assert.InDelta(t, mp.Radii.CMB, table.Entries[peak].Radius, 20000)

	// dg/dr agrees with the slope of g away from discontinuities
	i := table.Lookup(600000)
	for k, e := range table.Entries {
		if e.Radius == i.Radius {
			slope := (table.Entries[k+1].G - table.Entries[k-1].G) /
				(table.Entries[k+1].Radius - table.Entries[k-1].Radius)
			assert.InEpsilon(t, slope, e.DG, 1.e-4)
		}
	}
	mid := table.Interpolate((table.Entries[10].Radius + table.Entries[11].Radius) / 2)
	assert.InDelta(t, (table.Entries[10].G+table.Entries[11].G)/2, mid.G, 1.e-12)
	assert.InDelta(t, table.Entries[n-1].G, table.Interpolate(2*mp.Radii.Earth).G, 1.e-12)

	_, err = BuildGravity(mp, brokenModel{above: mp.Radii.R80, bad: earthmodel.Properties{Density: -1}}, nil)
	var me *types.ModelEvaluationError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "gravity", me.Table)
	assert.Greater(t, me.Radius, mp.Radii.R80)
}
