package gll

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// JacobiGQ computes the N+1 Gauss quadrature points and weights for the
// Jacobi polynomial weight (1-x)^alpha (1+x)^beta from the eigen decomposition
// of the symmetric tridiagonal Jacobi matrix.
func JacobiGQ(alpha, beta float64, N int) (x, w []float64) {
	if N == 0 {
		return []float64{-(alpha - beta) / (alpha + beta + 2.)}, []float64{2.}
	}
	h1 := make([]float64, N+1)
	for i := range h1 {
		h1[i] = 2*float64(i) + alpha + beta
	}
	JJ := mat.NewSymDense(N+1, nil)
	fac := -.5 * (alpha*alpha - beta*beta)
	for i := 0; i < N+1; i++ {
		val := h1[i]
		JJ.SetSym(i, i, fac/(val*(val+2.)))
	}
	// Division by zero on the first entry for Legendre
	if alpha+beta < 1.e-15 {
		JJ.SetSym(0, 0, 0.)
	}
	for i := 0; i < N; i++ {
		ip1 := float64(i + 1)
		val := h1[i]
		d1 := 2. / (val + 2.) *
			math.Sqrt(ip1*(ip1+alpha+beta)*(ip1+alpha)*(ip1+beta)/((val+1.)*(val+3.)))
		JJ.SetSym(i, i+1, d1)
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(JJ, true); !ok {
		panic("eigenvalue decomposition failed")
	}
	x = eig.Values(nil)
	var VVr mat.Dense
	eig.VectorsTo(&VVr)
	g0 := gamma0(alpha, beta)
	w = make([]float64, N+1)
	for i := range w {
		v := VVr.At(0, i)
		w[i] = v * v * g0
	}
	return
}

func gamma0(alpha, beta float64) float64 {
	ab1 := alpha + beta + 1.
	a1 := alpha + 1.
	b1 := beta + 1.
	return math.Gamma(a1) * math.Gamma(b1) * math.Pow(2, ab1) / ab1 / math.Gamma(ab1)
}

// Legendre evaluates the Legendre polynomial of degree N at x.
func Legendre(N int, x float64) float64 {
	p0, p1 := 1., x
	if N == 0 {
		return p0
	}
	for n := 1; n < N; n++ {
		fn := float64(n)
		p0, p1 = p1, ((2*fn+1)*x*p1-fn*p0)/(fn+1)
	}
	return p1
}

// Points returns the n Gauss-Lobatto-Legendre points on [-1,1] in ascending
// order and their quadrature weights.
func Points(n int) (x, w []float64) {
	if n < 2 {
		panic(fmt.Errorf("need at least 2 GLL points, have %d", n))
	}
	N := n - 1
	x = make([]float64, n)
	x[0], x[N] = -1, 1
	if n > 2 {
		xint, _ := JacobiGQ(1, 1, N-2)
		copy(x[1:N], xint)
	}
	w = make([]float64, n)
	norm := 2. / float64(N*(N+1))
	for i, xi := range x {
		p := Legendre(N, xi)
		w[i] = norm / (p * p)
	}
	return
}

// Fractions maps the GLL points onto [0,1].
func Fractions(n int) (f []float64) {
	x, _ := Points(n)
	f = make([]float64, n)
	for i, xi := range x {
		f[i] = .5 * (xi + 1)
	}
	f[0], f[n-1] = 0, 1
	return
}
