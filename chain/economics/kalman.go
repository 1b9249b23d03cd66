package economics

import "math"

// kalmanFilter is a simplified diagonal-covariance Kalman/LQG filter over
// an n-state vector: no cross terms, one scalar process/measurement noise
// per tier (short/med/long window), matching the "8-state Kalman/LQG
// filter with diagonal R" described in spec.md §4.2/§9. There is no linear
// algebra library anywhere in the example corpus, so this is implemented
// directly against math/sort from stdlib (documented here as the required
// stdlib justification rather than adapted from an example).
type kalmanFilter struct {
	n int

	state      []float64
	covariance []float64 // diagonal only

	rShort, rMed, rLong float64
}

func newKalmanFilter(n int, rShort, rMed, rLong float64) *kalmanFilter {
	state := make([]float64, n)
	cov := make([]float64, n)
	for i := range cov {
		cov[i] = 1.0
	}
	return &kalmanFilter{n: n, state: state, covariance: cov, rShort: rShort, rMed: rMed, rLong: rLong}
}

// rFor picks the measurement-noise tier for state index i: the first third
// of states are "short" window, the second third "med", the remainder
// "long". For the fixed 8-state vector n/3 is 2, so states 0-1 are short,
// 2-3 med and 4-7 long.
func (k *kalmanFilter) rFor(i int) float64 {
	third := k.n / 3
	switch {
	case i < third:
		return k.rShort
	case i < 2*third:
		return k.rMed
	default:
		return k.rLong
	}
}

// update runs one predict+correct cycle for state index i against
// observation z, with process noise q. Returns the corrected estimate.
func (k *kalmanFilter) update(i int, z, q float64) float64 {
	if i < 0 || i >= k.n {
		return z
	}
	predicted := k.state[i]
	predictedCov := k.covariance[i] + q

	r := k.rFor(i)
	gain := predictedCov / (predictedCov + r)

	corrected := predicted + gain*(z-predicted)
	correctedCov := (1 - gain) * predictedCov

	k.state[i] = corrected
	k.covariance[i] = correctedCov
	return corrected
}

func (k *kalmanFilter) estimate(i int) float64 {
	if i < 0 || i >= k.n {
		return 0
	}
	return k.state[i]
}

// lcgLaplace is a small deterministic linear-congruential generator used
// to draw Laplace-distributed noise when the caller wants reproducible
// retune output (tests, replay). The retune helper seeds it from the bit
// pattern of the filtered utilization; it is not a cryptographic RNG and
// must never be used as one.
type lcgLaplace struct {
	state uint64
}

func newLCGLaplace(seed uint64) *lcgLaplace {
	if seed == 0 {
		seed = 0x2545F4914F6CDD1D
	}
	return &lcgLaplace{state: seed}
}

func (g *lcgLaplace) next() float64 {
	g.state = g.state*6364136223846793005 + 1442695040888963407
	u := float64(g.state>>11) / float64(1<<53)
	if u <= 0 {
		u = 1e-12
	}
	if u >= 1 {
		u = 1 - 1e-12
	}
	return u
}

// laplace draws one sample from Laplace(0, scale) via inverse-CDF sampling.
func (g *lcgLaplace) laplace(scale float64) float64 {
	u := g.next() - 0.5
	sign := 1.0
	if u < 0 {
		sign = -1.0
	}
	return -scale * sign * math.Log(1-2*math.Abs(u))
}
