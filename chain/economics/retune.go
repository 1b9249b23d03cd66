package economics

import (
	"math"
	"sort"

	"github.com/Ian-Reitsma/the-block/chain/types"
)

// retuneLocked folds this block's observed utilization into market m's
// history, applies the Hampel outlier filter over a Fibonacci-expanding
// window, checks the Haar burst veto, runs the Kalman correction, and
// writes the smoothed metric back. Callers must hold e.mu.
func (e *Engine) retuneLocked(m Market, in MarketInput) {
	hist := append(e.history[m], in.Utilization)
	if len(hist) > 512 {
		hist = hist[len(hist)-512:]
	}
	e.history[m] = hist

	filtered, exhausted := hampelFilter(hist, e.params.UtilVarThreshold)
	if exhausted {
		if e.OnRetuneRejected != nil {
			e.OnRetuneRejected(m, "hampel: variance did not converge within window budget")
		}
	}

	if burst := haarBurstVeto(hist, e.params.HaarEta); burst {
		if e.OnRetuneRejected != nil {
			e.OnRetuneRejected(m, "haar burst veto")
		}
		// Burst veto: keep the previous smoothed metric, skip the Kalman
		// correction and noise injection this block.
		return
	}

	stateIdx := int(m)
	q := 0.01
	corrected := e.kalman.update(stateIdx, filtered, q)

	noise := newLCGLaplace(uint64(math.Float64bits(filtered)))
	scale := float64(e.supply) / math.Pow(2, e.params.LaplaceScaleDiv)
	smoothedUtil := corrected + noise.laplace(scale)/math.Max(float64(e.supply), 1)

	e.metrics[m] = marketMetricOf(in, smoothedUtil)
}

func marketMetricOf(in MarketInput, smoothedUtil float64) (out types.MarketMetric) {
	out.Utilization = smoothedUtil
	out.AverageCostBlock = in.AverageCostBlock
	out.ProviderMargin = in.ProviderMargin
	out.EffectivePayoutBlock = in.AverageCostBlock * in.Utilization
	return out
}

// median computes the median of a sorted-in-place copy of xs.
func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// mad computes the median absolute deviation of xs around its median.
func mad(xs []float64, med float64) float64 {
	devs := make([]float64, len(xs))
	for i, x := range xs {
		devs[i] = math.Abs(x - med)
	}
	return median(devs)
}

// fibonacciWindows yields the Fibonacci sequence of window sizes up to
// maxLen, used to expand the Hampel filter's lookback until variance
// converges or the history is exhausted.
func fibonacciWindows(maxLen int) []int {
	var out []int
	a, b := 1, 2
	for a <= maxLen {
		out = append(out, a)
		a, b = b, a+b
	}
	if len(out) == 0 {
		out = append(out, maxLen)
	}
	return out
}

// hampelFilter applies a median + 3*MAD outlier rejection over an
// expanding Fibonacci window of the tail of hist, stopping once the
// window's variance falls below varThreshold or the history is
// exhausted. Returns the filtered latest value and whether the
// expansion ran out before converging (a signal worth surfacing, not an
// error: the retune still proceeds with the best window found).
func hampelFilter(hist []float64, varThreshold float64) (filtered float64, exhausted bool) {
	if len(hist) == 0 {
		return 0, false
	}
	latest := hist[len(hist)-1]

	windows := fibonacciWindows(len(hist))
	var best float64 = latest
	converged := false
	for _, w := range windows {
		if w > len(hist) {
			w = len(hist)
		}
		if w < 3 {
			// A window this small has a degenerate (zero-or-meaningless)
			// variance estimate; skip straight to the next Fibonacci size.
			continue
		}
		window := hist[len(hist)-w:]
		med := median(window)
		m := mad(window, med)

		value := latest
		if m > 0 && math.Abs(latest-med) > 3*m {
			value = med
		}
		best = value

		variance := varianceOf(window)
		if variance < varThreshold {
			converged = true
			break
		}
	}
	return best, !converged
}

func varianceOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var acc float64
	for _, x := range xs {
		d := x - mean
		acc += d * d
	}
	return acc / float64(len(xs))
}

// haarBurstVeto runs a single-level Haar wavelet transform over the tail
// of hist and reports whether the high-frequency (detail) coefficient
// magnitude exceeds eta — a sudden jump the retune should not chase.
func haarBurstVeto(hist []float64, eta float64) bool {
	n := len(hist)
	if n < 2 {
		return false
	}
	// Use the last even-length window so pairs align.
	if n%2 != 0 {
		hist = hist[1:]
		n--
	}
	if n < 2 {
		return false
	}
	var maxDetail float64
	for i := 0; i+1 < n; i += 2 {
		detail := (hist[i] - hist[i+1]) / math.Sqrt2
		if math.Abs(detail) > maxDetail {
			maxDetail = math.Abs(detail)
		}
	}
	return maxDetail > eta
}
