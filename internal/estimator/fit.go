package estimator

import "math"

// fitResult is the outcome of one least-squares fit over the window. It is
// recomputed fresh on every call and never persisted.
type fitResult struct {
	slope     float64 // level fraction per second
	intercept float64
	r2        float64
}

// fitWindow fits level ≈ intercept + slope·t over the window with an
// exponentially decaying recency weight: a sample's influence halves every
// halfLife seconds of age relative to the newest sample. halfLife <= 0 gives
// the plain unweighted fit.
//
// Returns ok=false when the fit is degenerate, e.g. a single distinct
// timestamp leaves no time variance to regress against.
func fitWindow(window []sample, halfLife float64) (fitResult, bool) {
	n := len(window)
	if n < 2 {
		return fitResult{}, false
	}

	latest := window[n-1].t
	weight := func(s sample) float64 {
		if halfLife <= 0 {
			return 1
		}
		return math.Exp(-math.Ln2 * (latest - s.t) / halfLife)
	}

	var sw, st, sy float64
	for _, s := range window {
		w := weight(s)
		sw += w
		st += w * s.t
		sy += w * s.level
	}
	if sw <= 0 {
		return fitResult{}, false
	}
	tMean := st / sw
	yMean := sy / sw

	var sxx, sxy, syy float64
	for _, s := range window {
		w := weight(s)
		dt := s.t - tMean
		dy := s.level - yMean
		sxx += w * dt * dt
		sxy += w * dt * dy
		syy += w * dy * dy
	}
	if sxx <= 0 {
		return fitResult{}, false
	}

	slope := sxy / sxx
	intercept := yMean - slope*tMean

	r2 := 0.0
	if syy > 0 {
		var ssRes float64
		for _, s := range window {
			resid := s.level - (intercept + slope*s.t)
			ssRes += weight(s) * resid * resid
		}
		r2 = 1 - ssRes/syy
		if r2 < 0 {
			r2 = 0
		} else if r2 > 1 {
			r2 = 1
		}
	}

	return fitResult{slope: slope, intercept: intercept, r2: r2}, true
}
