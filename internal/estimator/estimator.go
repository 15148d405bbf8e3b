// Package estimator implements the battery trend estimation core: it turns a
// noisy, irregularly sampled stream of battery level readings into a
// confidence-rated forecast of time-to-empty or time-to-full.
//
// The estimator is a plain stateful value with no clock, no goroutines and no
// hidden globals. Construct one per monitored device and feed it readings in
// non-decreasing timestamp order from a single goroutine; it never returns an
// error, every failure mode degrades to a withheld forecast and low
// confidence.
package estimator

import (
	"math"
	"strings"
	"time"
)

// ChargeState is the raw charging state reported by the sensor source.
type ChargeState int

const (
	StateUnknown ChargeState = iota
	StateCharging
	StateDischarging
	StateFull
)

// ParseChargeState maps a wire string onto a ChargeState. Unrecognized values
// map to StateUnknown.
func ParseChargeState(s string) ChargeState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "charging":
		return StateCharging
	case "discharging", "unplugged":
		return StateDischarging
	case "full":
		return StateFull
	default:
		return StateUnknown
	}
}

func (s ChargeState) String() string {
	switch s {
	case StateCharging:
		return "charging"
	case StateDischarging:
		return "discharging"
	case StateFull:
		return "full"
	default:
		return "unknown"
	}
}

// Regime is the normalized charge direction used for regression. A regression
// line is only meaningful within one regime; mixing charge and discharge
// segments would produce a meaningless slope.
type Regime int

const (
	RegimeUnknown Regime = iota
	RegimeCharging
	RegimeDischarging
)

// Regime normalizes a raw charge state: charging and full both gain charge,
// unplugged loses it, everything else is unknown.
func (s ChargeState) Regime() Regime {
	switch s {
	case StateCharging, StateFull:
		return RegimeCharging
	case StateDischarging:
		return RegimeDischarging
	default:
		return RegimeUnknown
	}
}

func (r Regime) String() string {
	switch r {
	case RegimeCharging:
		return "charging"
	case RegimeDischarging:
		return "discharging"
	default:
		return "unknown"
	}
}

// Confidence is a coarse qualitative rating of forecast trustworthiness.
type Confidence int

const (
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	default:
		return "low"
	}
}

// Config holds the estimator tunables. The zero value is not useful; start
// from DefaultConfig and override fields as needed. Invalid fields are
// replaced by their defaults at construction time.
type Config struct {
	// MaxWindowSamples bounds the rolling sample window; oldest samples are
	// evicted first once the bound is exceeded.
	MaxWindowSamples int
	// MinFitSamples is the minimum window size before a fit is trusted.
	MinFitSamples int
	// OutlierJump is the maximum plausible level change between consecutive
	// stored samples. Larger jumps are treated as sensor noise and rejected.
	OutlierJump float64
	// HalfLife controls the exponential recency weighting of the fit: a
	// sample's influence halves every HalfLife of age. Zero disables
	// weighting (plain least squares).
	HalfLife time.Duration
	// SlopeSmoothing is the EMA coefficient applied to the fitted slope
	// across calls; it damps reading-to-reading jitter in the forecast.
	SlopeSmoothing float64
	// SlopeEpsilon is the minimum slope magnitude considered nonzero, to
	// avoid division blow-up near a flat trend.
	SlopeEpsilon float64

	// Confidence thresholds. Must be monotonic: the high bar is at least as
	// demanding as the medium bar.
	HighMinSamples   int
	HighMinR2        float64
	MediumMinSamples int
	MediumMinR2      float64
}

// DefaultConfig returns the tunables used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		MaxWindowSamples: 1440,
		MinFitSamples:    8,
		OutlierJump:      0.03,
		HalfLife:         12 * time.Minute,
		SlopeSmoothing:   0.25,
		SlopeEpsilon:     1e-8,
		HighMinSamples:   30,
		HighMinR2:        0.85,
		MediumMinSamples: 15,
		MediumMinR2:      0.65,
	}
}

// withDefaults replaces invalid fields with their defaults so a partially
// filled Config never panics or divides by zero later.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxWindowSamples <= 1 {
		c.MaxWindowSamples = d.MaxWindowSamples
	}
	if c.MinFitSamples < 2 {
		c.MinFitSamples = d.MinFitSamples
	}
	if c.OutlierJump <= 0 || c.OutlierJump > 1 {
		c.OutlierJump = d.OutlierJump
	}
	if c.HalfLife < 0 {
		c.HalfLife = d.HalfLife
	}
	if c.SlopeSmoothing <= 0 || c.SlopeSmoothing > 1 {
		c.SlopeSmoothing = d.SlopeSmoothing
	}
	if c.SlopeEpsilon <= 0 {
		c.SlopeEpsilon = d.SlopeEpsilon
	}
	if c.HighMinSamples <= 0 {
		c.HighMinSamples = d.HighMinSamples
	}
	if c.HighMinR2 <= 0 || c.HighMinR2 > 1 {
		c.HighMinR2 = d.HighMinR2
	}
	if c.MediumMinSamples <= 0 {
		c.MediumMinSamples = d.MediumMinSamples
	}
	if c.MediumMinR2 <= 0 || c.MediumMinR2 > 1 {
		c.MediumMinR2 = d.MediumMinR2
	}
	return c
}

// Classify rates a fit by sample count and weighted R². It is deterministic
// and monotonic in both arguments.
func (c Config) Classify(sampleCount int, r2 float64) Confidence {
	switch {
	case sampleCount >= c.HighMinSamples && r2 >= c.HighMinR2:
		return ConfidenceHigh
	case sampleCount >= c.MediumMinSamples && r2 >= c.MediumMinR2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// sample is one retained reading, immutable once stored. Time is relative to
// the window origin, which is fixed at window creation and never rewritten by
// eviction.
type sample struct {
	t     float64 // seconds since window origin
	level float64
}

// Snapshot is the estimate recomputed on every AddSample call. Callers own it
// by value; a nil duration means the forecast is withheld ("estimating").
type Snapshot struct {
	Level  float64
	Regime Regime

	TimeToEmpty *time.Duration
	TimeToFull  *time.Duration

	TimeToEmptyText string
	TimeToFullText  string

	Confidence Confidence

	// SampleCount is the number of samples currently in the fit window.
	SampleCount int
	// ReadingCount counts every reading observed in the current regime,
	// including rejected outliers, for display bookkeeping.
	ReadingCount int

	MonitoringDuration     time.Duration
	MonitoringDurationText string

	// OutlierRejected reports that this call's reading was excluded from the
	// window as sensor noise.
	OutlierRejected bool
}

// Estimator maintains the bounded, direction-consistent sample window and the
// smoothed slope state. It is not internally synchronized; confine it to one
// goroutine.
type Estimator struct {
	cfg Config

	regime  Regime
	origin  time.Time
	lastAt  time.Time
	window  []sample
	started bool

	smoothedSlope float64
	haveSlope     bool

	readingCount int
}

// New returns an estimator for a single device. Invalid Config fields fall
// back to DefaultConfig values.
func New(cfg Config) *Estimator {
	return &Estimator{cfg: cfg.withDefaults()}
}

// AddSample ingests one reading and recomputes the estimate. Readings must
// arrive in non-decreasing timestamp order; an earlier timestamp would
// corrupt the relative-time basis and must be filtered by the caller.
func (e *Estimator) AddSample(level float64, state ChargeState, ts time.Time) Snapshot {
	if math.IsNaN(level) || math.IsInf(level, 0) {
		// Invalid reading: discard before it reaches the window.
		return e.snapshot(e.lastLevel(), false)
	}
	if level < 0 {
		level = 0
	} else if level > 1 {
		level = 1
	}

	regime := state.Regime()
	if !e.started || regime != e.regime || e.regime == RegimeUnknown {
		e.reset(regime, ts)
	}
	e.lastAt = ts

	saturated := state == StateFull || (regime == RegimeCharging && level >= 1)

	if n := len(e.window); n > 0 && math.Abs(level-e.window[n-1].level) > e.cfg.OutlierJump && !saturated {
		e.readingCount++
		return e.snapshot(e.window[n-1].level, true)
	}

	e.readingCount++
	e.window = append(e.window, sample{t: ts.Sub(e.origin).Seconds(), level: level})
	if len(e.window) > e.cfg.MaxWindowSamples {
		e.window = e.window[1:]
	}

	if saturated {
		snap := e.snapshot(level, false)
		full := time.Duration(0)
		snap.TimeToFull = &full
		snap.TimeToFullText = "Full"
		snap.Confidence = ConfidenceHigh
		return snap
	}

	return e.snapshot(level, false)
}

// reset clears the window and all per-regime state. Called whenever the
// normalized direction changes or was unknown.
func (e *Estimator) reset(regime Regime, ts time.Time) {
	e.regime = regime
	e.origin = ts
	e.window = e.window[:0]
	e.smoothedSlope = 0
	e.haveSlope = false
	e.readingCount = 0
	e.started = true
}

func (e *Estimator) lastLevel() float64 {
	if n := len(e.window); n > 0 {
		return e.window[n-1].level
	}
	return 0
}

// snapshot runs the fit over the current window and derives the forecast.
func (e *Estimator) snapshot(level float64, outlier bool) Snapshot {
	snap := Snapshot{
		Level:           level,
		Regime:          e.regime,
		TimeToEmptyText: estimatingText,
		TimeToFullText:  estimatingText,
		Confidence:      ConfidenceLow,
		SampleCount:     len(e.window),
		ReadingCount:    e.readingCount,
		OutlierRejected: outlier,
	}
	if e.started {
		snap.MonitoringDuration = e.lastAt.Sub(e.origin)
	}
	snap.MonitoringDurationText = FormatDuration(snap.MonitoringDuration)

	if len(e.window) < e.cfg.MinFitSamples || e.regime == RegimeUnknown {
		return snap
	}

	fit, ok := fitWindow(e.window, e.cfg.HalfLife.Seconds())
	if !ok {
		return snap
	}

	// Smooth the slope across calls within one regime; the instantaneous
	// slope is too jittery to divide by. Outlier ticks reuse the previous
	// smoothed slope untouched.
	if !outlier {
		if e.haveSlope {
			a := e.cfg.SlopeSmoothing
			e.smoothedSlope = a*fit.slope + (1-a)*e.smoothedSlope
		} else {
			e.smoothedSlope = fit.slope
			e.haveSlope = true
		}
	}
	if !e.haveSlope {
		return snap
	}

	slope := e.smoothedSlope
	switch e.regime {
	case RegimeDischarging:
		if slope < -e.cfg.SlopeEpsilon {
			if d, ok := secondsToDuration(level / -slope); ok {
				snap.TimeToEmpty = &d
				snap.TimeToEmptyText = FormatDuration(d)
				snap.Confidence = e.cfg.Classify(len(e.window), fit.r2)
			}
		}
	case RegimeCharging:
		if slope > e.cfg.SlopeEpsilon {
			if d, ok := secondsToDuration((1 - level) / slope); ok {
				snap.TimeToFull = &d
				snap.TimeToFullText = FormatDuration(d)
				snap.Confidence = e.cfg.Classify(len(e.window), fit.r2)
			}
		}
	}
	if outlier {
		snap.Confidence = ConfidenceLow
	}
	return snap
}

// secondsToDuration converts a forecast in seconds, refusing non-finite or
// non-positive values.
func secondsToDuration(seconds float64) (time.Duration, bool) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}
