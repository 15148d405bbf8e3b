package estimator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// feedLinear feeds level(t) = start + slope*t sampled every interval, n times,
// returning the last snapshot.
func feedLinear(e *Estimator, state ChargeState, start, slope float64, interval time.Duration, n int) Snapshot {
	var snap Snapshot
	for i := 0; i < n; i++ {
		ts := t0.Add(time.Duration(i) * interval)
		level := start + slope*ts.Sub(t0).Seconds()
		snap = e.AddSample(level, state, ts)
	}
	return snap
}

func TestDischargeForecastMatchesAnalyticValue(t *testing.T) {
	e := New(DefaultConfig())

	// level(t) = 0.80 - 0.0001*t, so the battery hits empty at t = 8000s.
	const slope = -0.0001
	for i := 0; i <= 100; i++ {
		ts := t0.Add(time.Duration(i) * 30 * time.Second)
		elapsed := ts.Sub(t0).Seconds()
		snap := e.AddSample(0.80+slope*elapsed, StateDischarging, ts)

		if snap.SampleCount < 8 {
			continue
		}
		require.NotNil(t, snap.TimeToEmpty, "sample %d", i)
		tte := snap.TimeToEmpty.Seconds()
		assert.Greater(t, tte, 0.0)
		assert.InDelta(t, 8000.0, elapsed+tte, 1.0, "sample %d", i)
		assert.Nil(t, snap.TimeToFull)
	}
}

func TestChargeForecastMatchesAnalyticValue(t *testing.T) {
	e := New(DefaultConfig())

	// level(t) = 0.20 + 0.0002*t, full at t = 4000s.
	const slope = 0.0002
	snap := feedLinear(e, StateCharging, 0.20, slope, 20*time.Second, 60)

	require.NotNil(t, snap.TimeToFull)
	elapsed := snap.MonitoringDuration.Seconds()
	assert.InDelta(t, 4000.0, elapsed+snap.TimeToFull.Seconds(), 1.0)
	assert.Nil(t, snap.TimeToEmpty)
	assert.Equal(t, RegimeCharging, snap.Regime)
}

func TestSameDirectionNeverResets(t *testing.T) {
	e := New(DefaultConfig())
	snap := feedLinear(e, StateDischarging, 0.9, -0.0001, 30*time.Second, 20)
	assert.Equal(t, 20, snap.SampleCount)
	assert.Equal(t, 20, snap.ReadingCount)
}

func TestDirectionFlipResetsWindow(t *testing.T) {
	e := New(DefaultConfig())
	feedLinear(e, StateDischarging, 0.9, -0.0001, 30*time.Second, 5)

	snap := e.AddSample(0.9, StateCharging, t0.Add(5*30*time.Second))
	assert.Equal(t, 1, snap.SampleCount)
	assert.Equal(t, 1, snap.ReadingCount)
	assert.Equal(t, time.Duration(0), snap.MonitoringDuration)
	assert.Equal(t, RegimeCharging, snap.Regime)
	assert.Nil(t, snap.TimeToFull)
	assert.Equal(t, ConfidenceLow, snap.Confidence)
}

func TestUnknownDirectionAlwaysResets(t *testing.T) {
	e := New(DefaultConfig())
	for i := 0; i < 10; i++ {
		snap := e.AddSample(0.5, StateUnknown, t0.Add(time.Duration(i)*30*time.Second))
		assert.Equal(t, 1, snap.SampleCount)
		assert.Equal(t, ConfidenceLow, snap.Confidence)
		assert.Nil(t, snap.TimeToEmpty)
		assert.Nil(t, snap.TimeToFull)
	}
}

func TestFullSaturationShortCircuit(t *testing.T) {
	e := New(DefaultConfig())
	feedLinear(e, StateDischarging, 0.9, -0.0001, 30*time.Second, 20)

	snap := e.AddSample(1.0, StateFull, t0.Add(time.Hour))
	require.NotNil(t, snap.TimeToFull)
	assert.Equal(t, time.Duration(0), *snap.TimeToFull)
	assert.Equal(t, "Full", snap.TimeToFullText)
	assert.Equal(t, ConfidenceHigh, snap.Confidence)

	// State full short-circuits even when the reported level lags below 100%.
	snap = e.AddSample(0.97, StateFull, t0.Add(time.Hour+30*time.Second))
	require.NotNil(t, snap.TimeToFull)
	assert.Equal(t, "Full", snap.TimeToFullText)
	assert.Equal(t, ConfidenceHigh, snap.Confidence)
}

func TestOutlierRejected(t *testing.T) {
	e := New(DefaultConfig())
	const slope = -0.0001
	feedLinear(e, StateDischarging, 0.50, slope, 30*time.Second, 10)

	// A 10-point jump in one tick is sensor noise, not a real level change.
	snap := e.AddSample(0.60, StateDischarging, t0.Add(10*30*time.Second))
	assert.True(t, snap.OutlierRejected)
	assert.Equal(t, 10, snap.SampleCount, "window must not grow")
	assert.Equal(t, 11, snap.ReadingCount)
	assert.Equal(t, ConfidenceLow, snap.Confidence)

	// Subsequent on-trend readings continue the prior fit undisturbed.
	for i := 11; i <= 30; i++ {
		ts := t0.Add(time.Duration(i) * 30 * time.Second)
		elapsed := ts.Sub(t0).Seconds()
		snap = e.AddSample(0.50+slope*elapsed, StateDischarging, ts)
	}
	assert.False(t, snap.OutlierRejected)
	assert.Equal(t, 30, snap.SampleCount)
	require.NotNil(t, snap.TimeToEmpty)
	elapsed := snap.MonitoringDuration.Seconds()
	assert.InDelta(t, 5000.0, elapsed+snap.TimeToEmpty.Seconds(), 30.0)
}

func TestInvalidReadingDiscarded(t *testing.T) {
	e := New(DefaultConfig())
	feedLinear(e, StateDischarging, 0.9, -0.0001, 30*time.Second, 10)

	snap := e.AddSample(math.NaN(), StateDischarging, t0.Add(10*30*time.Second))
	assert.Equal(t, 10, snap.SampleCount)
	assert.Equal(t, ConfidenceLow, snap.Confidence)

	snap = e.AddSample(math.Inf(1), StateDischarging, t0.Add(11*30*time.Second))
	assert.Equal(t, 10, snap.SampleCount)
}

func TestWindowBoundEvictsOldestFirst(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxWindowSamples = 10
	e := New(cfg)

	snap := feedLinear(e, StateDischarging, 0.9, -0.00005, 30*time.Second, 25)
	assert.Equal(t, 10, snap.SampleCount)
	assert.Equal(t, 25, snap.ReadingCount)
	// Eviction never rewrites the time origin.
	assert.Equal(t, 24*30*time.Second, snap.MonitoringDuration)
	require.NotNil(t, snap.TimeToEmpty)
}

func TestDegenerateFitWithheld(t *testing.T) {
	e := New(DefaultConfig())
	// Duplicate timestamps leave no time variance; the slope is undefined.
	for i := 0; i < 12; i++ {
		snap := e.AddSample(0.5, StateDischarging, t0)
		assert.Nil(t, snap.TimeToEmpty)
		assert.Equal(t, "estimating", snap.TimeToEmptyText)
		assert.Equal(t, ConfidenceLow, snap.Confidence)
	}
}

func TestSignMismatchWithholdsForecast(t *testing.T) {
	e := New(DefaultConfig())
	// Direction says discharging but the level is slowly rising.
	snap := feedLinear(e, StateDischarging, 0.5, 0.0001, 30*time.Second, 20)
	assert.Nil(t, snap.TimeToEmpty)
	assert.Equal(t, "estimating", snap.TimeToEmptyText)
	assert.Equal(t, ConfidenceLow, snap.Confidence)
}

func TestConfidenceMonotonic(t *testing.T) {
	cfg := DefaultConfig()

	// Fixed r² above the high bar: confidence never decreases with more samples.
	prev := ConfidenceLow
	for n := 1; n <= 60; n++ {
		c := cfg.Classify(n, 0.9)
		assert.GreaterOrEqual(t, int(c), int(prev), "n=%d", n)
		prev = c
	}
	assert.Equal(t, ConfidenceHigh, cfg.Classify(60, 0.9))

	// Fixed sample count above the high bar: confidence never decreases as r² rises.
	prev = ConfidenceLow
	for r2 := 0.0; r2 <= 1.0; r2 += 0.05 {
		c := cfg.Classify(40, r2)
		assert.GreaterOrEqual(t, int(c), int(prev), "r2=%f", r2)
		prev = c
	}
	assert.Equal(t, ConfidenceLow, cfg.Classify(40, 0.5))
	assert.Equal(t, ConfidenceMedium, cfg.Classify(40, 0.7))
	assert.Equal(t, ConfidenceHigh, cfg.Classify(40, 0.95))
}

func TestParseChargeState(t *testing.T) {
	assert.Equal(t, StateCharging, ParseChargeState("charging"))
	assert.Equal(t, StateDischarging, ParseChargeState("discharging"))
	assert.Equal(t, StateDischarging, ParseChargeState("unplugged"))
	assert.Equal(t, StateFull, ParseChargeState("Full"))
	assert.Equal(t, StateUnknown, ParseChargeState("plasma"))
	assert.Equal(t, StateUnknown, ParseChargeState(""))
}

func TestConfigWithDefaults(t *testing.T) {
	e := New(Config{})
	// A zero Config must not divide by zero or panic; defaults apply.
	snap := feedLinear(e, StateDischarging, 0.8, -0.0001, 30*time.Second, 20)
	require.NotNil(t, snap.TimeToEmpty)
}
