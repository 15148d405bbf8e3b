package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/batterylens/internal/estimator"
	"github.com/sanspareilsmyn/batterylens/internal/reading"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func dischargeReading(device string, i int, level float64) reading.BatteryReading {
	return reading.BatteryReading{
		DeviceID:  device,
		Timestamp: base.Add(time.Duration(i) * 30 * time.Second),
		Level:     level,
		State:     estimator.StateDischarging,
	}
}

func TestForecasterTracksDevicesIndependently(t *testing.T) {
	f := NewForecaster(estimator.DefaultConfig(), nil, nil, zap.NewNop())

	for i := 0; i < 10; i++ {
		_, ok := f.process(dischargeReading("phone", i, 0.8-float64(i)*0.001))
		require.True(t, ok)
		update, ok := f.process(dischargeReading("tablet", i, 0.5-float64(i)*0.002))
		require.True(t, ok)

		assert.Equal(t, "tablet", update.Reading.DeviceID)
		assert.Equal(t, i+1, update.Snapshot.SampleCount)
	}

	// A regime flip on one device must not touch the other's window.
	update, ok := f.process(reading.BatteryReading{
		DeviceID:  "phone",
		Timestamp: base.Add(10 * 30 * time.Second),
		Level:     0.79,
		State:     estimator.StateCharging,
	})
	require.True(t, ok)
	assert.Equal(t, 1, update.Snapshot.SampleCount)

	update, ok = f.process(dischargeReading("tablet", 10, 0.48))
	require.True(t, ok)
	assert.Equal(t, 11, update.Snapshot.SampleCount)
}

func TestForecasterDropsOutOfOrderReadings(t *testing.T) {
	f := NewForecaster(estimator.DefaultConfig(), nil, nil, zap.NewNop())

	_, ok := f.process(dischargeReading("phone", 5, 0.8))
	require.True(t, ok)

	// An earlier timestamp would corrupt the estimator's relative-time basis.
	_, ok = f.process(dischargeReading("phone", 2, 0.81))
	assert.False(t, ok)

	// Equal timestamps are allowed; the fit just reports degenerate.
	_, ok = f.process(dischargeReading("phone", 5, 0.8))
	assert.True(t, ok)
}

func TestForecasterRunForwardsUpdates(t *testing.T) {
	in := make(chan reading.BatteryReading, 10)
	out := make(chan EstimateUpdate, 10)
	f := NewForecaster(estimator.DefaultConfig(), in, out, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	for i := 0; i < 3; i++ {
		in <- dischargeReading("phone", i, 0.8-float64(i)*0.001)
	}
	close(in)

	require.NoError(t, <-done)
	require.Len(t, out, 3)
	update := <-out
	assert.Equal(t, "phone", update.Reading.DeviceID)
	assert.Equal(t, 1, update.Snapshot.SampleCount)
}

func TestForecasterRunStopsOnCancel(t *testing.T) {
	in := make(chan reading.BatteryReading)
	out := make(chan EstimateUpdate)
	f := NewForecaster(estimator.DefaultConfig(), in, out, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
