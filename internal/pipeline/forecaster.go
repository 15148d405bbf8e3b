package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/batterylens/internal/estimator"
	"github.com/sanspareilsmyn/batterylens/internal/reading"
)

// EstimateUpdate pairs a reading with the estimate recomputed from it.
type EstimateUpdate struct {
	Reading  reading.BatteryReading
	Snapshot estimator.Snapshot
}

// Forecaster owns one estimator per device and feeds each device's readings
// through it serially. The estimator requires single-goroutine confinement
// and non-decreasing timestamps per device; the forecaster provides both by
// running alone and dropping stale readings.
type Forecaster struct {
	cfg    estimator.Config
	input  <-chan reading.BatteryReading
	output chan<- EstimateUpdate
	logger *zap.Logger

	estimators map[string]*estimator.Estimator
	lastSeen   map[string]time.Time
}

// NewForecaster creates a new Forecaster instance.
func NewForecaster(cfg estimator.Config, input <-chan reading.BatteryReading, output chan<- EstimateUpdate, logger *zap.Logger) *Forecaster {
	logger.Info("Forecaster initialized",
		zap.Int("max_window_samples", cfg.MaxWindowSamples),
		zap.Int("min_fit_samples", cfg.MinFitSamples),
		zap.Float64("outlier_jump", cfg.OutlierJump),
		zap.Duration("half_life", cfg.HalfLife),
	)
	return &Forecaster{
		cfg:        cfg,
		input:      input,
		output:     output,
		logger:     logger,
		estimators: make(map[string]*estimator.Estimator),
		lastSeen:   make(map[string]time.Time),
	}
}

// Run starts the forecaster's processing loop.
func (f *Forecaster) Run(ctx context.Context) error {
	sugar := f.logger.Sugar()
	sugar.Info("Starting forecaster loop...")
	defer sugar.Info("Forecaster loop stopped.")

	for {
		select {
		case r, ok := <-f.input:
			if !ok {
				sugar.Info("Forecaster input channel closed.")
				return nil
			}
			update, ok := f.process(r)
			if !ok {
				continue
			}

			select {
			case f.output <- update:

			case <-ctx.Done():
				sugar.Debug("Context cancelled while sending estimate downstream.")
				return ctx.Err()
			}

		case <-ctx.Done():
			sugar.Info("Context cancelled, stopping forecaster.")
			return ctx.Err()
		}
	}
}

// process routes a reading to its device's estimator. Readings older than the
// device's most recent one would corrupt the estimator's relative-time basis
// and are dropped here.
func (f *Forecaster) process(r reading.BatteryReading) (EstimateUpdate, bool) {
	sugar := f.logger.Sugar()

	if last, ok := f.lastSeen[r.DeviceID]; ok && r.Timestamp.Before(last) {
		sugar.Warnw("Dropping out-of-order reading",
			"device_id", r.DeviceID,
			"timestamp", r.Timestamp,
			"last_seen", last,
		)
		return EstimateUpdate{}, false
	}
	f.lastSeen[r.DeviceID] = r.Timestamp

	est, ok := f.estimators[r.DeviceID]
	if !ok {
		est = estimator.New(f.cfg)
		f.estimators[r.DeviceID] = est
		sugar.Infow("Tracking new device", "device_id", r.DeviceID)
	}

	snap := est.AddSample(r.Level, r.State, r.Timestamp)
	if snap.OutlierRejected {
		sugar.Debugw("Reading rejected as outlier",
			"device_id", r.DeviceID,
			"level", r.Level,
			"window_size", snap.SampleCount,
		)
	}
	return EstimateUpdate{Reading: r, Snapshot: snap}, true
}
