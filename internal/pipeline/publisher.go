package pipeline

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/batterylens/internal/config"
	"github.com/sanspareilsmyn/batterylens/internal/estimator"
)

// Prometheus Metrics Definition
var (
	batteryLevel = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "batterylens_level_fraction",
			Help: "Last observed battery level as a fraction in [0,1].",
		},
		[]string{"device_id"},
	)
	timeToEmpty = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "batterylens_time_to_empty_seconds",
			Help: "Forecast seconds until the battery is empty; 0 while estimating.",
		},
		[]string{"device_id"},
	)
	timeToFull = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "batterylens_time_to_full_seconds",
			Help: "Forecast seconds until the battery is full; 0 while estimating.",
		},
		[]string{"device_id"},
	)
	forecastAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "batterylens_forecast_available",
			Help: "1 when a forecast exists for the device's charge direction, 0 while estimating.",
		},
		[]string{"device_id"},
	)
	forecastConfidence = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "batterylens_forecast_confidence",
			Help: "Forecast confidence: 0 low, 1 medium, 2 high.",
		},
		[]string{"device_id"},
	)
	fitSampleCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "batterylens_fit_sample_count",
			Help: "Number of samples in the device's regression window.",
		},
		[]string{"device_id"},
	)
	monitoringDuration = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "batterylens_monitoring_duration_seconds",
			Help: "Elapsed seconds since the current charge regime's window origin.",
		},
		[]string{"device_id"},
	)
	lowPowerMode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "batterylens_low_power_mode",
			Help: "1 when the device reports low power mode.",
		},
		[]string{"device_id"},
	)
	thermalLevel = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "batterylens_thermal_level",
			Help: "Thermal severity: 0 nominal, 1 fair, 2 serious, 3 critical.",
		},
		[]string{"device_id"},
	)
	readingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batterylens_readings_total",
			Help: "Total readings processed per device.",
		},
		[]string{"device_id"},
	)
	outliersRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batterylens_outliers_rejected_total",
			Help: "Total readings rejected as sensor noise per device.",
		},
		[]string{"device_id"},
	)
	alertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batterylens_alerts_total",
			Help: "Total threshold alerts raised per device and check.",
		},
		[]string{"device_id", "check"},
	)
)

// Publisher receives estimate updates, exports them as Prometheus metrics,
// and raises low-battery threshold alerts.
type Publisher struct {
	cfg    config.AlertingConfig
	input  <-chan EstimateUpdate
	logger *zap.Logger
}

// NewPublisher creates a new Publisher instance.
func NewPublisher(cfg config.AlertingConfig, input <-chan EstimateUpdate, logger *zap.Logger) *Publisher {
	logger.Debug("Publisher initialized",
		zap.Duration("min_time_to_empty", cfg.MinTimeToEmpty),
		zap.Float64("low_level", cfg.LowLevel),
	)
	return &Publisher{
		cfg:    cfg,
		input:  input,
		logger: logger,
	}
}

// Run starts the publisher's processing loop.
func (p *Publisher) Run(ctx context.Context) error {
	sugar := p.logger.Sugar()
	sugar.Info("Starting publisher loop...")
	defer sugar.Info("Publisher loop stopped.")

	for {
		select {
		case update, ok := <-p.input:
			if !ok {
				sugar.Info("Publisher input channel closed.")
				return nil
			}
			p.processUpdate(update)

		case <-ctx.Done():
			sugar.Info("Context cancelled, stopping publisher.")
			return ctx.Err()
		}
	}
}

// processUpdate exports metrics, performs threshold checks, and logs the
// estimate line.
func (p *Publisher) processUpdate(update EstimateUpdate) {
	sugar := p.logger.Sugar()
	device := update.Reading.DeviceID
	snap := update.Snapshot

	batteryLevel.WithLabelValues(device).Set(snap.Level)
	fitSampleCount.WithLabelValues(device).Set(float64(snap.SampleCount))
	monitoringDuration.WithLabelValues(device).Set(snap.MonitoringDuration.Seconds())
	forecastConfidence.WithLabelValues(device).Set(float64(snap.Confidence))
	readingsTotal.WithLabelValues(device).Inc()

	if snap.OutlierRejected {
		outliersRejectedTotal.WithLabelValues(device).Inc()
	}

	available := 0.0
	if snap.TimeToEmpty != nil {
		timeToEmpty.WithLabelValues(device).Set(snap.TimeToEmpty.Seconds())
		available = 1
	} else {
		timeToEmpty.WithLabelValues(device).Set(0)
	}
	if snap.TimeToFull != nil {
		timeToFull.WithLabelValues(device).Set(snap.TimeToFull.Seconds())
		available = 1
	} else {
		timeToFull.WithLabelValues(device).Set(0)
	}
	forecastAvailable.WithLabelValues(device).Set(available)

	if update.Reading.LowPower {
		lowPowerMode.WithLabelValues(device).Set(1)
	} else {
		lowPowerMode.WithLabelValues(device).Set(0)
	}
	thermalLevel.WithLabelValues(device).Set(float64(update.Reading.Thermal))

	p.checkTimeToEmpty(sugar, device, snap)
	p.checkLowLevel(sugar, device, snap)

	p.logEstimate(sugar, device, snap)
}

// checkTimeToEmpty raises an alert when the discharge forecast drops below
// the configured floor. Withheld forecasts never alert.
func (p *Publisher) checkTimeToEmpty(sugar *zap.SugaredLogger, device string, snap estimator.Snapshot) {
	if p.cfg.MinTimeToEmpty <= 0 || snap.TimeToEmpty == nil {
		return
	}
	if *snap.TimeToEmpty < p.cfg.MinTimeToEmpty {
		sugar.Warnw("Time-to-empty below threshold",
			zap.String("device_id", device),
			zap.String("time_to_empty", snap.TimeToEmptyText),
			zap.Duration("threshold", p.cfg.MinTimeToEmpty),
			zap.String("confidence", snap.Confidence.String()),
		)
		alertsTotal.WithLabelValues(device, "time_to_empty").Inc()
	}
}

// checkLowLevel raises an alert when a discharging device's level drops below
// the configured floor.
func (p *Publisher) checkLowLevel(sugar *zap.SugaredLogger, device string, snap estimator.Snapshot) {
	if p.cfg.LowLevel <= 0 || snap.Regime != estimator.RegimeDischarging {
		return
	}
	if snap.Level < p.cfg.LowLevel {
		sugar.Warnw("Battery level below threshold",
			zap.String("device_id", device),
			zap.Float64("level", snap.Level),
			zap.Float64("threshold", p.cfg.LowLevel),
		)
		alertsTotal.WithLabelValues(device, "low_level").Inc()
	}
}

func (p *Publisher) logEstimate(sugar *zap.SugaredLogger, device string, snap estimator.Snapshot) {
	fields := []interface{}{
		zap.String("device_id", device),
		zap.Float64("level", snap.Level),
		zap.String("regime", snap.Regime.String()),
		zap.String("confidence", snap.Confidence.String()),
		zap.Int("samples", snap.SampleCount),
		zap.Int("readings", snap.ReadingCount),
		zap.String("monitoring", snap.MonitoringDurationText),
	}
	switch snap.Regime {
	case estimator.RegimeDischarging:
		fields = append(fields, zap.String("time_to_empty", snap.TimeToEmptyText))
	case estimator.RegimeCharging:
		fields = append(fields, zap.String("time_to_full", snap.TimeToFullText))
	}
	if snap.OutlierRejected {
		fields = append(fields, zap.Bool("outlier_rejected", true))
	}

	sugar.Infow("Battery estimate", fields...)
}
