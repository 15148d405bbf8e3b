// Package pipeline wires the reading source, parser, forecaster and
// publisher stages into one cancellable unit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/batterylens/internal/config"
	"github.com/sanspareilsmyn/batterylens/internal/reading"
)

// Pipeline orchestrates the stages: source, parsing, forecasting, publishing.
type Pipeline struct {
	cfg        *config.Config
	source     Source
	forecaster *Forecaster
	publisher  *Publisher
	logger     *zap.Logger

	rawPayloads chan []byte
	readings    chan reading.BatteryReading
	updates     chan EstimateUpdate
}

// New creates and wires up a new monitoring pipeline.
func New(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	initLogger := logger.Named("pipeline.init")
	initLogger.Debug("Creating pipeline components...")

	// Create Channels
	const channelBufferSize = 100
	rawPayloads := make(chan []byte, channelBufferSize)
	readings := make(chan reading.BatteryReading, channelBufferSize)
	updates := make(chan EstimateUpdate, channelBufferSize)

	// Initialize Components
	source, err := newSource(cfg.Source, rawPayloads, logger)
	if err != nil {
		initLogger.Error("Failed to create reading source", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrSourceCreationFailed, err)
	}
	initLogger.Debug("Reading source created", zap.String("kind", cfg.Source.Kind))

	forecaster := NewForecaster(cfg.Estimator.ToEstimator(), readings, updates, logger.Named("forecaster"))
	publisher := NewPublisher(cfg.Alerting, updates, logger.Named("publisher"))

	p := &Pipeline{
		cfg:         cfg,
		source:      source,
		forecaster:  forecaster,
		publisher:   publisher,
		logger:      logger.Named("pipeline"),
		rawPayloads: rawPayloads,
		readings:    readings,
		updates:     updates,
	}

	initLogger.Info("Pipeline instance created successfully")
	return p, nil
}

// newSource builds the transport selected by config.
func newSource(cfg config.SourceConfig, output chan<- []byte, logger *zap.Logger) (Source, error) {
	switch cfg.Kind {
	case "kafka":
		return NewKafkaSource(cfg.Kafka, output, logger.Named("kafka-source"))
	case "mqtt":
		return NewMQTTSource(cfg.MQTT, output, logger.Named("mqtt-source"))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSourceKind, cfg.Kind)
	}
}

// Run starts all pipeline components and waits for them to complete or
// context cancellation.
func (p *Pipeline) Run(ctx context.Context) error {
	sugar := p.logger.Sugar()
	var wg sync.WaitGroup
	pipelineErr := make(chan error, 4) // source, parser, forecaster, publisher

	sugar.Info("Pipeline Run: Starting components...")

	wg.Add(4)
	go p.runSource(ctx, &wg, pipelineErr)
	go p.runParser(ctx, &wg)
	go p.runForecaster(ctx, &wg, pipelineErr)
	go p.runPublisher(ctx, &wg, pipelineErr)

	// Wait for context cancellation or the first error from any component
	var firstErr error
	select {
	case <-ctx.Done():
		sugar.Info("Pipeline Run: Context cancelled. Waiting for components to finish...")
		firstErr = ctx.Err()
	case err := <-pipelineErr:
		sugar.Errorw("Pipeline Run: Received error from a component, initiating shutdown...", zap.Error(err))
		firstErr = err
	}

	wg.Wait()
	sugar.Info("Pipeline Run: All components finished.")

	if firstErr != nil && !errors.Is(firstErr, context.Canceled) {
		return firstErr
	}
	return nil
}

// runSource executes the transport component in a goroutine.
func (p *Pipeline) runSource(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()
	defer func() {
		close(p.rawPayloads)
		p.logger.Debug("Raw payload channel closed")
	}()

	if err := p.source.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("Reading source exited with error", zap.Error(err))
		errCh <- fmt.Errorf("%w: %w", ErrSourceRunFailed, err)
	} else {
		p.logger.Debug("Reading source goroutine finished")
	}
}

// runParser decodes raw payloads into validated battery readings. Malformed
// or out-of-range readings are the sensor boundary's problem, not the
// estimator's: they are logged and dropped here.
func (p *Pipeline) runParser(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer func() {
		close(p.readings)
		p.logger.Debug("Readings channel closed")
	}()

	parserLogger := p.logger.Named("parser").Sugar()
	parserLogger.Debug("Starting parser goroutine...")

	for {
		select {
		case raw, ok := <-p.rawPayloads:
			if !ok {
				parserLogger.Debug("Parser finished (raw payload channel closed).")
				return
			}

			r, err := reading.ParseJSON(raw)
			if err != nil {
				parserLogger.Warnw("Failed to parse reading, skipping", zap.Error(err))
				continue
			}

			select {
			case p.readings <- r:

			case <-ctx.Done():
				parserLogger.Debug("Parser context cancelled during send.", zap.Error(ctx.Err()))
				return
			}

		case <-ctx.Done():
			parserLogger.Debug("Parser context cancelled while waiting for payload.", zap.Error(ctx.Err()))
			return
		}
	}
}

// runForecaster executes the forecaster component in a goroutine.
func (p *Pipeline) runForecaster(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()
	defer func() {
		close(p.updates)
		p.logger.Debug("Estimate updates channel closed")
	}()

	if err := p.forecaster.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("Forecaster exited with error", zap.Error(err))
		errCh <- fmt.Errorf("%w: %w", ErrForecasterRunFailed, err)
	} else {
		p.logger.Debug("Forecaster goroutine finished")
	}
}

// runPublisher executes the publisher component in a goroutine.
func (p *Pipeline) runPublisher(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()

	if err := p.publisher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("Publisher exited with error", zap.Error(err))
		errCh <- fmt.Errorf("%w: %w", ErrPublisherRunFailed, err)
	} else {
		p.logger.Debug("Publisher goroutine finished")
	}
}
