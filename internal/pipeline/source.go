package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/batterylens/internal/config"
)

// Source delivers raw reading payloads from a transport onto the pipeline's
// raw channel. Run blocks until the context is cancelled or an unrecoverable
// transport error occurs.
type Source interface {
	Run(ctx context.Context) error
}

type kafkaZapLogger struct {
	log *zap.Logger
}

func (l kafkaZapLogger) Printf(msg string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(msg, args...))
}

type kafkaZapErrorLogger struct {
	log *zap.Logger
}

func (l kafkaZapErrorLogger) Printf(msg string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(msg, args...))
}

// KafkaSource reads battery reading payloads from a Kafka topic.
type KafkaSource struct {
	reader *kafka.Reader
	output chan<- []byte
	cfg    config.KafkaConfig
	logger *zap.Logger
}

// NewKafkaSource creates and configures a Kafka-backed reading source.
func NewKafkaSource(cfg config.KafkaConfig, output chan<- []byte, logger *zap.Logger) (*KafkaSource, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		logger.Error("Kafka configuration validation failed",
			zap.Strings("brokers", cfg.Brokers),
			zap.String("topic", cfg.Topic),
			zap.String("group_id", cfg.GroupID),
		)
		return nil, ErrInvalidKafkaConfig
	}

	readerCfg := kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		Logger:      kafkaZapLogger{logger.Named("kafka-reader").WithOptions(zap.AddCallerSkip(1))},
		ErrorLogger: kafkaZapErrorLogger{logger.Named("kafka-reader-error").WithOptions(zap.AddCallerSkip(1))},
	}
	r := kafka.NewReader(readerCfg)

	logger.Info("Kafka reading source created",
		zap.String("topic", cfg.Topic),
		zap.String("group_id", cfg.GroupID),
		zap.Strings("brokers", cfg.Brokers),
	)

	return &KafkaSource{
		reader: r,
		output: output,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Run starts the fetch loop and blocks until cancellation or failure.
func (s *KafkaSource) Run(ctx context.Context) error {
	sugar := s.logger.Sugar()
	sugar.Info("Starting Kafka reading source loop...")

	defer func() {
		if err := s.reader.Close(); err != nil {
			sugar.Errorw("Failed to close Kafka reader cleanly", zap.Error(err))
		}
		sugar.Info("Kafka reading source loop stopped.")
	}()

	for {
		m, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				s.logger.Debug("Context cancelled, stopping Kafka fetch loop.", zap.Error(err))
				return context.Canceled
			}
			s.logger.Error("Error fetching message from Kafka", zap.Error(err))
			return fmt.Errorf("%w: %w", ErrKafkaFetchFailed, err)
		}

		select {
		case s.output <- m.Value:

		case <-ctx.Done():
			s.logger.Debug("Context cancelled while sending payload downstream.", zap.Error(ctx.Err()))
			return context.Canceled
		}
	}
}
