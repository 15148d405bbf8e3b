package pipeline

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/batterylens/internal/config"
)

// MQTTSource subscribes to an MQTT topic of battery reading payloads. It is
// the ingest transport for deployments where devices publish straight to a
// broker instead of a Kafka cluster.
type MQTTSource struct {
	cfg    config.MQTTConfig
	output chan<- []byte
	logger *zap.Logger
}

// NewMQTTSource creates an MQTT-backed reading source.
func NewMQTTSource(cfg config.MQTTConfig, output chan<- []byte, logger *zap.Logger) (*MQTTSource, error) {
	if cfg.Broker == "" || cfg.Topic == "" {
		logger.Error("MQTT configuration validation failed",
			zap.String("broker", cfg.Broker),
			zap.String("topic", cfg.Topic),
		)
		return nil, ErrInvalidMQTTConfig
	}
	return &MQTTSource{cfg: cfg, output: output, logger: logger}, nil
}

// Run connects, subscribes, and blocks until the context is cancelled. The
// paho client drives the message handler on its own goroutines; the handler
// only forwards payloads onto the raw channel.
func (s *MQTTSource) Run(ctx context.Context) error {
	sugar := s.logger.Sugar()

	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(true).
		SetOrderMatters(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		s.logger.Error("MQTT connect failed", zap.Error(token.Error()), zap.String("broker", s.cfg.Broker))
		return fmt.Errorf("%w: %w", ErrMQTTConnectFailed, token.Error())
	}
	defer func() {
		client.Disconnect(250)
		sugar.Info("MQTT reading source stopped.")
	}()

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case s.output <- msg.Payload():

		case <-ctx.Done():
		}
	}

	if token := client.Subscribe(s.cfg.Topic, 0, handler); token.Wait() && token.Error() != nil {
		s.logger.Error("MQTT subscribe failed", zap.Error(token.Error()), zap.String("topic", s.cfg.Topic))
		return fmt.Errorf("%w: %w", ErrMQTTSubscribeFailed, token.Error())
	}

	sugar.Infow("MQTT reading source subscribed",
		"broker", s.cfg.Broker,
		"topic", s.cfg.Topic,
		"client_id", s.cfg.ClientID,
	)

	<-ctx.Done()
	return context.Canceled
}
