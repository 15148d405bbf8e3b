package pipeline

import "errors"

var (
	ErrInvalidKafkaConfig   = errors.New("invalid Kafka configuration provided")
	ErrInvalidMQTTConfig    = errors.New("invalid MQTT configuration provided")
	ErrKafkaFetchFailed     = errors.New("failed to fetch message from Kafka")
	ErrMQTTConnectFailed    = errors.New("failed to connect to MQTT broker")
	ErrMQTTSubscribeFailed  = errors.New("failed to subscribe to MQTT topic")
	ErrUnknownSourceKind    = errors.New("unknown source kind")
	ErrSourceCreationFailed = errors.New("failed to create reading source")
	ErrSourceRunFailed      = errors.New("reading source component failed")
	ErrForecasterRunFailed  = errors.New("forecaster component failed")
	ErrPublisherRunFailed   = errors.New("publisher component failed")
)
