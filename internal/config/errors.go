package config

import "errors"

var (
	ErrReadingConfigFile   = errors.New("failed to read config file")
	ErrUnmarshallingConfig = errors.New("failed to unmarshal config")
	ErrConfigFileMissing   = errors.New("config file not found")
	ErrUnknownSourceKind   = errors.New("source kind must be kafka or mqtt")
	ErrEmptyKafkaBrokers   = errors.New("kafka brokers list cannot be empty")
	ErrEmptyKafkaTopic     = errors.New("kafka topic cannot be empty")
	ErrEmptyKafkaGroupID   = errors.New("kafka groupID cannot be empty")
	ErrEmptyMQTTBroker     = errors.New("mqtt broker cannot be empty")
	ErrEmptyMQTTTopic      = errors.New("mqtt topic cannot be empty")
	ErrInvalidWindowBound  = errors.New("estimator maxWindowSamples must exceed 1")
	ErrInvalidOutlierJump  = errors.New("estimator outlierJump must be in (0,1]")
	ErrInvalidHalfLife     = errors.New("estimator halfLife must not be negative")
	ErrInvalidLowLevel     = errors.New("alerting lowLevel must be in [0,1]")
	ErrEmptyMetricsAddr    = errors.New("metrics addr cannot be empty when metrics are enabled")
)
