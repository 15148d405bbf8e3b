package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalKafka = `
source:
  kind: kafka
  kafka:
    brokers: ["localhost:9092"]
    topic: battery-readings
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalKafka))
	require.NoError(t, err)

	assert.Equal(t, "kafka", cfg.Source.Kind)
	assert.Equal(t, defaultKafkaGroupID, cfg.Source.Kafka.GroupID)
	assert.Equal(t, 1440, cfg.Estimator.MaxWindowSamples)
	assert.Equal(t, 8, cfg.Estimator.MinFitSamples)
	assert.Equal(t, 0.03, cfg.Estimator.OutlierJump)
	assert.Equal(t, 12*time.Minute, cfg.Estimator.HalfLife)
	assert.Equal(t, 0.25, cfg.Estimator.SlopeSmoothing)
	assert.Equal(t, 30, cfg.Estimator.HighMinSamples)
	assert.Equal(t, 0.85, cfg.Estimator.HighMinR2)
	assert.Equal(t, 15*time.Minute, cfg.Alerting.MinTimeToEmpty)
	assert.Equal(t, 0.1, cfg.Alerting.LowLevel)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, defaultMetricsAddr, cfg.Metrics.Addr)
	assert.Equal(t, defaultLogLevel, cfg.Log.Level)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
source:
  kind: mqtt
  mqtt:
    broker: tcp://localhost:1883
    topic: devices/battery
estimator:
  outlierJump: 0.05
  halfLife: 10m
  highMinSamples: 40
log:
  level: debug
`))
	require.NoError(t, err)
	assert.Equal(t, "mqtt", cfg.Source.Kind)
	assert.Equal(t, defaultMQTTClientID, cfg.Source.MQTT.ClientID)
	assert.Equal(t, 0.05, cfg.Estimator.OutlierJump)
	assert.Equal(t, 10*time.Minute, cfg.Estimator.HalfLife)
	assert.Equal(t, 40, cfg.Estimator.HighMinSamples)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BATTERYLENS_LOG_LEVEL", "warn")
	cfg, err := Load(writeConfig(t, minimalKafka))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			"unknown source kind",
			`{source: {kind: carrier-pigeon}}`,
			ErrUnknownSourceKind,
		},
		{
			"kafka without brokers",
			`{source: {kind: kafka, kafka: {topic: t}}}`,
			ErrEmptyKafkaBrokers,
		},
		{
			"kafka without topic",
			`{source: {kind: kafka, kafka: {brokers: ["b:9092"]}}}`,
			ErrEmptyKafkaTopic,
		},
		{
			"mqtt without broker",
			`{source: {kind: mqtt, mqtt: {topic: t}}}`,
			ErrEmptyMQTTBroker,
		},
		{
			"mqtt without topic",
			`{source: {kind: mqtt, mqtt: {broker: "tcp://b:1883"}}}`,
			ErrEmptyMQTTTopic,
		},
		{
			"outlier jump above one",
			minimalKafka + "estimator: {outlierJump: 1.5}",
			ErrInvalidOutlierJump,
		},
		{
			"window bound too small",
			minimalKafka + "estimator: {maxWindowSamples: 1}",
			ErrInvalidWindowBound,
		},
		{
			"low level above one",
			minimalKafka + "alerting: {lowLevel: 2}",
			ErrInvalidLowLevel,
		},
		{
			"metrics enabled without addr",
			minimalKafka + `metrics: {enabled: true, addr: ""}`,
			ErrEmptyMetricsAddr,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}
