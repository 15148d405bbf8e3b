package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sanspareilsmyn/batterylens/internal/estimator"
)

const (
	defaultSourceKind    = "kafka"
	defaultKafkaGroupID  = "batterylens-default-group"
	defaultMQTTClientID  = "batterylens"
	defaultMetricsAddr   = ":9090"
	defaultLogLevel      = "info"
	defaultLogFormat     = "console"
	defaultLogDirectory  = "log"
	defaultLogFilename   = "app.log"
	defaultLogMaxSizeMB  = 100
	defaultLogMaxBackups = 3
	defaultLogMaxAgeDays = 7

	// Environment variable prefix
	envPrefix = "BATTERYLENS"
)

type Config struct {
	Source    SourceConfig    `mapstructure:"source"`
	Estimator EstimatorConfig `mapstructure:"estimator"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

// SourceConfig selects and configures the reading transport.
type SourceConfig struct {
	Kind  string      `mapstructure:"kind"` // "kafka" or "mqtt"
	Kafka KafkaConfig `mapstructure:"kafka"`
	MQTT  MQTTConfig  `mapstructure:"mqtt"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"groupID"`
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"clientID"`
}

// EstimatorConfig mirrors estimator.Config so every tunable the estimation
// core exposes is overridable from the config file.
type EstimatorConfig struct {
	MaxWindowSamples int           `mapstructure:"maxWindowSamples"`
	MinFitSamples    int           `mapstructure:"minFitSamples"`
	OutlierJump      float64       `mapstructure:"outlierJump"`
	HalfLife         time.Duration `mapstructure:"halfLife"`
	SlopeSmoothing   float64       `mapstructure:"slopeSmoothing"`
	HighMinSamples   int           `mapstructure:"highMinSamples"`
	HighMinR2        float64       `mapstructure:"highMinR2"`
	MediumMinSamples int           `mapstructure:"mediumMinSamples"`
	MediumMinR2      float64       `mapstructure:"mediumMinR2"`
}

// ToEstimator converts the file-facing struct into the core's Config.
func (c EstimatorConfig) ToEstimator() estimator.Config {
	cfg := estimator.DefaultConfig()
	cfg.MaxWindowSamples = c.MaxWindowSamples
	cfg.MinFitSamples = c.MinFitSamples
	cfg.OutlierJump = c.OutlierJump
	cfg.HalfLife = c.HalfLife
	cfg.SlopeSmoothing = c.SlopeSmoothing
	cfg.HighMinSamples = c.HighMinSamples
	cfg.HighMinR2 = c.HighMinR2
	cfg.MediumMinSamples = c.MediumMinSamples
	cfg.MediumMinR2 = c.MediumMinR2
	return cfg
}

// AlertingConfig holds the thresholds the publisher warns on. Either field
// may be zero to disable that check.
type AlertingConfig struct {
	MinTimeToEmpty time.Duration `mapstructure:"minTimeToEmpty"`
	LowLevel       float64       `mapstructure:"lowLevel"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type LogConfig struct {
	Level              string `mapstructure:"level"`
	Format             string `mapstructure:"format"`
	FileLoggingEnabled bool   `mapstructure:"fileLoggingEnabled"`
	Directory          string `mapstructure:"directory"`
	Filename           string `mapstructure:"filename"`
	MaxSize            int    `mapstructure:"maxSize"`    // Max size in MB
	MaxBackups         int    `mapstructure:"maxBackups"` // Max backup files
	MaxAge             int    `mapstructure:"maxAge"`     // Max days to retain
	Compress           bool   `mapstructure:"compress"`
}

// Load initializes viper, reads config, applies defaults, unmarshals, and validates.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	configureViper(v, configPath)
	setDefaults(v)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshallingConfig, err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// configureViper sets up the viper instance for file and environment variables.
func configureViper(v *viper.Viper, configPath string) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults applies default configuration values using Viper. Estimator
// defaults track estimator.DefaultConfig so the file and the core never
// disagree.
func setDefaults(v *viper.Viper) {
	est := estimator.DefaultConfig()

	v.SetDefault("source.kind", defaultSourceKind)
	v.SetDefault("source.kafka.groupID", defaultKafkaGroupID)
	v.SetDefault("source.mqtt.clientID", defaultMQTTClientID)

	v.SetDefault("estimator.maxWindowSamples", est.MaxWindowSamples)
	v.SetDefault("estimator.minFitSamples", est.MinFitSamples)
	v.SetDefault("estimator.outlierJump", est.OutlierJump)
	v.SetDefault("estimator.halfLife", est.HalfLife)
	v.SetDefault("estimator.slopeSmoothing", est.SlopeSmoothing)
	v.SetDefault("estimator.highMinSamples", est.HighMinSamples)
	v.SetDefault("estimator.highMinR2", est.HighMinR2)
	v.SetDefault("estimator.mediumMinSamples", est.MediumMinSamples)
	v.SetDefault("estimator.mediumMinR2", est.MediumMinR2)

	v.SetDefault("alerting.minTimeToEmpty", 15*time.Minute)
	v.SetDefault("alerting.lowLevel", 0.1)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", defaultMetricsAddr)

	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.format", defaultLogFormat)
	v.SetDefault("log.fileLoggingEnabled", false)
	v.SetDefault("log.directory", defaultLogDirectory)
	v.SetDefault("log.filename", defaultLogFilename)
	v.SetDefault("log.maxSize", defaultLogMaxSizeMB)
	v.SetDefault("log.maxBackups", defaultLogMaxBackups)
	v.SetDefault("log.maxAge", defaultLogMaxAgeDays)
	v.SetDefault("log.compress", false)
}

// readConfigFile attempts to read the configuration file specified in viper.
func readConfigFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return ErrConfigFileMissing
		}
		return fmt.Errorf("%w: %w", ErrReadingConfigFile, err)
	}
	return nil
}

func validateConfig(cfg *Config) error {
	switch cfg.Source.Kind {
	case "kafka":
		if len(cfg.Source.Kafka.Brokers) == 0 {
			return ErrEmptyKafkaBrokers
		}
		if cfg.Source.Kafka.Topic == "" {
			return ErrEmptyKafkaTopic
		}
		if cfg.Source.Kafka.GroupID == "" {
			return ErrEmptyKafkaGroupID
		}
	case "mqtt":
		if cfg.Source.MQTT.Broker == "" {
			return ErrEmptyMQTTBroker
		}
		if cfg.Source.MQTT.Topic == "" {
			return ErrEmptyMQTTTopic
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSourceKind, cfg.Source.Kind)
	}

	if cfg.Estimator.MaxWindowSamples <= 1 {
		return ErrInvalidWindowBound
	}
	if cfg.Estimator.OutlierJump <= 0 || cfg.Estimator.OutlierJump > 1 {
		return ErrInvalidOutlierJump
	}
	if cfg.Estimator.HalfLife < 0 {
		return ErrInvalidHalfLife
	}
	if cfg.Alerting.LowLevel < 0 || cfg.Alerting.LowLevel > 1 {
		return ErrInvalidLowLevel
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return ErrEmptyMetricsAddr
	}
	return nil
}
