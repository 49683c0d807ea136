// Package config handles loading and validation of the service configuration:
// an optional YAML file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/trashcan/internal/ingest"
	"github.com/dwsmith1983/trashcan/internal/logging"
	"github.com/dwsmith1983/trashcan/internal/observability"
	ddbprov "github.com/dwsmith1983/trashcan/internal/provider/dynamodb"
)

// StageProduction selects production defaults.
const StageProduction = "production"

// Listen addresses by stage.
const (
	ProductionAddr  = ":80"
	DevelopmentAddr = ":5000"
)

// Config is the top-level service configuration.
type Config struct {
	Stage    string               `yaml:"stage"`
	Server   ServerConfig         `yaml:"server"`
	DynamoDB ddbprov.Config       `yaml:"dynamodb"`
	Log      LogConfig            `yaml:"log"`
	Tracing  observability.Config `yaml:"tracing"`
	MQTT     ingest.Config        `yaml:"mqtt"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// LogConfig selects the log level and handler format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Stage: "development",
		Server: ServerConfig{
			CORSOrigins: []string{"*"},
		},
		DynamoDB: ddbprov.Config{
			Breaker: ddbprov.BreakerConfig{
				Enabled:       true,
				FailThreshold: 5,
				Cooldown:      "30s",
			},
		},
		Log: LogConfig{Level: "info", Format: logging.FormatText},
		Tracing: observability.Config{
			ServiceName: observability.DefaultServiceName,
			Insecure:    true,
		},
		MQTT: ingest.Config{
			ClientID:    "trashcan-ingest",
			TopicPrefix: ingest.DefaultTopicPrefix,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty), and the process environment, then validates it.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DevelopmentAddr
		if cfg.Stage == StageProduction {
			cfg.Server.Addr = ProductionAddr
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("STAGE", &cfg.Stage)
	str("LISTEN_ADDR", &cfg.Server.Addr)
	str("TABLE_NAME", &cfg.DynamoDB.TableName)
	str("AWS_REGION", &cfg.DynamoDB.Region)
	str("DYNAMODB_ENDPOINT", &cfg.DynamoDB.Endpoint)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Tracing.Endpoint)
	str("MQTT_BROKER_URL", &cfg.MQTT.BrokerURL)

	if v, ok := lookup("HISTORY_LIMIT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HISTORY_LIMIT: %w", err)
		}
		cfg.DynamoDB.HistoryLimit = n
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.DynamoDB.TableName == "" {
		return fmt.Errorf("dynamodb.tableName is required")
	}
	if cfg.DynamoDB.HistoryLimit < 0 {
		return fmt.Errorf("dynamodb.historyLimit must be >= 0")
	}
	if c := cfg.DynamoDB.Breaker.Cooldown; c != "" {
		if d, err := time.ParseDuration(c); err != nil || d <= 0 {
			return fmt.Errorf("dynamodb.breaker.cooldown %q is not a positive duration", c)
		}
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Log.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("log.format must be %q or %q", logging.FormatText, logging.FormatJSON)
	}
	return nil
}
