// Package config loads the configuration for the mchand demo/benchmark
// service: which topology to run over pkg/mchan, its channel capacities and
// producer/consumer counts, and how to wire up logging and telemetry.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/matrix-org/mchan/pkg/telemetry"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Topology selects which demo scenario cmd/mchand runs.
type Topology string

const (
	TopologyProducerConsumer Topology = "producer-consumer"
	TopologyFanIn            Topology = "fan-in"
	TopologySelectDispatch   Topology = "select-dispatch"
)

// Config is the service configuration.
type Config struct {
	// Which demo topology to run.
	Topology Topology `yaml:"topology"`
	// Capacity of the channel(s) the topology creates.
	ChannelCapacity int `yaml:"channelCapacity"`
	// Number of producer goroutines.
	Producers int `yaml:"producers"`
	// Number of messages each producer sends.
	MessagesPerProducer int `yaml:"messagesPerProducer"`
	// How long a select-dispatch consumer waits for a descriptor to become
	// ready before giving up on that round (0 disables the deadline).
	SelectTimeout time.Duration `yaml:"selectTimeout"`
	// Telemetry configuration; telemetry is only enabled if this has a
	// non-empty exporter target.
	Telemetry telemetry.Config `yaml:"telemetry"`
	// Starting from which level to log.
	LogLevel string `yaml:"log"`
}

// ErrNoConfigEnvVar is returned when the CONFIG environment variable is not set.
var ErrNoConfigEnvVar = errors.New("environment variable not set or invalid")

// LoadConfig tries to load a config from the CONFIG environment variable
// first, falling back to the provided path if it's unset.
func LoadConfig(path string) (*Config, error) {
	config, err := LoadConfigFromEnv()
	if err != nil {
		if !errors.Is(err, ErrNoConfigEnvVar) {
			return nil, err
		}

		return LoadConfigFromPath(path)
	}

	return config, nil
}

// LoadConfigFromEnv loads the config from the CONFIG environment variable.
func LoadConfigFromEnv() (*Config, error) {
	configEnv := os.Getenv("CONFIG")
	if configEnv == "" {
		return nil, ErrNoConfigEnvVar
	}

	return LoadConfigFromString(configEnv)
}

// LoadConfigFromPath loads the config from a YAML file at path.
func LoadConfigFromPath(path string) (*Config, error) {
	logrus.WithField("path", path).Info("loading config")

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return LoadConfigFromString(string(file))
}

// LoadConfigFromString parses and validates a YAML config.
func LoadConfigFromString(configString string) (*Config, error) {
	logrus.Info("loading config from string")

	config := defaultConfig()
	if err := yaml.Unmarshal([]byte(configString), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML file: %w", err)
	}

	switch config.Topology {
	case TopologyProducerConsumer, TopologyFanIn, TopologySelectDispatch:
	default:
		return nil, fmt.Errorf("unknown topology %q", config.Topology)
	}

	if config.ChannelCapacity <= 0 {
		return nil, errors.New("channelCapacity must be positive")
	}

	if config.Producers <= 0 {
		return nil, errors.New("producers must be positive")
	}

	if config.MessagesPerProducer <= 0 {
		return nil, errors.New("messagesPerProducer must be positive")
	}

	return &config, nil
}

func defaultConfig() Config {
	return Config{
		Topology:            TopologyFanIn,
		ChannelCapacity:     16,
		Producers:           3,
		MessagesPerProducer: 10,
		SelectTimeout:       2 * time.Second,
		LogLevel:            "info",
	}
}
