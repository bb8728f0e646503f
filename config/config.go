package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/erain9/tradeshield/pkg/db/queue"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		LogLevel      string        `yaml:"log_level"`
		LogFormat     string        `yaml:"log_format"`
		ClockInterval time.Duration `yaml:"clock_interval"`
		BondedDenoms  []string      `yaml:"bonded_denoms"`
	} `yaml:"server"`

	Backend struct {
		// Type selects the order store: "memory" or "redis"
		Type string `yaml:"type"`
	} `yaml:"backend"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	Kafka struct {
		BrokerAddr  string `yaml:"broker_addr"`
		EventTopic  string `yaml:"event_topic"`
		SubmitTopic string `yaml:"submit_topic"`
	} `yaml:"kafka"`

	Feed struct {
		Pairs []string `yaml:"pairs"`
	} `yaml:"feed"`
}

// LoadConfig loads the configuration with defaults and optionally from a
// YAML config file.
func LoadConfig(configFile string) (*Config, error) {
	config := &Config{}
	config.Server.LogLevel = "info"
	config.Server.LogFormat = "pretty"
	config.Server.ClockInterval = 5 * time.Second
	config.Backend.Type = "memory"
	config.Redis.Addr = "localhost:6379"
	config.Redis.Prefix = "tradeshield"
	config.Kafka.BrokerAddr = "localhost:9092"
	config.Kafka.EventTopic = "order-events"
	config.Kafka.SubmitTopic = "trade-engine-submit"
	config.Feed.Pairs = []string{"btc/usdc"}

	if configFile != "" {
		yamlFile, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(yamlFile, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		log.Printf("Loaded configuration from %s", configFile)
	}

	switch config.Backend.Type {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("unknown backend type %q", config.Backend.Type)
	}

	// Push Kafka settings into the submitter package variables.
	queue.SetBrokerList(config.Kafka.BrokerAddr)
	queue.SetTopic(config.Kafka.SubmitTopic)

	return config, nil
}
