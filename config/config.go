package config

import (
	"fmt"
	"os"

	env "github.com/Netflix/go-env"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	Carriers CarriersConfig `yaml:"carriers"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" env:"TRACKER_DB_HOST"`
	Port     int    `yaml:"port" env:"TRACKER_DB_PORT"`
	Username string `yaml:"username" env:"TRACKER_DB_USERNAME"`
	Password string `yaml:"password" env:"TRACKER_DB_PASSWORD"`
	DBName   string `yaml:"name" env:"TRACKER_DB_NAME"`
	SSLMode  string `yaml:"ssl_mode" env:"TRACKER_DB_SSL_MODE"`
}

type KafkaConfig struct {
	Host                   string `yaml:"host" env:"TRACKER_KAFKA_HOST"`
	Port                   int    `yaml:"port" env:"TRACKER_KAFKA_PORT"`
	StatusChangedTopicName string `yaml:"status_changed_topic_name"`
	WebhookTopicName       string `yaml:"webhook_topic_name"`
	WebhookConsumerGroup   string `yaml:"webhook_consumer_group"`
}

type RedisConfig struct {
	Host string `yaml:"host" env:"TRACKER_REDIS_HOST"`
	Port int    `yaml:"port" env:"TRACKER_REDIS_PORT"`
}

type TrackerConfig struct {
	HTTPAddr string `yaml:"http_addr" env:"TRACKER_HTTP_ADDR"`

	// "redis" (default) or "postgres".
	StoreBackend string `yaml:"store_backend" env:"TRACKER_STORE_BACKEND"`
	StoreKey     string `yaml:"store_key"`

	DefaultCarrier string `yaml:"default_carrier"`

	RefreshIntervalSeconds int `yaml:"refresh_interval_seconds"`
	DrainIntervalSeconds   int `yaml:"drain_interval_seconds"`
	RetrySweepSeconds      int `yaml:"retry_sweep_seconds"`
	RetryDelaySeconds      int `yaml:"retry_delay_seconds"`
	FetchTimeoutSeconds    int `yaml:"fetch_timeout_seconds"`
	Concurrency            int `yaml:"concurrency"`

	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

type CarriersConfig struct {
	Shippo ShippoConfig `yaml:"shippo"`
	UPS    UPSConfig    `yaml:"ups"`
	FedEx  FedExConfig  `yaml:"fedex"`
}

type ShippoConfig struct {
	BaseURL  string `yaml:"base_url"`
	APIToken string `yaml:"api_token" env:"TRACKER_SHIPPO_API_TOKEN"`
}

type UPSConfig struct {
	BaseURL      string `yaml:"base_url"`
	ClientID     string `yaml:"client_id" env:"TRACKER_UPS_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"TRACKER_UPS_CLIENT_SECRET"`
}

type FedExConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key" env:"TRACKER_FEDEX_API_KEY"`
	APISecret string `yaml:"api_secret" env:"TRACKER_FEDEX_API_SECRET"`
}

// LoadConfig reads the yaml file, then lets environment variables override
// addresses and credentials (so secrets stay out of the file).
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}

	return &config, nil
}
