package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Vnflow    VnflowConfig    `yaml:"vnflow"`
	Feed      FeedConfig      `yaml:"feed"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Sink      SinkConfig      `yaml:"sink"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type VnflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// FeedConfig describes the datafeed broker connection. The broker speaks MQTT
// over a secure websocket; username/password are filled in at runtime from the
// authenticated session, never from this file.
type FeedConfig struct {
	Broker         string        `yaml:"broker"`
	Port           int           `yaml:"port"`
	Path           string        `yaml:"path"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	ClientIDPrefix string        `yaml:"client_id_prefix"`
	Topics         []string      `yaml:"topics"`
	QoS            byte          `yaml:"qos"`
}

// ReconnectConfig bounds the backoff loop run after an unplanned disconnect.
// CLI flags never override these; the zero value of any field falls back to
// the fixed defaults below.
type ReconnectConfig struct {
	FirstDelay  time.Duration `yaml:"first_delay"`
	Rate        int           `yaml:"rate"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type SinkConfig struct {
	Path string `yaml:"path"`
}

type ArchiveConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Bucket          string        `yaml:"bucket"`
	Region          string        `yaml:"region"`
	Endpoint        string        `yaml:"endpoint"`
	PathStyle       bool          `yaml:"path_style"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
	FlushInterval   time.Duration `yaml:"flush_interval"`
	BufferSize      int           `yaml:"buffer_size"`
	Compression     string        `yaml:"compression"`
}

type LoggingConfig struct {
	Level            string `yaml:"level"`
	Format           string `yaml:"format"`
	Output           string `yaml:"output"`
	MaxAge           int    `yaml:"max_age"`
	MetricsNamespace string `yaml:"metrics_namespace"`
}

const (
	DefaultBroker    = "datafeed-lts.dnse.com.vn"
	DefaultPort      = 443
	DefaultPath      = "/wss"
	DefaultKeepAlive = 120 * time.Second
	DefaultQoS       = 2

	DefaultFirstDelay  = time.Second
	DefaultRate        = 2
	DefaultMaxDelay    = 60 * time.Second
	DefaultMaxAttempts = 12
)

// DefaultTopics are the topic filters subscribed to when neither the config
// file nor the CLI supplies any: the VN30F1M derivative OHLC channel and the
// wildcard stock tick channel.
var DefaultTopics = []string{
	"plaintext/quotes/derivative/OHLC/1/VN30F1M",
	"plaintext/quotes/stock/tick/+",
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)

	// Override archive credentials from environment variables if available
	if config.Archive.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Archive.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Archive.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Archive.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Archive.Bucket = strings.TrimSpace(v)
		}
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Feed.Broker == "" {
		cfg.Feed.Broker = DefaultBroker
	}
	if cfg.Feed.Port == 0 {
		cfg.Feed.Port = DefaultPort
	}
	if cfg.Feed.Path == "" {
		cfg.Feed.Path = DefaultPath
	}
	if cfg.Feed.KeepAlive == 0 {
		cfg.Feed.KeepAlive = DefaultKeepAlive
	}
	if cfg.Feed.ClientIDPrefix == "" {
		cfg.Feed.ClientIDPrefix = "vnflow"
	}
	if len(cfg.Feed.Topics) == 0 {
		cfg.Feed.Topics = append([]string(nil), DefaultTopics...)
	}
	if cfg.Feed.QoS == 0 {
		cfg.Feed.QoS = DefaultQoS
	}

	if cfg.Reconnect.FirstDelay == 0 {
		cfg.Reconnect.FirstDelay = DefaultFirstDelay
	}
	if cfg.Reconnect.Rate == 0 {
		cfg.Reconnect.Rate = DefaultRate
	}
	if cfg.Reconnect.MaxDelay == 0 {
		cfg.Reconnect.MaxDelay = DefaultMaxDelay
	}
	if cfg.Reconnect.MaxAttempts == 0 {
		cfg.Reconnect.MaxAttempts = DefaultMaxAttempts
	}

	if cfg.Sink.Path == "" {
		cfg.Sink.Path = "tick_data.csv"
	}
	if cfg.Logging.MetricsNamespace == "" {
		cfg.Logging.MetricsNamespace = cfg.Vnflow.Name
	}
	if cfg.Archive.FlushInterval == 0 {
		cfg.Archive.FlushInterval = 5 * time.Minute
	}
	if cfg.Archive.BufferSize == 0 {
		cfg.Archive.BufferSize = 4096
	}
	if cfg.Archive.Compression == "" {
		cfg.Archive.Compression = "snappy"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Vnflow.Name == "" {
		return fmt.Errorf("vnflow.name is required")
	}
	if cfg.Vnflow.Version == "" {
		return fmt.Errorf("vnflow.version is required")
	}

	if cfg.Feed.Port <= 0 || cfg.Feed.Port > 65535 {
		return fmt.Errorf("feed.port %d is out of range", cfg.Feed.Port)
	}
	if !strings.HasPrefix(cfg.Feed.Path, "/") {
		return fmt.Errorf("feed.path must start with '/'")
	}
	if cfg.Feed.QoS > 2 {
		return fmt.Errorf("feed.qos must be 0, 1 or 2")
	}
	for _, topic := range cfg.Feed.Topics {
		if strings.TrimSpace(topic) == "" {
			return fmt.Errorf("feed.topics must not contain empty filters")
		}
	}

	if cfg.Reconnect.Rate < 1 {
		return fmt.Errorf("reconnect.rate must be at least 1")
	}
	if cfg.Reconnect.MaxAttempts < 1 {
		return fmt.Errorf("reconnect.max_attempts must be at least 1")
	}
	if cfg.Reconnect.MaxDelay < cfg.Reconnect.FirstDelay {
		return fmt.Errorf("reconnect.max_delay must not be smaller than reconnect.first_delay")
	}

	if cfg.Archive.Enabled {
		if cfg.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket is required when archive is enabled")
		}
		if cfg.Archive.Region == "" {
			return fmt.Errorf("archive.region is required when archive is enabled")
		}
		if IsProductionLike(AppEnvironment()) &&
			(cfg.Archive.AccessKeyID == "" || cfg.Archive.SecretAccessKey == "") {
			return fmt.Errorf("archive credentials are required when archive is enabled")
		}
	}

	return nil
}
