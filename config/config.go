package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"cryptobridge/models"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Logging    LoggingConfig    `yaml:"logging"`
	Exchanges  []ExchangeConfig `yaml:"exchanges"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	OrderEntry OrderEntryConfig `yaml:"order_entry"`
	Sink       SinkConfig       `yaml:"sink"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type ExchangeConfig struct {
	Exchange    string          `yaml:"exchange"`
	TradingMode string          `yaml:"trading_mode"`
	Instruments []string        `yaml:"instruments"`
	LocalIP     string          `yaml:"local_ip"`
	Endpoints   EndpointsConfig `yaml:"endpoints"`
}

type EndpointsConfig struct {
	MarketData string `yaml:"market_data"`
	OrderEntry string `yaml:"order_entry"`
}

type SupervisorConfig struct {
	ReadTimeout              time.Duration `yaml:"read_timeout"`
	WriteTimeout             time.Duration `yaml:"write_timeout"`
	HandshakeTimeout         time.Duration `yaml:"handshake_timeout"`
	ResetSequenceOnReconnect bool          `yaml:"reset_sequence_on_reconnect"`
	MaxMissing               int           `yaml:"max_missing"`
	Backoff                  BackoffConfig `yaml:"backoff"`
}

type BackoffConfig struct {
	Min    time.Duration `yaml:"min"`
	Max    time.Duration `yaml:"max"`
	Factor float64       `yaml:"factor"`
	Jitter bool          `yaml:"jitter"`
}

type OrderEntryConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
}

const (
	SinkChannel  = "channel"
	SinkKafka    = "kafka"
	SinkRedis    = "redis"
	SinkPostgres = "postgres"
)

type SinkConfig struct {
	Type     string             `yaml:"type"`
	Buffer   int                `yaml:"buffer"`
	Kafka    KafkaSinkConfig    `yaml:"kafka"`
	Redis    RedisSinkConfig    `yaml:"redis"`
	Postgres PostgresSinkConfig `yaml:"postgres"`
}

type KafkaSinkConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RedisSinkConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
	MaxLen   int64  `yaml:"max_len"`
}

type PostgresSinkConfig struct {
	DSN           string        `yaml:"dsn"`
	Table         string        `yaml:"table"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

type MetricsConfig struct {
	Prometheus PrometheusConfig `yaml:"prometheus"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type CloudWatchConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Region    string        `yaml:"region"`
	Namespace string        `yaml:"namespace"`
	Interval  time.Duration `yaml:"interval"`
}

// DashboardConfig controls the JSON status API.
type DashboardConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Address    string `yaml:"address"`
	LogHistory int    `yaml:"log_history"`
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Supervisor: SupervisorConfig{
			ReadTimeout:              30 * time.Second,
			WriteTimeout:             5 * time.Second,
			HandshakeTimeout:         10 * time.Second,
			ResetSequenceOnReconnect: true,
			MaxMissing:               10000,
			Backoff: BackoffConfig{
				Min:    500 * time.Millisecond,
				Max:    30 * time.Second,
				Factor: 2,
			},
		},
		OrderEntry: OrderEntryConfig{
			RequestsPerSecond: 5,
			Burst:             5,
			Timeout:           10 * time.Second,
		},
		Sink: SinkConfig{
			Type:   SinkChannel,
			Buffer: 1024,
			Redis: RedisSinkConfig{
				Stream: "market_data",
				MaxLen: 100000,
			},
			Postgres: PostgresSinkConfig{
				Table:         "market_data",
				BatchSize:     500,
				FlushInterval: time.Second,
			},
		},
		Metrics: MetricsConfig{
			Prometheus: PrometheusConfig{Addr: ":9090"},
			CloudWatch: CloudWatchConfig{
				Namespace: "CryptoBridge",
				Interval:  time.Minute,
			},
		},
		Dashboard: DashboardConfig{
			Address:    ":8080",
			LogHistory: 200,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides lets deployments point sinks and metrics at their own
// infrastructure without editing the file.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		brokers := strings.Split(v, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		cfg.Sink.Kafka.Brokers = brokers
	}
	if v := strings.TrimSpace(os.Getenv("KAFKA_TOPIC")); v != "" {
		cfg.Sink.Kafka.Topic = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		cfg.Sink.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Sink.Redis.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_DB")); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Sink.Redis.DB = db
		}
	}
	if v := strings.TrimSpace(os.Getenv("POSTGRES_DSN")); v != "" {
		cfg.Sink.Postgres.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("AWS_REGION")); v != "" && cfg.Metrics.CloudWatch.Region == "" {
		cfg.Metrics.CloudWatch.Region = v
	}
}

func validateConfig(cfg *Config) error {
	if cfg.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	if cfg.App.Version == "" {
		return fmt.Errorf("app.version is required")
	}

	if len(cfg.Exchanges) == 0 {
		return fmt.Errorf("at least one exchange must be configured")
	}
	for i, ex := range cfg.Exchanges {
		if _, err := ex.ToExchangeConfig(); err != nil {
			return fmt.Errorf("exchanges[%d]: %w", i, err)
		}
	}

	b := cfg.Supervisor.Backoff
	if b.Min <= 0 {
		return fmt.Errorf("supervisor.backoff.min must be greater than 0")
	}
	if b.Max < b.Min {
		return fmt.Errorf("supervisor.backoff.max must not be less than supervisor.backoff.min")
	}
	if b.Factor <= 1 {
		return fmt.Errorf("supervisor.backoff.factor must be greater than 1")
	}
	if cfg.Supervisor.ReadTimeout < 0 || cfg.Supervisor.WriteTimeout < 0 || cfg.Supervisor.HandshakeTimeout < 0 {
		return fmt.Errorf("supervisor timeouts must not be negative")
	}
	if cfg.Supervisor.MaxMissing < 0 {
		return fmt.Errorf("supervisor.max_missing must not be negative")
	}

	if cfg.OrderEntry.RequestsPerSecond < 0 {
		return fmt.Errorf("order_entry.requests_per_second must not be negative")
	}

	switch cfg.Sink.Type {
	case SinkChannel:
		if cfg.Sink.Buffer <= 0 {
			return fmt.Errorf("sink.buffer must be greater than 0")
		}
	case SinkKafka:
		if len(cfg.Sink.Kafka.Brokers) == 0 {
			return fmt.Errorf("sink.kafka.brokers is required for the kafka sink")
		}
		if cfg.Sink.Kafka.Topic == "" {
			return fmt.Errorf("sink.kafka.topic is required for the kafka sink")
		}
	case SinkRedis:
		if cfg.Sink.Redis.Addr == "" {
			return fmt.Errorf("sink.redis.addr is required for the redis sink")
		}
		if cfg.Sink.Redis.Stream == "" {
			return fmt.Errorf("sink.redis.stream is required for the redis sink")
		}
	case SinkPostgres:
		if cfg.Sink.Postgres.DSN == "" {
			return fmt.Errorf("sink.postgres.dsn is required for the postgres sink")
		}
		if !validIdentifier(cfg.Sink.Postgres.Table) {
			return fmt.Errorf("sink.postgres.table '%s' is invalid", cfg.Sink.Postgres.Table)
		}
		if cfg.Sink.Postgres.BatchSize <= 0 {
			return fmt.Errorf("sink.postgres.batch_size must be greater than 0")
		}
	default:
		return fmt.Errorf("sink.type '%s' is invalid", cfg.Sink.Type)
	}

	if cfg.Metrics.Prometheus.Enabled && cfg.Metrics.Prometheus.Addr == "" {
		return fmt.Errorf("metrics.prometheus.addr is required when prometheus is enabled")
	}
	if cfg.Metrics.CloudWatch.Enabled && cfg.Metrics.CloudWatch.Interval <= 0 {
		return fmt.Errorf("metrics.cloudwatch.interval must be greater than 0")
	}

	return nil
}

// ToExchangeConfig parses an exchanges[] entry into the adapter's model.
func (e ExchangeConfig) ToExchangeConfig() (models.ExchangeConfig, error) {
	exchange, ok := models.ParseExchangeType(e.Exchange)
	if !ok {
		return models.ExchangeConfig{}, fmt.Errorf("exchange '%s' is not supported", e.Exchange)
	}

	mode := models.TradingModeLive
	if e.TradingMode != "" {
		if mode, ok = models.ParseTradingMode(e.TradingMode); !ok {
			return models.ExchangeConfig{}, fmt.Errorf("trading_mode '%s' is invalid", e.TradingMode)
		}
	}

	if len(e.Instruments) == 0 {
		return models.ExchangeConfig{}, fmt.Errorf("instruments must not be empty")
	}
	instruments := make([]models.Instrument, 0, len(e.Instruments))
	seen := make(map[models.Instrument]struct{}, len(e.Instruments))
	for _, s := range e.Instruments {
		inst, err := models.ParseInstrument(s)
		if err != nil {
			return models.ExchangeConfig{}, fmt.Errorf("instrument '%s': %w", s, err)
		}
		if _, dup := seen[inst]; dup {
			continue
		}
		seen[inst] = struct{}{}
		instruments = append(instruments, inst)
	}

	if e.LocalIP != "" && net.ParseIP(e.LocalIP) == nil {
		return models.ExchangeConfig{}, fmt.Errorf("local_ip '%s' is invalid", e.LocalIP)
	}

	return models.ExchangeConfig{
		Exchange:      exchange,
		TradingMode:   mode,
		Instruments:   instruments,
		MarketDataURL: e.Endpoints.MarketData,
		OrderEntryURL: e.Endpoints.OrderEntry,
		LocalIP:       e.LocalIP,
	}, nil
}

// validIdentifier accepts unquoted SQL names: letters, digits and
// underscores, not starting with a digit.
func validIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
