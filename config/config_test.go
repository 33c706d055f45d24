package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cryptobridge/models"
)

const minimalConfig = `app:
  name: "TestBridge"
  version: "1.0"
exchanges:
  - exchange: coinbase
    trading_mode: sandbox
    instruments: ["BTC-USD", "ETH/USD", "BTC-USD"]
`

// writeTempConfig writes content to a temporary file and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeTempConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.App.Name != "TestBridge" {
		t.Errorf("unexpected name: %s", cfg.App.Name)
	}
	if cfg.Sink.Type != SinkChannel || cfg.Sink.Buffer != 1024 {
		t.Errorf("unexpected sink defaults: %+v", cfg.Sink)
	}
	if !cfg.Supervisor.ResetSequenceOnReconnect {
		t.Errorf("reset_sequence_on_reconnect should default to true")
	}
	if cfg.Supervisor.Backoff.Min != 500*time.Millisecond || cfg.Supervisor.Backoff.Max != 30*time.Second {
		t.Errorf("unexpected backoff defaults: %+v", cfg.Supervisor.Backoff)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	content := minimalConfig + `supervisor:
  read_timeout: 5s
  reset_sequence_on_reconnect: false
  backoff:
    min: 1s
    max: 10s
    factor: 1.5
sink:
  type: kafka
  kafka:
    brokers: ["localhost:9092"]
    topic: market_data
`
	cfg, err := LoadConfig(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Supervisor.ReadTimeout != 5*time.Second {
		t.Errorf("unexpected read timeout: %v", cfg.Supervisor.ReadTimeout)
	}
	if cfg.Supervisor.ResetSequenceOnReconnect {
		t.Errorf("reset_sequence_on_reconnect should be false")
	}
	if cfg.Supervisor.Backoff.Factor != 1.5 {
		t.Errorf("unexpected factor: %v", cfg.Supervisor.Backoff.Factor)
	}
	if cfg.Supervisor.WriteTimeout != 5*time.Second {
		t.Errorf("write timeout default lost: %v", cfg.Supervisor.WriteTimeout)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "3")
	content := minimalConfig + `sink:
  type: redis
`
	cfg, err := LoadConfig(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Sink.Redis.Addr != "redis:6379" || cfg.Sink.Redis.DB != 3 {
		t.Errorf("env overrides not applied: %+v", cfg.Sink.Redis)
	}
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing name", func(c *Config) { c.App.Name = "" }},
		{"no exchanges", func(c *Config) { c.Exchanges = nil }},
		{"bad instrument", func(c *Config) { c.Exchanges[0].Instruments = []string{"NOTAPAIR"} }},
		{"unknown exchange", func(c *Config) { c.Exchanges[0].Exchange = "mtgox" }},
		{"bad mode", func(c *Config) { c.Exchanges[0].TradingMode = "paper" }},
		{"bad local ip", func(c *Config) { c.Exchanges[0].LocalIP = "300.1.1.1" }},
		{"backoff factor", func(c *Config) { c.Supervisor.Backoff.Factor = 1 }},
		{"backoff max", func(c *Config) { c.Supervisor.Backoff.Max = time.Millisecond }},
		{"negative max missing", func(c *Config) { c.Supervisor.MaxMissing = -1 }},
		{"sink type", func(c *Config) { c.Sink.Type = "s3" }},
		{"kafka without brokers", func(c *Config) { c.Sink.Type = SinkKafka; c.Sink.Kafka.Topic = "t" }},
		{"redis without addr", func(c *Config) { c.Sink.Type = SinkRedis }},
		{"postgres without dsn", func(c *Config) { c.Sink.Type = SinkPostgres }},
		{"postgres bad table", func(c *Config) {
			c.Sink.Type = SinkPostgres
			c.Sink.Postgres.DSN = "postgres://localhost/db"
			c.Sink.Postgres.Table = "ticks; DROP TABLE x"
		}},
	}
	for _, c := range cases {
		cfg := defaultConfig()
		cfg.App = AppConfig{Name: "x", Version: "1"}
		cfg.Exchanges = []ExchangeConfig{{Exchange: "coinbase", Instruments: []string{"BTC-USD"}}}
		if err := validateConfig(&cfg); err != nil {
			t.Fatalf("%s: baseline config invalid: %v", c.name, err)
		}
		c.mutate(&cfg)
		if err := validateConfig(&cfg); err == nil {
			t.Errorf("%s: expected validation error", c.name)
		}
	}
}

func TestToExchangeConfig(t *testing.T) {
	ec := ExchangeConfig{
		Exchange:    "GDAX",
		TradingMode: "Simulation",
		Instruments: []string{"BTC-USD", "eth-usd", "BTCUSD"},
		LocalIP:     "10.0.0.1",
		Endpoints:   EndpointsConfig{MarketData: "ws://localhost:9000"},
	}
	got, err := ec.ToExchangeConfig()
	if err != nil {
		t.Fatalf("ToExchangeConfig failed: %v", err)
	}
	if got.Exchange != models.ExchangeCoinbase || got.TradingMode != models.TradingModeSimulation {
		t.Errorf("unexpected identity: %+v", got)
	}
	if len(got.Instruments) != 2 {
		t.Fatalf("duplicates should collapse, got %v", got.Instruments)
	}
	if got.Instruments[1] != models.MustParseInstrument("ETH-USD") {
		t.Errorf("unexpected instrument order: %v", got.Instruments)
	}
	if got.MarketDataURL != "ws://localhost:9000" || got.LocalIP != "10.0.0.1" {
		t.Errorf("overrides not carried: %+v", got)
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	if got := ResolvePath(""); got != "config/config.production.yml" {
		t.Errorf("unexpected production path: %s", got)
	}
	if got := ResolvePath("custom.yml"); got != "custom.yml" {
		t.Errorf("explicit path overridden: %s", got)
	}

	t.Setenv("APP_ENV", "")
	if got := ResolvePath(DefaultPath); got != DefaultPath {
		t.Errorf("unexpected development path: %s", got)
	}
	if AppEnvironment() != EnvironmentDevelopment {
		t.Errorf("unexpected environment: %s", AppEnvironment())
	}
}
