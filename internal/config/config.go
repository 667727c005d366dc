package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

type Config struct {
	Service  ServiceConfig  `koanf:"service"`
	Source   SourceConfig   `koanf:"source"`
	Sinks    SinksConfig    `koanf:"sinks"`
	Postgres PostgresConfig `koanf:"postgres"`
	Store    StoreConfig    `koanf:"store"`
}

type ServiceConfig struct {
	InstanceID             string `koanf:"instance_id"`
	HTTPListen             string `koanf:"http_listen"`
	LogLevel               string `koanf:"log_level"`
	Verbose                bool   `koanf:"verbose"`
	ShutdownTimeoutSeconds int    `koanf:"shutdown_timeout_seconds"`
}

// SourceConfig selects where MRT-framed bytes come from: a plain file, a
// zstd-compressed file, or a Kafka topic carrying MRT-framed payloads.
type SourceConfig struct {
	Kind          string      `koanf:"kind"` // "file", "zstd", "kafka", "stdin"
	Path          string      `koanf:"path"`
	MaxPayloadMiB int         `koanf:"max_payload_mib"`
	Kafka         KafkaConfig `koanf:"kafka"`
}

type KafkaConfig struct {
	Brokers       []string   `koanf:"brokers"`
	Topics        []string   `koanf:"topics"`
	GroupID       string     `koanf:"group_id"`
	ClientID      string     `koanf:"client_id"`
	FetchMaxBytes int32      `koanf:"fetch_max_bytes"`
	TLS           TLSConfig  `koanf:"tls"`
	SASL          SASLConfig `koanf:"sasl"`
}

type TLSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	CAFile   string `koanf:"ca_file"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
}

type SASLConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Mechanism string `koanf:"mechanism"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`
}

// SinksConfig toggles which decoded record streams are actually delivered
// downstream. Disabling a sink is not merely "discard the output" for RIB
// records: per the framer's dispatch, RIB-class records are never decoded
// at all when Dump is disabled, so disabling it also saves the work.
type SinksConfig struct {
	Dump    bool `koanf:"dump"`
	State   bool `koanf:"state"`
	Message bool `koanf:"message"`
}

type PostgresConfig struct {
	DSN      string `koanf:"dsn"`
	MaxConns int32  `koanf:"max_conns"`
	MinConns int32  `koanf:"min_conns"`
}

type StoreConfig struct {
	BatchSize             int  `koanf:"batch_size"`
	FlushIntervalMs       int  `koanf:"flush_interval_ms"`
	ChannelBufferSize     int  `koanf:"channel_buffer_size"`
	StoreRawBytes         bool `koanf:"store_raw_bytes"`
	StoreRawBytesCompress bool `koanf:"store_raw_bytes_compress"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Overlay environment variables: MRTPARSE_SOURCE__KAFKA__BROKERS → source.kafka.brokers
	if err := k.Load(env.Provider("MRTPARSE_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "MRTPARSE_")
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "__", ".")
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := &Config{
		Service: ServiceConfig{
			InstanceID:             "mrtparse-1",
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		Source: SourceConfig{
			Kind:          "file",
			MaxPayloadMiB: 64,
			Kafka: KafkaConfig{
				ClientID:      "mrtparse",
				FetchMaxBytes: 52428800,
				GroupID:       "mrtparse-replay",
			},
		},
		Sinks: SinksConfig{
			Dump:    true,
			State:   true,
			Message: true,
		},
		Postgres: PostgresConfig{
			MaxConns: 20,
			MinConns: 2,
		},
		Store: StoreConfig{
			BatchSize:             1000,
			FlushIntervalMs:       200,
			ChannelBufferSize:     16,
			StoreRawBytesCompress: true,
		},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if len(cfg.Source.Kafka.Brokers) == 1 && strings.Contains(cfg.Source.Kafka.Brokers[0], ",") {
		cfg.Source.Kafka.Brokers = strings.Split(cfg.Source.Kafka.Brokers[0], ",")
	}
	if len(cfg.Source.Kafka.Topics) == 1 && strings.Contains(cfg.Source.Kafka.Topics[0], ",") {
		cfg.Source.Kafka.Topics = strings.Split(cfg.Source.Kafka.Topics[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "file", "zstd", "stdin":
		if c.Source.Kind != "stdin" && c.Source.Path == "" {
			return fmt.Errorf("config: source.path is required for source.kind=%s", c.Source.Kind)
		}
	case "kafka":
		if len(c.Source.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: source.kafka.brokers is required")
		}
		if len(c.Source.Kafka.Topics) == 0 {
			return fmt.Errorf("config: source.kafka.topics is required")
		}
		if c.Source.Kafka.GroupID == "" {
			return fmt.Errorf("config: source.kafka.group_id is required")
		}
	default:
		return fmt.Errorf("config: source.kind must be one of file, zstd, stdin, kafka (got %q)", c.Source.Kind)
	}
	if c.Source.MaxPayloadMiB <= 0 {
		return fmt.Errorf("config: source.max_payload_mib must be > 0 (got %d)", c.Source.MaxPayloadMiB)
	}
	if c.Sinks.Dump {
		if c.Postgres.DSN == "" {
			return fmt.Errorf("config: postgres.dsn is required when sinks.dump is enabled")
		}
		if c.Postgres.MaxConns <= 0 {
			return fmt.Errorf("config: postgres.max_conns must be > 0 (got %d)", c.Postgres.MaxConns)
		}
		if c.Postgres.MinConns < 0 {
			return fmt.Errorf("config: postgres.min_conns must be >= 0 (got %d)", c.Postgres.MinConns)
		}
		if c.Store.BatchSize <= 0 {
			return fmt.Errorf("config: store.batch_size must be > 0 (got %d)", c.Store.BatchSize)
		}
		if c.Store.FlushIntervalMs <= 0 {
			return fmt.Errorf("config: store.flush_interval_ms must be > 0 (got %d)", c.Store.FlushIntervalMs)
		}
		if c.Store.ChannelBufferSize <= 0 {
			return fmt.Errorf("config: store.channel_buffer_size must be > 0 (got %d)", c.Store.ChannelBufferSize)
		}
	}
	if c.Service.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("config: service.shutdown_timeout_seconds must be > 0 (got %d)", c.Service.ShutdownTimeoutSeconds)
	}
	return nil
}

// BuildTLSConfig creates a *tls.Config from the Kafka TLS settings. Returns nil if TLS is disabled.
func (k *KafkaConfig) BuildTLSConfig() (*tls.Config, error) {
	if !k.TLS.Enabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{}
	if k.TLS.CAFile != "" {
		caPEM, err := os.ReadFile(k.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsCfg.RootCAs = pool
	}
	if k.TLS.CertFile != "" && k.TLS.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(k.TLS.CertFile, k.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

// BuildSASLMechanism creates a SASL mechanism from the Kafka SASL settings. Returns nil if SASL is disabled.
func (k *KafkaConfig) BuildSASLMechanism() sasl.Mechanism {
	if !k.SASL.Enabled {
		return nil
	}
	switch strings.ToUpper(k.SASL.Mechanism) {
	case "PLAIN":
		return plain.Auth{User: k.SASL.Username, Pass: k.SASL.Password}.AsMechanism()
	default:
		return nil
	}
}

func (c *Config) MaxPayloadBytes() int {
	return c.Source.MaxPayloadMiB << 20
}
