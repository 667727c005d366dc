package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			InstanceID:             "test",
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		Source: SourceConfig{
			Kind:          "file",
			Path:          "/data/rib.mrt",
			MaxPayloadMiB: 64,
		},
		Sinks: SinksConfig{
			Dump:    true,
			State:   true,
			Message: true,
		},
		Postgres: PostgresConfig{
			DSN:      "postgres://localhost/test",
			MaxConns: 10,
			MinConns: 2,
		},
		Store: StoreConfig{
			BatchSize:         1000,
			FlushIntervalMs:   200,
			ChannelBufferSize: 16,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestValidate_UnknownSourceKind(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Kind = "carrier-pigeon"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown source kind")
	}
}

func TestValidate_FileSourceRequiresPath(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing source.path")
	}
}

func TestValidate_StdinSourceDoesNotRequirePath(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Kind = "stdin"
	cfg.Source.Path = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected stdin source to be valid without a path, got %v", err)
	}
}

func TestValidate_KafkaSourceRequiresBrokersTopicsGroup(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Kind = "kafka"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for kafka source with no brokers/topics")
	}
	cfg.Source.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Source.Kafka.Topics = []string{"mrt.archive"}
	cfg.Source.Kafka.GroupID = "replay"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid kafka source config, got %v", err)
	}
}

func TestValidate_DumpSinkRequiresDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.DSN = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty DSN with sinks.dump enabled")
	}
}

func TestValidate_DumpSinkDisabledSkipsDSNRequirement(t *testing.T) {
	cfg := validConfig()
	cfg.Sinks.Dump = false
	cfg.Postgres.DSN = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config with dump sink disabled, got %v", err)
	}
}

func TestValidate_BatchSizeZero(t *testing.T) {
	cfg := validConfig()
	cfg.Store.BatchSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for batch_size = 0")
	}
}

func TestValidate_ChannelBufferSizeZero(t *testing.T) {
	cfg := validConfig()
	cfg.Store.ChannelBufferSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for channel_buffer_size = 0")
	}
}

func TestValidate_ShutdownTimeoutZero(t *testing.T) {
	cfg := validConfig()
	cfg.Service.ShutdownTimeoutSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for shutdown_timeout_seconds = 0")
	}
}

func TestValidate_MaxPayloadMiBZero(t *testing.T) {
	cfg := validConfig()
	cfg.Source.MaxPayloadMiB = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for max_payload_mib = 0")
	}
}

func TestMaxPayloadBytes(t *testing.T) {
	cfg := validConfig()
	cfg.Source.MaxPayloadMiB = 4
	if got := cfg.MaxPayloadBytes(); got != 4<<20 {
		t.Fatalf("expected 4 MiB in bytes, got %d", got)
	}
}

func writeMinimalYAML(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	data := `
source:
  kind: file
  path: /data/rib.mrt
sinks:
  dump: true
postgres:
  dsn: "postgres://localhost/test"
`
	if err := os.WriteFile(p, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_EnvOverrideDSN(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("MRTPARSE_POSTGRES__DSN", "postgres://envhost/envdb")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Postgres.DSN != "postgres://envhost/envdb" {
		t.Errorf("expected DSN from env, got %q", cfg.Postgres.DSN)
	}
}

func TestLoad_EnvOverrideLogLevel(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("MRTPARSE_SERVICE__LOG_LEVEL", "debug")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Service.LogLevel != "debug" {
		t.Errorf("expected log_level 'debug' from env, got %q", cfg.Service.LogLevel)
	}
}

func TestLoad_EnvOverrideSourcePath(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("MRTPARSE_SOURCE__PATH", "/data/other.mrt")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Source.Path != "/data/other.mrt" {
		t.Errorf("expected source path from env, got %q", cfg.Source.Path)
	}
}

func TestLoad_DumpEnabledWithoutDSNFailsValidation(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("MRTPARSE_POSTGRES__DSN", "")

	_, err := Load(p)
	if err == nil {
		t.Fatal("expected validation error for dump sink enabled with empty DSN")
	}
}
