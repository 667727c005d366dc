package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/route-beacon/mrtparse/internal/config"
	"github.com/route-beacon/mrtparse/internal/metrics"
	"github.com/route-beacon/mrtparse/internal/mrt"
	"github.com/route-beacon/mrtparse/internal/mrthttp"
	"github.com/route-beacon/mrtparse/internal/mrtsource"
	"github.com/route-beacon/mrtparse/internal/mrtstore"
	"github.com/route-beacon/mrtparse/internal/nlri"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runRun()
	case "migrate":
		runMigrate()
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: mrtparse <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run       Decode an MRT source and deliver records to the configured sinks")
	fmt.Println("  migrate   Run store schema migrations")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>   Path to configuration YAML file")
	fmt.Println("  --log-level <lvl> Override log level (debug, info, warn, error)")
}

func parseFlags(args []string) (configPath string, logLevel string) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		case "--log-level":
			if i+1 < len(args) {
				logLevel = args[i+1]
				i++
			}
		}
	}
	return
}

func loadConfig(args []string) (*config.Config, *zap.Logger) {
	configPath, logLevelOverride := parseFlags(args)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if logLevelOverride != "" {
		cfg.Service.LogLevel = logLevelOverride
	}

	logger := initLogger(cfg.Service.LogLevel)
	return cfg, logger
}

func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zap.DebugLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	default:
		zapLevel = zap.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func migrationsDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "migrations"
	}
	return filepath.Join(filepath.Dir(exe), "migrations")
}

func openSource(cfg *config.Config, logger *zap.Logger, ctx context.Context) (io.Reader, io.Closer, error) {
	var (
		src    io.Reader
		closer io.Closer
	)

	switch cfg.Source.Kind {
	case "stdin":
		src = os.Stdin
	case "file":
		f, err := mrtsource.NewFileSource(cfg.Source.Path)
		if err != nil {
			return nil, nil, err
		}
		src, closer = f, f
	case "zstd":
		f, err := mrtsource.NewZstdFileSource(cfg.Source.Path)
		if err != nil {
			return nil, nil, err
		}
		src, closer = f, f
	case "kafka":
		tlsCfg, err := cfg.Source.Kafka.BuildTLSConfig()
		if err != nil {
			return nil, nil, fmt.Errorf("building kafka TLS config: %w", err)
		}
		k, err := mrtsource.NewKafkaSource(ctx, mrtsource.KafkaSourceConfig{
			Brokers:       cfg.Source.Kafka.Brokers,
			Topics:        cfg.Source.Kafka.Topics,
			GroupID:       cfg.Source.Kafka.GroupID,
			ClientID:      cfg.Source.Kafka.ClientID,
			FetchMaxBytes: cfg.Source.Kafka.FetchMaxBytes,
			TLS:           tlsCfg,
			SASL:          cfg.Source.Kafka.BuildSASLMechanism(),
		}, logger.Named("mrtsource.kafka"))
		if err != nil {
			return nil, nil, err
		}
		src, closer = k, k
	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}

	return &countingReader{r: src, source: cfg.Source.Kind}, closer, nil
}

// countingReader records every byte pulled from a source, by source
// kind, so mrtparse_bytes_consumed_total reflects real throughput
// rather than sitting at zero.
type countingReader struct {
	r      io.Reader
	source string
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		metrics.BytesConsumedTotal.WithLabelValues(c.source).Add(float64(n))
	}
	return n, err
}

func runRun() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	metrics.Register()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pool dbPool
	var pipeline *mrtstore.Pipeline
	if cfg.Sinks.Dump || cfg.Sinks.State || cfg.Sinks.Message {
		p, err := mrtstore.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
		if err != nil {
			logger.Fatal("failed to connect to store", zap.Error(err))
		}
		defer p.Close()
		pool = p

		writer := mrtstore.NewWriter(p, logger.Named("mrtstore.writer"), cfg.Store.StoreRawBytes, cfg.Store.StoreRawBytesCompress)
		pipeline = mrtstore.NewPipeline(writer, cfg.Store.BatchSize, cfg.Store.FlushIntervalMs, cfg.Store.ChannelBufferSize, logger.Named("mrtstore.pipeline"))
		go pipeline.Run(ctx)
	}

	httpServer := mrthttp.NewServer(cfg.Service.HTTPListen, pool, logger.Named("mrthttp"))
	if err := httpServer.Start(); err != nil {
		logger.Fatal("failed to start HTTP server", zap.Error(err))
	}

	source, closer, err := openSource(cfg, logger, ctx)
	if err != nil {
		logger.Fatal("failed to open source", zap.Error(err))
	}
	if closer != nil {
		defer closer.Close()
	}

	parser := mrt.NewParser(source, nlri.New())
	parser.MaxPayloadLen = cfg.MaxPayloadBytes()
	parser.Verbose = cfg.Service.Verbose
	parser.Diag = func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	}
	parser.OnDrop = func(stage string, err error) {
		metrics.ParseErrorsTotal.WithLabelValues(stage, dropReason(err)).Inc()
	}

	if pipeline != nil {
		parser.Sinks = pipeline.Sinks(ctx, cfg.Sinks.Dump, cfg.Sinks.State, cfg.Sinks.Message)
	}
	wrapSinksWithMetrics(&parser.Sinks)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	runDone := make(chan error, 1)
	go func() { runDone <- parser.Run() }()

	select {
	case err := <-runDone:
		if err != nil {
			logger.Error("parser stopped with error", zap.Error(err))
		} else {
			logger.Info("parser reached end of source")
		}
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	shutdownTimeout := time.Duration(cfg.Service.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	cancel()

	logger.Info("mrtparse stopped")
}

func runMigrate() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	ctx := context.Background()
	pool, err := mrtstore.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
	if err != nil {
		logger.Fatal("failed to connect to store", zap.Error(err))
	}
	defer pool.Close()

	if err := mrtstore.RunMigrations(ctx, pool, migrationsDir(), logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	logger.Info("migrations complete")
}

// dbPool satisfies mrthttp.DBChecker; it is nil when no sink needs Postgres.
type dbPool interface {
	Ping(ctx context.Context) error
}

// dropReason buckets a dispatch error into the small, bounded set of
// reason labels ParseErrorsTotal carries. Unrecognized errors fall back
// to "other" rather than using err.Error() as a label, which would give
// the series unbounded cardinality.
func dropReason(err error) string {
	switch {
	case errors.Is(err, mrt.ErrTruncated):
		return "truncated"
	case errors.Is(err, mrt.ErrUnknownFamily):
		return "unknown_family"
	case errors.Is(err, mrt.ErrBadPrefixLen):
		return "bad_prefix_len"
	default:
		return "other"
	}
}

// wrapSinksWithMetrics layers decode/delivery counters (and, for state
// and message records, last-timestamp gauges) around whatever delivery
// sinks are already wired, without the framer needing to know metrics
// exist at all. Parse errors are counted through parser.OnDrop instead.
func wrapSinksWithMetrics(sinks *mrt.Sinks) {
	if dump := sinks.Dump; dump != nil {
		sinks.Dump = func(rib *mrt.Rib, peers *mrt.PeerContext) {
			metrics.RecordsDecodedTotal.WithLabelValues("rib").Inc()
			metrics.RecordsDeliveredTotal.WithLabelValues("dump").Inc()
			dump(rib, peers)
		}
	}
	if state := sinks.State; state != nil {
		sinks.State = func(s *mrt.BgpState) {
			metrics.RecordsDecodedTotal.WithLabelValues("state").Inc()
			metrics.RecordsDeliveredTotal.WithLabelValues("state").Inc()
			metrics.LastRecordTimestamp.WithLabelValues("state").Set(float64(s.Timestamp.Unix()))
			state(s)
		}
	}
	if msg := sinks.Message; msg != nil {
		sinks.Message = func(m *mrt.BgpMsg) {
			metrics.RecordsDecodedTotal.WithLabelValues("message").Inc()
			metrics.RecordsDeliveredTotal.WithLabelValues("message").Inc()
			metrics.LastRecordTimestamp.WithLabelValues("message").Set(float64(m.Timestamp.Unix()))
			msg(m)
		}
	}
}
