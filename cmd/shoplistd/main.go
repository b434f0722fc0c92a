package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"shoplist/internal/app"
	"shoplist/internal/config"
	"shoplist/internal/httpapi"
	"shoplist/internal/listener"
	"shoplist/internal/logger"
	"shoplist/internal/state"
	"shoplist/internal/webimport"
)

// Flags holds what only the daemon takes on its command line; everything
// else comes from config.Config.
type Flags struct {
	ConfigPath string
	Restore    bool
	Commands   bool
	Import     bool
}

func main() {
	cfg, fl := readFlags()
	if err := logger.Init(cfg.LogEnv); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, fl); err != nil {
		logger.Error("shoplistd failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func readFlags() (config.Config, Flags) {
	var fl Flags
	// The config file must be known before other defaults are resolved.
	fl.ConfigPath = configPathFromArgs(os.Args[1:])

	cfg, err := config.Load(fl.ConfigPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	flag.StringVar(&fl.ConfigPath, "config", fl.ConfigPath, "YAML config file")
	flag.StringVar(&cfg.StateBackend, "state-backend", cfg.StateBackend, "state backend: memory|pebble|badger|sqlite")
	flag.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "state data directory")
	flag.StringVar(&cfg.SnapshotDir, "snapshot-dir", cfg.SnapshotDir, "snapshot directory")
	flag.StringVar(&cfg.ChangelogDir, "changelog-dir", cfg.ChangelogDir, "changelog directory")
	flag.IntVar(&cfg.SnapshotInterval, "snapshot-interval", cfg.SnapshotInterval, "snapshot interval seconds (0 disables)")
	flag.StringVar(&cfg.KafkaBootstrap, "kafka-bootstrap", cfg.KafkaBootstrap, "kafka bootstrap servers, e.g. localhost:9092")
	flag.StringVar(&cfg.ChangelogSink, "changelog-sink", cfg.ChangelogSink, "changelog sink: file|kafka|both")
	flag.StringVar(&cfg.ManifestSink, "manifest-sink", cfg.ManifestSink, "manifest sink: file|kafka|both")
	flag.StringVar(&cfg.ChangelogSource, "changelog-source", cfg.ChangelogSource, "changelog source for restore: file|kafka")
	flag.StringVar(&cfg.ManifestSource, "manifest-source", cfg.ManifestSource, "manifest source for restore: file|kafka")
	flag.StringVar(&cfg.TopicChangelog, "topic-changelog", cfg.TopicChangelog, "kafka topic for changelog (compacted)")
	flag.StringVar(&cfg.TopicManifest, "topic-snapshots", cfg.TopicManifest, "kafka topic for manifest (compacted)")
	flag.StringVar(&cfg.TopicCommands, "topic-commands", cfg.TopicCommands, "kafka topic for list commands")
	flag.StringVar(&cfg.CommandsGroupID, "group-id", cfg.CommandsGroupID, "consumer group id for commands")
	flag.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "http listen address")
	flag.StringVar(&cfg.LogEnv, "log-env", cfg.LogEnv, "development|production")
	flag.BoolVar(&fl.Restore, "restore", false, "restore from snapshot and changelog on start (always on for the memory backend)")
	flag.BoolVar(&fl.Commands, "commands", true, "consume list commands from kafka when a bootstrap is set")
	flag.BoolVar(&fl.Import, "web-import", true, "enable POST /recipes/import")
	flag.Parse()
	return cfg, fl
}

// configPathFromArgs finds -config / --config in args, in either the
// "-config x" or "-config=x" form.
func configPathFromArgs(args []string) string {
	for i, a := range args {
		name, val, hasVal := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasVal {
			return val
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func run(ctx context.Context, cfg config.Config, fl Flags) error {
	logger.Info("starting shoplistd",
		zap.String("backend", cfg.StateBackend),
		zap.String("http", cfg.HTTPAddr),
		zap.Int("snapshot_interval_sec", cfg.SnapshotInterval),
		zap.String("changelog_sink", cfg.ChangelogSink))

	a, err := app.Open(cfg)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer a.Close()

	if fl.Restore || cfg.StateBackend == state.BackendMemory {
		t0 := time.Now()
		if _, err := a.Restore(); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		a.Metrics.TTRSec.Set(time.Since(t0).Seconds())
	}

	srv := &httpapi.Server{
		Recipes:  a.Recipes,
		Catalog:  a.Catalog,
		Shopping: a.Shopping,
		Metrics:  a.Metrics.Handler(),
		Origins:  cfg.CORSOrigins,
	}
	if fl.Import {
		srv.Importer = webimport.New(nil)
	}
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 2)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http: %w", err)
		}
	}()

	if fl.Commands && cfg.KafkaEnabled() {
		c, err := listener.NewConsumer(cfg.KafkaBootstrap, cfg.CommandsGroupID, cfg.TopicCommands, a.Shopping, a.Metrics)
		if err != nil {
			return fmt.Errorf("command listener: %w", err)
		}
		go func() {
			if err := c.Run(ctx); err != nil {
				errc <- fmt.Errorf("command listener: %w", err)
			}
		}()
		logger.Info("consuming list commands", zap.String("topic", cfg.TopicCommands))
	}

	if cfg.SnapshotInterval > 0 {
		go a.Backup.Loop(ctx, time.Duration(cfg.SnapshotInterval)*time.Second)
	}

	select {
	case <-ctx.Done():
	case err = <-errc:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if e := httpSrv.Shutdown(shutdownCtx); e != nil {
		logger.Warn("http shutdown", zap.Error(e))
	}
	// A final snapshot keeps the next restore short.
	if cfg.SnapshotInterval > 0 {
		if _, e := a.Backup.Run(); e != nil {
			logger.Warn("final snapshot failed", zap.Error(e))
		}
	}
	logger.Info("shoplistd stopped")
	return err
}
