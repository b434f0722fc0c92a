package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"shoplist/internal/changelog"
	"shoplist/internal/config"
	"shoplist/internal/logger"
	"shoplist/internal/manifest"
	"shoplist/internal/metrics"
	"shoplist/internal/restore"
	"shoplist/internal/snapshot"
	"shoplist/internal/state"
)

// recover periodically rebuilds the shopping list state from the latest
// snapshot and changelog into a scratch store, proving the backups restore.
func main() {
	var (
		configPath      string
		httpAddr        string
		pollIntervalSec int
		once            bool
	)
	cfg := config.Default()
	flag.StringVar(&configPath, "config", "", "YAML config file")
	flag.StringVar(&cfg.KafkaBootstrap, "bootstrap", "", "kafka bootstrap")
	flag.StringVar(&cfg.ManifestSource, "manifest-source", "", "file|kafka (overrides config)")
	flag.StringVar(&cfg.ChangelogSource, "changelog-source", "", "file|kafka (overrides config)")
	flag.StringVar(&httpAddr, "http", ":9090", "http listen for /metrics")
	flag.IntVar(&pollIntervalSec, "poll", 10, "poll interval seconds for manifest")
	flag.BoolVar(&once, "once", false, "run one cycle and exit non-zero on failure")
	flag.Parse()

	cfg = overlay(configPath, cfg)
	if err := logger.Init(cfg.LogEnv); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	mreg := metrics.NewRegistry()
	if !once {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", mreg.Handler())
			_ = http.ListenAndServe(httpAddr, mux)
		}()
	}

	var mReader manifest.Reader = manifest.NewFilesystemManifest(cfg.SnapshotDir)
	if cfg.ManifestSource == config.SinkKafka {
		mReader = manifest.NewKafkaReader(cfg.KafkaBootstrap, cfg.TopicManifest, manifest.DefaultKey)
	}
	snaps := snapshot.NewFilesystemSnapshotter(cfg.SnapshotDir)

	ticker := time.NewTicker(time.Duration(pollIntervalSec) * time.Second)
	defer ticker.Stop()
	for {
		err := cycle(cfg, snaps, mReader, mreg)
		if once {
			if err != nil {
				log.Fatalf("recovery failed: %v", err)
			}
			return
		}
		if err != nil {
			logger.Error("recovery cycle failed", zap.Error(err))
		}
		<-ticker.C
	}
}

// overlay applies the config file and environment under the flags that were
// set explicitly.
func overlay(path string, flags config.Config) config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if flags.KafkaBootstrap != "" {
		cfg.KafkaBootstrap = flags.KafkaBootstrap
	}
	if flags.ManifestSource != "" {
		cfg.ManifestSource = flags.ManifestSource
	}
	if flags.ChangelogSource != "" {
		cfg.ChangelogSource = flags.ChangelogSource
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// cycle restores into a fresh in-memory store and records how long it took.
func cycle(cfg config.Config, snaps *snapshot.FilesystemSnapshotter, mReader manifest.Reader, mreg *metrics.Registry) error {
	t1 := time.Now()
	st := state.NewInMemoryStore()
	r := restore.NewRestorer(st, snaps, mReader, cfg.ChangelogPath())
	m, err := mReader.ReadLatest()
	if err != nil && !errors.Is(err, manifest.ErrNoManifest) {
		return err
	}
	if err := r.RestoreFromSnapshot(m.SnapshotID); err != nil {
		return err
	}

	var res restore.RestoreResult
	if cfg.ChangelogSource == config.SinkKafka {
		res = r.ReplayChangelogKafka(changelog.SplitBrokers(cfg.KafkaBootstrap), cfg.TopicChangelog, m.LastChangelogOffset)
	} else {
		res = r.ReplayChangelog(cfg.ChangelogPath(), m.LastChangelogOffset)
	}
	if res.Error != nil {
		return res.Error
	}

	mreg.Applied.Add(float64(res.Applied))
	mreg.Skipped.Add(float64(res.Skipped))
	mreg.TTRSec.Set(time.Since(t1).Seconds())
	if cfg.ChangelogSource == config.SinkKafka {
		head := headOffset(cfg.TopicChangelog, cfg.KafkaBootstrap)
		if head >= 0 {
			// LastAppliedOffset counts messages; head is a 0-based offset.
			mreg.Lag.Set(float64(head + 1 - res.LastAppliedOffset))
		}
	} else if n, err := changelog.CountRecords(cfg.ChangelogPath()); err == nil {
		mreg.Lag.Set(float64(n - res.LastAppliedOffset))
	}
	if age := m.Age(time.Now()); age > 0 {
		mreg.LastManifestAgeSec.Set(age.Seconds())
	}

	keys := 0
	_ = st.Range(func(string, state.Entry) error { keys++; return nil })
	logger.Info("recovery cycle",
		zap.String("snapshot_id", m.SnapshotID),
		zap.Int("applied", res.Applied),
		zap.Int("skipped", res.Skipped),
		zap.Int("keys", keys),
		zap.Duration("ttr", time.Since(t1)))
	return nil
}

// headOffset returns the last offset (high-water mark - 1) of the changelog
// partition of topic.
func headOffset(topic string, bootstrap string) int64 {
	brokers := changelog.SplitBrokers(bootstrap)
	if len(brokers) == 0 {
		return -1
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := kafka.DialLeader(ctx, "tcp", brokers[0], topic, changelog.Partition)
	if err != nil {
		return -1
	}
	defer conn.Close()
	off, err := conn.ReadLastOffset()
	if err != nil {
		return -1
	}
	return off - 1
}
