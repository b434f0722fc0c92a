// Package app wires the store, journal, backup and services from a Config.
package app

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"shoplist/internal/backup"
	"shoplist/internal/catalog"
	"shoplist/internal/changelog"
	"shoplist/internal/collections"
	"shoplist/internal/config"
	"shoplist/internal/logger"
	"shoplist/internal/manifest"
	"shoplist/internal/metrics"
	"shoplist/internal/recipes"
	"shoplist/internal/restore"
	"shoplist/internal/shopping"
	"shoplist/internal/snapshot"
	"shoplist/internal/state"
)

type App struct {
	Config    config.Config
	Store     state.Store
	Repo      *collections.Repo
	Catalog   *catalog.Catalog
	Recipes   *recipes.Manager
	Shopping  *shopping.Service
	Metrics   *metrics.Registry
	Snapshots *snapshot.FilesystemSnapshotter
	Manifest  manifest.Reader
	Backup    *backup.Backup

	closeStore func() error
}

// Open builds every component. Call Close when done.
func Open(cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	st, closeStore, err := state.Open(cfg.StateBackend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("init state: %w", err)
	}

	// changelog writer (file by default; kafka optional)
	var clog changelog.Writer
	if cfg.ChangelogSink == config.SinkFile || cfg.ChangelogSink == config.SinkBoth {
		fw, err := changelog.NewFileWriter(cfg.ChangelogDir, config.ChangelogFile)
		if err != nil {
			_ = closeStore()
			return nil, fmt.Errorf("init changelog file: %w", err)
		}
		clog = fw
	}
	if cfg.ChangelogSink == config.SinkKafka || cfg.ChangelogSink == config.SinkBoth {
		kw := changelog.NewKafkaWriter(cfg.KafkaBootstrap, cfg.TopicChangelog)
		if clog == nil {
			clog = kw
		} else {
			clog = changelog.NewMultiWriter(clog, kw)
		}
	}

	// manifest publisher and reader
	snaps := snapshot.NewFilesystemSnapshotter(cfg.SnapshotDir)
	maniFS := manifest.NewFilesystemManifest(cfg.SnapshotDir)
	var pub manifest.Publisher = maniFS
	var reader manifest.Reader = maniFS
	if cfg.ManifestSink != config.SinkFile {
		maniK := manifest.NewKafkaManifest(cfg.KafkaBootstrap, cfg.TopicManifest, manifest.DefaultKey)
		if cfg.ManifestSink == config.SinkKafka {
			pub = maniK
		} else {
			pub = manifest.MultiPublisher(maniFS, maniK)
		}
	}
	if cfg.ManifestSource == config.SinkKafka {
		reader = manifest.NewKafkaReader(cfg.KafkaBootstrap, cfg.TopicManifest, manifest.DefaultKey)
	}

	m := metrics.NewRegistry()
	repo := collections.New(st, clog).WithMetrics(m)
	cat := catalog.New(repo)
	rm := recipes.NewManager(repo, cat)

	clPath := ""
	if cfg.ChangelogSink != config.SinkKafka {
		clPath = cfg.ChangelogPath()
	}
	return &App{
		Config:     cfg,
		Store:      st,
		Repo:       repo,
		Catalog:    cat,
		Recipes:    rm,
		Shopping:   shopping.NewService(repo, rm, cat, m),
		Metrics:    m,
		Snapshots:  snaps,
		Manifest:   reader,
		Backup:     backup.New(st, snaps, pub, clPath, m),
		closeStore: closeStore,
	}, nil
}

// Restore rebuilds the store from the latest snapshot and the changelog
// recorded after it, from the configured changelog source.
func (a *App) Restore() (restore.RestoreResult, error) {
	r := restore.NewRestorer(a.Store, a.Snapshots, a.Manifest, a.Config.ChangelogPath())
	var (
		res restore.RestoreResult
		err error
	)
	if a.Config.ChangelogSource == config.SinkKafka {
		m, e := a.Manifest.ReadLatest()
		if e != nil && !errors.Is(e, manifest.ErrNoManifest) {
			return res, fmt.Errorf("read manifest: %w", e)
		}
		if err := r.RestoreFromSnapshot(m.SnapshotID); err != nil {
			return res, err
		}
		res = r.ReplayChangelogKafka(changelog.SplitBrokers(a.Config.KafkaBootstrap), a.Config.TopicChangelog, m.LastChangelogOffset)
		err = res.Error
	} else {
		res, err = r.RestoreAndReplay()
	}
	if err != nil {
		return res, err
	}
	a.Metrics.Applied.Add(float64(res.Applied))
	a.Metrics.Skipped.Add(float64(res.Skipped))
	logger.Info("app: restore completed", zap.Int("applied", res.Applied), zap.Int("skipped", res.Skipped))
	return res, nil
}

func (a *App) Close() error {
	return a.closeStore()
}
