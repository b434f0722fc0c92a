// Package config loads daemon and CLI settings: defaults, then a YAML file,
// then .env and SHOPLIST_* environment variables. Command-line flags are
// applied last by each binary.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"shoplist/internal/logger"
	"shoplist/internal/state"
)

// Sink values for the changelog and manifest.
const (
	SinkFile  = "file"
	SinkKafka = "kafka"
	SinkBoth  = "both"
)

// ChangelogFile is the JSONL file name inside ChangelogDir.
const ChangelogFile = "shoplist.jsonl"

type Config struct {
	StateBackend string `yaml:"state_backend"`
	DataDir      string `yaml:"data_dir"`
	SnapshotDir  string `yaml:"snapshot_dir"`
	ChangelogDir string `yaml:"changelog_dir"`

	ChangelogSink   string `yaml:"changelog_sink"`
	ManifestSink    string `yaml:"manifest_sink"`
	ChangelogSource string `yaml:"changelog_source"`
	ManifestSource  string `yaml:"manifest_source"`

	KafkaBootstrap  string `yaml:"kafka_bootstrap"`
	TopicChangelog  string `yaml:"topic_changelog"`
	TopicManifest   string `yaml:"topic_manifest"`
	TopicCommands   string `yaml:"topic_commands"`
	CommandsGroupID string `yaml:"commands_group_id"`

	HTTPAddr         string   `yaml:"http_addr"`
	CORSOrigins      []string `yaml:"cors_origins"`
	SnapshotInterval int      `yaml:"snapshot_interval_sec"`
	LogEnv           string   `yaml:"log_env"`
}

func Default() Config {
	return Config{
		StateBackend:     state.BackendPebble,
		DataDir:          "./data",
		SnapshotDir:      "./snapshots",
		ChangelogDir:     "./changelog",
		ChangelogSink:    SinkFile,
		ManifestSink:     SinkFile,
		ChangelogSource:  SinkFile,
		ManifestSource:   SinkFile,
		TopicChangelog:   "shoplist.changelog",
		TopicManifest:    "shoplist.snapshots",
		TopicCommands:    "shoplist.commands",
		CommandsGroupID:  "shoplistd",
		HTTPAddr:         ":8080",
		CORSOrigins:      []string{"*"},
		SnapshotInterval: 300,
		LogEnv:           "development",
	}
}

// ChangelogPath is the JSONL changelog file.
func (c Config) ChangelogPath() string {
	return filepath.Join(c.ChangelogDir, ChangelogFile)
}

// KafkaEnabled reports whether a bootstrap address is configured.
func (c Config) KafkaEnabled() bool { return strings.TrimSpace(c.KafkaBootstrap) != "" }

// ReadConfig overlays the YAML file at filePath on c.
func ReadConfig(c *Config, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		logger.Error("unable to read config file", zap.String("path", filePath), zap.Error(err))
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		logger.Error("unable to unmarshal YAML", zap.String("path", filePath), zap.Error(err))
		return fmt.Errorf("parse %s: %w", filePath, err)
	}
	return nil
}

// ApplyEnv overrides fields from SHOPLIST_* variables found by lookup.
func ApplyEnv(c *Config, lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"SHOPLIST_STATE_BACKEND":     &c.StateBackend,
		"SHOPLIST_DATA_DIR":          &c.DataDir,
		"SHOPLIST_SNAPSHOT_DIR":      &c.SnapshotDir,
		"SHOPLIST_CHANGELOG_DIR":     &c.ChangelogDir,
		"SHOPLIST_CHANGELOG_SINK":    &c.ChangelogSink,
		"SHOPLIST_MANIFEST_SINK":     &c.ManifestSink,
		"SHOPLIST_CHANGELOG_SOURCE":  &c.ChangelogSource,
		"SHOPLIST_MANIFEST_SOURCE":   &c.ManifestSource,
		"SHOPLIST_KAFKA_BOOTSTRAP":   &c.KafkaBootstrap,
		"SHOPLIST_TOPIC_CHANGELOG":   &c.TopicChangelog,
		"SHOPLIST_TOPIC_MANIFEST":    &c.TopicManifest,
		"SHOPLIST_TOPIC_COMMANDS":    &c.TopicCommands,
		"SHOPLIST_COMMANDS_GROUP_ID": &c.CommandsGroupID,
		"SHOPLIST_HTTP_ADDR":         &c.HTTPAddr,
		"SHOPLIST_LOG_ENV":           &c.LogEnv,
	}
	for name, dst := range str {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	if v, ok := lookup("SHOPLIST_SNAPSHOT_INTERVAL_SEC"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SHOPLIST_SNAPSHOT_INTERVAL_SEC: %w", err)
		}
		c.SnapshotInterval = n
	}
	if v, ok := lookup("SHOPLIST_CORS_ORIGINS"); ok {
		c.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.CORSOrigins = append(c.CORSOrigins, o)
			}
		}
	}
	return nil
}

func validSink(s string) bool { return s == SinkFile || s == SinkKafka || s == SinkBoth }

// Validate checks the combination of settings.
func (c Config) Validate() error {
	switch c.StateBackend {
	case state.BackendMemory, state.BackendPebble, state.BackendBadger, state.BackendSQLite:
	default:
		return fmt.Errorf("state backend %q: want memory|pebble|badger|sqlite", c.StateBackend)
	}
	for name, v := range map[string]string{"changelog sink": c.ChangelogSink, "manifest sink": c.ManifestSink} {
		if !validSink(v) {
			return fmt.Errorf("%s %q: want file|kafka|both", name, v)
		}
		if v != SinkFile && !c.KafkaEnabled() {
			return fmt.Errorf("%s %q needs kafka bootstrap", name, v)
		}
	}
	for name, v := range map[string]string{"changelog source": c.ChangelogSource, "manifest source": c.ManifestSource} {
		if v != SinkFile && v != SinkKafka {
			return fmt.Errorf("%s %q: want file|kafka", name, v)
		}
		if v == SinkKafka && !c.KafkaEnabled() {
			return fmt.Errorf("%s %q needs kafka bootstrap", name, v)
		}
	}
	if c.SnapshotInterval < 0 {
		return errors.New("snapshot interval must not be negative")
	}
	return nil
}

// Load builds the configuration: defaults, the YAML file at path (skipped
// when path is empty), .env in the working directory if present, then the
// environment.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		if err := ReadConfig(&c, path); err != nil {
			return Config{}, err
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := ApplyEnv(&c, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return c, nil
}
