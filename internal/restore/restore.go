package restore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"shoplist/internal/changelog"
	"shoplist/internal/logger"
	"shoplist/internal/manifest"
	"shoplist/internal/snapshot"
	"shoplist/internal/state"
)

// Restorer rebuilds a store from the latest snapshot plus the changelog
// written after it.
type Restorer struct {
	stateStore     state.Store
	snapshots      *snapshot.FilesystemSnapshotter
	manifestReader manifest.Reader
	changelogPath  string
}

func NewRestorer(st state.Store, snaps *snapshot.FilesystemSnapshotter, mr manifest.Reader, changelogPath string) *Restorer {
	return &Restorer{
		stateStore:     st,
		snapshots:      snaps,
		manifestReader: mr,
		changelogPath:  changelogPath,
	}
}

type RestoreResult struct {
	Applied int
	Skipped int
	// LastAppliedOffset is the 1-based index of the last changelog record read.
	LastAppliedOffset int64
	Error             error
}

func (r *Restorer) RestoreFromSnapshot(snapshotID string) error {
	if snapshotID == "" {
		return nil
	}
	dump, err := r.snapshots.ReadSnapshot(snapshotID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("restore: snapshot not found, skipping", zap.String("snapshot_id", snapshotID))
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}
	r.stateStore.LoadAll(dump)
	logger.Info("restore: loaded snapshot", zap.Int("keys", len(dump)), zap.String("snapshot_id", snapshotID))
	return nil
}

// apply writes one record; older or equal sequences count as skipped.
func (r *Restorer) apply(rec changelog.Record, res *RestoreResult) error {
	ok, _, err := r.stateStore.Apply(rec.Key, rec.Value, rec.Seq)
	if err != nil {
		return err
	}
	if ok {
		res.Applied++
	} else {
		res.Skipped++
	}
	return nil
}

// ReplayChangelog applies the JSONL changelog at path, skipping the first
// fromOffset lines.
func (r *Restorer) ReplayChangelog(path string, fromOffset int64) RestoreResult {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return RestoreResult{}
		}
		return RestoreResult{Error: fmt.Errorf("open changelog: %w", err)}
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	// A record holds a whole collection; allow large lines.
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	var res RestoreResult
	lineNum := int64(0)

	for scanner.Scan() {
		lineNum++
		if lineNum <= fromOffset {
			continue
		}
		var rec changelog.Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			res.Error = fmt.Errorf("unmarshal line %d: %w", lineNum, err)
			return res
		}
		if err := r.apply(rec, &res); err != nil {
			res.Error = fmt.Errorf("apply line %d: %w", lineNum, err)
			return res
		}
		res.LastAppliedOffset = lineNum
	}
	if err := scanner.Err(); err != nil {
		res.Error = fmt.Errorf("scan changelog: %w", err)
	}
	return res
}

// ReplayChangelogKafka consumes records from changelog.Partition of topic and
// applies them. fromOffset is a message index, like the file variant.
func (r *Restorer) ReplayChangelogKafka(brokers []string, topic string, fromOffset int64) RestoreResult {
	rd := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: changelog.Partition,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer rd.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var res RestoreResult
	idx := int64(0)
	for {
		m, err := rd.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			res.Error = fmt.Errorf("read kafka: %w", err)
			return res
		}
		idx++
		if idx <= fromOffset {
			continue
		}
		var rec changelog.Record
		if err := json.Unmarshal(m.Value, &rec); err != nil {
			res.Error = fmt.Errorf("unmarshal record: %w", err)
			return res
		}
		if err := r.apply(rec, &res); err != nil {
			res.Error = fmt.Errorf("apply: %w", err)
			return res
		}
		res.LastAppliedOffset = idx
	}
	return res
}

// RestoreAndReplay loads the snapshot named by the latest manifest, then
// replays the file changelog past the manifest's offset. With no manifest the
// whole changelog is replayed.
func (r *Restorer) RestoreAndReplay() (RestoreResult, error) {
	m, err := r.manifestReader.ReadLatest()
	if err != nil && !errors.Is(err, manifest.ErrNoManifest) {
		return RestoreResult{}, fmt.Errorf("read manifest: %w", err)
	}
	if err := r.RestoreFromSnapshot(m.SnapshotID); err != nil {
		return RestoreResult{}, fmt.Errorf("restore snapshot: %w", err)
	}
	result := r.ReplayChangelog(r.changelogPath, m.LastChangelogOffset)
	return result, result.Error
}
