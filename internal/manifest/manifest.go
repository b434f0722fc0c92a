package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/kafka-go"

	"shoplist/internal/changelog"
)

// DefaultKey is the record key of the latest manifest on a compacted topic.
const DefaultKey = "shoplist-manifest-latest"

const fileName = "manifest.latest.json"

var (
	// ErrNoManifest is returned when no manifest has been published yet.
	ErrNoManifest = errors.New("no manifest found")
	// ErrEmptySnapshotID rejects a manifest that points nowhere.
	ErrEmptySnapshotID = errors.New("manifest: empty snapshot id")
)

// Manifest points at the latest snapshot and the number of changelog records
// already folded into it.
type Manifest struct {
	SnapshotID           string `json:"snapshotId"`
	LastChangelogOffset  int64  `json:"lastChangelogOffset"`
	CreatedAtEpochSecond int64  `json:"createdAt"`
}

// Age is the time elapsed between publication and now.
func (m Manifest) Age(now time.Time) time.Duration {
	if m.CreatedAtEpochSecond == 0 {
		return 0
	}
	return now.Sub(time.Unix(m.CreatedAtEpochSecond, 0))
}

type Publisher interface {
	PublishLatest(snapshotID string, lastChangelogOffset int64) error
}

type Reader interface {
	ReadLatest() (Manifest, error)
}

// nowUnix is split for tests.
var nowUnix = func() int64 { return time.Now().UTC().Unix() }

func build(snapshotID string, offset int64) (Manifest, error) {
	if snapshotID == "" {
		return Manifest{}, ErrEmptySnapshotID
	}
	if offset < 0 {
		offset = 0
	}
	return Manifest{SnapshotID: snapshotID, LastChangelogOffset: offset, CreatedAtEpochSecond: nowUnix()}, nil
}

type multi []Publisher

// MultiPublisher publishes to every target and joins their errors.
func MultiPublisher(pubs ...Publisher) Publisher { return multi(pubs) }

func (m multi) PublishLatest(snapshotID string, offset int64) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishLatest(snapshotID, offset); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FilesystemManifest keeps manifest.latest.json next to the snapshots.
type FilesystemManifest struct {
	baseDir string
}

func NewFilesystemManifest(baseDir string) *FilesystemManifest {
	return &FilesystemManifest{baseDir: baseDir}
}

// PublishLatest replaces the manifest file atomically.
func (f *FilesystemManifest) PublishLatest(snapshotID string, offset int64) error {
	m, err := build(snapshotID, offset)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.baseDir, 0o755); err != nil {
		return fmt.Errorf("mkdir manifest dir: %w", err)
	}
	b, err := json.MarshalIndent(&m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	final := filepath.Join(f.baseDir, fileName)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename manifest: %w", err)
	}
	return nil
}

func (f *FilesystemManifest) ReadLatest() (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(f.baseDir, fileName))
	if errors.Is(err, os.ErrNotExist) {
		return Manifest{}, ErrNoManifest
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	return decode(data)
}

func decode(b []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if m.SnapshotID == "" {
		return Manifest{}, ErrNoManifest
	}
	return m, nil
}

// kafkaMessageWriter is the part of kafka.Writer the publisher needs.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaManifest publishes the manifest as one keyed record on a compacted
// topic.
type KafkaManifest struct {
	writer  kafkaMessageWriter
	key     []byte
	timeout time.Duration
}

// NewKafkaManifest dials lazily; bootstrap may list several brokers.
func NewKafkaManifest(bootstrap, topic, key string) *KafkaManifest {
	return NewKafkaManifestWith(&kafka.Writer{
		Addr:         kafka.TCP(changelog.SplitBrokers(bootstrap)...),
		Topic:        topic,
		Balancer:     changelog.PinnedBalancer,
		RequiredAcks: kafka.RequireAll,
	}, key)
}

func NewKafkaManifestWith(w kafkaMessageWriter, key string) *KafkaManifest {
	return &KafkaManifest{writer: w, key: []byte(key), timeout: 10 * time.Second}
}

func (k *KafkaManifest) PublishLatest(snapshotID string, offset int64) error {
	m, err := build(snapshotID, offset)
	if err != nil {
		return err
	}
	b, err := json.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: k.key, Value: b}); err != nil {
		return fmt.Errorf("publish manifest: %w", err)
	}
	return nil
}

// KafkaReader scans changelog.Partition of the manifest topic up to its
// high-water mark and keeps the last record carrying key.
type KafkaReader struct {
	brokers []string
	topic   string
	key     string
	timeout time.Duration
}

func NewKafkaReader(bootstrap, topic, key string) *KafkaReader {
	return &KafkaReader{brokers: changelog.SplitBrokers(bootstrap), topic: topic, key: key, timeout: 10 * time.Second}
}

func (k *KafkaReader) ReadLatest() (Manifest, error) {
	if len(k.brokers) == 0 {
		return Manifest{}, errors.New("manifest: no kafka brokers")
	}
	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()
	conn, err := kafka.DialLeader(ctx, "tcp", k.brokers[0], k.topic, changelog.Partition)
	if err != nil {
		return Manifest{}, fmt.Errorf("dial manifest topic: %w", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(k.timeout))

	first, last, err := conn.ReadOffsets()
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest offsets: %w", err)
	}
	if last <= first {
		return Manifest{}, ErrNoManifest
	}
	if _, err := conn.Seek(first, kafka.SeekAbsolute); err != nil {
		return Manifest{}, fmt.Errorf("seek manifest topic: %w", err)
	}
	var latest []byte
	for off := first; off < last; {
		msg, err := conn.ReadMessage(1 << 20)
		if err != nil {
			return Manifest{}, fmt.Errorf("read manifest record: %w", err)
		}
		off = msg.Offset + 1
		if string(msg.Key) == k.key {
			latest = msg.Value
		}
	}
	if latest == nil {
		return Manifest{}, ErrNoManifest
	}
	return decode(latest)
}
