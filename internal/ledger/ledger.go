// Package ledger is the file-based audit trail: one append-only JSONL file
// per world, each line carrying a checksum of its own body.
package ledger

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// DefaultLockTimeout bounds how long AppendEvent waits for the file lock.
const DefaultLockTimeout = 2 * time.Second

const (
	lockRetryDelay = 10 * time.Millisecond
	maxLineBytes   = 16 << 20
)

var (
	// ErrLockTimeout is returned when the file lock is not acquired in time.
	ErrLockTimeout = errors.New("ledger lock timeout")
	// ErrCorrupt is returned when a line fails to parse or its checksum does
	// not match its body.
	ErrCorrupt = errors.New("ledger corrupt")
)

// Entry is the body of one ledger line.
type Entry struct {
	EventID         string            `json:"event_id"`
	Timestamp       time.Time         `json:"ts"`
	WorldID         string            `json:"world_id"`
	EventType       string            `json:"event_type"`
	FingerprintHash string            `json:"fingerprint_hash,omitempty"`
	Meta            map[string]string `json:"meta,omitempty"`
	Data            json.RawMessage   `json:"data"`
}

type record struct {
	Body     json.RawMessage `json:"body"`
	Checksum string          `json:"checksum"`
}

type Ledger struct {
	dir         string
	lockTimeout time.Duration
	now         func() time.Time
}

type Option func(*Ledger)

func WithLockTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.lockTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func New(dir string, opts ...Option) *Ledger {
	l := &Ledger{
		dir:         dir,
		lockTimeout: DefaultLockTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the ledger file for a world.
func (l *Ledger) Path(worldID string) string {
	return filepath.Join(l.dir, worldID+".jsonl")
}

// AppendEvent writes one line to the world's file and returns its event id.
// Writers in this and other processes are serialized by an exclusive lock on
// a sibling .lock file.
func (l *Ledger) AppendEvent(ctx context.Context, worldID, eventType string, data any, fingerprint string, meta map[string]string) (string, error) {
	if err := checkWorldID(worldID); err != nil {
		return "", err
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshaling ledger data: %w", err)
	}

	entry := Entry{
		EventID:         uuid.NewString(),
		Timestamp:       l.now().UTC(),
		WorldID:         worldID,
		EventType:       eventType,
		FingerprintHash: fingerprint,
		Meta:            meta,
		Data:            payload,
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("marshaling ledger entry: %w", err)
	}
	line, err := json.Marshal(record{Body: body, Checksum: checksum(body)})
	if err != nil {
		return "", fmt.Errorf("marshaling ledger line: %w", err)
	}
	line = append(line, '\n')

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating ledger dir: %w", err)
	}

	path := l.Path(worldID)
	lock := flock.New(path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, l.lockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil || !locked {
		if errors.Is(err, context.DeadlineExceeded) || (err == nil && !locked) {
			return "", fmt.Errorf("%w: %s after %s", ErrLockTimeout, path, l.lockTimeout)
		}
		return "", fmt.Errorf("locking ledger %s: %w", path, err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("opening ledger %s: %w", path, err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return "", fmt.Errorf("writing ledger %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", fmt.Errorf("syncing ledger %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing ledger %s: %w", path, err)
	}

	return entry.EventID, nil
}

// Verify checks the checksum of the last line in the world's file. A world
// with no file verifies trivially.
func (l *Ledger) Verify(worldID string) error {
	if err := checkWorldID(worldID); err != nil {
		return err
	}

	var last []byte
	lineNo := 0
	err := l.scan(worldID, func(n int, raw []byte) error {
		last = append(last[:0], raw...)
		lineNo = n
		return nil
	})
	if err != nil {
		return err
	}
	if last == nil {
		return nil
	}
	_, err = decode(last)
	if err != nil {
		return fmt.Errorf("%s line %d: %w", l.Path(worldID), lineNo, err)
	}
	return nil
}

// Read returns every entry in file order, verifying each line.
func (l *Ledger) Read(worldID string) ([]Entry, error) {
	if err := checkWorldID(worldID); err != nil {
		return nil, err
	}

	entries := []Entry{}
	err := l.scan(worldID, func(n int, raw []byte) error {
		entry, err := decode(raw)
		if err != nil {
			return fmt.Errorf("%s line %d: %w", l.Path(worldID), n, err)
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Exists reports whether the world has a ledger file yet.
func (l *Ledger) Exists(worldID string) (bool, error) {
	_, err := os.Stat(l.Path(worldID))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("checking ledger %s: %w", l.Path(worldID), err)
}

func (l *Ledger) scan(worldID string, fn func(lineNo int, raw []byte) error) error {
	path := l.Path(worldID)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("opening ledger %s: %w", path, err)
	}
	defer f.Close()

	return scanLines(f, fn)
}

func scanLines(r io.Reader, fn func(lineNo int, raw []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	n := 0
	for scanner.Scan() {
		n++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		if err := fn(n, raw); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading ledger: %w", err)
	}
	return nil
}

func decode(raw []byte) (Entry, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(rec.Body) == 0 || rec.Checksum == "" {
		return Entry{}, fmt.Errorf("%w: missing body or checksum", ErrCorrupt)
	}
	if checksum(rec.Body) != rec.Checksum {
		return Entry{}, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	var entry Entry
	if err := json.Unmarshal(rec.Body, &entry); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return entry, nil
}

func checksum(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func checkWorldID(worldID string) error {
	if worldID == "" || strings.ContainsAny(worldID, `/\`) || worldID == "." || worldID == ".." {
		return fmt.Errorf("invalid ledger world id %q", worldID)
	}
	return nil
}
