// Package journal keeps a bounded history of synchronization runs in a
// bbolt database inside the data directory.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/shiguang-schedule/reposync/errors"
)

const (
	runsBucket = "runs"

	// DefaultMaxEntries bounds the history; older runs are pruned on write.
	DefaultMaxEntries = 500

	openTimeout = time.Second
)

// Entry is one recorded run.
type Entry struct {
	RunID      string    `json:"run_id"`
	Profile    string    `json:"profile"`
	URL        string    `json:"url"`
	Branch     string    `json:"branch"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	Outcome    string    `json:"outcome"`
	Code       string    `json:"code,omitempty"`
	VersionID  string    `json:"version_id,omitempty"`
	Previous   string    `json:"previous_version_id,omitempty"`
	Files      int       `json:"files"`
	Bytes      int64     `json:"bytes"`
	Notes      []string  `json:"notes,omitempty"`
	Error      string    `json:"error,omitempty"`
	CommitMode string    `json:"commit_mode,omitempty"`
}

// Duration is how long the run took.
func (e Entry) Duration() time.Duration {
	return e.Finished.Sub(e.Started)
}

// Journal is safe for concurrent use.
type Journal struct {
	db         *bbolt.DB
	maxEntries int
}

// Option configures a Journal.
type Option func(*Journal)

// WithMaxEntries bounds the number of runs kept. Zero or less keeps everything.
func WithMaxEntries(n int) Option {
	return func(j *Journal) {
		j.maxEntries = n
	}
}

// Open opens or creates the journal database at path.
func Open(path string, opts ...Option) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeInternal, "failed to create journal directory",
			map[string]any{"path": path})
	}

	// the timeout keeps a second process from blocking forever on the file lock
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: openTimeout})
	if errors.Is(err, bbolt.ErrTimeout) {
		return nil, errors.WrapWithContext(err, errors.CodeLocked, "journal is in use by another process",
			map[string]any{"path": path})
	}
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeInternal, "failed to open journal",
			map[string]any{"path": path})
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to create journal bucket")
	}

	j := &Journal{db: db, maxEntries: DefaultMaxEntries}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Recorder records into the journal at a path, holding the database only
// while an entry is written. Other processes can read the history during a
// long synchronization.
type Recorder struct {
	path string
	opts []Option
}

// NewRecorder returns a Recorder for the journal at path.
func NewRecorder(path string, opts ...Option) *Recorder {
	return &Recorder{path: path, opts: opts}
}

// Record opens the journal, appends e and closes it again.
func (r *Recorder) Record(e Entry) error {
	j, err := Open(r.path, r.opts...)
	if err != nil {
		return err
	}
	if err := j.Record(e); err != nil {
		_ = j.Close()
		return err
	}
	return j.Close()
}

// Close releases the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// key orders entries by start time, then run id.
func key(e Entry) []byte {
	k := make([]byte, 8, 8+len(e.RunID))
	binary.BigEndian.PutUint64(k, uint64(e.Started.UnixNano()))
	return append(k, e.RunID...)
}

// Record appends e and prunes the oldest entries beyond the bound.
func (j *Journal) Record(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to encode journal entry")
	}

	err = j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))
		if err := b.Put(key(e), data); err != nil {
			return err
		}

		if j.maxEntries <= 0 {
			return nil
		}
		c := b.Cursor()
		excess := -j.maxEntries
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			excess++
		}
		for k, _ := c.First(); k != nil && excess > 0; k, _ = c.First() {
			if err := c.Delete(); err != nil {
				return err
			}
			excess--
		}
		return nil
	})
	if err != nil {
		return errors.WrapWithContext(err, errors.CodeInternal, "failed to record run",
			map[string]any{"run_id": e.RunID})
	}
	return nil
}

// List returns up to limit entries, newest first. A limit of zero or less
// returns everything.
func (j *Journal) List(limit int) ([]Entry, error) {
	var entries []Entry

	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode entry %x: %w", k, err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to list runs")
	}
	return entries, nil
}

// Last returns the most recent entry, or nil if the journal is empty.
func (j *Journal) Last() (*Entry, error) {
	entries, err := j.List(1)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}
