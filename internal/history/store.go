// Package history keeps a revisioned record of report cycles in bbolt.
package history

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"

	"github.com/yairfalse/nodefacts/internal/report"
)

// Bucket names in bbolt
var (
	bucketCycles = []byte("cycles")
	bucketMeta   = []byte("meta")

	keyCurrentRevision = []byte("current_revision")
)

// DefaultTimeout bounds the wait for the database file lock.
const DefaultTimeout = time.Second

var (
	// ErrNotFound is returned when a revision or node is not recorded.
	ErrNotFound = errors.New("not found")

	// ErrLocked is returned when another process holds the database open
	// for writing.
	ErrLocked = errors.New("history database locked by another process")
)

// Entry is one recorded report cycle.
type Entry struct {
	Revision      int64         `json:"revision"`
	ID            string        `json:"id"`
	Node          string        `json:"node"`
	Path          string        `json:"path"`
	SaveTime      time.Time     `json:"save_time"`
	RecordedAt    time.Time     `json:"recorded_at"`
	Keys          int           `json:"keys"`
	NodeLines     int           `json:"node_lines"`
	RunLines      int           `json:"run_lines"`
	ResourceLines int           `json:"resource_lines"`
	RunSuccessful bool          `json:"run_successful"`
	Duration      time.Duration `json:"duration"`
	Files         []string      `json:"files,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// Failed reports whether the recorded cycle failed.
func (e Entry) Failed() bool {
	return e.Error != ""
}

// NodeState summarises the recorded cycles of one node.
type NodeState struct {
	Node           string
	FirstRev       int64
	LastRev        int64
	LastSuccessRev int64
	Cycles         int
	Failures       int
	Keys           int
	LastSaveTime   time.Time
}

// Store persists cycle entries keyed by revision. An in-memory btree
// indexes the entries by node.
type Store struct {
	mu sync.RWMutex

	index *btree.BTreeG[*NodeState]
	db    *bbolt.DB

	currentRev int64
	retain     int64
	readOnly   bool
	timeout    time.Duration
	now        func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithRetain compacts the store down to the newest n revisions after every
// emitted cycle. Zero keeps everything.
func WithRetain(n int64) Option {
	return func(s *Store) { s.retain = n }
}

// WithReadOnly opens an existing database for reading only. Readers share
// the file lock with each other but not with a writer.
func WithReadOnly() Option {
	return func(s *Store) { s.readOnly = true }
}

// WithTimeout sets how long Open waits for the file lock.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// WithClock replaces time.Now for RecordedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens or creates the history database at path. It fails with
// ErrLocked when the lock cannot be taken within the timeout.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		index:   newIndex(),
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	if !s.readOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: s.timeout, ReadOnly: s.readOnly})
	if errors.Is(err, berrors.ErrTimeout) {
		return nil, fmt.Errorf("open %s: %w", path, ErrLocked)
	}
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	s.db = db

	if !s.readOnly {
		err = db.Update(func(tx *bbolt.Tx) error {
			for _, bucket := range [][]byte{bucketCycles, bucketMeta} {
				if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create buckets: %w", err)
		}
	}

	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Emit records the cycle and applies the retention limit. It satisfies
// report.Sink.
func (s *Store) Emit(ctx context.Context, result report.Result) error {
	entry, err := s.Record(result)
	if err != nil {
		return err
	}

	log.Debug().Ctx(ctx).
		Int64("revision", entry.Revision).
		Str("node", entry.Node).
		Msg("recorded report cycle")

	if s.retain > 0 {
		removed, err := s.Compact(s.retain)
		if err != nil {
			return err
		}
		if removed > 0 {
			log.Debug().Ctx(ctx).Int("removed", removed).Msg("compacted history")
		}
	}
	return nil
}

// Record stores result under the next revision.
func (s *Store) Record(result report.Result) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := entryFromResult(result)
	entry.Revision = s.currentRev + 1
	entry.RecordedAt = s.now().UTC()

	value, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("encode entry: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketCycles).Put(revisionKey(entry.Revision), value); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyCurrentRevision, revisionKey(entry.Revision))
	})
	if err != nil {
		return Entry{}, fmt.Errorf("record cycle: %w", err)
	}

	s.currentRev = entry.Revision
	s.updateIndex(entry)

	return entry, nil
}

// Get returns the entry recorded under revision.
func (s *Store) Get(revision int64) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entry Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketCycles).Get(revisionKey(revision))
		if value == nil {
			return fmt.Errorf("revision %d: %w", revision, ErrNotFound)
		}
		return json.Unmarshal(value, &entry)
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// List returns entries newest first. An empty node matches every node;
// limit <= 0 returns all matches.
func (s *Store) List(node string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketCycles).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("decode revision %d: %w", revisionFromKey(k), err)
			}
			if node != "" && entry.Node != node {
				continue
			}
			entries = append(entries, entry)
			if limit > 0 && len(entries) == limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Nodes returns the state of every recorded node, ordered by name.
func (s *Store) Nodes() []NodeState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]NodeState, 0, s.index.Len())
	s.index.Ascend(func(state *NodeState) bool {
		nodes = append(nodes, *state)
		return true
	})
	return nodes
}

// Node returns the state of one node.
func (s *Store) Node(name string) (NodeState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, found := s.index.Get(&NodeState{Node: name})
	if !found {
		return NodeState{}, fmt.Errorf("node %s: %w", name, ErrNotFound)
	}
	return *state, nil
}

// CurrentRevision returns the latest revision number.
func (s *Store) CurrentRevision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRev
}

// Compact removes all but the newest retain revisions and returns how many
// entries were deleted. Revision numbers are never reused.
func (s *Store) Compact(retain int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.currentRev - retain
	if retain < 0 || cutoff <= 0 {
		return 0, nil
	}

	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCycles)
		c := bucket.Cursor()

		var toDelete [][]byte
		for k, _ := c.First(); k != nil && revisionFromKey(k) <= cutoff; k, _ = c.Next() {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}

		for _, key := range toDelete {
			if err := bucket.Delete(key); err != nil {
				return err
			}
		}
		removed = len(toDelete)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("compact history: %w", err)
	}

	if removed > 0 {
		if err := s.rebuildIndex(); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func newIndex() *btree.BTreeG[*NodeState] {
	return btree.NewG[*NodeState](32, func(a, b *NodeState) bool {
		return a.Node < b.Node
	})
}

func (s *Store) load() error {
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyCurrentRevision)
		if data != nil {
			s.currentRev = revisionFromKey(data)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load revision: %w", err)
	}
	return s.rebuildIndex()
}

// rebuildIndex recomputes the node index from the stored entries.
func (s *Store) rebuildIndex() error {
	s.index = newIndex()
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCycles).ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("decode revision %d: %w", revisionFromKey(k), err)
			}
			s.updateIndex(entry)
			return nil
		})
	})
}

func (s *Store) updateIndex(entry Entry) {
	state, found := s.index.Get(&NodeState{Node: entry.Node})
	if !found {
		state = &NodeState{Node: entry.Node, FirstRev: entry.Revision}
	}

	state.LastRev = entry.Revision
	state.Cycles++
	if entry.Failed() {
		state.Failures++
	} else {
		state.LastSuccessRev = entry.Revision
		state.Keys = entry.Keys
		state.LastSaveTime = entry.SaveTime
	}

	s.index.ReplaceOrInsert(state)
}

func entryFromResult(r report.Result) Entry {
	entry := Entry{
		ID:            r.ID,
		Node:          r.Node,
		Path:          r.Path,
		SaveTime:      r.SaveTime,
		Keys:          r.Keys,
		NodeLines:     r.NodeLines,
		RunLines:      r.RunLines,
		ResourceLines: r.ResourceLines,
		RunSuccessful: r.RunSuccessful,
		Duration:      r.Duration,
		Files:         r.Files,
	}
	if r.Err != nil {
		entry.Error = r.Err.Error()
	}
	return entry
}

// revisionKey encodes big-endian so byte order matches revision order.
func revisionKey(rev int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(rev))
	return key
}

func revisionFromKey(key []byte) int64 {
	if len(key) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(key))
}
