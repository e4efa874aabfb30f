// Package state implements the authoritative tracked-file state store: a
// map from file key to FileRecord with staged deletion, an explicit commit
// that rebases baselines and purges deletions, and a durable JSON snapshot.
//
// The store is single-writer by contract. Callers serialize all mutating
// calls; there is no internal locking. A pause flag turns the mutating
// entry points into no-ops so bulk programmatic edits do not echo back
// into the store.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/flowsync/pkg/flowsync/checksum"
	"github.com/jamesainslie/flowsync/pkg/flowsync/logging"
	"github.com/jamesainslie/flowsync/pkg/flowsync/types"
)

// ErrUndeletable is returned when soft-deleting the aggregate functions
// record, which is one shared document rather than a per-file artifact.
var ErrUndeletable = errors.New("aggregate functions record cannot be deleted")

// ErrMalformedSnapshot indicates a state snapshot that could not be parsed.
// The raw text is preserved in the wrapped error.
var ErrMalformedSnapshot = errors.New("malformed state snapshot")

// Observer receives a synchronous notification after a mutation has been
// persisted. An observer error propagates to the caller of the triggering
// operation, but the snapshot on disk is already current by then.
type Observer interface {
	StateChanged(key string) error
}

// Resolver maps a record key and category to the file's absolute on-disk
// location, used to backfill missing checksums at load time.
type Resolver func(category types.Category, key string) string

// Store holds the tracked-file records and their durable snapshot.
type Store struct {
	path      string
	resolve   Resolver
	records   map[string]*types.FileRecord
	observers []Observer
	paused    bool
}

// New creates an empty store persisting to the given snapshot path.
func New(path string, resolve Resolver) *Store {
	return &Store{
		path:    path,
		resolve: resolve,
		records: make(map[string]*types.FileRecord),
	}
}

// Pause suppresses Add, Update, and SoftDelete until Resume. Suppressed
// mutations are dropped, not queued.
func (s *Store) Pause() { s.paused = true }

// Resume re-enables mutations.
func (s *Store) Resume() { s.paused = false }

// Paused reports whether mutation suppression is active.
func (s *Store) Paused() bool { return s.paused }

// Subscribe registers an observer for post-persist change notifications.
func (s *Store) Subscribe(o Observer) {
	s.observers = append(s.observers, o)
}

// Unsubscribe removes a previously registered observer.
func (s *Store) Unsubscribe(o Observer) {
	for i, existing := range s.observers {
		if existing == o {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// Publish notifies all observers of a change to key. The first observer
// error aborts the remaining notifications and is returned.
func (s *Store) Publish(key string) error {
	for _, o := range s.observers {
		if err := o.StateChanged(key); err != nil {
			return fmt.Errorf("observer for %s: %w", key, err)
		}
	}
	return nil
}

// Add inserts a new record. It is a silent no-op while the store is paused.
func (s *Store) Add(key string, record *types.FileRecord) {
	if s.paused {
		return
	}
	s.records[key] = record
}

// Get returns the record for key, or false when absent.
func (s *Store) Get(key string) (*types.FileRecord, bool) {
	r, ok := s.records[key]
	return r, ok
}

// Update applies mutate to the record in place. It is a no-op when the key
// is absent or the store is paused.
func (s *Store) Update(key string, mutate func(*types.FileRecord)) {
	if s.paused {
		return
	}
	if r, ok := s.records[key]; ok {
		mutate(r)
	}
}

// SoftDelete stages a record for removal at the next commit. Deleting the
// aggregate functions record is a policy error and mutates nothing.
func (s *Store) SoftDelete(key string) error {
	if s.paused {
		return nil
	}
	r, ok := s.records[key]
	if !ok {
		return nil
	}
	if r.Category == types.CategoryFunction {
		return fmt.Errorf("%s: %w", key, ErrUndeletable)
	}
	r.Deleted = true
	return nil
}

// Rename moves a record to a new key. Pure bookkeeping: no checksum is
// recomputed and no index document is touched.
func (s *Store) Rename(oldKey, newKey string) {
	r, ok := s.records[oldKey]
	if !ok {
		return
	}
	delete(s.records, oldKey)
	s.records[newKey] = r
}

// Commit rebases every record's baselines to its current state, purges
// records staged for deletion, and persists the snapshot. It marks a sync
// round as confirmed and is only ever invoked by the caller once the
// remote accepted the round.
func (s *Store) Commit() error {
	for key, r := range s.records {
		if r.Deleted {
			delete(s.records, key)
			continue
		}
		r.OriginalChecksum = r.CurrentChecksum
		r.OldName = r.NewName
	}
	return s.Persist()
}

// Records returns a copy of the current record map. Dependency-category
// records can be excluded for payload snapshots.
func (s *Store) Records(includeDependencies bool) map[string]*types.FileRecord {
	out := make(map[string]*types.FileRecord, len(s.records))
	for key, r := range s.records {
		if !includeDependencies && r.Category == types.CategoryDependency {
			continue
		}
		out[key] = r.Clone()
	}
	return out
}

// Len returns the number of records, staged deletions included.
func (s *Store) Len() int { return len(s.records) }

// Persist writes the snapshot as pretty-printed JSON, atomically via a
// temp file and rename.
func (s *Store) Persist() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing state snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing state snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot from disk. A missing snapshot yields an empty
// store. Every loaded record must carry both checksums; absent ones are
// backfilled by rehashing the referenced file when it still exists.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.records = make(map[string]*types.FileRecord)
			return nil
		}
		return fmt.Errorf("reading state snapshot: %w", err)
	}

	records := make(map[string]*types.FileRecord)
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedSnapshot, string(data))
	}
	// A null entry survives Unmarshal as a nil record; that is a corrupt
	// snapshot, not a loadable state.
	for key, r := range records {
		if r == nil {
			return fmt.Errorf("%w: null record for %s: %s", ErrMalformedSnapshot, key, string(data))
		}
	}

	log := logging.Get("state")
	for key, r := range records {
		if r.OriginalChecksum != "" && r.CurrentChecksum != "" {
			continue
		}
		if s.resolve == nil {
			continue
		}
		sum, err := checksum.SumFile(s.resolve(r.Category, key))
		if err != nil {
			log.Warn("cannot backfill checksum", "key", key, "error", err)
			continue
		}
		if r.OriginalChecksum == "" {
			r.OriginalChecksum = sum
		}
		if r.CurrentChecksum == "" {
			r.CurrentChecksum = sum
		}
	}

	s.records = records
	return nil
}
