// Package history provides Badger DB-backed storage for the sync round
// log. Every push records one entry so users can audit what was sent,
// when, and what the remote said about it.
package history

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// keyPrefix namespaces round entries so the database can grow other data
// later without a migration.
const keyPrefix = "r:"

// Entry records one sync round.
type Entry struct {
	RequestID    string    `json:"request_id"`
	Timestamp    time.Time `json:"timestamp"`
	Branch       string    `json:"branch"`
	ChangedFiles int       `json:"changed_files"`
	Warnings     int       `json:"warnings"`
	Committed    bool      `json:"committed"`
}

// Log is the sync history backed by Badger DB.
type Log struct {
	db *badger.DB
}

// Open opens or creates a history log at the given path.
func Open(path string) (*Log, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	return &Log{db: db}, nil
}

// Close closes the log.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record stores a round entry keyed by request id.
func (l *Log) Record(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding history entry: %w", err)
	}

	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+entry.RequestID), data)
	})
}

// Get retrieves a round entry by request id.
func (l *Log) Get(requestID string) (*Entry, error) {
	var entry Entry

	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + requestID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("loading history entry %s: %w", requestID, err)
	}
	return &entry, nil
}

// MarkCommitted flags a recorded round as committed.
func (l *Log) MarkCommitted(requestID string) error {
	entry, err := l.Get(requestID)
	if err != nil {
		return err
	}
	entry.Committed = true
	return l.Record(*entry)
}

// List returns round entries sorted newest first. A non-positive limit
// returns all entries.
func (l *Log) List(limit int) ([]Entry, error) {
	var entries []Entry

	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var entry Entry
				if err := json.Unmarshal(val, &entry); err != nil {
					return nil // skip invalid entries
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Cleanup removes entries older than retentionDays.
func (l *Log) Cleanup(retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	return l.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		var stale [][]byte
		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			err := it.Item().Value(func(val []byte) error {
				var entry Entry
				if err := json.Unmarshal(val, &entry); err != nil {
					stale = append(stale, key)
					return nil
				}
				if entry.Timestamp.Before(cutoff) {
					stale = append(stale, key)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}
