// Package detector turns filesystem mutation events into tracked-file
// state transitions. It owns the decision of whether an event is a fresh
// add, a content change, a rename, or a deletion, and runs the rename
// tie-break between a file's declarations and its export index entry.
package detector

import (
	"errors"
	"fmt"
	"os"

	"github.com/jamesainslie/flowsync/pkg/flowsync/checksum"
	"github.com/jamesainslie/flowsync/pkg/flowsync/dart"
	"github.com/jamesainslie/flowsync/pkg/flowsync/index"
	"github.com/jamesainslie/flowsync/pkg/flowsync/logging"
	"github.com/jamesainslie/flowsync/pkg/flowsync/project"
	"github.com/jamesainslie/flowsync/pkg/flowsync/state"
	"github.com/jamesainslie/flowsync/pkg/flowsync/types"
)

// ErrCrossCategoryRename is returned when a rename event moves a file
// between category roots, which the state model forbids.
var ErrCrossCategoryRename = errors.New("rename across categories")

// Detector orchestrates the checksum service, the index store, and the
// file state store for one project. Callers serialize all Handle* calls.
type Detector struct {
	store  *state.Store
	layout project.Layout
	format index.Formatter
	log    *logging.Logger
}

// New creates a Detector. A nil formatter leaves rendered index documents
// unformatted.
func New(store *state.Store, layout project.Layout, format index.Formatter) *Detector {
	return &Detector{
		store:  store,
		layout: layout,
		format: format,
		log:    logging.Get("detector"),
	}
}

// HandleAdd processes a file creation event. Re-adding a file that already
// has a record of the same category degrades to an update, so replayed
// create events are idempotent.
func (d *Detector) HandleAdd(path string) error {
	if d.store.Paused() {
		return nil
	}

	category, key, err := d.layout.Classify(path)
	if err != nil || key == "" {
		// Untracked file or an index document the engine itself rewrites.
		return nil
	}

	if existing, ok := d.store.Get(key); ok {
		if existing.Category != category {
			return fmt.Errorf("add %s: key tracked as %s, event classifies as %s", key, existing.Category, category)
		}
		return d.HandleUpdate(path)
	}

	sum, err := checksum.SumFile(d.layout.Path(category, key))
	if err != nil {
		return fmt.Errorf("add %s: %w", key, err)
	}

	// OriginalChecksum stays empty until the first commit, so a fresh file
	// is dirty from the moment it is tracked.
	name := types.DeriveIdentifier(key, category)
	d.store.Add(key, &types.FileRecord{
		OldName:         name,
		NewName:         name,
		Category:        category,
		CurrentChecksum: sum,
	})
	d.log.Info("tracking new file", "key", key, "category", category, "name", name)

	if category.HasIndex() {
		doc, err := d.readIndex(category)
		if err != nil {
			return err
		}
		doc[key] = []string{name}
		if err := d.writeIndex(category, doc); err != nil {
			return err
		}
	}

	if err := d.store.Persist(); err != nil {
		return err
	}
	return d.store.Publish(key)
}

// HandleUpdate processes a file modification event. The checksum gate runs
// before anything else: an unchanged digest means no rename inference, no
// persistence, and no notification.
func (d *Detector) HandleUpdate(path string) error {
	if d.store.Paused() {
		return nil
	}

	category, key, err := d.layout.Classify(path)
	if err != nil || key == "" {
		return nil
	}

	record, ok := d.store.Get(key)
	if !ok {
		// First sighting arrives as a write on some editors; the aggregate
		// functions record in particular is created implicitly.
		if err := d.HandleAdd(path); err != nil {
			return err
		}
		if record, ok = d.store.Get(key); !ok {
			return nil
		}
	}

	abs := d.layout.Path(category, key)
	sum, err := checksum.SumFile(abs)
	if err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}

	d.store.Update(key, func(r *types.FileRecord) {
		r.CurrentChecksum = sum
	})
	if sum == record.OriginalChecksum {
		return nil
	}
	d.store.Update(key, func(r *types.FileRecord) {
		r.Deleted = false
	})

	if category.HasIndex() {
		if err := d.inferRename(category, key, record, abs); err != nil {
			return err
		}
	}

	if err := d.store.Persist(); err != nil {
		return err
	}
	return d.store.Publish(key)
}

// HandleDelete processes a file removal event. The aggregate functions
// document is one shared file and cannot be removed independently.
func (d *Detector) HandleDelete(path string) error {
	if d.store.Paused() {
		return nil
	}

	category, key, err := d.layout.Classify(path)
	if err != nil || key == "" {
		return nil
	}

	if _, ok := d.store.Get(key); !ok {
		return nil
	}
	if err := d.store.SoftDelete(key); err != nil {
		return err
	}
	d.log.Info("staged deletion", "key", key, "category", category)

	if category.HasIndex() {
		doc, err := d.readIndex(category)
		if err != nil {
			return err
		}
		if _, ok := doc[key]; ok {
			delete(doc, key)
			if err := d.writeIndex(category, doc); err != nil {
				return err
			}
		}
	}

	if err := d.store.Persist(); err != nil {
		return err
	}
	return d.store.Publish(key)
}

// HandleRename relocates a record to a new key. Checksums and index
// documents are untouched; a subsequent update event runs the identifier
// tie-break if the content also changed.
func (d *Detector) HandleRename(oldPath, newPath string) error {
	oldCategory, oldKey, err := d.layout.Classify(oldPath)
	if err != nil || oldKey == "" {
		return nil
	}
	newCategory, newKey, err := d.layout.Classify(newPath)
	if err != nil || newKey == "" {
		return nil
	}
	if oldCategory != newCategory {
		return fmt.Errorf("%w: %s -> %s", ErrCrossCategoryRename, oldPath, newPath)
	}

	if _, ok := d.store.Get(oldKey); !ok {
		return nil
	}
	d.store.Rename(oldKey, newKey)
	d.log.Info("record renamed", "from", oldKey, "to", newKey)

	if err := d.store.Persist(); err != nil {
		return err
	}
	return d.store.Publish(newKey)
}

// inferRename runs the rename tie-break for an indexed file and applies
// the result to the record and, when stale, the index document.
func (d *Detector) inferRename(category types.Category, key string, record *types.FileRecord, abs string) error {
	content, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	decls := dart.TopLevelDeclarations(string(content))

	doc, err := d.readIndex(category)
	if err != nil {
		return err
	}
	indexName, ok := doc.Shown(key)
	if !ok {
		d.log.Warn("no index entry, skipping rename inference", "key", key, "category", category)
		return nil
	}

	newName, renamed := resolveRename(decls, indexName, record.NewName)
	if !renamed {
		return nil
	}

	d.log.Info("rename inferred", "key", key, "old", record.NewName, "new", newName)
	record.NewName = newName

	if indexName != newName {
		exports := append([]string{newName}, doc[key][1:]...)
		doc[key] = exports
		if err := d.writeIndex(category, doc); err != nil {
			return err
		}
	}
	return nil
}

// resolveRename decides whether the file's symbol was renamed, given the
// file's top-level declarations, the index's recorded export, and the
// record's previously known name.
//
// Decision table over (indexName == fileName, indexName == previousName):
//
//	both        -> unchanged
//	first only  -> renamed; index already reflects it
//	second only -> renamed; index is stale and must be rewritten
//	neither     -> ambiguous; conservatively unchanged
func resolveRename(decls []string, indexName, previousName string) (string, bool) {
	fileName := ""
	switch {
	case contains(decls, indexName):
		fileName = indexName
	case contains(decls, previousName):
		fileName = previousName
	case len(decls) > 0:
		// Neither known name appears: arbitrary tie-break on the first
		// declaration, flagging an ambiguous state.
		fileName = decls[0]
	default:
		return "", false
	}

	switch {
	case indexName == fileName && indexName == previousName:
		return "", false
	case indexName == fileName:
		return fileName, true
	case indexName == previousName && fileName != previousName:
		return fileName, true
	default:
		// Index edited independently of the file, or several renames at
		// once. Precision over recall: report unchanged.
		logging.Get("detector").Warn("ambiguous rename state, keeping previous name",
			"index", indexName, "file", fileName, "previous", previousName)
		return "", false
	}
}

// readIndex loads and parses the category's index document. A missing
// document is an empty mapping.
func (d *Detector) readIndex(category types.Category) (index.Document, error) {
	path, err := d.layout.IndexPath(category)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return index.Document{}, nil
		}
		return nil, fmt.Errorf("reading index document: %w", err)
	}
	doc, err := index.Parse(string(data))
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// writeIndex renders and rewrites the category's index document.
func (d *Detector) writeIndex(category types.Category, doc index.Document) error {
	path, err := d.layout.IndexPath(category)
	if err != nil {
		return err
	}
	text, err := index.Render(doc, d.format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing index document: %w", err)
	}
	return nil
}

func contains(names []string, want string) bool {
	if want == "" {
		return false
	}
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}
