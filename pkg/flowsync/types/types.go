// Package types provides core data types for the flowsync engine.
// It includes the tracked-file record, the file category taxonomy, and
// helpers for deriving identifier names from file names.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Category classifies a tracked file. It is fixed at record creation and
// determines the file's on-disk root and index-document membership.
type Category string

// Tracked file categories.
const (
	CategoryAction     Category = "action"
	CategoryWidget     Category = "widget"
	CategoryFunction   Category = "function"
	CategoryDependency Category = "dependency"
	CategoryOther      Category = "other"
)

// ErrUnknownCategory indicates a category string that is not part of the
// taxonomy.
var ErrUnknownCategory = errors.New("unknown category")

// ParseCategory parses a category string as stored in the state snapshot.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(s)) {
	case CategoryAction:
		return CategoryAction, nil
	case CategoryWidget:
		return CategoryWidget, nil
	case CategoryFunction:
		return CategoryFunction, nil
	case CategoryDependency:
		return CategoryDependency, nil
	case CategoryOther:
		return CategoryOther, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
}

// HasIndex reports whether files of this category are listed in an export
// index document.
func (c Category) HasIndex() bool {
	return c == CategoryAction || c == CategoryWidget
}

// String returns the snapshot representation of the category.
func (c Category) String() string {
	return string(c)
}

// FileRecord is the metadata kept for one tracked file. Records are keyed
// by file name, or by project-relative path for CategoryOther.
type FileRecord struct {
	// OldName is the identifier the file exported as of the last commit.
	OldName string `json:"oldIdentifierName"`

	// NewName is the identifier the file exports in the current edit
	// session. Equal to OldName until a rename is inferred.
	NewName string `json:"newIdentifierName"`

	// Category is fixed at creation and never reassigned.
	Category Category `json:"category"`

	// Deleted marks the record for removal at the next commit. A deleted
	// record stays in the store so that recreating the file before the
	// commit acts as an undelete.
	Deleted bool `json:"deleted"`

	// OriginalChecksum is the content digest as of the last commit.
	// Empty until first computed.
	OriginalChecksum string `json:"originalChecksum,omitempty"`

	// CurrentChecksum is the content digest of the live file. Empty until
	// first computed.
	CurrentChecksum string `json:"currentChecksum,omitempty"`
}

// Dirty reports whether the record's content differs from the last commit.
func (r *FileRecord) Dirty() bool {
	return r.CurrentChecksum != r.OriginalChecksum
}

// Clone returns a copy of the record.
func (r *FileRecord) Clone() *FileRecord {
	cp := *r
	return &cp
}

// Warning is an opaque per-file diagnostic returned by the remote. The
// engine routes warnings to the caller without inspecting their fields.
type Warning = json.RawMessage

// WarningMap maps a file name to the warnings the remote reported for it.
type WarningMap map[string][]Warning

// DeriveIdentifier derives the implied identifier name for a newly added
// file of the given category: widgets get a type-style (PascalCase) name,
// everything else a function-style (camelCase) name. The ".dart" suffix
// and any directory prefix are stripped before conversion.
func DeriveIdentifier(filename string, category Category) string {
	base := filename
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, ".dart")

	parts := strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	if len(parts) == 0 {
		return ""
	}

	var b strings.Builder
	for i, p := range parts {
		if i == 0 && category != CategoryWidget {
			b.WriteString(strings.ToLower(p[:1]) + p[1:])
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	return b.String()
}
