// Package index parses and renders export index documents. One document
// exists per indexed category (actions, widgets) and declares, per tracked
// file, the ordered list of symbol names it exports. Only the first name is
// load-bearing for rename detection; the rest pass through untouched.
package index

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Placeholder is emitted instead of an empty document so the file remains
// valid source.
const Placeholder = "// No exports registered yet."

// ErrMalformed indicates a document line that is neither an export
// statement, a comment, nor blank. The raw document is preserved in the
// wrapped error for diagnostics.
var ErrMalformed = errors.New("malformed index document")

// exportPattern matches statements of the form:
//
//	export 'my_action.dart' show myAction, helperThing;
var exportPattern = regexp.MustCompile(`^export\s+'([^']+)'\s+show\s+([^;]+);$`)

// Document maps a file name to its ordered exported symbol names.
type Document map[string][]string

// Formatter post-processes rendered document text. The engine treats code
// formatting as an external concern; Identity is used when none is wired.
type Formatter func(src string) (string, error)

// Identity returns the source unchanged, with a trailing newline ensured.
func Identity(src string) (string, error) {
	if !strings.HasSuffix(src, "\n") {
		src += "\n"
	}
	return src, nil
}

// Parse extracts the filename-to-exports mapping from document text. An
// empty or absent document parses to an empty mapping. Comment and blank
// lines are ignored; any other unrecognized line fails the parse.
func Parse(text string) (Document, error) {
	doc := make(Document)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		m := exportPattern.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformed, text)
		}

		names := strings.Split(m[2], ",")
		exports := make([]string, 0, len(names))
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				exports = append(exports, n)
			}
		}
		doc[m[1]] = exports
	}
	return doc, nil
}

// Render emits one export statement per entry, sorted by file name for
// deterministic rewrites, and passes the result through the formatter.
// An empty mapping renders the placeholder comment.
func Render(doc Document, format Formatter) (string, error) {
	if format == nil {
		format = Identity
	}
	if len(doc) == 0 {
		return format(Placeholder)
	}

	files := make([]string, 0, len(doc))
	for f := range doc {
		files = append(files, f)
	}
	sort.Strings(files)

	lines := make([]string, 0, len(files))
	for _, f := range files {
		lines = append(lines, fmt.Sprintf("export '%s' show %s;", f, strings.Join(doc[f], ", ")))
	}

	out, err := format(strings.Join(lines, "\n"))
	if err != nil {
		return "", fmt.Errorf("formatting index document: %w", err)
	}
	return out, nil
}

// Shown returns the first (semantically significant) export for a file, or
// false when the file has no entry or an empty export list.
func (d Document) Shown(filename string) (string, bool) {
	exports, ok := d[filename]
	if !ok || len(exports) == 0 {
		return "", false
	}
	return exports[0], true
}
