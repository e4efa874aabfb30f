// Package fndiff infers added, deleted, and renamed top-level functions
// between two snapshots of the aggregate custom-functions document.
//
// Matching is greedy and order-dependent: deleted functions are processed
// in baseline order, each consuming its best-scoring candidate from the
// shared pool of added functions. This is deliberately not a global
// optimum; the remote may depend on the exact pairing order, so the greedy
// semantics must not be "improved".
package fndiff

import (
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/jamesainslie/flowsync/pkg/flowsync/dart"
)

// MinSimilarity is the lowest body-similarity score accepted as evidence
// of a rename. Pairs scoring below it are treated as an independent
// delete plus add.
const MinSimilarity = 0.5

// Rename records one inferred function rename.
type Rename struct {
	OldName string `json:"oldName"`
	NewName string `json:"newName"`

	// BySymbol is false for similarity-based matches; reserved for callers
	// that pair functions by an explicit symbol signal instead.
	BySymbol bool `json:"bySymbol"`
}

// Result is the outcome of diffing two snapshots.
type Result struct {
	Renamed []Rename `json:"renamed"`
	Deleted []string `json:"deleted"`
	Added   []string `json:"added"`
}

// Empty reports whether the diff found no changes.
func (r Result) Empty() bool {
	return len(r.Renamed) == 0 && len(r.Deleted) == 0 && len(r.Added) == 0
}

// Diff compares the baseline snapshot (content at last confirmed sync)
// against the current snapshot and classifies every function-level change.
func Diff(baseline, current string) Result {
	base := dart.ParseFunctions(baseline)
	live := dart.ParseFunctions(current)

	liveByName := make(map[string]string, len(live))
	for _, fn := range live {
		liveByName[fn.Name] = fn.Body
	}
	baseByName := make(map[string]string, len(base))
	for _, fn := range base {
		baseByName[fn.Name] = fn.Body
	}

	// Candidate pools in snapshot order; order determines greedy pairing.
	var deleted []dart.Function
	for _, fn := range base {
		if _, ok := liveByName[fn.Name]; !ok {
			deleted = append(deleted, fn)
		}
	}
	var added []dart.Function
	for _, fn := range live {
		if _, ok := baseByName[fn.Name]; !ok {
			added = append(added, fn)
		}
	}

	var result Result
	matched := make(map[int]bool, len(added))

	for _, old := range deleted {
		bestIdx := -1
		bestScore := 0.0
		for i, cand := range added {
			if matched[i] {
				continue
			}
			score, ok := similarity(old.Body, cand.Body)
			// Ties break toward the first-encountered candidate.
			if ok && score > bestScore {
				bestIdx, bestScore = i, score
			}
		}

		if bestIdx >= 0 && bestScore >= MinSimilarity {
			matched[bestIdx] = true
			result.Renamed = append(result.Renamed, Rename{
				OldName: old.Name,
				NewName: added[bestIdx].Name,
			})
			continue
		}
		result.Deleted = append(result.Deleted, old.Name)
	}

	for i, fn := range added {
		if !matched[i] {
			result.Added = append(result.Added, fn.Name)
		}
	}

	return result
}

// similarity scores two function bodies in [0,1], symmetric and
// deterministic. A pair of empty bodies is incomparable.
func similarity(a, b string) (float64, bool) {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0, false
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)
	distance := dmp.DiffLevenshtein(diffs)

	return 1 - float64(distance)/float64(longest), true
}
