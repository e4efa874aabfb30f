package fndiff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baselineDoc = `String alpha() {
  return 'AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA';
}

String beta() {
  return 'AAAAAAAAAAAAAAAAAAAAAAAAAAAABBBBBBBBBBBB';
}
`

func TestDiff_Idempotent(t *testing.T) {
	t.Parallel()

	assert.True(t, Diff(baselineDoc, baselineDoc).Empty(), "identical snapshots must diff empty")
	assert.True(t, Diff("", "").Empty(), "empty snapshots must diff empty")
}

func TestDiff_AddAndDelete(t *testing.T) {
	t.Parallel()

	t.Run("pure addition", func(t *testing.T) {
		t.Parallel()
		current := baselineDoc + `
int countWords(String text) {
  return text.split(' ').length;
}
`
		result := Diff(baselineDoc, current)
		assert.Empty(t, result.Renamed)
		assert.Empty(t, result.Deleted)
		assert.Equal(t, []string{"countWords"}, result.Added)
	})

	t.Run("pure deletion", func(t *testing.T) {
		t.Parallel()
		current := `String alpha() {
  return 'AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA';
}
`
		result := Diff(baselineDoc, current)
		assert.Empty(t, result.Renamed)
		assert.Empty(t, result.Added)
		assert.Equal(t, []string{"beta"}, result.Deleted)
	})

	t.Run("dissimilar replacement is delete plus add", func(t *testing.T) {
		t.Parallel()
		base := `String alpha() {
  return 'AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA';
}
`
		current := `List<int> fib(int n) => n < 2 ? [0] : [1, 1, 2, 3, 5, 8, 13, 21, 34, 55];
`
		result := Diff(base, current)
		assert.Empty(t, result.Renamed, "pairs below the similarity floor must not match")
		assert.Equal(t, []string{"alpha"}, result.Deleted)
		assert.Equal(t, []string{"fib"}, result.Added)
	})
}

func TestDiff_SimpleRename(t *testing.T) {
	t.Parallel()

	current := `String alphaRenamed() {
  return 'AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA';
}

String beta() {
  return 'AAAAAAAAAAAAAAAAAAAAAAAAAAAABBBBBBBBBBBB';
}
`
	result := Diff(baselineDoc, current)
	assert.Empty(t, result.Deleted)
	assert.Empty(t, result.Added)
	require.Len(t, result.Renamed, 1)

	r := result.Renamed[0]
	assert.Equal(t, "alpha", r.OldName)
	assert.Equal(t, "alphaRenamed", r.NewName)
	assert.False(t, r.BySymbol, "similarity match must not flag BySymbol")
}

// TestDiff_GreedyPoolConsumption pins the order-dependent pairing: alpha is
// processed first and takes the candidate that scores highest for it, even
// though that candidate is the closer match for beta's successor name. Beta
// then pairs with what remains in the pool.
func TestDiff_GreedyPoolConsumption(t *testing.T) {
	t.Parallel()

	current := `String alphaNext() {
  return 'AAAAAAAAAAAAAAAAAAAAAAAAAAAACCCCCCCCCCCC';
}

String betaNext() {
  return 'AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAB';
}
`
	result := Diff(baselineDoc, current)
	assert.Empty(t, result.Deleted)
	assert.Empty(t, result.Added)
	require.Len(t, result.Renamed, 2)

	// alpha's body is one character away from betaNext's and twelve from
	// alphaNext's, so the greedy pass pairs alpha with betaNext and leaves
	// alphaNext for beta.
	assert.Equal(t, Rename{OldName: "alpha", NewName: "betaNext"}, result.Renamed[0])
	assert.Equal(t, Rename{OldName: "beta", NewName: "alphaNext"}, result.Renamed[1])
}

func TestDiff_TieBreaksToFirstCandidate(t *testing.T) {
	t.Parallel()

	base := `String renamedX() {
  return 'AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA';
}
`
	// Both candidates differ from the baseline body by exactly one rune in
	// the name; the first one in document order must win the tie.
	current := `String renamedY() {
  return 'AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA';
}

String renamedZ() {
  return 'AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA';
}
`
	result := Diff(base, current)
	require.Len(t, result.Renamed, 1)
	assert.Equal(t, Rename{OldName: "renamedX", NewName: "renamedY"}, result.Renamed[0])
	assert.Equal(t, []string{"renamedZ"}, result.Added)
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	t.Run("identical bodies score one", func(t *testing.T) {
		t.Parallel()
		score, ok := similarity("abc", "abc")
		require.True(t, ok)
		assert.Equal(t, 1.0, score)
	})

	t.Run("both empty is incomparable", func(t *testing.T) {
		t.Parallel()
		_, ok := similarity("", "")
		assert.False(t, ok)
	})

	t.Run("symmetric", func(t *testing.T) {
		t.Parallel()
		a, b := "int one() { return 1; }", "int won() { return 1; }"
		s1, _ := similarity(a, b)
		s2, _ := similarity(b, a)
		assert.Equal(t, s1, s2)
	})

	t.Run("disjoint bodies score low", func(t *testing.T) {
		t.Parallel()
		score, ok := similarity("aaaaaaaaaaaaaaaaaaaa", "zzzzzzzzzzzzzzzzzzzz")
		require.True(t, ok)
		assert.Less(t, score, MinSimilarity)
	})
}
