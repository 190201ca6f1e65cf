package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janus-lang/janus/pkg/types"
)

func TestCheckerExactDuplicate(t *testing.T) {
	h := newTestHierarchy(t)
	a := NewAnalyzer(h.reg)

	h.addImpl(t, a, "hash", h.left)
	h.addImpl(t, a, "hash", h.left)

	checker := NewChecker(a, 0)
	reports := checker.CheckAll()
	require.Len(t, reports, 1)

	rep := reports[0]
	assert.True(t, rep.HasErrors())
	require.NotEmpty(t, rep.Conflicts)

	dup := rep.Conflicts[0]
	assert.Equal(t, ConflictExactDuplicate, dup.Kind)
	assert.Equal(t, SeverityError, dup.Severity)
	assert.Len(t, dup.Impls, 2)
	assert.Equal(t, []types.TypeID{h.left}, dup.Example)
	assert.NotEmpty(t, dup.Explanation)
	assert.NotEmpty(t, dup.Suggestions)

	// The duplicate pair must not be re-reported as a subtype overlap.
	for _, c := range rep.Conflicts[1:] {
		assert.NotEqual(t, ConflictOverlappingSubtypes, c.Kind)
	}
}

func TestCheckerDuplicateInsideWiderTie(t *testing.T) {
	h := newTestHierarchy(t)
	a := NewAnalyzer(h.reg)

	// A three-way tie on Derived that contains an exact-duplicate pair: the
	// pair stays an error, and the overlap warning reports only the
	// deduplicated remainder.
	first := h.addImpl(t, a, "draw", h.left)
	h.addImpl(t, a, "draw", h.left)
	right := h.addImpl(t, a, "draw", h.right)

	checker := NewChecker(a, 0)
	rep := checker.CheckGroup(mustGroup(t, a, "draw", 1))

	require.Len(t, rep.Conflicts, 2)
	dup := rep.Conflicts[0]
	assert.Equal(t, ConflictExactDuplicate, dup.Kind)

	overlap := rep.Conflicts[1]
	assert.Equal(t, ConflictOverlappingSubtypes, overlap.Kind)
	assert.Equal(t, []types.TypeID{h.derived}, overlap.Example)
	require.Len(t, overlap.Impls, 2)
	assert.Same(t, first, overlap.Impls[0])
	assert.Same(t, right, overlap.Impls[1])
	assert.Contains(t, overlap.Explanation, "2 overloads")
}

func TestCheckerOverlappingSubtypes(t *testing.T) {
	h := newTestHierarchy(t)
	a := NewAnalyzer(h.reg)

	h.addImpl(t, a, "draw", h.left)
	h.addImpl(t, a, "draw", h.right)

	checker := NewChecker(a, 0)
	rep := checker.CheckGroup(mustGroup(t, a, "draw", 1))

	require.Len(t, rep.Conflicts, 1)
	overlap := rep.Conflicts[0]
	assert.Equal(t, ConflictOverlappingSubtypes, overlap.Kind)
	assert.Equal(t, SeverityWarning, overlap.Severity)
	assert.Len(t, overlap.Impls, 2)
	assert.Equal(t, []types.TypeID{h.derived}, overlap.Example)
	assert.Contains(t, overlap.Explanation, "Left")
	assert.Contains(t, overlap.Explanation, "Right")
	assert.NotEmpty(t, overlap.Suggestions)
	assert.False(t, rep.HasErrors())
}

func TestCheckerConflictFreeGroup(t *testing.T) {
	h := newTestHierarchy(t)
	a := NewAnalyzer(h.reg)

	// Derived overload resolves the diamond, so no conflict remains.
	h.addImpl(t, a, "draw", h.left)
	h.addImpl(t, a, "draw", h.right)
	h.addImpl(t, a, "draw", h.derived)

	checker := NewChecker(a, 0)
	rep := checker.CheckGroup(mustGroup(t, a, "draw", 1))
	assert.Empty(t, rep.Conflicts)
}

func TestCheckerCoverageGaps(t *testing.T) {
	reg := types.NewRegistry()
	shape, err := reg.Register("Shape", types.KindSealedTable, nil)
	require.NoError(t, err)
	circle, err := reg.Register("Circle", types.KindPrimitive, []types.TypeID{shape})
	require.NoError(t, err)
	square, err := reg.Register("Square", types.KindPrimitive, []types.TypeID{shape})
	require.NoError(t, err)

	a := NewAnalyzer(reg)
	add := func(x, y types.TypeID) {
		_, err := a.AddImplementation(FunctionID{Name: "overlap", Module: "geo"},
			[]types.TypeID{x, y}, shape, nil, &SourceLocation{Filename: "geo.janus", Line: 1, Column: 1})
		require.NoError(t, err)
	}
	add(circle, circle)
	add(square, square)

	checker := NewChecker(a, 0)
	rep := checker.CheckGroup(mustGroup(t, a, "overlap", 2))

	// Mixed tuples (Circle, Square) and (Square, Circle) have no overload.
	assert.Empty(t, rep.Conflicts)
	require.Len(t, rep.CoverageGaps, 2)
	assert.Contains(t, rep.CoverageGaps, []types.TypeID{circle, square})
	assert.Contains(t, rep.CoverageGaps, []types.TypeID{square, circle})
}

func TestCheckerSealHint(t *testing.T) {
	reg := types.NewRegistry()
	shape, err := reg.Register("Shape", types.KindSealedTable, nil)
	require.NoError(t, err)
	circle, err := reg.Register("Circle", types.KindPrimitive, []types.TypeID{shape})
	require.NoError(t, err)
	square, err := reg.Register("Square", types.KindPrimitive, []types.TypeID{shape})
	require.NoError(t, err)

	a := NewAnalyzer(reg)
	for _, p := range []types.TypeID{circle, square} {
		_, err := a.AddImplementation(FunctionID{Name: "area", Module: "geo"},
			[]types.TypeID{p}, shape, nil, &SourceLocation{Filename: "geo.janus", Line: 1, Column: 1})
		require.NoError(t, err)
	}

	checker := NewChecker(a, 0)
	rep := checker.CheckGroup(mustGroup(t, a, "area", 1))
	require.Len(t, rep.Hints, 1)
	assert.Contains(t, rep.Hints[0], "seal")
}

func TestCheckerProbeCap(t *testing.T) {
	h := newTestHierarchy(t)
	a := NewAnalyzer(h.reg)

	h.addImpl(t, a, "combine", h.base, h.base, h.base)
	h.addImpl(t, a, "combine", h.left, h.left, h.left)

	checker := NewChecker(a, 3)
	rep := checker.CheckGroup(mustGroup(t, a, "combine", 3))
	assert.True(t, rep.Truncated)
	assert.Equal(t, 3, rep.Probed)
}

func TestCheckerSkipsTrivialGroups(t *testing.T) {
	h := newTestHierarchy(t)
	a := NewAnalyzer(h.reg)

	h.addImpl(t, a, "solo", h.base)
	h.addImpl(t, a, "duo", h.left)
	h.addImpl(t, a, "duo", h.right)

	checker := NewChecker(a, 0)
	reports := checker.CheckAll()
	require.Len(t, reports, 1)
	assert.Equal(t, GroupKey{Name: "duo", Arity: 1}, reports[0].Group)
}

func mustGroup(t *testing.T, a *Analyzer, name string, arity int) *SignatureGroup {
	t.Helper()
	group, ok := a.Group(name, arity)
	require.True(t, ok)
	return group
}
