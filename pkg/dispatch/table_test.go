package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janus-lang/janus/pkg/types"
)

func buildDiamondTable(t *testing.T, strategy Strategy) (*testHierarchy, *Analyzer, *Table) {
	t.Helper()
	h := newTestHierarchy(t)
	a := NewAnalyzer(h.reg)

	h.addImpl(t, a, "draw", h.base)
	h.addImpl(t, a, "draw", h.left)
	h.addImpl(t, a, "draw", h.right)

	group, ok := a.Group("draw", 1)
	require.True(t, ok)
	return h, a, BuildTable(h.reg, group, strategy)
}

func TestTableStrategyEquivalence(t *testing.T) {
	h := newTestHierarchy(t)
	a := NewAnalyzer(h.reg)
	r := NewResolver(h.reg)

	// Mixed-arity hierarchy exercise: binary group over the diamond plus an
	// unrelated leaf, including a deliberate tie.
	h.addImpl(t, a, "combine", h.base, h.base)
	h.addImpl(t, a, "combine", h.left, h.base)
	h.addImpl(t, a, "combine", h.base, h.right)
	h.addImpl(t, a, "combine", h.derived, h.derived)

	group, ok := a.Group("combine", 2)
	require.True(t, ok)
	table := BuildTable(h.reg, group, StrategyTree)

	all := h.reg.All()
	for _, x := range all {
		for _, y := range all {
			args := []types.TypeID{x, y}
			want := r.FindMostSpecific(group, args)
			for _, strategy := range Strategies {
				got := table.LookupWith(strategy, args)
				require.Equal(t, want.Kind, got.Kind,
					"%s(%s, %s) under %s", group.Key.Name, h.reg.Name(x), h.reg.Name(y), strategy.Name())
				require.Equal(t, want.Impl, got.Impl,
					"%s(%s, %s) under %s", group.Key.Name, h.reg.Name(x), h.reg.Name(y), strategy.Name())
				require.Equal(t, want.Tied, got.Tied,
					"%s(%s, %s) under %s", group.Key.Name, h.reg.Name(x), h.reg.Name(y), strategy.Name())
			}
		}
	}
}

func TestTableLookup(t *testing.T) {
	for _, strategy := range Strategies {
		t.Run(strategy.Name(), func(t *testing.T) {
			h, _, table := buildDiamondTable(t, strategy)

			res := table.Lookup([]types.TypeID{h.left})
			require.Equal(t, ResolutionUnique, res.Kind)
			assert.Equal(t, []types.TypeID{h.left}, res.Impl.Params)

			res = table.Lookup([]types.TypeID{h.derived})
			require.Equal(t, ResolutionAmbiguous, res.Kind)
			assert.Len(t, res.Tied, 2)

			res = table.Lookup([]types.TypeID{h.other})
			assert.Equal(t, ResolutionNoMatch, res.Kind)
		})
	}
}

func TestTableZeroArity(t *testing.T) {
	h := newTestHierarchy(t)
	a := NewAnalyzer(h.reg)

	impl := h.addImpl(t, a, "now")
	group, _ := a.Group("now", 0)

	table := BuildTable(h.reg, group, StrategyCompressed)
	for _, strategy := range Strategies {
		res := table.LookupWith(strategy, nil)
		require.Equal(t, ResolutionUnique, res.Kind, strategy.Name())
		assert.Same(t, impl, res.Impl)
	}
}

func TestTableStaleness(t *testing.T) {
	h, a, table := buildDiamondTable(t, StrategyTree)

	group, _ := a.Group("draw", 1)
	assert.False(t, table.Stale(group))

	h.addImpl(t, a, "draw", h.derived)
	assert.True(t, table.Stale(group))

	rebuilt := BuildTable(h.reg, group, StrategyTree)
	assert.False(t, rebuilt.Stale(group))

	// The stale table still answers from its snapshot.
	res := table.Lookup([]types.TypeID{h.derived})
	assert.Equal(t, ResolutionAmbiguous, res.Kind)
	res = rebuilt.Lookup([]types.TypeID{h.derived})
	assert.Equal(t, ResolutionUnique, res.Kind)
}

func TestTableMemoryStats(t *testing.T) {
	_, _, table := buildDiamondTable(t, StrategyLinear)

	stats := table.MemoryStats()
	assert.Positive(t, stats.EntryBytes)
	assert.Positive(t, stats.TreeBytes)
	assert.Positive(t, stats.CompressedBytes)
	assert.Equal(t, stats.EntryBytes+stats.TreeBytes+stats.CompressedBytes, stats.TotalBytes)
	assert.GreaterOrEqual(t, stats.CacheLines*64, stats.TotalBytes)
}

func TestTableBenchmark(t *testing.T) {
	h, _, table := buildDiamondTable(t, StrategyTree)

	corpus := [][]types.TypeID{
		{h.base}, {h.left}, {h.right}, {h.derived}, {h.other},
	}
	result := table.Benchmark(corpus)
	assert.Equal(t, len(corpus), result.Corpus)
	assert.Len(t, result.PerCall, len(Strategies))
	assert.Contains(t, result.PerCall, result.Fastest)
}

func TestParseStrategy(t *testing.T) {
	for _, strategy := range Strategies {
		parsed, err := ParseStrategy(strategy.Name())
		require.NoError(t, err)
		assert.Equal(t, strategy, parsed)
	}
	_, err := ParseStrategy("quantum")
	assert.Error(t, err)
}
