package dispatch

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/janus-lang/janus/pkg/types"
)

// Strategy selects how a compiled table answers lookups. All strategies
// return identical results for any input; they trade build cost, lookup
// cost, and memory against each other.
type Strategy int

const (
	// StrategyLinear scans every entry: the baseline correctness oracle.
	StrategyLinear Strategy = iota

	// StrategyTree walks a decision tree keyed by successive parameter
	// positions, visiting only entries compatible with each argument.
	StrategyTree

	// StrategyCompressed stores patterns delta-encoded as uvarints in one
	// shared buffer, trading a decode step for a smaller footprint.
	StrategyCompressed
)

func (s Strategy) Name() string {
	switch s {
	case StrategyLinear:
		return "linear"
	case StrategyTree:
		return "tree"
	case StrategyCompressed:
		return "compressed"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy resolves a strategy name from configuration.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "linear":
		return StrategyLinear, nil
	case "tree":
		return StrategyTree, nil
	case "compressed":
		return StrategyCompressed, nil
	default:
		return StrategyLinear, errors.Errorf("unknown table strategy %q (want linear, tree, or compressed)", name)
	}
}

// Strategies lists every lookup strategy, for equivalence sweeps and
// benchmarks.
var Strategies = []Strategy{StrategyLinear, StrategyTree, StrategyCompressed}

// tableEntry pairs one implementation with its parameter pattern. Entries
// reference implementations by record, and records hold TypeIDs by value,
// so a table borrows group data read-only and can be dropped and rebuilt
// freely.
type tableEntry struct {
	pattern []types.TypeID
	impl    *Implementation
}

// treeNode indexes entries by the parameter type at one position. Leaves
// (depth == arity) hold the entry indices that survived the descent.
type treeNode struct {
	edges map[types.TypeID]*treeNode
	leafs []int
}

// Table is the compiled dispatch artifact for one signature group snapshot.
// It is disposable: when the group gains implementations, the table is stale
// and the dispatcher rebuilds it.
type Table struct {
	key      Key
	arity    int
	strategy Strategy
	resolver *Resolver

	entries []tableEntry
	root    *treeNode

	// compressed holds every pattern delta-encoded as uvarints; offsets[i]
	// is the start of entry i's encoding.
	compressed []byte
	offsets    []uint32

	// implCount snapshots the source group's size for staleness checks.
	implCount int
}

// Key identifies the group snapshot a table was built from.
type Key struct {
	Group GroupKey

	// Impls is the implementation count at build time. A differing live
	// count marks the table stale.
	Impls int
}

// BuildTable compiles a group snapshot. Entries are laid out by descending
// rank so the most specific patterns come first; rank is layout only and has
// no effect on lookup results.
func BuildTable(reg *types.Registry, group *SignatureGroup, strategy Strategy) *Table {
	t := &Table{
		key:       Key{Group: group.Key, Impls: len(group.Impls)},
		arity:     group.Key.Arity,
		strategy:  strategy,
		resolver:  NewResolver(reg),
		implCount: len(group.Impls),
	}

	t.entries = make([]tableEntry, 0, len(group.Impls))
	for _, impl := range group.Impls {
		t.entries = append(t.entries, tableEntry{pattern: impl.Params, impl: impl})
	}
	sort.SliceStable(t.entries, func(i, j int) bool {
		return t.entries[i].impl.Rank > t.entries[j].impl.Rank
	})

	t.buildTree()
	t.buildCompressed()

	slog.Debug("built dispatch table",
		"group", group.Key.String(),
		"strategy", strategy.Name(),
		"entries", len(t.entries))
	return t
}

// Key returns the snapshot identity of the table.
func (t *Table) Key() Key { return t.key }

// Stale reports whether the live group has diverged from the snapshot.
func (t *Table) Stale(group *SignatureGroup) bool {
	return len(group.Impls) != t.implCount
}

func (t *Table) buildTree() {
	t.root = &treeNode{}
	for i, e := range t.entries {
		node := t.root
		for _, p := range e.pattern {
			if node.edges == nil {
				node.edges = make(map[types.TypeID]*treeNode)
			}
			next, ok := node.edges[p]
			if !ok {
				next = &treeNode{}
				node.edges[p] = next
			}
			node = next
		}
		node.leafs = append(node.leafs, i)
	}
}

func (t *Table) buildCompressed() {
	t.offsets = make([]uint32, 0, len(t.entries))
	var buf [binary.MaxVarintLen32]byte
	prev := make([]types.TypeID, t.arity)
	for _, e := range t.entries {
		t.offsets = append(t.offsets, uint32(len(t.compressed)))
		for i, p := range e.pattern {
			// Delta against the previous entry's same position: patterns in
			// one group share types often, keeping deltas small.
			delta := int64(p) - int64(prev[i])
			n := binary.PutVarint(buf[:], delta)
			t.compressed = append(t.compressed, buf[:n]...)
			prev[i] = p
		}
	}
}

// Lookup resolves an argument tuple with the configured strategy. The result
// is identical for every strategy; this equivalence is a correctness
// invariant of the table, not a performance detail.
func (t *Table) Lookup(args []types.TypeID) Resolution {
	return t.LookupWith(t.strategy, args)
}

// LookupWith resolves with an explicit strategy, used by the equivalence
// tests and the benchmark harness.
func (t *Table) LookupWith(strategy Strategy, args []types.TypeID) Resolution {
	if len(args) != t.arity {
		panic(fmt.Sprintf("dispatch: %d arguments looked up in table for %s", len(args), t.key.Group))
	}
	switch strategy {
	case StrategyLinear:
		return t.lookupLinear(args)
	case StrategyTree:
		return t.lookupTree(args)
	case StrategyCompressed:
		return t.lookupCompressed(args)
	default:
		panic(fmt.Sprintf("dispatch: unknown strategy %d", int(strategy)))
	}
}

func (t *Table) lookupLinear(args []types.TypeID) Resolution {
	impls := make([]*Implementation, len(t.entries))
	for i, e := range t.entries {
		impls[i] = e.impl
	}
	return t.resolver.resolve(impls, args)
}

// lookupTree descends the tree once per compatible edge: at position i, an
// edge keyed by type P survives iff args[i] <: P. The candidates collected
// at the leaves are exactly the applicable set, which then goes through the
// same specificity protocol as the linear scan.
func (t *Table) lookupTree(args []types.TypeID) Resolution {
	reg := t.resolver.reg
	var candidates []int
	var descend func(node *treeNode, depth int)
	descend = func(node *treeNode, depth int) {
		if depth == t.arity {
			candidates = append(candidates, node.leafs...)
			return
		}
		for p, next := range node.edges {
			if reg.IsSubtype(args[depth], p) {
				descend(next, depth+1)
			}
		}
	}
	descend(t.root, 0)

	// Map iteration above makes candidate order nondeterministic; restore
	// layout order before resolving so tied sets come out stable.
	sort.Ints(candidates)
	impls := make([]*Implementation, len(candidates))
	for i, idx := range candidates {
		impls[i] = t.entries[idx].impl
	}
	return t.resolver.resolve(impls, args)
}

func (t *Table) lookupCompressed(args []types.TypeID) Resolution {
	impls := make([]*Implementation, 0, len(t.entries))
	pattern := make([]types.TypeID, t.arity)
	prev := make([]types.TypeID, t.arity)
	pos := 0
	for i := range t.entries {
		for j := 0; j < t.arity; j++ {
			delta, n := binary.Varint(t.compressed[pos:])
			if n <= 0 {
				panic(fmt.Sprintf("dispatch: corrupt compressed pattern table for %s", t.key.Group))
			}
			pos += n
			pattern[j] = types.TypeID(int64(prev[j]) + delta)
			prev[j] = pattern[j]
		}
		applicable := true
		for j, arg := range args {
			if !t.resolver.reg.IsSubtype(arg, pattern[j]) {
				applicable = false
				break
			}
		}
		if applicable {
			impls = append(impls, t.entries[i].impl)
		}
	}
	return t.resolver.resolve(impls, args)
}

// MemoryStats describes the table's footprint per section.
type MemoryStats struct {
	EntryBytes      int
	TreeBytes       int
	CompressedBytes int
	TotalBytes      int

	// CacheLines estimates how many 64-byte lines the hot sections span.
	CacheLines int
}

const (
	cacheLineSize = 64
	pointerSize   = 8
	typeIDSize    = 4
)

// MemoryStats estimates the footprint of each lookup section.
func (t *Table) MemoryStats() MemoryStats {
	var stats MemoryStats
	for _, e := range t.entries {
		stats.EntryBytes += pointerSize + len(e.pattern)*typeIDSize
	}
	stats.TreeBytes = t.treeBytes(t.root)
	stats.CompressedBytes = len(t.compressed) + len(t.offsets)*4
	stats.TotalBytes = stats.EntryBytes + stats.TreeBytes + stats.CompressedBytes
	stats.CacheLines = (stats.TotalBytes + cacheLineSize - 1) / cacheLineSize
	return stats
}

func (t *Table) treeBytes(node *treeNode) int {
	if node == nil {
		return 0
	}
	b := pointerSize + len(node.leafs)*8
	for _, next := range node.edges {
		b += typeIDSize + pointerSize + t.treeBytes(next)
	}
	return b
}

// BenchmarkResult times every strategy over one corpus of call patterns.
type BenchmarkResult struct {
	Corpus  int
	PerCall map[Strategy]time.Duration
	Fastest Strategy
}

// Benchmark runs every lookup strategy against the supplied corpus and
// reports the mean per-call latency of each.
func (t *Table) Benchmark(corpus [][]types.TypeID) BenchmarkResult {
	result := BenchmarkResult{
		Corpus:  len(corpus),
		PerCall: make(map[Strategy]time.Duration, len(Strategies)),
	}
	if len(corpus) == 0 {
		result.Fastest = t.strategy
		return result
	}

	best := time.Duration(1<<63 - 1)
	for _, strategy := range Strategies {
		start := time.Now()
		for _, args := range corpus {
			t.LookupWith(strategy, args)
		}
		per := time.Since(start) / time.Duration(len(corpus))
		result.PerCall[strategy] = per
		if per < best {
			best = per
			result.Fastest = strategy
		}
	}
	return result
}
