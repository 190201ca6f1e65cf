package dispatch

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/janus-lang/janus/pkg/types"
)

// Severity grades a reported conflict.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ConflictKind classifies a dispatch conflict.
type ConflictKind int

const (
	// ConflictExactDuplicate marks two implementations with identical
	// parameter tuples: always an error, always an avoidable mistake.
	ConflictExactDuplicate ConflictKind = iota

	// ConflictOverlappingSubtypes marks distinct implementations that both
	// apply to some tuple and tie under the specificity order.
	ConflictOverlappingSubtypes
)

func (k ConflictKind) String() string {
	switch k {
	case ConflictExactDuplicate:
		return "duplicate-signature"
	case ConflictOverlappingSubtypes:
		return "overlapping-subtypes"
	default:
		return fmt.Sprintf("conflict(%d)", int(k))
	}
}

// Conflict is one discovered dispatch conflict within a group.
type Conflict struct {
	Kind        ConflictKind
	Severity    Severity
	Impls       []*Implementation
	Example     []types.TypeID
	Explanation string
	Suggestions []string
}

// Report is the static audit result for one signature group.
type Report struct {
	Group        GroupKey
	Conflicts    []Conflict
	CoverageGaps [][]types.TypeID
	Hints        []string

	// Probed counts the argument tuples actually swept; Truncated is set
	// when the probe cap cut the sweep short.
	Probed    int
	Truncated bool
}

// HasErrors reports whether any conflict carries error severity.
func (rep *Report) HasErrors() bool {
	for _, c := range rep.Conflicts {
		if c.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Checker statically audits signature groups for latent ambiguities before
// any call site triggers them. The exhaustive sweep is bounded: at most
// MaxProbes tuples per group, degrading to a partial sweep past the cap.
type Checker struct {
	reg       *types.Registry
	analyzer  *Analyzer
	resolver  *Resolver
	maxProbes int

	// gapLimit caps how many no-match examples a report retains; the sweep
	// itself keeps going so conflicts past the first gaps still surface.
	gapLimit int
}

// NewChecker returns a checker over the analyzer's groups.
func NewChecker(analyzer *Analyzer, maxProbes int) *Checker {
	if maxProbes <= 0 {
		maxProbes = DefaultMaxProbes
	}
	return &Checker{
		reg:       analyzer.Registry(),
		analyzer:  analyzer,
		resolver:  NewResolver(analyzer.Registry()),
		maxProbes: maxProbes,
		gapLimit:  10,
	}
}

// CheckAll sweeps every group with more than one implementation. Groups
// with zero or one implementation have nothing to conflict and are skipped.
func (c *Checker) CheckAll() []*Report {
	var reports []*Report
	for _, group := range c.analyzer.Groups() {
		if len(group.Impls) < 2 {
			continue
		}
		reports = append(reports, c.CheckGroup(group))
	}
	return reports
}

// CheckGroup audits a single group: exact duplicates first, then a bounded
// sweep of candidate argument tuples through the resolver.
func (c *Checker) CheckGroup(group *SignatureGroup) *Report {
	rep := &Report{Group: group.Key}

	duplicatePairs := c.findDuplicates(group, rep)
	c.sweep(group, rep, duplicatePairs)
	c.hints(group, rep)

	slog.Debug("checked signature group",
		"group", group.Key.String(),
		"conflicts", len(rep.Conflicts),
		"gaps", len(rep.CoverageGaps),
		"probed", rep.Probed,
		"truncated", rep.Truncated)
	return rep
}

// findDuplicates reports every pair of implementations with identical
// parameter tuples and returns the set of implicated pair keys so the sweep
// does not re-report them as overlaps.
func (c *Checker) findDuplicates(group *SignatureGroup, rep *Report) map[[2]int]bool {
	pairs := make(map[[2]int]bool)
	for i, first := range group.Impls {
		for _, second := range group.Impls[i+1:] {
			if !first.SameParams(second) {
				continue
			}
			pairs[pairKey(first, second)] = true
			rep.Conflicts = append(rep.Conflicts, Conflict{
				Kind:     ConflictExactDuplicate,
				Severity: SeverityError,
				Impls:    []*Implementation{first, second},
				Example:  append([]types.TypeID(nil), first.Params...),
				Explanation: fmt.Sprintf(
					"%s and the overload at %s declare identical parameter types (%s); dispatch can never distinguish them",
					first.Signature(), second.Loc,
					strings.Join(typeNames(c.reg, first.Params), ", ")),
				Suggestions: []string{
					"remove the redundant overload",
					"narrow one overload to a more specific parameter type",
				},
			})
		}
	}
	return pairs
}

// sweep enumerates candidate tuples per parameter position (each declared
// parameter type plus its registered subtypes) and resolves each, recording
// ties and coverage gaps.
func (c *Checker) sweep(group *SignatureGroup, rep *Report, skip map[[2]int]bool) {
	if group.Key.Arity == 0 {
		return
	}

	positions := c.candidateTypes(group)
	seen := make(map[string]bool)

	tuple := make([]types.TypeID, group.Key.Arity)
	var walk func(pos int) bool
	walk = func(pos int) bool {
		if rep.Probed >= c.maxProbes {
			rep.Truncated = true
			return false
		}
		if pos == len(tuple) {
			rep.Probed++
			c.probe(group, rep, tuple, skip, seen)
			return true
		}
		for _, id := range positions[pos] {
			tuple[pos] = id
			if !walk(pos + 1) {
				return false
			}
		}
		return true
	}
	walk(0)
}

// candidateTypes collects, per position, the declared parameter types of all
// implementations plus their strict subtypes, in registration order.
func (c *Checker) candidateTypes(group *SignatureGroup) [][]types.TypeID {
	positions := make([][]types.TypeID, group.Key.Arity)
	for pos := range positions {
		in := make(map[types.TypeID]bool)
		for _, impl := range group.Impls {
			p := impl.Params[pos]
			in[p] = true
			for _, sub := range c.reg.SubtypesOf(p) {
				in[sub] = true
			}
		}
		ids := make([]types.TypeID, 0, len(in))
		for id := range in {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		positions[pos] = ids
	}
	return positions
}

func (c *Checker) probe(group *SignatureGroup, rep *Report, tuple []types.TypeID, skip map[[2]int]bool, seen map[string]bool) {
	res := c.resolver.FindMostSpecific(group, tuple)
	switch res.Kind {
	case ResolutionNoMatch:
		if len(rep.CoverageGaps) < c.gapLimit {
			rep.CoverageGaps = append(rep.CoverageGaps, append([]types.TypeID(nil), tuple...))
		}
	case ResolutionAmbiguous:
		// Exact duplicates already surfaced as errors; report only the
		// genuinely overlapping remainder of the tie, if any.
		tied := collapseDuplicates(res.Tied, skip)
		if len(tied) < 2 {
			return
		}
		key := tiedKey(tied)
		if seen[key] {
			return
		}
		seen[key] = true
		rep.Conflicts = append(rep.Conflicts, Conflict{
			Kind:        ConflictOverlappingSubtypes,
			Severity:    SeverityWarning,
			Impls:       tied,
			Example:     append([]types.TypeID(nil), tuple...),
			Explanation: c.explainTie(group, tied, tuple),
			Suggestions: []string{
				fmt.Sprintf("add an overload for %s(%s) that is more specific than each candidate",
					group.Key.Name, strings.Join(typeNames(c.reg, tuple), ", ")),
				"remove one of the overlapping overloads",
				"require an explicit type annotation at the call site",
				"restructure the type hierarchy so the candidates become comparable",
			},
		})
	}
}

// explainTie renders why the tied overloads are incomparable, naming one
// position where each direction of the pointwise comparison fails.
func (c *Checker) explainTie(group *SignatureGroup, tied []*Implementation, tuple []types.TypeID) string {
	var b strings.Builder
	fmt.Fprintf(&b, "a call %s(%s) is accepted by %d overloads and none is more specific than the rest",
		group.Key.Name, strings.Join(typeNames(c.reg, tuple), ", "), len(tied))
	a, z := tied[0], tied[1]
	for i := range a.Params {
		if !c.reg.IsSubtype(a.Params[i], z.Params[i]) && !c.reg.IsSubtype(z.Params[i], a.Params[i]) {
			fmt.Fprintf(&b, ": at position %d, %s and %s are unrelated",
				i+1, c.reg.Name(a.Params[i]), c.reg.Name(z.Params[i]))
			break
		}
	}
	return b.String()
}

// hints records optimization opportunities for conflict-free groups.
func (c *Checker) hints(group *SignatureGroup, rep *Report) {
	if len(rep.Conflicts) > 0 || group.Sealed {
		return
	}
	for _, impl := range group.Impls {
		for _, p := range impl.Params {
			node, ok := c.reg.Node(p)
			if !ok || !node.Kind.Sealed() {
				return
			}
		}
	}
	rep.Hints = append(rep.Hints,
		fmt.Sprintf("every parameter type of %s is sealed and no conflicts were found; seal the group to enable static table dispatch", group.Key))
}

// collapseDuplicates drops every tied implementation that is an exact
// duplicate of one kept earlier, keeping the lowest-ID member of each
// duplicate cluster. The tie set arrives sorted by ID.
func collapseDuplicates(tied []*Implementation, dup map[[2]int]bool) []*Implementation {
	if len(dup) == 0 {
		return tied
	}
	out := make([]*Implementation, 0, len(tied))
	for _, impl := range tied {
		kept := true
		for _, prev := range out {
			if dup[pairKey(prev, impl)] {
				kept = false
				break
			}
		}
		if kept {
			out = append(out, impl)
		}
	}
	return out
}

func pairKey(a, b *Implementation) [2]int {
	if a.ID > b.ID {
		a, b = b, a
	}
	return [2]int{a.ID, b.ID}
}

func tiedKey(tied []*Implementation) string {
	parts := make([]string, len(tied))
	for i, impl := range tied {
		parts[i] = fmt.Sprint(impl.ID)
	}
	return strings.Join(parts, ",")
}
