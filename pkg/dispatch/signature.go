package dispatch

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/janus-lang/janus/pkg/types"
)

// FunctionID identifies a function by bare name and originating module.
// Distinct modules may each contribute implementations under the same name.
type FunctionID struct {
	Name   string
	Module string
}

func (id FunctionID) String() string {
	if id.Module == "" {
		return id.Name
	}
	return id.Module + "." + id.Name
}

// Implementation is one registered overload. Immutable once registered;
// parameter and return types are held by TypeID value so the registry can be
// read without aliasing hazards.
type Implementation struct {
	// ID is the registration ordinal, unique across the analyzer. Used as
	// the deterministic ordering key for reported tie sets.
	ID int

	Func    FunctionID
	Params  []types.TypeID
	Return  types.TypeID
	Effects []string

	// Rank is a precomputed layout hint: the sum of hierarchy depths of the
	// parameter types. Deeper parameters mean a more specific overload, so
	// tables sort entries by descending rank to probe specific patterns
	// first. Rank never breaks a specificity tie during resolution.
	Rank int

	Loc *SourceLocation

	// names caches the rendered parameter type names for diagnostics.
	names []string
}

// Arity returns the number of parameters.
func (impl *Implementation) Arity() int { return len(impl.Params) }

// Signature renders the overload as name(type#1, type#2, ...), resolving
// names when a registry is attached via the owning analyzer.
func (impl *Implementation) Signature() string {
	params := make([]string, len(impl.Params))
	for i, p := range impl.Params {
		params[i] = p.String()
	}
	if impl.names != nil {
		params = impl.names
	}
	return fmt.Sprintf("%s(%s)", impl.Func, strings.Join(params, ", "))
}

// SameParams reports whether two implementations have identical parameter
// tuples.
func (impl *Implementation) SameParams(other *Implementation) bool {
	if len(impl.Params) != len(other.Params) {
		return false
	}
	for i, p := range impl.Params {
		if p != other.Params[i] {
			return false
		}
	}
	return true
}

// GroupKey keys signature groups by bare name and arity.
type GroupKey struct {
	Name  string
	Arity int
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s/%d", k.Name, k.Arity)
}

// SignatureGroup owns every implementation sharing a (name, arity) key. The
// group is append-only during a compilation session unless sealed; a sealed
// group is closed to registration and eligible for static table dispatch.
type SignatureGroup struct {
	Key    GroupKey
	Impls  []*Implementation
	Sealed bool
}

// Analyzer registers implementations and groups them by (name, arity). It
// enforces no uniqueness: exact duplicates are legal here and surface later
// through the ambiguity checker.
type Analyzer struct {
	reg    *types.Registry
	groups map[GroupKey]*SignatureGroup
	order  []GroupKey
	nextID int
}

// NewAnalyzer returns an analyzer backed by the session's type registry.
func NewAnalyzer(reg *types.Registry) *Analyzer {
	return &Analyzer{
		reg:    reg,
		groups: make(map[GroupKey]*SignatureGroup),
	}
}

// AddImplementation registers an overload, creating its (name, arity) group
// on first use. Fails on unknown type IDs or a sealed group; never on
// duplicate signatures.
func (a *Analyzer) AddImplementation(fn FunctionID, params []types.TypeID, ret types.TypeID, effects []string, loc *SourceLocation) (*Implementation, error) {
	for i, p := range params {
		if _, ok := a.reg.Node(p); !ok {
			return nil, errors.Errorf("unknown parameter type %s at position %d of %s", p, i, fn)
		}
	}
	if _, ok := a.reg.Node(ret); !ok {
		return nil, errors.Errorf("unknown return type %s of %s", ret, fn)
	}

	key := GroupKey{Name: fn.Name, Arity: len(params)}
	group, ok := a.groups[key]
	if !ok {
		group = &SignatureGroup{Key: key}
		a.groups[key] = group
		a.order = append(a.order, key)
	}
	if group.Sealed {
		return nil, errors.Errorf("signature group %s is sealed, cannot register %s", key, fn)
	}

	rank := 0
	for _, p := range params {
		rank += a.reg.Depth(p)
	}

	impl := &Implementation{
		ID:      a.nextID,
		Func:    fn,
		Params:  append([]types.TypeID(nil), params...),
		Return:  ret,
		Effects: append([]string(nil), effects...),
		Rank:    rank,
		Loc:     loc,
		names:   typeNames(a.reg, params),
	}
	a.nextID++
	group.Impls = append(group.Impls, impl)

	slog.Debug("registered implementation",
		"func", fn.String(),
		"group", key.String(),
		"rank", rank,
		"effects", effects)
	return impl, nil
}

// Group returns the signature group for (name, arity), if any.
func (a *Analyzer) Group(name string, arity int) (*SignatureGroup, bool) {
	g, ok := a.groups[GroupKey{Name: name, Arity: arity}]
	return g, ok
}

// Groups returns every group sorted by key, independent of registration
// order, so sweeps and reports are deterministic.
func (a *Analyzer) Groups() []*SignatureGroup {
	keys := append([]GroupKey(nil), a.order...)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Name != keys[j].Name {
			return keys[i].Name < keys[j].Name
		}
		return keys[i].Arity < keys[j].Arity
	})
	out := make([]*SignatureGroup, len(keys))
	for i, k := range keys {
		out[i] = a.groups[k]
	}
	return out
}

// SealGroup closes a group to further registration, allowing static table
// dispatch. Valid only when every parameter type of every implementation
// has a closed subtype set.
func (a *Analyzer) SealGroup(name string, arity int) error {
	key := GroupKey{Name: name, Arity: arity}
	group, ok := a.groups[key]
	if !ok {
		return errors.Errorf("no signature group %s to seal", key)
	}
	for _, impl := range group.Impls {
		for i, p := range impl.Params {
			node, _ := a.reg.Node(p)
			if !node.Kind.Sealed() {
				return errors.Errorf(
					"cannot seal %s: parameter %d of %s has open type %s",
					key, i, impl.Func, node.Name)
			}
		}
	}
	group.Sealed = true
	slog.Debug("sealed signature group", "group", key.String(), "impls", len(group.Impls))
	return nil
}

// Registry exposes the backing type registry for collaborators that render
// diagnostics.
func (a *Analyzer) Registry() *types.Registry { return a.reg }
