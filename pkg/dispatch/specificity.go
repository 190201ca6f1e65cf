package dispatch

import (
	"fmt"
	"sort"

	"github.com/janus-lang/janus/pkg/types"
)

// ResolutionKind tags the outcome of a dispatch resolution.
type ResolutionKind int

const (
	// ResolutionUnique means exactly one most-specific implementation won.
	ResolutionUnique ResolutionKind = iota

	// ResolutionAmbiguous means two or more maximal implementations are
	// mutually incomparable.
	ResolutionAmbiguous

	// ResolutionNoMatch means no implementation accepts the arguments.
	ResolutionNoMatch
)

func (k ResolutionKind) String() string {
	switch k {
	case ResolutionUnique:
		return "unique"
	case ResolutionAmbiguous:
		return "ambiguous"
	case ResolutionNoMatch:
		return "no-match"
	default:
		return fmt.Sprintf("resolution(%d)", int(k))
	}
}

// Resolution is the tagged result of resolving one call. Construct through
// Unique, Ambiguous, or NoMatch so a value can never be partially populated.
type Resolution struct {
	Kind ResolutionKind

	// Impl is set only for ResolutionUnique.
	Impl *Implementation

	// Tied is set only for ResolutionAmbiguous, ordered by registration ID.
	Tied []*Implementation
}

// Unique wraps the single winning implementation.
func Unique(impl *Implementation) Resolution {
	if impl == nil {
		panic("dispatch: unique resolution with nil implementation")
	}
	return Resolution{Kind: ResolutionUnique, Impl: impl}
}

// Ambiguous wraps the full incomparable maximal set.
func Ambiguous(tied []*Implementation) Resolution {
	if len(tied) < 2 {
		panic("dispatch: ambiguous resolution needs at least two candidates")
	}
	sorted := append([]*Implementation(nil), tied...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return Resolution{Kind: ResolutionAmbiguous, Tied: sorted}
}

// NoMatch is the empty outcome.
func NoMatch() Resolution {
	return Resolution{Kind: ResolutionNoMatch}
}

// Resolver implements the specificity algorithm over a type registry. It is
// pure: the same group snapshot and argument tuple always produce the same
// resolution.
type Resolver struct {
	reg *types.Registry
}

// NewResolver returns a resolver over the session's registry.
func NewResolver(reg *types.Registry) *Resolver {
	return &Resolver{reg: reg}
}

// FindMostSpecific resolves concrete argument types against a signature
// group:
//
//  1. keep implementations accepting the arguments pointwise
//     (isSubtype(arg[i], param[i]) at every position),
//  2. if exactly one applicable implementation matches the arguments
//     exactly, return it,
//  3. otherwise keep the maximal elements of the pointwise-subtype partial
//     order,
//  4. one maximal element is unique; several are ambiguous; none applicable
//     is no-match.
//
// Implementation rank is never consulted: a structural tie stays a tie.
func (r *Resolver) FindMostSpecific(group *SignatureGroup, args []types.TypeID) Resolution {
	if group == nil {
		return NoMatch()
	}
	if len(args) != group.Key.Arity {
		panic(fmt.Sprintf("dispatch: %d arguments resolved against group %s", len(args), group.Key))
	}
	return r.resolve(group.Impls, args)
}

// resolve runs the protocol over a raw implementation slice. Shared with the
// table strategies, which collect candidates their own way but must agree on
// the outcome.
func (r *Resolver) resolve(impls []*Implementation, args []types.TypeID) Resolution {
	var applicable []*Implementation
	for _, impl := range impls {
		if r.applicable(impl, args) {
			applicable = append(applicable, impl)
		}
	}
	if len(applicable) == 0 {
		return NoMatch()
	}

	var exact *Implementation
	exactCount := 0
	for _, impl := range applicable {
		if paramsEqual(impl.Params, args) {
			exact = impl
			exactCount++
		}
	}
	if exactCount == 1 {
		return Unique(exact)
	}

	var maximal []*Implementation
	for _, a := range applicable {
		dominated := false
		for _, b := range applicable {
			if a == b {
				continue
			}
			if r.atLeastAsSpecific(b, a) && !r.atLeastAsSpecific(a, b) {
				dominated = true
				break
			}
		}
		if !dominated {
			maximal = append(maximal, a)
		}
	}

	switch len(maximal) {
	case 0:
		// Applicable implementations always contain a maximal element.
		panic(fmt.Sprintf("dispatch: no maximal element among %d applicable implementations", len(applicable)))
	case 1:
		return Unique(maximal[0])
	default:
		return Ambiguous(maximal)
	}
}

// applicable reports whether every argument is a subtype of the matching
// parameter.
func (r *Resolver) applicable(impl *Implementation, args []types.TypeID) bool {
	if len(impl.Params) != len(args) {
		return false
	}
	for i, arg := range args {
		if !r.reg.IsSubtype(arg, impl.Params[i]) {
			return false
		}
	}
	return true
}

// atLeastAsSpecific reports a ⊑ b: a's parameters are pointwise subtypes of
// b's.
func (r *Resolver) atLeastAsSpecific(a, b *Implementation) bool {
	for i := range a.Params {
		if !r.reg.IsSubtype(a.Params[i], b.Params[i]) {
			return false
		}
	}
	return true
}

func paramsEqual(a, b []types.TypeID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
