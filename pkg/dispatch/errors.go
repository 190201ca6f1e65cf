package dispatch

import (
	"fmt"
	"strings"

	"github.com/janus-lang/janus/pkg/types"
)

// SourceLocation is a position in Janus source, carried through from the
// declaration walk so diagnostics can point at the offending overload.
type SourceLocation struct {
	Filename string
	Line     int
	Column   int
	Length   int
}

func (loc *SourceLocation) String() string {
	if loc == nil {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", loc.Filename, loc.Line, loc.Column)
}

// AmbiguousDispatchError reports a call site where two or more applicable
// implementations are maximal under the specificity order yet incomparable.
// It carries the full tied set; resolution never breaks such ties silently.
type AmbiguousDispatchError struct {
	Name     string
	Arity    int
	ArgNames []string
	Tied     []*Implementation
}

func (e *AmbiguousDispatchError) Error() string {
	var sites []string
	for _, impl := range e.Tied {
		sites = append(sites, fmt.Sprintf("%s (%s)", impl.Signature(), impl.Loc))
	}
	return fmt.Sprintf("ambiguous dispatch for %s(%s): %d incomparable candidates: %s",
		e.Name, strings.Join(e.ArgNames, ", "), len(e.Tied), strings.Join(sites, "; "))
}

// NoApplicableImplementationError reports a call with no implementation
// whose parameters accept the argument types.
type NoApplicableImplementationError struct {
	Name     string
	Arity    int
	ArgNames []string
}

func (e *NoApplicableImplementationError) Error() string {
	return fmt.Sprintf("no applicable implementation for %s/%d with argument types (%s)",
		e.Name, e.Arity, strings.Join(e.ArgNames, ", "))
}

// DuplicateSignatureError reports two implementations with identical
// parameter tuples. Distinct from ambiguity: it is a single avoidable
// mistake, not a multi-way design choice.
type DuplicateSignatureError struct {
	First  *Implementation
	Second *Implementation
}

func (e *DuplicateSignatureError) Error() string {
	return fmt.Sprintf("duplicate signature %s: first at %s, again at %s",
		e.First.Signature(), e.First.Loc, e.Second.Loc)
}

// typeNames renders IDs through the registry for error messages.
func typeNames(reg *types.Registry, ids []types.TypeID) []string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = reg.Name(id)
	}
	return names
}
