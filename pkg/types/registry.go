package types

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// CyclicHierarchyError is returned when a supertype edge would make a type
// an ancestor of itself. The path runs from the offending type back to
// itself through the edge that closed the cycle.
type CyclicHierarchyError struct {
	Type TypeID
	Path []string
}

func (e *CyclicHierarchyError) Error() string {
	return fmt.Sprintf("cyclic type hierarchy: %s", strings.Join(e.Path, " <: "))
}

// Registry is the canonical store of named types and their supertype edges
// for one compilation session. Registration is append-only; the surrounding
// driver guarantees no registration happens while subtype queries are in
// flight, so the registry carries no locking of its own.
type Registry struct {
	nodes  []Node // index 0 reserved as the invalid sentinel
	byName map[string]TypeID

	// children holds the inverse supertype edges, used by the ambiguity
	// prober and by sealing validation.
	children map[TypeID][]TypeID

	// reach memoizes IsSubtype answers and depth memoizes longest-chain
	// depths; both cleared whenever an edge is added.
	reach map[[2]TypeID]bool
	depth map[TypeID]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes:    make([]Node, 1),
		byName:   make(map[string]TypeID),
		children: make(map[TypeID][]TypeID),
		reach:    make(map[[2]TypeID]bool),
		depth:    make(map[TypeID]int),
	}
}

// Register adds a named type with the given direct supertypes, returning its
// ID. Registration is idempotent on name: re-registering a name yields the
// same ID, requires the same kind, and may add supertype edges. An edge that
// would close a cycle fails with CyclicHierarchyError and leaves the
// hierarchy unchanged.
func (r *Registry) Register(name string, kind Kind, supertypes []TypeID) (TypeID, error) {
	if name == "" {
		return NoTypeID, errors.New("type name must not be empty")
	}
	for _, sup := range supertypes {
		if !r.valid(sup) {
			return NoTypeID, errors.Errorf("unknown supertype %s for type %q", sup, name)
		}
	}

	id, exists := r.byName[name]
	if exists {
		node := &r.nodes[id]
		if node.Kind != kind {
			return NoTypeID, errors.Errorf(
				"type %q already registered as %s, cannot re-register as %s",
				name, node.Kind, kind)
		}
		if err := r.addEdges(id, supertypes); err != nil {
			return NoTypeID, err
		}
		return id, nil
	}

	id = TypeID(len(r.nodes))
	r.nodes = append(r.nodes, Node{ID: id, Name: name, Kind: kind})
	r.byName[name] = id
	if err := r.addEdges(id, supertypes); err != nil {
		return NoTypeID, err
	}
	return id, nil
}

// addEdges records sub <: sup for each supertype, skipping duplicates. The
// whole set is validated before any edge is applied, so a rejected
// declaration leaves the hierarchy untouched. Every new edge leaves sub and
// a cycle through sub uses exactly one of them, so checking each edge
// against the pre-mutation graph also rules out jointly-formed cycles.
func (r *Registry) addEdges(sub TypeID, supertypes []TypeID) error {
	for _, sup := range supertypes {
		if r.hasEdge(sub, sup) {
			continue
		}
		// The edge sub -> sup closes a cycle iff sup already reaches sub.
		if sub == sup || r.reachable(sup, sub) {
			return errors.WithStack(&CyclicHierarchyError{
				Type: sub,
				Path: r.cyclePath(sub, sup),
			})
		}
	}

	node := &r.nodes[sub]
	added := false
	for _, sup := range supertypes {
		if r.hasEdge(sub, sup) {
			continue
		}
		node.Supertypes = append(node.Supertypes, sup)
		r.children[sup] = append(r.children[sup], sub)
		added = true
	}
	if added {
		clear(r.reach)
		clear(r.depth)
	}
	return nil
}

func (r *Registry) hasEdge(sub, sup TypeID) bool {
	for _, existing := range r.nodes[sub].Supertypes {
		if existing == sup {
			return true
		}
	}
	return false
}

// cyclePath reconstructs a name path sub <: sup <: ... <: sub for the error
// message.
func (r *Registry) cyclePath(sub, sup TypeID) []string {
	path := []string{r.nodes[sub].Name, r.nodes[sup].Name}
	cur := sup
	for cur != sub {
		next := NoTypeID
		for _, s := range r.nodes[cur].Supertypes {
			if s == sub || r.reachable(s, sub) {
				next = s
				break
			}
		}
		if next == NoTypeID {
			break
		}
		path = append(path, r.nodes[next].Name)
		cur = next
	}
	return path
}

// IsSubtype reports whether a <: b: a == b, or b is reachable from a over
// supertype edges. Diamond hierarchies are handled with a visited set, not a
// tree assumption.
func (r *Registry) IsSubtype(a, b TypeID) bool {
	if !r.valid(a) || !r.valid(b) {
		return false
	}
	if a == b {
		return true
	}
	return r.reachable(a, b)
}

func (r *Registry) reachable(from, to TypeID) bool {
	if from == to {
		return true
	}
	key := [2]TypeID{from, to}
	if hit, ok := r.reach[key]; ok {
		return hit
	}

	visited := map[TypeID]bool{from: true}
	queue := []TypeID{from}
	found := false
	for len(queue) > 0 && !found {
		cur := queue[0]
		queue = queue[1:]
		for _, sup := range r.nodes[cur].Supertypes {
			if sup == to {
				found = true
				break
			}
			if !visited[sup] {
				visited[sup] = true
				queue = append(queue, sup)
			}
		}
	}
	r.reach[key] = found
	return found
}

// LookupName returns the ID registered for name, if any.
func (r *Registry) LookupName(name string) (TypeID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Node returns a copy of the node for id, if valid.
func (r *Registry) Node(id TypeID) (Node, bool) {
	if !r.valid(id) {
		return Node{}, false
	}
	return r.nodes[id], true
}

// Name returns the registered name for id, or the sentinel form for an
// unknown ID. Convenient for diagnostics.
func (r *Registry) Name(id TypeID) string {
	if !r.valid(id) {
		return id.String()
	}
	return r.nodes[id].Name
}

// Len returns the number of registered types.
func (r *Registry) Len() int { return len(r.nodes) - 1 }

// All returns every registered ID in registration order.
func (r *Registry) All() []TypeID {
	out := make([]TypeID, 0, r.Len())
	for i := 1; i < len(r.nodes); i++ {
		out = append(out, TypeID(i))
	}
	return out
}

// DirectSubtypes returns the direct children of id in registration order.
func (r *Registry) DirectSubtypes(id TypeID) []TypeID {
	if !r.valid(id) {
		return nil
	}
	out := make([]TypeID, len(r.children[id]))
	copy(out, r.children[id])
	return out
}

// SubtypesOf returns every strict transitive subtype of id in registration
// order. For a sealed-table type this is its exhaustive variant set once the
// registration pass has ended.
func (r *Registry) SubtypesOf(id TypeID) []TypeID {
	if !r.valid(id) {
		return nil
	}
	in := make(map[TypeID]bool)
	var walk func(TypeID)
	walk = func(cur TypeID) {
		for _, child := range r.children[cur] {
			if !in[child] {
				in[child] = true
				walk(child)
			}
		}
	}
	walk(id)

	out := make([]TypeID, 0, len(in))
	for i := 1; i < len(r.nodes); i++ {
		if in[TypeID(i)] {
			out = append(out, TypeID(i))
		}
	}
	return out
}

// Depth returns the length of the longest supertype chain from id up to a
// root. Roots have depth zero. Used as the per-position weight when ranking
// implementations for table layout. Memoized; dense diamond stacks would
// otherwise make the walk exponential.
func (r *Registry) Depth(id TypeID) int {
	if !r.valid(id) {
		return 0
	}
	if d, ok := r.depth[id]; ok {
		return d
	}
	best := 0
	for _, sup := range r.nodes[id].Supertypes {
		if d := r.Depth(sup) + 1; d > best {
			best = d
		}
	}
	r.depth[id] = best
	return best
}

func (r *Registry) valid(id TypeID) bool {
	return id != NoTypeID && int(id) < len(r.nodes)
}
