package types

import "fmt"

// TypeID is a dense handle into a Registry, stable for the registry's
// lifetime. The zero value is reserved as a sentinel so dispatch tables can
// index implementation records by ID without boxing.
type TypeID uint32

// NoTypeID is the invalid sentinel.
const NoTypeID TypeID = 0

// IsValid reports whether the ID refers to a registered type.
func (id TypeID) IsValid() bool { return id != NoTypeID }

func (id TypeID) String() string {
	if id == NoTypeID {
		return "type#invalid"
	}
	return fmt.Sprintf("type#%d", uint32(id))
}

// Kind classifies how a type participates in the hierarchy.
type Kind int

const (
	// KindPrimitive is a leaf type with no user-visible structure (Int,
	// String, Bool).
	KindPrimitive Kind = iota

	// KindOpenTable is an extensible table type; new subtypes may be
	// registered at any point during the registration pass.
	KindOpenTable

	// KindSealedTable is a closed table type; once the registration pass
	// ends its subtype set is exhaustively known, which is what lets a
	// signature group over it be sealed for static dispatch.
	KindSealedTable
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindOpenTable:
		return "open-table"
	case KindSealedTable:
		return "sealed-table"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind resolves a kind name as it appears in declarations.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "primitive":
		return KindPrimitive, nil
	case "open-table":
		return KindOpenTable, nil
	case "sealed-table":
		return KindSealedTable, nil
	default:
		return KindPrimitive, fmt.Errorf("unknown type kind %q (want primitive, open-table, or sealed-table)", name)
	}
}

// Sealed reports whether the kind has a closed subtype set.
func (k Kind) Sealed() bool {
	return k == KindPrimitive || k == KindSealedTable
}

// Node is one registered type: its identity, kind, and direct supertype
// edges. Nodes form a DAG; multiple supertypes (diamonds) are legal, cycles
// are not.
type Node struct {
	ID         TypeID
	Name       string
	Kind       Kind
	Supertypes []TypeID
}
