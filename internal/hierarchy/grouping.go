package hierarchy

import (
	"fmt"

	"erptools/internal/mapping"
)

// Grouping is the parent/children view of an invoice.
type Grouping struct {
	// Parents lists root lines in index order.
	Parents []int
	// Children maps a parent to its children in index order. Parents without
	// children have no entry.
	Children map[int][]int
	// Unresolved lists LINK_XML_INDEX lines shown as parents because their
	// target is not a root of this invoice.
	Unresolved []int
}

// IsParent reports whether index is displayed as a root.
func (g Grouping) IsParent(index int) bool {
	for _, p := range g.Parents {
		if p == index {
			return true
		}
	}
	return false
}

// ComputeGrouping partitions indices into parents and children. It is a pure
// read of the table: the ordering follows indices, which callers pass in
// ascending order.
func ComputeGrouping(indices []int, table *mapping.Table) Grouping {
	known := make(map[int]bool, len(indices))
	for _, index := range indices {
		known[index] = true
	}

	g := Grouping{Children: make(map[int][]int)}
	for _, index := range indices {
		parent, isChild := table.Get(index).TargetIndex()
		if !isChild {
			g.Parents = append(g.Parents, index)
			continue
		}
		if parent == index || !known[parent] || table.Get(parent).IsChild() {
			g.Parents = append(g.Parents, index)
			g.Unresolved = append(g.Unresolved, index)
			continue
		}
		g.Children[parent] = append(g.Children[parent], index)
	}

	return g
}

// ViolationKind classifies a structural problem found by CheckForest.
type ViolationKind string

const (
	// ViolationSelfLink: a line is its own parent.
	ViolationSelfLink ViolationKind = "self_link"
	// ViolationChain: a line's parent is itself a child (depth above one).
	ViolationChain ViolationKind = "chain"
	// ViolationDangling: a line points at an index the invoice does not have.
	ViolationDangling ViolationKind = "dangling"
)

// Violation is one structural problem.
type Violation struct {
	Index  int
	Target int
	Kind   ViolationKind
}

// BreaksForest reports whether the violation breaks the depth-one rule, as
// opposed to being a missing reference.
func (v Violation) BreaksForest() bool {
	return v.Kind == ViolationSelfLink || v.Kind == ViolationChain
}

func (v Violation) String() string {
	return fmt.Sprintf("line %d -> %d: %s", v.Index, v.Target, v.Kind)
}

// CheckForest lists every LINK_XML_INDEX mapping whose target is not a root
// of the invoice, in index order.
func CheckForest(indices []int, table *mapping.Table) []Violation {
	known := make(map[int]bool, len(indices))
	for _, index := range indices {
		known[index] = true
	}

	var violations []Violation
	for _, index := range indices {
		parent, isChild := table.Get(index).TargetIndex()
		if !isChild {
			continue
		}
		switch {
		case parent == index:
			violations = append(violations, Violation{Index: index, Target: parent, Kind: ViolationSelfLink})
		case !known[parent]:
			violations = append(violations, Violation{Index: index, Target: parent, Kind: ViolationDangling})
		case table.Get(parent).IsChild():
			violations = append(violations, Violation{Index: index, Target: parent, Kind: ViolationChain})
		}
	}
	return violations
}
