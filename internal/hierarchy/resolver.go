// Package hierarchy keeps the LINK_XML_INDEX structure of an invoice a forest
// of depth one: every line is either a root or the direct child of a root.
//
// The resolver is the only component that writes LINK_XML_INDEX mappings after
// seeding. Reparent always attaches to a root (redirecting drops on a child to
// that child's parent) and demotes the children of the moved line to NEW, so
// no sequence of operator drops can build a chain.
package hierarchy

import (
	"fmt"

	"github.com/rs/zerolog"

	"erptools/internal/logger"
	"erptools/internal/mapping"
	"erptools/pkg/models"
)

// Unassign is the drop target meaning "detach from any parent".
const Unassign = -1

// Result describes what a Reparent call actually did.
type Result struct {
	Source          int
	RequestedTarget int
	EffectiveTarget int

	NoOp           bool
	Detached       bool  // target was Unassign
	Redirected     bool  // the drop target was a child; its root was used instead
	PromotedTarget bool  // the drop target had an unusable parent link and became a root
	Demoted        []int // former children of Source, now NEW
}

// Resolver performs structural changes on a mapping table for a fixed set of lines.
type Resolver struct {
	table *mapping.Table
	known map[int]bool
	order []int
	log   zerolog.Logger
}

// NewResolver creates a resolver over table for the given line indices.
func NewResolver(table *mapping.Table, indices []int) *Resolver {
	known := make(map[int]bool, len(indices))
	order := make([]int, len(indices))
	copy(order, indices)
	for _, index := range indices {
		known[index] = true
	}
	return &Resolver{
		table: table,
		known: known,
		order: order,
		log:   logger.WithComponent("hierarchy"),
	}
}

// Grouping returns the current parent/children grouping.
func (r *Resolver) Grouping() Grouping {
	return ComputeGrouping(r.order, r.table)
}

// Reparent moves source under target, or detaches it when target is Unassign.
// The table is either fully updated or left untouched.
func (r *Resolver) Reparent(source, target int) (Result, error) {
	const op = "Reparent"

	res := Result{Source: source, RequestedTarget: target, EffectiveTarget: target}

	if source == target {
		res.NoOp = true
		return res, nil
	}
	if !r.known[source] {
		return res, fmt.Errorf("%s: source: %w: %d", op, mapping.ErrUnknownIndex, source)
	}

	current := r.table.Get(source)

	if target == Unassign {
		res.Detached = true
		if current.Action() == models.ActionNew {
			res.NoOp = true
			return res, nil
		}
		if err := r.table.Commit(map[int]mapping.Mapping{source: current.Detached()}); err != nil {
			return res, fmt.Errorf("%s: %w", op, err)
		}
		r.log.Debug().Int("source", source).Msg("Line detached")
		return res, nil
	}

	if !r.known[target] {
		return res, fmt.Errorf("%s: target: %w: %d", op, mapping.ErrUnknownIndex, target)
	}

	changes := make(map[int]mapping.Mapping)

	effective, ok := r.root(target)
	if effective != target {
		res.Redirected = true
	}
	if !ok {
		// The chain above target is dangling or cyclic; the last line reached
		// cannot serve as a parent, so it becomes a root itself.
		changes[effective] = r.table.Get(effective).Detached()
		res.PromotedTarget = true
	}
	res.EffectiveTarget = effective

	if effective == source {
		res.NoOp = true
		return res, nil
	}

	for _, child := range r.table.ChildrenOf(source) {
		changes[child] = r.table.Get(child).Detached()
		res.Demoted = append(res.Demoted, child)
	}
	changes[source] = mapping.AsChild(effective, current.Markup())

	if err := r.table.Commit(changes); err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}

	event := r.log.Debug()
	if res.Redirected || len(res.Demoted) > 0 || res.PromotedTarget {
		event = r.log.Warn()
	}
	event.
		Int("source", source).
		Int("target", target).
		Int("effective_target", effective).
		Bool("redirected", res.Redirected).
		Bool("promoted_target", res.PromotedTarget).
		Ints("demoted", res.Demoted).
		Msg("Line reparented")

	return res, nil
}

// root follows parent links from index. It returns the first root reached and
// true, or the last line before a dangling or cyclic link and false.
func (r *Resolver) root(index int) (int, bool) {
	visited := map[int]bool{index: true}
	current := index
	for {
		parent, isChild := r.table.Get(current).TargetIndex()
		if !isChild {
			return current, true
		}
		if !r.known[parent] || visited[parent] {
			return current, false
		}
		visited[parent] = true
		current = parent
	}
}

// Normalize repairs parser suggestions so the depth-one rule holds before the
// operator's first action: self links become NEW, chains are redirected to
// their root and cycles are broken by detaching. Links to unknown lines are
// left alone; they are reported as missing references, not rewritten.
func (r *Resolver) Normalize() []int {
	var repaired []int

	for _, index := range r.order {
		m := r.table.Get(index)
		parent, isChild := m.TargetIndex()
		if !isChild || !r.known[parent] {
			continue
		}

		var fixed mapping.Mapping
		switch root, ok := r.root(parent); {
		case parent == index:
			fixed = m.Detached()
		case !ok || root == index:
			fixed = m.Detached()
		case root != parent:
			fixed = mapping.AsChild(root, m.Markup())
		default:
			continue
		}

		// Roots never become children here, so a single pass leaves every
		// child pointing at a root.
		if err := r.table.Commit(map[int]mapping.Mapping{index: fixed}); err != nil {
			r.log.Error().Err(err).Int("index", index).Msg("Failed to normalize line")
			continue
		}

		r.log.Warn().
			Int("index", index).
			Int("suggested_parent", parent).
			Str("result", fixed.String()).
			Msg("Parser suggestion normalized")
		repaired = append(repaired, index)
	}

	return repaired
}
