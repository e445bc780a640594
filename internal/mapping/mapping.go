// Package mapping holds the per-line decisions of a reconciliation session.
//
// A Mapping is a tagged variant: the target fields that exist depend on the
// action, and the constructors refuse combinations that make no sense (a
// LINK_EXISTING mapping can never carry a line index, a NEW mapping carries no
// target at all). The Table keeps one Mapping per line index and is the only
// mutable state of the reconciliation; structural rules about LINK_XML_INDEX
// parents live in the hierarchy package.
package mapping

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"erptools/pkg/models"
)

// Mapping is the decision record of one invoice line.
type Mapping struct {
	action      models.Action
	targetIndex int
	targetID    string
	markup      decimal.Decimal
}

// AsNew returns a mapping that creates a new catalog entry.
func AsNew(markup decimal.Decimal) Mapping {
	return Mapping{action: models.ActionNew, markup: markup}
}

// AsChild returns a mapping that merges the line as a variant under another
// line of the same invoice.
func AsChild(targetIndex int, markup decimal.Decimal) Mapping {
	return Mapping{action: models.ActionLinkXMLIndex, targetIndex: targetIndex, markup: markup}
}

// AsExisting returns a mapping that links the line to an existing catalog entry.
func AsExisting(targetID string, markup decimal.Decimal) (Mapping, error) {
	return FromParts(models.ActionLinkExisting, nil, targetID, markup)
}

// AsVariant returns a mapping that links the line to a variant of an existing catalog entry.
func AsVariant(targetID string, markup decimal.Decimal) (Mapping, error) {
	return FromParts(models.ActionLinkVariant, nil, targetID, markup)
}

// FromParts builds a mapping from loose fields and rejects invalid combinations.
func FromParts(action models.Action, targetIndex *int, targetID string, markup decimal.Decimal) (Mapping, error) {
	targetID = strings.TrimSpace(targetID)

	switch action {
	case models.ActionNew:
		if targetIndex != nil || targetID != "" {
			return Mapping{}, fmt.Errorf("%w: %s takes no target", ErrInvalidMapping, action)
		}
		return AsNew(markup), nil

	case models.ActionLinkXMLIndex:
		if targetIndex == nil {
			return Mapping{}, fmt.Errorf("%w: %s requires a target index", ErrInvalidMapping, action)
		}
		if targetID != "" {
			return Mapping{}, fmt.Errorf("%w: %s cannot carry a catalog id", ErrInvalidMapping, action)
		}
		return AsChild(*targetIndex, markup), nil

	case models.ActionLinkExisting, models.ActionLinkVariant:
		if targetIndex != nil {
			return Mapping{}, fmt.Errorf("%w: %s cannot carry a target index", ErrInvalidMapping, action)
		}
		if targetID == "" {
			return Mapping{}, fmt.Errorf("%w: %s requires a catalog id", ErrInvalidMapping, action)
		}
		return Mapping{action: action, targetID: targetID, markup: markup}, nil
	}

	return Mapping{}, fmt.Errorf("%w: unknown action %q", ErrInvalidMapping, action)
}

// Action returns the mapping's action.
func (m Mapping) Action() models.Action {
	return m.action
}

// TargetIndex returns the parent line index of a LINK_XML_INDEX mapping.
func (m Mapping) TargetIndex() (int, bool) {
	if m.action != models.ActionLinkXMLIndex {
		return 0, false
	}
	return m.targetIndex, true
}

// TargetID returns the catalog id of a LINK_EXISTING or LINK_VARIANT mapping.
func (m Mapping) TargetID() (string, bool) {
	if m.action != models.ActionLinkExisting && m.action != models.ActionLinkVariant {
		return "", false
	}
	return m.targetID, true
}

// Markup returns the markup percentage.
func (m Mapping) Markup() decimal.Decimal {
	return m.markup
}

// IsChild reports whether the line is merged under another line of the invoice.
func (m Mapping) IsChild() bool {
	return m.action == models.ActionLinkXMLIndex
}

// PointsAt reports whether the mapping is a child of index.
func (m Mapping) PointsAt(index int) bool {
	return m.action == models.ActionLinkXMLIndex && m.targetIndex == index
}

// WithMarkup returns a copy with a different markup.
func (m Mapping) WithMarkup(markup decimal.Decimal) Mapping {
	m.markup = markup
	return m
}

// Detached returns a NEW mapping keeping the current markup.
func (m Mapping) Detached() Mapping {
	return AsNew(m.markup)
}

// Equal reports whether two mappings carry the same decision.
func (m Mapping) Equal(other Mapping) bool {
	return m.action == other.action &&
		m.targetIndex == other.targetIndex &&
		m.targetID == other.targetID &&
		m.markup.Equal(other.markup)
}

// String renders the mapping for logs.
func (m Mapping) String() string {
	switch m.action {
	case models.ActionLinkXMLIndex:
		return fmt.Sprintf("%s->%d (markup %s%%)", m.action, m.targetIndex, m.markup)
	case models.ActionLinkExisting, models.ActionLinkVariant:
		return fmt.Sprintf("%s->%s (markup %s%%)", m.action, m.targetID, m.markup)
	}
	return fmt.Sprintf("%s (markup %s%%)", m.action, m.markup)
}

// Patch is a partial update. Nil fields keep the current value; targets of the
// previous action are dropped when the action changes.
type Patch struct {
	Action      *models.Action
	TargetIndex *int
	TargetID    *string
	Markup      *decimal.Decimal
}

// Apply merges p into m and validates the result.
func (m Mapping) Apply(p Patch) (Mapping, error) {
	action := m.action
	if p.Action != nil {
		action = *p.Action
	}
	sameAction := action == m.action

	var targetIndex *int
	switch {
	case p.TargetIndex != nil:
		targetIndex = p.TargetIndex
	case sameAction && m.action == models.ActionLinkXMLIndex:
		idx := m.targetIndex
		targetIndex = &idx
	}

	var targetID string
	switch {
	case p.TargetID != nil:
		targetID = *p.TargetID
	case sameAction:
		targetID = m.targetID
	}

	markup := m.markup
	if p.Markup != nil {
		markup = *p.Markup
	}

	return FromParts(action, targetIndex, targetID, markup)
}
