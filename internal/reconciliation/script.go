package reconciliation

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"erptools/internal/hierarchy"
	"erptools/internal/logger"
	"erptools/internal/mapping"
	"erptools/pkg/models"
)

const dateLayout = "2006-01-02"

// Script is a recorded sequence of operator actions that can be replayed
// against a session, e.g.
//
//	operations:
//	  - op: reparent
//	    line: 0
//	    target: 1
//	  - op: select
//	    lines: [0, 2]
//	  - op: bulk-markup
//	    value: 45
//	  - op: term
//	    id: "30-60"
type Script struct {
	Operations []Operation `yaml:"operations" json:"operations"`
}

// Operation is one scripted action. Which fields are read depends on Op.
type Operation struct {
	Op string `yaml:"op" json:"op"`

	Line    *int             `yaml:"line,omitempty" json:"line,omitempty"`
	Lines   []int            `yaml:"lines,omitempty" json:"lines,omitempty"`
	Target  *int             `yaml:"target,omitempty" json:"target,omitempty"`
	Product string           `yaml:"product,omitempty" json:"product,omitempty"`
	Value   *decimal.Decimal `yaml:"value,omitempty" json:"value,omitempty"`

	Enabled  *bool            `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	TermID   string           `yaml:"id,omitempty" json:"id,omitempty"`
	Entry    *decimal.Decimal `yaml:"entry,omitempty" json:"entry,omitempty"`
	Count    int              `yaml:"count,omitempty" json:"count,omitempty"`
	FirstDue string           `yaml:"first_due,omitempty" json:"first_due,omitempty"`
	Interval int              `yaml:"interval,omitempty" json:"interval,omitempty"`

	Number int              `yaml:"number,omitempty" json:"number,omitempty"`
	Due    string           `yaml:"due,omitempty" json:"due,omitempty"`
	Amount *decimal.Decimal `yaml:"amount,omitempty" json:"amount,omitempty"`
}

// Scripted operation names.
const (
	OpReparent          = "reparent"
	OpDetach            = "detach"
	OpLinkExisting      = "link-existing"
	OpLinkVariant       = "link-variant"
	OpNew               = "new"
	OpMarkup            = "markup"
	OpSelect            = "select"
	OpDeselect          = "deselect"
	OpClearSelection    = "clear-selection"
	OpBulkMarkup        = "bulk-markup"
	OpGenerate          = "generate"
	OpTerm              = "term"
	OpSchedule          = "schedule"
	OpAddInstallment    = "add-installment"
	OpRemoveInstallment = "remove-installment"
	OpEditInstallment   = "edit-installment"
)

// LoadScript reads a YAML (or JSON) script file.
func LoadScript(path string) (*Script, error) {
	const op = "LoadScript"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read %s: %w", op, path, err)
	}
	return ParseScript(data)
}

// ParseScript decodes a script document.
func ParseScript(data []byte) (*Script, error) {
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("ParseScript: invalid script: %w", err)
	}
	return &script, nil
}

// Replay applies every operation in order and stops at the first failure.
// Operations applied before the failure stay applied.
func (sc *Script) Replay(ctx context.Context, s *Session) error {
	log := logger.WithSession("script", s.ID())

	for i, operation := range sc.Operations {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("Replay: %w", err)
		}
		if err := Apply(s, operation); err != nil {
			return fmt.Errorf("Replay: step %d (%s): %w", i+1, operation.Op, err)
		}
		log.Debug().
			Int("step", i+1).
			Str("op", operation.Op).
			Msg("Script step applied")
	}

	log.Info().Int("steps", len(sc.Operations)).Msg("Script replayed")
	return nil
}

// Apply runs one scripted operation against the session.
func Apply(s *Session, o Operation) error {
	switch o.Op {
	case OpReparent:
		if o.Line == nil || o.Target == nil {
			return fmt.Errorf("%w: %s needs line and target", ErrInvalidOperation, o.Op)
		}
		_, err := s.Reparent(*o.Line, *o.Target)
		return err

	case OpDetach:
		line, err := o.line()
		if err != nil {
			return err
		}
		_, err = s.Reparent(line, hierarchy.Unassign)
		return err

	case OpLinkExisting, OpLinkVariant:
		line, err := o.line()
		if err != nil {
			return err
		}
		if o.Product == "" {
			return fmt.Errorf("%w: %s needs product", ErrInvalidOperation, o.Op)
		}
		if o.Op == OpLinkVariant {
			return s.LinkVariant(line, o.Product)
		}
		return s.LinkExisting(line, o.Product)

	case OpNew:
		line, err := o.line()
		if err != nil {
			return err
		}
		return s.MarkNew(line)

	case OpMarkup:
		line, err := o.line()
		if err != nil {
			return err
		}
		if o.Value == nil {
			return fmt.Errorf("%w: %s needs value", ErrInvalidOperation, o.Op)
		}
		return s.SetMarkup(line, *o.Value)

	case OpSelect:
		s.Select(o.indices()...)
		return nil

	case OpDeselect:
		s.Deselect(o.indices()...)
		return nil

	case OpClearSelection:
		s.ClearSelection()
		return nil

	case OpBulkMarkup:
		if o.Value == nil {
			return fmt.Errorf("%w: %s needs value", ErrInvalidOperation, o.Op)
		}
		_, err := s.ApplyMarkupToSelection(*o.Value)
		return err

	case OpGenerate:
		if o.Enabled == nil {
			return fmt.Errorf("%w: %s needs enabled", ErrInvalidOperation, o.Op)
		}
		s.SetGenerate(*o.Enabled)
		return nil

	case OpTerm:
		return s.SelectTerm(o.TermID)

	case OpSchedule:
		return o.schedule(s)

	case OpAddInstallment:
		_, err := s.AddInstallment()
		return err

	case OpRemoveInstallment:
		return s.RemoveInstallment(o.Number)

	case OpEditInstallment:
		var due *time.Time
		if o.Due != "" {
			parsed, err := time.Parse(dateLayout, o.Due)
			if err != nil {
				return fmt.Errorf("%w: due: %v", ErrInvalidOperation, err)
			}
			due = &parsed
		}
		return s.EditInstallment(o.Number, due, o.Amount)
	}

	return fmt.Errorf("%w: %q", ErrUnknownOperation, o.Op)
}

func (o Operation) line() (int, error) {
	if o.Line == nil {
		return 0, fmt.Errorf("%w: %s needs line", ErrInvalidOperation, o.Op)
	}
	return *o.Line, nil
}

func (o Operation) indices() []int {
	out := append([]int(nil), o.Lines...)
	if o.Line != nil {
		out = append(out, *o.Line)
	}
	return out
}

// schedule fills unset parameters from the current configuration.
func (o Operation) schedule(s *Session) error {
	cfg := s.Financial()

	entry := cfg.EntryAmount
	if o.Entry != nil {
		entry = *o.Entry
	}
	count := cfg.InstallmentCount
	if o.Count != 0 {
		count = o.Count
	}
	interval := cfg.IntervalDays
	if o.Interval != 0 {
		interval = o.Interval
	}
	firstDue := cfg.FirstDueDate
	if o.FirstDue != "" {
		parsed, err := time.Parse(dateLayout, o.FirstDue)
		if err != nil {
			return fmt.Errorf("%w: first_due: %v", ErrInvalidOperation, err)
		}
		firstDue = parsed
	}

	return s.ConfigureSchedule(entry, count, firstDue, interval)
}

// operationsFor returns the steps that reproduce mapping m on line index.
func operationsFor(index int, m mapping.Mapping) []Operation {
	line := index
	markup := m.Markup()
	ops := []Operation{}

	switch m.Action() {
	case models.ActionLinkXMLIndex:
		target, _ := m.TargetIndex()
		ops = append(ops, Operation{Op: OpReparent, Line: &line, Target: &target})
	case models.ActionLinkExisting:
		id, _ := m.TargetID()
		ops = append(ops, Operation{Op: OpLinkExisting, Line: &line, Product: id})
	case models.ActionLinkVariant:
		id, _ := m.TargetID()
		ops = append(ops, Operation{Op: OpLinkVariant, Line: &line, Product: id})
	default:
		ops = append(ops, Operation{Op: OpNew, Line: &line})
	}

	return append(ops, Operation{Op: OpMarkup, Line: &line, Value: &markup})
}

// Record writes the current mapping table out as a script. Roots come first
// so that replaying the reparent steps never hits a line that is still a child.
// A link to a line the invoice does not have can only come from the parser
// suggestions; a fresh session seeds it again, so only its markup is recorded.
func (s *Session) Record() *Script {
	var roots, children []Operation
	for _, index := range s.store.Indices() {
		m := s.table.Get(index)
		if target, ok := m.TargetIndex(); ok && !s.store.Has(target) {
			line, markup := index, m.Markup()
			children = append(children, Operation{Op: OpMarkup, Line: &line, Value: &markup})
			continue
		}
		if m.IsChild() {
			children = append(children, operationsFor(index, m)...)
			continue
		}
		roots = append(roots, operationsFor(index, m)...)
	}
	return &Script{Operations: append(roots, children...)}
}
