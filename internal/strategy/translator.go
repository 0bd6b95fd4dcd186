package strategy

import (
	"fmt"

	"github.com/livefir/livelist/internal/diff"
)

// OperationType represents the kind of change a renderer has to apply
type OperationType string

const (
	OpInsert      OperationType = "insert"       // One row inserted at Position
	OpRemove      OperationType = "remove"       // One row removed at Position
	OpRemoveRange OperationType = "remove_range" // Count rows removed starting at Position
	OpChangeRange OperationType = "change_range" // Count rows starting at Position must be re-rendered
	OpReset       OperationType = "reset"        // Treat the whole list as changed
)

// Operation is a single change notification for the rendering collaborator
type Operation struct {
	Type     OperationType `json:"type"`
	Position int           `json:"position"`
	Count    int           `json:"count,omitempty"`
}

func (op Operation) String() string {
	switch op.Type {
	case OpInsert:
		return fmt.Sprintf("InsertAt(%d)", op.Position)
	case OpRemove:
		return fmt.Sprintf("RemoveAt(%d)", op.Position)
	case OpRemoveRange:
		return fmt.Sprintf("RemoveRange(%d,%d)", op.Position, op.Count)
	case OpChangeRange:
		return fmt.Sprintf("ChangeRange(%d,%d)", op.Position, op.Count)
	case OpReset:
		return "Reset"
	default:
		return string(op.Type)
	}
}

// InsertAt, RemoveAt, RemoveRange, ChangeRange and Reset build operations.
func InsertAt(pos int) Operation { return Operation{Type: OpInsert, Position: pos} }

func RemoveAt(pos int) Operation { return Operation{Type: OpRemove, Position: pos} }

func RemoveRange(pos, n int) Operation {
	return Operation{Type: OpRemoveRange, Position: pos, Count: n}
}

func ChangeRange(pos, n int) Operation {
	return Operation{Type: OpChangeRange, Position: pos, Count: n}
}

func Reset() Operation { return Operation{Type: OpReset} }

// Reason explains why a plan fell back to Reset
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonEmptyList      Reason = "empty_list"
	ReasonMultipleDeltas Reason = "multiple_deltas"
	ReasonBulkInsert     Reason = "bulk_insert"
	ReasonHeadRemoval    Reason = "head_removal"
	ReasonReplacement    Reason = "replacement"
	ReasonOutOfRange     Reason = "out_of_range"

	// Reasons used by callers that reset without diffing.
	ReasonAnimationOff   Reason = "animation_off"
	ReasonNoBaseline     Reason = "no_baseline"
	ReasonSourceReplaced Reason = "source_replaced"
	ReasonFooterToggled  Reason = "footer_toggled"
)

// Plan is the translated result of one edit script
type Plan struct {
	Operations []Operation
	Fallback   Reason
}

// Granular reports whether the plan carries fine-grained operations.
func (p Plan) Granular() bool {
	return len(p.Operations) > 0 && p.Fallback == ReasonNone
}

// ResetPlan returns a plan holding a single Reset.
func ResetPlan(reason Reason) Plan {
	return Plan{Operations: []Operation{Reset()}, Fallback: reason}
}

// Translate turns an edit script between old and revised into renderer
// operations. Only a lone single-row insertion and a lone removal away from
// the head of the list are translated into granular operations; everything
// else becomes Reset so the renderer's row count can never drift from the
// real one.
//
// Removal operations come before the ChangeRange refreshes that follow them.
// The refresh conditions are intentionally asymmetric: the prefix refresh
// needs p-1 > 0 while the suffix refresh only needs p > 0, and the suffix
// count is len(revised)-1 regardless of p.
func Translate[T any](old, revised []T, script diff.EditScript) Plan {
	if len(revised) == 0 {
		return ResetPlan(ReasonEmptyList)
	}
	if len(script) == 0 {
		return Plan{}
	}
	if len(script) > 1 {
		return ResetPlan(ReasonMultipleDeltas)
	}

	delta := script[0]
	if delta.Original.Pos < 0 || delta.Original.End() > len(old) ||
		delta.Revised.Pos < 0 || delta.Revised.End() > len(revised) {
		return ResetPlan(ReasonOutOfRange)
	}

	switch delta.Kind {
	case diff.Insert:
		if delta.Revised.Len != 1 {
			return ResetPlan(ReasonBulkInsert)
		}
		return Plan{Operations: []Operation{InsertAt(delta.Revised.Pos)}}

	case diff.Delete:
		p := delta.Original.Pos
		if p == 0 {
			return ResetPlan(ReasonHeadRemoval)
		}

		ops := make([]Operation, 0, 3)
		if delta.Original.Len == 1 {
			ops = append(ops, RemoveAt(p))
		} else {
			ops = append(ops, RemoveRange(p, delta.Original.Len))
		}
		if p-1 > 0 {
			ops = append(ops, ChangeRange(0, p-1))
		}
		if p > 0 && len(revised) > 0 {
			ops = append(ops, ChangeRange(p, len(revised)-1))
		}
		return Plan{Operations: ops}

	default:
		return ResetPlan(ReasonReplacement)
	}
}
