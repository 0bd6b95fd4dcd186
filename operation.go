package livelist

import (
	"github.com/livefir/livelist/internal/identity"
	"github.com/livefir/livelist/internal/rows"
	"github.com/livefir/livelist/internal/strategy"
)

// Operation is a single change notification for the rendering collaborator.
type Operation = strategy.Operation

// OperationType names the kind of an Operation.
type OperationType = strategy.OperationType

const (
	OpInsert      = strategy.OpInsert
	OpRemove      = strategy.OpRemove
	OpRemoveRange = strategy.OpRemoveRange
	OpChangeRange = strategy.OpChangeRange
	OpReset       = strategy.OpReset
)

// InsertAt announces one new row at pos.
func InsertAt(pos int) Operation { return strategy.InsertAt(pos) }

// RemoveAt announces the removal of the row at pos.
func RemoveAt(pos int) Operation { return strategy.RemoveAt(pos) }

// RemoveRange announces the removal of n rows starting at pos.
func RemoveRange(pos, n int) Operation { return strategy.RemoveRange(pos, n) }

// ChangeRange asks the renderer to rebind n rows starting at pos.
func ChangeRange(pos, n int) Operation { return strategy.ChangeRange(pos, n) }

// Reset tells the renderer to treat every row as changed.
func Reset() Operation { return strategy.Reset() }

// Identity is the comparable identity of one visible row.
type Identity = identity.Identity

// Row describes one position of the flattened list.
type Row = rows.Row

// Notifier receives the operations of one reconciliation pass, in the order
// they have to be applied. Notify runs on the goroutine that delivered the
// change signal. It may call the coordinator's read accessors; a change
// signalled from inside Notify is handled once Notify returns.
type Notifier interface {
	Notify(ops []Operation)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ops []Operation)

func (f NotifierFunc) Notify(ops []Operation) { f(ops) }

// RowKind classifies a position of the flat list for the renderer.
type RowKind int

const (
	KindDataRow RowKind = iota
	KindSectionHeader
	KindLoadMoreFooter
)

func (k RowKind) String() string {
	switch k {
	case KindDataRow:
		return "data"
	case KindSectionHeader:
		return "header"
	case KindLoadMoreFooter:
		return "footer"
	default:
		return "unknown"
	}
}
