package livelist

import (
	"github.com/cockroachdb/errors"
)

// Error categories. Every error returned by this package is marked with one
// of them; test with errors.Is.
var (
	// ErrConfiguration is returned when a coordinator cannot be built from the
	// given configuration and source.
	ErrConfiguration = errors.New("livelist: configuration error")

	// ErrInvariant is returned when a reconciliation pass hits a state that
	// construction-time validation should have ruled out. The pass is aborted
	// and the previous baseline is kept.
	ErrInvariant = errors.New("livelist: invariant violation")

	// ErrReentrantSignal is returned when a notifier keeps signalling new
	// changes from inside Notify, so the deferred passes never settle. It is
	// also returned by SetSource and the footer toggles when they are called
	// during delivery.
	ErrReentrantSignal = errors.New("livelist: change signal during notification")

	// ErrPositionOutOfRange is returned by row accessors for positions outside
	// [0, RowCount()).
	ErrPositionOutOfRange = errors.New("livelist: position out of range")

	// ErrClosed is returned when a closed coordinator is asked to do work.
	ErrClosed = errors.New("livelist: coordinator closed")
)

func configError(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfiguration)
}
