package store

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/livefir/livelist"
)

// QuerySource is a livelist source over one ordered query of the people
// table. Its contents only change on Reload, which re-runs the query and
// signals the listeners on the calling goroutine.
type QuerySource struct {
	*livelist.SliceSource

	store   *Store
	orderBy string

	mu    sync.Mutex
	limit int
	total int
}

// Query returns a source ordered by column. A positive limit keeps only the
// first limit rows. The source is empty until the first Reload.
func (s *Store) Query(orderBy string, limit int) (*QuerySource, error) {
	if orderBy == "" {
		orderBy = "id"
	}
	if !validOrder(orderBy) {
		return nil, errors.Wrapf(ErrUnknownColumn, "order by %q", orderBy)
	}
	return &QuerySource{
		SliceSource: livelist.NewSliceSource(Schema),
		store:       s,
		orderBy:     orderBy,
		limit:       limit,
	}, nil
}

// OrderBy returns the ordering column.
func (q *QuerySource) OrderBy() string { return q.orderBy }

// Reload re-runs the query and replaces the snapshot. Reloads are
// serialised, so the snapshot never changes while listeners run.
func (q *QuerySource) Reload(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	total, err := q.store.Count(ctx)
	if err != nil {
		return err
	}
	people, err := q.store.List(ctx, q.orderBy, q.limit)
	if err != nil {
		return err
	}
	q.total = total

	records := make([]livelist.Record, len(people))
	for i, p := range people {
		records[i] = p.Record()
	}
	return q.Replace(records...)
}

// Grow raises the limit by n rows and reloads. It does nothing for an
// unlimited query.
func (q *QuerySource) Grow(ctx context.Context, n int) error {
	q.mu.Lock()
	if q.limit <= 0 {
		q.mu.Unlock()
		return nil
	}
	q.limit += n
	q.mu.Unlock()

	return q.Reload(ctx)
}

// HasMore reports whether the last reload left rows out because of the
// limit.
func (q *QuerySource) HasMore() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.limit > 0 && q.total > q.limit
}
