// Package livelist keeps a UI-facing row list in step with a changing backing
// sequence. On every change signal the Coordinator rebuilds its rows and row
// identities, diffs the identities against the previous pass and tells its
// Notifier which rows to insert, remove or refresh. Anything the translator
// cannot describe safely becomes a single Reset.
package livelist

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/livefir/livelist/internal/diff"
	"github.com/livefir/livelist/internal/identity"
	"github.com/livefir/livelist/internal/logger"
	"github.com/livefir/livelist/internal/metrics"
	"github.com/livefir/livelist/internal/rows"
	"github.com/livefir/livelist/internal/strategy"
)

// maxDeferredPasses bounds how many extra passes signals raised during one
// delivery may trigger.
const maxDeferredPasses = 8

// Coordinator owns the row list of one view.
//
// Passes never overlap: a signal from another goroutine waits for the running
// pass, and a signal raised while Notify is running is deferred and handled
// by the delivering goroutine once Notify returns. The read accessors may be
// called at any time, including from inside Notify, and always see the state
// of the last committed pass.
//
// SetSource, AddLoadMore, RemoveLoadMore and Close fail with
// ErrReentrantSignal while any delivery is in progress. Callers that use them
// from several goroutines serialize them with the change signals they raise.
type Coordinator struct {
	cfg      Config
	animate  bool
	notifier Notifier
	label    LabelFunc
	logger   *zap.Logger
	metrics  *metrics.Collector
	sub      *Subscription

	passMu sync.Mutex

	mu        sync.RWMutex
	source    Source
	extractor identity.Extractor
	count     int
	flat      []rows.Row
	ids       []Identity
	baseline  bool
	loadMore  bool
	closed    bool

	deliveryMu sync.Mutex
	delivering bool
	pending    bool
}

// snapshot is the state produced by one pass before it is committed.
type snapshot struct {
	count int
	flat  []rows.Row
	ids   []Identity
}

// New builds a coordinator over src, which may be nil. The initial rows are
// computed immediately without notifying. When cfg.AutomaticUpdate is set the
// coordinator subscribes to src.
//
// Configuration problems are reported as ErrConfiguration: a missing
// notifier, grouping without a grouping key, or AnimateChanges requested
// over a source whose primary key is missing or is neither integer nor
// string. The key is checked even when AnimateChanges is forced off.
func New(src Source, notifier Notifier, cfg Config, opts ...Option) (*Coordinator, error) {
	if notifier == nil {
		return nil, configError("a notifier is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Coordinator{
		cfg:      cfg,
		animate:  cfg.Animated(),
		notifier: notifier,
		label:    DefaultHeaderLabel,
		logger:   zap.NewNop(),
		metrics:  metrics.NewCollector(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logger.Component(c.logger, "coordinator")
	c.sub = newSubscription(c)

	extractor, err := c.prepare(src)
	if err != nil {
		return nil, err
	}
	snap, err := c.build(src, extractor)
	if err != nil {
		return nil, err
	}

	c.source = src
	c.extractor = extractor
	c.commit(snap)

	if cfg.AutomaticUpdate {
		c.sub.attach(src)
	}

	c.logger.Debug("coordinator created",
		zap.Bool("animate", c.animate),
		zap.Bool("grouping", cfg.Grouping),
		zap.Int(logger.FieldCount, c.RowCount()))
	return c, nil
}

// prepare validates src against the configuration and returns the identity
// extractor for its primary key.
func (c *Coordinator) prepare(src Source) (identity.Extractor, error) {
	if src == nil {
		return identity.Extractor{}, nil
	}
	schema := src.Schema()

	if c.cfg.Grouping && len(schema.Columns) > 0 {
		if _, ok := schema.Columns[c.cfg.GroupingKey]; !ok {
			return identity.Extractor{}, errors.WithHint(
				configError("grouping key %q is not a column of the source", c.cfg.GroupingKey),
				"the backing sequence must be sorted by the grouping key column")
		}
	}

	// The key is checked whenever animation is requested, even if it ends up
	// forced off by a manual update mode.
	if !c.cfg.AnimateChanges {
		return identity.Extractor{}, nil
	}
	if schema.PrimaryKey == "" {
		return identity.Extractor{}, errors.WithHint(
			configError("animated changes need a primary key on the source"),
			"disable AnimateChanges or declare Schema.PrimaryKey")
	}

	switch t := schema.PrimaryKeyType(); t {
	case ColumnInteger:
		return identity.Extractor{Kind: identity.KindInteger, Column: schema.PrimaryKey}, nil
	case ColumnString:
		return identity.Extractor{Kind: identity.KindString, Column: schema.PrimaryKey}, nil
	default:
		return identity.Extractor{}, configError(
			"primary key %q has type %s, animated changes need integer or string", schema.PrimaryKey, t)
	}
}

// build computes rows and identities for the current contents of src. The
// source must not change while build runs.
func (c *Coordinator) build(src Source, ex identity.Extractor) (snapshot, error) {
	var snap snapshot
	if src == nil {
		return snap, nil
	}

	snap.count = src.Len()
	if c.cfg.Grouping {
		key := c.cfg.GroupingKey
		snap.flat = rows.Flatten(snap.count, func(i int) string {
			return src.Text(i, key)
		}, rows.LabelFunc(c.label))
	}

	if !c.animate {
		return snap, nil
	}
	ids, err := ex.Sequence(src, snap.count, snap.flat, c.cfg.Grouping)
	if err != nil {
		return snapshot{}, errors.Mark(err, ErrInvariant)
	}
	snap.ids = ids
	return snap, nil
}

func (c *Coordinator) commit(snap snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = snap.count
	c.flat = snap.flat
	c.ids = snap.ids
	c.baseline = true
}

// Refresh runs one reconciliation pass by hand. It is how a coordinator
// without AutomaticUpdate picks up changes.
func (c *Coordinator) Refresh() error {
	return c.reconcile("refresh")
}

// reconcile is the entry point of every change signal.
func (c *Coordinator) reconcile(trigger string) error {
	c.deliveryMu.Lock()
	if c.delivering {
		c.pending = true
		c.deliveryMu.Unlock()
		c.metrics.IncrementCustomCounter("signals.deferred")
		return nil
	}
	c.deliveryMu.Unlock()

	c.passMu.Lock()
	defer c.passMu.Unlock()

	for n := 0; ; n++ {
		if n > maxDeferredPasses {
			c.metrics.IncrementPassError()
			err := errors.Mark(
				errors.Newf("change signals still pending after %d deferred passes", maxDeferredPasses),
				ErrReentrantSignal)
			c.logger.Error("reconciliation did not settle", zap.Error(err))
			return err
		}
		if err := c.pass(trigger); err != nil {
			return err
		}
		if !c.takePending() {
			return nil
		}
		trigger = "deferred"
	}
}

// pass runs one reconciliation. The new baseline is committed before the
// notifier runs and is left untouched when the pass fails.
func (c *Coordinator) pass(trigger string) error {
	start := time.Now()

	c.mu.RLock()
	closed := c.closed
	src, ex := c.source, c.extractor
	old, hadBaseline := c.ids, c.baseline
	c.mu.RUnlock()

	if closed {
		return errors.Wrap(ErrClosed, "reconcile")
	}

	snap, err := c.build(src, ex)
	if err != nil {
		c.metrics.IncrementPassError()
		c.logger.Error("reconciliation pass aborted",
			zap.String(logger.FieldOperation, trigger),
			zap.Error(err))
		return err
	}

	var plan strategy.Plan
	switch {
	case !c.animate:
		plan = strategy.ResetPlan(strategy.ReasonAnimationOff)
	case !hadBaseline || len(old) == 0:
		plan = strategy.ResetPlan(strategy.ReasonNoBaseline)
	case len(snap.ids) == 0:
		plan = strategy.ResetPlan(strategy.ReasonEmptyList)
	default:
		script := diff.Compute(old, snap.ids)
		plan = strategy.Translate(old, snap.ids, script)
	}

	c.commit(snap)
	c.deliver(plan.Operations)
	c.record(trigger, plan, time.Since(start))
	return nil
}

func (c *Coordinator) deliver(ops []Operation) {
	if len(ops) == 0 {
		return
	}

	c.deliveryMu.Lock()
	c.delivering = true
	c.deliveryMu.Unlock()

	defer func() {
		c.deliveryMu.Lock()
		c.delivering = false
		c.deliveryMu.Unlock()
	}()

	c.notifier.Notify(append([]Operation(nil), ops...))
}

func (c *Coordinator) takePending() bool {
	c.deliveryMu.Lock()
	defer c.deliveryMu.Unlock()
	p := c.pending
	c.pending = false
	return p
}

func (c *Coordinator) inDelivery() bool {
	c.deliveryMu.Lock()
	defer c.deliveryMu.Unlock()
	return c.delivering
}

func (c *Coordinator) record(trigger string, plan strategy.Plan, elapsed time.Duration) {
	c.metrics.RecordPass(len(plan.Operations), plan.Granular(), elapsed)
	if plan.Fallback != strategy.ReasonNone {
		c.metrics.IncrementCustomCounter("fallback." + string(plan.Fallback))
	}

	if ce := c.logger.Check(zap.DebugLevel, "reconciliation pass"); ce != nil {
		fields := []zap.Field{
			zap.String(logger.FieldOperation, trigger),
			zap.Int(logger.FieldCount, len(plan.Operations)),
			zap.Float64(logger.FieldDurationMS, float64(elapsed.Microseconds())/1000),
		}
		if plan.Fallback != strategy.ReasonNone {
			fields = append(fields, zap.String(logger.FieldReason, string(plan.Fallback)))
		}
		ce.Write(fields...)
	}
}

// resetLocked emits a Reset outside of a reconciliation pass. passMu must be
// held.
func (c *Coordinator) resetLocked(trigger string, reason strategy.Reason, start time.Time) {
	plan := strategy.ResetPlan(reason)
	c.deliver(plan.Operations)
	c.record(trigger, plan, time.Since(start))
}

// guard rejects calls that would wait for the pass currently inside Notify.
func (c *Coordinator) guard(op string) error {
	if c.inDelivery() {
		return errors.Mark(errors.Newf("%s called while operations are being delivered", op), ErrReentrantSignal)
	}
	return nil
}

// SetSource replaces the backing source. The subscription moves from the
// old source to src, the rows are rebuilt and the notifier receives a Reset.
// src may be nil, which empties the list. It must not be called from Notify.
func (c *Coordinator) SetSource(src Source) error {
	if err := c.guard("SetSource"); err != nil {
		return err
	}
	start := time.Now()

	c.passMu.Lock()
	defer c.passMu.Unlock()

	if c.isClosed() {
		return errors.Wrap(ErrClosed, "set source")
	}

	extractor, err := c.prepare(src)
	if err != nil {
		return err
	}
	snap, err := c.build(src, extractor)
	if err != nil {
		c.metrics.IncrementPassError()
		return err
	}

	c.mu.Lock()
	c.source = src
	c.extractor = extractor
	c.mu.Unlock()
	c.commit(snap)

	if c.cfg.AutomaticUpdate {
		c.sub.attach(src)
	}

	c.resetLocked("set_source", strategy.ReasonSourceReplaced, start)
	return nil
}

// AddLoadMore appends the load-more footer row and emits a Reset. It does
// nothing if the footer is already shown.
func (c *Coordinator) AddLoadMore() error {
	return c.setLoadMore(true)
}

// RemoveLoadMore removes the load-more footer row and emits a Reset. It does
// nothing if the footer is not shown.
func (c *Coordinator) RemoveLoadMore() error {
	return c.setLoadMore(false)
}

func (c *Coordinator) setLoadMore(on bool) error {
	if err := c.guard("load more toggle"); err != nil {
		return err
	}
	start := time.Now()

	c.passMu.Lock()
	defer c.passMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.Wrap(ErrClosed, "load more toggle")
	}
	changed := c.loadMore != on
	c.loadMore = on
	c.mu.Unlock()

	if changed {
		c.resetLocked("load_more", strategy.ReasonFooterToggled, start)
	}
	return nil
}

// Close detaches the subscription. Further passes fail with ErrClosed;
// the accessors keep returning the last committed state. Close is idempotent.
func (c *Coordinator) Close() error {
	if err := c.guard("Close"); err != nil {
		return err
	}

	c.passMu.Lock()
	defer c.passMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.sub.detach()
	c.logger.Debug("coordinator closed")
	return nil
}

func (c *Coordinator) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// rowsLocked is the number of rows excluding the footer. mu must be held.
func (c *Coordinator) rowsLocked() int {
	if c.cfg.Grouping {
		return len(c.flat)
	}
	return c.count
}

// RowCount returns the number of rows, the load-more footer included.
func (c *Coordinator) RowCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := c.rowsLocked()
	if c.loadMore {
		n++
	}
	return n
}

func (c *Coordinator) checkPosLocked(pos int) (footer bool, err error) {
	n := c.rowsLocked()
	if c.loadMore && pos == n {
		return true, nil
	}
	if pos < 0 || pos >= n {
		total := n
		if c.loadMore {
			total++
		}
		return false, errors.Mark(errors.Newf("position %d outside [0, %d)", pos, total), ErrPositionOutOfRange)
	}
	return false, nil
}

// RowKind classifies the row at pos.
func (c *Coordinator) RowKind(pos int) (RowKind, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	footer, err := c.checkPosLocked(pos)
	switch {
	case err != nil:
		return KindDataRow, err
	case footer:
		return KindLoadMoreFooter, nil
	case c.cfg.Grouping && c.flat[pos].IsHeader():
		return KindSectionHeader, nil
	default:
		return KindDataRow, nil
	}
}

// Row returns the descriptor of the row at pos. Without grouping every row
// is a data row with no owning header (SectionHeaderIndex -1). The footer is
// reported as a row with DataIndex -1.
func (c *Coordinator) Row(pos int) (Row, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	footer, err := c.checkPosLocked(pos)
	switch {
	case err != nil:
		return Row{}, err
	case footer:
		return Row{DataIndex: -1, SectionHeaderIndex: -1}, nil
	case c.cfg.Grouping:
		return c.flat[pos], nil
	default:
		return Row{IsData: true, DataIndex: pos, SectionHeaderIndex: -1}, nil
	}
}

// DataIndex returns the backing index of the data row at pos, or -1 for
// header and footer rows.
func (c *Coordinator) DataIndex(pos int) (int, error) {
	r, err := c.Row(pos)
	if err != nil {
		return -1, err
	}
	if !r.IsData {
		return -1, nil
	}
	return r.DataIndex, nil
}

// SectionFirstPosition returns the position of the header that starts the
// section containing pos. Without grouping the whole list is one section
// starting at 0. The footer belongs to no section and reports its own
// position.
func (c *Coordinator) SectionFirstPosition(pos int) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	footer, err := c.checkPosLocked(pos)
	switch {
	case err != nil:
		return -1, err
	case footer:
		return pos, nil
	case c.cfg.Grouping:
		return c.flat[pos].SectionHeaderIndex, nil
	default:
		return 0, nil
	}
}

// LastDataIndex returns the backing index of the last data row.
func (c *Coordinator) LastDataIndex() (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cfg.Grouping {
		return rows.LastData(c.flat)
	}
	if c.count == 0 {
		return -1, false
	}
	return c.count - 1, true
}

// Identities returns a copy of the committed identity baseline. It is empty
// when animated changes are off.
func (c *Coordinator) Identities() []Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Identity, len(c.ids))
	copy(out, c.ids)
	return out
}

// HasLoadMore reports whether the footer row is shown.
func (c *Coordinator) HasLoadMore() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadMore
}

// Source returns the current backing source.
func (c *Coordinator) Source() Source {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source
}

// Config returns the configuration the coordinator was built with.
func (c *Coordinator) Config() Config {
	return c.cfg
}

// Animated reports whether the coordinator emits granular operations.
func (c *Coordinator) Animated() bool {
	return c.animate
}

// Metrics returns the collector the coordinator records into.
func (c *Coordinator) Metrics() *metrics.Collector {
	return c.metrics
}

// Subscription returns the coordinator's source subscription.
func (c *Coordinator) Subscription() *Subscription {
	return c.sub
}

func (c *Coordinator) subscriptionAttached(s *Subscription) {
	c.metrics.IncrementSubscriptionAttached()
	c.logger.Debug("subscription attached", zap.String("subscription", s.ID().String()))
}

func (c *Coordinator) subscriptionDetached(s *Subscription) {
	c.metrics.IncrementSubscriptionDetached()
	c.logger.Debug("subscription detached", zap.String("subscription", s.ID().String()))
}
