package main

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/livefir/livelist"
	"github.com/livefir/livelist/internal/config"
	"github.com/livefir/livelist/internal/metrics"
	"github.com/livefir/livelist/internal/store"
)

// app is a migrated store, one query over it and the coordinator following
// that query.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *store.Store
	query   *store.QuerySource
	coord   *livelist.Coordinator
	metrics *metrics.Collector

	// mu serializes reloads with footer toggles, which the coordinator
	// rejects while another goroutine is delivering.
	mu sync.Mutex
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*store.Store, error) {
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.Path, log)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// newApp opens the store and starts a coordinator that reports to notifier.
// A nil collector gets a fresh one.
func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger, notifier livelist.Notifier, collector *metrics.Collector) (*app, error) {
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	q, err := st.Query(cfg.List.OrderBy, cfg.Limit())
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if err := q.Reload(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	if collector == nil {
		collector = metrics.NewCollector()
	}
	coord, err := livelist.New(q, notifier, cfg.Coordinator(),
		livelist.WithLogger(log),
		livelist.WithMetrics(collector),
		livelist.WithHeaderLabel(cfg.HeaderLabel()))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		store:   st,
		query:   q,
		coord:   coord,
		metrics: collector,
	}
	if err := a.syncFooter(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// reload re-runs the query. Without automatic updates the coordinator is
// not subscribed, so it is refreshed explicitly.
func (a *app) reload(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.query.Reload(ctx); err != nil {
		return err
	}
	return a.afterReload()
}

// loadMore grows the query by one page.
func (a *app) loadMore(ctx context.Context) error {
	if !a.cfg.List.LoadMore {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.query.Grow(ctx, a.cfg.List.PageSize); err != nil {
		return err
	}
	return a.afterReload()
}

func (a *app) afterReload() error {
	if !a.cfg.List.AutomaticUpdate {
		if err := a.coord.Refresh(); err != nil {
			return err
		}
	}
	return a.syncFooter()
}

// syncFooter shows the load-more footer while the query leaves rows out.
func (a *app) syncFooter() error {
	if !a.cfg.List.LoadMore {
		return nil
	}
	if a.query.HasMore() {
		return a.coord.AddLoadMore()
	}
	return a.coord.RemoveLoadMore()
}

// handleAction runs an action sent by a client.
func (a *app) handleAction(ctx context.Context, action string) error {
	switch action {
	case "load_more":
		return a.loadMore(ctx)
	case "refresh":
		return a.reload(ctx)
	default:
		return errors.Newf("unknown action %q", action)
	}
}

// watch reloads whenever the database file changes, until ctx is done.
func (a *app) watch(ctx context.Context) error {
	return store.Watch(ctx, a.cfg.Database.Path, a.cfg.Database.Debounce, a.log, func() error {
		return a.reload(ctx)
	})
}

func (a *app) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return errors.CombineErrors(a.coord.Close(), a.store.Close())
}
