package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/livefir/livelist"
	"github.com/livefir/livelist/internal/config"
	"github.com/livefir/livelist/internal/fake"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfigLayers(t *testing.T) {
	path := writeConfig(t, `
database:
  path: from-file.db
list:
  order_by: name
  page_size: 10
`)

	t.Run("file only", func(t *testing.T) {
		v := newSettings()
		v.Set("config", path)
		cfg, err := loadConfig(v)
		require.NoError(t, err)
		assert.Equal(t, "from-file.db", cfg.Database.Path)
		assert.Equal(t, "name", cfg.List.OrderBy)
		assert.Equal(t, 10, cfg.List.PageSize)
	})

	t.Run("environment wins over file", func(t *testing.T) {
		t.Setenv("LIVELIST_DATABASE_PATH", "from-env.db")
		t.Setenv("LIVELIST_LIST_LOAD_MORE", "true")
		t.Setenv("LIVELIST_CHURN_INTERVAL", "250ms")
		v := newSettings()
		v.Set("config", path)
		cfg, err := loadConfig(v)
		require.NoError(t, err)
		assert.Equal(t, "from-env.db", cfg.Database.Path)
		assert.True(t, cfg.List.LoadMore)
		assert.Equal(t, 10, cfg.Limit())
		assert.Equal(t, 250*time.Millisecond, cfg.Churn.Interval)
	})

	t.Run("grouping key sets the order", func(t *testing.T) {
		v := newSettings()
		v.Set("config", filepath.Join(t.TempDir(), "missing.yaml"))
		v.Set("list.grouping_key", "city")
		cfg, err := loadConfig(v)
		require.NoError(t, err)
		assert.True(t, cfg.List.Grouping)
		assert.Equal(t, "city", cfg.List.OrderBy)
	})

	t.Run("invalid override", func(t *testing.T) {
		v := newSettings()
		v.Set("config", path)
		v.Set("database.driver", "postgres")
		_, err := loadConfig(v)
		assert.True(t, errors.Is(err, livelist.ErrConfiguration))
	})
}

type batches struct {
	mu  sync.Mutex
	ops [][]livelist.Operation
}

func (b *batches) Notify(ops []livelist.Operation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, ops)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "people.db")
	cfg.List.LoadMore = true
	cfg.List.PageSize = 2
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestAppLoadMore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	st, err := openStore(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, st.InsertMany(ctx, fakePeople(fake.New(7), 5)))
	require.NoError(t, st.Close())

	notes := &batches{}
	a, err := newApp(ctx, cfg, zap.NewNop(), notes, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.coord.HasLoadMore())
	assert.Equal(t, 3, a.coord.RowCount())

	require.NoError(t, a.handleAction(ctx, "load_more"))
	assert.Equal(t, 5, a.coord.RowCount())
	assert.True(t, a.coord.HasLoadMore())

	require.NoError(t, a.handleAction(ctx, "load_more"))
	assert.Equal(t, 5, a.coord.RowCount())
	assert.False(t, a.coord.HasLoadMore())

	assert.Error(t, a.handleAction(ctx, "explode"))
	assert.NotEmpty(t, notes.ops)
}

func TestAppReloadWithoutAutomaticUpdate(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.List.AutomaticUpdate = false
	cfg.List.LoadMore = false

	notes := &batches{}
	a, err := newApp(ctx, cfg, zap.NewNop(), notes, nil)
	require.NoError(t, err)
	defer a.Close()
	assert.Zero(t, a.coord.RowCount())

	_, err = a.store.Insert(ctx, "Ada", "Oslo", "ada@example.com")
	require.NoError(t, err)
	require.NoError(t, a.reload(ctx))

	assert.Equal(t, 1, a.coord.RowCount())
	require.Len(t, notes.ops, 1)
	assert.Equal(t, []livelist.Operation{livelist.Reset()}, notes.ops[0])
}

func TestChurnStep(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	st, err := openStore(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer st.Close()

	gen := fake.New(42)
	action, err := churnStep(ctx, st, gen)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(action, "insert "), "empty table gets an insert, got %q", action)

	seen := map[string]bool{}
	for i := 0; i < 40; i++ {
		action, err := churnStep(ctx, st, gen)
		require.NoError(t, err)
		seen[strings.Fields(action)[0]] = true
	}
	assert.True(t, seen["insert"])
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "livelist version dev")
}
