package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livefir/livelist"
)

type fixture struct {
	src   *livelist.SliceSource
	coord *livelist.Coordinator
	ops   [][]livelist.Operation
}

func schema() livelist.Schema {
	return livelist.Schema{
		PrimaryKey: "id",
		Columns: map[string]livelist.ColumnType{
			"id":   livelist.ColumnInteger,
			"name": livelist.ColumnString,
			"city": livelist.ColumnString,
		},
	}
}

func newFixture(t *testing.T, cfg livelist.Config, names ...string) *fixture {
	t.Helper()
	records := make([]livelist.Record, len(names))
	for i, n := range names {
		records[i] = livelist.Record{"id": int64(i + 1), "name": n, "city": "Oslo"}
	}
	f := &fixture{src: livelist.NewSliceSource(schema(), records...)}
	coord, err := livelist.New(f.src, livelist.NotifierFunc(func(ops []livelist.Operation) {
		f.ops = append(f.ops, ops)
	}), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = coord.Close() })
	f.coord = coord
	return f
}

func (f *fixture) model(loadMore func() tea.Cmd) Model {
	return New("people", f.coord, SourceFormatter(f.coord.Source, "name", ""), loadMore)
}

// feed applies every pending batch to m.
func (f *fixture) feed(m Model) Model {
	for _, ops := range f.ops {
		next, _ := m.Update(OpsMsg{Ops: ops})
		m = next.(Model)
	}
	f.ops = nil
	return m
}

func TestModelFollowsOperations(t *testing.T) {
	f := newFixture(t, livelist.DefaultConfig(), "ada", "bob", "cy")
	m := f.model(nil)
	assert.Equal(t, []string{"ada", "bob", "cy"}, m.Lines())

	require.NoError(t, f.src.Insert(1, livelist.Record{"id": int64(9), "name": "dee"}))
	require.Len(t, f.ops, 1)
	assert.Equal(t, []livelist.Operation{livelist.InsertAt(1)}, f.ops[0])
	m = f.feed(m)
	assert.Equal(t, []string{"ada", "dee", "bob", "cy"}, m.Lines())
	assert.True(t, m.lines[1].fresh)

	require.NoError(t, f.src.Remove(2))
	m = f.feed(m)
	assert.Equal(t, []string{"ada", "dee", "cy"}, m.Lines())
	assert.False(t, m.lines[1].fresh)

	require.NoError(t, f.src.Replace())
	m = f.feed(m)
	assert.Empty(t, m.Lines())
	assert.Equal(t, 1, m.resets)
	assert.Equal(t, 3, m.passes)
	assert.Contains(t, m.View(), "(empty)")
}

func TestModelRebuildsOnDrift(t *testing.T) {
	f := newFixture(t, livelist.DefaultConfig(), "ada", "bob")
	m := f.model(nil)

	next, _ := m.Update(OpsMsg{Ops: []livelist.Operation{livelist.InsertAt(10)}})
	m = next.(Model)
	assert.Equal(t, []string{"ada", "bob"}, m.Lines())

	next, _ = m.Update(OpsMsg{Ops: []livelist.Operation{livelist.RemoveRange(1, 5)}})
	m = next.(Model)
	assert.Equal(t, []string{"ada", "bob"}, m.Lines())
}

func TestModelGroupedHeaders(t *testing.T) {
	cfg := livelist.DefaultConfig()
	cfg.Grouping = true
	cfg.GroupingKey = "name"
	f := newFixture(t, cfg, "", "amy", "ann", "ben")
	m := f.model(nil)

	assert.Equal(t, []string{"#", "", "a", "amy", "ann", "b", "ben"}, m.Lines())
	view := m.View()
	assert.Contains(t, view, "ben")
	assert.Contains(t, view, "#")
}

func TestModelKeys(t *testing.T) {
	f := newFixture(t, livelist.DefaultConfig(), "a", "b", "c", "d", "e", "f")
	m := f.model(nil)

	press := func(key string) tea.Cmd {
		var msg tea.KeyMsg
		switch key {
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
		}
		next, cmd := m.Update(msg)
		m = next.(Model)
		return cmd
	}

	next, _ := m.Update(tea.WindowSizeMsg{Width: 40, Height: 6})
	m = next.(Model)
	assert.Equal(t, 3, m.visible())

	press("down")
	press("j")
	press("j")
	assert.Equal(t, 3, m.cursor)
	assert.Equal(t, 1, m.offset)

	press("up")
	press("k")
	press("k")
	press("k")
	assert.Equal(t, 0, m.cursor)
	assert.Equal(t, 0, m.offset)

	press("G")
	assert.Equal(t, 5, m.cursor)
	press("g")
	assert.Equal(t, 0, m.cursor)

	cmd := press("q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModelLoadMore(t *testing.T) {
	f := newFixture(t, livelist.DefaultConfig(), "a", "b")
	calls := 0
	m := f.model(func() tea.Cmd {
		calls++
		return nil
	})

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	m = next.(Model)
	assert.Zero(t, calls, "no footer yet")

	require.NoError(t, f.coord.AddLoadMore())
	m = f.feed(m)
	assert.Len(t, m.Lines(), 3)
	assert.True(t, m.hasFooter())
	assert.Contains(t, m.View(), "load more")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	m = next.(Model)
	assert.Equal(t, 1, calls)
}

func TestModelStatus(t *testing.T) {
	f := newFixture(t, livelist.DefaultConfig(), "a")
	m := f.model(nil)
	require.NotNil(t, m.Init())

	require.NoError(t, f.src.Insert(1, livelist.Record{"id": int64(2), "name": "b"}))
	m = f.feed(m)
	status := m.status()
	assert.Contains(t, status, "2 rows")
	assert.Contains(t, status, "1 passes")
	assert.Contains(t, status, livelist.InsertAt(1).String())

	next, _ := m.Update(ErrMsg{Err: assertError("boom")})
	m = next.(Model)
	assert.True(t, strings.Contains(m.View(), "error: boom"))
}

type assertError string

func (e assertError) Error() string { return string(e) }

func TestNotifierWithoutProgram(t *testing.T) {
	var n Notifier
	assert.NotPanics(t, func() { n.Notify([]livelist.Operation{livelist.Reset()}) })
}
