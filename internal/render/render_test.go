package render

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livefir/livelist"
)

type nopNotifier struct{}

func (nopNotifier) Notify([]livelist.Operation) {}

func peopleSource() *livelist.SliceSource {
	schema := livelist.Schema{
		PrimaryKey: "id",
		Columns: map[string]livelist.ColumnType{
			"id":   livelist.ColumnInteger,
			"name": livelist.ColumnString,
			"city": livelist.ColumnString,
		},
	}
	return livelist.NewSliceSource(schema,
		livelist.Record{"id": int64(1), "name": "Ann", "city": "Oslo"},
		livelist.Record{"id": int64(2), "name": "<b>Al</b>", "city": ""},
		livelist.Record{"id": int64(3), "name": "Bob", "city": "Bergen"},
	)
}

func groupedCoordinator(t *testing.T, src livelist.Source) *livelist.Coordinator {
	t.Helper()
	cfg := livelist.DefaultConfig()
	cfg.Grouping = true
	cfg.GroupingKey = "name"
	c, err := livelist.New(src, nopNotifier{}, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func newRenderer(c *livelist.Coordinator) *Renderer {
	return New(SourceFactory{Source: c.Source, Key: "id", Title: "name", Detail: "city"})
}

func TestRenderRow(t *testing.T) {
	src := livelist.NewSliceSource(peopleSource().Schema(),
		livelist.Record{"id": int64(1), "name": "Ann", "city": "Oslo"},
		livelist.Record{"id": int64(3), "name": "Bob", "city": ""},
	)
	c := groupedCoordinator(t, src)
	r := newRenderer(c)

	tests := []struct {
		name     string
		pos      int
		contains []string
		excludes []string
	}{
		{
			name:     "header",
			pos:      0,
			contains: []string{`<li class="header" data-kind="header">`, `<h3>A</h3>`, `</li>`},
		},
		{
			name:     "data row",
			pos:      1,
			contains: []string{`data-id="1"`, `<span class="title">Ann</span>`, `<span class="detail">Oslo</span>`},
		},
		{
			name:     "data row without detail",
			pos:      3,
			contains: []string{`data-id="3"`, `Bob`},
			excludes: []string{`class="detail"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.RenderRow(c, tt.pos)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, got, s)
			}
			assert.NotContains(t, got, "\n")
		})
	}
}

func TestRenderEscapesText(t *testing.T) {
	c := groupedCoordinator(t, peopleSource())
	r := newRenderer(c)

	all, err := r.RenderAll(c)
	require.NoError(t, err)
	joined := strings.Join(all, "")
	assert.NotContains(t, joined, "<b>")
	assert.Contains(t, joined, "&lt;b&gt;Al&lt;/b&gt;")
}

func TestRenderFooter(t *testing.T) {
	c := groupedCoordinator(t, peopleSource())
	require.NoError(t, c.AddLoadMore())
	r := newRenderer(c)

	last := c.RowCount() - 1
	got, err := r.RenderRow(c, last)
	require.NoError(t, err)
	assert.Contains(t, got, `data-action="load_more"`)
	assert.Contains(t, got, "Load more")
}

func TestRenderOutOfRange(t *testing.T) {
	c := groupedCoordinator(t, peopleSource())
	_, err := newRenderer(c).RenderRow(c, 99)
	assert.True(t, errors.Is(err, livelist.ErrPositionOutOfRange))
}

func TestRenderRange(t *testing.T) {
	c := groupedCoordinator(t, peopleSource())
	r := New(IndexFactory{})

	rows, err := r.RenderRange(c, c.RowCount()-2, 5)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRenderList(t *testing.T) {
	c := groupedCoordinator(t, peopleSource())
	got, err := New(IndexFactory{}).RenderList(c, "people")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got, `<ul id="people" class="livelist">`), got)
	assert.Equal(t, c.RowCount(), strings.Count(got, "<li "))
}

func TestEmptyHeaderLabel(t *testing.T) {
	n := SourceFactory{}.HeaderRow("")
	got, err := renderNode(n)
	require.NoError(t, err)
	assert.Contains(t, got, "<h3>#</h3>")
}
