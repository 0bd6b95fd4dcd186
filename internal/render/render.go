// Package render turns coordinator rows into HTML fragments.
package render

import (
	"bytes"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/tdewolff/minify/v2"
	minhtml "github.com/tdewolff/minify/v2/html"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/livefir/livelist"
)

// RowFactory builds the node of one row, one method per row kind.
type RowFactory interface {
	HeaderRow(label string) *html.Node
	DataRow(index int) *html.Node
	FooterRow() *html.Node
}

// Rows is the read side of a coordinator.
type Rows interface {
	RowCount() int
	Row(pos int) (livelist.Row, error)
	RowKind(pos int) (livelist.RowKind, error)
}

var (
	minifier *minify.M
	once     sync.Once
)

// getMinifier returns a configured HTML minifier (singleton)
func getMinifier() *minify.M {
	once.Do(func() {
		minifier = minify.New()
		minifier.Add("text/html", &minhtml.Minifier{
			KeepEndTags: true,
			KeepQuotes:  true,
		})
	})
	return minifier
}

// Renderer renders rows through a RowFactory.
type Renderer struct {
	factory RowFactory
}

// New returns a renderer using f.
func New(f RowFactory) *Renderer {
	return &Renderer{factory: f}
}

// Node returns the node of the row at pos.
func (r *Renderer) Node(rows Rows, pos int) (*html.Node, error) {
	kind, err := rows.RowKind(pos)
	if err != nil {
		return nil, err
	}

	switch kind {
	case livelist.KindLoadMoreFooter:
		return r.factory.FooterRow(), nil
	case livelist.KindSectionHeader:
		row, err := rows.Row(pos)
		if err != nil {
			return nil, err
		}
		return r.factory.HeaderRow(row.Header), nil
	default:
		row, err := rows.Row(pos)
		if err != nil {
			return nil, err
		}
		return r.factory.DataRow(row.DataIndex), nil
	}
}

// RenderRow returns the minified HTML of the row at pos.
func (r *Renderer) RenderRow(rows Rows, pos int) (string, error) {
	n, err := r.Node(rows, pos)
	if err != nil {
		return "", err
	}
	return renderNode(n)
}

// RenderRange returns the HTML of count rows starting at pos. Rows past the
// end are skipped.
func (r *Renderer) RenderRange(rows Rows, pos, count int) ([]string, error) {
	total := rows.RowCount()
	out := make([]string, 0, count)
	for i := pos; i < pos+count && i < total; i++ {
		s, err := r.RenderRow(rows, i)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// RenderAll returns the HTML of every row in order.
func (r *Renderer) RenderAll(rows Rows) ([]string, error) {
	return r.RenderRange(rows, 0, rows.RowCount())
}

// RenderList renders every row inside a single <ul> with the given id.
func (r *Renderer) RenderList(rows Rows, id string) (string, error) {
	ul := Element("ul", Attr("id", id), Attr("class", "livelist"))
	for i := 0; i < rows.RowCount(); i++ {
		n, err := r.Node(rows, i)
		if err != nil {
			return "", err
		}
		ul.AppendChild(n)
	}
	return renderNode(ul)
}

func renderNode(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", errors.Wrap(err, "render row")
	}
	out, err := getMinifier().String("text/html", buf.String())
	if err != nil {
		return buf.String(), nil
	}
	return out, nil
}

// Element returns an element node for tag with the given attributes.
func Element(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

// Text returns a text node. The content is escaped on render.
func Text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// Attr builds an attribute.
func Attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

// SourceFactory renders people-like rows straight from a livelist source.
type SourceFactory struct {
	// Source returns the source the data row indexes refer to.
	Source func() livelist.Source
	// Key, Title and Detail are the columns used for the id attribute, the
	// main text and the secondary text.
	Key    string
	Title  string
	Detail string
}

func (f SourceFactory) HeaderRow(label string) *html.Node {
	li := Element("li", Attr("class", "header"), Attr("data-kind", "header"))
	h := Element("h3")
	if label == "" {
		label = "#"
	}
	h.AppendChild(Text(label))
	li.AppendChild(h)
	return li
}

func (f SourceFactory) DataRow(index int) *html.Node {
	src := f.Source()
	li := Element("li", Attr("class", "row"), Attr("data-kind", "data"))
	if src == nil || index < 0 || index >= src.Len() {
		return li
	}

	if f.Key != "" {
		li.Attr = append(li.Attr, Attr("data-id", src.Text(index, f.Key)))
	}
	title := Element("span", Attr("class", "title"))
	title.AppendChild(Text(src.Text(index, f.Title)))
	li.AppendChild(title)

	if f.Detail != "" {
		if detail := strings.TrimSpace(src.Text(index, f.Detail)); detail != "" {
			span := Element("span", Attr("class", "detail"))
			span.AppendChild(Text(detail))
			li.AppendChild(span)
		}
	}
	return li
}

func (f SourceFactory) FooterRow() *html.Node {
	li := Element("li", Attr("class", "footer"), Attr("data-kind", "footer"))
	button := Element("button", Attr("type", "button"), Attr("data-action", "load_more"))
	button.AppendChild(Text("Load more"))
	li.AppendChild(button)
	return li
}

// IndexFactory renders rows as their backing index. It is handy for tests
// and for sources without a title column.
type IndexFactory struct{}

func (IndexFactory) HeaderRow(label string) *html.Node {
	li := Element("li", Attr("class", "header"))
	li.AppendChild(Text(label))
	return li
}

func (IndexFactory) DataRow(index int) *html.Node {
	li := Element("li", Attr("class", "row"))
	li.AppendChild(Text(strconv.Itoa(index)))
	return li
}

func (IndexFactory) FooterRow() *html.Node {
	return Element("li", Attr("class", "footer"))
}
