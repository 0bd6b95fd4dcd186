// Package tui is a terminal viewer that follows a coordinator's operations.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/livefir/livelist"
)

// Rows is the read side of a coordinator.
type Rows interface {
	RowCount() int
	Row(pos int) (livelist.Row, error)
	RowKind(pos int) (livelist.RowKind, error)
}

// Formatter returns the text of a data row given its backing index.
type Formatter func(dataIndex int) string

// SourceFormatter formats data rows from two columns of the current source.
func SourceFormatter(src func() livelist.Source, title, detail string) Formatter {
	return func(i int) string {
		s := src()
		if s == nil || i < 0 || i >= s.Len() {
			return ""
		}
		text := s.Text(i, title)
		if detail != "" {
			if d := s.Text(i, detail); d != "" {
				text += "  " + detailStyle.Render(d)
			}
		}
		return text
	}
}

// OpsMsg carries the operations of one reconciliation pass.
type OpsMsg struct {
	Ops []livelist.Operation
}

// ErrMsg reports a failure from a background command.
type ErrMsg struct {
	Err error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).MarginTop(1)
	freshStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type line struct {
	kind  livelist.RowKind
	text  string
	fresh bool
}

// Model renders the rows of a coordinator and keeps them in step by
// applying the operations it receives.
type Model struct {
	title    string
	rows     Rows
	format   Formatter
	loadMore func() tea.Cmd

	lines   []line
	cursor  int
	offset  int
	width   int
	height  int
	spinner spinner.Model

	passes  int
	resets  int
	lastOps []livelist.Operation
	err     error
}

// New returns a model over rows. loadMore, if set, is run when the user asks
// for more rows.
func New(title string, rows Rows, format Formatter, loadMore func() tea.Cmd) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := Model{
		title:    title,
		rows:     rows,
		format:   format,
		loadMore: loadMore,
		height:   20,
		width:    80,
		spinner:  s,
	}
	m.rebuild()
	return m
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			m.move(-1)
		case "down", "j":
			m.move(1)
		case "home", "g":
			m.cursor, m.offset = 0, 0
		case "end", "G":
			m.move(len(m.lines))
		case "m", "enter":
			if m.loadMore != nil && m.hasFooter() {
				return m, m.loadMore()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clamp()
		return m, nil

	case OpsMsg:
		m.apply(msg.Ops)
		return m, nil

	case ErrMsg:
		m.err = msg.Err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// apply brings the lines in step with ops. Any position the lines cannot
// satisfy falls back to a rebuild.
func (m *Model) apply(ops []livelist.Operation) {
	m.passes++
	m.lastOps = ops
	m.err = nil
	for i := range m.lines {
		m.lines[i].fresh = false
	}

	for _, op := range ops {
		switch op.Type {
		case livelist.OpInsert:
			if op.Position > len(m.lines) {
				m.rebuild()
				return
			}
			l := m.line(op.Position)
			l.fresh = true
			m.lines = append(m.lines, line{})
			copy(m.lines[op.Position+1:], m.lines[op.Position:])
			m.lines[op.Position] = l
		case livelist.OpRemove, livelist.OpRemoveRange:
			n := op.Count
			if op.Type == livelist.OpRemove {
				n = 1
			}
			if op.Position+n > len(m.lines) {
				m.rebuild()
				return
			}
			m.lines = append(m.lines[:op.Position], m.lines[op.Position+n:]...)
		case livelist.OpChangeRange:
			for i := op.Position; i < op.Position+op.Count && i < len(m.lines); i++ {
				m.lines[i] = m.line(i)
			}
		case livelist.OpReset:
			m.resets++
			m.rebuild()
			return
		}
	}

	if len(m.lines) != m.rows.RowCount() {
		m.rebuild()
	}
	m.clamp()
}

func (m *Model) rebuild() {
	n := m.rows.RowCount()
	m.lines = make([]line, 0, n)
	for i := 0; i < n; i++ {
		m.lines = append(m.lines, m.line(i))
	}
	m.clamp()
}

func (m *Model) line(pos int) line {
	kind, err := m.rows.RowKind(pos)
	if err != nil {
		return line{text: err.Error()}
	}
	switch kind {
	case livelist.KindSectionHeader:
		row, _ := m.rows.Row(pos)
		label := row.Header
		if label == "" {
			label = "#"
		}
		return line{kind: kind, text: label}
	case livelist.KindLoadMoreFooter:
		return line{kind: kind}
	default:
		row, _ := m.rows.Row(pos)
		return line{kind: kind, text: m.format(row.DataIndex)}
	}
}

func (m *Model) hasFooter() bool {
	return len(m.lines) > 0 && m.lines[len(m.lines)-1].kind == livelist.KindLoadMoreFooter
}

func (m *Model) visible() int {
	// title, blank line and status bar
	v := m.height - 3
	if v < 1 {
		v = 1
	}
	return v
}

func (m *Model) move(delta int) {
	m.cursor += delta
	m.clamp()
}

func (m *Model) clamp() {
	if m.cursor >= len(m.lines) {
		m.cursor = len(m.lines) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.visible() {
		m.offset = m.cursor - m.visible() + 1
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	end := m.offset + m.visible()
	if end > len(m.lines) {
		end = len(m.lines)
	}
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderLine(i))
		b.WriteString("\n")
	}
	if len(m.lines) == 0 {
		b.WriteString(detailStyle.Render("(empty)"))
		b.WriteString("\n")
	}

	b.WriteString(m.status())
	return b.String()
}

func (m Model) renderLine(i int) string {
	l := m.lines[i]
	prefix := "  "
	if i == m.cursor {
		prefix = cursorStyle.Render("> ")
	}

	switch l.kind {
	case livelist.KindSectionHeader:
		return headerStyle.Render(l.text)
	case livelist.KindLoadMoreFooter:
		return prefix + m.spinner.View() + " load more (m)"
	}

	text := l.text
	if l.fresh {
		text = freshStyle.Render(text)
	}
	return prefix + text
}

func (m Model) status() string {
	if m.err != nil {
		return errorStyle.Render("error: " + m.err.Error())
	}
	ops := make([]string, len(m.lastOps))
	for i, op := range m.lastOps {
		ops[i] = op.String()
	}
	last := "-"
	if len(ops) > 0 {
		last = strings.Join(ops, " ")
	}
	return statusStyle.Render(fmt.Sprintf("%d rows · %d passes · %d resets · last: %s · q to quit",
		len(m.lines), m.passes, m.resets, last))
}

// Lines returns the plain text of every line, for tests and logging.
func (m Model) Lines() []string {
	out := make([]string, len(m.lines))
	for i, l := range m.lines {
		out[i] = l.text
	}
	return out
}
