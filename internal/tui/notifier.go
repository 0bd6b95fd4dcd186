package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/livefir/livelist"
)

// Notifier forwards coordinator operations into a running program. It drops
// operations until SetProgram is called; the model starts from the
// coordinator's current rows, so nothing is lost.
type Notifier struct {
	mu      sync.Mutex
	program *tea.Program
}

// SetProgram sets the receiving program.
func (n *Notifier) SetProgram(p *tea.Program) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.program = p
}

// Notify implements livelist.Notifier.
func (n *Notifier) Notify(ops []livelist.Operation) {
	n.mu.Lock()
	p := n.program
	n.mu.Unlock()

	if p != nil {
		p.Send(OpsMsg{Ops: ops})
	}
}
