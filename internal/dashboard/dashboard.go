// Package dashboard is a terminal viewer over the fabric's live breaker
// and pool state, built with bubbletea/lipgloss to match the
// teacher's terminal-first ambient stack.
package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nexusfab/fabric/internal/registry"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	closedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	openStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	halfStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

type tickMsg time.Time

// Model is the bubbletea model polling one Fabric on an interval.
type Model struct {
	fabric   *registry.Fabric
	interval time.Duration
}

func NewModel(fabric *registry.Fabric, interval time.Duration) Model {
	if interval <= 0 {
		interval = time.Second
	}
	return Model{fabric: fabric, interval: interval}
}

func (m Model) Init() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
	}
	return m, nil
}

func (m Model) View() string {
	names := make([]string, 0, len(m.fabric.Services))
	for name := range m.fabric.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(headerStyle.Render("nexusfab resilience fabric") + "\n\n")
	fmt.Fprintf(&b, "%-12s %-10s %8s %8s %8s %10s\n", "SERVICE", "BREAKER", "OK", "FAIL", "REJECT", "POOL")

	for _, name := range names {
		svc := m.fabric.Services[name]
		success, failure, rejected := svc.Breaker.Totals()

		state := svc.Breaker.State().String()
		styled := state
		switch state {
		case "closed":
			styled = closedStyle.Render(state)
		case "open":
			styled = openStyle.Render(state)
		case "half-open":
			styled = halfStyle.Render(state)
		}

		pool := "-"
		if svc.Pool != nil {
			live, idle := svc.Pool.Stats()
			pool = fmt.Sprintf("%d/%d", live, live+idle)
		}

		fmt.Fprintf(&b, "%-12s %-10s %8d %8d %8d %10s\n", name, styled, success, failure, rejected, pool)
	}

	b.WriteString("\npress q to quit\n")
	return b.String()
}
