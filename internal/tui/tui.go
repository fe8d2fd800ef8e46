package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/xab-mack/contractscope/internal/model"
	"github.com/xab-mack/contractscope/internal/report"
)

type pane int

const (
	paneList pane = iota
	paneLayout
	paneCalls
)

type modelT struct {
	result *model.Result
	status map[string]string
	cursor int
	pane   pane
}

func initialModel(result *model.Result) modelT {
	status := map[string]string{}
	for _, n := range result.Summary.Succeeded {
		status[n] = "ok"
	}
	for _, n := range result.Summary.Skipped {
		status[n] = "skipped"
	}
	for _, f := range result.Summary.Failed {
		status[f.Name] = "failed"
	}
	return modelT{result: result, status: status}
}

func (m modelT) Init() tea.Cmd { return nil }

func (m modelT) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.pane == paneList && m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.pane == paneList && m.cursor < len(m.result.Contracts)-1 {
			m.cursor++
		}
	case "enter":
		if m.pane == paneList && len(m.result.Contracts) > 0 {
			m.pane = paneLayout
		} else {
			m.pane = paneList
		}
	case "tab":
		switch m.pane {
		case paneLayout:
			m.pane = paneCalls
		case paneCalls:
			m.pane = paneLayout
		}
	case "esc":
		m.pane = paneList
	}
	return m, nil
}

func (m modelT) View() string {
	if m.pane != paneList {
		return m.detail()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Contracts (%d)\n\n", len(m.result.Contracts))
	for i, c := range m.result.Contracts {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		fmt.Fprintf(&b, "%s%-8s %s  roots=%d nodes=%d diagnostics=%d\n",
			cursor, m.status[c.Name], c.Name, c.Stats.Roots, c.Stats.Nodes, len(c.Diagnostics))
	}
	b.WriteString("\nj/k move  enter open  q quit\n")
	return b.String()
}

func (m modelT) detail() string {
	c := m.result.Contracts[m.cursor]
	view, title := report.ViewLayout, "layout"
	if m.pane == paneCalls {
		view, title = report.ViewCalls, "calls"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s / %s\n\n", c.Name, title)
	if err := report.Text(&b, &model.Result{Contracts: []*model.ContractReport{c}}, view); err != nil {
		fmt.Fprintf(&b, "render failed: %v\n", err)
	}
	b.WriteString("\ntab layout/calls  esc back  q quit\n")
	return b.String()
}

// Run browses the analyzed contracts until the user quits.
func Run(result *model.Result) error {
	p := tea.NewProgram(initialModel(result))
	_, err := p.Run()
	return err
}
