package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ormasoftchile/xsmdbg/internal/xsmvm"
	"github.com/spf13/cobra"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [command...]",
	Short: "Single-step a spawned XSM session at an interval, showing live state",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f, err := xsmvm.SpawnNew(args, cfg)
	if err != nil {
		return fmt.Errorf("spawn: %w", err)
	}
	defer f.Close()

	m := watchModel{facade: f, interval: watchInterval, codeLines: 8}
	p := tea.NewProgram(m)
	_, err = p.Run()
	return err
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 200*time.Millisecond, "Delay between single-steps")
}

// watchModel is a minimal read-only view over a facade: it single-steps
// on a timer and renders the current registers and code window. It is
// a thin reference consumer, not a replacement for an editor extension.
type watchModel struct {
	facade    *xsmvm.Facade
	interval  time.Duration
	codeLines int
	tick      int
}

type tickMsg struct{}

func (m watchModel) Init() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		if !m.facade.IsHalted() {
			m.facade.Step(1)
			m.tick++
		}
		return m, tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{} })
	}
	return m, nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	markStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
)

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("xsmdbg watch — step %d — %s", m.tick, m.facade.Mode())))
	b.WriteString("\n")
	if m.facade.IsHalted() {
		b.WriteString(markStyle.Render("HALTED"))
		b.WriteString("\n")
	}
	b.WriteString(m.facade.GetStatus())
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("registers"))
	b.WriteString("\n")
	for i, reg := range m.facade.GetRegs().Named() {
		b.WriteString(fmt.Sprintf("%-5s %-8s", reg.Name, reg.Value))
		if i%4 == 3 {
			b.WriteString("\n")
		}
	}
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("code"))
	b.WriteString("\n")
	win := m.facade.GetCode(m.codeLines)
	for i, line := range win.Lines {
		addr := win.BaseAddr + 2*i
		if addr == win.IP {
			b.WriteString(markStyle.Render(fmt.Sprintf("=> %6d  %s", addr, line)))
		} else {
			b.WriteString(dimStyle.Render(fmt.Sprintf("   %6d  %s", addr, line)))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("q to quit"))
	return b.String()
}
