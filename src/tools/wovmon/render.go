package wovmon

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"poise/src/hardware/leon"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	slotStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).
			Padding(0, 1).Foreground(lipgloss.Color("250"))
	currentStyle = slotStyle.Foreground(lipgloss.Color("10")).
			BorderForeground(lipgloss.Color("10")).Bold(true)
	markedStyle = slotStyle.Foreground(lipgloss.Color("9")).
			BorderForeground(lipgloss.Color("9"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	historyStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).
			Padding(0, 1).Width(76)
	haltStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1"))
	helpStyle = lipgloss.NewStyle().Faint(true)
)

const helpText = "a allocate  t trap  i interrupt  p pil  u enter task  k kernel  " +
	"c corrupt  d defer  s start  r reset  q quit"

// Render draws the whole monitor screen: the ring with the current and
// marked slots highlighted, the status word summary, and the event
// history.
func (m *Monitor) Render() string {
	cwp := m.cpu.PSR.CWP()
	mask := m.cpu.InvalidMask()

	cells := make([]string, leon.WindowCount)
	for slot := 0; slot < leon.WindowCount; slot++ {
		label := fmt.Sprintf("w%d", slot)
		if mask.On(slot) {
			label += "*"
		}
		body := fmt.Sprintf("%s\n%08x", label, m.cpu.Window(slot).SP())
		switch {
		case slot == cwp:
			cells[slot] = currentStyle.Render(body)
		case mask.On(slot):
			cells[slot] = markedStyle.Render(body)
		default:
			cells[slot] = slotStyle.Render(body)
		}
	}
	ring := lipgloss.JoinHorizontal(lipgloss.Top, cells...)

	var b strings.Builder
	b.WriteString(titleStyle.Render("wovmon, window overflow monitor"))
	b.WriteString("\n")
	b.WriteString(ring)
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(fmt.Sprintf("cwp=%d mask=%s %s",
		cwp, mask, m.statusLine())))
	b.WriteString("\n")

	b.WriteString(historyStyle.Render(strings.Join(m.history.Items(), "\n")))
	b.WriteString("\n")

	if m.cpu.Halted() {
		b.WriteString(haltStyle.Render(" HALTED: " + m.cpu.HaltReason() + " "))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render(helpText))
	b.WriteString("\n")
	return b.String()
}
