package app

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/labops/runcontrol/internal/history"
	"github.com/labops/runcontrol/internal/schedule"
	"github.com/labops/runcontrol/pkg/client"
)

var (
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	drawerBox   = boxStyle.BorderForeground(lipgloss.Color("63"))
	dialogBox   = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("208")).Padding(1, 2)
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("57")).Bold(true).Padding(0, 1)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Padding(0, 1)

	footerHint = "[space] select  [r] range  [h/H] human  [a] all  [w/e] workcell/session  " +
		"[d] dispatch  [b] abort  [c/u] complete/undo  [m] mark all  [v] history  [q] quit"
)

// View renders the interface.
func (m Model) View() string {
	header := m.renderHeader()
	footer := barStyle.Render(footerHint)

	var body string

	switch m.state {
	case statusLoading:
		body = centerText(fmt.Sprintf("%s Loading run…", m.spinner.View()))
	case statusError:
		body = boxStyle.Render("Failed to load run: " + m.err.Error())
	case statusReady:
		body = m.renderBody()
	}

	parts := []string{header, body}
	if m.notice != "" {
		parts = append(parts, noticeStyle.Render(m.notice))
	}
	parts = append(parts, footer)

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderBody() string {
	switch {
	case m.failure != "":
		return dialogBox.Render(
			"Scheduling failed\n\n" + m.failure + "\n\n[enter] dismiss")
	case m.warnings != nil:
		return m.renderWarnings()
	case m.landed != "":
		return dialogBox.Render(
			"Instructions scheduled\n\nSession: " + m.landed + "\n\n[enter] dismiss")
	case m.showHistory:
		return m.renderHistory()
	}

	panes := []string{boxStyle.Render(m.instructions.View())}
	if m.drawer.open {
		panes = append(panes, m.renderDrawer())
	}
	return lipgloss.JoinVertical(lipgloss.Left, panes...)
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("runcontrol")
	state := m.deps.Coordinator.State()

	line := fmt.Sprintf("run %s  status %s  schedule %s", m.deps.RunID, m.run.Status, state)
	if m.tracker != nil {
		snapshot := m.tracker.Snapshot()
		line += fmt.Sprintf("  done %d/%d", snapshot.LastCompletedIndex+1, snapshot.Total)
	}
	switch state {
	case schedule.StateWaiting:
		line += "  starts in " + formatRemaining(m.deps.Coordinator.Remaining())
	case schedule.StateScheduling:
		line += "  request " + m.deps.Coordinator.RequestID()
	}

	parts := []string{title, barStyle.Render(line)}
	if m.stats != nil {
		parts = append(parts, barStyle.Render(formatStats(m.stats)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderDrawer() string {
	var b strings.Builder

	count := m.sel.Count()
	human := len(m.sel.HumanSequences())
	fmt.Fprintf(&b, "Dispatch %d instruction(s), %d by hand\n", count, human)

	eligible := m.eligibleWorkcells()
	if len(eligible) == 0 {
		b.WriteString("Workcell: none eligible")
		return drawerBox.Render(b.String())
	}

	wc, _ := m.currentWorkcell()
	label := wc.Name
	if wc.Type == client.WorkcellIntegration {
		label += " (integration)"
	}
	if wc.IsTest {
		label += " (test)"
	}
	fmt.Fprintf(&b, "Workcell: %s  (%d eligible)\n", label, len(eligible))

	fmt.Fprintf(&b, "Session:  %s\n", m.sessionLabel())
	b.WriteString("[d] dispatch")

	return drawerBox.Render(b.String())
}

func (m Model) sessionLabel() string {
	if m.sessionIdx == 0 || m.sessionIdx > len(m.sessions) {
		return "new session"
	}
	session := m.sessions[m.sessionIdx-1]
	if session.Label != "" {
		return session.Label
	}
	return session.ID
}

func (m Model) renderWarnings() string {
	keys := make([]string, 0, len(m.warnings))
	for key := range m.warnings {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Soft constraint warnings\n\n")
	for _, key := range keys {
		fmt.Fprintf(&b, "%s: %s\n", key, m.warnings[key])
	}
	b.WriteString("\nSchedule anyway? [y] yes  [n] no")

	return dialogBox.Render(b.String())
}

func (m Model) renderHistory() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dispatch history for run %s\n\n", m.deps.RunID)

	if len(m.records) == 0 {
		b.WriteString("no submissions recorded")
	}

	for _, rec := range m.records {
		b.WriteString(formatRecord(rec) + "\n")
	}
	b.WriteString("\n[esc] close")

	return boxStyle.Render(b.String())
}

func formatRecord(rec history.Record) string {
	line := fmt.Sprintf("%s  %-9s  %s  %d instr",
		rec.SubmittedAt.UTC().Format("2006-01-02 15:04:05"),
		rec.Outcome, rec.WorkcellID, rec.InstructionCount)
	if rec.Forced {
		line += "  forced"
	}
	if rec.Message != "" {
		line += "  " + rec.Message
	}
	return line
}

func formatStats(stats *client.SchedulerStats) string {
	return fmt.Sprintf("queue %d  active %d  avg %.1fs  success %.0f%%  online %d",
		stats.QueueDepth,
		stats.ActiveRequests,
		stats.AvgScheduleSeconds,
		stats.SuccessRate*100,
		stats.WorkcellsOnline,
	)
}

func formatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

func centerText(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return lipgloss.NewStyle().Align(lipgloss.Center).Render(value)
}
