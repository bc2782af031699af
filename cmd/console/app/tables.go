package app

import (
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/labops/runcontrol/internal/run"
	"github.com/labops/runcontrol/internal/selection"
)

var (
	instructionColumnTitles   = []string{"Sel", "#", "Operation", "Mode", "Completed"}
	instructionColumnDefaults = []int{4, 4, 30, 8, 20}
	instructionColumnWeights  = []int{1, 1, 6, 2, 4}
)

// instructionsToRows renders the run's instructions in sequence order
// with their selection and execution-mode markers.
func instructionsToRows(r run.Run, sel *selection.Model) []table.Row {
	sorted := r.Sorted()
	rows := make([]table.Row, len(sorted))
	for i, instr := range sorted {
		rows[i] = table.Row{
			selectionMarker(sel, instr),
			strconv.Itoa(instr.SequenceNo),
			instr.Operation.Kind,
			modeLabel(sel, instr),
			completedLabel(instr),
		}
	}
	return rows
}

func selectionMarker(sel *selection.Model, instr run.Instruction) string {
	if sel != nil && sel.Selected(instr.SequenceNo) {
		return "●"
	}
	return ""
}

func modeLabel(sel *selection.Model, instr run.Instruction) string {
	human := instr.IsHumanByDefault
	if instr.Operation.XHuman != nil {
		human = *instr.Operation.XHuman
	}
	if sel != nil {
		human = sel.EffectiveHuman(instr)
	}

	if human {
		return "human"
	}
	return "machine"
}

func completedLabel(instr run.Instruction) string {
	if instr.CompletedAt == nil {
		return "-"
	}
	return instr.CompletedAt.UTC().Format("2006-01-02 15:04:05")
}

func (m *Model) resizeColumns(width int) {
	if width <= 0 {
		return
	}
	columns := buildColumns(instructionColumnTitles, distributeWidths(width, instructionColumnWeights))
	m.instructions.SetColumns(columns)
}

func createTable(titles []string, widths []int) table.Model {
	tbl := table.New(
		table.WithColumns(buildColumns(titles, widths)),
		table.WithHeight(10),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true)

	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("63")).
		Bold(false)

	tbl.SetStyles(styles)
	return tbl
}

func buildColumns(titles []string, widths []int) []table.Column {
	columns := make([]table.Column, len(titles))
	for i, title := range titles {
		width := 12
		if i < len(widths) && widths[i] > 0 {
			width = widths[i]
		}
		columns[i] = table.Column{Title: title, Width: width}
	}

	return columns
}

func distributeWidths(total int, weights []int) []int {
	if len(weights) == 0 {
		return nil
	}

	if total <= 0 {
		total = len(weights) * 12
	}

	sum := 0
	for _, w := range weights {
		sum += w
	}

	minWidth := 4
	widths := make([]int, len(weights))
	remaining := total

	for i, weight := range weights {
		if i == len(weights)-1 {
			widths[i] = max(minWidth, remaining)
			break
		}

		portion := max(minWidth, weight*total/sum)
		minRemaining := minWidth * (len(weights) - i - 1)
		if remaining-portion < minRemaining {
			portion = max(minWidth, remaining-minRemaining)
		}

		widths[i] = portion
		remaining -= portion
	}

	return widths
}
