package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/txn2/source-wizard/pkg/footer"
	"github.com/txn2/source-wizard/pkg/preview"
	"github.com/txn2/source-wizard/pkg/source"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			Padding(0, 1)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	enabledStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	spinnerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
)

var stepTitles = [...]string{"Choose a source", "Choose a database", "Choose a table", "Review dataset"}

// View renders the model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Add source · %d/%d %s", m.step+1, len(stepTitles), stepTitles[m.step])))
	b.WriteString("\n\n")

	left := m.sourcePanel()
	right := m.datasetPanel()
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, paneStyle.Render(left), paneStyle.Render(right)))
	b.WriteString("\n")

	if m.notice != "" {
		b.WriteString(errorStyle.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString(m.footerLine())
	b.WriteString("\n")
	return b.String()
}

func (m Model) sourcePanel() string {
	var b strings.Builder
	switch m.step {
	case stepSource:
		for i, name := range m.sources {
			b.WriteString(m.row(i, name))
		}
	case stepDatabase:
		if len(m.dbs) == 0 {
			b.WriteString(m.spinner.View() + " Loading databases...")
		}
		for i, db := range m.dbs {
			b.WriteString(m.row(i, db.String()))
		}
	default:
		panel := source.DefaultRegistry().Lookup(m.selName())
		b.WriteString(selectedStyle.Render(panel.Title()))
		b.WriteString("\n\n")
		b.WriteString(m.schema.View())
		b.WriteString("\n")
		b.WriteString(m.table.View())
	}
	return b.String()
}

func (m Model) row(i int, label string) string {
	if i == m.cursor {
		return selectedStyle.Render("> "+label) + "\n"
	}
	return "  " + label + "\n"
}

func (m Model) datasetPanel() string {
	pm := m.adapter.Model()
	if pm.Loading {
		return m.spinner.View() + " " + preview.LoadingText
	}
	return preview.Render(pm)
}

func (m Model) footerLine() string {
	create := "[enter] Create dataset"
	if m.step == stepPreview && m.canCreate() {
		create = enabledStyle.Render(create)
	} else {
		create = disabledStyle.Render(create)
		if tip := footer.Tooltip(m.sel); tip != "" && m.step == stepPreview {
			create += " " + helpStyle.Render(tip)
		}
	}
	if m.busy {
		create = m.spinner.View() + " Creating..."
	}
	return create + helpStyle.Render("  [r] refresh  [b] back  [esc] cancel")
}

func (m Model) selName() string {
	if m.sel == nil {
		return ""
	}
	return m.sel.Name
}
