package preview

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Placeholder texts shown instead of a column table.
const (
	SelectTableText = "Select a table to preview its columns."
	LoadingText     = "Loading table metadata..."
	ErrorText       = "Unable to load columns for the selected table. Please select a different table."
	NoColumnsText   = "This table has no columns and cannot be used as a dataset."
)

// Render returns the dataset panel as plain text.
func Render(m Model) string {
	switch {
	case m.TableName == "":
		return SelectTableText
	case m.Loading:
		return LoadingText
	case m.HasError:
		return ErrorText
	case !m.HasColumns():
		return fmt.Sprintf("%s\n%s", m.TableName, NoColumnsText)
	}

	t := table.NewWriter()
	t.SetTitle(m.TableName)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Column Name", "Datatype", "Nullable"})
	for i, c := range m.Columns {
		t.AppendRow(table.Row{i + 1, c.Name, c.Type, strconv.FormatBool(c.Nullable)})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
	})
	return t.Render()
}
