package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newDatasetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "Inspect datasets",
	}

	var databaseID int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List datasets",
		RunE: runE(func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			items, err := c.ListDatasets(cmd.Context(), databaseID)
			if err != nil {
				return err
			}
			t := newTable(a.out)
			t.AppendHeader(table.Row{"ID", "Database", "Schema", "Table", "Created By"})
			for _, d := range items {
				t.AppendRow(table.Row{d.ID, d.DatabaseID, d.Schema, d.TableName, d.CreatedBy})
			}
			t.Render()
			return nil
		}),
	}
	list.Flags().Int64VarP(&databaseID, "database", "d", 0, "Only datasets of this database")
	cmd.AddCommand(list)
	return cmd
}
