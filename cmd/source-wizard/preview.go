package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/txn2/source-wizard/pkg/metadata"
	"github.com/txn2/source-wizard/pkg/preview"
)

func newPreviewCmd(a *app) *cobra.Command {
	var (
		databaseID int64
		schema     string
	)
	cmd := &cobra.Command{
		Use:   "preview TABLE",
		Short: "Show the columns of a warehouse table",
		Args:  cobra.ExactArgs(1),
		RunE: runE(func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			name := args[0]
			table, err := c.TableMetadata(cmd.Context(), databaseID, schema, name)
			if err == nil {
				err = metadata.CheckShape(name, table)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", metadata.FailureText(name, err), err)
			}
			_, _ = fmt.Fprintln(a.out, preview.Render(preview.Model{TableName: table.Name, Columns: table.Columns}))
			return nil
		}),
	}
	cmd.Flags().Int64VarP(&databaseID, "database", "d", 0, "Database id")
	cmd.Flags().StringVarP(&schema, "schema", "s", "", "Schema name")
	_ = cmd.MarkFlagRequired("database")
	return cmd
}
