package main

import (
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/txn2/source-wizard/internal/cli/sqlitestore"
	"github.com/txn2/source-wizard/internal/tui"
	"github.com/txn2/source-wizard/pkg/selection"
)

func newAddCmd(a *app) *cobra.Command {
	var fresh bool
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Run the interactive add-source wizard",
		RunE: runE(func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			c, err := cfg.Client()
			if err != nil {
				return err
			}

			store, err := sqlitestore.Open(cfg.StatePath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			var initial *selection.Selection
			if !fresh {
				if initial, err = store.Load(ctx); err != nil {
					slog.Warn("ignoring saved selection", "error", err)
				}
			}

			model := tui.New(ctx, tui.Config{API: c, Telemetry: c, Store: store, Initial: initial})
			if _, err := tea.NewProgram(model, tea.WithContext(ctx), tea.WithInput(a.in), tea.WithOutput(a.out)).Run(); err != nil {
				return fmt.Errorf("running wizard: %w", err)
			}
			if s := model.Result().String(); s != "" {
				_, _ = fmt.Fprintln(a.out, s)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&fresh, "fresh", false, "Ignore the saved selection")
	return cmd
}
