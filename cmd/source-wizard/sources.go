package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/txn2/source-wizard/pkg/source"
	"github.com/txn2/source-wizard/pkg/sources"
)

func newSourcesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage sources",
	}
	cmd.AddCommand(
		newSourcesListCmd(a),
		newSourcesTypesCmd(a),
		newSourcesCreateCmd(a),
		newSourcesDeleteCmd(a),
	)
	return cmd
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func newSourcesListCmd(a *app) *cobra.Command {
	var filter sources.ListFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sources",
		RunE: runE(func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			page, err := c.ListSources(cmd.Context(), filter)
			if err != nil {
				return err
			}
			t := newTable(a.out)
			t.AppendHeader(table.Row{"ID", "Name", "Type", "Changed"})
			for _, s := range page.Result {
				t.AppendRow(table.Row{s.ID, s.Name, s.Type, s.ChangedOn.Format(time.RFC3339)})
			}
			t.AppendFooter(table.Row{"", "", "Total", page.Count})
			t.Render()
			return nil
		}),
	}
	cmd.Flags().StringVarP(&filter.Query, "query", "q", "", "Filter by name")
	cmd.Flags().StringVar(&filter.OrderBy, "order", "", "Order by source_name or changed_on")
	cmd.Flags().BoolVar(&filter.OrderDesc, "desc", false, "Descending order")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "Page size")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Page offset")
	return cmd
}

func newSourcesTypesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List source types and their fields",
		RunE: runE(func(_ *cobra.Command, _ []string) error {
			reg := source.DefaultRegistry()
			t := newTable(a.out)
			t.AppendHeader(table.Row{"Type", "Field", "Label", "Required", "Options"})
			for _, typ := range source.Types() {
				panel, ok := reg.Get(typ)
				if !ok {
					t.AppendRow(table.Row{typ, "", "not configurable yet", "", ""})
					continue
				}
				for _, f := range panel.Fields() {
					t.AppendRow(table.Row{typ, f.Key, f.Label, f.Required, strings.Join(f.Options, ", ")})
				}
				t.AppendSeparator()
			}
			t.Render()
			return nil
		}),
	}
}

func newSourcesCreateCmd(a *app) *cobra.Command {
	var (
		req  sources.CreateRequest
		sets []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a source",
		RunE: runE(func(cmd *cobra.Command, _ []string) error {
			values, err := parseValues(sets)
			if err != nil {
				return err
			}
			panel := source.DefaultRegistry().Lookup(req.Type)
			if err := promptSecrets(a.in, a.out, panel, values); err != nil {
				return err
			}
			req.Values = values

			c, err := a.client()
			if err != nil {
				return err
			}
			src, err := c.CreateSource(cmd.Context(), req)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.out, "Created source %d (%s)\n", src.ID, src.Name)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&req.Type, "type", "t", "", "Source type")
	cmd.Flags().StringVarP(&req.Name, "name", "n", "", "Source name")
	cmd.Flags().StringVar(&req.Description, "description", "", "Description")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Field value as key=value, repeatable")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newSourcesDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a source",
		Args:  cobra.ExactArgs(1),
		RunE: runE(func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid source id %q", args[0])
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.DeleteSource(cmd.Context(), id); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.out, "Deleted source %d\n", id)
			return nil
		}),
	}
}

func parseValues(sets []string) (map[string]string, error) {
	values := make(map[string]string, len(sets))
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set %q, want key=value", s)
		}
		values[k] = v
	}
	return values, nil
}

// promptSecrets asks for every required secret field missing from values.
// Input is hidden when in is a terminal.
func promptSecrets(in io.Reader, out io.Writer, panel source.Panel, values map[string]string) error {
	reader := bufio.NewReader(in)
	for _, f := range panel.Fields() {
		if !f.Secret() || !f.Required || values[f.Key] != "" {
			continue
		}
		_, _ = fmt.Fprintf(out, "%s: ", f.Label)
		v, err := readSecret(in, reader)
		_, _ = fmt.Fprintln(out)
		if err != nil {
			return fmt.Errorf("reading %s: %w", f.Label, err)
		}
		values[f.Key] = v
	}
	return nil
}

func readSecret(in io.Reader, reader *bufio.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
