package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/txn2/source-wizard/internal/cli"
	"github.com/txn2/source-wizard/pkg/client"
)

// app carries the global flags and I/O shared by every command.
type app struct {
	in  io.Reader
	out io.Writer

	configPath string
	server     string
	apiKey     string
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: in, out: out}

	root := &cobra.Command{
		Use:     "source-wizard",
		Short:   "Add data sources and turn warehouse tables into datasets",
		Version: version,
	}
	root.SetIn(in)
	root.SetOut(out)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", cli.DefaultConfigPath(), "Path to configuration file")
	root.PersistentFlags().StringVar(&a.server, "server", "", "API base URL (overrides config)")
	root.PersistentFlags().StringVar(&a.apiKey, "api-key", "", "API key (overrides config)")

	root.AddCommand(
		newAddCmd(a),
		newPreviewCmd(a),
		newSourcesCmd(a),
		newDatasetsCmd(a),
	)
	return root
}

// config loads the CLI config and applies flag overrides.
func (a *app) config() (*cli.Config, error) {
	cfg, err := cli.LoadConfig(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.server != "" {
		cfg.Server = a.server
	}
	if a.apiKey != "" {
		cfg.APIKey = a.apiKey
	}
	return cfg, nil
}

func (a *app) client() (*client.Client, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	return cfg.Client()
}

// runE wraps fn so usage is only printed for flag errors.
func runE(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return fn(cmd, args)
	}
}
