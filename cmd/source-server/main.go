// Package main provides the entry point for the source-server API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/txn2/source-wizard/internal/apidocs" // register swagger docs
	"github.com/txn2/source-wizard/internal/server"
	"github.com/txn2/source-wizard/pkg/logging"
	"github.com/txn2/source-wizard/pkg/platform"
)

// @title                       source-server API
// @version                     1.0
// @description                 REST API behind the add-source wizard.
// @BasePath                    /api/v1
// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        X-API-Key
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type serverOptions struct {
	configPath  string
	address     string
	showVersion bool
}

func parseFlags(args []string) (serverOptions, error) {
	opts := serverOptions{}
	fs := flag.NewFlagSet("source-server", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", os.Getenv("SOURCE_SERVER_CONFIG"), "Path to configuration file")
	fs.StringVar(&opts.address, "address", "", "Listen address, overrides server.address")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

func loadConfig(opts serverOptions) (*platform.Config, error) {
	if opts.configPath == "" {
		return nil, errors.New("-config is required")
	}
	cfg, err := platform.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.address != "" {
		cfg.Server.Address = opts.address
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.showVersion {
		_, _ = fmt.Fprintf(stdout, "source-server version %s\n", server.Version)
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	closeLogs, err := logging.Setup(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer closeLogs()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := platform.New(platform.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("creating platform: %w", err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			slog.Error("closing platform", "error", err)
		}
	}()

	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("starting platform: %w", err)
	}

	watcher, err := platform.NewConfigWatcher(opts.configPath, p.Features())
	if err != nil {
		slog.Warn("config hot reload disabled", "error", err)
	} else {
		watcher.Start()
		defer func() { _ = watcher.Stop() }()
	}

	return server.ListenAndRun(ctx, server.New(cfg.Server, p.Handler()), cfg.Server)
}
