package platform

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/txn2/source-wizard/pkg/api"
	"github.com/txn2/source-wizard/pkg/auth"
	"github.com/txn2/source-wizard/pkg/database/migrate"
	"github.com/txn2/source-wizard/pkg/datasets"
	datasetpg "github.com/txn2/source-wizard/pkg/datasets/postgres"
	"github.com/txn2/source-wizard/pkg/health"
	"github.com/txn2/source-wizard/pkg/secrets"
	"github.com/txn2/source-wizard/pkg/sources"
	sourcepg "github.com/txn2/source-wizard/pkg/sources/postgres"
	"github.com/txn2/source-wizard/pkg/telemetry"
	telemetrypg "github.com/txn2/source-wizard/pkg/telemetry/postgres"
	"github.com/txn2/source-wizard/pkg/warehouse"
)

const dbPingTimeout = 5 * time.Second

// Options configures platform construction.
type Options struct {
	Config *Config

	// DB replaces the connection normally opened from Config.Database.DSN.
	// The platform does not close an injected DB.
	DB *sql.DB
}

// Option configures Options.
type Option func(*Options)

// WithConfig sets the configuration.
func WithConfig(cfg *Config) Option {
	return func(o *Options) { o.Config = cfg }
}

// WithDB injects an open database handle.
func WithDB(db *sql.DB) Option {
	return func(o *Options) { o.DB = db }
}

// Platform wires the stores, services and HTTP handler together.
type Platform struct {
	config    *Config
	lifecycle *Lifecycle
	health    *health.Checker
	features  *Features

	db     *sql.DB
	ownsDB bool

	warehouses *warehouse.Manager
	events     *telemetrypg.Store
	handler    http.Handler
}

// New creates a new platform instance.
func New(opts ...Option) (*Platform, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}
	if options.Config == nil {
		return nil, errors.New("config is required")
	}

	p := &Platform{
		config:    options.Config,
		lifecycle: NewLifecycle(),
		health:    health.NewChecker(),
		features:  NewFeatures(options.Config.Features),
	}
	if err := p.initDatabase(options); err != nil {
		return nil, err
	}
	if err := p.initComponents(); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("initializing components: %w", err)
	}
	return p, nil
}

func (p *Platform) initDatabase(opts *Options) error {
	if opts.DB != nil {
		p.db = opts.DB
	} else {
		db, err := sql.Open("postgres", p.config.Database.DSN)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		db.SetMaxOpenConns(p.config.Database.MaxOpenConns)

		ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return fmt.Errorf("pinging database: %w", err)
		}
		p.db = db
		p.ownsDB = true
	}

	if !p.config.Database.SkipMigrations {
		if err := migrate.Run(p.db); err != nil {
			if p.ownsDB {
				_ = p.db.Close()
			}
			return fmt.Errorf("running migrations: %w", err)
		}
	}
	return nil
}

func (p *Platform) initComponents() error {
	var box *secrets.Box
	if p.config.Secrets.Passphrase != "" {
		b, err := secrets.NewBox(p.config.Secrets.Passphrase)
		if err != nil {
			return fmt.Errorf("creating secrets box: %w", err)
		}
		box = b
	}

	wh, err := warehouse.NewManager(p.config.Warehouses)
	if err != nil {
		return fmt.Errorf("creating warehouse manager: %w", err)
	}
	p.warehouses = wh
	p.lifecycle.RegisterCloser("warehouses", wh)

	authenticator, err := p.buildAuth()
	if err != nil {
		return err
	}

	var logger telemetry.Logger = telemetry.NewSlogLogger(slog.Default())
	var reader api.EventReader
	if p.config.Telemetry.Store {
		p.events = telemetrypg.New(p.db, telemetrypg.Config{RetentionDays: p.config.Telemetry.RetentionDays})
		logger = telemetry.MultiLogger{logger, p.events}
		reader = p.events
		interval := p.config.Telemetry.CleanupInterval
		p.lifecycle.Register("telemetry-cleanup",
			func(context.Context) error {
				p.events.StartCleanupRoutine(interval)
				return nil
			},
			func(context.Context) error { return p.events.Close() },
		)
	}

	p.health.AddProbe("database", p.db.PingContext)

	p.handler = api.NewHandler(api.Config{
		Sources:    sources.NewService(sourcepg.New(p.db), box, nil),
		Datasets:   datasets.NewService(datasetpg.New(p.db), wh),
		Warehouses: wh,
		Telemetry:  logger,
		Events:     reader,
		Features:   p.features,
		Auth:       authenticator,
		Health:     p.health,
	})
	return nil
}

func (p *Platform) buildAuth() (auth.Authenticator, error) {
	var chain []auth.Authenticator
	if len(p.config.Auth.APIKeys) > 0 {
		chain = append(chain, auth.NewAPIKeyAuthenticator(p.config.Auth.APIKeys))
	}
	if p.config.Auth.JWT.SigningKey != "" {
		j, err := auth.NewJWTAuthenticator(auth.JWTConfig{
			Issuer:     p.config.Auth.JWT.Issuer,
			SigningKey: []byte(p.config.Auth.JWT.SigningKey),
			TTL:        p.config.Auth.JWT.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("creating jwt authenticator: %w", err)
		}
		chain = append(chain, j)
	}
	return auth.NewChainedAuthenticator(p.config.Auth.AllowAnonymous, chain...), nil
}

// Start starts background components and marks the platform ready.
func (p *Platform) Start(ctx context.Context) error {
	if err := p.lifecycle.Start(ctx); err != nil {
		return err
	}
	p.health.SetReady()
	slog.Info("platform started", "name", p.config.Server.Name, "warehouses", len(p.config.Warehouses))
	return nil
}

// Stop marks the platform draining and stops background components.
func (p *Platform) Stop(ctx context.Context) error {
	p.health.SetDraining()
	return p.lifecycle.Stop(ctx)
}

// Handler returns the HTTP handler for the API.
func (p *Platform) Handler() http.Handler {
	return p.handler
}

// Config returns the platform configuration.
func (p *Platform) Config() *Config {
	return p.config
}

// Features returns the live feature flags.
func (p *Platform) Features() *Features {
	return p.features
}

// Health returns the readiness checker.
func (p *Platform) Health() *health.Checker {
	return p.health
}

// Close releases resources not already released by Stop.
func (p *Platform) Close() error {
	var errs []error
	if p.lifecycle.IsStarted() {
		ctx, cancel := context.WithTimeout(context.Background(), p.config.Server.ShutdownTimeout)
		defer cancel()
		if err := p.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	} else if p.warehouses != nil {
		if err := p.warehouses.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.ownsDB && p.db != nil {
		if err := p.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing platform: %w", errors.Join(errs...))
	}
	return nil
}
