package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	// Register database/sql drivers for sqlfetch.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/frankdugan3/typstflow/internal/cli/config"
	"github.com/frankdugan3/typstflow/pkg/engine"
	"github.com/frankdugan3/typstflow/pkg/engine/typstcli"
	"github.com/frankdugan3/typstflow/pkg/pipeline"
	"github.com/frankdugan3/typstflow/pkg/pipeline/pgxfetch"
	"github.com/frankdugan3/typstflow/pkg/pipeline/sqlfetch"
)

// app wires configuration into the pieces the commands share: engine,
// fetcher, logger, and the compiled pipeline registry.
type app struct {
	cfg      *config.Config
	eng      engine.Engine
	registry *pipeline.Registry
	log      *zap.Logger
	closers  []func() error
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	log, err := buildLogger()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg: cfg,
		eng: typstcli.New(cfg.Engine.TypstBin),
		log: log,
	}
	a.closers = append(a.closers, func() error {
		log.Sync()
		return nil
	})

	fetcher, err := a.buildFetcher(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	deps := pipeline.Deps{
		Engine:            a.eng,
		Fetcher:           fetcher,
		FontPaths:         cfg.Engine.FontPaths,
		IgnoreSystemFonts: cfg.Engine.IgnoreSystemFonts,
		Logger:            log,
	}

	specs, err := cfg.Specs()
	if err != nil {
		a.close()
		return nil, err
	}

	a.registry = pipeline.NewRegistry()
	for _, spec := range specs {
		if _, err := a.registry.Register(spec, deps); err != nil {
			a.close()
			return nil, err
		}
	}

	return a, nil
}

// buildFetcher connects the configured data source. Driver "pgx" uses the
// native pgx pool; anything else goes through database/sql with whatever
// driver is registered under that name.
func (a *app) buildFetcher(ctx context.Context) (pipeline.Fetcher, error) {
	db := a.cfg.Database
	if db.URL == "" {
		return nil, nil
	}

	if db.Driver == "" || db.Driver == "pgx" || db.Driver == "postgres" {
		fetcher, err := pgxfetch.Connect(ctx, db.URL, db.Kind)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			fetcher.Close()
			return nil
		})
		return fetcher, nil
	}

	handle, err := sql.Open(db.Driver, db.URL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := handle.PingContext(ctx); err != nil {
		handle.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	a.closers = append(a.closers, handle.Close)
	return sqlfetch.New(handle, db.Kind), nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildLogger() (*zap.Logger, error) {
	if flagVerbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func (a *app) engineOptions() engine.Options {
	return engine.Options{
		Root:              a.cfg.Engine.Root,
		FontPaths:         a.cfg.Engine.FontPaths,
		IgnoreSystemFonts: a.cfg.Engine.IgnoreSystemFonts,
	}
}
