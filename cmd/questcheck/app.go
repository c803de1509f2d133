package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cgast/questcheck/internal/config"
	"github.com/cgast/questcheck/internal/grader"
	"github.com/cgast/questcheck/internal/source"
	"github.com/cgast/questcheck/pkg/attempt"
	"github.com/cgast/questcheck/pkg/events"
	"github.com/cgast/questcheck/pkg/mission"
)

// errSubmissionFailed makes the process exit 1 without printing an error;
// the report already says what failed.
var errSubmissionFailed = errors.New("submission failed")

// app holds what every command shares: flags, configuration and logger.
type app struct {
	configPath  string
	catalogPath string
	verbose     bool
	noStore     bool

	cfg    config.Config
	logger *zap.Logger
}

func (a *app) init() error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.catalogPath != "" {
		cfg.Catalog = config.CatalogConfig{Path: a.catalogPath}
	}
	if a.noStore {
		cfg.Store.Enabled = false
	}
	a.cfg = cfg

	zc := zap.NewProductionConfig()
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if a.verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	return nil
}

func (a *app) sync() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// loadCatalog loads the catalog from the configured source.
func (a *app) loadCatalog(ctx context.Context) (*mission.Catalog, source.Source, error) {
	src, err := source.New(a.cfg.Catalog)
	if err != nil {
		return nil, nil, err
	}
	cat, err := src.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load catalog from %s: %w", src.Describe(), err)
	}
	return cat, src, nil
}

// openStore opens the attempt store, or returns nil when it is disabled.
func (a *app) openStore() (attempt.Store, error) {
	if !a.cfg.Store.Enabled {
		return nil, nil
	}
	if dir := filepath.Dir(a.cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	return attempt.NewBoltStore(a.cfg.Store.Path)
}

// service is a grader with the resources it owns.
type service struct {
	grader *grader.Grader
	bus    *events.MemoryBus
	store  attempt.Store
}

func (s *service) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// newService wires catalog, store, bus and metrics into a grader. reg may
// be nil.
func (a *app) newService(ctx context.Context, reg prometheus.Registerer) (*service, error) {
	cat, src, err := a.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}

	bus := events.NewMemoryBus(events.DefaultHistory)
	opts := []grader.Option{
		grader.WithBus(bus),
		grader.WithLogger(a.logger),
		grader.WithSourceName(src.Describe()),
		grader.WithMaxSourceBytes(a.cfg.Server.MaxSourceBytes()),
	}
	if store != nil {
		opts = append(opts, grader.WithStore(store))
	}
	if reg != nil {
		opts = append(opts, grader.WithRegisterer(reg))
	}

	g := grader.New(cat, opts...)
	g.Announce()
	return &service{grader: g, bus: bus, store: store}, nil
}
