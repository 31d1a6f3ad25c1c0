package cli

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/dyike/StockBot/config"
	"github.com/dyike/StockBot/internal/dataflows"
	"github.com/dyike/StockBot/internal/keywords"
	"github.com/dyike/StockBot/internal/logging"
	"github.com/dyike/StockBot/internal/service"
	"github.com/dyike/StockBot/internal/storage"
)

// globalOptions are the persistent root flags.
type globalOptions struct {
	configPath string
	debug      bool
	logLevel   string
	noHistory  bool
}

// app is everything a command needs, built once per invocation.
type app struct {
	opts    *globalOptions
	mgr     *config.Manager
	cfg     config.Config
	logger  *zap.Logger
	catalog *keywords.Catalog
	store   *storage.Store
	out     io.Writer
}

// newManager opens the settings file with the command line flags as the
// resolver, so every runtime config, including hot reloads, carries them.
func newManager(opts *globalOptions) (*config.Manager, error) {
	return config.NewManager(
		config.WithConfigPath(opts.configPath),
		config.WithResolver(func(cfg config.Config) (config.Config, error) {
			return overlay(cfg, opts)
		}),
	)
}

// overlay applies the flags on top of file and environment settings.
func overlay(cfg config.Config, opts *globalOptions) (config.Config, error) {
	if opts.debug {
		cfg.Debug = true
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.noHistory {
		cfg.RecordHistory = false
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// bootstrap builds the app. needKey enforces the API key; withStore opens the
// history database when recording is enabled.
func bootstrap(out io.Writer, opts *globalOptions, needKey, withStore bool) (*app, error) {
	mgr, err := newManager(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg, err := mgr.Runtime()
	if err != nil {
		return nil, err
	}
	if needKey {
		if err := cfg.RequireAPIKey(); err != nil {
			return nil, err
		}
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Debug: cfg.Debug, File: cfg.LogFile})
	if err != nil {
		return nil, err
	}

	catalog, err := loadCatalog(&cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		opts:    opts,
		mgr:     mgr,
		cfg:     cfg,
		logger:  logger,
		catalog: catalog,
		out:     out,
	}
	if withStore && cfg.RecordHistory {
		store, err := storage.Open(cfg.DBPath, storage.WithLogger(logger.Named("storage")))
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		a.store = store
	}
	return a, nil
}

func loadCatalog(cfg *config.Config) (*keywords.Catalog, error) {
	if cfg.KeywordsFile == "" {
		return keywords.Default(), nil
	}
	catalog, err := keywords.Load(cfg.KeywordsFile)
	if err != nil {
		return nil, fmt.Errorf("load keywords: %w", err)
	}
	return catalog, nil
}

// newBot wires a Bot for cfg. The recorder may be nil.
func (a *app) newBot(cfg *config.Config, recorder service.Recorder, observer dataflows.CallObserver, outcome func(service.Outcome)) *service.Bot {
	clientOpts := []dataflows.ClientOption{dataflows.WithLogger(a.logger.Named("gateway"))}
	if observer != nil {
		clientOpts = append(clientOpts, dataflows.WithObserver(observer))
	}
	gateway := dataflows.NewAlphaVantageClient(cfg, clientOpts...)

	botOpts := []service.Option{service.WithLogger(a.logger.Named("bot"))}
	if recorder != nil {
		botOpts = append(botOpts, service.WithRecorder(recorder))
	}
	if outcome != nil {
		botOpts = append(botOpts, service.WithOutcomeObserver(outcome))
	}
	return service.NewBot(a.catalog, cfg, gateway, botOpts...)
}

// recorder returns the store as a Recorder, or nil when history is off.
func (a *app) recorder() service.Recorder {
	if a.store == nil {
		return nil
	}
	return a.store
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close history", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
