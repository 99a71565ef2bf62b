package cmd

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/arcanaland/oracle/internal/catalog"
	"github.com/arcanaland/oracle/internal/completion"
	"github.com/arcanaland/oracle/internal/config"
	"github.com/arcanaland/oracle/internal/logging"
	"github.com/arcanaland/oracle/internal/reading"
	"github.com/arcanaland/oracle/internal/session"
)

// app bundles what every command needs after flags are parsed
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	catalog *catalog.Catalog
}

func loadApp() (*app, error) {
	cfg, err := config.LoadFrom(currentConfigPath())
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(level)
	if err != nil {
		return nil, err
	}

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		cat, err = catalog.Load(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		logger.Debug("custom catalog loaded", zap.String("path", cfg.CatalogPath), zap.Int("cards", cat.Len()))
	}

	return &app{cfg: cfg, logger: logger, catalog: cat}, nil
}

// pipeline wires the completion client into a reading pipeline
func (a *app) pipeline() (*reading.Pipeline, error) {
	timeout, err := a.cfg.Timeout()
	if err != nil {
		return nil, err
	}

	cc := a.cfg.Completion
	client, err := completion.NewClient(completion.Config{
		APIKey:   cc.APIKey,
		BaseURL:  cc.BaseURL,
		Model:    cc.Model,
		Referer:  cc.Referer,
		AppTitle: cc.AppTitle,
	}, completion.WithLogger(a.logger.Named("completion")))
	if errors.Is(err, completion.ErrConfiguration) {
		return nil, fmt.Errorf("%w (set completion.api_key with 'oracle config set' or export OPENROUTER_API_KEY)", err)
	}
	if err != nil {
		return nil, err
	}

	return reading.New(client, catalog.NewPicker(a.catalog, nil),
		reading.WithLogger(a.logger.Named("reading")),
		reading.WithOptions(reading.Options{
			Temperature:    cc.Temperature,
			FullMaxTokens:  cc.FullMaxTokens,
			QuickMaxTokens: cc.QuickMaxTokens,
			Timeout:        timeout,
		}),
	), nil
}

func (a *app) openStore() (*session.Store, error) {
	return session.Open(a.cfg.DatabasePath(), session.WithLogger(a.logger.Named("session")))
}

func (a *app) close() {
	_ = a.logger.Sync()
}
