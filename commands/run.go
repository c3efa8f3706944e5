package commands

import (
	"context"
	"fmt"
	"io"

	"hicv-scanner/config"
	"hicv-scanner/diagnostics"
	"hicv-scanner/models"
	"hicv-scanner/scraper/hicv"
	"hicv-scanner/services"
	"hicv-scanner/storage"
	"hicv-scanner/utils"
)

// environment is everything a run needs, built from the final config.
type environment struct {
	cfg     *config.Config
	logger  *utils.Logger
	browser *hicv.Browser
	sink    storage.MultiSink
	scanner *services.Scanner
}

func openSinks(cfg *config.Config, logger *utils.Logger) (storage.MultiSink, error) {
	var sinks storage.MultiSink
	if cfg.CSVPath != "" {
		sinks = append(sinks, storage.NewCSVWriter(cfg.CSVPath, logger))
	}
	if cfg.XLSXPath != "" {
		sinks = append(sinks, storage.NewXLSXWriter(cfg.XLSXPath, logger))
	}
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresWriter(cfg.DatabaseURL, logger)
		if err != nil {
			_ = sinks.Close()
			return nil, fmt.Errorf("cannot connect to PostgreSQL: %w", err)
		}
		sinks = append(sinks, pg)
	}
	if len(sinks) == 0 {
		logger.Warn("No output configured; records will only be summarised")
	}
	return sinks, nil
}

func newEnvironment(cfg *config.Config) (*environment, error) {
	logger := utils.NewLogger(utils.ParseLevel(cfg.LogLevel))

	sink, err := openSinks(cfg, logger)
	if err != nil {
		return nil, err
	}
	browser, err := hicv.NewBrowser(cfg, logger)
	if err != nil {
		_ = sink.Close()
		return nil, err
	}

	recorder := diagnostics.NewRecorder(cfg.DebugDir, browser, logger)
	portal := hicv.NewPortal(browser, cfg, recorder, logger)
	return &environment{
		cfg:     cfg,
		logger:  logger,
		browser: browser,
		sink:    sink,
		scanner: services.NewScanner(portal, sink, cfg.MaxRetries, logger),
	}, nil
}

func (e *environment) Close() {
	e.browser.Close()
	if err := e.sink.Close(); err != nil {
		e.logger.Warn("Closing outputs: %v", err)
	}
}

// withRunTimeout bounds a whole run.
func (e *environment) withRunTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.RunTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.RunTimeout)
}

// report prints the pass table and the insights over every record found.
func (e *environment) report(w io.Writer, summaries []models.ScanSummary) {
	var records []models.AvailabilityRecord
	for _, s := range summaries {
		records = append(records, s.Records...)
	}
	services.PrintScanSummaries(w, summaries)
	insights := services.NewInsightService(e.logger).Generate(records)
	services.PrintInsightReport(w, insights)
}
