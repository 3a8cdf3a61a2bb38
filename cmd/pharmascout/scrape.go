package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ternarybob/pharmascout/internal/app"
	"github.com/ternarybob/pharmascout/internal/models"
	"gopkg.in/yaml.v3"
)

// runOnce scrapes the companies given on the command line, prints the batch
// as JSON on stdout and returns the process exit code
func runOnce() int {
	req, err := buildRequest(*batchFile, *companies, *concurrency, *proxyURL)
	if err != nil {
		logger.Error().Err(err).Msg("Invalid batch")
		return 2
	}

	// The scheduler never runs in one-shot mode
	config.Scheduler.Enabled = false

	application, err := app.New(config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		return 1
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.ScrapeHandler.ValidateRequest(&req); err != nil {
		logger.Error().Err(err).Msg("Invalid batch")
		return 2
	}

	result, err := application.Dispatcher.Run(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Scrape batch failed")
		return 1
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		logger.Error().Err(err).Msg("Failed to write results")
		return 1
	}
	return 0
}

// buildRequest merges the YAML batch file with command-line companies and overrides
func buildRequest(path, names string, workers int, proxy string) (models.ScrapeRequest, error) {
	var req models.ScrapeRequest

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return req, fmt.Errorf("failed to read batch file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &req); err != nil {
			return req, fmt.Errorf("failed to parse batch file %s: %w", path, err)
		}
	}

	for _, name := range strings.Split(names, ",") {
		if name = strings.TrimSpace(name); name != "" {
			req.Companies = append(req.Companies, name)
		}
	}
	if workers > 0 {
		req.MaxConcurrency = workers
	}
	if proxy != "" {
		req.ProxyURL = proxy
	}
	if len(req.Companies) == 0 {
		return req, fmt.Errorf("no companies given")
	}
	return req, nil
}
