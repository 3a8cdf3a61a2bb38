package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/pharmascout/internal/app"
	"github.com/ternarybob/pharmascout/internal/common"
)

func main() {
	configPath := os.Getenv("PHARMASCOUT_CONFIG")
	if configPath == "" {
		if _, err := os.Stat("pharmascout.toml"); err == nil {
			configPath = "pharmascout.toml"
		}
	}

	config, err := common.LoadFromFiles(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	// Watchlist runs belong to the HTTP service
	config.Scheduler.Enabled = false

	// Minimal logging to avoid cluttering MCP stdio
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	// Badger holds an exclusive directory lock, so point the MCP server at its
	// own storage path when the HTTP service runs on the same host
	application, err := app.New(config, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	mcpServer := server.NewMCPServer(
		"pharmascout",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createScrapeCompaniesTool(), handleScrapeCompanies(application.ScrapeHandler, application.Dispatcher, logger))
	mcpServer.AddTool(createListResultsTool(), handleListResults(application.StorageManager.ResultStorage(), logger))
	mcpServer.AddTool(createGetResultTool(), handleGetResult(application.StorageManager.ResultStorage(), logger))

	// Blocks on stdio
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Error().Err(err).Msg("MCP server failed")
	}
}
