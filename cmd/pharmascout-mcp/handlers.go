package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/interfaces"
	"github.com/ternarybob/pharmascout/internal/models"
)

// requestValidator normalizes and validates a scrape request
type requestValidator interface {
	ValidateRequest(req *models.ScrapeRequest) error
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// handleScrapeCompanies implements the scrape_companies tool
func handleScrapeCompanies(validator requestValidator, runner interfaces.BatchRunner, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req := models.ScrapeRequest{
			Companies:      request.GetStringSlice("companies", nil),
			MaxConcurrency: request.GetInt("max_concurrency", 0),
			ProxyURL:       request.GetString("proxy_url", ""),
		}
		if err := validator.ValidateRequest(&req); err != nil {
			return textResult(fmt.Sprintf("Error: %v", err)), nil
		}

		result, err := runner.Run(ctx, req)
		if err != nil {
			logger.Error().Err(err).Int("companies", len(req.Companies)).Msg("Scrape batch failed")
			return textResult(fmt.Sprintf("Scrape error: %v", err)), nil
		}

		return textResult(formatBatch(result)), nil
	}
}

// handleListResults implements the list_results tool
func handleListResults(storage interfaces.ResultStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := request.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 100 {
			limit = 100
		}
		company := strings.TrimSpace(request.GetString("company", ""))

		var (
			records []*models.ResultRecord
			err     error
		)
		if company != "" {
			records, err = storage.ListByCompany(ctx, company, limit)
		} else {
			records, err = storage.ListRecent(ctx, limit)
		}
		if err != nil {
			logger.Error().Err(err).Msg("List results failed")
			return textResult(fmt.Sprintf("List error: %v", err)), nil
		}

		return textResult(formatRecords(company, records)), nil
	}
}

// handleGetResult implements the get_result tool
func handleGetResult(storage interfaces.ResultStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("result_id")
		if err != nil || id == "" {
			return textResult("Error: result_id parameter is required"), nil
		}

		record, err := storage.Get(ctx, id)
		if err != nil {
			logger.Debug().Err(err).Str("id", id).Msg("Get result failed")
			return textResult(fmt.Sprintf("Result not found: %v", err)), nil
		}

		data, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return textResult(fmt.Sprintf("Encode error: %v", err)), nil
		}
		return textResult("```json\n" + string(data) + "\n```\n"), nil
	}
}
