package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/pharmascout/internal/models"
)

// formatBatch formats a finished batch as markdown
func formatBatch(result *models.BatchResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Scrape run %s (%d companies, %s)\n\n", result.RunID, result.Count, result.Duration.Round(time.Millisecond)))
	for _, record := range result.Items {
		writeRecord(&sb, record)
	}
	return sb.String()
}

// formatRecords formats stored records as markdown
func formatRecords(company string, records []*models.ResultRecord) string {
	var sb strings.Builder
	if company != "" {
		sb.WriteString(fmt.Sprintf("## Results for \"%s\" (%d)\n\n", company, len(records)))
	} else {
		sb.WriteString(fmt.Sprintf("## Recent results (%d)\n\n", len(records)))
	}

	if len(records) == 0 {
		sb.WriteString("No results found.\n")
		return sb.String()
	}

	for _, record := range records {
		writeRecord(&sb, record)
	}
	return sb.String()
}

func writeRecord(sb *strings.Builder, r *models.ResultRecord) {
	sb.WriteString(fmt.Sprintf("### %s (%s)\n", r.Company, r.Kind))
	if r.ID != "" {
		sb.WriteString(fmt.Sprintf("**ID:** %s\n", r.ID))
	}
	if r.DetailURL != "" {
		sb.WriteString(fmt.Sprintf("**URL:** %s\n", r.DetailURL))
	}
	sb.WriteString(fmt.Sprintf("**Scraped:** %s\n\n", r.CreatedAt.Format(time.RFC3339)))

	switch r.Kind {
	case models.OutcomeStructured:
		if len(r.PipelineSnapshot) > 0 {
			sb.WriteString("| Phase | Count |\n|---|---|\n")
			for _, pc := range r.PipelineSnapshot {
				sb.WriteString(fmt.Sprintf("| %s | %d |\n", pc.Label, pc.Count))
			}
			sb.WriteString("\n")
		}
		if len(r.Tags) > 0 {
			sb.WriteString(fmt.Sprintf("**Tags:** %s\n", strings.Join(r.Tags, ", ")))
		}
		writeRanked(sb, "Disease domains", r.DiseaseDomains)
		writeRanked(sb, "Drug types", r.DrugTypes)
		writeRanked(sb, "Targets", r.Targets)
	case models.OutcomeFallback:
		if r.Pipeline != nil {
			for _, entry := range r.Pipeline.Entries {
				sb.WriteString(fmt.Sprintf("- %s: %s\n", entry.Key, entry.Value))
			}
		}
	case models.OutcomeFailure:
		sb.WriteString(fmt.Sprintf("**Error:** %s\n", r.Error))
		if len(r.Hints) > 0 {
			sb.WriteString(fmt.Sprintf("**Did you mean:** %s\n", strings.Join(r.Hints, "; ")))
		}
	}
	sb.WriteString("\n---\n\n")
}

func writeRanked(sb *strings.Builder, title string, items []models.RankedItem) {
	if len(items) == 0 {
		return
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s (%d)", item.Name, item.Count))
	}
	sb.WriteString(fmt.Sprintf("**%s:** %s\n", title, strings.Join(parts, ", ")))
}
