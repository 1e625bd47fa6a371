package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driving"
)

const timeFormat = "2006-01-02 15:04:05"

// printBatchResult renders a batch outcome in the two-column style used
// across the CLI.
func printBatchResult(cmd *cobra.Command, result *driving.BatchResult) {
	cmd.Printf("Batch %s\n", result.BatchID)
	cmd.Printf("  Total:     %d\n", result.Total)
	cmd.Printf("  Succeeded: %d\n", result.Succeeded)
	cmd.Printf("  Failed:    %d\n", result.Failed)
	cmd.Printf("  Elapsed:   %s\n", result.Elapsed.Round(time.Millisecond))
	cmd.Println()

	for _, outcome := range result.Outcomes {
		marker := "+"
		if outcome.Status == string(domain.StatusFailed) {
			marker = "x"
		}
		cmd.Printf("  [%s] %s (%s)\n", marker, outcome.Filename, outcome.DocumentID)
		if outcome.Error != "" {
			cmd.Printf("      %s\n", outcome.Error)
		}
	}
}

func printDocument(cmd *cobra.Command, doc *domain.Document) {
	cmd.Printf("Document: %s\n", doc.ID)
	cmd.Printf("  Filename: %s\n", doc.Filename)
	cmd.Printf("  Type:     %s\n", doc.Type)
	cmd.Printf("  Status:   %s\n", doc.Status)
	cmd.Printf("  Version:  %d", doc.Version)
	if doc.IsCurrent {
		cmd.Printf(" (current)")
	}
	cmd.Println()
	if doc.ErrorMessage != "" {
		cmd.Printf("  Error:    %s\n", doc.ErrorMessage)
	}
	cmd.Printf("  Uploaded: %s\n", doc.CreatedAt.Format(timeFormat))
}

func printAnswer(cmd *cobra.Command, answer *domain.Answer) {
	if answer.NotReady {
		cmd.Println(answer.Text)
		return
	}

	cmd.Println(answer.Text)
	cmd.Println()
	cmd.Printf("Confidence: %s (%.2f)\n", answer.ConfidenceLabel, answer.Confidence)

	if len(answer.Sources) > 0 {
		cmd.Println("\nSources:")
		for _, src := range answer.Sources {
			line := fmt.Sprintf("  - %s: %s", src.Source, src.DocumentID)
			if src.Page > 0 {
				line += fmt.Sprintf(", page %d", src.Page)
			}
			if src.Section != "" {
				line += fmt.Sprintf(" (%s)", src.Section)
			}
			cmd.Println(line)
		}
	}

	if len(answer.RelatedTopics) > 0 {
		cmd.Printf("\nRelated topics: %s\n", strings.Join(answer.RelatedTopics, ", "))
	}
	if len(answer.FollowUps) > 0 {
		cmd.Println("\nYou might also ask:")
		for _, q := range answer.FollowUps {
			cmd.Printf("  - %s\n", q)
		}
	}
}
