package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
)

var (
	queryJSON    bool
	queryContext string
	suggestLimit int
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question about the plan",
	Long: `Ask a natural-language question about the active tenant's plan
documents. The answer is assembled from every available retrieval
source and cites the documents it came from.

Examples:
  smartspd query "What is my copay for a specialist visit?"
  smartspd query --plan plan-2024 "Does an MRI need prior authorization?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Show common questions",
	Long:  `List common questions members ask, usable as query starting points.`,
	Args:  cobra.NoArgs,
	RunE:  runSuggest,
}

func init() {
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the answer as JSON")
	queryCmd.Flags().StringVar(&queryContext, "context", "", "summary of earlier questions in the conversation")
	suggestCmd.Flags().IntVarP(&suggestLimit, "limit", "n", 5, "maximum suggestions to show")
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(suggestCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	question := strings.Join(args, " ")

	var conv *domain.ConversationContext
	if queryContext != "" {
		conv = &domain.ConversationContext{PreviousQueries: queryContext}
	}

	answer, err := queryService.Ask(context.Background(), tenantID, planID, question, conv)
	if err != nil {
		return fmt.Errorf("failed to answer question: %w", err)
	}

	if queryJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	printAnswer(cmd, answer)
	return nil
}

func runSuggest(cmd *cobra.Command, _ []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	suggestions, err := queryService.Suggestions(context.Background(), tenantID, suggestLimit)
	if err != nil {
		return fmt.Errorf("failed to get suggestions: %w", err)
	}

	if len(suggestions) == 0 {
		cmd.Println("No suggestions available.")
		return nil
	}

	cmd.Println("Common questions:")
	for _, s := range suggestions {
		cmd.Printf("  - %s\n", s)
	}
	return nil
}
