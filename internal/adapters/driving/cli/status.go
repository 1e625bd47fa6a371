package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
)

var statusFilter string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline status for the tenant",
	Long: `Show how many of the tenant's documents are in each processing
state, and the size of the vector index when one is configured.

With --state, list the documents in that state instead.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFilter, "state", "", "list documents in this state (uploaded, processing, completed, failed, archived)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if documentStore == nil {
		return errors.New("document store not configured")
	}

	ctx := context.Background()

	if statusFilter != "" {
		return listByState(ctx, cmd, domain.ProcessingStatus(statusFilter))
	}

	states := []domain.ProcessingStatus{
		domain.StatusUploaded,
		domain.StatusProcessing,
		domain.StatusCompleted,
		domain.StatusFailed,
		domain.StatusArchived,
	}

	cmd.Printf("Tenant: %s\n\n", tenantID)
	cmd.Println("Documents:")
	total := 0
	for _, state := range states {
		count, err := documentStore.CountByStatus(ctx, tenantID, state)
		if err != nil {
			return fmt.Errorf("failed to count documents: %w", err)
		}
		total += count
		cmd.Printf("  %-12s %d\n", string(state)+":", count)
	}
	cmd.Printf("  %-12s %d\n", "total:", total)

	if vectorIndex != nil {
		stats, err := vectorIndex.Stats(ctx)
		if err != nil {
			cmd.Printf("\nVector index: unavailable (%v)\n", err)
			return nil
		}
		cmd.Printf("\nVector index:\n")
		cmd.Printf("  Points:     %d\n", stats.PointCount)
		cmd.Printf("  Dimension:  %d\n", stats.Dimension)
	} else {
		cmd.Println("\nVector index: disabled")
	}
	return nil
}

func listByState(ctx context.Context, cmd *cobra.Command, state domain.ProcessingStatus) error {
	docs, err := documentStore.ListByStatus(ctx, tenantID, state)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Printf("No documents in state %q.\n", state)
		return nil
	}

	cmd.Printf("Documents in state %q:\n", state)
	for i := range docs {
		cmd.Println()
		printDocument(cmd, &docs[i])
	}
	return nil
}
