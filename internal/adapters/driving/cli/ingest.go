package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var ingestArchive bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Ingest plan documents",
	Long: `Ingest one or more plan documents for the active tenant.

Supported formats are PDF narratives (SPDs) and Excel benefit
spreadsheets (BPS). Files are processed concurrently; one document
failing never aborts the rest of the batch.

With --archive, the single argument is a zip archive whose supported
contents are extracted and processed as a batch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Retry failed documents",
	Long:  `Re-process every document of the active tenant left in the failed state.`,
	Args:  cobra.NoArgs,
	RunE:  runRetry,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestArchive, "archive", false, "treat the argument as a zip archive")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(retryCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if batchService == nil {
		return errors.New("batch service not configured")
	}

	ctx := context.Background()

	if ingestArchive {
		if len(args) != 1 {
			return errors.New("--archive takes exactly one zip file")
		}
		result, err := batchService.ProcessArchive(ctx, tenantID, planID, args[0])
		if err != nil {
			return fmt.Errorf("failed to process archive: %w", err)
		}
		printBatchResult(cmd, result)
		return nil
	}

	result, err := batchService.ProcessBatch(ctx, tenantID, planID, args)
	if err != nil {
		return fmt.Errorf("failed to process batch: %w", err)
	}
	printBatchResult(cmd, result)
	return nil
}

func runRetry(cmd *cobra.Command, _ []string) error {
	if batchService == nil {
		return errors.New("batch service not configured")
	}

	result, err := batchService.RetryFailed(context.Background(), tenantID)
	if err != nil {
		return fmt.Errorf("failed to retry documents: %w", err)
	}

	if result.Total == 0 {
		cmd.Println("No failed documents to retry.")
		return nil
	}
	printBatchResult(cmd, result)
	return nil
}
