package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
)

var (
	versionNotes  string
	versionReason string
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "Manage document versions",
	Long: `Upload, inspect and roll back versions of a plan document.

Versions form an append-only lineage: rollback creates a new version
matching an older one rather than rewriting history, and deleting a
version is a soft delete.`,
}

var versionsUploadCmd = &cobra.Command{
	Use:   "upload [original-id] [file]",
	Short: "Upload a new version of a document",
	Args:  cobra.ExactArgs(2),
	RunE:  runVersionsUpload,
}

var versionsHistoryCmd = &cobra.Command{
	Use:   "history [document-id]",
	Short: "Show a document's version history",
	Args:  cobra.ExactArgs(1),
	RunE:  runVersionsHistory,
}

var versionsCompareCmd = &cobra.Command{
	Use:   "compare [id-a] [id-b]",
	Short: "Compare two versions of a document",
	Args:  cobra.ExactArgs(2),
	RunE:  runVersionsCompare,
}

var versionsRollbackCmd = &cobra.Command{
	Use:   "rollback [version-id]",
	Short: "Roll back to a historical version",
	Args:  cobra.ExactArgs(1),
	RunE:  runVersionsRollback,
}

var versionsDeleteCmd = &cobra.Command{
	Use:   "delete [version-id]",
	Short: "Soft-delete a version",
	Args:  cobra.ExactArgs(1),
	RunE:  runVersionsDelete,
}

func init() {
	versionsUploadCmd.Flags().StringVar(&versionNotes, "notes", "", "notes describing what changed")
	versionsRollbackCmd.Flags().StringVar(&versionReason, "reason", "", "reason for the change")
	versionsDeleteCmd.Flags().StringVar(&versionReason, "reason", "", "reason for the change")

	versionsCmd.AddCommand(versionsUploadCmd)
	versionsCmd.AddCommand(versionsHistoryCmd)
	versionsCmd.AddCommand(versionsCompareCmd)
	versionsCmd.AddCommand(versionsRollbackCmd)
	versionsCmd.AddCommand(versionsDeleteCmd)
	rootCmd.AddCommand(versionsCmd)
}

func runVersionsUpload(cmd *cobra.Command, args []string) error {
	if versionService == nil {
		return errors.New("version service not configured")
	}

	result, err := versionService.UploadVersion(context.Background(), tenantID, args[0], args[1], versionNotes)
	if err != nil {
		return fmt.Errorf("failed to upload version: %w", err)
	}

	if !result.Created {
		cmd.Printf("No version created: %s\n", result.Reason)
		return nil
	}

	cmd.Printf("Created version %d (was %d)\n", result.Version, result.PreviousVersion)
	if result.Summary != nil {
		printChangeSummary(cmd, result.Summary)
	}
	return nil
}

func runVersionsHistory(cmd *cobra.Command, args []string) error {
	if versionService == nil {
		return errors.New("version service not configured")
	}

	history, err := versionService.History(context.Background(), tenantID, args[0])
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}

	cmd.Printf("Version history for %s:\n", args[0])
	for _, doc := range history {
		marker := " "
		if doc.IsCurrent {
			marker = "*"
		}
		line := fmt.Sprintf("  %s v%-3d %s  %s", marker, doc.Version, doc.CreatedAt.Format(timeFormat), doc.ID)
		if doc.Deleted {
			line += "  (deleted)"
		}
		cmd.Println(line)
		if doc.ChangeNotes != "" {
			cmd.Printf("         %s\n", doc.ChangeNotes)
		}
	}
	return nil
}

func runVersionsCompare(cmd *cobra.Command, args []string) error {
	if versionService == nil {
		return errors.New("version service not configured")
	}

	summary, err := versionService.Compare(context.Background(), tenantID, args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to compare versions: %w", err)
	}

	cmd.Printf("Comparing %s and %s:\n", args[0], args[1])
	printChangeSummary(cmd, summary)
	return nil
}

func runVersionsRollback(cmd *cobra.Command, args []string) error {
	if versionService == nil {
		return errors.New("version service not configured")
	}

	doc, err := versionService.Rollback(context.Background(), tenantID, args[0], versionReason)
	if err != nil {
		return fmt.Errorf("failed to roll back: %w", err)
	}

	cmd.Printf("Rolled back to match %s as version %d\n", args[0], doc.Version)
	return nil
}

func runVersionsDelete(cmd *cobra.Command, args []string) error {
	if versionService == nil {
		return errors.New("version service not configured")
	}

	if err := versionService.DeleteVersion(context.Background(), tenantID, args[0], versionReason); err != nil {
		return fmt.Errorf("failed to delete version: %w", err)
	}

	cmd.Printf("Deleted version %s\n", args[0])
	return nil
}

func printChangeSummary(cmd *cobra.Command, summary *domain.ChangeSummary) {
	cmd.Printf("  Size delta:   %+d bytes\n", summary.FileSizeDelta)
	cmd.Printf("  Hash changed: %t\n", summary.HashChanged)
	if summary.Magnitude != "" {
		cmd.Printf("  Magnitude:    %s (%+d chunks)\n", summary.Magnitude, summary.ChunkCountDelta)
	}

	diff := summary.Metadata
	if diff.Empty() {
		cmd.Println("  Metadata:     unchanged")
		return
	}
	for key, val := range diff.Added {
		cmd.Printf("  + %s: %v\n", key, val)
	}
	for key, val := range diff.Removed {
		cmd.Printf("  - %s: %v\n", key, val)
	}
	for key, vals := range diff.Modified {
		cmd.Printf("  ~ %s: %v -> %v\n", key, vals[0], vals[1])
	}
}
