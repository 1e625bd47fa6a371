// Package cli implements the smartspd command-line interface using cobra.
//
// Commands talk to core services through the driving ports only. Services
// are injected by the composition root before Execute; commands guard
// against missing services so partial wiring degrades with a clear error
// instead of a panic.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driven"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driving"
	"github.com/SkyMychal/SmartSPD-v2/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services injected by the composition root.
var (
	batchService   driving.BatchProcessor
	queryService   driving.QueryService
	versionService driving.VersionControl

	documentStore driven.DocumentStore
	vectorIndex   driven.VectorIndex
	configStore   driven.ConfigStore
)

// Flags shared by every command.
var (
	verbose  bool
	tenantID string
	planID   string
)

var rootCmd = &cobra.Command{
	Use:   "smartspd",
	Short: "Question answering over health plan documents",
	Long: `SmartSPD ingests health plan documents (SPD narratives and benefit
spreadsheets), extracts and enriches their content, and answers member
questions with cited, confidence-scored responses.

All data is scoped to a tenant. Set the active tenant with --tenant or
the SMARTSPD_TENANT environment variable.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

// Services bundles everything the CLI needs from the composition root.
type Services struct {
	Batch    driving.BatchProcessor
	Query    driving.QueryService
	Versions driving.VersionControl

	Documents driven.DocumentStore
	Vectors   driven.VectorIndex
	Config    driven.ConfigStore
}

// SetServices injects service implementations. Nil fields disable the
// commands that need them.
func SetServices(s Services) {
	batchService = s.Batch
	queryService = s.Query
	versionService = s.Versions
	documentStore = s.Documents
	vectorIndex = s.Vectors
	configStore = s.Config
}

// SetDefaultTenant changes the tenant used when --tenant is not given.
func SetDefaultTenant(tenant string) {
	if tenant == "" {
		return
	}
	tenantID = tenant
	if f := rootCmd.PersistentFlags().Lookup("tenant"); f != nil {
		f.DefValue = tenant
	}
}

// SetVersion overrides the reported build version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&tenantID, "tenant", "default", "tenant identifier")
	rootCmd.PersistentFlags().StringVar(&planID, "plan", "", "health plan identifier")
}
