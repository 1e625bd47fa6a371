package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SkyMychal/SmartSPD-v2/internal/adapters/driven/config/file"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change configuration.

Settings are stored as TOML and may be overridden per run through
environment variables. The OpenAI API key is only ever read from the
OPENAI_API_KEY environment variable and is never written to disk.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Long: `Set a configuration value by dot-notation key and persist it.

Recognised keys:
  data.dir           local data directory
  qdrant.host        Qdrant host
  qdrant.port        Qdrant gRPC port
  qdrant.collection  Qdrant collection name
  openai.chat_model  chat model for analysis and synthesis
  tenant.id          default tenant`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	settings := file.LoadSettings(configStore)

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()
	cmd.Printf("Config file: %s\n", configStore.Path())
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Data dir: %s\n", settings.DataDir)
	cmd.Println()

	cmd.Println("[Qdrant]")
	cmd.Printf("  Host:       %s\n", settings.QdrantHost)
	cmd.Printf("  Port:       %d\n", settings.QdrantPort)
	cmd.Printf("  Collection: %s\n", settings.QdrantCollection)
	cmd.Println()

	cmd.Println("[OpenAI]")
	cmd.Printf("  Chat model: %s\n", settings.ChatModel)
	if settings.OpenAIAPIKey != "" {
		cmd.Printf("  API key:    %s\n", maskAPIKey(settings.OpenAIAPIKey))
	} else {
		cmd.Printf("  API key:    (not set - semantic search and synthesis disabled)\n")
	}
	cmd.Println()

	cmd.Println("[Tenant]")
	cmd.Printf("  Default: %s\n", settings.Tenant)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	key, value := args[0], args[1]
	if key == "openai.api_key" {
		return errors.New("API keys are read from the environment, not stored; set OPENAI_API_KEY instead")
	}

	if err := configStore.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	cmd.Printf("Set %s = %s\n", key, value)
	return nil
}

// maskAPIKey shows only the first and last few characters of a key.
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
