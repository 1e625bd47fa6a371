// Command smartspd is the entry point for the SmartSPD CLI.
//
// It composes the adapters according to configuration and injects them
// into the command tree. Optional services (Qdrant, OpenAI) are wired
// only when configured and reachable; everything else degrades to the
// keyword-only paths.
package main

import (
	"fmt"
	"os"

	"github.com/SkyMychal/SmartSPD-v2/internal/adapters/driven/ai"
	"github.com/SkyMychal/SmartSPD-v2/internal/adapters/driven/config/file"
	"github.com/SkyMychal/SmartSPD-v2/internal/adapters/driven/storage/sqlite"
	"github.com/SkyMychal/SmartSPD-v2/internal/adapters/driving/cli"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/services"
	"github.com/SkyMychal/SmartSPD-v2/internal/extract/narrative"
	"github.com/SkyMychal/SmartSPD-v2/internal/extract/tabular"
	"github.com/SkyMychal/SmartSPD-v2/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configStore, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	settings := file.LoadSettings(configStore)

	store, err := sqlite.NewStore(settings.DataDir)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()

	docStore := store.DocumentStore()
	graphStore := store.GraphStore()

	aiServices := ai.Init(settings)
	defer aiServices.Close()
	for _, warning := range aiServices.Warnings {
		logger.Warn("%s", warning)
	}

	pipeline := services.NewPipeline(docStore, aiServices.Vector, aiServices.Embedding,
		graphStore, narrative.New(), tabular.New())
	pipeline.EnableEnrichment(aiServices.LLM)
	analyzer := services.NewAnalyzer(aiServices.LLM)
	crossRef := services.NewCrossReferencer(docStore, aiServices.LLM)
	retrieval := services.NewRetrievalEngine(docStore, aiServices.Vector, aiServices.Embedding,
		graphStore, crossRef)
	synthesizer := services.NewSynthesizer(aiServices.LLM)

	cli.SetServices(cli.Services{
		Batch:     services.NewBatchService(docStore, pipeline),
		Query:     services.NewQueryService(docStore, analyzer, retrieval, synthesizer),
		Versions:  services.NewVersionService(docStore, pipeline),
		Documents: docStore,
		Vectors:   aiServices.Vector,
		Config:    configStore,
	})
	cli.SetVersion(version)
	cli.SetDefaultTenant(settings.Tenant)

	return cli.Execute()
}
