// Package ai assembles the optional AI-backed services from settings.
//
// Every constructor failure here is a downgrade, not a fatal error: the
// caller gets back whatever subset of services could be built, plus
// warnings describing what was disabled and why.
package ai

import (
	openaiadapter "github.com/SkyMychal/SmartSPD-v2/internal/adapters/driven/ai/openai"
	"github.com/SkyMychal/SmartSPD-v2/internal/adapters/driven/config/file"
	"github.com/SkyMychal/SmartSPD-v2/internal/adapters/driven/vector/qdrant"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driven"
)

// InitResult holds the optional services that could be constructed.
// Nil fields mean the corresponding capability is disabled.
type InitResult struct {
	Embedding driven.EmbeddingService
	LLM       driven.LLMService
	Vector    driven.VectorIndex

	// Warnings describes every capability that was disabled and why.
	Warnings []string
}

// Close releases all resources held by the result.
func (r *InitResult) Close() {
	if r.Vector != nil {
		r.Vector.Close()
	}
	if r.LLM != nil {
		r.LLM.Close()
	}
	if r.Embedding != nil {
		r.Embedding.Close()
	}
}

// Init builds the embedding, chat and vector services the settings allow.
//
// Without an API key both OpenAI services are skipped. The vector index
// is only attempted when embeddings are available, since vectors without
// an embedder can neither be written nor queried.
func Init(settings file.Settings) *InitResult {
	result := &InitResult{}

	if settings.OpenAIAPIKey == "" {
		result.Warnings = append(result.Warnings,
			"OPENAI_API_KEY not set: semantic search and answer synthesis disabled")
		return result
	}

	embedding, err := openaiadapter.NewEmbedding(settings.OpenAIAPIKey, 0)
	if err != nil {
		result.Warnings = append(result.Warnings, "embedding service disabled: "+err.Error())
	} else {
		result.Embedding = embedding
	}

	chat, err := openaiadapter.NewChat(settings.OpenAIAPIKey, settings.ChatModel)
	if err != nil {
		result.Warnings = append(result.Warnings, "chat service disabled: "+err.Error())
	} else {
		result.LLM = chat
	}

	if result.Embedding != nil {
		index, err := qdrant.New(settings.QdrantHost, settings.QdrantPort, settings.QdrantCollection)
		if err != nil {
			result.Warnings = append(result.Warnings, "vector index disabled: "+err.Error())
		} else {
			result.Vector = index
		}
	}

	return result
}
