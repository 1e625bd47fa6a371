package file

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driven"
)

// Defaults applied when neither the config file nor the environment sets a
// value.
const (
	DefaultQdrantHost       = "localhost"
	DefaultQdrantPort       = 6334
	DefaultQdrantCollection = "plan_chunks"
	DefaultTenant           = "default"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	// DataDir holds the SQLite database and uploaded files.
	DataDir string

	// QdrantHost, QdrantPort and QdrantCollection locate the vector index.
	QdrantHost       string
	QdrantPort       int
	QdrantCollection string

	// OpenAIAPIKey enables embeddings and LLM reasoning. Environment only.
	OpenAIAPIKey string

	// ChatModel overrides the default chat completion model.
	ChatModel string

	// Tenant is the tenant ID used when a command passes none.
	Tenant string
}

// LoadSettings resolves settings from the config store with environment
// overrides. A .env file in the working directory is honoured when present.
func LoadSettings(store driven.ConfigStore) Settings {
	// Missing .env is the normal case
	_ = godotenv.Load()

	s := Settings{
		DataDir:          store.GetString("data.dir"),
		QdrantHost:       store.GetString("qdrant.host"),
		QdrantPort:       store.GetInt("qdrant.port"),
		QdrantCollection: store.GetString("qdrant.collection"),
		ChatModel:        store.GetString("openai.chat_model"),
		Tenant:           store.GetString("tenant.id"),
	}

	if v := os.Getenv("SMARTSPD_DATA_DIR"); v != "" {
		s.DataDir = v
	}
	if v := os.Getenv("QDRANT_HOST"); v != "" {
		s.QdrantHost = v
	}
	if v := os.Getenv("QDRANT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			s.QdrantPort = port
		}
	}
	if v := os.Getenv("QDRANT_COLLECTION"); v != "" {
		s.QdrantCollection = v
	}
	if v := os.Getenv("SMARTSPD_CHAT_MODEL"); v != "" {
		s.ChatModel = v
	}
	if v := os.Getenv("SMARTSPD_TENANT"); v != "" {
		s.Tenant = v
	}
	s.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")

	if s.QdrantHost == "" {
		s.QdrantHost = DefaultQdrantHost
	}
	if s.QdrantPort == 0 {
		s.QdrantPort = DefaultQdrantPort
	}
	if s.QdrantCollection == "" {
		s.QdrantCollection = DefaultQdrantCollection
	}
	if s.Tenant == "" {
		s.Tenant = DefaultTenant
	}

	return s
}
