package driving

import (
	"context"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
)

// QueryService answers natural-language questions about plan documents.
type QueryService interface {
	// Ask analyses the question, retrieves evidence from every available
	// source, and synthesizes a confidence-scored answer. It never fails
	// because a single retrieval source is unavailable.
	Ask(ctx context.Context, tenantID, healthPlanID, question string, conv *domain.ConversationContext) (*domain.Answer, error)

	// Suggestions returns common questions members ask.
	Suggestions(ctx context.Context, tenantID string, limit int) ([]string, error)
}
