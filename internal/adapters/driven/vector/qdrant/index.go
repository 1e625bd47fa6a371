// Package qdrant implements the vector index port against a Qdrant server.
//
// The adapter speaks gRPC through the official go-client. All points carry a
// filterable payload (tenant, plan, document, type) so every similarity
// query stays tenant scoped server-side.
package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driven"
)

const (
	// DefaultCollection is the collection name used when none is configured.
	DefaultCollection = "plan_chunks"

	// VectorDimension matches text-embedding-3-small.
	VectorDimension = 1536

	// upsertBatchSize bounds the points sent per upsert call.
	upsertBatchSize = 100
)

// Index implements driven.VectorIndex backed by Qdrant.
type Index struct {
	client     *qdrant.Client
	collection string
}

var _ driven.VectorIndex = (*Index)(nil)

// New creates a Qdrant-backed index and verifies the server is reachable.
// The collection is created on first use if it does not exist.
func New(host string, port int, collection string) (*Index, error) {
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	idx := &Index{
		client:     client,
		collection: collection,
	}

	ctx := context.Background()
	if err := idx.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrVectorIndexUnavailable, err)
	}

	if err := idx.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return idx, nil
}

// healthCheckWithRetry pings the server with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (i *Index) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		result, err := i.client.HealthCheck(ctx)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		if result == nil || result.Title == "" {
			return fmt.Errorf("health check returned invalid response")
		}
		return nil
	}

	return backoff.Retry(operation, exponentialBackoff)
}

// ensureCollection creates the collection and its payload indexes if absent.
// Idempotent.
func (i *Index) ensureCollection(ctx context.Context) error {
	collections, err := i.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("listing collections: %w", err)
	}

	for _, name := range collections {
		if name == i.collection {
			return nil
		}
	}

	err = i.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     VectorDimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	// Without payload indexes every filtered query degrades to a full scan.
	for _, field := range []string{"tenant_id", "health_plan_id", "document_type", "document_id"} {
		_, err := i.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: i.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("creating payload index for %s: %w", field, err)
		}
	}

	return nil
}

// Upsert stores points, overwriting existing IDs.
func (i *Index) Upsert(ctx context.Context, points []driven.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	for n, p := range points {
		if len(p.Vector) != VectorDimension {
			return fmt.Errorf("point %d has %d dimensions, expected %d",
				n, len(p.Vector), VectorDimension)
		}
	}

	for start := 0; start < len(points); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(points))
		batch := points[start:end]

		structs := make([]*qdrant.PointStruct, len(batch))
		for j, p := range batch {
			structs[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(p.ChunkID),
				Vectors: qdrant.NewVectors(p.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"content":        p.Content,
					"tenant_id":      p.TenantID,
					"health_plan_id": p.HealthPlanID,
					"document_id":    p.DocumentID,
					"document_type":  string(p.DocumentType),
					"chunk_index":    p.ChunkIndex,
					"page":           p.Page,
					"section":        p.Section,
					"kind":           string(p.Kind),
				}),
			}
		}

		if err := i.upsertWithRetry(ctx, structs); err != nil {
			return fmt.Errorf("upserting batch %d-%d: %w", start, end, err)
		}
	}

	return nil
}

// upsertWithRetry performs an upsert with exponential backoff retry.
func (i *Index) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: i.collection,
			Points:         points,
		})
		return err
	}

	return backoff.Retry(operation, exponentialBackoff)
}

// Query finds the topK nearest points above minScore matching filter.
func (i *Index) Query(
	ctx context.Context,
	vector []float32,
	filter driven.VectorFilter,
	topK int,
	minScore float64,
) ([]driven.VectorHit, error) {
	if filter.TenantID == "" {
		return nil, domain.ErrInvalidInput
	}
	if len(vector) != VectorDimension {
		return nil, fmt.Errorf("query has %d dimensions, expected %d",
			len(vector), VectorDimension)
	}
	if topK <= 0 {
		return nil, nil
	}

	threshold := float32(minScore)
	results, err := i.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         buildFilter(filter),
		Limit:          qdrant.PtrOf(uint64(topK)),
		ScoreThreshold: &threshold,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}

	hits := make([]driven.VectorHit, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		hits = append(hits, driven.VectorHit{
			ChunkID:    result.Id.GetUuid(),
			Score:      float64(result.Score),
			Content:    payload["content"].GetStringValue(),
			DocumentID: payload["document_id"].GetStringValue(),
			Page:       int(payload["page"].GetIntegerValue()),
			Section:    payload["section"].GetStringValue(),
			Kind:       domain.ChunkKind(payload["kind"].GetStringValue()),
		})
	}

	return hits, nil
}

// Delete removes all points matching filter.
func (i *Index) Delete(ctx context.Context, filter driven.VectorFilter) error {
	if filter.TenantID == "" {
		return domain.ErrInvalidInput
	}

	_, err := i.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: i.collection,
		Points:         qdrant.NewPointsSelectorFilter(buildFilter(filter)),
	})
	if err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	return nil
}

// Stats returns index statistics.
func (i *Index) Stats(ctx context.Context) (driven.VectorStats, error) {
	info, err := i.client.GetCollectionInfo(ctx, i.collection)
	if err != nil {
		return driven.VectorStats{}, fmt.Errorf("getting collection info: %w", err)
	}

	return driven.VectorStats{
		PointCount: info.GetPointsCount(),
		Dimension:  VectorDimension,
	}, nil
}

// Close closes the client connection.
func (i *Index) Close() error {
	if i.client != nil {
		return i.client.Close()
	}
	return nil
}

// buildFilter translates the port filter into Qdrant match conditions.
func buildFilter(filter driven.VectorFilter) *qdrant.Filter {
	must := []*qdrant.Condition{
		qdrant.NewMatch("tenant_id", filter.TenantID),
	}
	if filter.HealthPlanID != "" {
		must = append(must, qdrant.NewMatch("health_plan_id", filter.HealthPlanID))
	}
	if filter.DocumentType != "" {
		must = append(must, qdrant.NewMatch("document_type", string(filter.DocumentType)))
	}
	if filter.DocumentID != "" {
		must = append(must, qdrant.NewMatch("document_id", filter.DocumentID))
	}
	return &qdrant.Filter{Must: must}
}
