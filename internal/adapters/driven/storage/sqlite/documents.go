package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driven"
)

// defaultSearchLimit bounds SearchChunks when the caller passes no limit.
const defaultSearchLimit = 20

const documentColumns = `id, tenant_id, health_plan_id, filename, file_path, file_size,
	content_hash, type, status, error_message, page_count, sections, metadata,
	version, original_id, previous_version, change_notes, is_version, is_current,
	deleted, created_at, updated_at`

const chunkColumns = `id, tenant_id, document_id, position, content, content_hash,
	page, section, kind, keywords, entities, topics, relevance_score,
	confidence_score, embedding, embedding_model`

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc.ID == "" || doc.TenantID == "" {
		return domain.ErrInvalidInput
	}

	sectionsJSON, err := json.Marshal(doc.Sections)
	if err != nil {
		return fmt.Errorf("marshalling sections: %w", err)
	}
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, tenant_id, health_plan_id, filename, file_path, file_size,
			content_hash, type, status, error_message, page_count, sections, metadata,
			version, original_id, previous_version, change_notes, is_version, is_current,
			deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			health_plan_id = excluded.health_plan_id,
			filename = excluded.filename,
			file_path = excluded.file_path,
			file_size = excluded.file_size,
			content_hash = excluded.content_hash,
			type = excluded.type,
			status = excluded.status,
			error_message = excluded.error_message,
			page_count = excluded.page_count,
			sections = excluded.sections,
			metadata = excluded.metadata,
			version = excluded.version,
			original_id = excluded.original_id,
			previous_version = excluded.previous_version,
			change_notes = excluded.change_notes,
			is_version = excluded.is_version,
			is_current = excluded.is_current,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at
	`, doc.ID, doc.TenantID, doc.HealthPlanID, doc.Filename, doc.FilePath, doc.FileSize,
		doc.ContentHash, string(doc.Type), string(doc.Status), doc.ErrorMessage,
		doc.PageCount, string(sectionsJSON), string(metadataJSON),
		doc.Version, doc.OriginalID, doc.PreviousVersion, doc.ChangeNotes,
		doc.IsVersion, doc.IsCurrent, doc.Deleted, doc.CreatedAt, doc.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: content hash already current for tenant", domain.ErrAlreadyExists)
		}
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint
// failure, such as two concurrent uploads of identical content racing
// past the duplicate check.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// GetDocument retrieves a document by ID, tenant scoped.
func (s *documentStore) GetDocument(ctx context.Context, tenantID, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents WHERE id = ? AND tenant_id = ?
	`, id, tenantID)

	return scanDocumentRow(row)
}

// FindByContentHash returns the current, non-deleted document with the given
// content hash for a tenant.
func (s *documentStore) FindByContentHash(ctx context.Context, tenantID, hash string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE tenant_id = ? AND content_hash = ? AND is_current = 1 AND deleted = 0
		ORDER BY created_at DESC
		LIMIT 1
	`, tenantID, hash)

	return scanDocumentRow(row)
}

// ListLineage returns every document in a version lineage, newest first.
func (s *documentStore) ListLineage(ctx context.Context, tenantID, originalID string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE tenant_id = ? AND (id = ? OR original_id = ?)
		ORDER BY version DESC
	`, tenantID, originalID, originalID)
	if err != nil {
		return nil, fmt.Errorf("querying lineage: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// ListByStatus returns a tenant's non-deleted documents in the given status.
func (s *documentStore) ListByStatus(
	ctx context.Context,
	tenantID string,
	status domain.ProcessingStatus,
) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE tenant_id = ? AND status = ? AND deleted = 0
		ORDER BY created_at
	`, tenantID, string(status))
	if err != nil {
		return nil, fmt.Errorf("querying documents by status: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// CountByStatus counts a tenant's non-deleted documents in the given status.
func (s *documentStore) CountByStatus(
	ctx context.Context,
	tenantID string,
	status domain.ProcessingStatus,
) (int, error) {
	var count int
	err := s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM documents
		WHERE tenant_id = ? AND status = ? AND deleted = 0
	`, tenantID, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting documents by status: %w", err)
	}
	return count, nil
}

// UpdateStatus transitions a document's processing status. The read and the
// write run in one transaction so concurrent pipeline triggers cannot both
// claim the same document.
func (s *documentStore) UpdateStatus(
	ctx context.Context,
	tenantID, id string,
	status domain.ProcessingStatus,
	errMsg string,
) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var current string
	row := tx.QueryRowContext(ctx,
		"SELECT status FROM documents WHERE id = ? AND tenant_id = ?", id, tenantID)
	if err := row.Scan(&current); err != nil {
		if err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
		return fmt.Errorf("reading document status: %w", err)
	}

	from := domain.ProcessingStatus(current)
	if from == domain.StatusProcessing && status == domain.StatusProcessing {
		return domain.ErrAlreadyProcessing
	}
	if !from.CanTransition(status) {
		return fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, from, status)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE documents SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?
	`, string(status), errMsg, time.Now().UTC(), id, tenantID)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SaveChunks replaces the chunk set for each referenced document in one
// transaction.
func (s *documentStore) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Replace semantics: stale chunks from a previous extraction must not
	// survive a re-process.
	seen := map[string]bool{}
	for _, chunk := range chunks {
		if seen[chunk.DocumentID] {
			continue
		}
		seen[chunk.DocumentID] = true
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM chunks WHERE document_id = ?", chunk.DocumentID); err != nil {
			return fmt.Errorf("clearing chunks: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, tenant_id, document_id, position, content, content_hash,
			page, section, kind, keywords, entities, topics, relevance_score,
			confidence_score, embedding, embedding_model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		keywordsJSON, err := json.Marshal(chunk.Keywords)
		if err != nil {
			return fmt.Errorf("marshalling keywords: %w", err)
		}
		entitiesJSON, err := json.Marshal(chunk.Entities)
		if err != nil {
			return fmt.Errorf("marshalling entities: %w", err)
		}
		topicsJSON, err := json.Marshal(chunk.Topics)
		if err != nil {
			return fmt.Errorf("marshalling topics: %w", err)
		}

		embeddingBlob := float32SliceToBytes(chunk.Embedding)

		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.TenantID, chunk.DocumentID,
			chunk.Index, chunk.Content, chunk.ContentHash, chunk.Page, chunk.Section,
			string(chunk.Kind), string(keywordsJSON), string(entitiesJSON),
			string(topicsJSON), chunk.RelevanceScore, chunk.ConfidenceScore,
			embeddingBlob, chunk.EmbeddingModel); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetChunks retrieves all chunks for a document, ordered by position.
func (s *documentStore) GetChunks(ctx context.Context, tenantID, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+chunkColumns+`
		FROM chunks WHERE tenant_id = ? AND document_id = ?
		ORDER BY position
	`, tenantID, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// CountChunks returns the number of chunks stored for a document.
func (s *documentStore) CountChunks(ctx context.Context, tenantID, documentID string) (int, error) {
	var count int
	err := s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chunks WHERE tenant_id = ? AND document_id = ?
	`, tenantID, documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// SearchChunks performs keyword search over chunks of fully processed
// documents. The database prefilters with LIKE; scoring by distinct matched
// terms happens here, where terms can be compared case-insensitively against
// both content and keyword tags.
func (s *documentStore) SearchChunks(ctx context.Context, q driven.ChunkQuery) ([]domain.Chunk, error) {
	if q.TenantID == "" {
		return nil, domain.ErrInvalidInput
	}
	terms := normaliseTerms(q.Terms)
	if len(terms) == 0 {
		return nil, nil
	}

	query := `
		SELECT c.id, c.tenant_id, c.document_id, c.position, c.content, c.content_hash,
			c.page, c.section, c.kind, c.keywords, c.entities, c.topics,
			c.relevance_score, c.confidence_score, c.embedding, c.embedding_model
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.tenant_id = ? AND d.status = ? AND d.deleted = 0`
	args := []any{q.TenantID, string(domain.StatusCompleted)}

	if q.HealthPlanID != "" {
		query += " AND d.health_plan_id = ?"
		args = append(args, q.HealthPlanID)
	}
	if q.DocumentType != "" {
		query += " AND d.type = ?"
		args = append(args, string(q.DocumentType))
	}

	likes := make([]string, 0, len(terms))
	for _, term := range terms {
		likes = append(likes, "(LOWER(c.content) LIKE ? OR LOWER(c.keywords) LIKE ?)")
		pattern := "%" + term + "%"
		args = append(args, pattern, pattern)
	}
	query += " AND (" + strings.Join(likes, " OR ") + ")"

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	type scored struct {
		chunk domain.Chunk
		score int
	}
	var matches []scored
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, scored{chunk: *chunk, score: termMatches(chunk, terms)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].chunk.RelevanceScore > matches[j].chunk.RelevanceScore
	})

	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]domain.Chunk, len(matches))
	for i, m := range matches {
		results[i] = m.chunk
	}
	return results, nil
}

// normaliseTerms lowercases terms and drops empty ones.
func normaliseTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// termMatches counts the distinct terms present in a chunk's content or tags.
func termMatches(chunk *domain.Chunk, terms []string) int {
	content := strings.ToLower(chunk.Content)
	tags := strings.ToLower(strings.Join(chunk.Keywords, " "))
	count := 0
	for _, term := range terms {
		if strings.Contains(content, term) || strings.Contains(tags, term) {
			count++
		}
	}
	return count
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocumentInto(sc rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var docType, status string
	var sectionsJSON, metadataJSON string

	if err := sc.Scan(&doc.ID, &doc.TenantID, &doc.HealthPlanID, &doc.Filename,
		&doc.FilePath, &doc.FileSize, &doc.ContentHash, &docType, &status,
		&doc.ErrorMessage, &doc.PageCount, &sectionsJSON, &metadataJSON,
		&doc.Version, &doc.OriginalID, &doc.PreviousVersion, &doc.ChangeNotes,
		&doc.IsVersion, &doc.IsCurrent, &doc.Deleted,
		&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}

	doc.Type = domain.DocumentType(docType)
	doc.Status = domain.ProcessingStatus(status)

	if sectionsJSON != "" {
		if err := json.Unmarshal([]byte(sectionsJSON), &doc.Sections); err != nil {
			return nil, fmt.Errorf("unmarshaling sections: %w", err)
		}
	}
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}

	return &doc, nil
}

// scanDocumentRow scans a single document row.
func scanDocumentRow(row *sql.Row) (*domain.Document, error) {
	doc, err := scanDocumentInto(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	return doc, nil
}

// scanDocuments scans multiple document rows.
func scanDocuments(rows *sql.Rows) ([]domain.Document, error) {
	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocumentInto(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// scanChunk scans a chunk from *sql.Rows.
func scanChunk(rows *sql.Rows) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var kind string
	var keywordsJSON, entitiesJSON, topicsJSON string
	var embeddingBlob []byte

	if err := rows.Scan(&chunk.ID, &chunk.TenantID, &chunk.DocumentID, &chunk.Index,
		&chunk.Content, &chunk.ContentHash, &chunk.Page, &chunk.Section, &kind,
		&keywordsJSON, &entitiesJSON, &topicsJSON, &chunk.RelevanceScore,
		&chunk.ConfidenceScore, &embeddingBlob, &chunk.EmbeddingModel); err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Kind = domain.ChunkKind(kind)
	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)

	if err := json.Unmarshal([]byte(keywordsJSON), &chunk.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshaling keywords: %w", err)
	}
	if err := json.Unmarshal([]byte(entitiesJSON), &chunk.Entities); err != nil {
		return nil, fmt.Errorf("unmarshaling entities: %w", err)
	}
	if err := json.Unmarshal([]byte(topicsJSON), &chunk.Topics); err != nil {
		return nil, fmt.Errorf("unmarshaling topics: %w", err)
	}

	return &chunk, nil
}
