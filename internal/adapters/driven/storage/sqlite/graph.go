package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driven"
)

// similarCoverageStrength is the edge weight assigned by coverage analysis.
// Lower than explicit related_to adjacency would suggest, since term equality
// across documents is a weaker signal than co-location.
const similarCoverageStrength = 0.7

const benefitColumns = `id, tenant_id, health_plan_id, document_id, type, category,
	description, in_network, out_of_network, copay, coinsurance,
	deductible_applies, prior_auth_required, page, row_index, created_at`

// graphStore implements driven.GraphStore on the relational schema. Records
// live in the benefits table, relationships in benefit_edges; traversal is a
// bounded breadth-first walk done here rather than in SQL.
type graphStore struct {
	store *Store
}

var _ driven.GraphStore = (*graphStore)(nil)

// UpsertBenefits stores benefit records.
func (s *graphStore) UpsertBenefits(ctx context.Context, records []domain.BenefitRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO benefits (id, tenant_id, health_plan_id, document_id, type, category,
			description, in_network, out_of_network, copay, coinsurance,
			deductible_applies, prior_auth_required, page, row_index, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			category = excluded.category,
			description = excluded.description,
			in_network = excluded.in_network,
			out_of_network = excluded.out_of_network,
			copay = excluded.copay,
			coinsurance = excluded.coinsurance,
			deductible_applies = excluded.deductible_applies,
			prior_auth_required = excluded.prior_auth_required,
			page = excluded.page,
			row_index = excluded.row_index
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if rec.ID == "" || rec.TenantID == "" {
			return domain.ErrInvalidInput
		}

		inNetworkJSON, err := json.Marshal(rec.InNetwork)
		if err != nil {
			return fmt.Errorf("marshalling in-network terms: %w", err)
		}
		outOfNetworkJSON, err := json.Marshal(rec.OutOfNetwork)
		if err != nil {
			return fmt.Errorf("marshalling out-of-network terms: %w", err)
		}

		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		if _, err := stmt.ExecContext(ctx, rec.ID, rec.TenantID, rec.HealthPlanID,
			rec.DocumentID, string(rec.Type), string(rec.Category), rec.Description,
			string(inNetworkJSON), string(outOfNetworkJSON), rec.Copay, rec.Coinsurance,
			rec.DeductibleApplies, rec.PriorAuthRequired, rec.Page, rec.RowIndex,
			createdAt); err != nil {
			return fmt.Errorf("saving benefit record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// AddEdges stores typed edges between benefit records.
func (s *graphStore) AddEdges(ctx context.Context, edges []domain.BenefitEdge) error {
	if len(edges) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO benefit_edges (from_id, to_id, type, strength)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(from_id, to_id, type) DO UPDATE SET
			strength = excluded.strength
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, edge := range edges {
		if edge.FromID == "" || edge.ToID == "" {
			return domain.ErrInvalidInput
		}
		if _, err := stmt.ExecContext(ctx, edge.FromID, edge.ToID,
			string(edge.Type), edge.Strength); err != nil {
			return fmt.Errorf("saving benefit edge: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Traverse expands from records of the given benefit types, following edges
// breadth first up to maxHops. Edges are walked in both directions. A record
// reachable over several paths keeps its strongest path.
func (s *graphStore) Traverse(
	ctx context.Context,
	tenantID, healthPlanID string,
	types []domain.BenefitType,
	maxHops int,
) ([]driven.GraphHit, error) {
	if tenantID == "" {
		return nil, domain.ErrInvalidInput
	}
	if len(types) == 0 {
		return nil, nil
	}
	if maxHops < 0 {
		maxHops = 0
	}

	seeds, err := s.benefitsByType(ctx, tenantID, healthPlanID, types)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	visited := make(map[string]*driven.GraphHit, len(seeds))
	frontier := make([]string, 0, len(seeds))
	for i := range seeds {
		rec := seeds[i]
		visited[rec.ID] = &driven.GraphHit{Record: rec, Hops: 0, Strength: 1}
		frontier = append(frontier, rec.ID)
	}

	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		edges, err := s.edgesTouching(ctx, frontier)
		if err != nil {
			return nil, err
		}

		// neighbour id -> strongest path strength into it this hop
		reached := map[string]float64{}
		for _, edge := range edges {
			for _, pair := range [][2]string{{edge.FromID, edge.ToID}, {edge.ToID, edge.FromID}} {
				origin, ok := visited[pair[0]]
				if !ok || origin.Hops != hop-1 {
					continue
				}
				strength := origin.Strength * edge.Strength
				if existing, ok := visited[pair[1]]; ok {
					if strength > existing.Strength {
						existing.Strength = strength
					}
					continue
				}
				if strength > reached[pair[1]] {
					reached[pair[1]] = strength
				}
			}
		}

		if len(reached) == 0 {
			break
		}

		ids := make([]string, 0, len(reached))
		for id := range reached {
			ids = append(ids, id)
		}
		records, err := s.benefitsByID(ctx, tenantID, healthPlanID, ids)
		if err != nil {
			return nil, err
		}

		frontier = frontier[:0]
		for i := range records {
			rec := records[i]
			visited[rec.ID] = &driven.GraphHit{Record: rec, Hops: hop, Strength: reached[rec.ID]}
			frontier = append(frontier, rec.ID)
		}
	}

	hits := make([]driven.GraphHit, 0, len(visited))
	for _, hit := range visited {
		hits = append(hits, *hit)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Strength != hits[j].Strength {
			return hits[i].Strength > hits[j].Strength
		}
		if hits[i].Hops != hits[j].Hops {
			return hits[i].Hops < hits[j].Hops
		}
		return hits[i].Record.ID < hits[j].Record.ID
	})
	return hits, nil
}

// AnalyzeCoverage creates similar_coverage edges between a plan's benefits
// whose coverage terms match. Returns the number of edges created.
func (s *graphStore) AnalyzeCoverage(ctx context.Context, tenantID, healthPlanID string) (int, error) {
	if tenantID == "" {
		return 0, domain.ErrInvalidInput
	}

	records, err := s.planBenefits(ctx, tenantID, healthPlanID)
	if err != nil {
		return 0, err
	}
	if len(records) < 2 {
		return 0, nil
	}

	created := 0
	for i := 0; i < len(records); i++ {
		for j := i + 1; j < len(records); j++ {
			if !coverageMatches(&records[i], &records[j]) {
				continue
			}
			fromID, toID := records[i].ID, records[j].ID
			if toID < fromID {
				fromID, toID = toID, fromID
			}
			res, err := s.store.db.ExecContext(ctx, `
				INSERT OR IGNORE INTO benefit_edges (from_id, to_id, type, strength)
				VALUES (?, ?, ?, ?)
			`, fromID, toID, string(domain.EdgeSimilarCoverage), similarCoverageStrength)
			if err != nil {
				return created, fmt.Errorf("creating coverage edge: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return created, fmt.Errorf("counting coverage edges: %w", err)
			}
			created += int(n)
		}
	}

	return created, nil
}

// DeleteByDocument removes records extracted from a document, along with any
// edges touching them.
func (s *graphStore) DeleteByDocument(ctx context.Context, tenantID, documentID string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		DELETE FROM benefit_edges WHERE from_id IN (
			SELECT id FROM benefits WHERE tenant_id = ? AND document_id = ?
		) OR to_id IN (
			SELECT id FROM benefits WHERE tenant_id = ? AND document_id = ?
		)
	`, tenantID, documentID, tenantID, documentID)
	if err != nil {
		return fmt.Errorf("deleting benefit edges: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM benefits WHERE tenant_id = ? AND document_id = ?", tenantID, documentID)
	if err != nil {
		return fmt.Errorf("deleting benefit records: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// coverageMatches reports whether two records of the same benefit type share
// a coverage term: an equal copay, an equal coinsurance, or an identical
// in-network tier value.
func coverageMatches(a, b *domain.BenefitRecord) bool {
	if a.Type != b.Type || a.Type == domain.BenefitOther {
		return false
	}
	if a.Copay > 0 && a.Copay == b.Copay {
		return true
	}
	if a.Coinsurance > 0 && a.Coinsurance == b.Coinsurance {
		return true
	}
	for _, av := range a.InNetwork {
		av = strings.ToLower(strings.TrimSpace(av))
		if av == "" {
			continue
		}
		for _, bv := range b.InNetwork {
			if av == strings.ToLower(strings.TrimSpace(bv)) {
				return true
			}
		}
	}
	return false
}

func (s *graphStore) benefitsByType(
	ctx context.Context,
	tenantID, healthPlanID string,
	types []domain.BenefitType,
) ([]domain.BenefitRecord, error) {
	placeholders := make([]string, len(types))
	args := []any{tenantID}
	for i, t := range types {
		placeholders[i] = "?"
		args = append(args, string(t))
	}
	query := `
		SELECT ` + benefitColumns + `
		FROM benefits
		WHERE tenant_id = ? AND type IN (` + strings.Join(placeholders, ", ") + `)`
	if healthPlanID != "" {
		query += " AND health_plan_id = ?"
		args = append(args, healthPlanID)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying benefits by type: %w", err)
	}
	defer rows.Close()

	return scanBenefits(rows)
}

func (s *graphStore) benefitsByID(
	ctx context.Context,
	tenantID, healthPlanID string,
	ids []string,
) ([]domain.BenefitRecord, error) {
	placeholders := make([]string, len(ids))
	args := []any{tenantID}
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := `
		SELECT ` + benefitColumns + `
		FROM benefits
		WHERE tenant_id = ? AND id IN (` + strings.Join(placeholders, ", ") + `)`
	if healthPlanID != "" {
		query += " AND health_plan_id = ?"
		args = append(args, healthPlanID)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying benefits by id: %w", err)
	}
	defer rows.Close()

	return scanBenefits(rows)
}

func (s *graphStore) planBenefits(
	ctx context.Context,
	tenantID, healthPlanID string,
) ([]domain.BenefitRecord, error) {
	query := `
		SELECT ` + benefitColumns + `
		FROM benefits WHERE tenant_id = ?`
	args := []any{tenantID}
	if healthPlanID != "" {
		query += " AND health_plan_id = ?"
		args = append(args, healthPlanID)
	}
	query += " ORDER BY document_id, row_index"

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying plan benefits: %w", err)
	}
	defer rows.Close()

	return scanBenefits(rows)
}

// edgesTouching returns every edge with either endpoint in ids.
func (s *graphStore) edgesTouching(ctx context.Context, ids []string) ([]domain.BenefitEdge, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	marks := make([]string, len(ids))
	args := make([]any, 0, len(ids)*2)
	for i := range ids {
		marks[i] = "?"
	}
	for _, id := range ids {
		args = append(args, id)
	}
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.Join(marks, ", ")

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT from_id, to_id, type, strength
		FROM benefit_edges
		WHERE from_id IN (`+placeholders+`) OR to_id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying benefit edges: %w", err)
	}
	defer rows.Close()

	var edges []domain.BenefitEdge //nolint:prealloc // size unknown from query
	for rows.Next() {
		var edge domain.BenefitEdge
		var edgeType string
		if err := rows.Scan(&edge.FromID, &edge.ToID, &edgeType, &edge.Strength); err != nil {
			return nil, fmt.Errorf("scanning benefit edge: %w", err)
		}
		edge.Type = domain.EdgeType(edgeType)
		edges = append(edges, edge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating benefit edges: %w", err)
	}

	return edges, nil
}

// scanBenefits scans multiple benefit record rows.
func scanBenefits(rows *sql.Rows) ([]domain.BenefitRecord, error) {
	var records []domain.BenefitRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		var rec domain.BenefitRecord
		var benefitType, category string
		var inNetworkJSON, outOfNetworkJSON string

		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.HealthPlanID, &rec.DocumentID,
			&benefitType, &category, &rec.Description, &inNetworkJSON, &outOfNetworkJSON,
			&rec.Copay, &rec.Coinsurance, &rec.DeductibleApplies, &rec.PriorAuthRequired,
			&rec.Page, &rec.RowIndex, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning benefit record: %w", err)
		}

		rec.Type = domain.BenefitType(benefitType)
		rec.Category = domain.BenefitCategory(category)

		if err := json.Unmarshal([]byte(inNetworkJSON), &rec.InNetwork); err != nil {
			return nil, fmt.Errorf("unmarshaling in-network terms: %w", err)
		}
		if err := json.Unmarshal([]byte(outOfNetworkJSON), &rec.OutOfNetwork); err != nil {
			return nil, fmt.Errorf("unmarshaling out-of-network terms: %w", err)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating benefit records: %w", err)
	}

	return records, nil
}
