package services

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driven"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driving"
	"github.com/SkyMychal/SmartSPD-v2/internal/extract"
	"github.com/SkyMychal/SmartSPD-v2/internal/logger"
)

// Ensure VersionService implements the interface.
var _ driving.VersionControl = (*VersionService)(nil)

// Change magnitude thresholds on the relative chunk-count delta.
const (
	minimalChangeRatio  = 0.1
	moderateChangeRatio = 0.3
)

// metadataBookkeepingKeys are excluded from version metadata comparison.
var metadataBookkeepingKeys = map[string]bool{
	"batch_id": true,
}

// VersionService manages document version lineages. History is append
// only: superseded versions are archived, rollbacks create new versions,
// and deletion is a soft flag.
type VersionService struct {
	docStore driven.DocumentStore
	pipeline *Pipeline
}

// NewVersionService creates the version control service.
func NewVersionService(docStore driven.DocumentStore, pipeline *Pipeline) *VersionService {
	return &VersionService{docStore: docStore, pipeline: pipeline}
}

// UploadVersion creates a new version of a document lineage from the file
// at path. Byte-identical uploads return the current version unchanged.
func (s *VersionService) UploadVersion(ctx context.Context, tenantID, originalID, path, changeNotes string) (*domain.VersionResult, error) {
	if tenantID == "" || originalID == "" || path == "" {
		return nil, fmt.Errorf("%w: tenant ID, document ID and path required", domain.ErrInvalidInput)
	}

	anchor, err := s.docStore.GetDocument(ctx, tenantID, originalID)
	if err != nil {
		return nil, fmt.Errorf("resolve lineage: %w", err)
	}

	lineage, err := s.docStore.ListLineage(ctx, tenantID, anchor.LineageID())
	if err != nil {
		return nil, fmt.Errorf("load lineage: %w", err)
	}
	current, maxVersion := currentAndMax(lineage)
	if current == nil {
		return nil, fmt.Errorf("%w: lineage %s has no current version", domain.ErrNotFound, anchor.LineageID())
	}

	hash, size, err := extract.HashFile(path)
	if err != nil {
		return nil, fmt.Errorf("hash upload: %w", err)
	}

	if hash == current.ContentHash {
		logger.Info("Upload for lineage %s is identical to v%d, no version created",
			anchor.LineageID(), current.Version)
		return &domain.VersionResult{
			Created:  false,
			Reason:   "content identical to current version",
			Version:  current.Version,
			Document: current,
		}, nil
	}

	version := s.newVersionDoc(current, anchor.LineageID(), maxVersion+1, changeNotes)
	version.Filename = current.Filename
	version.FilePath = path
	version.FileSize = size
	version.ContentHash = hash

	if err := s.persistNewVersion(ctx, current, version); err != nil {
		return nil, err
	}

	if err := s.pipeline.Process(ctx, version); err != nil {
		logger.Warn("Version %s processing failed: %v", version.ID, err)
	}

	summary, err := s.changeSummary(ctx, current, version)
	if err != nil {
		logger.Warn("Change summary unavailable: %v", err)
	}

	logger.Info("Created version %d of lineage %s", version.Version, anchor.LineageID())
	return &domain.VersionResult{
		Created:         true,
		Version:         version.Version,
		PreviousVersion: current.Version,
		Document:        version,
		Summary:         summary,
	}, nil
}

// History returns the full version lineage, newest first, soft-deleted
// versions included.
func (s *VersionService) History(ctx context.Context, tenantID, documentID string) ([]domain.Document, error) {
	anchor, err := s.docStore.GetDocument(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	return s.docStore.ListLineage(ctx, tenantID, anchor.LineageID())
}

// Compare diffs two versions of a document.
func (s *VersionService) Compare(ctx context.Context, tenantID, idA, idB string) (*domain.ChangeSummary, error) {
	a, err := s.docStore.GetDocument(ctx, tenantID, idA)
	if err != nil {
		return nil, err
	}
	b, err := s.docStore.GetDocument(ctx, tenantID, idB)
	if err != nil {
		return nil, err
	}
	if a.LineageID() != b.LineageID() {
		return nil, fmt.Errorf("%w: documents belong to different lineages", domain.ErrInvalidInput)
	}
	return s.changeSummary(ctx, a, b)
}

// Rollback creates a new version whose content matches the target
// historical version. History is never rewritten in place.
func (s *VersionService) Rollback(ctx context.Context, tenantID, targetVersionID, reason string) (*domain.Document, error) {
	target, err := s.docStore.GetDocument(ctx, tenantID, targetVersionID)
	if err != nil {
		return nil, err
	}
	if target.Deleted {
		return nil, fmt.Errorf("%w: cannot roll back to a deleted version", domain.ErrInvalidInput)
	}

	lineage, err := s.docStore.ListLineage(ctx, tenantID, target.LineageID())
	if err != nil {
		return nil, fmt.Errorf("load lineage: %w", err)
	}
	current, maxVersion := currentAndMax(lineage)
	if current == nil {
		return nil, fmt.Errorf("%w: lineage %s has no current version", domain.ErrNotFound, target.LineageID())
	}
	if current.ID == target.ID {
		return nil, fmt.Errorf("%w: version %d is already current", domain.ErrInvalidInput, target.Version)
	}

	notes := reason
	if notes == "" {
		notes = fmt.Sprintf("rollback to version %d", target.Version)
	}

	version := s.newVersionDoc(current, target.LineageID(), maxVersion+1, notes)
	version.Filename = target.Filename
	version.FilePath = target.FilePath
	version.FileSize = target.FileSize
	version.ContentHash = target.ContentHash
	version.Type = target.Type

	if err := s.persistNewVersion(ctx, current, version); err != nil {
		return nil, err
	}

	if err := s.pipeline.Process(ctx, version); err != nil {
		logger.Warn("Rollback version %s processing failed: %v", version.ID, err)
	}

	logger.Info("Rolled lineage %s back to v%d content as v%d",
		target.LineageID(), target.Version, version.Version)
	return version, nil
}

// DeleteVersion soft-deletes a version. Originals cannot be deleted
// through version control. Deleting the current version promotes the
// newest remaining one.
func (s *VersionService) DeleteVersion(ctx context.Context, tenantID, versionID, reason string) error {
	doc, err := s.docStore.GetDocument(ctx, tenantID, versionID)
	if err != nil {
		return err
	}
	if !doc.IsVersion {
		return fmt.Errorf("%w: %s is the original document", domain.ErrNotAVersion, versionID)
	}
	if doc.Deleted {
		return nil
	}

	doc.Deleted = true
	wasCurrent := doc.IsCurrent
	doc.IsCurrent = false
	if reason != "" {
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]any)
		}
		doc.Metadata["delete_reason"] = reason
	}
	doc.UpdatedAt = time.Now().UTC()
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("soft delete version: %w", err)
	}

	if !wasCurrent {
		return nil
	}

	lineage, err := s.docStore.ListLineage(ctx, tenantID, doc.LineageID())
	if err != nil {
		return fmt.Errorf("load lineage: %w", err)
	}
	for i := range lineage {
		candidate := &lineage[i]
		if candidate.Deleted || candidate.ID == doc.ID {
			continue
		}
		candidate.IsCurrent = true
		candidate.UpdatedAt = time.Now().UTC()
		if err := s.docStore.SaveDocument(ctx, candidate); err != nil {
			return fmt.Errorf("promote version %d: %w", candidate.Version, err)
		}
		logger.Info("Promoted v%d of lineage %s to current", candidate.Version, doc.LineageID())
		return nil
	}
	return nil
}

// newVersionDoc builds the shell of a new version row.
func (s *VersionService) newVersionDoc(current *domain.Document, lineageID string, version int, notes string) *domain.Document {
	now := time.Now().UTC()
	return &domain.Document{
		ID:              uuid.New().String(),
		TenantID:        current.TenantID,
		HealthPlanID:    current.HealthPlanID,
		Type:            current.Type,
		Status:          domain.StatusUploaded,
		Version:         version,
		OriginalID:      lineageID,
		PreviousVersion: current.Version,
		ChangeNotes:     notes,
		IsVersion:       true,
		IsCurrent:       true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// persistNewVersion archives the current version and saves the new one.
func (s *VersionService) persistNewVersion(ctx context.Context, current, version *domain.Document) error {
	current.IsCurrent = false
	current.UpdatedAt = time.Now().UTC()
	if err := s.docStore.SaveDocument(ctx, current); err != nil {
		return fmt.Errorf("demote current version: %w", err)
	}
	if current.Status == domain.StatusCompleted {
		if err := s.docStore.UpdateStatus(ctx, current.TenantID, current.ID, domain.StatusArchived, ""); err != nil {
			logger.Warn("Failed to archive version %s: %v", current.ID, err)
		}
	}

	if err := s.docStore.SaveDocument(ctx, version); err != nil {
		return fmt.Errorf("save new version: %w", err)
	}
	return nil
}

// changeSummary compares two versions: file size, metadata, and for
// narrative documents a chunk-count-derived change magnitude.
func (s *VersionService) changeSummary(ctx context.Context, from, to *domain.Document) (*domain.ChangeSummary, error) {
	summary := &domain.ChangeSummary{
		FileSizeDelta: to.FileSize - from.FileSize,
		HashChanged:   to.ContentHash != from.ContentHash,
		Metadata:      metadataDiff(from.Metadata, to.Metadata),
	}

	if from.Type != domain.DocTypeNarrative || to.Type != domain.DocTypeNarrative {
		return summary, nil
	}

	fromCount, err := s.docStore.CountChunks(ctx, from.TenantID, from.ID)
	if err != nil {
		return summary, err
	}
	toCount, err := s.docStore.CountChunks(ctx, to.TenantID, to.ID)
	if err != nil {
		return summary, err
	}
	if fromCount == 0 && toCount == 0 {
		return summary, nil
	}

	summary.ChunkCountDelta = toCount - fromCount
	summary.Magnitude = changeMagnitude(fromCount, toCount)
	return summary, nil
}

func changeMagnitude(from, to int) domain.ChangeMagnitude {
	base := from
	if base == 0 {
		base = 1
	}
	delta := to - from
	if delta < 0 {
		delta = -delta
	}
	ratio := float64(delta) / float64(base)

	switch {
	case ratio < minimalChangeRatio:
		return domain.ChangeMinimal
	case ratio < moderateChangeRatio:
		return domain.ChangeModerate
	default:
		return domain.ChangeSignificant
	}
}

// metadataDiff compares version metadata, skipping bookkeeping keys.
func metadataDiff(from, to map[string]any) domain.MetadataDiff {
	diff := domain.MetadataDiff{
		Added:    make(map[string]any),
		Removed:  make(map[string]any),
		Modified: make(map[string][2]any),
	}

	for k, v := range to {
		if metadataBookkeepingKeys[k] {
			continue
		}
		old, ok := from[k]
		switch {
		case !ok:
			diff.Added[k] = v
		case !reflect.DeepEqual(old, v):
			diff.Modified[k] = [2]any{old, v}
		}
	}
	for k, v := range from {
		if metadataBookkeepingKeys[k] {
			continue
		}
		if _, ok := to[k]; !ok {
			diff.Removed[k] = v
		}
	}
	return diff
}

// currentAndMax finds the current version and highest version number in a
// lineage.
func currentAndMax(lineage []domain.Document) (*domain.Document, int) {
	var current *domain.Document
	maxVersion := 0
	for i := range lineage {
		if lineage[i].Version > maxVersion {
			maxVersion = lineage[i].Version
		}
		if lineage[i].IsCurrent && !lineage[i].Deleted {
			current = &lineage[i]
		}
	}
	return current, maxVersion
}
