// Package narrative extracts chunks and benefit rows from prose plan
// documents (SPD-style PDFs). Text extraction shells out to pdftotext from
// poppler-utils, so the tool must be installed on the host.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
	"github.com/SkyMychal/SmartSPD-v2/internal/extract"
	"github.com/SkyMychal/SmartSPD-v2/internal/logger"
)

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// maxChunkChars bounds the size of a paragraph chunk. Paragraphs are packed
// whole; a single paragraph above the bound is hard-split.
const maxChunkChars = 1000

// headerScanLines is how many leading lines of a page are checked for a
// section header.
const headerScanLines = 8

// CommandRunner executes an external command and returns its stdout.
// It exists so tests can substitute pdftotext.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// CheckAvailable reports whether pdftotext can be found.
func CheckAvailable() error {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions returns platform hints for installing pdftotext.
func InstallInstructions() string {
	return `pdftotext is required for PDF extraction.

Install it via your package manager:
  macOS:         brew install poppler
  Debian/Ubuntu: apt install poppler-utils
  Fedora:        dnf install poppler-utils`
}

// Extractor converts a narrative PDF into paragraph and table chunks plus
// the benefit rows it can recover from tabular page regions.
type Extractor struct {
	runner CommandRunner
}

// New creates an extractor backed by the real pdftotext binary.
func New() *Extractor {
	return &Extractor{runner: execRunner{}}
}

// NewWithRunner creates an extractor with a custom command runner.
func NewWithRunner(runner CommandRunner) *Extractor {
	return &Extractor{runner: runner}
}

// Extract runs pdftotext over the document file and builds the result.
func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (*extract.Result, error) {
	if doc == nil || doc.FilePath == "" {
		return nil, fmt.Errorf("%w: document with file path required", domain.ErrInvalidInput)
	}

	// -layout preserves column alignment so table rows stay recognisable.
	out, err := e.runner.Run(ctx, "pdftotext", "-layout", doc.FilePath, "-")
	if err != nil {
		return nil, fmt.Errorf("%w: pdftotext failed: %v", domain.ErrExtraction, err)
	}

	pages := strings.Split(string(out), "\f")
	// pdftotext terminates the last page with \f, leaving a trailing empty
	// element.
	if n := len(pages); n > 0 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}

	result := &extract.Result{PageCount: len(pages)}
	section := ""

	for i, page := range pages {
		pageNo := i + 1

		if header := findSectionHeader(page); header != "" {
			section = header
			result.Sections = append(result.Sections, header)
		}

		prose, tables := splitTableRegions(page)

		for _, block := range packParagraphs(prose) {
			result.Chunks = append(result.Chunks,
				e.newChunk(doc, block, pageNo, section, domain.ChunkParagraph))
		}
		for _, table := range tables {
			result.Chunks = append(result.Chunks,
				e.newChunk(doc, table, pageNo, section, domain.ChunkTable))

			rows := benefitRows(doc, table, pageNo)
			result.Benefits = append(result.Benefits, rows...)
		}
	}

	for i := range result.Chunks {
		result.Chunks[i].Index = i
	}

	logger.Debug("Narrative extraction: %d pages, %d chunks, %d benefit rows",
		result.PageCount, len(result.Chunks), len(result.Benefits))

	return result, nil
}

func (e *Extractor) newChunk(doc *domain.Document, content string, page int, section string, kind domain.ChunkKind) domain.Chunk {
	return domain.Chunk{
		ID:              uuid.New().String(),
		TenantID:        doc.TenantID,
		DocumentID:      doc.ID,
		Content:         content,
		ContentHash:     extract.HashContent(content),
		Page:            page,
		Section:         section,
		Kind:            kind,
		Keywords:        extract.Keywords(content),
		RelevanceScore:  extract.Relevance(content),
		ConfidenceScore: 0.5,
	}
}

// findSectionHeader scans the first lines of a page for a header: a short,
// upper-cased line containing at least one plan term.
func findSectionHeader(page string) string {
	lines := strings.Split(page, "\n")
	if len(lines) > headerScanLines {
		lines = lines[:headerScanLines]
	}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || len(trimmed) > 60 {
			continue
		}
		if trimmed != strings.ToUpper(trimmed) {
			continue
		}
		if !strings.ContainsFunc(trimmed, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
			continue
		}
		if len(extract.Keywords(trimmed)) == 0 {
			continue
		}
		return trimmed
	}
	return ""
}

// splitTableRegions separates a page into prose paragraphs and runs of
// table-like lines. Two or more consecutive columnar lines form a table.
func splitTableRegions(page string) (paragraphs []string, tables []string) {
	lines := strings.Split(page, "\n")

	var para, table []string
	flushPara := func() {
		if text := strings.TrimSpace(strings.Join(para, "\n")); text != "" {
			paragraphs = append(paragraphs, text)
		}
		para = para[:0]
	}
	flushTable := func() {
		if len(table) >= 2 {
			tables = append(tables, strings.Join(table, "\n"))
		} else {
			// A lone columnar line reads as prose.
			para = append(para, table...)
		}
		table = table[:0]
	}

	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		switch {
		case strings.TrimSpace(trimmed) == "":
			flushTable()
			flushPara()
		case isTableLine(trimmed):
			table = append(table, trimmed)
		default:
			flushTable()
			para = append(para, strings.TrimSpace(trimmed))
		}
	}
	flushTable()
	flushPara()
	return paragraphs, tables
}

// isTableLine detects columnar layout: interior runs of three or more
// spaces, as produced by pdftotext -layout for table cells.
func isTableLine(line string) bool {
	return strings.Contains(strings.TrimSpace(line), "   ")
}

// packParagraphs assembles paragraphs into chunks of at most maxChunkChars.
// A paragraph is only split when it alone exceeds the bound.
func packParagraphs(paragraphs []string) []string {
	var out []string
	var buf strings.Builder

	flush := func() {
		if buf.Len() > 0 {
			out = append(out, buf.String())
			buf.Reset()
		}
	}

	for _, p := range paragraphs {
		if len(p) > maxChunkChars {
			flush()
			for len(p) > maxChunkChars {
				out = append(out, p[:maxChunkChars])
				p = p[maxChunkChars:]
			}
			if p != "" {
				out = append(out, p)
			}
			continue
		}
		if buf.Len() > 0 && buf.Len()+len(p)+2 > maxChunkChars {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(p)
	}
	flush()
	return out
}

// benefitRows recovers structured coverage facts from a table region. A row
// qualifies when it names a recognisable benefit and carries an amount.
func benefitRows(doc *domain.Document, table string, page int) []domain.BenefitRecord {
	var records []domain.BenefitRecord

	for i, line := range strings.Split(table, "\n") {
		benefitType, category := extract.ClassifyBenefit(line)
		if benefitType == domain.BenefitOther {
			continue
		}
		copay, hasCopay := extract.ParseCurrency(line)
		coins, hasCoins := extract.ParsePercent(line)
		if !hasCopay && !hasCoins {
			continue
		}

		rec := domain.BenefitRecord{
			ID:                uuid.New().String(),
			TenantID:          doc.TenantID,
			HealthPlanID:      doc.HealthPlanID,
			DocumentID:        doc.ID,
			Type:              benefitType,
			Category:          category,
			Description:       strings.Join(strings.Fields(line), " "),
			DeductibleApplies: extract.DeductibleApplies(line),
			PriorAuthRequired: extract.PriorAuthRequired(line),
			Page:              page,
			RowIndex:          i,
			CreatedAt:         time.Now().UTC(),
		}
		if hasCopay {
			rec.Copay = copay
		}
		if hasCoins {
			rec.Coinsurance = coins
		}
		records = append(records, rec)
	}
	return records
}
