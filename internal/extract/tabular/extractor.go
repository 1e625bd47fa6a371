// Package tabular extracts benefit records and summary chunks from
// spreadsheet plan documents (BPS-style grids). Excel workbooks are read
// with excelize; CSV files with the standard library reader.
package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
	"github.com/SkyMychal/SmartSPD-v2/internal/extract"
	"github.com/SkyMychal/SmartSPD-v2/internal/logger"
)

// headerSniffRows is how many leading rows of a sheet are checked for the
// column header row.
const headerSniffRows = 10

// Extractor converts a benefit grid into structured records, one summary
// chunk per sheet, and a leading plan overview chunk.
type Extractor struct{}

// New creates a tabular extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract reads every sheet of the document's file and builds the result.
func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (*extract.Result, error) {
	if doc == nil || doc.FilePath == "" {
		return nil, fmt.Errorf("%w: document with file path required", domain.ErrInvalidInput)
	}

	sheets, err := readSheets(doc.FilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}

	result := &extract.Result{
		PageCount:  len(sheets),
		PlanFields: make(map[string]string),
	}

	for sheetIdx, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		records, summary := e.processSheet(doc, sheet, sheetIdx+1, result.PlanFields)
		if summary == "" {
			logger.Debug("Sheet %q produced no rows, skipping", sheet.name)
			continue
		}

		result.Sections = append(result.Sections, sheet.name)
		result.Benefits = append(result.Benefits, records...)
		result.Chunks = append(result.Chunks, domain.Chunk{
			ID:              uuid.New().String(),
			TenantID:        doc.TenantID,
			DocumentID:      doc.ID,
			Content:         summary,
			ContentHash:     extract.HashContent(summary),
			Page:            sheetIdx + 1,
			Section:         sheet.name,
			Kind:            domain.ChunkBenefitSummary,
			Keywords:        extract.Keywords(summary),
			RelevanceScore:  extract.Relevance(summary),
			ConfidenceScore: 0.7,
		})
	}

	if overview := planOverview(result.PlanFields); overview != "" {
		chunk := domain.Chunk{
			ID:              uuid.New().String(),
			TenantID:        doc.TenantID,
			DocumentID:      doc.ID,
			Content:         overview,
			ContentHash:     extract.HashContent(overview),
			Section:         "Plan Overview",
			Kind:            domain.ChunkPlanOverview,
			Keywords:        extract.Keywords(overview),
			RelevanceScore:  extract.Relevance(overview),
			ConfidenceScore: 0.8,
		}
		result.Chunks = append([]domain.Chunk{chunk}, result.Chunks...)
	}

	for i := range result.Chunks {
		result.Chunks[i].Index = i
	}

	logger.Debug("Tabular extraction: %d sheets, %d chunks, %d benefit records",
		result.PageCount, len(result.Chunks), len(result.Benefits))

	return result, nil
}

type sheetData struct {
	name string
	rows [][]string
}

func readSheets(path string) ([]sheetData, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return readCSV(path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sheets []sheetData
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			logger.Warn("Failed to read sheet %q: %v", name, err)
			continue
		}
		sheets = append(sheets, sheetData{name: name, rows: rows})
	}
	return sheets, nil
}

func readCSV(path string) ([]sheetData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return []sheetData{{name: name, rows: rows}}, nil
}

// columnLayout describes which columns hold what, derived from the header
// row.
type columnLayout struct {
	headerRow  int
	headers    []string
	inNetwork  []int
	outNetwork []int
}

// processSheet turns one sheet into benefit records and a summary text.
// Rows that cannot be parsed are skipped, never fatal.
func (e *Extractor) processSheet(doc *domain.Document, sheet sheetData, page int, planFields map[string]string) ([]domain.BenefitRecord, string) {
	layout := sniffHeader(sheet.rows)
	if layout == nil {
		return nil, ""
	}

	var records []domain.BenefitRecord
	var summary strings.Builder
	summary.WriteString(sheet.name + " benefits:\n")

	for rowIdx := layout.headerRow + 1; rowIdx < len(sheet.rows); rowIdx++ {
		row := sheet.rows[rowIdx]
		name := cellAt(row, 0)
		if name == "" {
			continue
		}

		rowText := strings.Join(nonEmpty(row), " | ")
		summary.WriteString(rowText + "\n")

		collectPlanField(planFields, name, row, layout)

		benefitType, category := extract.ClassifyBenefit(rowText)
		if benefitType == domain.BenefitOther && len(nonEmpty(row)) < 2 {
			continue
		}

		rec := domain.BenefitRecord{
			ID:                uuid.New().String(),
			TenantID:          doc.TenantID,
			HealthPlanID:      doc.HealthPlanID,
			DocumentID:        doc.ID,
			Type:              benefitType,
			Category:          category,
			Description:       name,
			InNetwork:         tierValues(row, layout.inNetwork, layout.headers),
			OutOfNetwork:      tierValues(row, layout.outNetwork, layout.headers),
			DeductibleApplies: extract.DeductibleApplies(rowText),
			PriorAuthRequired: extract.PriorAuthRequired(rowText),
			Page:              page,
			RowIndex:          rowIdx,
			CreatedAt:         time.Now().UTC(),
		}
		if v, ok := extract.ParseCurrency(rowText); ok {
			rec.Copay = v
		}
		if v, ok := extract.ParsePercent(rowText); ok {
			rec.Coinsurance = v
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, ""
	}
	return records, summary.String()
}

// sniffHeader finds the column header row: the first leading row with at
// least two non-empty cells, one naming a benefit or network tier.
func sniffHeader(rows [][]string) *columnLayout {
	limit := len(rows)
	if limit > headerSniffRows {
		limit = headerSniffRows
	}

	for i := 0; i < limit; i++ {
		row := rows[i]
		if len(nonEmpty(row)) < 2 {
			continue
		}
		if !headerish(row) {
			continue
		}

		layout := &columnLayout{headerRow: i, headers: row}
		for col, header := range row {
			h := strings.ToLower(header)
			switch {
			case strings.Contains(h, "out-of-network") || strings.Contains(h, "out of network") || strings.Contains(h, "non-network"):
				layout.outNetwork = append(layout.outNetwork, col)
			case strings.Contains(h, "in-network") || strings.Contains(h, "in network") || strings.Contains(h, "network"):
				layout.inNetwork = append(layout.inNetwork, col)
			}
		}
		return layout
	}
	return nil
}

func headerish(row []string) bool {
	joined := strings.ToLower(strings.Join(row, " "))
	for _, term := range []string{"benefit", "service", "network", "tier", "coverage", "copay", "coinsurance"} {
		if strings.Contains(joined, term) {
			return true
		}
	}
	return false
}

func tierValues(row []string, cols []int, headers []string) map[string]string {
	if len(cols) == 0 {
		return nil
	}
	out := make(map[string]string)
	for _, col := range cols {
		v := cellAt(row, col)
		if v == "" {
			continue
		}
		key := "value"
		if col < len(headers) && strings.TrimSpace(headers[col]) != "" {
			key = strings.TrimSpace(headers[col])
		}
		out[key] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// planFieldKeys maps row-name phrases to plan-level field names. The first
// match wins; individual is assumed when neither tier word appears.
func collectPlanField(planFields map[string]string, name string, row []string, layout *columnLayout) {
	l := strings.ToLower(name)

	var field string
	switch {
	case strings.Contains(l, "deductible"):
		field = "individual_deductible"
		if strings.Contains(l, "family") {
			field = "family_deductible"
		}
	case strings.Contains(l, "out-of-pocket") || strings.Contains(l, "out of pocket"):
		field = "individual_out_of_pocket_max"
		if strings.Contains(l, "family") {
			field = "family_out_of_pocket_max"
		}
	case strings.Contains(l, "copay"):
		benefitType, _ := extract.ClassifyBenefit(l)
		if benefitType == domain.BenefitOther || benefitType == domain.BenefitCopay {
			return
		}
		field = string(benefitType) + "_copay"
	default:
		return
	}
	if _, exists := planFields[field]; exists {
		return
	}

	// Prefer the in-network figure, then any cell with an amount.
	for _, col := range layout.inNetwork {
		if v := cellAt(row, col); v != "" {
			planFields[field] = v
			return
		}
	}
	for _, cell := range row[1:] {
		if _, ok := extract.ParseCurrency(cell); ok {
			planFields[field] = strings.TrimSpace(cell)
			return
		}
	}
}

func planOverview(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}

	// Stable ordering for the headline figures, extras after.
	order := []string{
		"individual_deductible",
		"family_deductible",
		"individual_out_of_pocket_max",
		"family_out_of_pocket_max",
	}

	var b strings.Builder
	b.WriteString("Plan overview:\n")
	written := make(map[string]bool)
	for _, key := range order {
		if v, ok := fields[key]; ok {
			fmt.Fprintf(&b, "%s: %s\n", strings.ReplaceAll(key, "_", " "), v)
			written[key] = true
		}
	}
	var extras []string
	for key := range fields {
		if !written[key] {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	for _, key := range extras {
		fmt.Fprintf(&b, "%s: %s\n", strings.ReplaceAll(key, "_", " "), fields[key])
	}
	return b.String()
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func nonEmpty(row []string) []string {
	var out []string
	for _, c := range row {
		if s := strings.TrimSpace(c); s != "" {
			out = append(out, s)
		}
	}
	return out
}
