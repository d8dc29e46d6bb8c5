// Package export writes a job's staged data to an XLSX workbook with one
// sheet per entity kind.
package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/Smooother/nivo-web-sub001/internal/model"
	"github.com/Smooother/nivo-web-sub001/internal/staging"
)

// Writer exports staged job data to workbooks under Dir.
type Writer struct {
	store staging.Store
	dir   string
}

// NewWriter returns a Writer that writes workbooks into dir.
func NewWriter(store staging.Store, dir string) *Writer {
	return &Writer{store: store, dir: dir}
}

// WriteWorkbook writes the job's companies and financials to
// <dir>/<jobID>.xlsx and returns the path.
func (w *Writer) WriteWorkbook(ctx context.Context, jobID string) (string, error) {
	companies, err := w.store.ListCompanies(ctx, jobID)
	if err != nil {
		return "", eris.Wrap(err, "export: list companies")
	}
	records, err := w.store.ListFinancialRecords(ctx, jobID)
	if err != nil {
		return "", eris.Wrap(err, "export: list financials")
	}

	f := xlsx.NewFile()
	if err := writeCompanySheet(f, companies); err != nil {
		return "", err
	}
	if err := writeFinancialSheet(f, companies, records); err != nil {
		return "", err
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", eris.Wrap(err, "export: create output dir")
	}
	path := filepath.Join(w.dir, jobID+".xlsx")
	if err := f.Save(path); err != nil {
		return "", eris.Wrap(err, "export: save workbook")
	}

	zap.L().Info("workbook exported",
		zap.String("job_id", jobID),
		zap.String("path", path),
		zap.Int("companies", len(companies)),
		zap.Int("financial_records", len(records)))

	return path, nil
}

var companyHeader = []string{
	"orgnr", "company_name", "company_id", "homepage", "segment",
	"nace_categories", "revenue_sek", "profit_sek", "foundation_year",
	"status", "last_error", "scraped_at",
}

func writeCompanySheet(f *xlsx.File, companies []model.StagedCompany) error {
	sheet, err := f.AddSheet("Companies")
	if err != nil {
		return eris.Wrap(err, "export: add companies sheet")
	}

	headerRow(sheet, companyHeader)
	for _, c := range companies {
		row := sheet.AddRow()
		row.AddCell().Value = c.OrgNumber
		row.AddCell().Value = c.Name
		row.AddCell().Value = c.CompanyID
		row.AddCell().Value = c.Homepage
		row.AddCell().Value = c.SegmentName
		row.AddCell().Value = strings.Join(c.NACECategories, "; ")
		optionalInt64(row.AddCell(), c.RevenueSEK)
		optionalInt64(row.AddCell(), c.ProfitSEK)
		optionalInt(row.AddCell(), c.FoundationYear)
		row.AddCell().Value = string(c.Status)
		row.AddCell().Value = c.LastError
		row.AddCell().Value = c.ScrapedAt.Format("2006-01-02 15:04:05")
	}
	return nil
}

func writeFinancialSheet(f *xlsx.File, companies []model.StagedCompany, records []model.FinancialRecord) error {
	sheet, err := f.AddSheet("Financials")
	if err != nil {
		return eris.Wrap(err, "export: add financials sheet")
	}

	names := make(map[string]string, len(companies))
	for _, c := range companies {
		names[c.OrgNumber] = c.Name
	}

	header := append([]string{
		"orgnr", "company_name", "company_id", "year", "period", "currency",
	}, model.MetricCodes...)
	headerRow(sheet, header)

	for _, r := range records {
		row := sheet.AddRow()
		row.AddCell().Value = r.OrgNumber
		row.AddCell().Value = names[r.OrgNumber]
		row.AddCell().Value = r.CompanyID
		row.AddCell().SetInt(r.Year)
		row.AddCell().Value = r.Period
		row.AddCell().Value = r.Currency
		for _, code := range model.MetricCodes {
			cell := row.AddCell()
			if v, ok := r.Metrics[code]; ok {
				cell.SetFloatWithFormat(v, "0.00")
			}
		}
	}
	return nil
}

func headerRow(sheet *xlsx.Sheet, cols []string) {
	row := sheet.AddRow()
	for _, col := range cols {
		row.AddCell().Value = col
	}
}

func optionalInt64(cell *xlsx.Cell, v *int64) {
	if v != nil {
		cell.SetInt64(*v)
	}
}

func optionalInt(cell *xlsx.Cell, v *int) {
	if v != nil {
		cell.SetInt(*v)
	}
}
