package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/docassist/internal/core/view"
)

const (
	sheetDocuments = "Documents"
	sheetGuidance  = "Guidance"
)

// WriteXLSX renders the document list workbook: one row per required type
// with its status, plus a guidance sheet for missing types.
func WriteXLSX(w io.Writer, result view.Result) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetDocuments); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	rows := [][]any{
		{"Query", result.Query},
		{"Use case", result.UseCase},
		{"Completion", fmt.Sprintf("%d%%", result.CompletionPercent)},
		{"Status", result.Readiness},
		{},
		{"Document", "Status", "Matched file", "Confidence"},
	}
	headerRow := len(rows)
	rows = append(rows, documentRows(result)...)
	if err := writeRows(f, sheetDocuments, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetDocuments, cell(1, headerRow), cell(4, headerRow), header); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(sheetDocuments, "A", "C", 28); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if len(result.Guidance) > 0 {
		if _, err := f.NewSheet(sheetGuidance); err != nil {
			return fmt.Errorf("create guidance sheet: %w", err)
		}
		guidance := [][]any{{"Document", "Where", "Time", "Cost", "Tips"}}
		for _, g := range result.Guidance {
			guidance = append(guidance, []any{g.Label, g.Where, g.Time, g.Cost, g.Tips})
		}
		if err := writeRows(f, sheetGuidance, guidance); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetGuidance, "A1", "E1", header); err != nil {
			return fmt.Errorf("style guidance header: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func documentRows(result view.Result) [][]any {
	matches := make(map[string]view.Match, len(result.Found))
	for _, m := range result.Found {
		matches[m.Type] = m
	}

	var rows [][]any
	listed := make(map[string]struct{})
	for _, req := range result.Requirements {
		listed[req.Type] = struct{}{}
		rows = append(rows, requirementRow(req.Label, req.Found, matches[req.Type]))
	}
	for _, m := range result.Found {
		if _, ok := listed[m.Type]; ok {
			continue
		}
		rows = append(rows, requirementRow(m.Label, true, m))
	}
	for _, miss := range result.Missing {
		if _, ok := listed[miss.Type]; ok {
			continue
		}
		rows = append(rows, requirementRow(miss.Label, false, view.Match{}))
	}
	return rows
}

func requirementRow(label string, found bool, m view.Match) []any {
	if !found {
		return []any{label, "Missing", "", ""}
	}
	filename := m.Filename
	if filename == "" && len(m.Files) > 0 {
		filename = m.Files[0].Name
	}
	confidence := ""
	if m.ConfidencePct > 0 {
		confidence = fmt.Sprintf("%d%%", m.ConfidencePct)
	}
	return []any{label, "Found", filename, confidence}
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for r, row := range rows {
		for c, value := range row {
			if err := f.SetCellValue(sheet, cell(c+1, r+1), value); err != nil {
				return fmt.Errorf("set %s cell: %w", sheet, err)
			}
		}
	}
	return nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
