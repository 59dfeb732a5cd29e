package results

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet that holds exported results.
const SheetName = "Results"

var exportHeader = []any{
	"Ended At", "Topic", "Title", "Source", "Provider", "Outcome",
	"Score", "Total", "Time Limit (s)", "Remaining (s)", "Missed",
}

// WriteXLSX writes records as a single-sheet workbook.
func WriteXLSX(w io.Writer, records []Record) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &exportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(exportHeader))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			r.EndedAt.UTC().Format(time.RFC3339),
			r.Topic,
			r.Title,
			r.Source,
			r.Provider,
			string(r.Reason),
			r.Score,
			r.Total,
			r.TimeLimit,
			r.Remaining,
			strings.Join(r.Missed, ", "),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "A", 22); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "B", "C", 40); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "K", "K", 60); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
