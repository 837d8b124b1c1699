// Package export renders a project's backlog as downloadable CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/keikaku/internal/models"
)

var header = []string{"id", "title", "description", "priority", "estimate", "created_at"}

// WriteCSV writes items to w as UTF-8 CSV with a header row.
func WriteCSV(w io.Writer, items []models.BacklogItem) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, item := range items {
		if err := cw.Write(itemRow(item)); err != nil {
			return fmt.Errorf("write item %s: %w", item.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes items to w as a single-sheet workbook named "Backlog".
func WriteXLSX(w io.Writer, items []models.BacklogItem) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Backlog"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, item := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := itemRow(item)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write item %s: %w", item.ID, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func itemRow(item models.BacklogItem) []string {
	return []string{
		item.ID,
		item.Title,
		item.Description,
		item.Priority,
		item.Estimate,
		item.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}
