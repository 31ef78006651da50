// Package export renders the installment listing as a spreadsheet download.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"gestao/internal/core"
)

const (
	SheetName   = "Parcelas"
	FileName    = "relatorio_financeiro.xlsx"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// valueColumn is the 1-based column holding the installment value.
const valueColumn = 3

// WriteXLSX writes a workbook with one sheet holding the header row and one
// row per installment, in the order given.
func WriteXLSX(w io.Writer, rows []core.ExportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	// built-in format 2 is "0.00"
	money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return fmt.Errorf("money style: %w", err)
	}

	for i, header := range core.ExportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, header); err != nil {
			return fmt.Errorf("write header %s: %w", cell, err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(core.ExportHeaders), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for r, row := range rows {
		for c, v := range row.Cells() {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fmt.Errorf("write %s: %w", cell, err)
			}
		}
	}
	if len(rows) > 0 {
		top, _ := excelize.CoordinatesToCellName(valueColumn, 2)
		bottom, _ := excelize.CoordinatesToCellName(valueColumn, len(rows)+1)
		if err := f.SetCellStyle(SheetName, top, bottom, money); err != nil {
			return fmt.Errorf("style values: %w", err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "G", 20); err != nil {
		return fmt.Errorf("column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
