// Package export renders cabinet inventories as xlsx workbooks.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	inventorySheet = "Inventory"
	summarySheet   = "Summary"
)

// Header is the first row of the inventory sheet.
var Header = []string{
	"Compartment",
	"Trade Name",
	"Generic Name",
	"Strength",
	"Quantity",
	"Reorder Level",
	"Expiry Date",
	"Days To Expiry",
	"Status",
	"Unit Weight (g)",
	"Current Weight (g)",
}

var columnWidths = []float64{12, 28, 28, 14, 10, 14, 14, 15, 15, 16, 18}

// Cabinet identifies the exported cabinet.
type Cabinet struct {
	Name       string
	HardwareID string
	Location   string
}

// Row is one medicine line.
type Row struct {
	Compartment   *int
	TradeName     string
	GenericName   string
	Strength      string
	Quantity      int
	ReorderLevel  int
	ExpiryDate    string
	DaysToExpiry  *int
	Status        string
	UnitWeight    *float64
	CurrentWeight *float64
}

// Workbook builds the xlsx file: an inventory sheet with one row per
// medicine and a summary sheet counting rows per status.
func Workbook(cab Cabinet, rows []Row, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(inventorySheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeRow(f, inventorySheet, 1, toAny(Header)); err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(Header), 1)
	if err := f.SetCellStyle(inventorySheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}
	for i, width := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(inventorySheet, col, col, width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	counts := map[string]int{}
	var order []string
	for i, r := range rows {
		if err := writeRow(f, inventorySheet, i+2, r.values()); err != nil {
			return nil, err
		}
		if _, seen := counts[r.Status]; !seen {
			order = append(order, r.Status)
		}
		counts[r.Status]++
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	summary := [][]any{
		{"Botiquin", cab.Name},
		{"Hardware ID", cab.HardwareID},
		{"Location", cab.Location},
		{"Generated At", generatedAt.UTC().Format(time.RFC3339)},
		{"Total Medicines", len(rows)},
		{},
		{"Status", "Count"},
	}
	for _, status := range order {
		summary = append(summary, []any{status, counts[status]})
	}
	for i, values := range summary {
		if err := writeRow(f, summarySheet, i+1, values); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 18); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (r Row) values() []any {
	return []any{
		deref(r.Compartment),
		r.TradeName,
		r.GenericName,
		r.Strength,
		r.Quantity,
		r.ReorderLevel,
		r.ExpiryDate,
		deref(r.DaysToExpiry),
		r.Status,
		deref(r.UnitWeight),
		deref(r.CurrentWeight),
	}
}

// deref leaves the cell blank for nil pointers.
func deref[T any](p *T) any {
	if p == nil {
		return ""
	}
	return *p
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	if len(values) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}
