package statistics

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	// SheetTables 表行数工作表：name, rows
	SheetTables = "tables"
	// SheetColumns 列统计工作表：table, column, distinct
	SheetColumns = "columns"
)

// LoadWorkbook 从 Excel 工作簿读取统计信息
// 第一行为表头；columns 工作表可以不存在
func LoadWorkbook(path string) (*StaticProvider, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := make(map[string]string)
	for _, name := range f.GetSheetList() {
		sheets[strings.ToLower(name)] = name
	}

	tablesSheet, ok := sheets[SheetTables]
	if !ok {
		return nil, fmt.Errorf("workbook %s has no %q sheet", path, SheetTables)
	}

	p := NewStaticProvider()
	rows, err := f.GetRows(tablesSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", tablesSheet, err)
	}
	for i, row := range skipHeader(rows) {
		if len(row) < 2 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		n, err := parseCount(row[1])
		if err != nil {
			return nil, fmt.Errorf("sheet %s row %d: %w", tablesSheet, i+2, err)
		}
		p.SetRowCount(row[0], n)
	}

	columnsSheet, ok := sheets[SheetColumns]
	if !ok {
		return p, nil
	}
	rows, err = f.GetRows(columnsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", columnsSheet, err)
	}
	for i, row := range skipHeader(rows) {
		if len(row) < 3 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		n, err := parseCount(row[2])
		if err != nil {
			return nil, fmt.Errorf("sheet %s row %d: %w", columnsSheet, i+2, err)
		}
		p.SetDistinctCount(row[0], row[1], n)
	}
	return p, nil
}

// SaveWorkbook 把统计信息写成 LoadWorkbook 能读取的工作簿
func SaveWorkbook(path string, p *StaticProvider) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetTables); err != nil {
		return err
	}
	if err := writeRow(f, SheetTables, 1, "name", "rows"); err != nil {
		return err
	}
	for i, t := range p.Tables() {
		rows, _ := p.RowCount(context.Background(), t)
		if err := writeRow(f, SheetTables, i+2, t, rows); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SheetColumns); err != nil {
		return err
	}
	if err := writeRow(f, SheetColumns, 1, "table", "column", "distinct"); err != nil {
		return err
	}
	for i, c := range p.Columns() {
		if err := writeRow(f, SheetColumns, i+2, c.Table, c.Column, c.Distinct); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...interface{}) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func skipHeader(rows [][]string) [][]string {
	if len(rows) == 0 {
		return nil
	}
	return rows[1:]
}

func parseCount(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}
	// 单元格可能以浮点数保存
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	return uint64(f), nil
}
