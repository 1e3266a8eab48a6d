package render

import (
	"fmt"

	"github.com/smallbiznis/nanolite/internal/export"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	imageColumnWidth = 40
	imageRowHeight   = 65
	imageOffsetX     = 5
	imageOffsetStep  = 60
	imageOffsetY     = 3

	titleRow     = 1
	headerRow    = 2
	firstDataRow = 3
)

func thinBorder() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
}

func (r *DocumentRenderer) spreadsheet(t export.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := "Sheet1"
	cols := len(t.Headers)
	if cols == 0 {
		return nil, fmt.Errorf("render spreadsheet: table has no headers")
	}
	lastCol, err := excelize.ColumnNumberToName(cols)
	if err != nil {
		return nil, err
	}

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"F0F0F0"}},
		Border:    thinBorder(),
	})
	if err != nil {
		return nil, err
	}
	dataStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "top", WrapText: true},
		Border:    thinBorder(),
	})
	if err != nil {
		return nil, err
	}

	titleCell := cellName(1, titleRow)
	if err := f.MergeCell(sheet, titleCell, lastCol+"1"); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheet, titleCell, t.Title); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, titleCell, lastCol+"1", titleStyle); err != nil {
		return nil, err
	}

	for i, h := range t.Headers {
		if err := f.SetCellValue(sheet, cellName(i+1, headerRow), h); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(sheet, cellName(1, headerRow), cellName(cols, headerRow), headerStyle); err != nil {
		return nil, err
	}

	for i, row := range t.Rows {
		rowNum := firstDataRow + i
		for j, c := range row {
			if err := setCell(f, sheet, cellName(j+1, rowNum), c); err != nil {
				return nil, err
			}
		}
	}
	lastRow := firstDataRow + len(t.Rows) - 1

	if len(t.Footer) > 0 {
		row := lastRow + 3
		for _, footer := range t.Footer {
			for j, c := range footer {
				col := cols - len(footer) + j + 1
				if err := setCell(f, sheet, cellName(col, row), c); err != nil {
					return nil, err
				}
			}
			row++
		}
		lastRow = row - 1
	}

	if lastRow >= firstDataRow {
		if err := f.SetCellStyle(sheet, cellName(1, firstDataRow), cellName(cols, lastRow), dataStyle); err != nil {
			return nil, err
		}
	}

	for i := 1; i <= cols; i++ {
		name, _ := excelize.ColumnNumberToName(i)
		width := columnWidth(t, i-1)
		if err := f.SetColWidth(sheet, name, name, width); err != nil {
			return nil, err
		}
	}

	if len(t.Rows) > 0 && t.ImageColumn >= 0 && t.ImageColumn < cols {
		for i := range t.Rows {
			if err := f.SetRowHeight(sheet, firstDataRow+i, imageRowHeight); err != nil {
				return nil, err
			}
		}
		r.placeImages(f, sheet, t)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write spreadsheet: %w", err)
	}
	return buf.Bytes(), nil
}

// placeImages draws the thumbnails of every row. A picture that cannot be
// decoded is skipped.
func (r *DocumentRenderer) placeImages(f *excelize.File, sheet string, t export.Table) {
	for rowIdx, paths := range t.Images {
		cell := cellName(t.ImageColumn+1, firstDataRow+rowIdx)
		for i, path := range paths {
			data, err := thumbnail(path)
			if err != nil {
				r.log.Warn("skip spreadsheet image", zap.String("path", path), zap.Error(err))
				continue
			}
			err = f.AddPictureFromBytes(sheet, cell, &excelize.Picture{
				Extension: ".jpg",
				File:      data,
				Format: &excelize.GraphicOptions{
					OffsetX:         imageOffsetX + imageOffsetStep*i,
					OffsetY:         imageOffsetY,
					ScaleX:          1,
					ScaleY:          1,
					LockAspectRatio: true,
					Positioning:     "oneCell",
				},
			})
			if err != nil {
				r.log.Warn("add spreadsheet image", zap.String("path", path), zap.Error(err))
			}
		}
	}
}

func setCell(f *excelize.File, sheet, cell string, c export.Cell) error {
	switch c.Kind {
	case export.KindInt:
		return f.SetCellInt(sheet, cell, int(c.Value))
	default:
		return f.SetCellStr(sheet, cell, c.String())
	}
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// columnWidth approximates auto-size from the longest line in the column.
func columnWidth(t export.Table, col int) float64 {
	if col == t.ImageColumn {
		return imageColumnWidth
	}
	longest := 0
	measure := func(s string) {
		line := 0
		for _, r := range s {
			if r == '\n' {
				line = 0
				continue
			}
			line++
			if line > longest {
				longest = line
			}
		}
	}
	if col < len(t.Headers) {
		measure(t.Headers[col])
	}
	for _, row := range t.Rows {
		if col < len(row) {
			measure(row[col].String())
		}
	}
	width := float64(longest) + 2
	if width < 6 {
		width = 6
	}
	if width > 60 {
		width = 60
	}
	return width
}
