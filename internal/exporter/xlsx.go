package exporter

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXContentType is the MIME type of the generated workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteXLSX renders every sheet of src into one workbook and writes it to w.
// Sheets are streamed row by row; progress (when non-nil) is called with the
// overall percentage, apportioned evenly across sheets. Any iteration error
// aborts the whole export and nothing is written to w, so a caller never
// receives a partial workbook.
func WriteXLSX(ctx context.Context, src MultiSheetSource, w io.Writer, progress ProgressFunc) error {
	f, err := renderWorkbook(ctx, src, progress)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// RenderXLSX is like WriteXLSX but returns the workbook in memory.
func RenderXLSX(ctx context.Context, src MultiSheetSource, progress ProgressFunc) (*Artifact, error) {
	f, err := renderWorkbook(ctx, src, progress)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return &Artifact{
		Filename:    src.Filename() + ".xlsx",
		ContentType: XLSXContentType,
		Bytes:       buf.Bytes(),
	}, nil
}

func renderWorkbook(ctx context.Context, src MultiSheetSource, progress ProgressFunc) (*excelize.File, error) {
	sheets := src.Sheets()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("export %q has no sheets", src.Filename())
	}

	f := excelize.NewFile()
	nSheets := len(sheets)

	for iSheet, sheet := range sheets {
		if _, err := f.NewSheet(sheet.Label); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %q: %w", sheet.Label, err)
		}

		sw, err := f.NewStreamWriter(sheet.Label)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("stream sheet %q: %w", sheet.Label, err)
		}

		if err := applyHints(sw, src.SheetHints(sheet.Key)); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %q hints: %w", sheet.Key, err)
		}

		total := 0
		counter := 0
		rowNum := 0
		err = src.IterateSheet(ctx, sheet.Key, func(v interface{}) error {
			if marker, ok := v.(ProgressSetTotal); ok {
				total = marker.Total
				return nil
			}
			row, ok := v.(Row)
			if !ok {
				return fmt.Errorf("sheet %q: unexpected stream value %T", sheet.Key, v)
			}

			rowNum++
			cell, err := excelize.CoordinatesToCellName(1, rowNum)
			if err != nil {
				return err
			}
			if err := sw.SetRow(cell, printableCells(row)); err != nil {
				return err
			}

			if total > 0 && progress != nil {
				counter++
				step := total / 100
				if step < 10 {
					step = 10
				}
				if counter%step == 0 {
					inner := float64(counter) / float64(total)
					progress(100 * (float64(iSheet) + inner) / float64(nSheets))
				}
			}
			return nil
		})
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %q: %w", sheet.Key, err)
		}

		if err := sw.Flush(); err != nil {
			f.Close()
			return nil, fmt.Errorf("flush sheet %q: %w", sheet.Label, err)
		}

		if progress != nil {
			progress(100 * float64(iSheet+1) / float64(nSheets))
		}
	}

	// Drop the implicit default sheet, keep only report sheets.
	f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex(sheets[0].Label); err == nil {
		f.SetActiveSheet(idx)
	}

	return f, nil
}

func applyHints(sw *excelize.StreamWriter, hints Hints) error {
	for i, width := range hints.ColumnWidths {
		if width <= 0 {
			continue
		}
		if err := sw.SetColWidth(i+1, i+1, width); err != nil {
			return err
		}
	}
	if hints.FreezePane != "" {
		col, row, err := excelize.CellNameToCoordinates(hints.FreezePane)
		if err != nil {
			return err
		}
		return sw.SetPanes(&excelize.Panes{
			Freeze:      true,
			XSplit:      col - 1,
			YSplit:      row - 1,
			TopLeftCell: hints.FreezePane,
			ActivePane:  "bottomRight",
		})
	}
	return nil
}

// printableCells passes numbers through untouched and stringifies the rest.
func printableCells(row Row) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		switch v.(type) {
		case nil:
			out[i] = ""
		case int, int32, int64, uint, uint32, uint64, float32, float64, bool:
			out[i] = v
		case string:
			out[i] = v
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}
