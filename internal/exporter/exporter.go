package exporter

import (
	"context"
)

// Cell is a single printable value. Numeric cells are written to the
// spreadsheet as numbers, everything else is stringified.
type Cell = interface{}

// Row is one ordered line of cells in a sheet.
type Row []Cell

// ProgressSetTotal may be emitted by a sheet iterator ahead of its data rows
// to announce the expected row count. It is consumed for progress reporting
// and never written to the output.
type ProgressSetTotal struct {
	Total int
}

// EmitFunc receives either a Row or a ProgressSetTotal marker. A non-nil
// error aborts the iteration.
type EmitFunc func(v interface{}) error

// Sheet identifies one tab of a multi-sheet export.
type Sheet struct {
	Key   string
	Label string
}

// Hints carries presentation hints for one sheet. FreezePane is the top-left
// cell of the scrollable area ("A2" freezes the first row); ColumnWidths are
// applied left to right starting at column A, zero entries keep the default.
type Hints struct {
	FreezePane   string
	ColumnWidths []float64
}

// MultiSheetSource is a prepared report run: a fixed list of sheets, each
// streamable exactly once per Write call.
type MultiSheetSource interface {
	Filename() string
	Sheets() []Sheet
	SheetHints(key string) Hints
	IterateSheet(ctx context.Context, key string, emit EmitFunc) error
}

// Artifact is a fully rendered export file.
type Artifact struct {
	Filename    string
	ContentType string
	Bytes       []byte
}

// ProgressFunc receives the overall completion percentage (0-100).
type ProgressFunc func(pct float64)
