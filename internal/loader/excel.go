package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/vinodismyname/mcpreports/internal/dataset"
)

// ErrSheetNotFound is wrapped when the requested worksheet does not exist.
var ErrSheetNotFound = errors.New("loader: sheet not found")

// readExcel streams a worksheet. Cells are read raw so date cells arrive as
// Excel serials and are converted during dataset.Build.
func readExcel(ctx context.Context, path string, o Options) (*dataset.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheet := o.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, &LoadError{Path: path, Kind: NotFound, Err: fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)}
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	sink := newSink(ctx, path, o)
	for rows.Next() {
		cells, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, err
		}
		if err := sink.take(cells); err != nil {
			return nil, err
		}
	}
	if err := rows.Error(); err != nil {
		return nil, err
	}
	return &sink.table, nil
}
