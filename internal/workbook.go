package internal

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/extrame/xls"
	"github.com/richardlehane/mscfb"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// ErrSheetNotFound is returned when a workbook has no sheet of the requested name
var ErrSheetNotFound = errors.New("sheet not found")

// oleSignature starts every compound file, which is how legacy .xls workbooks are stored
var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// formulaPlaceholder is what the xls reader returns for formula cells
const formulaPlaceholder = "FormulaCol"

// workbook is an opened publication. Rows returns raw cell text, one slice per
// sheet row, with missing rows and cells as empty strings.
type workbook interface {
	Rows(sheet string) ([][]string, error)
	Close() error
}

// openWorkbook reads xlsx publications with excelize and legacy BIFF8 .xls
// publications with the xls reader
func openWorkbook(src Source, logger zerolog.Logger) (workbook, error) {
	if bytes.HasPrefix(src.Data, oleSignature) {
		legacy, err := hasBIFFStream(src.Data)
		if err != nil {
			return nil, fmt.Errorf("reading compound file: %w", err)
		}
		// encrypted xlsx files are compound files too, without a Workbook stream
		if legacy {
			return openXLS(src, logger)
		}
	}
	f, err := excelize.OpenReader(bytes.NewReader(src.Data))
	if err != nil {
		return nil, err
	}
	return xlsxWorkbook{f: f}, nil
}

type xlsxWorkbook struct {
	f *excelize.File
}

func (w xlsxWorkbook) Rows(sheet string) ([][]string, error) {
	if idx, err := w.f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}
	rows, err := w.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func (w xlsxWorkbook) Close() error {
	return w.f.Close()
}

// hasBIFFStream walks the compound file and reads its Workbook stream end to
// end, so a damaged sector chain is reported here rather than inside the xls reader
func hasBIFFStream(data []byte) (bool, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return false, err
	}
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if len(entry.Path) > 0 || (entry.Name != "Workbook" && entry.Name != "Book") {
			continue
		}
		if _, err := io.Copy(io.Discard, entry); err != nil {
			return false, fmt.Errorf("reading %s stream: %w", entry.Name, err)
		}
		return true, nil
	}
	return false, nil
}

type xlsWorkbook struct {
	name   string
	wb     *xls.WorkBook
	logger zerolog.Logger
}

func openXLS(src Source, logger zerolog.Logger) (w workbook, err error) {
	defer func() {
		if r := recover(); r != nil {
			w, err = nil, fmt.Errorf("parsing legacy workbook: %v", r)
		}
	}()
	wb, err := xls.OpenReader(bytes.NewReader(src.Data), "utf-8")
	if err != nil {
		return nil, err
	}
	if wb == nil {
		return nil, errors.New("no workbook stream")
	}
	return &xlsWorkbook{name: src.Name, wb: wb, logger: logger}, nil
}

func (w *xlsWorkbook) Rows(sheet string) (rows [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("reading sheet %q: %v", sheet, r)
		}
	}()

	for i := 0; i < w.wb.NumSheets(); i++ {
		s := w.wb.GetSheet(i)
		if s == nil || s.Name != sheet {
			continue
		}

		formulas := 0
		rows = make([][]string, int(s.MaxRow)+1)
		for r := range rows {
			row := xlsRow(s, r)
			if row == nil || row.LastCol() <= row.FirstCol() {
				continue
			}
			cells := make([]string, row.LastCol())
			for c := row.FirstCol(); c < row.LastCol(); c++ {
				v := row.Col(c)
				if v == formulaPlaceholder {
					formulas++
					v = ""
				}
				cells[c] = v
			}
			rows[r] = cells
		}
		if formulas > 0 {
			w.logger.Warn().
				Str("source", w.name).
				Str("sheet", sheet).
				Int("cells", formulas).
				Msg("Legacy workbook formula results are not readable, leaving cells blank")
		}
		return rows, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
}

// xlsRow returns nil for rows the sheet has no record of
func xlsRow(s *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return s.Row(i)
}

func (w *xlsWorkbook) Close() error {
	return nil
}
