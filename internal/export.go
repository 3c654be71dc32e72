package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/gigurra/cis-flows/internal/table"
)

// ErrExportExists is returned when the export target exists and the policy is fail
var ErrExportExists = errors.New("export target already exists")

// Exporter writes named tables to one xlsx workbook, a sheet per table
type Exporter struct {
	cfg    ExportConfig
	logger zerolog.Logger
}

func NewExporter(cfg ExportConfig, logger zerolog.Logger) *Exporter {
	if cfg.OnConflict == "" {
		cfg.OnConflict = OnConflictOverwrite
	}
	return &Exporter{cfg: cfg, logger: logger}
}

// Export writes tables to path in the given order. With the fail policy an
// existing file is left untouched.
func (e *Exporter) Export(path string, tables []NamedTable) error {
	if path == "" {
		path = e.cfg.Path
	}
	if path == "" {
		return fmt.Errorf("no export path configured")
	}
	if len(tables) == 0 {
		return fmt.Errorf("nothing to export")
	}
	if _, err := os.Stat(path); err == nil {
		if e.cfg.OnConflict == OnConflictFail {
			return fmt.Errorf("%w: %s", ErrExportExists, path)
		}
		e.logger.Warn().Str("path", path).Msg("Overwriting existing export")
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, nt := range tables {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), nt.Name); err != nil {
				return fmt.Errorf("naming sheet %s: %w", nt.Name, err)
			}
		} else if _, err := f.NewSheet(nt.Name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", nt.Name, err)
		}
		if err := writeSheet(f, nt.Name, nt.Table); err != nil {
			return fmt.Errorf("writing sheet %s: %w", nt.Name, err)
		}
		e.logger.Debug().Str("sheet", nt.Name).Int("rows", nt.Table.Len()).Msg("Wrote sheet")
	}
	f.SetActiveSheet(0)

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	e.logger.Info().Str("path", path).Int("sheets", len(tables)).Msg("Exported star schema")
	return nil
}

func writeSheet(f *excelize.File, sheet string, t *table.Table) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}
	header := make([]interface{}, t.Width())
	for i, c := range t.Columns() {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for i := 0; i < t.Len(); i++ {
		cells := t.Row(i).Cells()
		values := make([]interface{}, len(cells))
		for j, c := range cells {
			values[j] = cellValue(c)
		}
		ref, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(ref, values); err != nil {
			return err
		}
	}
	return sw.Flush()
}

// cellValue maps a cell onto the Go value excelize writes natively. Null is an empty cell.
func cellValue(c table.Cell) interface{} {
	switch c.Kind() {
	case table.KindNumber:
		f, _ := c.Float()
		return f
	case table.KindBool:
		b, _ := c.Bool()
		return b
	case table.KindText:
		s, _ := c.Text()
		return s
	default:
		return nil
	}
}
