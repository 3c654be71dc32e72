package internal

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gigurra/cis-flows/internal/table"
)

var (
	// ErrNoQuarterPhrase means the metadata row has no cell with the date phrase
	ErrNoQuarterPhrase = errors.New("no quarter ended phrase on metadata row")
	// ErrPublicationDate means the date text could not be parsed
	ErrPublicationDate = errors.New("unparseable publication date")
)

// Source is one raw spreadsheet publication held in memory
type Source struct {
	Name string
	Data []byte
}

// Audit events recorded by the extractor
const (
	EventIngestFailed = "unable to ingest sheet"
	ReasonNoData      = "no data"
	ReasonUnreadable  = "unreadable workbook"
)

var publicationDatePattern = regexp.MustCompile(`(\d{1,2})\s+([A-Za-z]+)\s+(\d{4})\s*$`)

// Extractor pulls one named sheet out of every publication, keyed by publication date
type Extractor struct {
	cfg    *Config
	audit  AuditLog
	logger zerolog.Logger
}

func NewExtractor(cfg *Config, audit AuditLog, logger zerolog.Logger) *Extractor {
	if audit == nil {
		audit = NopAudit
	}
	return &Extractor{cfg: cfg, audit: audit, logger: logger}
}

// ExtractSheets returns date key -> raw table for every source that has the sheet.
// Sources lacking the sheet are audited and left out. A source whose publication
// date cannot be determined aborts the extraction.
func (e *Extractor) ExtractSheets(sources []Source, sheet SheetSpec) (map[int]*table.Table, error) {
	out, err := e.Extract(sources, sheet)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Extract opens every source once and reads each requested sheet from it.
// The result holds one date key -> raw table map per requested sheet, in argument order.
// A source that cannot be opened is audited once and skipped.
func (e *Extractor) Extract(sources []Source, specs ...SheetSpec) ([]map[int]*table.Table, error) {
	out := make([]map[int]*table.Table, len(specs))
	for i := range out {
		out[i] = make(map[int]*table.Table)
	}

	for _, src := range sources {
		wb, err := openWorkbook(src, e.logger)
		if err != nil {
			// no workbook means no metadata sheet either, so there is no quarter to report
			e.logger.Warn().Str("source", src.Name).Err(err).Msg("Skipping unreadable workbook")
			e.audit.Record(fmt.Sprintf("%s %s from %s", EventIngestFailed, quotedSheetNames(specs), src.Name), ReasonUnreadable, 0)
			continue
		}

		dateKey, err := e.publicationDate(wb)
		if err != nil {
			wb.Close()
			return nil, fmt.Errorf("%s: %w", src.Name, err)
		}

		for i, spec := range specs {
			t, err := readSheet(wb, spec)
			if err != nil {
				e.logger.Warn().
					Str("source", src.Name).
					Str("sheet", spec.Name).
					Int("quarter", dateKey).
					Err(err).
					Msg("Skipping source")
				e.audit.Record(fmt.Sprintf("%s %q", EventIngestFailed, spec.Name), ReasonNoData, dateKey)
				continue
			}

			if prev, ok := out[i][dateKey]; ok {
				e.logger.Warn().Str("source", src.Name).Str("sheet", spec.Name).Int("quarter", dateKey).Msg("Quarter published twice, appending rows")
				t = table.Concat(prev, t)
			}
			out[i][dateKey] = t
			e.logger.Debug().Str("source", src.Name).Str("sheet", spec.Name).Int("quarter", dateKey).Int("rows", t.Len()).Msg("Extracted sheet")
		}
		wb.Close()
	}

	return out, nil
}

func quotedSheetNames(specs []SheetSpec) string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = strconv.Quote(s.Name)
	}
	return strings.Join(names, ", ")
}

// publicationDate reads the date key from the first row of the metadata sheet
func (e *Extractor) publicationDate(wb workbook) (int, error) {
	rows, err := wb.Rows(e.cfg.MetadataSheet)
	if err != nil {
		return 0, fmt.Errorf("reading metadata sheet %q: %w", e.cfg.MetadataSheet, err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("metadata sheet %q is empty: %w", e.cfg.MetadataSheet, ErrNoQuarterPhrase)
	}
	phrase := strings.ToLower(e.cfg.DatePhrase)
	for _, cell := range rows[0] {
		if strings.Contains(strings.ToLower(cell), phrase) {
			return ParsePublicationDate(cell)
		}
	}
	return 0, ErrNoQuarterPhrase
}

// ParsePublicationDate extracts the trailing "DD Month YYYY" from text such as
// "Quarter ended 30 June 2023" and returns it as a YYYYMMDD integer
func ParsePublicationDate(text string) (int, error) {
	m := publicationDatePattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrPublicationDate, text)
	}
	d, err := time.Parse("2 January 2006", fmt.Sprintf("%s %s %s", m[1], titleMonth(m[2]), m[3]))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrPublicationDate, text)
	}
	return DateKey(d), nil
}

func titleMonth(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// DateKey encodes a date as YYYYMMDD
func DateKey(d time.Time) int {
	return d.Year()*10000 + int(d.Month())*100 + d.Day()
}

// readSheet loads a sheet using row headerRow as the header and drops blank rows.
// Columns holding any non-numeric value are text, the rest are numbers.
func readSheet(wb workbook, spec SheetSpec) (*table.Table, error) {
	rows, err := wb.Rows(spec.Name)
	if err != nil {
		return nil, err
	}
	if len(rows) <= spec.HeaderRow {
		return nil, fmt.Errorf("sheet %q has no header row %d", spec.Name, spec.HeaderRow)
	}

	header := uniqueHeaders(rows[spec.HeaderRow])
	var body [][]string
	for _, row := range rows[spec.HeaderRow+1:] {
		if isBlankRow(row) {
			continue
		}
		body = append(body, row)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("sheet %q has no data rows", spec.Name)
	}

	width := len(header)
	for _, row := range body {
		width = max(width, len(row))
	}
	for len(header) < width {
		header = append(header, fmt.Sprintf("Unnamed_%d", len(header)))
	}

	textCol := make([]bool, width)
	for _, row := range body {
		for j, raw := range row {
			if table.Parse(raw).IsText() {
				textCol[j] = true
			}
		}
	}

	t := table.New(header...)
	for _, row := range body {
		cells := make([]table.Cell, width)
		for j, raw := range row {
			c := table.Parse(raw)
			if textCol[j] && !c.IsNull() {
				c = table.Text(raw)
			}
			cells[j] = c
		}
		if err := t.AppendRow(cells...); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func uniqueHeaders(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int)
	for j, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed_%d", j)
		}
		if n := seen[h]; n > 0 {
			seen[h]++
			h = fmt.Sprintf("%s_%d", h, n+1)
		} else {
			seen[h] = 1
		}
		out[j] = h
	}
	return out
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
