package internal

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	ptable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/gigurra/cis-flows/internal/table"
)

// QuarterTotal sums every measure over the fact rows of one quarter
type QuarterTotal struct {
	DateKey int                `json:"date_key"`
	Totals  map[string]float64 `json:"totals"`
}

// QuarterTotals returns measure totals per quarter in ascending date order.
// Null measures count as zero.
func QuarterTotals(fact *table.Table, measures []string) []QuarterTotal {
	var out []QuarterTotal
	index := make(map[int]int)
	for i := 0; i < fact.Len(); i++ {
		r := fact.Row(i)
		k, ok := r.Get(ColDateKey).Int()
		if !ok {
			continue
		}
		pos, seen := index[k]
		if !seen {
			pos = len(out)
			index[k] = pos
			out = append(out, QuarterTotal{DateKey: k, Totals: make(map[string]float64, len(measures))})
		}
		for _, m := range measures {
			if v, ok := r.Get(m).Float(); ok {
				out[pos].Totals[m] += v
			}
		}
	}
	slices.SortFunc(out, func(a, b QuarterTotal) int { return a.DateKey - b.DateKey })
	return out
}

// JSONTable is the size of one exported table
type JSONTable struct {
	Name    string `json:"name"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

// JSONSummary is the root JSON output object of a run
type JSONSummary struct {
	Tables   []JSONTable    `json:"tables"`
	Quarters []QuarterTotal `json:"quarters"`
	Funds    struct {
		Operational int `json:"operational"`
		Archived    int `json:"archived"`
		Sectors     int `json:"sectors"`
	} `json:"funds"`
	Unmapped  Unmapped       `json:"unmapped"`
	// Collapsed maps dimension name to rows dropped to keep one row per value
	Collapsed map[string]int `json:"collapsed,omitempty"`
	Skipped   []AuditEntry   `json:"skipped,omitempty"`
	Currency  string         `json:"currency"`
}

func newJSONSummary(res *Result, skipped []AuditEntry, cfg *Config) JSONSummary {
	var s JSONSummary
	for _, nt := range res.Tables() {
		s.Tables = append(s.Tables, JSONTable{Name: nt.Name, Rows: nt.Table.Len(), Columns: nt.Table.Width()})
	}
	s.Quarters = QuarterTotals(res.Fact, cfg.Measures)
	s.Funds.Operational = len(res.Funds.Operational)
	s.Funds.Archived = len(res.Funds.Archived)
	s.Funds.Sectors = len(res.Funds.Sectors)
	s.Unmapped = UnmappedSummary(res.Analysis)
	if collapsed := res.Dimensions.Collapsed(); len(collapsed) > 0 {
		s.Collapsed = collapsed
	}
	s.Skipped = skipped
	s.Currency = cfg.Currency
	return s
}

// PrintSummaryJSON outputs the run summary in JSON format
func PrintSummaryJSON(w io.Writer, res *Result, skipped []AuditEntry, cfg *Config) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newJSONSummary(res, skipped, cfg))
}

// PrintRunSummary outputs the table sizes and per-quarter totals of a run
func PrintRunSummary(w io.Writer, res *Result, skipped []AuditEntry, cfg *Config, money Money) {
	s := newJSONSummary(res, skipped, cfg)

	fmt.Fprintf(w, "Built %d fact rows over %d quarters (%d operational funds, %d archived, %d sectors)\n",
		res.Fact.Len(), len(s.Quarters), s.Funds.Operational, s.Funds.Archived, s.Funds.Sectors)
	if len(skipped) > 0 {
		fmt.Fprintf(w, "Skipped %d sheets, see the audit log\n", len(skipped))
	}
	fmt.Fprintln(w)

	t := newWriter(w)
	t.AppendHeader(ptable.Row{"Table", "Rows", "Columns"})
	for _, nt := range s.Tables {
		t.AppendRow(ptable.Row{nt.Name, nt.Rows, nt.Columns})
	}
	t.SetColumnConfigs([]ptable.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	t.Render()
	fmt.Fprintln(w)

	q := newWriter(w)
	header := ptable.Row{"Quarter"}
	for _, m := range cfg.Measures {
		header = append(header, m)
	}
	q.AppendHeader(header)
	grand := make(map[string]float64, len(cfg.Measures))
	for _, qt := range s.Quarters {
		row := ptable.Row{qt.DateKey}
		for _, m := range cfg.Measures {
			row = append(row, money.Format(qt.Totals[m]))
			grand[m] += qt.Totals[m]
		}
		q.AppendRow(row)
	}
	q.AppendSeparator()
	footer := ptable.Row{text.Bold.Sprint("Total")}
	for _, m := range cfg.Measures {
		footer = append(footer, text.Bold.Sprint(money.Format(grand[m])))
	}
	q.AppendFooter(footer)
	var configs []ptable.ColumnConfig
	for i := range cfg.Measures {
		configs = append(configs, ptable.ColumnConfig{Number: i + 2, Align: text.AlignRight})
	}
	q.SetColumnConfigs(configs)
	q.Render()

	if s.Unmapped.FundRows > 0 || s.Unmapped.SectorRows > 0 {
		fmt.Fprintf(w, "\n%s %d rows without a fund code, %d without a sector code\n",
			text.FgYellow.Sprint("Unmapped:"), s.Unmapped.FundRows, s.Unmapped.SectorRows)
	}
	if len(s.Collapsed) > 0 {
		names := make([]string, 0, len(s.Collapsed))
		for name := range s.Collapsed {
			names = append(names, name)
		}
		slices.Sort(names)
		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = fmt.Sprintf("%s %d", name, s.Collapsed[name])
		}
		fmt.Fprintf(w, "\n%s dimension rows dropped to keep one row per value (%s)\n",
			text.FgYellow.Sprint("Collapsed:"), strings.Join(parts, ", "))
	}
}

// PrintCoverage outputs the quarter coverage of both source sheets
func PrintCoverage(w io.Writer, e *Explorer) {
	analysis, cisFunds := e.Coverage()
	counts := e.QuarterCounts()
	values := e.ValueCounts()

	t := newWriter(w)
	t.AppendHeader(ptable.Row{"Sheet", "Quarters", "First", "Last", "Missing", "Funds", "Sectors"})
	t.AppendRow(coverageRow("Analysis", counts.Analysis, analysis, values.FundsAnalysis, values.SectorsAnalysis))
	t.AppendRow(coverageRow("CIS Funds", counts.CISFunds, cisFunds, values.FundsCISFunds, values.SectorsCISFunds))
	t.Render()
}

func coverageRow(name string, quarters int, cov Coverage, funds, sectors int) ptable.Row {
	first, last := "-", "-"
	if quarters > 0 {
		first = cov.Range.Start.Format("2006-01-02")
		last = cov.Range.End.Format("2006-01-02")
	}
	missing := text.FgGreen.Sprint("none")
	if len(cov.Missing) > 0 {
		keys := make([]string, len(cov.Missing))
		for i, k := range cov.Missing {
			keys[i] = fmt.Sprint(k)
		}
		missing = text.FgRed.Sprint(strings.Join(keys, ", "))
	}
	return ptable.Row{name, quarters, first, last, missing, funds, sectors}
}

// PrintTable renders any table with a title
func PrintTable(w io.Writer, title string, t *table.Table) {
	fmt.Fprintf(w, "%s (%d rows)\n", text.Bold.Sprint(title), t.Len())
	if t.Width() == 0 {
		return
	}
	pw := newWriter(w)
	header := make(ptable.Row, 0, t.Width())
	for _, c := range t.Columns() {
		header = append(header, c)
	}
	pw.AppendHeader(header)
	for i := 0; i < t.Len(); i++ {
		cells := t.Row(i).Cells()
		row := make(ptable.Row, len(cells))
		for j, c := range cells {
			row[j] = c.String()
		}
		pw.AppendRow(row)
	}
	pw.Render()
}

func newWriter(w io.Writer) ptable.Writer {
	t := ptable.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(ptable.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	return t
}
