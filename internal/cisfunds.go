package internal

import (
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/gigurra/cis-flows/internal/table"
)

// ErrMissingColumn is returned when a required column is absent from a sheet
var ErrMissingColumn = errors.New("missing required column")

// SectorCodeLength is the only valid length of a sector code
const SectorCodeLength = 4

// Fund is one (code, name) pairing from the fund master list
type Fund struct {
	Key  int
	Code string
	Name string
	// LastSeen is the latest publication date key the pairing appears in, 0 if unknown
	LastSeen int
}

type Sector struct {
	Key            int
	Code           string
	Classification string
}

// CISFunds holds the cleaned fund master lookups.
// Every distinct (code, name) pairing is in exactly one of Operational and Archived.
type CISFunds struct {
	Operational []Fund
	Archived    []Fund
	Sectors     []Sector
}

type pairing struct {
	code, name string
	lastSeen   int
	lastPos    int
}

// CleanCISFunds splits the master list into operational and archived fund names
// and a sector lookup. For a fund code with several names, the name seen in the
// latest publication is operational; within one publication the later row wins.
func CleanCISFunds(raw *table.Table) (*CISFunds, error) {
	for _, col := range []string{ColFundCode, ColFundName, ColSectorCode, ColSectorClassification} {
		if !raw.Has(col) {
			return nil, fmt.Errorf("cis funds: %w: %s", ErrMissingColumn, col)
		}
	}

	var pairs []*pairing
	byPair := make(map[[2]string]*pairing)
	var sectors []Sector
	seenSector := make(map[[2]string]bool)

	for i := 0; i < raw.Len(); i++ {
		row := raw.Row(i)
		dateKey, _ := row.Get(ColDateKey).Int()

		code, okCode := upperText(row.Get(ColFundCode))
		name, okName := upperText(row.Get(ColFundName))
		if okCode && okName {
			k := [2]string{code, name}
			p, ok := byPair[k]
			if !ok {
				p = &pairing{code: code, name: name}
				byPair[k] = p
				pairs = append(pairs, p)
			}
			if dateKey >= p.lastSeen {
				p.lastSeen = dateKey
				p.lastPos = i
			}
		}

		sCode, okSCode := upperText(row.Get(ColSectorCode))
		class, okClass := upperText(row.Get(ColSectorClassification))
		if okSCode && okClass && utf8.RuneCountInString(sCode) == SectorCodeLength {
			k := [2]string{sCode, class}
			if !seenSector[k] {
				seenSector[k] = true
				sectors = append(sectors, Sector{Code: sCode, Classification: class})
			}
		}
	}

	current := make(map[string]*pairing)
	for _, p := range pairs {
		best, ok := current[p.code]
		if !ok || p.lastSeen > best.lastSeen || (p.lastSeen == best.lastSeen && p.lastPos > best.lastPos) {
			current[p.code] = p
		}
	}

	out := &CISFunds{}
	for _, p := range pairs {
		f := Fund{Code: p.code, Name: p.name, LastSeen: p.lastSeen}
		if current[p.code] == p {
			out.Operational = append(out.Operational, f)
		} else {
			out.Archived = append(out.Archived, f)
		}
	}

	sortFunds(out.Operational)
	sortFunds(out.Archived)

	sort.SliceStable(sectors, func(i, j int) bool {
		if sectors[i].Classification != sectors[j].Classification {
			return sectors[i].Classification < sectors[j].Classification
		}
		return sectors[i].Code < sectors[j].Code
	})
	for i := range sectors {
		sectors[i].Key = i + 1
	}
	out.Sectors = sectors

	return out, nil
}

func sortFunds(funds []Fund) {
	sort.SliceStable(funds, func(i, j int) bool {
		if funds[i].Name != funds[j].Name {
			return funds[i].Name < funds[j].Name
		}
		return funds[i].Code < funds[j].Code
	})
	for i := range funds {
		funds[i].Key = i + 1
	}
}

// upperText renders any non-null cell as uppercase trimmed text
func upperText(c table.Cell) (string, bool) {
	s, ok := UpperTrim(c.AsText()).Text()
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// SectorCodes maps classification -> sector code. The first code in
// classification order wins when a classification has several.
func (c *CISFunds) SectorCodes() map[string]string {
	m := make(map[string]string, len(c.Sectors))
	for _, s := range c.Sectors {
		if _, ok := m[s.Classification]; !ok {
			m[s.Classification] = s.Code
		}
	}
	return m
}

// FundCodes maps operational fund name -> fund code, first in name order wins
func (c *CISFunds) FundCodes() map[string]string {
	return nameToCode(c.Operational)
}

// ArchivedCodes maps archived fund name -> fund code
func (c *CISFunds) ArchivedCodes() map[string]string {
	return nameToCode(c.Archived)
}

// CurrentNames maps fund code -> operational fund name
func (c *CISFunds) CurrentNames() map[string]string {
	m := make(map[string]string, len(c.Operational))
	for _, f := range c.Operational {
		m[f.Code] = f.Name
	}
	return m
}

func nameToCode(funds []Fund) map[string]string {
	m := make(map[string]string, len(funds))
	for _, f := range funds {
		if _, ok := m[f.Name]; !ok {
			m[f.Name] = f.Code
		}
	}
	return m
}

// FundsTable renders funds as Fund_Code, Fund_Name, Last_Seen
func FundsTable(funds []Fund) *table.Table {
	t := table.New(ColFundCode, ColFundName, "Last_Seen")
	for _, f := range funds {
		seen := table.Null
		if f.LastSeen > 0 {
			seen = table.Int(f.LastSeen)
		}
		t.AppendRow(table.Text(f.Code), table.Text(f.Name), seen)
	}
	return t
}

// SectorsTable renders sectors as Sector_Code, Sector_Classification
func SectorsTable(sectors []Sector) *table.Table {
	t := table.New(ColSectorCode, ColSectorClassification)
	for _, s := range sectors {
		t.AppendRow(table.Text(s.Code), table.Text(s.Classification))
	}
	return t
}
