package internal

import (
	"slices"
	"time"
)

type DateRange struct {
	Start time.Time
	End   time.Time
}

// Coverage describes which quarters a source was published for
type Coverage struct {
	Quarters []int // date keys present, ascending
	Missing  []int // quarter-end date keys between the first and last with no data
	Range    DateRange
}

// AnalyzeQuarterCoverage returns the quarters present, the quarter ends missing
// between the first and last of them, and the date range covered.
func AnalyzeQuarterCoverage(dateKeys []int) Coverage {
	if len(dateKeys) == 0 {
		return Coverage{}
	}

	keys := slices.Clone(dateKeys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	var dates []time.Time
	present := make(map[string]bool)
	for _, k := range keys {
		d, err := ParseDateKey(k)
		if err != nil {
			continue
		}
		dates = append(dates, d)
		present[quarterOf(d)] = true
	}
	if len(dates) == 0 {
		return Coverage{}
	}

	cov := Coverage{
		Quarters: keys,
		Range:    DateRange{Start: dates[0], End: dates[len(dates)-1]},
	}

	// Walk quarter ends from the first published quarter to the last
	current := quarterEnd(dates[0])
	last := quarterEnd(dates[len(dates)-1])
	for !current.After(last) {
		if !present[quarterOf(current)] {
			cov.Missing = append(cov.Missing, DateKey(current))
		}
		current = quarterEnd(current.AddDate(0, 0, 1))
	}

	return cov
}

func quarterOf(d time.Time) string {
	return d.Format("2006") + "Q" + string(rune('0'+(int(d.Month())-1)/3+1))
}

// quarterEnd returns the last day of d's quarter
func quarterEnd(d time.Time) time.Time {
	lastMonth := time.Month(((int(d.Month())-1)/3+1)*3)
	return time.Date(d.Year(), lastMonth+1, 0, 0, 0, 0, 0, time.UTC)
}
