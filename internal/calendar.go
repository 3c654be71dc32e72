package internal

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gigurra/cis-flows/internal/table"
)

// CalendarColumns are the columns of the date dimension, key first
var CalendarColumns = []string{
	ColDateKey,
	"Full_Date",
	"Year_Number",
	"Month_Number",
	"Month_Name_Short",
	"Month_Name_Long",
	"Week_Number",
	"Week_Day_Number",
	"Week_Day_Name",
	"Quarter_Number",
	"Semester_Number",
	"Is_Month_Start",
	"Is_Month_End",
	"Is_Quarter_Start",
	"Is_Quarter_End",
	"Is_Year_Start",
	"Is_Year_End",
}

// ParseDateKey decodes a YYYYMMDD integer
func ParseDateKey(key int) (time.Time, error) {
	d := time.Date(key/10000, time.Month(key/100%100), key%100, 0, 0, 0, 0, time.UTC)
	if DateKey(d) != key {
		return time.Time{}, fmt.Errorf("invalid date key %d", key)
	}
	return d, nil
}

// CalendarRange returns Jan 1 of the earliest observed year and Dec 31 of the latest
func CalendarRange(dateKeys []int) (start, end time.Time, err error) {
	if len(dateKeys) == 0 {
		return start, end, fmt.Errorf("calendar needs at least one date key")
	}
	first, err := ParseDateKey(slices.Min(dateKeys))
	if err != nil {
		return start, end, err
	}
	last, err := ParseDateKey(slices.Max(dateKeys))
	if err != nil {
		return start, end, err
	}
	start = time.Date(first.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	end = time.Date(last.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
	return start, end, nil
}

// BuildCalendar returns a daily date dimension covering every day of every
// year between the earliest and latest observed date keys
func BuildCalendar(dateKeys []int) (*Dimension, error) {
	for _, k := range dateKeys {
		if _, err := ParseDateKey(k); err != nil {
			return nil, err
		}
	}
	start, end, err := CalendarRange(dateKeys)
	if err != nil {
		return nil, err
	}

	t := table.New(CalendarColumns...)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		_, week := d.ISOWeek()
		quarter := (int(d.Month())-1)/3 + 1
		next := d.AddDate(0, 0, 1)
		monthStart := d.Day() == 1
		monthEnd := next.Month() != d.Month()
		quarterMonth := (int(d.Month())-1)%3 == 0

		t.AppendRow(
			table.Int(DateKey(d)),
			table.Text(d.Format("2006-01-02")),
			table.Int(d.Year()),
			table.Int(int(d.Month())),
			table.Text(strings.ToUpper(d.Month().String()[:3])),
			table.Text(strings.ToUpper(d.Month().String())),
			table.Int(week),
			table.Int(isoWeekday(d)),
			table.Text(strings.ToUpper(d.Weekday().String())),
			table.Int(quarter),
			table.Int(semester(quarter)),
			table.Bool(monthStart),
			table.Bool(monthEnd),
			table.Bool(monthStart && quarterMonth),
			table.Bool(monthEnd && int(d.Month())%3 == 0),
			table.Bool(d.YearDay() == 1),
			table.Bool(d.Month() == time.December && d.Day() == 31),
		)
	}

	return &Dimension{
		Name:    "Dim_Date",
		Feature: ColDateKey,
		Key:     ColDateKey,
		Table:   t,
	}, nil
}

// isoWeekday numbers Monday 1 through Sunday 7
func isoWeekday(d time.Time) int {
	if d.Weekday() == time.Sunday {
		return 7
	}
	return int(d.Weekday())
}

func semester(quarter int) int {
	if quarter <= 2 {
		return 1
	}
	return 2
}
