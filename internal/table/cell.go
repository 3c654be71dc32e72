package table

import (
	"math"
	"strconv"
	"strings"
)

// Kind is the type of value held by a Cell
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindBool
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindText:
		return "text"
	default:
		return "null"
	}
}

// Cell is a single typed value. The zero value is Null.
type Cell struct {
	kind Kind
	text string
	num  float64
	b    bool
}

// Null is the missing value
var Null = Cell{}

func Text(s string) Cell {
	return Cell{kind: KindText, text: s}
}

func Number(f float64) Cell {
	if math.IsNaN(f) {
		return Null
	}
	return Cell{kind: KindNumber, num: f}
}

func Int(i int) Cell {
	return Number(float64(i))
}

func Bool(b bool) Cell {
	return Cell{kind: KindBool, b: b}
}

// Parse turns a raw spreadsheet value into a cell. Blank strings are Null,
// anything strconv accepts as a float is a Number, the rest is Text.
func Parse(raw string) Cell {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Null
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return Number(f)
	}
	return Text(raw)
}

func (c Cell) Kind() Kind   { return c.kind }
func (c Cell) IsNull() bool { return c.kind == KindNull }
func (c Cell) IsText() bool { return c.kind == KindText }

// Text returns the text content if the cell holds text
func (c Cell) Text() (string, bool) {
	return c.text, c.kind == KindText
}

func (c Cell) Float() (float64, bool) {
	return c.num, c.kind == KindNumber
}

// Int returns the number truncated to an int
func (c Cell) Int() (int, bool) {
	if c.kind != KindNumber {
		return 0, false
	}
	return int(c.num), true
}

func (c Cell) Bool() (bool, bool) {
	return c.b, c.kind == KindBool
}

// String renders the cell the way it would be written to a spreadsheet.
// Whole numbers have no decimal part, so a numeric fund code 100 renders as "100".
func (c Cell) String() string {
	switch c.kind {
	case KindText:
		return c.text
	case KindNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	case KindBool:
		if c.b {
			return "TRUE"
		}
		return "FALSE"
	default:
		return ""
	}
}

// AsText converts any non-null cell to a text cell
func (c Cell) AsText() Cell {
	if c.kind == KindNull || c.kind == KindText {
		return c
	}
	return Text(c.String())
}

// Equal reports whether both cells have the same kind and value
func (c Cell) Equal(o Cell) bool {
	if c.kind != o.kind {
		return false
	}
	switch c.kind {
	case KindText:
		return c.text == o.text
	case KindNumber:
		return c.num == o.num
	case KindBool:
		return c.b == o.b
	default:
		return true
	}
}

// key is a kind-qualified string used for hashing cells in joins and dedup
func (c Cell) key() string {
	switch c.kind {
	case KindText:
		return "t" + c.text
	case KindNumber:
		return "n" + strconv.FormatFloat(c.num, 'g', -1, 64)
	case KindBool:
		if c.b {
			return "b1"
		}
		return "b0"
	default:
		return "_"
	}
}

// Compare orders cells: numbers, then bools, then text, with nulls last.
func Compare(a, b Cell) int {
	if a.kind != b.kind {
		if a.kind == KindNull {
			return 1
		}
		if b.kind == KindNull {
			return -1
		}
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindNumber:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
	case KindBool:
		switch {
		case !a.b && b.b:
			return -1
		case a.b && !b.b:
			return 1
		}
	case KindText:
		return strings.Compare(a.text, b.text)
	}
	return 0
}
