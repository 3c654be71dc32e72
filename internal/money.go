package internal

import (
	"os"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Money formats measure amounts in one currency
type Money struct {
	Code    string
	unit    currency.Unit
	printer *message.Printer
}

// homeLocale is the formatting locale used for a currency when the
// environment does not name one
var homeLocale = map[string]language.Tag{
	"ZAR": language.MustParse("en-ZA"),
	"USD": language.AmericanEnglish,
	"GBP": language.BritishEnglish,
	"EUR": language.German,
}

// prefixSymbols are the currencies whose symbol goes before the amount
var prefixSymbols = map[string]bool{
	"ZAR": true, "USD": true, "GBP": true,
}

// NewMoney returns a formatter for the ISO code. The locale comes from
// LC_MONETARY, LC_ALL or LANG when set, otherwise from the currency's home locale.
func NewMoney(code string) Money {
	return NewMoneyWithLocale(code, detectLocale(code))
}

func NewMoneyWithLocale(code string, tag language.Tag) Money {
	code = strings.ToUpper(code)
	unit, err := currency.ParseISO(code)
	if err != nil {
		unit = currency.XXX
	}
	return Money{Code: code, unit: unit, printer: message.NewPrinter(tag)}
}

func detectLocale(code string) language.Tag {
	for _, env := range []string{"LC_MONETARY", "LC_ALL", "LANG"} {
		v := os.Getenv(env)
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}
		if i := strings.IndexAny(v, ".@"); i != -1 {
			v = v[:i]
		}
		if tag, err := language.Parse(strings.Replace(v, "_", "-", 1)); err == nil {
			return tag
		}
	}
	if tag, ok := homeLocale[strings.ToUpper(code)]; ok {
		return tag
	}
	return language.English
}

func (m Money) symbol() string {
	if m.unit == currency.XXX {
		return m.Code
	}
	return m.printer.Sprint(currency.NarrowSymbol(m.unit))
}

// Format renders an amount without decimals, with the currency symbol
func (m Money) Format(amount float64) string {
	digits := m.printer.Sprint(number.Decimal(amount, number.MaxFractionDigits(0)))
	if prefixSymbols[m.Code] {
		return m.symbol() + digits
	}
	return digits + " " + m.symbol()
}
