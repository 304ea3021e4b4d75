// Package locale formats numbers and dates for Indonesian-language copy.
package locale

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.Indonesian)

var months = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// Number formats n with Indonesian digit grouping: 12500 -> "12.500".
func Number(n int) string {
	return printer.Sprintf("%d", n)
}

// Quantity formats an amount with its unit: "3 pcs".
func Quantity(n int, unit string) string {
	if unit == "" {
		return Number(n)
	}
	return Number(n) + " " + unit
}

// Rupiah formats a price rounded to whole rupiah: "Rp12.500".
func Rupiah(d decimal.Decimal) string {
	n := d.Round(0).IntPart()
	if n < 0 {
		return "-Rp" + printer.Sprintf("%d", -n)
	}
	return "Rp" + printer.Sprintf("%d", n)
}

// Date formats t as "2 Januari 2026".
func Date(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), months[t.Month()-1], t.Year())
}

// ShortDate formats t as "02/01/2006".
func ShortDate(t time.Time) string {
	return t.Format("02/01/2006")
}
