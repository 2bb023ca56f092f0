// Package words renders decimal amounts as English words for printed plan
// schedules and contract documents. It is pure and carries no state.
package words

import (
	"strings"

	"github.com/shopspring/decimal"
)

var ones = []string{
	"zero", "one", "two", "three", "four", "five", "six", "seven", "eight",
	"nine", "ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen",
	"sixteen", "seventeen", "eighteen", "nineteen",
}

var tens = []string{
	"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy",
	"eighty", "ninety",
}

var scales = []struct {
	value int64
	name  string
}{
	{1_000_000_000_000, "trillion"},
	{1_000_000_000, "billion"},
	{1_000_000, "million"},
	{1_000, "thousand"},
}

// Int converts a non-negative integer to English words.
func Int(n int64) string {
	if n < 0 {
		return "minus " + Int(-n)
	}
	if n < 20 {
		return ones[n]
	}
	if n < 100 {
		s := tens[n/10]
		if n%10 != 0 {
			s += "-" + ones[n%10]
		}
		return s
	}
	if n < 1000 {
		s := ones[n/100] + " hundred"
		if n%100 != 0 {
			s += " " + Int(n%100)
		}
		return s
	}
	for _, sc := range scales {
		if n >= sc.value {
			s := Int(n/sc.value) + " " + sc.name
			if n%sc.value != 0 {
				s += " " + Int(n%sc.value)
			}
			return s
		}
	}
	return ones[0]
}

// Amount converts a decimal amount to words, rendering any fraction as
// cents over one hundred: 1250.50 -> "one thousand two hundred fifty and
// 50/100".
func Amount(d decimal.Decimal) string {
	d = d.Round(2)
	whole := d.IntPart()
	cents := d.Sub(decimal.NewFromInt(whole)).Mul(decimal.NewFromInt(100)).IntPart()
	if cents < 0 {
		cents = -cents
	}
	s := Int(whole)
	if cents != 0 {
		s += " and " + pad2(cents) + "/100"
	}
	return s
}

// Title renders the amount in words with leading capitals, the form used on
// printed documents.
func Title(d decimal.Decimal) string {
	s := Amount(d)
	parts := strings.Split(s, " ")
	for i, p := range parts {
		if p == "and" || strings.Contains(p, "/") {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + string(rune('0'+n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}
