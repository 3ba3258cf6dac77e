// Package money provides deterministic decimal arithmetic for currency
// amounts, avoiding the rounding drift of float64 accumulation across the
// remittance and export pipelines.
package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a currency value stored as an integer number of cents (or the
// minor unit of whatever currency it represents). All arithmetic on Amount is
// exact; conversion to/from float64 only happens at the I/O boundary
// (parsing extractor hits, formatting CSV/XML output).
type Amount int64

// FromFloat converts a float64 dollar amount to Amount, rounding half-up to
// the nearest cent. Half-up (not banker's rounding) matches §4.8's
// "rounded half-up to 2 decimals" requirement for fee/strip math.
func FromFloat(v float64) Amount {
	return Amount(math.Floor(v*100 + 0.5))
}

// Float returns the dollar value as a float64. Use only for display/JSON;
// never for further arithmetic.
func (a Amount) Float() float64 {
	return float64(a) / 100
}

// String renders the amount as "1234.56".
func (a Amount) String() string {
	neg := a < 0
	v := int64(a)
	if neg {
		v = -v
	}
	whole := v / 100
	frac := v % 100
	s := fmt.Sprintf("%d.%02d", whole, frac)
	if neg {
		s = "-" + s
	}
	return s
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount { return a + b }

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount { return a - b }

// MulRate multiplies the amount by a rate expressed as a fraction (e.g.
// participationPct 0.5) and rounds half-up to the nearest cent.
func (a Amount) MulRate(rate float64) Amount {
	return FromFloat(a.Float() * rate)
}

// ParseMoneyString strips everything except digits and '.', collapses
// repeated dots to the first one, and parses the remainder as a float. This
// is the exact normalization the deterministic extractor (§4.2) must apply
// to strings like "$250,000.00" or "USD 1.234.56" (OCR noise).
func ParseMoneyString(raw string) (float64, bool) {
	var b strings.Builder
	seenDot := false
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && !seenDot:
			b.WriteRune(r)
			seenDot = true
		case r == '.' && seenDot:
			// collapse: drop extra dots
		}
	}
	s := b.String()
	if s == "" || s == "." {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
