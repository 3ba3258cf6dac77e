package deterministic

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// normalize applies the §4.2 normalization rules, which must be reproduced
// exactly. It returns (value, ok) — ok is false when the raw text does not
// resolve to a value under the rule's Kind (e.g. an unmatched boolean).
func normalize(kind Kind, raw string) (string, bool) {
	switch kind {
	case KindMoney:
		return normalizeMoney(raw)
	case KindPercent:
		return normalizePercent(raw)
	case KindInteger:
		return normalizeInteger(raw)
	case KindBoolean:
		return normalizeBoolean(raw)
	case KindDate:
		return normalizeDate(raw)
	default:
		return strings.TrimSpace(raw), raw != ""
	}
}

var nonDigitDot = regexp.MustCompile(`[^0-9.]`)

// stripToDigitsAndDots strips everything but digits and dots, then
// collapses any dot after the first into nothing (§4.2 "collapse multiple
// dots").
func stripToDigitsAndDots(raw string) string {
	stripped := nonDigitDot.ReplaceAllString(raw, "")
	first := strings.IndexByte(stripped, '.')
	if first == -1 {
		return stripped
	}
	return stripped[:first+1] + strings.ReplaceAll(stripped[first+1:], ".", "")
}

func normalizeMoney(raw string) (string, bool) {
	cleaned := stripToDigitsAndDots(raw)
	if cleaned == "" || cleaned == "." {
		return "", false
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return "", false
	}
	return formatNumber(n), true
}

func normalizePercent(raw string) (string, bool) {
	cleaned := stripToDigitsAndDots(raw)
	if cleaned == "" || cleaned == "." {
		return "", false
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return "", false
	}
	return formatNumber(n), true
}

var firstDigits = regexp.MustCompile(`\d+`)

func normalizeInteger(raw string) (string, bool) {
	m := firstDigits.FindString(raw)
	if m == "" {
		return "", false
	}
	return m, true
}

func normalizeBoolean(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "required":
		return "true", true
	case "no", "not required":
		return "false", true
	default:
		return "", false
	}
}

var (
	isoDate     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	slashDate   = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4}|\d{2})`)
	monthDYYYY  = regexp.MustCompile(`^([A-Za-z]+)\s+(\d{1,2}),\s*(\d{4})`)
	dMonthYYYY  = regexp.MustCompile(`^(\d{1,2})[-\s]([A-Za-z]+)[-\s](\d{4})`)
	monthNames  = map[string]time.Month{
		"january": time.January, "february": time.February, "march": time.March,
		"april": time.April, "may": time.May, "june": time.June, "july": time.July,
		"august": time.August, "september": time.September, "october": time.October,
		"november": time.November, "december": time.December,
		"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
		"jun": time.June, "jul": time.July, "aug": time.August, "sep": time.September,
		"oct": time.October, "nov": time.November, "dec": time.December,
	}
)

// normalizeDate accepts YYYY-MM-DD, M/D/YY[YY], "Month D, YYYY", and
// "D[-space]Mon[-space]YYYY", outputting canonical YYYY-MM-DD or (ok=false)
// when nothing matches. Two-digit years resolve to 20YY (§4.2).
func normalizeDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)

	if m := isoDate.FindString(raw); m != "" {
		if _, err := time.Parse("2006-01-02", m); err == nil {
			return m, true
		}
	}

	if m := slashDate.FindStringSubmatch(raw); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year := resolveYear(m[3])
		return isoFormat(year, month, day), isValidDate(year, month, day)
	}

	if m := monthDYYYY.FindStringSubmatch(raw); m != nil {
		mon, ok := monthNames[strings.ToLower(m[1])]
		if !ok {
			return "", false
		}
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		return isoFormat(year, int(mon), day), isValidDate(year, int(mon), day)
	}

	if m := dMonthYYYY.FindStringSubmatch(raw); m != nil {
		day, _ := strconv.Atoi(m[1])
		mon, ok := monthNames[strings.ToLower(m[2])]
		if !ok {
			return "", false
		}
		year, _ := strconv.Atoi(m[3])
		return isoFormat(year, int(mon), day), isValidDate(year, int(mon), day)
	}

	return "", false
}

func resolveYear(raw string) int {
	y, _ := strconv.Atoi(raw)
	if len(raw) == 2 {
		return 2000 + y
	}
	return y
}

func isoFormat(year, month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

func isValidDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Year() == year && int(t.Month()) == month && t.Day() == day
}

// formatNumber renders a float in its shortest exact form, so 7.125 stays
// "7.125" (not "7.125000") and 100000.00 becomes "100000".
func formatNumber(n float64) string {
	s := strconv.FormatFloat(n, 'f', -1, 64)
	return s
}
