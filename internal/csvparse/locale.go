package csvparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// splitFields tokenizes one row respecting quoted fields: a quote toggles
// quote state, a doubled quote inside a quoted field is an escaped literal
// quote, and the delimiter inside quotes is not a separator.
func splitFields(line string, delim rune) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				cur.WriteRune('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case r == delim && !inQuotes:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	fields = append(fields, cur.String())
	return fields
}

// ParseAmount parses a monetary value in either Brazilian (1.234,56) or US
// (1,234.56) convention. When the last comma occurs after the last dot the
// comma is the decimal separator and dots are thousands separators, and vice
// versa; a lone comma is always the decimal separator. Negativity comes from
// a leading or trailing minus, a trailing "D" (débito) marker, or
// parenthesization, and is applied after parsing the magnitude.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount is empty")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	if strings.HasSuffix(s, "-") {
		negative = true
		s = s[:len(s)-1]
	}
	switch {
	case strings.HasSuffix(strings.ToUpper(strings.TrimSpace(s)), "D"):
		negative = true
		s = strings.TrimSpace(s)
		s = s[:len(s)-1]
	case strings.HasSuffix(strings.ToUpper(strings.TrimSpace(s)), "C"):
		s = strings.TrimSpace(s)
		s = s[:len(s)-1]
	}

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, fmt.Errorf("amount %q contains no digits", s)
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")
	if lastComma > lastDot {
		// Brazilian convention: dots are thousands, comma is decimal.
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		idx := strings.LastIndex(cleaned, ",")
		cleaned = strings.ReplaceAll(cleaned[:idx], ",", "") + "." + cleaned[idx+1:]
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		if first, last := strings.Index(cleaned, "."), strings.LastIndex(cleaned, "."); first != last {
			cleaned = strings.ReplaceAll(cleaned[:last], ".", "") + cleaned[last:]
		}
	}

	magnitude, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if negative {
		magnitude = -magnitude
	}
	return magnitude, nil
}

var twoDigitYearPattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2})$`)

// dateLayouts are tried in priority order after any explicitly configured
// format.
var dateLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"2006-01-02",
}

// fallbackLayouts are the last-resort generic formats.
var fallbackLayouts = []string{
	"2006/01/02",
	"02.01.2006",
	"20060102",
	time.RFC3339,
}

// ParseDate parses a transaction date. An explicitly configured Go layout
// takes priority; then DD/MM/YYYY, DD-MM-YYYY, YYYY-MM-DD, DD/MM/YY (2-digit
// years below 50 are 2000s, the rest 1900s), then generic fallbacks.
func ParseDate(s, layout string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date is empty")
	}

	if layout != "" {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}

	if m := twoDigitYearPattern.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		yy, _ := strconv.Atoi(m[3])
		year := 1900 + yy
		if yy < 50 {
			year = 2000 + yy
		}
		full := fmt.Sprintf("%02d/%02d/%d", day, month, year)
		if t, err := time.Parse("02/01/2006", full); err == nil {
			return t, nil
		}
	}

	for _, l := range fallbackLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unparsable date %q", s)
}
