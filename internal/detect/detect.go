// Package detect decides which statement format a raw file carries, from its
// extension first and its content as a fallback.
package detect

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/finlatam/bankparse/internal/domain"
)

// delimiters are the candidate CSV field separators, in tie-break order.
// Semicolon first: most Brazilian bank exports use it.
var delimiters = []rune{';', ',', '\t', '|'}

// Detect returns the statement format for the given file content and name.
// Extension wins when it is unambiguous; .txt and unknown extensions fall
// back to content inspection.
func Detect(content, fileName string) (domain.Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".ofx":
		return domain.FormatOFX, nil
	case ".qfx":
		return domain.FormatQFX, nil
	case ".csv":
		return domain.FormatCSV, nil
	case ".txt":
		if HasOFXRoot(content) {
			return domain.FormatOFX, nil
		}
		if looksDelimited(content) {
			return domain.FormatTXT, nil
		}
	default:
		if HasOFXRoot(content) {
			return domain.FormatOFX, nil
		}
		if looksDelimited(content) {
			return domain.FormatCSV, nil
		}
	}

	return "", fmt.Errorf("could not detect statement format for %q: supported formats are OFX, QFX, CSV and delimited TXT", fileName)
}

// HasOFXRoot reports whether the content contains an <OFX> root tag,
// case-insensitive. OFX 1.x SGML headers before the tag are fine.
func HasOFXRoot(content string) bool {
	return strings.Contains(strings.ToUpper(content), "<OFX>")
}

// DetectDelimiter picks the most frequent candidate delimiter on the given
// line, defaulting to ';' on a tie.
func DetectDelimiter(line string) rune {
	best := delimiters[0]
	bestCount := strings.Count(line, string(best))
	for _, d := range delimiters[1:] {
		if c := strings.Count(line, string(d)); c > bestCount {
			best = d
			bestCount = c
		}
	}
	return best
}

// looksDelimited reports whether the first non-blank content line splits into
// at least 3 columns by its most frequent candidate delimiter.
func looksDelimited(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		d := DetectDelimiter(line)
		return len(strings.Split(line, string(d))) >= 3
	}
	return false
}
