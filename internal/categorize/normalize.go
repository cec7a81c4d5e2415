package categorize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	datePattern = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}(?:[/-]\d{2,4})?\b|\b\d{4}-\d{2}-\d{2}\b`)
	timePattern = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?\b`)
	punctuation = regexp.MustCompile(`[^a-z0-9 ]+`)
	whitespace  = regexp.MustCompile(`\s+`)

	// transactionalPrefixes are common payment/transfer markers stripped
	// from the front of a normalized description.
	transactionalPrefixes = []string{
		"pagamento de ", "pagamento ", "pagto ", "pgto ",
		"transferencia ", "transf ", "compra com cartao ", "compra ",
		"deb ", "cred ",
	}
)

// Fold lowercases and strips diacritics, so "Transferência" and
// "TRANSFERENCIA" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// NormalizeDescription produces the canonical lower-cased description:
// punctuation stripped to whitespace, embedded dates/times and long
// transaction codes removed, transactional prefixes dropped, whitespace
// collapsed. The function is idempotent.
func NormalizeDescription(s string) string {
	s = datePattern.ReplaceAllString(s, " ")
	s = timePattern.ReplaceAllString(s, " ")
	s = stripCodes(s)

	s = Fold(s)
	s = punctuation.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	for changed := true; changed; {
		changed = false
		for _, prefix := range transactionalPrefixes {
			if strings.HasPrefix(s, prefix) {
				s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
				changed = true
			}
		}
	}

	return s
}

// stripCodes removes long alphanumeric transaction codes: tokens of 6+
// characters made only of capitals and digits, containing at least one
// digit. Requiring a digit keeps ordinary ALL-CAPS words intact.
func stripCodes(s string) string {
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if isCode(f) {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

func isCode(token string) bool {
	if len(token) < 6 {
		return false
	}
	hasDigit := false
	for _, r := range token {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return hasDigit
}

// payeePatterns capture "payment to X" / "transfer to/from X" / "purchase X"
// phrasing on the folded description. Tried in order; first match wins.
var payeePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:pagamento|pagto|pgto)(?: de| a| para)? (.+)$`),
	regexp.MustCompile(`(?:transferencia|transf|ted|doc|pix)(?: recebid[oa]| enviad[oa])?(?: de| para) (.+)$`),
	regexp.MustCompile(`compra(?: com cartao)?(?: no| em)? (.+)$`),
}

// capsToken matches an all-caps word usable in the fallback payee guess.
var capsToken = regexp.MustCompile(`^[A-Z][A-Z0-9]*$`)

// abbreviations are short banking tokens excluded from the fallback guess.
var abbreviations = map[string]struct{}{
	"TED": {}, "DOC": {}, "PIX": {}, "TEV": {}, "POS": {},
	"ATM": {}, "DEB": {}, "CRED": {}, "REF": {}, "PAG": {},
}

// ExtractPayee extracts a best-effort payee name from a transaction
// description. Returns "" when nothing plausible is found.
func ExtractPayee(description string) string {
	folded := whitespace.ReplaceAllString(punctuation.ReplaceAllString(Fold(description), " "), " ")
	folded = strings.TrimSpace(folded)

	for _, re := range payeePatterns {
		if m := re.FindStringSubmatch(folded); m != nil {
			if payee := strings.TrimSpace(m[1]); payee != "" {
				return payee
			}
		}
	}

	return longestCapsRun(description)
}

// longestCapsRun finds the longest run of consecutive all-caps tokens of 3+
// characters, excluding pure numbers and short banking abbreviations. Bank
// exports usually render the counterparty name in capitals.
func longestCapsRun(s string) string {
	var best, current []string
	for _, token := range strings.Fields(s) {
		trimmed := strings.Trim(token, ".,;:-")
		if isPayeeToken(trimmed) {
			current = append(current, trimmed)
			if len(current) > len(best) {
				best = current
			}
			continue
		}
		current = nil
	}
	return strings.Join(best, " ")
}

func isPayeeToken(token string) bool {
	if len(token) < 3 {
		return false
	}
	if !capsToken.MatchString(token) {
		return false
	}
	if _, short := abbreviations[token]; short && len(token) <= 4 {
		return false
	}
	allDigits := true
	for _, r := range token {
		if r < '0' || r > '9' {
			allDigits = false
			break
		}
	}
	return !allDigits
}
