package validate

import (
	"regexp"
	"strings"
)

// Brazilian tax-ID checksum validators, used for account identity checks.
// Both CNPJ and CPF use mod-11 check digits over the cleaned digit string.

var nonDigits = regexp.MustCompile(`\D`)

var cnpjWeightsFirst = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
var cnpjWeightsSecond = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}

// ValidCNPJ validates a Brazilian corporate taxpayer number, with or without
// punctuation. Strings of 14 identical digits are rejected outright: they
// pass the checksum but are common invalid placeholders.
func ValidCNPJ(s string) bool {
	digits := nonDigits.ReplaceAllString(s, "")
	if len(digits) != 14 || allSame(digits) {
		return false
	}

	if digitAt(digits, 12) != mod11Check(digits[:12], cnpjWeightsFirst) {
		return false
	}
	return digitAt(digits, 13) == mod11Check(digits[:13], cnpjWeightsSecond)
}

// ValidCPF validates a Brazilian individual taxpayer number, with or without
// punctuation. Strings of 11 identical digits are rejected outright.
func ValidCPF(s string) bool {
	digits := nonDigits.ReplaceAllString(s, "")
	if len(digits) != 11 || allSame(digits) {
		return false
	}

	if digitAt(digits, 9) != cpfCheck(digits[:9], 10) {
		return false
	}
	return digitAt(digits, 10) == cpfCheck(digits[:10], 11)
}

// mod11Check computes a CNPJ check digit with the given weight table.
func mod11Check(digits string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}

// cpfCheck computes a CPF check digit with descending weights starting at
// firstWeight.
func cpfCheck(digits string, firstWeight int) int {
	sum := 0
	for i := range digits {
		sum += int(digits[i]-'0') * (firstWeight - i)
	}
	rem := (sum * 10) % 11
	if rem == 10 {
		return 0
	}
	return rem
}

func digitAt(digits string, i int) int {
	return int(digits[i] - '0')
}

func allSame(digits string) bool {
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			return false
		}
	}
	return true
}

var (
	bankCodePattern = regexp.MustCompile(`^\d{3}$`)
	branchPattern   = regexp.MustCompile(`^\d{4,5}(-?[\dxX])?$`)
	accountPattern  = regexp.MustCompile(`^\d{5,12}(-?[\dxX])?$`)
)

// ValidBankAccount checks the Brazilian account identity format: a 3-digit
// bank code, a 4–5-digit branch with optional check digit, and a 5–12-digit
// account number with optional check digit.
func ValidBankAccount(bankCode, branchCode, accountNumber string) bool {
	return bankCodePattern.MatchString(strings.TrimSpace(bankCode)) &&
		branchPattern.MatchString(strings.TrimSpace(branchCode)) &&
		accountPattern.MatchString(strings.TrimSpace(accountNumber))
}
