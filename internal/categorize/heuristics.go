package categorize

import (
	"regexp"

	"github.com/finlatam/bankparse/internal/domain"
)

// Standalone boolean detectors for common Brazilian banking movements.
// These are independent of the rule scoring engine and usable on their own.

var (
	pixPattern      = regexp.MustCompile(`\bpix\b`)
	tedDocPattern   = regexp.MustCompile(`\bted\b|\bdoc\b|\btev\b|transferencia`)
	salaryPattern   = regexp.MustCompile(`salario|folha de pagamento|provento|pagto folha`)
	taxGuidePattern = regexp.MustCompile(`\bdarf\b|\bgps\b|\bdas\b|\bgare\b|\bdae\b|\biptu\b|\bipva\b|imposto|tributo`)
	feePattern      = regexp.MustCompile(`tarifa|anuidade|cesta de servicos|manutencao de conta|taxa bancaria`)
)

// IsInstantTransfer reports whether the transaction looks like a PIX
// instant transfer.
func IsInstantTransfer(txn domain.BankTransaction) bool {
	return pixPattern.MatchString(Fold(txn.Description))
}

// IsBankTransfer reports whether the transaction looks like a TED/DOC bank
// transfer.
func IsBankTransfer(txn domain.BankTransaction) bool {
	return tedDocPattern.MatchString(Fold(txn.Description))
}

// IsSalaryCredit reports whether the transaction looks like a payroll or
// salary credit.
func IsSalaryCredit(txn domain.BankTransaction) bool {
	return txn.Direction == domain.DirectionCredit && salaryPattern.MatchString(Fold(txn.Description))
}

// IsTaxPayment reports whether the debit looks like a Brazilian tax guide
// payment (DARF, GPS, DAS and friends).
func IsTaxPayment(txn domain.BankTransaction) bool {
	return txn.Direction == domain.DirectionDebit && taxGuidePattern.MatchString(Fold(txn.Description))
}

// IsBankFee reports whether the debit looks like a bank service fee.
func IsBankFee(txn domain.BankTransaction) bool {
	return txn.Direction == domain.DirectionDebit && feePattern.MatchString(Fold(txn.Description))
}
