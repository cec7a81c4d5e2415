// Package validate checks structural validity, balance consistency, and
// duplicate transactions in parsed bank statements.
package validate

import (
	"fmt"
	"math"
	"time"

	"github.com/finlatam/bankparse/internal/domain"
)

// Error codes. Errors mark data the pipeline cannot trust.
const (
	CodeMissingAccountNumber = "MISSING_ACCOUNT_NUMBER"
	CodeInvalidPeriod        = "INVALID_PERIOD"
	CodeInvalidBalance       = "INVALID_BALANCE"
	CodeInvalidTransaction   = "INVALID_TRANSACTION"
)

// Warning codes. Warnings mark suspicious-but-usable data and never abort
// processing.
const (
	CodeMissingBankCode      = "MISSING_BANK_CODE"
	CodePeriodTooLong        = "PERIOD_TOO_LONG"
	CodeBalanceMismatch      = "BALANCE_MISMATCH"
	CodeDirectionMismatch    = "DIRECTION_MISMATCH"
	CodeOutOfPeriod          = "TRANSACTION_OUT_OF_PERIOD"
	CodeDuplicateTransaction = "DUPLICATE_TRANSACTION"
)

// maxPeriodDays is the statement length beyond which a warning is raised.
const maxPeriodDays = 365

// Result contains all validation errors and warnings for a statement.
type Result struct {
	IsValid  bool
	Errors   []domain.Issue
	Warnings []domain.Issue
}

// Options toggle individual checks.
type Options struct {
	CheckBalance     bool
	DetectDuplicates bool
	// History is an externally supplied set of previously persisted
	// transactions, used to prevent re-importing an already-reconciled
	// statement.
	History []domain.BankTransaction
}

// Statement validates a parsed statement. Structural problems become errors;
// source-data limitations (missing bank code, balance mismatch, duplicates)
// degrade to warnings because real exports are routinely imperfect.
func Statement(stmt *domain.BankStatementData, opts Options) Result {
	r := Result{}

	if stmt.Account.AccountNumber == "" && stmt.Format != domain.FormatCSV && stmt.Format != domain.FormatTXT {
		r.Errors = append(r.Errors, domain.Issue{
			Code:    CodeMissingAccountNumber,
			Field:   "account.accountNumber",
			Message: "statement has no account number",
		})
	}
	if stmt.Account.BankCode == "" {
		r.Warnings = append(r.Warnings, domain.Issue{
			Code:    CodeMissingBankCode,
			Field:   "account.bankCode",
			Message: "statement has no bank code; account identity checks are unavailable",
		})
	}

	r.checkPeriod(stmt)
	r.checkTransactions(stmt)

	if opts.CheckBalance {
		r.checkBalance(stmt)
	}
	if opts.DetectDuplicates {
		for _, d := range FindDuplicates(stmt.Transactions, opts.History) {
			r.Warnings = append(r.Warnings, domain.Issue{
				Code:    CodeDuplicateTransaction,
				Field:   fmt.Sprintf("transactions[%d]", d.Index),
				Message: d.Reason,
			})
		}
	}

	r.IsValid = len(r.Errors) == 0
	return r
}

func (r *Result) checkPeriod(stmt *domain.BankStatementData) {
	p := stmt.Period
	if p.Start.IsZero() || p.End.IsZero() {
		r.Errors = append(r.Errors, domain.Issue{
			Code:    CodeInvalidPeriod,
			Field:   "period",
			Message: "statement period is missing a start or end date",
		})
		return
	}
	if p.End.Before(p.Start) {
		r.Errors = append(r.Errors, domain.Issue{
			Code:    CodeInvalidPeriod,
			Field:   "period",
			Message: fmt.Sprintf("period end %s precedes start %s", p.End.Format("2006-01-02"), p.Start.Format("2006-01-02")),
		})
		return
	}
	if p.Duration() > maxPeriodDays*24*time.Hour {
		r.Warnings = append(r.Warnings, domain.Issue{
			Code:    CodePeriodTooLong,
			Field:   "period",
			Message: fmt.Sprintf("statement period spans more than %d days", maxPeriodDays),
		})
	}
}

func (r *Result) checkTransactions(stmt *domain.BankStatementData) {
	for i, txn := range stmt.Transactions {
		field := fmt.Sprintf("transactions[%d]", i)

		if txn.FitID == "" || txn.Date.IsZero() {
			r.Errors = append(r.Errors, domain.Issue{
				Code:    CodeInvalidTransaction,
				Field:   field,
				Message: "transaction is missing its ID or date",
			})
			continue
		}
		if math.IsNaN(txn.Amount) || math.IsInf(txn.Amount, 0) {
			r.Errors = append(r.Errors, domain.Issue{
				Code:    CodeInvalidTransaction,
				Field:   field,
				Message: fmt.Sprintf("transaction %s has a non-finite amount", txn.FitID),
			})
			continue
		}

		if txn.Direction != domain.DirectionFor(txn.Amount) {
			r.Warnings = append(r.Warnings, domain.Issue{
				Code:    CodeDirectionMismatch,
				Field:   field,
				Message: fmt.Sprintf("transaction %s direction %s is inconsistent with amount %.2f", txn.FitID, txn.Direction, txn.Amount),
			})
		}
		if !stmt.Period.Start.IsZero() && !stmt.Period.Contains(txn.Date) {
			r.Warnings = append(r.Warnings, domain.Issue{
				Code:    CodeOutOfPeriod,
				Field:   field,
				Message: fmt.Sprintf("transaction %s dated %s falls outside the statement period", txn.FitID, txn.Date.Format("2006-01-02")),
			})
		}
	}
}

// checkBalance verifies closing ≈ opening + Σ(amount). Only runs when there
// are transactions and a non-zero opening balance: OFX never supplies an
// opening balance, so the check is effectively CSV/internal-only. A
// discrepancy is a warning, never an error, because source data limitations
// are expected.
func (r *Result) checkBalance(stmt *domain.BankStatementData) {
	if len(stmt.Transactions) == 0 || stmt.Balance.Opening == 0 {
		return
	}
	if !stmt.BalanceConsistent() {
		var sum float64
		for _, t := range stmt.Transactions {
			sum += t.Amount
		}
		r.Warnings = append(r.Warnings, domain.Issue{
			Code:  CodeBalanceMismatch,
			Field: "balance",
			Message: fmt.Sprintf("declared closing balance %.2f differs from computed %.2f (opening %.2f + movements %.2f)",
				stmt.Balance.Closing, stmt.Balance.Opening+sum, stmt.Balance.Opening, sum),
		})
	}
}
