package validate

import (
	"math"
	"testing"
	"time"

	"github.com/finlatam/bankparse/internal/domain"
)

func day(d int) time.Time {
	return time.Date(2025, 7, d, 0, 0, 0, 0, time.UTC)
}

func validStatement() *domain.BankStatementData {
	return &domain.BankStatementData{
		Format: domain.FormatOFX,
		Account: domain.BankAccount{
			BankCode:      "341",
			BranchCode:    "0456",
			AccountNumber: "12345-6",
			Type:          domain.AccountTypeChecking,
		},
		Period: domain.Period{Start: day(1), End: day(31)},
		Balance: domain.Balance{
			Opening:  1000,
			Closing:  1250,
			Currency: "BRL",
		},
		Transactions: []domain.BankTransaction{
			{FitID: "T1", Date: day(10), Amount: 500, Direction: domain.DirectionCredit, Type: domain.TypeDeposit, Description: "TED RECEBIDA"},
			{FitID: "T2", Date: day(12), Amount: -250, Direction: domain.DirectionDebit, Type: domain.TypePayment, Description: "PAGAMENTO BOLETO"},
		},
	}
}

func hasIssue(issues []domain.Issue, code string) bool {
	for _, i := range issues {
		if i.Code == code {
			return true
		}
	}
	return false
}

func TestStatement_Valid(t *testing.T) {
	r := Statement(validStatement(), Options{CheckBalance: true, DetectDuplicates: true})

	if !r.IsValid {
		t.Fatalf("IsValid = false; errors: %+v", r.Errors)
	}
	if len(r.Errors) != 0 {
		t.Errorf("Errors = %+v; want none", r.Errors)
	}
	if len(r.Warnings) != 0 {
		t.Errorf("Warnings = %+v; want none", r.Warnings)
	}
}

func TestStatement_MissingAccountNumber(t *testing.T) {
	stmt := validStatement()
	stmt.Account.AccountNumber = ""

	r := Statement(stmt, Options{})
	if r.IsValid {
		t.Error("OFX statement without account number should be invalid")
	}
	if !hasIssue(r.Errors, CodeMissingAccountNumber) {
		t.Errorf("missing %s error; got %+v", CodeMissingAccountNumber, r.Errors)
	}

	// CSV exports rarely carry account identity: degrade, don't error.
	stmt.Format = domain.FormatCSV
	stmt.Account.BankCode = ""
	r = Statement(stmt, Options{})
	if !r.IsValid {
		t.Errorf("CSV statement without account number should stay valid; errors: %+v", r.Errors)
	}
	if !hasIssue(r.Warnings, CodeMissingBankCode) {
		t.Errorf("missing %s warning; got %+v", CodeMissingBankCode, r.Warnings)
	}
}

func TestStatement_InvalidPeriod(t *testing.T) {
	stmt := validStatement()
	stmt.Period.End = day(1)
	stmt.Period.Start = day(31)

	r := Statement(stmt, Options{})
	if r.IsValid || !hasIssue(r.Errors, CodeInvalidPeriod) {
		t.Errorf("inverted period should raise %s; got %+v", CodeInvalidPeriod, r.Errors)
	}

	stmt = validStatement()
	stmt.Period = domain.Period{}
	// Zero period also makes both transactions out-of-period irrelevant:
	// the period check short-circuits.
	r = Statement(stmt, Options{})
	if r.IsValid || !hasIssue(r.Errors, CodeInvalidPeriod) {
		t.Errorf("missing period should raise %s; got %+v", CodeInvalidPeriod, r.Errors)
	}
}

func TestStatement_PeriodTooLong(t *testing.T) {
	stmt := validStatement()
	stmt.Period.End = stmt.Period.Start.AddDate(2, 0, 0)

	r := Statement(stmt, Options{})
	if !r.IsValid {
		t.Errorf("long period is a warning, not an error; got %+v", r.Errors)
	}
	if !hasIssue(r.Warnings, CodePeriodTooLong) {
		t.Errorf("missing %s warning; got %+v", CodePeriodTooLong, r.Warnings)
	}
}

func TestStatement_BalanceMismatch(t *testing.T) {
	// 1000 + (500 - 250) = 1250: consistent.
	r := Statement(validStatement(), Options{CheckBalance: true})
	if hasIssue(r.Warnings, CodeBalanceMismatch) {
		t.Errorf("consistent balance flagged: %+v", r.Warnings)
	}

	stmt := validStatement()
	stmt.Balance.Closing = 1400
	r = Statement(stmt, Options{CheckBalance: true})
	if !r.IsValid {
		t.Error("balance mismatch must stay a warning")
	}
	if !hasIssue(r.Warnings, CodeBalanceMismatch) {
		t.Errorf("missing %s warning; got %+v", CodeBalanceMismatch, r.Warnings)
	}
}

func TestStatement_BalanceCheckSkips(t *testing.T) {
	// Zero opening balance (the OFX case) skips the check entirely.
	stmt := validStatement()
	stmt.Balance.Opening = 0
	stmt.Balance.Closing = 9999

	r := Statement(stmt, Options{CheckBalance: true})
	if hasIssue(r.Warnings, CodeBalanceMismatch) {
		t.Errorf("zero opening balance must skip the check; got %+v", r.Warnings)
	}

	// Disabled check never warns.
	stmt = validStatement()
	stmt.Balance.Closing = 1400
	r = Statement(stmt, Options{CheckBalance: false})
	if hasIssue(r.Warnings, CodeBalanceMismatch) {
		t.Errorf("disabled check still warned: %+v", r.Warnings)
	}
}

func TestStatement_InvalidTransactions(t *testing.T) {
	stmt := validStatement()
	stmt.Transactions = append(stmt.Transactions,
		domain.BankTransaction{FitID: "", Date: day(15), Amount: 10},
		domain.BankTransaction{FitID: "T9", Date: day(15), Amount: math.NaN()},
	)

	r := Statement(stmt, Options{})
	if r.IsValid {
		t.Error("statement with invalid transactions should be invalid")
	}

	count := 0
	for _, e := range r.Errors {
		if e.Code == CodeInvalidTransaction {
			count++
		}
	}
	if count != 2 {
		t.Errorf("got %d %s errors; want 2", count, CodeInvalidTransaction)
	}
}

func TestStatement_DirectionMismatchWarning(t *testing.T) {
	stmt := validStatement()
	stmt.Transactions[0].Direction = domain.DirectionDebit // amount is +500

	r := Statement(stmt, Options{})
	if !r.IsValid {
		t.Error("direction mismatch must stay a warning")
	}
	if !hasIssue(r.Warnings, CodeDirectionMismatch) {
		t.Errorf("missing %s warning; got %+v", CodeDirectionMismatch, r.Warnings)
	}
}

func TestStatement_OutOfPeriodWarning(t *testing.T) {
	stmt := validStatement()
	stmt.Transactions[0].Date = time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)

	r := Statement(stmt, Options{})
	if !r.IsValid {
		t.Error("out-of-period transaction must stay a warning")
	}
	if !hasIssue(r.Warnings, CodeOutOfPeriod) {
		t.Errorf("missing %s warning; got %+v", CodeOutOfPeriod, r.Warnings)
	}
}

func TestStatement_DuplicateWarning(t *testing.T) {
	stmt := validStatement()
	stmt.Transactions = append(stmt.Transactions, stmt.Transactions[0])

	r := Statement(stmt, Options{DetectDuplicates: true})
	if !r.IsValid {
		t.Error("duplicates must stay warnings")
	}
	if !hasIssue(r.Warnings, CodeDuplicateTransaction) {
		t.Errorf("missing %s warning; got %+v", CodeDuplicateTransaction, r.Warnings)
	}

	// Detection disabled: same data, no warning.
	r = Statement(stmt, Options{DetectDuplicates: false})
	if hasIssue(r.Warnings, CodeDuplicateTransaction) {
		t.Errorf("disabled detection still warned: %+v", r.Warnings)
	}
}
