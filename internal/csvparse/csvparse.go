// Package csvparse parses delimited bank statement exports. It detects the
// delimiter, header presence, and bank-specific column layout, and tolerates
// the locale-specific numeric and date encodings of Brazilian bank exports.
package csvparse

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/finlatam/bankparse/internal/detect"
	"github.com/finlatam/bankparse/internal/domain"
)

// Options carry caller overrides. Explicit column indices bypass dialect
// auto-detection; zero values mean "detect".
type Options struct {
	Delimiter         rune   // 0 = auto-detect
	HasHeader         *bool  // nil = auto-detect
	DateFormat        string // Go layout; "" = try known layouts
	DateColumn        *int
	AmountColumn      *int
	DescriptionColumn *int
}

// Result is the parse output plus dialect metadata. Dialect detection is
// advisory only; the caller sees which mapping was applied.
type Result struct {
	Statement   *domain.BankStatementData
	Dialect     string
	Delimiter   rune
	SkippedRows int
}

// defaultCurrency is assumed for CSV exports, which never declare one.
const defaultCurrency = "BRL"

// IsValidCSV reports whether the content has at least 2 non-blank lines and
// at least 3 detected columns on the first.
func IsValidCSV(content string) bool {
	lines := contentLines(content)
	if len(lines) < 2 {
		return false
	}
	delim := detect.DetectDelimiter(lines[0].text)
	return len(splitFields(lines[0].text, delim)) >= 3
}

// Parse extracts a normalized statement from delimited text content.
func Parse(content, fileName string, opts Options) (*Result, error) {
	lines := contentLines(content)
	if len(lines) < 2 {
		return nil, fmt.Errorf("CSV content has %d non-blank lines, need at least 2", len(lines))
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = detect.DetectDelimiter(lines[0].text)
	}

	firstFields := splitFields(lines[0].text, delim)
	if len(firstFields) < 3 {
		return nil, fmt.Errorf("first CSV line has %d columns, need at least 3", len(firstFields))
	}

	hasHeader := DetectHeader(firstFields)
	if opts.HasHeader != nil {
		hasHeader = *opts.HasHeader
	}

	dialect := GenericDialect
	if hasHeader {
		dialect = DetectDialect(firstFields)
	}

	// User-supplied column indices always override the detected dialect.
	if opts.DateColumn != nil {
		dialect.DateCol = *opts.DateColumn
	}
	if opts.AmountColumn != nil {
		dialect.AmountCol = *opts.AmountColumn
	}
	if opts.DescriptionColumn != nil {
		dialect.DescCol = *opts.DescriptionColumn
	}

	dataLines := lines
	if hasHeader {
		dataLines = lines[1:]
	}

	transactions := make([]domain.BankTransaction, 0, len(dataLines))
	skipped := 0
	for _, line := range dataLines {
		txn, ok := parseRow(line, delim, dialect, opts.DateFormat)
		if !ok {
			// Rows with blank or unparsable date/amount are section headers
			// or footers embedded in the export, not data corruption.
			skipped++
			continue
		}
		transactions = append(transactions, txn)
	}

	if len(transactions) == 0 {
		return nil, fmt.Errorf("no valid transactions extracted from CSV (%d rows skipped)", skipped)
	}

	domain.SortTransactions(transactions)

	// CSV rarely states an opening balance: opening stays 0 and closing is
	// the running sum over the parsed transactions.
	var sum float64
	for _, t := range transactions {
		sum += t.Amount
	}

	stmt := &domain.BankStatementData{
		Format: domain.FormatCSV,
		Account: domain.BankAccount{
			Type:     domain.AccountTypeChecking,
			Currency: defaultCurrency,
		},
		Period: domain.Period{
			Start:       transactions[0].Date,
			End:         transactions[len(transactions)-1].Date,
			GeneratedAt: time.Now(),
		},
		Balance: domain.Balance{
			Closing:  sum,
			Currency: defaultCurrency,
			AsOf:     transactions[len(transactions)-1].Date,
		},
		Transactions: transactions,
	}
	stmt.Summary = domain.ComputeSummary(stmt.Transactions)

	return &Result{
		Statement:   stmt,
		Dialect:     dialect.Name,
		Delimiter:   delim,
		SkippedRows: skipped,
	}, nil
}

// numberedLine keeps the source line number so synthetic IDs stay unique
// even when content repeats.
type numberedLine struct {
	number int // 1-based line number in the source file
	text   string
}

func contentLines(content string) []numberedLine {
	content = strings.TrimPrefix(content, "﻿")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	var lines []numberedLine
	for i, raw := range strings.Split(content, "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		lines = append(lines, numberedLine{number: i + 1, text: raw})
	}
	return lines
}

// parseRow extracts one transaction from a data row. Returns false when the
// row must be skipped.
func parseRow(line numberedLine, delim rune, dialect Dialect, dateFormat string) (domain.BankTransaction, bool) {
	fields := splitFields(line.text, delim)

	dateStr := fieldAt(fields, dialect.DateCol)
	amountStr := fieldAt(fields, dialect.AmountCol)
	if dateStr == "" || amountStr == "" {
		return domain.BankTransaction{}, false
	}

	date, err := ParseDate(dateStr, dateFormat)
	if err != nil {
		return domain.BankTransaction{}, false
	}
	amount, err := ParseAmount(amountStr)
	if err != nil {
		return domain.BankTransaction{}, false
	}

	description := fieldAt(fields, dialect.DescCol)

	txn, err := domain.NewBankTransaction(syntheticFitID(date, amount, description, line.number), date, amount, description)
	if err != nil {
		return domain.BankTransaction{}, false
	}
	txn.Type = inferType(fieldAt(fields, dialect.TypeCol), description)
	txn.Raw = map[string]string{"row": line.text}
	return *txn, true
}

func fieldAt(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

// syntheticFitID derives a unique transaction ID from date, absolute amount,
// a hash of the description, and the source line number. The line number
// guarantees uniqueness within one file even when content repeats.
func syntheticFitID(date time.Time, amount float64, description string, lineNumber int) string {
	cents := fmt.Sprintf("%.2f", amount)
	cents = strings.ReplaceAll(cents, ".", "")
	cents = strings.TrimPrefix(cents, "-")

	hash := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(description))))
	return fmt.Sprintf("csv-%s-%s-%s-%d", date.Format("20060102"), cents, hex.EncodeToString(hash[:4]), lineNumber)
}

// typeKeywords maps Brazilian transaction vocabulary to the internal enum.
// First match in order wins.
var typeKeywords = []struct {
	word string
	t    domain.TransactionType
}{
	{"pix", domain.TypeTransfer},
	{"ted", domain.TypeTransfer},
	{"doc ", domain.TypeTransfer},
	{"transf", domain.TypeTransfer},
	{"tarifa", domain.TypeFee},
	{"tar ", domain.TypeFee},
	{"juros", domain.TypeInterest},
	{"rendimento", domain.TypeInterest},
	{"saque", domain.TypeWithdrawal},
	{"deposito", domain.TypeDeposit},
	{"cheque", domain.TypeCheck},
	{"pagamento", domain.TypePayment},
	{"pagto", domain.TypePayment},
	{"pgto", domain.TypePayment},
	{"compra", domain.TypeCardPurchase},
	{"cartao", domain.TypeCardPurchase},
}

// inferType picks a transaction type from the type-column token when present,
// falling back to description keywords. Unknown text maps to OTHER.
func inferType(token, description string) domain.TransactionType {
	for _, text := range []string{token, description} {
		if text == "" {
			continue
		}
		folded := foldText(text) + " "
		for _, kw := range typeKeywords {
			if strings.Contains(folded, kw.word) {
				return kw.t
			}
		}
	}
	return domain.TypeOther
}
