// Package domain defines the normalized bank statement model produced by the
// ingestion pipeline.
package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Format identifies the source file format of a statement.
// Use ValidateFormat to ensure validity before use.
type Format string

const (
	FormatOFX Format = "OFX"
	FormatQFX Format = "QFX"
	FormatCSV Format = "CSV"
	FormatTXT Format = "TXT"
)

// AccountType represents the account type enum.
type AccountType string

const (
	AccountTypeChecking   AccountType = "CHECKING"
	AccountTypeSavings    AccountType = "SAVINGS"
	AccountTypeCreditCard AccountType = "CREDITCARD"
)

// Direction is the credit/debit side of a transaction. It is derived from the
// amount sign and must always satisfy: CREDIT iff amount >= 0.
type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

// TransactionType is the closed enumeration of financial movement kinds.
// Unknown source tokens map to TypeOther, never to a parse failure.
type TransactionType string

const (
	TypeTransfer     TransactionType = "TRANSFER"
	TypeFee          TransactionType = "FEE"
	TypeInterest     TransactionType = "INTEREST"
	TypeWithdrawal   TransactionType = "WITHDRAWAL"
	TypeDeposit      TransactionType = "DEPOSIT"
	TypeCheck        TransactionType = "CHECK"
	TypePayment      TransactionType = "PAYMENT"
	TypeCardPurchase TransactionType = "CARD_PURCHASE"
	TypeOther        TransactionType = "OTHER"
)

// ReconciliationStatus marks a transaction's readiness for downstream ledger
// matching.
type ReconciliationStatus string

const (
	StatusPending   ReconciliationStatus = "PENDING"
	StatusDuplicate ReconciliationStatus = "DUPLICATE"
)

// Category is an open categorization label. Rule sets are data, so new
// categories may appear without code changes; CategoryOther is the engine's
// fallback when no rule matches.
type Category string

// CategoryOther is assigned when no categorization rule matches.
const CategoryOther Category = "OTHER"

var (
	validFormats = map[Format]struct{}{
		FormatOFX: {}, FormatQFX: {}, FormatCSV: {}, FormatTXT: {},
	}

	validAccountTypes = map[AccountType]struct{}{
		AccountTypeChecking: {}, AccountTypeSavings: {}, AccountTypeCreditCard: {},
	}

	validTransactionTypes = map[TransactionType]struct{}{
		TypeTransfer: {}, TypeFee: {}, TypeInterest: {}, TypeWithdrawal: {},
		TypeDeposit: {}, TypeCheck: {}, TypePayment: {}, TypeCardPurchase: {},
		TypeOther: {},
	}
)

// ValidateFormat checks if the format is valid
func ValidateFormat(f Format) bool {
	_, ok := validFormats[f]
	return ok
}

// ValidateAccountType checks if the account type is valid
func ValidateAccountType(t AccountType) bool {
	_, ok := validAccountTypes[t]
	return ok
}

// ValidateTransactionType checks if the transaction type is valid
func ValidateTransactionType(t TransactionType) bool {
	_, ok := validTransactionTypes[t]
	return ok
}

// DirectionFor derives the direction from an amount sign.
func DirectionFor(amount float64) Direction {
	if amount >= 0 {
		return DirectionCredit
	}
	return DirectionDebit
}

// BankAccount identifies the account a statement belongs to. CSV exports
// rarely carry account identity, so every field may be empty.
type BankAccount struct {
	BankCode      string      `json:"bankCode"`
	BranchCode    string      `json:"branchCode"`
	AccountNumber string      `json:"accountNumber"`
	Type          AccountType `json:"accountType"`
	Currency      string      `json:"currency"`
}

// Period is the statement's date range. For OFX it comes from the transaction
// list header; for CSV it is derived from the transactions themselves.
type Period struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Contains returns true if the given time falls within the period (inclusive)
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Duration returns the length of the period
func (p Period) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// Balance holds the statement's declared balances. OFX never supplies an
// opening balance, so Opening defaults to 0 on that path.
type Balance struct {
	Opening      float64   `json:"openingBalance"`
	Closing      float64   `json:"closingBalance"`
	Available    float64   `json:"availableBalance,omitempty"`
	HasAvailable bool      `json:"hasAvailableBalance"`
	Currency     string    `json:"currency"`
	AsOf         time.Time `json:"asOf"`
}

// BankTransaction is the atomic unit of a statement. Values are created once
// during parsing; later pipeline stages produce modified copies via the With*
// methods rather than mutating in place.
type BankTransaction struct {
	FitID                 string               `json:"fitId"`
	Date                  time.Time            `json:"transactionDate"`
	PostDate              time.Time            `json:"postDate,omitempty"`
	Amount                float64              `json:"amount"`
	Direction             Direction            `json:"direction"`
	Type                  TransactionType      `json:"type"`
	Description           string               `json:"description"`
	NormalizedDescription string               `json:"normalizedDescription,omitempty"`
	Payee                 string               `json:"payee,omitempty"`
	Memo                  string               `json:"memo,omitempty"`
	Category              Category             `json:"category,omitempty"`
	CategoryConfidence    float64              `json:"categoryConfidence"`
	ReconciliationStatus  ReconciliationStatus `json:"reconciliationStatus"`
	Raw                   map[string]string    `json:"rawData,omitempty"`
}

// NewBankTransaction creates a validated transaction with the direction
// derived from the amount sign and status defaulted to PENDING.
func NewBankTransaction(fitID string, date time.Time, amount float64, description string) (*BankTransaction, error) {
	if fitID == "" {
		return nil, fmt.Errorf("transaction ID cannot be empty")
	}
	if date.IsZero() {
		return nil, fmt.Errorf("transaction date cannot be zero")
	}

	return &BankTransaction{
		FitID:                fitID,
		Date:                 date,
		Amount:               amount,
		Direction:            DirectionFor(amount),
		Type:                 TypeOther,
		Description:          description,
		ReconciliationStatus: StatusPending,
	}, nil
}

// WithCategory returns a copy with category and confidence set.
func (t BankTransaction) WithCategory(c Category, confidence float64) BankTransaction {
	t.Category = c
	t.CategoryConfidence = confidence
	return t
}

// WithNormalizedDescription returns a copy with the normalized description set.
func (t BankTransaction) WithNormalizedDescription(s string) BankTransaction {
	t.NormalizedDescription = s
	return t
}

// WithPayee returns a copy with the payee set.
func (t BankTransaction) WithPayee(p string) BankTransaction {
	t.Payee = p
	return t
}

// WithStatus returns a copy with the reconciliation status set.
func (t BankTransaction) WithStatus(s ReconciliationStatus) BankTransaction {
	t.ReconciliationStatus = s
	return t
}

// Issue is a validation finding. Errors indicate data the pipeline cannot
// trust; warnings indicate suspicious-but-usable data.
type Issue struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Summary is the derived aggregate over a statement's transactions. Always
// recomputed from the transaction list, never independently mutated.
type Summary struct {
	TotalTransactions int                     `json:"totalTransactions"`
	TotalCredits      float64                 `json:"totalCredits"`
	TotalDebits       float64                 `json:"totalDebits"`
	NetMovement       float64                 `json:"netMovement"`
	ByType            map[TransactionType]int `json:"byType"`
	LargestCredit     float64                 `json:"largestCredit"`
	LargestDebit      float64                 `json:"largestDebit"`
	AverageAmount     float64                 `json:"averageAmount"`
}

// ComputeSummary derives the aggregate from a transaction list. TotalDebits
// and LargestDebit are reported as positive magnitudes.
func ComputeSummary(txns []BankTransaction) Summary {
	s := Summary{ByType: make(map[TransactionType]int)}
	s.TotalTransactions = len(txns)

	var sum float64
	for _, t := range txns {
		sum += t.Amount
		s.ByType[t.Type]++
		if t.Amount >= 0 {
			s.TotalCredits += t.Amount
			if t.Amount > s.LargestCredit {
				s.LargestCredit = t.Amount
			}
		} else {
			s.TotalDebits += -t.Amount
			if -t.Amount > s.LargestDebit {
				s.LargestDebit = -t.Amount
			}
		}
	}
	s.NetMovement = sum
	if len(txns) > 0 {
		s.AverageAmount = sum / float64(len(txns))
	}
	return s
}

// SortTransactions orders transactions ascending by transaction date. The
// sort is stable so same-day transactions keep their source order.
func SortTransactions(txns []BankTransaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].Date.Before(txns[j].Date)
	})
}

// BankStatementData is the pipeline's output aggregate.
type BankStatementData struct {
	Format             Format            `json:"format"`
	Account            BankAccount       `json:"account"`
	Period             Period            `json:"period"`
	Balance            Balance           `json:"balance"`
	Transactions       []BankTransaction `json:"transactions"`
	Summary            Summary           `json:"summary"`
	IsValid            bool              `json:"isValid"`
	ValidationErrors   []Issue           `json:"validationErrors"`
	ValidationWarnings []Issue           `json:"validationWarnings"`
}

// BalanceEpsilon is the tolerance for declared-vs-computed balance checks,
// in currency units.
const BalanceEpsilon = 0.01

// BalanceConsistent reports whether closing ≈ opening + Σ(amount) within
// BalanceEpsilon.
func (s *BankStatementData) BalanceConsistent() bool {
	var sum float64
	for _, t := range s.Transactions {
		sum += t.Amount
	}
	return math.Abs(s.Balance.Opening+sum-s.Balance.Closing) <= BalanceEpsilon
}
