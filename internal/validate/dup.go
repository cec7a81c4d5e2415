package validate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/finlatam/bankparse/internal/categorize"
	"github.com/finlatam/bankparse/internal/domain"
)

// fuzzyDescriptionLen is how much of the normalized description feeds the
// fuzzy duplicate key.
const fuzzyDescriptionLen = 20

// Duplicate is one detected duplicate transaction.
type Duplicate struct {
	Index  int    // position in the statement's transaction list
	FitID  string
	Exact  bool   // true for a fitId collision, false for a fuzzy match
	Reason string
}

// Fingerprint hashes date, amount, and normalized description into the
// fuzzy duplicate key: SHA256("{date}|{amount to 2 decimals}|{first 20
// chars of normalized description}").
func Fingerprint(txn domain.BankTransaction) string {
	desc := txn.NormalizedDescription
	if desc == "" {
		desc = categorize.NormalizeDescription(txn.Description)
	}
	if len(desc) > fuzzyDescriptionLen {
		desc = desc[:fuzzyDescriptionLen]
	}

	input := fmt.Sprintf("%s|%.2f|%s", txn.Date.Format("2006-01-02"), txn.Amount, strings.TrimSpace(desc))
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// FindDuplicates detects duplicates within a transaction list and against an
// optional externally supplied history, using the two-key strategy: an exact
// fitId collision is reported immediately; otherwise a fuzzy-key collision
// with a differing fitId is reported as a probable duplicate. Never fails;
// worst case no duplicates are flagged.
func FindDuplicates(txns, history []domain.BankTransaction) []Duplicate {
	seenID := make(map[string]struct{}, len(history))
	seenFuzzy := make(map[string]struct{}, len(history))
	for _, h := range history {
		if h.FitID != "" {
			seenID[h.FitID] = struct{}{}
		}
		seenFuzzy[Fingerprint(h)] = struct{}{}
	}

	var dups []Duplicate
	for i, txn := range txns {
		if _, ok := seenID[txn.FitID]; ok {
			dups = append(dups, Duplicate{
				Index:  i,
				FitID:  txn.FitID,
				Exact:  true,
				Reason: fmt.Sprintf("transaction %s repeats an existing transaction ID", txn.FitID),
			})
			seenID[txn.FitID] = struct{}{}
			// An exact match is definitive; skip the fuzzy check.
			continue
		}
		seenID[txn.FitID] = struct{}{}

		fuzzy := Fingerprint(txn)
		if _, ok := seenFuzzy[fuzzy]; ok {
			dups = append(dups, Duplicate{
				Index:  i,
				FitID:  txn.FitID,
				Reason: fmt.Sprintf("transaction %s is a probable duplicate: same date, value, and similar description", txn.FitID),
			})
		}
		seenFuzzy[fuzzy] = struct{}{}
	}
	return dups
}

// MarkDuplicates returns a copy of the transaction list with detected
// duplicates flagged DUPLICATE, plus the detection detail.
func MarkDuplicates(txns, history []domain.BankTransaction) ([]domain.BankTransaction, []Duplicate) {
	dups := FindDuplicates(txns, history)
	if len(dups) == 0 {
		return txns, nil
	}

	marked := make([]domain.BankTransaction, len(txns))
	copy(marked, txns)
	for _, d := range dups {
		marked[d.Index] = marked[d.Index].WithStatus(domain.StatusDuplicate)
	}
	return marked, dups
}
