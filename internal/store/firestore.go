// Package store persists parsed statements to Firestore for teams that share
// import history across machines. It satisfies history.Store so the pipeline
// can dedupe against remote history the same way it does against a local
// SQLite file.
package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/finlatam/bankparse/internal/domain"
)

const (
	transactionCollection = "bank-transactions"
	statementCollection   = "bank-statements"
)

// Firestore wraps a Firestore client with statement-specific operations.
type Firestore struct {
	client    *firestore.Client
	projectID string
}

// NewFirestore initializes a Firebase app for the project and returns a
// store backed by its Firestore database. credentialsFile may be empty, in
// which case Application Default Credentials are used.
func NewFirestore(ctx context.Context, projectID, credentialsFile string) (*Firestore, error) {
	conf := &firebase.Config{ProjectID: projectID}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &Firestore{client: client, projectID: projectID}, nil
}

// Close closes the Firestore client.
func (s *Firestore) Close() error {
	return s.client.Close()
}

// transactionDoc is the Firestore shape of an imported transaction.
type transactionDoc struct {
	FitID                 string    `firestore:"fitId"`
	Date                  string    `firestore:"date"`
	Amount                float64   `firestore:"amount"`
	Description           string    `firestore:"description"`
	NormalizedDescription string    `firestore:"normalizedDescription"`
	Category              string    `firestore:"category"`
	ImportID              string    `firestore:"importId"`
	RecordedAt            time.Time `firestore:"recordedAt"`
}

// statementDoc is the Firestore shape of an imported statement.
type statementDoc struct {
	ImportID      string    `firestore:"importId"`
	FileName      string    `firestore:"fileName"`
	Format        string    `firestore:"format"`
	BankCode      string    `firestore:"bankCode"`
	AccountNumber string    `firestore:"accountNumber"`
	AccountType   string    `firestore:"accountType"`
	PeriodStart   string    `firestore:"periodStart"`
	PeriodEnd     string    `firestore:"periodEnd"`
	Transactions  int       `firestore:"transactions"`
	ClosingValue  float64   `firestore:"closingValue"`
	Currency      string    `firestore:"currency"`
	RecordedAt    time.Time `firestore:"recordedAt"`
}

// Transactions retrieves every recorded transaction for the project.
func (s *Firestore) Transactions(ctx context.Context) ([]domain.BankTransaction, error) {
	iter := s.client.Collection(transactionCollection).
		OrderBy("date", firestore.Desc).
		Documents(ctx)

	var txns []domain.BankTransaction
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate transactions: %w", err)
		}

		var rec transactionDoc
		if err := doc.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("failed to parse transaction document: %w", err)
		}
		date, err := time.Parse("2006-01-02", rec.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q in transaction %s: %w", rec.Date, rec.FitID, err)
		}

		txns = append(txns, domain.BankTransaction{
			FitID:                 rec.FitID,
			Date:                  date,
			Amount:                rec.Amount,
			Direction:             domain.DirectionFor(rec.Amount),
			Type:                  domain.TypeOther,
			Description:           rec.Description,
			NormalizedDescription: rec.NormalizedDescription,
			Category:              domain.Category(rec.Category),
			ReconciliationStatus:  domain.StatusPending,
		})
	}

	return txns, nil
}

// Record stores transactions under an import ID, keyed by fitId so a
// re-recorded transaction overwrites rather than duplicates.
func (s *Firestore) Record(ctx context.Context, importID string, txns []domain.BankTransaction) error {
	recordedAt := time.Now().UTC()
	for _, txn := range txns {
		rec := transactionDoc{
			FitID:                 txn.FitID,
			Date:                  txn.Date.Format("2006-01-02"),
			Amount:                txn.Amount,
			Description:           txn.Description,
			NormalizedDescription: txn.NormalizedDescription,
			Category:              string(txn.Category),
			ImportID:              importID,
			RecordedAt:            recordedAt,
		}
		if _, err := s.client.Collection(transactionCollection).Doc(txn.FitID).Set(ctx, rec); err != nil {
			return fmt.Errorf("failed to record transaction %s: %w", txn.FitID, err)
		}
	}
	return nil
}

// RecordStatement stores statement metadata under its import ID.
func (s *Firestore) RecordStatement(ctx context.Context, importID, fileName string, stmt *domain.BankStatementData) error {
	rec := statementDoc{
		ImportID:      importID,
		FileName:      fileName,
		Format:        string(stmt.Format),
		BankCode:      stmt.Account.BankCode,
		AccountNumber: stmt.Account.AccountNumber,
		AccountType:   string(stmt.Account.Type),
		PeriodStart:   stmt.Period.Start.Format("2006-01-02"),
		PeriodEnd:     stmt.Period.End.Format("2006-01-02"),
		Transactions:  len(stmt.Transactions),
		ClosingValue:  stmt.Balance.Closing,
		Currency:      stmt.Balance.Currency,
		RecordedAt:    time.Now().UTC(),
	}
	if _, err := s.client.Collection(statementCollection).Doc(importID).Set(ctx, rec); err != nil {
		return fmt.Errorf("failed to record statement %s: %w", importID, err)
	}
	return nil
}
