// Package pipeline is the top-level entry point of the statement ingestion
// pipeline: format detection, format-specific parsing, categorization,
// description normalization, payee extraction, validation, and duplicate
// marking, composed into one pure pass over the input content.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/finlatam/bankparse/internal/categorize"
	"github.com/finlatam/bankparse/internal/csvparse"
	"github.com/finlatam/bankparse/internal/detect"
	"github.com/finlatam/bankparse/internal/domain"
	"github.com/finlatam/bankparse/internal/ofx"
	"github.com/finlatam/bankparse/internal/validate"
)

// Config governs which pipeline stages run and how the CSV parser is tuned.
type Config struct {
	AutoDetectFormat      bool
	DefaultFormat         domain.Format // used when auto-detect is disabled
	AutoCategorize        bool
	NormalizeDescriptions bool
	ExtractPayees         bool
	ValidateBalance       bool
	DetectDuplicates      bool
	CSV                   csvparse.Options
}

// DefaultConfig enables every stage with auto-detection.
func DefaultConfig() Config {
	return Config{
		AutoDetectFormat:      true,
		AutoCategorize:        true,
		NormalizeDescriptions: true,
		ExtractPayees:         true,
		ValidateBalance:       true,
		DetectDuplicates:      true,
	}
}

// Result is the pipeline output: the normalized statement plus run metadata.
// Metadata (import ID, timestamps, duration) never affects categorization or
// validation outcomes; given identical input and configuration the statement
// itself is deterministic.
type Result struct {
	Statement  *domain.BankStatementData `json:"statement"`
	ParserUsed string                    `json:"parserUsed"`
	Dialect    string                    `json:"dialect,omitempty"`
	Categories categorize.BatchStats     `json:"-"`
	ImportID   string                    `json:"importId"`
	ParsedAt   time.Time                 `json:"parsedAt"`
	Duration   time.Duration             `json:"durationNs"`
}

// Parser runs the ingestion pipeline. All components are pure functions over
// immutable inputs: a Parser is safe for concurrent use, including
// concurrent parses of the same content.
type Parser struct {
	cfg    Config
	engine *categorize.Engine
}

// New creates a pipeline with the given configuration and optional custom
// categorization rules, which outrank the shipped defaults.
func New(cfg Config, customRules []categorize.Rule) (*Parser, error) {
	engine, err := categorize.NewEngine(customRules)
	if err != nil {
		return nil, fmt.Errorf("failed to build categorization engine: %w", err)
	}
	return &Parser{cfg: cfg, engine: engine}, nil
}

// Parse turns raw statement file content into a normalized, validated,
// categorized statement. history is an optional externally supplied set of
// previously persisted transactions for external duplicate detection.
func (p *Parser) Parse(ctx context.Context, content, fileName string, history []domain.BankTransaction) (*Result, error) {
	start := time.Now()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	format := p.cfg.DefaultFormat
	if p.cfg.AutoDetectFormat {
		detected, err := detect.Detect(content, fileName)
		if err != nil {
			return nil, err
		}
		format = detected
	}

	result := &Result{
		ParserUsed: "ofx",
		ImportID:   uuid.NewString(),
		ParsedAt:   start,
	}

	var stmt *domain.BankStatementData
	switch format {
	case domain.FormatOFX, domain.FormatQFX:
		parsed, err := ofx.Parse(content, fileName)
		if err != nil {
			return nil, err
		}
		parsed.Format = format
		stmt = parsed

	case domain.FormatCSV, domain.FormatTXT:
		parsed, err := csvparse.Parse(content, fileName, p.cfg.CSV)
		if err != nil {
			return nil, err
		}
		parsed.Statement.Format = format
		stmt = parsed.Statement
		result.ParserUsed = "csv"
		result.Dialect = parsed.Dialect

	default:
		return nil, fmt.Errorf("unsupported statement format %q", format)
	}

	stmt.Transactions = p.enrich(stmt.Transactions)

	if p.cfg.AutoCategorize {
		var results []categorize.Result
		results, result.Categories = p.engine.CategorizeAll(stmt.Transactions)
		for i, res := range results {
			stmt.Transactions[i] = stmt.Transactions[i].WithCategory(res.Category, res.Confidence)
		}
	}

	// Duplicate marking runs on the already-normalized list: the fuzzy key
	// feeds on normalized descriptions.
	opts := validate.Options{
		CheckBalance:     p.cfg.ValidateBalance,
		DetectDuplicates: p.cfg.DetectDuplicates,
		History:          history,
	}
	if p.cfg.DetectDuplicates {
		stmt.Transactions, _ = validate.MarkDuplicates(stmt.Transactions, history)
	}

	vr := validate.Statement(stmt, opts)
	stmt.IsValid = vr.IsValid
	stmt.ValidationErrors = vr.Errors
	stmt.ValidationWarnings = vr.Warnings

	stmt.Summary = domain.ComputeSummary(stmt.Transactions)

	result.Statement = stmt
	result.Duration = time.Since(start)
	return result, nil
}

// enrich produces normalized-description and payee copies of each
// transaction, per configuration. The input values stay untouched.
func (p *Parser) enrich(txns []domain.BankTransaction) []domain.BankTransaction {
	if !p.cfg.NormalizeDescriptions && !p.cfg.ExtractPayees {
		return txns
	}

	out := make([]domain.BankTransaction, len(txns))
	for i, txn := range txns {
		if p.cfg.NormalizeDescriptions {
			txn = txn.WithNormalizedDescription(categorize.NormalizeDescription(txn.Description))
		}
		if p.cfg.ExtractPayees && txn.Payee == "" {
			if payee := categorize.ExtractPayee(txn.Description); payee != "" {
				txn = txn.WithPayee(payee)
			}
		}
		out[i] = txn
	}
	return out
}
