package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/finlatam/bankparse/internal/categorize"
	"github.com/finlatam/bankparse/internal/domain"
	"github.com/finlatam/bankparse/internal/history"
	"github.com/finlatam/bankparse/internal/output"
	"github.com/finlatam/bankparse/internal/pipeline"
	"github.com/finlatam/bankparse/internal/scanner"
	"github.com/finlatam/bankparse/internal/store"
	"github.com/finlatam/bankparse/internal/ui"
)

const version = "0.1.0"

var (
	versionFlag = flag.Bool("version", false, "Show version")

	inputPath = flag.String("input", "", "Statement file or directory (required)")
	dryRun    = flag.Bool("dry-run", false, "Show what would be parsed without parsing")
	verbose   = flag.Bool("verbose", false, "Show detailed parsing logs")

	outputFile = flag.String("output", "", "Output JSON file (default: stdout)")
	rulesFile  = flag.String("rules", "", "Custom category rules file (YAML)")

	historyFile  = flag.String("history", "", "SQLite history database for cross-import deduplication")
	recordFlag   = flag.Bool("record", false, "Record parsed transactions into history after a valid parse")
	formatFlag   = flag.String("format", "", "Force input format: ofx, qfx, csv, txt (default: auto-detect)")
	gcpProject   = flag.String("firestore-project", "", "Use Firestore history for the given GCP project instead of SQLite")
	gcpCredsFile = flag.String("credentials", "", "Service account credentials file for Firestore")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `bankparse - Bank statement parser and categorizer

Usage:
  bankparse [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Parse one statement to stdout
  bankparse -input extrato.ofx

  # Parse a directory with custom rules and local history
  bankparse -input ~/extratos -rules rules.yaml -history imports.db -record

  # Force CSV parsing and write the report to a file
  bankparse -input extrato.txt -format csv -output report.json

`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("bankparse version %s\n", version)
		os.Exit(0)
	}

	if *inputPath == "" {
		fmt.Fprintf(os.Stderr, "Error: -input flag is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	if !*verbose {
		ui.Header("Parsing Bank Statements")
		ui.Step(1, 4, "Discovering statement files")
	} else {
		fmt.Fprintf(os.Stderr, "Scanning: %s\n", *inputPath)
	}

	files, err := discover(*inputPath)
	if err != nil {
		return err
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Found %d statement files\n", len(files))
		for _, f := range files {
			fmt.Fprintf(os.Stderr, "  - %s\n", f)
		}
	} else {
		ui.Success(fmt.Sprintf("Found %d statement files", len(files)))
	}

	if *dryRun {
		fmt.Printf("Dry run complete. Would process %d files.\n", len(files))
		return nil
	}

	if len(files) == 0 {
		return fmt.Errorf("no statement files found at %s (supported extensions: .ofx, .qfx, .csv, .txt)", *inputPath)
	}

	if !*verbose {
		ui.Step(2, 4, "Loading import history")
	}
	historyStore, err := openHistory(ctx)
	if err != nil {
		return err
	}
	var previous []domain.BankTransaction
	if historyStore != nil {
		defer historyStore.Close()
		previous, err = historyStore.Transactions(ctx)
		if err != nil {
			return fmt.Errorf("failed to load import history: %w", err)
		}
		if *verbose {
			fmt.Fprintf(os.Stderr, "Loaded %d previously imported transactions\n", len(previous))
		}
	}

	if !*verbose {
		ui.Step(3, 4, "Loading category rules")
	}
	var customRules []categorize.Rule
	if *rulesFile != "" {
		customRules, err = categorize.LoadRulesFile(*rulesFile)
		if err != nil {
			return fmt.Errorf("failed to load rules file: %w", err)
		}
		if *verbose {
			fmt.Fprintf(os.Stderr, "Loaded %d custom rules from %s\n", len(customRules), *rulesFile)
		}
	}

	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	parser, err := pipeline.New(cfg, customRules)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	if !*verbose {
		ui.Step(4, 4, "Parsing and categorizing")
	}

	report := &output.Report{Files: len(files)}
	var (
		totalTransactions int
		totalCategorized  int
		totalDuplicates   int
		totalWarnings     int
	)

	for i, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		if *verbose {
			fmt.Fprintf(os.Stderr, "  Parsing %s\n", path)
		} else {
			fmt.Fprintf(os.Stderr, "\r  Progress: %d/%d files...", i+1, len(files))
		}

		result, err := parser.Parse(ctx, string(content), path, previous)
		if err != nil {
			return fmt.Errorf("parse failed for file %d of %d (%s): %w", i+1, len(files), path, err)
		}

		totalTransactions += len(result.Statement.Transactions)
		totalCategorized += result.Categories.Categorized
		totalWarnings += len(result.Statement.ValidationWarnings)
		for _, txn := range result.Statement.Transactions {
			if txn.ReconciliationStatus == domain.StatusDuplicate {
				totalDuplicates++
			}
		}

		if historyStore != nil && *recordFlag && result.Statement.IsValid {
			if err := historyStore.Record(ctx, result.ImportID, result.Statement.Transactions); err != nil {
				return fmt.Errorf("failed to record import %s: %w", result.ImportID, err)
			}
		}

		report.Results = append(report.Results, result)
	}

	if !*verbose {
		fmt.Fprintf(os.Stderr, "\r  Progress: %d/%d files - Complete!\n", len(files), len(files))
	}

	if totalTransactions > 0 {
		coverage := float64(totalCategorized) / float64(totalTransactions) * 100
		ui.Info(fmt.Sprintf("Rule coverage: %.1f%% (%d/%d categorized)", coverage, totalCategorized, totalTransactions))
		if coverage < 80.0 {
			ui.Warning(fmt.Sprintf("Rule coverage %.1f%% below 80%% target", coverage))
		}
	}
	if totalDuplicates > 0 {
		ui.Warning(fmt.Sprintf("Flagged %d duplicate transactions", totalDuplicates))
	}
	if totalWarnings > 0 {
		ui.Warning(fmt.Sprintf("Validation produced %d warnings", totalWarnings))
	} else {
		ui.Success("Validation passed")
	}

	if err := output.WriteReportToFile(report, output.WriteOptions{FilePath: *outputFile}); err != nil {
		return err
	}
	if *outputFile != "" {
		ui.Success(fmt.Sprintf("Wrote report to %s", *outputFile))
	}

	return nil
}

// discover resolves -input into a list of statement files. A directory is
// walked recursively, a single file is used as-is.
func discover(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if !info.IsDir() {
		if !scanner.IsStatementFile(path) {
			return nil, fmt.Errorf("unsupported file type: %s", path)
		}
		return []string{path}, nil
	}

	s := scanner.New(path)
	results, err := s.Scan()
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory %s: %w", path, err)
	}

	files := make([]string, 0, len(results))
	for _, r := range results {
		files = append(files, r.Path)
	}
	return files, nil
}

// openHistory picks the history backend from flags. Firestore wins over
// SQLite when both are given.
func openHistory(ctx context.Context) (history.Store, error) {
	if *gcpProject != "" {
		fs, err := store.NewFirestore(ctx, *gcpProject, *gcpCredsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open Firestore history: %w", err)
		}
		return fs, nil
	}
	if *historyFile != "" {
		db, err := history.OpenSQLite(*historyFile)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return nil, nil
}

func buildConfig() (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()
	if *formatFlag != "" {
		format := domain.Format(strings.ToUpper(*formatFlag))
		if !domain.ValidateFormat(format) {
			return cfg, fmt.Errorf("invalid -format value %q (expected ofx, qfx, csv, or txt)", *formatFlag)
		}
		cfg.AutoDetectFormat = false
		cfg.DefaultFormat = format
	}
	return cfg, nil
}
