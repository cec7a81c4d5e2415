// Package output serializes parse results to JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/finlatam/bankparse/internal/pipeline"
)

// WriteOptions configures how results are written.
type WriteOptions struct {
	FilePath string // Output path (empty = stdout)
}

// Report is the top-level JSON document for one CLI run.
type Report struct {
	Files   int                `json:"files"`
	Results []*pipeline.Result `json:"results"`
}

// WriteReport serializes a report as indented JSON.
func WriteReport(report *Report, w io.Writer) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report as JSON: %w", err)
	}

	return nil
}

// WriteReportToFile writes the report to a file or stdout based on options.
func WriteReportToFile(report *Report, opts WriteOptions) (err error) {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	if opts.FilePath == "" {
		return WriteReport(report, os.Stdout)
	}

	f, err := os.Create(opts.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", opts.FilePath, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output file %s: %w", opts.FilePath, closeErr)
		}
	}()

	if err = WriteReport(report, f); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", opts.FilePath, err)
	}

	return nil
}
