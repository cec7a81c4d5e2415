// Package scanner walks a directory tree and finds bank statement files.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Scanner walks a directory tree and finds statement files.
type Scanner struct {
	rootDir string
}

// New creates a scanner rooted at the given directory.
func New(rootDir string) *Scanner {
	return &Scanner{rootDir: rootDir}
}

// Result is a found statement file with metadata derived from its path.
// Directory layout convention: {root}/{bank}/{account}/{period?}/file.ext
type Result struct {
	Path     string
	BankName string
	Account  string
	Period   string
}

// Scan walks the directory tree and returns all statement files.
func (s *Scanner) Scan() ([]Result, error) {
	var results []Result

	rootDir := s.expandHome(s.rootDir)

	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !IsStatementFile(path) {
			return nil
		}

		results = append(results, s.describe(path, rootDir))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	return results, nil
}

// IsStatementFile reports whether the file has a known statement extension.
func IsStatementFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ofx", ".qfx", ".csv", ".txt":
		return true
	}
	return false
}

// describe parses the directory structure for bank and account hints.
func (s *Scanner) describe(filePath, rootDir string) Result {
	relPath, err := filepath.Rel(rootDir, filePath)
	if err != nil {
		relPath = filePath
	}

	parts := strings.Split(filepath.ToSlash(relPath), "/")

	res := Result{Path: filePath}

	if len(parts) >= 2 {
		res.BankName = normalizeBankName(parts[0])
	}
	if len(parts) >= 3 {
		res.Account = parts[1]
	}
	if len(parts) >= 4 && looksLikePeriod(parts[2]) {
		res.Period = parts[2]
	}

	return res
}

// normalizeBankName converts a directory name to a readable bank name.
// "banco_do_brasil" -> "Banco Do Brasil"
func normalizeBankName(dirName string) string {
	name := strings.ReplaceAll(dirName, "_", " ")

	words := strings.Split(name, " ")
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}

	return strings.Join(words, " ")
}

// looksLikePeriod checks if a string looks like a YYYY-MM period.
func looksLikePeriod(str string) bool {
	return len(str) >= 7 && str[4] == '-'
}

// expandHome expands a leading ~ to the user's home directory.
func (s *Scanner) expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
