package csvparse

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Dialect is a bank-specific column layout within the generic CSV format.
// Column indices are zero-based; -1 marks an absent column.
type Dialect struct {
	Name       string
	DateCol    int
	DescCol    int
	AmountCol  int
	BalanceCol int
	TypeCol    int
}

// GenericDialect is the fallback column mapping when no bank signature
// matches: date, description, amount.
var GenericDialect = Dialect{
	Name:    "generic",
	DateCol: 0, DescCol: 1, AmountCol: 2,
	BalanceCol: -1, TypeCol: -1,
}

// headerWords is the fixed vocabulary used to recognize a header row, in
// Portuguese and English.
var headerWords = []string{
	"data", "date", "valor", "value", "amount",
	"historico", "descricao", "description", "lancamento",
	"saldo", "balance", "tipo", "type", "title",
}

// DetectHeader reports whether the given first-row fields look like a header.
func DetectHeader(fields []string) bool {
	for _, f := range fields {
		folded := foldText(f)
		for _, w := range headerWords {
			if strings.Contains(folded, w) {
				return true
			}
		}
	}
	return false
}

// DetectDialect matches header text and column count against known Brazilian
// bank signatures. It is a best-effort heuristic: a wrong guess still yields
// a structurally valid mapping, and explicit column overrides always win.
func DetectDialect(headerFields []string) Dialect {
	header := foldText(strings.Join(headerFields, ";"))
	cols := len(headerFields)

	switch {
	case strings.Contains(header, "title") && strings.Contains(header, "amount"):
		// Nubank: date, category, title, amount
		return Dialect{Name: "nubank", DateCol: 0, TypeCol: 1, DescCol: 2, AmountCol: 3, BalanceCol: -1}

	case strings.Contains(header, "dependencia"):
		// Banco do Brasil: data, dependencia origem, historico, data do
		// balancete, numero do documento, valor, saldo
		return Dialect{Name: "banco-do-brasil", DateCol: 0, DescCol: 2, AmountCol: 5, BalanceCol: 6, TypeCol: -1}

	case strings.Contains(header, "docto") && cols >= 6:
		// Bradesco: data, historico, docto, credito, debito, saldo
		return Dialect{Name: "bradesco", DateCol: 0, DescCol: 1, AmountCol: 3, BalanceCol: 5, TypeCol: -1}

	case strings.Contains(header, "documento") && strings.Contains(header, "saldo") && cols >= 5:
		// Santander: data, descricao, documento, valor, saldo
		return Dialect{Name: "santander", DateCol: 0, DescCol: 1, AmountCol: 3, BalanceCol: 4, TypeCol: -1}

	case strings.Contains(header, "nr. doc") || strings.Contains(header, "nr doc"):
		// Caixa: data mov, nr. doc, historico, valor, saldo
		return Dialect{Name: "caixa", DateCol: 0, DescCol: 2, AmountCol: 3, BalanceCol: 4, TypeCol: -1}

	case strings.Contains(header, "lancamento"):
		// Itau: data, lancamento, valor [, saldo]
		d := Dialect{Name: "itau", DateCol: 0, DescCol: 1, AmountCol: 2, BalanceCol: -1, TypeCol: -1}
		if cols >= 4 {
			d.BalanceCol = 3
		}
		return d
	}

	return GenericDialect
}

// foldText lowercases and strips diacritics so Portuguese header words
// compare reliably ("Histórico" == "historico").
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
