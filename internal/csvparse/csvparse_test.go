package csvparse

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/finlatam/bankparse/internal/domain"
)

const extratoSemicolon = `Data;Histórico;Valor
10/07/2025;PIX RECEBIDO JOAO SILVA;1.234,56
12/07/2025;TARIFA PACOTE SERVICOS;-25,90
11/07/2025;COMPRA CARTAO SUPERMERCADO;-150,00
`

func TestParse_BrazilianSemicolon(t *testing.T) {
	res, err := Parse(extratoSemicolon, "extrato.csv", Options{})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if res.Delimiter != ';' {
		t.Errorf("Delimiter = %q; want ';'", res.Delimiter)
	}
	if res.Dialect != "generic" {
		t.Errorf("Dialect = %s; want generic", res.Dialect)
	}
	if res.SkippedRows != 0 {
		t.Errorf("SkippedRows = %d; want 0", res.SkippedRows)
	}

	stmt := res.Statement
	if stmt.Format != domain.FormatCSV {
		t.Errorf("Format = %s; want CSV", stmt.Format)
	}
	if len(stmt.Transactions) != 3 {
		t.Fatalf("got %d transactions; want 3", len(stmt.Transactions))
	}

	// Sorted by date despite source order.
	if !stmt.Transactions[0].Date.Equal(time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first transaction date = %v", stmt.Transactions[0].Date)
	}
	if stmt.Transactions[1].Description != "COMPRA CARTAO SUPERMERCADO" {
		t.Errorf("middle transaction = %q", stmt.Transactions[1].Description)
	}

	first := stmt.Transactions[0]
	if first.Amount != 1234.56 {
		t.Errorf("Amount = %v; want 1234.56", first.Amount)
	}
	if first.Direction != domain.DirectionCredit {
		t.Errorf("Direction = %s; want CREDIT", first.Direction)
	}
	if first.Type != domain.TypeTransfer {
		t.Errorf("Type = %s; want TRANSFER (pix keyword)", first.Type)
	}

	// CSV has no declared balances: opening 0, closing = running sum.
	if stmt.Balance.Opening != 0 {
		t.Errorf("Opening = %v; want 0", stmt.Balance.Opening)
	}
	wantClosing := 1234.56 - 25.90 - 150.00
	if math.Abs(stmt.Balance.Closing-wantClosing) > 1e-9 {
		t.Errorf("Closing = %v; want %v", stmt.Balance.Closing, wantClosing)
	}
	if stmt.Balance.Currency != "BRL" {
		t.Errorf("Currency = %s; want BRL", stmt.Balance.Currency)
	}

	// Period derived from the sorted transactions.
	if !stmt.Period.Start.Equal(time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)) ||
		!stmt.Period.End.Equal(time.Date(2025, 7, 12, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Period = %v..%v", stmt.Period.Start, stmt.Period.End)
	}
}

func TestParse_SyntheticIDsUnique(t *testing.T) {
	// Two identical rows must still get distinct IDs via line numbers.
	content := "Data;Histórico;Valor\n" +
		"10/07/2025;PIX RECEBIDO;100,00\n" +
		"10/07/2025;PIX RECEBIDO;100,00\n"

	res, err := Parse(content, "extrato.csv", Options{})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	txns := res.Statement.Transactions
	if len(txns) != 2 {
		t.Fatalf("got %d transactions; want 2", len(txns))
	}
	if txns[0].FitID == txns[1].FitID {
		t.Errorf("identical rows share fitId %s", txns[0].FitID)
	}
	if !strings.HasPrefix(txns[0].FitID, "csv-20250710-10000-") {
		t.Errorf("unexpected synthetic id format: %s", txns[0].FitID)
	}
}

func TestParse_SkipsFooterRows(t *testing.T) {
	content := "Data;Histórico;Valor\n" +
		"10/07/2025;PIX RECEBIDO;100,00\n" +
		"SALDO FINAL;;\n" +
		";Total do período;\n"

	res, err := Parse(content, "extrato.csv", Options{})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(res.Statement.Transactions) != 1 {
		t.Errorf("got %d transactions; want 1", len(res.Statement.Transactions))
	}
	if res.SkippedRows != 2 {
		t.Errorf("SkippedRows = %d; want 2", res.SkippedRows)
	}
}

func TestParse_NoHeader(t *testing.T) {
	content := "10/07/2025;PIX RECEBIDO;100,00\n" +
		"11/07/2025;TARIFA MENSALIDADE;-25,00\n"

	res, err := Parse(content, "extrato.csv", Options{})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(res.Statement.Transactions) != 2 {
		t.Errorf("got %d transactions; want 2", len(res.Statement.Transactions))
	}
}

func TestParse_ColumnOverrides(t *testing.T) {
	// Amount in column 3, description in column 2; forced header skip.
	content := "x;y;z;w\n" +
		"10/07/2025;DOC123;PAGAMENTO ALUGUEL;-1.500,00\n"

	hasHeader := true
	dateCol, descCol, amountCol := 0, 2, 3
	res, err := Parse(content, "extrato.csv", Options{
		HasHeader:         &hasHeader,
		DateColumn:        &dateCol,
		DescriptionColumn: &descCol,
		AmountColumn:      &amountCol,
	})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	txns := res.Statement.Transactions
	if len(txns) != 1 {
		t.Fatalf("got %d transactions; want 1", len(txns))
	}
	if txns[0].Description != "PAGAMENTO ALUGUEL" {
		t.Errorf("Description = %q", txns[0].Description)
	}
	if txns[0].Amount != -1500 {
		t.Errorf("Amount = %v; want -1500", txns[0].Amount)
	}
	if txns[0].Type != domain.TypePayment {
		t.Errorf("Type = %s; want PAYMENT", txns[0].Type)
	}
}

func TestParse_NubankDialect(t *testing.T) {
	content := "date,category,title,amount\n" +
		"2025-07-10,transfer,Transferência recebida,250.00\n" +
		"2025-07-11,payment,Pagamento de fatura,-180.50\n"

	res, err := Parse(content, "nubank.csv", Options{})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if res.Dialect != "nubank" {
		t.Errorf("Dialect = %s; want nubank", res.Dialect)
	}
	txns := res.Statement.Transactions
	if len(txns) != 2 {
		t.Fatalf("got %d transactions; want 2", len(txns))
	}
	if txns[0].Description != "Transferência recebida" {
		t.Errorf("Description = %q", txns[0].Description)
	}
	if txns[0].Type != domain.TypeTransfer {
		t.Errorf("Type = %s; want TRANSFER", txns[0].Type)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"single line", "Data;Histórico;Valor"},
		{"too few columns", "a;b\nc;d\n"},
		{"no parsable rows", "Data;Histórico;Valor\nfoo;bar;baz\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.content, "extrato.csv", Options{}); err == nil {
				t.Error("Parse() should fail")
			}
		})
	}
}

func TestIsValidCSV(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"valid", extratoSemicolon, true},
		{"one line", "Data;Histórico;Valor", false},
		{"two columns", "a;b\nc;d", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidCSV(tt.content); got != tt.want {
				t.Errorf("IsValidCSV() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestInferType(t *testing.T) {
	tests := []struct {
		token       string
		description string
		want        domain.TransactionType
	}{
		{"", "PIX RECEBIDO JOAO", domain.TypeTransfer},
		{"", "TED ENVIADA EMPRESA", domain.TypeTransfer},
		{"", "TARIFA PACOTE SERVICOS", domain.TypeFee},
		{"", "JUROS POUPANCA", domain.TypeInterest},
		{"", "SAQUE 24H", domain.TypeWithdrawal},
		{"", "DEPOSITO EM DINHEIRO", domain.TypeDeposit},
		{"", "CHEQUE COMPENSADO", domain.TypeCheck},
		{"", "PAGAMENTO BOLETO", domain.TypePayment},
		{"", "COMPRA CARTAO LOJA", domain.TypeCardPurchase},
		{"transfer", "sem pista na descricao", domain.TypeTransfer},
		{"", "MOVIMENTO QUALQUER", domain.TypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			if got := inferType(tt.token, tt.description); got != tt.want {
				t.Errorf("inferType(%q, %q) = %s; want %s", tt.token, tt.description, got, tt.want)
			}
		})
	}
}
