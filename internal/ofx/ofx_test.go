package ofx

import (
	"math"
	"testing"
	"time"

	"github.com/finlatam/bankparse/internal/domain"
)

// sgmlStatement mimics the header-less, unclosed-tag SGML that Brazilian
// banks export. The strict parser rejects it; the lenient pass must not.
const sgmlStatement = `Extrato gerado em 31/07/2025
<OFX>
<BANKMSGSRSV1>
<STMTTRNRS>
<STMTRS>
<CURDEF>BRL
<BANKACCTFROM>
<BANKID>341
<BRANCHID>0456
<ACCTID>12345-6
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20250701
<DTEND>20250731
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20250715120000[-3:BRT]
<TRNAMT>632.10
<FITID>TXN002
<NAME>TED RECEBIDA EMPRESA
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250710
<TRNAMT>-100.00
<FITID>TXN001
<MEMO>PAGAMENTO BOLETO
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>532.10
<DTASOF>20250731
</LEDGERBAL>
<AVAILBAL>
<BALAMT>500.00
<DTASOF>20250731
</AVAILBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>
`

func TestParse_LenientSGML(t *testing.T) {
	stmt, err := Parse(sgmlStatement, "extrato.ofx")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if stmt.Format != domain.FormatOFX {
		t.Errorf("Format = %s; want OFX", stmt.Format)
	}

	if stmt.Account.BankCode != "341" {
		t.Errorf("BankCode = %q; want 341", stmt.Account.BankCode)
	}
	if stmt.Account.BranchCode != "0456" {
		t.Errorf("BranchCode = %q; want 0456", stmt.Account.BranchCode)
	}
	if stmt.Account.AccountNumber != "12345-6" {
		t.Errorf("AccountNumber = %q; want 12345-6", stmt.Account.AccountNumber)
	}
	if stmt.Account.Type != domain.AccountTypeChecking {
		t.Errorf("AccountType = %s; want CHECKING", stmt.Account.Type)
	}
	if stmt.Account.Currency != "BRL" {
		t.Errorf("Currency = %q; want BRL", stmt.Account.Currency)
	}

	if !stmt.Period.Start.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)) ||
		!stmt.Period.End.Equal(time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Period = %v..%v", stmt.Period.Start, stmt.Period.End)
	}

	if stmt.Balance.Closing != 532.10 {
		t.Errorf("Closing = %v; want 532.10", stmt.Balance.Closing)
	}
	if !stmt.Balance.HasAvailable || stmt.Balance.Available != 500 {
		t.Errorf("Available = %v (has: %v); want 500", stmt.Balance.Available, stmt.Balance.HasAvailable)
	}

	if len(stmt.Transactions) != 2 {
		t.Fatalf("got %d transactions; want 2", len(stmt.Transactions))
	}

	// Sorted ascending by date regardless of file order.
	first, second := stmt.Transactions[0], stmt.Transactions[1]
	if first.FitID != "TXN001" || second.FitID != "TXN002" {
		t.Errorf("order = %s, %s; want TXN001, TXN002", first.FitID, second.FitID)
	}

	if first.Amount != -100 || first.Direction != domain.DirectionDebit {
		t.Errorf("TXN001 amount/direction = %v/%s", first.Amount, first.Direction)
	}
	if first.Description != "PAGAMENTO BOLETO" {
		t.Errorf("TXN001 description = %q; want memo fallback", first.Description)
	}

	if second.Amount != 632.10 || second.Direction != domain.DirectionCredit {
		t.Errorf("TXN002 amount/direction = %v/%s", second.Amount, second.Direction)
	}
	if second.Type != domain.TypeDeposit {
		t.Errorf("TXN002 type = %s; want DEPOSIT (CREDIT token)", second.Type)
	}
	if !second.Date.Equal(time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("TXN002 date = %v; want timezone suffix stripped", second.Date)
	}

	if stmt.Summary.TotalTransactions != 2 {
		t.Errorf("Summary.TotalTransactions = %d", stmt.Summary.TotalTransactions)
	}
	if math.Abs(stmt.Summary.NetMovement-532.10) > 1e-9 {
		t.Errorf("NetMovement = %v; want 532.10", stmt.Summary.NetMovement)
	}
}

func TestParse_QFXFormat(t *testing.T) {
	stmt, err := Parse(sgmlStatement, "extrato.QFX")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if stmt.Format != domain.FormatQFX {
		t.Errorf("Format = %s; want QFX", stmt.Format)
	}
}

func TestParse_DropsIncompleteRecords(t *testing.T) {
	content := `<OFX>
<BANKMSGSRSV1>
<STMTRS>
<CURDEF>BRL
<BANKACCTFROM>
<ACCTID>999
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20250701
<DTEND>20250731
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20250710
<TRNAMT>10.00
<NAME>SEM FITID
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<TRNAMT>20.00
<FITID>SEM-DATA
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20250712
<TRNAMT>30.00
<FITID>OK-1
<NAME>VALIDO
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>30.00
<DTASOF>20250731
</LEDGERBAL>
</STMTRS>
</BANKMSGSRSV1>
</OFX>
`
	stmt, err := Parse(content, "extrato.ofx")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(stmt.Transactions) != 1 {
		t.Fatalf("got %d transactions; want 1 (incomplete records dropped)", len(stmt.Transactions))
	}
	if stmt.Transactions[0].FitID != "OK-1" {
		t.Errorf("kept FitID = %s; want OK-1", stmt.Transactions[0].FitID)
	}
}

func TestParse_CreditCardStatement(t *testing.T) {
	content := `<OFX>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<CCSTMTRS>
<CURDEF>BRL
<CCACCTFROM>
<ACCTID>5555-4444
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20250701
<DTEND>20250731
<STMTTRN>
<TRNTYPE>POS
<DTPOSTED>20250705
<TRNAMT>-89.90
<FITID>CC-1
<NAME>RESTAURANTE CENTRO
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-89.90
<DTASOF>20250731
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>
`
	stmt, err := Parse(content, "fatura.ofx")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if stmt.Account.Type != domain.AccountTypeCreditCard {
		t.Errorf("AccountType = %s; want CREDITCARD", stmt.Account.Type)
	}
	if stmt.Account.AccountNumber != "5555-4444" {
		t.Errorf("AccountNumber = %q", stmt.Account.AccountNumber)
	}
	if len(stmt.Transactions) != 1 {
		t.Fatalf("got %d transactions; want 1", len(stmt.Transactions))
	}
	if stmt.Transactions[0].Type != domain.TypeCardPurchase {
		t.Errorf("Type = %s; want CARD_PURCHASE", stmt.Transactions[0].Type)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"no statement block", "<OFX><SIGNONMSGSRSV1></SIGNONMSGSRSV1></OFX>"},
		{"missing ledger balance", `<OFX><BANKMSGSRSV1><STMTRS><BANKTRANLIST><DTSTART>20250701
<DTEND>20250731
</BANKTRANLIST></STMTRS></BANKMSGSRSV1></OFX>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.content, "extrato.ofx"); err == nil {
				t.Error("Parse() should fail")
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{name: "date only", in: "20250710", want: time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)},
		{name: "date and time", in: "20250710143000", want: time.Date(2025, 7, 10, 14, 30, 0, 0, time.UTC)},
		{name: "timezone suffix stripped", in: "20250710143000[-3:BRT]", want: time.Date(2025, 7, 10, 14, 30, 0, 0, time.UTC)},
		{name: "milliseconds ignored", in: "20250710143000.000", want: time.Date(2025, 7, 10, 14, 30, 0, 0, time.UTC)},
		{name: "too short", in: "2025071", wantErr: true},
		{name: "empty", in: "", wantErr: true},
		{name: "garbage", in: "abcdefgh", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDate(%q) = %v; want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q) error: %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v; want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "632.10", want: 632.10},
		{in: "-100.00", want: -100},
		{in: "  25.50 ", want: 25.50},
		{in: "1000", want: 1000},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAmount(%q) = %v; want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseAmount(%q) = %v; want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMapTypeToken(t *testing.T) {
	tests := []struct {
		token string
		want  domain.TransactionType
	}{
		{"XFER", domain.TypeTransfer},
		{"FEE", domain.TypeFee},
		{"SRVCHG", domain.TypeFee},
		{"INT", domain.TypeInterest},
		{"ATM", domain.TypeWithdrawal},
		{"CASH", domain.TypeWithdrawal},
		{"DEP", domain.TypeDeposit},
		{"DIRECTDEP", domain.TypeDeposit},
		{"CREDIT", domain.TypeDeposit},
		{"CHECK", domain.TypeCheck},
		{"PAYMENT", domain.TypePayment},
		{"DIRECTDEBIT", domain.TypePayment},
		{"REPEATPMT", domain.TypePayment},
		{"POS", domain.TypeCardPurchase},
		{"credit", domain.TypeDeposit},
		{" xfer ", domain.TypeTransfer},
		{"DEBIT", domain.TypeOther},
		{"UNKNOWN", domain.TypeOther},
		{"", domain.TypeOther},
	}

	for _, tt := range tests {
		if got := MapTypeToken(tt.token); got != tt.want {
			t.Errorf("MapTypeToken(%q) = %s; want %s", tt.token, got, tt.want)
		}
	}
}
