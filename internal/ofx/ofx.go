// Package ofx provides OFX/QFX statement parsing.
//
// Parsing runs in two passes: a strict pass through ofxgo for well-formed
// files, then a lenient tag-tree pass that tolerates the malformed SGML many
// Brazilian banks export (missing headers, stray preambles, partial records).
package ofx

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"

	"github.com/finlatam/bankparse/internal/domain"
)

// Parse extracts a normalized statement from OFX/QFX content.
func Parse(content, fileName string) (*domain.BankStatementData, error) {
	format := domain.FormatOFX
	if strings.EqualFold(filepath.Ext(fileName), ".qfx") {
		format = domain.FormatQFX
	}

	stmt, strictErr := parseStrict(content)
	if strictErr != nil {
		var lenientErr error
		stmt, lenientErr = parseLenient(content)
		if lenientErr != nil {
			return nil, fmt.Errorf("failed to parse OFX content: %w (strict parser: %v)", lenientErr, strictErr)
		}
	}

	stmt.Format = format
	domain.SortTransactions(stmt.Transactions)
	stmt.Summary = domain.ComputeSummary(stmt.Transactions)
	return stmt, nil
}

// parseStrict decodes the content with ofxgo. It handles well-formed
// OFX 1.x and 2.x files and fails on anything irregular.
func parseStrict(content string) (*domain.BankStatementData, error) {
	resp, err := ofxgo.ParseResponse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}

	if len(resp.Bank) > 0 {
		bankStmt, ok := resp.Bank[0].(*ofxgo.StatementResponse)
		if !ok {
			return nil, fmt.Errorf("unexpected bank statement type %T", resp.Bank[0])
		}
		return mapBankStatement(bankStmt)
	}

	if len(resp.CreditCard) > 0 {
		ccStmt, ok := resp.CreditCard[0].(*ofxgo.CCStatementResponse)
		if !ok {
			return nil, fmt.Errorf("unexpected credit card statement type %T", resp.CreditCard[0])
		}
		return mapCCStatement(ccStmt)
	}

	return nil, fmt.Errorf("no bank or credit card statement response in OFX file (bank: %d, creditcard: %d)",
		len(resp.Bank), len(resp.CreditCard))
}

func mapBankStatement(stmt *ofxgo.StatementResponse) (*domain.BankStatementData, error) {
	if stmt.BankTranList == nil {
		return nil, fmt.Errorf("missing transaction list in bank statement")
	}

	account := domain.BankAccount{
		BankCode:      stmt.BankAcctFrom.BankID.String(),
		BranchCode:    stmt.BankAcctFrom.BranchID.String(),
		AccountNumber: stmt.BankAcctFrom.AcctID.String(),
		Type:          mapOFXAccountType(stmt.BankAcctFrom),
		Currency:      stmt.CurDef.String(),
	}
	if account.AccountNumber == "" {
		return nil, fmt.Errorf("missing account ID in bank statement")
	}

	closing, _ := stmt.BalAmt.Float64()
	balance := domain.Balance{
		Closing:  closing,
		Currency: account.Currency,
		AsOf:     stmt.DtAsOf.Time,
	}
	if stmt.AvailBalAmt != nil {
		balance.Available, _ = stmt.AvailBalAmt.Float64()
		balance.HasAvailable = true
	}

	period, err := periodFromDates(stmt.BankTranList.DtStart.Time, stmt.BankTranList.DtEnd.Time)
	if err != nil {
		return nil, err
	}

	return &domain.BankStatementData{
		Account:      account,
		Period:       period,
		Balance:      balance,
		Transactions: mapOFXTransactions(stmt.BankTranList),
	}, nil
}

func mapCCStatement(stmt *ofxgo.CCStatementResponse) (*domain.BankStatementData, error) {
	if stmt.BankTranList == nil {
		return nil, fmt.Errorf("missing transaction list in credit card statement")
	}

	account := domain.BankAccount{
		AccountNumber: stmt.CCAcctFrom.AcctID.String(),
		Type:          domain.AccountTypeCreditCard,
		Currency:      stmt.CurDef.String(),
	}
	if account.AccountNumber == "" {
		return nil, fmt.Errorf("missing account ID in credit card statement")
	}

	closing, _ := stmt.BalAmt.Float64()
	balance := domain.Balance{
		Closing:  closing,
		Currency: account.Currency,
		AsOf:     stmt.DtAsOf.Time,
	}
	if stmt.AvailBalAmt != nil {
		balance.Available, _ = stmt.AvailBalAmt.Float64()
		balance.HasAvailable = true
	}

	period, err := periodFromDates(stmt.BankTranList.DtStart.Time, stmt.BankTranList.DtEnd.Time)
	if err != nil {
		return nil, err
	}

	return &domain.BankStatementData{
		Account:      account,
		Period:       period,
		Balance:      balance,
		Transactions: mapOFXTransactions(stmt.BankTranList),
	}, nil
}

// mapOFXTransactions converts an ofxgo transaction list, dropping records
// that lack the required unique ID or posted date.
func mapOFXTransactions(list *ofxgo.TransactionList) []domain.BankTransaction {
	out := make([]domain.BankTransaction, 0, len(list.Transactions))
	for _, txn := range list.Transactions {
		id := txn.FiTID.String()
		if id == "" {
			continue
		}

		date := txn.DtPosted.Time
		if date.IsZero() {
			date = txn.DtUser.Time
		}
		if date.IsZero() {
			continue
		}

		description := strings.TrimSpace(txn.Name.String())
		if description == "" {
			description = strings.TrimSpace(txn.Memo.String())
		}

		amount, _ := txn.TrnAmt.Float64()

		result, err := domain.NewBankTransaction(id, date, amount, description)
		if err != nil {
			continue
		}
		result.PostDate = txn.DtPosted.Time
		result.Type = mapOFXTransactionType(txn)
		result.Memo = strings.TrimSpace(txn.Memo.String())
		result.Raw = map[string]string{
			"fitid":   id,
			"trntype": txn.TrnType.String(),
			"name":    txn.Name.String(),
			"memo":    txn.Memo.String(),
		}
		out = append(out, *result)
	}
	return out
}

// mapOFXAccountType maps the OFX account type to the internal enum. Unknown
// types degrade to checking rather than failing the parse.
func mapOFXAccountType(acct ofxgo.BankAcct) domain.AccountType {
	switch acct.AcctType {
	case ofxgo.AcctTypeSavings:
		return domain.AccountTypeSavings
	default:
		return domain.AccountTypeChecking
	}
}

// mapOFXTransactionType maps the OFX transaction type to the internal enum.
func mapOFXTransactionType(txn ofxgo.Transaction) domain.TransactionType {
	switch txn.TrnType {
	case ofxgo.TrnTypeXfer:
		return domain.TypeTransfer
	case ofxgo.TrnTypeFee, ofxgo.TrnTypeSrvChg:
		return domain.TypeFee
	case ofxgo.TrnTypeInt:
		return domain.TypeInterest
	case ofxgo.TrnTypeATM, ofxgo.TrnTypeCash:
		return domain.TypeWithdrawal
	case ofxgo.TrnTypeDep, ofxgo.TrnTypeDirectDep, ofxgo.TrnTypeCredit:
		return domain.TypeDeposit
	case ofxgo.TrnTypeCheck:
		return domain.TypeCheck
	case ofxgo.TrnTypePayment, ofxgo.TrnTypeDirectDebit, ofxgo.TrnTypeRepeatPmt:
		return domain.TypePayment
	case ofxgo.TrnTypePOS:
		return domain.TypeCardPurchase
	default:
		return domain.TypeOther
	}
}

// typeTokens is the closed lookup from OFX TRNTYPE tokens to the internal
// enum, used by the lenient pass. Unknown tokens map to OTHER.
var typeTokens = map[string]domain.TransactionType{
	"XFER":        domain.TypeTransfer,
	"FEE":         domain.TypeFee,
	"SRVCHG":      domain.TypeFee,
	"INT":         domain.TypeInterest,
	"ATM":         domain.TypeWithdrawal,
	"CASH":        domain.TypeWithdrawal,
	"DEP":         domain.TypeDeposit,
	"DIRECTDEP":   domain.TypeDeposit,
	"CREDIT":      domain.TypeDeposit,
	"CHECK":       domain.TypeCheck,
	"PAYMENT":     domain.TypePayment,
	"DIRECTDEBIT": domain.TypePayment,
	"REPEATPMT":   domain.TypePayment,
	"POS":         domain.TypeCardPurchase,
}

// MapTypeToken maps an OFX TRNTYPE token to the internal transaction type.
func MapTypeToken(token string) domain.TransactionType {
	if t, ok := typeTokens[strings.ToUpper(strings.TrimSpace(token))]; ok {
		return t
	}
	return domain.TypeOther
}

// parseLenient extracts a statement through the tag tree, locating the
// response under the banking or the credit-card message path. The two are
// mutually exclusive; neither present is a hard failure.
func parseLenient(content string) (*domain.BankStatementData, error) {
	root, err := parseTree(content)
	if err != nil {
		return nil, err
	}

	var stmtNode *node
	accountType := domain.AccountTypeChecking
	if bank := root.findDeep("BANKMSGSRSV1"); bank != nil {
		stmtNode = bank.findDeep("STMTRS")
	} else if cc := root.findDeep("CREDITCARDMSGSRSV1"); cc != nil {
		stmtNode = cc.findDeep("CCSTMTRS")
		accountType = domain.AccountTypeCreditCard
	}
	if stmtNode == nil {
		return nil, fmt.Errorf("missing statement response: expected a bank (STMTRS) or credit card (CCSTMTRS) block")
	}

	account := extractAccount(stmtNode, accountType)
	account.Currency = stmtNode.childText("CURDEF")

	tranList := stmtNode.findDeep("BANKTRANLIST")
	if tranList == nil {
		return nil, fmt.Errorf("missing transaction list (BANKTRANLIST) in statement")
	}

	start, err := ParseDate(tranList.childText("DTSTART"))
	if err != nil {
		return nil, fmt.Errorf("invalid period start date: %w", err)
	}
	end, err := ParseDate(tranList.childText("DTEND"))
	if err != nil {
		return nil, fmt.Errorf("invalid period end date: %w", err)
	}
	period, err := periodFromDates(start, end)
	if err != nil {
		return nil, err
	}

	balance, err := extractBalance(stmtNode, account.Currency)
	if err != nil {
		return nil, err
	}

	transactions := make([]domain.BankTransaction, 0, len(tranList.all("STMTTRN")))
	for _, tn := range tranList.all("STMTTRN") {
		txn, ok := extractTransaction(tn)
		if !ok {
			// Records missing the required ID or posted date are dropped,
			// not fatal to the whole parse.
			continue
		}
		transactions = append(transactions, txn)
	}

	return &domain.BankStatementData{
		Account:      account,
		Period:       period,
		Balance:      balance,
		Transactions: transactions,
	}, nil
}

// extractAccount prefers a bank-account block over a credit-card block.
func extractAccount(stmtNode *node, fallbackType domain.AccountType) domain.BankAccount {
	if acct := stmtNode.findDeep("BANKACCTFROM"); acct != nil {
		accountType := domain.AccountTypeChecking
		if strings.EqualFold(acct.childText("ACCTTYPE"), "SAVINGS") {
			accountType = domain.AccountTypeSavings
		}
		return domain.BankAccount{
			BankCode:      acct.childText("BANKID"),
			BranchCode:    acct.childText("BRANCHID"),
			AccountNumber: acct.childText("ACCTID"),
			Type:          accountType,
		}
	}
	if acct := stmtNode.findDeep("CCACCTFROM"); acct != nil {
		return domain.BankAccount{
			AccountNumber: acct.childText("ACCTID"),
			Type:          domain.AccountTypeCreditCard,
		}
	}
	return domain.BankAccount{Type: fallbackType}
}

// extractBalance reads the required ledger balance and the optional
// available balance. OFX carries no opening balance; it stays 0.
func extractBalance(stmtNode *node, currency string) (domain.Balance, error) {
	ledger := stmtNode.findDeep("LEDGERBAL")
	if ledger == nil {
		return domain.Balance{}, fmt.Errorf("missing ledger balance (LEDGERBAL) in statement")
	}
	closing, err := ParseAmount(ledger.childText("BALAMT"))
	if err != nil {
		return domain.Balance{}, fmt.Errorf("invalid ledger balance amount: %w", err)
	}

	balance := domain.Balance{Closing: closing, Currency: currency}
	if asOf, err := ParseDate(ledger.childText("DTASOF")); err == nil {
		balance.AsOf = asOf
	}

	if avail := stmtNode.findDeep("AVAILBAL"); avail != nil {
		if amount, err := ParseAmount(avail.childText("BALAMT")); err == nil {
			balance.Available = amount
			balance.HasAvailable = true
		}
	}
	return balance, nil
}

// extractTransaction reads one STMTTRN. Returns false when the record lacks
// a non-empty FITID or a parsable posted date.
func extractTransaction(tn *node) (domain.BankTransaction, bool) {
	id := tn.childText("FITID")
	if id == "" {
		return domain.BankTransaction{}, false
	}

	date, err := ParseDate(tn.childText("DTPOSTED"))
	if err != nil {
		return domain.BankTransaction{}, false
	}

	amount, err := ParseAmount(tn.childText("TRNAMT"))
	if err != nil {
		return domain.BankTransaction{}, false
	}

	description := tn.childText("NAME")
	if description == "" {
		description = tn.childText("MEMO")
	}

	txn, err := domain.NewBankTransaction(id, date, amount, description)
	if err != nil {
		return domain.BankTransaction{}, false
	}
	txn.PostDate = date
	txn.Type = MapTypeToken(tn.childText("TRNTYPE"))
	txn.Memo = tn.childText("MEMO")
	txn.Raw = map[string]string{
		"fitid":   id,
		"trntype": tn.childText("TRNTYPE"),
		"name":    tn.childText("NAME"),
		"memo":    tn.childText("MEMO"),
	}
	return *txn, true
}

// ParseDate parses a fixed-width OFX date (YYYYMMDD or YYYYMMDDHHMMSS). A
// timezone suffix in brackets, e.g. 20240115120000[-3:BRT], is stripped
// before parsing. Strings shorter than 8 characters are rejected.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "["); idx >= 0 {
		s = s[:idx]
	}
	if len(s) < 8 {
		return time.Time{}, fmt.Errorf("OFX date %q is too short (need at least YYYYMMDD)", s)
	}
	if len(s) >= 14 {
		if t, err := time.Parse("20060102150405", s[:14]); err == nil {
			return t, nil
		}
	}
	t, err := time.Parse("20060102", s[:8])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid OFX date %q: %w", s, err)
	}
	return t, nil
}

// ParseAmount parses an OFX amount, stripping any character that is not a
// digit, minus sign, or decimal point.
func ParseAmount(s string) (float64, error) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '-' || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, fmt.Errorf("amount %q contains no numeric characters", s)
	}
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return amount, nil
}

func periodFromDates(start, end time.Time) (domain.Period, error) {
	if start.IsZero() || end.IsZero() {
		return domain.Period{}, fmt.Errorf("statement period requires both start and end dates")
	}
	return domain.Period{Start: start, End: end, GeneratedAt: time.Now()}, nil
}
