package journal

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallybook-dev/tallybook/internal/model"
)

var testTenant = uuid.MustParse("6fa459ea-ee8a-3ca4-894e-db77e160355e")

// mockAccounts implements AccountResolver for testing.
type mockAccounts struct {
	accounts map[uuid.UUID]model.Account
}

func (m *mockAccounts) Resolve(accountID uuid.UUID) (model.Account, error) {
	a, ok := m.accounts[accountID]
	if !ok {
		return model.Account{}, model.ErrNotFound
	}
	return a, nil
}

func (m *mockAccounts) add(code string, t model.AccountType) uuid.UUID {
	a := model.Account{ID: uuid.New(), TenantID: testTenant, Code: code, Type: t, Active: true}
	m.accounts[a.ID] = a
	return a.ID
}

// mockPeriods implements PeriodResolver with a single period.
type mockPeriods struct {
	period model.Period
	none   bool
}

func (m *mockPeriods) PeriodFor(date time.Time) (model.Period, error) {
	if m.none {
		return model.Period{}, model.ErrNotFound
	}
	return m.period, nil
}

func openJanuary() *mockPeriods {
	return &mockPeriods{period: model.Period{
		ID:     uuid.New(),
		Number: 1,
		Start:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		Status: model.PeriodOpen,
	}}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y, m, d int) time.Time { return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC) }

func draft(lines ...model.JournalLine) model.Transaction {
	tx := model.Transaction{
		TenantID: testTenant,
		Date:     date(2025, 1, 15),
		Status:   model.StatusDraft,
		Lines:    lines,
	}
	tx.TotalDebit, tx.TotalCredit = tx.Totals()
	return tx
}

func TestValidate_Balanced(t *testing.T) {
	m := &mockAccounts{accounts: map[uuid.UUID]model.Account{}}
	cash := m.add("1010", model.AccountTypeAsset)
	revenue := m.add("4000", model.AccountTypeRevenue)

	tx := draft(
		model.JournalLine{AccountID: cash, Debit: dec("100.00")},
		model.JournalLine{AccountID: revenue, Credit: dec("100.00")},
	)
	assert.Empty(t, Validate(tx, m, openJanuary()))
}

func TestValidate_Unbalanced(t *testing.T) {
	m := &mockAccounts{accounts: map[uuid.UUID]model.Account{}}
	cash := m.add("1010", model.AccountTypeAsset)
	revenue := m.add("4000", model.AccountTypeRevenue)

	// Cash debit 1000 against revenue credit 950: out of balance by 50.
	tx := draft(
		model.JournalLine{AccountID: cash, Debit: dec("1000.00")},
		model.JournalLine{AccountID: revenue, Credit: dec("950.00")},
	)
	errs := Validate(tx, m, openJanuary())
	require.Len(t, errs, 1)

	var unbalanced model.UnbalancedError
	require.ErrorAs(t, errs[0], &unbalanced)
	assert.True(t, unbalanced.Difference.Equal(dec("50.00")), "got %s", unbalanced.Difference)
	assert.Equal(t, "transaction out of balance by $50.00", errs[0].Error())
}

func TestValidate_WithinTolerance(t *testing.T) {
	m := &mockAccounts{accounts: map[uuid.UUID]model.Account{}}
	cash := m.add("1010", model.AccountTypeAsset)
	revenue := m.add("4000", model.AccountTypeRevenue)

	tx := draft(
		model.JournalLine{AccountID: cash, Debit: dec("100.00")},
		model.JournalLine{AccountID: revenue, Credit: dec("99.99")},
	)
	assert.Empty(t, Validate(tx, m, openJanuary()))
}

func TestValidate_TooFewLines(t *testing.T) {
	m := &mockAccounts{accounts: map[uuid.UUID]model.Account{}}
	cash := m.add("1010", model.AccountTypeAsset)

	tx := draft(model.JournalLine{AccountID: cash, Debit: dec("100.00")})
	errs := Validate(tx, m, openJanuary())
	require.NotEmpty(t, errs)

	var tooFew model.TooFewLinesError
	require.ErrorAs(t, errs[0], &tooFew)
	assert.Equal(t, 1, tooFew.Count)
}

func TestValidate_EmptyLine(t *testing.T) {
	m := &mockAccounts{accounts: map[uuid.UUID]model.Account{}}
	cash := m.add("1010", model.AccountTypeAsset)
	revenue := m.add("4000", model.AccountTypeRevenue)

	tx := draft(
		model.JournalLine{AccountID: cash},
		model.JournalLine{AccountID: revenue},
	)
	errs := Validate(tx, m, openJanuary())

	found := 0
	for _, err := range errs {
		var empty model.EmptyLineError
		if errors.As(err, &empty) {
			found++
		}
	}
	assert.Equal(t, 2, found)
}

func TestValidate_DualSidedLine(t *testing.T) {
	m := &mockAccounts{accounts: map[uuid.UUID]model.Account{}}
	cash := m.add("1010", model.AccountTypeAsset)
	revenue := m.add("4000", model.AccountTypeRevenue)

	tx := draft(
		model.JournalLine{AccountID: cash, Debit: dec("50.00"), Credit: dec("50.00")},
		model.JournalLine{AccountID: revenue, Credit: dec("0.00")},
	)
	errs := Validate(tx, m, openJanuary())

	var dual model.DualSidedLineError
	found := false
	for _, err := range errs {
		if errors.As(err, &dual) {
			found = true
		}
	}
	require.True(t, found)
	assert.Equal(t, 0, dual.Index)
}

func TestValidate_AccountRules(t *testing.T) {
	m := &mockAccounts{accounts: map[uuid.UUID]model.Account{}}
	cash := m.add("1010", model.AccountTypeAsset)

	inactive := model.Account{ID: uuid.New(), Code: "5010", Type: model.AccountTypeExpense}
	m.accounts[inactive.ID] = inactive

	hdr := model.Account{ID: uuid.New(), Code: "1000", Type: model.AccountTypeAsset, Active: true, IsHeader: true}
	m.accounts[hdr.ID] = hdr

	tx := draft(
		model.JournalLine{AccountID: uuid.New(), Debit: dec("30.00")},
		model.JournalLine{AccountID: inactive.ID, Debit: dec("30.00")},
		model.JournalLine{AccountID: hdr.ID, Debit: dec("30.00")},
		model.JournalLine{AccountID: cash, Credit: dec("90.00")},
	)
	errs := Validate(tx, m, openJanuary())

	reasons := map[string]bool{}
	for _, err := range errs {
		var bad model.InvalidAccountError
		if errors.As(err, &bad) {
			reasons[bad.Reason] = true
		}
	}
	assert.True(t, reasons[model.AccountReasonNotFound])
	assert.True(t, reasons[model.AccountReasonInactive])
	assert.True(t, reasons[model.AccountReasonHeader])
}

func TestValidate_PeriodClosed(t *testing.T) {
	m := &mockAccounts{accounts: map[uuid.UUID]model.Account{}}
	cash := m.add("1010", model.AccountTypeAsset)
	revenue := m.add("4000", model.AccountTypeRevenue)

	periods := openJanuary()
	periods.period.Status = model.PeriodClosed

	tx := draft(
		model.JournalLine{AccountID: cash, Debit: dec("100.00")},
		model.JournalLine{AccountID: revenue, Credit: dec("100.00")},
	)
	errs := Validate(tx, m, periods)
	require.Len(t, errs, 1)

	var closed model.PeriodClosedError
	require.ErrorAs(t, errs[0], &closed)
	assert.Equal(t, periods.period.ID, closed.PeriodID)
}

func TestValidate_NoPeriodCoversDate(t *testing.T) {
	m := &mockAccounts{accounts: map[uuid.UUID]model.Account{}}
	cash := m.add("1010", model.AccountTypeAsset)
	revenue := m.add("4000", model.AccountTypeRevenue)

	tx := draft(
		model.JournalLine{AccountID: cash, Debit: dec("100.00")},
		model.JournalLine{AccountID: revenue, Credit: dec("100.00")},
	)
	errs := Validate(tx, m, &mockPeriods{none: true})
	require.Len(t, errs, 1)

	var closed model.PeriodClosedError
	assert.ErrorAs(t, errs[0], &closed)
}

// Scenario from the docs: AR 1150 / Sales 1000 / Sales tax 150 is valid.
func TestValidate_MultiLineBalanced(t *testing.T) {
	m := &mockAccounts{accounts: map[uuid.UUID]model.Account{}}
	ar := m.add("1100", model.AccountTypeAsset)
	sales := m.add("4000", model.AccountTypeRevenue)
	tax := m.add("2100", model.AccountTypeLiability)

	tx := draft(
		model.JournalLine{AccountID: ar, Debit: dec("1150.00")},
		model.JournalLine{AccountID: sales, Credit: dec("1000.00")},
		model.JournalLine{AccountID: tax, Credit: dec("150.00")},
	)
	assert.Empty(t, Validate(tx, m, openJanuary()))
}

func TestValidate_Idempotent(t *testing.T) {
	m := &mockAccounts{accounts: map[uuid.UUID]model.Account{}}
	cash := m.add("1010", model.AccountTypeAsset)
	revenue := m.add("4000", model.AccountTypeRevenue)

	tx := draft(
		model.JournalLine{AccountID: cash, Debit: dec("1000.00")},
		model.JournalLine{AccountID: revenue, Credit: dec("950.00")},
	)
	first := Validate(tx, m, openJanuary())
	second := Validate(tx, m, openJanuary())
	assert.Equal(t, first, second)
}
