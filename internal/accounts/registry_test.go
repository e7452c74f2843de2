package accounts

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallybook-dev/tallybook/internal/model"
)

var testTenant = uuid.MustParse("6fa459ea-ee8a-3ca4-894e-db77e160355e")

func acct(code string, t model.AccountType) model.Account {
	return model.Account{
		ID:       uuid.New(),
		TenantID: testTenant,
		Code:     code,
		Name:     code,
		Type:     t,
		Active:   true,
	}
}

func TestNewRegistry_DuplicateCode(t *testing.T) {
	_, err := NewRegistry([]model.Account{
		acct("1010", model.AccountTypeAsset),
		acct("1010", model.AccountTypeAsset),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate account code")
}

func TestNewRegistry_ParentMustBeHeader(t *testing.T) {
	parent := acct("1000", model.AccountTypeAsset)
	child := acct("1010", model.AccountTypeAsset)
	child.ParentID = parent.ID

	_, err := NewRegistry([]model.Account{parent, child})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a header account")
}

func TestNewRegistry_CycleRejected(t *testing.T) {
	a := acct("1000", model.AccountTypeAsset)
	a.IsHeader = true
	b := acct("1100", model.AccountTypeAsset)
	b.IsHeader = true
	a.ParentID = b.ID
	b.ParentID = a.ID

	_, err := NewRegistry([]model.Account{a, b})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestResolve(t *testing.T) {
	a := acct("1010", model.AccountTypeAsset)
	r, err := NewRegistry([]model.Account{a})
	require.NoError(t, err)

	got, err := r.Resolve(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "1010", got.Code)

	_, err = r.Resolve(uuid.New())
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestIsPostable(t *testing.T) {
	r, err := NewRegistry(nil)
	require.NoError(t, err)

	active := acct("1010", model.AccountTypeAsset)
	assert.True(t, r.IsPostable(active))

	inactive := acct("1020", model.AccountTypeAsset)
	inactive.Active = false
	assert.False(t, r.IsPostable(inactive))

	hdr := acct("1000", model.AccountTypeAsset)
	hdr.IsHeader = true
	assert.False(t, r.IsPostable(hdr))
}

func TestNormalBalance(t *testing.T) {
	r, err := NewRegistry(nil)
	require.NoError(t, err)

	assert.Equal(t, model.SideDebit, r.NormalBalance(model.AccountTypeAsset))
	assert.Equal(t, model.SideDebit, r.NormalBalance(model.AccountTypeExpense))
	assert.Equal(t, model.SideCredit, r.NormalBalance(model.AccountTypeLiability))
	assert.Equal(t, model.SideCredit, r.NormalBalance(model.AccountTypeEquity))
	assert.Equal(t, model.SideCredit, r.NormalBalance(model.AccountTypeRevenue))
}

func TestRolledUp(t *testing.T) {
	hdr := acct("1000", model.AccountTypeAsset)
	hdr.IsHeader = true
	checking := acct("1010", model.AccountTypeAsset)
	checking.ParentID = hdr.ID
	checking.Balance = decimal.RequireFromString("250.00")
	savings := acct("1020", model.AccountTypeAsset)
	savings.ParentID = hdr.ID
	savings.Balance = decimal.RequireFromString("750.00")

	r, err := NewRegistry([]model.Account{hdr, checking, savings})
	require.NoError(t, err)

	total, err := r.RolledUp(hdr.ID)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("1000.00")), "got %s", total)
}

func TestDefaultChartIsValid(t *testing.T) {
	chart := DefaultChart(testTenant)
	r, err := NewRegistry(chart)
	require.NoError(t, err)

	for _, code := range []string{CodeIncomeSummary, CodeRetainedEarnings, CodeFXGain, CodeFXLoss} {
		a, err := r.ResolveCode(code)
		require.NoError(t, err, "code %s", code)
		assert.True(t, r.IsPostable(a))
	}
}
