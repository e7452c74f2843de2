package accounts

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallybook-dev/tallybook/internal/model"
)

func TestAccountsRoundTrip(t *testing.T) {
	hdr := acct("1000", model.AccountTypeAsset)
	hdr.IsHeader = true
	leaf := acct("1010", model.AccountTypeAsset)
	leaf.ParentID = hdr.ID
	leaf.Currency = "EUR"
	leaf.Balance = decimal.RequireFromString("1234.56")

	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, []model.Account{hdr, leaf}))

	got, err := ReadAccounts(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.True(t, got[0].IsHeader)
	assert.Equal(t, hdr.ID, got[1].ParentID)
	assert.Equal(t, "EUR", got[1].Currency)
	assert.True(t, got[1].Balance.Equal(leaf.Balance))
}

func TestUnmarshalAccountBadRow(t *testing.T) {
	_, err := UnmarshalAccount([]string{"not-a-uuid"})
	assert.Error(t, err)

	row := MarshalAccount(acct("1010", model.AccountTypeAsset))
	row[colBalance] = "abc"
	_, err = UnmarshalAccount(row)
	assert.Error(t, err)
}
