package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallybook-dev/tallybook/internal/model"
)

const (
	numFields   = 10
	colID       = 0
	colTenant   = 1
	colCode     = 2
	colName     = 3
	colType     = 4
	colParent   = 5
	colHeader   = 6
	colActive   = 7
	colCurrency = 8
	colBalance  = 9
)

var header = []string{"id", "tenant_id", "code", "name", "type", "parent_id", "header", "active", "currency", "balance"}

// ReadAccounts reads a chart-of-accounts CSV snapshot.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var accounts []model.Account
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes a chart-of-accounts CSV snapshot.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(a model.Account) []string {
	row := make([]string, numFields)
	row[colID] = a.ID.String()
	row[colTenant] = a.TenantID.String()
	row[colCode] = a.Code
	row[colName] = a.Name
	row[colType] = string(a.Type)
	if a.ParentID != uuid.Nil {
		row[colParent] = a.ParentID.String()
	}
	row[colHeader] = strconv.FormatBool(a.IsHeader)
	row[colActive] = strconv.FormatBool(a.Active)
	row[colCurrency] = a.Currency
	row[colBalance] = a.Balance.StringFixed(2)
	return row
}

// UnmarshalAccount converts a CSV row to an Account.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != numFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	accountID, err := uuid.Parse(record[colID])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing id %q: %w", record[colID], err)
	}
	tenantID, err := uuid.Parse(record[colTenant])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing tenant_id %q: %w", record[colTenant], err)
	}

	parentID := uuid.Nil
	if record[colParent] != "" {
		parentID, err = uuid.Parse(record[colParent])
		if err != nil {
			return model.Account{}, fmt.Errorf("parsing parent_id %q: %w", record[colParent], err)
		}
	}

	isHeader, err := strconv.ParseBool(record[colHeader])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing header %q: %w", record[colHeader], err)
	}
	active, err := strconv.ParseBool(record[colActive])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing active %q: %w", record[colActive], err)
	}

	balance := decimal.Zero
	if record[colBalance] != "" {
		balance, err = decimal.NewFromString(record[colBalance])
		if err != nil {
			return model.Account{}, fmt.Errorf("parsing balance %q: %w", record[colBalance], err)
		}
	}

	return model.Account{
		ID:       accountID,
		TenantID: tenantID,
		Code:     record[colCode],
		Name:     record[colName],
		Type:     model.AccountType(record[colType]),
		ParentID: parentID,
		IsHeader: isHeader,
		Active:   active,
		Currency: record[colCurrency],
		Balance:  balance,
	}, nil
}
