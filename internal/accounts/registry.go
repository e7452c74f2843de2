package accounts

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallybook-dev/tallybook/internal/model"
)

// Registry is an in-memory directory over a tenant's chart of accounts.
// It is read-only from the engine's perspective; administrative mutation
// happens outside and produces a fresh snapshot.
type Registry struct {
	accounts []model.Account
	byID     map[uuid.UUID]model.Account
	byCode   map[string]model.Account
	children map[uuid.UUID][]uuid.UUID
}

// NewRegistry builds a Registry from a chart-of-accounts snapshot,
// validating codes, types, and the header hierarchy.
func NewRegistry(accounts []model.Account) (*Registry, error) {
	r := &Registry{
		accounts: accounts,
		byID:     make(map[uuid.UUID]model.Account, len(accounts)),
		byCode:   make(map[string]model.Account, len(accounts)),
		children: make(map[uuid.UUID][]uuid.UUID),
	}

	for _, a := range accounts {
		if !a.Type.Valid() {
			return nil, fmt.Errorf("account %s: unknown type %q", a.Code, a.Type)
		}
		if _, dup := r.byID[a.ID]; dup {
			return nil, fmt.Errorf("account %s: duplicate id %s", a.Code, a.ID)
		}
		if _, dup := r.byCode[a.Code]; dup {
			return nil, fmt.Errorf("duplicate account code %q", a.Code)
		}
		r.byID[a.ID] = a
		r.byCode[a.Code] = a
	}

	for _, a := range accounts {
		if a.ParentID == uuid.Nil {
			continue
		}
		parent, ok := r.byID[a.ParentID]
		if !ok {
			return nil, fmt.Errorf("account %s: parent %s does not exist", a.Code, a.ParentID)
		}
		if !parent.IsHeader {
			return nil, fmt.Errorf("account %s: parent %s is not a header account", a.Code, parent.Code)
		}
		r.children[a.ParentID] = append(r.children[a.ParentID], a.ID)
	}

	if err := r.checkAcyclic(); err != nil {
		return nil, err
	}
	return r, nil
}

// checkAcyclic walks every parent chain. Accounts are referenced by
// opaque ids, so a cycle is representable and must be rejected here,
// not left to the storage schema.
func (r *Registry) checkAcyclic() error {
	for _, a := range r.accounts {
		seen := map[uuid.UUID]bool{a.ID: true}
		for cur := a.ParentID; cur != uuid.Nil; {
			if seen[cur] {
				return fmt.Errorf("account %s: cycle in parent chain", a.Code)
			}
			seen[cur] = true
			cur = r.byID[cur].ParentID
		}
	}
	return nil
}

// Resolve returns an account by id.
func (r *Registry) Resolve(accountID uuid.UUID) (model.Account, error) {
	a, ok := r.byID[accountID]
	if !ok {
		return model.Account{}, fmt.Errorf("account %s: %w", accountID, model.ErrNotFound)
	}
	return a, nil
}

// ResolveCode returns an account by its tenant-unique code.
func (r *Registry) ResolveCode(code string) (model.Account, error) {
	a, ok := r.byCode[code]
	if !ok {
		return model.Account{}, fmt.Errorf("account code %q: %w", code, model.ErrNotFound)
	}
	return a, nil
}

// IsPostable reports whether an account may receive journal lines:
// active and not a header.
func (r *Registry) IsPostable(a model.Account) bool {
	return a.Postable()
}

// NormalBalance returns the side on which an account type increases.
func (r *Registry) NormalBalance(t model.AccountType) model.BalanceSide {
	return t.NormalBalance()
}

// All returns the snapshot in its original order.
func (r *Registry) All() []model.Account {
	return r.accounts
}

// ByType returns all accounts of the given type.
func (r *Registry) ByType(t model.AccountType) []model.Account {
	var out []model.Account
	for _, a := range r.accounts {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

// RolledUp returns the account's balance including all descendants.
// Header accounts carry no balance of their own; their value is the sum
// of their subtree.
func (r *Registry) RolledUp(accountID uuid.UUID) (decimal.Decimal, error) {
	a, err := r.Resolve(accountID)
	if err != nil {
		return decimal.Zero, err
	}
	total := a.Balance
	for _, childID := range r.children[accountID] {
		sub, err := r.RolledUp(childID)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(sub)
	}
	return total, nil
}
