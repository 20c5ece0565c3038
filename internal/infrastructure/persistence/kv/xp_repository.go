package kv

import (
	"context"
	"strings"
	"time"

	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/domain/xp"
)

// balanceRecord is the persisted shape of the balance key. The transaction
// log and the grant side-ledger live under their own keys per the key
// contract; the balance record is written last so it acts as the commit
// marker for the whole account.
type balanceRecord struct {
	UserID         shared.UserID `json:"user_id"`
	CurrentXP      int           `json:"current_xp"`
	LifetimeEarned int           `json:"lifetime_earned"`
	LifetimeSpent  int           `json:"lifetime_spent"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// XPRepository maps XP accounts onto the balance/transactions/grants keys.
type XPRepository struct {
	store Store
}

// NewXPRepository creates a repository over any Store backend.
func NewXPRepository(store Store) *XPRepository {
	return &XPRepository{store: store}
}

// Get implements xp.Repository.
func (r *XPRepository) Get(ctx context.Context, userID shared.UserID) (*xp.Account, error) {
	var rec balanceRecord
	err := r.store.LoadJSON(ctx, XPBalanceKey(userID), &rec)
	if shared.IsNotFound(err) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, shared.WrapError("xp", "Get", shared.ErrStorageUnavailable, "load balance", err)
	}

	account := &xp.Account{
		UserID:         rec.UserID,
		CurrentXP:      rec.CurrentXP,
		LifetimeEarned: rec.LifetimeEarned,
		LifetimeSpent:  rec.LifetimeSpent,
		Transactions:   []*xp.Transaction{},
		GrantsReceived: map[string]bool{},
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}

	err = r.store.LoadJSON(ctx, XPTransactionsKey(userID), &account.Transactions)
	if err != nil && !shared.IsNotFound(err) {
		return nil, shared.WrapError("xp", "Get", shared.ErrStorageUnavailable, "load transactions", err)
	}
	err = r.store.LoadJSON(ctx, XPGrantsKey(userID), &account.GrantsReceived)
	if err != nil && !shared.IsNotFound(err) {
		return nil, shared.WrapError("xp", "Get", shared.ErrStorageUnavailable, "load grants", err)
	}
	return account, nil
}

// Save implements xp.Repository. Transactions and grants go first; the
// balance record lands last, under the caller's key lock, so a failed write
// never leaves a new balance pointing at an old log.
func (r *XPRepository) Save(ctx context.Context, account *xp.Account) error {
	if err := r.store.SaveJSON(ctx, XPTransactionsKey(account.UserID), account.Transactions); err != nil {
		return shared.WrapError("xp", "Save", shared.ErrStorageUnavailable, "save transactions", err)
	}
	if err := r.store.SaveJSON(ctx, XPGrantsKey(account.UserID), account.GrantsReceived); err != nil {
		return shared.WrapError("xp", "Save", shared.ErrStorageUnavailable, "save grants", err)
	}
	rec := balanceRecord{
		UserID:         account.UserID,
		CurrentXP:      account.CurrentXP,
		LifetimeEarned: account.LifetimeEarned,
		LifetimeSpent:  account.LifetimeSpent,
		CreatedAt:      account.CreatedAt,
		UpdatedAt:      account.UpdatedAt,
	}
	if err := r.store.SaveJSON(ctx, XPBalanceKey(account.UserID), rec); err != nil {
		return shared.WrapError("xp", "Save", shared.ErrStorageUnavailable, "save balance", err)
	}
	return nil
}

// ListUserIDs implements xp.Repository.
func (r *XPRepository) ListUserIDs(ctx context.Context) ([]shared.UserID, error) {
	keys, err := r.store.Keys(ctx, XPBalancePrefix)
	if err != nil {
		return nil, shared.WrapError("xp", "ListUserIDs", shared.ErrStorageUnavailable, "list keys", err)
	}
	ids := make([]shared.UserID, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, shared.UserID(strings.TrimPrefix(k, XPBalancePrefix)))
	}
	return ids, nil
}

// Delete implements xp.Repository.
func (r *XPRepository) Delete(ctx context.Context, userID shared.UserID) error {
	for _, key := range []string{
		XPTransactionsKey(userID),
		XPGrantsKey(userID),
		XPBalanceKey(userID),
	} {
		if err := r.store.Remove(ctx, key); err != nil {
			return shared.WrapError("xp", "Delete", shared.ErrStorageUnavailable, "remove key", err)
		}
	}
	return nil
}
