package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"salvadanaio/internal/core"
	"salvadanaio/internal/store"
)

// AccountService manages an owner's starting balance and exposes the
// reconciled balance with its audit trail.
type AccountService struct {
	store store.Store
	now   func() time.Time
	newID func() string
}

func NewAccountService(st store.Store) *AccountService {
	return &AccountService{
		store: st,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// SetStartingBalance records the owner's manual baseline. The cached balance
// is refreshed to the new available balance and the change is logged as a
// manual_update entry.
func (s *AccountService) SetStartingBalance(ctx context.Context, ownerID string, amount core.Money, notes string) (Balance, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Balance{}, &core.ValidationError{Field: "owner_id", Reason: "required"}
	}

	var bal Balance
	err := s.store.InTx(ctx, func(q store.Queries) error {
		acct, err := q.GetAccount(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("get account: %w", err)
		}
		previous := acct.CurrentBalance

		stamp := s.now().UTC()
		acct.OwnerID = ownerID
		acct.StartingBalance = &amount
		acct.BalanceUpdatedAt = stamp
		// Save the baseline before reconciling so the new starting balance
		// is part of the result.
		if err := q.SaveAccount(ctx, acct); err != nil {
			return fmt.Errorf("save account: %w", err)
		}
		bal, err = Reconcile(ctx, q, ownerID)
		if err != nil {
			return err
		}

		acct.CurrentBalance = bal.Available
		if err := q.SaveAccount(ctx, acct); err != nil {
			return fmt.Errorf("save account: %w", err)
		}
		return q.AppendBalanceEntry(ctx, core.BalanceEntry{
			ID:             s.newID(),
			OwnerID:        ownerID,
			Amount:         bal.Available,
			PreviousAmount: previous,
			ChangeAmount:   bal.Available.Sub(previous),
			EntryType:      core.ManualUpdate,
			Notes:          notes,
			CreatedAt:      stamp,
		})
	})
	if err != nil {
		return Balance{}, transactionError("set starting balance", err)
	}
	return bal, nil
}

// Balance reconciles the owner's balance from the ledger.
func (s *AccountService) Balance(ctx context.Context, ownerID string) (Balance, error) {
	return Reconcile(ctx, s.store, ownerID)
}

// History returns the owner's balance entries, newest first. A limit of zero
// or less returns them all.
func (s *AccountService) History(ctx context.Context, ownerID string, limit int) ([]core.BalanceEntry, error) {
	return s.store.ListBalanceEntries(ctx, ownerID, limit)
}
