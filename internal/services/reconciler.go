package services

import (
	"context"
	"fmt"

	"salvadanaio/internal/core"
	"salvadanaio/internal/store"
)

// Balance is the reconciled view of an owner's money.
//
// Reconciled is the starting balance plus counted income minus counted
// expenses. Committed is what goals already hold, and Available is what is
// left to contribute.
type Balance struct {
	Starting   core.Money
	Income     core.Money
	Expenses   core.Money
	Reconciled core.Money
	Committed  core.Money
	Available  core.Money
}

// Reconcile computes the owner's balance from the ledger. It is never cached:
// every call reads the current entries.
func Reconcile(ctx context.Context, q store.Queries, ownerID string) (Balance, error) {
	acct, err := q.GetAccount(ctx, ownerID)
	if err != nil {
		return Balance{}, fmt.Errorf("get account: %w", err)
	}
	entries, err := q.ListCountedEntries(ctx, ownerID)
	if err != nil {
		return Balance{}, fmt.Errorf("list counted entries: %w", err)
	}
	goals, err := q.ListGoals(ctx, ownerID)
	if err != nil {
		return Balance{}, fmt.Errorf("list goals: %w", err)
	}

	b := Balance{
		Starting:  core.Zero,
		Income:    core.Zero,
		Expenses:  core.Zero,
		Committed: core.Zero,
	}
	if acct.StartingBalance != nil {
		b.Starting = *acct.StartingBalance
	}
	for _, e := range entries {
		switch e.Kind {
		case core.Income:
			b.Income = b.Income.Add(e.Amount)
		case core.Expense:
			b.Expenses = b.Expenses.Add(e.Amount)
		}
	}
	for _, g := range goals {
		b.Committed = b.Committed.Add(g.CurrentAmount)
	}

	b.Reconciled = b.Starting.Add(b.Income).Sub(b.Expenses)
	b.Available = b.Reconciled.Sub(b.Committed)
	return b, nil
}
