// Package store declares the persistence ports the ledger engine depends on.
// Adapters live in the sqlite and memory subpackages.
package store

import (
	"context"

	"salvadanaio/internal/core"
)

// Ports for persistence adapters. Lookups scoped by owner return a
// *core.NotFoundError when the record is missing or owned by someone else.
type (
	SourceStore interface {
		CreateSource(ctx context.Context, s core.RecurringSource) error
		GetSource(ctx context.Context, ownerID, id string) (core.RecurringSource, error)
		UpdateSource(ctx context.Context, s core.RecurringSource) error
		// DeleteSource removes the source together with its entries.
		DeleteSource(ctx context.Context, ownerID, id string) error
		ListSources(ctx context.Context, ownerID string) ([]core.RecurringSource, error)
		// ListActiveSources returns active sources across every owner.
		ListActiveSources(ctx context.Context) ([]core.RecurringSource, error)
	}

	EntryStore interface {
		// InsertEntryIfAbsent inserts e unless an entry already exists for
		// (e.SourceID, e.Month). It reports whether a row was inserted.
		InsertEntryIfAbsent(ctx context.Context, e core.LedgerEntry) (bool, error)
		// ListEntries returns a source's entries ordered by month.
		ListEntries(ctx context.Context, sourceID string) ([]core.LedgerEntry, error)
		DeleteEntries(ctx context.Context, sourceID string) (int64, error)
		// DeleteEntriesAfter removes entries with month strictly after m.
		DeleteEntriesAfter(ctx context.Context, sourceID string, m core.Month) (int64, error)
		// UpdateEntryAmountsFrom sets amount on entries with month >= m.
		UpdateEntryAmountsFrom(ctx context.Context, sourceID string, m core.Month, amount core.Money) (int64, error)
		// ListCountedEntries returns the owner's entries that count toward the
		// reconciled balance: every entry of an active source, plus entries of
		// a deactivated source dated at or before its deactivation month.
		ListCountedEntries(ctx context.Context, ownerID string) ([]core.LedgerEntry, error)
	}

	AccountStore interface {
		// GetAccount returns the owner's account, or a zero account with no
		// starting balance if none was stored yet.
		GetAccount(ctx context.Context, ownerID string) (core.Account, error)
		SaveAccount(ctx context.Context, a core.Account) error
		AppendBalanceEntry(ctx context.Context, e core.BalanceEntry) error
		// ListBalanceEntries returns the audit trail newest first.
		ListBalanceEntries(ctx context.Context, ownerID string, limit int) ([]core.BalanceEntry, error)
	}

	GoalStore interface {
		CreateGoal(ctx context.Context, g core.Goal) error
		GetGoal(ctx context.Context, ownerID, id string) (core.Goal, error)
		UpdateGoalProgress(ctx context.Context, g core.Goal) error
		ListGoals(ctx context.Context, ownerID string) ([]core.Goal, error)
		InsertContribution(ctx context.Context, c core.Contribution) error
		// GetContribution resolves a contribution through its goal's owner.
		GetContribution(ctx context.Context, ownerID, id string) (core.Contribution, error)
		DeleteContribution(ctx context.Context, id string) error
		ListContributions(ctx context.Context, goalID string) ([]core.Contribution, error)
	}

	// Queries is the full set of operations, usable inside or outside a
	// transaction.
	Queries interface {
		SourceStore
		EntryStore
		AccountStore
		GoalStore
	}

	// Store is a Queries bound to the database plus a transaction primitive.
	// InTx runs fn in one isolated transaction: either every write fn makes
	// through q is committed, or none is.
	Store interface {
		Queries
		InTx(ctx context.Context, fn func(q Queries) error) error
		// Ping reports whether the backing database answers.
		Ping(ctx context.Context) error
		Close() error
	}
)
