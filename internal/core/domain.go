package core

import (
	"strings"
	"time"
)

const (
	Monthly Frequency = "monthly"
	Weekly  Frequency = "weekly"
	Yearly  Frequency = "yearly"
	OneTime Frequency = "one_time"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

const (
	ManualUpdate     BalanceEntryType = "manual_update"
	GoalContribution BalanceEntryType = "goal_contribution"
)

type (
	Frequency        string
	Kind             string
	BalanceEntryType string

	// RecurringSource is an income stream or an expense declared by its owner.
	// Ledger entries are projected from it, never entered by hand.
	RecurringSource struct {
		ID             string
		OwnerID        string
		Kind           Kind
		Name           string
		DeclaredAmount Money
		Frequency      Frequency
		AnchorDate     time.Time
		EndDate        *time.Time
		Active         bool
		DeactivatedAt  *Month // set while inactive; entries up to this month keep counting
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	// LedgerEntry is the monthly fact derived from a source. Kind is copied
	// from the owning source when read.
	LedgerEntry struct {
		ID        string
		SourceID  string
		Kind      Kind
		Amount    Money
		Month     Month
		Notes     string
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Goal struct {
		ID            string
		OwnerID       string
		Name          string
		TargetAmount  Money
		CurrentAmount Money
		TargetDate    *time.Time
		Priority      int
		IsCompleted   bool
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	// Contribution moves funds from the available balance into a goal.
	Contribution struct {
		ID        string
		GoalID    string
		Amount    Money
		Month     Month
		Notes     string
		CreatedAt time.Time
	}

	// BalanceEntry is an append-only audit record of a cached balance change.
	BalanceEntry struct {
		ID             string
		OwnerID        string
		Amount         Money
		PreviousAmount Money
		ChangeAmount   Money
		EntryType      BalanceEntryType
		Notes          string
		CreatedAt      time.Time
	}

	// Account holds the manual baseline and the display-only cached balance.
	Account struct {
		OwnerID          string
		StartingBalance  *Money
		CurrentBalance   Money
		BalanceUpdatedAt time.Time
	}
)

// Valid reports whether f is one of the supported frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case Monthly, Weekly, Yearly, OneTime:
		return true
	}
	return false
}

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// EffectiveEnd returns the last month entries should exist for: the end date's
// month when set, otherwise the month of now.
func (s RecurringSource) EffectiveEnd(now time.Time) Month {
	if s.EndDate != nil {
		return MonthOf(*s.EndDate)
	}
	return MonthOf(now)
}

// WithCalendarDates returns s with its anchor and end dates passed through
// CalendarDate.
func (s RecurringSource) WithCalendarDates() RecurringSource {
	s.AnchorDate = CalendarDate(s.AnchorDate)
	if s.EndDate != nil {
		end := CalendarDate(*s.EndDate)
		s.EndDate = &end
	}
	return s
}

// MonthlyAmount is the declared amount normalised to one month.
func (s RecurringSource) MonthlyAmount() Money {
	return NormalizeMonthly(s.DeclaredAmount, s.Frequency)
}

func (s RecurringSource) Validate() error {
	if strings.TrimSpace(s.OwnerID) == "" {
		return &ValidationError{Field: "owner_id", Reason: "required"}
	}
	if !s.Kind.Valid() {
		return &ValidationError{Field: "kind", Reason: "must be income or expense"}
	}
	if len(s.Name) > 200 {
		return &ValidationError{Field: "name", Reason: "too long (max 200 characters)"}
	}
	if s.DeclaredAmount.IsNegative() {
		return &ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	if !s.Frequency.Valid() {
		return &ValidationError{Field: "frequency", Reason: "invalid frequency"}
	}
	if s.AnchorDate.IsZero() {
		return &ValidationError{Field: "anchor_date", Reason: "required"}
	}
	if s.EndDate != nil && MonthOf(*s.EndDate).Before(MonthOf(s.AnchorDate)) {
		return &ValidationError{Field: "end_date", Reason: "must not be before anchor date"}
	}
	return nil
}

// GoalReached reports whether current has reached target. Every writer of
// Goal.IsCompleted goes through this comparison.
func GoalReached(current, target Money) bool {
	return current.GreaterThanOrEqual(target)
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.OwnerID) == "" {
		return &ValidationError{Field: "owner_id", Reason: "required"}
	}
	if strings.TrimSpace(g.Name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if !g.TargetAmount.IsPositive() {
		return &ValidationError{Field: "target_amount", Reason: "must be positive"}
	}
	return nil
}
