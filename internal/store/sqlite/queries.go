package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"salvadanaio/internal/core"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const timeLayout = time.RFC3339Nano

type rowScanner interface {
	Scan(dest ...any) error
}

// timeParser keeps the first parse error so scans can parse several columns
// and check once.
type timeParser struct{ err error }

func (p *timeParser) instant(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("parse time %q: %w", s, err)
	}
	return t
}

func (p *timeParser) optTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := p.instant(s.String)
	return &t
}

func (p *timeParser) month(s string) core.Month {
	t, err := time.Parse(core.MonthLayout, s)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("parse month %q: %w", s, err)
	}
	return core.MonthOf(t)
}

func (p *timeParser) optMonth(s sql.NullString) *core.Month {
	if !s.Valid {
		return nil
	}
	m := p.month(s.String)
	return &m
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func optFormatTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func optFormatMonth(m *core.Month) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: m.String(), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const sourceColumns = `id, owner_id, kind, name, declared_amount, frequency, anchor_date, end_date, active, deactivated_month, created_at, updated_at`

func scanSource(row rowScanner) (core.RecurringSource, error) {
	var (
		s                            core.RecurringSource
		kind, freq, anchor, crt, upd string
		end, deactivated             sql.NullString
		active                       int64
	)
	if err := row.Scan(&s.ID, &s.OwnerID, &kind, &s.Name, &s.DeclaredAmount, &freq,
		&anchor, &end, &active, &deactivated, &crt, &upd); err != nil {
		return s, err
	}
	var p timeParser
	s.Kind = core.Kind(kind)
	s.Frequency = core.Frequency(freq)
	s.AnchorDate = p.instant(anchor)
	s.EndDate = p.optTime(end)
	s.Active = active != 0
	s.DeactivatedAt = p.optMonth(deactivated)
	s.CreatedAt = p.instant(crt)
	s.UpdatedAt = p.instant(upd)
	return s, p.err
}

func (q *Queries) CreateSource(ctx context.Context, s core.RecurringSource) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO recurring_sources (`+sourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.OwnerID, string(s.Kind), s.Name, s.DeclaredAmount, string(s.Frequency),
		formatTime(s.AnchorDate), optFormatTime(s.EndDate), boolInt(s.Active),
		optFormatMonth(s.DeactivatedAt), formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	return nil
}

func (q *Queries) GetSource(ctx context.Context, ownerID, id string) (core.RecurringSource, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM recurring_sources
		WHERE id = ? AND owner_id = ?`, id, ownerID)
	s, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return s, &core.NotFoundError{Resource: "source", ID: id}
	}
	if err != nil {
		return s, fmt.Errorf("get source: %w", err)
	}
	return s, nil
}

func (q *Queries) UpdateSource(ctx context.Context, s core.RecurringSource) error {
	res, err := q.db.ExecContext(ctx, `UPDATE recurring_sources SET
		kind = ?, name = ?, declared_amount = ?, frequency = ?, anchor_date = ?, end_date = ?,
		active = ?, deactivated_month = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		string(s.Kind), s.Name, s.DeclaredAmount, string(s.Frequency), formatTime(s.AnchorDate),
		optFormatTime(s.EndDate), boolInt(s.Active), optFormatMonth(s.DeactivatedAt),
		formatTime(s.UpdatedAt), s.ID, s.OwnerID)
	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}
	return requireAffected(res, "source", s.ID)
}

func (q *Queries) DeleteSource(ctx context.Context, ownerID, id string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE source_id IN
		(SELECT id FROM recurring_sources WHERE id = ? AND owner_id = ?)`, id, ownerID); err != nil {
		return fmt.Errorf("delete source entries: %w", err)
	}
	res, err := q.db.ExecContext(ctx, `DELETE FROM recurring_sources WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	return requireAffected(res, "source", id)
}

func (q *Queries) ListSources(ctx context.Context, ownerID string) ([]core.RecurringSource, error) {
	return q.listSources(ctx, `SELECT `+sourceColumns+` FROM recurring_sources
		WHERE owner_id = ? ORDER BY created_at, id`, ownerID)
}

func (q *Queries) ListActiveSources(ctx context.Context) ([]core.RecurringSource, error) {
	return q.listSources(ctx, `SELECT `+sourceColumns+` FROM recurring_sources
		WHERE active = 1 ORDER BY owner_id, created_at, id`)
}

func (q *Queries) listSources(ctx context.Context, query string, args ...any) ([]core.RecurringSource, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringSource
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const entryColumns = `e.id, e.source_id, s.kind, e.amount, e.month, e.notes, e.created_at, e.updated_at`

func scanEntry(row rowScanner) (core.LedgerEntry, error) {
	var (
		e                 core.LedgerEntry
		kind, month, c, u string
	)
	if err := row.Scan(&e.ID, &e.SourceID, &kind, &e.Amount, &month, &e.Notes, &c, &u); err != nil {
		return e, err
	}
	var p timeParser
	e.Kind = core.Kind(kind)
	e.Month = p.month(month)
	e.CreatedAt = p.instant(c)
	e.UpdatedAt = p.instant(u)
	return e, p.err
}

func (q *Queries) InsertEntryIfAbsent(ctx context.Context, e core.LedgerEntry) (bool, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO ledger_entries
		(id, source_id, amount, month, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_id, month) DO NOTHING`,
		e.ID, e.SourceID, e.Amount, e.Month.String(), e.Notes, formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return false, fmt.Errorf("insert entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert entry rows affected: %w", err)
	}
	return n == 1, nil
}

func (q *Queries) ListEntries(ctx context.Context, sourceID string) ([]core.LedgerEntry, error) {
	return q.listEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries e
		JOIN recurring_sources s ON s.id = e.source_id
		WHERE e.source_id = ? ORDER BY e.month`, sourceID)
}

func (q *Queries) ListCountedEntries(ctx context.Context, ownerID string) ([]core.LedgerEntry, error) {
	return q.listEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries e
		JOIN recurring_sources s ON s.id = e.source_id
		WHERE s.owner_id = ?
		  AND (s.active = 1 OR (s.deactivated_month IS NOT NULL AND e.month <= s.deactivated_month))
		ORDER BY e.month, e.source_id`, ownerID)
}

func (q *Queries) listEntries(ctx context.Context, query string, args ...any) ([]core.LedgerEntry, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []core.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *Queries) DeleteEntries(ctx context.Context, sourceID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE source_id = ?`, sourceID)
	if err != nil {
		return 0, fmt.Errorf("delete entries: %w", err)
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteEntriesAfter(ctx context.Context, sourceID string, m core.Month) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE source_id = ? AND month > ?`,
		sourceID, m.String())
	if err != nil {
		return 0, fmt.Errorf("delete entries after %s: %w", m, err)
	}
	return res.RowsAffected()
}

func (q *Queries) UpdateEntryAmountsFrom(ctx context.Context, sourceID string, m core.Month, amount core.Money) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE ledger_entries SET amount = ?, updated_at = ?
		WHERE source_id = ? AND month >= ?`,
		amount, formatTime(time.Now()), sourceID, m.String())
	if err != nil {
		return 0, fmt.Errorf("update entry amounts from %s: %w", m, err)
	}
	return res.RowsAffected()
}

func (q *Queries) GetAccount(ctx context.Context, ownerID string) (core.Account, error) {
	a := core.Account{OwnerID: ownerID, CurrentBalance: decimal.Zero}
	var (
		starting decimal.NullDecimal
		updated  sql.NullString
	)
	err := q.db.QueryRowContext(ctx, `SELECT starting_balance, current_balance, balance_updated_at
		FROM accounts WHERE owner_id = ?`, ownerID).Scan(&starting, &a.CurrentBalance, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return a, nil
	}
	if err != nil {
		return a, fmt.Errorf("get account: %w", err)
	}
	if starting.Valid {
		a.StartingBalance = &starting.Decimal
	}
	var p timeParser
	if t := p.optTime(updated); t != nil {
		a.BalanceUpdatedAt = *t
	}
	return a, p.err
}

func (q *Queries) SaveAccount(ctx context.Context, a core.Account) error {
	var starting decimal.NullDecimal
	if a.StartingBalance != nil {
		starting = decimal.NewNullDecimal(*a.StartingBalance)
	}
	var updated sql.NullString
	if !a.BalanceUpdatedAt.IsZero() {
		updated = sql.NullString{String: formatTime(a.BalanceUpdatedAt), Valid: true}
	}
	_, err := q.db.ExecContext(ctx, `INSERT INTO accounts (owner_id, starting_balance, current_balance, balance_updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET
			starting_balance = excluded.starting_balance,
			current_balance = excluded.current_balance,
			balance_updated_at = excluded.balance_updated_at`,
		a.OwnerID, starting, a.CurrentBalance, updated)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

func (q *Queries) AppendBalanceEntry(ctx context.Context, e core.BalanceEntry) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO balance_entries
		(id, owner_id, amount, previous_amount, change_amount, entry_type, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.Amount, e.PreviousAmount, e.ChangeAmount, string(e.EntryType), e.Notes, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("append balance entry: %w", err)
	}
	return nil
}

func (q *Queries) ListBalanceEntries(ctx context.Context, ownerID string, limit int) ([]core.BalanceEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := q.db.QueryContext(ctx, `SELECT id, owner_id, amount, previous_amount, change_amount, entry_type, notes, created_at
		FROM balance_entries WHERE owner_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query balance entries: %w", err)
	}
	defer rows.Close()

	var out []core.BalanceEntry
	for rows.Next() {
		var (
			e        core.BalanceEntry
			typ, crt string
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Amount, &e.PreviousAmount, &e.ChangeAmount, &typ, &e.Notes, &crt); err != nil {
			return nil, fmt.Errorf("scan balance entry: %w", err)
		}
		var p timeParser
		e.EntryType = core.BalanceEntryType(typ)
		e.CreatedAt = p.instant(crt)
		if p.err != nil {
			return nil, p.err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const goalColumns = `id, owner_id, name, target_amount, current_amount, target_date, priority, is_completed, created_at, updated_at`

func scanGoal(row rowScanner) (core.Goal, error) {
	var (
		g         core.Goal
		target    sql.NullString
		completed int64
		c, u      string
	)
	if err := row.Scan(&g.ID, &g.OwnerID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &target,
		&g.Priority, &completed, &c, &u); err != nil {
		return g, err
	}
	var p timeParser
	g.TargetDate = p.optTime(target)
	g.IsCompleted = completed != 0
	g.CreatedAt = p.instant(c)
	g.UpdatedAt = p.instant(u)
	return g, p.err
}

func (q *Queries) CreateGoal(ctx context.Context, g core.Goal) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO goals (`+goalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.OwnerID, g.Name, g.TargetAmount, g.CurrentAmount, optFormatTime(g.TargetDate),
		g.Priority, boolInt(g.IsCompleted), formatTime(g.CreatedAt), formatTime(g.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

func (q *Queries) GetGoal(ctx context.Context, ownerID, id string) (core.Goal, error) {
	g, err := scanGoal(q.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals
		WHERE id = ? AND owner_id = ?`, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return g, &core.NotFoundError{Resource: "goal", ID: id}
	}
	if err != nil {
		return g, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

func (q *Queries) UpdateGoalProgress(ctx context.Context, g core.Goal) error {
	res, err := q.db.ExecContext(ctx, `UPDATE goals SET current_amount = ?, is_completed = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		g.CurrentAmount, boolInt(g.IsCompleted), formatTime(g.UpdatedAt), g.ID, g.OwnerID)
	if err != nil {
		return fmt.Errorf("update goal progress: %w", err)
	}
	return requireAffected(res, "goal", g.ID)
}

func (q *Queries) ListGoals(ctx context.Context, ownerID string) ([]core.Goal, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+goalColumns+` FROM goals
		WHERE owner_id = ? ORDER BY priority DESC, created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func scanContribution(row rowScanner) (core.Contribution, error) {
	var (
		c          core.Contribution
		month, crt string
	)
	if err := row.Scan(&c.ID, &c.GoalID, &c.Amount, &month, &c.Notes, &crt); err != nil {
		return c, err
	}
	var p timeParser
	c.Month = p.month(month)
	c.CreatedAt = p.instant(crt)
	return c, p.err
}

func (q *Queries) InsertContribution(ctx context.Context, c core.Contribution) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO goal_contributions (id, goal_id, amount, month, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.GoalID, c.Amount, c.Month.String(), c.Notes, formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert contribution: %w", err)
	}
	return nil
}

func (q *Queries) GetContribution(ctx context.Context, ownerID, id string) (core.Contribution, error) {
	c, err := scanContribution(q.db.QueryRowContext(ctx, `SELECT c.id, c.goal_id, c.amount, c.month, c.notes, c.created_at
		FROM goal_contributions c JOIN goals g ON g.id = c.goal_id
		WHERE c.id = ? AND g.owner_id = ?`, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return c, &core.NotFoundError{Resource: "contribution", ID: id}
	}
	if err != nil {
		return c, fmt.Errorf("get contribution: %w", err)
	}
	return c, nil
}

func (q *Queries) DeleteContribution(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM goal_contributions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete contribution: %w", err)
	}
	return requireAffected(res, "contribution", id)
}

func (q *Queries) ListContributions(ctx context.Context, goalID string) ([]core.Contribution, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, goal_id, amount, month, notes, created_at
		FROM goal_contributions WHERE goal_id = ? ORDER BY month, created_at, id`, goalID)
	if err != nil {
		return nil, fmt.Errorf("query contributions: %w", err)
	}
	defer rows.Close()

	var out []core.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func requireAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", resource, err)
	}
	if n == 0 {
		return &core.NotFoundError{Resource: resource, ID: id}
	}
	return nil
}
