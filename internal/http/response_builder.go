// Package http exposes the ledger engine as a JSON API.
//
// This file implements a small builder for JSON responses and the wire
// representation of domain values. Amounts are serialised as decimal strings
// with two fractional digits so clients never see binary floats.

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"salvadanaio/internal/core"
	"salvadanaio/internal/services"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil || b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	Requested string `json:"requested,omitempty"`
	Available string `json:"available,omitempty"`
	Shortfall string `json:"shortfall,omitempty"`
}

// ErrorResponse maps err onto its status code and error body. Errors outside
// the ledger taxonomy are reported without their message.
func ErrorResponse(err error) *JSONResponseBuilder {
	detail := errorDetail{Code: core.ErrorCode(err), Message: err.Error()}
	status := http.StatusInternalServerError

	var (
		ve *core.ValidationError
		nf *core.NotFoundError
		ib *core.InsufficientBalanceError
	)
	switch {
	case errors.As(err, &ve):
		status = http.StatusUnprocessableEntity
		detail.Field = ve.Field
	case errors.As(err, &nf):
		status = http.StatusNotFound
	case errors.As(err, &ib):
		status = http.StatusConflict
		detail.Requested = formatAmount(ib.Requested)
		detail.Available = formatAmount(ib.Available)
		detail.Shortfall = formatAmount(ib.Shortfall())
	case detail.Code == "internal":
		detail.Message = "internal error"
	}
	return NewJSONResponse().Status(status).Body(errorBody{Error: detail})
}

func formatAmount(m core.Money) string {
	return m.StringFixed(2)
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func formatOptionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}

type sourceJSON struct {
	ID            string  `json:"id"`
	Kind          string  `json:"kind"`
	Name          string  `json:"name"`
	Amount        string  `json:"amount"`
	MonthlyAmount string  `json:"monthly_amount"`
	Frequency     string  `json:"frequency"`
	AnchorDate    string  `json:"anchor_date"`
	EndDate       *string `json:"end_date"`
	Active        bool    `json:"active"`
	DeactivatedAt *string `json:"deactivated_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

func newSourceJSON(s core.RecurringSource) sourceJSON {
	out := sourceJSON{
		ID:            s.ID,
		Kind:          string(s.Kind),
		Name:          s.Name,
		Amount:        formatAmount(s.DeclaredAmount),
		MonthlyAmount: formatAmount(s.MonthlyAmount()),
		Frequency:     string(s.Frequency),
		AnchorDate:    formatDate(s.AnchorDate),
		EndDate:       formatOptionalDate(s.EndDate),
		Active:        s.Active,
		CreatedAt:     s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     s.UpdatedAt.Format(time.RFC3339),
	}
	if s.DeactivatedAt != nil {
		m := s.DeactivatedAt.String()
		out.DeactivatedAt = &m
	}
	return out
}

type entryJSON struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	Kind     string `json:"kind"`
	Amount   string `json:"amount"`
	Month    string `json:"month"`
	Notes    string `json:"notes,omitempty"`
}

func newEntriesJSON(entries []core.LedgerEntry) []entryJSON {
	out := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryJSON{
			ID:       e.ID,
			SourceID: e.SourceID,
			Kind:     string(e.Kind),
			Amount:   formatAmount(e.Amount),
			Month:    e.Month.String(),
			Notes:    e.Notes,
		})
	}
	return out
}

type warningJSON struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type sourceUpdateJSON struct {
	Source   sourceJSON   `json:"source"`
	Change   string       `json:"change"`
	Changes  []string     `json:"changes"`
	Affected int64        `json:"affected"`
	Warning  *warningJSON `json:"warning,omitempty"`
}

func newSourceUpdateJSON(res services.UpdateResult) sourceUpdateJSON {
	out := sourceUpdateJSON{
		Source:   newSourceJSON(res.Source),
		Change:   string(res.Change),
		Changes:  make([]string, 0, len(res.Changes)),
		Affected: res.Affected,
	}
	for _, k := range res.Changes {
		out.Changes = append(out.Changes, string(k))
	}
	if out.Change == "" {
		out.Change = "none"
	}
	if res.Warning != nil {
		out.Warning = &warningJSON{Code: res.Warning.Code(), Message: res.Warning.Error()}
	}
	return out
}

type balanceJSON struct {
	Starting   string `json:"starting"`
	Income     string `json:"income"`
	Expenses   string `json:"expenses"`
	Reconciled string `json:"reconciled"`
	Committed  string `json:"committed"`
	Available  string `json:"available"`
}

func newBalanceJSON(b services.Balance) balanceJSON {
	return balanceJSON{
		Starting:   formatAmount(b.Starting),
		Income:     formatAmount(b.Income),
		Expenses:   formatAmount(b.Expenses),
		Reconciled: formatAmount(b.Reconciled),
		Committed:  formatAmount(b.Committed),
		Available:  formatAmount(b.Available),
	}
}

type balanceEntryJSON struct {
	ID             string `json:"id"`
	Amount         string `json:"amount"`
	PreviousAmount string `json:"previous_amount"`
	ChangeAmount   string `json:"change_amount"`
	EntryType      string `json:"entry_type"`
	Notes          string `json:"notes,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func newBalanceEntryJSON(e core.BalanceEntry) balanceEntryJSON {
	return balanceEntryJSON{
		ID:             e.ID,
		Amount:         formatAmount(e.Amount),
		PreviousAmount: formatAmount(e.PreviousAmount),
		ChangeAmount:   formatAmount(e.ChangeAmount),
		EntryType:      string(e.EntryType),
		Notes:          e.Notes,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
	}
}

type goalJSON struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	TargetAmount  string  `json:"target_amount"`
	CurrentAmount string  `json:"current_amount"`
	TargetDate    *string `json:"target_date"`
	Priority      int     `json:"priority"`
	IsCompleted   bool    `json:"is_completed"`
}

func newGoalJSON(g core.Goal) goalJSON {
	return goalJSON{
		ID:            g.ID,
		Name:          g.Name,
		TargetAmount:  formatAmount(g.TargetAmount),
		CurrentAmount: formatAmount(g.CurrentAmount),
		TargetDate:    formatOptionalDate(g.TargetDate),
		Priority:      g.Priority,
		IsCompleted:   g.IsCompleted,
	}
}

type contributionJSON struct {
	ID     string `json:"id"`
	GoalID string `json:"goal_id"`
	Amount string `json:"amount"`
	Month  string `json:"month"`
	Notes  string `json:"notes,omitempty"`
}

func newContributionJSON(c core.Contribution) contributionJSON {
	return contributionJSON{
		ID:     c.ID,
		GoalID: c.GoalID,
		Amount: formatAmount(c.Amount),
		Month:  c.Month.String(),
		Notes:  c.Notes,
	}
}

type contributionResultJSON struct {
	Contribution contributionJSON `json:"contribution"`
	Goal         goalJSON         `json:"goal"`
	BalanceEntry balanceEntryJSON `json:"balance_entry"`
}

func newContributionResultJSON(res services.ContributionResult) contributionResultJSON {
	return contributionResultJSON{
		Contribution: newContributionJSON(res.Contribution),
		Goal:         newGoalJSON(res.Goal),
		BalanceEntry: newBalanceEntryJSON(res.BalanceEntry),
	}
}
