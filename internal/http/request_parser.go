// Package http exposes the ledger engine as a JSON API.
//
// This file holds request decoding: body limits, amount and date fields, and
// the conversion of request payloads into domain values.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"salvadanaio/internal/core"
)

const (
	maxBodyBytes = 64 << 10
	dateLayout   = "2006-01-02"
)

// decodeJSON reads one JSON object from the request body into dst. Unknown
// fields and trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var fe *fieldError
		if errors.As(err, &fe) {
			return &core.ValidationError{Field: fe.field, Reason: fe.reason}
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &core.ValidationError{Field: "body", Reason: fmt.Sprintf("larger than %d bytes", maxErr.Limit)}
		}
		if errors.Is(err, io.EOF) {
			return &core.ValidationError{Field: "body", Reason: "empty request body"}
		}
		return &core.ValidationError{Field: "body", Reason: err.Error()}
	}
	if dec.More() {
		return &core.ValidationError{Field: "body", Reason: "unexpected data after JSON object"}
	}
	return nil
}

// fieldError is returned by field decoders so decodeJSON can name the field.
type fieldError struct {
	field  string
	reason string
}

func (e *fieldError) Error() string { return e.field + ": " + e.reason }

// amountField accepts an amount as a JSON string ("12.34", "12,34") or a
// number literal; the literal text is parsed exactly, never through float64.
type amountField struct {
	value core.Money
	set   bool
}

func (a *amountField) UnmarshalJSON(data []byte) error {
	raw := string(bytes.TrimSpace(data))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		s, err := strconv.Unquote(raw)
		if err != nil {
			return &fieldError{field: "amount", reason: "malformed string"}
		}
		raw = s
	}
	neg := strings.HasPrefix(strings.TrimSpace(raw), "-")
	if neg {
		raw = strings.TrimPrefix(strings.TrimSpace(raw), "-")
	}
	v, err := core.ParseAmount(raw)
	if err != nil {
		return &fieldError{field: "amount", reason: "must be a decimal number"}
	}
	if neg {
		v = v.Neg()
	}
	a.value, a.set = v, true
	return nil
}

func requiredField(field string) error {
	return &core.ValidationError{Field: field, Reason: "required"}
}

// unsigned returns the amount, rejecting a missing or negative value.
func (a amountField) unsigned(field string) (core.Money, error) {
	if !a.set {
		return core.Zero, requiredField(field)
	}
	if a.value.IsNegative() {
		return core.Zero, &core.ValidationError{Field: field, Reason: "must not be negative"}
	}
	return a.value, nil
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &core.ValidationError{Field: field, Reason: "must be a date in YYYY-MM-DD format"}
	}
	return t, nil
}

func parseOptionalDate(field string, s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := parseDate(field, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// sourceRequest is the payload of POST /api/sources and PUT /api/sources/{id}.
type sourceRequest struct {
	Kind       string      `json:"kind"`
	Name       string      `json:"name"`
	Amount     amountField `json:"amount"`
	Frequency  string      `json:"frequency"`
	AnchorDate *string     `json:"anchor_date"`
	EndDate    *string     `json:"end_date"`
	Active     *bool       `json:"active"`
}

func (req sourceRequest) toSource(ownerID string) (core.RecurringSource, error) {
	amount, err := req.Amount.unsigned("amount")
	if err != nil {
		return core.RecurringSource{}, err
	}
	// A missing anchor is filled in by the service: creation time on POST,
	// the stored anchor on PUT.
	anchor, err := parseOptionalDate("anchor_date", req.AnchorDate)
	if err != nil {
		return core.RecurringSource{}, err
	}
	end, err := parseOptionalDate("end_date", req.EndDate)
	if err != nil {
		return core.RecurringSource{}, err
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	src := core.RecurringSource{
		OwnerID:        ownerID,
		Kind:           core.Kind(strings.ToLower(strings.TrimSpace(req.Kind))),
		Name:           sanitizeInput(req.Name),
		DeclaredAmount: amount,
		Frequency:      core.Frequency(strings.ToLower(strings.TrimSpace(req.Frequency))),
		EndDate:        end,
		Active:         active,
	}
	if anchor != nil {
		src.AnchorDate = *anchor
	}
	return src, nil
}

// goalRequest is the payload of POST /api/goals.
type goalRequest struct {
	Name         string      `json:"name"`
	TargetAmount amountField `json:"target_amount"`
	TargetDate   *string     `json:"target_date"`
	Priority     int         `json:"priority"`
}

func (req goalRequest) toGoal(ownerID string) (core.Goal, error) {
	target, err := req.TargetAmount.unsigned("target_amount")
	if err != nil {
		return core.Goal{}, err
	}
	date, err := parseOptionalDate("target_date", req.TargetDate)
	if err != nil {
		return core.Goal{}, err
	}
	return core.Goal{
		OwnerID:      ownerID,
		Name:         sanitizeInput(req.Name),
		TargetAmount: target,
		TargetDate:   date,
		Priority:     req.Priority,
	}, nil
}

// contributionRequest is the payload of POST /api/goals/{id}/contributions.
// Month defaults to the current month.
type contributionRequest struct {
	Amount amountField `json:"amount"`
	Month  string      `json:"month"`
	Notes  string      `json:"notes"`
}

func (req contributionRequest) parse(now time.Time) (core.Money, core.Month, error) {
	amount, err := req.Amount.unsigned("amount")
	if err != nil {
		return core.Zero, core.Month{}, err
	}
	month := core.MonthOf(now)
	if s := strings.TrimSpace(req.Month); s != "" {
		if month, err = core.ParseMonth(s); err != nil {
			return core.Zero, core.Month{}, &core.ValidationError{Field: "month", Reason: "must be YYYY-MM or YYYY-MM-DD"}
		}
	}
	return amount, month, nil
}

// startingBalanceRequest is the payload of PUT /api/account/starting-balance.
// The amount may be negative.
type startingBalanceRequest struct {
	Amount amountField `json:"amount"`
	Notes  string      `json:"notes"`
}

// parseLimit reads the optional ?limit= query parameter. Zero means no limit.
func parseLimit(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("limit"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, &core.ValidationError{Field: "limit", Reason: "must be a non-negative integer"}
	}
	return n, nil
}
