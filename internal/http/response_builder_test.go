package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"salvadanaio/internal/core"
	"salvadanaio/internal/services"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/goals/1").
		Body(map[string]string{"id": "1"}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); !strings.HasPrefix(got, "application/json") {
		t.Errorf("Content-Type = %q", got)
	}
	if w.Header().Get("Location") != "/api/goals/1" {
		t.Errorf("Location = %q", w.Header().Get("Location"))
	}
	if strings.TrimSpace(w.Body.String()) != `{"id":"1"}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_NoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Body("ignored").Write(w)

	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Body = %q, want empty", w.Body.String())
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantParts  []string
	}{
		{
			name:       "validation",
			err:        &core.ValidationError{Field: "amount", Reason: "must be positive"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "validation_failed",
			wantParts:  []string{`"field":"amount"`},
		},
		{
			name:       "not found",
			err:        fmt.Errorf("get goal: %w", &core.NotFoundError{Resource: "goal", ID: "g1"}),
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
		{
			name:       "insufficient balance carries shortfall",
			err:        &core.InsufficientBalanceError{Requested: core.MustAmount("10000"), Available: core.MustAmount("9500")},
			wantStatus: http.StatusConflict,
			wantCode:   "insufficient_balance",
			wantParts:  []string{`"shortfall":"500.00"`, `"available":"9500.00"`, `"requested":"10000.00"`},
		},
		{
			name:       "transaction failure",
			err:        &core.TransactionFailure{Op: "contribute", Err: errors.New("disk full")},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "transaction_failed",
		},
		{
			name:       "unknown errors hide their message",
			err:        errors.New("secret connection string"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal",
			wantParts:  []string{`"message":"internal error"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ErrorResponse(tt.err).Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			body := w.Body.String()
			if !strings.Contains(body, `"code":"`+tt.wantCode+`"`) {
				t.Errorf("Body %s missing code %q", body, tt.wantCode)
			}
			for _, part := range tt.wantParts {
				if !strings.Contains(body, part) {
					t.Errorf("Body %s missing %q", body, part)
				}
			}
			if tt.wantCode == "internal" && strings.Contains(body, "secret") {
				t.Errorf("Body leaks internal error: %s", body)
			}
		})
	}
}

func TestNewSourceUpdateJSON_Warning(t *testing.T) {
	res := services.UpdateResult{
		Source: core.RecurringSource{ID: "s1", DeclaredAmount: core.MustAmount("100"), Frequency: core.Yearly},
		Change: services.ChangeAmount,
		Warning: &core.SynchronizationWarning{
			SourceID: "s1",
			Change:   "amount_changed",
			Err:      errors.New("database is locked"),
		},
	}

	out := newSourceUpdateJSON(res)
	if out.Warning == nil || out.Warning.Code != "sync_warning" {
		t.Fatalf("warning = %+v", out.Warning)
	}
	if out.Source.MonthlyAmount != "8.33" {
		t.Errorf("monthly amount = %s, want 8.33", out.Source.MonthlyAmount)
	}

	out = newSourceUpdateJSON(services.UpdateResult{Source: res.Source})
	if out.Change != "none" || out.Warning != nil {
		t.Errorf("no-change result = %+v", out)
	}
}
