package core

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeMonthly(t *testing.T) {
	cases := []struct {
		amount string
		freq   Frequency
		want   string
	}{
		{"3000", Monthly, "3000"},
		{"100", Weekly, "433"},
		{"12.34", Weekly, "53.4322"},
		{"1200", Yearly, "100"},
		{"1000", Yearly, "83.33"},
		{"100", Yearly, "8.33"},
		{"0.18", Yearly, "0.02"}, // 0.015 rounds half away from zero
		{"500", OneTime, "500"},
		{"0", Weekly, "0"},
	}
	for _, tc := range cases {
		got := NormalizeMonthly(MustAmount(tc.amount), tc.freq)
		if !got.Equal(MustAmount(tc.want)) {
			t.Fatalf("%s %s: expected %s, got %s", tc.amount, tc.freq, tc.want, got)
		}
	}
}

func TestMonthOf(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	cases := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2025, 5, 15, 13, 4, 5, 0, time.UTC), "2025-05-01"},
		{time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "2025-01-01"},
		{time.Date(2025, 3, 31, 23, 30, 0, 0, rome), "2025-03-01"},
		{time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC), "2024-12-01"},
	}
	for _, tc := range cases {
		if got := MonthOf(tc.in).String(); got != tc.want {
			t.Fatalf("MonthOf(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestCalendarDate(t *testing.T) {
	cet := time.FixedZone("CET", 3600)
	in := time.Date(2025, 3, 1, 0, 30, 0, 0, cet)

	got := CalendarDate(in)
	if want := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) || got.Location() != time.UTC {
		t.Fatalf("CalendarDate(%v) = %v, want %v", in, got, want)
	}
	// In UTC the input instant is still February; the stored date must not be.
	if m := MonthOf(in.UTC()).String(); m != "2025-02-01" {
		t.Fatalf("setup: MonthOf(UTC) = %s", m)
	}
	if m := MonthOf(got.UTC()).String(); m != "2025-03-01" {
		t.Errorf("MonthOf(CalendarDate) = %s, want 2025-03-01", m)
	}

	end := time.Date(2025, 6, 30, 23, 0, 0, 0, time.FixedZone("PDT", -7*3600))
	src := RecurringSource{AnchorDate: in, EndDate: &end}.WithCalendarDates()
	if src.EndDate.Format(MonthLayout) != "2025-06-30" || src.AnchorDate.Format(MonthLayout) != "2025-03-01" {
		t.Errorf("WithCalendarDates() = %v / %v", src.AnchorDate, *src.EndDate)
	}
}

func TestMonthsBetween(t *testing.T) {
	got := MonthsBetween(NewMonth(2024, 11), NewMonth(2025, 2))
	want := []string{"2024-11-01", "2024-12-01", "2025-01-01", "2025-02-01"}
	if len(got) != len(want) {
		t.Fatalf("expected %d months, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Fatalf("month %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if MonthsBetween(NewMonth(2025, 2), NewMonth(2025, 1)) != nil {
		t.Fatalf("expected nil for inverted range")
	}
}

func TestParseMonth(t *testing.T) {
	for _, in := range []string{"2025-03", "2025-03-17"} {
		m, err := ParseMonth(in)
		if err != nil || !m.Equal(NewMonth(2025, 3)) {
			t.Fatalf("%q: got %v err=%v", in, m, err)
		}
	}
	if _, err := ParseMonth("March"); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestRecurringSourceValidate(t *testing.T) {
	anchor := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	good := RecurringSource{
		OwnerID:        "u1",
		Kind:           Income,
		Name:           "Salary",
		DeclaredAmount: MustAmount("3000"),
		Frequency:      Monthly,
		AnchorDate:     anchor,
		Active:         true,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	before := anchor.AddDate(0, -1, 0)
	sameMonth := anchor.AddDate(0, 0, 20)
	withEnd := good
	withEnd.EndDate = &sameMonth
	if err := withEnd.Validate(); err != nil {
		t.Fatalf("end date in anchor month should be ok, got %v", err)
	}

	bads := []func(s *RecurringSource){
		func(s *RecurringSource) { s.OwnerID = "" },
		func(s *RecurringSource) { s.Kind = "transfer" },
		func(s *RecurringSource) { s.DeclaredAmount = MustAmount("1").Neg() },
		func(s *RecurringSource) { s.Frequency = "daily" },
		func(s *RecurringSource) { s.AnchorDate = time.Time{} },
		func(s *RecurringSource) { s.EndDate = &before },
	}
	for i, mutate := range bads {
		s := good
		mutate(&s)
		err := s.Validate()
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("case %d expected ValidationError, got %v", i, err)
		}
	}
}

func TestRecurringSourceEffectiveEnd(t *testing.T) {
	now := time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)
	s := RecurringSource{}
	if got := s.EffectiveEnd(now); !got.Equal(NewMonth(2025, 5)) {
		t.Fatalf("open-ended source should end now, got %s", got)
	}
	end := time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)
	s.EndDate = &end
	if got := s.EffectiveEnd(now); !got.Equal(NewMonth(2025, 8)) {
		t.Fatalf("expected end month 2025-08, got %s", got)
	}
}

func TestGoalReached(t *testing.T) {
	target := MustAmount("25000")
	if GoalReached(MustAmount("24999.99"), target) {
		t.Fatalf("goal should not be reached below target")
	}
	if !GoalReached(MustAmount("25000"), target) {
		t.Fatalf("goal should be reached at exactly target")
	}
}

func TestErrorCode(t *testing.T) {
	ibe := &InsufficientBalanceError{Requested: MustAmount("5500"), Available: MustAmount("5000")}
	if !ibe.Shortfall().Equal(MustAmount("500")) {
		t.Fatalf("expected shortfall 500, got %s", ibe.Shortfall())
	}
	cases := []struct {
		err  error
		want string
	}{
		{&ValidationError{Field: "amount", Reason: "x"}, CodeValidation},
		{&NotFoundError{Resource: "goal", ID: "g"}, CodeNotFound},
		{ibe, CodeInsufficientBalance},
		{&TransactionFailure{Op: "contribute", Err: errors.New("disk")}, CodeTransactionFailed},
		{&TransactionFailure{Op: "contribute", Err: ibe}, CodeInsufficientBalance},
		{errors.New("boom"), "internal"},
	}
	for i, tc := range cases {
		if got := ErrorCode(tc.err); got != tc.want {
			t.Fatalf("case %d: expected %s, got %s", i, tc.want, got)
		}
	}
}
