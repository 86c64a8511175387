package core

import (
	"testing"
	"time"
)

func TestNewEntry(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 30, 45, 0, time.Local)
	e := NewEntry(42.5, "chai", Expense, now)

	if e.ID == "" {
		t.Fatal("expected generated id")
	}
	if e.Amount != 42.5 {
		t.Fatalf("amount = %v, want 42.5", e.Amount)
	}
	if e.Date != "2024-03-05" {
		t.Fatalf("date = %q, want 2024-03-05", e.Date)
	}
	if e.Time != "14:30:45" {
		t.Fatalf("time = %q, want 14:30:45", e.Time)
	}
	if e.CreatedAt != now.UnixMilli() {
		t.Fatalf("createdAt = %d, want %d", e.CreatedAt, now.UnixMilli())
	}
}

func TestNewEntryNormalizesInput(t *testing.T) {
	now := time.Now()
	e := NewEntry(-10, "  ", Income, now)
	if e.Amount != 10 {
		t.Fatalf("amount = %v, want magnitude 10", e.Amount)
	}
	if e.Note != DefaultNote {
		t.Fatalf("note = %q, want placeholder %q", e.Note, DefaultNote)
	}

	other := NewEntry(1, "x", Income, now)
	if e.ID == other.ID {
		t.Fatal("ids must be unique")
	}
}

func TestEntryValidate(t *testing.T) {
	good := Entry{ID: "a1", Amount: 5, Type: Income, Date: "2024-01-02"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		e    Entry
		want error
	}{
		{"empty id", Entry{Amount: 1, Type: Income, Date: "2024-01-02"}, ErrEmptyID},
		{"negative amount", Entry{ID: "a", Amount: -1, Type: Income, Date: "2024-01-02"}, ErrInvalidAmount},
		{"bad type", Entry{ID: "a", Amount: 1, Type: "transfer", Date: "2024-01-02"}, ErrInvalidType},
		{"bad date", Entry{ID: "a", Amount: 1, Type: Income, Date: "02/01/2024"}, ErrInvalidDate},
	}
	for _, tc := range cases {
		if err := tc.e.Validate(); err != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestFormatParseDateRoundTrip(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := FormatDate(d); got != "2024-02-29" {
		t.Fatalf("round trip = %q", got)
	}
	if _, err := ParseDate("2024-2-29"); err == nil {
		t.Fatal("expected error for non-padded date")
	}
}

func TestPeriodValid(t *testing.T) {
	for _, p := range []Period{Daily, Weekly, Monthly, Yearly, Total} {
		if !p.Valid() {
			t.Fatalf("%s should be valid", p)
		}
	}
	if Period("hourly").Valid() {
		t.Fatal("hourly should be invalid")
	}
}
