package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

// DefaultNote is stored when an entry is created without a note.
const DefaultNote = "No note"

// DateLayout is the canonical calendar-date form used everywhere in the
// system. Dates are zero-padded local dates, so lexicographic comparison
// equals chronological comparison.
const DateLayout = "2006-01-02"

const timeLayout = "15:04:05"

type (
	EntryType string

	// Entry is one recorded income or expense transaction. Entries are
	// immutable once created; they are only ever created or deleted.
	Entry struct {
		ID        string    `json:"id"`
		Amount    float64   `json:"amount"`
		Note      string    `json:"note"`
		Type      EntryType `json:"type"`
		Date      string    `json:"date"` // YYYY-MM-DD, local calendar date
		Time      string    `json:"time"` // HH:MM:SS, display/sort only
		CreatedAt int64     `json:"createdAt"` // epoch milliseconds
	}

	// Totals is derived on demand and never persisted.
	Totals struct {
		Income  float64 `json:"income"`
		Expense float64 `json:"expense"`
		Balance float64 `json:"balance"`
	}

	// DateRange is an inclusive [Start, End] pair of canonical date strings.
	DateRange struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}

	// ChartPoint is one bucket of a period series.
	ChartPoint struct {
		Label   string  `json:"label"`
		Income  float64 `json:"income"`
		Expense float64 `json:"expense"`
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidType   = errors.New("invalid entry type")
	ErrEmptyID       = errors.New("empty entry id")
	ErrInvalidDate   = errors.New("invalid date")
)

// Valid reports whether t is one of the two entry types.
func (t EntryType) Valid() bool {
	return t == Income || t == Expense
}

// NewEntry builds a new entry stamped at now. The amount sign is carried by
// the type, so the magnitude is stored. An empty note gets a placeholder.
func NewEntry(amount float64, note string, typ EntryType, now time.Time) Entry {
	if amount < 0 {
		amount = -amount
	}
	if strings.TrimSpace(note) == "" {
		note = DefaultNote
	}
	return Entry{
		ID:        uuid.NewString(),
		Amount:    amount,
		Note:      note,
		Type:      typ,
		Date:      FormatDate(now),
		Time:      now.Format(timeLayout),
		CreatedAt: now.UnixMilli(),
	}
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrEmptyID
	}
	if e.Amount < 0 {
		return ErrInvalidAmount
	}
	if !e.Type.Valid() {
		return ErrInvalidType
	}
	if _, err := time.Parse(DateLayout, e.Date); err != nil {
		return ErrInvalidDate
	}
	return nil
}

// FormatDate renders t as the canonical local date string. This is the only
// place a time.Time becomes a stored date; no UTC derivation is used.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate converts a canonical date string back to a local time.Time for
// calendar arithmetic at the boundary that needs it.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}
