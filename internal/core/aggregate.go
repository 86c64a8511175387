// Package core holds the entry domain model and the aggregation engine:
// pure functions that compute totals and period-bucketed chart series from
// an in-memory entry collection. The engine is total over its inputs; empty
// collections and empty ranges produce zero-valued results, never errors.
package core

import (
	"strconv"
	"time"
)

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
	Total   Period = "total"
)

// Period is an aggregation granularity.
type Period string

// Valid reports whether p is one of the five period variants.
func (p Period) Valid() bool {
	switch p {
	case Daily, Weekly, Monthly, Yearly, Total:
		return true
	}
	return false
}

// CalcTotals partitions entries by type and sums the amounts per partition.
// Single pass, no ordering dependency.
func CalcTotals(entries []Entry) Totals {
	var t Totals
	for _, e := range entries {
		switch e.Type {
		case Income:
			t.Income += e.Amount
		case Expense:
			t.Expense += e.Amount
		}
	}
	t.Balance = t.Income - t.Expense
	return t
}

// FilterByDate returns the entries whose date exactly equals date. This is a
// string comparison against the canonical local-date form; callers must
// supply date as YYYY-MM-DD.
func FilterByDate(entries []Entry, date string) []Entry {
	out := make([]Entry, 0)
	for _, e := range entries {
		if e.Date == date {
			out = append(out, e)
		}
	}
	return out
}

// FilterByRange returns the entries with r.Start <= date <= r.End.
// Lexicographic comparison is correct for zero-padded ISO dates. A range
// with Start > End matches nothing.
func FilterByRange(entries []Entry, r DateRange) []Entry {
	out := make([]Entry, 0)
	for _, e := range entries {
		if e.Date >= r.Start && e.Date <= r.End {
			out = append(out, e)
		}
	}
	return out
}

// PeriodSeries computes the chart series for a period anchored at ref.
// Buckets are produced oldest-first; the last bucket always contains ref.
func PeriodSeries(period Period, entries []Entry, ref time.Time) []ChartPoint {
	switch period {
	case Daily:
		// Trailing 7 days ending at ref, inclusive.
		points := make([]ChartPoint, 0, 7)
		for i := 6; i >= 0; i-- {
			day := ref.AddDate(0, 0, -i)
			t := CalcTotals(FilterByDate(entries, FormatDate(day)))
			points = append(points, ChartPoint{
				Label:   day.Format("Mon"),
				Income:  t.Income,
				Expense: t.Expense,
			})
		}
		return points

	case Weekly:
		// Trailing 4 ISO weeks, each anchored to the Monday on or before ref.
		points := make([]ChartPoint, 0, 4)
		for i := 3; i >= 0; i-- {
			start := startOfWeek(ref).AddDate(0, 0, -7*i)
			end := start.AddDate(0, 0, 6)
			t := CalcTotals(FilterByRange(entries, DateRange{Start: FormatDate(start), End: FormatDate(end)}))
			points = append(points, ChartPoint{
				Label:   "W" + strconv.Itoa(4-i),
				Income:  t.Income,
				Expense: t.Expense,
			})
		}
		return points

	case Monthly:
		// Trailing 6 calendar months ending at ref's month. Month ends use
		// actual days-per-month via the day-zero normalization.
		points := make([]ChartPoint, 0, 6)
		for i := 5; i >= 0; i-- {
			start, end := monthBounds(ref, -i)
			t := CalcTotals(FilterByRange(entries, DateRange{Start: FormatDate(start), End: FormatDate(end)}))
			points = append(points, ChartPoint{
				Label:   start.Format("Jan"),
				Income:  t.Income,
				Expense: t.Expense,
			})
		}
		return points

	case Yearly:
		// Trailing 3 calendar years ending at ref's year.
		points := make([]ChartPoint, 0, 3)
		for i := 2; i >= 0; i-- {
			start, end := yearBounds(ref, -i)
			t := CalcTotals(FilterByRange(entries, DateRange{Start: FormatDate(start), End: FormatDate(end)}))
			points = append(points, ChartPoint{
				Label:   strconv.Itoa(start.Year()),
				Income:  t.Income,
				Expense: t.Expense,
			})
		}
		return points

	default: // Total
		t := CalcTotals(entries)
		return []ChartPoint{{Label: "All Time", Income: t.Income, Expense: t.Expense}}
	}
}

// PeriodTotals computes the totals of the single bucket containing ref for
// the given period: the current day, week, month, year, or everything.
func PeriodTotals(period Period, entries []Entry, ref time.Time) Totals {
	switch period {
	case Daily:
		return CalcTotals(FilterByDate(entries, FormatDate(ref)))
	case Weekly:
		start := startOfWeek(ref)
		end := start.AddDate(0, 0, 6)
		return CalcTotals(FilterByRange(entries, DateRange{Start: FormatDate(start), End: FormatDate(end)}))
	case Monthly:
		start, end := monthBounds(ref, 0)
		return CalcTotals(FilterByRange(entries, DateRange{Start: FormatDate(start), End: FormatDate(end)}))
	case Yearly:
		start, end := yearBounds(ref, 0)
		return CalcTotals(FilterByRange(entries, DateRange{Start: FormatDate(start), End: FormatDate(end)}))
	default:
		return CalcTotals(entries)
	}
}

// startOfWeek returns the Monday on or before t at midnight. Sunday is the
// last day of its week, so weekday 0 maps to an offset of 6 days back.
func startOfWeek(t time.Time) time.Time {
	offset := int(t.Weekday()) - 1
	if t.Weekday() == time.Sunday {
		offset = 6
	}
	d := t.AddDate(0, 0, -offset)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, t.Location())
}

// monthBounds returns the first and last day of ref's month shifted by
// delta months. Day zero of the following month normalizes to the actual
// last day, so no fixed month length is assumed.
func monthBounds(ref time.Time, delta int) (time.Time, time.Time) {
	start := time.Date(ref.Year(), ref.Month()+time.Month(delta), 1, 0, 0, 0, 0, ref.Location())
	end := time.Date(ref.Year(), ref.Month()+time.Month(delta)+1, 0, 0, 0, 0, 0, ref.Location())
	return start, end
}

func yearBounds(ref time.Time, delta int) (time.Time, time.Time) {
	start := time.Date(ref.Year()+delta, time.January, 1, 0, 0, 0, 0, ref.Location())
	end := time.Date(ref.Year()+delta, time.December, 31, 0, 0, 0, 0, ref.Location())
	return start, end
}
