package core

import (
	"testing"
	"time"
)

func entry(amount float64, typ EntryType, date string) Entry {
	return Entry{ID: "id-" + date + string(typ), Amount: amount, Type: typ, Date: date}
}

func TestCalcTotalsEmpty(t *testing.T) {
	got := CalcTotals(nil)
	if got != (Totals{}) {
		t.Fatalf("totals of empty = %+v, want zeros", got)
	}
}

func TestCalcTotals(t *testing.T) {
	entries := []Entry{
		entry(100, Income, "2024-01-01"),
		entry(40, Expense, "2024-01-01"),
	}
	got := CalcTotals(entries)
	want := Totals{Income: 100, Expense: 40, Balance: 60}
	if got != want {
		t.Fatalf("totals = %+v, want %+v", got, want)
	}
}

func TestCalcTotalsBalanceIdentity(t *testing.T) {
	entries := []Entry{
		entry(10, Income, "2024-01-01"),
		entry(25.5, Income, "2024-01-03"),
		entry(7.25, Expense, "2024-02-01"),
		entry(3, Expense, "2024-02-02"),
	}
	got := CalcTotals(entries)
	if got.Balance != got.Income-got.Expense {
		t.Fatalf("balance %v != income %v - expense %v", got.Balance, got.Income, got.Expense)
	}

	onlyIncome := []Entry{entry(5, Income, "2024-01-01"), entry(6, Income, "2024-01-02")}
	if tot := CalcTotals(onlyIncome); tot.Balance != tot.Income {
		t.Fatalf("with no expenses balance = %v, want income %v", tot.Balance, tot.Income)
	}
}

func TestFilterByDate(t *testing.T) {
	entries := []Entry{
		entry(1, Income, "2024-01-01"),
		entry(2, Expense, "2024-01-02"),
		entry(3, Income, "2024-01-01"),
	}
	got := FilterByDate(entries, "2024-01-01")
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got := FilterByDate(entries, "2024-01-03"); len(got) != 0 {
		t.Fatalf("got %d entries for empty day, want 0", len(got))
	}
}

func TestFilterByRange(t *testing.T) {
	entries := []Entry{
		entry(1, Income, "2023-12-31"),
		entry(2, Income, "2024-01-01"),
		entry(3, Income, "2024-01-15"),
		entry(4, Income, "2024-02-01"),
	}
	got := FilterByRange(entries, DateRange{Start: "2024-01-01", End: "2024-01-31"})
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
}

func TestFilterByRangeInverted(t *testing.T) {
	entries := []Entry{entry(1, Income, "2024-01-05")}
	got := FilterByRange(entries, DateRange{Start: "2024-02-01", End: "2024-01-01"})
	if len(got) != 0 {
		t.Fatalf("inverted range returned %d entries, want 0", len(got))
	}
}

func TestPeriodSeriesDaily(t *testing.T) {
	ref := time.Date(2024, 1, 7, 12, 0, 0, 0, time.Local)
	entries := []Entry{
		entry(10, Income, "2024-01-07"),
		entry(4, Expense, "2024-01-01"),
		entry(99, Income, "2023-12-31"), // outside the trailing week
	}
	series := PeriodSeries(Daily, entries, ref)
	if len(series) != 7 {
		t.Fatalf("daily series has %d buckets, want 7", len(series))
	}
	// Oldest first: bucket 0 is 2024-01-01, last bucket contains ref.
	if series[0].Expense != 4 {
		t.Fatalf("first bucket expense = %v, want 4", series[0].Expense)
	}
	last := series[len(series)-1]
	if last.Income != 10 {
		t.Fatalf("last bucket income = %v, want 10", last.Income)
	}
	if last.Label != "Sun" {
		t.Fatalf("last bucket label = %q, want Sun", last.Label)
	}
}

func TestPeriodSeriesWeekly(t *testing.T) {
	// Sunday is the last day of its week: the week of 2024-01-07 starts
	// Monday 2024-01-01.
	ref := time.Date(2024, 1, 7, 0, 0, 0, 0, time.Local)
	entries := []Entry{
		entry(50, Income, "2024-01-01"),
		entry(20, Expense, "2024-01-07"),
		entry(30, Income, "2023-12-31"), // previous week (Mon Dec 25 - Sun Dec 31)
	}
	series := PeriodSeries(Weekly, entries, ref)
	if len(series) != 4 {
		t.Fatalf("weekly series has %d buckets, want 4", len(series))
	}
	for i, p := range series {
		if want := "W" + string(rune('1'+i)); p.Label != want {
			t.Fatalf("bucket %d label = %q, want %q", i, p.Label, want)
		}
	}
	current := series[3]
	if current.Income != 50 || current.Expense != 20 {
		t.Fatalf("current week = %+v, want income 50 expense 20", current)
	}
	if series[2].Income != 30 {
		t.Fatalf("previous week income = %v, want 30", series[2].Income)
	}
}

func TestStartOfWeekMondayAnchors(t *testing.T) {
	cases := []struct {
		day  string
		want string
	}{
		{"2024-01-07", "2024-01-01"}, // Sunday -> 6 days back
		{"2024-01-01", "2024-01-01"}, // Monday -> itself
		{"2024-01-04", "2024-01-01"}, // Thursday
		{"2024-01-08", "2024-01-08"}, // next Monday
	}
	for _, tc := range cases {
		d, err := ParseDate(tc.day)
		if err != nil {
			t.Fatalf("parse %s: %v", tc.day, err)
		}
		if got := FormatDate(startOfWeek(d)); got != tc.want {
			t.Fatalf("startOfWeek(%s) = %s, want %s", tc.day, got, tc.want)
		}
	}
}

func TestPeriodSeriesMonthly(t *testing.T) {
	ref := time.Date(2024, 6, 15, 0, 0, 0, 0, time.Local)
	entries := []Entry{
		entry(10, Income, "2024-01-31"),
		entry(20, Income, "2024-06-01"),
		entry(5, Expense, "2023-12-31"), // before the trailing 6 months
	}
	series := PeriodSeries(Monthly, entries, ref)
	if len(series) != 6 {
		t.Fatalf("monthly series has %d buckets, want 6", len(series))
	}
	if series[0].Label != "Jan" || series[0].Income != 10 {
		t.Fatalf("first bucket = %+v, want Jan income 10", series[0])
	}
	if series[5].Label != "Jun" || series[5].Income != 20 {
		t.Fatalf("last bucket = %+v, want Jun income 20", series[5])
	}
	var total float64
	for _, p := range series {
		total += p.Expense
	}
	if total != 0 {
		t.Fatalf("out-of-window expense leaked into series: %v", total)
	}
}

func TestPeriodSeriesYearly(t *testing.T) {
	ref := time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local)
	entries := []Entry{
		entry(1, Income, "2022-12-31"),
		entry(2, Income, "2023-05-01"),
		entry(3, Income, "2024-01-01"),
		entry(9, Income, "2021-12-31"),
	}
	series := PeriodSeries(Yearly, entries, ref)
	if len(series) != 3 {
		t.Fatalf("yearly series has %d buckets, want 3", len(series))
	}
	labels := []string{"2022", "2023", "2024"}
	incomes := []float64{1, 2, 3}
	for i := range series {
		if series[i].Label != labels[i] || series[i].Income != incomes[i] {
			t.Fatalf("bucket %d = %+v, want label %s income %v", i, series[i], labels[i], incomes[i])
		}
	}
}

func TestPeriodSeriesTotal(t *testing.T) {
	entries := []Entry{
		entry(100, Income, "2020-01-01"),
		entry(30, Expense, "2024-05-05"),
	}
	series := PeriodSeries(Total, entries, time.Now())
	if len(series) != 1 {
		t.Fatalf("total series has %d buckets, want 1", len(series))
	}
	if series[0].Label != "All Time" || series[0].Income != 100 || series[0].Expense != 30 {
		t.Fatalf("total bucket = %+v", series[0])
	}
}

func TestPeriodTotalsMonthlyLeapYear(t *testing.T) {
	ref := time.Date(2024, 2, 15, 0, 0, 0, 0, time.Local)
	entries := []Entry{
		entry(10, Income, "2024-02-01"),
		entry(5, Income, "2024-02-29"), // leap day must be inside the month
		entry(99, Income, "2024-03-01"),
		entry(99, Income, "2024-01-31"),
	}
	got := PeriodTotals(Monthly, entries, ref)
	if got.Income != 15 {
		t.Fatalf("february income = %v, want 15", got.Income)
	}
}

func TestPeriodTotalsWeekly(t *testing.T) {
	ref := time.Date(2024, 1, 7, 0, 0, 0, 0, time.Local) // Sunday
	entries := []Entry{
		entry(10, Income, "2024-01-01"), // Monday of the same week
		entry(20, Income, "2023-12-31"), // previous week
	}
	got := PeriodTotals(Weekly, entries, ref)
	if got.Income != 10 {
		t.Fatalf("week income = %v, want 10", got.Income)
	}
}

func TestPeriodTotalsEmptyReferenceDay(t *testing.T) {
	ref := time.Date(2024, 4, 10, 0, 0, 0, 0, time.Local)
	got := PeriodTotals(Daily, []Entry{entry(5, Income, "2024-04-09")}, ref)
	if got != (Totals{}) {
		t.Fatalf("empty reference day totals = %+v, want zeros", got)
	}
}

func TestPeriodTotalsYearlyAndTotal(t *testing.T) {
	ref := time.Date(2024, 7, 1, 0, 0, 0, 0, time.Local)
	entries := []Entry{
		entry(10, Income, "2024-01-01"),
		entry(20, Income, "2023-06-01"),
	}
	if got := PeriodTotals(Yearly, entries, ref); got.Income != 10 {
		t.Fatalf("year income = %v, want 10", got.Income)
	}
	if got := PeriodTotals(Total, entries, ref); got.Income != 30 {
		t.Fatalf("all-time income = %v, want 30", got.Income)
	}
}
