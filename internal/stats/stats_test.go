package stats

import (
	"testing"
	"time"

	"github.com/dukerupert/habitflow/internal/day"
	"github.com/dukerupert/habitflow/internal/model"
)

func ev(habitID int64, d string, count int) model.Completion {
	return model.Completion{HabitID: habitID, Day: day.Key(d), Count: count}
}

func TestLongestRun(t *testing.T) {
	tests := []struct {
		name string
		days []day.Key
		want int
	}{
		{"empty", nil, 0},
		{"single", []day.Key{"2024-01-01"}, 1},
		{"gap", []day.Key{"2024-01-01", "2024-01-02", "2024-01-04"}, 2},
		{"unsorted", []day.Key{"2024-01-03", "2024-01-01", "2024-01-02"}, 3},
		{"duplicates", []day.Key{"2024-01-01", "2024-01-01", "2024-01-02"}, 2},
		{"month boundary", []day.Key{"2024-02-28", "2024-02-29", "2024-03-01"}, 3},
		{"year boundary", []day.Key{"2023-12-31", "2024-01-01"}, 2},
		{"later run wins", []day.Key{"2024-01-01", "2024-01-05", "2024-01-06", "2024-01-07"}, 3},
		{"malformed skipped", []day.Key{"bogus", "2024-01-01", ""}, 1},
		{"all malformed", []day.Key{"nope"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LongestRun(tt.days); got != tt.want {
				t.Errorf("LongestRun(%v) = %d, want %d", tt.days, got, tt.want)
			}
		})
	}
}

func TestBestStreakAcrossHabits(t *testing.T) {
	events := []model.Completion{
		ev(1, "2024-01-01", 1),
		ev(2, "2024-01-02", 1),
		ev(1, "2024-01-03", 1),
		ev(2, "2024-01-03", 1),
	}
	if got := BestStreak(events); got != 3 {
		t.Errorf("BestStreak = %d, want 3", got)
	}
}

func TestTodaysCompletionCount(t *testing.T) {
	events := []model.Completion{
		ev(1, "2024-05-10", 1),
		ev(2, "2024-05-10", 2),
		ev(3, "2024-05-09", 1),
	}
	if got := TodaysCompletionCount(events, "2024-05-10"); got != 2 {
		t.Errorf("TodaysCompletionCount = %d, want 2", got)
	}
	if got := TodaysCompletionCount(nil, "2024-05-10"); got != 0 {
		t.Errorf("TodaysCompletionCount(nil) = %d, want 0", got)
	}
}

func TestRollingWindowTotal(t *testing.T) {
	events := []model.Completion{
		ev(1, "2024-05-30", 1), // today
		ev(1, "2024-05-01", 2), // first day of window
		ev(1, "2024-04-30", 5), // just outside
		ev(1, "2024-05-31", 7), // future
		ev(1, "garbage", 9),
	}
	if got := RollingWindowTotal(events, "2024-05-30", 30); got != 3 {
		t.Errorf("RollingWindowTotal = %d, want 3", got)
	}
	if got := RollingWindowTotal(events, "2024-05-30", 0); got != 0 {
		t.Errorf("RollingWindowTotal with zero window = %d, want 0", got)
	}
}

func TestCompletionRate(t *testing.T) {
	tests := []struct {
		name                      string
		total, habits, windowDays int
		want                      int
	}{
		{"no habits", 0, 0, 30, 0},
		{"no habits with stray total", 5, 0, 30, 0},
		{"full", 60, 2, 30, 100},
		{"half", 15, 1, 30, 50},
		{"rounds up", 2, 1, 30, 7},
		{"rounds down", 1, 1, 30, 3},
		{"several habits", 1, 3, 30, 1},
		{"zero total", 0, 4, 30, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompletionRate(tt.total, tt.habits, tt.windowDays)
			if got != tt.want {
				t.Errorf("CompletionRate(%d, %d, %d) = %d, want %d", tt.total, tt.habits, tt.windowDays, got, tt.want)
			}
		})
	}
}

func TestWeeklyHistogramMondayStart(t *testing.T) {
	// 2024-05-15 is a Wednesday; the Monday week is 05-13..05-19.
	events := []model.Completion{
		ev(1, "2024-05-13", 1), // Mon
		ev(2, "2024-05-13", 2), // Mon
		ev(1, "2024-05-15", 1), // Wed
		ev(1, "2024-05-19", 4), // Sun
		ev(1, "2024-05-12", 8), // previous Sunday
		ev(1, "2024-05-20", 8), // next Monday
	}

	got := WeeklyHistogram(events, "2024-05-15", time.Monday)
	want := []int{3, 0, 1, 0, 0, 0, 4}
	assertBuckets(t, got, want)
}

func TestWeeklyHistogramSundayStart(t *testing.T) {
	// With a Sunday start the week containing 2024-05-15 is 05-12..05-18.
	events := []model.Completion{
		ev(1, "2024-05-12", 8), // Sun, in week
		ev(1, "2024-05-13", 1), // Mon
		ev(1, "2024-05-18", 2), // Sat
		ev(1, "2024-05-19", 4), // next Sunday
	}

	got := WeeklyHistogram(events, "2024-05-15", time.Sunday)
	want := []int{1, 0, 0, 0, 0, 2, 8}
	assertBuckets(t, got, want)
}

func TestWeeklyHistogramEmpty(t *testing.T) {
	got := WeeklyHistogram(nil, "2024-05-15", time.Monday)
	assertBuckets(t, got, []int{0, 0, 0, 0, 0, 0, 0})

	got = WeeklyHistogram(nil, "not-a-day", time.Monday)
	assertBuckets(t, got, []int{0, 0, 0, 0, 0, 0, 0})
}

func assertBuckets(t *testing.T, got []Bucket, want []int) {
	t.Helper()
	labels := []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	if len(got) != 7 {
		t.Fatalf("len = %d, want 7", len(got))
	}
	for i := range got {
		if got[i].Label != labels[i] {
			t.Errorf("bucket[%d].Label = %q, want %q", i, got[i].Label, labels[i])
		}
		if got[i].Value != want[i] {
			t.Errorf("bucket[%d] (%s) = %d, want %d", i, labels[i], got[i].Value, want[i])
		}
	}
}

func TestTopHabitsTieBreak(t *testing.T) {
	habits := []model.Habit{
		{ID: 1, Title: "Read"},
		{ID: 2, Title: "Run"},
		{ID: 3, Title: "Write"},
	}
	events := []model.Completion{
		ev(1, "2024-05-01", 10), // total 10, last d1
		ev(2, "2024-05-03", 10), // total 10, last d2 > d1
		ev(3, "2024-05-04", 5),
	}

	got := TopHabits(events, habits, TopHabitsLimit)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	wantIDs := []int64{2, 1, 3}
	for i, id := range wantIDs {
		if got[i].HabitID != id {
			t.Errorf("got[%d].HabitID = %d, want %d", i, got[i].HabitID, id)
		}
	}
	if got[0].Title != "Run" || got[0].TotalCompletions != 10 || got[0].LastCompleted != "2024-05-03" {
		t.Errorf("got[0] = %+v", got[0])
	}
}

func TestTopHabitsLimitAndUnknown(t *testing.T) {
	var habits []model.Habit
	var events []model.Completion
	for i := int64(1); i <= 7; i++ {
		habits = append(habits, model.Habit{ID: i, Title: "h"})
		for j := int64(0); j < i; j++ {
			events = append(events, ev(i, day.FromDate(2024, 5, int(j)+1).String(), 1))
		}
	}
	events = append(events, ev(99, "2024-05-01", 100))

	got := TopHabits(events, habits, TopHabitsLimit)
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	if got[0].HabitID != 7 || got[0].TotalCompletions != 7 {
		t.Errorf("got[0] = %+v, want habit 7 with 7", got[0])
	}
	for _, th := range got {
		if th.HabitID == 99 {
			t.Error("unknown habit should be ignored")
		}
	}
}

func TestTopHabitsEqualTiesByID(t *testing.T) {
	habits := []model.Habit{{ID: 5, Title: "B"}, {ID: 4, Title: "A"}}
	events := []model.Completion{ev(5, "2024-05-01", 1), ev(4, "2024-05-01", 1)}

	got := TopHabits(events, habits, TopHabitsLimit)
	if len(got) != 2 || got[0].HabitID != 4 {
		t.Errorf("got %+v, want habit 4 first", got)
	}
}

func TestCalendarMonth(t *testing.T) {
	events := []model.Completion{
		ev(1, "2024-02-29", 1),
		ev(1, "2024-02-03", 1),
		ev(2, "2024-02-03", 2),
		ev(1, "2024-03-01", 5),
		ev(1, "2024-01-31", 5),
		ev(1, "junk", 5),
	}

	got := CalendarMonth(events, 2024, time.February)
	want := []DayTotal{{Day: 3, Total: 3}, {Day: 29, Total: 1}}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCalendarMonthEmpty(t *testing.T) {
	got := CalendarMonth(nil, 2024, time.June)
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil slice", got)
	}
}

func TestBuildOverview(t *testing.T) {
	habits := []model.Habit{{ID: 1}, {ID: 2}, {ID: 3}}
	events := []model.Completion{
		ev(1, "2024-05-29", 1),
		ev(1, "2024-05-30", 1),
		ev(2, "2024-05-30", 1),
	}

	got := BuildOverview(habits, events, "2024-05-30")
	want := Overview{TotalHabits: 3, TodaysCompletions: 2, CompletionRate: 3, BestStreak: 2}
	if got != want {
		t.Errorf("BuildOverview = %+v, want %+v", got, want)
	}
}

func TestBuildOverviewNoHabits(t *testing.T) {
	got := BuildOverview(nil, nil, "2024-05-30")
	if got != (Overview{}) {
		t.Errorf("BuildOverview = %+v, want zero value", got)
	}
}

func TestBuildHabitSummary(t *testing.T) {
	habits := []model.Habit{{ID: 1}, {ID: 2}}
	events := []model.Completion{
		ev(1, "2024-05-29", 1),
		ev(1, "2024-05-30", 1),
		ev(2, "2024-05-30", 1),
	}

	got := BuildHabitSummary(habits, events, "2024-05-30")
	want := HabitSummary{TotalHabits: 2, ActiveHabits: 2, TotalCheckIns: 3, CheckInsToday: 2}
	if got != want {
		t.Errorf("BuildHabitSummary = %+v, want %+v", got, want)
	}
}

func TestWeekStartDay(t *testing.T) {
	if WeekStartDay("sunday") != time.Sunday {
		t.Error("sunday should map to time.Sunday")
	}
	for _, s := range []string{"monday", "", "tuesday"} {
		if WeekStartDay(s) != time.Monday {
			t.Errorf("WeekStartDay(%q) should default to Monday", s)
		}
	}
}
