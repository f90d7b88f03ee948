// Package stats derives read-only habit metrics from the completion ledger.
// Every function is pure: callers pass today's day key and the user's
// completions on active habits.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/dukerupert/habitflow/internal/day"
	"github.com/dukerupert/habitflow/internal/model"
)

const (
	// WindowDays is the length of the rolling completion-rate window.
	WindowDays = 30

	// TopHabitsLimit is the default size of the top-habits ranking.
	TopHabitsLimit = 5
)

var weekdayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Bucket is one bar of the weekly histogram.
type Bucket struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

type TopHabit struct {
	HabitID          int64   `json:"habitId"`
	Title            string  `json:"title"`
	TotalCompletions int     `json:"totalCompletions"`
	LastCompleted    day.Key `json:"lastCompleted"`
}

// DayTotal is the completion total for one day of a calendar month.
type DayTotal struct {
	Day   int `json:"day"`
	Total int `json:"total"`
}

type Overview struct {
	TotalHabits       int `json:"totalHabits"`
	TodaysCompletions int `json:"todaysCompletions"`
	CompletionRate    int `json:"completionRate"`
	BestStreak        int `json:"bestStreak"`
}

// HabitSummary is the overview served from the habits routes.
type HabitSummary struct {
	TotalHabits   int `json:"totalHabits"`
	ActiveHabits  int `json:"activeHabits"`
	TotalCheckIns int `json:"totalCheckIns"`
	CheckInsToday int `json:"checkInsToday"`
}

// WeekStartDay maps a user's weekStart preference to a weekday. Anything
// other than "sunday" starts the week on Monday.
func WeekStartDay(pref string) time.Weekday {
	if pref == model.WeekStartSunday {
		return time.Sunday
	}
	return time.Monday
}

// TodaysCompletionCount returns the number of distinct habits completed on today.
func TodaysCompletionCount(events []model.Completion, today day.Key) int {
	seen := make(map[int64]struct{})
	for _, e := range events {
		if e.Day == today {
			seen[e.HabitID] = struct{}{}
		}
	}
	return len(seen)
}

// RollingWindowTotal sums counts of events in the windowDays days ending on
// today, inclusive.
func RollingWindowTotal(events []model.Completion, today day.Key, windowDays int) int {
	if windowDays <= 0 || !today.Valid() {
		return 0
	}
	from := today.AddDays(-(windowDays - 1))

	total := 0
	for _, e := range events {
		if !e.Day.Valid() {
			continue
		}
		if e.Day.InRange(from, today) {
			total += e.Count
		}
	}
	return total
}

// CompletionRate returns total as a rounded percentage of
// activeHabits*windowDays. It is 0 when there is nothing to divide by.
func CompletionRate(total, activeHabits, windowDays int) int {
	denom := activeHabits * windowDays
	if denom <= 0 {
		return 0
	}
	return int(math.Round(float64(total) / float64(denom) * 100))
}

// BestStreak returns the longest run of consecutive days on which any habit
// was completed.
func BestStreak(events []model.Completion) int {
	days := make([]day.Key, 0, len(events))
	for _, e := range events {
		days = append(days, e.Day)
	}
	return LongestRun(days)
}

// LongestRun returns the length of the longest run of calendar-adjacent days
// in days. Duplicates and malformed keys are ignored.
func LongestRun(days []day.Key) int {
	set := make(map[day.Key]struct{}, len(days))
	for _, d := range days {
		if d.Valid() {
			set[d] = struct{}{}
		}
	}
	if len(set) == 0 {
		return 0
	}

	sorted := make([]day.Key, 0, len(set))
	for d := range set {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	best, run := 1, 1
	for i := 1; i < len(sorted); i++ {
		if gap, err := day.Between(sorted[i-1], sorted[i]); err == nil && gap == 1 {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}

// WeeklyHistogram sums counts per weekday for the week containing today.
// The week begins on weekStart; buckets are always labeled Mon..Sun.
func WeeklyHistogram(events []model.Completion, today day.Key, weekStart time.Weekday) []Bucket {
	buckets := make([]Bucket, len(weekdayLabels))
	for i, label := range weekdayLabels {
		buckets[i] = Bucket{Label: label}
	}

	start, err := day.WeekStart(today, weekStart)
	if err != nil {
		return buckets
	}
	end := start.AddDays(6)

	for _, e := range events {
		if !e.Day.Valid() || !e.Day.InRange(start, end) {
			continue
		}
		wd, err := e.Day.Weekday()
		if err != nil {
			continue
		}
		// time.Weekday counts from Sunday; buckets count from Monday.
		buckets[(int(wd)+6)%7].Value += e.Count
	}
	return buckets
}

// TopHabits ranks habits by total completions. Ties go to the habit completed
// most recently, then to the lower habit id. Events for habits not in habits
// are ignored.
func TopHabits(events []model.Completion, habits []model.Habit, limit int) []TopHabit {
	titles := make(map[int64]string, len(habits))
	for _, h := range habits {
		titles[h.ID] = h.Title
	}

	byHabit := make(map[int64]*TopHabit)
	for _, e := range events {
		title, ok := titles[e.HabitID]
		if !ok || !e.Day.Valid() {
			continue
		}
		th, ok := byHabit[e.HabitID]
		if !ok {
			th = &TopHabit{HabitID: e.HabitID, Title: title}
			byHabit[e.HabitID] = th
		}
		th.TotalCompletions += e.Count
		if e.Day > th.LastCompleted {
			th.LastCompleted = e.Day
		}
	}

	out := make([]TopHabit, 0, len(byHabit))
	for _, th := range byHabit {
		out = append(out, *th)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TotalCompletions != b.TotalCompletions {
			return a.TotalCompletions > b.TotalCompletions
		}
		if a.LastCompleted != b.LastCompleted {
			return a.LastCompleted > b.LastCompleted
		}
		return a.HabitID < b.HabitID
	})

	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CalendarMonth returns per-day completion totals for the month, ascending
// by day. Days without completions are omitted.
func CalendarMonth(events []model.Completion, year int, month time.Month) []DayTotal {
	first, next := day.MonthBounds(year, month)

	totals := make(map[int]int)
	for _, e := range events {
		if !e.Day.Valid() || e.Day < first || e.Day >= next {
			continue
		}
		t, err := e.Day.Time()
		if err != nil {
			continue
		}
		totals[t.Day()] += e.Count
	}

	out := make([]DayTotal, 0, len(totals))
	for d, total := range totals {
		if total > 0 {
			out = append(out, DayTotal{Day: d, Total: total})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

// BuildOverview assembles the dashboard overview for a user's active habits.
func BuildOverview(habits []model.Habit, events []model.Completion, today day.Key) Overview {
	total := RollingWindowTotal(events, today, WindowDays)
	return Overview{
		TotalHabits:       len(habits),
		TodaysCompletions: TodaysCompletionCount(events, today),
		CompletionRate:    CompletionRate(total, len(habits), WindowDays),
		BestStreak:        BestStreak(events),
	}
}

// BuildHabitSummary assembles the habits-route overview. Only active habits
// are passed in, so total and active agree.
func BuildHabitSummary(habits []model.Habit, events []model.Completion, today day.Key) HabitSummary {
	checkIns := 0
	for _, e := range events {
		if e.Day.Valid() {
			checkIns += e.Count
		}
	}
	return HabitSummary{
		TotalHabits:   len(habits),
		ActiveHabits:  len(habits),
		TotalCheckIns: checkIns,
		CheckInsToday: TodaysCompletionCount(events, today),
	}
}
