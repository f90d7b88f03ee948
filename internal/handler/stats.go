package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/habitflow/internal/auth"
	"github.com/dukerupert/habitflow/internal/day"
	"github.com/dukerupert/habitflow/internal/model"
	"github.com/dukerupert/habitflow/internal/stats"
	"github.com/dukerupert/habitflow/internal/store"
)

type StatsHandler struct {
	calendar
	habits      *store.HabitStore
	completions *store.CompletionStore
	logger      *slog.Logger
}

func NewStatsHandler(users *store.UserStore, habits *store.HabitStore, completions *store.CompletionStore, defaultTimezone string, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		calendar:    newCalendar(users, defaultTimezone),
		habits:      habits,
		completions: completions,
		logger:      logger,
	}
}

type statsInput struct {
	user   *model.User
	today  day.Key
	habits []model.Habit
	events []model.Completion
}

// load gathers the caller's active habits and completion ledger. It writes
// the error response itself and returns nil on failure.
func (h *StatsHandler) load(w http.ResponseWriter, r *http.Request) *statsInput {
	userID := auth.UserID(r.Context())
	u, today, err := h.today(userID)
	if err != nil {
		h.logger.Error("resolve today", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error loading stats")
		return nil
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return nil
	}

	habits, err := h.habits.ListActiveByUser(userID)
	if err != nil {
		h.logger.Error("list habits", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error loading stats")
		return nil
	}
	events, err := h.completions.ListByUser(userID)
	if err != nil {
		h.logger.Error("list completions", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error loading stats")
		return nil
	}
	return &statsInput{user: u, today: today, habits: habits, events: events}
}

func (h *StatsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	in := h.load(w, r)
	if in == nil {
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "data": stats.BuildOverview(in.habits, in.events, in.today)})
}

func (h *StatsHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	in := h.load(w, r)
	if in == nil {
		return
	}
	buckets := stats.WeeklyHistogram(in.events, in.today, stats.WeekStartDay(in.user.WeekStart))
	writeJSON(w, http.StatusOK, envelope{"success": true, "data": buckets})
}

func (h *StatsHandler) TopHabits(w http.ResponseWriter, r *http.Request) {
	limit := stats.TopHabitsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	in := h.load(w, r)
	if in == nil {
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "data": stats.TopHabits(in.events, in.habits, limit)})
}

// Calendar returns per-day completion totals for every day of a month.
func (h *StatsHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil || year < 1 || year > 9999 {
		writeError(w, http.StatusBadRequest, "Invalid year")
		return
	}
	month, err := strconv.Atoi(r.PathValue("month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month")
		return
	}

	userID := auth.UserID(r.Context())
	from, to := day.MonthBounds(year, time.Month(month))
	events, err := h.completions.ListByUserRange(userID, from, to)
	if err != nil {
		h.logger.Error("list completions", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error loading calendar")
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "data": stats.CalendarMonth(events, year, time.Month(month))})
}
