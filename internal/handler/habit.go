package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/habitflow/internal/auth"
	"github.com/dukerupert/habitflow/internal/day"
	"github.com/dukerupert/habitflow/internal/model"
	"github.com/dukerupert/habitflow/internal/stats"
	"github.com/dukerupert/habitflow/internal/store"
	"github.com/dukerupert/habitflow/internal/websocket"
)

type HabitHandler struct {
	calendar
	habits      *store.HabitStore
	completions *store.CompletionStore
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewHabitHandler(users *store.UserStore, habits *store.HabitStore, completions *store.CompletionStore, hub *websocket.Hub, defaultTimezone string, logger *slog.Logger) *HabitHandler {
	return &HabitHandler{
		calendar:    newCalendar(users, defaultTimezone),
		habits:      habits,
		completions: completions,
		hub:         hub,
		logger:      logger,
	}
}

func (h *HabitHandler) publish(userID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Publish(userID, msg)
	}
}

type habitRequest struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	Frequency       *string `json:"frequency"`
	TimeOfDay       *string `json:"timeOfDay"`
	ReminderTime    *string `json:"reminderTime"`
	ReminderEnabled *bool   `json:"reminderEnabled"`
}

// normalize trims fields and validates them. It fills reminderTime from
// timeOfDay when only the latter is given.
func (req *habitRequest) normalize() string {
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		if t == "" {
			return "Title is required"
		}
		req.Title = &t
	}
	if req.Frequency != nil {
		f := strings.TrimSpace(*req.Frequency)
		if f == "" {
			f = model.FrequencyDaily
		}
		if !model.ValidFrequency(f) {
			return "frequency must be daily, weekly, or custom"
		}
		req.Frequency = &f
	}
	for _, p := range []*string{req.TimeOfDay, req.ReminderTime} {
		if p == nil {
			continue
		}
		*p = strings.TrimSpace(*p)
		if *p != "" && !day.ValidClock(*p) {
			return "times must be in HH:mm format"
		}
	}
	if req.ReminderTime == nil && req.TimeOfDay != nil {
		rt := *req.TimeOfDay
		req.ReminderTime = &rt
	}
	return ""
}

func (h *HabitHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req habitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Title == nil {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}
	if msg := req.normalize(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	nh := store.NewHabit{Title: *req.Title, Frequency: model.FrequencyDaily}
	if req.Description != nil {
		nh.Description = *req.Description
	}
	if req.Frequency != nil {
		nh.Frequency = *req.Frequency
	}
	if req.TimeOfDay != nil {
		nh.TimeOfDay = *req.TimeOfDay
	}
	if req.ReminderTime != nil {
		nh.ReminderTime = *req.ReminderTime
	}
	if req.ReminderEnabled != nil {
		nh.ReminderEnabled = *req.ReminderEnabled
	}

	userID := auth.UserID(r.Context())
	habit, err := h.habits.Create(userID, nh)
	if err != nil {
		h.logger.Error("create habit", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error creating habit")
		return
	}

	h.publish(userID, websocket.NewMessage(websocket.EntityHabit, websocket.ActionCreated, habit.ID, nil))

	writeJSON(w, http.StatusCreated, envelope{"success": true, "message": "Habit created", "habit": habit})
}

func (h *HabitHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if r.PathValue("userId") != strconv.FormatInt(userID, 10) {
		writeError(w, http.StatusForbidden, "Not allowed to see these habits")
		return
	}

	habits, err := h.habits.ListActiveByUser(userID)
	if err != nil {
		h.logger.Error("list habits", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error loading habits")
		return
	}
	if habits == nil {
		habits = []model.Habit{}
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "habits": habits})
}

// load returns the caller's active habit named by the id path value,
// writing the error response itself when it returns nil.
func (h *HabitHandler) load(w http.ResponseWriter, r *http.Request) *model.Habit {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusNotFound, "Habit not found")
		return nil
	}
	habit, err := h.habits.GetForUser(id, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get habit", "habit_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error loading habit")
		return nil
	}
	if habit == nil {
		writeError(w, http.StatusNotFound, "Habit not found")
		return nil
	}
	return habit
}

func (h *HabitHandler) Get(w http.ResponseWriter, r *http.Request) {
	habit := h.load(w, r)
	if habit == nil {
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "habit": habit})
}

func (h *HabitHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusNotFound, "Habit not found")
		return
	}

	var req habitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if msg := req.normalize(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	userID := auth.UserID(r.Context())
	habit, err := h.habits.Update(id, userID, model.HabitUpdate{
		Title:           req.Title,
		Description:     req.Description,
		Frequency:       req.Frequency,
		TimeOfDay:       req.TimeOfDay,
		ReminderTime:    req.ReminderTime,
		ReminderEnabled: req.ReminderEnabled,
	})
	if err != nil {
		h.logger.Error("update habit", "habit_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error updating habit")
		return
	}
	if habit == nil {
		writeError(w, http.StatusNotFound, "Habit not found")
		return
	}

	h.publish(userID, websocket.NewMessage(websocket.EntityHabit, websocket.ActionUpdated, habit.ID, nil))

	writeJSON(w, http.StatusOK, envelope{"success": true, "message": "Habit updated", "habit": habit})
}

func (h *HabitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusNotFound, "Habit not found")
		return
	}

	userID := auth.UserID(r.Context())
	found, err := h.habits.SoftDelete(id, userID)
	if err != nil {
		h.logger.Error("delete habit", "habit_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error deleting habit")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Habit not found")
		return
	}

	h.publish(userID, websocket.NewMessage(websocket.EntityHabit, websocket.ActionDeleted, id, nil))

	writeJSON(w, http.StatusOK, envelope{"success": true, "message": "Habit deleted"})
}

// CheckIn marks the habit done for the caller's current day. Repeating it
// on the same day changes nothing.
func (h *HabitHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.toggleToday(w, r, true)
}

// UndoCheckIn removes today's completion, if any.
func (h *HabitHandler) UndoCheckIn(w http.ResponseWriter, r *http.Request) {
	h.toggleToday(w, r, false)
}

func (h *HabitHandler) toggleToday(w http.ResponseWriter, r *http.Request, done bool) {
	habit := h.load(w, r)
	if habit == nil {
		return
	}

	userID := auth.UserID(r.Context())
	_, today, err := h.today(userID)
	if err != nil || today == "" {
		h.logger.Error("resolve today", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error marking done")
		return
	}

	var changed bool
	if done {
		changed, err = h.completions.Record(userID, habit.ID, today)
	} else {
		changed, err = h.completions.Remove(userID, habit.ID, today)
	}
	if err != nil {
		h.logger.Error("toggle completion", "habit_id", habit.ID, "done", done, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error marking done")
		return
	}

	habit, err = h.habits.GetForUser(habit.ID, userID)
	if err != nil || habit == nil {
		h.logger.Error("reload habit", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error marking done")
		return
	}

	message := "Marked done for today"
	action := websocket.ActionCheckedIn
	if !done {
		message = "Check-in removed for today"
		action = websocket.ActionCheckInUndone
	}
	if changed {
		h.publish(userID, websocket.NewMessage(websocket.EntityHabit, action, habit.ID, map[string]any{"date": today}))
	}

	writeJSON(w, http.StatusOK, envelope{"success": true, "message": message, "habit": habit})
}

// Summary serves the habits-route overview.
func (h *HabitHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	u, today, err := h.today(userID)
	if err != nil {
		h.logger.Error("resolve today", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error loading stats")
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	habits, err := h.habits.ListActiveByUser(userID)
	if err != nil {
		h.logger.Error("list habits", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error loading stats")
		return
	}
	events, err := h.completions.ListByUser(userID)
	if err != nil {
		h.logger.Error("list completions", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error loading stats")
		return
	}

	writeJSON(w, http.StatusOK, envelope{"success": true, "data": stats.BuildHabitSummary(habits, events, today)})
}
