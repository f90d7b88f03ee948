package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/habitflow/internal/auth"
	"github.com/dukerupert/habitflow/internal/coach"
	"github.com/dukerupert/habitflow/internal/stats"
	"github.com/dukerupert/habitflow/internal/store"
)

// Replier produces a coach reply for a prompt.
type Replier interface {
	Reply(ctx context.Context, prompt string) (string, error)
}

type CoachHandler struct {
	calendar
	habits      *store.HabitStore
	completions *store.CompletionStore
	replier     Replier
	logger      *slog.Logger
}

func NewCoachHandler(users *store.UserStore, habits *store.HabitStore, completions *store.CompletionStore, replier Replier, defaultTimezone string, logger *slog.Logger) *CoachHandler {
	return &CoachHandler{
		calendar:    newCalendar(users, defaultTimezone),
		habits:      habits,
		completions: completions,
		replier:     replier,
		logger:      logger,
	}
}

func (h *CoachHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	userID := auth.UserID(r.Context())
	hc, err := h.habitContext(userID)
	if err != nil {
		h.logger.Error("build coach context", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "AI Coach is temporarily unavailable")
		return
	}

	reply, err := h.replier.Reply(r.Context(), coach.BuildPrompt(hc, message))
	if err != nil {
		h.logger.Error("coach reply", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "AI Coach is temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "reply": reply})
}

func (h *CoachHandler) habitContext(userID int64) (coach.HabitContext, error) {
	_, today, err := h.today(userID)
	if err != nil {
		return coach.HabitContext{}, err
	}
	habits, err := h.habits.ListActiveByUser(userID)
	if err != nil {
		return coach.HabitContext{}, err
	}
	events, err := h.completions.ListByUser(userID)
	if err != nil {
		return coach.HabitContext{}, err
	}

	titles := make([]string, 0, len(habits))
	for _, hb := range habits {
		titles = append(titles, hb.Title)
	}
	hc := coach.HabitContext{HabitTitles: titles}
	if today != "" {
		hc.CheckIns30Day = stats.RollingWindowTotal(events, today, stats.WindowDays)
	}
	return hc, nil
}
