package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/habitflow/internal/auth"
	"github.com/dukerupert/habitflow/internal/day"
	"github.com/dukerupert/habitflow/internal/model"
	"github.com/dukerupert/habitflow/internal/store"
)

var validThemes = map[string]bool{
	"light":  true,
	"dark":   true,
	"system": true,
}

type ProfileHandler struct {
	users  *store.UserStore
	logger *slog.Logger
}

func NewProfileHandler(users *store.UserStore, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{users: users, logger: logger}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetByID(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get profile", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "data": u})
}

type profileRequest struct {
	Name            *string `json:"name"`
	Location        *string `json:"location"`
	Phone           *string `json:"phone"`
	Avatar          *string `json:"avatar"`
	EmailReminders  *bool   `json:"emailReminders"`
	DailyReminder   *bool   `json:"dailyReminder"`
	WeeklySummary   *bool   `json:"weeklySummary"`
	Timezone        *string `json:"timezone"`
	WeekStart       *string `json:"weekStart"`
	ThemePreference *string `json:"themePreference"`
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "Name cannot be empty")
			return
		}
		req.Name = &name
	}
	if req.Timezone != nil && !day.ValidTimezone(*req.Timezone) {
		writeError(w, http.StatusBadRequest, "Unknown timezone")
		return
	}
	if req.WeekStart != nil && *req.WeekStart != model.WeekStartMonday && *req.WeekStart != model.WeekStartSunday {
		writeError(w, http.StatusBadRequest, "weekStart must be sunday or monday")
		return
	}
	if req.ThemePreference != nil && !validThemes[*req.ThemePreference] {
		writeError(w, http.StatusBadRequest, "themePreference must be light, dark, or system")
		return
	}

	u, err := h.users.UpdateProfile(auth.UserID(r.Context()), model.ProfileUpdate{
		Name:            req.Name,
		Location:        req.Location,
		Phone:           req.Phone,
		Avatar:          req.Avatar,
		EmailReminders:  req.EmailReminders,
		DailyReminder:   req.DailyReminder,
		WeeklySummary:   req.WeeklySummary,
		Timezone:        req.Timezone,
		WeekStart:       req.WeekStart,
		ThemePreference: req.ThemePreference,
	})
	if err != nil {
		h.logger.Error("update profile", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "data": u, "message": "Profile updated"})
}
