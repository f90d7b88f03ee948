package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/habitflow/internal/auth"
	"github.com/dukerupert/habitflow/internal/model"
	"github.com/dukerupert/habitflow/internal/store"
)

type SupportHandler struct {
	users   *store.UserStore
	support *store.SupportStore
	logger  *slog.Logger
}

func NewSupportHandler(users *store.UserStore, support *store.SupportStore, logger *slog.Logger) *SupportHandler {
	return &SupportHandler{users: users, support: support, logger: logger}
}

type supportRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

func (h *SupportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req supportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}
	req.Category = strings.TrimSpace(req.Category)
	if req.Category == "" {
		req.Category = model.SupportCategoryOther
	}
	if !model.ValidSupportCategory(req.Category) {
		writeError(w, http.StatusBadRequest, "Unknown category")
		return
	}

	userID := auth.UserID(r.Context())
	name, email := strings.TrimSpace(req.Name), strings.TrimSpace(req.Email)
	if name == "" || email == "" {
		u, err := h.users.GetByID(userID)
		if err != nil {
			h.logger.Error("get user", "user_id", userID, "error", err)
			writeError(w, http.StatusInternalServerError, "Server error sending message")
			return
		}
		if u != nil {
			if name == "" {
				name = u.Name
			}
			if email == "" {
				email = u.Email
			}
		}
	}

	msg, err := h.support.Create(&userID, name, email, req.Category, req.Message)
	if err != nil {
		h.logger.Error("create support message", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error sending message")
		return
	}

	h.logger.Info("support message received", "id", msg.ID, "category", msg.Category)
	writeJSON(w, http.StatusCreated, envelope{"success": true, "message": "Message received", "data": msg})
}

func (h *SupportHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	msgs, err := h.support.ListByUser(userID)
	if err != nil {
		h.logger.Error("list support messages", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error loading messages")
		return
	}
	if msgs == nil {
		msgs = []model.SupportMessage{}
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "data": msgs})
}
