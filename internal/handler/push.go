package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/habitflow/internal/auth"
	"github.com/dukerupert/habitflow/internal/model"
	"github.com/dukerupert/habitflow/internal/push"
	"github.com/dukerupert/habitflow/internal/store"
)

type PushHandler struct {
	subs     *store.PushStore
	service  *push.Service
	notifier *push.Notifier
	logger   *slog.Logger
}

func NewPushHandler(subs *store.PushStore, service *push.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{
		subs:     subs,
		service:  service,
		notifier: push.NewNotifier(service, subs, logger),
		logger:   logger,
	}
}

type subscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

type subscribeRequest struct {
	Endpoint   string           `json:"endpoint"`
	Keys       subscriptionKeys `json:"keys"`
	DeviceName string           `json:"deviceName"`
}

// Subscribe handles POST /api/push/subscribe. The body is the browser's
// PushSubscription JSON plus an optional device name.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if !h.service.Configured() {
		writeError(w, http.StatusServiceUnavailable, "Push notifications are not configured")
		return
	}

	var req subscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.Endpoint = strings.TrimSpace(req.Endpoint)
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint and keys are required")
		return
	}

	userID := auth.UserID(r.Context())
	sub, err := h.subs.Subscribe(userID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth, strings.TrimSpace(req.DeviceName))
	if err != nil {
		h.logger.Error("save push subscription", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error saving subscription")
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"success": true, "message": "Subscribed", "data": sub})
}

// List handles GET /api/push/subscriptions
func (h *PushHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	subs, err := h.subs.ListByUser(userID)
	if err != nil {
		h.logger.Error("list push subscriptions", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error loading subscriptions")
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "data": subs})
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid subscription id")
		return
	}

	userID := auth.UserID(r.Context())
	deleted, err := h.subs.Delete(id, userID)
	if err != nil {
		h.logger.Error("delete push subscription", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error removing subscription")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Subscription not found")
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": "Unsubscribed"})
}

// VAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if !h.service.Configured() {
		writeError(w, http.StatusServiceUnavailable, "Push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "publicKey": h.service.VAPIDPublicKey()})
}

// Test handles POST /api/push/test
func (h *PushHandler) Test(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	sent, err := h.notifier.Notify(r.Context(), userID, push.Payload{
		Title: "Test Notification",
		Body:  "Push notifications are working!",
		URL:   "/",
		Tag:   "test",
	})
	if err != nil {
		h.logger.Warn("test push", "user_id", userID, "error", err)
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "sent": sent})
}
