package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/habitflow/internal/auth"
	"github.com/dukerupert/habitflow/internal/store"
)

// ResetMailer delivers password reset links.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, to, token string) error
}

type AuthHandler struct {
	users  *store.UserStore
	resets *store.PasswordResetStore
	issuer *auth.Issuer
	mailer ResetMailer
	logger *slog.Logger
	now    func() time.Time

	pending sync.WaitGroup
}

func NewAuthHandler(users *store.UserStore, resets *store.PasswordResetStore, issuer *auth.Issuer, mailer ResetMailer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		resets: resets,
		issuer: issuer,
		mailer: mailer,
		logger: logger,
		now:    time.Now,
	}
}

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionUser struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = store.NormalizeEmail(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "All fields are required")
		return
	}
	if len(req.Password) < auth.MinPasswordLength {
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters long")
		return
	}

	existing, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("signup lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	u, err := h.users.Create(req.Name, req.Email, hash)
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	h.respondWithSession(w, http.StatusCreated, u.ID, u.Name, u.Email)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password required")
		return
	}

	u, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	h.respondWithSession(w, http.StatusOK, u.ID, u.Name, u.Email)
}

func (h *AuthHandler) respondWithSession(w http.ResponseWriter, status int, id int64, name, email string) {
	token, err := h.issuer.IssueSession(id, email)
	if err != nil {
		h.logger.Error("issue session", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, status, envelope{
		"success": true,
		"data": envelope{
			"token": token,
			"user":  sessionUser{ID: id, Name: name, Email: email},
		},
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetByID(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("load current user", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "data": u})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "Current and new password are required")
		return
	}
	if len(req.NewPassword) < auth.MinPasswordLength {
		writeError(w, http.StatusBadRequest, "New password must be at least 6 characters long")
		return
	}

	u, err := h.users.GetByID(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("load user for password change", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.CurrentPassword) {
		writeError(w, http.StatusBadRequest, "Current password is incorrect")
		return
	}

	if err := h.setPassword(u.ID, req.NewPassword); err != nil {
		h.logger.Error("change password", "user_id", u.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": "Password updated successfully"})
}

const forgotPasswordMessage = "If an account exists for that email, a reset link has been sent"

// ForgotPassword always answers with the same message so callers cannot
// probe which emails are registered.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}

	// The lookup and email run after the response so its timing does not
	// depend on whether the account exists.
	ctx := context.WithoutCancel(r.Context())
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		h.sendReset(ctx, req.Email)
	}()
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": forgotPasswordMessage})
}

// Wait blocks until in-flight password reset emails are done.
func (h *AuthHandler) Wait() {
	h.pending.Wait()
}

func (h *AuthHandler) sendReset(ctx context.Context, email string) {
	u, err := h.users.GetByEmail(email)
	if err != nil {
		h.logger.Error("forgot password lookup", "error", err)
		return
	}
	if u == nil {
		return
	}

	token, jti, expiresAt, err := h.issuer.IssueReset(u.ID, u.Email)
	if err != nil {
		h.logger.Error("issue reset token", "user_id", u.ID, "error", err)
		return
	}
	if _, err := h.resets.Create(jti, u.ID, expiresAt); err != nil {
		h.logger.Error("record reset token", "user_id", u.ID, "error", err)
		return
	}
	if h.mailer == nil {
		return
	}
	if err := h.mailer.SendPasswordReset(ctx, u.Email, token); err != nil {
		h.logger.Warn("send password reset", "user_id", u.ID, "error", err)
	}
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "Token and new password are required")
		return
	}
	if len(req.NewPassword) < auth.MinPasswordLength {
		writeError(w, http.StatusBadRequest, "New password must be at least 6 characters long")
		return
	}

	claims, err := h.issuer.ParseReset(req.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}

	pr, err := h.resets.GetByJTI(claims.ID)
	if err != nil {
		h.logger.Error("load reset token", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if pr == nil || pr.UserID != claims.UserID || pr.UsedAt != nil || !h.now().Before(pr.ExpiresAt) {
		writeError(w, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}

	ok, err := h.resets.Consume(claims.ID)
	if err != nil {
		h.logger.Error("consume reset token", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}

	if err := h.setPassword(claims.UserID, req.NewPassword); err != nil {
		h.logger.Error("reset password", "user_id", claims.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": "Password has been reset"})
}

func (h *AuthHandler) setPassword(userID int64, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return h.users.UpdatePassword(userID, hash)
}
