package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/habitflow/internal/coach"
	"github.com/dukerupert/habitflow/internal/config"
	"github.com/dukerupert/habitflow/internal/database"
	"github.com/dukerupert/habitflow/internal/email"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.Default()
	cfg.JWTSecret = "test-secret"
	cfg.ClientURL = "https://app.example.com"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(db, cfg, email.NewClient("", cfg.FromEmail, cfg.ClientURL), coach.NewClient("", ""), logger)
	t.Cleanup(srv.Wait)
	return srv.Router()
}

func do(t *testing.T, h http.Handler, method, target, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode body: %v", err)
		}
	}
	return rec, decoded
}

func signup(t *testing.T, h http.Handler, email string) (string, int64) {
	t.Helper()
	rec, body := do(t, h, "POST", "/api/auth/signup", "", map[string]string{
		"name":     "Alice",
		"email":    email,
		"password": "secret1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, want %d", rec.Code, http.StatusCreated)
	}
	data := body["data"].(map[string]any)
	user := data["user"].(map[string]any)
	return data["token"].(string), int64(user["id"].(float64))
}

func TestRootAndHealth(t *testing.T) {
	h := newTestServer(t)

	rec, _ := do(t, h, "GET", "/", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("root status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Body.String(); got != "HabitFlow API is running" {
		t.Errorf("root body = %q, want %q", got, "HabitFlow API is running")
	}

	rec, body := do(t, h, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", rec.Code, http.StatusOK)
	}
	if body["status"] != "ok" {
		t.Errorf("health status field = %v, want %q", body["status"], "ok")
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newTestServer(t)

	for _, target := range []string{"/nope", "/api/nope", "/api/habits/one/1/extra"} {
		rec, body := do(t, h, "GET", target, "", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want %d", target, rec.Code, http.StatusNotFound)
		}
		if body["message"] != "Route not found" {
			t.Errorf("%s message = %v, want %q", target, body["message"], "Route not found")
		}
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	h := newTestServer(t)

	rec, body := do(t, h, "GET", "/api/stats/overview", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if body["message"] != "No token, authorization denied" {
		t.Errorf("message = %v, want %q", body["message"], "No token, authorization denied")
	}
}

func TestHabitFlow(t *testing.T) {
	h := newTestServer(t)
	token, userID := signup(t, h, "alice@example.com")

	rec, body := do(t, h, "POST", "/api/habits/create", token, map[string]any{"title": "Read"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", rec.Code, http.StatusCreated)
	}
	habitID := int64(body["habit"].(map[string]any)["id"].(float64))

	for range 2 {
		rec, _ = do(t, h, "POST", fmt.Sprintf("/api/habits/%d/check-in", habitID), token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("check-in status = %d, want %d", rec.Code, http.StatusOK)
		}
	}

	rec, body = do(t, h, "GET", fmt.Sprintf("/api/habits/user/%d", userID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want %d", rec.Code, http.StatusOK)
	}
	habits := body["habits"].([]any)
	if len(habits) != 1 {
		t.Fatalf("len(habits) = %d, want 1", len(habits))
	}
	if dates := habits[0].(map[string]any)["completedDates"].([]any); len(dates) != 1 {
		t.Errorf("completedDates = %v, want one day", dates)
	}

	rec, body = do(t, h, "GET", "/api/stats/overview", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("overview status = %d, want %d", rec.Code, http.StatusOK)
	}
	data := body["data"].(map[string]any)
	if data["todaysCompletions"] != float64(1) {
		t.Errorf("todaysCompletions = %v, want 1", data["todaysCompletions"])
	}

	rec, _ = do(t, h, "DELETE", fmt.Sprintf("/api/habits/delete/%d", habitID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want %d", rec.Code, http.StatusOK)
	}
	rec, _ = do(t, h, "GET", fmt.Sprintf("/api/habits/one/%d", habitID), token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get deleted status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHabitsOfOtherUserForbidden(t *testing.T) {
	h := newTestServer(t)
	_, aliceID := signup(t, h, "alice@example.com")
	bobToken, _ := signup(t, h, "bob@example.com")

	rec, _ := do(t, h, "GET", fmt.Sprintf("/api/habits/user/%d", aliceID), bobToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestCoachUnconfigured(t *testing.T) {
	h := newTestServer(t)
	token, _ := signup(t, h, "alice@example.com")

	rec, body := do(t, h, "POST", "/api/ai/coach", token, map[string]string{"message": "hi"})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if body["message"] != "AI Coach is temporarily unavailable" {
		t.Errorf("message = %v, want %q", body["message"], "AI Coach is temporarily unavailable")
	}
}

func TestPushRoutesUnconfigured(t *testing.T) {
	h := newTestServer(t)
	token, _ := signup(t, h, "alice@example.com")

	rec, _ := do(t, h, "GET", "/api/push/vapid-key", token, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("vapid-key status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	rec, body := do(t, h, "GET", "/api/push/subscriptions", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("subscriptions status = %d, want %d", rec.Code, http.StatusOK)
	}
	if subs := body["data"].([]any); len(subs) != 0 {
		t.Errorf("subscriptions = %v, want none", subs)
	}
}

func TestAuthRateLimit(t *testing.T) {
	h := newTestServer(t)

	creds := map[string]string{"email": "nobody@example.com", "password": "secret1"}
	for i := 0; i < authRateLimit; i++ {
		rec, _ := do(t, h, "POST", "/api/auth/login", "", creds)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want %d", i+1, rec.Code, http.StatusUnauthorized)
		}
	}

	rec, body := do(t, h, "POST", "/api/auth/login", "", creds)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if body["success"] != false || body["message"] != "Too many requests, please try again later" {
		t.Errorf("body = %v", body)
	}

	// Another account from the same client keeps its own budget.
	rec, _ = do(t, h, "POST", "/api/auth/login", "", map[string]string{"email": "other@example.com", "password": "secret1"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("other email status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthRateLimitPerIP(t *testing.T) {
	h := newTestServer(t)

	for i := 0; i < authIPRateLimit; i++ {
		creds := map[string]string{"email": fmt.Sprintf("user%d@example.com", i), "password": "secret1"}
		rec, _ := do(t, h, "POST", "/api/auth/forgot-password", "", creds)
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	rec, _ := do(t, h, "POST", "/api/auth/forgot-password", "", map[string]string{"email": "one-more@example.com"})
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/api/habits/create", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q, want %q", got, "https://app.example.com")
	}
}
