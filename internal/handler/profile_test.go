package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProfileGet(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice@example.com")
	h := NewProfileHandler(env.users, env.logger)

	rec := httptest.NewRecorder()
	h.Get(rec, newRequest(t, "GET", "/api/profile", nil, u.ID))
	assertStatus(t, rec, http.StatusOK)

	data := decodeBody(t, rec)["data"].(map[string]any)
	if data["timezone"] != "Asia/Kolkata" {
		t.Errorf("timezone = %v, want %q", data["timezone"], "Asia/Kolkata")
	}
	if data["weekStart"] != "monday" {
		t.Errorf("weekStart = %v, want %q", data["weekStart"], "monday")
	}
}

func TestProfileUpdatePartial(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice@example.com")
	h := NewProfileHandler(env.users, env.logger)

	rec := httptest.NewRecorder()
	h.Update(rec, newRequest(t, "PUT", "/api/profile", map[string]any{
		"location":       "Pune",
		"emailReminders": false,
		"timezone":       "Europe/Berlin",
		"weekStart":      "sunday",
	}, u.ID))
	assertStatus(t, rec, http.StatusOK)

	body := decodeBody(t, rec)
	assertMessage(t, body, "Profile updated")
	data := body["data"].(map[string]any)
	if data["location"] != "Pune" {
		t.Errorf("location = %v, want %q", data["location"], "Pune")
	}
	if data["emailReminders"] != false {
		t.Errorf("emailReminders = %v, want false", data["emailReminders"])
	}
	if data["timezone"] != "Europe/Berlin" {
		t.Errorf("timezone = %v, want %q", data["timezone"], "Europe/Berlin")
	}
	if data["name"] != "Test User" {
		t.Errorf("name = %v, want unchanged %q", data["name"], "Test User")
	}
}

func TestProfileUpdateValidation(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice@example.com")
	h := NewProfileHandler(env.users, env.logger)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"blank name", map[string]any{"name": "  "}},
		{"unknown timezone", map[string]any{"timezone": "Mars/Olympus"}},
		{"bad week start", map[string]any{"weekStart": "friday"}},
		{"bad theme", map[string]any{"themePreference": "neon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Update(rec, newRequest(t, "PUT", "/api/profile", tt.body, u.ID))
			assertStatus(t, rec, http.StatusBadRequest)
		})
	}
}
