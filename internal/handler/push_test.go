package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/habitflow/internal/push"
	"github.com/dukerupert/habitflow/internal/store"
)

func newTestPushHandler(t *testing.T, env *testEnv, subs *store.PushStore) *PushHandler {
	t.Helper()
	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}
	return NewPushHandler(subs, push.NewService(pub, priv, "reminders@example.com"), env.logger)
}

func subscribeBody(endpoint string) map[string]any {
	return map[string]any{
		"endpoint":   endpoint,
		"keys":       map[string]string{"p256dh": "client-key", "auth": "client-auth"},
		"deviceName": "Laptop",
	}
}

func TestPushSubscribeAndList(t *testing.T) {
	env := newTestEnv(t)
	subs := env.pushes
	h := newTestPushHandler(t, env, subs)
	u := env.createUser(t, "alice@example.com")

	rec := httptest.NewRecorder()
	h.Subscribe(rec, newRequest(t, "POST", "/api/push/subscribe", subscribeBody("https://push.example.com/1"), u.ID))
	assertStatus(t, rec, http.StatusCreated)
	data := decodeBody(t, rec)["data"].(map[string]any)
	if data["deviceName"] != "Laptop" {
		t.Errorf("deviceName = %v, want Laptop", data["deviceName"])
	}
	if _, leaked := data["P256dhKey"]; leaked {
		t.Error("subscription keys should not be serialised")
	}

	rec = httptest.NewRecorder()
	h.List(rec, newRequest(t, "GET", "/api/push/subscriptions", nil, u.ID))
	assertStatus(t, rec, http.StatusOK)
	if got := decodeBody(t, rec)["data"].([]any); len(got) != 1 {
		t.Errorf("subscriptions = %d, want 1", len(got))
	}
}

func TestPushSubscribeValidation(t *testing.T) {
	env := newTestEnv(t)
	h := newTestPushHandler(t, env, env.pushes)
	u := env.createUser(t, "alice@example.com")

	rec := httptest.NewRecorder()
	h.Subscribe(rec, newRequest(t, "POST", "/api/push/subscribe", map[string]string{"endpoint": "https://push.example.com/1"}, u.ID))
	assertStatus(t, rec, http.StatusBadRequest)
	assertMessage(t, decodeBody(t, rec), "endpoint and keys are required")
}

func TestPushUnconfigured(t *testing.T) {
	env := newTestEnv(t)
	h := NewPushHandler(env.pushes, push.NewService("", "", ""), env.logger)

	rec := httptest.NewRecorder()
	h.VAPIDKey(rec, newRequest(t, "GET", "/api/push/vapid-key", nil, 1))
	assertStatus(t, rec, http.StatusServiceUnavailable)
}

func TestPushUnsubscribeOwnership(t *testing.T) {
	env := newTestEnv(t)
	subs := env.pushes
	h := newTestPushHandler(t, env, subs)
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")

	sub, err := subs.Subscribe(alice.ID, "https://push.example.com/1", "k", "a", "")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	target := fmt.Sprintf("/api/push/subscriptions/%d", sub.ID)

	req := newRequest(t, "DELETE", target, nil, bob.ID)
	req.SetPathValue("id", fmt.Sprint(sub.ID))
	rec := httptest.NewRecorder()
	h.Unsubscribe(rec, req)
	assertStatus(t, rec, http.StatusNotFound)

	req = newRequest(t, "DELETE", target, nil, alice.ID)
	req.SetPathValue("id", fmt.Sprint(sub.ID))
	rec = httptest.NewRecorder()
	h.Unsubscribe(rec, req)
	assertStatus(t, rec, http.StatusOK)
	assertMessage(t, decodeBody(t, rec), "Unsubscribed")
}

func TestPushVAPIDKey(t *testing.T) {
	env := newTestEnv(t)
	h := newTestPushHandler(t, env, env.pushes)

	rec := httptest.NewRecorder()
	h.VAPIDKey(rec, newRequest(t, "GET", "/api/push/vapid-key", nil, 1))
	assertStatus(t, rec, http.StatusOK)
	if key, _ := decodeBody(t, rec)["publicKey"].(string); key == "" {
		t.Error("expected a public key")
	}
}
