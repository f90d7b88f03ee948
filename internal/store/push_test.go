package store

import "testing"

func TestPushSubscribeUpsert(t *testing.T) {
	db := openTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	ps := NewPushStore(db)

	first, err := ps.Subscribe(alice.ID, "https://push.example.com/abc", "p1", "a1", "Laptop")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if first.DeviceName != "Laptop" {
		t.Errorf("device name = %q, want %q", first.DeviceName, "Laptop")
	}

	// Same endpoint registered by another user moves ownership.
	second, err := ps.Subscribe(bob.ID, "https://push.example.com/abc", "p2", "a2", "Phone")
	if err != nil {
		t.Fatalf("subscribe again: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("id = %d, want %d", second.ID, first.ID)
	}
	if second.UserID != bob.ID {
		t.Errorf("user = %d, want %d", second.UserID, bob.ID)
	}
	if second.P256dhKey != "p2" {
		t.Errorf("p256dh = %q, want %q", second.P256dhKey, "p2")
	}

	subs, err := ps.ListByUser(alice.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("alice subs = %d, want 0", len(subs))
	}
}

func TestPushListAndDelete(t *testing.T) {
	db := openTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	ps := NewPushStore(db)

	a, err := ps.Subscribe(alice.ID, "https://push.example.com/1", "p", "a", "")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := ps.Subscribe(alice.ID, "https://push.example.com/2", "p", "a", ""); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	subs, err := ps.ListByUser(alice.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("subs = %d, want 2", len(subs))
	}

	ok, err := ps.Delete(a.ID, bob.ID)
	if err != nil {
		t.Fatalf("delete as other user: %v", err)
	}
	if ok {
		t.Error("other user should not delete the subscription")
	}

	ok, err = ps.Delete(a.ID, alice.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !ok {
		t.Error("expected subscription to be deleted")
	}

	if err := ps.DeleteByEndpoint("https://push.example.com/2"); err != nil {
		t.Fatalf("delete by endpoint: %v", err)
	}
	subs, err = ps.ListByUser(alice.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("subs = %d, want 0", len(subs))
	}
}
