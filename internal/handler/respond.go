package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/habitflow/internal/day"
	"github.com/dukerupert/habitflow/internal/model"
	"github.com/dukerupert/habitflow/internal/store"
)

// envelope is the JSON body shape shared by every API response.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{"success": false, "message": message})
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// calendar resolves "today" for a user in their own timezone.
type calendar struct {
	users           *store.UserStore
	now             func() time.Time
	defaultTimezone string
}

func newCalendar(users *store.UserStore, defaultTimezone string) calendar {
	return calendar{users: users, now: time.Now, defaultTimezone: defaultTimezone}
}

// today returns the user and the current day key in their timezone. The
// user is nil if it no longer exists.
func (c calendar) today(userID int64) (*model.User, day.Key, error) {
	u, err := c.users.GetByID(userID)
	if err != nil || u == nil {
		return u, "", err
	}
	return u, day.Normalize(c.now(), day.Location(u.Timezone, c.defaultTimezone)), nil
}
