package model

import "time"

const (
	WeekStartMonday = "monday"
	WeekStartSunday = "sunday"
)

type User struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	Location        string    `json:"location"`
	Phone           string    `json:"phone"`
	Avatar          string    `json:"avatar"`
	EmailReminders  bool      `json:"emailReminders"`
	DailyReminder   bool      `json:"dailyReminder"`
	WeeklySummary   bool      `json:"weeklySummary"`
	Timezone        string    `json:"timezone"`
	WeekStart       string    `json:"weekStart"`
	ThemePreference string    `json:"themePreference"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ProfileUpdate carries the optional fields of a profile edit. Nil fields are
// left unchanged.
type ProfileUpdate struct {
	Name            *string
	Location        *string
	Phone           *string
	Avatar          *string
	EmailReminders  *bool
	DailyReminder   *bool
	WeeklySummary   *bool
	Timezone        *string
	WeekStart       *string
	ThemePreference *string
}

type PasswordReset struct {
	ID        int64      `json:"id"`
	JTI       string     `json:"jti"`
	UserID    int64      `json:"user_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
}
