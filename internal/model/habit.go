package model

import (
	"time"

	"github.com/dukerupert/habitflow/internal/day"
)

const (
	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"
	FrequencyCustom = "custom"
)

// ValidFrequency reports whether f is one of the supported frequencies.
func ValidFrequency(f string) bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyCustom:
		return true
	}
	return false
}

type Habit struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Frequency        string    `json:"frequency"`
	TimeOfDay        string    `json:"timeOfDay"`
	ReminderTime     string    `json:"reminderTime"`
	ReminderEnabled  bool      `json:"reminderEnabled"`
	LastReminderDate *day.Key  `json:"lastReminderDate"`
	IsActive         bool      `json:"isActive"`
	CompletedDates   []day.Key `json:"completedDates"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// HabitUpdate carries the optional fields of a habit edit.
type HabitUpdate struct {
	Title           *string
	Description     *string
	Frequency       *string
	TimeOfDay       *string
	ReminderTime    *string
	ReminderEnabled *bool
}

// Completion is one row of the completion ledger: a habit performed on a day.
type Completion struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user"`
	HabitID   int64     `json:"habit"`
	Day       day.Key   `json:"date"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReminderCandidate is a reminder-enabled habit joined with its owner.
type ReminderCandidate struct {
	HabitID          int64
	Title            string
	ReminderTime     string
	LastReminderDate *day.Key
	UserID           int64
	UserName         string
	UserEmail        string
	Timezone         string
}
