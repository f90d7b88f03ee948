package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/habitflow/internal/day"
	"github.com/dukerupert/habitflow/internal/model"
)

type HabitStore struct {
	db *sql.DB
}

func NewHabitStore(db *sql.DB) *HabitStore {
	return &HabitStore{db: db}
}

func scanHabit(scanner interface{ Scan(...any) error }) (*model.Habit, error) {
	var h model.Habit
	var lastReminder sql.NullString

	err := scanner.Scan(
		&h.ID, &h.UserID, &h.Title, &h.Description, &h.Frequency,
		&h.TimeOfDay, &h.ReminderTime, &h.ReminderEnabled, &lastReminder,
		&h.IsActive, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastReminder.Valid {
		k := day.Key(lastReminder.String)
		h.LastReminderDate = &k
	}
	h.CompletedDates = []day.Key{}
	return &h, nil
}

const habitCols = `id, user_id, title, description, frequency, time_of_day, reminder_time, reminder_enabled, last_reminder_date, is_active, created_at, updated_at`

// NewHabit holds the fields accepted when a habit is created.
type NewHabit struct {
	Title           string
	Description     string
	Frequency       string
	TimeOfDay       string
	ReminderTime    string
	ReminderEnabled bool
}

func (s *HabitStore) Create(userID int64, nh NewHabit) (*model.Habit, error) {
	result, err := s.db.Exec(
		`INSERT INTO habits (user_id, title, description, frequency, time_of_day, reminder_time, reminder_enabled) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, nh.Title, nh.Description, nh.Frequency, nh.TimeOfDay, nh.ReminderTime, nh.ReminderEnabled,
	)
	if err != nil {
		return nil, fmt.Errorf("insert habit: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

// GetByID returns the habit regardless of owner or active flag.
func (s *HabitStore) GetByID(id int64) (*model.Habit, error) {
	row := s.db.QueryRow(`SELECT `+habitCols+` FROM habits WHERE id = ?`, id)
	h, err := scanHabit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get habit: %w", err)
	}
	if err := s.attachCompletedDates([]*model.Habit{h}); err != nil {
		return nil, err
	}
	return h, nil
}

// GetForUser returns an active habit owned by userID, or nil.
func (s *HabitStore) GetForUser(id, userID int64) (*model.Habit, error) {
	row := s.db.QueryRow(
		`SELECT `+habitCols+` FROM habits WHERE id = ? AND user_id = ? AND is_active = 1`,
		id, userID,
	)
	h, err := scanHabit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get habit for user: %w", err)
	}
	if err := s.attachCompletedDates([]*model.Habit{h}); err != nil {
		return nil, err
	}
	return h, nil
}

// ListActiveByUser returns the user's active habits, oldest first.
func (s *HabitStore) ListActiveByUser(userID int64) ([]model.Habit, error) {
	rows, err := s.db.Query(
		`SELECT `+habitCols+` FROM habits WHERE user_id = ? AND is_active = 1 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}

	var habits []*model.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := s.attachCompletedDates(habits); err != nil {
		return nil, err
	}

	out := make([]model.Habit, 0, len(habits))
	for _, h := range habits {
		out = append(out, *h)
	}
	return out, nil
}

// Update applies the non-nil fields of upd to an active habit owned by
// userID. It returns nil when no such habit exists.
func (s *HabitStore) Update(id, userID int64, upd model.HabitUpdate) (*model.Habit, error) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.Frequency != nil {
		add("frequency", *upd.Frequency)
	}
	if upd.TimeOfDay != nil {
		add("time_of_day", *upd.TimeOfDay)
	}
	if upd.ReminderTime != nil {
		add("reminder_time", *upd.ReminderTime)
	}
	if upd.ReminderEnabled != nil {
		add("reminder_enabled", *upd.ReminderEnabled)
	}

	if len(sets) > 0 {
		args = append(args, id, userID)
		_, err := s.db.Exec(
			`UPDATE habits SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ? AND is_active = 1`,
			args...,
		)
		if err != nil {
			return nil, fmt.Errorf("update habit: %w", err)
		}
	}
	return s.GetForUser(id, userID)
}

// SoftDelete clears the active flag. It reports whether an active habit owned
// by userID was found.
func (s *HabitStore) SoftDelete(id, userID int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE habits SET is_active = 0 WHERE id = ? AND user_id = ? AND is_active = 1`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("soft delete habit: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListReminderCandidates returns active, reminder-enabled habits with a
// reminder time whose owners accept email reminders, joined with the owner's
// contact details and timezone.
func (s *HabitStore) ListReminderCandidates() ([]model.ReminderCandidate, error) {
	rows, err := s.db.Query(
		`SELECT h.id, h.title, h.reminder_time, h.last_reminder_date, u.id, u.name, u.email, u.timezone
		 FROM habits h
		 JOIN users u ON u.id = h.user_id
		 WHERE h.is_active = 1 AND h.reminder_enabled = 1 AND h.reminder_time <> '' AND u.email_reminders = 1
		 ORDER BY h.id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}
	defer rows.Close()

	var out []model.ReminderCandidate
	for rows.Next() {
		var c model.ReminderCandidate
		var last sql.NullString
		if err := rows.Scan(&c.HabitID, &c.Title, &c.ReminderTime, &last, &c.UserID, &c.UserName, &c.UserEmail, &c.Timezone); err != nil {
			return nil, fmt.Errorf("scan reminder candidate: %w", err)
		}
		if last.Valid {
			k := day.Key(last.String)
			c.LastReminderDate = &k
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ClaimReminder atomically marks the habit as reminded on today. It returns
// false when another tick already claimed today's reminder.
func (s *HabitStore) ClaimReminder(id int64, today day.Key) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE habits SET last_reminder_date = ?
		 WHERE id = ? AND is_active = 1 AND (last_reminder_date IS NULL OR last_reminder_date <> ?)`,
		string(today), id, string(today),
	)
	if err != nil {
		return false, fmt.Errorf("claim reminder: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *HabitStore) attachCompletedDates(habits []*model.Habit) error {
	if len(habits) == 0 {
		return nil
	}

	byID := make(map[int64]*model.Habit, len(habits))
	placeholders := make([]string, 0, len(habits))
	args := make([]any, 0, len(habits))
	for _, h := range habits {
		byID[h.ID] = h
		placeholders = append(placeholders, "?")
		args = append(args, h.ID)
	}

	rows, err := s.db.Query(
		`SELECT habit_id, day FROM habit_completions WHERE habit_id IN (`+strings.Join(placeholders, ", ")+`) ORDER BY day ASC`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("list completed dates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var habitID int64
		var d string
		if err := rows.Scan(&habitID, &d); err != nil {
			return fmt.Errorf("scan completed date: %w", err)
		}
		if h, ok := byID[habitID]; ok {
			h.CompletedDates = append(h.CompletedDates, day.Key(d))
		}
	}
	return rows.Err()
}
