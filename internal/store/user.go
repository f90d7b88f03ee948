package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/habitflow/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Location, &u.Phone, &u.Avatar,
		&u.EmailReminders, &u.DailyReminder, &u.WeeklySummary,
		&u.Timezone, &u.WeekStart, &u.ThemePreference,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, name, email, password_hash, location, phone, avatar, email_reminders, daily_reminder, weekly_summary, timezone, week_start, theme_preference, created_at, updated_at`

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserStore) Create(name, email, passwordHash string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (name, email, password_hash) VALUES (?, ?, ?)`,
		name, NormalizeEmail(email), passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, NormalizeEmail(email))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// UpdateProfile applies the non-nil fields of upd and returns the updated user.
func (s *UserStore) UpdateProfile(id int64, upd model.ProfileUpdate) (*model.User, error) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Location != nil {
		add("location", *upd.Location)
	}
	if upd.Phone != nil {
		add("phone", *upd.Phone)
	}
	if upd.Avatar != nil {
		add("avatar", *upd.Avatar)
	}
	if upd.EmailReminders != nil {
		add("email_reminders", *upd.EmailReminders)
	}
	if upd.DailyReminder != nil {
		add("daily_reminder", *upd.DailyReminder)
	}
	if upd.WeeklySummary != nil {
		add("weekly_summary", *upd.WeeklySummary)
	}
	if upd.Timezone != nil {
		add("timezone", *upd.Timezone)
	}
	if upd.WeekStart != nil {
		add("week_start", *upd.WeekStart)
	}
	if upd.ThemePreference != nil {
		add("theme_preference", *upd.ThemePreference)
	}

	if len(sets) > 0 {
		args = append(args, id)
		_, err := s.db.Exec(`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return nil, fmt.Errorf("update profile: %w", err)
		}
	}
	return s.GetByID(id)
}

func (s *UserStore) UpdatePassword(id int64, passwordHash string) error {
	_, err := s.db.Exec(`UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *UserStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
