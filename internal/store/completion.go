package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/habitflow/internal/day"
	"github.com/dukerupert/habitflow/internal/model"
)

// CompletionStore persists the completion ledger. Each (user, habit, day)
// has at most one row.
type CompletionStore struct {
	db *sql.DB
}

func NewCompletionStore(db *sql.DB) *CompletionStore {
	return &CompletionStore{db: db}
}

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.Completion, error) {
	var c model.Completion
	var d string
	err := scanner.Scan(&c.ID, &c.UserID, &c.HabitID, &d, &c.Count, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Day = day.Key(d)
	return &c, nil
}

const completionCols = `c.id, c.user_id, c.habit_id, c.day, c.count, c.created_at`

// Record adds a completion for the day. It reports false when the habit was
// already completed on that day.
func (s *CompletionStore) Record(userID, habitID int64, d day.Key) (bool, error) {
	result, err := s.db.Exec(
		`INSERT INTO habit_completions (user_id, habit_id, day, count) VALUES (?, ?, ?, 1)
		 ON CONFLICT (user_id, habit_id, day) DO NOTHING`,
		userID, habitID, string(d),
	)
	if err != nil {
		return false, fmt.Errorf("record completion: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Remove deletes the completion for the day. It reports whether a row existed.
func (s *CompletionStore) Remove(userID, habitID int64, d day.Key) (bool, error) {
	result, err := s.db.Exec(
		`DELETE FROM habit_completions WHERE user_id = ? AND habit_id = ? AND day = ?`,
		userID, habitID, string(d),
	)
	if err != nil {
		return false, fmt.Errorf("remove completion: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListByUser returns every completion on the user's active habits, ordered
// by day then habit.
func (s *CompletionStore) ListByUser(userID int64) ([]model.Completion, error) {
	return s.list(
		`SELECT `+completionCols+` FROM habit_completions c
		 JOIN habits h ON h.id = c.habit_id
		 WHERE c.user_id = ? AND h.is_active = 1
		 ORDER BY c.day ASC, c.habit_id ASC`,
		userID,
	)
}

// ListByUserRange returns completions on active habits with from <= day < to.
func (s *CompletionStore) ListByUserRange(userID int64, from, to day.Key) ([]model.Completion, error) {
	return s.list(
		`SELECT `+completionCols+` FROM habit_completions c
		 JOIN habits h ON h.id = c.habit_id
		 WHERE c.user_id = ? AND h.is_active = 1 AND c.day >= ? AND c.day < ?
		 ORDER BY c.day ASC, c.habit_id ASC`,
		userID, string(from), string(to),
	)
}

func (s *CompletionStore) list(query string, args ...any) ([]model.Completion, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var out []model.Completion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
