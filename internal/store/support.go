package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/habitflow/internal/model"
)

type SupportStore struct {
	db *sql.DB
}

func NewSupportStore(db *sql.DB) *SupportStore {
	return &SupportStore{db: db}
}

func scanSupportMessage(scanner interface{ Scan(...any) error }) (*model.SupportMessage, error) {
	var m model.SupportMessage
	var userID sql.NullInt64

	err := scanner.Scan(&m.ID, &userID, &m.Name, &m.Email, &m.Category, &m.Message, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		m.UserID = &userID.Int64
	}
	return &m, nil
}

const supportCols = `id, user_id, name, email, category, message, created_at`

func (s *SupportStore) Create(userID *int64, name, email, category, message string) (*model.SupportMessage, error) {
	var uid sql.NullInt64
	if userID != nil {
		uid = sql.NullInt64{Int64: *userID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO support_messages (user_id, name, email, category, message) VALUES (?, ?, ?, ?, ?)`,
		uid, name, email, category, message,
	)
	if err != nil {
		return nil, fmt.Errorf("insert support message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *SupportStore) GetByID(id int64) (*model.SupportMessage, error) {
	row := s.db.QueryRow(`SELECT `+supportCols+` FROM support_messages WHERE id = ?`, id)
	m, err := scanSupportMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get support message: %w", err)
	}
	return m, nil
}

// ListByUser returns the user's messages, newest first.
func (s *SupportStore) ListByUser(userID int64) ([]model.SupportMessage, error) {
	rows, err := s.db.Query(
		`SELECT `+supportCols+` FROM support_messages WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list support messages: %w", err)
	}
	defer rows.Close()

	var out []model.SupportMessage
	for rows.Next() {
		m, err := scanSupportMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan support message: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}
