package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/habitflow/internal/model"
)

// sqliteTime matches the format of datetime('now') so stored times compare
// lexically against it.
const sqliteTime = "2006-01-02 15:04:05"

type PasswordResetStore struct {
	db *sql.DB
}

func NewPasswordResetStore(db *sql.DB) *PasswordResetStore {
	return &PasswordResetStore{db: db}
}

func scanPasswordReset(scanner interface{ Scan(...any) error }) (*model.PasswordReset, error) {
	var pr model.PasswordReset
	var usedAt sql.NullTime

	err := scanner.Scan(&pr.ID, &pr.JTI, &pr.UserID, &pr.ExpiresAt, &usedAt, &pr.CreatedAt)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		pr.UsedAt = &usedAt.Time
	}
	return &pr, nil
}

const passwordResetCols = `id, jti, user_id, expires_at, used_at, created_at`

// Create records an issued reset token. Pending resets for the same user are
// invalidated first.
func (s *PasswordResetStore) Create(jti string, userID int64, expiresAt time.Time) (*model.PasswordReset, error) {
	_, err := s.db.Exec(
		`UPDATE password_resets SET used_at = datetime('now') WHERE user_id = ? AND used_at IS NULL`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("invalidate previous resets: %w", err)
	}

	result, err := s.db.Exec(
		`INSERT INTO password_resets (jti, user_id, expires_at) VALUES (?, ?, ?)`,
		jti, userID, expiresAt.UTC().Format(sqliteTime),
	)
	if err != nil {
		return nil, fmt.Errorf("insert password reset: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+passwordResetCols+` FROM password_resets WHERE id = ?`, id)
	return scanPasswordReset(row)
}

// GetByJTI returns the reset for the token id, or nil if unknown.
func (s *PasswordResetStore) GetByJTI(jti string) (*model.PasswordReset, error) {
	row := s.db.QueryRow(`SELECT `+passwordResetCols+` FROM password_resets WHERE jti = ?`, jti)
	pr, err := scanPasswordReset(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get password reset: %w", err)
	}
	return pr, nil
}

// Consume marks an unused reset as used. It returns false if the reset was
// already used, so a token can be redeemed only once.
func (s *PasswordResetStore) Consume(jti string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE password_resets SET used_at = datetime('now') WHERE jti = ? AND used_at IS NULL`,
		jti,
	)
	if err != nil {
		return false, fmt.Errorf("consume password reset: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *PasswordResetStore) DeleteExpired(now time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM password_resets WHERE expires_at <= ?`,
		now.UTC().Format(sqliteTime),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired password resets: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
