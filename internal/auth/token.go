package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	SessionTTL = 7 * 24 * time.Hour
	ResetTTL   = 15 * time.Minute

	PurposePasswordReset = "password_reset"
)

// ErrInvalidToken is returned for any token that fails to parse, verify,
// or match the expected purpose.
var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID  int64  `json:"uid"`
	Email   string `json:"email"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens with a shared secret.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// SetNow replaces the issuer's clock.
func (i *Issuer) SetNow(now func() time.Time) {
	i.now = now
}

// IssueSession returns a session token valid for SessionTTL.
func (i *Issuer) IssueSession(userID int64, email string) (string, error) {
	now := i.now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return i.sign(claims)
}

// IssueReset returns a password-reset token and its id. The id must be
// recorded so the token can be redeemed once.
func (i *Issuer) IssueReset(userID int64, email string) (token, jti string, expiresAt time.Time, err error) {
	now := i.now()
	jti = uuid.NewString()
	expiresAt = now.Add(ResetTTL)
	claims := &Claims{
		UserID:  userID,
		Email:   email,
		Purpose: PurposePasswordReset,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err = i.sign(claims)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, jti, expiresAt, nil
}

// ParseSession verifies a session token. Reset tokens are rejected.
func (i *Issuer) ParseSession(token string) (*Claims, error) {
	c, err := i.parse(token)
	if err != nil {
		return nil, err
	}
	if c.Purpose != "" || c.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// ParseReset verifies a password-reset token.
func (i *Issuer) ParseReset(token string) (*Claims, error) {
	c, err := i.parse(token)
	if err != nil {
		return nil, err
	}
	if c.Purpose != PurposePasswordReset || c.ID == "" || c.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return c, nil
}

func (i *Issuer) sign(claims *Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

func (i *Issuer) parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	if c, ok := token.Claims.(*Claims); ok && token.Valid {
		return c, nil
	}
	return nil, ErrInvalidToken
}
