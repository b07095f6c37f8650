package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Account is a full user record. Distinct from domain.User, which is the
// minimal struct stored in request context.
type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is a server-side session backing the auth cookie.
type Session struct {
	Token     string
	UserID    uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired returns true once the session is past its expiry.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// UserStore persists user accounts.
type UserStore interface {
	Create(ctx context.Context, account Account) (*Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
}

// SessionStore persists sessions.
type SessionStore interface {
	Create(ctx context.Context, session Session) error
	GetByToken(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// User/auth errors.
var (
	ErrUserNotFound    = &Error{Code: ENOTFOUND, Message: "User not found"}
	ErrUserExists      = &Error{Code: ECONFLICT, Message: "User with this email already exists"}
	ErrInvalidEmail    = &Error{Code: EINVALID, Message: "Invalid email address"}
	ErrInvalidPassword = &Error{Code: EUNAUTHORIZED, Message: "Invalid email or password"}
	ErrSessionExpired  = &Error{Code: EUNAUTHORIZED, Message: "Session has expired"}
)
