package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/idunn/internal/auth"
	"github.com/dukerupert/idunn/internal/domain"
)

// SessionTTL is how long a session stays valid after login.
const SessionTTL = 30 * 24 * time.Hour

// UserService provides account and session operations.
type UserService interface {
	// Register creates an account, its free-plan subscription, and a
	// session. Returns the account and the session token.
	Register(ctx context.Context, email, password string) (*domain.Account, string, error)

	// Login verifies credentials and creates a session.
	Login(ctx context.Context, email, password string) (*domain.Account, string, error)

	// Logout deletes the session. Unknown tokens are not an error.
	Logout(ctx context.Context, token string) error

	// GetBySessionToken resolves a session token to an account.
	// Expired or unknown sessions return ErrSessionExpired.
	GetBySessionToken(ctx context.Context, token string) (*domain.Account, error)
}

type userService struct {
	users    domain.UserStore
	sessions domain.SessionStore
	subs     SubscriptionService
	logger   *slog.Logger
}

// NewUserService creates a new UserService instance.
func NewUserService(users domain.UserStore, sessions domain.SessionStore, subs SubscriptionService, logger *slog.Logger) UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &userService{
		users:    users,
		sessions: sessions,
		subs:     subs,
		logger:   logger,
	}
}

// Register creates an account, its free-plan subscription, and a session.
func (s *userService) Register(ctx context.Context, email, password string) (*domain.Account, string, error) {
	const op = "user.register"

	email = normalizeEmail(email)
	if !validEmail(email) {
		return nil, "", domain.ErrInvalidEmail
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", domain.Invalid(op, err.Error())
	}

	account, err := s.users.Create(ctx, domain.Account{
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		if domain.IsCode(err, domain.ECONFLICT) {
			return nil, "", domain.ErrUserExists
		}
		return nil, "", domain.Internal(err, op, "failed to create account")
	}

	// Every user starts on the free plan.
	if _, err := s.subs.CreateFreeSubscription(ctx, account.ID); err != nil {
		return nil, "", err
	}

	token, err := s.createSession(ctx, account)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("user registered", "user_id", account.ID)
	return account, token, nil
}

// Login verifies credentials and creates a session.
func (s *userService) Login(ctx context.Context, email, password string) (*domain.Account, string, error) {
	const op = "user.login"

	account, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			// Same answer as a wrong password; don't reveal which.
			return nil, "", domain.ErrInvalidPassword
		}
		return nil, "", domain.Internal(err, op, "failed to load account")
	}

	if err := auth.VerifyPassword(password, account.PasswordHash); err != nil {
		return nil, "", domain.ErrInvalidPassword
	}

	token, err := s.createSession(ctx, account)
	if err != nil {
		return nil, "", err
	}

	return account, token, nil
}

// Logout deletes the session.
func (s *userService) Logout(ctx context.Context, token string) error {
	const op = "user.logout"

	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, token); err != nil && !domain.IsCode(err, domain.ENOTFOUND) {
		return domain.Internal(err, op, "failed to delete session")
	}
	return nil
}

// GetBySessionToken resolves a session token to an account.
func (s *userService) GetBySessionToken(ctx context.Context, token string) (*domain.Account, error) {
	const op = "user.session"

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, domain.ErrSessionExpired
		}
		return nil, domain.Internal(err, op, "failed to load session")
	}
	if session.Expired() {
		// Best-effort cleanup; the periodic sweep catches leftovers.
		_ = s.sessions.Delete(ctx, token)
		return nil, domain.ErrSessionExpired
	}

	account, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, domain.ErrSessionExpired
		}
		return nil, domain.Internal(err, op, "failed to load account")
	}
	return account, nil
}

func (s *userService) createSession(ctx context.Context, account *domain.Account) (string, error) {
	const op = "user.create_session"

	token, err := GenerateSessionID()
	if err != nil {
		return "", domain.Internal(err, op, "failed to generate session token")
	}

	if err := s.sessions.Create(ctx, domain.Session{
		Token:     token,
		UserID:    account.ID,
		ExpiresAt: time.Now().Add(SessionTTL),
	}); err != nil {
		return "", domain.Internal(err, op, "failed to create session")
	}
	return token, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.Contains(email, " ")
}
