package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/idunn/internal/cookie"
	"github.com/dukerupert/idunn/internal/domain"
)

type stubUserService struct {
	account *domain.Account
	err     error
	tokens  []string
}

func (s *stubUserService) Register(context.Context, string, string) (*domain.Account, string, error) {
	panic("not used")
}

func (s *stubUserService) Login(context.Context, string, string) (*domain.Account, string, error) {
	panic("not used")
}

func (s *stubUserService) Logout(context.Context, string) error {
	panic("not used")
}

func (s *stubUserService) GetBySessionToken(_ context.Context, token string) (*domain.Account, error) {
	s.tokens = append(s.tokens, token)
	return s.account, s.err
}

func TestWithUser(t *testing.T) {
	account := &domain.Account{ID: uuid.New(), Email: "user@example.com"}

	t.Run("valid session attaches user", func(t *testing.T) {
		svc := &stubUserService{account: account}
		var seen *domain.User
		h := WithUser(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = domain.UserFromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/stores", nil)
		req.AddCookie(&http.Cookie{Name: cookie.SessionCookieName, Value: "tok_1"})
		h.ServeHTTP(httptest.NewRecorder(), req)

		require.NotNil(t, seen)
		assert.Equal(t, account.ID, seen.ID)
		assert.Equal(t, []string{"tok_1"}, svc.tokens)
	})

	t.Run("no cookie continues unauthenticated", func(t *testing.T) {
		svc := &stubUserService{account: account}
		var seen *domain.User
		h := WithUser(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = domain.UserFromContext(r.Context())
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Nil(t, seen)
		assert.Empty(t, svc.tokens, "no lookup without a cookie")
	})

	t.Run("expired session continues unauthenticated", func(t *testing.T) {
		svc := &stubUserService{err: domain.ErrSessionExpired}
		var called bool
		h := WithUser(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			assert.Nil(t, domain.UserFromContext(r.Context()))
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: cookie.SessionCookieName, Value: "tok_stale"})
		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.True(t, called)
	})
}

func TestRequireAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("authenticated passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/stores", nil)
		ctx := domain.NewContextWithUser(req.Context(), &domain.User{ID: uuid.New()})
		rec := httptest.NewRecorder()

		RequireAuth(next).ServeHTTP(rec, req.WithContext(ctx))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("anonymous gets 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/stores", nil)
		req.Header.Set("Accept", "application/json")
		rec := httptest.NewRecorder()

		RequireAuth(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Authentication required")
	})
}
