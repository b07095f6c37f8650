package middleware

import (
	"net/http"

	"github.com/dukerupert/idunn/internal/cookie"
	"github.com/dukerupert/idunn/internal/domain"
	"github.com/dukerupert/idunn/internal/service"
)

// WithUser resolves the session cookie to an account and attaches it to the
// request context. Optional: requests without a valid session continue
// unauthenticated.
func WithUser(users service.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := cookie.Get(r, cookie.SessionCookieName)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			account, err := users.GetBySessionToken(r.Context(), token)
			if err != nil {
				// Expired or bogus session: continue without a user.
				next.ServeHTTP(w, r)
				return
			}

			ctx := domain.NewContextWithUser(r.Context(), &domain.User{
				ID:    account.ID,
				Email: account.Email,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects unauthenticated requests with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !domain.IsAuthenticated(r.Context()) {
			respondUnauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
