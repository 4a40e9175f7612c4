// Package middleware provides HTTP middleware for route guards,
// request observability, rate limiting, and CORS.
package middleware

import (
	"net/http"

	"github.com/FahimFBA/crowdcredit/internal/store"
)

// RequireAuthenticated redirects requests to the login page when no
// identity is present in the store. Pages behind this guard are only
// reachable after a sign-in event has been projected into the store.
func RequireAuthenticated(s *store.Store, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.Identity().IsEmpty() {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnonymous redirects already signed-in users to their profile
// page. Used on the login, signup, and password reset pages.
func RequireAnonymous(s *store.Store, profilePath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.Identity().IsEmpty() {
				http.Redirect(w, r, profilePath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
