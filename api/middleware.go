package api

import (
	"net/http"

	"github.com/stickerbin/server/auth"
	"github.com/stickerbin/server/webutil"
)

const msgLoginRequired = "Please log in first"

// RequireAuth is the session guard. It wraps every protected route: the
// token cookie is read and verified, and the user id claim lands in the
// request context. Any failure short-circuits with a 401 before the
// wrapped handler runs.
//
// Ownership of individual resources is not checked here; each handler
// compares the resource's owner against the identity this guard
// establishes.
func RequireAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.TokenCookie)
			if err != nil {
				webutil.RespondWithError(w, http.StatusUnauthorized, msgLoginRequired)
				return
			}
			userID, err := auth.UserIDFromToken(cookie.Value, secret)
			if err != nil {
				webutil.RespondWithError(w, http.StatusUnauthorized, msgLoginRequired)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithUserID(r.Context(), userID)))
		})
	}
}

// SetHeader is a middleware to set a response header.
func SetHeader(key, value string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(key, value)
			next.ServeHTTP(w, r)
		})
	}
}
