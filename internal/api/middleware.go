// Package api implements the echolog REST API using chi.
package api

import (
	"errors"
	"net/http"

	"github.com/starford/echolog/internal/auth"
)

// AuthMiddleware resolves the request owner from the Authorization header and
// stores it in the request context. Requests without a resolvable owner are
// rejected with 401.
func AuthMiddleware(authn *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner, err := authn.Authenticate(r.Header.Get("Authorization"))
			if err != nil {
				msg := "unauthorized"
				if errors.Is(err, auth.ErrExpiredToken) {
					msg = "token expired"
				}
				writeJSON(w, http.StatusUnauthorized, errorBody(msg))
				return
			}
			if owner == "" {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithOwner(r.Context(), owner)))
		})
	}
}

func ownerOf(r *http.Request) string {
	owner, _ := auth.OwnerFrom(r.Context())
	return owner
}
