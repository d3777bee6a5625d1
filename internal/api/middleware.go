package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// auth accepts the key either as a bearer token or in the x-api-key header.
func (a *Api) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Api-Key")
		if key == "" {
			key = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}

		if key == "" {
			a.unauthorizedResponse(w, r, errors.New("no api key provided"))
			return
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(a.apiKey)) != 1 {
			a.unauthorizedResponse(w, r, errors.New("invalid api key"))
			return
		}

		next.ServeHTTP(w, r)
	})
}
