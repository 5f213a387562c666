// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"net/http"
	"regexp"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// ClientIDKey is the context key for the extension install id.
	ClientIDKey ContextKey = "client_id"

	// ClientIDHeader carries the id the extension generated on install.
	ClientIDHeader = "X-Client-ID"
)

var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ClientID reads the extension's client id. Requests without one are
// anonymous; a malformed id is rejected.
func ClientID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(ClientIDHeader)
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !clientIDPattern.MatchString(id) {
			http.Error(w, `{"error":"invalid client id"}`, http.StatusBadRequest)
			return
		}
		ctx := context.WithValue(r.Context(), ClientIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireClientID rejects anonymous requests.
func RequireClientID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetClientID(r.Context()) == "" {
			http.Error(w, `{"error":"missing X-Client-ID header"}`, http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetClientID gets the client id from context.
func GetClientID(ctx context.Context) string {
	if v, ok := ctx.Value(ClientIDKey).(string); ok {
		return v
	}
	return ""
}
