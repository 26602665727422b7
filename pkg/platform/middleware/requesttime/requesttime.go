// Package requesttime pins a single "now" per HTTP request so registration
// timestamps, audit events and entitlement stamps agree with each other.
package requesttime

import (
	"net/http"
	"time"

	"handover/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
