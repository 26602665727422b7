package testutil

import (
	"net/http"

	id "handover/pkg/domain"
	"handover/pkg/requestcontext"
)

// WithBuilder adds a builder identity to the request context, as the auth
// middleware does for an authenticated request.
func WithBuilder(req *http.Request, builderID id.BuilderID) *http.Request {
	return req.WithContext(requestcontext.WithBuilderID(req.Context(), builderID))
}

// AsBuilder is router middleware that authenticates every request as builderID.
func AsBuilder(builderID id.BuilderID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, WithBuilder(r, builderID))
		})
	}
}
