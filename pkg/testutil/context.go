package testutil

import (
	"net/http"

	"reclink/internal/identity"
	"reclink/internal/platform/middleware"
)

// WithIdentity adds an authenticated identity to the request context.
// This simulates what the auth middleware would do for authenticated requests.
func WithIdentity(req *http.Request, ident identity.Identity) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), ident))
}
