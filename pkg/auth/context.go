// Package auth carries the registry-facade caller's user id across a
// context boundary. Per spec §1 Non-goals, this registry performs no
// authentication or authorization; the HTTP API (pkg/api) takes whatever
// identity a front door already established (e.g. from basic auth,
// exactly the way the teacher's pkg/cred passes through credentials) and
// attaches it here as a plain user id for the facade's owner checks
// (spec §4.F isUserPackage, addPackage, removePackage).
package auth

import "context"

type contextKey string

const userKey = contextKey("user")

// WithUser returns a context carrying the caller's user id.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// UserFromContext extracts the user id attached with WithUser.
func UserFromContext(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(userKey).(string)
	return u, ok
}
