package middleware

import (
	"context"

	"github.com/google/uuid"
)

type principalKey struct{}

// Principal is the authenticated caller: the user and the session (access
// token jti) the request was made under.
type Principal struct {
	UserID    uuid.UUID
	SessionID string
}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.UserID != uuid.Nil
}

// UserIDFromContext returns the caller's id as a string, or "" for anonymous
// requests.
func UserIDFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.UserID.String()
	}
	return ""
}

func UserUUIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	p, ok := PrincipalFromContext(ctx)
	return p.UserID, ok
}

// WithUserID marks ctx as authenticated as userID. Malformed ids leave ctx
// anonymous.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return ctx
	}
	return withPrincipal(ctx, Principal{UserID: id})
}
