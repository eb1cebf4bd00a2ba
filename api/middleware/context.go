package middleware

import (
	"context"
	"slices"
)

type contextKey string

const ctxStaff contextKey = "staff"

// staff is what Auth learned about the caller.
type staff struct {
	userID      string
	permissions []string
	tokenID     string
}

func staffFrom(ctx context.Context) staff {
	if ctx == nil {
		return staff{}
	}
	s, _ := ctx.Value(ctxStaff).(staff)
	return s
}

func withStaff(ctx context.Context, s staff) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxStaff, s)
}

func UserIDFromContext(ctx context.Context) string { return staffFrom(ctx).userID }

func PermissionsFromContext(ctx context.Context) []string { return staffFrom(ctx).permissions }

// TokenIDFromContext returns the jti of the token that authenticated the request.
func TokenIDFromContext(ctx context.Context) string { return staffFrom(ctx).tokenID }

func HasPermission(ctx context.Context, permission string) bool {
	return slices.Contains(staffFrom(ctx).permissions, permission)
}

// WithUserID marks ctx as authenticated for userID. Handlers under test use it
// in place of a signed token.
func WithUserID(ctx context.Context, userID string) context.Context {
	s := staffFrom(ctx)
	s.userID = userID
	return withStaff(ctx, s)
}

func WithPermissions(ctx context.Context, permissions []string) context.Context {
	s := staffFrom(ctx)
	s.permissions = permissions
	return withStaff(ctx, s)
}
