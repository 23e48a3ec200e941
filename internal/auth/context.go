package auth

import (
	"context"
	"errors"
)

type ctxKey struct{}

var ErrNoIdentity = errors.New("auth: identity not in context")

// WithIdentity attaches the verified caller to ctx.
func WithIdentity(ctx context.Context, userID string, organizationID int64, role string) context.Context {
	return context.WithValue(ctx, ctxKey{}, Identity{UserID: userID, OrganizationID: organizationID, Role: role})
}

// FromContext returns the caller attached by RequireAccessToken.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

func UserID(ctx context.Context) (string, error) {
	if id, ok := FromContext(ctx); ok && id.UserID != "" {
		return id.UserID, nil
	}
	return "", ErrNoIdentity
}

// OrganizationID returns the caller's organization. Zero is never a valid id.
func OrganizationID(ctx context.Context) (int64, error) {
	if id, ok := FromContext(ctx); ok && id.OrganizationID > 0 {
		return id.OrganizationID, nil
	}
	return 0, ErrNoIdentity
}

func Role(ctx context.Context) (string, error) {
	if id, ok := FromContext(ctx); ok && id.Role != "" {
		return id.Role, nil
	}
	return "", ErrNoIdentity
}
