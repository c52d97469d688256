package authz

import (
	"context"
	"errors"

	"github.com/codr1/Shuttlers/internal/models"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// AuthUser is the participant a request's bearer token resolved to.
type AuthUser struct {
	ID   int64
	Name string
	Role models.Role
}

type userContextKey struct{}

func NewAuthUser(p models.Participant) *AuthUser {
	return &AuthUser{ID: p.ID, Name: p.Name, Role: p.Role}
}

func ContextWithUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the AuthUser stored in ctx.
// It returns nil if ctx is nil, if no user is stored, or if the stored value has a different type.
func UserFromContext(ctx context.Context) *AuthUser {
	if ctx == nil {
		return nil
	}

	user, ok := ctx.Value(userContextKey{}).(*AuthUser)
	if !ok {
		return nil
	}

	return user
}

// IsAdmin reports whether user is a non-nil admin.
func IsAdmin(user *AuthUser) bool {
	return user != nil && user.Role == models.RoleAdmin
}

// Participant is the actor identity passed to the domain services.
func (u *AuthUser) Participant() models.Participant {
	return models.Participant{ID: u.ID, Name: u.Name, Role: u.Role, IsActive: true}
}

// RequireUser returns the authenticated user or ErrUnauthenticated.
func RequireUser(ctx context.Context) (*AuthUser, error) {
	user := UserFromContext(ctx)
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// RequireAdmin returns the authenticated admin, ErrUnauthenticated without a
// user and ErrForbidden for players.
func RequireAdmin(ctx context.Context) (*AuthUser, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !IsAdmin(user) {
		return nil, ErrForbidden
	}
	return user, nil
}

// CanView reports whether user may read a record owned by participants.
// Admins see everything; players see records they are part of.
func CanView(user *AuthUser, participants ...int64) bool {
	if IsAdmin(user) {
		return true
	}
	if user == nil {
		return false
	}
	for _, id := range participants {
		if id == user.ID {
			return true
		}
	}
	return false
}
