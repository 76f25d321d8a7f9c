package store

import (
	"context"
	"errors"
	"time"

	"smartimmo/pkg/domain"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate key")
)

// PropertyMutation edits a loaded listing inside the update transaction.
// It reports whether the image collection must be replaced by p.Images.
type PropertyMutation func(p *domain.Property) (replaceImages bool, err error)

// PropertyCheck vets a loaded listing before it is deleted.
type PropertyCheck func(p domain.Property) error

// Store defines persistence operations for users, listings and favorites.
// Every call runs in its own transaction.
type Store interface {
	// users
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UserCount(ctx context.Context) (int, error)
	DeleteUser(ctx context.Context, id string) (bool, error)

	// properties
	ListProperties(ctx context.Context, c domain.Criteria) ([]domain.Property, error)
	CreateProperty(ctx context.Context, p domain.Property) (domain.Property, error)
	GetProperty(ctx context.Context, id string) (domain.Property, bool, error)
	UpdateProperty(ctx context.Context, id string, mutate PropertyMutation) (domain.Property, bool, error)
	DeleteProperty(ctx context.Context, id string, check PropertyCheck) (bool, error)

	// favorites
	AddFavorite(ctx context.Context, userID, propertyID string) (domain.Favorite, bool, error)
	RemoveFavorite(ctx context.Context, userID, propertyID string) (bool, error)
	ListFavorites(ctx context.Context, userID string) ([]domain.Favorite, error)
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}

// UserSessionRevoker is an optional capability that revokes all sessions
// issued for a user since a cutoff time.
type UserSessionRevoker interface {
	RevokeUserSessions(userID string, since time.Time) error
}
