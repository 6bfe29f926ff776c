package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/marquee/internal/auth/domain"
)

//go:generate go run go.uber.org/mock/mockgen -destination=mock/store_mock.go -package=mock . Store,Users

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres, redis, bolt) implement this. Every write the session flows need is
// a single conditional statement, so there is no transaction surface.
type Store interface {
	Users() Users

	// ApplyMigrations brings the schema up to date. Drivers without a schema
	// treat it as a no-op.
	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backend is still reachable.
	Ping(ctx context.Context) error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login. The email must already be
	// normalised with domain.NormalizeEmail.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// GetUserByRefreshToken finds the user whose current refresh token is
	// exactly token. Used by logout, which only has the cookie.
	GetUserByRefreshToken(ctx context.Context, token string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID). Returns
	// ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// SaveRefreshToken unconditionally replaces the current refresh token.
	// Login and registration use it, which is what makes a new login end any
	// previous session.
	SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error

	// CompareAndSwapRefreshToken replaces the current refresh token with next
	// only if it still equals expected, atomically. It reports whether the
	// swap happened. A nil expiresAt clears the stored expiry (used when next
	// is empty). Returns ErrNotFound when the user does not exist.
	CompareAndSwapRefreshToken(ctx context.Context, userID, expected, next string, expiresAt *time.Time) (bool, error)

	// ClearExpiredRefreshTokens empties refresh tokens whose expiry is before
	// now and returns how many were cleared. Housekeeping only.
	ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)

	// DeleteUser removes the user. Outstanding access tokens stop working on
	// their next use because the gate reloads the user.
	DeleteUser(ctx context.Context, userID string) error
}
