package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aussiebroadwan/marquee/internal/auth/domain"
	"github.com/aussiebroadwan/marquee/internal/auth/store"
	"github.com/redis/go-redis/v9"
)

type usersRepo struct {
	client redis.UniversalClient
	keys   keyspace
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	fields, err := r.client.HGetAll(ctx, r.keys.user(id)).Result()
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return domain.User{}, store.ErrNotFound
	}
	return decodeUser(fields)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getByIndex(ctx, r.keys.email(email))
}

func (r *usersRepo) GetUserByRefreshToken(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, store.ErrNotFound
	}

	u, err := r.getByIndex(ctx, r.keys.refresh(token))
	if err != nil {
		return domain.User{}, err
	}
	// The index and the hash are written by the same script, but the two
	// reads here are not atomic. Trust the hash.
	if u.CurrentRefreshToken != token {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *usersRepo) getByIndex(ctx context.Context, key string) (domain.User, error) {
	id, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return domain.User{}, store.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return r.GetUserByID(ctx, id)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	created, err := createUserLua.Run(ctx, r.client,
		[]string{r.keys.user(u.ID), r.keys.email(u.Email), r.keys.refreshExpiry()},
		r.keys.refreshPrefix(),
		u.ID,
		u.Name,
		u.Email,
		u.PasswordHash,
		u.CurrentRefreshToken,
		encodeUnix(u.RefreshExpiresAt),
		encodeTime(u.CreatedAt),
		encodeTime(u.UpdatedAt),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if created == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

func (r *usersRepo) SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	status, err := r.setRefresh(ctx, "set", userID, "", token, &expiresAt)
	if err != nil {
		return err
	}
	if status == statusMissing {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) CompareAndSwapRefreshToken(
	ctx context.Context,
	userID, expected, next string,
	expiresAt *time.Time,
) (bool, error) {
	status, err := r.setRefresh(ctx, "cas", userID, expected, next, expiresAt)
	if err != nil {
		return false, err
	}

	switch status {
	case statusOK:
		return true, nil
	case statusMismatch:
		return false, nil
	case statusMissing:
		return false, store.ErrNotFound
	default:
		return false, fmt.Errorf("%w: unexpected script status %d", ErrUnavailable, status)
	}
}

func (r *usersRepo) setRefresh(
	ctx context.Context,
	mode, userID, expected, next string,
	expiresAt *time.Time,
) (int64, error) {
	status, err := setRefreshLua.Run(ctx, r.client,
		[]string{r.keys.user(userID), r.keys.refreshExpiry()},
		r.keys.refreshPrefix(),
		userID,
		mode,
		expected,
		next,
		encodeUnix(expiresAt),
		encodeTime(time.Now().UTC()),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return status, nil
}

func (r *usersRepo) ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	n, err := clearExpiredLua.Run(ctx, r.client,
		[]string{r.keys.refreshExpiry()},
		now.Unix(),
		r.keys.userPrefix(),
		r.keys.refreshPrefix(),
		encodeTime(time.Now().UTC()),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	deleted, err := deleteUserLua.Run(ctx, r.client,
		[]string{r.keys.user(userID), r.keys.refreshExpiry()},
		r.keys.emailPrefix(),
		r.keys.refreshPrefix(),
		userID,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if deleted == 0 {
		return store.ErrNotFound
	}
	return nil
}

func decodeUser(f map[string]string) (domain.User, error) {
	u := domain.User{
		ID:                  f["id"],
		Name:                f["name"],
		Email:               f["email"],
		PasswordHash:        f["password_hash"],
		CurrentRefreshToken: f["refresh_token"],
	}

	var err error
	if u.CreatedAt, err = decodeTime(f["created_at"]); err != nil {
		return domain.User{}, fmt.Errorf("decode created_at: %w", err)
	}
	if u.UpdatedAt, err = decodeTime(f["updated_at"]); err != nil {
		return domain.User{}, fmt.Errorf("decode updated_at: %w", err)
	}
	if raw := f["refresh_expires_at"]; raw != "" {
		secs, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.User{}, fmt.Errorf("decode refresh_expires_at: %w", err)
		}
		exp := time.Unix(secs, 0).UTC()
		u.RefreshExpiresAt = &exp
	}
	return u, nil
}

func encodeTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func decodeTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

func encodeUnix(t *time.Time) string {
	if t == nil {
		return ""
	}
	return strconv.FormatInt(t.Unix(), 10)
}
