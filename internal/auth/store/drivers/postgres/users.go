package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/marquee/internal/auth/domain"
	"github.com/aussiebroadwan/marquee/internal/auth/store"
)

const userColumns = `id, name, email, password_hash, refresh_token, refresh_expires_at, created_at, updated_at`

type usersRepo struct {
	db *sql.DB
}

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u   domain.User
		exp sql.NullTime
	)
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.CurrentRefreshToken,
		&exp,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.RefreshExpiresAt = mapNullTimePtr(exp)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *usersRepo) GetUserByRefreshToken(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, store.ErrNotFound
	}
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE refresh_token = $1`, token))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID,
		u.Name,
		u.Email,
		u.PasswordHash,
		u.CurrentRefreshToken,
		mapOptionalTime(u.RefreshExpiresAt),
		u.CreatedAt.UTC(),
		u.UpdatedAt.UTC(),
	)
	return mapConstraint(err)
}

func (r *usersRepo) SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET refresh_token = $1, refresh_expires_at = $2, updated_at = now()
		WHERE id = $3`,
		token, expiresAt.UTC(), userID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) CompareAndSwapRefreshToken(
	ctx context.Context,
	userID, expected, next string,
	expiresAt *time.Time,
) (bool, error) {
	// Under READ COMMITTED a second concurrent UPDATE re-evaluates the WHERE
	// clause after the first commits, so only one of them can match.
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET refresh_token = $1, refresh_expires_at = $2, updated_at = now()
		WHERE id = $3 AND refresh_token = $4`,
		next, mapOptionalTime(expiresAt), userID, expected,
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = $1`, userID).Scan(&exists)
	if err != nil {
		return false, mapNotFound(err)
	}
	return false, nil
}

func (r *usersRepo) ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET refresh_token = '', refresh_expires_at = NULL, updated_at = now()
		WHERE refresh_expires_at IS NOT NULL AND refresh_expires_at <= $1`,
		now.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
