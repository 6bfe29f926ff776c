package bolt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/aussiebroadwan/marquee/internal/auth/domain"
	"github.com/aussiebroadwan/marquee/internal/auth/store"
	bbolt "go.etcd.io/bbolt"
)

// userRecord is the on-disk JSON form of a user.
type userRecord struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"password_hash"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	RefreshExpiresAt *int64    `json:"refresh_expires_at,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toRecord(u domain.User) userRecord {
	rec := userRecord{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		RefreshToken: u.CurrentRefreshToken,
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
	rec.setExpiry(u.RefreshExpiresAt)
	return rec
}

func (rec *userRecord) setExpiry(t *time.Time) {
	if t == nil {
		rec.RefreshExpiresAt = nil
		return
	}
	secs := t.Unix()
	rec.RefreshExpiresAt = &secs
}

func (rec userRecord) user() domain.User {
	u := domain.User{
		ID:                  rec.ID,
		Name:                rec.Name,
		Email:               rec.Email,
		PasswordHash:        rec.PasswordHash,
		CurrentRefreshToken: rec.RefreshToken,
		CreatedAt:           rec.CreatedAt,
		UpdatedAt:           rec.UpdatedAt,
	}
	if rec.RefreshExpiresAt != nil {
		exp := time.Unix(*rec.RefreshExpiresAt, 0).UTC()
		u.RefreshExpiresAt = &exp
	}
	return u
}

// refreshKey indexes by digest so raw tokens never appear as keys.
func refreshKey(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	dst := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(dst, sum[:])
	return dst
}

type usersRepo struct {
	db *bbolt.DB
}

func getRecord(tx *bbolt.Tx, id []byte) (userRecord, error) {
	raw := tx.Bucket(usersBucket).Get(id)
	if raw == nil {
		return userRecord{}, store.ErrNotFound
	}
	var rec userRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return userRecord{}, err
	}
	return rec, nil
}

func putRecord(tx *bbolt.Tx, rec userRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return tx.Bucket(usersBucket).Put([]byte(rec.ID), raw)
}

// replaceRefresh moves the refresh index from the record's current token to
// next and saves the record.
func replaceRefresh(tx *bbolt.Tx, rec userRecord, next string, expiresAt *time.Time) error {
	idx := tx.Bucket(byRefreshBucket)
	if rec.RefreshToken != "" {
		if err := idx.Delete(refreshKey(rec.RefreshToken)); err != nil {
			return err
		}
	}
	if next != "" {
		if err := idx.Put(refreshKey(next), []byte(rec.ID)); err != nil {
			return err
		}
	}

	rec.RefreshToken = next
	rec.setExpiry(expiresAt)
	rec.UpdatedAt = time.Now().UTC()
	return putRecord(tx, rec)
}

func (r *usersRepo) view(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.View(fn)
}

func (r *usersRepo) update(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(fn)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := r.view(ctx, func(tx *bbolt.Tx) error {
		rec, err := getRecord(tx, []byte(id))
		if err != nil {
			return err
		}
		u = rec.user()
		return nil
	})
	return u, err
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getByIndex(ctx, byEmailBucket, []byte(email))
}

func (r *usersRepo) GetUserByRefreshToken(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, store.ErrNotFound
	}
	return r.getByIndex(ctx, byRefreshBucket, refreshKey(token))
}

func (r *usersRepo) getByIndex(ctx context.Context, bucket, key []byte) (domain.User, error) {
	var u domain.User
	err := r.view(ctx, func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucket).Get(key)
		if id == nil {
			return store.ErrNotFound
		}
		rec, err := getRecord(tx, id)
		if err != nil {
			return err
		}
		u = rec.user()
		return nil
	})
	return u, err
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	return r.update(ctx, func(tx *bbolt.Tx) error {
		emails := tx.Bucket(byEmailBucket)
		if emails.Get([]byte(u.Email)) != nil || tx.Bucket(usersBucket).Get([]byte(u.ID)) != nil {
			return store.ErrAlreadyExists
		}
		if err := emails.Put([]byte(u.Email), []byte(u.ID)); err != nil {
			return err
		}
		if u.CurrentRefreshToken != "" {
			if err := tx.Bucket(byRefreshBucket).Put(refreshKey(u.CurrentRefreshToken), []byte(u.ID)); err != nil {
				return err
			}
		}
		return putRecord(tx, toRecord(u))
	})
}

func (r *usersRepo) SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	return r.update(ctx, func(tx *bbolt.Tx) error {
		rec, err := getRecord(tx, []byte(userID))
		if err != nil {
			return err
		}
		return replaceRefresh(tx, rec, token, &expiresAt)
	})
}

func (r *usersRepo) CompareAndSwapRefreshToken(
	ctx context.Context,
	userID, expected, next string,
	expiresAt *time.Time,
) (bool, error) {
	// bbolt allows one writer at a time, so the read and the write below
	// cannot interleave with another swap.
	var swapped bool
	err := r.update(ctx, func(tx *bbolt.Tx) error {
		rec, err := getRecord(tx, []byte(userID))
		if err != nil {
			return err
		}
		if rec.RefreshToken != expected {
			return nil
		}
		swapped = true
		return replaceRefresh(tx, rec, next, expiresAt)
	})
	if err != nil {
		return false, err
	}
	return swapped, nil
}

func (r *usersRepo) ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	var cleared int64
	err := r.update(ctx, func(tx *bbolt.Tx) error {
		cleared = 0
		var expired []userRecord
		err := tx.Bucket(usersBucket).ForEach(func(_, raw []byte) error {
			var rec userRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return err
			}
			if rec.RefreshToken != "" && rec.RefreshExpiresAt != nil && *rec.RefreshExpiresAt <= now.Unix() {
				expired = append(expired, rec)
			}
			return nil
		})
		if err != nil {
			return err
		}

		// Writes happen after the cursor is done; bbolt forbids mutating a
		// bucket during ForEach.
		for _, rec := range expired {
			if err := replaceRefresh(tx, rec, "", nil); err != nil {
				return err
			}
			cleared++
		}
		return nil
	})
	return cleared, err
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	return r.update(ctx, func(tx *bbolt.Tx) error {
		rec, err := getRecord(tx, []byte(userID))
		if err != nil {
			return err
		}
		if err := tx.Bucket(byEmailBucket).Delete([]byte(rec.Email)); err != nil {
			return err
		}
		if rec.RefreshToken != "" {
			if err := tx.Bucket(byRefreshBucket).Delete(refreshKey(rec.RefreshToken)); err != nil {
				return err
			}
		}
		return tx.Bucket(usersBucket).Delete([]byte(rec.ID))
	})
}
