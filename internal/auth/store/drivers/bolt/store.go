// Package bolt stores users in a single embedded bbolt file. It suits single
// node deployments that want persistence without running a database.
package bolt

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/aussiebroadwan/marquee/internal/auth/store"
	bbolt "go.etcd.io/bbolt"
)

var _ store.Store = (*Store)(nil)

const (
	dirPerm     = fs.FileMode(0o750)
	filePerm    = fs.FileMode(0o600)
	openTimeout = 5 * time.Second
)

var (
	usersBucket     = []byte("users")
	byEmailBucket   = []byte("users_by_email")
	byRefreshBucket = []byte("users_by_refresh")
)

type Store struct {
	db *bbolt.DB
}

// NewStore opens (or creates) the database file at path and its buckets.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := bbolt.Open(path, filePerm, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{usersBucket, byEmailBucket, byRefreshBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bolt buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Users() store.Users { return &usersRepo{db: s.db} }

// ApplyMigrations is a no-op. Buckets are created on open.
func (s *Store) ApplyMigrations() error { return nil }

func (s *Store) Close() error { return s.db.Close() }

// Ping runs an empty read transaction, which fails once the file is closed.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(*bbolt.Tx) error { return nil })
}
