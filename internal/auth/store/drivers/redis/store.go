package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/marquee/internal/auth/store"
	"github.com/redis/go-redis/v9"
)

var _ store.Store = (*Store)(nil)

// ErrUnavailable wraps every failure talking to redis.
var ErrUnavailable = errors.New("redis: unavailable")

// Options configures a redis backed store.
type Options struct {
	Addr     string
	Password string
	DB       int

	// Prefix namespaces every key, so several deployments can share an
	// instance. Defaults to "marquee".
	Prefix string
}

// Store keeps users in redis hashes. It has no schema, so ApplyMigrations is
// a no-op.
type Store struct {
	client redis.UniversalClient
	keys   keyspace
}

// Open connects to redis and verifies the connection.
func Open(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return NewStore(client, opts.Prefix), nil
}

// NewStore wraps an existing client. The store takes ownership and closes
// the client on Close.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "marquee"
	}
	return &Store{client: client, keys: keyspace{prefix: prefix}}
}

func (s *Store) Users() store.Users { return &usersRepo{client: s.client, keys: s.keys} }

func (s *Store) ApplyMigrations() error { return nil }

func (s *Store) Close() error { return s.client.Close() }

// Ping verifies redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

type keyspace struct {
	prefix string
}

func (k keyspace) user(id string) string     { return k.userPrefix() + id }
func (k keyspace) userPrefix() string        { return k.prefix + ":user:" }
func (k keyspace) email(email string) string { return k.emailPrefix() + email }
func (k keyspace) emailPrefix() string       { return k.prefix + ":email:" }
func (k keyspace) refresh(tok string) string { return k.refreshPrefix() + tok }
func (k keyspace) refreshPrefix() string     { return k.prefix + ":refresh:" }
func (k keyspace) refreshExpiry() string     { return k.prefix + ":refresh_exp" }
