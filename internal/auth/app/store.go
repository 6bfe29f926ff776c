package app

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/marquee/internal/auth/store"
	"github.com/aussiebroadwan/marquee/internal/auth/store/drivers/bolt"
	"github.com/aussiebroadwan/marquee/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/marquee/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/marquee/internal/auth/store/drivers/sqlite"
)

// openStore connects the configured driver and brings its schema up to date.
func openStore(ctx context.Context, cfg Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)

	switch cfg.StoreDriver {
	case DriverSQLite:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DatabaseFile)
		st, err = sqlite.NewStore(dsn)
	case DriverPostgres:
		st, err = postgres.NewStore(ctx, cfg.PostgresDSN)
	case DriverRedis:
		st, err = redis.Open(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	case DriverBolt:
		st, err = bolt.NewStore(cfg.BoltFile)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}

	if err := st.ApplyMigrations(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("apply %s migrations: %w", cfg.StoreDriver, err)
	}
	return st, nil
}
