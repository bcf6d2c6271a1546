package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/daoyee/daoyee-quote/internal/catalog"
	"github.com/daoyee/daoyee-quote/internal/platform/cache"
	"github.com/daoyee/daoyee-quote/internal/platform/db"
	"github.com/daoyee/daoyee-quote/internal/remote"
)

// PostgresRedisDialer opens the production remote stack: a Postgres document
// store for data and a redis client for change notifications.
type PostgresRedisDialer struct {
	Logger *slog.Logger
}

// Dial connects both clients, ensures the remote schema exists, and returns
// a handle that closes them together.
func (d *PostgresRedisDialer) Dial(ctx context.Context, settings catalog.AppSettings) (*RemoteHandle, error) {
	if settings.RemoteDSN == "" || settings.RedisAddr == "" {
		return nil, fmt.Errorf("syncer: incomplete remote settings")
	}

	pool, err := db.New(ctx, settings.RemoteDSN)
	if err != nil {
		return nil, fmt.Errorf("syncer: dial postgres: %w", err)
	}
	store := remote.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	client, err := cache.New(ctx, settings.RedisAddr)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("syncer: dial redis: %w", err)
	}

	return &RemoteHandle{
		Store:    store,
		Notifier: NotifierAdapter{Notifier: remote.NewNotifier(client, d.Logger)},
		Close: func() {
			_ = client.Close()
			pool.Close()
		},
	}, nil
}

// NotifierAdapter bridges the concrete redis notifier to the Notifier
// interface consumed by the coordinator.
type NotifierAdapter struct {
	Notifier *remote.Notifier
}

func (a NotifierAdapter) Publish(ctx context.Context, channel string) error {
	return a.Notifier.Publish(ctx, channel)
}

func (a NotifierAdapter) Subscribe(ctx context.Context, channel string, fn func()) (Subscription, error) {
	sub, err := a.Notifier.Subscribe(ctx, channel, fn)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
