package remote

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pub/sub channels, one per remote collection. Any write to a collection is
// announced on its channel; subscribers react with a full reload.
const (
	ChannelProducts  = "catalog.products"
	ChannelMaterials = "catalog.materials"
)

// Notifier publishes and subscribes to change notifications over redis
// pub/sub.
type Notifier struct {
	client *redis.Client
	logger *slog.Logger
}

// NewNotifier wraps a redis client.
func NewNotifier(client *redis.Client, logger *slog.Logger) *Notifier {
	return &Notifier{client: client, logger: logger}
}

// Publish announces a change on the given channel. The payload carries only
// a timestamp; subscribers always reload the whole collection.
func (n *Notifier) Publish(ctx context.Context, channel string) error {
	payload := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return n.client.Publish(ctx, channel, payload).Err()
}

// Subscription is a live change-notification subscription. Unsubscribe is
// idempotent; after it returns no further callbacks fire.
type Subscription struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
	once   sync.Once
}

// Unsubscribe cancels the notification channel and releases its resources.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		_ = s.pubsub.Close()
	})
}

// Subscribe registers fn to run on every notification published to channel.
// The callback runs on a dedicated goroutine, one message at a time, until
// Unsubscribe is called or ctx is done.
func (n *Notifier) Subscribe(ctx context.Context, channel string, fn func()) (*Subscription, error) {
	pubsub := n.client.Subscribe(ctx, channel)
	// Force the subscription onto the wire before returning, so callers never
	// miss a notification published right after Subscribe.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{pubsub: pubsub, cancel: cancel}

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				n.logger.Debug("remote change notification",
					slog.String("channel", msg.Channel))
				fn()
			}
		}
	}()

	return sub, nil
}
